package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
)

var borrowerColumns = []any{
	"person_id", "first_name", "last_name", "email",
	"phone_number", "relationship_type", "address", "status",
}

// CreateBorrower registers a borrower as ACTIVE. At least one of first or
// last name is required.
func (d *Database) CreateBorrower(ctx context.Context, nb NewBorrower) (*Borrower, error) {
	first, last := strings.TrimSpace(nb.FirstName), strings.TrimSpace(nb.LastName)
	if first == "" && last == "" {
		return nil, invalidInput("first or last name is required")
	}

	var borrower *Borrower
	err := d.withTx(ctx, "create borrower", func(ctx context.Context, tx *sqlx.Tx) error {
		id, err := d.insert(ctx, tx, d.insertInto("borrowers").Rows(goqu.Record{
			"first_name":        first,
			"last_name":         last,
			"email":             optionalText(nb.Email),
			"phone_number":      optionalText(nb.Phone),
			"relationship_type": optionalText(nb.Relationship),
			"address":           optionalText(nb.Address),
			"status":            string(BorrowerActive),
		}), "person_id")
		if err != nil {
			return fmt.Errorf("insert borrower: %w", err)
		}
		borrower, err = d.getBorrower(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return borrower, nil
}

// GetBorrower fetches a single borrower.
func (d *Database) GetBorrower(ctx context.Context, id int64) (*Borrower, error) {
	return d.getBorrower(ctx, d.db, id)
}

func (d *Database) getBorrower(ctx context.Context, q sqlx.QueryerContext, id int64) (*Borrower, error) {
	var b Borrower
	err := d.get(ctx, q, &b, d.from("borrowers").Select(borrowerColumns...).Where(goqu.C("person_id").Eq(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, borrowerNotFound(id)
		}
		return nil, fmt.Errorf("get borrower %d: %w", id, err)
	}
	return &b, nil
}

// ListBorrowers returns borrowers ordered by last then first name.
func (d *Database) ListBorrowers(ctx context.Context, f BorrowerFilter) ([]Borrower, error) {
	ds := d.from("borrowers").Select(borrowerColumns...).
		Order(goqu.C("last_name").Asc(), goqu.C("first_name").Asc(), goqu.C("person_id").Asc())
	if first := strings.TrimSpace(f.FirstName); first != "" {
		ds = ds.Where(prefixFold("first_name", first))
	}
	if last := strings.TrimSpace(f.LastName); last != "" {
		ds = ds.Where(goqu.C("last_name").Eq(last))
	}
	if f.Status != "" {
		ds = ds.Where(goqu.C("status").Eq(string(f.Status)))
	}
	ds = ds.Limit(uint(limitOrDefault(f.Limit, defaultListLimit)))

	borrowers := []Borrower{}
	if err := d.selectRows(ctx, d.db, &borrowers, ds); err != nil {
		return nil, fmt.Errorf("list borrowers: %w", err)
	}
	return borrowers, nil
}

// UpdateBorrowerContact changes only the fields set in u. The borrower must
// keep at least one non-empty name.
func (d *Database) UpdateBorrowerContact(ctx context.Context, id int64, u BorrowerUpdate) (*Borrower, error) {
	if u.empty() {
		return nil, ErrNoFieldsToUpdate
	}
	rec := goqu.Record{}
	name := func(col string, v *string) {
		if v != nil {
			rec[col] = strings.TrimSpace(*v)
		}
	}
	contact := func(col string, v *string) {
		if v != nil {
			rec[col] = optionalText(v)
		}
	}
	name("first_name", u.FirstName)
	name("last_name", u.LastName)
	contact("email", u.Email)
	contact("phone_number", u.Phone)
	contact("relationship_type", u.Relationship)
	contact("address", u.Address)

	var borrower *Borrower
	err := d.withTx(ctx, "update borrower", func(ctx context.Context, tx *sqlx.Tx) error {
		n, err := d.affected(ctx, tx, d.update("borrowers").Set(rec).Where(goqu.C("person_id").Eq(id)))
		if err != nil {
			return fmt.Errorf("update borrower %d: %w", id, err)
		}
		if n == 0 {
			return borrowerNotFound(id)
		}
		borrower, err = d.getBorrower(ctx, tx, id)
		if err != nil {
			return err
		}
		if borrower.FirstName == "" && borrower.LastName == "" {
			return invalidInput("borrower %d would have no name", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return borrower, nil
}

// SetBorrowerStatus marks a borrower ACTIVE or INACTIVE.
func (d *Database) SetBorrowerStatus(ctx context.Context, id int64, status BorrowerStatus) (*Borrower, error) {
	status, err := ParseBorrowerStatus(string(status))
	if err != nil {
		return nil, err
	}
	var borrower *Borrower
	err = d.withTx(ctx, "set borrower status", func(ctx context.Context, tx *sqlx.Tx) error {
		n, err := d.affected(ctx, tx, d.update("borrowers").
			Set(goqu.Record{"status": string(status)}).
			Where(goqu.C("person_id").Eq(id)))
		if err != nil {
			return fmt.Errorf("set borrower %d status: %w", id, err)
		}
		if n == 0 {
			return borrowerNotFound(id)
		}
		borrower, err = d.getBorrower(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return borrower, nil
}

// DeleteBorrower removes a borrower row. Borrowers referenced by any loan,
// open or closed, are kept because loan history is never rewritten.
func (d *Database) DeleteBorrower(ctx context.Context, id int64) error {
	return d.withTx(ctx, "delete borrower", func(ctx context.Context, tx *sqlx.Tx) error {
		if _, err := d.getBorrower(ctx, tx, id); err != nil {
			return err
		}
		var loans int64
		if err := d.get(ctx, tx, &loans, d.from("transactions").
			Select(goqu.COUNT(goqu.Star())).
			Where(goqu.C("person_id").Eq(id))); err != nil {
			return fmt.Errorf("count loans of borrower %d: %w", id, err)
		}
		if loans > 0 {
			return fmt.Errorf("%w: borrower %d has %d loans", ErrBorrowerHasLoans, id, loans)
		}
		if _, err := d.exec(ctx, tx, d.deleteFrom("borrowers").Where(goqu.C("person_id").Eq(id))); err != nil {
			return fmt.Errorf("delete borrower %d: %w", id, err)
		}
		return nil
	})
}

// optionalText trims a contact field and binds NULL when nothing is left, so
// a cleared field reads the same as one never set.
func optionalText(p *string) any {
	if p == nil {
		return nil
	}
	if v := strings.TrimSpace(*p); v != "" {
		return v
	}
	return nil
}
