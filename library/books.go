package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
)

var bookColumns = []any{"book_id", "title", "author", "isbn", "cost_book", "book_status"}

// CreateBook catalogues a new book as AVAILABLE.
func (d *Database) CreateBook(ctx context.Context, nb NewBook) (*Book, error) {
	title := strings.TrimSpace(nb.Title)
	if title == "" {
		return nil, invalidInput("title is required")
	}
	cost, err := costValue(nb.Cost)
	if err != nil {
		return nil, err
	}

	var book *Book
	err = d.withTx(ctx, "create book", func(ctx context.Context, tx *sqlx.Tx) error {
		id, err := d.insert(ctx, tx, d.insertInto("books").Rows(goqu.Record{
			"title":       title,
			"author":      strings.TrimSpace(nb.Author),
			"isbn":        optional(nb.ISBN),
			"cost_book":   cost,
			"book_status": string(StatusAvailable),
		}), "book_id")
		if err != nil {
			return fmt.Errorf("insert book: %w", err)
		}
		book, err = d.getBook(ctx, tx, id, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return book, nil
}

// GetBook fetches a single book.
func (d *Database) GetBook(ctx context.Context, id int64) (*Book, error) {
	return d.getBook(ctx, d.db, id, false)
}

// getBook reads one book, locking its row when forUpdate is set and the store
// supports it.
func (d *Database) getBook(ctx context.Context, q sqlx.QueryerContext, id int64, forUpdate bool) (*Book, error) {
	ds := d.from("books").Select(bookColumns...).Where(goqu.C("book_id").Eq(id))
	if forUpdate {
		ds = d.lock(ds)
	}
	var b Book
	if err := d.get(ctx, q, &b, ds); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, bookNotFound(id)
		}
		return nil, fmt.Errorf("get book %d: %w", id, err)
	}
	return &b, nil
}

// ListBooks returns books ordered by id. Title and author filters match
// substrings regardless of case.
func (d *Database) ListBooks(ctx context.Context, f BookFilter) ([]Book, error) {
	ds := d.from("books").Select(bookColumns...).Order(goqu.C("book_id").Asc())
	if t := strings.TrimSpace(f.Title); t != "" {
		ds = ds.Where(containsFold("title", t))
	}
	if a := strings.TrimSpace(f.Author); a != "" {
		ds = ds.Where(containsFold("author", a))
	}
	if f.Status != "" {
		ds = ds.Where(goqu.C("book_status").Eq(string(f.Status)))
	}
	ds = ds.Limit(uint(limitOrDefault(f.Limit, defaultListLimit)))

	books := []Book{}
	if err := d.selectRows(ctx, d.db, &books, ds); err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

// UpdateBook changes only the fields set in u.
func (d *Database) UpdateBook(ctx context.Context, id int64, u BookUpdate) (*Book, error) {
	if u.empty() {
		return nil, ErrNoFieldsToUpdate
	}
	rec := goqu.Record{}
	if u.Title != nil {
		t := strings.TrimSpace(*u.Title)
		if t == "" {
			return nil, invalidInput("title must not be empty")
		}
		rec["title"] = t
	}
	if u.Author != nil {
		rec["author"] = strings.TrimSpace(*u.Author)
	}
	if u.ISBN != nil {
		rec["isbn"] = *u.ISBN
	}
	if u.Cost != nil {
		cost, err := costValue(u.Cost)
		if err != nil {
			return nil, err
		}
		rec["cost_book"] = cost
	}

	var book *Book
	err := d.withTx(ctx, "update book", func(ctx context.Context, tx *sqlx.Tx) error {
		n, err := d.affected(ctx, tx, d.update("books").Set(rec).Where(goqu.C("book_id").Eq(id)))
		if err != nil {
			return fmt.Errorf("update book %d: %w", id, err)
		}
		if n == 0 {
			return bookNotFound(id)
		}
		book, err = d.getBook(ctx, tx, id, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return book, nil
}

// SetBookStatus is the administrative status change: marking a book LOST,
// DAMAGED, REMOVED or back to AVAILABLE. It never touches a BORROWED book and
// never sets BORROWED; those belong to CreateLoan and ProcessReturn.
func (d *Database) SetBookStatus(ctx context.Context, id int64, status BookStatus) (*Book, error) {
	status, err := ParseBookStatus(string(status))
	if err != nil {
		return nil, err
	}
	op := OpSetStatus
	if status == StatusRemoved {
		op = OpRemove
	}
	return d.changeBookStatus(ctx, op, id, status)
}

// RemoveBook logically deletes a book by marking it REMOVED. A book that is
// out on loan must be returned first.
func (d *Database) RemoveBook(ctx context.Context, id int64) error {
	_, err := d.changeBookStatus(ctx, OpRemove, id, StatusRemoved)
	return err
}

func (d *Database) changeBookStatus(ctx context.Context, op Operation, id int64, target BookStatus) (*Book, error) {
	var book *Book
	err := d.withTx(ctx, string(op), func(ctx context.Context, tx *sqlx.Tx) error {
		b, err := d.getBook(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if err := CheckTransition(op, id, b.Status, target); err != nil {
			return err
		}
		if _, err := d.exec(ctx, tx, d.update("books").
			Set(goqu.Record{"book_status": string(target)}).
			Where(goqu.C("book_id").Eq(id))); err != nil {
			return fmt.Errorf("set book %d status: %w", id, err)
		}
		msg := logMsgBookStatusChanged
		if target == StatusRemoved {
			msg = logMsgBookRemoved
		}
		d.logger.Info(msg, d.attrs(ctx, logAttrBookID, id, logAttrStatus, string(target))...)
		b.Status = target
		book = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return book, nil
}

// containsFold matches col against a case-insensitive substring.
func containsFold(col, s string) exp.LiteralExpression {
	return goqu.L(`LOWER(?) LIKE ? ESCAPE '\'`, goqu.I(col), "%"+likeText(s)+"%")
}

// prefixFold matches col against a case-insensitive prefix.
func prefixFold(col, s string) exp.LiteralExpression {
	return goqu.L(`LOWER(?) LIKE ? ESCAPE '\'`, goqu.I(col), likeText(s)+"%")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// likeText lower-cases s and escapes LIKE wildcards so user input matches
// literally. The pattern needs ESCAPE '\'.
func likeText(s string) string {
	return likeEscaper.Replace(strings.ToLower(s))
}

// maxCost is the largest value a NUMERIC(10,2) column holds.
const maxCost = 99_999_999.99

// costValue rounds a cost to whole cents so that both backends store the
// same value a NUMERIC(10,2) column would.
func costValue(c *float64) (any, error) {
	if c == nil {
		return nil, nil
	}
	v := *c
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, invalidInput("cost must be a number")
	}
	if v < 0 {
		return nil, invalidInput("cost must not be negative")
	}
	v = math.Round(v*100) / 100
	if v > maxCost {
		return nil, invalidInput("cost must not exceed %.2f", maxCost)
	}
	return v, nil
}

func limitOrDefault(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}

// optional unwraps p so goqu binds either the value or NULL.
func optional[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
