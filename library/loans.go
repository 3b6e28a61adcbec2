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

var transactionColumns = []any{
	"transaction_id", "book_id", "person_id", "loan_date", "due_date", "actual_return_date",
}

// CreateLoan lends a book to a borrower. The book must exist and be
// AVAILABLE and the borrower must exist. The new transaction and the flip to
// BORROWED commit together or not at all.
//
// Of two concurrent loans for the same book exactly one succeeds; the other
// fails with ErrBookNotAvailable.
func (d *Database) CreateLoan(ctx context.Context, req LoanRequest) (*LoanRecord, error) {
	loanDate := req.LoanDate
	if loanDate.IsZero() {
		loanDate = d.today()
	}
	period := req.PeriodDays
	if period <= 0 {
		period = d.loanPeriod
	}
	dueDate := req.DueDate
	if dueDate.IsZero() {
		dueDate = loanDate.AddDays(period)
	}
	if dueDate.Before(loanDate) {
		return nil, invalidInput("due date %s is before loan date %s", dueDate, loanDate)
	}

	var rec *LoanRecord
	err := d.withTx(ctx, "create loan", func(ctx context.Context, tx *sqlx.Tx) error {
		book, err := d.getBook(ctx, tx, req.BookID, true)
		if err != nil {
			return err
		}
		if err := CheckTransition(OpLend, book.ID, book.Status, StatusBorrowed); err != nil {
			return err
		}
		borrower, err := d.getBorrower(ctx, tx, req.BorrowerID)
		if err != nil {
			return err
		}

		id, err := d.insert(ctx, tx, d.insertInto("transactions").Rows(goqu.Record{
			"book_id":   book.ID,
			"person_id": borrower.ID,
			"loan_date": loanDate,
			"due_date":  dueDate,
		}), "transaction_id")
		if err != nil {
			if isUniqueViolation(err) {
				d.logger.Warn(logMsgLoanConflict, d.attrs(ctx, logAttrBookID, book.ID)...)
				return lostLoanRace(book.ID, err)
			}
			return fmt.Errorf("insert transaction: %w", err)
		}

		n, err := d.affected(ctx, tx, d.update("books").
			Set(goqu.Record{"book_status": string(StatusBorrowed)}).
			Where(goqu.C("book_id").Eq(book.ID), goqu.C("book_status").Eq(string(StatusAvailable))))
		if err != nil {
			return fmt.Errorf("mark book %d borrowed: %w", book.ID, err)
		}
		if n == 0 {
			d.logger.Warn(logMsgLoanConflict, d.attrs(ctx, logAttrBookID, book.ID)...)
			return lostLoanRace(book.ID, nil)
		}

		d.logger.Info(logMsgLoanCreated, d.attrs(ctx,
			logAttrTransactionID, id, logAttrBookID, book.ID, logAttrBorrowerID, borrower.ID)...)
		rec = &LoanRecord{
			TransactionID: id,
			BookID:        book.ID,
			BookTitle:     book.Title,
			BorrowerID:    borrower.ID,
			BorrowerName:  borrower.Name(),
			LoanDate:      loanDate,
			DueDate:       dueDate,
			Status:        LoanActive,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ProcessReturn closes an open loan and makes its book AVAILABLE again. A
// zero returnDate means today.
func (d *Database) ProcessReturn(ctx context.Context, transactionID int64, returnDate Date) (*ReturnRecord, error) {
	var rec *ReturnRecord
	err := d.withTx(ctx, "process return", func(ctx context.Context, tx *sqlx.Tx) error {
		var err error
		rec, err = d.closeLoan(ctx, tx, transactionID, returnDate)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ProcessReturnByBook finds the most recent open loan for a book, given by id
// or by a case-insensitive title fragment, and returns it like ProcessReturn.
// When several loans match, the latest loan date wins and then the highest
// transaction id.
func (d *Database) ProcessReturnByBook(ctx context.Context, req ReturnByBookRequest) (*ReturnRecord, error) {
	title := strings.TrimSpace(req.BookTitle)
	if req.BookID <= 0 && title == "" {
		return nil, ErrMissingIdentifier
	}

	var rec *ReturnRecord
	err := d.withTx(ctx, "process return by book", func(ctx context.Context, tx *sqlx.Tx) error {
		ds := d.from(goqu.T("transactions").As("t")).
			Select(goqu.I("t.transaction_id")).
			Join(goqu.T("books").As("b"), goqu.On(goqu.I("b.book_id").Eq(goqu.I("t.book_id")))).
			Where(goqu.I("t.actual_return_date").IsNull()).
			Order(goqu.I("t.loan_date").Desc(), goqu.I("t.transaction_id").Desc()).
			Limit(1)
		var what string
		if req.BookID > 0 {
			ds = ds.Where(goqu.I("t.book_id").Eq(req.BookID))
			what = fmt.Sprintf("book %d", req.BookID)
		} else {
			ds = ds.Where(containsFold("b.title", title))
			what = fmt.Sprintf("title %q", title)
		}

		var transactionID int64
		if err := d.get(ctx, tx, &transactionID, ds); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w for %s", ErrNoActiveLoanFound, what)
			}
			return fmt.Errorf("find open loan for %s: %w", what, err)
		}

		var err error
		rec, err = d.closeLoan(ctx, tx, transactionID, req.ReturnDate)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// closeLoan is the shared body of both return operations.
func (d *Database) closeLoan(ctx context.Context, tx *sqlx.Tx, transactionID int64, returnDate Date) (*ReturnRecord, error) {
	t, err := d.getTransaction(ctx, tx, transactionID, true)
	if err != nil {
		return nil, err
	}
	if !t.Open() {
		return nil, &ClosedLoanError{TransactionID: t.ID, ReturnedOn: *t.ReturnDate}
	}
	if returnDate.IsZero() {
		returnDate = d.today()
	}
	if returnDate.Before(t.LoanDate) {
		return nil, invalidInput("return date %s is before loan date %s", returnDate, t.LoanDate)
	}

	book, err := d.getBook(ctx, tx, t.BookID, true)
	if err != nil {
		return nil, err
	}
	if err := CheckTransition(OpReturn, book.ID, book.Status, StatusAvailable); err != nil {
		return nil, err
	}
	borrower, err := d.getBorrower(ctx, tx, t.BorrowerID)
	if err != nil {
		return nil, err
	}

	n, err := d.affected(ctx, tx, d.update("transactions").
		Set(goqu.Record{"actual_return_date": returnDate}).
		Where(goqu.C("transaction_id").Eq(t.ID), goqu.C("actual_return_date").IsNull()))
	if err != nil {
		return nil, fmt.Errorf("close transaction %d: %w", t.ID, err)
	}
	if n == 0 {
		return nil, errors.Join(fmt.Errorf("%w: transaction %d", ErrTransactionAlreadyClosed, t.ID), ErrConflict)
	}
	if _, err := d.exec(ctx, tx, d.update("books").
		Set(goqu.Record{"book_status": string(StatusAvailable)}).
		Where(goqu.C("book_id").Eq(book.ID))); err != nil {
		return nil, fmt.Errorf("mark book %d available: %w", book.ID, err)
	}

	late, daysLate := lateness(returnDate, t.DueDate)
	d.logger.Info(logMsgLoanClosed, d.attrs(ctx,
		logAttrTransactionID, t.ID, logAttrBookID, book.ID, logAttrDaysLate, daysLate)...)
	return &ReturnRecord{
		TransactionID: t.ID,
		BookID:        book.ID,
		BookTitle:     book.Title,
		BorrowerID:    borrower.ID,
		BorrowerName:  borrower.Name(),
		LoanDate:      t.LoanDate,
		DueDate:       t.DueDate,
		ReturnDate:    returnDate,
		IsLate:        late,
		DaysLate:      daysLate,
		Status:        LoanReturned,
	}, nil
}

// GetTransaction fetches a single loan, open or closed.
func (d *Database) GetTransaction(ctx context.Context, id int64) (*Transaction, error) {
	return d.getTransaction(ctx, d.db, id, false)
}

func (d *Database) getTransaction(ctx context.Context, q sqlx.QueryerContext, id int64, forUpdate bool) (*Transaction, error) {
	ds := d.from("transactions").Select(transactionColumns...).Where(goqu.C("transaction_id").Eq(id))
	if forUpdate {
		ds = d.lock(ds)
	}
	var t Transaction
	if err := d.get(ctx, q, &t, ds); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, transactionNotFound(id)
		}
		return nil, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return &t, nil
}

// lateness reports whether a return on returned is late for a loan due on
// due, and by how many whole days.
func lateness(returned, due Date) (bool, int) {
	days := returned.DaysSince(due)
	if days <= 0 {
		return false, 0
	}
	return true, days
}
