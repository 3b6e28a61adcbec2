package library

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
)

// Reports never write. Every "today" they depend on is read once per call
// from the clock so a single report is internally consistent.

const defaultReportLimit = 10

// loanRows is the shared FROM clause of the loan listings: transactions
// joined with their book and borrower.
func (d *Database) loanRows() *goqu.SelectDataset {
	return d.from(goqu.T("transactions").As("t")).
		Join(goqu.T("books").As("b"), goqu.On(goqu.I("b.book_id").Eq(goqu.I("t.book_id")))).
		Join(goqu.T("borrowers").As("p"), goqu.On(goqu.I("p.person_id").Eq(goqu.I("t.person_id"))))
}

func openLoan() exp.Expression {
	return goqu.I("t.actual_return_date").IsNull()
}

// DashboardStats returns the headline counts in a single statement.
func (d *Database) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	today := d.today()
	count := func(table string, where ...exp.Expression) *goqu.SelectDataset {
		return d.from(table).Select(goqu.COUNT(goqu.Star())).Where(where...)
	}
	open := goqu.C("actual_return_date").IsNull()

	ds := d.dialect.Select(
		count("transactions", open).As("active_loans"),
		count("transactions", open, goqu.C("due_date").Lt(today)).As("overdue_loans"),
		count("books", goqu.C("book_status").Eq(string(StatusAvailable))).As("available_books"),
		count("books", goqu.C("book_status").Eq(string(StatusBorrowed))).As("borrowed_books"),
		count("books").As("total_books"),
		count("borrowers").As("total_borrowers"),
	).Prepared(true)

	var s DashboardStats
	if err := d.get(ctx, d.db, &s, ds); err != nil {
		return nil, fmt.Errorf("dashboard stats: %w", err)
	}
	return &s, nil
}

// ActiveLoans lists every open loan, earliest due date first.
func (d *Database) ActiveLoans(ctx context.Context) ([]ActiveLoan, error) {
	today := d.today()
	ds := d.loanRows().
		Select(
			goqu.I("t.transaction_id"), goqu.I("t.book_id"),
			goqu.I("b.title").As("book_title"), goqu.I("b.author"),
			goqu.I("t.person_id"), goqu.I("p.first_name"), goqu.I("p.last_name"),
			goqu.I("t.loan_date"), goqu.I("t.due_date"),
		).
		Where(openLoan()).
		Order(goqu.I("t.due_date").Asc(), goqu.I("t.transaction_id").Asc())

	loans := []ActiveLoan{}
	if err := d.selectRows(ctx, d.db, &loans, ds); err != nil {
		return nil, fmt.Errorf("active loans: %w", err)
	}
	for i := range loans {
		l := &loans[i]
		l.BorrowerName = fullName(l.FirstName, l.LastName)
		l.DaysOverdue = today.DaysSince(l.DueDate)
		l.Status = LoanActive
		if l.DaysOverdue > 0 {
			l.Status = LoanOverdue
		}
	}
	return loans, nil
}

// OverdueLoans lists open loans whose due date is before today, most overdue
// first, with the borrower's contact details.
func (d *Database) OverdueLoans(ctx context.Context) ([]OverdueLoan, error) {
	today := d.today()
	ds := d.loanRows().
		Select(
			goqu.I("t.transaction_id"), goqu.I("t.book_id"),
			goqu.I("b.title").As("book_title"),
			goqu.I("t.person_id"), goqu.I("p.first_name"), goqu.I("p.last_name"),
			goqu.I("p.email"), goqu.I("p.phone_number"),
			goqu.I("t.loan_date"), goqu.I("t.due_date"),
		).
		Where(openLoan(), goqu.I("t.due_date").Lt(today)).
		Order(goqu.I("t.due_date").Asc(), goqu.I("t.transaction_id").Asc())

	loans := []OverdueLoan{}
	if err := d.selectRows(ctx, d.db, &loans, ds); err != nil {
		return nil, fmt.Errorf("overdue loans: %w", err)
	}
	for i := range loans {
		l := &loans[i]
		l.BorrowerName = fullName(l.FirstName, l.LastName)
		l.DaysOverdue = today.DaysSince(l.DueDate)
	}
	return loans, nil
}

// BookHistory lists every loan of a book, newest first.
func (d *Database) BookHistory(ctx context.Context, bookID int64) ([]HistoryEntry, error) {
	if _, err := d.GetBook(ctx, bookID); err != nil {
		return nil, err
	}
	return d.history(ctx, goqu.I("t.book_id").Eq(bookID))
}

// BorrowerHistory lists every loan of a borrower, newest first.
func (d *Database) BorrowerHistory(ctx context.Context, borrowerID int64) ([]HistoryEntry, error) {
	if _, err := d.GetBorrower(ctx, borrowerID); err != nil {
		return nil, err
	}
	return d.history(ctx, goqu.I("t.person_id").Eq(borrowerID))
}

func (d *Database) history(ctx context.Context, where exp.Expression) ([]HistoryEntry, error) {
	ds := d.loanRows().
		Select(
			goqu.I("t.transaction_id"), goqu.I("t.book_id"),
			goqu.I("b.title").As("book_title"), goqu.I("b.author"),
			goqu.I("t.person_id"), goqu.I("p.first_name"), goqu.I("p.last_name"),
			goqu.I("t.loan_date"), goqu.I("t.due_date"), goqu.I("t.actual_return_date"),
		).
		Where(where).
		Order(goqu.I("t.loan_date").Desc(), goqu.I("t.transaction_id").Desc())

	entries := []HistoryEntry{}
	if err := d.selectRows(ctx, d.db, &entries, ds); err != nil {
		return nil, fmt.Errorf("loan history: %w", err)
	}
	for i := range entries {
		e := &entries[i]
		e.BorrowerName = fullName(e.FirstName, e.LastName)
		e.Status = historyStatus(e.DueDate, e.ReturnDate)
	}
	return entries, nil
}

func historyStatus(due Date, returned *Date) string {
	switch {
	case returned == nil:
		return LoanActive
	case returned.After(due):
		return LoanReturnedLate
	default:
		return LoanReturnedOnTime
	}
}

// MostBorrowedBooks ranks books by number of loans. Books never lent are
// included with zero counts.
func (d *Database) MostBorrowedBooks(ctx context.Context, limit int) ([]BookLoanCount, error) {
	ds := d.from(goqu.T("books").As("b")).
		LeftJoin(goqu.T("transactions").As("t"), goqu.On(goqu.I("t.book_id").Eq(goqu.I("b.book_id")))).
		Select(
			goqu.I("b.book_id"), goqu.I("b.title"), goqu.I("b.author"),
			goqu.COUNT(goqu.I("t.transaction_id")).As("total_loans"),
			currentlyBorrowed().As("currently_borrowed"),
			lateReturns().As("late_returns"),
		).
		GroupBy(goqu.I("b.book_id"), goqu.I("b.title"), goqu.I("b.author")).
		Order(goqu.C("total_loans").Desc(), goqu.I("b.book_id").Asc()).
		Limit(uint(limitOrDefault(limit, defaultReportLimit)))

	rows := []BookLoanCount{}
	if err := d.selectRows(ctx, d.db, &rows, ds); err != nil {
		return nil, fmt.Errorf("most borrowed books: %w", err)
	}
	return rows, nil
}

// MostActiveBorrowers ranks borrowers by number of loans, including those
// who never borrowed.
func (d *Database) MostActiveBorrowers(ctx context.Context, limit int) ([]BorrowerLoanCount, error) {
	ds := d.from(goqu.T("borrowers").As("p")).
		LeftJoin(goqu.T("transactions").As("t"), goqu.On(goqu.I("t.person_id").Eq(goqu.I("p.person_id")))).
		Select(
			goqu.I("p.person_id"), goqu.I("p.first_name"), goqu.I("p.last_name"),
			goqu.I("p.relationship_type"),
			goqu.COUNT(goqu.I("t.transaction_id")).As("total_loans"),
			currentlyBorrowed().As("currently_borrowed"),
			lateReturns().As("late_returns"),
		).
		GroupBy(goqu.I("p.person_id"), goqu.I("p.first_name"), goqu.I("p.last_name"), goqu.I("p.relationship_type")).
		Order(goqu.C("total_loans").Desc(), goqu.I("p.person_id").Asc()).
		Limit(uint(limitOrDefault(limit, defaultReportLimit)))

	rows := []BorrowerLoanCount{}
	if err := d.selectRows(ctx, d.db, &rows, ds); err != nil {
		return nil, fmt.Errorf("most active borrowers: %w", err)
	}
	for i := range rows {
		rows[i].BorrowerName = fullName(rows[i].FirstName, rows[i].LastName)
	}
	return rows, nil
}

// currentlyBorrowed counts joined rows that are open loans. The id check
// keeps the unmatched side of the LEFT JOIN out of the count.
func currentlyBorrowed() exp.SQLFunctionExpression {
	return goqu.COUNT(goqu.Case().When(
		goqu.And(goqu.I("t.transaction_id").IsNotNull(), goqu.I("t.actual_return_date").IsNull()),
		goqu.L("1"),
	))
}

func lateReturns() exp.SQLFunctionExpression {
	return goqu.COUNT(goqu.Case().When(
		goqu.I("t.actual_return_date").Gt(goqu.I("t.due_date")),
		goqu.L("1"),
	))
}
