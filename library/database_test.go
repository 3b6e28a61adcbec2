package library

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// march1 is the "today" most tests run at.
var march1 = NewDate(2024, time.March, 1)

func fixedClock(d Date) func() time.Time {
	return func() time.Time { return d.Time().Add(10 * time.Hour) }
}

func tempDB(t *testing.T, opts ...Option) *Database {
	t.Helper()
	dir := t.TempDir()
	opts = append([]Option{WithClock(fixedClock(march1))}, opts...)
	db, err := NewDatabase(filepath.Join(dir, "test.db"), opts...)
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "lib.db")

	db, err := NewDatabase(path)
	require.NoError(t, err)
	book, err := db.CreateBook(context.Background(), NewBook{Title: "Persisted"})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = NewDatabase(path)
	require.NoError(t, err)
	defer db.Close()

	got, err := db.GetBook(context.Background(), book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Persisted", got.Title)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "whatever")
	require.ErrorIs(t, err, ErrValidation)
}

func TestOptionsAreValidated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lib.db")
	for name, opt := range map[string]Option{
		"zero loan period": WithLoanPeriod(0),
		"nil clock":        WithClock(nil),
		"nil logger":       WithLogger(nil),
		"negative timeout": WithBusyTimeout(-1),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewDatabase(path, opt)
			require.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestPureGoDriverRunsLoanCycle(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, DriverSQLite, filepath.Join(t.TempDir(), "modernc.db"), WithClock(fixedClock(march1)))
	require.NoError(t, err)
	defer db.Close()

	book, err := db.CreateBook(ctx, NewBook{Title: "Pure Go"})
	require.NoError(t, err)
	person, err := db.CreateBorrower(ctx, NewBorrower{FirstName: "Ada"})
	require.NoError(t, err)

	loan, err := db.CreateLoan(ctx, LoanRequest{BookID: book.ID, BorrowerID: person.ID})
	require.NoError(t, err)
	assert.Equal(t, march1.AddDays(14), loan.DueDate)

	_, err = db.CreateLoan(ctx, LoanRequest{BookID: book.ID, BorrowerID: person.ID})
	require.ErrorIs(t, err, ErrBookNotAvailable)

	ret, err := db.ProcessReturn(ctx, loan.TransactionID, Date{})
	require.NoError(t, err)
	assert.False(t, ret.IsLate)
	assertBookConsistent(t, db, book.ID)
}

func TestOpenLoanIndexRejectsSecondOpenLoan(t *testing.T) {
	ctx := context.Background()
	db := tempDB(t)
	book, person := seedLoanable(t, db)

	_, err := db.CreateLoan(ctx, LoanRequest{BookID: book.ID, BorrowerID: person.ID})
	require.NoError(t, err)

	// A write that bypasses CreateLoan still cannot open a second loan.
	_, err = db.db.ExecContext(ctx,
		`INSERT INTO transactions(book_id, person_id, loan_date, due_date) VALUES(?,?,?,?)`,
		book.ID, person.ID, "2024-03-02", "2024-03-16")
	require.Error(t, err)
	assert.True(t, isUniqueViolation(err), "want unique violation, got %v", err)

	joined := lostLoanRace(book.ID, err)
	assert.ErrorIs(t, joined, ErrBookNotAvailable)
	assert.ErrorIs(t, joined, ErrConflict)
	var te *TransitionError
	require.True(t, errors.As(joined, &te))
	assert.Equal(t, StatusBorrowed, te.Status)
}

func TestSchemaRejectsUnknownStatus(t *testing.T) {
	db := tempDB(t)
	_, err := db.db.Exec(`INSERT INTO books(title, book_status) VALUES('x', 'available')`)
	require.Error(t, err)
}

// ---------------------------------------------------------------------------
// helpers shared by the package tests
// ---------------------------------------------------------------------------

func seedLoanable(t *testing.T, db *Database) (*Book, *Borrower) {
	t.Helper()
	ctx := context.Background()
	book, err := db.CreateBook(ctx, NewBook{Title: "The Left Hand of Darkness", Author: "Ursula K. Le Guin"})
	require.NoError(t, err)
	person, err := db.CreateBorrower(ctx, NewBorrower{FirstName: "Sam", LastName: "Rivera"})
	require.NoError(t, err)
	return book, person
}

func openLoanCount(t *testing.T, db *Database, bookID int64) int {
	t.Helper()
	var n int
	err := db.db.Get(&n, `SELECT COUNT(*) FROM transactions WHERE book_id = ? AND actual_return_date IS NULL`, bookID)
	require.NoError(t, err)
	return n
}

// assertBookConsistent checks that BORROWED holds exactly when one open loan
// exists for the book.
func assertBookConsistent(t *testing.T, db *Database, bookID int64) {
	t.Helper()
	book, err := db.GetBook(context.Background(), bookID)
	require.NoError(t, err)
	open := openLoanCount(t, db, bookID)
	if book.Status == StatusBorrowed {
		assert.Equal(t, 1, open, "borrowed book %d", bookID)
	} else {
		assert.Equal(t, 0, open, "book %d in status %s", bookID, book.Status)
	}
}
