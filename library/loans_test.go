package library

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateLoanDefaults(t *testing.T) {
	ctx := context.Background()
	db := tempDB(t)
	book, person := seedLoanable(t, db)

	loan, err := db.CreateLoan(ctx, LoanRequest{BookID: book.ID, BorrowerID: person.ID})
	require.NoError(t, err)

	assert.Equal(t, march1, loan.LoanDate)
	assert.Equal(t, NewDate(2024, time.March, 15), loan.DueDate)
	assert.Equal(t, LoanActive, loan.Status)
	assert.Equal(t, book.Title, loan.BookTitle)
	assert.Equal(t, "Sam Rivera", loan.BorrowerName)

	got, err := db.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusBorrowed, got.Status)

	tr, err := db.GetTransaction(ctx, loan.TransactionID)
	require.NoError(t, err)
	assert.True(t, tr.Open())
	assert.Equal(t, loan.DueDate, tr.DueDate)
}

func TestCreateLoanExplicitDates(t *testing.T) {
	ctx := context.Background()
	db := tempDB(t, WithLoanPeriod(21))
	book, person := seedLoanable(t, db)
	loanDate := NewDate(2024, time.January, 10)

	loan, err := db.CreateLoan(ctx, LoanRequest{BookID: book.ID, BorrowerID: person.ID, LoanDate: loanDate})
	require.NoError(t, err)
	assert.Equal(t, loanDate.AddDays(21), loan.DueDate, "store default period")

	_, err = db.ProcessReturn(ctx, loan.TransactionID, loanDate.AddDays(1))
	require.NoError(t, err)

	loan, err = db.CreateLoan(ctx, LoanRequest{BookID: book.ID, BorrowerID: person.ID, LoanDate: loanDate, PeriodDays: 7})
	require.NoError(t, err)
	assert.Equal(t, loanDate.AddDays(7), loan.DueDate, "per-loan period")

	_, err = db.ProcessReturn(ctx, loan.TransactionID, loanDate.AddDays(1))
	require.NoError(t, err)

	due := NewDate(2024, time.February, 2)
	loan, err = db.CreateLoan(ctx, LoanRequest{BookID: book.ID, BorrowerID: person.ID, LoanDate: loanDate, DueDate: due})
	require.NoError(t, err)
	assert.Equal(t, due, loan.DueDate, "explicit due date wins")
}

func TestCreateLoanRejectsDueBeforeLoan(t *testing.T) {
	db := tempDB(t)
	book, person := seedLoanable(t, db)
	_, err := db.CreateLoan(context.Background(), LoanRequest{
		BookID: book.ID, BorrowerID: person.ID,
		LoanDate: march1, DueDate: march1.AddDays(-1),
	})
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 0, openLoanCount(t, db, book.ID))
}

func TestCreateLoanFailuresLeaveNoTrace(t *testing.T) {
	ctx := context.Background()
	db := tempDB(t)
	book, person := seedLoanable(t, db)

	_, err := db.CreateLoan(ctx, LoanRequest{BookID: 999, BorrowerID: person.ID})
	require.ErrorIs(t, err, ErrBookNotFound)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = db.CreateLoan(ctx, LoanRequest{BookID: book.ID, BorrowerID: 999})
	require.ErrorIs(t, err, ErrBorrowerNotFound)

	got, err := db.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAvailable, got.Status)
	assert.Equal(t, 0, openLoanCount(t, db, book.ID))
}

// Scenarios A, B and C: lend, refuse a second loan, return three days late.
func TestLoanLifecycle(t *testing.T) {
	ctx := context.Background()
	db := tempDB(t)
	book, person := seedLoanable(t, db)

	loan, err := db.CreateLoan(ctx, LoanRequest{BookID: book.ID, BorrowerID: person.ID})
	require.NoError(t, err)
	assert.Equal(t, loan.LoanDate.AddDays(14), loan.DueDate)
	assertBookConsistent(t, db, book.ID)

	_, err = db.CreateLoan(ctx, LoanRequest{BookID: book.ID, BorrowerID: person.ID})
	require.ErrorIs(t, err, ErrBookNotAvailable)
	var te *TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, StatusBorrowed, te.Status)
	assert.Equal(t, book.ID, te.BookID)
	assert.Equal(t, 1, openLoanCount(t, db, book.ID))

	ret, err := db.ProcessReturn(ctx, loan.TransactionID, loan.DueDate.AddDays(3))
	require.NoError(t, err)
	assert.True(t, ret.IsLate)
	assert.Equal(t, 3, ret.DaysLate)
	assert.Equal(t, LoanReturned, ret.Status)
	assert.Equal(t, "Sam Rivera", ret.BorrowerName)

	got, err := db.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAvailable, got.Status)
	assertBookConsistent(t, db, book.ID)
}

func TestReturnLatenessBoundary(t *testing.T) {
	tests := []struct {
		name     string
		offset   int
		wantLate bool
		wantDays int
	}{
		{"early", -5, false, 0},
		{"on due date", 0, false, 0},
		{"one day late", 1, true, 1},
		{"a month late", 30, true, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			db := tempDB(t)
			book, person := seedLoanable(t, db)
			loan, err := db.CreateLoan(ctx, LoanRequest{BookID: book.ID, BorrowerID: person.ID})
			require.NoError(t, err)

			ret, err := db.ProcessReturn(ctx, loan.TransactionID, loan.DueDate.AddDays(tt.offset))
			require.NoError(t, err)
			assert.Equal(t, tt.wantLate, ret.IsLate)
			assert.Equal(t, tt.wantDays, ret.DaysLate)
		})
	}
}

func TestReturnTwiceIsRejected(t *testing.T) {
	ctx := context.Background()
	db := tempDB(t)
	book, person := seedLoanable(t, db)
	loan, err := db.CreateLoan(ctx, LoanRequest{BookID: book.ID, BorrowerID: person.ID})
	require.NoError(t, err)

	first := march1.AddDays(2)
	_, err = db.ProcessReturn(ctx, loan.TransactionID, first)
	require.NoError(t, err)

	_, err = db.ProcessReturn(ctx, loan.TransactionID, first.AddDays(1))
	require.ErrorIs(t, err, ErrTransactionAlreadyClosed)
	require.ErrorIs(t, err, ErrInvalidState)
	var closed *ClosedLoanError
	require.True(t, errors.As(err, &closed))
	assert.Equal(t, first, closed.ReturnedOn)

	tr, err := db.GetTransaction(ctx, loan.TransactionID)
	require.NoError(t, err)
	require.NotNil(t, tr.ReturnDate)
	assert.Equal(t, first, *tr.ReturnDate, "first return date kept")
	assertBookConsistent(t, db, book.ID)
}

func TestReturnValidation(t *testing.T) {
	ctx := context.Background()
	db := tempDB(t)
	book, person := seedLoanable(t, db)

	_, err := db.ProcessReturn(ctx, 12345, Date{})
	require.ErrorIs(t, err, ErrTransactionNotFound)

	loan, err := db.CreateLoan(ctx, LoanRequest{BookID: book.ID, BorrowerID: person.ID})
	require.NoError(t, err)
	_, err = db.ProcessReturn(ctx, loan.TransactionID, loan.LoanDate.AddDays(-1))
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 1, openLoanCount(t, db, book.ID), "rejected return leaves loan open")

	ret, err := db.ProcessReturn(ctx, loan.TransactionID, Date{})
	require.NoError(t, err)
	assert.Equal(t, march1, ret.ReturnDate, "defaults to today")
}

// Scenario D: two open loans on two copies titled "Dune".
func TestReturnByTitlePicksMostRecentLoan(t *testing.T) {
	ctx := context.Background()
	db := tempDB(t)
	older, err := db.CreateBook(ctx, NewBook{Title: "Dune", Author: "Frank Herbert"})
	require.NoError(t, err)
	newer, err := db.CreateBook(ctx, NewBook{Title: "Dune Messiah", Author: "Frank Herbert"})
	require.NoError(t, err)
	a, err := db.CreateBorrower(ctx, NewBorrower{FirstName: "Ana"})
	require.NoError(t, err)
	b, err := db.CreateBorrower(ctx, NewBorrower{FirstName: "Ben"})
	require.NoError(t, err)

	_, err = db.CreateLoan(ctx, LoanRequest{BookID: older.ID, BorrowerID: a.ID, LoanDate: NewDate(2024, time.February, 1)})
	require.NoError(t, err)
	recent, err := db.CreateLoan(ctx, LoanRequest{BookID: newer.ID, BorrowerID: b.ID, LoanDate: NewDate(2024, time.February, 10)})
	require.NoError(t, err)

	ret, err := db.ProcessReturnByBook(ctx, ReturnByBookRequest{BookTitle: "dune"})
	require.NoError(t, err)
	assert.Equal(t, recent.TransactionID, ret.TransactionID)
	assert.Equal(t, newer.ID, ret.BookID)

	ret, err = db.ProcessReturnByBook(ctx, ReturnByBookRequest{BookTitle: "DUNE"})
	require.NoError(t, err)
	assert.Equal(t, older.ID, ret.BookID, "next call takes the remaining loan")

	_, err = db.ProcessReturnByBook(ctx, ReturnByBookRequest{BookTitle: "Dune"})
	require.ErrorIs(t, err, ErrNoActiveLoanFound)
}

func TestReturnByTitleTieBreaksOnTransactionID(t *testing.T) {
	ctx := context.Background()
	db := tempDB(t)
	first, err := db.CreateBook(ctx, NewBook{Title: "Dune"})
	require.NoError(t, err)
	second, err := db.CreateBook(ctx, NewBook{Title: "Dune"})
	require.NoError(t, err)
	p, err := db.CreateBorrower(ctx, NewBorrower{LastName: "Okafor"})
	require.NoError(t, err)

	_, err = db.CreateLoan(ctx, LoanRequest{BookID: first.ID, BorrowerID: p.ID})
	require.NoError(t, err)
	later, err := db.CreateLoan(ctx, LoanRequest{BookID: second.ID, BorrowerID: p.ID})
	require.NoError(t, err)

	ret, err := db.ProcessReturnByBook(ctx, ReturnByBookRequest{BookTitle: "Dune"})
	require.NoError(t, err)
	assert.Equal(t, later.TransactionID, ret.TransactionID)
}

func TestReturnByTitleMatchesWildcardsLiterally(t *testing.T) {
	ctx := context.Background()
	db := tempDB(t)
	wool, err := db.CreateBook(ctx, NewBook{Title: "100% Wool"})
	require.NoError(t, err)
	dune, err := db.CreateBook(ctx, NewBook{Title: "Dune"})
	require.NoError(t, err)
	p, err := db.CreateBorrower(ctx, NewBorrower{FirstName: "Ines"})
	require.NoError(t, err)

	woolLoan, err := db.CreateLoan(ctx, LoanRequest{BookID: wool.ID, BorrowerID: p.ID, LoanDate: NewDate(2024, time.March, 1)})
	require.NoError(t, err)
	duneLoan, err := db.CreateLoan(ctx, LoanRequest{BookID: dune.ID, BorrowerID: p.ID, LoanDate: NewDate(2024, time.March, 2)})
	require.NoError(t, err)

	for _, title := range []string{"%%", "_", "d_ne", `\`} {
		_, err = db.ProcessReturnByBook(ctx, ReturnByBookRequest{BookTitle: title})
		require.ErrorIs(t, err, ErrNoActiveLoanFound, "title %q", title)
	}
	_, err = db.ProcessReturnByBook(ctx, ReturnByBookRequest{BookTitle: " \t "})
	require.ErrorIs(t, err, ErrMissingIdentifier)
	assert.Equal(t, 1, openLoanCount(t, db, dune.ID), "Dune stays lent")

	// "%" is a fragment of "100% Wool" only, even though Dune was lent later.
	ret, err := db.ProcessReturnByBook(ctx, ReturnByBookRequest{BookTitle: "%"})
	require.NoError(t, err)
	assert.Equal(t, woolLoan.TransactionID, ret.TransactionID)
	assertBookConsistent(t, db, wool.ID)

	_, err = db.CreateLoan(ctx, LoanRequest{BookID: wool.ID, BorrowerID: p.ID, LoanDate: NewDate(2024, time.March, 1)})
	require.NoError(t, err)
	ret, err = db.ProcessReturnByBook(ctx, ReturnByBookRequest{BookTitle: "100% wool"})
	require.NoError(t, err)
	assert.Equal(t, wool.ID, ret.BookID)

	ret, err = db.ProcessReturnByBook(ctx, ReturnByBookRequest{BookTitle: "dune"})
	require.NoError(t, err)
	assert.Equal(t, duneLoan.TransactionID, ret.TransactionID)
}

func TestReturnByBookID(t *testing.T) {
	ctx := context.Background()
	db := tempDB(t)
	book, person := seedLoanable(t, db)
	other, err := db.CreateBook(ctx, NewBook{Title: "Unrelated"})
	require.NoError(t, err)

	_, err = db.ProcessReturnByBook(ctx, ReturnByBookRequest{})
	require.ErrorIs(t, err, ErrMissingIdentifier)
	require.ErrorIs(t, err, ErrValidation)

	_, err = db.ProcessReturnByBook(ctx, ReturnByBookRequest{BookID: book.ID})
	require.ErrorIs(t, err, ErrNoActiveLoanFound)

	loan, err := db.CreateLoan(ctx, LoanRequest{BookID: book.ID, BorrowerID: person.ID})
	require.NoError(t, err)

	// The id wins over a title that matches nothing on loan.
	ret, err := db.ProcessReturnByBook(ctx, ReturnByBookRequest{BookID: book.ID, BookTitle: other.Title, ReturnDate: loan.DueDate})
	require.NoError(t, err)
	assert.Equal(t, loan.TransactionID, ret.TransactionID)
	assert.False(t, ret.IsLate)
	assertBookConsistent(t, db, book.ID)
}

func TestConcurrentLoansOnOneBook(t *testing.T) {
	ctx := context.Background()
	db := tempDB(t)
	book, _ := seedLoanable(t, db)

	const workers = 8
	borrowers := make([]int64, workers)
	for i := range borrowers {
		p, err := db.CreateBorrower(ctx, NewBorrower{FirstName: "Reader", LastName: string(rune('A' + i))})
		require.NoError(t, err)
		borrowers[i] = p.ID
	}

	start := make(chan struct{})
	results := make(chan error, workers)
	var wg sync.WaitGroup
	for _, id := range borrowers {
		wg.Add(1)
		go func(borrowerID int64) {
			defer wg.Done()
			<-start
			_, err := db.CreateLoan(ctx, LoanRequest{BookID: book.ID, BorrowerID: borrowerID})
			results <- err
		}(id)
	}
	close(start)
	wg.Wait()
	close(results)

	var ok, refused int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrBookNotAvailable):
			refused++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, refused)
	assertBookConsistent(t, db, book.ID)
}

func TestConcurrentReturnsOfOneLoan(t *testing.T) {
	ctx := context.Background()
	db := tempDB(t)
	book, person := seedLoanable(t, db)
	loan, err := db.CreateLoan(ctx, LoanRequest{BookID: book.ID, BorrowerID: person.ID})
	require.NoError(t, err)

	done1 := make(chan error, 1)
	done2 := make(chan error, 1)
	go func() {
		_, err := db.ProcessReturn(ctx, loan.TransactionID, Date{})
		done1 <- err
	}()
	go func() {
		_, err := db.ProcessReturnByBook(ctx, ReturnByBookRequest{BookID: book.ID})
		done2 <- err
	}()
	err1, err2 := <-done1, <-done2

	if (err1 == nil) == (err2 == nil) {
		t.Fatalf("want exactly one success, got %v and %v", err1, err2)
	}
	failed := err1
	if failed == nil {
		failed = err2
	}
	// The loser either saw the closed loan or found nothing left to return.
	assert.True(t, errors.Is(failed, ErrTransactionAlreadyClosed) || errors.Is(failed, ErrNoActiveLoanFound), "got %v", failed)
	assertBookConsistent(t, db, book.ID)
}
