package library

import (
	"context"
)

// LibraryManager is a thin façade over the Database, keeping CLI code simple.
type LibraryManager struct {
	db *Database
}

// NewLibraryManager opens (or creates) the SQLite database at dbPath.
func NewLibraryManager(dbPath string, opts ...Option) (*LibraryManager, error) {
	db, err := NewDatabase(dbPath, opts...)
	if err != nil {
		return nil, err
	}
	return &LibraryManager{db: db}, nil
}

// OpenLibraryManager connects with any supported driver.
func OpenLibraryManager(ctx context.Context, driverName, dsn string, opts ...Option) (*LibraryManager, error) {
	db, err := Open(ctx, driverName, dsn, opts...)
	if err != nil {
		return nil, err
	}
	return &LibraryManager{db: db}, nil
}

// Close closes the underlying database.
func (lm *LibraryManager) Close() error { return lm.db.Close() }

// Database exposes the store for callers that need the full surface.
func (lm *LibraryManager) Database() *Database { return lm.db }

// ------------------ Book helpers ------------------

// AddBook catalogues a book with only a title and author.
func (lm *LibraryManager) AddBook(ctx context.Context, title, author string) (*Book, error) {
	return lm.db.CreateBook(ctx, NewBook{Title: title, Author: author})
}

func (lm *LibraryManager) CreateBook(ctx context.Context, nb NewBook) (*Book, error) {
	return lm.db.CreateBook(ctx, nb)
}

func (lm *LibraryManager) GetBook(ctx context.Context, id int64) (*Book, error) {
	return lm.db.GetBook(ctx, id)
}

func (lm *LibraryManager) ListBooks(ctx context.Context, f BookFilter) ([]Book, error) {
	return lm.db.ListBooks(ctx, f)
}

func (lm *LibraryManager) UpdateBook(ctx context.Context, id int64, u BookUpdate) (*Book, error) {
	return lm.db.UpdateBook(ctx, id, u)
}

func (lm *LibraryManager) SetBookStatus(ctx context.Context, id int64, status BookStatus) (*Book, error) {
	return lm.db.SetBookStatus(ctx, id, status)
}

func (lm *LibraryManager) RemoveBook(ctx context.Context, id int64) error {
	return lm.db.RemoveBook(ctx, id)
}

// ------------------ Borrower helpers ------------------

// AddBorrower registers a borrower with only a name.
func (lm *LibraryManager) AddBorrower(ctx context.Context, first, last string) (*Borrower, error) {
	return lm.db.CreateBorrower(ctx, NewBorrower{FirstName: first, LastName: last})
}

func (lm *LibraryManager) CreateBorrower(ctx context.Context, nb NewBorrower) (*Borrower, error) {
	return lm.db.CreateBorrower(ctx, nb)
}

func (lm *LibraryManager) GetBorrower(ctx context.Context, id int64) (*Borrower, error) {
	return lm.db.GetBorrower(ctx, id)
}

func (lm *LibraryManager) ListBorrowers(ctx context.Context, f BorrowerFilter) ([]Borrower, error) {
	return lm.db.ListBorrowers(ctx, f)
}

func (lm *LibraryManager) UpdateBorrowerContact(ctx context.Context, id int64, u BorrowerUpdate) (*Borrower, error) {
	return lm.db.UpdateBorrowerContact(ctx, id, u)
}

func (lm *LibraryManager) SetBorrowerStatus(ctx context.Context, id int64, status BorrowerStatus) (*Borrower, error) {
	return lm.db.SetBorrowerStatus(ctx, id, status)
}

func (lm *LibraryManager) DeleteBorrower(ctx context.Context, id int64) error {
	return lm.db.DeleteBorrower(ctx, id)
}

// ------------------ Circulation ------------------

// Lend creates a loan with today's date and the default loan period.
func (lm *LibraryManager) Lend(ctx context.Context, bookID, borrowerID int64) (*LoanRecord, error) {
	return lm.db.CreateLoan(ctx, LoanRequest{BookID: bookID, BorrowerID: borrowerID})
}

func (lm *LibraryManager) CreateLoan(ctx context.Context, req LoanRequest) (*LoanRecord, error) {
	return lm.db.CreateLoan(ctx, req)
}

func (lm *LibraryManager) ProcessReturn(ctx context.Context, transactionID int64, returnDate Date) (*ReturnRecord, error) {
	return lm.db.ProcessReturn(ctx, transactionID, returnDate)
}

func (lm *LibraryManager) ProcessReturnByBook(ctx context.Context, req ReturnByBookRequest) (*ReturnRecord, error) {
	return lm.db.ProcessReturnByBook(ctx, req)
}

func (lm *LibraryManager) GetTransaction(ctx context.Context, id int64) (*Transaction, error) {
	return lm.db.GetTransaction(ctx, id)
}

// ------------------ Reports ------------------

func (lm *LibraryManager) Dashboard(ctx context.Context) (*DashboardStats, error) {
	return lm.db.DashboardStats(ctx)
}

func (lm *LibraryManager) ActiveLoans(ctx context.Context) ([]ActiveLoan, error) {
	return lm.db.ActiveLoans(ctx)
}

func (lm *LibraryManager) OverdueLoans(ctx context.Context) ([]OverdueLoan, error) {
	return lm.db.OverdueLoans(ctx)
}

func (lm *LibraryManager) BookHistory(ctx context.Context, bookID int64) ([]HistoryEntry, error) {
	return lm.db.BookHistory(ctx, bookID)
}

func (lm *LibraryManager) BorrowerHistory(ctx context.Context, borrowerID int64) ([]HistoryEntry, error) {
	return lm.db.BorrowerHistory(ctx, borrowerID)
}

func (lm *LibraryManager) MostBorrowedBooks(ctx context.Context, limit int) ([]BookLoanCount, error) {
	return lm.db.MostBorrowedBooks(ctx, limit)
}

func (lm *LibraryManager) MostActiveBorrowers(ctx context.Context, limit int) ([]BorrowerLoanCount, error) {
	return lm.db.MostActiveBorrowers(ctx, limit)
}

// BookDetails bundles a book with its loan history for the show command.
type BookDetails struct {
	Book    *Book          `json:"book"`
	History []HistoryEntry `json:"history"`
}

// BookWithHistory loads a book and every loan of it.
func (lm *LibraryManager) BookWithHistory(ctx context.Context, id int64) (*BookDetails, error) {
	book, err := lm.db.GetBook(ctx, id)
	if err != nil {
		return nil, err
	}
	history, err := lm.db.BookHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	return &BookDetails{Book: book, History: history}, nil
}
