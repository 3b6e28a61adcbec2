package library

import "strings"

// BookStatus is the availability state of a single book. Exactly one value
// holds at any time.
type BookStatus string

const (
	StatusAvailable BookStatus = "AVAILABLE"
	StatusBorrowed  BookStatus = "BORROWED"
	StatusLost      BookStatus = "LOST"
	StatusDamaged   BookStatus = "DAMAGED"
	StatusRemoved   BookStatus = "REMOVED"
)

var bookStatuses = []BookStatus{StatusAvailable, StatusBorrowed, StatusLost, StatusDamaged, StatusRemoved}

// ParseBookStatus normalizes s to the canonical uppercase form.
func ParseBookStatus(s string) (BookStatus, error) {
	st := BookStatus(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range bookStatuses {
		if st == known {
			return st, nil
		}
	}
	return "", invalidStatus(s)
}

// BorrowerStatus marks whether a borrower is still part of the lending circle.
type BorrowerStatus string

const (
	BorrowerActive   BorrowerStatus = "ACTIVE"
	BorrowerInactive BorrowerStatus = "INACTIVE"
)

// ParseBorrowerStatus normalizes s to the canonical uppercase form.
func ParseBorrowerStatus(s string) (BorrowerStatus, error) {
	switch st := BorrowerStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case BorrowerActive, BorrowerInactive:
		return st, nil
	}
	return "", invalidStatus(s)
}

// Book is a row of the books table.
type Book struct {
	ID     int64      `db:"book_id" json:"book_id"`
	Title  string     `db:"title" json:"title"`
	Author string     `db:"author" json:"author"`
	ISBN   *string    `db:"isbn" json:"isbn,omitempty"`
	Cost   *float64   `db:"cost_book" json:"cost,omitempty"`
	Status BookStatus `db:"book_status" json:"status"`
}

// Borrower is a row of the borrowers table.
type Borrower struct {
	ID           int64          `db:"person_id" json:"person_id"`
	FirstName    string         `db:"first_name" json:"first_name"`
	LastName     string         `db:"last_name" json:"last_name"`
	Email        *string        `db:"email" json:"email,omitempty"`
	Phone        *string        `db:"phone_number" json:"phone_number,omitempty"`
	Relationship *string        `db:"relationship_type" json:"relationship_type,omitempty"`
	Address      *string        `db:"address" json:"address,omitempty"`
	Status       BorrowerStatus `db:"status" json:"status"`
}

// Name joins first and last name the way every report shows it.
func (b Borrower) Name() string { return fullName(b.FirstName, b.LastName) }

// Transaction is a loan row. A nil ReturnDate means the loan is open.
type Transaction struct {
	ID         int64 `db:"transaction_id" json:"transaction_id"`
	BookID     int64 `db:"book_id" json:"book_id"`
	BorrowerID int64 `db:"person_id" json:"person_id"`
	LoanDate   Date  `db:"loan_date" json:"loan_date"`
	DueDate    Date  `db:"due_date" json:"due_date"`
	ReturnDate *Date `db:"actual_return_date" json:"actual_return_date"`
}

// Open reports whether the loan has not been returned yet.
func (t Transaction) Open() bool { return t.ReturnDate == nil }

// ---------------------------------------------------------------------------
// Inputs
// ---------------------------------------------------------------------------

// NewBook holds the fields accepted when a book is first catalogued.
type NewBook struct {
	Title  string
	Author string
	ISBN   *string
	Cost   *float64
}

// BookUpdate lists optional book fields. Nil fields are left untouched.
type BookUpdate struct {
	Title  *string
	Author *string
	ISBN   *string
	Cost   *float64
}

func (u BookUpdate) empty() bool {
	return u.Title == nil && u.Author == nil && u.ISBN == nil && u.Cost == nil
}

// BookFilter narrows ListBooks. Title and Author match substrings, ignoring case.
type BookFilter struct {
	Title  string
	Author string
	Status BookStatus
	Limit  int
}

// NewBorrower holds the fields accepted when a borrower is registered.
type NewBorrower struct {
	FirstName    string
	LastName     string
	Email        *string
	Phone        *string
	Relationship *string
	Address      *string
}

// BorrowerUpdate lists optional contact fields. Nil fields are left untouched
// and blank contact fields are cleared to NULL.
type BorrowerUpdate struct {
	FirstName    *string
	LastName     *string
	Email        *string
	Phone        *string
	Relationship *string
	Address      *string
}

func (u BorrowerUpdate) empty() bool {
	return u.FirstName == nil && u.LastName == nil && u.Email == nil &&
		u.Phone == nil && u.Relationship == nil && u.Address == nil
}

// BorrowerFilter narrows ListBorrowers. FirstName matches a prefix, LastName
// matches exactly.
type BorrowerFilter struct {
	FirstName string
	LastName  string
	Status    BorrowerStatus
	Limit     int
}

// LoanRequest describes a loan to create. Zero dates are filled from the
// clock and the loan period.
type LoanRequest struct {
	BookID     int64
	BorrowerID int64
	LoanDate   Date
	DueDate    Date
	PeriodDays int
}

// ReturnByBookRequest identifies an open loan by book id or by a title
// fragment. BookID takes precedence when both are set.
type ReturnByBookRequest struct {
	BookID     int64
	BookTitle  string
	ReturnDate Date
}

// ---------------------------------------------------------------------------
// Results
// ---------------------------------------------------------------------------

// LoanRecord is returned by CreateLoan.
type LoanRecord struct {
	TransactionID int64  `json:"transaction_id"`
	BookID        int64  `json:"book_id"`
	BookTitle     string `json:"book_title"`
	BorrowerID    int64  `json:"person_id"`
	BorrowerName  string `json:"borrower_name"`
	LoanDate      Date   `json:"loan_date"`
	DueDate       Date   `json:"due_date"`
	Status        string `json:"status"`
}

// ReturnRecord is returned by ProcessReturn and ProcessReturnByBook.
type ReturnRecord struct {
	TransactionID int64  `json:"transaction_id"`
	BookID        int64  `json:"book_id"`
	BookTitle     string `json:"book_title"`
	BorrowerID    int64  `json:"person_id"`
	BorrowerName  string `json:"borrower_name"`
	LoanDate      Date   `json:"loan_date"`
	DueDate       Date   `json:"due_date"`
	ReturnDate    Date   `json:"return_date"`
	IsLate        bool   `json:"is_late"`
	DaysLate      int    `json:"days_late"`
	Status        string `json:"status"`
}

// Loan row states shown in listings and histories.
const (
	LoanActive         = "active"
	LoanOverdue        = "overdue"
	LoanReturned       = "returned"
	LoanReturnedLate   = "returned_late"
	LoanReturnedOnTime = "returned_on_time"
)

// DashboardStats are the headline counts for the status page.
type DashboardStats struct {
	ActiveLoans    int64 `db:"active_loans" json:"active_loans"`
	OverdueLoans   int64 `db:"overdue_loans" json:"overdue_loans"`
	AvailableBooks int64 `db:"available_books" json:"available_books"`
	BorrowedBooks  int64 `db:"borrowed_books" json:"borrowed_books"`
	TotalBooks     int64 `db:"total_books" json:"total_books"`
	TotalBorrowers int64 `db:"total_borrowers" json:"total_borrowers"`
}

// ActiveLoan is one open transaction. DaysOverdue is non-positive while the
// loan is not yet due.
type ActiveLoan struct {
	TransactionID int64  `db:"transaction_id" json:"transaction_id"`
	BookID        int64  `db:"book_id" json:"book_id"`
	BookTitle     string `db:"book_title" json:"book_title"`
	Author        string `db:"author" json:"author"`
	BorrowerID    int64  `db:"person_id" json:"person_id"`
	FirstName     string `db:"first_name" json:"-"`
	LastName      string `db:"last_name" json:"-"`
	BorrowerName  string `db:"-" json:"borrower_name"`
	LoanDate      Date   `db:"loan_date" json:"loan_date"`
	DueDate       Date   `db:"due_date" json:"due_date"`
	DaysOverdue   int    `db:"-" json:"days_overdue"`
	Status        string `db:"-" json:"status"`
}

// OverdueLoan is an open transaction past its due date, with the contact
// fields needed to chase it.
type OverdueLoan struct {
	TransactionID int64   `db:"transaction_id" json:"transaction_id"`
	BookID        int64   `db:"book_id" json:"book_id"`
	BookTitle     string  `db:"book_title" json:"book_title"`
	BorrowerID    int64   `db:"person_id" json:"person_id"`
	FirstName     string  `db:"first_name" json:"-"`
	LastName      string  `db:"last_name" json:"-"`
	BorrowerName  string  `db:"-" json:"borrower_name"`
	Email         *string `db:"email" json:"email,omitempty"`
	Phone         *string `db:"phone_number" json:"phone_number,omitempty"`
	LoanDate      Date    `db:"loan_date" json:"loan_date"`
	DueDate       Date    `db:"due_date" json:"due_date"`
	DaysOverdue   int     `db:"-" json:"days_overdue"`
}

// HistoryEntry is one transaction in a book's or a borrower's history.
type HistoryEntry struct {
	TransactionID int64  `db:"transaction_id" json:"transaction_id"`
	BookID        int64  `db:"book_id" json:"book_id"`
	BookTitle     string `db:"book_title" json:"book_title,omitempty"`
	Author        string `db:"author" json:"author,omitempty"`
	BorrowerID    int64  `db:"person_id" json:"person_id"`
	FirstName     string `db:"first_name" json:"-"`
	LastName      string `db:"last_name" json:"-"`
	BorrowerName  string `db:"-" json:"borrower_name,omitempty"`
	LoanDate      Date   `db:"loan_date" json:"loan_date"`
	DueDate       Date   `db:"due_date" json:"due_date"`
	ReturnDate    *Date  `db:"actual_return_date" json:"actual_return_date"`
	Status        string `db:"-" json:"status"`
}

// BookLoanCount ranks books by how often they were lent.
type BookLoanCount struct {
	BookID            int64  `db:"book_id" json:"book_id"`
	Title             string `db:"title" json:"title"`
	Author            string `db:"author" json:"author"`
	TotalLoans        int64  `db:"total_loans" json:"total_loans"`
	CurrentlyBorrowed int64  `db:"currently_borrowed" json:"currently_borrowed"`
	LateReturns       int64  `db:"late_returns" json:"late_returns"`
}

// BorrowerLoanCount ranks borrowers by how often they borrowed.
type BorrowerLoanCount struct {
	BorrowerID        int64   `db:"person_id" json:"person_id"`
	FirstName         string  `db:"first_name" json:"-"`
	LastName          string  `db:"last_name" json:"-"`
	BorrowerName      string  `db:"-" json:"borrower_name"`
	Relationship      *string `db:"relationship_type" json:"relationship_type,omitempty"`
	TotalLoans        int64   `db:"total_loans" json:"total_loans"`
	CurrentlyBorrowed int64   `db:"currently_borrowed" json:"currently_borrowed"`
	LateReturns       int64   `db:"late_returns" json:"late_returns"`
}

func fullName(first, last string) string {
	return strings.TrimSpace(first + " " + last)
}
