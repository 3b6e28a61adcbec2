package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/term"

	"home-library/library"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	defaultWidth = 100
	minTitle     = 12
)

// printer renders command results either as fixed-width tables or as
// indented JSON.
type printer struct {
	w     io.Writer
	json  bool
	width int
}

func newPrinter(w io.Writer, jsonMode bool) *printer {
	return &printer{w: w, json: jsonMode, width: terminalWidth(w)}
}

// terminalWidth is the column count of w when it is a terminal.
func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return defaultWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return defaultWidth
	}
	return width
}

// titleWidth sizes the free-text column given the width taken by the rest.
func (p *printer) titleWidth(fixed int) int {
	return max(p.width-fixed, minTitle)
}

func (p *printer) printf(format string, args ...any) {
	fmt.Fprintf(p.w, format, args...)
}

func (p *printer) println(args ...any) {
	fmt.Fprintln(p.w, args...)
}

func (p *printer) rule(n int) {
	p.println(strings.Repeat("-", min(n, p.width)))
}

// emit writes v as JSON in JSON mode and otherwise calls text.
func (p *printer) emit(v any, text func()) error {
	if !p.json {
		text()
		return nil
	}
	data, err := jsonAPI.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	_, err = fmt.Fprintln(p.w, string(data))
	return err
}

func (p *printer) books(books []library.Book) error {
	return p.emit(books, func() {
		if len(books) == 0 {
			p.println("No books in library.")
			return
		}
		tw := p.titleWidth(5 + 1 + 25 + 1 + 10 + 1)
		p.printf("%-5s %-*s %-25s %-10s\n", "ID", tw, "Title", "Author", "Status")
		p.rule(tw + 43)
		for _, b := range books {
			p.printf("%-5d %-*s %-25s %-10s\n", b.ID, tw, truncateString(b.Title, tw), truncateString(b.Author, 25), b.Status)
		}
	})
}

// book prints a single book, followed by its loans when history is non-nil.
func (p *printer) book(b *library.Book, history []library.HistoryEntry) error {
	var v any = b
	if history != nil {
		v = library.BookDetails{Book: b, History: history}
	}
	return p.emit(v, func() {
		p.printf("Book %d: %s\n", b.ID, b.Title)
		if b.Author != "" {
			p.printf("  Author: %s\n", b.Author)
		}
		if b.ISBN != nil {
			p.printf("  ISBN:   %s\n", *b.ISBN)
		}
		if b.Cost != nil {
			p.printf("  Cost:   %.2f\n", *b.Cost)
		}
		p.printf("  Status: %s\n", b.Status)
		if history != nil {
			p.println()
			p.historyTable(history, false)
		}
	})
}

func (p *printer) borrowers(borrowers []library.Borrower) error {
	return p.emit(borrowers, func() {
		if len(borrowers) == 0 {
			p.println("No borrowers registered.")
			return
		}
		nw := p.titleWidth(5 + 1 + 30 + 1 + 15 + 1 + 8 + 1)
		p.printf("%-5s %-*s %-30s %-15s %-8s\n", "ID", nw, "Name", "Email", "Relationship", "Status")
		p.rule(nw + 61)
		for _, b := range borrowers {
			p.printf("%-5d %-*s %-30s %-15s %-8s\n", b.ID, nw, truncateString(b.Name(), nw),
				truncateString(deref(b.Email), 30), truncateString(deref(b.Relationship), 15), b.Status)
		}
	})
}

func (p *printer) borrower(b *library.Borrower) error {
	return p.emit(b, func() {
		p.printf("Borrower %d: %s\n", b.ID, b.Name())
		for _, f := range []struct {
			label string
			v     *string
		}{
			{"Email", b.Email},
			{"Phone", b.Phone},
			{"Relationship", b.Relationship},
			{"Address", b.Address},
		} {
			if f.v != nil && *f.v != "" {
				p.printf("  %-13s %s\n", f.label+":", *f.v)
			}
		}
		p.printf("  %-13s %s\n", "Status:", b.Status)
	})
}

func (p *printer) loan(l *library.LoanRecord) error {
	return p.emit(l, func() {
		p.printf("Book '%s' lent to %s (transaction %d)\n", l.BookTitle, l.BorrowerName, l.TransactionID)
		p.printf("Loan date %s, due %s\n", l.LoanDate, l.DueDate)
	})
}

func (p *printer) returned(r *library.ReturnRecord) error {
	return p.emit(r, func() {
		p.printf("Book '%s' returned by %s on %s\n", r.BookTitle, r.BorrowerName, r.ReturnDate)
		if r.IsLate {
			p.printf("Returned %d day(s) late (due %s)\n", r.DaysLate, r.DueDate)
			return
		}
		p.println("Returned on time. Book is now available.")
	})
}

func (p *printer) dashboard(s *library.DashboardStats) error {
	return p.emit(s, func() {
		p.printf("%-18s %d\n", "Active loans:", s.ActiveLoans)
		p.printf("%-18s %d\n", "Overdue loans:", s.OverdueLoans)
		p.printf("%-18s %d\n", "Available books:", s.AvailableBooks)
		p.printf("%-18s %d\n", "Borrowed books:", s.BorrowedBooks)
		p.printf("%-18s %d\n", "Total books:", s.TotalBooks)
		p.printf("%-18s %d\n", "Total borrowers:", s.TotalBorrowers)
	})
}

func (p *printer) activeLoans(loans []library.ActiveLoan) error {
	return p.emit(loans, func() {
		if len(loans) == 0 {
			p.println("No books are lent out.")
			return
		}
		tw := p.titleWidth(6 + 1 + 22 + 1 + 10 + 1 + 10 + 1 + 8 + 1)
		p.printf("%-6s %-*s %-22s %-10s %-10s %-8s\n", "Loan", tw, "Title", "Borrower", "Lent", "Due", "Status")
		p.rule(tw + 61)
		for _, l := range loans {
			p.printf("%-6d %-*s %-22s %-10s %-10s %-8s\n", l.TransactionID, tw, truncateString(l.BookTitle, tw),
				truncateString(l.BorrowerName, 22), l.LoanDate, l.DueDate, l.Status)
		}
	})
}

func (p *printer) overdueLoans(loans []library.OverdueLoan) error {
	return p.emit(loans, func() {
		if len(loans) == 0 {
			p.println("No overdue loans.")
			return
		}
		tw := p.titleWidth(6 + 1 + 22 + 1 + 10 + 1 + 5 + 1 + 28 + 1)
		p.printf("%-6s %-*s %-22s %-10s %-5s %-28s\n", "Loan", tw, "Title", "Borrower", "Due", "Days", "Contact")
		p.rule(tw + 76)
		for _, l := range loans {
			contact := deref(l.Email)
			if contact == "" {
				contact = deref(l.Phone)
			}
			p.printf("%-6d %-*s %-22s %-10s %-5d %-28s\n", l.TransactionID, tw, truncateString(l.BookTitle, tw),
				truncateString(l.BorrowerName, 22), l.DueDate, l.DaysOverdue, truncateString(contact, 28))
		}
	})
}

func (p *printer) history(entries []library.HistoryEntry, byBorrower bool) error {
	return p.emit(entries, func() { p.historyTable(entries, byBorrower) })
}

// historyTable shows the counterpart of the entity whose history it is: the
// borrower for a book and the book for a borrower.
func (p *printer) historyTable(entries []library.HistoryEntry, byBorrower bool) {
	if len(entries) == 0 {
		p.println("No loans recorded.")
		return
	}
	head := "Borrower"
	if byBorrower {
		head = "Title"
	}
	tw := p.titleWidth(6 + 1 + 10 + 1 + 10 + 1 + 10 + 1 + 16 + 1)
	p.printf("%-6s %-*s %-10s %-10s %-10s %-16s\n", "Loan", tw, head, "Lent", "Due", "Returned", "Status")
	p.rule(tw + 55)
	for _, e := range entries {
		who := e.BorrowerName
		if byBorrower {
			who = e.BookTitle
		}
		returned := "-"
		if e.ReturnDate != nil {
			returned = e.ReturnDate.String()
		}
		p.printf("%-6d %-*s %-10s %-10s %-10s %-16s\n", e.TransactionID, tw, truncateString(who, tw),
			e.LoanDate, e.DueDate, returned, e.Status)
	}
}

func (p *printer) topBooks(rows []library.BookLoanCount) error {
	return p.emit(rows, func() {
		if len(rows) == 0 {
			p.println("No books in library.")
			return
		}
		tw := p.titleWidth(5 + 1 + 22 + 1 + 6 + 1 + 4 + 1 + 4 + 1)
		p.printf("%-5s %-*s %-22s %-6s %-4s %-4s\n", "ID", tw, "Title", "Author", "Loans", "Out", "Late")
		p.rule(tw + 45)
		for _, r := range rows {
			p.printf("%-5d %-*s %-22s %-6d %-4d %-4d\n", r.BookID, tw, truncateString(r.Title, tw),
				truncateString(r.Author, 22), r.TotalLoans, r.CurrentlyBorrowed, r.LateReturns)
		}
	})
}

func (p *printer) topBorrowers(rows []library.BorrowerLoanCount) error {
	return p.emit(rows, func() {
		if len(rows) == 0 {
			p.println("No borrowers registered.")
			return
		}
		nw := p.titleWidth(5 + 1 + 15 + 1 + 6 + 1 + 4 + 1 + 4 + 1)
		p.printf("%-5s %-*s %-15s %-6s %-4s %-4s\n", "ID", nw, "Name", "Relationship", "Loans", "Out", "Late")
		p.rule(nw + 38)
		for _, r := range rows {
			p.printf("%-5d %-*s %-15s %-6d %-4d %-4d\n", r.BorrowerID, nw, truncateString(r.BorrowerName, nw),
				truncateString(deref(r.Relationship), 15), r.TotalLoans, r.CurrentlyBorrowed, r.LateReturns)
		}
	})
}

// truncateString shortens s to at most maxLength runes, marking the cut with
// an ellipsis.
func truncateString(s string, maxLength int) string {
	r := []rune(s)
	if len(r) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return string(r[:maxLength])
	}
	return string(r[:maxLength-3]) + "..."
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
