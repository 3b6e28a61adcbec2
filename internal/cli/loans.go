package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"home-library/library"
)

func newLoanCmd(a *app) *cobra.Command {
	cmd := newGroupCmd("loan", "Lend books and record their return", "loans")
	cmd.AddCommand(
		newLoanCreateCmd(a),
		newLoanReturnCmd(a),
		newLoanReturnBookCmd(a),
		newLoanShowCmd(a),
	)
	return cmd
}

func newLoanCreateCmd(a *app) *cobra.Command {
	var req library.LoanRequest
	cmd := &cobra.Command{
		Use:     "create <book-id> <borrower-id>",
		Aliases: []string{"lend", "checkout"},
		Short:   "Lend an AVAILABLE book to a borrower",
		Args:    exactArgs(2, "a book ID and a borrower ID"),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if req.BookID, err = parseID("book", args[0]); err != nil {
				return err
			}
			if req.BorrowerID, err = parseID("borrower", args[1]); err != nil {
				return err
			}
			mgr, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			loan, err := mgr.CreateLoan(cmd.Context(), req)
			if err != nil {
				return err
			}
			return a.out.loan(loan)
		},
	}
	dateFlag(cmd.Flags(), &req.LoanDate, "loan-date", "date the book left the shelf")
	dateFlag(cmd.Flags(), &req.DueDate, "due-date", "date the book is due back")
	cmd.Flags().IntVar(&req.PeriodDays, "days", 0, "loan period in days when --due-date is not given")
	return cmd
}

func newLoanReturnCmd(a *app) *cobra.Command {
	var on library.Date
	cmd := &cobra.Command{
		Use:   "return <transaction-id>",
		Short: "Record the return of a loan by its transaction ID",
		Args:  exactArgs(1, "a transaction ID"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("transaction", args[0])
			if err != nil {
				return err
			}
			mgr, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			rec, err := mgr.ProcessReturn(cmd.Context(), id, on)
			if err != nil {
				return err
			}
			return a.out.returned(rec)
		},
	}
	dateFlag(cmd.Flags(), &on, "date", "return date")
	return cmd
}

func newLoanReturnBookCmd(a *app) *cobra.Command {
	var (
		req    library.ReturnByBookRequest
		bookID int64
	)
	cmd := &cobra.Command{
		Use:   "return-book",
		Short: "Record the return of a book by ID or title",
		Long: "Finds the open loan of the book and closes it. A title matches any book\n" +
			"whose title contains it, ignoring case; the most recent loan wins.",
		Example: "  library loan return-book --book-id 7\n" +
			"  library loan return-book --title \"left hand\" --date 2024-03-01",
		Args: exactArgs(0, "--book-id or --title"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if bookID < 0 {
				return usageErrorf("invalid book ID: %d", bookID)
			}
			req.BookID = bookID
			req.BookTitle = strings.TrimSpace(req.BookTitle)
			mgr, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			rec, err := mgr.ProcessReturnByBook(cmd.Context(), req)
			if err != nil {
				return err
			}
			return a.out.returned(rec)
		},
	}
	cmd.Flags().Int64Var(&bookID, "book-id", 0, "book ID")
	cmd.Flags().StringVar(&req.BookTitle, "title", "", "title fragment")
	dateFlag(cmd.Flags(), &req.ReturnDate, "date", "return date")
	return cmd
}

func newLoanShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <transaction-id>",
		Short: "Show a single loan",
		Args:  exactArgs(1, "a transaction ID"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("transaction", args[0])
			if err != nil {
				return err
			}
			mgr, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			t, err := mgr.GetTransaction(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.out.emit(t, func() {
				a.out.printf("Transaction %d: book %d lent to borrower %d\n", t.ID, t.BookID, t.BorrowerID)
				a.out.printf("  Lent:     %s\n  Due:      %s\n", t.LoanDate, t.DueDate)
				if t.Open() {
					a.out.println("  Returned: not yet")
					return
				}
				a.out.printf("  Returned: %s\n", t.ReturnDate)
			})
		},
	}
}
