package cli

import (
	"github.com/spf13/cobra"
)

func newReportCmd(a *app) *cobra.Command {
	cmd := newGroupCmd("report", "Read-only summaries of the library", "reports")
	cmd.AddCommand(
		newDashboardCmd(a),
		newActiveCmd(a),
		newOverdueCmd(a),
		newHistoryCmd(a),
		newTopBooksCmd(a),
		newTopBorrowersCmd(a),
	)
	return cmd
}

func newDashboardCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "dashboard",
		Aliases: []string{"stats"},
		Short:   "Headline counts: loans, overdue loans, books, borrowers",
		Args:    exactArgs(0, "no arguments"),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			s, err := mgr.Dashboard(cmd.Context())
			if err != nil {
				return err
			}
			return a.out.dashboard(s)
		},
	}
}

func newActiveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "active",
		Short: "Books currently lent out, earliest due first",
		Args:  exactArgs(0, "no arguments"),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			loans, err := mgr.ActiveLoans(cmd.Context())
			if err != nil {
				return err
			}
			return a.out.activeLoans(loans)
		},
	}
}

func newOverdueCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "overdue",
		Short: "Open loans past their due date, with contact details",
		Args:  exactArgs(0, "no arguments"),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			loans, err := mgr.OverdueLoans(cmd.Context())
			if err != nil {
				return err
			}
			return a.out.overdueLoans(loans)
		},
	}
}

func newHistoryCmd(a *app) *cobra.Command {
	var bookID, borrowerID int64
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Every loan of a book or of a borrower, newest first",
		Args:  exactArgs(0, "--book or --borrower"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (bookID > 0) == (borrowerID > 0) {
				return usageErrorf("give exactly one of --book or --borrower")
			}
			mgr, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			if bookID > 0 {
				entries, err := mgr.BookHistory(cmd.Context(), bookID)
				if err != nil {
					return err
				}
				return a.out.history(entries, false)
			}
			entries, err := mgr.BorrowerHistory(cmd.Context(), borrowerID)
			if err != nil {
				return err
			}
			return a.out.history(entries, true)
		},
	}
	cmd.Flags().Int64Var(&bookID, "book", 0, "book ID")
	cmd.Flags().Int64Var(&borrowerID, "borrower", 0, "borrower ID")
	return cmd
}

func newTopBooksCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "top-books",
		Short: "Books ranked by number of loans",
		Args:  exactArgs(0, "no arguments"),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			rows, err := mgr.MostBorrowedBooks(cmd.Context(), a.reportLimit(limit))
			if err != nil {
				return err
			}
			return a.out.topBooks(rows)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "number of rows (default reports.limit)")
	return cmd
}

func newTopBorrowersCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "top-borrowers",
		Short: "Borrowers ranked by number of loans",
		Args:  exactArgs(0, "no arguments"),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			rows, err := mgr.MostActiveBorrowers(cmd.Context(), a.reportLimit(limit))
			if err != nil {
				return err
			}
			return a.out.topBorrowers(rows)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "number of rows (default reports.limit)")
	return cmd
}

func (a *app) reportLimit(flag int) int {
	if flag > 0 {
		return flag
	}
	return a.cfg.Reports.Limit
}
