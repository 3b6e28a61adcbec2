package cli

import (
	"github.com/spf13/cobra"

	"home-library/library"
)

func newBookCmd(a *app) *cobra.Command {
	cmd := newGroupCmd("book", "Catalogue books and change their status", "books")
	cmd.AddCommand(
		newBookAddCmd(a),
		newBookListCmd(a),
		newBookShowCmd(a),
		newBookUpdateCmd(a),
		newBookStatusCmd(a),
		newBookRemoveCmd(a),
	)
	return cmd
}

func newBookAddCmd(a *app) *cobra.Command {
	var (
		author, isbn string
		cost         float64
	)
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Catalogue a new book as AVAILABLE",
		Args:  exactArgs(1, "a title"),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			nb := library.NewBook{Title: args[0], Author: author}
			if changed(cmd.Flags(), "isbn") {
				nb.ISBN = &isbn
			}
			if changed(cmd.Flags(), "cost") {
				nb.Cost = &cost
			}
			book, err := mgr.CreateBook(cmd.Context(), nb)
			if err != nil {
				return err
			}
			if !a.out.json {
				a.out.printf("Added book ID %d.\n", book.ID)
				return nil
			}
			return a.out.book(book, nil)
		},
	}
	cmd.Flags().StringVar(&author, "author", "", "author name")
	cmd.Flags().StringVar(&isbn, "isbn", "", "ISBN")
	cmd.Flags().Float64Var(&cost, "cost", 0, "purchase price")
	return cmd
}

func newBookListCmd(a *app) *cobra.Command {
	var (
		f      library.BookFilter
		status string
	)
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List books, optionally filtered by title, author or status",
		Args:    exactArgs(0, "no arguments"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if status != "" {
				st, err := library.ParseBookStatus(status)
				if err != nil {
					return err
				}
				f.Status = st
			}
			mgr, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			books, err := mgr.ListBooks(cmd.Context(), f)
			if err != nil {
				return err
			}
			return a.out.books(books)
		},
	}
	cmd.Flags().StringVar(&f.Title, "title", "", "title contains (case-insensitive)")
	cmd.Flags().StringVar(&f.Author, "author", "", "author contains (case-insensitive)")
	cmd.Flags().StringVar(&status, "status", "", "AVAILABLE, BORROWED, LOST, DAMAGED or REMOVED")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "maximum rows (default 100)")
	return cmd
}

func newBookShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <book-id>",
		Short: "Show a book and every loan of it",
		Args:  exactArgs(1, "a book ID"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("book", args[0])
			if err != nil {
				return err
			}
			mgr, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			details, err := mgr.BookWithHistory(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.out.book(details.Book, details.History)
		},
	}
}

func newBookUpdateCmd(a *app) *cobra.Command {
	var (
		title, author, isbn string
		cost                float64
	)
	cmd := &cobra.Command{
		Use:   "update <book-id>",
		Short: "Change title, author, ISBN or cost",
		Args:  exactArgs(1, "a book ID"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("book", args[0])
			if err != nil {
				return err
			}
			var u library.BookUpdate
			fs := cmd.Flags()
			if changed(fs, "title") {
				u.Title = &title
			}
			if changed(fs, "author") {
				u.Author = &author
			}
			if changed(fs, "isbn") {
				u.ISBN = &isbn
			}
			if changed(fs, "cost") {
				u.Cost = &cost
			}
			mgr, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			book, err := mgr.UpdateBook(cmd.Context(), id, u)
			if err != nil {
				return err
			}
			return a.out.book(book, nil)
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&author, "author", "", "new author")
	cmd.Flags().StringVar(&isbn, "isbn", "", "new ISBN")
	cmd.Flags().Float64Var(&cost, "cost", 0, "new purchase price")
	return cmd
}

func newBookStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status <book-id> <status>",
		Short: "Mark a book AVAILABLE, LOST, DAMAGED or REMOVED",
		Long: "Administrative status change. BORROWED is only set by lending, and a\n" +
			"borrowed book must be returned before its status can change.",
		Args: exactArgs(2, "a book ID and a status"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("book", args[0])
			if err != nil {
				return err
			}
			status, err := library.ParseBookStatus(args[1])
			if err != nil {
				return err
			}
			mgr, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			book, err := mgr.SetBookStatus(cmd.Context(), id, status)
			if err != nil {
				return err
			}
			if !a.out.json {
				a.out.printf("Book '%s' is now %s.\n", book.Title, book.Status)
				return nil
			}
			return a.out.book(book, nil)
		},
	}
}

func newBookRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <book-id>",
		Aliases: []string{"rm"},
		Short:   "Retire a book from the catalogue, keeping its loan history",
		Args:    exactArgs(1, "a book ID"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("book", args[0])
			if err != nil {
				return err
			}
			mgr, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			if err := mgr.RemoveBook(cmd.Context(), id); err != nil {
				return err
			}
			return a.out.emit(map[string]any{"book_id": id, "status": library.StatusRemoved}, func() {
				a.out.printf("Book %d removed.\n", id)
			})
		},
	}
}
