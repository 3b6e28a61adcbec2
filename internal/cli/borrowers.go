package cli

import (
	"github.com/spf13/cobra"

	"home-library/library"
)

func newBorrowerCmd(a *app) *cobra.Command {
	cmd := newGroupCmd("borrower", "Register the people books are lent to", "borrowers", "person")
	cmd.AddCommand(
		newBorrowerAddCmd(a),
		newBorrowerListCmd(a),
		newBorrowerShowCmd(a),
		newBorrowerUpdateCmd(a),
		newBorrowerStatusCmd(a),
		newBorrowerDeleteCmd(a),
	)
	return cmd
}

// contactFlags are the optional borrower fields shared by add and update.
type contactFlags struct {
	first, last, email, phone, relationship, address string
}

func (c *contactFlags) register(cmd *cobra.Command, withNames bool) {
	fs := cmd.Flags()
	if withNames {
		fs.StringVar(&c.first, "first", "", "first name")
		fs.StringVar(&c.last, "last", "", "last name")
	}
	fs.StringVar(&c.email, "email", "", "email address")
	fs.StringVar(&c.phone, "phone", "", "phone number")
	fs.StringVar(&c.relationship, "relationship", "", "how you know them (friend, family, ...)")
	fs.StringVar(&c.address, "address", "", "postal address")
}

// pick returns &v when the flag was given.
func pick(cmd *cobra.Command, name string, v *string) *string {
	if changed(cmd.Flags(), name) {
		return v
	}
	return nil
}

func newBorrowerAddCmd(a *app) *cobra.Command {
	var c contactFlags
	cmd := &cobra.Command{
		Use:   "add <first-name> [last-name]",
		Short: "Register a borrower",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 || len(args) > 2 {
				return usageErrorf("%s expects a first name and an optional last name", cmd.CommandPath())
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			nb := library.NewBorrower{
				FirstName:    args[0],
				Email:        pick(cmd, "email", &c.email),
				Phone:        pick(cmd, "phone", &c.phone),
				Relationship: pick(cmd, "relationship", &c.relationship),
				Address:      pick(cmd, "address", &c.address),
			}
			if len(args) == 2 {
				nb.LastName = args[1]
			}
			mgr, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			b, err := mgr.CreateBorrower(cmd.Context(), nb)
			if err != nil {
				return err
			}
			if !a.out.json {
				a.out.printf("Added borrower '%s' with ID %d\n", b.Name(), b.ID)
				return nil
			}
			return a.out.borrower(b)
		},
	}
	c.register(cmd, false)
	return cmd
}

func newBorrowerListCmd(a *app) *cobra.Command {
	var (
		f      library.BorrowerFilter
		status string
	)
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List borrowers by last name",
		Args:    exactArgs(0, "no arguments"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if status != "" {
				st, err := library.ParseBorrowerStatus(status)
				if err != nil {
					return err
				}
				f.Status = st
			}
			mgr, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			borrowers, err := mgr.ListBorrowers(cmd.Context(), f)
			if err != nil {
				return err
			}
			return a.out.borrowers(borrowers)
		},
	}
	cmd.Flags().StringVar(&f.FirstName, "first", "", "first name starts with (case-insensitive)")
	cmd.Flags().StringVar(&f.LastName, "last", "", "exact last name")
	cmd.Flags().StringVar(&status, "status", "", "ACTIVE or INACTIVE")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "maximum rows (default 100)")
	return cmd
}

func newBorrowerShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <borrower-id>",
		Short: "Show a borrower's contact details",
		Args:  exactArgs(1, "a borrower ID"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("borrower", args[0])
			if err != nil {
				return err
			}
			mgr, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			b, err := mgr.GetBorrower(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.out.borrower(b)
		},
	}
}

func newBorrowerUpdateCmd(a *app) *cobra.Command {
	var c contactFlags
	cmd := &cobra.Command{
		Use:   "update <borrower-id>",
		Short: "Change a borrower's name or contact details",
		Args:  exactArgs(1, "a borrower ID"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("borrower", args[0])
			if err != nil {
				return err
			}
			u := library.BorrowerUpdate{
				FirstName:    pick(cmd, "first", &c.first),
				LastName:     pick(cmd, "last", &c.last),
				Email:        pick(cmd, "email", &c.email),
				Phone:        pick(cmd, "phone", &c.phone),
				Relationship: pick(cmd, "relationship", &c.relationship),
				Address:      pick(cmd, "address", &c.address),
			}
			mgr, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			b, err := mgr.UpdateBorrowerContact(cmd.Context(), id, u)
			if err != nil {
				return err
			}
			return a.out.borrower(b)
		},
	}
	c.register(cmd, true)
	return cmd
}

func newBorrowerStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status <borrower-id> <ACTIVE|INACTIVE>",
		Short: "Mark a borrower active or inactive",
		Args:  exactArgs(2, "a borrower ID and a status"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("borrower", args[0])
			if err != nil {
				return err
			}
			status, err := library.ParseBorrowerStatus(args[1])
			if err != nil {
				return err
			}
			mgr, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			b, err := mgr.SetBorrowerStatus(cmd.Context(), id, status)
			if err != nil {
				return err
			}
			return a.out.borrower(b)
		},
	}
}

func newBorrowerDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <borrower-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a borrower who never borrowed anything",
		Args:    exactArgs(1, "a borrower ID"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("borrower", args[0])
			if err != nil {
				return err
			}
			mgr, err := a.manager(cmd.Context())
			if err != nil {
				return err
			}
			if err := mgr.DeleteBorrower(cmd.Context(), id); err != nil {
				return err
			}
			return a.out.emit(map[string]any{"person_id": id, "deleted": true}, func() {
				a.out.printf("Borrower %d deleted.\n", id)
			})
		},
	}
}
