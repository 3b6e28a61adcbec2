package cli

import (
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"home-library/library"
)

// dateValue is a pflag.Value accepting YYYY-MM-DD.
type dateValue struct{ d *library.Date }

var _ pflag.Value = dateValue{}

func dateFlag(fs *pflag.FlagSet, p *library.Date, name, usage string) {
	fs.Var(dateValue{p}, name, usage+" (YYYY-MM-DD, default today)")
}

func (v dateValue) String() string {
	if v.d == nil || v.d.IsZero() {
		return ""
	}
	return v.d.String()
}

func (v dateValue) Set(s string) error {
	d, err := library.ParseDate(s)
	if err != nil {
		return err
	}
	*v.d = d
	return nil
}

func (dateValue) Type() string { return "date" }

// parseID parses a positive row id from a positional argument.
func parseID(what, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, usageErrorf("invalid %s ID: %s", what, s)
	}
	return id, nil
}

// exactArgs is cobra.ExactArgs reporting a usage error.
func exactArgs(n int, names string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return usageErrorf("%s expects %s", cmd.CommandPath(), names)
		}
		return nil
	}
}
