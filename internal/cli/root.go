// Package cli implements the library command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"home-library/internal/config"
	"home-library/library"
)

// Version is overridden at build time with -ldflags "-X".
var Version = "dev"

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values. Each command tree gets its own copy so
// the shell can rebuild the tree per line without clobbering them.
type rootFlags struct {
	configDir string
	driver    string
	dsn       string
	jsonMode  bool
	logLevel  string
}

// app is the state shared by every command of one process: the resolved
// configuration and the lazily opened store.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	configDir string
	cfg       *config.Config
	logger    *slog.Logger
	mgr       *library.LibraryManager
	out       *printer

	// inShell is set while the interactive shell owns the store.
	inShell bool
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *app {
	return &app{stdin: stdin, stdout: stdout, stderr: stderr}
}

// NewRootCmd creates the top-level "library" command with every subcommand
// registered.
func NewRootCmd() *cobra.Command {
	return newRootCmd(newApp(os.Stdin, os.Stdout, os.Stderr))
}

func newRootCmd(a *app) *cobra.Command {
	var flags rootFlags
	root := &cobra.Command{
		Use:   "library",
		Short: "Track which books of a home library are lent out, to whom, and since when",
		Long: "library keeps a catalogue of books and borrowers and records every loan.\n" +
			"A book is either on the shelf or lent to exactly one person.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE:          groupRunE,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.configure(cmd, flags)
		},
	}
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configDir, "config-dir", "", "configuration directory (default: $XDG_CONFIG_HOME/library)")
	pf.StringVar(&flags.driver, "driver", "", "database driver: sqlite3, sqlite, pgx or postgres")
	pf.StringVar(&flags.dsn, "dsn", "", "database file or connection URL")
	pf.BoolVar(&flags.jsonMode, "json", false, "output in JSON format")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn or error")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(a),
		newBookCmd(a),
		newBorrowerCmd(a),
		newLoanCmd(a),
		newReportCmd(a),
		newShellCmd(a),
	)
	return root
}

// Execute runs the CLI with os.Args and returns the process exit code.
func Execute() int {
	return run(newApp(os.Stdin, os.Stdout, os.Stderr), os.Args[1:])
}

func run(a *app, args []string) int {
	defer a.close()

	root := newRootCmd(a)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	if err == nil {
		return exitSuccess
	}
	a.reportError(err)
	return exitCode(err)
}

// configure loads configuration once per process and applies flag overrides.
func (a *app) configure(cmd *cobra.Command, flags rootFlags) error {
	a.out = newPrinter(a.stdout, flags.jsonMode)
	if a.cfg != nil {
		return nil
	}

	dir, err := config.ResolveDir(flags.configDir)
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}
	if flags.driver != "" {
		cfg.Database.Driver = flags.driver
	}
	if flags.dsn != "" {
		cfg.Database.DSN = flags.dsn
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, err := config.NewLogger(cfg.Log, a.stderr)
	if err != nil {
		return err
	}

	a.configDir = dir
	a.cfg = cfg
	a.logger = logger
	return nil
}

// manager opens the store on first use.
func (a *app) manager(ctx context.Context) (*library.LibraryManager, error) {
	if a.mgr != nil {
		return a.mgr, nil
	}
	dsn, err := a.cfg.ResolveDSN()
	if err != nil {
		return nil, err
	}
	mgr, err := library.OpenLibraryManager(ctx, a.cfg.Database.Driver, dsn, a.cfg.LibraryOptions(a.logger)...)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", a.cfg.Database.Driver, err)
	}
	a.mgr = mgr
	return mgr, nil
}

func (a *app) close() {
	if a.mgr == nil {
		return
	}
	if err := a.mgr.Close(); err != nil && a.logger != nil {
		a.logger.Warn("close store", "error", err)
	}
	a.mgr = nil
}

func (a *app) reportError(err error) {
	fmt.Fprintln(a.stderr, "Error:", describeError(err))
	var ue usageError
	if errors.As(err, &ue) {
		fmt.Fprintln(a.stderr, "Run 'library --help' for usage.")
	}
}

// groupRunE backs commands that only group subcommands: no args prints help,
// anything else is an unknown subcommand.
func groupRunE(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return usageErrorf("unknown command %q for %q", args[0], cmd.CommandPath())
	}
	return cmd.Help()
}

func newGroupCmd(use, short string, aliases ...string) *cobra.Command {
	return &cobra.Command{
		Use:     use,
		Short:   short,
		Aliases: aliases,
		Args:    cobra.ArbitraryArgs,
		RunE:    groupRunE,
	}
}

// changed reports whether a flag was set on the command line, so that
// updates can tell an explicitly empty value apart from an absent flag.
func changed(fs *pflag.FlagSet, name string) bool {
	f := fs.Lookup(name)
	return f != nil && f.Changed
}
