package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"home-library/internal/config"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config.yaml and create the database schema",
		Long: "Writes config.yaml to the configuration directory unless one exists, then\n" +
			"opens the configured store so its schema is created or upgraded.",
		Args: exactArgs(0, "no arguments"),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, created, err := config.WriteDefault(a.configDir, *a.cfg)
			if err != nil {
				return err
			}
			if _, err := a.manager(cmd.Context()); err != nil {
				return err
			}
			dsn, _ := a.cfg.ResolveDSN()
			if created {
				a.out.printf("Wrote %s\n", path)
			} else {
				a.out.printf("Using existing %s\n", path)
			}
			if !a.cfg.IsPostgres() {
				a.out.printf("Library database ready at %s\n", dsn)
			} else {
				a.out.printf("Library schema ready (%s)\n", a.cfg.Database.Driver)
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  exactArgs(0, "no arguments"),
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "library %s (%s/%s)\n", Version, runtime.GOOS, runtime.GOARCH)
		},
	}
}
