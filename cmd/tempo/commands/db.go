package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/tempo/db"
	"github.com/teranos/tempo/errors"
	"github.com/teranos/tempo/logger"
	"github.com/teranos/tempo/pulse/jobs"
	"github.com/teranos/tempo/sym"
)

func newDbCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: sym.DB + " Manage the job database",
		Long: sym.DB + ` db - manage the job database

Examples:
  tempo db migrate     # Create or upgrade the jobs table
  tempo db stats       # Row counts per status`,
	}
	cmd.AddCommand(newDbMigrateCmd(), newDbStatsCmd())
	return cmd
}

func newDbMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return errors.Wrap(err, "failed to load config")
			}
			dialect, dsn, err := cfg.DataSource()
			if err != nil {
				return err
			}
			conn, err := db.Open(dialect, dsn, logger.Logger)
			if err != nil {
				return errors.Wrapf(err, "failed to open %s database", dialect)
			}
			defer conn.Close()

			if err := db.Migrate(conn, dialect, logger.Logger); err != nil {
				return err
			}
			pterm.Success.Printfln("%s %s schema is up to date", sym.DB, dialect)
			return nil
		},
	}
}

func newDbStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show row counts per status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			counts := make(map[jobs.Status]int)
			rows, err := a.store.ListByStatus(cmd.Context(), "", 0)
			if err != nil {
				return err
			}
			for _, j := range rows {
				counts[j.Status]++
			}

			dialect, source, _ := a.cfg.DataSource()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s Database: %s (%s)\n", sym.DB, redactDSN(dialect, source), dialect)
			for _, st := range []jobs.Status{jobs.StatusTodo, jobs.StatusWorking, jobs.StatusDone, jobs.StatusFail} {
				fmt.Fprintf(out, "  %s %-8s %d\n", statusGlyph(st), st, counts[st])
			}
			fmt.Fprintf(out, "  total      %d\n", len(rows))
			return nil
		},
	}
}

func redactDSN(dialect db.Dialect, source string) string {
	if dialect == db.Postgres {
		return "postgres DSN (redacted)"
	}
	return source
}
