// Package commands implements the tempo command line.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/teranos/tempo/am"
	"github.com/teranos/tempo/errors"
	"github.com/teranos/tempo/logger"
	"github.com/teranos/tempo/sym"
)

var (
	configPath string
	jsonLogs   bool
)

// Root builds the tempo command tree.
func Root() *cobra.Command {
	root := &cobra.Command{
		Use:   "tempo",
		Short: sym.Pulse + " tempo - durable crontab-driven job scheduler",
		Long: sym.Pulse + ` tempo - durable crontab-driven job scheduler

Jobs live in a database table. Recurring activities are reconciled from
their cron expressions, ad-hoc jobs are queued with parameters, and every
pass drains whatever is due.

Invoke "tempo run" from an external timer, or keep "tempo loop" running.

Examples:
  tempo run                        # One pass, then exit
  tempo loop -v                    # Pass every loop interval until Ctrl+C
  tempo jobs ls --status fail      # Today's failed jobs
  tempo jobs submit export customer=acme limit=5
  tempo activities                 # Registered activities and next runs
  tempo am show --sources          # Effective configuration and origins`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			verbosity, _ := cmd.Flags().GetCount("verbose")
			if verbosity == 0 && standing(cmd) {
				verbosity = logger.VerbosityInfo
			}
			if err := logger.Initialize(jsonLogs, verbosity); err != nil {
				return errors.Wrap(err, "failed to initialize logger")
			}
			return nil
		},
	}

	root.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (-v info, -vv debug)")
	root.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Write logs as JSON")
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Read only this config file (skips the config cascade)")

	root.AddCommand(
		newRunCmd(),
		newLoopCmd(),
		newJobsCmd(),
		newActivitiesCmd(),
		newDbCmd(),
		newServeCmd(),
		newAmCmd(),
		newVersionCmd(),
	)
	return root
}

// standing reports whether cmd keeps running, so it logs at info by default.
func standing(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "loop", "serve":
		return true
	}
	return false
}

// loadConfig returns the --config file, or the full cascade when unset.
func loadConfig() (*am.Config, error) {
	if configPath != "" {
		return am.LoadFromFile(configPath)
	}
	return am.Load()
}
