package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/tempo/am"
	"github.com/teranos/tempo/errors"
	"github.com/teranos/tempo/sym"
)

// secretKeys are masked in introspection output unless --reveal is given.
var secretKeys = map[string]bool{
	"database.dsn":      true,
	"alarm.webhook_url": true,
}

func newAmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "am",
		Short: sym.AM + " Show and check tempo configuration",
		Long: sym.AM + ` am - show and check tempo configuration

Configuration sources (later overrides earlier):
  1. Built-in defaults
  2. /etc/tempo/tempo.toml
  3. ~/.tempo/tempo.toml
  4. ./tempo.toml (searched upward from the working directory)
  5. .env next to the project file (TEMPO_* names)
  6. TEMPO_* environment variables

Examples:
  tempo am show                   # Effective configuration as TOML
  tempo am show --format json
  tempo am show --sources         # Where each setting comes from
  tempo am get scheduler.timezone
  tempo am validate`,
	}
	cmd.AddCommand(newAmShowCmd(), newAmGetCmd(), newAmValidateCmd())
	return cmd
}

func newAmShowCmd() *cobra.Command {
	var format string
	var sources, reveal bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if sources {
				return showSources(reveal)
			}
			cfg, err := loadConfig()
			if err != nil {
				return errors.Wrap(err, "failed to load config")
			}
			if !reveal {
				cfg = cfg.Redacted()
			}
			out, err := am.Render(cfg, format)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().StringVar(&format, "format", am.FormatTOML, "Output format: toml, json, yaml")
	cmd.Flags().BoolVar(&sources, "sources", false, "List every setting with the layer it came from")
	cmd.Flags().BoolVar(&reveal, "reveal", false, "Show secrets instead of masking them")
	return cmd
}

func showSources(reveal bool) error {
	if configPath != "" {
		return errors.NewInvalidRequestError("--sources describes the config cascade and cannot be combined with --config")
	}
	l, err := am.GetLoader()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	intro := l.Introspect()

	if len(intro.Files) == 0 {
		pterm.Info.Println("No config files found, using defaults and environment")
	}
	for _, f := range intro.Files {
		pterm.Info.Printfln("file: %s", f)
	}
	if intro.DotEnv != "" {
		pterm.Info.Printfln("dotenv: %s", intro.DotEnv)
	}

	data := pterm.TableData{{"KEY", "VALUE", "SOURCE", "FROM"}}
	for _, s := range intro.Settings {
		value := fmt.Sprint(s.Value)
		if secretKeys[s.Key] && !reveal && value != "" {
			value = "<redacted>"
		}
		data = append(data, []string{s.Key, value, string(s.Source), s.SourcePath})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func newAmGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print one configuration value (dot notation)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				return errors.NewInvalidRequestError("get reads the config cascade and cannot be combined with --config")
			}
			value, err := am.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}
}

func newAmValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration without opening the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return errors.Wrap(err, "failed to load config")
			}
			if err := cfg.Validate(); err != nil {
				return errors.Wrap(err, "configuration validation failed")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Configuration is valid (%d commands)\n", sym.AM, len(cfg.Commands))
			return nil
		},
	}
}
