package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nishad/isakit/internal/cli"
	"github.com/nishad/isakit/internal/config"
	isaerr "github.com/nishad/isakit/internal/errors"
	"github.com/nishad/isakit/internal/service"
)

// Version info
var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

// Global flags
var (
	configPath string
	noColor    bool
	quiet      bool
	verbose    bool
	debug      bool
)

// Output streams, bound to the running command before each subcommand.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// env is filled in by the root command before a subcommand runs.
var env = &cli.Env{}

func newRootCmd() *cobra.Command {
	configPath, noColor, quiet, verbose, debug = "", false, false, false, false
	env = &cli.Env{}

	root := &cobra.Command{
		Use:   "isakit",
		Short: "ISA-Tab and ISA-JSON converter",
		Long: `isakit converts experimental metadata between the tabular ISA-Tab format
and the ISA-JSON document format.

Besides the two conversions it validates documents against the ISA-JSON
schema, keeps a searchable catalog of converted investigations, serves that
catalog over HTTP and drives the ENA stylesheets that turn SRA accessions
into ISA-Tab bundles.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Example: `  # Convert a bundle to a document and back
  isakit tab-to-json ./BII-I-1 bii.json
  isakit json-to-tab bii.json ./BII-I-1-copy

  # Validate a document
  isakit validate bii.json

  # Catalog and search
  isakit catalog add ./BII-I-1
  isakit catalog search "organism:\"Homo sapiens\""`,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
		Args:              unknownCommand,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file (default: ISAKIT_CONFIG or ~/.config/isakit/config.yaml)")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log progress to stderr")
	root.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-error output")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	root.AddCommand(newTabToJSONCmd())
	root.AddCommand(newJSONToTabCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newCheckCmd())
	root.AddCommand(newCatalogCmd())
	root.AddCommand(newServerCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(cli.NewSRACmd(env))
	root.AddCommand(cli.NewBiocratesCmd(env))

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return isaerr.E(isaerr.Op(cmd.CommandPath()), isaerr.KindUsage, err)
	})
	usageErrors(root)
	return root
}

// unknownCommand rejects positional arguments given to the root command,
// which only happens when no subcommand matched.
func unknownCommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return nil
	}
	msg := fmt.Sprintf("unknown command %q for %q", args[0], cmd.CommandPath())
	if suggestions := cmd.SuggestionsFor(args[0]); len(suggestions) > 0 {
		msg += fmt.Sprintf("; did you mean %q?", suggestions[0])
	}
	return isaerr.Errorf(isaerr.Op(cmd.CommandPath()), isaerr.KindUsage, isaerr.Pos{}, "%s", msg)
}

// usageErrors marks argument-count failures of every command as usage
// errors so they exit with the same status as bad input.
func usageErrors(cmd *cobra.Command) {
	if validate := cmd.Args; validate != nil {
		cmd.Args = func(c *cobra.Command, args []string) error {
			err := validate(c, args)
			if err == nil || isaerr.GetKind(err) != isaerr.KindUnknown {
				return err
			}
			return isaerr.E(isaerr.Op(c.CommandPath()), isaerr.KindUsage, err)
		}
	}
	for _, sub := range cmd.Commands() {
		usageErrors(sub)
	}
}

// setup loads the configuration and builds the logger for the subcommand.
func setup(cmd *cobra.Command, args []string) error {
	stdout, stderr = cmd.OutOrStdout(), cmd.ErrOrStderr()

	path := configPath
	if path == "" {
		path = config.GetConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	switch {
	case debug:
		cfg.Log.Level = "debug"
	case verbose:
		cfg.Log.Level = "info"
	case quiet:
		cfg.Log.Level = "error"
	}
	env.Config = cfg
	env.Logger = cfg.NewLogger(os.Stderr)
	slog.SetDefault(env.Logger)
	return nil
}

// exitCode maps an error to the process exit status: 1 for bad input or
// an unknown catalog id, 2 for everything else.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if isaerr.UserError(err) || service.IsNotFound(err) {
		return 1
	}
	return 2
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		printError("%v", err)
		os.Exit(exitCode(err))
	}
}
