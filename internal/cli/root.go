// Package cli implements moviectl, the command-line client that runs the same
// services as the HTTP server directly against the configured store.
package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/sakif/movieshelf/internal/app"
	"github.com/sakif/movieshelf/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
	Format     string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for moviectl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "moviectl",
		Short:         "Manage movie collections",
		Long:          "moviectl creates collections, saves movies into them and shows reconciled views.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "YAML config file (default $CONFIG_FILE)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewCollectionsCommand(opts))
	cmd.AddCommand(NewSaveCommand(opts))
	cmd.AddCommand(NewMoviesCommand(opts))
	cmd.AddCommand(NewHashPasswordCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// openApp loads the configuration and wires the application. Logs go to
// stderr at warn level, or debug with -v.
func (o *RootOptions) openApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "loading config", err)
	}

	level := "warn"
	if o.Verbose {
		level = "debug"
	}
	logger, err := app.NewLogger(level, cfg.LogFormat, cmd.ErrOrStderr())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "configuring logger", err)
	}

	a, err := app.Build(cfg, logger)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "starting", err)
	}
	return a, nil
}

// exactArgs is cobra.ExactArgs with the command-error exit code.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return WrapExitError(ExitCommandError, cmd.UseLine(), err)
		}
		return nil
	}
}
