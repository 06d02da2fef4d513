package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/labengine/internal/config"
	"github.com/roach88/labengine/internal/ir"
	"github.com/roach88/labengine/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string // path to labrun.yaml; empty uses defaults
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for labrun.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:     "labrun",
		Short:   "labrun - run liquid-handling protocols",
		Long:    "Run liquid-handling protocols on a simulated or serial-attached robot, one command at a time.",
		Version: ir.EngineVersion,

		// main prints the error and picks the exit code.
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "path to configuration file")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

// newFormatter builds the formatter for a command.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // keeps JSON output clean
		Verbose:   opts.Verbose,
	}
}

// loadConfig loads the configuration named by --config.
func loadConfig(opts *RootOptions, formatter *OutputFormatter) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(opts.Config)
	if err != nil {
		return nil, formatter.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}
	return cfg, nil
}

// newLogger builds the run logger. --verbose lowers the level to debug.
func newLogger(opts *RootOptions, cfg *config.Config, formatter *OutputFormatter) (*logging.Logger, error) {
	logCfg := cfg.Logging
	if opts.Verbose {
		logCfg.Level = "debug"
	}
	logger, err := logging.New(logCfg, ir.EngineVersion)
	if err != nil {
		return nil, formatter.Fail(ExitCommandError, ErrCodeConfig, "failed to create logger", err)
	}
	return logger, nil
}
