package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <protocol>...",
		Short: "Validate protocol files without running them",
		Long: `Parse each protocol file and check it against the command schema.

Nothing is executed and no hardware is touched.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, rootOpts, args)
		},
	}
}

type validateResult struct {
	Path     string `json:"path"`
	Name     string `json:"name"`
	Commands int    `json:"commands"`
}

func runValidate(cmd *cobra.Command, opts *RootOptions, paths []string) error {
	formatter := newFormatter(opts, cmd)

	results := make([]validateResult, 0, len(paths))
	for _, path := range paths {
		proto, err := loadProtocol(path, formatter)
		if err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("%s is invalid", path), err)
		}
		results = append(results, validateResult{Path: path, Name: proto.Name, Commands: len(proto.Commands)})
		if !formatter.IsJSON() {
			fmt.Fprintf(formatter.Writer, "✓ %s: %s (%d commands)\n", path, proto.Name, len(proto.Commands))
		}
	}

	if formatter.IsJSON() {
		return formatter.Success(results)
	}
	return nil
}
