package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/labengine/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	DBPath string
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show journaled runs",
		Long: `List the runs recorded in the journal, or show the commands and errors
of one run.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := ""
			if len(args) == 1 {
				runID = args[0]
			}
			return runHistory(cmd, opts, runID)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "", "run journal path (overrides database.path)")

	return cmd
}

type historyRun struct {
	RunID       string     `json:"run_id"`
	Protocol    string     `json:"protocol"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func runHistory(cmd *cobra.Command, opts *HistoryOptions, runID string) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := loadConfig(opts.RootOptions, formatter)
	if err != nil {
		return err
	}
	path := cfg.Database.Path
	if opts.DBPath != "" {
		path = opts.DBPath
	}
	if path == "" {
		_ = formatter.Error(ErrCodeJournal, "no journal configured: pass --db or set database.path", nil)
		return NewExitError(ExitCommandError, "no journal configured")
	}

	journal, err := store.Open(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeJournal, "failed to open journal", err)
	}
	defer journal.Close()

	ctx := cmd.Context()
	if runID == "" {
		runs, err := journal.ListRuns(ctx)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeJournal, "failed to list runs", err)
		}
		return renderHistory(formatter, runs)
	}

	run, err := journal.ReadRun(ctx, runID)
	if errors.Is(err, store.ErrRunNotFound) {
		_ = formatter.Error(ErrCodeJournal, fmt.Sprintf("run %s not found", runID), nil)
		return WrapExitError(ExitCommandError, "run not found", err)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeJournal, "failed to read run", err)
	}
	cmds, err := journal.ReadRunCommands(ctx, runID)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeJournal, "failed to read commands", err)
	}
	errs, err := journal.ReadRunErrors(ctx, runID)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeJournal, "failed to read errors", err)
	}

	summary := newRunSummary(run.ID, run.ProtocolName, run.Status, cmds, errs)
	if formatter.IsJSON() {
		return formatter.Success(summary)
	}
	renderSummary(formatter.Writer, summary)
	return nil
}

func renderHistory(formatter *OutputFormatter, runs []store.Run) error {
	if formatter.IsJSON() {
		out := make([]historyRun, 0, len(runs))
		for _, r := range runs {
			out = append(out, historyRun{
				RunID:       r.ID,
				Protocol:    r.ProtocolName,
				Status:      string(r.Status),
				CreatedAt:   r.CreatedAt,
				CompletedAt: r.CompletedAt,
			})
		}
		return formatter.Success(out)
	}

	if len(runs) == 0 {
		fmt.Fprintln(formatter.Writer, "No runs recorded.")
		return nil
	}
	tw := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tPROTOCOL\tSTATUS\tSTARTED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.ProtocolName, r.Status, r.CreatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}
