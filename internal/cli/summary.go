package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/roach88/labengine/internal/harness"
	"github.com/roach88/labengine/internal/ir"
)

// RunSummary is the printable outcome of a run, live or journaled.
type RunSummary struct {
	RunID       string           `json:"run_id"`
	Protocol    string           `json:"protocol"`
	Status      ir.EngineStatus  `json:"status"`
	Interrupted bool             `json:"interrupted,omitempty"`
	Commands    []CommandSummary `json:"commands"`
	Errors      []ErrorSummary   `json:"errors"`
}

// CommandSummary is one line of the command table.
type CommandSummary struct {
	ID          string           `json:"id"`
	CommandType ir.CommandType   `json:"command_type"`
	Status      ir.CommandStatus `json:"status"`
	ErrorID     string           `json:"error_id,omitempty"`
}

// ErrorSummary is one recorded error.
type ErrorSummary struct {
	ID        string `json:"id"`
	ErrorType string `json:"error_type"`
	Detail    string `json:"detail"`
}

func newRunSummary(runID, protocol string, status ir.EngineStatus, cmds []ir.Command, errs []ir.ErrorOccurrence) RunSummary {
	s := RunSummary{
		RunID:    runID,
		Protocol: protocol,
		Status:   status,
		Commands: make([]CommandSummary, 0, len(cmds)),
		Errors:   make([]ErrorSummary, 0, len(errs)),
	}
	for _, cmd := range cmds {
		c := CommandSummary{ID: cmd.ID, CommandType: cmd.CommandType, Status: cmd.Status}
		if cmd.ErrorID != nil {
			c.ErrorID = *cmd.ErrorID
		}
		s.Commands = append(s.Commands, c)
	}
	for _, occ := range errs {
		s.Errors = append(s.Errors, ErrorSummary{ID: occ.ID, ErrorType: occ.ErrorType, Detail: occ.Detail})
	}
	return s
}

func summaryFromResult(r *harness.Result) RunSummary {
	s := newRunSummary(r.RunID, r.Protocol, r.Status, r.Commands, r.Errors)
	s.Interrupted = r.Interrupted
	return s
}

// renderSummary writes the text form of s.
func renderSummary(w io.Writer, s RunSummary) {
	fmt.Fprintf(w, "Run %s (%s): %s\n", s.RunID, s.Protocol, engineStatusColor(s.Status).Sprint(strings.ToUpper(string(s.Status))))
	if s.Interrupted {
		fmt.Fprintf(w, "  %s\n", color.New(color.FgYellow).Sprint("interrupted"))
	}

	width := 0
	for _, c := range s.Commands {
		width = max(width, len(c.CommandType))
	}
	for i, c := range s.Commands {
		fmt.Fprintf(w, "  %3d. %-*s  %s\n", i+1, width, c.CommandType, commandStatusColor(c.Status).Sprint(c.Status))
	}

	if len(s.Errors) == 0 {
		return
	}
	fmt.Fprintln(w, "Errors:")
	for _, e := range s.Errors {
		fmt.Fprintf(w, "  %s %s: %s\n", color.New(color.FgRed).Sprint("✗"), e.ErrorType, e.Detail)
	}
}

func engineStatusColor(status ir.EngineStatus) *color.Color {
	switch status {
	case ir.EngineSucceeded:
		return color.New(color.FgGreen, color.Bold)
	case ir.EngineFailed:
		return color.New(color.FgRed, color.Bold)
	case ir.EngineStopped, ir.EngineStopRequested:
		return color.New(color.FgYellow, color.Bold)
	}
	return color.New(color.FgCyan)
}

func commandStatusColor(status ir.CommandStatus) *color.Color {
	switch status {
	case ir.CommandSucceeded:
		return color.New(color.FgGreen)
	case ir.CommandFailed:
		return color.New(color.FgRed)
	case ir.CommandRunning:
		return color.New(color.FgCyan)
	}
	return color.New(color.Faint)
}
