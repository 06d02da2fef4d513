package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/labengine/internal/ir"
)

// Trace is the id-free, time-free outcome of a run, stable across
// executions for golden comparison.
type Trace struct {
	Protocol string          `json:"protocol"`
	Status   ir.EngineStatus `json:"status"`
	Commands []TraceCommand  `json:"commands"`
	Errors   []string        `json:"errors"`
}

// TraceCommand is one command in a Trace.
type TraceCommand struct {
	CommandType ir.CommandType   `json:"commandType"`
	Status      ir.CommandStatus `json:"status"`
	ErrorType   string           `json:"errorType,omitempty"`
}

// NewTrace reduces r to a Trace.
func NewTrace(r *Result) Trace {
	errorTypes := make(map[string]string, len(r.Errors))
	trace := Trace{
		Protocol: r.Protocol,
		Status:   r.Status,
		Commands: make([]TraceCommand, 0, len(r.Commands)),
		Errors:   make([]string, 0, len(r.Errors)),
	}
	for _, occ := range r.Errors {
		errorTypes[occ.ID] = occ.ErrorType
		trace.Errors = append(trace.Errors, occ.ErrorType)
	}
	for _, cmd := range r.Commands {
		tc := TraceCommand{CommandType: cmd.CommandType, Status: cmd.Status}
		if cmd.ErrorID != nil {
			tc.ErrorType = errorTypes[*cmd.ErrorID]
		}
		trace.Commands = append(trace.Commands, tc)
	}
	return trace
}

// AssertGolden compares the trace of r against
// testdata/golden/{name}.golden.
func AssertGolden(t *testing.T, name string, r *Result) {
	t.Helper()

	data, err := json.MarshalIndent(NewTrace(r), "", "  ")
	if err != nil {
		t.Fatalf("marshal trace: %v", err)
	}
	data = append(data, '\n')

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}
