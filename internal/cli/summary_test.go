package cli

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"

	"github.com/roach88/labengine/internal/harness"
	"github.com/roach88/labengine/internal/ir"
	"github.com/roach88/labengine/internal/testutil"
)

func noColor(t *testing.T) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })
}

func assertGolden(t *testing.T, name string, data []byte) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}

func TestRenderSummary_Failed(t *testing.T) {
	noColor(t)
	errorID := "e1"

	summary := newRunSummary("run-1", "simple transfer", ir.EngineFailed,
		[]ir.Command{
			{ID: "c1", CommandType: ir.CommandTypeLoadPipette, Status: ir.CommandSucceeded},
			{ID: "c2", CommandType: ir.CommandTypeAspirate, Status: ir.CommandFailed, ErrorID: &errorID},
			{ID: "c3", CommandType: ir.CommandTypeDispense, Status: ir.CommandQueued},
		},
		[]ir.ErrorOccurrence{
			{ID: "e1", CreatedAt: testutil.Epoch, ErrorType: "TIP_NOT_ATTACHED", Detail: "no tip attached on right mount"},
		},
	)
	assert.Equal(t, "e1", summary.Commands[1].ErrorID)

	var buf bytes.Buffer
	renderSummary(&buf, summary)
	assertGolden(t, "summary_failed", buf.Bytes())
}

func TestRenderSummary_Interrupted(t *testing.T) {
	noColor(t)

	summary := summaryFromResult(&harness.Result{
		RunID:    "run-2",
		Protocol: "simple transfer",
		Status:   ir.EngineStopped,
		Commands: []ir.Command{
			{ID: "c1", CommandType: ir.CommandTypeHome, Status: ir.CommandSucceeded},
			{ID: "c2", CommandType: ir.CommandTypeLoadPipette, Status: ir.CommandQueued},
		},
		Interrupted: true,
	})
	assert.NotNil(t, summary.Errors)

	var buf bytes.Buffer
	renderSummary(&buf, summary)
	assertGolden(t, "summary_interrupted", buf.Bytes())
}
