package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/labengine/internal/action"
	"github.com/roach88/labengine/internal/ir"
	"github.com/roach88/labengine/internal/testutil"
)

// createTestStore creates a journal in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestRun(t *testing.T, s *Store, id string) {
	t.Helper()
	require.NoError(t, s.CreateRun(context.Background(), Run{
		ID:           id,
		ProtocolName: "transfer",
		Status:       ir.EngineIdle,
		CreatedAt:    testutil.Epoch,
	}))
}

func TestOpenAppliesPragmas(t *testing.T) {
	s := createTestStore(t)
	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	s, err := Open(path)
	require.NoError(t, err)
	createTestRun(t, s, "run-1")
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	runs, err := s.ListRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
}

func TestOpenMigratesOldJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.db.Exec("DROP INDEX idx_errors_run_seq")
	require.NoError(t, err)
	_, err = s.db.Exec("PRAGMA user_version = 0")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	assert.NoError(t, s.verifyPragma("user_version", "1"))
	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = 'idx_errors_run_seq'`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestOpenCreatesDirectory(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "nested", "dir", "journal.db"))
	require.NoError(t, err)
	assert.NoError(t, s.Close())
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)

	createTestRun(t, s, "run-1")
	createTestRun(t, s, "run-1")

	done := testutil.Epoch.Add(time.Minute)
	require.NoError(t, s.UpdateRunStatus(ctx, "run-1", ir.EngineSucceeded, &done))

	run, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, ir.EngineSucceeded, run.Status)
	assert.Equal(t, ir.SchemaVersion, run.SchemaVersion)
	assert.Equal(t, testutil.Epoch, run.CreatedAt)
	require.NotNil(t, run.CompletedAt)
	assert.True(t, done.Equal(*run.CompletedAt))

	_, err = s.ReadRun(ctx, "nope")
	assert.True(t, errors.Is(err, ErrRunNotFound))
	assert.ErrorIs(t, s.UpdateRunStatus(ctx, "nope", ir.EngineFailed, nil), ErrRunNotFound)
}

func TestCommandUpsertKeepsEnqueueOrder(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	createTestRun(t, s, "run-1")

	first := ir.Command{ID: "b", CreatedAt: testutil.Epoch, CommandType: ir.CommandTypeHome, Params: &ir.HomeParams{}, Status: ir.CommandQueued}
	second := ir.Command{
		ID: "a", CreatedAt: testutil.Epoch, CommandType: ir.CommandTypeLoadPipette,
		Params: &ir.LoadPipetteParams{PipetteName: ir.P20SingleGen2, Mount: ir.MountLeft},
		Status: ir.CommandQueued,
	}
	require.NoError(t, s.WriteCommand(ctx, "run-1", 1, first, testutil.Epoch))
	require.NoError(t, s.WriteCommand(ctx, "run-1", 2, second, testutil.Epoch))

	// A later snapshot replaces the row but keeps its position.
	started := testutil.Epoch.Add(time.Second)
	second.Status = ir.CommandSucceeded
	second.StartedAt = &started
	second.CompletedAt = &started
	second.Result = &ir.LoadPipetteResult{PipetteID: "p1"}
	require.NoError(t, s.WriteCommand(ctx, "run-1", 99, second, started))

	cmds, err := s.ReadRunCommands(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, cmds, 2)
	assert.Equal(t, "b", cmds[0].ID)
	assert.Equal(t, "a", cmds[1].ID)
	assert.Equal(t, ir.CommandSucceeded, cmds[1].Status)
	assert.Equal(t, &ir.LoadPipetteResult{PipetteID: "p1"}, cmds[1].Result)
	assert.Equal(t, &ir.LoadPipetteParams{PipetteName: ir.P20SingleGen2, Mount: ir.MountLeft}, cmds[1].Params)
}

func TestWriteRequiresRun(t *testing.T) {
	s := createTestStore(t)
	err := s.WriteAction(context.Background(), "missing", ActionRecord{Seq: 1, Name: "play", RecordedAt: testutil.Epoch})
	assert.Error(t, err)
}

func TestErrorsAreImmutable(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	createTestRun(t, s, "run-1")

	occ := ir.ErrorOccurrence{ID: "e1", CreatedAt: testutil.Epoch, ErrorType: "TIP_NOT_ATTACHED", Detail: "no tip"}
	require.NoError(t, s.WriteError(ctx, "run-1", 1, occ))
	require.NoError(t, s.WriteError(ctx, "run-1", 2, ir.ErrorOccurrence{ID: "e1", CreatedAt: testutil.Epoch, ErrorType: "X", Detail: "changed"}))

	errs, err := s.ReadRunErrors(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, occ, errs[0])
}

func TestRecorderMirrorsActions(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s := createTestStore(t)
	createTestRun(t, s, "run-1")

	var status atomic.Value
	status.Store(ir.EngineIdle)
	clock := testutil.NewStepClock()
	rec := NewRecorder(s, "run-1",
		WithRecorderClock(clock.Now),
		WithStatusSource(func() ir.EngineStatus { return status.Load().(ir.EngineStatus) }),
	)

	done := make(chan error, 1)
	go func() { done <- rec.Run(ctx) }()

	home := ir.NewCommandRequest(&ir.HomeParams{})
	rec.HandleAction(action.AddLabwareOffset{
		OffsetID:  "o1",
		CreatedAt: testutil.Epoch,
		Request: ir.LabwareOffsetCreate{
			DefinitionURI: "opentrons/plate/1",
			Location:      ir.DeckSlotLocation("2"),
			Vector:        ir.LabwareOffsetVector{X: 0.5},
		},
	})
	rec.HandleAction(action.QueueCommand{CommandID: "c1", CreatedAt: testutil.Epoch, Request: home})
	rec.HandleAction(action.QueueCommand{CommandID: "c2", CreatedAt: testutil.Epoch, Request: home})
	rec.HandleAction(action.Play{})

	started := testutil.Epoch.Add(time.Second)
	rec.HandleAction(action.UpdateCommand{Command: ir.Command{
		ID: "c1", CreatedAt: testutil.Epoch, CommandType: ir.CommandTypeHome,
		Params: &ir.HomeParams{}, Status: ir.CommandRunning, StartedAt: &started,
	}})
	rec.HandleAction(action.FailCommand{
		CommandID: "c1",
		ErrorID:   "e1",
		FailedAt:  started,
		Err:       ir.NewEngineError(ir.ErrCodeTipNotAttached, "no tip"),
	})
	status.Store(ir.EngineFailed)
	rec.HandleAction(action.Stop{ErrorDetails: &action.StopErrorDetails{ErrorID: "e2", CreatedAt: started, Err: errors.New("boom")}})
	rec.Close()
	require.NoError(t, <-done)

	// Writes after Close are dropped.
	rec.HandleAction(action.Play{})

	actions, err := s.ReadRunActions(ctx, "run-1")
	require.NoError(t, err)
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = a.Name
	}
	assert.Equal(t, []string{"addLabwareOffset", "queueCommand", "queueCommand", "play", "updateCommand", "failCommand", "stop"}, names)

	cmds, err := s.ReadRunCommands(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, cmds, 2)
	assert.Equal(t, ir.CommandFailed, cmds[0].Status)
	require.NotNil(t, cmds[0].ErrorID)
	assert.Equal(t, "e1", *cmds[0].ErrorID)
	assert.Equal(t, ir.CommandQueued, cmds[1].Status)

	errs, err := s.ReadRunErrors(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, errs, 2)
	assert.Equal(t, string(ir.ErrCodeTipNotAttached), errs[0].ErrorType)
	assert.Equal(t, string(ir.ErrCodeUnexpectedProtocolError), errs[1].ErrorType)
	assert.Equal(t, "boom", errs[1].Detail)

	offsets, err := s.ReadRunOffsets(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, offsets, 1)
	assert.Equal(t, ir.LabwareOffsetVector{X: 0.5}, offsets[0].Vector)
	assert.Equal(t, ir.DeckSlotLocation("2"), offsets[0].Location)

	run, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, ir.EngineFailed, run.Status)
	assert.NotNil(t, run.CompletedAt)
}
