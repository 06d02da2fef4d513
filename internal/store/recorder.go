package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/labengine/internal/action"
	"github.com/roach88/labengine/internal/ir"
)

// Recorder mirrors one run's actions into the journal.
//
// HandleAction only enqueues, so it is safe to register on the engine's
// dispatcher; Run drains the queue and performs the writes. Write failures
// are logged and never reach the engine.
type Recorder struct {
	store  *Store
	runID  string
	buffer *action.Buffer
	logger *slog.Logger
	now    func() time.Time
	status func() ir.EngineStatus

	// Owned by the Run goroutine.
	actionSeq  int64
	errorSeq   int64
	commandSeq map[string]int64
	commands   map[string]ir.Command
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithRecorderLogger sets the logger. Default: slog.Default().
func WithRecorderLogger(l *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		r.logger = l
	}
}

// WithRecorderClock sets the time source for action log rows.
func WithRecorderClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		r.now = now
	}
}

// WithStatusSource makes the recorder refresh the run's status after each
// action, reading it from status.
func WithStatusSource(status func() ir.EngineStatus) RecorderOption {
	return func(r *Recorder) {
		r.status = status
	}
}

// NewRecorder creates a recorder for runID. The run row must already exist.
func NewRecorder(store *Store, runID string, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		store:      store,
		runID:      runID,
		buffer:     action.NewBuffer(),
		logger:     slog.Default(),
		now:        func() time.Time { return time.Now().UTC() },
		commandSeq: make(map[string]int64),
		commands:   make(map[string]ir.Command),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// HandleAction implements action.Handler.
func (r *Recorder) HandleAction(a action.Action) {
	if !r.buffer.Enqueue(a) {
		r.logger.Warn("journal closed, action dropped", "run_id", r.runID, "action", action.Name(a))
	}
}

// Close stops accepting actions. Run returns once the backlog is written.
func (r *Recorder) Close() {
	r.buffer.Close()
}

// Run writes actions until Close has been called and the backlog is empty,
// or ctx is done.
func (r *Recorder) Run(ctx context.Context) error {
	return r.buffer.Drain(ctx, r.record)
}

func (r *Recorder) record(ctx context.Context, a action.Action) {
	now := r.now()
	r.actionSeq++
	r.warn(r.store.WriteAction(ctx, r.runID, ActionRecord{Seq: r.actionSeq, Name: action.Name(a), RecordedAt: now}), a)

	switch a := a.(type) {
	case action.QueueCommand:
		cmd := ir.Command{
			ID:          a.CommandID,
			CreatedAt:   a.CreatedAt,
			CommandType: a.Request.CommandType,
			Params:      a.Request.Params,
			Status:      ir.CommandQueued,
		}
		r.commandSeq[cmd.ID] = int64(len(r.commandSeq)) + 1
		r.writeCommand(ctx, cmd, now, a)

	case action.UpdateCommand:
		if _, ok := r.commandSeq[a.Command.ID]; !ok {
			r.commandSeq[a.Command.ID] = int64(len(r.commandSeq)) + 1
		}
		r.writeCommand(ctx, a.Command, now, a)

	case action.FailCommand:
		if cmd, ok := r.commands[a.CommandID]; ok {
			failedAt := a.FailedAt
			errorID := a.ErrorID
			cmd.Status = ir.CommandFailed
			cmd.CompletedAt = &failedAt
			cmd.ErrorID = &errorID
			cmd.Result = nil
			r.writeCommand(ctx, cmd, now, a)
		}
		r.writeError(ctx, ir.NewErrorOccurrence(a.ErrorID, a.FailedAt, a.Err), a)

	case action.Stop:
		if d := a.ErrorDetails; d != nil && d.Err != nil && !ir.IsEngineError(d.Err) {
			r.writeError(ctx, ir.NewErrorOccurrence(d.ErrorID, d.CreatedAt, d.Err), a)
		}

	case action.AddLabwareOffset:
		r.warn(r.store.WriteOffset(ctx, r.runID, ir.LabwareOffset{
			ID:            a.OffsetID,
			CreatedAt:     a.CreatedAt,
			DefinitionURI: a.Request.DefinitionURI,
			Location:      a.Request.Location,
			Vector:        a.Request.Vector,
		}), a)
	}

	if r.status != nil {
		status := r.status()
		var completedAt *time.Time
		if status.IsTerminal() {
			completedAt = &now
		}
		r.warn(r.store.UpdateRunStatus(ctx, r.runID, status, completedAt), a)
	}
}

func (r *Recorder) writeCommand(ctx context.Context, cmd ir.Command, now time.Time, a action.Action) {
	r.commands[cmd.ID] = cmd
	r.warn(r.store.WriteCommand(ctx, r.runID, r.commandSeq[cmd.ID], cmd, now), a)
}

func (r *Recorder) writeError(ctx context.Context, occ ir.ErrorOccurrence, a action.Action) {
	r.errorSeq++
	r.warn(r.store.WriteError(ctx, r.runID, r.errorSeq, occ), a)
}

func (r *Recorder) warn(err error, a action.Action) {
	if err != nil {
		r.logger.Warn("journal write failed", "run_id", r.runID, "action", action.Name(a), "error", err)
	}
}
