package execution

import (
	"context"
	"log/slog"

	"github.com/roach88/labengine/internal/ir"
)

// Executor executes one command by id.
type Executor interface {
	Execute(ctx context.Context, commandID string) error
}

// QueueWorker drains the command queue in FIFO order.
//
// Run never busy-waits: with nothing runnable it blocks on the store's
// change channel, which is closed by the next dispatched action. The
// channel is taken before the queue is inspected so a command queued in
// between is never missed.
type QueueWorker struct {
	state    StateStore
	executor Executor
	logger   *slog.Logger
}

// NewQueueWorker creates a worker. A nil logger uses slog.Default().
func NewQueueWorker(store StateStore, executor Executor, logger *slog.Logger) *QueueWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueueWorker{state: store, executor: executor, logger: logger}
}

// Run executes commands until the engine stops or ctx is done. An
// in-flight command always finishes before Run observes a stop. Run
// returns nil on a stop and ctx.Err() on cancellation.
func (w *QueueWorker) Run(ctx context.Context) error {
	w.logger.Debug("queue worker started")
	defer w.logger.Debug("queue worker exited")

	for {
		changed := w.state.Changed()

		id, ok, err := w.state.View().Commands.NextQueued()
		if err != nil {
			if ir.IsEngineStopped(err) {
				return nil
			}
			return err
		}

		if ok {
			if err := w.executor.Execute(ctx, id); err != nil {
				return err
			}
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}
