package execution

import (
	"context"
	"log/slog"

	"github.com/roach88/labengine/internal/action"
	"github.com/roach88/labengine/internal/commands"
	"github.com/roach88/labengine/internal/ir"
)

// CommandExecutor executes one queued command end to end and reports the
// outcome through the dispatcher. It never mutates state directly and
// never retries.
type CommandExecutor struct {
	state      StateStore
	dispatcher ConditionalDispatcher
	handlers   commands.Handlers
	factory    commands.Factory
	ids        IDGenerator
	clock      Clock
	logger     *slog.Logger
}

// ExecutorOption configures a CommandExecutor.
type ExecutorOption func(*CommandExecutor)

// WithFactory replaces the implementation factory. Default: commands.New.
func WithFactory(f commands.Factory) ExecutorOption {
	return func(e *CommandExecutor) {
		e.factory = f
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) ExecutorOption {
	return func(e *CommandExecutor) {
		e.logger = l
	}
}

// NewCommandExecutor creates an executor.
func NewCommandExecutor(store StateStore, dispatcher ConditionalDispatcher, handlers commands.Handlers, ids IDGenerator, clock Clock, opts ...ExecutorOption) *CommandExecutor {
	e := &CommandExecutor{
		state:      store,
		dispatcher: dispatcher,
		handlers:   handlers,
		factory:    commands.New,
		ids:        ids,
		clock:      clock,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the command with the given id. It returns an error only
// when the command does not exist; command failures are recorded in
// state as FAILED plus an error occurrence. A command that is no longer
// QUEUED when it would start, or whose engine has been stopped, is left
// untouched and its implementation never runs.
func (e *CommandExecutor) Execute(ctx context.Context, commandID string) error {
	cmd, err := e.state.View().Commands.Get(commandID)
	if err != nil {
		return err
	}

	impl, buildErr := e.factory(cmd.Params, e.handlers)

	startedAt := e.clock.Now()
	running := cmd
	running.Status = ir.CommandRunning
	running.StartedAt = &startedAt
	started := e.dispatcher.DispatchIf(func() bool {
		return e.startable(commandID)
	}, action.UpdateCommand{Command: running})
	if !started {
		e.logger.Debug("command not started", "command_id", cmd.ID, "command_type", cmd.CommandType)
		return nil
	}
	e.logger.Debug("command running", "command_id", cmd.ID, "command_type", cmd.CommandType)

	if buildErr != nil {
		e.fail(cmd, buildErr)
		return nil
	}

	result, err := impl.Execute(ctx)
	if err != nil {
		e.fail(cmd, err)
		return nil
	}

	completedAt := e.clock.Now()
	succeeded := running
	succeeded.Status = ir.CommandSucceeded
	succeeded.CompletedAt = &completedAt
	succeeded.Result = result
	e.dispatcher.Dispatch(action.UpdateCommand{Command: succeeded})
	e.logger.Debug("command succeeded", "command_id", cmd.ID, "command_type", cmd.CommandType)
	return nil
}

// startable reports whether commandID may move to RUNNING: it is still
// QUEUED and no stop has been requested.
func (e *CommandExecutor) startable(commandID string) bool {
	view := e.state.View()
	if view.Commands.StopRequested() {
		return false
	}
	cmd, err := view.Commands.Get(commandID)
	return err == nil && cmd.Status == ir.CommandQueued
}

func (e *CommandExecutor) fail(cmd ir.Command, err error) {
	engineErr := ir.WrapUnexpected(err)
	errorID := e.ids.Generate()
	e.dispatcher.Dispatch(action.FailCommand{
		CommandID: cmd.ID,
		ErrorID:   errorID,
		FailedAt:  e.clock.Now(),
		Err:       engineErr,
	})
	e.logger.Error("command failed",
		"command_id", cmd.ID,
		"command_type", cmd.CommandType,
		"error_id", errorID,
		"error", engineErr,
	)
}
