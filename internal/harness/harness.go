package harness

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/labengine/internal/action"
	"github.com/roach88/labengine/internal/engine"
	"github.com/roach88/labengine/internal/hardware"
	"github.com/roach88/labengine/internal/ir"
	"github.com/roach88/labengine/internal/protocol"
)

// Reactor is an action handler that does its work on its own goroutine.
// store.Recorder and notify.StatusPublisher implement it.
type Reactor interface {
	action.Handler
	Run(ctx context.Context) error
	Close()
}

// StatusFunc reports the current engine status of the run.
type StatusFunc func() ir.EngineStatus

// ReactorFactory builds a reactor for a run before the engine exists.
type ReactorFactory func(runID string, status StatusFunc) (Reactor, error)

// Options configures Run.
type Options struct {
	Config engine.Config
	// RunID defaults to a fresh UUIDv7.
	RunID    string
	Logger   *slog.Logger
	Reactors []ReactorFactory
	// EngineOptions are applied after the harness's own options.
	EngineOptions []engine.Option
}

// Result is the outcome of a run.
type Result struct {
	RunID       string
	Protocol    string
	Status      ir.EngineStatus
	Commands    []ir.Command
	Errors      []ir.ErrorOccurrence
	Interrupted bool
}

// Failed reports whether the run ended FAILED.
func (r *Result) Failed() bool {
	return r.Status == ir.EngineFailed
}

// Run executes proto against hw.
//
// The returned error covers setup and teardown problems only; a protocol
// that fails on the robot returns a Result with status FAILED and a nil
// error.
func Run(ctx context.Context, proto *protocol.Protocol, hw hardware.API, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	runID := opts.RunID
	if runID == "" {
		runID = engine.UUIDv7Generator{}.Generate()
	}
	logger = logger.With("run_id", runID)

	var current atomic.Pointer[engine.ProtocolEngine]
	status := func() ir.EngineStatus {
		if e := current.Load(); e != nil {
			return e.Status()
		}
		return ir.EngineIdle
	}

	reactors := make([]Reactor, 0, len(opts.Reactors))
	handlers := make([]action.Handler, 0, len(opts.Reactors))
	for _, build := range opts.Reactors {
		r, err := build(runID, status)
		if err != nil {
			return nil, fmt.Errorf("harness: build reactor: %w", err)
		}
		reactors = append(reactors, r)
		handlers = append(handlers, r)
	}

	engineOpts := append([]engine.Option{
		engine.WithLogger(logger),
		engine.WithReactors(handlers...),
	}, opts.EngineOptions...)
	e, err := engine.New(hw, opts.Config, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("harness: create engine: %w", err)
	}
	current.Store(e)

	// Reactors and the worker outlive ctx so a cancelled run is still
	// stopped and recorded.
	runCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	for _, r := range reactors {
		r := r
		g.Go(func() error {
			return r.Run(runCtx)
		})
	}
	closeReactors := func() error {
		for _, r := range reactors {
			r.Close()
		}
		return g.Wait()
	}

	if err := enqueue(e, proto); err != nil {
		e.Stop(nil)
		closeReactors()
		return nil, err
	}

	logger.Info("run starting", "protocol", proto.Name, "commands", len(proto.Commands))
	if err := e.Start(runCtx); err != nil {
		closeReactors()
		return nil, fmt.Errorf("harness: start engine: %w", err)
	}
	if err := e.Play(); err != nil && !ir.IsEngineStopped(err) {
		logger.Warn("play rejected", "error", err)
	}

	interrupted := false
	complete := make(chan error, 1)
	go func() {
		complete <- e.WaitUntilComplete(runCtx)
	}()
	select {
	case err := <-complete:
		if err != nil {
			logger.Warn("waiting for completion failed", "error", err)
		}
	case <-ctx.Done():
		interrupted = true
		logger.Info("run interrupted", "cause", context.Cause(ctx))
		e.Stop(nil)
	}

	finishErr := e.Finish(runCtx, nil)
	reactorErr := closeReactors()

	view := e.State()
	result := &Result{
		RunID:       runID,
		Protocol:    proto.Name,
		Status:      view.Commands.Status(),
		Commands:    view.Commands.All(),
		Errors:      view.Commands.Errors(),
		Interrupted: interrupted,
	}
	logger.Info("run finished", "status", result.Status, "errors", len(result.Errors))

	if finishErr != nil {
		return result, fmt.Errorf("harness: finish run: %w", finishErr)
	}
	if reactorErr != nil {
		return result, fmt.Errorf("harness: reactor: %w", reactorErr)
	}
	return result, nil
}

func enqueue(e *engine.ProtocolEngine, proto *protocol.Protocol) error {
	for i, off := range proto.LabwareOffsets {
		if _, err := e.AddLabwareOffset(off); err != nil {
			return fmt.Errorf("harness: labwareOffsets[%d]: %w", i, err)
		}
	}
	for i, req := range proto.Commands {
		if _, err := e.AddCommand(req); err != nil {
			return fmt.Errorf("harness: commands[%d] (%s): %w", i, req.CommandType, err)
		}
	}
	return nil
}
