package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/labengine/internal/action"
	"github.com/roach88/labengine/internal/commands"
	"github.com/roach88/labengine/internal/execution"
	"github.com/roach88/labengine/internal/hardware"
	"github.com/roach88/labengine/internal/ir"
	"github.com/roach88/labengine/internal/labware"
	"github.com/roach88/labengine/internal/state"
)

// ErrAlreadyStarted is returned by Start when the worker is running.
var ErrAlreadyStarted = errors.New("engine: already started")

// Config is the engine configuration.
type Config = state.Config

// ProtocolEngine is the public surface of a protocol run.
//
// Thread-safety model:
//   - AddCommand, AddLabwareOffset, Play, Pause, Stop, State: safe from any
//     goroutine
//   - Start: once per engine; the queue worker runs on its own goroutine
//
// INVARIANTS:
//   - the state store is the first dispatcher handler
//   - Play and Pause after Stop fail with ENGINE_STOPPED
//   - commands execute one at a time in enqueue order
type ProtocolEngine struct {
	store      *state.Store
	dispatcher *action.Dispatcher
	worker     *execution.QueueWorker
	ids        IDGenerator
	clock      Clock
	logger     *slog.Logger

	// controlMu makes validate-then-dispatch atomic for run control.
	controlMu sync.Mutex

	startMu sync.Mutex
	done    chan struct{}
	runErr  error
}

// Option configures a ProtocolEngine.
type Option func(*options)

type options struct {
	ids      IDGenerator
	clock    Clock
	logger   *slog.Logger
	library  *labware.Library
	deck     *labware.Deck
	factory  commands.Factory
	reactors []action.Handler
}

// WithIDGenerator sets the id generator. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(o *options) {
		o.ids = g
	}
}

// WithClock sets the clock. Default: SystemClock.
func WithClock(c Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithLibrary sets the labware library. Default: labware.Builtin().
func WithLibrary(lib *labware.Library) Option {
	return func(o *options) {
		o.library = lib
	}
}

// WithDeck sets the deck. Default: labware.OT2Deck().
func WithDeck(d *labware.Deck) Option {
	return func(o *options) {
		o.deck = d
	}
}

// WithCommandFactory replaces the command implementation factory.
func WithCommandFactory(f commands.Factory) Option {
	return func(o *options) {
		o.factory = f
	}
}

// WithReactors registers handlers after the state store, in order.
func WithReactors(handlers ...action.Handler) Option {
	return func(o *options) {
		o.reactors = append(o.reactors, handlers...)
	}
}

// New creates an engine driving hw. The fixed trash is loaded before any
// command runs.
func New(hw hardware.API, cfg Config, opts ...Option) (*ProtocolEngine, error) {
	o := options{
		ids:     UUIDv7Generator{},
		clock:   SystemClock{},
		logger:  slog.Default(),
		library: labware.Builtin(),
		deck:    labware.OT2Deck(),
		factory: commands.New,
	}
	for _, opt := range opts {
		opt(&o)
	}

	trash, err := o.library.Get(labware.Namespace, labware.FixedTrash, 1)
	if err != nil {
		return nil, fmt.Errorf("engine: fixed trash definition: %w", err)
	}
	store := state.NewStore(cfg,
		state.WithDeck(o.deck),
		state.WithFixedLabware(state.FixedLabware{
			ID:         labware.FixedTrashID,
			Location:   ir.DeckSlotLocation(o.deck.FixedTrashSlot),
			Definition: trash,
		}),
	)

	dispatcher := action.NewDispatcher(store)
	for _, r := range o.reactors {
		dispatcher.Register(r)
	}

	handlers := execution.NewHandlers(store, dispatcher, hw, o.library, o.ids)
	executor := execution.NewCommandExecutor(store, dispatcher, handlers, o.ids, o.clock,
		execution.WithFactory(o.factory),
		execution.WithLogger(o.logger),
	)

	return &ProtocolEngine{
		store:      store,
		dispatcher: dispatcher,
		worker:     execution.NewQueueWorker(store, executor, o.logger),
		ids:        o.ids,
		clock:      o.clock,
		logger:     o.logger,
	}, nil
}

// AddCommand validates req and enqueues it. The returned command is
// QUEUED and already visible in State(). Enqueueing after Stop is
// allowed; the command will never run.
func (e *ProtocolEngine) AddCommand(req ir.CommandRequest) (ir.Command, error) {
	if err := req.Validate(); err != nil {
		return ir.Command{}, &ir.EngineError{Code: ir.ErrCodeInvalidCommandRequest, Message: err.Error(), Err: err}
	}

	id := e.ids.Generate()
	e.dispatcher.Dispatch(action.QueueCommand{
		CommandID: id,
		CreatedAt: e.clock.Now(),
		Request:   req,
	})
	e.logger.Debug("command queued", "command_id", id, "command_type", req.CommandType)
	return e.store.View().Commands.Get(id)
}

// AddLabwareOffset registers an offset. Later loadLabware commands with
// the same definition URI and location link to the newest one.
func (e *ProtocolEngine) AddLabwareOffset(req ir.LabwareOffsetCreate) (ir.LabwareOffset, error) {
	if req.DefinitionURI == "" {
		return ir.LabwareOffset{}, ir.NewEngineError(ir.ErrCodeInvalidCommandRequest, "offset definitionUri is required")
	}
	if (req.Location.SlotName == "") == (req.Location.ModuleID == "") {
		return ir.LabwareOffset{}, ir.NewEngineError(ir.ErrCodeInvalidCommandRequest, "offset location needs exactly one of slotName or moduleId")
	}

	id := e.ids.Generate()
	e.dispatcher.Dispatch(action.AddLabwareOffset{
		OffsetID:  id,
		CreatedAt: e.clock.Now(),
		Request:   req,
	})
	return e.store.View().Labware.Offset(id)
}

// Play resumes draining the queue.
func (e *ProtocolEngine) Play() error {
	return e.control(action.Play{})
}

// Pause stops draining after the in-flight command.
func (e *ProtocolEngine) Pause() error {
	return e.control(action.Pause{})
}

func (e *ProtocolEngine) control(a action.Action) error {
	e.controlMu.Lock()
	defer e.controlMu.Unlock()

	if err := e.store.View().Commands.ValidateActionAllowed(a); err != nil {
		return err
	}
	e.dispatcher.Dispatch(a)
	e.logger.Info("run control", "action", action.Name(a))
	return nil
}

// Stop latches the run stopped. The in-flight command, if any, finishes;
// nothing else runs. cause may be nil.
func (e *ProtocolEngine) Stop(cause error) {
	e.controlMu.Lock()
	defer e.controlMu.Unlock()

	stop := action.Stop{}
	if cause != nil {
		stop.ErrorDetails = &action.StopErrorDetails{
			ErrorID:   e.ids.Generate(),
			CreatedAt: e.clock.Now(),
			Err:       cause,
		}
	}
	e.dispatcher.Dispatch(stop)
	e.logger.Info("run stop requested", "cause", cause)
}

// State returns a snapshot-consistent view of the run.
func (e *ProtocolEngine) State() state.View {
	return e.store.View()
}

// Status returns the derived engine status.
func (e *ProtocolEngine) Status() ir.EngineStatus {
	return e.store.View().Commands.Status()
}

// Start launches the queue worker. The worker stops when the engine is
// stopped, when a command fails, or when ctx is done.
func (e *ProtocolEngine) Start(ctx context.Context) error {
	e.startMu.Lock()
	defer e.startMu.Unlock()

	if e.done != nil {
		return ErrAlreadyStarted
	}
	e.done = make(chan struct{})
	e.logger.Info("engine starting")

	go func() {
		defer close(e.done)
		err := e.worker.Run(ctx)
		e.startMu.Lock()
		e.runErr = err
		e.startMu.Unlock()
		e.logger.Info("engine worker exited", "status", e.Status())
	}()
	return nil
}

// Wait blocks until the worker started by Start exits and returns its
// error. Wait returns nil at once when Start was never called.
func (e *ProtocolEngine) Wait(ctx context.Context) error {
	e.startMu.Lock()
	done := e.done
	e.startMu.Unlock()
	if done == nil {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
	}
	e.startMu.Lock()
	defer e.startMu.Unlock()
	return e.runErr
}

// WaitUntilComplete blocks until every queued command is complete, a
// command has failed, or the run is stopped.
func (e *ProtocolEngine) WaitUntilComplete(ctx context.Context) error {
	return e.store.WaitFor(ctx, func(v state.View) bool {
		return v.Commands.AllComplete() || v.Commands.IsStopped()
	})
}

// Finish stops the run and waits for the worker to exit.
func (e *ProtocolEngine) Finish(ctx context.Context, cause error) error {
	e.Stop(cause)
	return e.Wait(ctx)
}
