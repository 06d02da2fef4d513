// Package state is the single source of truth for a protocol run.
//
// ARCHITECTURE:
//
// Reducers:
// Each sub-state (commands, labware, pipettes, modules) is a value with a
// pure handle(action) method that returns the next value. Maps and slices
// are copied on write, so a published snapshot is never mutated.
//
// Store:
// Store.HandleAction reduces one action at a time under a writer lock and
// publishes the result through an atomic pointer. Readers call View() and
// never block writers.
//
// Change notification:
// Every handled action closes the current Changed() channel and replaces
// it. Waiters grab the channel before checking a condition, then block on
// it, so no wake-up is lost between check and wait.
package state

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/roach88/labengine/internal/action"
	"github.com/roach88/labengine/internal/labware"
)

// Config is the run configuration visible to handlers.
type Config struct {
	// IgnorePause turns pause commands into no-ops.
	IgnorePause bool
	// StartPaused starts the run with draining disabled until Play.
	StartPaused bool
}

// State is a full snapshot of every sub-state.
type State struct {
	commands CommandState
	labware  LabwareState
	pipettes PipetteState
	modules  ModuleState
}

func (s State) handle(a action.Action) State {
	return State{
		commands: s.commands.handle(a),
		labware:  s.labware.handle(a),
		pipettes: s.pipettes.handle(a),
		modules:  s.modules.handle(a),
	}
}

// View is a snapshot-consistent, read-only accessor over State.
type View struct {
	Commands CommandView
	Labware  LabwareView
	Pipettes PipetteView
	Modules  ModuleView
	Geometry GeometryView
	Config   Config
}

// Store owns all run state. It implements action.Handler and must be the
// first handler registered on the dispatcher.
//
// Thread-safety model:
//   - HandleAction(): serialized by an internal lock
//   - View(), Changed(): safe from any goroutine, never block on writers
type Store struct {
	mu       sync.Mutex
	snapshot atomic.Pointer[State]
	config   Config

	changedMu sync.Mutex
	changed   chan struct{}
}

// Option configures a Store.
type Option func(*storeOptions)

type storeOptions struct {
	deck  *labware.Deck
	fixed []FixedLabware
}

// WithDeck sets the deck used for slot positions. Default: OT2Deck().
func WithDeck(deck *labware.Deck) Option {
	return func(o *storeOptions) {
		o.deck = deck
	}
}

// WithFixedLabware preloads labware present before any command runs.
func WithFixedLabware(fixed ...FixedLabware) Option {
	return func(o *storeOptions) {
		o.fixed = append(o.fixed, fixed...)
	}
}

// NewStore creates a store. The run starts draining unless
// cfg.StartPaused is set.
func NewStore(cfg Config, opts ...Option) *Store {
	o := storeOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.deck == nil {
		o.deck = labware.OT2Deck()
	}

	s := &Store{
		config:  cfg,
		changed: make(chan struct{}),
	}
	initial := State{
		commands: newCommandState(!cfg.StartPaused),
		labware:  newLabwareState(o.deck, o.fixed),
		pipettes: newPipetteState(),
		modules:  newModuleState(),
	}
	s.snapshot.Store(&initial)
	return s
}

// HandleAction reduces a into the next snapshot and wakes waiters.
// Reducer invariant violations panic.
func (s *Store) HandleAction(a action.Action) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.snapshot.Load().handle(a)
	s.snapshot.Store(&next)
	s.broadcast()
}

// View returns a view of the latest snapshot.
func (s *Store) View() View {
	st := s.snapshot.Load()
	lv := LabwareView{state: st.labware}
	mv := ModuleView{state: st.modules}
	return View{
		Commands: CommandView{state: st.commands},
		Labware:  lv,
		Pipettes: PipetteView{state: st.pipettes},
		Modules:  mv,
		Geometry: GeometryView{labware: lv, modules: mv},
		Config:   s.config,
	}
}

// Changed returns a channel closed by the next handled action.
func (s *Store) Changed() <-chan struct{} {
	s.changedMu.Lock()
	defer s.changedMu.Unlock()
	return s.changed
}

// WaitFor blocks until cond holds for the latest view, or ctx is done.
func (s *Store) WaitFor(ctx context.Context, cond func(View) bool) error {
	for {
		changed := s.Changed()
		if cond(s.View()) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

func (s *Store) broadcast() {
	s.changedMu.Lock()
	defer s.changedMu.Unlock()
	close(s.changed)
	s.changed = make(chan struct{})
}
