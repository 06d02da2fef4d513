// Package execution runs queued commands against hardware.
//
// ARCHITECTURE:
//
// Handlers:
// EquipmentHandler, MovementHandler, PipettingHandler and RunControlHandler
// implement the commands package interfaces. They read the latest state
// view for validation and geometry, and call the hardware API. Every
// physical motion is taken under one shared motion lock.
//
// CommandExecutor:
// Executes exactly one command: dispatches RUNNING, runs the
// implementation, then dispatches either SUCCEEDED or FailCommand.
//
// QueueWorker:
// Drains the queue in order on a single goroutine and sleeps on the
// store's change channel when nothing is runnable.
package execution

import (
	"context"
	"sync"
	"time"

	"github.com/roach88/labengine/internal/action"
	"github.com/roach88/labengine/internal/commands"
	"github.com/roach88/labengine/internal/hardware"
	"github.com/roach88/labengine/internal/labware"
	"github.com/roach88/labengine/internal/state"
)

// StateStore is the read side of state.Store.
type StateStore interface {
	View() state.View
	Changed() <-chan struct{}
	WaitFor(ctx context.Context, cond func(state.View) bool) error
}

// Dispatcher delivers actions to the store and reactors.
type Dispatcher interface {
	Dispatch(a action.Action)
}

// ConditionalDispatcher can also deliver an action only when a condition,
// checked under the dispatch lock, holds.
type ConditionalDispatcher interface {
	Dispatcher
	DispatchIf(cond func() bool, a action.Action) bool
}

// IDGenerator creates unique ids for commands, errors and equipment.
type IDGenerator interface {
	Generate() string
}

// Clock supplies timestamps.
type Clock interface {
	Now() time.Time
}

// NewHandlers builds the handler set shared by every command
// implementation. All handlers share one motion lock.
func NewHandlers(store StateStore, dispatcher Dispatcher, hw hardware.API, library *labware.Library, ids IDGenerator) commands.Handlers {
	movement := &MovementHandler{
		state:    store,
		hardware: hw,
		motion:   &sync.Mutex{},
	}
	return commands.Handlers{
		Equipment: &EquipmentHandler{
			state:    store,
			hardware: hw,
			library:  library,
			ids:      ids,
		},
		Movement: movement,
		Pipetting: &PipettingHandler{
			state:    store,
			hardware: hw,
			movement: movement,
		},
		RunControl: &RunControlHandler{
			state:      store,
			dispatcher: dispatcher,
		},
	}
}
