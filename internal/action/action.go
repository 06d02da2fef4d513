// Package action defines the closed set of state-changing Actions and the
// Dispatcher that fans each one out to registered handlers.
//
// Actions are transient values. Each dispatched Action is handed to every
// handler exactly once, in registration order, before Dispatch returns.
package action

import (
	"time"

	"github.com/roach88/labengine/internal/ir"
)

// Action is an immutable instruction describing a state change.
//
// The set is closed: QueueCommand, UpdateCommand, FailCommand, Play, Pause,
// Stop and AddLabwareOffset. Handlers switch on the concrete type.
type Action interface {
	isAction()
}

// QueueCommand appends a new QUEUED command built from Request.
type QueueCommand struct {
	CommandID string
	CreatedAt time.Time
	Request   ir.CommandRequest
}

// UpdateCommand replaces the stored command with the same id, in place.
type UpdateCommand struct {
	Command ir.Command
}

// FailCommand marks a command FAILED and records the error under ErrorID.
type FailCommand struct {
	CommandID string
	ErrorID   string
	FailedAt  time.Time
	Err       error
}

// Play resumes queue draining unless the engine has been stopped.
type Play struct{}

// Pause stops queue draining after the in-flight command.
type Pause struct{}

// Stop latches the engine stopped. ErrorDetails is set when the stop was
// caused by an error.
type Stop struct {
	ErrorDetails *StopErrorDetails
}

// StopErrorDetails carries the error that caused a Stop.
type StopErrorDetails struct {
	ErrorID   string
	CreatedAt time.Time
	Err       error
}

// AddLabwareOffset registers a labware offset.
type AddLabwareOffset struct {
	OffsetID  string
	CreatedAt time.Time
	Request   ir.LabwareOffsetCreate
}

func (QueueCommand) isAction()     {}
func (UpdateCommand) isAction()    {}
func (FailCommand) isAction()      {}
func (Play) isAction()             {}
func (Pause) isAction()            {}
func (Stop) isAction()             {}
func (AddLabwareOffset) isAction() {}

// Name returns a short name for a, used in logs and the run journal.
func Name(a Action) string {
	switch a.(type) {
	case QueueCommand:
		return "queueCommand"
	case UpdateCommand:
		return "updateCommand"
	case FailCommand:
		return "failCommand"
	case Play:
		return "play"
	case Pause:
		return "pause"
	case Stop:
		return "stop"
	case AddLabwareOffset:
		return "addLabwareOffset"
	}
	return "unknown"
}
