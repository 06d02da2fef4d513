package state

import (
	"fmt"
	"slices"

	"github.com/roach88/labengine/internal/action"
	"github.com/roach88/labengine/internal/ir"
)

// CommandState is the command history and run-control flags.
//
// INVARIANTS:
//   - order lists every command id once, in enqueue order; updates replace
//     the entry in byID and never move it
//   - stopRequested never reverts to false
type CommandState struct {
	isRunning     bool
	stopRequested bool

	order []string
	byID  map[string]ir.Command

	errorOrder []string
	errorsByID map[string]ir.ErrorOccurrence
}

func newCommandState(isRunning bool) CommandState {
	return CommandState{
		isRunning:  isRunning,
		byID:       map[string]ir.Command{},
		errorsByID: map[string]ir.ErrorOccurrence{},
	}
}

// handle returns the state after a. The receiver is not modified.
func (s CommandState) handle(a action.Action) CommandState {
	switch a := a.(type) {
	case action.QueueCommand:
		if _, exists := s.byID[a.CommandID]; exists {
			panic(fmt.Sprintf("state: command %s already queued", a.CommandID))
		}
		s.order = append(slices.Clip(s.order), a.CommandID)
		s.byID = withEntry(s.byID, a.CommandID, ir.Command{
			ID:          a.CommandID,
			CreatedAt:   a.CreatedAt,
			CommandType: a.Request.CommandType,
			Params:      a.Request.Params,
			Status:      ir.CommandQueued,
		})

	case action.UpdateCommand:
		prev, exists := s.byID[a.Command.ID]
		if !exists {
			panic(fmt.Sprintf("state: update of unknown command %s", a.Command.ID))
		}
		// A stop is final: a queued command can no longer start.
		if s.stopRequested && prev.Status == ir.CommandQueued && a.Command.Status == ir.CommandRunning {
			return s
		}
		s.byID = withEntry(s.byID, a.Command.ID, a.Command)

	case action.FailCommand:
		prev, exists := s.byID[a.CommandID]
		if !exists {
			panic(fmt.Sprintf("state: failure of unknown command %s", a.CommandID))
		}
		failedAt := a.FailedAt
		errorID := a.ErrorID
		prev.Status = ir.CommandFailed
		prev.CompletedAt = &failedAt
		prev.ErrorID = &errorID
		prev.Result = nil
		s.byID = withEntry(s.byID, a.CommandID, prev)
		s = s.withError(ir.NewErrorOccurrence(a.ErrorID, a.FailedAt, a.Err))

	case action.Play:
		if !s.stopRequested {
			s.isRunning = true
		}

	case action.Pause:
		s.isRunning = false

	case action.Stop:
		s.isRunning = false
		s.stopRequested = true
		// Engine errors are captured by FailCommand; only record the rest.
		if d := a.ErrorDetails; d != nil && d.Err != nil && !ir.IsEngineError(d.Err) {
			s = s.withError(ir.NewErrorOccurrence(d.ErrorID, d.CreatedAt, d.Err))
		}
	}
	return s
}

func (s CommandState) withError(occ ir.ErrorOccurrence) CommandState {
	if _, exists := s.errorsByID[occ.ID]; !exists {
		s.errorOrder = append(slices.Clip(s.errorOrder), occ.ID)
	}
	s.errorsByID = withEntry(s.errorsByID, occ.ID, occ)
	return s
}

// withEntry returns a copy of m with k set to v. Each call is O(len(m)), so
// a run of n commands copies O(n²) entries in total; that is the price of
// snapshots readers can hold without locking, and protocols stay small.
func withEntry[K comparable, V any](m map[K]V, k K, v V) map[K]V {
	out := make(map[K]V, len(m)+1)
	for key, val := range m {
		out[key] = val
	}
	out[k] = v
	return out
}

// CommandView is a read-only view of CommandState.
type CommandView struct {
	state CommandState
}

// Get returns a command by id.
func (v CommandView) Get(commandID string) (ir.Command, error) {
	cmd, ok := v.state.byID[commandID]
	if !ok {
		return ir.Command{}, ir.NewCommandDoesNotExistError(commandID)
	}
	return cmd, nil
}

// All returns every command, oldest first. Updating a command keeps its
// place in the ordering.
func (v CommandView) All() []ir.Command {
	out := make([]ir.Command, 0, len(v.state.order))
	for _, id := range v.state.order {
		out = append(out, v.state.byID[id])
	}
	return out
}

// Len returns the number of commands.
func (v CommandView) Len() int {
	return len(v.state.order)
}

// Errors returns every recorded error, oldest first.
func (v CommandView) Errors() []ir.ErrorOccurrence {
	out := make([]ir.ErrorOccurrence, 0, len(v.state.errorOrder))
	for _, id := range v.state.errorOrder {
		out = append(out, v.state.errorsByID[id])
	}
	return out
}

// Error returns a recorded error by id.
func (v CommandView) Error(errorID string) (ir.ErrorOccurrence, bool) {
	occ, ok := v.state.errorsByID[errorID]
	return occ, ok
}

// NextQueued returns the id of the earliest command eligible to run.
//
// Returns ok=false when paused, when nothing is queued, or when an earlier
// command is still RUNNING. Fails with ENGINE_STOPPED when a stop has been
// requested or when an earlier command FAILED.
func (v CommandView) NextQueued() (string, bool, error) {
	if v.state.stopRequested {
		return "", false, ir.NewEngineStoppedError("engine was stopped")
	}
	if !v.state.isRunning {
		return "", false, nil
	}
	for _, id := range v.state.order {
		switch v.state.byID[id].Status {
		case ir.CommandFailed:
			return "", false, ir.NewEngineStoppedError("previous command failed")
		case ir.CommandRunning:
			return "", false, nil
		case ir.CommandQueued:
			return id, true, nil
		}
	}
	return "", false, nil
}

// IsRunning reports whether queued commands should be executed.
func (v CommandView) IsRunning() bool {
	return v.state.isRunning
}

// StopRequested reports whether a stop has been requested. A command may
// still be executing.
func (v CommandView) StopRequested() bool {
	return v.state.stopRequested
}

// IsStopped reports whether a stop has been requested and no command is
// still running.
func (v CommandView) IsStopped() bool {
	return v.state.stopRequested && !v.any(ir.CommandRunning)
}

// IsComplete reports whether a command is terminal, or will never run
// because an earlier command FAILED.
func (v CommandView) IsComplete(commandID string) bool {
	for _, id := range v.state.order {
		status := v.state.byID[id].Status
		failed := status == ir.CommandFailed
		if id == commandID || failed {
			return status == ir.CommandSucceeded || failed
		}
	}
	return false
}

// AllComplete reports whether every command SUCCEEDED, or any FAILED.
func (v CommandView) AllComplete() bool {
	for _, id := range v.state.order {
		switch v.state.byID[id].Status {
		case ir.CommandFailed:
			return true
		case ir.CommandSucceeded:
		default:
			return false
		}
	}
	return true
}

// ValidateActionAllowed rejects Play and Pause once the engine is stopped.
// Stop is always allowed.
func (v CommandView) ValidateActionAllowed(a action.Action) error {
	if !v.state.stopRequested {
		return nil
	}
	switch a.(type) {
	case action.Play:
		return ir.NewEngineStoppedError("Cannot play a stopped engine.")
	case action.Pause:
		return ir.NewEngineStoppedError("Cannot pause a stopped engine.")
	}
	return nil
}

// Status derives the engine status.
func (v CommandView) Status() ir.EngineStatus {
	switch {
	case v.state.stopRequested:
		switch {
		case len(v.state.errorOrder) > 0:
			return ir.EngineFailed
		case v.all(ir.CommandSucceeded):
			return ir.EngineSucceeded
		case v.any(ir.CommandRunning):
			return ir.EngineStopRequested
		default:
			return ir.EngineStopped
		}

	case v.state.isRunning:
		if v.any(ir.CommandRunning) || v.any(ir.CommandQueued) {
			return ir.EngineRunning
		}
		return ir.EngineIdle

	default:
		if v.any(ir.CommandRunning) {
			return ir.EnginePauseRequested
		}
		return ir.EnginePaused
	}
}

// Running returns the id of the RUNNING command, if any.
func (v CommandView) Running() (string, bool) {
	for _, id := range v.state.order {
		if v.state.byID[id].Status == ir.CommandRunning {
			return id, true
		}
	}
	return "", false
}

func (v CommandView) any(status ir.CommandStatus) bool {
	for _, cmd := range v.state.byID {
		if cmd.Status == status {
			return true
		}
	}
	return false
}

func (v CommandView) all(status ir.CommandStatus) bool {
	for _, cmd := range v.state.byID {
		if cmd.Status != status {
			return false
		}
	}
	return true
}
