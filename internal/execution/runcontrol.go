package execution

import (
	"context"

	"github.com/roach88/labengine/internal/action"
	"github.com/roach88/labengine/internal/state"
)

// RunControlHandler pauses the run from inside a protocol.
type RunControlHandler struct {
	state      StateStore
	dispatcher Dispatcher
}

// Pause dispatches Pause and blocks until Play or Stop. It returns at
// once when the run is configured to ignore pauses.
func (h *RunControlHandler) Pause(ctx context.Context, _ string) error {
	if h.state.View().Config.IgnorePause {
		return nil
	}
	h.dispatcher.Dispatch(action.Pause{})
	return h.state.WaitFor(ctx, func(v state.View) bool {
		return v.Commands.IsRunning() || v.Commands.StopRequested()
	})
}
