package execution

import (
	"context"
	"sync"

	"github.com/roach88/labengine/internal/hardware"
	"github.com/roach88/labengine/internal/ir"
)

// MovementHandler moves pipettes. motion is held for every hardware call
// so only one physical movement is in flight.
type MovementHandler struct {
	state    StateStore
	hardware hardware.API
	motion   *sync.Mutex
}

func (h *MovementHandler) Home(ctx context.Context, axes []ir.MovementAxis) error {
	h.motion.Lock()
	defer h.motion.Unlock()
	return h.hardware.Home(ctx, axes)
}

func (h *MovementHandler) MoveToWell(ctx context.Context, target ir.WellTarget) error {
	h.motion.Lock()
	defer h.motion.Unlock()
	_, err := h.moveToWell(ctx, target)
	return err
}

func (h *MovementHandler) MoveRelative(ctx context.Context, pipetteID string, axis ir.MovementAxis, distance float64) error {
	pipette, err := h.state.View().Pipettes.Get(pipetteID)
	if err != nil {
		return err
	}

	var delta ir.Point
	switch axis {
	case ir.AxisX:
		delta.X = distance
	case ir.AxisY:
		delta.Y = distance
	case ir.AxisZ:
		delta.Z = distance
	default:
		return ir.NewEngineError(ir.ErrCodeInvalidCommandRequest, "unknown axis %q", axis)
	}

	h.motion.Lock()
	defer h.motion.Unlock()
	return h.hardware.MoveRel(ctx, pipette.Mount, delta)
}

// moveToWell resolves the target to a deck point and moves there. The
// caller holds the motion lock.
func (h *MovementHandler) moveToWell(ctx context.Context, target ir.WellTarget) (ir.LoadedPipette, error) {
	view := h.state.View()
	pipette, err := view.Pipettes.Get(target.PipetteID)
	if err != nil {
		return ir.LoadedPipette{}, err
	}
	point, err := view.Geometry.WellPosition(target.LabwareID, target.WellName, target.WellLocation)
	if err != nil {
		return ir.LoadedPipette{}, err
	}
	if err := h.hardware.MoveTo(ctx, pipette.Mount, point); err != nil {
		return ir.LoadedPipette{}, err
	}
	return pipette, nil
}
