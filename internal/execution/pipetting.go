package execution

import (
	"context"

	"github.com/roach88/labengine/internal/hardware"
	"github.com/roach88/labengine/internal/ir"
)

// PipettingHandler handles tips and liquid. Every operation first moves
// to the target well under the shared motion lock.
type PipettingHandler struct {
	state    StateStore
	hardware hardware.API
	movement *MovementHandler
}

func (h *PipettingHandler) PickUpTip(ctx context.Context, target ir.WellTarget) error {
	view := h.state.View()
	if _, ok := view.Pipettes.AttachedTip(target.PipetteID); ok {
		return ir.NewEngineError(ir.ErrCodeTipAlreadyAttached, "pipette %s already has a tip", target.PipetteID)
	}
	isTiprack, err := view.Labware.IsTiprack(target.LabwareID)
	if err != nil {
		return err
	}
	if !isTiprack {
		return ir.NewEngineError(ir.ErrCodeLabwareIsNotTiprack, "labware %s is not a tip rack", target.LabwareID)
	}
	tipLength, err := view.Labware.TipLength(target.LabwareID)
	if err != nil {
		return err
	}

	h.movement.motion.Lock()
	defer h.movement.motion.Unlock()

	pipette, err := h.movement.moveToWell(ctx, target)
	if err != nil {
		return err
	}
	return h.hardware.PickUpTip(ctx, pipette.Mount, tipLength)
}

func (h *PipettingHandler) DropTip(ctx context.Context, target ir.WellTarget) error {
	h.movement.motion.Lock()
	defer h.movement.motion.Unlock()

	pipette, err := h.movement.moveToWell(ctx, target)
	if err != nil {
		return err
	}
	return h.hardware.DropTip(ctx, pipette.Mount)
}

func (h *PipettingHandler) Aspirate(ctx context.Context, target ir.WellTarget, volume, flowRate float64) (float64, error) {
	view := h.state.View()
	spec, err := view.Pipettes.Spec(target.PipetteID)
	if err != nil {
		return 0, err
	}
	if _, ok := view.Pipettes.AttachedTip(target.PipetteID); !ok {
		return 0, ir.NewEngineError(ir.ErrCodeTipNotAttached, "pipette %s has no tip", target.PipetteID)
	}
	held := view.Pipettes.AspiratedVolume(target.PipetteID)
	if held+volume > spec.MaxVolume {
		return 0, ir.NewEngineError(ir.ErrCodeInvalidVolume,
			"cannot aspirate %g µL: pipette %s holds %g µL of %g µL", volume, target.PipetteID, held, spec.MaxVolume)
	}
	if flowRate <= 0 {
		flowRate = spec.DefaultAspirateFlowRate
	}

	h.movement.motion.Lock()
	defer h.movement.motion.Unlock()

	pipette, err := h.movement.moveToWell(ctx, target)
	if err != nil {
		return 0, err
	}
	if err := h.hardware.Aspirate(ctx, pipette.Mount, volume, flowRate); err != nil {
		return 0, err
	}
	return volume, nil
}

func (h *PipettingHandler) Dispense(ctx context.Context, target ir.WellTarget, volume, flowRate float64) (float64, error) {
	view := h.state.View()
	spec, err := view.Pipettes.Spec(target.PipetteID)
	if err != nil {
		return 0, err
	}
	held := view.Pipettes.AspiratedVolume(target.PipetteID)
	if volume > held {
		return 0, ir.NewEngineError(ir.ErrCodeInvalidVolume,
			"cannot dispense %g µL: pipette %s holds %g µL", volume, target.PipetteID, held)
	}
	if flowRate <= 0 {
		flowRate = spec.DefaultDispenseFlowRate
	}

	h.movement.motion.Lock()
	defer h.movement.motion.Unlock()

	pipette, err := h.movement.moveToWell(ctx, target)
	if err != nil {
		return 0, err
	}
	if err := h.hardware.Dispense(ctx, pipette.Mount, volume, flowRate); err != nil {
		return 0, err
	}
	return volume, nil
}
