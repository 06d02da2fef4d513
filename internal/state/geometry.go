package state

import (
	"github.com/roach88/labengine/internal/ir"
	"github.com/roach88/labengine/internal/labware"
)

// GeometryView computes deck positions from labware and module state.
type GeometryView struct {
	labware LabwareView
	modules ModuleView
}

// LabwareOrigin returns the calibrated origin of loaded labware: the slot
// position, plus the module surface when stacked on a module, plus the
// linked offset vector.
func (g GeometryView) LabwareOrigin(labwareID string) (ir.Point, error) {
	lw, err := g.labware.Get(labwareID)
	if err != nil {
		return ir.Point{}, err
	}

	var base ir.Point
	if lw.Location.IsModule() {
		mod, err := g.modules.Get(lw.Location.ModuleID)
		if err != nil {
			return ir.Point{}, err
		}
		slot, err := g.labware.SlotPosition(mod.Location.SlotName)
		if err != nil {
			return ir.Point{}, err
		}
		base = slot.Add(labware.ModuleLabwareOffset(mod.Model))
	} else {
		base, err = g.labware.SlotPosition(lw.Location.SlotName)
		if err != nil {
			return ir.Point{}, err
		}
	}

	vec, err := g.labware.OffsetVector(labwareID)
	if err != nil {
		return ir.Point{}, err
	}
	return base.Add(vec.Point()), nil
}

// WellPosition returns the absolute position of a location within a well.
func (g GeometryView) WellPosition(labwareID, wellName string, loc ir.WellLocation) (ir.Point, error) {
	origin, err := g.LabwareOrigin(labwareID)
	if err != nil {
		return ir.Point{}, err
	}
	well, err := g.labware.WellDefinition(labwareID, wellName)
	if err != nil {
		return ir.Point{}, err
	}

	z := well.Z
	if loc.Origin != ir.WellOriginBottom {
		z += well.Depth
	}

	return origin.Add(ir.Point{
		X: well.X + loc.Offset.X,
		Y: well.Y + loc.Offset.Y,
		Z: z + loc.Offset.Z,
	}), nil
}
