// Package hardware is the robot surface beneath the command handlers.
//
// Two implementations exist: Simulator keeps positions in memory and is
// used for dry runs and tests; GCodeDriver talks to a motion controller
// over a transport.Connection.
package hardware

import (
	"context"
	"errors"

	"github.com/roach88/labengine/internal/ir"
)

var (
	// ErrInstrumentNotCached is returned when a mount has no pipette.
	ErrInstrumentNotCached = errors.New("hardware: no instrument cached on mount")

	// ErrUnknownMount is returned for a mount outside left/right.
	ErrUnknownMount = errors.New("hardware: unknown mount")
)

// API is implemented by every hardware backend. Calls block until the
// motion is complete.
type API interface {
	// CacheInstrument records the pipette model on a mount.
	CacheInstrument(ctx context.Context, mount ir.MountType, name ir.PipetteName) error
	Home(ctx context.Context, axes []ir.MovementAxis) error
	// MoveTo moves the mount's nozzle to an absolute deck point.
	MoveTo(ctx context.Context, mount ir.MountType, target ir.Point) error
	// MoveRel moves the mount's nozzle by delta.
	MoveRel(ctx context.Context, mount ir.MountType, delta ir.Point) error
	PickUpTip(ctx context.Context, mount ir.MountType, tipLength float64) error
	DropTip(ctx context.Context, mount ir.MountType) error
	Aspirate(ctx context.Context, mount ir.MountType, volume, flowRate float64) error
	Dispense(ctx context.Context, mount ir.MountType, volume, flowRate float64) error
	// Position returns the last commanded nozzle position.
	Position(mount ir.MountType) (ir.Point, error)
}

// homePosition is where every mount parks after homing.
var homePosition = ir.Point{X: 418, Y: 353, Z: 218}

// plungerTravel is the usable plunger stroke in millimetres.
const plungerTravel = 19.5

func ulPerMM(name ir.PipetteName) (float64, bool) {
	spec, ok := ir.LookupPipetteSpec(name)
	if !ok {
		return 0, false
	}
	return spec.MaxVolume / plungerTravel, true
}
