// Package commands implements each command type against abstract handlers.
//
// An implementation translates command params into handler calls and
// builds the command result. Implementations never touch state directly;
// the executor reports their outcome through dispatched actions.
package commands

import (
	"context"

	"github.com/roach88/labengine/internal/ir"
)

// LoadedLabwareData is what the equipment handler reports for a load.
type LoadedLabwareData struct {
	LabwareID  string
	Definition ir.LabwareDefinition
	OffsetID   *string
}

// Equipment loads labware, pipettes and modules.
type Equipment interface {
	LoadLabware(ctx context.Context, loadName, namespace string, version int, location ir.LabwareLocation, labwareID string) (LoadedLabwareData, error)
	LoadPipette(ctx context.Context, name ir.PipetteName, mount ir.MountType, pipetteID string) (string, error)
	LoadModule(ctx context.Context, model ir.ModuleModel, location ir.LabwareLocation, moduleID string) (string, error)
}

// Movement moves pipettes.
type Movement interface {
	Home(ctx context.Context, axes []ir.MovementAxis) error
	MoveToWell(ctx context.Context, target ir.WellTarget) error
	MoveRelative(ctx context.Context, pipetteID string, axis ir.MovementAxis, distance float64) error
}

// Pipetting handles tips and liquid.
type Pipetting interface {
	PickUpTip(ctx context.Context, target ir.WellTarget) error
	DropTip(ctx context.Context, target ir.WellTarget) error
	Aspirate(ctx context.Context, target ir.WellTarget, volume, flowRate float64) (float64, error)
	Dispense(ctx context.Context, target ir.WellTarget, volume, flowRate float64) (float64, error)
}

// RunControl pauses the run from inside a protocol.
type RunControl interface {
	// Pause requests a pause and blocks until the run is resumed or stopped.
	Pause(ctx context.Context, message string) error
}

// Handlers is the set of handlers injected into every implementation.
type Handlers struct {
	Equipment  Equipment
	Movement   Movement
	Pipetting  Pipetting
	RunControl RunControl
}

// Implementation executes one command.
type Implementation interface {
	Execute(ctx context.Context) (ir.CommandResult, error)
}

// Factory builds the implementation for a command's params.
type Factory func(params ir.CommandParams, h Handlers) (Implementation, error)

// New is the default Factory.
func New(params ir.CommandParams, h Handlers) (Implementation, error) {
	switch p := params.(type) {
	case *ir.LoadLabwareParams:
		return &loadLabware{params: p, equipment: h.Equipment}, nil
	case *ir.AddLabwareDefinitionParams:
		return &addLabwareDefinition{params: p}, nil
	case *ir.LoadPipetteParams:
		return &loadPipette{params: p, equipment: h.Equipment}, nil
	case *ir.LoadModuleParams:
		return &loadModule{params: p, equipment: h.Equipment}, nil
	case *ir.HomeParams:
		return &home{params: p, movement: h.Movement}, nil
	case *ir.MoveToWellParams:
		return &moveToWell{params: p, movement: h.Movement}, nil
	case *ir.MoveRelativeParams:
		return &moveRelative{params: p, movement: h.Movement}, nil
	case *ir.PickUpTipParams:
		return &pickUpTip{params: p, pipetting: h.Pipetting}, nil
	case *ir.DropTipParams:
		return &dropTip{params: p, pipetting: h.Pipetting}, nil
	case *ir.AspirateParams:
		return &aspirate{params: p, pipetting: h.Pipetting}, nil
	case *ir.DispenseParams:
		return &dispense{params: p, pipetting: h.Pipetting}, nil
	case *ir.PauseParams:
		return &pause{params: p, runControl: h.RunControl}, nil
	}
	return nil, ir.NewEngineError(ir.ErrCodeUnsupportedCommand, "no implementation for params %T", params)
}
