package commands

import (
	"context"

	"github.com/roach88/labengine/internal/ir"
)

type loadLabware struct {
	params    *ir.LoadLabwareParams
	equipment Equipment
}

func (c *loadLabware) Execute(ctx context.Context) (ir.CommandResult, error) {
	p := c.params
	loaded, err := c.equipment.LoadLabware(ctx, p.LoadName, p.Namespace, p.Version, p.Location, p.LabwareID)
	if err != nil {
		return nil, err
	}
	return &ir.LoadLabwareResult{
		LabwareID:  loaded.LabwareID,
		Definition: loaded.Definition,
		OffsetID:   loaded.OffsetID,
	}, nil
}

// addLabwareDefinition only reports the definition's identity; the labware
// state registers the definition from the succeeded command.
type addLabwareDefinition struct {
	params *ir.AddLabwareDefinitionParams
}

func (c *addLabwareDefinition) Execute(context.Context) (ir.CommandResult, error) {
	d := c.params.Definition
	return &ir.AddLabwareDefinitionResult{
		LoadName:  d.Parameters.LoadName,
		Namespace: d.Namespace,
		Version:   d.Version,
	}, nil
}

type loadPipette struct {
	params    *ir.LoadPipetteParams
	equipment Equipment
}

func (c *loadPipette) Execute(ctx context.Context) (ir.CommandResult, error) {
	id, err := c.equipment.LoadPipette(ctx, c.params.PipetteName, c.params.Mount, c.params.PipetteID)
	if err != nil {
		return nil, err
	}
	return &ir.LoadPipetteResult{PipetteID: id}, nil
}

type loadModule struct {
	params    *ir.LoadModuleParams
	equipment Equipment
}

func (c *loadModule) Execute(ctx context.Context) (ir.CommandResult, error) {
	id, err := c.equipment.LoadModule(ctx, c.params.Model, c.params.Location, c.params.ModuleID)
	if err != nil {
		return nil, err
	}
	return &ir.LoadModuleResult{ModuleID: id, Model: c.params.Model}, nil
}
