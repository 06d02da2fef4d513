package commands

import (
	"context"

	"github.com/roach88/labengine/internal/ir"
)

type home struct {
	params   *ir.HomeParams
	movement Movement
}

func (c *home) Execute(ctx context.Context) (ir.CommandResult, error) {
	if err := c.movement.Home(ctx, c.params.Axes); err != nil {
		return nil, err
	}
	return &ir.EmptyResult{}, nil
}

type moveToWell struct {
	params   *ir.MoveToWellParams
	movement Movement
}

func (c *moveToWell) Execute(ctx context.Context) (ir.CommandResult, error) {
	if err := c.movement.MoveToWell(ctx, c.params.WellTarget); err != nil {
		return nil, err
	}
	return &ir.EmptyResult{}, nil
}

type moveRelative struct {
	params   *ir.MoveRelativeParams
	movement Movement
}

func (c *moveRelative) Execute(ctx context.Context) (ir.CommandResult, error) {
	if err := c.movement.MoveRelative(ctx, c.params.PipetteID, c.params.Axis, c.params.Distance); err != nil {
		return nil, err
	}
	return &ir.EmptyResult{}, nil
}
