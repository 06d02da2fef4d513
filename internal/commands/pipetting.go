package commands

import (
	"context"

	"github.com/roach88/labengine/internal/ir"
)

type pickUpTip struct {
	params    *ir.PickUpTipParams
	pipetting Pipetting
}

func (c *pickUpTip) Execute(ctx context.Context) (ir.CommandResult, error) {
	if err := c.pipetting.PickUpTip(ctx, c.params.WellTarget); err != nil {
		return nil, err
	}
	return &ir.EmptyResult{}, nil
}

type dropTip struct {
	params    *ir.DropTipParams
	pipetting Pipetting
}

func (c *dropTip) Execute(ctx context.Context) (ir.CommandResult, error) {
	if err := c.pipetting.DropTip(ctx, c.params.WellTarget); err != nil {
		return nil, err
	}
	return &ir.EmptyResult{}, nil
}

type aspirate struct {
	params    *ir.AspirateParams
	pipetting Pipetting
}

func (c *aspirate) Execute(ctx context.Context) (ir.CommandResult, error) {
	volume, err := c.pipetting.Aspirate(ctx, c.params.WellTarget, c.params.Volume, c.params.FlowRate)
	if err != nil {
		return nil, err
	}
	return &ir.AspirateResult{Volume: volume}, nil
}

type dispense struct {
	params    *ir.DispenseParams
	pipetting Pipetting
}

func (c *dispense) Execute(ctx context.Context) (ir.CommandResult, error) {
	volume, err := c.pipetting.Dispense(ctx, c.params.WellTarget, c.params.Volume, c.params.FlowRate)
	if err != nil {
		return nil, err
	}
	return &ir.DispenseResult{Volume: volume}, nil
}
