package commands

import (
	"context"

	"github.com/roach88/labengine/internal/ir"
)

type pause struct {
	params     *ir.PauseParams
	runControl RunControl
}

func (c *pause) Execute(ctx context.Context) (ir.CommandResult, error) {
	if err := c.runControl.Pause(ctx, c.params.Message); err != nil {
		return nil, err
	}
	return &ir.EmptyResult{}, nil
}
