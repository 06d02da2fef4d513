package hardware

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/labengine/internal/ir"
	"github.com/roach88/labengine/internal/transport"
)

const (
	gcodeTerminator = "\r\n"
	gcodePrecision  = 3

	gcodeHome         = "G28.2"
	gcodeMove         = "G0"
	gcodeAbsolute     = "G90"
	gcodeRelative     = "G91"
	gcodeWaitForMoves = "M400"

	// tipPressDistance is how far the nozzle presses into a tip.
	tipPressDistance = 10.0
	// dropTipPosition is the plunger position that ejects a tip.
	dropTipPosition = plungerTravel + 2.5
)

// Sender performs one command exchange.
type Sender interface {
	Send(ctx context.Context, data string, retries int) (string, error)
}

// mountAxes maps a mount to its controller axis letters.
type mountAxes struct {
	z       string
	plunger string
}

var axesByMount = map[ir.MountType]mountAxes{
	ir.MountLeft:  {z: "Z", plunger: "B"},
	ir.MountRight: {z: "A", plunger: "C"},
}

// GCodeDriver drives a Smoothie-style motion controller.
type GCodeDriver struct {
	conn    Sender
	retries int

	mu          sync.Mutex
	instruments map[ir.MountType]ir.PipetteName
	positions   map[ir.MountType]ir.Point
	plungers    map[ir.MountType]float64
}

// NewGCodeDriver creates a driver sending each command with retries.
func NewGCodeDriver(conn Sender, retries int) *GCodeDriver {
	return &GCodeDriver{
		conn:        conn,
		retries:     retries,
		instruments: make(map[ir.MountType]ir.PipetteName),
		positions: map[ir.MountType]ir.Point{
			ir.MountLeft:  homePosition,
			ir.MountRight: homePosition,
		},
		plungers: make(map[ir.MountType]float64),
	}
}

func (d *GCodeDriver) cmd(gcode string) *transport.CommandBuilder {
	return transport.NewCommandBuilder(gcodeTerminator).AddGCode(gcode)
}

func (d *GCodeDriver) send(ctx context.Context, cmds ...*transport.CommandBuilder) error {
	for _, c := range cmds {
		if _, err := d.conn.Send(ctx, c.Build(), d.retries); err != nil {
			return err
		}
	}
	_, err := d.conn.Send(ctx, d.cmd(gcodeWaitForMoves).Build(), d.retries)
	return err
}

func (d *GCodeDriver) axes(mount ir.MountType) (mountAxes, error) {
	a, ok := axesByMount[mount]
	if !ok {
		return mountAxes{}, fmt.Errorf("%w: %q", ErrUnknownMount, mount)
	}
	return a, nil
}

func (d *GCodeDriver) instrument(mount ir.MountType) (mountAxes, float64, error) {
	a, err := d.axes(mount)
	if err != nil {
		return mountAxes{}, 0, err
	}
	name, ok := d.instruments[mount]
	if !ok {
		return mountAxes{}, 0, fmt.Errorf("%w: %s", ErrInstrumentNotCached, mount)
	}
	ratio, ok := ulPerMM(name)
	if !ok {
		return mountAxes{}, 0, fmt.Errorf("hardware: no plunger calibration for %s", name)
	}
	return a, ratio, nil
}

func (d *GCodeDriver) CacheInstrument(_ context.Context, mount ir.MountType, name ir.PipetteName) error {
	if _, err := d.axes(mount); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.instruments[mount] = name
	return nil
}

func (d *GCodeDriver) Home(ctx context.Context, axes []ir.MovementAxis) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	c := d.cmd(gcodeHome)
	if len(axes) == 0 {
		c.AddElement("X Y Z A B C")
	}
	for _, a := range axes {
		switch a {
		case ir.AxisX:
			c.AddElement("X")
		case ir.AxisY:
			c.AddElement("Y")
		case ir.AxisZ:
			c.AddElement("Z A")
		}
	}
	if err := d.send(ctx, c); err != nil {
		return err
	}
	for mount := range d.positions {
		d.positions[mount] = homePosition
	}
	return nil
}

func (d *GCodeDriver) MoveTo(ctx context.Context, mount ir.MountType, target ir.Point) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	a, err := d.axes(mount)
	if err != nil {
		return err
	}
	c := d.cmd(gcodeMove).
		AddFloat("X", target.X, gcodePrecision).
		AddFloat("Y", target.Y, gcodePrecision).
		AddFloat(a.z, target.Z, gcodePrecision)
	if err := d.send(ctx, c); err != nil {
		return err
	}
	d.positions[mount] = target
	return nil
}

func (d *GCodeDriver) MoveRel(ctx context.Context, mount ir.MountType, delta ir.Point) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	a, err := d.axes(mount)
	if err != nil {
		return err
	}
	c := d.cmd(gcodeMove)
	if delta.X != 0 {
		c.AddFloat("X", delta.X, gcodePrecision)
	}
	if delta.Y != 0 {
		c.AddFloat("Y", delta.Y, gcodePrecision)
	}
	if delta.Z != 0 {
		c.AddFloat(a.z, delta.Z, gcodePrecision)
	}
	if err := d.send(ctx, d.cmd(gcodeRelative), c, d.cmd(gcodeAbsolute)); err != nil {
		return err
	}
	d.positions[mount] = d.positions[mount].Add(delta)
	return nil
}

func (d *GCodeDriver) PickUpTip(ctx context.Context, mount ir.MountType, tipLength float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	a, _, err := d.instrument(mount)
	if err != nil {
		return err
	}
	press := d.cmd(gcodeMove).AddFloat(a.z, -tipPressDistance, gcodePrecision)
	retract := d.cmd(gcodeMove).AddFloat(a.z, tipPressDistance+tipLength, gcodePrecision)
	if err := d.send(ctx, d.cmd(gcodeRelative), press, retract, d.cmd(gcodeAbsolute)); err != nil {
		return err
	}
	p := d.positions[mount]
	p.Z += tipLength
	d.positions[mount] = p
	return nil
}

func (d *GCodeDriver) DropTip(ctx context.Context, mount ir.MountType) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	a, _, err := d.instrument(mount)
	if err != nil {
		return err
	}
	eject := d.cmd(gcodeMove).AddFloat(a.plunger, dropTipPosition, gcodePrecision)
	reset := d.cmd(gcodeMove).AddFloat(a.plunger, 0, gcodePrecision)
	if err := d.send(ctx, eject, reset); err != nil {
		return err
	}
	d.plungers[mount] = 0
	return nil
}

func (d *GCodeDriver) Aspirate(ctx context.Context, mount ir.MountType, volume, flowRate float64) error {
	return d.plunge(ctx, mount, volume, flowRate)
}

func (d *GCodeDriver) Dispense(ctx context.Context, mount ir.MountType, volume, flowRate float64) error {
	return d.plunge(ctx, mount, -volume, flowRate)
}

// plunge moves the plunger by volume µL at flowRate µL/s.
func (d *GCodeDriver) plunge(ctx context.Context, mount ir.MountType, volume, flowRate float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	a, ratio, err := d.instrument(mount)
	if err != nil {
		return err
	}
	target := max(0, d.plungers[mount]+volume/ratio)
	c := d.cmd(gcodeMove).AddFloat(a.plunger, target, gcodePrecision)
	if flowRate > 0 {
		c.AddFloat("F", flowRate/ratio*60, gcodePrecision)
	}
	if err := d.send(ctx, c); err != nil {
		return err
	}
	d.plungers[mount] = target
	return nil
}

func (d *GCodeDriver) Position(mount ir.MountType) (ir.Point, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.positions[mount]
	if !ok {
		return ir.Point{}, fmt.Errorf("%w: %q", ErrUnknownMount, mount)
	}
	return p, nil
}
