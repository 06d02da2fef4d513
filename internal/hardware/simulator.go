package hardware

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/labengine/internal/ir"
)

// Hook runs before every simulated operation. A non-nil error fails the
// operation; a hook may also block to model a slow move.
type Hook func(ctx context.Context, op string) error

// Simulator is an in-memory API. All methods are safe for concurrent use.
type Simulator struct {
	mu          sync.Mutex
	hook        Hook
	instruments map[ir.MountType]ir.PipetteName
	positions   map[ir.MountType]ir.Point
	tips        map[ir.MountType]float64
	volumes     map[ir.MountType]float64
	ops         []string
}

// SimulatorOption configures a Simulator.
type SimulatorOption func(*Simulator)

// WithHook installs a hook run before every operation.
func WithHook(h Hook) SimulatorOption {
	return func(s *Simulator) {
		s.hook = h
	}
}

// NewSimulator creates a homed simulator with no instruments.
func NewSimulator(opts ...SimulatorOption) *Simulator {
	s := &Simulator{
		instruments: make(map[ir.MountType]ir.PipetteName),
		positions: map[ir.MountType]ir.Point{
			ir.MountLeft:  homePosition,
			ir.MountRight: homePosition,
		},
		tips:    make(map[ir.MountType]float64),
		volumes: make(map[ir.MountType]float64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ops returns every operation performed so far, in order.
func (s *Simulator) Ops() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ops...)
}

// Volume returns the simulated plunger volume on a mount.
func (s *Simulator) Volume(mount ir.MountType) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volumes[mount]
}

// run calls the hook outside the lock, then records op and applies fn
// under the lock.
func (s *Simulator) run(ctx context.Context, op string, fn func() error) error {
	if s.hook != nil {
		if err := s.hook(ctx, op); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn != nil {
		if err := fn(); err != nil {
			return err
		}
	}
	s.ops = append(s.ops, op)
	return nil
}

func (s *Simulator) requireInstrument(mount ir.MountType) error {
	if !mount.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownMount, mount)
	}
	if _, ok := s.instruments[mount]; !ok {
		return fmt.Errorf("%w: %s", ErrInstrumentNotCached, mount)
	}
	return nil
}

func (s *Simulator) CacheInstrument(ctx context.Context, mount ir.MountType, name ir.PipetteName) error {
	return s.run(ctx, fmt.Sprintf("cache %s %s", mount, name), func() error {
		if !mount.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownMount, mount)
		}
		s.instruments[mount] = name
		return nil
	})
}

func (s *Simulator) Home(ctx context.Context, axes []ir.MovementAxis) error {
	return s.run(ctx, fmt.Sprintf("home %v", axes), func() error {
		for mount, p := range s.positions {
			if len(axes) == 0 {
				s.positions[mount] = homePosition
				continue
			}
			for _, a := range axes {
				switch a {
				case ir.AxisX:
					p.X = homePosition.X
				case ir.AxisY:
					p.Y = homePosition.Y
				case ir.AxisZ:
					p.Z = homePosition.Z
				}
			}
			s.positions[mount] = p
		}
		return nil
	})
}

func (s *Simulator) MoveTo(ctx context.Context, mount ir.MountType, target ir.Point) error {
	return s.run(ctx, fmt.Sprintf("move %s (%.2f, %.2f, %.2f)", mount, target.X, target.Y, target.Z), func() error {
		if err := s.requireInstrument(mount); err != nil {
			return err
		}
		s.positions[mount] = target
		return nil
	})
}

func (s *Simulator) MoveRel(ctx context.Context, mount ir.MountType, delta ir.Point) error {
	return s.run(ctx, fmt.Sprintf("moveRel %s (%.2f, %.2f, %.2f)", mount, delta.X, delta.Y, delta.Z), func() error {
		if err := s.requireInstrument(mount); err != nil {
			return err
		}
		s.positions[mount] = s.positions[mount].Add(delta)
		return nil
	})
}

func (s *Simulator) PickUpTip(ctx context.Context, mount ir.MountType, tipLength float64) error {
	return s.run(ctx, fmt.Sprintf("pickUpTip %s %.2f", mount, tipLength), func() error {
		if err := s.requireInstrument(mount); err != nil {
			return err
		}
		s.tips[mount] = tipLength
		return nil
	})
}

func (s *Simulator) DropTip(ctx context.Context, mount ir.MountType) error {
	return s.run(ctx, fmt.Sprintf("dropTip %s", mount), func() error {
		if err := s.requireInstrument(mount); err != nil {
			return err
		}
		delete(s.tips, mount)
		s.volumes[mount] = 0
		return nil
	})
}

func (s *Simulator) Aspirate(ctx context.Context, mount ir.MountType, volume, flowRate float64) error {
	return s.run(ctx, fmt.Sprintf("aspirate %s %.2f @ %.2f", mount, volume, flowRate), func() error {
		if err := s.requireInstrument(mount); err != nil {
			return err
		}
		s.volumes[mount] += volume
		return nil
	})
}

func (s *Simulator) Dispense(ctx context.Context, mount ir.MountType, volume, flowRate float64) error {
	return s.run(ctx, fmt.Sprintf("dispense %s %.2f @ %.2f", mount, volume, flowRate), func() error {
		if err := s.requireInstrument(mount); err != nil {
			return err
		}
		s.volumes[mount] = max(0, s.volumes[mount]-volume)
		return nil
	})
}

func (s *Simulator) Position(mount ir.MountType) (ir.Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[mount]
	if !ok {
		return ir.Point{}, fmt.Errorf("%w: %q", ErrUnknownMount, mount)
	}
	return p, nil
}
