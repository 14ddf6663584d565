package bus

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/gpio"
)

// PinBus is a data bus made of 16 individual GPIO pins, updated one line at a
// time. Pins[0] is D0.
type PinBus struct {
	Pins [16]gpio.PinIO
	last uint16
}

// Write drives each pin to the matching bit of v.
func (p *PinBus) Write(v uint16) error {
	for i, pin := range p.Pins {
		if err := pin.Out(gpio.Level(v&(1<<i) != 0)); err != nil {
			return fmt.Errorf("D%d: %w", i, err)
		}
	}
	p.last = v
	return nil
}

// Read samples each pin into the matching bit.
func (p *PinBus) Read() (uint16, error) {
	var v uint16
	for i, pin := range p.Pins {
		if pin.Read() == gpio.High {
			v |= 1 << i
		}
	}
	return v, nil
}

// Input switches every pin to input without changing its pull.
func (p *PinBus) Input() error {
	for i, pin := range p.Pins {
		if err := pin.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
			return fmt.Errorf("D%d: %w", i, err)
		}
	}
	return nil
}

// Output switches every pin back to output, driving the last written word.
func (p *PinBus) Output() error {
	return p.Write(p.last)
}

// Group is the subset of gpio.Group used by GroupBus.
type Group interface {
	Out(value, mask gpio.GPIOValue) error
	Read(mask gpio.GPIOValue) (gpio.GPIOValue, error)
}

const mask16 gpio.GPIOValue = 0xFFFF

// GroupBus is a data bus backed by a gpio.Group whose first 16 pins are
// D0-D15. The whole word is written with one Out call.
type GroupBus struct {
	g   Group
	dir []gpio.PinIO
}

// NewGroupBus returns a GroupBus. dir lists the group's pins for direction
// switching; it may be nil for a write-only bus.
func NewGroupBus(g Group, dir []gpio.PinIO) (*GroupBus, error) {
	if g == nil {
		return nil, errors.New("bus: nil group")
	}
	if dir != nil && len(dir) != 16 {
		return nil, fmt.Errorf("bus: need 16 direction pins, got %d", len(dir))
	}
	return &GroupBus{g: g, dir: dir}, nil
}

// Bulk reports true: the group is updated with a single call.
func (g *GroupBus) Bulk() bool { return true }

// Write presents v on D0-D15.
func (g *GroupBus) Write(v uint16) error {
	return g.g.Out(gpio.GPIOValue(v), mask16)
}

// Read samples D0-D15.
func (g *GroupBus) Read() (uint16, error) {
	v, err := g.g.Read(mask16)
	return uint16(v & mask16), err
}

// Input switches the pins to input.
func (g *GroupBus) Input() error {
	if g.dir == nil {
		return ErrWriteOnly
	}
	for i, pin := range g.dir {
		if err := pin.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
			return fmt.Errorf("D%d: %w", i, err)
		}
	}
	return nil
}

// Output switches the pins back to output. Group.Out drives every masked pin
// as an output, so only the direction pins are touched here.
func (g *GroupBus) Output() error {
	for i, pin := range g.dir {
		if err := pin.Out(pin.Read()); err != nil {
			return fmt.Errorf("D%d: %w", i, err)
		}
	}
	return nil
}
