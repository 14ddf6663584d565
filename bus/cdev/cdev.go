// Package cdev provides a 16-line data bus on a Linux GPIO character device.
//
// All 16 lines are requested as one line set, so a bus update is a single
// SET_VALUES ioctl. That is the fastest path available from userspace and
// qualifies as a bulk bus for the settle delay in package bus.
package cdev

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// Bus is a data bus backed by 16 lines of one gpiochip. Offsets[0] is D0.
type Bus struct {
	lines  *gpiocdev.Lines
	values []int
}

// Open requests the lines at offsets on chip (for example "gpiochip0") as
// outputs driven low.
func Open(chip string, offsets []int) (*Bus, error) {
	if len(offsets) != 16 {
		return nil, fmt.Errorf("cdev: need 16 line offsets, got %d", len(offsets))
	}
	l, err := gpiocdev.RequestLines(chip, offsets,
		gpiocdev.WithConsumer("ssd1963"),
		gpiocdev.AsOutput(make([]int, len(offsets))...))
	if err != nil {
		return nil, fmt.Errorf("cdev: request lines on %s: %w", chip, err)
	}
	return &Bus{lines: l, values: make([]int, len(offsets))}, nil
}

// Bulk reports true: the 16 lines are set with one ioctl.
func (b *Bus) Bulk() bool { return true }

// Write presents v on the lines.
func (b *Bus) Write(v uint16) error {
	for i := range b.values {
		b.values[i] = int(v>>i) & 1
	}
	return b.lines.SetValues(b.values)
}

// Read samples the lines.
func (b *Bus) Read() (uint16, error) {
	if err := b.lines.Values(b.values); err != nil {
		return 0, err
	}
	return pack(b.values), nil
}

// Input reconfigures the lines as inputs.
func (b *Bus) Input() error {
	return b.lines.Reconfigure(gpiocdev.AsInput)
}

// Output reconfigures the lines as outputs, driving the last written word.
func (b *Bus) Output() error {
	return b.lines.Reconfigure(gpiocdev.AsOutput(b.values...))
}

// Close releases the lines.
func (b *Bus) Close() error {
	return b.lines.Close()
}

func pack(values []int) uint16 {
	var v uint16
	for i, bit := range values {
		if bit != 0 {
			v |= 1 << i
		}
	}
	return v
}
