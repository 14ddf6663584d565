package bus

import (
	"time"

	"periph.io/x/host/v3/cpu"
)

// Delayer waits for a duration with at least microsecond granularity.
type Delayer interface {
	Delay(d time.Duration)
}

// DelayFunc adapts a function to the Delayer interface.
type DelayFunc func(d time.Duration)

// Delay calls f(d).
func (f DelayFunc) Delay(d time.Duration) { f(d) }

// Spin busy-waits with cpu.Nanospin. Strobe and settle times are well below
// the scheduler's sleep resolution.
type Spin struct{}

// Delay spins until d has elapsed.
func (Spin) Delay(d time.Duration) {
	cpu.Nanospin(d)
}

// Sleep yields the processor for the reset and power-up waits, which run in
// the millisecond range.
type Sleep struct{}

// Delay sleeps for d.
func (Sleep) Delay(d time.Duration) {
	time.Sleep(d)
}
