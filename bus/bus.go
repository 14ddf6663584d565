// Package bus drives an 8080-style parallel interface: a 16-bit data bus plus
// data/command select, write strobe, read strobe and chip select lines.
//
// A transaction presents one 16-bit word and latches it with a low pulse on
// WR (or samples the bus during a low pulse on RD). The package knows nothing
// about display semantics; see the ssd1963 package for the command set.
//
// Every line write can fail. A failure means a wiring or hardware defect and
// is reported as a *Fault, which callers are expected to propagate and not
// retry.
package bus

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Selector chooses between the command and data registers through the D/C
// line.
type Selector bool

const (
	Command Selector = false // D/C low
	Data    Selector = true  // D/C high
)

func (s Selector) String() string {
	if s == Data {
		return "data"
	}
	return "command"
}

// Line is a single output control line. Every gpio.PinOut satisfies it.
type Line interface {
	Out(l gpio.Level) error
}

// DataBus is the 16-line data bus.
type DataBus interface {
	// Write presents v on the 16 data lines, bit 0 on D0.
	Write(v uint16) error
	// Read samples the 16 data lines. The bus must be in input direction.
	Read() (uint16, error)
	// Input switches the data lines to input direction.
	Input() error
	// Output switches the data lines back to output direction.
	Output() error
}

// Bulker is implemented by data buses that update all 16 lines with a single
// register or syscall write. Such buses are fast enough to violate the
// controller's setup time, so Bus inserts a settle delay after each write.
type Bulker interface {
	Bulk() bool
}

// ErrFault is matched by every *Fault through errors.Is.
var ErrFault = errors.New("bus: line write failed")

// ErrWriteOnly is returned by data buses that cannot switch to input.
var ErrWriteOnly = errors.New("bus: data bus is write-only")

// Fault reports a failed line operation.
type Fault struct {
	Line string
	Err  error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("bus: %s: %v", f.Line, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

// Is makes errors.Is(err, ErrFault) hold for every Fault.
func (f *Fault) Is(target error) bool { return target == ErrFault }

// Pins groups the lines of the parallel interface.
type Pins struct {
	Data DataBus
	DC   Line // high for data, low for command
	WR   Line // low for write
	RD   Line // low for read, nil if the panel is write-only
	CS   Line // low to select, nil if tied low
	RST  Line // low to reset, nil if not connected
}

// Opts configures the transaction timing.
type Opts struct {
	// Settle is the delay between presenting a word and pulsing WR, and
	// between pulling RD low and sampling. Zero selects 1µs for bulk data
	// buses and no delay otherwise.
	Settle time.Duration
	// Strobe is the minimum low time of WR and RD beyond the settle time.
	Strobe time.Duration
	// Delay implements the settle and strobe waits. Defaults to Spin.
	Delay Delayer
	// Wait implements the reset and power-up waits. Defaults to Sleep.
	Wait Delayer
}

// Bus performs timed transactions on the parallel interface.
//
// Bus is not safe for concurrent use; the interface has a single owner.
type Bus struct {
	p      Pins
	settle time.Duration
	strobe time.Duration
	delay  Delayer
	wait   Delayer
	input  bool
}

// New returns a Bus with WR, RD and CS driven high and the data bus in
// output direction.
//
// opts can be nil to use defaults.
func New(p Pins, opts *Opts) (*Bus, error) {
	if p.Data == nil || p.DC == nil || p.WR == nil {
		return nil, errors.New("bus: data bus, DC and WR are required")
	}
	if opts == nil {
		opts = &Opts{}
	}
	b := &Bus{
		p:      p,
		settle: opts.Settle,
		strobe: opts.Strobe,
		delay:  opts.Delay,
		wait:   opts.Wait,
	}
	if b.delay == nil {
		b.delay = Spin{}
	}
	if b.wait == nil {
		b.wait = Sleep{}
	}
	if bk, ok := p.Data.(Bulker); ok && bk.Bulk() && b.settle == 0 {
		b.settle = time.Microsecond
	}

	if err := b.Output(); err != nil {
		return nil, err
	}
	if err := b.out("RD", p.RD, gpio.High); err != nil {
		return nil, err
	}
	if err := b.out("WR", p.WR, gpio.High); err != nil {
		return nil, err
	}
	if err := b.out("CS", p.CS, gpio.High); err != nil {
		return nil, err
	}
	return b, nil
}

// Write presents word on the data bus with D/C set from sel and latches it
// with a WR pulse.
func (b *Bus) Write(sel Selector, word uint16) error {
	if b.input {
		return &Fault{Line: "D0-D15", Err: errors.New("write while in input direction")}
	}
	if err := b.out("DC", b.p.DC, gpio.Level(sel)); err != nil {
		return err
	}
	if err := b.p.Data.Write(word); err != nil {
		return &Fault{Line: "D0-D15", Err: err}
	}
	if b.settle > 0 {
		b.delay.Delay(b.settle)
	}
	if err := b.out("WR", b.p.WR, gpio.Low); err != nil {
		return err
	}
	if b.strobe > 0 {
		b.delay.Delay(b.strobe)
	}
	return b.out("WR", b.p.WR, gpio.High)
}

// WriteCommand writes the command word cmd followed by one data word per
// parameter byte.
func (b *Bus) WriteCommand(cmd byte, params ...byte) error {
	if err := b.Write(Command, uint16(cmd)); err != nil {
		return err
	}
	for _, p := range params {
		if err := b.Write(Data, uint16(p)); err != nil {
			return err
		}
	}
	return nil
}

// Read pulses RD and samples the data bus. The bus must have been switched
// to input direction with Input.
func (b *Bus) Read(sel Selector) (uint16, error) {
	if b.p.RD == nil {
		return 0, ErrWriteOnly
	}
	if !b.input {
		return 0, &Fault{Line: "D0-D15", Err: errors.New("read while in output direction")}
	}
	if err := b.out("DC", b.p.DC, gpio.Level(sel)); err != nil {
		return 0, err
	}
	if err := b.out("RD", b.p.RD, gpio.Low); err != nil {
		return 0, err
	}
	if d := b.settle + b.strobe; d > 0 {
		b.delay.Delay(d)
	}
	v, err := b.p.Data.Read()
	if err != nil {
		return 0, &Fault{Line: "D0-D15", Err: err}
	}
	return v, b.out("RD", b.p.RD, gpio.High)
}

// ReadWords fills dst with consecutive reads, switching the data bus to
// input first and restoring output direction afterwards, also on error.
func (b *Bus) ReadWords(sel Selector, dst []uint16) (err error) {
	if err := b.Input(); err != nil {
		return err
	}
	defer func() {
		if oerr := b.Output(); err == nil {
			err = oerr
		}
	}()
	for i := range dst {
		if dst[i], err = b.Read(sel); err != nil {
			return err
		}
	}
	return nil
}

// Input switches the data lines to input direction.
func (b *Bus) Input() error {
	if b.p.RD == nil {
		return ErrWriteOnly
	}
	if err := b.p.Data.Input(); err != nil {
		if errors.Is(err, ErrWriteOnly) {
			return err
		}
		return &Fault{Line: "D0-D15", Err: err}
	}
	b.input = true
	return nil
}

// Output switches the data lines to output direction.
func (b *Bus) Output() error {
	if err := b.p.Data.Output(); err != nil {
		return &Fault{Line: "D0-D15", Err: err}
	}
	b.input = false
	return nil
}

// Select asserts chip select. It is a no-op when CS is tied low.
func (b *Bus) Select() error {
	return b.out("CS", b.p.CS, gpio.Low)
}

// Deselect releases chip select.
func (b *Bus) Deselect() error {
	return b.out("CS", b.p.CS, gpio.High)
}

// Reset holds RST low for hold, then releases it and waits for settle. It is
// a no-op when RST is not connected.
func (b *Bus) Reset(hold, settle time.Duration) error {
	if b.p.RST == nil {
		return nil
	}
	if err := b.out("RST", b.p.RST, gpio.Low); err != nil {
		return err
	}
	b.wait.Delay(hold)
	if err := b.out("RST", b.p.RST, gpio.High); err != nil {
		return err
	}
	b.wait.Delay(settle)
	return nil
}

// Wait blocks for a power-up or command processing time using the Wait
// Delayer.
func (b *Bus) Wait(d time.Duration) {
	b.wait.Delay(d)
}

// Readable reports whether the RD line is wired.
func (b *Bus) Readable() bool {
	return b.p.RD != nil
}

func (b *Bus) out(name string, l Line, v gpio.Level) error {
	if l == nil {
		return nil
	}
	if err := l.Out(v); err != nil {
		return &Fault{Line: name, Err: err}
	}
	return nil
}
