// Package ssd1963test implements a simulated SSD1963 attached to a parallel
// bus, for tests and desktop previews.
//
// Panel decodes the line activity produced by bus.Bus: words are latched on
// the rising edge of WR while CS is low, D/C selects command or data, and a
// falling edge of RD presents the next pixel of a memory read. The commands
// that affect frame memory addressing are interpreted; every command is
// recorded with its parameters.
package ssd1963test

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/devices/v3/ssd1963/bus"
	"periph.io/x/devices/v3/ssd1963/rgb565"
)

const exchangeBit = 1 << 5

// paramCount lists the parameter counts of the commands the panel applies.
var paramCount = map[byte]int{
	0x2A: 4,
	0x2B: 4,
	0x33: 6,
	0x36: 1,
	0x37: 2,
}

// Command is one decoded command. Words counts the memory words written
// after 0x2C or read after 0x2E; they are not stored in Params.
type Command struct {
	Op     byte
	Params []byte
	Words  int
}

func (c Command) String() string {
	return fmt.Sprintf("%#02x % x", c.Op, c.Params)
}

// Panel is a simulated SSD1963 with its frame memory.
//
// Panel is safe for concurrent use so a viewer can snapshot the frame while
// another goroutine drives the bus.
type Panel struct {
	mu sync.Mutex
	w  int
	h  int

	frame []rgb565.Color
	log   []Command
	cur   *Command
	quiet bool // cur predates the last ClearLog

	dc, wr, rd, cs gpio.Level
	data           uint16
	input          bool
	latch          uint16

	mode           byte
	xs, xe, ys, ye uint16
	x, y           uint16
	displayOn      bool
	inverted       bool
	scrollArea     [3]uint16
	scrollStart    uint16

	writes int
	faults map[string]error
}

// New returns a panel of w x h pixels, cleared to black.
func New(w, h int) *Panel {
	p := &Panel{
		w:      w,
		h:      h,
		frame:  make([]rgb565.Color, w*h),
		wr:     gpio.High,
		rd:     gpio.High,
		cs:     gpio.High,
		faults: map[string]error{},
	}
	p.reset()
	return p
}

// Pins returns the panel's lines, ready for bus.New.
func (p *Panel) Pins() bus.Pins {
	return bus.Pins{
		Data: p,
		DC:   &line{p: p, name: "DC"},
		WR:   &line{p: p, name: "WR"},
		RD:   &line{p: p, name: "RD"},
		CS:   &line{p: p, name: "CS"},
		RST:  &line{p: p, name: "RST"},
	}
}

// Fail makes every following operation on the named line return err. Line
// names are DC, WR, RD, CS, RST and DATA. A nil err clears the failure.
func (p *Panel) Fail(name string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.faults, name)
		return
	}
	p.faults[name] = err
}

// Write implements bus.DataBus.
func (p *Panel) Write(v uint16) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.faults["DATA"]; err != nil {
		return err
	}
	if p.input {
		return errors.New("ssd1963test: data bus driven while in input direction")
	}
	p.data = v
	return nil
}

// Read implements bus.DataBus.
func (p *Panel) Read() (uint16, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.faults["DATA"]; err != nil {
		return 0, err
	}
	if !p.input {
		return 0, errors.New("ssd1963test: data bus sampled while in output direction")
	}
	if p.rd != gpio.Low {
		return 0, errors.New("ssd1963test: data bus sampled with RD high")
	}
	return p.latch, nil
}

// Input implements bus.DataBus.
func (p *Panel) Input() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.faults["DATA"]; err != nil {
		return err
	}
	p.input = true
	return nil
}

// Output implements bus.DataBus.
func (p *Panel) Output() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.faults["DATA"]; err != nil {
		return err
	}
	p.input = false
	return nil
}

type line struct {
	p    *Panel
	name string
}

func (l *line) Out(v gpio.Level) error {
	return l.p.out(l.name, v)
}

func (l *line) String() string {
	return "ssd1963test." + l.name
}

func (p *Panel) out(name string, v gpio.Level) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.faults[name]; err != nil {
		return err
	}
	switch name {
	case "DC":
		p.dc = v
	case "CS":
		p.cs = v
	case "RST":
		if v == gpio.Low {
			p.flush()
			p.reset()
		}
	case "WR":
		rising := p.wr == gpio.Low && v == gpio.High
		p.wr = v
		if rising && p.cs == gpio.Low {
			p.latchWrite()
		}
	case "RD":
		falling := p.rd == gpio.High && v == gpio.Low
		p.rd = v
		if falling && p.cs == gpio.Low {
			p.latchRead()
		}
	}
	return nil
}

func (p *Panel) reset() {
	p.cur = nil
	p.mode = 0
	p.xs, p.xe = 0, uint16(p.w-1)
	p.ys, p.ye = 0, uint16(p.h-1)
	p.x, p.y = 0, 0
	p.displayOn = false
	p.inverted = false
	p.scrollArea = [3]uint16{0, uint16(p.h), 0}
	p.scrollStart = 0
}

func (p *Panel) latchWrite() {
	p.writes++
	if p.dc == gpio.Low {
		p.command(byte(p.data))
		return
	}
	if p.cur == nil {
		return
	}
	if p.cur.Op == 0x2C {
		p.cur.Words++
		p.store(rgb565.Color(p.data))
		return
	}
	p.cur.Params = append(p.cur.Params, byte(p.data))
	if n, ok := paramCount[p.cur.Op]; ok && len(p.cur.Params) == n {
		p.apply(p.cur)
	}
}

func (p *Panel) latchRead() {
	if p.cur == nil || p.cur.Op != 0x2E || p.dc != gpio.High {
		p.latch = 0
		return
	}
	p.cur.Words++
	p.latch = uint16(p.load())
}

func (p *Panel) command(op byte) {
	p.flush()
	p.cur = &Command{Op: op}
	switch op {
	case 0x01:
		p.reset()
		p.cur = &Command{Op: op}
	case 0x20:
		p.inverted = false
	case 0x21:
		p.inverted = true
	case 0x28:
		p.displayOn = false
	case 0x29:
		p.displayOn = true
	case 0x2C, 0x2E:
		p.x, p.y = p.xs, p.ys
	}
}

func (p *Panel) apply(c *Command) {
	b := c.Params
	be := func(i int) uint16 { return uint16(b[i])<<8 | uint16(b[i+1]) }
	switch c.Op {
	case 0x2A:
		p.xs, p.xe = be(0), be(2)
	case 0x2B:
		p.ys, p.ye = be(0), be(2)
	case 0x33:
		p.scrollArea = [3]uint16{be(0), be(2), be(4)}
	case 0x36:
		p.mode = b[0]
	case 0x37:
		p.scrollStart = be(0)
	}
}

// flush appends the command being decoded to the log.
func (p *Panel) flush() {
	if p.cur != nil && !p.quiet {
		p.log = append(p.log, *p.cur)
	}
	p.cur = nil
	p.quiet = false
}

func (p *Panel) store(c rgb565.Color) {
	if int(p.x) < p.w && int(p.y) < p.h {
		p.frame[int(p.y)*p.w+int(p.x)] = c
	}
	p.advance()
}

func (p *Panel) load() rgb565.Color {
	var c rgb565.Color
	if int(p.x) < p.w && int(p.y) < p.h {
		c = p.frame[int(p.y)*p.w+int(p.x)]
	}
	p.advance()
	return c
}

// advance moves the memory cursor inside the window, row by row, or column
// by column when rows and columns are exchanged.
func (p *Panel) advance() {
	if p.mode&exchangeBit != 0 {
		if p.y++; p.y > p.ye {
			p.y = p.ys
			if p.x++; p.x > p.xe {
				p.x = p.xs
			}
		}
		return
	}
	if p.x++; p.x > p.xe {
		p.x = p.xs
		if p.y++; p.y > p.ye {
			p.y = p.ys
		}
	}
}

// Size returns the panel dimensions.
func (p *Panel) Size() (w, h int) {
	return p.w, p.h
}

// Pixel returns the frame memory content at (x, y).
func (p *Panel) Pixel(x, y int) rgb565.Color {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frame[y*p.w+x]
}

// SetPixel writes frame memory directly, without bus traffic.
func (p *Panel) SetPixel(x, y int, c rgb565.Color) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frame[y*p.w+x] = c
}

// Snapshot copies the frame memory into a new image.
func (p *Panel) Snapshot() *rgb565.Image {
	p.mu.Lock()
	defer p.mu.Unlock()
	img := rgb565.NewImage(image.Rect(0, 0, p.w, p.h))
	copy(img.Pix, p.frame)
	return img
}

// Commands returns the decoded commands, including the one still being
// received.
func (p *Panel) Commands() []Command {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Command, len(p.log), len(p.log)+1)
	copy(out, p.log)
	if p.cur != nil && !p.quiet {
		out = append(out, *p.cur)
	}
	return out
}

// ClearLog forgets the recorded commands and the write count. A command
// still being received keeps being decoded but is not recorded.
func (p *Panel) ClearLog() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.log = nil
	p.writes = 0
	p.quiet = true
}

// Writes returns the number of words latched since the last ClearLog.
func (p *Panel) Writes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writes
}

// State reports the display on and inverted flags.
func (p *Panel) State() (on, inverted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.displayOn, p.inverted
}

// Scroll returns the hardware scroll area and start line.
func (p *Panel) Scroll() (area [3]uint16, start uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scrollArea, p.scrollStart
}

// InputDirection reports whether the data bus is switched to input.
func (p *Panel) InputDirection() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.input
}

// Selected reports whether CS is asserted.
func (p *Panel) Selected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cs == gpio.Low
}
