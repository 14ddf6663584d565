// Package ssd1963 controls an SSD1963 LCD controller over a 16-bit 8080-style
// parallel bus.
//
// The SSD1963 drives TFT panels up to 864x480 pixels from 1215KB of internal
// frame memory. This driver configures it for a 16-bit RGB565 pixel data
// interface.
//
// See the examples for how to use this package.
package ssd1963

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"iter"
	"math/bits"
	"time"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ssd1963/bounds"
	"periph.io/x/devices/v3/ssd1963/bus"
	"periph.io/x/devices/v3/ssd1963/rgb565"
)

// Command opcodes.
const (
	cmdSoftReset         = 0x01
	cmdExitInvertMode    = 0x20
	cmdEnterInvertMode   = 0x21
	cmdSetDisplayOff     = 0x28
	cmdSetDisplayOn      = 0x29
	cmdSetColumnAddress  = 0x2A
	cmdSetPageAddress    = 0x2B
	cmdWriteMemoryStart  = 0x2C
	cmdReadMemoryStart   = 0x2E
	cmdSetScrollArea     = 0x33
	cmdSetAddressMode    = 0x36
	cmdSetScrollStart    = 0x37
	cmdSetLCDMode        = 0xB0
	cmdSetHoriPeriod     = 0xB4
	cmdSetVertPeriod     = 0xB6
	cmdSetGPIOConf       = 0xB8
	cmdSetGPIOValue      = 0xBA
	cmdSetPWMConf        = 0xBE
	cmdSetDBCConf        = 0xD0
	cmdSetPLL            = 0xE0
	cmdSetPLLMN          = 0xE2
	cmdSetLShiftFreq     = 0xE6
	cmdSetPixelInterface = 0xF0
)

const (
	maxWidth  = 864
	maxHeight = 480

	pixelFormat565 = 0x03

	pllLockDelay   = 100 * time.Microsecond
	softResetDelay = 100 * time.Microsecond
	resetHold      = 10 * time.Microsecond
	resetSettle    = 5 * time.Millisecond
)

// Address mode bits of the set_address_mode command.
const (
	modeFlipVertical   = 1 << 0
	modeFlipHorizontal = 1 << 1
	modeBGR            = 1 << 3
	modeExchange       = 1 << 5
)

var (
	// ErrStreamUnderflow is returned when a pixel sequence ends before the
	// addressed window is full.
	ErrStreamUnderflow = errors.New("ssd1963: pixel stream shorter than window")
	// ErrHalted is returned by every operation after Halt.
	ErrHalted = errors.New("ssd1963: halted")
)

// Period holds the fields of the horizontal or vertical period command,
// written to the controller as given.
type Period struct {
	Total      uint16 // HT or VT
	SyncStart  uint16 // HPS or VPS, non-display period before the first pixel
	SyncWidth  uint8  // HPW or VPW
	PulseStart uint16 // LPS or FPS
}

// Timing configures the panel clocks. The pixel clock programmed into the
// controller is (W + HBlank) × (H + VBlank) × Refresh.
type Timing struct {
	Horizontal Period // in pixel clocks
	Vertical   Period // in lines
	HBlank     uint16 // pixel clocks added to W for the pixel clock
	VBlank     uint16 // lines added to H for the pixel clock
	Refresh    physic.Frequency
}

// DefaultTiming suits the common 800x480 7" panels: 928 pixel clocks per line,
// 525 lines per frame, and a pixel clock of 803 × 490 × 30Hz.
var DefaultTiming = Timing{
	Horizontal: Period{Total: 0x03A0, SyncStart: 0x002E, SyncWidth: 0x30, PulseStart: 0x000F},
	Vertical:   Period{Total: 0x020D, SyncStart: 0x0010, SyncWidth: 0x10, PulseStart: 0x0008},
	HBlank:     3,
	VBlank:     10,
	Refresh:    30 * physic.Hertz,
}

// Opts is the configuration for the SSD1963 controller.
type Opts struct {
	// Panel dimensions in pixels
	W int // Width (default: 800, must be ≤864)
	H int // Height (default: 480, must be ≤480)

	Timing   Timing           // Panel timing (default: DefaultTiming)
	PLLClock physic.Frequency // PLL output clock (default: 100MHz)

	// Address mode
	Exchange       bool // Row/column exchange, pixels stream column by column
	FlipHorizontal bool
	FlipVertical   bool
	BGR            bool

	Background rgb565.Color // Color the frame memory is cleared to

	Logger logrus.FieldLogger // Debug output (default: discarded)
}

// DefaultOpts is used when NewParallel is given nil options.
var DefaultOpts = Opts{
	W:              800,
	H:              480,
	Exchange:       true,
	FlipHorizontal: true,
}

// Dev is the device handle for the SSD1963 controller.
type Dev struct {
	b      *bus.Bus
	rect   image.Rectangle
	extent bounds.Bounds
	mode   byte
	log    logrus.FieldLogger
	halted bool
}

// NewParallel initializes the controller attached to b and returns a ready
// device.
//
// opts can be nil to use DefaultOpts.
func NewParallel(b *bus.Bus, opts *Opts) (*Dev, error) {
	o := DefaultOpts
	if opts != nil {
		o = *opts
	}
	opts = &o
	if opts.W == 0 {
		opts.W = 800
	}
	if opts.H == 0 {
		opts.H = 480
	}
	if opts.W < 0 || opts.W > maxWidth {
		return nil, fmt.Errorf("ssd1963: width must be between 1 and %d", maxWidth)
	}
	if opts.H < 0 || opts.H > maxHeight {
		return nil, fmt.Errorf("ssd1963: height must be between 1 and %d", maxHeight)
	}
	if opts.Timing == (Timing{}) {
		opts.Timing = DefaultTiming
	}
	if opts.PLLClock == 0 {
		opts.PLLClock = 100 * physic.MegaHertz
	}

	d := &Dev{
		b:      b,
		rect:   image.Rect(0, 0, opts.W, opts.H),
		extent: bounds.Extent(uint16(opts.W), uint16(opts.H)),
		mode:   addressMode(opts),
		log:    opts.Logger,
	}
	if d.log == nil {
		d.log = discardLogger()
	}

	cmds, err := initSequence(opts, d.mode)
	if err != nil {
		return nil, err
	}
	if err := d.init(cmds, opts.Background); err != nil {
		return nil, err
	}
	return d, nil
}

type command struct {
	op     byte
	params []byte
	wait   time.Duration
}

// initSequence builds the power-up command list.
func initSequence(opts *Opts, mode byte) ([]command, error) {
	t := opts.Timing
	if t.Horizontal.SyncWidth == 0 || t.Vertical.SyncWidth == 0 {
		return nil, errors.New("ssd1963: sync pulse widths must be at least 1")
	}
	if t.Refresh <= 0 {
		return nil, errors.New("ssd1963: refresh rate must be positive")
	}
	if int(t.Horizontal.Total) < opts.W || int(t.Vertical.Total) < opts.H {
		return nil, fmt.Errorf("ssd1963: period %dx%d shorter than panel %dx%d",
			t.Horizontal.Total, t.Vertical.Total, opts.W, opts.H)
	}
	cw, ch := opts.W+int(t.HBlank), opts.H+int(t.VBlank)
	if cw > 0xFFFF || ch > 0xFFFF {
		return nil, fmt.Errorf("ssd1963: blanking %dx%d too large", t.HBlank, t.VBlank)
	}
	w, h := uint16(opts.W), uint16(opts.H)
	hp, vp := t.Horizontal, t.Vertical

	fpr, err := lshiftFreq(uint64(cw)*uint64(ch), t.Refresh, opts.PLLClock)
	if err != nil {
		return nil, err
	}

	return []command{
		// PLL: M=30, N=2 for a 10MHz crystal.
		{op: cmdSetPLLMN, params: []byte{0x1E, 0x02, 0x54}},
		{op: cmdSetPLL, params: []byte{0x01}, wait: pllLockDelay},
		{op: cmdSetPLL, params: []byte{0x03}},
		{op: cmdSoftReset, wait: softResetDelay},
		{op: cmdSetLShiftFreq, params: []byte{
			nthByte(2, fpr), nthByte(1, fpr), nthByte(0, fpr),
		}},
		{op: cmdSetLCDMode, params: []byte{
			0x24, 0x00,
			nthByte(1, w-1), nthByte(0, w-1),
			nthByte(1, h-1), nthByte(0, h-1),
			0x00,
		}},
		{op: cmdSetHoriPeriod, params: []byte{
			nthByte(1, hp.Total), nthByte(0, hp.Total),
			nthByte(1, hp.SyncStart), nthByte(0, hp.SyncStart),
			hp.SyncWidth,
			nthByte(1, hp.PulseStart), nthByte(0, hp.PulseStart),
			0x00, // LPSPP, serial panels only
		}},
		{op: cmdSetVertPeriod, params: []byte{
			nthByte(1, vp.Total), nthByte(0, vp.Total),
			nthByte(1, vp.SyncStart), nthByte(0, vp.SyncStart),
			vp.SyncWidth,
			nthByte(1, vp.PulseStart), nthByte(0, vp.PulseStart),
		}},
		{op: cmdSetGPIOValue, params: []byte{0x0F}},
		{op: cmdSetGPIOConf, params: []byte{0x07, 0x01}},
		{op: cmdSetAddressMode, params: []byte{mode}},
		{op: cmdSetPixelInterface, params: []byte{pixelFormat565}},
		{op: cmdSetPWMConf, params: pwmParams(0xF0)},
		{op: cmdSetDBCConf, params: []byte{0x0D}},
	}, nil
}

// lshiftFreq returns the LSHIFT frequency register value
// pclk * 2^20 / pll, where pclk = pixelsPerFrame * refresh.
func lshiftFreq(pixelsPerFrame uint64, refresh, pll physic.Frequency) (uint32, error) {
	if pll <= 0 {
		return 0, errors.New("ssd1963: PLL clock must be positive")
	}
	hi, lo := bits.Mul64(pixelsPerFrame*uint64(refresh), 1<<20)
	if hi >= uint64(pll) {
		return 0, fmt.Errorf("ssd1963: pixel clock exceeds PLL clock %s", pll)
	}
	fpr, _ := bits.Div64(hi, lo, uint64(pll))
	if fpr >= 1<<20 {
		return 0, fmt.Errorf("ssd1963: pixel clock exceeds PLL clock %s", pll)
	}
	return uint32(fpr), nil
}

func addressMode(opts *Opts) byte {
	var m byte
	if opts.Exchange {
		m |= modeExchange
	}
	if opts.FlipHorizontal {
		m |= modeFlipHorizontal
	}
	if opts.FlipVertical {
		m |= modeFlipVertical
	}
	if opts.BGR {
		m |= modeBGR
	}
	return m
}

func pwmParams(duty byte) []byte {
	return []byte{0x06, duty, 0x01, 0xF0, 0x00, 0x00}
}

// init sends the initialization sequence with chip select held for the whole
// sequence.
func (d *Dev) init(cmds []command, bg rgb565.Color) error {
	log := d.log.WithField("dev", d.String())
	log.Debug("ssd1963: init")
	if err := d.b.Reset(resetHold, resetSettle); err != nil {
		return fmt.Errorf("ssd1963: hardware reset: %w", err)
	}
	return d.transaction(func() error {
		for _, c := range cmds {
			if err := d.b.WriteCommand(c.op, c.params...); err != nil {
				return fmt.Errorf("ssd1963: init command %#02x: %w", c.op, err)
			}
			log.WithFields(logrus.Fields{"cmd": fmt.Sprintf("%#02x", c.op), "params": len(c.params)}).Debug("ssd1963: sent")
			if c.wait > 0 {
				d.b.Wait(c.wait)
			}
		}
		if err := d.fill(d.extent, bg); err != nil {
			return fmt.Errorf("ssd1963: clear: %w", err)
		}
		if err := d.b.WriteCommand(cmdSetDisplayOn); err != nil {
			return fmt.Errorf("ssd1963: display on: %w", err)
		}
		log.Debug("ssd1963: display on")
		return nil
	})
}

// transaction runs fn with chip select asserted.
func (d *Dev) transaction(fn func() error) error {
	if d.halted {
		return ErrHalted
	}
	if err := d.b.Select(); err != nil {
		return err
	}
	err := fn()
	if derr := d.b.Deselect(); err == nil {
		err = derr
	}
	return err
}

// check validates b against the panel extent before any bus traffic.
func (d *Dev) check(b bounds.Bounds) error {
	if d.halted {
		return ErrHalted
	}
	if !b.Within(d.extent) {
		return fmt.Errorf("ssd1963: window %v: %w", b, bounds.ErrOutOfBounds)
	}
	return nil
}

// SetWindow selects the column and page address range used by the following
// memory write or read.
func (d *Dev) SetWindow(b bounds.Bounds) error {
	if err := d.check(b); err != nil {
		return err
	}
	return d.transaction(func() error { return d.setWindow(b) })
}

func (d *Dev) setWindow(b bounds.Bounds) error {
	if err := d.b.WriteCommand(cmdSetColumnAddress,
		nthByte(1, b.XStart), nthByte(0, b.XStart),
		nthByte(1, b.XEnd), nthByte(0, b.XEnd),
	); err != nil {
		return err
	}
	return d.b.WriteCommand(cmdSetPageAddress,
		nthByte(1, b.YStart), nthByte(0, b.YStart),
		nthByte(1, b.YEnd), nthByte(0, b.YEnd),
	)
}

// Fill sets every pixel of b to c.
func (d *Dev) Fill(b bounds.Bounds, c rgb565.Color) error {
	if err := d.check(b); err != nil {
		return err
	}
	return d.transaction(func() error { return d.fill(b, c) })
}

func (d *Dev) fill(b bounds.Bounds, c rgb565.Color) error {
	if err := d.setWindow(b); err != nil {
		return err
	}
	if err := d.b.WriteCommand(cmdWriteMemoryStart); err != nil {
		return err
	}
	for n := b.Area(); n > 0; n-- {
		if err := d.b.Write(bus.Data, uint16(c)); err != nil {
			return err
		}
	}
	return nil
}

// FillStream writes one pixel per item of pixels into b. pixels must yield
// at least b.Area() items, in window order; extra items are not consumed.
func (d *Dev) FillStream(b bounds.Bounds, pixels iter.Seq[rgb565.Color]) error {
	if err := d.check(b); err != nil {
		return err
	}
	return d.transaction(func() error {
		if err := d.setWindow(b); err != nil {
			return err
		}
		if err := d.b.WriteCommand(cmdWriteMemoryStart); err != nil {
			return err
		}
		remaining := b.Area()
		var err error
		for c := range pixels {
			if err = d.b.Write(bus.Data, uint16(c)); err != nil {
				break
			}
			if remaining--; remaining == 0 {
				break
			}
		}
		if err != nil {
			return err
		}
		if remaining > 0 {
			return fmt.Errorf("%w: %d of %d pixels missing", ErrStreamUnderflow, remaining, b.Area())
		}
		return nil
	})
}

// ReadStream reads back the pixels of b, in window order.
//
// The window is set when iteration starts, so every range over the returned
// sequence issues a fresh read. The data bus is restored to output direction
// when iteration ends, also when the caller stops early. An error is yielded
// once and ends the sequence.
func (d *Dev) ReadStream(b bounds.Bounds) iter.Seq2[rgb565.Color, error] {
	return func(yield func(rgb565.Color, error) bool) {
		if err := d.check(b); err != nil {
			yield(0, err)
			return
		}
		stopped := false
		err := d.transaction(func() (err error) {
			if err := d.setWindow(b); err != nil {
				return err
			}
			if err := d.b.WriteCommand(cmdReadMemoryStart); err != nil {
				return err
			}
			if err := d.b.Input(); err != nil {
				return err
			}
			defer func() {
				if oerr := d.b.Output(); err == nil {
					err = oerr
				}
			}()
			for n := b.Area(); n > 0; n-- {
				v, err := d.b.Read(bus.Data)
				if err != nil {
					return err
				}
				if !yield(rgb565.Color(v), nil) {
					stopped = true
					return nil
				}
			}
			return nil
		})
		switch {
		case err == nil:
		case stopped:
			d.log.WithError(err).WithField("window", b).Error("ssd1963: read stream cleanup after early stop")
		default:
			yield(0, err)
		}
	}
}

// Extent returns the full addressable area.
func (d *Dev) Extent() bounds.Bounds {
	return d.extent
}

// Transposed reports whether the controller exchanges rows and columns, in
// which case pixels inside a window stream column by column.
func (d *Dev) Transposed() bool {
	return d.mode&modeExchange != 0
}

// ColorModel returns the color model of the display.
func (d *Dev) ColorModel() color.Model {
	return rgb565.Model
}

// Bounds returns the image bounds of the display.
func (d *Dev) Bounds() image.Rectangle {
	return d.rect
}

// SetBacklight sets the PWM duty cycle of the backlight control output.
func (d *Dev) SetBacklight(duty byte) error {
	return d.transaction(func() error {
		return d.b.WriteCommand(cmdSetPWMConf, pwmParams(duty)...)
	})
}

// Invert inverts the display colors.
func (d *Dev) Invert(invert bool) error {
	op := byte(cmdExitInvertMode)
	if invert {
		op = cmdEnterInvertMode
	}
	return d.transaction(func() error { return d.b.WriteCommand(op) })
}

// SetScrollArea defines the hardware vertical scroll region: top fixed
// lines, scrolling lines and bottom fixed lines. They must add up to the
// panel height.
func (d *Dev) SetScrollArea(top, scroll, bottom uint16) error {
	if int(top)+int(scroll)+int(bottom) != d.rect.Dy() {
		return fmt.Errorf("ssd1963: scroll area %d+%d+%d does not match height %d", top, scroll, bottom, d.rect.Dy())
	}
	return d.transaction(func() error {
		return d.b.WriteCommand(cmdSetScrollArea,
			nthByte(1, top), nthByte(0, top),
			nthByte(1, scroll), nthByte(0, scroll),
			nthByte(1, bottom), nthByte(0, bottom),
		)
	})
}

// SetScrollStart sets the frame memory line shown at the top of the
// hardware scroll region.
func (d *Dev) SetScrollStart(line uint16) error {
	if int(line) >= d.rect.Dy() {
		return fmt.Errorf("ssd1963: scroll start %d out of range", line)
	}
	return d.transaction(func() error {
		return d.b.WriteCommand(cmdSetScrollStart, nthByte(1, line), nthByte(0, line))
	})
}

// Halt turns the display off.
// After calling Halt, the device rejects further operations.
func (d *Dev) Halt() error {
	if d.halted {
		return nil
	}
	err := d.transaction(func() error { return d.b.WriteCommand(cmdSetDisplayOff) })
	d.halted = true
	d.log.WithField("dev", d.String()).Debug("ssd1963: halted")
	return err
}

// String returns a string representation of the device.
func (d *Dev) String() string {
	return fmt.Sprintf("ssd1963.Dev{%dx%d}", d.rect.Dx(), d.rect.Dy())
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
