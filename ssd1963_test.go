package ssd1963

import (
	"errors"
	"image"
	"image/color"
	"iter"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ssd1963/bounds"
	"periph.io/x/devices/v3/ssd1963/bus"
	"periph.io/x/devices/v3/ssd1963/rgb565"
	"periph.io/x/devices/v3/ssd1963/ssd1963test"
)

var noDelay = bus.DelayFunc(func(time.Duration) {})

// newTestDev returns an initialized device on a simulated panel, with the
// panel log cleared.
func newTestDev(t *testing.T, opts *Opts) (*Dev, *ssd1963test.Panel) {
	t.Helper()
	p := ssd1963test.New(opts.W, opts.H)
	b, err := bus.New(p.Pins(), &bus.Opts{Delay: noDelay, Wait: noDelay})
	require.NoError(t, err)
	d, err := NewParallel(b, opts)
	require.NoError(t, err)
	p.ClearLog()
	return d, p
}

func ops(cmds []ssd1963test.Command) []byte {
	out := make([]byte, len(cmds))
	for i, c := range cmds {
		out[i] = c.Op
	}
	return out
}

func counting(n int) iter.Seq[rgb565.Color] {
	return func(yield func(rgb565.Color) bool) {
		for i := range n {
			if !yield(rgb565.Color(i)) {
				return
			}
		}
	}
}

func TestNthByte(t *testing.T) {
	tests := []struct {
		name string
		got  byte
		want byte
	}{
		{"uint16 low", nthByte(0, uint16(0x1234)), 0x34},
		{"uint16 high", nthByte(1, uint16(0x1234)), 0x12},
		{"uint16 beyond width", nthByte(2, uint16(0x1234)), 0},
		{"uint32 third", nthByte(2, uint32(0x04AD57)), 0x04},
		{"uint32 fourth", nthByte(3, uint32(0xFF000000)), 0xFF},
		{"uint8 beyond width", nthByte(1, uint8(0xAB)), 0},
		{"uint64 top", nthByte(7, uint64(0x8000000000000000)), 0x80},
		{"far beyond width", nthByte(200, uint64(0xFFFFFFFFFFFFFFFF)), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestLShiftFreq(t *testing.T) {
	// floor(803 * 490 * 30 * 2^20 / 100MHz)
	fpr, err := lshiftFreq(803*490, 30*physic.Hertz, 100*physic.MegaHertz)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x01E37E), fpr)

	fpr, err = lshiftFreq(928*525, 60*physic.Hertz, 100*physic.MegaHertz)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x04AD57), fpr)

	_, err = lshiftFreq(928*525, 60*physic.Hertz, 10*physic.MegaHertz)
	assert.Error(t, err, "pixel clock above PLL clock")

	_, err = lshiftFreq(928*525, 60*physic.Hertz, 0)
	assert.Error(t, err)
}

func TestOptsValidation(t *testing.T) {
	tests := []struct {
		name    string
		opts    *Opts
		wantErr bool
	}{
		{"valid 32x16", &Opts{W: 32, H: 16}, false},
		{"valid 864x480 (maximum)", &Opts{W: 864, H: 480}, false},
		{"width too large", &Opts{W: 865, H: 16}, true},
		{"height too large", &Opts{W: 32, H: 481}, true},
		{"negative width", &Opts{W: -1, H: 16}, true},
		{"zero sync pulse", &Opts{W: 32, H: 16, Timing: Timing{
			Horizontal: Period{Total: 40}, Vertical: Period{Total: 20, SyncWidth: 1}, Refresh: 60 * physic.Hertz,
		}}, true},
		{"no refresh rate", &Opts{W: 32, H: 16, Timing: Timing{
			Horizontal: Period{Total: 40, SyncWidth: 1}, Vertical: Period{Total: 20, SyncWidth: 1},
		}}, true},
		{"period shorter than panel", &Opts{W: 32, H: 16, Timing: Timing{
			Horizontal: Period{Total: 31, SyncWidth: 1}, Vertical: Period{Total: 20, SyncWidth: 1}, Refresh: 60 * physic.Hertz,
		}}, true},
		{"blanking overflows", &Opts{W: 32, H: 16, Timing: Timing{
			Horizontal: Period{Total: 40, SyncWidth: 1}, Vertical: Period{Total: 20, SyncWidth: 1},
			HBlank: 0xFFFF, Refresh: physic.Hertz,
		}}, true},
		{"custom timing", &Opts{W: 32, H: 16, Timing: Timing{
			Horizontal: Period{Total: 40, SyncWidth: 1}, Vertical: Period{Total: 20, SyncWidth: 1}, Refresh: 60 * physic.Hertz,
		}}, false},
		{"PLL too slow", &Opts{W: 32, H: 16, PLLClock: physic.KiloHertz}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ssd1963test.New(864, 480)
			b, err := bus.New(p.Pins(), &bus.Opts{Delay: noDelay, Wait: noDelay})
			require.NoError(t, err)
			_, err = NewParallel(b, tt.opts)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Empty(t, p.Commands(), "no traffic on invalid options")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewParallelDefaults(t *testing.T) {
	p := ssd1963test.New(800, 480)
	b, err := bus.New(p.Pins(), &bus.Opts{Delay: noDelay, Wait: noDelay})
	require.NoError(t, err)
	d, err := NewParallel(b, nil)
	require.NoError(t, err)

	assert.Equal(t, image.Rect(0, 0, 800, 480), d.Bounds())
	assert.Equal(t, bounds.Extent(800, 480), d.Extent())
	assert.True(t, d.Transposed())
	assert.Equal(t, "ssd1963.Dev{800x480}", d.String())
	assert.Equal(t, rgb565.Model, d.ColorModel())

	want := []ssd1963test.Command{
		{Op: 0xE2, Params: []byte{0x1E, 0x02, 0x54}},
		{Op: 0xE0, Params: []byte{0x01}},
		{Op: 0xE0, Params: []byte{0x03}},
		{Op: 0x01},
		{Op: 0xE6, Params: []byte{0x01, 0xE3, 0x7E}},
		{Op: 0xB0, Params: []byte{0x24, 0x00, 0x03, 0x1F, 0x01, 0xDF, 0x00}},
		{Op: 0xB4, Params: []byte{0x03, 0xA0, 0x00, 0x2E, 0x30, 0x00, 0x0F, 0x00}},
		{Op: 0xB6, Params: []byte{0x02, 0x0D, 0x00, 0x10, 0x10, 0x00, 0x08}},
		{Op: 0xBA, Params: []byte{0x0F}},
		{Op: 0xB8, Params: []byte{0x07, 0x01}},
		{Op: 0x36, Params: []byte{0x22}},
		{Op: 0xF0, Params: []byte{0x03}},
		{Op: 0xBE, Params: []byte{0x06, 0xF0, 0x01, 0xF0, 0x00, 0x00}},
		{Op: 0xD0, Params: []byte{0x0D}},
		{Op: 0x2A, Params: []byte{0x00, 0x00, 0x03, 0x1F}},
		{Op: 0x2B, Params: []byte{0x00, 0x00, 0x01, 0xDF}},
		{Op: 0x2C, Words: 800 * 480},
		{Op: 0x29},
	}
	assert.Equal(t, want, p.Commands())

	on, inverted := p.State()
	assert.True(t, on)
	assert.False(t, inverted)
	assert.False(t, p.Selected(), "chip select released after init")
}

func TestNewParallelKeepsCallerOpts(t *testing.T) {
	opts := &Opts{W: 16, H: 8}
	_, _ = newTestDev(t, opts)
	assert.Equal(t, &Opts{W: 16, H: 8}, opts)
}

func TestInitClearsToBackground(t *testing.T) {
	_, p := newTestDev(t, &Opts{W: 16, H: 8, Background: rgb565.Blue})
	for y := range 8 {
		for x := range 16 {
			require.Equal(t, rgb565.Blue, p.Pixel(x, y), "pixel (%d,%d)", x, y)
		}
	}
}

func TestInitFault(t *testing.T) {
	p := ssd1963test.New(16, 8)
	b, err := bus.New(p.Pins(), &bus.Opts{Delay: noDelay, Wait: noDelay})
	require.NoError(t, err)
	p.Fail("WR", errors.New("stuck"))
	_, err = NewParallel(b, &Opts{W: 16, H: 8})
	assert.ErrorIs(t, err, bus.ErrFault)
}

func TestFill(t *testing.T) {
	for _, exchange := range []bool{false, true} {
		d, p := newTestDev(t, &Opts{W: 16, H: 8, Exchange: exchange})
		b := bounds.Bounds{XStart: 2, XEnd: 5, YStart: 1, YEnd: 3}
		require.NoError(t, d.Fill(b, rgb565.Red))

		for y := range 8 {
			for x := range 16 {
				want := rgb565.Black
				if x >= 2 && x <= 5 && y >= 1 && y <= 3 {
					want = rgb565.Red
				}
				assert.Equal(t, want, p.Pixel(x, y), "exchange=%v pixel (%d,%d)", exchange, x, y)
			}
		}
		assert.Equal(t, []byte{0x2A, 0x2B, 0x2C}, ops(p.Commands()))
		assert.Equal(t, 5+5+1+12, p.Writes())
		assert.False(t, p.Selected())
	}
}

func TestFillOutOfBounds(t *testing.T) {
	d, p := newTestDev(t, &Opts{W: 16, H: 8})
	tests := []struct {
		name string
		b    bounds.Bounds
	}{
		{"beyond right edge", bounds.Bounds{XStart: 10, XEnd: 16, YStart: 0, YEnd: 1}},
		{"beyond bottom edge", bounds.Bounds{XStart: 0, XEnd: 1, YStart: 0, YEnd: 8}},
		{"inverted", bounds.Bounds{XStart: 5, XEnd: 4, YStart: 0, YEnd: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, d.Fill(tt.b, rgb565.Red), bounds.ErrOutOfBounds)
			assert.ErrorIs(t, d.FillStream(tt.b, counting(100)), bounds.ErrOutOfBounds)
			assert.ErrorIs(t, d.SetWindow(tt.b), bounds.ErrOutOfBounds)
			assert.Zero(t, p.Writes())
		})
	}
}

func TestFillStreamOrder(t *testing.T) {
	b := bounds.Bounds{XStart: 1, XEnd: 2, YStart: 1, YEnd: 3}

	t.Run("row-major", func(t *testing.T) {
		d, p := newTestDev(t, &Opts{W: 8, H: 4})
		require.NoError(t, d.FillStream(b, counting(6)))
		for y := 1; y <= 3; y++ {
			for x := 1; x <= 2; x++ {
				assert.Equal(t, rgb565.Color((y-1)*2+(x-1)), p.Pixel(x, y))
			}
		}
	})

	t.Run("column-major", func(t *testing.T) {
		d, p := newTestDev(t, &Opts{W: 8, H: 4, Exchange: true})
		require.NoError(t, d.FillStream(b, counting(6)))
		for y := 1; y <= 3; y++ {
			for x := 1; x <= 2; x++ {
				assert.Equal(t, rgb565.Color((x-1)*3+(y-1)), p.Pixel(x, y))
			}
		}
	})
}

func TestFillStreamUnderflow(t *testing.T) {
	d, _ := newTestDev(t, &Opts{W: 8, H: 4})
	err := d.FillStream(bounds.Extent(8, 4), counting(5))
	assert.ErrorIs(t, err, ErrStreamUnderflow)
}

func TestFillStreamStopsAtArea(t *testing.T) {
	d, p := newTestDev(t, &Opts{W: 8, H: 4})
	consumed := 0
	seq := func(yield func(rgb565.Color) bool) {
		for {
			consumed++
			if !yield(rgb565.White) {
				return
			}
		}
	}
	require.NoError(t, d.FillStream(bounds.Bounds{XStart: 0, XEnd: 1, YStart: 0, YEnd: 1}, seq))
	assert.Equal(t, 4, consumed)
	cmds := p.Commands()
	assert.Equal(t, 4, cmds[len(cmds)-1].Words)
}

func TestReadStreamRoundTrip(t *testing.T) {
	for _, exchange := range []bool{false, true} {
		d, p := newTestDev(t, &Opts{W: 8, H: 6, Exchange: exchange})
		b := bounds.Bounds{XStart: 2, XEnd: 6, YStart: 1, YEnd: 4}
		require.NoError(t, d.FillStream(b, counting(int(b.Area()))))

		var got []rgb565.Color
		for c, err := range d.ReadStream(b) {
			require.NoError(t, err)
			got = append(got, c)
		}
		require.Len(t, got, int(b.Area()))
		for i, c := range got {
			assert.Equal(t, rgb565.Color(i), c)
		}
		assert.False(t, p.InputDirection(), "output direction restored")
		assert.False(t, p.Selected())
	}
}

func TestReadStreamEarlyBreak(t *testing.T) {
	d, p := newTestDev(t, &Opts{W: 8, H: 4})
	n := 0
	for _, err := range d.ReadStream(d.Extent()) {
		require.NoError(t, err)
		if n++; n == 3 {
			break
		}
	}
	assert.Equal(t, 3, n)
	assert.False(t, p.InputDirection())
	assert.False(t, p.Selected())

	// The bus is still usable.
	assert.NoError(t, d.Fill(d.Extent(), rgb565.Green))
}

func TestReadStreamEarlyBreakLogsCleanupFault(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	d, p := newTestDev(t, &Opts{W: 8, H: 4, Logger: log})
	for _, err := range d.ReadStream(d.Extent()) {
		require.NoError(t, err)
		p.Fail("DATA", errors.New("stuck"))
		break
	}

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.ErrorIs(t, entry.Data[logrus.ErrorKey].(error), bus.ErrFault)
	assert.False(t, p.Selected(), "chip select released")
}

func TestReadStreamRestarts(t *testing.T) {
	d, _ := newTestDev(t, &Opts{W: 4, H: 2})
	require.NoError(t, d.FillStream(d.Extent(), counting(8)))
	seq := d.ReadStream(d.Extent())
	for range 2 {
		i := 0
		for c, err := range seq {
			require.NoError(t, err)
			assert.Equal(t, rgb565.Color(i), c)
			i++
		}
		assert.Equal(t, 8, i)
	}
}

func TestReadStreamErrors(t *testing.T) {
	t.Run("out of bounds", func(t *testing.T) {
		d, p := newTestDev(t, &Opts{W: 8, H: 4})
		var errs []error
		for _, err := range d.ReadStream(bounds.Bounds{XStart: 0, XEnd: 8, YStart: 0, YEnd: 0}) {
			errs = append(errs, err)
		}
		require.Len(t, errs, 1)
		assert.ErrorIs(t, errs[0], bounds.ErrOutOfBounds)
		assert.Zero(t, p.Writes())
	})

	t.Run("write-only bus", func(t *testing.T) {
		p := ssd1963test.New(8, 4)
		pins := p.Pins()
		pins.RD = nil
		b, err := bus.New(pins, &bus.Opts{Delay: noDelay, Wait: noDelay})
		require.NoError(t, err)
		d, err := NewParallel(b, &Opts{W: 8, H: 4})
		require.NoError(t, err)

		var errs []error
		for _, err := range d.ReadStream(d.Extent()) {
			errs = append(errs, err)
		}
		require.Len(t, errs, 1)
		assert.ErrorIs(t, errs[0], bus.ErrWriteOnly)
		assert.False(t, p.Selected())
	})

	t.Run("fault while reading", func(t *testing.T) {
		d, p := newTestDev(t, &Opts{W: 8, H: 4})
		p.Fail("RD", errors.New("open circuit"))
		var errs []error
		for _, err := range d.ReadStream(d.Extent()) {
			errs = append(errs, err)
		}
		require.Len(t, errs, 1)
		assert.ErrorIs(t, errs[0], bus.ErrFault)
		assert.False(t, p.InputDirection())
	})
}

func TestBusFaultPropagates(t *testing.T) {
	d, p := newTestDev(t, &Opts{W: 8, H: 4})
	p.Fail("DC", errors.New("short"))
	err := d.Fill(d.Extent(), rgb565.Red)
	var f *bus.Fault
	require.ErrorAs(t, err, &f)
	assert.Equal(t, "DC", f.Line)
}

func TestHardwareCommands(t *testing.T) {
	d, p := newTestDev(t, &Opts{W: 8, H: 4})

	require.NoError(t, d.Invert(true))
	_, inverted := p.State()
	assert.True(t, inverted)
	require.NoError(t, d.Invert(false))
	_, inverted = p.State()
	assert.False(t, inverted)

	require.NoError(t, d.SetBacklight(0x80))
	require.NoError(t, d.SetScrollArea(1, 2, 1))
	require.NoError(t, d.SetScrollStart(2))
	area, start := p.Scroll()
	assert.Equal(t, [3]uint16{1, 2, 1}, area)
	assert.Equal(t, uint16(2), start)

	want := []ssd1963test.Command{
		{Op: 0x21},
		{Op: 0x20},
		{Op: 0xBE, Params: []byte{0x06, 0x80, 0x01, 0xF0, 0x00, 0x00}},
		{Op: 0x33, Params: []byte{0x00, 0x01, 0x00, 0x02, 0x00, 0x01}},
		{Op: 0x37, Params: []byte{0x00, 0x02}},
	}
	assert.Equal(t, want, p.Commands())

	assert.Error(t, d.SetScrollArea(1, 1, 1), "must add up to the height")
	assert.Error(t, d.SetScrollStart(4))
}

func TestDevHalt(t *testing.T) {
	d, p := newTestDev(t, &Opts{W: 8, H: 4})
	require.NoError(t, d.Halt())
	on, _ := p.State()
	assert.False(t, on)

	assert.ErrorIs(t, d.Fill(d.Extent(), rgb565.Red), ErrHalted)
	assert.ErrorIs(t, d.Invert(true), ErrHalted)
	assert.ErrorIs(t, d.SetBacklight(0), ErrHalted)
	assert.ErrorIs(t, d.Draw(d.Bounds(), image.White, image.Point{}), ErrHalted)
	for _, err := range d.ReadStream(d.Extent()) {
		assert.ErrorIs(t, err, ErrHalted)
	}
	assert.NoError(t, d.Halt(), "halting twice")
}

func TestDraw(t *testing.T) {
	for _, exchange := range []bool{false, true} {
		d, p := newTestDev(t, &Opts{W: 8, H: 4, Exchange: exchange})
		src := rgb565.NewImage(image.Rect(0, 0, 8, 4))
		for y := range 4 {
			for x := range 8 {
				src.SetRGB565(x, y, rgb565.Color(y*8+x))
			}
		}
		require.NoError(t, d.Draw(d.Bounds(), src, image.Point{}))
		for y := range 4 {
			for x := range 8 {
				assert.Equal(t, src.RGB565At(x, y), p.Pixel(x, y))
			}
		}
	}
}

func TestDrawClipsAndConverts(t *testing.T) {
	d, p := newTestDev(t, &Opts{W: 8, H: 4})
	src := image.NewUniform(color.RGBA{R: 0xFF, A: 0xFF})
	require.NoError(t, d.Draw(image.Rect(6, 2, 20, 20), src, image.Point{}))
	for y := range 4 {
		for x := range 8 {
			want := rgb565.Black
			if x >= 6 && y >= 2 {
				want = rgb565.Red
			}
			assert.Equal(t, want, p.Pixel(x, y))
		}
	}

	p.ClearLog()
	require.NoError(t, d.Draw(image.Rect(10, 10, 20, 20), src, image.Point{}))
	assert.Zero(t, p.Writes(), "nothing visible")
}

func TestDrawSourceOffset(t *testing.T) {
	d, p := newTestDev(t, &Opts{W: 8, H: 4})
	src := rgb565.NewImage(image.Rect(0, 0, 4, 4))
	src.SetRGB565(3, 3, rgb565.Yellow)
	require.NoError(t, d.Draw(image.Rect(-2, -2, 2, 2), src, image.Point{}))
	assert.Equal(t, rgb565.Yellow, p.Pixel(1, 1))
	assert.Equal(t, rgb565.Black, p.Pixel(0, 0))
}

func TestDisplayer(t *testing.T) {
	d, p := newTestDev(t, &Opts{W: 8, H: 4})
	disp := d.Displayer()

	w, h := disp.Size()
	assert.Equal(t, int16(8), w)
	assert.Equal(t, int16(4), h)

	disp.SetPixel(3, 2, color.RGBA{G: 0xFF, A: 0xFF})
	disp.SetPixel(-1, 2, color.RGBA{R: 0xFF, A: 0xFF})
	disp.SetPixel(8, 0, color.RGBA{R: 0xFF, A: 0xFF})
	require.NoError(t, disp.Display())
	assert.Equal(t, rgb565.Green, p.Pixel(3, 2))

	require.NoError(t, disp.FillRectangle(6, 2, 10, 10, color.RGBA{B: 0xFF, A: 0xFF}))
	assert.Equal(t, rgb565.Blue, p.Pixel(7, 3))
	assert.Equal(t, rgb565.Blue, p.Pixel(6, 2))
	assert.Equal(t, rgb565.Black, p.Pixel(5, 2))
	assert.NoError(t, disp.FillRectangle(9, 9, 2, 2, color.RGBA{}))

	p.Fail("WR", errors.New("stuck"))
	disp.SetPixel(0, 0, color.RGBA{A: 0xFF})
	assert.ErrorIs(t, disp.Display(), bus.ErrFault)
	assert.NoError(t, disp.Display(), "error reported once")
}
