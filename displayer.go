package ssd1963

import (
	"image/color"

	"periph.io/x/devices/v3/ssd1963/bounds"
	"periph.io/x/devices/v3/ssd1963/rgb565"
	"tinygo.org/x/drivers"
)

// Displayer adapts the device to the TinyGo drivers.Displayer interface, so
// tinyfont and tinydraw can render on it.
//
// Pixels are written immediately. SetPixel cannot report errors; the first
// one is kept and returned by Display.
type Displayer struct {
	d   *Dev
	err error
}

var _ drivers.Displayer = (*Displayer)(nil)

// Displayer returns a TinyGo adapter for d.
func (d *Dev) Displayer() *Displayer {
	return &Displayer{d: d}
}

// Size returns the display size in pixels.
func (p *Displayer) Size() (x, y int16) {
	return int16(p.d.rect.Dx()), int16(p.d.rect.Dy())
}

// SetPixel writes a single pixel. Out of range coordinates are ignored.
func (p *Displayer) SetPixel(x, y int16, c color.RGBA) {
	if x < 0 || y < 0 || int(x) >= p.d.rect.Dx() || int(y) >= p.d.rect.Dy() {
		return
	}
	b := bounds.Bounds{XStart: uint16(x), XEnd: uint16(x), YStart: uint16(y), YEnd: uint16(y)}
	if err := p.d.Fill(b, rgb565.RGB(c.R, c.G, c.B)); err != nil && p.err == nil {
		p.err = err
	}
}

// FillRectangle fills a w x h rectangle at (x, y), clipped to the display.
func (p *Displayer) FillRectangle(x, y, w, h int16, c color.RGBA) error {
	if w <= 0 || h <= 0 {
		return nil
	}
	x0, y0 := max(int(x), 0), max(int(y), 0)
	x1 := min(int(x)+int(w), p.d.rect.Dx()) - 1
	y1 := min(int(y)+int(h), p.d.rect.Dy()) - 1
	if x0 > x1 || y0 > y1 {
		return nil
	}
	b := bounds.Bounds{XStart: uint16(x0), XEnd: uint16(x1), YStart: uint16(y0), YEnd: uint16(y1)}
	return p.d.Fill(b, rgb565.RGB(c.R, c.G, c.B))
}

// Display returns the first error met by SetPixel since the last call.
// Pixels are already on the panel.
func (p *Displayer) Display() error {
	err := p.err
	p.err = nil
	return err
}
