package ssd1963

import (
	"image"
	"iter"

	"periph.io/x/conn/v3/display"
	"periph.io/x/devices/v3/ssd1963/bounds"
	"periph.io/x/devices/v3/ssd1963/rgb565"
)

var _ display.Drawer = (*Dev)(nil)

// Draw writes the src image to the display, clipped to the display bounds.
// Pixels are converted to RGB565 on the fly; nothing is buffered.
func (d *Dev) Draw(dst image.Rectangle, src image.Image, sp image.Point) error {
	if d.halted {
		return ErrHalted
	}

	// Clip to display bounds
	r := dst.Intersect(d.rect)
	if r.Empty() {
		return nil
	}
	sp = sp.Add(r.Min.Sub(dst.Min))

	b, err := bounds.FromRect(r, d.extent)
	if err != nil {
		return err
	}
	return d.FillStream(b, d.pixels(r, src, sp))
}

// pixels yields the colors of src for the window r, in the order the
// controller fills it.
func (d *Dev) pixels(r image.Rectangle, src image.Image, sp image.Point) iter.Seq[rgb565.Color] {
	at := func(x, y int) rgb565.Color {
		return rgb565.Model.Convert(src.At(x, y)).(rgb565.Color)
	}
	// Fast path: no conversion for RGB565 sources
	if img, ok := src.(*rgb565.Image); ok {
		at = img.RGB565At
	}
	dx, dy := sp.X-r.Min.X, sp.Y-r.Min.Y
	if d.Transposed() {
		return func(yield func(rgb565.Color) bool) {
			for x := r.Min.X; x < r.Max.X; x++ {
				for y := r.Min.Y; y < r.Max.Y; y++ {
					if !yield(at(x+dx, y+dy)) {
						return
					}
				}
			}
		}
	}
	return func(yield func(rgb565.Color) bool) {
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				if !yield(at(x+dx, y+dy)) {
					return
				}
			}
		}
	}
}
