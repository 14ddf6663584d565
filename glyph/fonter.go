package glyph

import (
	"errors"
	"image/color"

	"tinygo.org/x/drivers"
	"tinygo.org/x/tinyfont"
)

// FromFonter rasterizes a tinyfont font into w × h cells, drawing each glyph
// with its baseline at row baseline. Runes the cell cannot hold are clipped.
// The fallback glyph is '?'.
func FromFonter(f tinyfont.Fonter, w, h, baseline int16) (*Set, error) {
	if w <= 0 || h <= 0 || baseline < 0 || baseline >= h {
		return nil, errors.New("glyph: invalid cell geometry")
	}
	b := newBuilder(int(w), int(h))
	for r := rune(first); r <= last; r++ {
		f.GetGlyph(r).Draw(&recorder{b: b, slot: Index(r)}, 0, baseline, color.RGBA{A: 0xFF})
	}
	f.GetGlyph('?').Draw(&recorder{b: b, slot: fallback}, 0, baseline, color.RGBA{A: 0xFF})
	return b.done(), nil
}

// recorder is a drivers.Displayer that records the pixels of one glyph.
type recorder struct {
	b    *builder
	slot int
}

var _ drivers.Displayer = (*recorder)(nil)

func (r *recorder) Size() (x, y int16) {
	return int16(r.b.w), int16(r.b.h)
}

func (r *recorder) SetPixel(x, y int16, c color.RGBA) {
	r.b.set(r.slot, int(x), int(y))
}

func (r *recorder) Display() error {
	return nil
}
