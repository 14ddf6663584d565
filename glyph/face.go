package glyph

import (
	"fmt"
	"image"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// FromFace rasterizes a monospace font face into a glyph set. The cell is
// the advance of 'M' wide and ascent plus descent high. Mask pixels with at
// least half coverage are set. The fallback glyph is the first of U+FFFD and
// '?' the face provides.
func FromFace(face font.Face) (*Set, error) {
	adv, ok := face.GlyphAdvance('M')
	if !ok {
		return nil, fmt.Errorf("glyph: face has no 'M'")
	}
	m := face.Metrics()
	w := adv.Ceil()
	h := (m.Ascent + m.Descent).Ceil()
	if w <= 0 || h <= 0 || w > 255 || h > 255 {
		return nil, fmt.Errorf("glyph: invalid cell size %dx%d", w, h)
	}

	b := newBuilder(w, h)
	dot := fixed.P(0, m.Ascent.Ceil())
	for r := rune(first); r <= last; r++ {
		rasterize(b, face, dot, Index(r), r)
	}
	for _, r := range []rune{'\uFFFD', '?'} {
		if rasterize(b, face, dot, fallback, r) {
			break
		}
	}
	return b.done(), nil
}

func rasterize(b *builder, face font.Face, dot fixed.Point26_6, slot int, r rune) bool {
	dr, mask, maskp, _, ok := face.Glyph(dot, r)
	if !ok {
		return false
	}
	clip := dr.Intersect(image.Rect(0, 0, b.w, b.h))
	for y := clip.Min.Y; y < clip.Max.Y; y++ {
		for x := clip.Min.X; x < clip.Max.X; x++ {
			_, _, _, a := mask.At(maskp.X+x-dr.Min.X, maskp.Y+y-dr.Min.Y).RGBA()
			if a >= 0x8000 {
				b.set(slot, x, y)
			}
		}
	}
	return true
}

// Default returns the 7x13 set rasterized from basicfont.Face7x13.
func Default() *Set {
	s, err := FromFace(basicfont.Face7x13)
	if err != nil {
		panic(err)
	}
	return s
}
