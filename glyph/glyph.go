// Package glyph stores monospace bitmap fonts as packed bit tables and
// streams glyph pixels in the order a display window is filled.
//
// A table holds one glyph per printable ASCII code, 32 to 126, followed by a
// fallback glyph used for every other rune. Each glyph is width × height
// bits, row-major, and bits are packed least significant bit first.
package glyph

import (
	"errors"
	"fmt"
	"iter"
)

const (
	first    = 32
	last     = 126
	count    = last - first + 2
	fallback = count - 1
)

// ErrTableSize is returned when a bit table does not match the glyph size.
var ErrTableSize = errors.New("glyph: table size does not match glyph dimensions")

// Order is the sequence in which a glyph's pixels are produced.
type Order int

const (
	// RowMajor yields pixels row by row, left to right.
	RowMajor Order = iota
	// ColumnMajor yields pixels column by column, top to bottom. Use it for
	// displays that exchange rows and columns.
	ColumnMajor
)

func (o Order) String() string {
	if o == ColumnMajor {
		return "column-major"
	}
	return "row-major"
}

// Set is a monospace glyph set.
type Set struct {
	w, h int
	bits []byte
}

// New returns a glyph set of w × h glyphs backed by data, which must hold
// exactly 96 × w × h bits rounded up to whole bytes. data is not copied.
func New(w, h int, data []byte) (*Set, error) {
	if w <= 0 || h <= 0 || w > 255 || h > 255 {
		return nil, fmt.Errorf("glyph: invalid glyph size %dx%d", w, h)
	}
	if want := tableSize(w, h); len(data) != want {
		return nil, fmt.Errorf("%w: %dx%d needs %d bytes, got %d", ErrTableSize, w, h, want, len(data))
	}
	return &Set{w: w, h: h, bits: data}, nil
}

func tableSize(w, h int) int {
	return (count*w*h + 7) / 8
}

// Size returns the glyph dimensions in pixels.
func (s *Set) Size() (w, h int) {
	return s.w, s.h
}

// Index returns the table slot of r.
func Index(r rune) int {
	if r < first || r > last {
		return fallback
	}
	return int(r - first)
}

// Pixels returns the w × h pixels of r in order o, true for foreground.
// The sequence can be ranged over more than once.
func (s *Set) Pixels(r rune, o Order) iter.Seq[bool] {
	base := Index(r) * s.w * s.h
	if o == ColumnMajor {
		return func(yield func(bool) bool) {
			for col := range s.w {
				for row := range s.h {
					if !yield(s.bit(base + row*s.w + col)) {
						return
					}
				}
			}
		}
	}
	return func(yield func(bool) bool) {
		for i := base; i < base+s.w*s.h; i++ {
			if !yield(s.bit(i)) {
				return
			}
		}
	}
}

// Pixel reports whether the pixel at column x, row y of r is set.
func (s *Set) Pixel(r rune, x, y int) bool {
	return s.bit(Index(r)*s.w*s.h + y*s.w + x)
}

func (s *Set) bit(i int) bool {
	return s.bits[i/8]&(1<<(i%8)) != 0
}

// builder packs rasterized glyphs into a table.
type builder struct {
	w, h int
	bits []byte
}

func newBuilder(w, h int) *builder {
	return &builder{w: w, h: h, bits: make([]byte, tableSize(w, h))}
}

func (b *builder) set(slot, x, y int) {
	if x < 0 || y < 0 || x >= b.w || y >= b.h {
		return
	}
	i := slot*b.w*b.h + y*b.w + x
	b.bits[i/8] |= 1 << (i % 8)
}

func (b *builder) done() *Set {
	return &Set{w: b.w, h: b.h, bits: b.bits}
}
