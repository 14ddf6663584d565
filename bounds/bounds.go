// Package bounds implements the inclusive pixel rectangles used to address
// display windows.
//
// All extents are inclusive on both ends, matching the SSD1963 column and
// page address commands: a window from column 0 to column 799 is 800 pixels
// wide.
package bounds

import (
	"errors"
	"fmt"
	"image"
)

// ErrOutOfBounds is returned when a requested rectangle is empty or does not
// fit inside the maximum extent it is resolved against.
var ErrOutOfBounds = errors.New("bounds: rectangle empty or outside display")

// Bounds is an axis-aligned rectangle with inclusive extents.
type Bounds struct {
	XStart, XEnd uint16
	YStart, YEnd uint16
}

// Extent returns the full extent of a w x h display.
func Extent(w, h uint16) Bounds {
	return Bounds{XEnd: w - 1, YEnd: h - 1}
}

// Clip resolves the possibly open-ended ranges x and y against ext.
//
// Open ends take the corresponding edge of ext. The resolved rectangle must
// be non-empty and fully contained in ext.
func Clip(x, y Range, ext Bounds) (Bounds, error) {
	xs, xe := x.resolve(ext.XStart, ext.XEnd)
	ys, ye := y.resolve(ext.YStart, ext.YEnd)
	if xs > xe || ys > ye {
		return Bounds{}, fmt.Errorf("%w: empty range x %v y %v", ErrOutOfBounds, x, y)
	}
	b := Bounds{XStart: xs, XEnd: xe, YStart: ys, YEnd: ye}
	if !b.Within(ext) {
		return Bounds{}, fmt.Errorf("%w: %v exceeds %v", ErrOutOfBounds, b, ext)
	}
	return b, nil
}

// Width returns the number of columns covered.
func (b Bounds) Width() uint16 {
	return b.XEnd - b.XStart + 1
}

// Height returns the number of rows covered.
func (b Bounds) Height() uint16 {
	return b.YEnd - b.YStart + 1
}

// Area returns the number of pixels covered.
func (b Bounds) Area() uint32 {
	return uint32(b.Width()) * uint32(b.Height())
}

// Valid reports whether the start edges do not pass the end edges.
func (b Bounds) Valid() bool {
	return b.XStart <= b.XEnd && b.YStart <= b.YEnd
}

// Within reports whether b is valid and fully contained in ext.
func (b Bounds) Within(ext Bounds) bool {
	return b.Valid() &&
		b.XStart >= ext.XStart && b.XEnd <= ext.XEnd &&
		b.YStart >= ext.YStart && b.YEnd <= ext.YEnd
}

// Intersect returns the overlap of b and o. ok is false if they are disjoint.
func (b Bounds) Intersect(o Bounds) (r Bounds, ok bool) {
	r = Bounds{
		XStart: max(b.XStart, o.XStart),
		XEnd:   min(b.XEnd, o.XEnd),
		YStart: max(b.YStart, o.YStart),
		YEnd:   min(b.YEnd, o.YEnd),
	}
	return r, r.Valid()
}

// MoveBy translates both edges by (dx, dy).
//
// The result is not checked: callers must make sure it stays inside the
// display, see Translate.
func (b *Bounds) MoveBy(dx, dy int16) {
	b.XStart = uint16(int32(b.XStart) + int32(dx))
	b.XEnd = uint16(int32(b.XEnd) + int32(dx))
	b.YStart = uint16(int32(b.YStart) + int32(dy))
	b.YEnd = uint16(int32(b.YEnd) + int32(dy))
}

// Translate returns b moved by (dx, dy), failing if the result leaves ext.
func (b Bounds) Translate(dx, dy int16, ext Bounds) (Bounds, error) {
	xs, xe := int32(b.XStart)+int32(dx), int32(b.XEnd)+int32(dx)
	ys, ye := int32(b.YStart)+int32(dy), int32(b.YEnd)+int32(dy)
	if !b.Valid() || xs < int32(ext.XStart) || xe > int32(ext.XEnd) ||
		ys < int32(ext.YStart) || ye > int32(ext.YEnd) {
		return Bounds{}, fmt.Errorf("%w: %v moved by (%d, %d) exceeds %v", ErrOutOfBounds, b, dx, dy, ext)
	}
	b.MoveBy(dx, dy)
	return b, nil
}

// SetWidth keeps the start column and shrinks the rectangle to w columns.
func (b *Bounds) SetWidth(w uint16) error {
	if w == 0 || w > b.Width() {
		return fmt.Errorf("%w: width %d for %v", ErrOutOfBounds, w, *b)
	}
	b.XEnd = b.XStart + w - 1
	return nil
}

// SetHeight keeps the start row and shrinks the rectangle to h rows.
func (b *Bounds) SetHeight(h uint16) error {
	if h == 0 || h > b.Height() {
		return fmt.Errorf("%w: height %d for %v", ErrOutOfBounds, h, *b)
	}
	b.YEnd = b.YStart + h - 1
	return nil
}

// Rect converts b to the half-open image.Rectangle covering the same pixels.
func (b Bounds) Rect() image.Rectangle {
	return image.Rect(int(b.XStart), int(b.YStart), int(b.XEnd)+1, int(b.YEnd)+1)
}

// FromRect converts a half-open image.Rectangle to Bounds, clipped to ext.
func FromRect(r image.Rectangle, ext Bounds) (Bounds, error) {
	r = r.Intersect(ext.Rect())
	if r.Empty() {
		return Bounds{}, fmt.Errorf("%w: %v", ErrOutOfBounds, r)
	}
	return Bounds{
		XStart: uint16(r.Min.X), XEnd: uint16(r.Max.X - 1),
		YStart: uint16(r.Min.Y), YEnd: uint16(r.Max.Y - 1),
	}, nil
}

// HorizontalRange returns the columns of b as a closed Range.
func (b Bounds) HorizontalRange() Range {
	return Span(b.XStart, b.XEnd)
}

// VerticalRange returns the rows of b as a closed Range.
func (b Bounds) VerticalRange() Range {
	return Span(b.YStart, b.YEnd)
}

func (b Bounds) String() string {
	return fmt.Sprintf("[%d..=%d, %d..=%d]", b.XStart, b.XEnd, b.YStart, b.YEnd)
}
