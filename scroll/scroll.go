// Package scroll moves rectangular regions of display memory through a
// caller-supplied buffer, a band of rows at a time.
//
// The controller has no copy primitive, so a move reads each band back over
// the bus into the buffer and writes it again at its destination. Bands are
// processed in the order that keeps overlapping source rows intact.
package scroll

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"slices"

	"github.com/sirupsen/logrus"
	"periph.io/x/devices/v3/ssd1963/bounds"
	"periph.io/x/devices/v3/ssd1963/rgb565"
)

var (
	// ErrBufferTooSmall is returned when the buffer cannot hold one row of
	// the region.
	ErrBufferTooSmall = errors.New("scroll: buffer smaller than one row")
	// ErrShortRead is returned when a read-back ends before the band is
	// complete.
	ErrShortRead = errors.New("scroll: read returned fewer pixels than requested")
)

// Area is display memory that can be read and written by window.
// *ssd1963.Dev implements it.
type Area interface {
	Extent() bounds.Bounds
	FillStream(b bounds.Bounds, pixels iter.Seq[rgb565.Color]) error
	ReadStream(b bounds.Bounds) iter.Seq2[rgb565.Color, error]
}

// Copy moves the content of src by (dx, dy), using buf as intermediate
// storage. Both src and its translation must lie within the area's extent.
// All checks happen before any bus traffic.
func Copy(a Area, src bounds.Bounds, dx, dy int16, buf []rgb565.Color) error {
	ext := a.Extent()
	if !src.Within(ext) {
		return fmt.Errorf("scroll: source %v: %w", src, bounds.ErrOutOfBounds)
	}
	if _, err := src.Translate(dx, dy, ext); err != nil {
		return fmt.Errorf("scroll: destination of %v moved by (%d, %d): %w", src, dx, dy, err)
	}
	if len(buf) < int(src.Width()) {
		return fmt.Errorf("%w: %d < %d", ErrBufferTooSmall, len(buf), src.Width())
	}
	chunk := min(src.Height(), uint16(min(len(buf)/int(src.Width()), 0xFFFF)))
	for band := range bands(src, chunk, dy > 0) {
		if err := copyBand(a, band, dx, dy, buf); err != nil {
			return err
		}
	}
	return nil
}

func copyBand(a Area, band bounds.Bounds, dx, dy int16, buf []rgb565.Color) error {
	n := int(band.Area())
	i := 0
	for c, err := range a.ReadStream(band) {
		if err != nil {
			return err
		}
		buf[i] = c
		if i++; i == n {
			break
		}
	}
	if i < n {
		return fmt.Errorf("%w: %d of %d in %v", ErrShortRead, i, n, band)
	}
	dst := band
	dst.MoveBy(dx, dy)
	return a.FillStream(dst, slices.Values(buf[:n]))
}

// bands splits b into bands of chunk rows from the top, plus one band with
// the remaining rows. reverse yields them bottom first.
func bands(b bounds.Bounds, chunk uint16, reverse bool) iter.Seq[bounds.Bounds] {
	return func(yield func(bounds.Bounds) bool) {
		n := (b.Height() + chunk - 1) / chunk
		for k := range n {
			if reverse {
				k = n - 1 - k
			}
			band := b
			band.YStart += k * chunk
			// 1 <= rows <= band.Height(), so this cannot fail.
			_ = band.SetHeight(min(chunk, band.Height()))
			if !yield(band) {
				return
			}
		}
	}
}

// Scroller moves the content inside a region.
type Scroller interface {
	// Scroll moves the content of region by (dx, dy). Content moved past
	// the edges of region is dropped; the uncovered part of region keeps
	// its previous content.
	Scroll(a Area, region bounds.Bounds, dx, dy int16) error
}

// CopyScroller implements Scroller by copying through a borrowed buffer.
type CopyScroller struct {
	buf []rgb565.Color
	log logrus.FieldLogger
}

// NewCopyScroller returns a scroller using buf. A larger buffer means fewer
// bus round trips; it must hold at least one row of the scrolled region.
//
// log can be nil.
func NewCopyScroller(buf []rgb565.Color, log logrus.FieldLogger) *CopyScroller {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &CopyScroller{buf: buf, log: log}
}

// Scroll implements Scroller.
func (s *CopyScroller) Scroll(a Area, region bounds.Bounds, dx, dy int16) error {
	if !region.Within(a.Extent()) {
		return fmt.Errorf("scroll: region %v: %w", region, bounds.ErrOutOfBounds)
	}
	src, ok := surviving(region, dx, dy)
	if !ok {
		s.log.WithField("region", region).Debug("scroll: nothing survives")
		return nil
	}
	s.log.WithFields(logrus.Fields{"region": region, "dx": dx, "dy": dy}).Debug("scroll: copy")
	return Copy(a, src, dx, dy, s.buf)
}

// surviving returns the part of region that stays inside it after moving by
// (dx, dy).
func surviving(region bounds.Bounds, dx, dy int16) (bounds.Bounds, bool) {
	src := region
	w, h := int(region.Width()), int(region.Height())
	if abs(int(dx)) >= w || abs(int(dy)) >= h {
		return src, false
	}
	if dx < 0 {
		src.XStart += uint16(-dx)
	} else {
		src.XEnd -= uint16(dx)
	}
	if dy < 0 {
		src.YStart += uint16(-dy)
	} else {
		src.YEnd -= uint16(dy)
	}
	return src, true
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
