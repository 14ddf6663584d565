// Package term renders a text stream on a region of an SSD1963 panel.
//
// A Terminal keeps a pixel cursor inside its bounds, draws one glyph window
// per character and scrolls the region up when it runs out of rows. Lines
// wrap after as many characters as full glyph cells fit the region's width.
//
// Scrolling does not clear the uncovered bottom row: it keeps a copy of the
// line that moved up until glyphs overwrite it, and the part right of the
// cursor is cleared when the next line break arrives.
package term

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"periph.io/x/devices/v3/ssd1963/bounds"
	"periph.io/x/devices/v3/ssd1963/glyph"
	"periph.io/x/devices/v3/ssd1963/rgb565"
	"periph.io/x/devices/v3/ssd1963/scroll"
)

// Display is what a Terminal draws on. *ssd1963.Dev implements it.
//
// If the display also implements Transposed() bool and reports true, glyphs
// are streamed column by column.
type Display interface {
	scroll.Area
	Fill(b bounds.Bounds, c rgb565.Color) error
}

type transposer interface {
	Transposed() bool
}

// Config is the configuration of a Terminal.
type Config struct {
	// Bounds is the region text is drawn in. The zero value selects the
	// whole display.
	Bounds bounds.Bounds

	Foreground rgb565.Color
	Background rgb565.Color

	// Advance is the cursor step in pixels per character. Zero selects the
	// glyph width minus one, so neighboring cells share a column.
	Advance int

	Logger logrus.FieldLogger // Debug output (default: discarded)
}

// DefaultConfig is used when New is given a nil Config.
var DefaultConfig = Config{
	Foreground: rgb565.White,
	Background: rgb565.Black,
}

// Terminal writes text on a Display. It implements io.Writer and
// io.StringWriter.
type Terminal struct {
	d     Display
	g     *glyph.Set
	s     scroll.Scroller
	order glyph.Order
	log   logrus.FieldLogger

	fg, bg  rgb565.Color
	advance int
	gw, gh  int

	bounds  bounds.Bounds
	line    int // cursor row offset in pixels from bounds.YStart
	col     int // cursor column offset in pixels from bounds.XStart
	pending bool
	chars   int // characters on the current line
	lineLen int
	partial []byte
}

var (
	_ io.Writer       = (*Terminal)(nil)
	_ io.StringWriter = (*Terminal)(nil)
)

// New returns a terminal drawing g's glyphs on d and scrolling with s.
//
// cfg can be nil to use DefaultConfig.
func New(d Display, g *glyph.Set, s scroll.Scroller, cfg *Config) (*Terminal, error) {
	if d == nil || g == nil || s == nil {
		return nil, errors.New("term: display, glyph set and scroller are required")
	}
	if cfg == nil {
		c := DefaultConfig
		cfg = &c
	}
	t := &Terminal{
		d:       d,
		g:       g,
		s:       s,
		fg:      cfg.Foreground,
		bg:      cfg.Background,
		advance: cfg.Advance,
		log:     cfg.Logger,
	}
	t.gw, t.gh = g.Size()
	if t.advance == 0 {
		t.advance = max(t.gw-1, 1)
	}
	if t.advance < 0 {
		return nil, errors.New("term: advance must not be negative")
	}
	if tr, ok := d.(transposer); ok && tr.Transposed() {
		t.order = glyph.ColumnMajor
	}
	if t.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		t.log = l
	}

	b := cfg.Bounds
	if b == (bounds.Bounds{}) {
		b = d.Extent()
	}
	if err := t.setBounds(b); err != nil {
		return nil, err
	}
	return t, nil
}

// SetBounds moves the terminal to the region given by x and y, clipped
// against the display extent. The region must hold at least one glyph. The
// cursor returns to the top left corner.
func (t *Terminal) SetBounds(x, y bounds.Range) error {
	b, err := bounds.Clip(x, y, t.d.Extent())
	if err != nil {
		return fmt.Errorf("term: %w", err)
	}
	return t.setBounds(b)
}

func (t *Terminal) setBounds(b bounds.Bounds) error {
	if !b.Within(t.d.Extent()) {
		return fmt.Errorf("term: region %v: %w", b, bounds.ErrOutOfBounds)
	}
	if int(b.Width()) < t.gw || int(b.Height()) < t.gh {
		return fmt.Errorf("term: region %v smaller than one %dx%d glyph: %w", b, t.gw, t.gh, bounds.ErrOutOfBounds)
	}
	t.bounds = b
	t.lineLen = int(b.Width()) / t.gw
	t.line, t.col = 0, 0
	t.pending = false
	t.chars = 0
	t.partial = nil
	return nil
}

// Bounds returns the region the terminal draws in.
func (t *Terminal) Bounds() bounds.Bounds {
	return t.bounds
}

// SetColors changes the colors used for following characters.
func (t *Terminal) SetColors(fg, bg rgb565.Color) {
	t.fg, t.bg = fg, bg
}

// Clear fills the region with the background color and moves the cursor to
// the top left corner.
func (t *Terminal) Clear() error {
	if err := t.d.Fill(t.bounds, t.bg); err != nil {
		return err
	}
	return t.setBounds(t.bounds)
}

// Write renders p as UTF-8 text. A rune split across calls is completed by
// the next call. Bus errors abort the write; n counts the bytes consumed
// before the failing rune.
func (t *Terminal) Write(p []byte) (n int, err error) {
	buf, carried := p, len(t.partial)
	if carried > 0 {
		buf = append(t.partial, p...)
		t.partial = nil
	}
	for i := 0; i < len(buf); {
		if !utf8.FullRune(buf[i:]) {
			t.partial = bytes.Clone(buf[i:])
			break
		}
		r, size := utf8.DecodeRune(buf[i:])
		if err := t.put(r); err != nil {
			return max(i-carried, 0), err
		}
		i += size
	}
	return len(p), nil
}

// WriteString renders s.
func (t *Terminal) WriteString(s string) (int, error) {
	return t.Write([]byte(s))
}

// put runs one rune through the line splitter.
func (t *Terminal) put(r rune) error {
	if r == '\n' || r == '\r' {
		t.chars = 0
		t.pending = true
		return nil
	}
	if t.chars >= t.lineLen {
		t.chars = 0
		t.pending = true
	}
	t.chars++
	if t.pending {
		if err := t.newline(); err != nil {
			return err
		}
	}
	return t.draw(r)
}

// newline clears the rest of the current row and moves the cursor to the
// start of the next one, scrolling the region up if it does not fit.
func (t *Terminal) newline() error {
	if t.col < int(t.bounds.Width()) {
		rest := t.bounds
		rest.XStart += uint16(t.col)
		rest.YStart += uint16(t.line)
		err := rest.SetHeight(uint16(t.gh))
		if err == nil {
			err = t.d.Fill(rest, t.bg)
		}
		if err := skipBounds(err); err != nil {
			return err
		}
	}

	height := int(t.bounds.Height())
	if remaining := height - t.line - t.gh; remaining < t.gh {
		by := t.gh - remaining
		t.log.WithFields(logrus.Fields{"region": t.bounds, "by": by}).Debug("term: scroll up")
		if err := skipBounds(t.s.Scroll(t.d, t.bounds, 0, -int16(by))); err != nil {
			return err
		}
		t.line = height - t.gh
	} else {
		t.line += t.gh
	}
	t.col = 0
	t.pending = false
	return nil
}

func (t *Terminal) draw(r rune) error {
	win, err := t.cell()
	if err == nil {
		err = t.d.FillStream(win, colors(t.g.Pixels(r, t.order), t.fg, t.bg))
	}
	if err := skipBounds(err); err != nil {
		return err
	}
	t.col += t.advance
	return nil
}

// cell carves the glyph window at the cursor out of the region.
func (t *Terminal) cell() (bounds.Bounds, error) {
	if t.col >= int(t.bounds.Width()) || t.line >= int(t.bounds.Height()) {
		return bounds.Bounds{}, fmt.Errorf("term: cursor (%d, %d) outside %v: %w",
			t.col, t.line, t.bounds, bounds.ErrOutOfBounds)
	}
	win := t.bounds
	win.XStart += uint16(t.col)
	win.YStart += uint16(t.line)
	if err := win.SetWidth(uint16(t.gw)); err != nil {
		return bounds.Bounds{}, fmt.Errorf("term: glyph window: %w", err)
	}
	if err := win.SetHeight(uint16(t.gh)); err != nil {
		return bounds.Bounds{}, fmt.Errorf("term: glyph window: %w", err)
	}
	return win, nil
}

// skipBounds drops bounds errors, which only cost the operation that hit
// them.
func skipBounds(err error) error {
	if errors.Is(err, bounds.ErrOutOfBounds) {
		return nil
	}
	return err
}

func colors(pixels iter.Seq[bool], fg, bg rgb565.Color) iter.Seq[rgb565.Color] {
	return func(yield func(rgb565.Color) bool) {
		for on := range pixels {
			c := bg
			if on {
				c = fg
			}
			if !yield(c) {
				return
			}
		}
	}
}
