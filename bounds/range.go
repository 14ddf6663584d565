package bounds

import "fmt"

// Range is an inclusive range of coordinates whose ends may be left open.
// An open end resolves to the matching edge of the extent it is clipped
// against.
type Range struct {
	Start, End       uint16
	HasStart, HasEnd bool
}

// All is the fully open range.
func All() Range { return Range{} }

// From is the range starting at s, open at the end.
func From(s uint16) Range { return Range{Start: s, HasStart: true} }

// To is the range ending at e inclusive, open at the start.
func To(e uint16) Range { return Range{End: e, HasEnd: true} }

// Span is the closed range s..=e.
func Span(s, e uint16) Range {
	return Range{Start: s, End: e, HasStart: true, HasEnd: true}
}

func (r Range) resolve(lo, hi uint16) (uint16, uint16) {
	if r.HasStart {
		lo = r.Start
	}
	if r.HasEnd {
		hi = r.End
	}
	return lo, hi
}

func (r Range) String() string {
	s, e := "", ""
	if r.HasStart {
		s = fmt.Sprint(r.Start)
	}
	if r.HasEnd {
		e = "=" + fmt.Sprint(r.End)
	}
	return s + ".." + e
}
