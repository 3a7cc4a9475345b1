package segy

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Sorting is the trace order of a regular volume
type Sorting int

const (
	// InlineSorted files keep the crossline number varying fastest
	InlineSorted Sorting = iota
	// CrosslineSorted files keep the inline number varying fastest
	CrosslineSorted
)

func (s Sorting) String() string {
	if s == CrosslineSorted {
		return "crossline-sorted"
	}
	return "inline-sorted"
}

// Geometry is the regular inline/crossline grid of a volume. Line numbers
// keep their file order.
type Geometry struct {
	Inlines    []int
	Crosslines []int
	Sorting    Sorting
}

// traceIndex maps inline position il and crossline position xl to a trace
func (g *Geometry) traceIndex(il, xl int) int {
	if g.Sorting == CrosslineSorted {
		return xl*len(g.Inlines) + il
	}
	return il*len(g.Crosslines) + xl
}

func (sf *File) lineNumbers(t int) (il, xl int, err error) {
	h, err := sf.traceHeader(t)
	if err != nil {
		return 0, 0, err
	}
	a, err := h.Int32At(sf.opts.InlineByte - 1)
	if err != nil {
		return 0, 0, err
	}
	b, err := h.Int32At(sf.opts.CrosslineByte - 1)
	if err != nil {
		return 0, 0, err
	}
	return int(a), int(b), nil
}

// inferGeometry reads every trace header and checks that the line numbers
// form a full, duplicate-free grid in one of the two sortings
func (sf *File) inferGeometry() (*Geometry, error) {
	n := sf.traceCount
	ils := make([]int, n)
	xls := make([]int, n)
	for t := 0; t < n; t++ {
		il, xl, err := sf.lineNumbers(t)
		if err != nil {
			return nil, err
		}
		ils[t], xls[t] = il, xl
	}

	if n == 1 {
		return &Geometry{Inlines: ils, Crosslines: xls, Sorting: InlineSorted}, nil
	}

	var (
		sorting    Sorting
		slow, fast []int
	)
	switch {
	case ils[0] == ils[1] && xls[0] != xls[1]:
		sorting, slow, fast = InlineSorted, ils, xls
	case xls[0] == xls[1] && ils[0] != ils[1]:
		sorting, slow, fast = CrosslineSorted, xls, ils
	default:
		return nil, errors.Wrapf(ErrInconsistentGeometry, "first traces (%d,%d) and (%d,%d) share no line", ils[0], xls[0], ils[1], xls[1])
	}

	width := 1
	for width < n && slow[width] == slow[0] {
		width++
	}
	if n%width != 0 {
		return nil, errors.Wrapf(ErrInconsistentGeometry, "%d traces do not fill lines of %d", n, width)
	}

	slowLines := make([]int, n/width)
	for i := range slowLines {
		slowLines[i] = slow[i*width]
	}
	fastLines := append([]int(nil), fast[:width]...)
	if err := checkDistinct(slowLines); err != nil {
		return nil, err
	}
	if err := checkDistinct(fastLines); err != nil {
		return nil, err
	}

	for t := 0; t < n; t++ {
		if slow[t] != slowLines[t/width] || fast[t] != fastLines[t%width] {
			return nil, errors.Wrapf(ErrInconsistentGeometry, "trace %d has lines (%d,%d)", t, ils[t], xls[t])
		}
	}

	g := &Geometry{Sorting: sorting}
	if sorting == InlineSorted {
		g.Inlines, g.Crosslines = slowLines, fastLines
	} else {
		g.Inlines, g.Crosslines = fastLines, slowLines
	}
	return g, nil
}

func checkDistinct(lines []int) error {
	seen := make(map[int]bool, len(lines))
	for _, l := range lines {
		if seen[l] {
			return errors.Wrapf(ErrInconsistentGeometry, "line %d repeats", l)
		}
		seen[l] = true
	}
	return nil
}

func (sf *File) requireGeometry() (*Geometry, error) {
	if sf.geometry == nil {
		return nil, ErrNoGeometry
	}
	return sf.geometry, nil
}

// Inline reads the inline at position pos as a crosslines x samples matrix
func (sf *File) Inline(pos int) (*mat.Dense, error) {
	g, err := sf.requireGeometry()
	if err != nil {
		return nil, err
	}
	if pos < 0 || pos >= len(g.Inlines) {
		return nil, errors.Wrapf(ErrOutOfRange, "inline position %d of %d", pos, len(g.Inlines))
	}
	return sf.gather(len(g.Crosslines), func(j int) int { return g.traceIndex(pos, j) })
}

// Crossline reads the crossline at position pos as an inlines x samples matrix
func (sf *File) Crossline(pos int) (*mat.Dense, error) {
	g, err := sf.requireGeometry()
	if err != nil {
		return nil, err
	}
	if pos < 0 || pos >= len(g.Crosslines) {
		return nil, errors.Wrapf(ErrOutOfRange, "crossline position %d of %d", pos, len(g.Crosslines))
	}
	return sf.gather(len(g.Inlines), func(i int) int { return g.traceIndex(i, pos) })
}

func (sf *File) gather(rows int, trace func(int) int) (*mat.Dense, error) {
	out := mat.NewDense(rows, sf.Binary.SamplesPerTrace, nil)
	for r := 0; r < rows; r++ {
		samples, err := sf.Trace(trace(r))
		if err != nil {
			return nil, err
		}
		out.SetRow(r, samples)
	}
	return out, nil
}

// DepthSlice reads sample s of every trace as an inlines x crosslines matrix
func (sf *File) DepthSlice(s int) (*mat.Dense, error) {
	g, err := sf.requireGeometry()
	if err != nil {
		return nil, err
	}
	if s < 0 || s >= sf.Binary.SamplesPerTrace {
		return nil, errors.Wrapf(ErrOutOfRange, "sample %d of %d", s, sf.Binary.SamplesPerTrace)
	}

	out := mat.NewDense(len(g.Inlines), len(g.Crosslines), nil)
	for i := range g.Inlines {
		for j := range g.Crosslines {
			v, err := sf.sampleAt(g.traceIndex(i, j), s)
			if err != nil {
				return nil, err
			}
			out.Set(i, j, v)
		}
	}
	return out, nil
}
