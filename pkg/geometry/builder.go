// Package geometry positions an amplitude slice in the terrain's frame:
// coordinate grids per slice orientation, the elevation the slice is
// anchored to, and a symmetric color range.
package geometry

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"seisterrain3d/internal/models"
)

// SectionHalfHeight is the vertical half-extent of inline and crossline
// sections around the base elevation
const SectionHalfHeight = 500.0

// DefaultColorscale is used until the caller picks a palette
const DefaultColorscale = "rdbu"

// Contrast percentile bounds
const (
	MinPercentile = 80.0
	MaxPercentile = 100.0
)

// Build computes the slice's X, Y, Z grids and color range. Terrain spans
// nx = cols by ny = rows; time slices lie flat at the base elevation and
// sections stand vertically through the terrain's centre line.
func Build(terrain *models.RasterGrid, slice *models.VolumeSlice, kind models.SliceKind, zExaggeration, zOffset, contrastPercentile float64) (*models.SliceGeometry, error) {
	if terrain == nil || terrain.Values == nil {
		return nil, fmt.Errorf("terrain is required")
	}
	if slice == nil || slice.Values == nil {
		return nil, fmt.Errorf("slice is required")
	}
	if !(zExaggeration > 0) {
		return nil, fmt.Errorf("z exaggeration must be positive, got %v", zExaggeration)
	}
	if contrastPercentile < MinPercentile || contrastPercentile > MaxPercentile {
		return nil, fmt.Errorf("contrast percentile must be in [%v, %v], got %v", MinPercentile, MaxPercentile, contrastPercentile)
	}

	ny, nx := terrain.Dims()
	rows, cols := slice.Dims()
	zBase := BaseElevation(terrain, zExaggeration, zOffset)

	X := mat.NewDense(rows, cols, nil)
	Y := mat.NewDense(rows, cols, nil)
	Z := mat.NewDense(rows, cols, nil)

	switch kind {
	case models.TimeSlice:
		xs := Linspace(0, float64(nx), cols)
		ys := Linspace(0, float64(ny), rows)
		for r := 0; r < rows; r++ {
			X.SetRow(r, xs)
			fill(Y, r, ys[r])
			fill(Z, r, zBase)
		}

	case models.Inline:
		ys := Linspace(0, float64(ny), cols)
		zs := Linspace(zBase-SectionHalfHeight, zBase+SectionHalfHeight, rows)
		for r := 0; r < rows; r++ {
			fill(X, r, float64(nx/2))
			Y.SetRow(r, ys)
			fill(Z, r, zs[r])
		}

	case models.Crossline:
		xs := Linspace(0, float64(nx), cols)
		zs := Linspace(zBase-SectionHalfHeight, zBase+SectionHalfHeight, rows)
		for r := 0; r < rows; r++ {
			X.SetRow(r, xs)
			fill(Y, r, float64(ny/2))
			fill(Z, r, zs[r])
		}

	default:
		return nil, fmt.Errorf("unknown slice kind %v", kind)
	}

	cmax := AbsPercentile(slice.Values, contrastPercentile)
	return &models.SliceGeometry{
		X:          X,
		Y:          Y,
		Z:          Z,
		Color:      mat.DenseCopyOf(slice.Values),
		Colorscale: DefaultColorscale,
		CMin:       -cmax,
		CMax:       cmax,
		ZBase:      zBase,
		Kind:       kind,
		Degraded:   slice.Degraded,
	}, nil
}

func fill(m *mat.Dense, r int, v float64) {
	_, cols := m.Dims()
	for c := 0; c < cols; c++ {
		m.Set(r, c, v)
	}
}

// BaseElevation returns mean(terrain * zExaggeration) + zOffset
func BaseElevation(terrain *models.RasterGrid, zExaggeration, zOffset float64) float64 {
	scaled := mat.DenseCopyOf(terrain.Values)
	data := scaled.RawMatrix().Data
	floats.Scale(zExaggeration, data)
	return stat.Mean(data, nil) + zOffset
}

// Linspace returns n evenly spaced values from start to end inclusive.
// A single value sits at start; the last value is exactly end.
func Linspace(start, end float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	if n == 1 {
		out[0] = start
		return out
	}
	floats.Span(out, start, end)
	out[n-1] = end
	return out
}

// AbsPercentile returns the p-th percentile of |m| using linear
// interpolation between closest ranks
func AbsPercentile(m *mat.Dense, p float64) float64 {
	rows, cols := m.Dims()
	abs := make([]float64, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			abs = append(abs, math.Abs(m.At(r, c)))
		}
	}
	return Percentile(abs, p)
}

// Percentile returns the p-th percentile of x, p in [0, 100], interpolating
// linearly between the two nearest ranks. x is sorted in place.
func Percentile(x []float64, p float64) float64 {
	if len(x) == 0 {
		return 0
	}
	sort.Float64s(x)

	rank := p / 100 * float64(len(x)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo < 0 {
		lo = 0
	}
	if hi > len(x)-1 {
		hi = len(x) - 1
	}
	if lo == hi {
		return x[lo]
	}
	return x[lo] + (x[hi]-x[lo])*(rank-float64(lo))
}
