package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"seisterrain3d/internal/models"
)

func rampTerrain(rows, cols int) *models.RasterGrid {
	m := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			m.Set(r, c, 100+float64(r)*0.75+float64(c)*1.5)
		}
	}
	return &models.RasterGrid{Values: m}
}

func signedSlice(rows, cols int, kind models.SliceKind) *models.VolumeSlice {
	m := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			m.Set(r, c, math.Sin(float64(r*cols+c))*float64(r+1))
		}
	}
	return &models.VolumeSlice{Values: m, Kind: kind}
}

// TestTimeSliceFlatAtBase checks the 200x100 terrain scenario
func TestTimeSliceFlatAtBase(t *testing.T) {
	terrain := rampTerrain(100, 200)
	slice := signedSlice(30, 40, models.TimeSlice)

	g, err := Build(terrain, slice, models.TimeSlice, 2, -500, 98)
	require.NoError(t, err)

	data := mat.DenseCopyOf(terrain.Values).RawMatrix().Data
	floats.Scale(2, data)
	want := stat.Mean(data, nil) - 500

	assert.Equal(t, want, g.ZBase)
	rows, cols := g.Z.Dims()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			require.Equal(t, want, g.Z.At(r, c), "Z at (%d,%d)", r, c)
		}
	}

	assert.Equal(t, 0.0, g.X.At(0, 0))
	assert.Equal(t, 200.0, g.X.At(0, 39))
	assert.Equal(t, 0.0, g.Y.At(0, 5))
	assert.Equal(t, 100.0, g.Y.At(29, 5))
}

func TestShapesMatchSlice(t *testing.T) {
	terrain := rampTerrain(20, 30)
	for _, kind := range models.SliceKinds {
		t.Run(kind.String(), func(t *testing.T) {
			slice := signedSlice(12, 7, kind)
			g, err := Build(terrain, slice, kind, 1.5, 0, 90)
			require.NoError(t, err)
			for _, m := range []*mat.Dense{g.X, g.Y, g.Z, g.Color} {
				r, c := m.Dims()
				assert.Equal(t, 12, r)
				assert.Equal(t, 7, c)
			}
			assert.True(t, mat.Equal(slice.Values, g.Color))
			assert.Equal(t, kind, g.Kind)
		})
	}
}

func TestInlineSection(t *testing.T) {
	terrain := rampTerrain(21, 31)
	slice := signedSlice(11, 5, models.Inline)

	g, err := Build(terrain, slice, models.Inline, 1, 0, 98)
	require.NoError(t, err)

	// Integer halving of the odd extent
	assert.Equal(t, 15.0, g.X.At(3, 2))
	assert.Equal(t, 0.0, g.Y.At(0, 0))
	assert.Equal(t, 21.0, g.Y.At(0, 4))
	assert.Equal(t, g.ZBase-SectionHalfHeight, g.Z.At(0, 3))
	assert.Equal(t, g.ZBase+SectionHalfHeight, g.Z.At(10, 3))
	assert.InDelta(t, g.ZBase, g.Z.At(5, 0), 1e-9)
}

func TestCrosslineSection(t *testing.T) {
	terrain := rampTerrain(21, 31)
	slice := signedSlice(11, 5, models.Crossline)

	g, err := Build(terrain, slice, models.Crossline, 1, 0, 98)
	require.NoError(t, err)

	assert.Equal(t, 10.0, g.Y.At(7, 1))
	assert.Equal(t, 31.0, g.X.At(2, 4))
	assert.Equal(t, g.ZBase-SectionHalfHeight, g.Z.At(0, 0))
}

// TestColorRangeSymmetric verifies cmax is the percentile of |slice| and
// cmin its exact negation
func TestColorRangeSymmetric(t *testing.T) {
	terrain := rampTerrain(5, 5)
	slice := signedSlice(9, 11, models.TimeSlice)

	for _, p := range []float64{80, 85, 98, 100} {
		g, err := Build(terrain, slice, models.TimeSlice, 1, 0, p)
		require.NoError(t, err)
		assert.Equal(t, -g.CMax, g.CMin)
		assert.Equal(t, AbsPercentile(slice.Values, p), g.CMax)
	}

	g, err := Build(terrain, slice, models.TimeSlice, 1, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, mat.Max(absOf(slice.Values)), g.CMax)
}

func absOf(m *mat.Dense) *mat.Dense {
	out := mat.DenseCopyOf(m)
	out.Apply(func(_, _ int, v float64) float64 { return math.Abs(v) }, out)
	return out
}

func TestPercentile(t *testing.T) {
	x := []float64{4, 1, 3, 2, 5}
	assert.Equal(t, 5.0, Percentile(x, 100))
	assert.Equal(t, 1.0, Percentile(x, 0))
	assert.Equal(t, 3.0, Percentile(x, 50))
	assert.InDelta(t, 4.2, Percentile([]float64{1, 2, 3, 4, 5}, 80), 1e-12)
	assert.InDelta(t, 4.92, Percentile([]float64{1, 2, 3, 4, 5}, 98), 1e-12)
	assert.Equal(t, 0.0, Percentile(nil, 90))
}

func TestLinspace(t *testing.T) {
	assert.Equal(t, []float64{0, 2.5, 5, 7.5, 10}, Linspace(0, 10, 5))
	assert.Equal(t, []float64{3}, Linspace(3, 9, 1))
	assert.Nil(t, Linspace(0, 1, 0))
}

func TestBuildDeterministic(t *testing.T) {
	terrain := rampTerrain(10, 12)
	slice := signedSlice(6, 8, models.Inline)

	a, err := Build(terrain, slice, models.Inline, 2, -500, 98)
	require.NoError(t, err)
	b, err := Build(terrain, slice, models.Inline, 2, -500, 98)
	require.NoError(t, err)

	assert.True(t, mat.Equal(a.X, b.X))
	assert.True(t, mat.Equal(a.Z, b.Z))
	assert.Equal(t, a.CMax, b.CMax)
}

func TestBuildErrors(t *testing.T) {
	terrain := rampTerrain(4, 4)
	slice := signedSlice(3, 3, models.Inline)

	_, err := Build(nil, slice, models.Inline, 1, 0, 98)
	assert.Error(t, err)
	_, err = Build(terrain, nil, models.Inline, 1, 0, 98)
	assert.Error(t, err)
	_, err = Build(terrain, slice, models.Inline, 0, 0, 98)
	assert.Error(t, err)
	_, err = Build(terrain, slice, models.Inline, 1, 0, 79)
	assert.Error(t, err)
	_, err = Build(terrain, slice, models.SliceKind(9), 1, 0, 98)
	assert.Error(t, err)
}
