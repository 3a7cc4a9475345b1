package extraction

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"seisterrain3d/internal/models"
	"seisterrain3d/pkg/segy"
)

const (
	testInlines    = 50
	testCrosslines = 6
	testSamples    = 8
)

func testAmplitude(il, xl, s int) float64 {
	return float64(il*100+xl) - float64(s)*0.5
}

func writeVolume(t *testing.T) string {
	t.Helper()
	g := segy.Geometry{Inlines: make([]int, testInlines), Crosslines: make([]int, testCrosslines)}
	for i := range g.Inlines {
		g.Inlines[i] = 1000 + i
	}
	for j := range g.Crosslines {
		g.Crosslines[j] = 2000 + 2*j
	}
	path := filepath.Join(t.TempDir(), "volume.sgy")
	require.NoError(t, segy.WriteGrid(path, g, testSamples, testAmplitude, nil))
	return path
}

func TestExtractShapes(t *testing.T) {
	path := writeVolume(t)
	e := NewExtractor(segy.Options{})

	tests := []struct {
		kind       models.SliceKind
		index      int
		rows, cols int
	}{
		{models.Inline, 3, testSamples, testCrosslines},
		{models.Crossline, 2, testSamples, testInlines},
		{models.TimeSlice, 4, testCrosslines, testInlines},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			res := e.Extract(path, tt.kind, tt.index)
			require.Equal(t, models.Standard, res.Status, res.Reason)
			require.True(t, res.Available())

			rows, cols := res.Slice.Dims()
			assert.Equal(t, tt.rows, rows)
			assert.Equal(t, tt.cols, cols)
			assert.Equal(t, tt.index, res.Slice.Index)
			assert.Equal(t, tt.kind, res.Slice.Kind)
			assert.False(t, res.Slice.Degraded)
		})
	}
}

// TestExtractTransposes checks values land at (sample, crossline) for inlines
func TestExtractTransposes(t *testing.T) {
	path := writeVolume(t)
	e := NewExtractor(segy.Options{})

	res := e.Extract(path, models.Inline, 7)
	require.True(t, res.Available())
	assert.Equal(t, testAmplitude(7, 4, 5), res.Slice.Values.At(5, 4))

	res = e.Extract(path, models.TimeSlice, 3)
	require.True(t, res.Available())
	assert.Equal(t, testAmplitude(9, 2, 3), res.Slice.Values.At(2, 9))
}

// TestExtractClampsIndex verifies the 50-inline scenario: -5 reads inline 0
func TestExtractClampsIndex(t *testing.T) {
	path := writeVolume(t)
	e := NewExtractor(segy.Options{})

	low := e.Extract(path, models.Inline, -5)
	zero := e.Extract(path, models.Inline, 0)
	require.True(t, low.Available())
	require.True(t, zero.Available())
	assert.Equal(t, 0, low.Slice.Index)
	assert.True(t, mat.Equal(low.Slice.Values, zero.Slice.Values))

	high := e.Extract(path, models.Crossline, 999)
	last := e.Extract(path, models.Crossline, testCrosslines-1)
	require.True(t, high.Available())
	assert.Equal(t, testCrosslines-1, high.Slice.Index)
	assert.True(t, mat.Equal(high.Slice.Values, last.Slice.Values))

	deep := e.Extract(path, models.TimeSlice, 10)
	require.True(t, deep.Available())
	assert.Equal(t, testSamples-1, deep.Slice.Index)
}

// TestExtractDegraded verifies the single-trace fallback on a volume whose
// line numbers do not form a grid
func TestExtractDegraded(t *testing.T) {
	trace := []float64{1.5, -2, 3.25, 0, 7}
	traces := []segy.TraceRecord{
		{Inline: 1, Crossline: 1, Samples: []float64{9, 9, 9, 9, 9}},
		{Inline: 1, Crossline: 2, Samples: trace},
		{Inline: 2, Crossline: 1, Samples: []float64{4, 4, 4, 4, 4}},
	}
	path := filepath.Join(t.TempDir(), "irregular.sgy")
	require.NoError(t, segy.Write(path, traces, nil))

	res := NewExtractor(segy.Options{}).Extract(path, models.Inline, 1)
	require.Equal(t, models.Degraded, res.Status)
	require.True(t, res.Available())
	assert.True(t, res.Slice.Degraded)
	assert.NotEmpty(t, res.Reason)

	rows, cols := res.Slice.Dims()
	require.Equal(t, len(trace), rows)
	require.Equal(t, DegradedReplicationWidth, cols)
	for c := 0; c < cols; c++ {
		assert.Equal(t, trace, mat.Col(nil, c, res.Slice.Values), "column %d", c)
	}

	clamped := NewExtractor(segy.Options{}).Extract(path, models.Crossline, 40)
	require.Equal(t, models.Degraded, clamped.Status)
	assert.Equal(t, 2, clamped.Slice.Index)
}

func TestExtractUnavailable(t *testing.T) {
	dir := t.TempDir()
	e := NewExtractor(segy.Options{})

	res := e.Extract(filepath.Join(dir, "missing.sgy"), models.Inline, 0)
	assert.Equal(t, models.Unavailable, res.Status)
	assert.Nil(t, res.Slice)
	assert.False(t, res.Available())

	garbage := filepath.Join(dir, "garbage.sgy")
	require.NoError(t, os.WriteFile(garbage, []byte("not seismic"), 0644))
	res = e.Extract(garbage, models.TimeSlice, 0)
	assert.Equal(t, models.Unavailable, res.Status)
	assert.NotEmpty(t, res.Reason)
}

// TestExtentMatchesExtract verifies clamping through an extent gives the
// same slice as clamping inside Extract
func TestExtentMatchesExtract(t *testing.T) {
	path := writeVolume(t)
	e := NewExtractor(segy.Options{})

	tests := []struct {
		kind  models.SliceKind
		count int
	}{
		{models.Inline, testInlines},
		{models.Crossline, testCrosslines},
		{models.TimeSlice, testSamples},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			x := e.Extent(path, tt.kind)
			assert.Equal(t, models.Standard, x.Status)
			assert.Equal(t, tt.count, x.Count)

			for _, index := range []int{-3, 0, 2, tt.count + 10} {
				want := e.Extract(path, tt.kind, index)
				got := e.Extract(path, tt.kind, x.Clamp(index))
				assert.Equal(t, want.Slice.Index, got.Slice.Index)
				assert.True(t, mat.Equal(want.Slice.Values, got.Slice.Values))
			}
		})
	}

	traces := []segy.TraceRecord{
		{Inline: 1, Crossline: 1, Samples: []float64{1, 2}},
		{Inline: 1, Crossline: 2, Samples: []float64{3, 4}},
		{Inline: 2, Crossline: 1, Samples: []float64{5, 6}},
	}
	irregular := filepath.Join(t.TempDir(), "irregular.sgy")
	require.NoError(t, segy.Write(irregular, traces, nil))
	x := e.Extent(irregular, models.Inline)
	assert.Equal(t, Extent{Status: models.Degraded, Count: 3}, x)
	assert.Equal(t, 2, x.Clamp(99))

	x = e.Extent(filepath.Join(t.TempDir(), "missing.sgy"), models.Inline)
	assert.Equal(t, Extent{Status: models.Unavailable}, x)
	assert.Equal(t, 0, x.Clamp(5))
}

func TestExtractDetachedFromFile(t *testing.T) {
	path := writeVolume(t)
	res := NewExtractor(segy.Options{}).Extract(path, models.Crossline, 1)
	require.True(t, res.Available())

	before := mat.DenseCopyOf(res.Slice.Values)
	require.NoError(t, os.Remove(path))
	assert.True(t, mat.Equal(before, res.Slice.Values))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0, Clamp(-5, 0, 49))
	assert.Equal(t, 49, Clamp(70, 0, 49))
	assert.Equal(t, 0.5, Clamp(0.5, 0.0, 1.0))
}
