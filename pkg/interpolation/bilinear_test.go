package interpolation

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// createTestGrid creates a rows × cols grid following pattern
func createTestGrid(rows, cols int, pattern func(r, c int) float64) *mat.Dense {
	g := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			g.Set(r, c, pattern(r, c))
		}
	}
	return g
}

// TestResampleIdentity verifies that resampling to the same size is exact
func TestResampleIdentity(t *testing.T) {
	src := createTestGrid(7, 5, func(r, c int) float64 { return float64(r*10+c) + 0.125 })
	b := NewBilinear(nil)

	dst, err := b.Resample(src, 7, 5)
	if err != nil {
		t.Fatalf("Resample failed: %v", err)
	}
	if !mat.Equal(src, dst) {
		t.Errorf("Expected identity resample to reproduce the source exactly")
	}
}

// TestDownsampleLinearField verifies that bilinear sampling of a linear
// field reproduces the field at the output pixel centres
func TestDownsampleLinearField(t *testing.T) {
	src := createTestGrid(8, 8, func(r, c int) float64 { return 2*float64(r) + float64(c) })
	b := NewBilinear(nil)

	dst, err := b.Downsample(src, 2)
	if err != nil {
		t.Fatalf("Downsample failed: %v", err)
	}
	rows, cols := dst.Dims()
	if rows != 4 || cols != 4 {
		t.Fatalf("Expected 4x4 output, got %dx%d", rows, cols)
	}

	// Output (r, c) centre maps to source position 2r+0.5, 2c+0.5
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			want := 2*(2*float64(r)+0.5) + (2*float64(c) + 0.5)
			if math.Abs(dst.At(r, c)-want) > 1e-9 {
				t.Errorf("(%d,%d): expected %v, got %v", r, c, want, dst.At(r, c))
			}
		}
	}
}

func TestDownsampleSkipsInvalidCells(t *testing.T) {
	sentinel := -9999.0
	src := createTestGrid(4, 4, func(r, c int) float64 { return 100 })
	src.Set(0, 0, sentinel)

	b := NewBilinear(func(v float64) bool { return Finite(v) && v != sentinel })
	dst, err := b.Downsample(src, 2)
	if err != nil {
		t.Fatalf("Downsample failed: %v", err)
	}
	if got := dst.At(0, 0); got != 100 {
		t.Errorf("Expected sentinel to be excluded, got %v", got)
	}

	allBad := createTestGrid(2, 2, func(r, c int) float64 { return sentinel })
	dst, err = b.Downsample(allBad, 2)
	if err != nil {
		t.Fatalf("Downsample failed: %v", err)
	}
	if !math.IsNaN(dst.At(0, 0)) {
		t.Errorf("Expected NaN when no contributor is valid, got %v", dst.At(0, 0))
	}
}

func TestDownsampleMinimumSize(t *testing.T) {
	src := createTestGrid(3, 2, func(r, c int) float64 { return 1 })
	dst, err := NewBilinear(nil).Downsample(src, 4)
	if err != nil {
		t.Fatalf("Downsample failed: %v", err)
	}
	rows, cols := dst.Dims()
	if rows != 1 || cols != 1 {
		t.Errorf("Expected 1x1 output, got %dx%d", rows, cols)
	}

	if _, err := NewBilinear(nil).Downsample(src, 0); err == nil {
		t.Error("Expected error for zero factor")
	}
}

// TestResampleParallelMatchesSerial verifies worker banding does not change results
func TestResampleParallelMatchesSerial(t *testing.T) {
	src := createTestGrid(300, 200, func(r, c int) float64 { return math.Sin(float64(r)/7) * math.Cos(float64(c)/11) })

	serial := &Bilinear{Valid: Finite, NumWorkers: 1}
	parallel := &Bilinear{Valid: Finite, NumWorkers: 8}

	a, err := serial.Resample(src, 150, 90)
	if err != nil {
		t.Fatalf("Serial resample failed: %v", err)
	}
	b, err := parallel.Resample(src, 150, 90)
	if err != nil {
		t.Fatalf("Parallel resample failed: %v", err)
	}
	if !mat.Equal(a, b) {
		t.Error("Parallel and serial resampling differ")
	}
}
