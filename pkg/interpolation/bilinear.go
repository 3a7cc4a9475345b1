package interpolation

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// ValidFunc reports whether a source cell may contribute to interpolation
type ValidFunc func(v float64) bool

// Finite accepts every cell that is neither NaN nor infinite
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Bilinear resamples 2D grids with pixel-centre aligned bilinear weights.
// Invalid source cells are dropped from the weighted sum and the remaining
// weights renormalised; an output cell with no valid contributor is NaN.
type Bilinear struct {
	// Valid filters source cells; nil means Finite
	Valid ValidFunc

	// NumWorkers bounds the goroutines used for large grids
	NumWorkers int
}

// NewBilinear creates a resampler that ignores non-finite cells
func NewBilinear(valid ValidFunc) *Bilinear {
	if valid == nil {
		valid = Finite
	}
	return &Bilinear{
		Valid:      valid,
		NumWorkers: runtime.NumCPU(),
	}
}

// axisSample is a precomputed source position for one output index
type axisSample struct {
	lo, hi int
	frac   float64
}

// axisSamples maps n output positions onto an axis of srcN cells
func axisSamples(srcN, n int) []axisSample {
	scale := float64(srcN) / float64(n)
	out := make([]axisSample, n)
	for i := range out {
		pos := (float64(i)+0.5)*scale - 0.5
		if pos < 0 {
			pos = 0
		}
		if pos > float64(srcN-1) {
			pos = float64(srcN - 1)
		}
		lo := int(math.Floor(pos))
		hi := lo + 1
		if hi > srcN-1 {
			hi = srcN - 1
		}
		out[i] = axisSample{lo: lo, hi: hi, frac: pos - float64(lo)}
	}
	return out
}

// Resample returns a new rows × cols grid interpolated from src
func (b *Bilinear) Resample(src *mat.Dense, rows, cols int) (*mat.Dense, error) {
	if src == nil {
		return nil, fmt.Errorf("resample: nil source grid")
	}
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("resample: invalid target size %dx%d", rows, cols)
	}
	valid := b.Valid
	if valid == nil {
		valid = Finite
	}

	srcRows, srcCols := src.Dims()
	ys := axisSamples(srcRows, rows)
	xs := axisSamples(srcCols, cols)
	dst := mat.NewDense(rows, cols, nil)

	fillRow := func(r int) {
		y := ys[r]
		for c, x := range xs {
			corners := [4]struct {
				row, col int
				w        float64
			}{
				{y.lo, x.lo, (1 - y.frac) * (1 - x.frac)},
				{y.lo, x.hi, (1 - y.frac) * x.frac},
				{y.hi, x.lo, y.frac * (1 - x.frac)},
				{y.hi, x.hi, y.frac * x.frac},
			}
			var sum, weight float64
			for _, k := range corners {
				if k.w == 0 {
					continue
				}
				v := src.At(k.row, k.col)
				if !valid(v) {
					continue
				}
				sum += v * k.w
				weight += k.w
			}
			if weight == 0 {
				dst.Set(r, c, math.NaN())
				continue
			}
			dst.Set(r, c, sum/weight)
		}
	}

	workers := b.NumWorkers
	if workers < 1 {
		workers = 1
	}
	if workers > rows {
		workers = rows
	}
	if workers == 1 || rows*cols < 4096 {
		for r := 0; r < rows; r++ {
			fillRow(r)
		}
		return dst, nil
	}

	// Distinct rows per worker, so writes to dst never overlap
	var wg sync.WaitGroup
	band := (rows + workers - 1) / workers
	for start := 0; start < rows; start += band {
		end := start + band
		if end > rows {
			end = rows
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for r := start; r < end; r++ {
				fillRow(r)
			}
		}(start, end)
	}
	wg.Wait()
	return dst, nil
}

// Downsample shrinks src by an integer factor along both axes. Each output
// dimension is the source dimension divided by factor, never less than 1.
func (b *Bilinear) Downsample(src *mat.Dense, factor int) (*mat.Dense, error) {
	if factor < 1 {
		return nil, fmt.Errorf("downsample: factor must be positive, got %d", factor)
	}
	srcRows, srcCols := src.Dims()
	rows, cols := srcRows/factor, srcCols/factor
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}
	return b.Resample(src, rows, cols)
}
