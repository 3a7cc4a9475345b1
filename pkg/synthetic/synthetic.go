// Package synthetic generates terrain rasters and seismic volumes with
// known structure for demos and tests.
package synthetic

import (
	"bytes"
	"math"
	"os"

	"seisterrain3d/pkg/geotiff"
	"seisterrain3d/pkg/segy"
)

// NoDataValue marks holes in generated terrain
const NoDataValue = -9999.0

// TerrainOptions controls Terrain
type TerrainOptions struct {
	Rows, Cols int

	// BaseElevation is the mean height in metres
	BaseElevation float64

	// Relief is the hill amplitude in metres
	Relief float64

	// Holes is the number of no-data cells to punch along the diagonal
	Holes int

	// PixelSize in map units; zero leaves the raster without georeference
	PixelSize float64
}

// DefaultTerrainOptions is a 200 x 100 hilly surface with a few holes
func DefaultTerrainOptions() TerrainOptions {
	return TerrainOptions{
		Rows:          100,
		Cols:          200,
		BaseElevation: 350,
		Relief:        80,
		Holes:         10,
		PixelSize:     25,
	}
}

// Terrain returns smooth rolling hills on a gentle ramp
func Terrain(opts TerrainOptions) *geotiff.Raster {
	r := &geotiff.Raster{
		Width:  opts.Cols,
		Height: opts.Rows,
		Data:   make([]float64, opts.Rows*opts.Cols),
	}
	for y := 0; y < opts.Rows; y++ {
		for x := 0; x < opts.Cols; x++ {
			hills := math.Sin(float64(x)/15) * math.Cos(float64(y)/20)
			ramp := float64(x+y) / float64(opts.Rows+opts.Cols)
			r.Data[y*opts.Cols+x] = opts.BaseElevation + opts.Relief*(hills+ramp)
		}
	}

	if opts.Holes > 0 {
		noData := NoDataValue
		r.NoData = &noData
		n := opts.Rows
		if opts.Cols < n {
			n = opts.Cols
		}
		for i := 0; i < opts.Holes && i < n; i++ {
			d := i * n / opts.Holes
			r.Data[d*opts.Cols+d] = NoDataValue
		}
	}

	if opts.PixelSize > 0 {
		r.Geo = &geotiff.GeoReference{
			OriginX:     500000,
			OriginY:     6000000,
			PixelWidth:  opts.PixelSize,
			PixelHeight: opts.PixelSize,
		}
	}
	return r
}

// TerrainBytes encodes the terrain as a Deflate-compressed GeoTIFF
func TerrainBytes(opts TerrainOptions) ([]byte, error) {
	var buf bytes.Buffer
	err := geotiff.Encode(&buf, Terrain(opts), &geotiff.EncodeOptions{Compression: geotiff.CompressionDeflate})
	return buf.Bytes(), err
}

// WriteTerrain saves the terrain GeoTIFF to path
func WriteTerrain(path string, opts TerrainOptions) error {
	data, err := TerrainBytes(opts)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// VolumeOptions controls Volume
type VolumeOptions struct {
	Inlines, Crosslines, Samples int

	// FirstInline, FirstCrossline number the lines
	FirstInline, FirstCrossline int

	// Frequency of the Ricker wavelet in Hz
	Frequency float64

	// SampleInterval in microseconds
	SampleInterval int

	Format  int
	Sorting segy.Sorting
}

// DefaultVolumeOptions is a small volume of dipping reflectors
func DefaultVolumeOptions() VolumeOptions {
	return VolumeOptions{
		Inlines:        50,
		Crosslines:     40,
		Samples:        120,
		FirstInline:    100,
		FirstCrossline: 300,
		Frequency:      25,
		SampleInterval: 4000,
		Format:         segy.FormatIEEEFloat,
	}
}

// Ricker returns the Ricker wavelet of peak frequency f at time t seconds
func Ricker(f, t float64) float64 {
	a := math.Pi * math.Pi * f * f * t * t
	return (1 - 2*a) * math.Exp(-a)
}

// Amplitude returns the trace sample at inline position il, crossline
// position xl and sample s: three reflectors that dip across the survey
func Amplitude(opts VolumeOptions, il, xl, s int) float64 {
	dt := float64(opts.SampleInterval) / 1e6
	t := float64(s) * dt
	total := float64(opts.Samples) * dt

	var v float64
	for k, rc := range []float64{1, -0.7, 0.5} {
		t0 := total * (0.25 + 0.25*float64(k))
		t0 += 0.02 * total * (float64(il)/float64(opts.Inlines) - float64(xl)/float64(opts.Crosslines))
		v += rc * Ricker(opts.Frequency, t-t0)
	}
	return v
}

// WriteVolume saves a regular volume to path
func WriteVolume(path string, opts VolumeOptions) error {
	g := segy.Geometry{
		Inlines:    make([]int, opts.Inlines),
		Crosslines: make([]int, opts.Crosslines),
		Sorting:    opts.Sorting,
	}
	for i := range g.Inlines {
		g.Inlines[i] = opts.FirstInline + i
	}
	for j := range g.Crosslines {
		g.Crosslines[j] = opts.FirstCrossline + j
	}

	return segy.WriteGrid(path, g, opts.Samples, func(il, xl, s int) float64 {
		return Amplitude(opts, il, xl, s)
	}, &segy.WriteOptions{
		Format:         opts.Format,
		SampleInterval: opts.SampleInterval,
		Text:           "SYNTHETIC DIPPING REFLECTORS\nRICKER WAVELET",
	})
}

// WriteIrregularVolume saves a volume whose last inline misses a trace,
// so it cannot be read with geometry
func WriteIrregularVolume(path string, opts VolumeOptions) error {
	var traces []segy.TraceRecord
	for i := 0; i < opts.Inlines; i++ {
		for j := 0; j < opts.Crosslines; j++ {
			if i == opts.Inlines-1 && j == opts.Crosslines-1 && i > 0 {
				continue
			}
			tr := segy.TraceRecord{
				Inline:    opts.FirstInline + i,
				Crossline: opts.FirstCrossline + j,
				Samples:   make([]float64, opts.Samples),
			}
			for s := range tr.Samples {
				tr.Samples[s] = Amplitude(opts, i, j, s)
			}
			traces = append(traces, tr)
		}
	}
	return segy.Write(path, traces, &segy.WriteOptions{Format: opts.Format, SampleInterval: opts.SampleInterval})
}
