// Package raster loads elevation rasters into repaired grids: read the first
// band, downsample it, and replace sentinel and non-finite cells so the
// result is safe to render.
package raster

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"seisterrain3d/internal/models"
	"seisterrain3d/pkg/config"
	"seisterrain3d/pkg/geotiff"
	"seisterrain3d/pkg/interpolation"
)

// OutlierThreshold is the absolute value above which a cell is treated as
// an undeclared sentinel
const OutlierThreshold = 1e10

// DefaultDownsampleFactor is the factor used when callers do not choose one
const DefaultDownsampleFactor = 4

var log = config.NamedLogger("raster")

// Source identifies a raster: a file path or an in-memory byte stream
type Source struct {
	// Path is read when Data is nil
	Path string

	// Data is an in-memory raster file
	Data []byte

	// Name labels in-memory sources in logs and errors
	Name string
}

// FileSource returns a Source reading from path
func FileSource(path string) Source {
	return Source{Path: path}
}

// BytesSource returns a Source over an in-memory raster file
func BytesSource(name string, data []byte) Source {
	return Source{Name: name, Data: data}
}

// String names the source for logs
func (s Source) String() string {
	if s.Data != nil {
		if s.Name != "" {
			return s.Name
		}
		return "<memory>"
	}
	return s.Path
}

// Identity returns a content address for the source: a hash of the bytes
// for in-memory data, and path, size and modification time for files.
// Files that cannot be stat'ed have no identity.
func (s Source) Identity() (string, error) {
	if s.Data != nil {
		return "mem:" + strconv.FormatUint(xxhash.Sum64(s.Data), 16), nil
	}
	info, err := os.Stat(s.Path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("file:%s:%d:%d", s.Path, info.Size(), info.ModTime().UnixNano()), nil
}

// LoadError reports a raster that is missing or cannot be parsed
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load raster %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Load reads the source's first band, downsamples it by factor and repairs
// invalid cells. The returned grid does not reference the source.
func Load(src Source, factor int) (*models.RasterGrid, error) {
	if factor < 1 {
		return nil, &LoadError{Source: src.String(), Err: errors.Errorf("downsample factor must be positive, got %d", factor)}
	}

	data, err := readSource(src)
	if err != nil {
		return nil, &LoadError{Source: src.String(), Err: err}
	}

	decoded, err := geotiff.Decode(data)
	if err != nil {
		return nil, &LoadError{Source: src.String(), Err: errors.Wrap(err, "not a readable raster")}
	}
	log.Debugf("Decoded %s: %dx%d, no-data %v", src, decoded.Width, decoded.Height, formatNoData(decoded.NoData))

	native := mat.NewDense(decoded.Height, decoded.Width, decoded.Data)
	resampler := interpolation.NewBilinear(validCell(decoded.NoData))
	values, err := resampler.Downsample(native, factor)
	if err != nil {
		return nil, &LoadError{Source: src.String(), Err: errors.Wrap(err, "downsampling failed")}
	}

	grid := &models.RasterGrid{Values: values, NoData: decoded.NoData}
	Repair(grid)

	if decoded.Geo != nil {
		rows, cols := values.Dims()
		t := models.GeoTransform{
			OriginX:     decoded.Geo.OriginX,
			OriginY:     decoded.Geo.OriginY,
			PixelWidth:  decoded.Geo.PixelWidth,
			PixelHeight: decoded.Geo.PixelHeight,
		}.Scaled(float64(decoded.Width)/float64(cols), float64(decoded.Height)/float64(rows))
		grid.Transform = &t
	}

	if grid.AllInvalid {
		log.Warnf("Raster %s has no valid cells, filled with 0", src)
	} else if grid.RepairedCells > 0 {
		log.Infof("Raster %s: repaired %d invalid cells with mean %.3f", src, grid.RepairedCells, grid.FillValue)
	}
	return grid, nil
}

func readSource(src Source) ([]byte, error) {
	if src.Data != nil {
		return src.Data, nil
	}
	if src.Path == "" {
		return nil, errors.New("no path or data given")
	}

	f, err := os.Open(src.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}

// validCell accepts finite, in-range cells that are not the sentinel
func validCell(noData *float64) interpolation.ValidFunc {
	return func(v float64) bool {
		if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > OutlierThreshold {
			return false
		}
		return noData == nil || v != *noData
	}
}

// Repair marks sentinel, outlier and non-finite cells invalid and fills
// them with the mean of the valid cells, or 0 when none is valid.
// It updates RepairedCells, FillValue and AllInvalid.
func Repair(grid *models.RasterGrid) {
	valid := validCell(grid.NoData)
	rows, cols := grid.Values.Dims()

	good := make([]float64, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if v := grid.Values.At(r, c); valid(v) {
				good = append(good, v)
			}
		}
	}

	grid.RepairedCells = rows*cols - len(good)
	grid.AllInvalid = len(good) == 0
	grid.FillValue = 0
	if len(good) > 0 {
		grid.FillValue = stat.Mean(good, nil)
	}
	if grid.RepairedCells == 0 {
		return
	}

	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if !valid(grid.Values.At(r, c)) {
				grid.Values.Set(r, c, grid.FillValue)
			}
		}
	}
}

func formatNoData(v *float64) string {
	if v == nil {
		return "none"
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}
