package models

import (
	"gonum.org/v1/gonum/mat"
)

// GeoTransform maps grid indices to georeferenced coordinates. Only the
// north-up, axis-aligned case carried by GeoTIFF pixel-scale/tiepoint
// tags is represented.
type GeoTransform struct {
	// OriginX, OriginY are the coordinates of the top-left corner of the
	// top-left cell
	OriginX float64
	OriginY float64

	// PixelWidth, PixelHeight are the cell sizes in map units. PixelHeight
	// is positive; rows increase southwards.
	PixelWidth  float64
	PixelHeight float64
}

// Scaled returns the transform for a grid resampled by factor
func (g GeoTransform) Scaled(factorX, factorY float64) GeoTransform {
	return GeoTransform{
		OriginX:     g.OriginX,
		OriginY:     g.OriginY,
		PixelWidth:  g.PixelWidth * factorX,
		PixelHeight: g.PixelHeight * factorY,
	}
}

// RasterGrid is a repaired elevation grid. Values contains no NaN, Inf or
// sentinel cells.
type RasterGrid struct {
	// Values holds elevations, rows × cols
	Values *mat.Dense

	// NoData is the sentinel the source declared, if any
	NoData *float64

	// RepairedCells counts cells that were invalid and got filled
	RepairedCells int

	// FillValue is the value invalid cells were filled with
	FillValue float64

	// AllInvalid is set when no cell was valid and the grid was zero-filled
	AllInvalid bool

	// Transform is set when the source was georeferenced
	Transform *GeoTransform
}

// Dims returns the grid's rows and columns
func (g *RasterGrid) Dims() (rows, cols int) {
	return g.Values.Dims()
}
