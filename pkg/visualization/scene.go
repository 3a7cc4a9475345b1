// Package visualization assembles terrain and slice surfaces into a scene
// and renders it as a Plotly figure document for the plotting front end.
package visualization

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"seisterrain3d/internal/models"
)

// TerrainColorscale is the fixed earth-tone palette of the terrain surface
const TerrainColorscale = "earth"

// AmplitudeTitle labels the slice colorbar
const AmplitudeTitle = "Amplitude"

// DefaultLayout is the display metadata every scene carries
func DefaultLayout() models.Layout {
	return models.Layout{
		XAxisTitle: "X",
		YAxisTitle: "Y",
		ZAxisTitle: "Z (Elevation)",
		AspectMode: "data",
		Height:     850,
		Margin:     models.Margin{Left: 0, Right: 0, Bottom: 0, Top: 30},
	}
}

// Compose builds the scene from the repaired terrain and, when extraction
// produced one, the positioned slice. A nil geometry yields a terrain-only
// scene with SliceAvailable unset.
func Compose(terrain *models.RasterGrid, geom *models.SliceGeometry, zExaggeration, opacity float64, colorscale string) (*models.Scene, error) {
	if terrain == nil || terrain.Values == nil {
		return nil, fmt.Errorf("terrain is required")
	}
	if opacity < 0 || opacity > 1 {
		return nil, fmt.Errorf("opacity must be in [0, 1], got %v", opacity)
	}

	scene := &models.Scene{
		Surfaces: []models.Surface{terrainSurface(terrain, zExaggeration, opacity)},
		Layout:   DefaultLayout(),
	}
	if geom == nil {
		return scene, nil
	}

	if colorscale == "" {
		colorscale = geom.Colorscale
	}
	name := geom.Kind.String()
	if geom.Degraded {
		name += " (approximate)"
	}
	scene.Surfaces = append(scene.Surfaces, models.Surface{
		Name:          name,
		X:             geom.X,
		Y:             geom.Y,
		Z:             geom.Z,
		SurfaceColor:  geom.Color,
		Colorscale:    colorscale,
		Opacity:       1,
		ShowScale:     true,
		HasColorRange: true,
		CMin:          geom.CMin,
		CMax:          geom.CMax,
		ColorbarTitle: AmplitudeTitle,
	})
	scene.SliceAvailable = true
	scene.SliceDegraded = geom.Degraded
	return scene, nil
}

// terrainSurface places cell (r, c) at x = c, y = r with exaggerated height
func terrainSurface(terrain *models.RasterGrid, zExaggeration, opacity float64) models.Surface {
	rows, cols := terrain.Dims()
	X := mat.NewDense(rows, cols, nil)
	Y := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			X.Set(r, c, float64(c))
			Y.Set(r, c, float64(r))
		}
	}

	var Z mat.Dense
	Z.Scale(zExaggeration, terrain.Values)

	return models.Surface{
		Name:       "Terrain",
		X:          X,
		Y:          Y,
		Z:          &Z,
		Colorscale: TerrainColorscale,
		Opacity:    opacity,
		ShowScale:  false,
	}
}
