// Package render runs the terrain + seismic slice pipeline:
//
// 1. Load and repair the terrain raster
// 2. Extract the requested slice from the volume
// 3. Position the slice relative to the terrain
// 4. Compose the scene
//
// Terrain grids and extraction results are memoized by source identity and
// the parameters that produced them, with slice indices clamped first.
package render

import (
	"fmt"
	"os"

	"github.com/pkg/errors"

	"seisterrain3d/internal/models"
	"seisterrain3d/pkg/cache"
	"seisterrain3d/pkg/config"
	"seisterrain3d/pkg/extraction"
	"seisterrain3d/pkg/geometry"
	"seisterrain3d/pkg/raster"
	"seisterrain3d/pkg/segy"
	"seisterrain3d/pkg/visualization"
)

var log = config.NamedLogger("render")

// Request describes one render
type Request struct {
	// Raster is the terrain source
	Raster raster.Source

	// VolumePath is a local SEG-Y file; empty renders terrain only
	VolumePath string

	// Params must pass Validate
	Params config.RenderParams

	// PreviewFile, when set, receives a JPEG of the slice amplitudes
	PreviewFile string
}

// Result is the outcome of a render
type Result struct {
	Scene *models.Scene

	Terrain    *models.RasterGrid
	Extraction models.ExtractionResult

	// Geometry is nil when no slice was available
	Geometry *models.SliceGeometry

	// Warnings lists quality problems that did not stop the render
	Warnings []string

	// TerrainCached and SliceCached report memo hits
	TerrainCached bool
	SliceCached   bool
}

// Renderer runs renders and owns the memo caches. It is safe for
// concurrent use.
type Renderer struct {
	segyOpts  segy.Options
	extractor *extraction.Extractor

	terrains *cache.Cache[*models.RasterGrid]
	extents  *cache.Cache[extraction.Extent]
	slices   *cache.Cache[models.ExtractionResult]
}

// Limits bounds the number of memoized entries per stage
type Limits struct {
	TerrainEntries int
	SliceEntries   int
}

// DefaultLimits returns the limits NewRenderer uses
func DefaultLimits() Limits {
	return Limits{TerrainEntries: 8, SliceEntries: 64}
}

// NewRenderer creates a renderer reading SEG-Y line numbers at the header
// positions in segyOpts
func NewRenderer(segyOpts segy.Options) *Renderer {
	return NewRendererWithLimits(segyOpts, DefaultLimits())
}

// NewRendererWithLimits creates a renderer with bounded memo caches
func NewRendererWithLimits(segyOpts segy.Options, limits Limits) *Renderer {
	return &Renderer{
		segyOpts:  segyOpts,
		extractor: extraction.NewExtractor(segyOpts),
		terrains:  cache.New[*models.RasterGrid]("terrain", limits.TerrainEntries),
		extents:   cache.New[extraction.Extent]("extent", limits.SliceEntries),
		slices:    cache.New[models.ExtractionResult]("slice", limits.SliceEntries),
	}
}

// Render runs the pipeline. It fails on invalid parameters and on terrain
// that cannot be loaded; a missing slice only adds a warning.
func (r *Renderer) Render(req Request) (*Result, error) {
	p := req.Params
	if err := p.Validate(); err != nil {
		return nil, err
	}
	res := &Result{}

	// Step 1
	log.Infof("Step 1: Loading terrain %v...", req.Raster)
	terrain, hit, err := r.loadTerrain(req.Raster, p.DownsampleFactor)
	if err != nil {
		return nil, err
	}
	res.Terrain, res.TerrainCached = terrain, hit
	if terrain.AllInvalid {
		res.Warnings = append(res.Warnings, "terrain has no valid cells; elevations were filled with 0")
	}

	// Step 2
	log.Infof("Step 2: Extracting %s %d...", p.SliceKind, p.SliceIndex)
	res.Extraction, res.SliceCached = r.extract(req.VolumePath, p.SliceKind, p.SliceIndex)
	switch res.Extraction.Status {
	case models.Degraded:
		res.Warnings = append(res.Warnings, "slice is an approximation: "+res.Extraction.Reason)
	case models.Unavailable:
		res.Warnings = append(res.Warnings, "no slice available: "+res.Extraction.Reason)
	}

	// Step 3
	if res.Extraction.Available() {
		log.Infof("Step 3: Positioning slice...")
		res.Geometry, err = geometry.Build(terrain, res.Extraction.Slice, p.SliceKind,
			p.ZExaggeration, float64(p.ZOffset), float64(p.ContrastPercentile))
		if err != nil {
			return nil, errors.Wrap(err, "failed to position slice")
		}
		res.Geometry.Colorscale = p.Colorscale

		if req.PreviewFile != "" {
			if err := visualization.SaveSlicePreview(res.Geometry, req.PreviewFile); err != nil {
				log.Warnf("Failed to save slice preview: %v", err)
			}
		}
	}

	// Step 4
	log.Infof("Step 4: Composing scene...")
	res.Scene, err = visualization.Compose(terrain, res.Geometry, p.ZExaggeration, p.TerrainOpacity, p.Colorscale)
	if err != nil {
		return nil, errors.Wrap(err, "failed to compose scene")
	}

	for _, w := range res.Warnings {
		log.Warnf("%s", w)
	}
	return res, nil
}

func (r *Renderer) loadTerrain(src raster.Source, factor int) (*models.RasterGrid, bool, error) {
	id, err := src.Identity()
	if err != nil {
		// No identity means nothing to cache; Load reports the failure
		grid, err := raster.Load(src, factor)
		return grid, false, err
	}
	return r.terrains.GetOrCompute(cache.Key("terrain", id, factor), func() (*models.RasterGrid, error) {
		return raster.Load(src, factor)
	})
}

func (r *Renderer) extract(path string, kind models.SliceKind, index int) (models.ExtractionResult, bool) {
	if path == "" {
		return models.ExtractionResult{Status: models.Unavailable, Reason: "no volume given"}, false
	}

	info, err := os.Stat(path)
	if err != nil {
		return r.extractor.Extract(path, kind, index), false
	}

	id := fmt.Sprintf("file:%s:%d:%d", path, info.Size(), info.ModTime().UnixNano())
	extent, _, _ := r.extents.GetOrCompute(cache.Key("extent", id, kind, r.segyOpts.InlineByte, r.segyOpts.CrosslineByte), func() (extraction.Extent, error) {
		return r.extractor.Extent(path, kind), nil
	})

	// Requests clamping to the same position share one entry
	pos := extent.Clamp(index)
	key := cache.Key("slice", id, kind, pos, r.segyOpts.InlineByte, r.segyOpts.CrosslineByte)
	result, hit, _ := r.slices.GetOrCompute(key, func() (models.ExtractionResult, error) {
		return r.extractor.Extract(path, kind, pos), nil
	})
	return result, hit
}
