package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"seisterrain3d/internal/models"
	"seisterrain3d/pkg/config"
	"seisterrain3d/pkg/raster"
	"seisterrain3d/pkg/render"
	"seisterrain3d/pkg/storage"
	"seisterrain3d/pkg/visualization"
)

type renderFlags struct {
	raster  string
	volume  string
	out     string
	preview string

	downsample int
	zExag      float64
	opacity    float64
	zOffset    int
	kind       string
	index      int
	colorscale string
	contrast   int
}

func newRenderCmd() *cobra.Command {
	var f *renderFlags
	cmd := &cobra.Command{
		Use:   "render",
		Short: "render a scene to a Plotly JSON file",
		Long:  "loads the terrain and an optional SEG-Y volume from local paths or s3:// URIs and writes the composed scene as Plotly figure JSON",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd.Context(), cmd.Flags(), f)
		},
	}
	f = bindRenderFlags(cmd.Flags())
	cmd.MarkFlagRequired("raster")
	return cmd
}

func bindRenderFlags(fl *pflag.FlagSet) *renderFlags {
	f := &renderFlags{}
	defaults := config.DefaultRenderParams()

	fl.StringVar(&f.raster, "raster", "", "GeoTIFF elevation model, local path or s3:// URI; - reads stdin")
	fl.StringVar(&f.volume, "volume", "", "SEG-Y volume, local path or s3:// URI")
	fl.StringVarP(&f.out, "out", "o", "scene.json", "output Plotly figure JSON")
	fl.StringVar(&f.preview, "preview", "", "optional JPEG preview of the slice amplitudes")

	fl.IntVar(&f.downsample, "downsample", defaults.DownsampleFactor, "raster downsample factor")
	fl.Float64Var(&f.zExag, "z-exaggeration", defaults.ZExaggeration, "vertical exaggeration")
	fl.Float64Var(&f.opacity, "opacity", defaults.TerrainOpacity, "terrain opacity")
	fl.IntVar(&f.zOffset, "z-offset", defaults.ZOffset, "slice offset from the mean exaggerated terrain")
	fl.StringVar(&f.kind, "kind", defaults.SliceKind.String(), "slice kind: Time Slice, Inline or Crossline")
	fl.IntVar(&f.index, "index", defaults.SliceIndex, "slice index, clamped to the volume")
	fl.StringVar(&f.colorscale, "colorscale", defaults.Colorscale, "amplitude colorscale")
	fl.IntVar(&f.contrast, "contrast", defaults.ContrastPercentile, "contrast percentile of |amplitude|")
	return f
}

// params starts from the configured defaults and applies the flags the
// user actually set
func (f *renderFlags) params(base config.RenderParams, set *pflag.FlagSet) (config.RenderParams, error) {
	p := base
	if set.Changed("downsample") {
		p.DownsampleFactor = f.downsample
	}
	if set.Changed("z-exaggeration") {
		p.ZExaggeration = f.zExag
	}
	if set.Changed("opacity") {
		p.TerrainOpacity = f.opacity
	}
	if set.Changed("z-offset") {
		p.ZOffset = f.zOffset
	}
	if set.Changed("kind") {
		kind, err := models.ParseSliceKind(f.kind)
		if err != nil {
			return p, err
		}
		p.SliceKind = kind
	}
	if set.Changed("index") {
		p.SliceIndex = f.index
	}
	if set.Changed("colorscale") {
		p.Colorscale = f.colorscale
	}
	if set.Changed("contrast") {
		p.ContrastPercentile = f.contrast
	}
	return p, p.Validate()
}

func runRender(ctx context.Context, set *pflag.FlagSet, f *renderFlags) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	params, err := f.params(cfg.Render, set)
	if err != nil {
		return err
	}

	store := storage.NewMaterializer(cfg.Storage.AWSRegion, cfg.Storage.TempDir)
	defer store.Close()

	src, err := resolveRaster(ctx, store, f.raster)
	if err != nil {
		return err
	}

	var volumePath string
	if f.volume != "" {
		if volumePath, err = store.Materialize(ctx, f.volume); err != nil {
			log.Warnf("Volume %v unavailable, rendering terrain only: %v", f.volume, err)
			volumePath = ""
		}
	}

	fmt.Println("================================")
	fmt.Println("SEISTERRAIN3D: SEISMIC SLICE ON TERRAIN")
	fmt.Println("================================")

	startTime := time.Now()
	res, err := render.NewRenderer(segyOptions(cfg)).Render(render.Request{
		Raster:      src,
		VolumePath:  volumePath,
		Params:      params,
		PreviewFile: f.preview,
	})
	if err != nil {
		return fmt.Errorf("render failed: %w", err)
	}
	if err := visualization.SaveFigure(res.Scene, f.out); err != nil {
		return err
	}
	processingTime := time.Since(startTime)

	rows, cols := res.Terrain.Dims()
	fmt.Printf("\nScene rendered in %.2f seconds\n", processingTime.Seconds())
	fmt.Printf("Output figure saved to: %s\n\n", f.out)
	fmt.Printf("Terrain: %d x %d cells, %d repaired\n", cols, rows, res.Terrain.RepairedCells)
	fmt.Printf("Slice: %s", res.Extraction.Status)
	if res.Extraction.Available() {
		fmt.Printf(" (%s %d)", params.SliceKind, res.Extraction.Slice.Index)
	}
	fmt.Println()
	if res.Geometry != nil && f.preview != "" {
		fmt.Printf("Slice preview saved to: %s\n", f.preview)
	}
	if len(res.Warnings) > 0 {
		fmt.Println("\nWarnings:")
		for _, w := range res.Warnings {
			fmt.Printf("- %s\n", w)
		}
	}
	return nil
}

func resolveRaster(ctx context.Context, store *storage.Materializer, uri string) (raster.Source, error) {
	if uri == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return raster.Source{}, fmt.Errorf("failed to read raster from stdin: %v", err)
		}
		return raster.BytesSource("stdin", data), nil
	}
	local, err := store.Materialize(ctx, uri)
	if err != nil {
		return raster.Source{}, err
	}
	return raster.FileSource(local), nil
}
