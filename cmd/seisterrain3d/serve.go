package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"seisterrain3d/pkg/render"
	"seisterrain3d/pkg/server"
	"seisterrain3d/pkg/storage"
)

var (
	serveAddress string
	serveDataDir string
)

var cmdServe = &cobra.Command{
	Use:   "serve",
	Short: "serve scenes over HTTP",
	Long:  "starts the HTTP service; renders are shared across requests through the in-memory caches",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if serveAddress != "" {
			cfg.Server.Address = serveAddress
		}
		if serveDataDir != "" {
			cfg.Server.DataDir = serveDataDir
		}
		if cfg.Server.DataDir == "" {
			log.Warnf("No data directory configured, local paths are refused over HTTP")
		}

		store := storage.NewMaterializer(cfg.Storage.AWSRegion, cfg.Storage.TempDir)
		defer store.Close()
		store.SetMaxUploads(cfg.Cache.MaxUploads)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		renderer := render.NewRendererWithLimits(segyOptions(cfg), render.Limits{
			TerrainEntries: cfg.Cache.TerrainEntries,
			SliceEntries:   cfg.Cache.SliceEntries,
		})
		srv := server.New(cfg, renderer, store)
		if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	cmdServe.Flags().StringVar(&serveAddress, "address", "", "listen address; overrides the configuration")
	cmdServe.Flags().StringVar(&serveDataDir, "data-dir", "", "directory local raster and volume paths must lie under; overrides the configuration")
}
