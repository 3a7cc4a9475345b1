// Package server exposes the render pipeline over HTTP.
//
//	GET  /api/scene   render from raster/volume URIs given as query parameters
//	POST /api/scene   render from multipart uploads "raster" and "volume"
//	GET  /healthz     liveness
//	GET  /metrics     Prometheus metrics
//
// Render parameters default to the configured ones and may be overridden
// by query parameters of the same name. Local raster and volume paths must
// lie under the configured data directory; relative ones are taken from it.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"seisterrain3d/internal/models"
	"seisterrain3d/pkg/config"
	"seisterrain3d/pkg/raster"
	"seisterrain3d/pkg/render"
	"seisterrain3d/pkg/storage"
	"seisterrain3d/pkg/visualization"
)

// MaxUploadBytes bounds a multipart render request
const MaxUploadBytes = 512 << 20

var log = config.NamedLogger("server")

// SceneResponse is the body of a successful render
type SceneResponse struct {
	SliceStatus string                `json:"sliceStatus"`
	SliceIndex  *int                  `json:"sliceIndex,omitempty"`
	Warnings    []string              `json:"warnings"`
	Figure      *visualization.Figure `json:"figure"`
}

// ErrorResponse is the body of a failed request
type ErrorResponse struct {
	Error    string   `json:"error"`
	Problems []string `json:"problems,omitempty"`
}

// Server serves renders
type Server struct {
	cfg      *config.Config
	renderer *render.Renderer
	store    *storage.Materializer
	router   *mux.Router
}

// New creates a server and registers its routes
func New(cfg *config.Config, renderer *render.Renderer, store *storage.Materializer) *Server {
	s := &Server{cfg: cfg, renderer: renderer, store: store, router: mux.NewRouter()}

	s.router.Use(PrometheusMiddleware)
	s.router.HandleFunc("/api/scene", s.handleSceneFromURIs).Methods(http.MethodGet)
	s.router.HandleFunc("/api/scene", s.handleSceneFromUploads).Methods(http.MethodPost)
	s.router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "ok\n")
	}).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return s
}

// Handler returns the router wrapped with access logging and CORS
func (s *Server) Handler() http.Handler {
	cors := handlers.CORS(
		handlers.AllowedHeaders([]string{"X-Requested-With", "Content-Type"}),
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		handlers.AllowedOrigins(s.cfg.Server.AllowedOrigins),
	)
	return handlers.LoggingHandler(log.Writer(), cors(s.router))
}

// ListenAndServe serves until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.Server.Address, Handler: s.Handler()}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Infof("Listening on %v", s.cfg.Server.Address)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Infof("Shutting down")
		return srv.Shutdown(context.Background())
	}
}

func (s *Server) handleSceneFromURIs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params, err := parseParams(s.cfg.Render, q.Get)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	rasterURI := q.Get("raster")
	if rasterURI == "" {
		writeError(w, http.StatusBadRequest, errors.New("raster parameter is required"))
		return
	}
	rasterPath, err := storage.ResolveUnder(s.cfg.Server.DataDir, rasterURI)
	if err == nil {
		rasterPath, err = s.store.Materialize(r.Context(), rasterPath)
	}
	if err != nil {
		writeError(w, sourceStatus(err), err)
		return
	}

	var volumePath string
	if uri := q.Get("volume"); uri != "" {
		local, err := storage.ResolveUnder(s.cfg.Server.DataDir, uri)
		if err != nil {
			writeError(w, sourceStatus(err), err)
			return
		}
		if volumePath, err = s.store.Materialize(r.Context(), local); err != nil {
			// A missing volume degrades to a terrain-only scene
			log.Warnf("Volume %v unavailable: %v", uri, err)
			volumePath = ""
		}
	}

	s.render(w, render.Request{Raster: raster.FileSource(rasterPath), VolumePath: volumePath, Params: params})
}

func (s *Server) handleSceneFromUploads(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid multipart form: %v", err))
		return
	}
	params, err := parseParams(s.cfg.Render, r.FormValue)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	rasterName, rasterData, err := readUpload(r, "raster")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var volumePath string
	if len(r.MultipartForm.File["volume"]) > 0 {
		name, data, err := readUpload(r, "volume")
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		path, release, err := s.store.MaterializeBytes(name, data)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		defer release()
		volumePath = path
	}

	s.render(w, render.Request{Raster: raster.BytesSource(rasterName, rasterData), VolumePath: volumePath, Params: params})
}

func readUpload(r *http.Request, field string) (string, []byte, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return "", nil, fmt.Errorf("%s upload is required: %v", field, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read %s upload: %v", field, err)
	}
	return header.Filename, data, nil
}

func (s *Server) render(w http.ResponseWriter, req render.Request) {
	res, err := s.renderer.Render(req)
	if err != nil {
		writeError(w, renderStatus(err), err)
		return
	}

	body := SceneResponse{
		SliceStatus: res.Extraction.Status.String(),
		Warnings:    res.Warnings,
		Figure:      visualization.PlotlyFigure(res.Scene),
	}
	if body.Warnings == nil {
		body.Warnings = []string{}
	}
	if res.Extraction.Status != models.Unavailable {
		idx := res.Extraction.Slice.Index
		body.SliceIndex = &idx
	}
	writeJSON(w, http.StatusOK, body)
}

// parseParams overrides defaults with any parameters get returns
func parseParams(defaults config.RenderParams, get func(string) string) (config.RenderParams, error) {
	p := defaults

	ints := map[string]*int{
		"downsample": &p.DownsampleFactor,
		"zOffset":    &p.ZOffset,
		"index":      &p.SliceIndex,
		"contrast":   &p.ContrastPercentile,
	}
	for name, dst := range ints {
		if v := get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return p, fmt.Errorf("%s must be an integer, got %q", name, v)
			}
			*dst = n
		}
	}

	floatParams := map[string]*float64{
		"zExaggeration": &p.ZExaggeration,
		"opacity":       &p.TerrainOpacity,
	}
	for name, dst := range floatParams {
		if v := get(name); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return p, fmt.Errorf("%s must be a number, got %q", name, v)
			}
			*dst = f
		}
	}

	if v := get("kind"); v != "" {
		kind, err := models.ParseSliceKind(v)
		if err != nil {
			return p, err
		}
		p.SliceKind = kind
	}
	if v := get("colorscale"); v != "" {
		p.Colorscale = v
	}
	return p, nil
}

func sourceStatus(err error) int {
	if errors.Is(err, storage.ErrOutsideRoot) {
		return http.StatusBadRequest
	}
	if errors.Is(err, os.ErrNotExist) || errors.Is(err, storage.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusBadGateway
}

func renderStatus(err error) int {
	var verr *config.ValidationError
	var lerr *raster.LoadError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.As(err, &lerr):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, status int, err error) {
	body := ErrorResponse{Error: err.Error()}
	var verr *config.ValidationError
	if errors.As(err, &verr) {
		body.Problems = verr.Problems
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("Failed to write response: %v", err)
	}
}
