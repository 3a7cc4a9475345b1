package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"seisterrain3d/internal/models"
)

// TestDefaultRenderParamsValid verifies the defaults pass validation
func TestDefaultRenderParamsValid(t *testing.T) {
	if err := DefaultRenderParams().Validate(); err != nil {
		t.Errorf("Default render parameters are invalid: %v", err)
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("Default config is invalid: %v", err)
	}
}

// TestRenderParamsValidate verifies every range boundary
func TestRenderParamsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *RenderParams)
		wantErr bool
	}{
		{"exaggeration at upper bound", func(p *RenderParams) { p.ZExaggeration = 10 }, false},
		{"exaggeration at exclusive lower bound", func(p *RenderParams) { p.ZExaggeration = 0.1 }, true},
		{"exaggeration above range", func(p *RenderParams) { p.ZExaggeration = 10.5 }, true},
		{"opacity zero", func(p *RenderParams) { p.TerrainOpacity = 0 }, false},
		{"opacity above one", func(p *RenderParams) { p.TerrainOpacity = 1.01 }, true},
		{"offset lower bound", func(p *RenderParams) { p.ZOffset = -5000 }, false},
		{"offset below range", func(p *RenderParams) { p.ZOffset = -5001 }, true},
		{"negative slice index is clamped later", func(p *RenderParams) { p.SliceIndex = -5 }, false},
		{"unknown colorscale", func(p *RenderParams) { p.Colorscale = "rainbow-unicorn" }, true},
		{"balance colorscale", func(p *RenderParams) { p.Colorscale = "balance" }, false},
		{"percentile 80", func(p *RenderParams) { p.ContrastPercentile = 80 }, false},
		{"percentile 79", func(p *RenderParams) { p.ContrastPercentile = 79 }, true},
		{"percentile 101", func(p *RenderParams) { p.ContrastPercentile = 101 }, true},
		{"zero downsample", func(p *RenderParams) { p.DownsampleFactor = 0 }, true},
		{"bad slice kind", func(p *RenderParams) { p.SliceKind = models.SliceKind(7) }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultRenderParams()
			tt.mutate(&p)
			err := p.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidationErrorListsAllProblems(t *testing.T) {
	p := DefaultRenderParams()
	p.ZOffset = 9000
	p.ContrastPercentile = 50

	err := p.Validate()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected *ValidationError, got %v", err)
	}
	if len(verr.Problems) != 2 {
		t.Errorf("Expected 2 problems, got %d: %v", len(verr.Problems), verr.Problems)
	}
}

// TestConfigSaveLoad verifies YAML round trip including the slice kind
func TestConfigSaveLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Render.SliceKind = models.Crossline
	cfg.Render.ContrastPercentile = 95
	cfg.Server.Address = "127.0.0.1:9000"

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.Render != cfg.Render {
		t.Errorf("Expected render params %+v, got %+v", cfg.Render, loaded.Render)
	}
	if loaded.Server.Address != "127.0.0.1:9000" {
		t.Errorf("Expected address to round trip, got %q", loaded.Server.Address)
	}
}

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Render != DefaultRenderParams() {
		t.Errorf("Expected defaults, got %+v", cfg.Render)
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	doc := "render:\n  zExaggeration: 42\n  sliceKind: inline\n"
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected validation error for out-of-range exaggeration")
	}

	doc = "render:\n  sliceKind: sideways\n"
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected parse error for unknown slice kind")
	}
}

func TestSetLogLevel(t *testing.T) {
	l := NamedLogger("config-test")
	if err := SetLogLevel("debug"); err != nil {
		t.Fatalf("SetLogLevel failed: %v", err)
	}
	defer SetLogLevel("info")

	if l.GetLevel() != logrus.DebugLevel {
		t.Errorf("Expected debug level, got %v", l.GetLevel())
	}
	if NamedLogger("config-test") != l {
		t.Error("Expected NamedLogger to return the same logger for a name")
	}
	if err := SetLogLevel("chatty"); err == nil {
		t.Error("Expected error for unknown level")
	}
}

func TestLoadConfigDataDirAndCacheSizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	doc := "server:\n  dataDir: /srv/surveys\ncache:\n  sliceEntries: 5\n"
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Server.DataDir != "/srv/surveys" {
		t.Errorf("Expected dataDir /srv/surveys, got %q", cfg.Server.DataDir)
	}
	if cfg.Cache.SliceEntries != 5 || cfg.Cache.TerrainEntries != 8 || cfg.Cache.MaxUploads != 32 {
		t.Errorf("Unexpected cache sizes %+v", cfg.Cache)
	}

	doc = "cache:\n  maxUploads: 0\n"
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected validation error for zero maxUploads")
	}
}
