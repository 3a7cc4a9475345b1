// Package config provides configuration loading and management for seisterrain3d.
// It handles loading configuration from YAML files, provides default values and
// validates the render parameters supplied with every request.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"seisterrain3d/internal/models"
)

// Parameter ranges
const (
	MinZExaggeration = 0.1 // exclusive
	MaxZExaggeration = 10.0

	MinZOffset = -5000
	MaxZOffset = 5000

	MinContrastPercentile = 80
	MaxContrastPercentile = 100
)

// Colorscales lists the amplitude palettes the renderer understands
var Colorscales = []string{
	"rdbu", "balance", "gray", "greys", "picnic", "curl", "delta",
	"tealrose", "rdylbu", "puor", "brbg", "piyg", "viridis", "cividis",
}

// RenderParams is the validated parameter set for one render request
type RenderParams struct {
	// DownsampleFactor shrinks the raster by an integer factor on both axes
	DownsampleFactor int `yaml:"downsampleFactor" json:"downsampleFactor"`

	// ZExaggeration scales terrain elevations
	ZExaggeration float64 `yaml:"zExaggeration" json:"zExaggeration"`

	// TerrainOpacity is the terrain surface opacity
	TerrainOpacity float64 `yaml:"terrainOpacity" json:"terrainOpacity"`

	// ZOffset shifts the slice plane relative to mean exaggerated terrain
	ZOffset int `yaml:"zOffset" json:"zOffset"`

	SliceKind models.SliceKind `yaml:"sliceKind" json:"sliceKind"`

	// SliceIndex is clamped into the volume's extent, never rejected
	SliceIndex int `yaml:"sliceIndex" json:"sliceIndex"`

	Colorscale string `yaml:"colorscale" json:"colorscale"`

	// ContrastPercentile of |amplitude| sets the symmetric color limit
	ContrastPercentile int `yaml:"contrastPercentile" json:"contrastPercentile"`
}

// DefaultRenderParams returns the parameters used when none are given
func DefaultRenderParams() RenderParams {
	return RenderParams{
		DownsampleFactor:   4,
		ZExaggeration:      2.0,
		TerrainOpacity:     0.5,
		ZOffset:            -500,
		SliceKind:          models.TimeSlice,
		SliceIndex:         10,
		Colorscale:         "rdbu",
		ContrastPercentile: 98,
	}
}

// ValidationError lists every parameter that is out of range
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid render parameters: " + strings.Join(e.Problems, "; ")
}

// Validate checks every parameter against its range
func (p RenderParams) Validate() error {
	var problems []string

	if p.DownsampleFactor < 1 {
		problems = append(problems, fmt.Sprintf("downsampleFactor must be at least 1, got %d", p.DownsampleFactor))
	}
	if !(p.ZExaggeration > MinZExaggeration && p.ZExaggeration <= MaxZExaggeration) {
		problems = append(problems, fmt.Sprintf("zExaggeration must be in (%g, %g], got %g", MinZExaggeration, MaxZExaggeration, p.ZExaggeration))
	}
	if !(p.TerrainOpacity >= 0 && p.TerrainOpacity <= 1) {
		problems = append(problems, fmt.Sprintf("terrainOpacity must be in [0, 1], got %g", p.TerrainOpacity))
	}
	if p.ZOffset < MinZOffset || p.ZOffset > MaxZOffset {
		problems = append(problems, fmt.Sprintf("zOffset must be in [%d, %d], got %d", MinZOffset, MaxZOffset, p.ZOffset))
	}
	switch p.SliceKind {
	case models.TimeSlice, models.Inline, models.Crossline:
	default:
		problems = append(problems, fmt.Sprintf("sliceKind %v is not recognised", p.SliceKind))
	}
	if !IsColorscale(p.Colorscale) {
		problems = append(problems, fmt.Sprintf("colorscale %q is not one of %s", p.Colorscale, strings.Join(Colorscales, ", ")))
	}
	if p.ContrastPercentile < MinContrastPercentile || p.ContrastPercentile > MaxContrastPercentile {
		problems = append(problems, fmt.Sprintf("contrastPercentile must be in [%d, %d], got %d", MinContrastPercentile, MaxContrastPercentile, p.ContrastPercentile))
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// IsColorscale reports whether name is a recognised amplitude palette
func IsColorscale(name string) bool {
	i := sort.SearchStrings(sortedColorscales, name)
	return i < len(sortedColorscales) && sortedColorscales[i] == name
}

var sortedColorscales = func() []string {
	s := append([]string(nil), Colorscales...)
	sort.Strings(s)
	return s
}()

// Config represents the application configuration loaded from YAML
type Config struct {
	// Render holds the default render parameters; requests override them
	Render RenderParams `yaml:"render"`

	// Server parameters
	Server struct {
		// Address is the host:port the HTTP service listens on
		Address string `yaml:"address"`

		// AllowedOrigins feeds the CORS handler
		AllowedOrigins []string `yaml:"allowedOrigins"`

		// DataDir is the only local directory HTTP requests may read from.
		// Empty disables local sources over HTTP; s3:// and uploads still work.
		DataDir string `yaml:"dataDir"`
	} `yaml:"server"`

	// Storage parameters
	Storage struct {
		// AWSRegion is used for s3:// sources
		AWSRegion string `yaml:"awsRegion"`

		// TempDir receives materialized remote sources; empty means the OS default
		TempDir string `yaml:"tempDir"`
	} `yaml:"storage"`

	// Cache parameters bound what the server keeps between requests
	Cache struct {
		// TerrainEntries and SliceEntries size the render memo caches
		TerrainEntries int `yaml:"terrainEntries"`
		SliceEntries   int `yaml:"sliceEntries"`

		// MaxUploads is how many uploaded volumes stay on disk
		MaxUploads int `yaml:"maxUploads"`
	} `yaml:"cache"`

	// Segy parameters
	Segy struct {
		// InlineByte and CrosslineByte are the 1-based trace header positions
		InlineByte    int `yaml:"inlineByte"`
		CrosslineByte int `yaml:"crosslineByte"`
	} `yaml:"segy"`

	// Output parameters
	Output struct {
		// LogLevel is one of panic, fatal, error, warn, info, debug
		LogLevel string `yaml:"logLevel"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Render = DefaultRenderParams()

	cfg.Server.Address = ":8080"
	cfg.Server.AllowedOrigins = []string{"*"}

	cfg.Cache.TerrainEntries = 8
	cfg.Cache.SliceEntries = 64
	cfg.Cache.MaxUploads = 32

	cfg.Segy.InlineByte = 189
	cfg.Segy.CrosslineByte = 193

	cfg.Output.LogLevel = "info"

	return cfg
}

// Validate checks the whole configuration
func (c *Config) Validate() error {
	if err := c.Render.Validate(); err != nil {
		return err
	}
	if !validateLoggingLevel(c.Output.LogLevel) {
		return fmt.Errorf("invalid logLevel %q, must be one of %s", c.Output.LogLevel, availableLoggingLevelsString)
	}
	if c.Cache.TerrainEntries < 1 || c.Cache.SliceEntries < 1 || c.Cache.MaxUploads < 1 {
		return fmt.Errorf("cache sizes must be at least 1")
	}
	for _, b := range []int{c.Segy.InlineByte, c.Segy.CrosslineByte} {
		if b < 1 || b > 237 {
			return fmt.Errorf("segy header byte %d outside the 240-byte trace header", b)
		}
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("error validating config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
