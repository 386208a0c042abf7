// Package config loads pdf2epub settings from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/yuanying/pdf2epub/internal/raster"
)

// MaxFileSize limits config input to prevent memory exhaustion.
const MaxFileSize = 1 << 20

// Sentinel errors for config operations.
var (
	ErrConfigNotFound = errors.New("config file not found")
	ErrConfigParse    = errors.New("failed to parse config")
	ErrConfigTooLarge = errors.New("config file too large")
	ErrInvalidConfig  = errors.New("invalid config")
)

// Output container formats.
const (
	FormatEPUB   = "epub"
	FormatZIP    = "zip"
	FormatImages = "images"
)

// Config holds all settings for a conversion run.
type Config struct {
	Render  RenderConfig  `yaml:"render"`
	Output  OutputConfig  `yaml:"output"`
	Log     LogConfig     `yaml:"log"`
	Poppler PopplerConfig `yaml:"poppler"`
}

// RenderConfig defines rasterization settings.
type RenderConfig struct {
	DPI     int    `yaml:"dpi"`
	Width   int    `yaml:"width"`
	Height  int    `yaml:"height"`
	Format  string `yaml:"format"`  // "png" or "jpeg"
	Workers int    `yaml:"workers"` // 0 = derive from GOMAXPROCS
}

// OutputConfig defines the container format.
type OutputConfig struct {
	Format string `yaml:"format"` // "epub", "zip" or "images"
}

// LogConfig defines logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// PopplerConfig points at the poppler-utils binaries.
type PopplerConfig struct {
	Pdftoppm string `yaml:"pdftoppm"`
	Pdfinfo  string `yaml:"pdfinfo"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	spec := raster.DefaultRenderSpec()
	return &Config{
		Render: RenderConfig{
			DPI:    spec.DPI,
			Width:  spec.Width,
			Height: spec.Height,
			Format: string(spec.Format),
		},
		Output: OutputConfig{Format: FormatEPUB},
		Log:    LogConfig{Level: "info", Format: "text"},
		Poppler: PopplerConfig{
			Pdftoppm: raster.DefaultPdftoppm,
			Pdfinfo:  raster.DefaultPdfinfo,
		},
	}
}

// LoadConfig reads path over the defaults. Unknown fields are rejected.
func LoadConfig(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, err
	}
	if info.Size() > MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrConfigTooLarge, info.Size(), MaxFileSize)
	}

	data, err := os.ReadFile(path) // #nosec G304 -- config path is user-provided
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML data over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := yaml.UnmarshalWithOptions(data, cfg, yaml.Strict()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfigParse, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if _, err := c.RenderSpec(); err != nil {
		return fmt.Errorf("%w: render: %w", ErrInvalidConfig, err)
	}
	if c.Render.Workers < 0 {
		return fmt.Errorf("%w: render.workers must not be negative", ErrInvalidConfig)
	}
	switch strings.ToLower(c.Output.Format) {
	case FormatEPUB, FormatZIP, FormatImages:
	default:
		return fmt.Errorf("%w: output.format %q (use epub, zip or images)", ErrInvalidConfig, c.Output.Format)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log.level %q", ErrInvalidConfig, c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log.format %q", ErrInvalidConfig, c.Log.Format)
	}
	return nil
}

// RenderSpec converts the render section to a raster.RenderSpec.
func (c *Config) RenderSpec() (raster.RenderSpec, error) {
	format, err := raster.ParseFormat(c.Render.Format)
	if err != nil {
		return raster.RenderSpec{}, err
	}
	spec := raster.RenderSpec{
		DPI:    c.Render.DPI,
		Width:  c.Render.Width,
		Height: c.Render.Height,
		Format: format,
	}
	return spec, spec.Validate()
}

// Backend builds the poppler backend described by the config.
func (c *Config) Backend() *raster.PopplerBackend {
	b := raster.NewPopplerBackend()
	if c.Poppler.Pdftoppm != "" {
		b.Pdftoppm = c.Poppler.Pdftoppm
	}
	if c.Poppler.Pdfinfo != "" {
		b.Pdfinfo = c.Poppler.Pdfinfo
	}
	return b
}
