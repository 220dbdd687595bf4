package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/isobath/internal/bathy"
)

// DefaultConfigPath is the path to the canonical contour defaults file.
const DefaultConfigPath = "config/contour.defaults.json"

// maxFileSize caps the config file read by LoadContourConfig.
const maxFileSize = 1 * 1024 * 1024

// ContourConfig holds the contour engine and regeneration settings. Every
// field is optional; the Get* accessors supply defaults for nil fields, so
// a partial file only overrides what it names.
type ContourConfig struct {
	// Engine params
	Interval       *float64 `json:"interval,omitempty"`
	GridResolution *int     `json:"grid_resolution,omitempty"`
	IDWPower       *float64 `json:"idw_power,omitempty"`

	// Clamp bounds applied to caller-supplied interval and grid resolution
	MinInterval       *float64 `json:"min_interval,omitempty"`
	MaxInterval       *float64 `json:"max_interval,omitempty"`
	MinGridResolution *int     `json:"min_grid_resolution,omitempty"`
	MaxGridResolution *int     `json:"max_grid_resolution,omitempty"`

	// Drop polylines with a vertex outside lon/lat range
	GeographicBounds *bool `json:"geographic_bounds,omitempty"`

	// Service params
	MaxParallelSurveys *int    `json:"max_parallel_surveys,omitempty"`
	RegenerateTimeout  *string `json:"regenerate_timeout,omitempty"` // duration string like "2m"
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// DefaultContourConfig returns a config with every field set to its default.
func DefaultContourConfig() *ContourConfig {
	lim := bathy.DefaultLimits()
	return &ContourConfig{
		Interval:           ptrFloat64(bathy.DefaultInterval),
		GridResolution:     ptrInt(bathy.DefaultGridResolution),
		IDWPower:           ptrFloat64(bathy.DefaultPower),
		MinInterval:        ptrFloat64(lim.MinInterval),
		MaxInterval:        ptrFloat64(lim.MaxInterval),
		MinGridResolution:  ptrInt(lim.MinGridResolution),
		MaxGridResolution:  ptrInt(lim.MaxGridResolution),
		GeographicBounds:   ptrBool(true),
		MaxParallelSurveys: ptrInt(4),
		RegenerateTimeout:  ptrString("2m"),
	}
}

// LoadContourConfig loads a ContourConfig from a JSON file. The file must
// have a .json extension and be under 1MB.
func LoadContourConfig(path string) (*ContourConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &ContourConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching upward from the
// working directory. Panics if the file cannot be loaded; intended for tests.
func MustLoadDefaultConfig() *ContourConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadContourConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are usable.
func (c *ContourConfig) Validate() error {
	if c.Interval != nil && !(*c.Interval > 0) {
		return fmt.Errorf("interval must be positive, got %f", *c.Interval)
	}
	if c.GridResolution != nil && *c.GridResolution < 2 {
		return fmt.Errorf("grid_resolution must be at least 2, got %d", *c.GridResolution)
	}
	if c.IDWPower != nil && (!(*c.IDWPower > 0) || math.IsInf(*c.IDWPower, 0)) {
		return fmt.Errorf("idw_power must be a positive number, got %f", *c.IDWPower)
	}
	if c.MinInterval != nil && !(*c.MinInterval > 0) {
		return fmt.Errorf("min_interval must be positive, got %f", *c.MinInterval)
	}
	if lo, hi := c.GetMinInterval(), c.GetMaxInterval(); hi < lo {
		return fmt.Errorf("max_interval (%g) must not be below min_interval (%g)", hi, lo)
	}
	if c.MinGridResolution != nil && *c.MinGridResolution < 2 {
		return fmt.Errorf("min_grid_resolution must be at least 2, got %d", *c.MinGridResolution)
	}
	if lo, hi := c.GetMinGridResolution(), c.GetMaxGridResolution(); hi < lo {
		return fmt.Errorf("max_grid_resolution (%d) must not be below min_grid_resolution (%d)", hi, lo)
	}
	if c.MaxParallelSurveys != nil && *c.MaxParallelSurveys < 1 {
		return fmt.Errorf("max_parallel_surveys must be at least 1, got %d", *c.MaxParallelSurveys)
	}
	if c.RegenerateTimeout != nil && *c.RegenerateTimeout != "" {
		d, err := time.ParseDuration(*c.RegenerateTimeout)
		if err != nil {
			return fmt.Errorf("invalid regenerate_timeout '%s': %w", *c.RegenerateTimeout, err)
		}
		if d < 0 {
			return fmt.Errorf("regenerate_timeout must not be negative, got %s", d)
		}
	}
	return nil
}

// GetInterval returns the interval value or the default.
func (c *ContourConfig) GetInterval() float64 {
	if c.Interval == nil {
		return bathy.DefaultInterval
	}
	return *c.Interval
}

// GetGridResolution returns the grid_resolution value or the default.
func (c *ContourConfig) GetGridResolution() int {
	if c.GridResolution == nil {
		return bathy.DefaultGridResolution
	}
	return *c.GridResolution
}

// GetIDWPower returns the idw_power value or the default.
func (c *ContourConfig) GetIDWPower() float64 {
	if c.IDWPower == nil {
		return bathy.DefaultPower
	}
	return *c.IDWPower
}

func (c *ContourConfig) GetMinInterval() float64 {
	if c.MinInterval == nil {
		return bathy.DefaultLimits().MinInterval
	}
	return *c.MinInterval
}

func (c *ContourConfig) GetMaxInterval() float64 {
	if c.MaxInterval == nil {
		return bathy.DefaultLimits().MaxInterval
	}
	return *c.MaxInterval
}

func (c *ContourConfig) GetMinGridResolution() int {
	if c.MinGridResolution == nil {
		return bathy.DefaultLimits().MinGridResolution
	}
	return *c.MinGridResolution
}

func (c *ContourConfig) GetMaxGridResolution() int {
	if c.MaxGridResolution == nil {
		return bathy.DefaultLimits().MaxGridResolution
	}
	return *c.MaxGridResolution
}

// GetGeographicBounds returns the geographic_bounds value or the default (true).
func (c *ContourConfig) GetGeographicBounds() bool {
	if c.GeographicBounds == nil {
		return true
	}
	return *c.GeographicBounds
}

// GetMaxParallelSurveys returns the max_parallel_surveys value or the default.
func (c *ContourConfig) GetMaxParallelSurveys() int {
	if c.MaxParallelSurveys == nil {
		return 4
	}
	return *c.MaxParallelSurveys
}

// GetRegenerateTimeout parses the regenerate_timeout value. Zero means no
// deadline.
func (c *ContourConfig) GetRegenerateTimeout() time.Duration {
	if c.RegenerateTimeout == nil || *c.RegenerateTimeout == "" {
		return 2 * time.Minute
	}
	d, err := time.ParseDuration(*c.RegenerateTimeout)
	if err != nil {
		return 2 * time.Minute
	}
	return d
}

// Limits returns the clamp bounds as engine limits.
func (c *ContourConfig) Limits() bathy.Limits {
	return bathy.Limits{
		MinInterval:       c.GetMinInterval(),
		MaxInterval:       c.GetMaxInterval(),
		MinGridResolution: c.GetMinGridResolution(),
		MaxGridResolution: c.GetMaxGridResolution(),
	}
}

// EngineOptions converts the config to engine options. The result is not
// normalised; bathy.Generate does that.
func (c *ContourConfig) EngineOptions() bathy.Options {
	return bathy.Options{
		Interval:         c.GetInterval(),
		GridResolution:   c.GetGridResolution(),
		Power:            c.GetIDWPower(),
		GeographicBounds: c.GetGeographicBounds(),
		Limits:           c.Limits(),
	}
}
