// Package config provides configuration loading and management for fraclabelmap.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"fraclabelmap/pkg/conversion"
	"fraclabelmap/pkg/metrics"
	"fraclabelmap/pkg/voxelize"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Conversion rule parameters
	Conversion struct {
		// NumberOfOffsets is the sub-voxel sampling rate along each axis
		NumberOfOffsets int `yaml:"numberOfOffsets"`

		// OversamplingFactor resamples the labelmap before surface extraction
		OversamplingFactor float64 `yaml:"oversamplingFactor"`

		// DecimationFactor is the target fraction of triangles to remove
		DecimationFactor float64 `yaml:"decimationFactor"`

		// SmoothingFactor controls the strength of surface smoothing
		SmoothingFactor float64 `yaml:"smoothingFactor"`

		// DefaultResolution is the voxel count along the longest bounds axis
		// when no reference geometry is given
		DefaultResolution int `yaml:"defaultResolution"`

		// MaxVoxels limits the size of the fractional labelmap
		MaxVoxels int `yaml:"maxVoxels"`

		// CropToReferenceGeometry crops the output to the reference extent
		CropToReferenceGeometry bool `yaml:"cropToReferenceGeometry"`
	} `yaml:"conversion"`

	// Processing parameters
	Processing struct {
		// NumCores specifies how many CPU cores to use for parallel processing
		NumCores int `yaml:"numCores"`
	} `yaml:"processing"`

	// Output parameters
	Output struct {
		// SaveIntermediaryResults determines whether to save the labelmap slices
		SaveIntermediaryResults bool `yaml:"saveIntermediaryResults"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`

	// Round-trip metrics parameters
	Metrics struct {
		HistogramOrigin  float64 `yaml:"histogramOrigin"`
		HistogramSpacing float64 `yaml:"histogramSpacing"`
		HistogramBins    int     `yaml:"histogramBins"`
	} `yaml:"metrics"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Conversion.NumberOfOffsets = voxelize.DefaultNumberOfOffsets
	cfg.Conversion.OversamplingFactor = conversion.DefaultOversamplingFactor
	cfg.Conversion.DecimationFactor = conversion.DefaultDecimationFactor
	cfg.Conversion.SmoothingFactor = conversion.DefaultSmoothingFactor
	cfg.Conversion.DefaultResolution = conversion.DefaultResolution
	cfg.Conversion.MaxVoxels = conversion.DefaultMaxVoxels
	cfg.Conversion.CropToReferenceGeometry = false

	cfg.Processing.NumCores = runtime.NumCPU() // Use all available cores by default

	cfg.Output.SaveIntermediaryResults = false
	cfg.Output.Verbose = true

	cfg.Metrics.HistogramOrigin = metrics.DefaultHistogramOrigin
	cfg.Metrics.HistogramSpacing = metrics.DefaultHistogramSpacing
	cfg.Metrics.HistogramBins = metrics.DefaultHistogramBins

	return cfg
}

// ConversionParameters returns the rule parameter overrides described by
// the configuration, keyed by parameter name.
func (c *Config) ConversionParameters() map[string]string {
	crop := "0"
	if c.Conversion.CropToReferenceGeometry {
		crop = "1"
	}
	return map[string]string{
		conversion.NumberOfOffsetsParameterName:              strconv.Itoa(c.Conversion.NumberOfOffsets),
		conversion.OversamplingFactorParameterName:           formatFloat(c.Conversion.OversamplingFactor),
		conversion.DecimationFactorParameterName:             formatFloat(c.Conversion.DecimationFactor),
		conversion.SmoothingFactorParameterName:              formatFloat(c.Conversion.SmoothingFactor),
		conversion.CropToReferenceImageGeometryParameterName: crop,
	}
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "error reading config file")
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "error parsing config file")
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "error creating config directory")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "error marshaling config")
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return errors.Wrap(err, "error writing config file")
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}
