package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fraclabelmap/internal/models"
	"fraclabelmap/pkg/conversion"
)

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, 6, cfg.Conversion.NumberOfOffsets)
	assert.Equal(t, 0.5, cfg.Conversion.SmoothingFactor)
	assert.Equal(t, 21, cfg.Metrics.HistogramBins)
	assert.Positive(t, cfg.Processing.NumCores)
}

func TestLoadOverridesSomeFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "conversion:\n  numberOfOffsets: 3\n  decimationFactor: 0.25\n  cropToReferenceGeometry: true\noutput:\n  verbose: false\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Conversion.NumberOfOffsets)
	assert.Equal(t, 0.25, cfg.Conversion.DecimationFactor)
	assert.False(t, cfg.Output.Verbose)
	// Fields missing from the file keep their defaults.
	assert.Equal(t, 0.5, cfg.Conversion.SmoothingFactor)
	assert.Equal(t, conversion.DefaultResolution, cfg.Conversion.DefaultResolution)

	params := cfg.ConversionParameters()
	assert.Equal(t, "3", params[conversion.NumberOfOffsetsParameterName])
	assert.Equal(t, "0.25", params[conversion.DecimationFactorParameterName])
	assert.Equal(t, "0.5", params[conversion.SmoothingFactorParameterName])
	assert.Equal(t, "1", params[conversion.OversamplingFactorParameterName])
	assert.Equal(t, "1", params[conversion.CropToReferenceImageGeometryParameterName])
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("conversion: [1, 2"), 0644))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Conversion.OversamplingFactor = 2
	cfg.Metrics.HistogramSpacing = 0.1
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	require.NoError(t, CreateDefaultConfigFile(path))
	loaded, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), loaded)
}

func TestParametersApplyToRegistry(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Conversion.NumberOfOffsets = 2
	reg := conversion.DefaultRegistry(nil)
	reg.SetParameters(cfg.ConversionParameters())

	rule, err := reg.Rule(models.ClosedSurfaceName, models.FractionalLabelmapName)
	require.NoError(t, err)
	n, err := rule.Parameters().Int(conversion.NumberOfOffsetsParameterName)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
