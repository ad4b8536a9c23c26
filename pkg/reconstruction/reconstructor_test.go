package reconstruction

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"fraclabelmap/internal/models"
	"fraclabelmap/pkg/conversion"
	"fraclabelmap/pkg/stl"
)

// unitReference is a reference geometry with 1 mm voxels aligned to the
// world axes.
func unitReference() string {
	m := models.NewImageToWorld(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}, models.IdentityDirections)
	return models.SerializeGeometry(m, models.Extent{})
}

// TestNewReconstructor verifies that a new reconstructor is correctly initialized
func TestNewReconstructor(t *testing.T) {
	params := &Params{
		InputFile:         "/path/to/input.stl",
		OutputFile:        "output.stl",
		NumCores:          4,
		DefaultResolution: 32,
		Parameters: map[string]string{
			conversion.NumberOfOffsetsParameterName: "4",
			conversion.SmoothingFactorParameterName: "0.1",
		},
	}

	reconstructor := NewReconstructor(params)

	if reconstructor.params != params {
		t.Errorf("Reconstructor should use the provided params")
	}

	if reconstructor.logger == nil {
		t.Errorf("Reconstructor should have a logger even when none is given")
	}

	rule, err := reconstructor.Registry().Rule(models.ClosedSurfaceName, models.FractionalLabelmapName)
	if err != nil {
		t.Fatalf("Failed to find forward rule: %v", err)
	}
	forward := rule.(*conversion.ClosedSurfaceToFractionalLabelmap)
	if forward.NumWorkers != 4 || forward.DefaultResolution != 32 {
		t.Errorf("Expected 4 workers at resolution 32, got %d at %d", forward.NumWorkers, forward.DefaultResolution)
	}
	if v, _ := forward.Parameters().Get(conversion.NumberOfOffsetsParameterName); v != "4" {
		t.Errorf("Expected number of offsets 4, got %q", v)
	}

	rule, err = reconstructor.Registry().Rule(models.FractionalLabelmapName, models.ClosedSurfaceName)
	if err != nil {
		t.Fatalf("Failed to find inverse rule: %v", err)
	}
	if v, _ := rule.Parameters().Get(conversion.SmoothingFactorParameterName); v != "0.1" {
		t.Errorf("Expected smoothing factor 0.1, got %q", v)
	}
}

// TestProcessWithoutInput verifies that a missing surface is reported
func TestProcessWithoutInput(t *testing.T) {
	if err := NewReconstructor(&Params{}).Process(); err == nil {
		t.Error("Expected error without an input surface, got nil")
	}

	missing := filepath.Join(t.TempDir(), "missing.stl")
	if err := NewReconstructor(&Params{InputFile: missing}).Process(); err == nil {
		t.Error("Expected error for a missing STL file, got nil")
	}
}

// TestProcessInvalidParameter verifies that rule errors reach the caller
func TestProcessInvalidParameter(t *testing.T) {
	params := &Params{
		Surface:    models.NewBox(r3.Vec{}, r3.Vec{X: 2, Y: 2, Z: 2}),
		Parameters: map[string]string{conversion.NumberOfOffsetsParameterName: "0"},
	}
	reconstructor := NewReconstructor(params)
	err := reconstructor.Process()
	if !errors.Is(err, conversion.ErrInvalidParameter) {
		t.Fatalf("Expected ErrInvalidParameter, got %v", err)
	}
	if reconstructor.GetSurface() != nil {
		t.Errorf("No surface should be produced after a failed conversion")
	}
}

// TestVoxelVolume verifies the voxel volume of an oriented geometry
func TestVoxelVolume(t *testing.T) {
	dirs := [3]r3.Vec{{Y: 1}, {X: -1}, {Z: 1}}
	m := models.NewImageToWorld(r3.Vec{X: 5}, r3.Vec{X: 0.5, Y: 2, Z: 3}, dirs)
	if v := voxelVolume(m); math.Abs(v-3) > 1e-12 {
		t.Errorf("Expected voxel volume 3, got %f", v)
	}
}

// TestMetricsString verifies the report printed by the command line
func TestMetricsString(t *testing.T) {
	var m ValidationMetrics
	m.OriginalVolume = 10
	m.ReconstructedVolume = 9.5
	m.RelativeVolumeDifference = 0.05
	m.OccupiedVoxels = 12
	m.BinaryVolume = 9.75

	s := m.String()
	for _, want := range []string{"Original volume:        10.0000", "Volume difference:      5.00%", "Binary volume:          9.7500", "Occupied voxels:        12"} {
		if !strings.Contains(s, want) {
			t.Errorf("Expected report to contain %q, got:\n%s", want, s)
		}
	}
}

// TestBasicReconstructor runs the full round trip on a sphere read from an
// STL file and checks the saved outputs and metrics
func TestBasicReconstructor(t *testing.T) {
	// Skip this test for regular unit testing, as it is slow and comprehensive
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tmpDir := t.TempDir()
	inputFile := filepath.Join(tmpDir, "sphere.stl")
	outputFile := filepath.Join(tmpDir, "output.stl")
	intermediaryDir := filepath.Join(tmpDir, "intermediary")

	sphere := models.NewUVSphere(r3.Vec{X: 0.25, Y: -0.5, Z: 0.1}, 8, 32, 64)
	if err := stl.SaveMesh(inputFile, sphere); err != nil {
		t.Fatalf("Failed to write input STL: %v", err)
	}

	params := &Params{
		InputFile:  inputFile,
		OutputFile: outputFile,
		NumCores:   2,
		Parameters: map[string]string{
			conversion.ReferenceImageGeometryParameterName: unitReference(),
			conversion.SmoothingFactorParameterName:        "0",
		},
		SaveIntermediaryResults: true,
		IntermediaryDir:         intermediaryDir,
	}

	reconstructor := NewReconstructor(params)
	if err := reconstructor.Process(); err != nil {
		t.Fatalf("Reconstruction failed: %v", err)
	}

	metrics := reconstructor.GetMetrics()

	if metrics.RelativeVolumeDifference > 0.03 {
		t.Errorf("Volume difference too large: %.2f%%", metrics.RelativeVolumeDifference*100)
	}

	if rel := math.Abs(metrics.LabelmapVolume-metrics.OriginalVolume) / metrics.OriginalVolume; rel > 0.03 {
		t.Errorf("Labelmap volume %.2f differs from surface volume %.2f", metrics.LabelmapVolume, metrics.OriginalVolume)
	}

	if rel := math.Abs(metrics.BinaryVolume-metrics.OriginalVolume) / metrics.OriginalVolume; rel > 0.05 {
		t.Errorf("Binary volume %.2f differs from surface volume %.2f", metrics.BinaryVolume, metrics.OriginalVolume)
	}

	if metrics.HausdorffDistance > 1 {
		t.Errorf("Hausdorff distance %.3f exceeds one voxel", metrics.HausdorffDistance)
	}

	if metrics.MeanDistance > metrics.Percentile95Distance || metrics.Percentile95Distance > metrics.HausdorffDistance {
		t.Errorf("Distance statistics out of order: %+v", metrics.Report)
	}

	surface := reconstructor.GetSurface()
	if metrics.DistanceHistogram.Total() != surface.NumPoints() {
		t.Errorf("Histogram counts %d values for %d points", metrics.DistanceHistogram.Total(), surface.NumPoints())
	}

	labelmap := reconstructor.GetLabelmap()
	if labelmap.ScalarRange != [2]float64{0, 216} {
		t.Errorf("Unexpected labelmap range %v", labelmap.ScalarRange)
	}
	if metrics.OccupiedVoxels == 0 || metrics.FractionalVoxelCount > float64(metrics.OccupiedVoxels) {
		t.Errorf("Unexpected voxel counts %d and %f", metrics.OccupiedVoxels, metrics.FractionalVoxelCount)
	}

	saved, err := stl.LoadSTL(outputFile)
	if err != nil {
		t.Fatalf("Failed to load output STL: %v", err)
	}
	if len(saved.Triangles()) != len(surface.Triangles()) {
		t.Errorf("Saved %d triangles, reconstructed %d", len(saved.Triangles()), len(surface.Triangles()))
	}

	depth := labelmap.Extent.Dims()[2]
	for _, z := range []int{0, depth - 1} {
		filename := filepath.Join(intermediaryDir, "01_fractional_labelmap", fmt.Sprintf("slice_z_%03d.png", z))
		if _, err := os.Stat(filename); os.IsNotExist(err) {
			t.Errorf("Expected slice file does not exist: %s", filename)
		}
	}
}

// TestInMemorySurface verifies the round trip of a surface given directly,
// through the default geometry and with decimation
func TestInMemorySurface(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	sphere := models.NewUVSphere(r3.Vec{X: 1, Y: 2, Z: 3}, 2, 24, 48)
	params := &Params{
		Surface:           sphere,
		NumCores:          3,
		DefaultResolution: 16,
		Parameters: map[string]string{
			conversion.DecimationFactorParameterName: "0.5",
		},
		HistogramOrigin:  -0.2,
		HistogramSpacing: 0.02,
		HistogramBins:    21,
	}

	reconstructor := NewReconstructor(params)
	if err := reconstructor.Process(); err != nil {
		t.Fatalf("Reconstruction failed: %v", err)
	}

	metrics := reconstructor.GetMetrics()
	if metrics.RelativeVolumeDifference > 0.1 {
		t.Errorf("Volume difference too large: %.2f%%", metrics.RelativeVolumeDifference*100)
	}
	if got := len(metrics.DistanceHistogram.Counts); got != 21 {
		t.Errorf("Expected 21 histogram bins, got %d", got)
	}
	if metrics.DistanceHistogram.Spacing != 0.02 {
		t.Errorf("Expected histogram spacing 0.02, got %f", metrics.DistanceHistogram.Spacing)
	}
}
