// Package reconstruction runs a closed surface through a fractional labelmap
// and back, and measures how faithfully the surface survives the trip.
package reconstruction

import (
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"fraclabelmap/internal/models"
	"fraclabelmap/pkg/conversion"
	"fraclabelmap/pkg/metrics"
	"fraclabelmap/pkg/statistics"
	"fraclabelmap/pkg/stl"
	"fraclabelmap/pkg/surface"
	"fraclabelmap/pkg/visualization"
	"fraclabelmap/pkg/voxelize"
)

// ValidationMetrics holds the round-trip quality measures.
type ValidationMetrics struct {
	// Report compares the original and reconstructed surfaces: enclosed
	// volume, area and symmetric point-to-surface distances.
	metrics.Report

	// LabelmapVolume is the volume the fractional labelmap itself encloses,
	// the sum of the occupancy fractions times the voxel volume. It falls
	// between the two surface volumes when the sampling is adequate.
	LabelmapVolume float64

	// BinaryVolume is the volume of the voxels whose centre lies inside the
	// original surface, sampled on the labelmap grid.
	BinaryVolume float64

	// OccupiedVoxels counts the voxels with a non-zero fraction, and
	// FractionalVoxelCount the sum of their fractions.
	OccupiedVoxels       int
	FractionalVoxelCount float64

	// DistanceHistogram bins the signed distance from each reconstructed
	// vertex to the original surface. Negative distances are inside.
	DistanceHistogram *metrics.Histogram
}

// Params holds the reconstruction parameters.
type Params struct {
	// InputFile is the STL file holding the closed surface. It is ignored
	// when Surface is set.
	InputFile string

	// Surface is an in-memory closed surface to convert.
	Surface *models.Mesh

	// OutputFile is where the reconstructed surface is saved in STL format.
	// Nothing is written when it is empty.
	OutputFile string

	// NumCores specifies how many goroutines voxelize Z slices.
	NumCores int

	// Parameters overrides conversion rule parameters by name.
	Parameters map[string]string

	// DefaultResolution and MaxVoxels configure the surface to labelmap
	// rule. Zero keeps the rule's defaults.
	DefaultResolution int
	MaxVoxels         int

	// SaveIntermediaryResults determines whether to save the labelmap as
	// slice images in IntermediaryDir.
	SaveIntermediaryResults bool
	IntermediaryDir         string

	// Histogram layout of the signed distance histogram. A zero spacing
	// selects the metrics package defaults.
	HistogramOrigin  float64
	HistogramSpacing float64
	HistogramBins    int

	// Logger receives progress messages. Nil discards them.
	Logger *log.Logger
}

// Reconstructor handles the round trip of one closed surface:
//  1. Loading the surface
//  2. Voxelizing it into a fractional labelmap
//  3. Accumulating labelmap statistics
//  4. Extracting, decimating and smoothing the surface again
//  5. Saving the reconstructed surface
//  6. Calculating quality metrics
type Reconstructor struct {
	params   *Params
	logger   *log.Logger
	registry *conversion.Registry

	original      *models.Mesh
	labelmap      *models.Grid
	reconstructed *models.Mesh

	metrics ValidationMetrics
}

// NewReconstructor creates a new reconstructor with the provided parameters.
func NewReconstructor(params *Params) *Reconstructor {
	logger := params.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	toLabelmap := conversion.NewClosedSurfaceToFractionalLabelmap(logger)
	toLabelmap.NumWorkers = max(params.NumCores, 1)
	if params.DefaultResolution > 0 {
		toLabelmap.DefaultResolution = params.DefaultResolution
	}
	if params.MaxVoxels > 0 {
		toLabelmap.MaxVoxels = params.MaxVoxels
	}
	registry := conversion.NewRegistry(toLabelmap, conversion.NewFractionalLabelmapToClosedSurface(logger))
	registry.SetParameters(params.Parameters)

	return &Reconstructor{params: params, logger: logger, registry: registry}
}

// Registry returns the conversion rules used by the round trip.
func (r *Reconstructor) Registry() *conversion.Registry { return r.registry }

// Process runs the complete round trip.
func (r *Reconstructor) Process() error {
	if r.params.SaveIntermediaryResults {
		if err := os.MkdirAll(r.params.IntermediaryDir, 0755); err != nil {
			return errors.Wrap(err, "failed to create intermediary directory")
		}
	}

	r.logger.Println("Step 1: Loading closed surface...")
	if err := r.loadSurface(); err != nil {
		return errors.Wrap(err, "failed to load surface")
	}
	r.logger.Printf("Loaded surface with %d points and %d cells", r.original.NumPoints(), r.original.NumCells())

	r.logger.Println("Step 2: Converting closed surface to fractional labelmap...")
	r.labelmap = &models.Grid{Kind: models.FractionalLabelmap}
	if err := r.registry.Convert(r.original, r.labelmap); err != nil {
		return errors.Wrap(err, "failed to build fractional labelmap")
	}
	r.logger.Printf("Fractional labelmap extent %v, range [%g, %g]",
		r.labelmap.Extent, r.labelmap.ScalarRange[0], r.labelmap.ScalarRange[1])

	if r.params.SaveIntermediaryResults {
		r.logger.Println("Saving fractional labelmap slices...")
		if err := r.saveLabelmapSlices(); err != nil {
			r.logger.Printf("Warning: Failed to save labelmap slices: %v", err)
		}
	}

	r.logger.Println("Step 3: Accumulating labelmap statistics...")
	if err := r.accumulateLabelmap(); err != nil {
		return errors.Wrap(err, "failed to accumulate labelmap statistics")
	}

	if err := r.sampleBinaryLabelmap(); err != nil {
		return errors.Wrap(err, "failed to sample binary labelmap")
	}

	r.logger.Println("Step 4: Converting fractional labelmap to closed surface...")
	r.reconstructed = &models.Mesh{}
	if err := r.registry.Convert(r.labelmap, r.reconstructed); err != nil {
		return errors.Wrap(err, "failed to extract closed surface")
	}
	r.logger.Printf("Reconstructed surface has %d points and %d cells",
		r.reconstructed.NumPoints(), r.reconstructed.NumCells())

	if r.params.OutputFile != "" {
		r.logger.Println("Step 5: Saving reconstructed surface...")
		if err := stl.SaveMesh(r.params.OutputFile, r.reconstructed); err != nil {
			return errors.Wrap(err, "failed to save STL")
		}
	}

	r.logger.Println("Step 6: Calculating validation metrics...")
	r.calculateValidationMetrics()

	return nil
}

func (r *Reconstructor) loadSurface() error {
	if r.params.Surface != nil {
		r.original = r.params.Surface
		return nil
	}
	if r.params.InputFile == "" {
		return errors.New("no input surface")
	}
	mesh, err := stl.LoadSTL(r.params.InputFile)
	if err != nil {
		return err
	}
	r.original = mesh
	return nil
}

// accumulateLabelmap weights every voxel of the labelmap by its own
// occupancy fraction. Empty voxels are skipped.
func (r *Reconstructor) accumulateLabelmap() error {
	lo, hi := r.labelmap.ScalarRange[0], r.labelmap.ScalarRange[1]
	acc := statistics.NewFractionalAccumulator()
	acc.IgnoreZero = true
	acc.SetInput(r.labelmap)
	acc.SetFractionalLabelmap(r.labelmap, lo, hi)
	acc.SetComponentOrigin(lo, 0, 0)
	acc.SetComponentExtent(models.Extent{0, int(math.Ceil(hi - lo)), 0, 0, 0, 0})
	res, err := acc.Update()
	if err != nil {
		return err
	}

	r.metrics.OccupiedVoxels = res.VoxelCount
	r.metrics.FractionalVoxelCount = res.FractionalVoxelCount
	r.metrics.LabelmapVolume = res.FractionalVoxelCount * voxelVolume(r.labelmap.ImageToWorld)
	return nil
}

// sampleBinaryLabelmap voxelizes the original surface at voxel centres on
// the labelmap grid.
func (r *Reconstructor) sampleBinaryLabelmap() error {
	worldToImage, err := models.InvertTransform(r.labelmap.ImageToWorld)
	if err != nil {
		return err
	}
	indexMesh := surface.Clean(surface.Triangulate(r.original.Transform(worldToImage)), 0)
	binary := voxelize.BinaryLabelmap(indexMesh, r.labelmap.Extent, r.labelmap.ImageToWorld, r.params.NumCores)
	r.metrics.BinaryVolume = floats.Sum(binary.Data) * voxelVolume(binary.ImageToWorld)
	r.logger.Printf("Binary labelmap has %.0f inside voxels", floats.Sum(binary.Data))
	return nil
}

// voxelVolume is the absolute determinant of the linear part of m.
func voxelVolume(m *mat.Dense) float64 {
	return math.Abs(mat.Det(m.Slice(0, 3, 0, 3)))
}

func (r *Reconstructor) calculateValidationMetrics() {
	r.metrics.Report = metrics.CompareSurfaces(r.original, r.reconstructed)

	origin, spacing, bins := r.params.HistogramOrigin, r.params.HistogramSpacing, r.params.HistogramBins
	if spacing <= 0 || bins <= 0 {
		origin, spacing, bins = metrics.DefaultHistogramOrigin, metrics.DefaultHistogramSpacing, metrics.DefaultHistogramBins
	}
	r.metrics.DistanceHistogram = metrics.DistanceHistogram(r.reconstructed, r.original, origin, spacing, bins)
}

func (r *Reconstructor) saveLabelmapSlices() error {
	viewer := visualization.NewViewer(r.labelmap)
	viewer.Magnification = 4
	dir := filepath.Join(r.params.IntermediaryDir, "01_fractional_labelmap")
	if err := viewer.SaveSliceSequence("z", dir); err != nil {
		return err
	}
	r.logger.Printf("Saved %d slices to %s", r.labelmap.Extent.Dims()[2], dir)
	return nil
}

// GetMetrics returns the validation metrics of the last Process call.
func (r *Reconstructor) GetMetrics() ValidationMetrics {
	return r.metrics
}

// GetLabelmap returns the intermediate fractional labelmap.
func (r *Reconstructor) GetLabelmap() *models.Grid { return r.labelmap }

// GetSurface returns the reconstructed closed surface.
func (r *Reconstructor) GetSurface() *models.Mesh { return r.reconstructed }

// String formats the metrics the way the command line prints them.
func (m ValidationMetrics) String() string {
	return fmt.Sprintf(
		"Original volume:        %.4f\n"+
			"Labelmap volume:        %.4f\n"+
			"Binary volume:          %.4f\n"+
			"Reconstructed volume:   %.4f\n"+
			"Volume difference:      %.2f%%\n"+
			"Original area:          %.4f\n"+
			"Reconstructed area:     %.4f\n"+
			"Mean distance:          %.4f\n"+
			"95th pct distance:      %.4f\n"+
			"Hausdorff distance:     %.4f\n"+
			"Occupied voxels:        %d (%.1f fractional)\n",
		m.OriginalVolume, m.LabelmapVolume, m.BinaryVolume, m.ReconstructedVolume,
		m.RelativeVolumeDifference*100,
		m.OriginalArea, m.ReconstructedArea,
		m.MeanDistance, m.Percentile95Distance, m.HausdorffDistance,
		m.OccupiedVoxels, m.FractionalVoxelCount)
}
