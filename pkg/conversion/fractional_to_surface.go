package conversion

import (
	"fmt"
	"log"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"fraclabelmap/internal/models"
	"fraclabelmap/pkg/stl"
	"fraclabelmap/pkg/surface"
)

// Default parameter values of the fractional labelmap to closed surface rule.
const (
	DefaultDecimationFactor   = 0.0
	DefaultSmoothingFactor    = 0.5
	DefaultOversamplingFactor = 1.0
)

// FractionalLabelmapToClosedSurface extracts the half-occupancy isosurface
// of a fractional labelmap.
type FractionalLabelmapToClosedSurface struct {
	params *Parameters
	logger *log.Logger
}

// NewFractionalLabelmapToClosedSurface returns the rule with default
// parameters. A nil logger discards progress output.
func NewFractionalLabelmapToClosedSurface(logger *log.Logger) *FractionalLabelmapToClosedSurface {
	params := NewParameters()
	params.Define(DecimationFactorParameterName, formatFloat(DefaultDecimationFactor),
		"Desired reduction in the total number of polygons in [0, 1). 0 disables decimation.")
	params.Define(SmoothingFactorParameterName, formatFloat(DefaultSmoothingFactor),
		"Smoothing factor used by the surface smoothing filter. 0 disables smoothing.")
	params.Define(OversamplingFactorParameterName, formatFloat(DefaultOversamplingFactor),
		"Factor of at least 1 by which the labelmap is resampled before isosurface extraction.")
	return &FractionalLabelmapToClosedSurface{params: params, logger: discardLogger(logger)}
}

func formatFloat(v float64) string { return fmt.Sprintf("%g", v) }

func (r *FractionalLabelmapToClosedSurface) Name() string {
	return "Fractional labelmap to closed surface"
}

func (r *FractionalLabelmapToClosedSurface) SourceRepresentationName() string {
	return models.FractionalLabelmapName
}

func (r *FractionalLabelmapToClosedSurface) TargetRepresentationName() string {
	return models.ClosedSurfaceName
}

func (r *FractionalLabelmapToClosedSurface) ConversionCost(source, target models.Representation) int {
	return FractionalLabelmapToClosedSurfaceCost
}

func (r *FractionalLabelmapToClosedSurface) Parameters() *Parameters { return r.params }

type surfaceOptions struct {
	decimation, smoothing, oversampling float64
}

func (r *FractionalLabelmapToClosedSurface) options() (surfaceOptions, error) {
	var o surfaceOptions
	var err error
	if o.decimation, err = r.params.Float(DecimationFactorParameterName); err != nil {
		return o, err
	}
	if o.decimation < 0 || o.decimation >= 1 {
		return o, errors.Wrapf(ErrInvalidParameter, "%s must be in [0, 1), got %g", DecimationFactorParameterName, o.decimation)
	}
	if o.smoothing, err = r.params.Float(SmoothingFactorParameterName); err != nil {
		return o, err
	}
	if o.smoothing < 0 {
		return o, errors.Wrapf(ErrInvalidParameter, "%s must not be negative, got %g", SmoothingFactorParameterName, o.smoothing)
	}
	if o.oversampling, err = r.params.Float(OversamplingFactorParameterName); err != nil {
		return o, err
	}
	if o.oversampling < 1 {
		return o, errors.Wrapf(ErrInvalidParameter, "%s must be at least 1, got %g", OversamplingFactorParameterName, o.oversampling)
	}
	return o, nil
}

// Convert extracts the surface of the source *models.Grid into the target
// *models.Mesh.
func (r *FractionalLabelmapToClosedSurface) Convert(source, target models.Representation) error {
	grid, ok := source.(*models.Grid)
	if !ok || grid == nil || grid.Kind != models.FractionalLabelmap {
		return errors.Wrapf(ErrInvalidRepresentation, "source must be a fractional labelmap, got %T", source)
	}
	if grid.Components != 1 || len(grid.Data) != grid.Extent.NumVoxels() || grid.ImageToWorld == nil {
		return errors.Wrapf(ErrInvalidRepresentation, "fractional labelmap must hold one component over extent %v", grid.Extent)
	}
	mesh, ok := target.(*models.Mesh)
	if !ok || mesh == nil {
		return errors.Wrapf(ErrInvalidRepresentation, "target must be a closed surface, got %T", target)
	}
	opts, err := r.options()
	if err != nil {
		return err
	}

	minValue, maxValue := grid.ScalarRange[0], grid.ScalarRange[1]
	if minValue >= maxValue {
		return errors.Wrapf(ErrInvalidRepresentation, "fractional labelmap has empty scalar range %v", grid.ScalarRange)
	}
	threshold := (minValue + maxValue) / 2

	work := grid
	if grid.HasBoundaryValueAbove(minValue) {
		work = grid.Pad(1, minValue)
	}
	imageToWorld := mat.DenseCopyOf(grid.ImageToWorld)

	r.logger.Printf("Extracting isosurface at %g from extent %v (oversampling %g)", threshold, work.Extent, opts.oversampling)
	data, dims, step := resample(work, opts.oversampling)
	mc := stl.NewMarchingCubes(data, dims[0], dims[1], dims[2], threshold)
	mc.SetOrigin(float64(work.Extent[0]), float64(work.Extent[2]), float64(work.Extent[4]))
	mc.SetScale(step.X, step.Y, step.Z)
	extracted := surface.Clean(mc.GenerateMesh(), 0)
	if len(extracted.Polys) == 0 {
		return ErrNoPolygons
	}

	processed, err := r.process(extracted, opts)
	if err != nil {
		return err
	}

	*mesh = *processed.Transform(imageToWorld)
	return nil
}

// process decimates and smooths the index-space surface. Panics inside the
// filters are reported as ErrSurfaceProcessing.
func (r *FractionalLabelmapToClosedSurface) process(m *models.Mesh, opts surfaceOptions) (out *models.Mesh, err error) {
	defer func() {
		if p := recover(); p != nil {
			out, err = nil, errors.Wrapf(ErrSurfaceProcessing, "%v", p)
		}
	}()
	out = m
	if opts.decimation > 0 {
		before := len(out.Polys)
		out = surface.Decimate(out, opts.decimation)
		r.logger.Printf("Decimated surface from %d to %d triangles", before, len(out.Polys))
	}
	if opts.smoothing > 0 {
		out = surface.Smooth(out, opts.smoothing)
	}
	if len(out.Polys) == 0 {
		return nil, errors.Wrap(ErrSurfaceProcessing, "no polygons left")
	}
	return out, nil
}
