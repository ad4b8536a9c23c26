package conversion

import (
	"log"
	"math"
	"strconv"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"fraclabelmap/internal/models"
	"fraclabelmap/pkg/surface"
	"fraclabelmap/pkg/voxelize"
)

// Defaults of the closed surface to fractional labelmap rule.
const (
	DefaultResolution = 64
	DefaultMaxVoxels  = 256 * 256 * 256

	// maxGridVoxels caps the output grid when MaxVoxels is not positive.
	maxGridVoxels = math.MaxInt32

	// maxIndex bounds the voxel indices of the output extent.
	maxIndex = 1 << 30
)

// ClosedSurfaceToFractionalLabelmap voxelizes a closed surface into a
// fractional labelmap holding, per voxel, how many of N³ sub-voxel samples
// lie inside the surface.
type ClosedSurfaceToFractionalLabelmap struct {
	// NumWorkers is the number of goroutines voxelizing Z planes.
	NumWorkers int

	// DefaultResolution is the number of voxels along the longest axis of
	// the surface bounds when no reference geometry is set.
	DefaultResolution int

	// MaxVoxels bounds the size of the output grid. Zero or less leaves
	// only the hard cap of math.MaxInt32 voxels.
	MaxVoxels int

	params  *Parameters
	builder *voxelize.FractionalBuilder
	logger  *log.Logger
}

// NewClosedSurfaceToFractionalLabelmap returns the rule with default
// parameters. A nil logger discards progress output.
func NewClosedSurfaceToFractionalLabelmap(logger *log.Logger) *ClosedSurfaceToFractionalLabelmap {
	logger = discardLogger(logger)
	params := NewParameters()
	params.Define(NumberOfOffsetsParameterName, strconv.Itoa(voxelize.DefaultNumberOfOffsets),
		"Number of sub-voxel offsets sampled along each axis. Each voxel stores how many of the N³ samples are inside the surface.")
	params.Define(ReferenceImageGeometryParameterName, "",
		"Image geometry of the output grid: 16 image-to-world matrix values and 6 extent values, each followed by ';'. Empty to derive a geometry from the surface bounds.")
	params.Define(CropToReferenceImageGeometryParameterName, "0",
		"1 to crop the output extent to the reference extent, 0 to fit the surface bounds in the reference grid.")
	return &ClosedSurfaceToFractionalLabelmap{
		NumWorkers:        1,
		DefaultResolution: DefaultResolution,
		MaxVoxels:         DefaultMaxVoxels,
		params:            params,
		builder:           voxelize.NewFractionalBuilder(voxelize.DefaultNumberOfOffsets, 1, logger),
		logger:            logger,
	}
}

func (r *ClosedSurfaceToFractionalLabelmap) Name() string {
	return "Closed surface to fractional labelmap"
}

func (r *ClosedSurfaceToFractionalLabelmap) SourceRepresentationName() string {
	return models.ClosedSurfaceName
}

func (r *ClosedSurfaceToFractionalLabelmap) TargetRepresentationName() string {
	return models.FractionalLabelmapName
}

func (r *ClosedSurfaceToFractionalLabelmap) ConversionCost(source, target models.Representation) int {
	return ClosedSurfaceToFractionalLabelmapCost
}

func (r *ClosedSurfaceToFractionalLabelmap) Parameters() *Parameters { return r.params }

// Convert voxelizes the source *models.Mesh into the target *models.Grid.
func (r *ClosedSurfaceToFractionalLabelmap) Convert(source, target models.Representation) error {
	mesh, ok := source.(*models.Mesh)
	if !ok || mesh == nil {
		return errors.Wrapf(ErrInvalidRepresentation, "source must be a closed surface, got %T", source)
	}
	grid, ok := target.(*models.Grid)
	if !ok || grid == nil {
		return errors.Wrapf(ErrInvalidRepresentation, "target must be a grid, got %T", target)
	}
	if mesh.NumPoints() < 2 || mesh.NumCells() < 2 {
		return errors.Wrapf(ErrDegenerateMesh, "%d points, %d cells", mesh.NumPoints(), mesh.NumCells())
	}

	numberOfOffsets, err := r.params.Int(NumberOfOffsetsParameterName)
	if err != nil {
		return err
	}
	if numberOfOffsets < 1 {
		return errors.Wrapf(ErrInvalidParameter, "%s must be at least 1, got %d", NumberOfOffsetsParameterName, numberOfOffsets)
	}

	imageToWorld, extent, err := r.outputGeometry(mesh)
	if err != nil {
		return err
	}
	extent = extent.Pad(1)
	budget := float64(maxGridVoxels)
	if r.MaxVoxels > 0 {
		budget = math.Min(budget, float64(r.MaxVoxels))
	}
	if n := voxelCount(extent); n > budget {
		return errors.Wrapf(ErrAllocation, "extent %v has %.0f voxels, budget is %.0f", extent, n, budget)
	}
	worldToImage, err := models.InvertTransform(imageToWorld)
	if err != nil {
		return errors.Wrapf(ErrInvalidParameter, "%s: %v", ReferenceImageGeometryParameterName, err)
	}

	r.logger.Printf("Converting closed surface to fractional labelmap: extent %v, %d offsets", extent, numberOfOffsets)
	indexMesh := surface.Clean(surface.Triangulate(mesh.Transform(worldToImage)), 0)

	out := models.NewGrid(models.FractionalLabelmap, extent, 1, imageToWorld)
	out.Fill(0)
	r.builder.NumberOfOffsets = numberOfOffsets
	r.builder.NumWorkers = max(r.NumWorkers, 1)
	if err := r.builder.Build(indexMesh, out); err != nil {
		return errors.Wrap(err, "failed to build fractional labelmap")
	}

	maxValue := math.Pow(float64(numberOfOffsets), 3)
	out.ScalarRange = [2]float64{0, maxValue}
	out.Threshold = maxValue / 2
	out.Interpolation = models.InterpolationLinear

	*grid = *out
	return nil
}

// outputGeometry returns the image-to-world matrix and the unpadded extent
// of the output grid.
func (r *ClosedSurfaceToFractionalLabelmap) outputGeometry(mesh *models.Mesh) (*mat.Dense, models.Extent, error) {
	reference, _ := r.params.Get(ReferenceImageGeometryParameterName)
	if reference == "" {
		b := mesh.Bounds()
		size := r3.Sub(b.Max, b.Min)
		longest := math.Max(size.X, math.Max(size.Y, size.Z))
		resolution := r.DefaultResolution
		if resolution < 1 {
			resolution = DefaultResolution
		}
		spacing := 1.0
		if longest > 0 {
			spacing = longest / float64(resolution)
		}
		m := models.NewImageToWorld(r3.Vec{}, r3.Vec{X: spacing, Y: spacing, Z: spacing}, models.IdentityDirections)
		e, err := boundsExtent(mesh, m)
		return m, e, err
	}

	m, refExtent, err := models.ParseGeometry(reference)
	if err != nil {
		return nil, models.Extent{}, errors.Wrapf(ErrInvalidParameter, "%s: %v", ReferenceImageGeometryParameterName, err)
	}
	crop, err := r.params.Bool(CropToReferenceImageGeometryParameterName)
	if err != nil {
		return nil, models.Extent{}, err
	}
	e, err := boundsExtent(mesh, m)
	if err != nil {
		return nil, models.Extent{}, err
	}
	if crop {
		e = e.Intersect(refExtent)
		if !e.Valid() {
			return nil, models.Extent{}, errors.Wrapf(ErrInvalidParameter, "surface lies outside the reference extent %v", refExtent)
		}
	}
	return m, e, nil
}

// boundsExtent returns the smallest extent of the grid described by
// imageToWorld enclosing every mesh point.
func boundsExtent(mesh *models.Mesh, imageToWorld *mat.Dense) (models.Extent, error) {
	worldToImage, err := models.InvertTransform(imageToWorld)
	if err != nil {
		return models.Extent{}, errors.Wrapf(ErrInvalidParameter, "%s: %v", ReferenceImageGeometryParameterName, err)
	}
	lo := r3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	hi := r3.Scale(-1, lo)
	for _, p := range mesh.Points {
		q := models.TransformPoint(worldToImage, p)
		lo = r3.Vec{X: math.Min(lo.X, q.X), Y: math.Min(lo.Y, q.Y), Z: math.Min(lo.Z, q.Z)}
		hi = r3.Vec{X: math.Max(hi.X, q.X), Y: math.Max(hi.Y, q.Y), Z: math.Max(hi.Z, q.Z)}
	}
	for _, v := range []float64{lo.X, lo.Y, lo.Z, hi.X, hi.Y, hi.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return models.Extent{}, errors.Wrap(ErrInvalidParameter, "surface has non-finite voxel coordinates")
		}
		if math.Abs(v) > maxIndex {
			return models.Extent{}, errors.Wrapf(ErrAllocation, "voxel index %g is out of range", v)
		}
	}
	return models.Extent{
		int(math.Floor(lo.X)), int(math.Ceil(hi.X)),
		int(math.Floor(lo.Y)), int(math.Ceil(hi.Y)),
		int(math.Floor(lo.Z)), int(math.Ceil(hi.Z)),
	}, nil
}

// voxelCount returns the number of voxels in e as a float64, which does not
// wrap for extents too large to allocate.
func voxelCount(e models.Extent) float64 {
	d := e.Dims()
	return float64(d[0]) * float64(d[1]) * float64(d[2])
}
