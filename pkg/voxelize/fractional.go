package voxelize

import (
	"io"
	"log"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"

	"fraclabelmap/internal/models"
	"fraclabelmap/pkg/raster"
	"fraclabelmap/pkg/slicer"
)

// DefaultNumberOfOffsets is the number of supersamples per axis.
const DefaultNumberOfOffsets = 6

// ErrInvalidOffsets indicates a non-positive number of offsets.
var ErrInvalidOffsets = errors.New("voxelize: number of offsets must be at least 1")

// Offset returns the position of sample n of numberOfOffsets along one axis,
// relative to the voxel centre. The samples are spread symmetrically inside
// (-0.5, 0.5).
func Offset(n, numberOfOffsets int) float64 {
	N := float64(numberOfOffsets)
	return float64(n)/N - (N-1)/(2*N)
}

// FractionalBuilder counts, for every voxel, how many of the N³ offset
// samples fall inside a surface.
type FractionalBuilder struct {
	NumberOfOffsets int
	NumWorkers      int
	Logger          *log.Logger

	cache *slicer.SliceCache
}

// NewFractionalBuilder returns a builder with its own slice cache.
func NewFractionalBuilder(numberOfOffsets, numWorkers int, logger *log.Logger) *FractionalBuilder {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &FractionalBuilder{
		NumberOfOffsets: numberOfOffsets,
		NumWorkers:      numWorkers,
		Logger:          logger,
		cache:           slicer.NewSliceCache(),
	}
}

// CachedSlices returns the number of distinct cut heights computed by the
// last Build.
func (b *FractionalBuilder) CachedSlices() int { return b.cache.Len() }

// Build adds the inside-sample count of every voxel to grid. The mesh must
// already be in the grid's index space and grid must have one component.
// After Build on a grid filled with 0, every voxel holds a value in [0, N³].
func (b *FractionalBuilder) Build(mesh *models.Mesh, grid *models.Grid) error {
	n := b.NumberOfOffsets
	if n < 1 {
		return ErrInvalidOffsets
	}
	if grid.Components != 1 {
		return errors.Errorf("voxelize: fractional grid must have 1 component, got %d", grid.Components)
	}

	b.cache.Clear()
	cutter := slicer.NewCutter(mesh, b.cache)
	voxelizer := NewBinaryVoxelizer(cutter, grid.Extent, b.NumWorkers)
	stencil := raster.NewStencil(grid.Extent)

	ext := grid.Extent
	for kk := 0; kk < n; kk++ {
		b.Logger.Printf("Voxelizing offset plane %d/%d...", kk+1, n)
		for jj := 0; jj < n; jj++ {
			for ii := 0; ii < n; ii++ {
				offset := r3.Vec{X: Offset(ii, n), Y: Offset(jj, n), Z: Offset(kk, n)}
				voxelizer.Voxelize(offset, stencil)
				for k := ext[4]; k <= ext[5]; k++ {
					for j := ext[2]; j <= ext[3]; j++ {
						for _, sp := range stencil.Spans(j, k) {
							base := grid.Index(sp.X0, j, k, 0)
							for x := 0; x <= sp.X1-sp.X0; x++ {
								grid.Data[base+x]++
							}
						}
					}
				}
			}
		}
	}
	return nil
}
