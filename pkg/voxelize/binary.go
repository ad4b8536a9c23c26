// Package voxelize turns closed surfaces in voxel index space into binary
// stencils and supersampled fractional occupancy grids.
package voxelize

import (
	"sync"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"fraclabelmap/internal/models"
	"fraclabelmap/pkg/raster"
	"fraclabelmap/pkg/slicer"
)

// BinaryVoxelizer samples a surface at one sub-voxel offset: voxel (i,j,k)
// is inside when the point (i,j,k)+offset is enclosed by the surface.
type BinaryVoxelizer struct {
	Extent models.Extent

	// NumWorkers is the number of goroutines slicing Z planes in parallel.
	NumWorkers int

	cutter *slicer.Cutter
}

// NewBinaryVoxelizer returns a voxelizer reading contours from the cutter.
func NewBinaryVoxelizer(cutter *slicer.Cutter, extent models.Extent, numWorkers int) *BinaryVoxelizer {
	return &BinaryVoxelizer{
		Extent:     extent,
		NumWorkers: max(numWorkers, 1),
		cutter:     cutter,
	}
}

// Voxelize resets the stencil and burns every Z plane of the extent into it.
// The stencil must cover the voxelizer's extent.
func (v *BinaryVoxelizer) Voxelize(offset r3.Vec, stencil *raster.Stencil) {
	stencil.Reset()

	k0, k1 := v.Extent[4], v.Extent[5]
	numSlices := k1 - k0 + 1
	workers := min(v.NumWorkers, numSlices)
	if workers <= 1 {
		for k := k0; k <= k1; k++ {
			v.voxelizeSlice(k, offset, stencil)
		}
		return
	}

	// Each worker owns a contiguous run of planes, so stencil rows are never
	// shared between goroutines.
	slicesPerWorker := (numSlices + workers - 1) / workers
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		first := k0 + w*slicesPerWorker
		last := min(first+slicesPerWorker-1, k1)
		if first > last {
			continue
		}
		wg.Add(1)
		go func(first, last int) {
			defer wg.Done()
			for k := first; k <= last; k++ {
				v.voxelizeSlice(k, offset, stencil)
			}
		}(first, last)
	}
	wg.Wait()
}

func (v *BinaryVoxelizer) voxelizeSlice(k int, offset r3.Vec, stencil *raster.Stencil) {
	contour := v.cutter.Cut(float64(k) + offset.Z)
	if len(contour.Segments) == 0 {
		return
	}
	shift := r2.Vec{X: offset.X, Y: offset.Y}
	sc := raster.NewScanConverter(v.Extent[2], v.Extent[3])
	for _, s := range contour.Segments {
		sc.InsertLine(r2.Sub(contour.Points[s[0]], shift), r2.Sub(contour.Points[s[1]], shift))
	}
	sc.FillStencilData(stencil, v.Extent, k)
}

// BinaryLabelmap samples the surface at voxel centres and returns the 0/1
// labelmap over extent. The mesh must already be in the index space of
// imageToWorld.
func BinaryLabelmap(mesh *models.Mesh, extent models.Extent, imageToWorld *mat.Dense, numWorkers int) *models.Grid {
	stencil := raster.NewStencil(extent)
	NewBinaryVoxelizer(slicer.NewCutter(mesh, nil), extent, numWorkers).Voxelize(r3.Vec{}, stencil)
	return stencil.ToGrid(imageToWorld)
}
