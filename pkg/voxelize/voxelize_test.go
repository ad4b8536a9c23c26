package voxelize

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"fraclabelmap/internal/models"
	"fraclabelmap/pkg/raster"
	"fraclabelmap/pkg/slicer"
)

func TestOffsetsAreSymmetric(t *testing.T) {
	assert.Equal(t, 0.0, Offset(0, 1))
	assert.InDelta(t, -5.0/12, Offset(0, 6), 1e-15)
	assert.InDelta(t, 5.0/12, Offset(5, 6), 1e-15)
	var sum float64
	for n := 0; n < 6; n++ {
		o := Offset(n, 6)
		assert.Greater(t, o, -0.5)
		assert.Less(t, o, 0.5)
		sum += o
	}
	assert.InDelta(t, 0, sum, 1e-12)
}

func TestBinaryVoxelizeBox(t *testing.T) {
	ext := models.Extent{0, 4, 0, 4, 0, 4}
	box := models.NewBox(r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}, r3.Vec{X: 3.5, Y: 3.5, Z: 3.5})
	v := NewBinaryVoxelizer(slicer.NewCutter(box, nil), ext, 3)
	s := raster.NewStencil(ext)
	v.Voxelize(r3.Vec{}, s)

	assert.Equal(t, 27, s.Count())
	assert.True(t, s.IsInside(2, 2, 2))
	assert.False(t, s.IsInside(0, 2, 2))
	assert.False(t, s.IsInside(2, 2, 4))

	// Shifting the sample point moves the inside run down one voxel along X.
	v.Voxelize(r3.Vec{X: 0.6}, s)
	assert.Equal(t, 27, s.Count())
	assert.False(t, s.IsInside(3, 2, 2))
	assert.True(t, s.IsInside(0, 2, 2))
}

func TestBinaryLabelmap(t *testing.T) {
	ext := models.Extent{0, 4, 0, 4, 0, 4}
	box := models.NewBox(r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}, r3.Vec{X: 3.5, Y: 3.5, Z: 3.5})
	g := BinaryLabelmap(box, ext, nil, 2)

	assert.Equal(t, models.BinaryLabelmap, g.Kind)
	assert.Equal(t, ext, g.Extent)
	assert.Equal(t, [2]float64{0, 1}, g.ScalarRange)
	assert.Equal(t, 1.0, g.At(1, 2, 3, 0))
	assert.Equal(t, 0.0, g.At(4, 2, 2, 0))
	var sum float64
	for _, v := range g.Data {
		sum += v
	}
	assert.Equal(t, 27.0, sum)
}

func TestFractionalSphere(t *testing.T) {
	ext := models.Extent{-2, 2, -2, 2, -2, 2}
	sphere := models.NewUVSphere(r3.Vec{}, 1, 16, 32)
	grid := models.NewGrid(models.FractionalLabelmap, ext, 1, nil)

	b := NewFractionalBuilder(6, 4, nil)
	require.NoError(t, b.Build(sphere, grid))

	assert.Equal(t, 216.0, grid.At(0, 0, 0, 0))
	assert.Equal(t, 0.0, grid.At(2, 2, 2, 0))
	edge := grid.At(1, 0, 0, 0)
	assert.Greater(t, edge, 0.0)
	assert.Less(t, edge, 216.0)
	assert.Equal(t, 5*6, b.CachedSlices())

	// Voxels whose samples are all well inside or all well outside the
	// sphere are saturated.
	reach := math.Sqrt(3) * 5.0 / 12
	for k := ext[4]; k <= ext[5]; k++ {
		for j := ext[2]; j <= ext[3]; j++ {
			for i := ext[0]; i <= ext[1]; i++ {
				v := grid.At(i, j, k, 0)
				require.GreaterOrEqual(t, v, 0.0)
				require.LessOrEqual(t, v, 216.0)
				d := math.Sqrt(float64(i*i + j*j + k*k))
				if d+reach < 0.95 {
					assert.Equal(t, 216.0, v, "voxel %d,%d,%d", i, j, k)
				}
				if d-reach > 1 {
					assert.Equal(t, 0.0, v, "voxel %d,%d,%d", i, j, k)
				}
			}
		}
	}
}

func TestFractionalBoxVolumeIsExact(t *testing.T) {
	ext := models.Extent{-1, 5, -1, 5, -1, 5}
	box := models.NewBox(r3.Vec{X: 0.3, Y: 0.3, Z: 0.3}, r3.Vec{X: 3.3, Y: 3.3, Z: 3.3})
	grid := models.NewGrid(models.FractionalLabelmap, ext, 1, nil)
	require.NoError(t, NewFractionalBuilder(6, 2, nil).Build(box, grid))

	var sum float64
	for _, v := range grid.Data {
		sum += v
	}
	assert.Equal(t, 27.0*216, sum)
}

func TestFractionalIsDeterministic(t *testing.T) {
	ext := models.Extent{-3, 3, -3, 3, -3, 3}
	sphere := models.NewUVSphere(r3.Vec{X: 0.2, Y: -0.1, Z: 0.35}, 2.2, 12, 24)

	build := func(workers int) []float64 {
		g := models.NewGrid(models.FractionalLabelmap, ext, 1, nil)
		require.NoError(t, NewFractionalBuilder(4, workers, nil).Build(sphere, g))
		return g.Data
	}
	first := build(1)
	assert.Equal(t, first, build(1))
	assert.Equal(t, first, build(8))
}

func TestFractionalRejectsBadInput(t *testing.T) {
	g := models.NewGrid(models.FractionalLabelmap, models.Extent{0, 1, 0, 1, 0, 1}, 1, nil)
	box := models.NewBox(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1})
	require.ErrorIs(t, NewFractionalBuilder(0, 1, nil).Build(box, g), ErrInvalidOffsets)

	g2 := models.NewGrid(models.FractionalLabelmap, models.Extent{0, 1, 0, 1, 0, 1}, 2, nil)
	require.Error(t, NewFractionalBuilder(2, 1, nil).Build(box, g2))
}
