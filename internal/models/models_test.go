package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestExtent(t *testing.T) {
	e := Extent{-2, 2, 0, 3, 5, 5}
	require.True(t, e.Valid())
	assert.Equal(t, [3]int{5, 4, 1}, e.Dims())
	assert.Equal(t, 20, e.NumVoxels())
	assert.True(t, e.Contains(-2, 3, 5))
	assert.False(t, e.Contains(3, 0, 5))
	assert.True(t, e.OnBoundary(0, 0, 5))
	assert.Equal(t, Extent{-3, 3, -1, 4, 4, 6}, e.Pad(1))

	none := e.Intersect(Extent{10, 12, 0, 0, 0, 0})
	assert.False(t, none.Valid())
	assert.Equal(t, 0, none.NumVoxels())
}

func TestGridIndexing(t *testing.T) {
	g := NewGrid(FractionalLabelmap, Extent{-1, 1, -1, 1, -1, 1}, 2, nil)
	g.Set(1, -1, 0, 1, 7)
	assert.Equal(t, 7.0, g.At(1, -1, 0, 1))
	assert.Equal(t, 0.0, g.At(1, -1, 0, 0))
	assert.Equal(t, (((0+1)*3+0)*3+2)*2+1, g.Index(1, -1, 0, 1))
	assert.Equal(t, FractionalLabelmapName, g.RepresentationName())
}

func TestGridPadKeepsVoxels(t *testing.T) {
	g := NewGrid(ScalarVolume, Extent{0, 2, 0, 1, 0, 0}, 1, nil)
	for i := range g.Data {
		g.Data[i] = float64(i + 1)
	}
	p := g.Pad(1, -5)
	require.Equal(t, Extent{-1, 3, -1, 2, -1, 1}, p.Extent)
	for j := 0; j <= 1; j++ {
		for i := 0; i <= 2; i++ {
			assert.Equal(t, g.At(i, j, 0, 0), p.At(i, j, 0, 0))
		}
	}
	assert.Equal(t, -5.0, p.At(-1, 0, 0, 0))
	assert.Equal(t, -5.0, p.At(1, 1, 1, 0))

	assert.True(t, g.HasBoundaryValueAbove(0))
	assert.False(t, p.HasBoundaryValueAbove(-5))
}

func TestGeometrySerialization(t *testing.T) {
	dirs := [3]r3.Vec{{Y: 1}, {X: -1}, {Z: 1}}
	m := NewImageToWorld(r3.Vec{X: 10, Y: -3, Z: 2.5}, r3.Vec{X: 0.5, Y: 2, Z: 3}, dirs)
	e := Extent{0, 9, -4, 4, 1, 20}

	parsed, pe, err := ParseGeometry(SerializeGeometry(m, e))
	require.NoError(t, err)
	assert.Equal(t, e, pe)
	assert.True(t, mat.EqualApprox(m, parsed, 1e-12))

	spacing := SpacingOf(parsed)
	assert.InDelta(t, 0.5, spacing.X, 1e-12)
	assert.InDelta(t, 2, spacing.Y, 1e-12)
	assert.InDelta(t, 3, spacing.Z, 1e-12)

	_, _, err = ParseGeometry("1;2;3")
	require.ErrorIs(t, err, ErrMalformedGeometry)
}

func TestInvertTransform(t *testing.T) {
	m := NewImageToWorld(r3.Vec{X: 1, Y: 2, Z: 3}, r3.Vec{X: 2, Y: 2, Z: 4}, IdentityDirections)
	inv, err := InvertTransform(m)
	require.NoError(t, err)
	p := r3.Vec{X: 3, Y: -1, Z: 0.25}
	back := TransformPoint(inv, TransformPoint(m, p))
	assert.InDelta(t, p.X, back.X, 1e-12)
	assert.InDelta(t, p.Y, back.Y, 1e-12)
	assert.InDelta(t, p.Z, back.Z, 1e-12)

	_, err = InvertTransform(mat.NewDense(4, 4, nil))
	require.ErrorIs(t, err, ErrSingularMatrix)
}

func TestPrimitiveVolumes(t *testing.T) {
	box := NewBox(r3.Vec{X: -1, Y: 0, Z: 2}, r3.Vec{X: 1, Y: 3, Z: 3})
	assert.Len(t, box.Polys, 12)
	assert.InDelta(t, 6.0, box.Volume(), 1e-12)
	assert.InDelta(t, 2*(2*3+2*1+3*1), box.Area(), 1e-12)

	sphere := NewUVSphere(r3.Vec{}, 2, 48, 96)
	exact := 4.0 / 3.0 * math.Pi * 8
	assert.InDelta(t, exact, sphere.Volume(), exact*0.01)
	assert.Positive(t, sphere.Volume())
}

func TestMirrorTransformKeepsOrientation(t *testing.T) {
	sphere := NewUVSphere(r3.Vec{X: 1}, 1, 12, 24)
	mirror := NewImageToWorld(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}, [3]r3.Vec{{X: -1}, {Y: 1}, {Z: 1}})
	mirrored := sphere.Transform(mirror)
	assert.InDelta(t, sphere.Volume(), mirrored.Volume(), 1e-9)
	b := mirrored.Bounds()
	assert.InDelta(t, -1, (b.Min.X+b.Max.X)/2, 1e-9)
}

func TestStripTriangles(t *testing.T) {
	m := &Mesh{
		Points: []r3.Vec{{}, {X: 1}, {Y: 1}, {X: 1, Y: 1}},
		Strips: [][]int{{0, 1, 2, 3}},
	}
	assert.Equal(t, [][3]int{{0, 1, 2}, {2, 1, 3}}, m.Triangles())
	m.ReverseOrientation()
	assert.Empty(t, m.Strips)
	assert.Equal(t, [][3]int{{2, 1, 0}, {3, 1, 2}}, m.Triangles())
}
