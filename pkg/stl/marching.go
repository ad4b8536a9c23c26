// Package stl extracts isosurfaces from voxel data and reads and writes
// surfaces in the STL format.
package stl

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"fraclabelmap/internal/models"
)

// Triangle is one STL facet.
type Triangle struct {
	Normal  [3]float32
	Vertex1 [3]float32
	Vertex2 [3]float32
	Vertex3 [3]float32
}

// MarchingCubes extracts the isosurface of a scalar volume stored with x
// varying fastest (index z*width*height + y*width + x).
//
// Each cube of 8 neighbouring samples is split into 6 tetrahedra sharing the
// cube diagonal, and each tetrahedron is polygonised on its own. The split
// is the same in every cube, so faces shared by two cubes are cut the same
// way on both sides and the result is watertight.
type MarchingCubes struct {
	data                 []float64
	width, height, depth int
	isoLevel             float64
	scale                r3.Vec
	origin               r3.Vec
}

// NewMarchingCubes creates an extractor. Samples strictly greater than
// isoLevel are inside.
func NewMarchingCubes(data []float64, width, height, depth int, isoLevel float64) *MarchingCubes {
	return &MarchingCubes{
		data:     data,
		width:    width,
		height:   height,
		depth:    depth,
		isoLevel: isoLevel,
		scale:    r3.Vec{X: 1, Y: 1, Z: 1},
	}
}

// SetScale sets the distance between samples along each axis.
func (mc *MarchingCubes) SetScale(x, y, z float64) {
	mc.scale = r3.Vec{X: x, Y: y, Z: z}
}

// SetOrigin sets the position of sample (0,0,0).
func (mc *MarchingCubes) SetOrigin(x, y, z float64) {
	mc.origin = r3.Vec{X: x, Y: y, Z: z}
}

// tetrahedra lists the cube corners of the 6 tetrahedra around the 0-7
// diagonal. Corner c sits at x = c&1, y = (c>>1)&1, z = (c>>2)&1.
var tetrahedra = [6][4]int{
	{0, 1, 3, 7},
	{0, 1, 5, 7},
	{0, 2, 3, 7},
	{0, 2, 6, 7},
	{0, 4, 5, 7},
	{0, 4, 6, 7},
}

type meshBuilder struct {
	mc      *MarchingCubes
	mesh    *models.Mesh
	vertex  map[[2]int]int
	corners [8]int
	values  [8]float64
	pos     [8]r3.Vec
}

func (mc *MarchingCubes) index(x, y, z int) int {
	return z*mc.width*mc.height + y*mc.width + x
}

func (mc *MarchingCubes) position(x, y, z int) r3.Vec {
	return r3.Vec{
		X: mc.origin.X + mc.scale.X*float64(x),
		Y: mc.origin.Y + mc.scale.Y*float64(y),
		Z: mc.origin.Z + mc.scale.Z*float64(z),
	}
}

// GenerateMesh returns the isosurface as a triangle mesh whose points are
// shared between neighbouring triangles. Triangles face away from the
// inside samples.
func (mc *MarchingCubes) GenerateMesh() *models.Mesh {
	b := &meshBuilder{
		mc:     mc,
		mesh:   &models.Mesh{},
		vertex: make(map[[2]int]int),
	}
	if len(mc.data) < mc.width*mc.height*mc.depth {
		return b.mesh
	}
	for z := 0; z+1 < mc.depth; z++ {
		for y := 0; y+1 < mc.height; y++ {
			for x := 0; x+1 < mc.width; x++ {
				b.cube(x, y, z)
			}
		}
	}
	return b.mesh
}

func (b *meshBuilder) cube(x, y, z int) {
	mc := b.mc
	inside := 0
	for c := 0; c < 8; c++ {
		cx, cy, cz := x+c&1, y+(c>>1)&1, z+(c>>2)&1
		b.corners[c] = mc.index(cx, cy, cz)
		b.values[c] = mc.data[b.corners[c]]
		b.pos[c] = mc.position(cx, cy, cz)
		if b.values[c] > mc.isoLevel {
			inside++
		}
	}
	if inside == 0 || inside == 8 {
		return
	}
	for _, tet := range tetrahedra {
		b.tetrahedron(tet)
	}
}

func (b *meshBuilder) tetrahedron(tet [4]int) {
	var in, out []int
	for _, c := range tet {
		if b.values[c] > b.mc.isoLevel {
			in = append(in, c)
		} else {
			out = append(out, c)
		}
	}
	switch len(in) {
	case 0, 4:
		return
	case 1:
		b.triangle(in, out, b.edge(in[0], out[0]), b.edge(in[0], out[1]), b.edge(in[0], out[2]))
	case 3:
		b.triangle(in, out, b.edge(in[0], out[0]), b.edge(in[1], out[0]), b.edge(in[2], out[0]))
	case 2:
		ac, ad := b.edge(in[0], out[0]), b.edge(in[0], out[1])
		bd, bc := b.edge(in[1], out[1]), b.edge(in[1], out[0])
		b.triangle(in, out, ac, ad, bd)
		b.triangle(in, out, ac, bd, bc)
	}
}

// edge returns the mesh point where the isosurface crosses the segment from
// inside corner a to outside corner c.
func (b *meshBuilder) edge(a, c int) int {
	key := [2]int{b.corners[a], b.corners[c]}
	if key[0] > key[1] {
		key[0], key[1] = key[1], key[0]
	}
	if id, ok := b.vertex[key]; ok {
		return id
	}
	va, vc := b.values[a], b.values[c]
	t := (b.mc.isoLevel - va) / (vc - va)
	p := r3.Add(b.pos[a], r3.Scale(t, r3.Sub(b.pos[c], b.pos[a])))
	id := len(b.mesh.Points)
	b.mesh.Points = append(b.mesh.Points, p)
	b.vertex[key] = id
	return id
}

// triangle appends p, q, r wound so the normal points from the inside
// corners towards the outside ones.
func (b *meshBuilder) triangle(in, out []int, p, q, r int) {
	pts := b.mesh.Points
	n := r3.Cross(r3.Sub(pts[q], pts[p]), r3.Sub(pts[r], pts[p]))
	if r3.Dot(n, r3.Sub(centroid(b.pos[:], out), centroid(b.pos[:], in))) < 0 {
		q, r = r, q
	}
	b.mesh.Polys = append(b.mesh.Polys, []int{p, q, r})
}

func centroid(pos []r3.Vec, ids []int) r3.Vec {
	var c r3.Vec
	for _, id := range ids {
		c = r3.Add(c, pos[id])
	}
	return r3.Scale(1/float64(len(ids)), c)
}

// GenerateTriangles returns the isosurface as independent STL facets.
func (mc *MarchingCubes) GenerateTriangles() []Triangle {
	return MeshTriangles(mc.GenerateMesh())
}

// MeshTriangles converts the surface cells of a mesh into STL facets with
// unit normals.
func MeshTriangles(mesh *models.Mesh) []Triangle {
	tris := mesh.Triangles()
	out := make([]Triangle, 0, len(tris))
	for _, t := range tris {
		a, b, c := mesh.Points[t[0]], mesh.Points[t[1]], mesh.Points[t[2]]
		n := r3.Cross(r3.Sub(b, a), r3.Sub(c, a))
		if l := r3.Norm(n); l > 0 && !math.IsNaN(l) {
			n = r3.Scale(1/l, n)
		}
		out = append(out, Triangle{
			Normal:  vec32(n),
			Vertex1: vec32(a),
			Vertex2: vec32(b),
			Vertex3: vec32(c),
		})
	}
	return out
}

func vec32(v r3.Vec) [3]float32 {
	return [3]float32{float32(v.X), float32(v.Y), float32(v.Z)}
}
