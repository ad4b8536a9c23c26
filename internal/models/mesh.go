package models

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Mesh is a polygonal surface: shared points plus polygon, triangle strip
// and polyline cells indexing into them.
type Mesh struct {
	Points []r3.Vec
	Polys  [][]int
	Strips [][]int
	Lines  [][]int
}

// RepresentationName implements Representation.
func (m *Mesh) RepresentationName() string { return ClosedSurfaceName }

func (m *Mesh) NumPoints() int { return len(m.Points) }

func (m *Mesh) NumCells() int { return len(m.Polys) + len(m.Strips) + len(m.Lines) }

// HasSurfaceCells reports whether the mesh has any polygons or strips.
func (m *Mesh) HasSurfaceCells() bool { return len(m.Polys) > 0 || len(m.Strips) > 0 }

// Bounds returns the axis-aligned bounding box of the points.
func (m *Mesh) Bounds() r3.Box {
	if len(m.Points) == 0 {
		return r3.Box{}
	}
	b := r3.Box{Min: m.Points[0], Max: m.Points[0]}
	for _, p := range m.Points[1:] {
		b.Min.X = math.Min(b.Min.X, p.X)
		b.Min.Y = math.Min(b.Min.Y, p.Y)
		b.Min.Z = math.Min(b.Min.Z, p.Z)
		b.Max.X = math.Max(b.Max.X, p.X)
		b.Max.Y = math.Max(b.Max.Y, p.Y)
		b.Max.Z = math.Max(b.Max.Z, p.Z)
	}
	return b
}

// Triangles returns every polygon fan-triangulated and every strip unrolled,
// keeping the winding of the source cells.
func (m *Mesh) Triangles() [][3]int {
	tris := make([][3]int, 0, len(m.Polys))
	for _, poly := range m.Polys {
		for i := 1; i+1 < len(poly); i++ {
			tris = append(tris, [3]int{poly[0], poly[i], poly[i+1]})
		}
	}
	for _, strip := range m.Strips {
		for i := 0; i+2 < len(strip); i++ {
			if i%2 == 0 {
				tris = append(tris, [3]int{strip[i], strip[i+1], strip[i+2]})
			} else {
				tris = append(tris, [3]int{strip[i+1], strip[i], strip[i+2]})
			}
		}
	}
	return tris
}

// Clone returns a deep copy.
func (m *Mesh) Clone() *Mesh {
	c := &Mesh{Points: append([]r3.Vec(nil), m.Points...)}
	c.Polys = cloneCells(m.Polys)
	c.Strips = cloneCells(m.Strips)
	c.Lines = cloneCells(m.Lines)
	return c
}

func cloneCells(cells [][]int) [][]int {
	if cells == nil {
		return nil
	}
	out := make([][]int, len(cells))
	for i, c := range cells {
		out[i] = append([]int(nil), c...)
	}
	return out
}

// Transform returns a copy with every point mapped through the 4x4 matrix.
// Winding is reversed when the matrix mirrors space so that outward normals
// stay outward.
func (m *Mesh) Transform(t mat.Matrix) *Mesh {
	c := m.Clone()
	for i, p := range c.Points {
		c.Points[i] = TransformPoint(t, p)
	}
	if mat.Det(t) < 0 {
		c.ReverseOrientation()
	}
	return c
}

// ReverseOrientation flips the winding of every surface cell. Strips are
// unrolled into triangles first.
func (m *Mesh) ReverseOrientation() {
	if len(m.Strips) > 0 {
		stripsOnly := &Mesh{Strips: m.Strips}
		for _, t := range stripsOnly.Triangles() {
			m.Polys = append(m.Polys, []int{t[0], t[1], t[2]})
		}
		m.Strips = nil
	}
	for _, poly := range m.Polys {
		for i, j := 0, len(poly)-1; i < j; i, j = i+1, j-1 {
			poly[i], poly[j] = poly[j], poly[i]
		}
	}
}

// Volume returns the signed enclosed volume. It is positive for a closed
// surface with outward-facing triangles.
func (m *Mesh) Volume() float64 {
	var v float64
	for _, t := range m.Triangles() {
		a, b, c := m.Points[t[0]], m.Points[t[1]], m.Points[t[2]]
		v += r3.Dot(a, r3.Cross(b, c))
	}
	return v / 6
}

// Area returns the total area of the surface cells.
func (m *Mesh) Area() float64 {
	var area float64
	for _, t := range m.Triangles() {
		a, b, c := m.Points[t[0]], m.Points[t[1]], m.Points[t[2]]
		area += r3.Norm(r3.Cross(r3.Sub(b, a), r3.Sub(c, a))) / 2
	}
	return area
}
