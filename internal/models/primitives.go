package models

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// NewUVSphere builds a closed, outward-facing latitude/longitude sphere.
// rings is the number of latitude bands and segments the number of
// longitude slices; both are clamped to a minimum of 3.
func NewUVSphere(center r3.Vec, radius float64, rings, segments int) *Mesh {
	rings = max(rings, 3)
	segments = max(segments, 3)

	m := &Mesh{}
	m.Points = append(m.Points, r3.Add(center, r3.Vec{Z: radius}))
	for r := 1; r < rings; r++ {
		theta := math.Pi * float64(r) / float64(rings)
		for s := 0; s < segments; s++ {
			phi := 2 * math.Pi * float64(s) / float64(segments)
			m.Points = append(m.Points, r3.Add(center, r3.Vec{
				X: radius * math.Sin(theta) * math.Cos(phi),
				Y: radius * math.Sin(theta) * math.Sin(phi),
				Z: radius * math.Cos(theta),
			}))
		}
	}
	south := len(m.Points)
	m.Points = append(m.Points, r3.Add(center, r3.Vec{Z: -radius}))

	ring := func(r, s int) int { return 1 + (r-1)*segments + s%segments }
	for s := 0; s < segments; s++ {
		m.Polys = append(m.Polys, []int{0, ring(1, s), ring(1, s+1)})
	}
	for r := 1; r < rings-1; r++ {
		for s := 0; s < segments; s++ {
			a, a1 := ring(r, s), ring(r, s+1)
			c, c1 := ring(r+1, s), ring(r+1, s+1)
			m.Polys = append(m.Polys, []int{a, c, c1}, []int{a, c1, a1})
		}
	}
	for s := 0; s < segments; s++ {
		m.Polys = append(m.Polys, []int{south, ring(rings-1, s+1), ring(rings-1, s)})
	}
	return m
}

// boxFaces lists the outward counter-clockwise corner order of each face.
// Corner c has x = c&1, y = (c>>1)&1, z = (c>>2)&1.
var boxFaces = [6][4]int{
	{0, 2, 3, 1}, // -z
	{4, 5, 7, 6}, // +z
	{0, 1, 5, 4}, // -y
	{2, 6, 7, 3}, // +y
	{0, 4, 6, 2}, // -x
	{1, 3, 7, 5}, // +x
}

// Box face identifiers for NewBoxWithout.
const (
	FaceMinZ = iota
	FaceMaxZ
	FaceMinY
	FaceMaxY
	FaceMinX
	FaceMaxX
)

// NewBox builds a closed, outward-facing triangulated box.
func NewBox(lo, hi r3.Vec) *Mesh {
	return NewBoxWithout(lo, hi)
}

// NewBoxWithout builds a triangulated box with the listed faces left open.
func NewBoxWithout(lo, hi r3.Vec, openFaces ...int) *Mesh {
	m := &Mesh{}
	for c := 0; c < 8; c++ {
		p := lo
		if c&1 != 0 {
			p.X = hi.X
		}
		if c&2 != 0 {
			p.Y = hi.Y
		}
		if c&4 != 0 {
			p.Z = hi.Z
		}
		m.Points = append(m.Points, p)
	}
	open := make(map[int]bool, len(openFaces))
	for _, f := range openFaces {
		open[f] = true
	}
	for f, q := range boxFaces {
		if open[f] {
			continue
		}
		m.Polys = append(m.Polys, []int{q[0], q[1], q[2]}, []int{q[0], q[2], q[3]})
	}
	return m
}
