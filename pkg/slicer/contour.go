// Package slicer cuts closed triangulated surfaces with constant-Z planes and
// repairs the resulting polylines into closed contours.
package slicer

import "gonum.org/v1/gonum/spatial/r2"

// Contour is the closed polyline set produced by cutting a surface at one Z.
// Contours are immutable once built.
type Contour struct {
	Z        float64
	Points   []r2.Vec
	Segments [][2]int

	// NeighborCounts holds, per point, the number of segments using it after
	// repair. Every used point has exactly two for a watertight input.
	NeighborCounts []int
}

// LooseEnds returns the ids of points used by exactly one segment.
func (c *Contour) LooseEnds() []int {
	var ends []int
	for id, n := range c.NeighborCounts {
		if n == 1 {
			ends = append(ends, id)
		}
	}
	return ends
}

func neighborCounts(numPoints int, segments [][2]int) []int {
	counts := make([]int, numPoints)
	for _, s := range segments {
		counts[s[0]]++
		counts[s[1]]++
	}
	return counts
}
