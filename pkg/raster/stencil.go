// Package raster converts planar polygon contours into filled spans on an
// integer voxel grid, one Z plane at a time.
package raster

import (
	"gonum.org/v1/gonum/mat"

	"fraclabelmap/internal/models"
)

// Span is an inclusive run of voxels [X0, X1] along one row.
type Span struct {
	X0, X1 int
}

// Stencil is a binary labelmap stored as sorted spans per (y, z) row.
// Rows of distinct z planes may be written concurrently.
type Stencil struct {
	Extent models.Extent
	rows   [][]Span
}

// NewStencil returns an empty stencil covering the extent.
func NewStencil(extent models.Extent) *Stencil {
	d := extent.Dims()
	return &Stencil{
		Extent: extent,
		rows:   make([][]Span, d[1]*d[2]),
	}
}

func (s *Stencil) row(y, z int) int {
	ny := s.Extent[3] - s.Extent[2] + 1
	return (z-s.Extent[4])*ny + (y - s.Extent[2])
}

// Reset removes every span while keeping row storage for reuse.
func (s *Stencil) Reset() {
	for i := range s.rows {
		s.rows[i] = s.rows[i][:0]
	}
}

// InsertSpan marks voxels x0..x1 of row (y, z) as inside. The span is clipped
// to the extent. Spans must be inserted in increasing x order per row;
// touching or overlapping spans are merged.
func (s *Stencil) InsertSpan(x0, x1, y, z int) {
	if y < s.Extent[2] || y > s.Extent[3] || z < s.Extent[4] || z > s.Extent[5] {
		return
	}
	x0 = max(x0, s.Extent[0])
	x1 = min(x1, s.Extent[1])
	if x0 > x1 {
		return
	}
	r := s.row(y, z)
	spans := s.rows[r]
	if n := len(spans); n > 0 && x0 <= spans[n-1].X1+1 {
		spans[n-1].X1 = max(spans[n-1].X1, x1)
		return
	}
	s.rows[r] = append(spans, Span{X0: x0, X1: x1})
}

// Spans returns the spans of row (y, z). The slice must not be modified.
func (s *Stencil) Spans(y, z int) []Span {
	if y < s.Extent[2] || y > s.Extent[3] || z < s.Extent[4] || z > s.Extent[5] {
		return nil
	}
	return s.rows[s.row(y, z)]
}

// IsInside reports whether voxel (x, y, z) is covered by a span.
func (s *Stencil) IsInside(x, y, z int) bool {
	for _, sp := range s.Spans(y, z) {
		if x >= sp.X0 && x <= sp.X1 {
			return true
		}
	}
	return false
}

// Count returns the number of inside voxels.
func (s *Stencil) Count() int {
	n := 0
	for _, spans := range s.rows {
		for _, sp := range spans {
			n += sp.X1 - sp.X0 + 1
		}
	}
	return n
}

// ToGrid expands the stencil into an explicit 0/1 binary labelmap.
func (s *Stencil) ToGrid(imageToWorld *mat.Dense) *models.Grid {
	g := models.NewGrid(models.BinaryLabelmap, s.Extent, 1, imageToWorld)
	g.ScalarRange = [2]float64{0, 1}
	g.Threshold = 0.5
	g.Interpolation = models.InterpolationNearest
	for z := s.Extent[4]; z <= s.Extent[5]; z++ {
		for y := s.Extent[2]; y <= s.Extent[3]; y++ {
			for _, sp := range s.Spans(y, z) {
				base := g.Index(sp.X0, y, z, 0)
				for i := 0; i <= sp.X1-sp.X0; i++ {
					g.Data[base+i] = 1
				}
			}
		}
	}
	return g
}
