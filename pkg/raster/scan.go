package raster

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r2"

	"fraclabelmap/internal/models"
)

// DefaultTolerance is the distance within which a coordinate is snapped to
// the nearest integer row or column.
const DefaultTolerance = 1e-3

// ScanConverter accumulates the x crossings of polygon edges for every
// integer row of one Z plane and turns them into even-odd filled spans.
//
// A ScanConverter is not safe for concurrent use.
type ScanConverter struct {
	// Tolerance snaps vertices lying this close to an integer row so a
	// vertex shared by two edges is counted once.
	Tolerance float64

	yMin, yMax int
	crossings  [][]float64
}

// NewScanConverter returns a converter for rows yMin..yMax.
func NewScanConverter(yMin, yMax int) *ScanConverter {
	return &ScanConverter{
		Tolerance: DefaultTolerance,
		yMin:      yMin,
		yMax:      yMax,
		crossings: make([][]float64, max(yMax-yMin+1, 0)),
	}
}

func (r *ScanConverter) snap(v float64) float64 {
	n := math.Round(v)
	if math.Abs(v-n) <= r.Tolerance {
		return n
	}
	return v
}

// InsertLine records where the segment p0-p1 crosses each integer row. Rows
// are half-open: a row y is crossed when ylo <= y < yhi, so closed polygons
// contribute an even number of crossings per row. Horizontal and zero-length
// segments cross nothing.
func (r *ScanConverter) InsertLine(p0, p1 r2.Vec) {
	y0, y1 := r.snap(p0.Y), r.snap(p1.Y)
	x0, x1 := p0.X, p1.X
	if y0 == y1 {
		return
	}
	if y0 > y1 {
		x0, x1 = x1, x0
		y0, y1 = y1, y0
	}
	first := max(int(math.Ceil(y0)), r.yMin)
	last := min(int(math.Ceil(y1))-1, r.yMax)
	slope := (x1 - x0) / (y1 - y0)
	for y := first; y <= last; y++ {
		x := x0 + (float64(y)-y0)*slope
		r.crossings[y-r.yMin] = append(r.crossings[y-r.yMin], x)
	}
}

// FillStencilData burns the accumulated rows into plane z of the stencil,
// restricted to the x and y range of sliceExtent. Crossings are paired
// even-odd; an unmatched last crossing is ignored.
func (r *ScanConverter) FillStencilData(s *Stencil, sliceExtent models.Extent, z int) {
	for y := max(r.yMin, sliceExtent[2]); y <= min(r.yMax, sliceExtent[3]); y++ {
		xs := r.crossings[y-r.yMin]
		slices.Sort(xs)
		for i := 0; i+1 < len(xs); i += 2 {
			x0 := int(math.Ceil(r.snap(xs[i])))
			x1 := int(math.Floor(r.snap(xs[i+1])))
			x0 = max(x0, sliceExtent[0])
			x1 = min(x1, sliceExtent[1])
			if x0 <= x1 {
				s.InsertSpan(x0, x1, y, z)
			}
		}
	}
}
