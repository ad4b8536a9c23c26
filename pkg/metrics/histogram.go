package metrics

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"fraclabelmap/internal/models"
)

// Defaults of the distance histogram, matching the two-sphere fixture.
const (
	DefaultHistogramOrigin  = -0.5
	DefaultHistogramSpacing = 0.05
	DefaultHistogramBins    = 21
)

// Histogram counts values into bins of equal width. Bin i is centred on
// Origin + i*Spacing.
type Histogram struct {
	Origin  float64
	Spacing float64
	Counts  []int

	// Outside counts values that fall beyond the first or last bin.
	Outside int
}

// NewHistogram returns an empty histogram.
func NewHistogram(origin, spacing float64, bins int) *Histogram {
	return &Histogram{Origin: origin, Spacing: spacing, Counts: make([]int, max(bins, 0))}
}

// Dividers returns the len(Counts)+1 bin edges. Bin i spans
// [Origin+(i-0.5)*Spacing, Origin+(i+0.5)*Spacing).
func (h *Histogram) Dividers() []float64 {
	n := len(h.Counts)
	if n == 0 {
		return nil
	}
	return floats.Span(make([]float64, n+1), h.Origin-h.Spacing/2, h.Origin+(float64(n)-0.5)*h.Spacing)
}

// Add counts v in the bin whose centre is nearest.
func (h *Histogram) Add(v float64) { h.AddAll([]float64{v}) }

// AddAll counts every value in the bin whose centre is nearest. Values
// beyond the first or last bin, and NaNs, are counted in Outside.
func (h *Histogram) AddAll(values []float64) {
	if len(h.Counts) == 0 || !(h.Spacing > 0) {
		h.Outside += len(values)
		return
	}
	dividers := h.Dividers()
	lo, hi := dividers[0], dividers[len(dividers)-1]
	inside := make([]float64, 0, len(values))
	for _, v := range values {
		if v >= lo && v < hi {
			inside = append(inside, v)
		} else {
			h.Outside++
		}
	}
	sort.Float64s(inside)
	for i, c := range stat.Histogram(nil, dividers, inside, nil) {
		h.Counts[i] += int(c)
	}
}

// BinCenter returns the centre value of bin i.
func (h *Histogram) BinCenter(i int) float64 { return h.Origin + float64(i)*h.Spacing }

// Total returns the number of values added, including those outside.
func (h *Histogram) Total() int {
	n := h.Outside
	for _, c := range h.Counts {
		n += c
	}
	return n
}

// DistanceHistogram bins the signed distance from every point of from to
// the surface to. Distances are negative for points inside to.
func DistanceHistogram(from, to *models.Mesh, origin, spacing float64, bins int) *Histogram {
	field := NewDistanceField(to)
	distances := make([]float64, len(from.Points))
	for i, p := range from.Points {
		distances[i] = field.SignedDistance(p)
	}
	h := NewHistogram(origin, spacing, bins)
	h.AddAll(distances)
	return h
}
