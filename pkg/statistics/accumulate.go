// Package statistics computes histograms and summary statistics of an image
// where each voxel is weighted by its fractional occupancy.
package statistics

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"fraclabelmap/internal/models"
	"fraclabelmap/pkg/raster"
)

// MaxComponents is the largest number of image components accumulated.
const MaxComponents = 3

var (
	// ErrNoInput indicates Update was called without a base image.
	ErrNoInput = errors.New("statistics: no input image")

	// ErrTooManyComponents indicates a base image with more than 3 components.
	ErrTooManyComponents = errors.New("statistics: at most 3 components are supported")
)

// FractionalAccumulator bins the values of a base image into a joint
// histogram over its components. When a fractional labelmap is set, each
// voxel contributes (f - min)/(max - min) instead of 1, where f is the
// co-located fractional value.
type FractionalAccumulator struct {
	// IgnoreZero skips voxels whose components are all 0.
	IgnoreZero bool

	// ReverseStencil accumulates the voxels outside the stencil instead.
	ReverseStencil bool

	input      *models.Grid
	fractional *models.Grid
	minFrac    float64
	maxFrac    float64
	stencil    *raster.Stencil

	origin  [MaxComponents]float64
	spacing [MaxComponents]float64
	extent  models.Extent
}

// NewFractionalAccumulator returns an accumulator with 256 unit bins
// starting at 0 on the first component.
func NewFractionalAccumulator() *FractionalAccumulator {
	return &FractionalAccumulator{
		spacing: [MaxComponents]float64{1, 1, 1},
		extent:  models.Extent{0, 255, 0, 0, 0, 0},
	}
}

// SetInput sets the base image.
func (a *FractionalAccumulator) SetInput(g *models.Grid) { a.input = g }

// SetFractionalLabelmap sets the weighting image and its occupancy range.
// Passing nil weights every voxel by 1.
func (a *FractionalAccumulator) SetFractionalLabelmap(g *models.Grid, minValue, maxValue float64) {
	a.fractional = g
	a.minFrac, a.maxFrac = minValue, maxValue
}

// SetStencil restricts accumulation to the stencil. Passing nil removes it.
func (a *FractionalAccumulator) SetStencil(s *raster.Stencil) { a.stencil = s }

// SetComponentOrigin sets the centre of the first bin of each component.
func (a *FractionalAccumulator) SetComponentOrigin(x, y, z float64) {
	a.origin = [MaxComponents]float64{x, y, z}
}

// SetComponentSpacing sets the bin width of each component.
func (a *FractionalAccumulator) SetComponentSpacing(x, y, z float64) {
	a.spacing = [MaxComponents]float64{x, y, z}
}

// SetComponentExtent sets the bin index range of each component.
func (a *FractionalAccumulator) SetComponentExtent(e models.Extent) { a.extent = e }

// Result holds the output of one accumulation.
type Result struct {
	// Histogram holds the summed weights per bin, indexed by the bin of
	// each component.
	Histogram *models.Grid

	Min, Max          [MaxComponents]float64
	Mean              [MaxComponents]float64
	StandardDeviation [MaxComponents]float64

	// VoxelCount is the raw number of voxels visited, FractionalVoxelCount
	// the sum of their weights. Min and Max are unweighted.
	VoxelCount           int
	FractionalVoxelCount float64
}

// Total returns the summed weight of all histogram bins.
func (r *Result) Total() float64 { return floats.Sum(r.Histogram.Data) }

func (a *FractionalAccumulator) weight(i, j, k int) float64 {
	if a.fractional == nil {
		return 1
	}
	if !a.fractional.Extent.Contains(i, j, k) || a.maxFrac == a.minFrac {
		return 0
	}
	return (a.fractional.At(i, j, k, 0) - a.minFrac) / (a.maxFrac - a.minFrac)
}

// rowRuns returns the inclusive x ranges of row (j, k) to accumulate.
func (a *FractionalAccumulator) rowRuns(j, k int) [][2]int {
	e := a.input.Extent
	if a.stencil == nil {
		return [][2]int{{e[0], e[1]}}
	}
	spans := a.stencil.Spans(j, k)
	if !a.ReverseStencil {
		runs := make([][2]int, 0, len(spans))
		for _, sp := range spans {
			if x0, x1 := max(sp.X0, e[0]), min(sp.X1, e[1]); x0 <= x1 {
				runs = append(runs, [2]int{x0, x1})
			}
		}
		return runs
	}
	var runs [][2]int
	x := e[0]
	for _, sp := range spans {
		if sp.X0 > x {
			runs = append(runs, [2]int{x, min(sp.X0-1, e[1])})
		}
		x = max(x, sp.X1+1)
	}
	if x <= e[1] {
		runs = append(runs, [2]int{x, e[1]})
	}
	return runs
}

// Update accumulates the input and returns a fresh result.
func (a *FractionalAccumulator) Update() (*Result, error) {
	if a.input == nil {
		return nil, ErrNoInput
	}
	nc := a.input.Components
	if nc > MaxComponents {
		return nil, errors.Wrapf(ErrTooManyComponents, "got %d", nc)
	}

	histExtent := a.extent
	for c := nc; c < MaxComponents; c++ {
		histExtent[2*c], histExtent[2*c+1] = 0, 0
	}
	res := &Result{Histogram: models.NewGrid(models.ScalarVolume, histExtent, 1, nil)}
	var sum, sumSq [MaxComponents]float64
	for c := 0; c < nc; c++ {
		res.Min[c] = math.Inf(1)
		res.Max[c] = math.Inf(-1)
	}

	values := make([]float64, nc)
	e := a.input.Extent
	for k := e[4]; k <= e[5]; k++ {
		for j := e[2]; j <= e[3]; j++ {
			for _, run := range a.rowRuns(j, k) {
				for i := run[0]; i <= run[1]; i++ {
					w := a.weight(i, j, k)
					base := a.input.Index(i, j, k, 0)
					copy(values, a.input.Data[base:base+nc])
					if a.IgnoreZero && floats.Norm(values, math.Inf(1)) == 0 {
						continue
					}

					res.VoxelCount++
					res.FractionalVoxelCount += w
					bin := [MaxComponents]int{}
					inRange := true
					for c, v := range values {
						res.Min[c] = math.Min(res.Min[c], v)
						res.Max[c] = math.Max(res.Max[c], v)
						sum[c] += w * v
						sumSq[c] += w * v * v
						bin[c] = int(math.Floor((v-a.origin[c])/a.spacing[c] + 0.5))
						if bin[c] < histExtent[2*c] || bin[c] > histExtent[2*c+1] {
							inRange = false
						}
					}
					if inRange {
						res.Histogram.Data[res.Histogram.Index(bin[0], bin[1], bin[2], 0)] += w
					}
				}
			}
		}
	}

	n := res.FractionalVoxelCount
	for c := 0; c < nc; c++ {
		if res.VoxelCount == 0 {
			res.Min[c], res.Max[c] = 0, 0
		}
		if n <= 0 {
			continue
		}
		res.Mean[c] = sum[c] / n
		variance := sumSq[c]/n - res.Mean[c]*res.Mean[c]
		res.StandardDeviation[c] = math.Sqrt(math.Max(variance, 0))
	}
	return res, nil
}
