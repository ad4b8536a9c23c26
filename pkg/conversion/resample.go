package conversion

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"fraclabelmap/internal/models"
)

// resampledLength returns the number of samples an axis of n voxels has
// after magnification by factor.
func resampledLength(n int, factor float64) int {
	if n <= 1 {
		return n
	}
	return max(int(math.Round(float64(n-1)*factor))+1, 2)
}

// resample returns the single-component grid g trilinearly resampled by
// factor as a flat x-fastest buffer, its dimensions and the index-space
// distance between output samples along each axis. The first and last
// samples of every axis coincide with the grid's first and last voxels.
func resample(g *models.Grid, factor float64) ([]float64, [3]int, r3.Vec) {
	in := g.Extent.Dims()
	var out [3]int
	var step [3]float64
	for a := 0; a < 3; a++ {
		out[a] = resampledLength(in[a], factor)
		step[a] = 1
		if out[a] > 1 {
			step[a] = float64(in[a]-1) / float64(out[a]-1)
		}
	}

	at := func(i, j, k int) float64 {
		return g.Data[(k*in[1]+j)*in[0]+i]
	}
	axis := func(a, s int) (int, int, float64) {
		pos := float64(s) * step[a]
		i0 := min(int(math.Floor(pos)), in[a]-1)
		i1 := min(i0+1, in[a]-1)
		return i0, i1, pos - float64(i0)
	}

	data := make([]float64, out[0]*out[1]*out[2])
	for z := 0; z < out[2]; z++ {
		k0, k1, tz := axis(2, z)
		for y := 0; y < out[1]; y++ {
			j0, j1, ty := axis(1, y)
			for x := 0; x < out[0]; x++ {
				i0, i1, tx := axis(0, x)
				c00 := lerp(at(i0, j0, k0), at(i1, j0, k0), tx)
				c10 := lerp(at(i0, j1, k0), at(i1, j1, k0), tx)
				c01 := lerp(at(i0, j0, k1), at(i1, j0, k1), tx)
				c11 := lerp(at(i0, j1, k1), at(i1, j1, k1), tx)
				data[(z*out[1]+y)*out[0]+x] = lerp(lerp(c00, c10, ty), lerp(c01, c11, ty), tz)
			}
		}
	}
	return data, out, r3.Vec{X: step[0], Y: step[1], Z: step[2]}
}

func lerp(a, b, t float64) float64 {
	if t == 0 {
		return a
	}
	return a + (b-a)*t
}
