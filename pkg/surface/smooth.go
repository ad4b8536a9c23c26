package surface

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"fraclabelmap/internal/models"
)

// Smoothing constants. The passband follows the windowed-sinc mapping of a
// smoothing factor s in [0, 1] to 10^(-4s).
const (
	SmoothingIterations = 20
	smoothingLambda     = 0.5
)

// Passband returns the Taubin passband frequency for a smoothing factor.
func Passband(factor float64) float64 {
	return math.Pow(10, -4*factor)
}

// Smooth returns a copy of the triangle mesh low-pass filtered with Taubin
// λ|μ smoothing. Each iteration shrinks with λ and inflates with μ, where
// 1/λ + 1/μ equals the passband, so the volume is roughly preserved.
// Points on open boundaries stay fixed. A factor <= 0 returns an unchanged
// copy.
func Smooth(mesh *models.Mesh, factor float64) *models.Mesh {
	out := mesh.Clone()
	if factor <= 0 || len(out.Points) == 0 {
		return out
	}
	factor = math.Min(factor, 1)
	mu := 1 / (Passband(factor) - 1/smoothingLambda)

	tris := out.Triangles()
	adj := neighbors(len(out.Points), tris)
	fixed := boundaryVertices(len(out.Points), tris)

	next := make([]r3.Vec, len(out.Points))
	step := func(weight float64) {
		for i, p := range out.Points {
			next[i] = p
			if fixed[i] || len(adj[i]) == 0 {
				continue
			}
			var avg r3.Vec
			for _, j := range adj[i] {
				avg = r3.Add(avg, out.Points[j])
			}
			avg = r3.Scale(1/float64(len(adj[i])), avg)
			next[i] = r3.Add(p, r3.Scale(weight, r3.Sub(avg, p)))
		}
		copy(out.Points, next)
	}
	for it := 0; it < SmoothingIterations; it++ {
		step(smoothingLambda)
		step(mu)
	}
	return out
}

// boundaryVertices flags the endpoints of edges used by a single triangle.
func boundaryVertices(numPoints int, tris [][3]int) []bool {
	uses := make(map[[2]int]int)
	for _, t := range tris {
		for i := 0; i < 3; i++ {
			a, b := t[i], t[(i+1)%3]
			uses[[2]int{min(a, b), max(a, b)}]++
		}
	}
	fixed := make([]bool, numPoints)
	for e, n := range uses {
		if n == 1 {
			fixed[e[0]] = true
			fixed[e[1]] = true
		}
	}
	return fixed
}
