// Package metrics measures how closely one closed surface matches another.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"fraclabelmap/internal/models"
	"fraclabelmap/pkg/surface"
)

// rayDirection is off-axis so parity rays miss the edges of axis-aligned
// meshes.
var rayDirection = r3.Unit(r3.Vec{X: 1, Y: 0.0137, Z: 0.0071})

// DistanceField answers distance and inside queries against a triangle
// mesh. Triangles are located through a k-d tree over their centroids.
type DistanceField struct {
	points    []r3.Vec
	tris      [][3]int
	centroids *surface.PointIndex
	reach     float64
}

// NewDistanceField prepares queries against the surface cells of mesh.
func NewDistanceField(mesh *models.Mesh) *DistanceField {
	f := &DistanceField{points: mesh.Points, tris: mesh.Triangles()}
	centroids := make([]r3.Vec, len(f.tris))
	for i, t := range f.tris {
		a, b, c := f.points[t[0]], f.points[t[1]], f.points[t[2]]
		centroids[i] = r3.Scale(1.0/3, r3.Add(a, r3.Add(b, c)))
		for _, p := range [3]r3.Vec{a, b, c} {
			f.reach = math.Max(f.reach, r3.Norm(r3.Sub(p, centroids[i])))
		}
	}
	f.centroids = surface.NewPointIndex(centroids)
	return f
}

// Distance returns the unsigned distance from q to the surface, or +Inf for
// an empty surface.
func (f *DistanceField) Distance(q r3.Vec) float64 {
	nearest := f.centroids.Nearest(q, 1)
	if len(nearest) == 0 {
		return math.Inf(1)
	}
	best := f.triangleDistance(q, nearest[0])
	// No triangle whose centroid is farther than best+reach can be closer.
	for _, id := range f.centroids.Within(q, best+f.reach) {
		best = math.Min(best, f.triangleDistance(q, id))
	}
	return best
}

// Inside reports whether q is enclosed by the surface, by counting the
// crossings of a ray leaving q.
func (f *DistanceField) Inside(q r3.Vec) bool {
	crossings := 0
	for _, t := range f.tris {
		if rayHitsTriangle(q, rayDirection, f.points[t[0]], f.points[t[1]], f.points[t[2]]) {
			crossings++
		}
	}
	return crossings%2 == 1
}

// SignedDistance returns the distance from q to the surface, negative when
// q is inside.
func (f *DistanceField) SignedDistance(q r3.Vec) float64 {
	d := f.Distance(q)
	if f.Inside(q) {
		return -d
	}
	return d
}

func (f *DistanceField) triangleDistance(q r3.Vec, id int) float64 {
	t := f.tris[id]
	c := closestPointOnTriangle(q, f.points[t[0]], f.points[t[1]], f.points[t[2]])
	return r3.Norm(r3.Sub(q, c))
}

// closestPointOnTriangle returns the point of triangle abc nearest to p,
// walking the Voronoi regions of its vertices and edges.
func closestPointOnTriangle(p, a, b, c r3.Vec) r3.Vec {
	ab, ac, ap := r3.Sub(b, a), r3.Sub(c, a), r3.Sub(p, a)
	d1, d2 := r3.Dot(ab, ap), r3.Dot(ac, ap)
	if d1 <= 0 && d2 <= 0 {
		return a
	}
	bp := r3.Sub(p, b)
	d3, d4 := r3.Dot(ab, bp), r3.Dot(ac, bp)
	if d3 >= 0 && d4 <= d3 {
		return b
	}
	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		return r3.Add(a, r3.Scale(d1/(d1-d3), ab))
	}
	cp := r3.Sub(p, c)
	d5, d6 := r3.Dot(ab, cp), r3.Dot(ac, cp)
	if d6 >= 0 && d5 <= d6 {
		return c
	}
	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		return r3.Add(a, r3.Scale(d2/(d2-d6), ac))
	}
	va := d3*d6 - d5*d4
	if va <= 0 && d4-d3 >= 0 && d5-d6 >= 0 {
		return r3.Add(b, r3.Scale((d4-d3)/((d4-d3)+(d5-d6)), r3.Sub(c, b)))
	}
	denom := 1 / (va + vb + vc)
	return r3.Add(a, r3.Add(r3.Scale(vb*denom, ab), r3.Scale(vc*denom, ac)))
}

// rayHitsTriangle is the Möller-Trumbore test restricted to hits in front
// of the origin.
func rayHitsTriangle(origin, dir, a, b, c r3.Vec) bool {
	const eps = 1e-12
	e1, e2 := r3.Sub(b, a), r3.Sub(c, a)
	h := r3.Cross(dir, e2)
	det := r3.Dot(e1, h)
	if math.Abs(det) < eps {
		return false
	}
	inv := 1 / det
	s := r3.Sub(origin, a)
	u := inv * r3.Dot(s, h)
	if u < 0 || u > 1 {
		return false
	}
	q := r3.Cross(s, e1)
	v := inv * r3.Dot(dir, q)
	if v < 0 || u+v > 1 {
		return false
	}
	return inv*r3.Dot(e2, q) > eps
}
