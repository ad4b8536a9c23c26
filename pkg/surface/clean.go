// Package surface cleans, decimates and smooths triangle meshes.
package surface

import (
	"gonum.org/v1/gonum/spatial/r3"

	"fraclabelmap/internal/models"
)

// Triangulate returns a copy with every polygon and strip replaced by
// triangles. Polylines are kept.
func Triangulate(mesh *models.Mesh) *models.Mesh {
	out := &models.Mesh{Points: append([]r3.Vec(nil), mesh.Points...)}
	for _, t := range mesh.Triangles() {
		out.Polys = append(out.Polys, []int{t[0], t[1], t[2]})
	}
	for _, l := range mesh.Lines {
		out.Lines = append(out.Lines, append([]int(nil), l...))
	}
	return out
}

// Clean merges points closer than tolerance, drops cells that collapse
// as a result and removes points no cell references. A tolerance of 0
// merges exactly coincident points only. Strips are triangulated.
func Clean(mesh *models.Mesh, tolerance float64) *models.Mesh {
	rep := mergePoints(mesh.Points, tolerance)

	out := &models.Mesh{}
	newID := make([]int, len(mesh.Points))
	for i := range newID {
		newID[i] = -1
	}
	use := func(old int) int {
		r := rep[old]
		if newID[r] < 0 {
			newID[r] = len(out.Points)
			out.Points = append(out.Points, mesh.Points[r])
		}
		return newID[r]
	}

	polys := append([][]int(nil), mesh.Polys...)
	if len(mesh.Strips) > 0 {
		for _, t := range (&models.Mesh{Strips: mesh.Strips}).Triangles() {
			polys = append(polys, []int{t[0], t[1], t[2]})
		}
	}
	faceCount := make(map[[3]int]int)
	for _, poly := range polys {
		if ids := dedupeRun(poly, rep, true); len(ids) == 3 {
			faceCount[sortedFace(ids)]++
		}
	}
	for _, poly := range polys {
		ids := dedupeRun(poly, rep, true)
		if len(ids) < 3 {
			continue
		}
		// Triangles made coincident by the merge come in back-to-back
		// pairs enclosing nothing.
		if len(ids) == 3 && faceCount[sortedFace(ids)]%2 == 0 {
			continue
		}
		cell := make([]int, len(ids))
		for i, id := range ids {
			cell[i] = use(id)
		}
		out.Polys = append(out.Polys, cell)
	}
	for _, line := range mesh.Lines {
		ids := dedupeRun(line, rep, false)
		if len(ids) < 2 {
			continue
		}
		cell := make([]int, len(ids))
		for i, id := range ids {
			cell[i] = use(id)
		}
		out.Lines = append(out.Lines, cell)
	}
	return out
}

func sortedFace(ids []int) [3]int {
	f := [3]int{ids[0], ids[1], ids[2]}
	if f[0] > f[1] {
		f[0], f[1] = f[1], f[0]
	}
	if f[1] > f[2] {
		f[1], f[2] = f[2], f[1]
	}
	if f[0] > f[1] {
		f[0], f[1] = f[1], f[0]
	}
	return f
}

// mergePoints maps every point to the lowest-index point it merges with.
func mergePoints(points []r3.Vec, tolerance float64) []int {
	rep := make([]int, len(points))
	if tolerance <= 0 {
		first := make(map[r3.Vec]int, len(points))
		for i, p := range points {
			if j, ok := first[p]; ok {
				rep[i] = j
				continue
			}
			first[p] = i
			rep[i] = i
		}
		return rep
	}

	for i := range rep {
		rep[i] = -1
	}
	index := NewPointIndex(points)
	for i, p := range points {
		if rep[i] >= 0 {
			continue
		}
		rep[i] = i
		for _, j := range index.Within(p, tolerance) {
			if rep[j] < 0 {
				rep[j] = i
			}
		}
	}
	return rep
}

// dedupeRun maps ids through rep and drops consecutive repeats, including
// the wrap-around pair when closed is set.
func dedupeRun(ids, rep []int, closed bool) []int {
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		r := rep[id]
		if len(out) > 0 && out[len(out)-1] == r {
			continue
		}
		out = append(out, r)
	}
	if closed {
		for len(out) > 1 && out[0] == out[len(out)-1] {
			out = out[:len(out)-1]
		}
	}
	return out
}

// FaceNormal returns the unit normal of triangle abc, or the zero vector
// when it is degenerate.
func FaceNormal(a, b, c r3.Vec) r3.Vec {
	n := r3.Cross(r3.Sub(b, a), r3.Sub(c, a))
	l := r3.Norm(n)
	if l == 0 {
		return r3.Vec{}
	}
	return r3.Scale(1/l, n)
}

// neighbors returns the vertex adjacency of the triangles in discovery
// order.
func neighbors(numPoints int, tris [][3]int) [][]int {
	adj := make([][]int, numPoints)
	seen := make(map[[2]int]bool)
	for _, t := range tris {
		for i := 0; i < 3; i++ {
			a, b := t[i], t[(i+1)%3]
			key := [2]int{min(a, b), max(a, b)}
			if seen[key] {
				continue
			}
			seen[key] = true
			adj[a] = append(adj[a], b)
			adj[b] = append(adj[b], a)
		}
	}
	return adj
}
