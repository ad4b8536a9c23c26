package slicer

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r2"
)

// RemoveSpurs drops segments that connect a branch point (more than two
// neighbours) to a loose end, repeating until no such segment is left.
func RemoveSpurs(numPoints int, segments [][2]int) [][2]int {
	for changed := true; changed; {
		changed = false
		counts := neighborCounts(numPoints, segments)
		kept := make([][2]int, 0, len(segments))
		for _, s := range segments {
			a, b := s[0], s[1]
			if (counts[a] > 2 && counts[b] == 1) || (counts[b] > 2 && counts[a] == 1) {
				counts[a]--
				counts[b]--
				changed = true
				continue
			}
			kept = append(kept, s)
		}
		segments = kept
	}
	return segments
}

// JoinLooseEnds pairs up the points used by exactly one segment and returns
// the connecting segments to add. Loose ends are visited in increasing id
// order. For each one the partner is chosen as follows:
//   - an exactly coincident loose end wins immediately (zero-length joint);
//   - otherwise a partner whose joint lies on the convex hull of the
//     remaining loose ends is preferred;
//   - ties are broken by the largest dot(incoming, joint)/|joint|², which
//     favours short joints that continue the polyline's direction.
//
// An odd loose end left over at the end stays unjoined.
func JoinLooseEnds(points []r2.Vec, segments [][2]int) [][2]int {
	counts := neighborCounts(len(points), segments)
	neighbor := make(map[int]int)
	for _, s := range segments {
		if counts[s[0]] == 1 {
			neighbor[s[0]] = s[1]
		}
		if counts[s[1]] == 1 {
			neighbor[s[1]] = s[0]
		}
	}
	remaining := make([]int, 0, len(neighbor))
	for id := range neighbor {
		remaining = append(remaining, id)
	}
	slices.Sort(remaining)

	var joints [][2]int
	for len(remaining) >= 2 {
		i := remaining[0]
		pi := points[i]
		incoming := r2.Sub(pi, points[neighbor[i]])

		best := -1
		bestOnHull := false
		bestScore := math.Inf(-1)
		for idx := 1; idx < len(remaining); idx++ {
			j := remaining[idx]
			v := r2.Sub(points[j], pi)
			d2 := r2.Norm2(v)
			if d2 == 0 {
				best = idx
				break
			}
			onHull := isOnHull(points, remaining, i, j)
			score := r2.Dot(incoming, v) / d2
			if best < 0 || (onHull && !bestOnHull) || (onHull == bestOnHull && score > bestScore) {
				best, bestOnHull, bestScore = idx, onHull, score
			}
		}

		joints = append(joints, [2]int{i, remaining[best]})
		remaining = slices.Delete(remaining, best, best+1)
		remaining = remaining[1:]
	}
	return joints
}

// isOnHull reports whether the segment a-b is an edge of the convex hull of
// the given point set, that is every other point lies on one side of it.
func isOnHull(points []r2.Vec, ids []int, a, b int) bool {
	pa := points[a]
	edge := r2.Sub(points[b], pa)
	var left, right bool
	for _, c := range ids {
		if c == a || c == b {
			continue
		}
		w := r2.Sub(points[c], pa)
		cross := edge.X*w.Y - edge.Y*w.X
		switch {
		case cross > 0:
			left = true
		case cross < 0:
			right = true
		}
		if left && right {
			return false
		}
	}
	return true
}
