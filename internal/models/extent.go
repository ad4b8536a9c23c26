package models

import "fmt"

// Extent is an inclusive voxel index range laid out as
// [iMin, iMax, jMin, jMax, kMin, kMax].
type Extent [6]int

// Valid reports whether every axis has at least one voxel.
func (e Extent) Valid() bool {
	return e[0] <= e[1] && e[2] <= e[3] && e[4] <= e[5]
}

// Dims returns the number of voxels along each axis.
func (e Extent) Dims() [3]int {
	if !e.Valid() {
		return [3]int{}
	}
	return [3]int{e[1] - e[0] + 1, e[3] - e[2] + 1, e[5] - e[4] + 1}
}

// NumVoxels returns the total number of voxels covered by the extent.
func (e Extent) NumVoxels() int {
	d := e.Dims()
	return d[0] * d[1] * d[2]
}

// Contains reports whether the index lies inside the extent.
func (e Extent) Contains(i, j, k int) bool {
	return i >= e[0] && i <= e[1] && j >= e[2] && j <= e[3] && k >= e[4] && k <= e[5]
}

// OnBoundary reports whether the index lies on one of the six faces.
func (e Extent) OnBoundary(i, j, k int) bool {
	return i == e[0] || i == e[1] || j == e[2] || j == e[3] || k == e[4] || k == e[5]
}

// Pad grows the extent by n voxels on every face.
func (e Extent) Pad(n int) Extent {
	return Extent{e[0] - n, e[1] + n, e[2] - n, e[3] + n, e[4] - n, e[5] + n}
}

// Intersect returns the overlap of two extents. The result is not Valid
// when they do not overlap.
func (e Extent) Intersect(o Extent) Extent {
	var r Extent
	for axis := 0; axis < 3; axis++ {
		r[2*axis] = max(e[2*axis], o[2*axis])
		r[2*axis+1] = min(e[2*axis+1], o[2*axis+1])
	}
	return r
}

func (e Extent) String() string {
	return fmt.Sprintf("[%d..%d, %d..%d, %d..%d]", e[0], e[1], e[2], e[3], e[4], e[5])
}
