package surface

import (
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
)

// indexedPoint is a mesh point carrying its index, stored in a k-d tree.
type indexedPoint struct {
	r3.Vec
	id int
}

// Compare implements the kdtree.Comparable interface
func (p indexedPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(indexedPoint)
	switch d {
	case 0:
		return p.X - q.X
	case 1:
		return p.Y - q.Y
	case 2:
		return p.Z - q.Z
	default:
		panic("illegal dimension")
	}
}

// Dims returns the number of dimensions for the k-d tree
func (p indexedPoint) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between two points
func (p indexedPoint) Distance(c kdtree.Comparable) float64 {
	return r3.Norm2(r3.Sub(p.Vec, c.(indexedPoint).Vec))
}

type indexedPoints []indexedPoint

func (p indexedPoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p indexedPoints) Len() int                              { return len(p) }
func (p indexedPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

func (p indexedPoints) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(pointPlane{indexedPoints: p, Dim: d}, kdtree.MedianOfRandoms(pointPlane{indexedPoints: p, Dim: d}, 100))
}

// pointPlane implements sort.Interface and kdtree.SortSlicer
type pointPlane struct {
	indexedPoints
	kdtree.Dim
}

func (p pointPlane) Less(i, j int) bool {
	return p.indexedPoints[i].Compare(p.indexedPoints[j], p.Dim) < 0
}

func (p pointPlane) Slice(start, end int) kdtree.SortSlicer {
	return pointPlane{indexedPoints: p.indexedPoints[start:end], Dim: p.Dim}
}

func (p pointPlane) Swap(i, j int) {
	p.indexedPoints[i], p.indexedPoints[j] = p.indexedPoints[j], p.indexedPoints[i]
}

// PointIndex answers nearest-neighbour queries over a fixed set of points.
type PointIndex struct {
	tree *kdtree.Tree
}

// NewPointIndex builds a k-d tree over points. The slice is not retained.
func NewPointIndex(points []r3.Vec) *PointIndex {
	pts := make(indexedPoints, len(points))
	for i, p := range points {
		pts[i] = indexedPoint{Vec: p, id: i}
	}
	return &PointIndex{tree: kdtree.New(pts, true)}
}

// Nearest returns the indices of the k points closest to q, closest first.
func (ix *PointIndex) Nearest(q r3.Vec, k int) []int {
	if k < 1 || ix.tree.Root == nil {
		return nil
	}
	keeper := kdtree.NewNKeeper(k)
	ix.tree.NearestSet(keeper, indexedPoint{Vec: q})
	return keptIDs(keeper.Heap)
}

// Within returns the indices of the points at most radius away from q,
// closest first.
func (ix *PointIndex) Within(q r3.Vec, radius float64) []int {
	if ix.tree.Root == nil {
		return nil
	}
	keeper := kdtree.NewDistKeeper(radius * radius)
	ix.tree.NearestSet(keeper, indexedPoint{Vec: q})
	return keptIDs(keeper.Heap)
}

func keptIDs(heap kdtree.Heap) []int {
	items := make([]kdtree.ComparableDist, 0, len(heap))
	for _, item := range heap {
		// Skip the sentinel value
		if item.Comparable == nil {
			continue
		}
		items = append(items, item)
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Dist != items[j].Dist {
			return items[i].Dist < items[j].Dist
		}
		return items[i].Comparable.(indexedPoint).id < items[j].Comparable.(indexedPoint).id
	})
	ids := make([]int, len(items))
	for i, item := range items {
		ids[i] = item.Comparable.(indexedPoint).id
	}
	return ids
}
