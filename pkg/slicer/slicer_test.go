package slicer

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"fraclabelmap/internal/models"
)

// loops counts the connected components formed by the contour segments.
func loops(c *Contour) int {
	parent := make([]int, len(c.Points))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	for _, s := range c.Segments {
		parent[find(s[0])] = find(s[1])
	}
	roots := map[int]bool{}
	for id, n := range c.NeighborCounts {
		if n > 0 {
			roots[find(id)] = true
		}
	}
	return len(roots)
}

// loopArea sums the shoelace terms of the segments, which is the area of
// the contour when segments follow a consistent orientation along loops.
func loopArea(c *Contour) float64 {
	adj := make(map[int][]int)
	for _, s := range c.Segments {
		adj[s[0]] = append(adj[s[0]], s[1])
		adj[s[1]] = append(adj[s[1]], s[0])
	}
	visited := map[int]bool{}
	var total float64
	for start := range adj {
		if visited[start] {
			continue
		}
		var area float64
		prev, cur := -1, start
		for {
			visited[cur] = true
			next := adj[cur][0]
			if next == prev && len(adj[cur]) > 1 {
				next = adj[cur][1]
			}
			a, b := c.Points[cur], c.Points[next]
			area += a.X*b.Y - b.X*a.Y
			prev, cur = cur, next
			if cur == start {
				break
			}
		}
		total += math.Abs(area) / 2
	}
	return total
}

func TestCutBoxGivesSingleClosedLoop(t *testing.T) {
	box := models.NewBox(r3.Vec{X: 1, Y: 2, Z: 0}, r3.Vec{X: 4, Y: 6, Z: 3})
	c := NewCutter(box, nil).Cut(1.5)

	require.NotEmpty(t, c.Segments)
	assert.Empty(t, c.LooseEnds())
	for id, n := range c.NeighborCounts {
		if n > 0 {
			assert.Equal(t, 2, n, "point %d", id)
		}
	}
	assert.Equal(t, 1, loops(c))
	assert.InDelta(t, 12.0, loopArea(c), 1e-9)
}

func TestCutOutsideSurfaceIsEmpty(t *testing.T) {
	box := models.NewBox(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1})
	c := NewCutter(box, nil).Cut(5)
	assert.Empty(t, c.Segments)
	assert.Empty(t, c.Points)
}

func TestCutThroughVertices(t *testing.T) {
	// The plane passes exactly through the top ring of box corners, which
	// count as lying above it.
	box := models.NewBox(r3.Vec{}, r3.Vec{X: 2, Y: 2, Z: 2})
	c := NewCutter(box, nil).Cut(2)
	assert.Empty(t, c.LooseEnds())
	assert.Equal(t, 1, loops(c))
	assert.InDelta(t, 4.0, loopArea(c), 1e-9)
}

func TestSphereSlicesAreClosed(t *testing.T) {
	sphere := models.NewUVSphere(r3.Vec{}, 3, 16, 32)
	cutter := NewCutter(sphere, nil)
	for _, z := range []float64{-2.5, -1, -0.25, 0, 0.4166, 2.5} {
		c := cutter.Cut(z)
		assert.Empty(t, c.LooseEnds(), "z=%v", z)
		assert.Equal(t, 1, loops(c), "z=%v", z)
		r := math.Sqrt(9 - z*z)
		assert.InDelta(t, math.Pi*r*r, loopArea(c), math.Pi*r*r*0.1, "z=%v", z)
	}
}

func TestCacheDoesNotChangeResult(t *testing.T) {
	sphere := models.NewUVSphere(r3.Vec{X: 0.3}, 2, 12, 24)
	cache := NewSliceCache()
	cached := NewCutter(sphere, cache)
	plain := NewCutter(sphere, nil)

	for _, z := range []float64{-1.5, -0.4166666, 0, 0.75} {
		first := cached.Cut(z)
		assert.Equal(t, plain.Cut(z), first)
		assert.Same(t, first, cached.Cut(z))
	}
	assert.Equal(t, 4, cache.Len())

	got, ok := cache.Get(0)
	require.True(t, ok)
	assert.Equal(t, plain.Cut(0), got)

	cache.Clear()
	assert.Zero(t, cache.Len())
	_, ok = cache.Get(0)
	assert.False(t, ok)
}

func TestCacheComputesOncePerHeight(t *testing.T) {
	cache := NewSliceCache()
	var mu sync.Mutex
	calls := 0
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cache.GetOrCompute(1.25, func() *Contour {
				mu.Lock()
				calls++
				mu.Unlock()
				return &Contour{Z: 1.25}
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, calls)
}

func TestOpenSlitIsRepaired(t *testing.T) {
	// Leaving out the +x wall opens every slice between z=0 and z=1.
	box := models.NewBoxWithout(r3.Vec{}, r3.Vec{X: 2, Y: 1, Z: 1}, models.FaceMaxX)
	c := NewCutter(box, nil).Cut(0.5)

	assert.Empty(t, c.LooseEnds())
	for id, n := range c.NeighborCounts {
		if n > 0 {
			assert.Equal(t, 2, n, "point %d", id)
		}
	}
	assert.Equal(t, 1, loops(c))
	assert.InDelta(t, 2.0, loopArea(c), 1e-9)
}

func TestJoinLooseEndsPrefersHull(t *testing.T) {
	pts := []r2.Vec{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}
	joints := JoinLooseEnds(pts, [][2]int{{0, 1}, {2, 3}})
	assert.Equal(t, [][2]int{{0, 3}, {1, 2}}, joints)
}

func TestJoinLooseEndsCoincidentShortCircuit(t *testing.T) {
	pts := []r2.Vec{{X: 1, Y: 0}, {X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}}
	joints := JoinLooseEnds(pts, [][2]int{{1, 0}, {2, 3}})
	require.Len(t, joints, 2)
	assert.Equal(t, [2]int{0, 2}, joints[0])
	assert.Equal(t, [2]int{1, 3}, joints[1])
}

func TestJoinLooseEndsOddCountLeavesOne(t *testing.T) {
	pts := []r2.Vec{{X: 0}, {X: 1}, {X: 2}, {X: 1, Y: 5}}
	joints := JoinLooseEnds(pts, [][2]int{{0, 1}, {1, 2}, {1, 3}})
	assert.Len(t, joints, 1)
}

func TestRemoveSpurs(t *testing.T) {
	square := [][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 0}}
	segs := append(append([][2]int{}, square...), [2]int{1, 4})
	assert.Equal(t, square, RemoveSpurs(5, segs))

	// A plain open polyline has no branch points and is left alone.
	open := [][2]int{{0, 1}, {1, 2}}
	assert.Equal(t, open, RemoveSpurs(3, open))
}

func TestPolylineOnlySurface(t *testing.T) {
	mesh := &models.Mesh{
		Points: []r3.Vec{{X: 0, Y: 0, Z: 0.2}, {X: 3, Y: 0, Z: 0.2}, {X: 3, Y: 3, Z: 0.2}, {X: 0, Y: 3, Z: 0.2}},
		Lines:  [][]int{{0, 1, 2, 3, 0}},
	}
	cutter := NewCutter(mesh, nil)
	c := cutter.Cut(0)
	assert.Len(t, c.Segments, 4)
	assert.InDelta(t, 9.0, loopArea(c), 1e-9)
	assert.Empty(t, cutter.Cut(2).Segments)
}
