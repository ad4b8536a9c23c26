package slicer

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"fraclabelmap/internal/models"
)

// DefaultLineTolerance selects existing polylines lying within half a voxel
// of the cut plane when the surface has no polygon cells.
const DefaultLineTolerance = 0.5

// Cutter intersects one surface with planes of constant Z. The surface is
// expected in voxel index space so the returned contours are directly usable
// by the scan converter.
type Cutter struct {
	// LineTolerance is the maximum |z - plane| for polyline-only surfaces.
	LineTolerance float64

	points []r3.Vec
	tris   [][3]int
	lines  [][]int
	cache  *SliceCache
}

// NewCutter prepares a cutter for the mesh. A nil cache disables caching.
func NewCutter(mesh *models.Mesh, cache *SliceCache) *Cutter {
	c := &Cutter{
		LineTolerance: DefaultLineTolerance,
		points:        mesh.Points,
		cache:         cache,
	}
	if mesh.HasSurfaceCells() {
		c.tris = mesh.Triangles()
	} else {
		c.lines = mesh.Lines
	}
	return c
}

// Cut returns the repaired closed contour of the surface at height z.
func (c *Cutter) Cut(z float64) *Contour {
	if c.cache == nil {
		return c.cut(z)
	}
	return c.cache.GetOrCompute(z, func() *Contour { return c.cut(z) })
}

// pointKey identifies an intersection point: the mesh edge (a, b) it lies
// on, or the mesh vertex a itself when b is -1.
type pointKey struct{ a, b int }

type contourBuilder struct {
	ids      map[pointKey]int
	points   []r2.Vec
	segments map[[2]int]int
	order    [][2]int
}

func newContourBuilder() *contourBuilder {
	return &contourBuilder{
		ids:      make(map[pointKey]int),
		segments: make(map[[2]int]int),
	}
}

func (b *contourBuilder) point(key pointKey, p r3.Vec) int {
	if id, ok := b.ids[key]; ok {
		return id
	}
	id := len(b.points)
	b.ids[key] = id
	b.points = append(b.points, r2.Vec{X: p.X, Y: p.Y})
	return id
}

// segment records p-q. A segment produced twice cancels out, which is what
// even-odd filling would do with it anyway.
func (b *contourBuilder) segment(p, q int) {
	if p == q {
		return
	}
	key := [2]int{min(p, q), max(p, q)}
	if _, ok := b.segments[key]; !ok {
		b.order = append(b.order, key)
	}
	b.segments[key]++
}

func (b *contourBuilder) finish(z float64) *Contour {
	segs := make([][2]int, 0, len(b.order))
	for _, key := range b.order {
		if b.segments[key]%2 == 1 {
			segs = append(segs, key)
		}
	}
	segs = RemoveSpurs(len(b.points), segs)
	segs = append(segs, JoinLooseEnds(b.points, segs)...)
	return &Contour{
		Z:              z,
		Points:         b.points,
		Segments:       segs,
		NeighborCounts: neighborCounts(len(b.points), segs),
	}
}

func (c *Cutter) cut(z float64) *Contour {
	b := newContourBuilder()
	if c.tris != nil {
		c.cutTriangles(b, z)
	} else {
		c.selectLines(b, z)
	}
	return b.finish(z)
}

// cutTriangles intersects every triangle with the plane. A vertex counts as
// above the plane when its signed distance is >= 0, which keeps the
// classification consistent between triangles sharing it.
func (c *Cutter) cutTriangles(b *contourBuilder, z float64) {
	crossing := func(a, bb int) int {
		if a > bb {
			a, bb = bb, a
		}
		pa, pb := c.points[a], c.points[bb]
		da, db := pa.Z-z, pb.Z-z
		switch {
		case da == 0:
			return b.point(pointKey{a, -1}, pa)
		case db == 0:
			return b.point(pointKey{bb, -1}, pb)
		}
		t := da / (da - db)
		return b.point(pointKey{a, bb}, r3.Add(pa, r3.Scale(t, r3.Sub(pb, pa))))
	}

	for _, tri := range c.tris {
		var above [3]bool
		n := 0
		for i, v := range tri {
			if c.points[v].Z-z >= 0 {
				above[i] = true
				n++
			}
		}
		if n == 0 || n == 3 {
			continue
		}
		var ends [2]int
		e := 0
		for i := 0; i < 3; i++ {
			j := (i + 1) % 3
			if above[i] != above[j] {
				ends[e] = crossing(tri[i], tri[j])
				e++
			}
		}
		b.segment(ends[0], ends[1])
	}
}

// selectLines treats existing polylines as already-cut contours and keeps
// those lying entirely within LineTolerance of the plane.
func (c *Cutter) selectLines(b *contourBuilder, z float64) {
	for _, line := range c.lines {
		if len(line) < 2 {
			continue
		}
		inPlane := true
		for _, v := range line {
			if math.Abs(c.points[v].Z-z) > c.LineTolerance {
				inPlane = false
				break
			}
		}
		if !inPlane {
			continue
		}
		prev := b.point(pointKey{line[0], -1}, c.points[line[0]])
		for _, v := range line[1:] {
			id := b.point(pointKey{v, -1}, c.points[v])
			b.segment(prev, id)
			prev = id
		}
	}
}
