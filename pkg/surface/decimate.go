package surface

import (
	"container/heap"
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"fraclabelmap/internal/models"
)

// FeatureAngle is the dihedral angle in degrees above which an edge is a
// feature edge. Vertices on feature and boundary edges never move.
const FeatureAngle = 60.0

// minFlipCosine rejects collapses that turn a neighbouring face by more
// than about 84 degrees.
const minFlipCosine = 0.1

// quadric is the symmetric 4x4 error matrix of Garland and Heckbert stored
// as its upper triangle: a² ab ac ad b² bc bd c² cd d².
type quadric [10]float64

func planeQuadric(n r3.Vec, d float64) quadric {
	a, b, c := n.X, n.Y, n.Z
	return quadric{a * a, a * b, a * c, a * d, b * b, b * c, b * d, c * c, c * d, d * d}
}

func (q *quadric) add(o quadric) {
	for i := range q {
		q[i] += o[i]
	}
}

// eval returns the sum of squared distances from p to the planes of q.
func (q quadric) eval(p r3.Vec) float64 {
	x, y, z := p.X, p.Y, p.Z
	e := q[0]*x*x + 2*q[1]*x*y + 2*q[2]*x*z + 2*q[3]*x +
		q[4]*y*y + 2*q[5]*y*z + 2*q[6]*y +
		q[7]*z*z + 2*q[8]*z + q[9]
	return math.Max(e, 0)
}

// minimizer solves for the point of least error. It fails when the planes
// do not pin down a single point.
func (q quadric) minimizer() (r3.Vec, bool) {
	a := mat.NewSymDense(3, []float64{
		q[0], q[1], q[2],
		q[1], q[4], q[5],
		q[2], q[5], q[7],
	})
	b := mat.NewVecDense(3, []float64{-q[3], -q[6], -q[8]})
	var x mat.VecDense
	if err := x.SolveVec(a, b); err != nil {
		return r3.Vec{}, false
	}
	return r3.Vec{X: x.AtVec(0), Y: x.AtVec(1), Z: x.AtVec(2)}, true
}

type collapse struct {
	u, v   int
	vu, vv int
	cost   float64
	pos    r3.Vec
}

type collapseHeap []collapse

func (h collapseHeap) Len() int           { return len(h) }
func (h collapseHeap) Less(i, j int) bool {
	if h[i].cost != h[j].cost {
		return h[i].cost < h[j].cost
	}
	if h[i].u != h[j].u {
		return h[i].u < h[j].u
	}
	return h[i].v < h[j].v
}
func (h collapseHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *collapseHeap) Push(x any)        { *h = append(*h, x.(collapse)) }
func (h *collapseHeap) Pop() any {
	old := *h
	c := old[len(old)-1]
	*h = old[:len(old)-1]
	return c
}

type decimator struct {
	points     []r3.Vec
	faces      [][3]int
	faceAlive  []bool
	aliveFaces int
	vertFaces  [][]int
	alive      []bool
	pinned     []bool
	version    []int
	quadrics   []quadric
	queue      collapseHeap
	maxError   float64
}

// Decimate removes about targetReduction of the triangles by quadric edge
// collapse while keeping the topology of the surface. A collapse is
// rejected when it breaks the link condition, flips a neighbouring face or
// moves a vertex lying on a feature edge. Decimation stops early once the
// cheapest collapse would move the surface by more than half the mean edge
// length. Polylines are dropped. A reduction <= 0 returns an unchanged copy.
func Decimate(mesh *models.Mesh, targetReduction float64) *models.Mesh {
	if targetReduction <= 0 {
		return mesh.Clone()
	}
	targetReduction = math.Min(targetReduction, 1)

	d := newDecimator(Triangulate(mesh))
	target := int(math.Ceil(targetReduction * float64(len(d.faces))))
	removed := 0
	for removed < target && d.queue.Len() > 0 {
		c := heap.Pop(&d.queue).(collapse)
		if !d.current(c) {
			continue
		}
		if c.cost > d.maxError {
			break
		}
		removed += d.collapse(c)
	}
	return d.mesh()
}

func newDecimator(tri *models.Mesh) *decimator {
	n := len(tri.Points)
	d := &decimator{
		points:    append([]r3.Vec(nil), tri.Points...),
		vertFaces: make([][]int, n),
		alive:     make([]bool, n),
		pinned:    make([]bool, n),
		version:   make([]int, n),
		quadrics:  make([]quadric, n),
	}
	normals := make([]r3.Vec, 0, len(tri.Polys))
	for _, p := range tri.Polys {
		f := [3]int{p[0], p[1], p[2]}
		id := len(d.faces)
		d.faces = append(d.faces, f)
		d.faceAlive = append(d.faceAlive, true)
		nrm := FaceNormal(d.points[f[0]], d.points[f[1]], d.points[f[2]])
		normals = append(normals, nrm)
		pq := planeQuadric(nrm, -r3.Dot(nrm, d.points[f[0]]))
		for _, v := range f {
			d.vertFaces[v] = append(d.vertFaces[v], id)
			d.alive[v] = true
			d.quadrics[v].add(pq)
		}
	}
	d.aliveFaces = len(d.faces)

	edgeFaces := make(map[[2]int][]int)
	var order [][2]int
	for id, f := range d.faces {
		for i := 0; i < 3; i++ {
			a, b := f[i], f[(i+1)%3]
			key := [2]int{min(a, b), max(a, b)}
			if _, ok := edgeFaces[key]; !ok {
				order = append(order, key)
			}
			edgeFaces[key] = append(edgeFaces[key], id)
		}
	}
	cosFeature := math.Cos(FeatureAngle * math.Pi / 180)
	var total float64
	for _, e := range order {
		total += r3.Norm(r3.Sub(d.points[e[0]], d.points[e[1]]))
		fs := edgeFaces[e]
		if len(fs) != 2 || r3.Dot(normals[fs[0]], normals[fs[1]]) < cosFeature {
			d.pinned[e[0]] = true
			d.pinned[e[1]] = true
		}
	}
	if len(order) > 0 {
		half := 0.5 * total / float64(len(order))
		d.maxError = half * half
	}

	for _, e := range order {
		if c, ok := d.candidate(e[0], e[1]); ok {
			d.queue = append(d.queue, c)
		}
	}
	heap.Init(&d.queue)
	return d
}

func (d *decimator) candidate(u, v int) (collapse, bool) {
	if d.pinned[u] && d.pinned[v] {
		return collapse{}, false
	}
	q := d.quadrics[u]
	q.add(d.quadrics[v])

	pu, pv := d.points[u], d.points[v]
	var options []r3.Vec
	switch {
	case d.pinned[u]:
		options = []r3.Vec{pu}
	case d.pinned[v]:
		options = []r3.Vec{pv}
	default:
		mid := r3.Scale(0.5, r3.Add(pu, pv))
		options = []r3.Vec{pu, pv, mid}
		if opt, ok := q.minimizer(); ok && r3.Norm(r3.Sub(opt, mid)) <= r3.Norm(r3.Sub(pu, pv)) {
			options = append(options, opt)
		}
	}
	best := collapse{u: u, v: v, vu: d.version[u], vv: d.version[v], cost: math.Inf(1)}
	for _, p := range options {
		if e := q.eval(p); e < best.cost {
			best.cost, best.pos = e, p
		}
	}
	return best, true
}

func (d *decimator) current(c collapse) bool {
	return d.alive[c.u] && d.alive[c.v] && d.version[c.u] == c.vu && d.version[c.v] == c.vv
}

// liveFaces returns the alive faces around v, compacting the list.
func (d *decimator) liveFaces(v int) []int {
	fs := d.vertFaces[v][:0]
	for _, f := range d.vertFaces[v] {
		if d.faceAlive[f] && containsVertex(d.faces[f], v) {
			fs = append(fs, f)
		}
	}
	d.vertFaces[v] = fs
	return fs
}

func containsVertex(f [3]int, v int) bool {
	return f[0] == v || f[1] == v || f[2] == v
}

// ring returns the sorted neighbours of v.
func (d *decimator) ring(v int) []int {
	var r []int
	for _, f := range d.liveFaces(v) {
		for _, w := range d.faces[f] {
			if w != v && !slices.Contains(r, w) {
				r = append(r, w)
			}
		}
	}
	slices.Sort(r)
	return r
}

// collapse merges v into u and returns the number of faces removed, or 0
// when the collapse is rejected.
func (d *decimator) collapse(c collapse) int {
	u, v := c.u, c.v
	if d.aliveFaces-2 < 4 {
		return 0
	}

	var shared []int
	for _, f := range d.liveFaces(v) {
		if containsVertex(d.faces[f], u) {
			shared = append(shared, f)
		}
	}
	if len(shared) != 2 {
		return 0
	}

	// Link condition: the only common neighbours of u and v are the apexes
	// of the two faces on the edge.
	ru, rv := d.ring(u), d.ring(v)
	common := 0
	for _, w := range ru {
		if _, found := slices.BinarySearch(rv, w); found {
			common++
		}
	}
	if common != 2 {
		return 0
	}

	for _, x := range [2]int{u, v} {
		for _, f := range d.liveFaces(x) {
			if f == shared[0] || f == shared[1] {
				continue
			}
			var before, after [3]r3.Vec
			for i, w := range d.faces[f] {
				before[i] = d.points[w]
				after[i] = before[i]
				if w == u || w == v {
					after[i] = c.pos
				}
			}
			n0 := FaceNormal(before[0], before[1], before[2])
			n1 := FaceNormal(after[0], after[1], after[2])
			if n1 == (r3.Vec{}) || r3.Dot(n0, n1) < minFlipCosine {
				return 0
			}
		}
	}

	for _, f := range shared {
		d.faceAlive[f] = false
		d.aliveFaces--
	}
	for _, f := range d.liveFaces(v) {
		for i, w := range d.faces[f] {
			if w == v {
				d.faces[f][i] = u
			}
		}
		d.vertFaces[u] = append(d.vertFaces[u], f)
	}
	d.vertFaces[v] = nil
	d.alive[v] = false
	d.points[u] = c.pos
	d.quadrics[u].add(d.quadrics[v])
	d.pinned[u] = d.pinned[u] || d.pinned[v]
	d.version[u]++

	for _, w := range d.ring(u) {
		if nc, ok := d.candidate(u, w); ok {
			heap.Push(&d.queue, nc)
		}
	}
	return len(shared)
}

func (d *decimator) mesh() *models.Mesh {
	out := &models.Mesh{}
	newID := make(map[int]int)
	for id, f := range d.faces {
		if !d.faceAlive[id] {
			continue
		}
		cell := make([]int, 3)
		for i, v := range f {
			n, ok := newID[v]
			if !ok {
				n = len(out.Points)
				newID[v] = n
				out.Points = append(out.Points, d.points[v])
			}
			cell[i] = n
		}
		out.Polys = append(out.Polys, cell)
	}
	return out
}
