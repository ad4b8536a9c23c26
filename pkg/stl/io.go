package stl

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"

	"fraclabelmap/internal/models"
)

const (
	headerSize   = 80
	triangleSize = 50
)

// ErrMalformed indicates an STL stream that could not be parsed.
var ErrMalformed = errors.New("stl: malformed file")

// SaveToSTL writes the triangles to path as binary STL.
func SaveToSTL(path string, triangles []Triangle) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := WriteBinary(w, triangles); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	if err := w.Flush(); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return f.Close()
}

// SaveMesh writes the surface cells of mesh to path as binary STL.
func SaveMesh(path string, mesh *models.Mesh) error {
	return SaveToSTL(path, MeshTriangles(mesh))
}

// WriteBinary encodes triangles as binary STL: an 80 byte header, a uint32
// facet count and 50 bytes per facet, all little-endian.
func WriteBinary(w io.Writer, triangles []Triangle) error {
	header := make([]byte, headerSize)
	copy(header, "binary STL written by fraclabelmap")
	if _, err := w.Write(header); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(triangles))); err != nil {
		return err
	}
	var buf [triangleSize]byte
	for _, t := range triangles {
		off := 0
		for _, v := range [4][3]float32{t.Normal, t.Vertex1, t.Vertex2, t.Vertex3} {
			for _, c := range v {
				binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(c))
				off += 4
			}
		}
		buf[48], buf[49] = 0, 0
		if _, err := w.Write(buf[:]); err != nil {
			return err
		}
	}
	return nil
}

// LoadSTL reads a binary or ASCII STL file into a mesh. Vertices with equal
// coordinates are merged so the result has shared points.
func LoadSTL(path string) (*models.Mesh, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	mesh, err := Decode(data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	return mesh, nil
}

// Decode parses STL data. A stream whose length matches the facet count of
// the binary layout is read as binary, anything else starting with "solid"
// as ASCII.
func Decode(data []byte) (*models.Mesh, error) {
	if len(data) >= headerSize+4 {
		n := binary.LittleEndian.Uint32(data[headerSize:])
		if int64(len(data)) == int64(headerSize+4)+int64(n)*triangleSize {
			return decodeBinary(data[headerSize+4:], int(n)), nil
		}
	}
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("solid")) {
		return decodeASCII(data)
	}
	return nil, ErrMalformed
}

type vertexMerger struct {
	mesh *models.Mesh
	ids  map[r3.Vec]int
}

func newVertexMerger() *vertexMerger {
	return &vertexMerger{mesh: &models.Mesh{}, ids: make(map[r3.Vec]int)}
}

func (m *vertexMerger) add(p r3.Vec) int {
	if id, ok := m.ids[p]; ok {
		return id
	}
	id := len(m.mesh.Points)
	m.mesh.Points = append(m.mesh.Points, p)
	m.ids[p] = id
	return id
}

func (m *vertexMerger) triangle(a, b, c r3.Vec) {
	m.mesh.Polys = append(m.mesh.Polys, []int{m.add(a), m.add(b), m.add(c)})
}

func decodeBinary(data []byte, n int) *models.Mesh {
	m := newVertexMerger()
	read := func(off int) r3.Vec {
		return r3.Vec{
			X: float64(math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))),
			Y: float64(math.Float32frombits(binary.LittleEndian.Uint32(data[off+4:]))),
			Z: float64(math.Float32frombits(binary.LittleEndian.Uint32(data[off+8:]))),
		}
	}
	for i := 0; i < n; i++ {
		base := i * triangleSize
		m.triangle(read(base+12), read(base+24), read(base+36))
	}
	return m.mesh
}

func decodeASCII(data []byte) (*models.Mesh, error) {
	m := newVertexMerger()
	var facet []r3.Vec
	scanner := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "vertex":
			if len(fields) != 4 {
				return nil, errors.Wrapf(ErrMalformed, "line %d", line)
			}
			var p [3]float64
			for i := range p {
				v, err := strconv.ParseFloat(fields[i+1], 64)
				if err != nil {
					return nil, errors.Wrapf(ErrMalformed, "line %d: %v", line, err)
				}
				p[i] = v
			}
			facet = append(facet, r3.Vec{X: p[0], Y: p[1], Z: p[2]})
		case "endloop":
			if len(facet) != 3 {
				return nil, errors.Wrapf(ErrMalformed, "line %d: facet with %d vertices", line, len(facet))
			}
			m.triangle(facet[0], facet[1], facet[2])
			facet = facet[:0]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to scan ASCII STL")
	}
	return m.mesh, nil
}
