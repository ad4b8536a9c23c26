package models

import (
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// IdentityDirections are the world-aligned axis directions.
var IdentityDirections = [3]r3.Vec{{X: 1}, {Y: 1}, {Z: 1}}

// NewImageToWorld builds the 4x4 homogeneous matrix that maps voxel indices
// to world coordinates. Column c holds directions[c] scaled by the spacing
// along that axis, the last column holds the origin.
func NewImageToWorld(origin, spacing r3.Vec, directions [3]r3.Vec) *mat.Dense {
	s := [3]float64{spacing.X, spacing.Y, spacing.Z}
	m := mat.NewDense(4, 4, nil)
	for c, d := range directions {
		m.Set(0, c, d.X*s[c])
		m.Set(1, c, d.Y*s[c])
		m.Set(2, c, d.Z*s[c])
	}
	m.Set(0, 3, origin.X)
	m.Set(1, 3, origin.Y)
	m.Set(2, 3, origin.Z)
	m.Set(3, 3, 1)
	return m
}

// IdentityImageToWorld returns a matrix where voxel indices are world coordinates.
func IdentityImageToWorld() *mat.Dense {
	return NewImageToWorld(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}, IdentityDirections)
}

// TransformPoint applies a 4x4 affine matrix to a point.
func TransformPoint(m mat.Matrix, p r3.Vec) r3.Vec {
	return r3.Vec{
		X: m.At(0, 0)*p.X + m.At(0, 1)*p.Y + m.At(0, 2)*p.Z + m.At(0, 3),
		Y: m.At(1, 0)*p.X + m.At(1, 1)*p.Y + m.At(1, 2)*p.Z + m.At(1, 3),
		Z: m.At(2, 0)*p.X + m.At(2, 1)*p.Y + m.At(2, 2)*p.Z + m.At(2, 3),
	}
}

// InvertTransform returns the inverse of an image-to-world matrix.
func InvertTransform(m mat.Matrix) (*mat.Dense, error) {
	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return nil, errors.Wrap(ErrSingularMatrix, err.Error())
	}
	return &inv, nil
}

// SpacingOf returns the length of the first three columns of the matrix.
func SpacingOf(m mat.Matrix) r3.Vec {
	col := func(c int) float64 {
		return math.Sqrt(m.At(0, c)*m.At(0, c) + m.At(1, c)*m.At(1, c) + m.At(2, c)*m.At(2, c))
	}
	return r3.Vec{X: col(0), Y: col(1), Z: col(2)}
}

// OriginOf returns the world position of voxel (0,0,0).
func OriginOf(m mat.Matrix) r3.Vec {
	return r3.Vec{X: m.At(0, 3), Y: m.At(1, 3), Z: m.At(2, 3)}
}

// SerializeGeometry encodes a matrix and an extent as 16 row-major matrix
// values followed by the 6 extent bounds, each terminated by ';'.
func SerializeGeometry(m mat.Matrix, e Extent) string {
	var b strings.Builder
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			b.WriteString(strconv.FormatFloat(m.At(r, c), 'g', -1, 64))
			b.WriteByte(';')
		}
	}
	for _, v := range e {
		b.WriteString(strconv.Itoa(v))
		b.WriteByte(';')
	}
	return b.String()
}

// ParseGeometry decodes a string written by SerializeGeometry.
func ParseGeometry(s string) (*mat.Dense, Extent, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ';' })
	if len(fields) != 22 {
		return nil, Extent{}, errors.Wrapf(ErrMalformedGeometry, "expected 22 values, got %d", len(fields))
	}
	m := mat.NewDense(4, 4, nil)
	for i := 0; i < 16; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(fields[i]), 64)
		if err != nil {
			return nil, Extent{}, errors.Wrapf(ErrMalformedGeometry, "matrix element %d: %v", i, err)
		}
		m.Set(i/4, i%4, v)
	}
	var e Extent
	for i := range e {
		v, err := strconv.Atoi(strings.TrimSpace(fields[16+i]))
		if err != nil {
			return nil, Extent{}, errors.Wrapf(ErrMalformedGeometry, "extent element %d: %v", i, err)
		}
		e[i] = v
	}
	return m, e, nil
}
