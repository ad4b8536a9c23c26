package models

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Representation names used to tag conversion inputs and outputs.
const (
	ClosedSurfaceName      = "Closed surface"
	FractionalLabelmapName = "Fractional labelmap"
	BinaryLabelmapName     = "Binary labelmap"
	ScalarVolumeName       = "Scalar volume"
)

// Representation is implemented by the data objects the conversion rules
// exchange: *Mesh and *Grid.
type Representation interface {
	RepresentationName() string
}

// GridKind tells what the scalars of a Grid mean.
type GridKind int

const (
	// ScalarVolume holds arbitrary image intensities.
	ScalarVolume GridKind = iota
	// BinaryLabelmap holds 0 (outside) or 1 (inside).
	BinaryLabelmap
	// FractionalLabelmap holds graded occupancy in ScalarRange.
	FractionalLabelmap
)

// Interpolation is the preferred interpolation mode for a grid.
type Interpolation int

const (
	InterpolationNearest Interpolation = iota
	InterpolationLinear
)

func (i Interpolation) String() string {
	if i == InterpolationLinear {
		return "linear"
	}
	return "nearest"
}

// Grid represents an oriented volumetric image. Voxels are stored in a flat
// buffer with the component index varying fastest, then i, then j, then k.
type Grid struct {
	Kind       GridKind
	Extent     Extent
	Components int
	Data       []float64

	// ImageToWorld maps voxel indices to world coordinates.
	ImageToWorld *mat.Dense

	// ScalarRange is [fully outside, fully inside] for fractional labelmaps.
	ScalarRange   [2]float64
	Threshold     float64
	Interpolation Interpolation
}

// NewGrid allocates a zero-filled grid.
func NewGrid(kind GridKind, extent Extent, components int, imageToWorld *mat.Dense) *Grid {
	if components < 1 {
		components = 1
	}
	if imageToWorld == nil {
		imageToWorld = IdentityImageToWorld()
	}
	return &Grid{
		Kind:         kind,
		Extent:       extent,
		Components:   components,
		Data:         make([]float64, extent.NumVoxels()*components),
		ImageToWorld: imageToWorld,
	}
}

// RepresentationName implements Representation.
func (g *Grid) RepresentationName() string {
	switch g.Kind {
	case FractionalLabelmap:
		return FractionalLabelmapName
	case BinaryLabelmap:
		return BinaryLabelmapName
	default:
		return ScalarVolumeName
	}
}

// Index returns the offset of voxel (i,j,k) component c in Data.
func (g *Grid) Index(i, j, k, c int) int {
	d := g.Extent.Dims()
	return (((k-g.Extent[4])*d[1]+(j-g.Extent[2]))*d[0]+(i-g.Extent[0]))*g.Components + c
}

func (g *Grid) At(i, j, k, c int) float64 {
	return g.Data[g.Index(i, j, k, c)]
}

func (g *Grid) Set(i, j, k, c int, v float64) {
	g.Data[g.Index(i, j, k, c)] = v
}

// Fill sets every voxel to v.
func (g *Grid) Fill(v float64) {
	for i := range g.Data {
		g.Data[i] = v
	}
}

// Origin returns the world position of voxel (0,0,0).
func (g *Grid) Origin() r3.Vec { return OriginOf(g.ImageToWorld) }

// Spacing returns the voxel size along each index axis.
func (g *Grid) Spacing() r3.Vec { return SpacingOf(g.ImageToWorld) }

// IndexToWorld maps a continuous index position to world coordinates.
func (g *Grid) IndexToWorld(p r3.Vec) r3.Vec { return TransformPoint(g.ImageToWorld, p) }

// CopyMetadata copies kind, range, threshold and interpolation from src.
func (g *Grid) CopyMetadata(src *Grid) {
	g.Kind = src.Kind
	g.ScalarRange = src.ScalarRange
	g.Threshold = src.Threshold
	g.Interpolation = src.Interpolation
}

// Clone returns a deep copy.
func (g *Grid) Clone() *Grid {
	c := *g
	c.Data = append([]float64(nil), g.Data...)
	c.ImageToWorld = mat.DenseCopyOf(g.ImageToWorld)
	return &c
}

// Pad returns a copy whose extent is grown by n voxels on every face. The new
// voxels are set to fill. Voxel indices keep their world position.
func (g *Grid) Pad(n int, fill float64) *Grid {
	out := NewGrid(g.Kind, g.Extent.Pad(n), g.Components, mat.DenseCopyOf(g.ImageToWorld))
	out.CopyMetadata(g)
	out.Fill(fill)
	e := g.Extent
	rowLen := (e[1] - e[0] + 1) * g.Components
	for k := e[4]; k <= e[5]; k++ {
		for j := e[2]; j <= e[3]; j++ {
			src := g.Index(e[0], j, k, 0)
			dst := out.Index(e[0], j, k, 0)
			copy(out.Data[dst:dst+rowLen], g.Data[src:src+rowLen])
		}
	}
	return out
}

// HasBoundaryValueAbove reports whether any voxel on the outer faces of the
// extent has a value greater than v.
func (g *Grid) HasBoundaryValueAbove(v float64) bool {
	e := g.Extent
	for k := e[4]; k <= e[5]; k++ {
		for j := e[2]; j <= e[3]; j++ {
			faceRow := k == e[4] || k == e[5] || j == e[2] || j == e[3]
			for i := e[0]; i <= e[1]; i++ {
				if !faceRow && i != e[0] && i != e[1] {
					continue
				}
				for c := 0; c < g.Components; c++ {
					if g.At(i, j, k, c) > v {
						return true
					}
				}
			}
		}
	}
	return false
}
