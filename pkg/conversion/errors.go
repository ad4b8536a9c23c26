package conversion

import "github.com/pkg/errors"

// Sentinel errors returned by conversion rules. Every failure leaves the
// target representation untouched.
var (
	// ErrInvalidRepresentation indicates a nil or wrongly typed source or target.
	ErrInvalidRepresentation = errors.New("conversion: invalid representation")

	// ErrDegenerateMesh indicates a surface with fewer than 2 points or 2 cells.
	ErrDegenerateMesh = errors.New("conversion: degenerate mesh")

	// ErrInvalidParameter indicates an unparsable or out-of-range parameter.
	ErrInvalidParameter = errors.New("conversion: invalid parameter")

	// ErrAllocation indicates the output grid would exceed the voxel budget.
	ErrAllocation = errors.New("conversion: grid exceeds voxel budget")

	// ErrNoPolygons indicates isosurface extraction produced an empty surface.
	ErrNoPolygons = errors.New("conversion: no polygons generated")

	// ErrSurfaceProcessing indicates decimation or smoothing failed.
	ErrSurfaceProcessing = errors.New("conversion: surface processing failed")

	// ErrNoRule indicates no registered rule converts between two representations.
	ErrNoRule = errors.New("conversion: no rule for representation pair")
)
