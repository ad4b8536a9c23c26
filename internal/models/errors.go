package models

import "github.com/pkg/errors"

var (
	// ErrMalformedGeometry indicates a serialised geometry string could not be parsed.
	ErrMalformedGeometry = errors.New("models: malformed image geometry")
	// ErrSingularMatrix indicates an image-to-world matrix has no inverse.
	ErrSingularMatrix = errors.New("models: image-to-world matrix is singular")
)
