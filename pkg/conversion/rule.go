// Package conversion implements the rules converting closed surfaces to
// fractional labelmaps and back.
package conversion

import (
	"io"
	"log"

	"fraclabelmap/internal/models"
)

// Static conversion cost estimates in milliseconds.
const (
	ClosedSurfaceToFractionalLabelmapCost = 5000
	FractionalLabelmapToClosedSurfaceCost = 600
)

// Rule converts one representation into another.
type Rule interface {
	// Name is a human-readable name of the rule.
	Name() string
	SourceRepresentationName() string
	TargetRepresentationName() string

	// ConversionCost estimates the duration of Convert in milliseconds.
	ConversionCost(source, target models.Representation) int

	// Parameters returns the rule's parameters. Changes apply to the next
	// Convert call.
	Parameters() *Parameters

	// Convert fills target from source. On error target is unchanged.
	Convert(source, target models.Representation) error
}

func discardLogger(logger *log.Logger) *log.Logger {
	if logger == nil {
		return log.New(io.Discard, "", 0)
	}
	return logger
}
