package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"fraclabelmap/internal/models"
)

// Report summarises how well a reconstructed surface matches the original.
type Report struct {
	OriginalVolume      float64
	ReconstructedVolume float64
	// RelativeVolumeDifference is |reconstructed - original| / original.
	RelativeVolumeDifference float64

	OriginalArea      float64
	ReconstructedArea float64

	// Point-to-surface distances measured both ways.
	MeanDistance         float64
	Percentile95Distance float64
	HausdorffDistance    float64
}

// CompareSurfaces measures volume, area and symmetric surface distance
// between two closed surfaces.
func CompareSurfaces(original, reconstructed *models.Mesh) Report {
	r := Report{
		OriginalVolume:      original.Volume(),
		ReconstructedVolume: reconstructed.Volume(),
		OriginalArea:        original.Area(),
		ReconstructedArea:   reconstructed.Area(),
	}
	if r.OriginalVolume != 0 {
		r.RelativeVolumeDifference = math.Abs(r.ReconstructedVolume-r.OriginalVolume) / math.Abs(r.OriginalVolume)
	}

	distances := pointDistances(reconstructed, NewDistanceField(original))
	distances = append(distances, pointDistances(original, NewDistanceField(reconstructed))...)
	if len(distances) == 0 {
		return r
	}
	sort.Float64s(distances)
	r.MeanDistance = stat.Mean(distances, nil)
	r.Percentile95Distance = stat.Quantile(0.95, stat.Empirical, distances, nil)
	r.HausdorffDistance = floats.Max(distances)
	return r
}

func pointDistances(m *models.Mesh, field *DistanceField) []float64 {
	d := make([]float64, 0, len(m.Points))
	for _, p := range m.Points {
		if v := field.Distance(p); !math.IsInf(v, 1) {
			d = append(d, v)
		}
	}
	return d
}
