package main

import (
	"testing"

	"fraclabelmap/internal/models"
	"fraclabelmap/pkg/visualization"
)

// TestParseExtent verifies region parsing and its use for cropping slices
func TestParseExtent(t *testing.T) {
	e, err := parseExtent("1, 3,0,2,-1,1")
	if err != nil {
		t.Fatalf("Failed to parse extent: %v", err)
	}
	if want := (models.Extent{1, 3, 0, 2, -1, 1}); e != want {
		t.Errorf("Expected %v, got %v", want, e)
	}

	for _, bad := range []string{"", "1,2,3", "1,2,3,4,5,x"} {
		if _, err := parseExtent(bad); err == nil {
			t.Errorf("Expected error for %q", bad)
		}
	}

	grid := models.NewGrid(models.FractionalLabelmap, models.Extent{0, 4, 0, 4, -1, 2}, 1, nil)
	grid.ScalarRange = [2]float64{0, 216}
	cropped, err := visualization.NewViewer(grid).ExtractRegion(e)
	if err != nil {
		t.Fatalf("Failed to crop region: %v", err)
	}
	if cropped.Extent != e {
		t.Errorf("Expected cropped extent %v, got %v", e, cropped.Extent)
	}
}

// TestParameterFlags verifies repeated Name=value overrides
func TestParameterFlags(t *testing.T) {
	p := parameterFlags{}
	if err := p.Set("Smoothing factor = 0.2"); err != nil {
		t.Fatalf("Failed to set parameter: %v", err)
	}
	if p["Smoothing factor"] != "0.2" {
		t.Errorf("Expected 0.2, got %q", p["Smoothing factor"])
	}
	if err := p.Set("novalue"); err == nil {
		t.Error("Expected error for missing value")
	}
}

// TestPrimitive verifies the built-in surfaces
func TestPrimitive(t *testing.T) {
	for _, name := range []string{"sphere", "cube"} {
		mesh, err := primitive(name)
		if err != nil {
			t.Fatalf("Primitive %s: %v", name, err)
		}
		if v := mesh.Volume(); v <= 0 {
			t.Errorf("Primitive %s has volume %f", name, v)
		}
	}
	if _, err := primitive("torus"); err == nil {
		t.Error("Expected error for unknown primitive")
	}
}
