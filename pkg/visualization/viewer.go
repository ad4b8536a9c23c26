// Package visualization renders labelmap grids as grey-scale slice images,
// for inspecting the intermediate fractional labelmap of a conversion.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	xdraw "golang.org/x/image/draw"
	"gonum.org/v1/gonum/mat"

	"fraclabelmap/internal/models"
)

// Viewer extracts slices of the first component of a grid.
type Viewer struct {
	grid *models.Grid

	// Values in [lo, hi] map linearly onto black..white.
	lo, hi float64

	// Magnification scales saved slices up by an integer factor.
	Magnification int
}

// NewViewer creates a viewer for grid. Intensities are normalised by the
// grid's ScalarRange, or by its data range when ScalarRange is empty.
func NewViewer(grid *models.Grid) *Viewer {
	v := &Viewer{grid: grid, lo: grid.ScalarRange[0], hi: grid.ScalarRange[1], Magnification: 1}
	if v.hi <= v.lo {
		v.lo, v.hi = math.Inf(1), math.Inf(-1)
		for i := 0; i < len(grid.Data); i += grid.Components {
			v.lo = math.Min(v.lo, grid.Data[i])
			v.hi = math.Max(v.hi, grid.Data[i])
		}
	}
	return v
}

func (v *Viewer) gray(i, j, k int) color.Gray16 {
	if v.hi <= v.lo {
		return color.Gray16{}
	}
	f := (v.grid.At(i, j, k, 0) - v.lo) / (v.hi - v.lo)
	return color.Gray16{Y: uint16(math.Max(0, math.Min(65535, f*65535)))}
}

// ExtractSlice extracts a 2D slice along the specified axis. position is
// counted from the first voxel of the extent along that axis.
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, errors.New("position must be non-negative")
	}

	e := v.grid.Extent
	d := e.Dims()

	var img *image.Gray16
	switch axis {
	case "x", "X":
		// YZ plane
		if position >= d[0] {
			return nil, errors.Errorf("position %d exceeds width %d", position, d[0])
		}
		img = image.NewGray16(image.Rect(0, 0, d[2], d[1]))
		for y := 0; y < d[1]; y++ {
			for z := 0; z < d[2]; z++ {
				img.SetGray16(z, y, v.gray(e[0]+position, e[2]+y, e[4]+z))
			}
		}

	case "y", "Y":
		// XZ plane
		if position >= d[1] {
			return nil, errors.Errorf("position %d exceeds height %d", position, d[1])
		}
		img = image.NewGray16(image.Rect(0, 0, d[0], d[2]))
		for z := 0; z < d[2]; z++ {
			for x := 0; x < d[0]; x++ {
				img.SetGray16(x, z, v.gray(e[0]+x, e[2]+position, e[4]+z))
			}
		}

	case "z", "Z":
		// XY plane
		if position >= d[2] {
			return nil, errors.Errorf("position %d exceeds depth %d", position, d[2])
		}
		img = image.NewGray16(image.Rect(0, 0, d[0], d[1]))
		for y := 0; y < d[1]; y++ {
			for x := 0; x < d[0]; x++ {
				img.SetGray16(x, y, v.gray(e[0]+x, e[2]+y, e[4]+position))
			}
		}

	default:
		return nil, errors.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

// ExtractRegion copies the voxels of sub into a new grid with the same
// geometry and labelmap metadata.
func (v *Viewer) ExtractRegion(sub models.Extent) (*models.Grid, error) {
	if !sub.Valid() {
		return nil, errors.Errorf("invalid region %v", sub)
	}
	if sub.Intersect(v.grid.Extent) != sub {
		return nil, errors.Errorf("region %v extends beyond extent %v", sub, v.grid.Extent)
	}

	g := v.grid
	region := models.NewGrid(g.Kind, sub, g.Components, mat.DenseCopyOf(g.ImageToWorld))
	region.CopyMetadata(g)
	for k := sub[4]; k <= sub[5]; k++ {
		for j := sub[2]; j <= sub[3]; j++ {
			src := g.Index(sub[0], j, k, 0)
			dst := region.Index(sub[0], j, k, 0)
			n := (sub[1] - sub[0] + 1) * g.Components
			copy(region.Data[dst:dst+n], g.Data[src:src+n])
		}
	}
	return region, nil
}

// Magnify scales img up by factor with nearest-neighbour sampling so that
// voxel boundaries stay sharp.
func Magnify(img image.Image, factor int) image.Image {
	if factor <= 1 {
		return img
	}
	b := img.Bounds()
	dst := image.NewGray16(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

// SaveSlice saves a slice as PNG or, for any other extension, as JPEG.
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	img = Magnify(img, v.Magnification)
	if strings.EqualFold(filepath.Ext(filename), ".png") {
		return png.Encode(file, img)
	}
	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveSliceSequence extracts and saves every slice along the specified axis
// as numbered PNG files.
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) error {
	d := v.grid.Extent.Dims()
	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = d[0]
	case "y", "Y":
		maxPos = d[1]
	case "z", "Z":
		maxPos = d[2]
	default:
		return errors.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.png", axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return errors.Wrapf(err, "saving slice %d", pos)
		}
	}

	return nil
}
