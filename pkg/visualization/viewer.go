package visualization

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"dosecast/pkg/colormap"
	"dosecast/pkg/dose"
)

// Viewer extracts planar dose slices from a volume and colours them with a
// colormap. It reads the volume in index space, so slices follow the grid
// rather than patient axes.
type Viewer struct {
	vol  *dose.Volume
	cmap colormap.Colormap
}

// NewViewer creates a slice viewer over vol
func NewViewer(vol *dose.Volume, cmap colormap.Colormap) *Viewer {
	return &Viewer{
		vol:  vol,
		cmap: cmap,
	}
}

// extent returns the number of positions along axis
func (v *Viewer) extent(axis string) (int, error) {
	dim := v.vol.Dim()
	switch axis {
	case "x", "X":
		return dim[0], nil
	case "y", "Y":
		return dim[1], nil
	case "z", "Z":
		return dim[2], nil
	default:
		return 0, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}
}

// ExtractSlice extracts a 2D slice of the volume perpendicular to axis
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if v.vol.Empty() {
		return nil, dose.ErrEmpty
	}
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}
	n, err := v.extent(axis)
	if err != nil {
		return nil, err
	}
	if position >= n {
		return nil, fmt.Errorf("position %d exceeds %s extent %d", position, axis, n)
	}

	dim := v.vol.Dim()
	data := v.vol.Data()
	w, h := dim[0], dim[1]

	var img *image.RGBA
	set := func(img *image.RGBA, x, y, idx int) {
		off := img.PixOffset(x, y)
		v.cmap.Apply(data[idx], img.Pix[off:off+4])
	}

	switch axis {
	case "x", "X":
		// YZ plane, z across
		img = image.NewRGBA(image.Rect(0, 0, dim[2], h))
		for y := 0; y < h; y++ {
			for z := 0; z < dim[2]; z++ {
				set(img, z, y, z*w*h+y*w+position)
			}
		}

	case "y", "Y":
		// XZ plane, z down
		img = image.NewRGBA(image.Rect(0, 0, w, dim[2]))
		for z := 0; z < dim[2]; z++ {
			for x := 0; x < w; x++ {
				set(img, x, z, z*w*h+position*w+x)
			}
		}

	default:
		img = image.NewRGBA(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				set(img, x, y, position*w*h+y*w+x)
			}
		}
	}

	return img, nil
}

// SaveSlice saves an extracted slice as a JPEG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	return imaging.Save(img, filename, imaging.JPEGQuality(90))
}

// SaveSliceSequence extracts and saves every slice along the specified axis
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) error {
	maxPos, err := v.extent(axis)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.jpg", axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}
