package models

import (
	"image"
)

// DoseGrid is the payload a volume source hands to the raycaster. It carries
// the raw dose samples plus the geometry needed to place them in the
// patient (ambient) frame.
type DoseGrid struct {
	// Dim holds the voxel counts along x (columns), y (rows) and z (frames)
	Dim [3]int

	// Data is the dose in row-major order: x varies fastest, then y, then z
	Data []float64

	// Origin is the ambient position of the first voxel's centre
	Origin [3]float64

	// RowDir is the direction cosine of increasing column index (x)
	RowDir [3]float64

	// ColDir is the direction cosine of increasing row index (y)
	ColDir [3]float64

	// Spacing is the physical distance between voxel centres along x, y and z
	Spacing [3]float64

	// Units is the dose unit reported by the source, e.g. "GY"
	Units string
}

// Len returns the number of voxels implied by Dim
func (g *DoseGrid) Len() int {
	if g.Dim[0] <= 0 || g.Dim[1] <= 0 || g.Dim[2] <= 0 {
		return 0
	}
	return g.Dim[0] * g.Dim[1] * g.Dim[2]
}

// Texture is a caller-owned pixel buffer the renderer writes into
type Texture struct {
	// Width and Height are the pixel dimensions
	Width  int
	Height int

	// Stride is the size of one pixel in bytes; at least 4 for RGBA
	Stride int

	// Pix holds Height scanlines of Width*Stride bytes each
	Pix []byte
}

// NewTexture allocates an RGBA texture
func NewTexture(width, height int) *Texture {
	return &Texture{
		Width:  width,
		Height: height,
		Stride: 4,
		Pix:    make([]byte, width*height*4),
	}
}

// RowBytes is the length of one scanline in bytes
func (t *Texture) RowBytes() int {
	return t.Width * t.Stride
}

// Row returns scanline j
func (t *Texture) Row(j int) []byte {
	n := t.RowBytes()
	return t.Pix[j*n : (j+1)*n]
}

// Pixel returns the bytes of pixel (i, j)
func (t *Texture) Pixel(i, j int) []byte {
	off := j*t.RowBytes() + i*t.Stride
	return t.Pix[off : off+t.Stride]
}

// Image exposes the texture as an *image.RGBA. Textures with a stride other
// than 4 are repacked; 4-byte textures share their storage.
func (t *Texture) Image() *image.RGBA {
	if t.Stride == 4 {
		return &image.RGBA{
			Pix:    t.Pix,
			Stride: t.RowBytes(),
			Rect:   image.Rect(0, 0, t.Width, t.Height),
		}
	}
	img := image.NewRGBA(image.Rect(0, 0, t.Width, t.Height))
	for j := 0; j < t.Height; j++ {
		for i := 0; i < t.Width; i++ {
			copy(img.Pix[j*img.Stride+i*4:j*img.Stride+i*4+4], t.Pixel(i, j)[:4])
		}
	}
	return img
}
