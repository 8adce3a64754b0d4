// Package dose holds the rectangular dose volume the raycaster samples: the
// voxel data, its pixel-to-ambient affine transform and the inverse of that
// transform.
package dose

import (
	"errors"
	"fmt"
	"math"

	"dosecast/internal/models"
	"dosecast/pkg/rcmath"
)

// DefaultMaxVoxels caps the size of a volume that will be allocated
const DefaultMaxVoxels = 512 * 512 * 512

var (
	// ErrLoad wraps every failure reported by a volume source
	ErrLoad = errors.New("dose load failed")

	// ErrEmpty is returned by operations that need voxel data
	ErrEmpty = errors.New("dose volume is empty")

	// ErrOutOfMemory is returned when a volume would exceed the voxel limit
	ErrOutOfMemory = errors.New("not enough memory for dose volume")
)

// Source reads a dose grid from a path. The DICOM reader implements it.
type Source interface {
	Load(path string) (*models.DoseGrid, error)
}

// Volume is a rectangular dose array placed in the ambient frame by an
// affine transform.
//
// The mutating methods (Load, SetGrid, Compact, Clear) must not run while a
// render is reading the same Volume; callers serialize them.
type Volume struct {
	// centr is the dose-weighted centroid in ambient coordinates
	centr rcmath.Vec

	// mat maps pixel (index) coordinates to ambient coordinates; inv is its
	// exact inverse
	mat rcmath.Mat4
	inv rcmath.Mat4

	dim  rcmath.Index
	dmax float64
	data []float64

	maxVoxels int

	// Verbose enables progress messages on stdout
	Verbose bool
}

// New creates an empty volume
func New() *Volume {
	return &Volume{
		mat:       rcmath.IdentityMat(),
		inv:       rcmath.IdentityMat(),
		centr:     rcmath.Point(0, 0, 0),
		maxVoxels: DefaultMaxVoxels,
	}
}

// FromGrid creates a volume holding g
func FromGrid(g *models.DoseGrid) (*Volume, error) {
	v := New()
	if err := v.SetGrid(g); err != nil {
		return nil, err
	}
	return v, nil
}

// SetMaxVoxels changes the allocation limit. Non-positive values restore the
// default.
func (v *Volume) SetMaxVoxels(n int) {
	if n <= 0 {
		n = DefaultMaxVoxels
	}
	v.maxVoxels = n
}

// Load reads the grid at path from src and replaces the volume contents. On
// any failure the volume is left empty.
func (v *Volume) Load(src Source, path string) error {
	g, err := src.Load(path)
	if err != nil {
		v.Clear()
		return fmt.Errorf("%w: %s: %w", ErrLoad, path, err)
	}
	return v.SetGrid(g)
}

// SetGrid takes ownership of g.Data and replaces the volume contents with g.
// The transform is built from the origin, the two in-plane direction
// cosines and their cross product, each scaled by its axis spacing. A grid
// over the voxel limit leaves the volume as it was; any other failure leaves
// it empty.
func (v *Volume) SetGrid(g *models.DoseGrid) error {
	next, err := v.build(g)
	if err != nil {
		if !errors.Is(err, ErrOutOfMemory) {
			v.Clear()
		}
		return err
	}
	next.Verbose = v.Verbose
	*v = *next
	return nil
}

func (v *Volume) build(g *models.DoseGrid) (*Volume, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: no grid", ErrLoad)
	}
	for k, n := range g.Dim {
		if n <= 0 {
			return nil, fmt.Errorf("%w: dimension %d is %d", ErrLoad, k, n)
		}
	}
	limit := v.maxVoxels
	if limit <= 0 {
		limit = DefaultMaxVoxels
	}
	n := g.Dim[0] * g.Dim[1] * g.Dim[2]
	if n/g.Dim[0]/g.Dim[1] != g.Dim[2] || n > limit {
		return nil, fmt.Errorf("%w: %d x %d x %d voxels", ErrOutOfMemory, g.Dim[0], g.Dim[1], g.Dim[2])
	}
	if len(g.Data) != n {
		return nil, fmt.Errorf("%w: expected %d samples, got %d", ErrLoad, n, len(g.Data))
	}

	row := rcmath.Tangent(g.RowDir[0], g.RowDir[1], g.RowDir[2])
	col := rcmath.Tangent(g.ColDir[0], g.ColDir[1], g.ColDir[2])
	next := &Volume{
		dim:       rcmath.Index{g.Dim[0], g.Dim[1], g.Dim[2]},
		data:      g.Data,
		maxVoxels: limit,
	}
	next.mat = rcmath.Mat4{
		row.Scale(g.Spacing[0]),
		col.Scale(g.Spacing[1]),
		row.Cross(col).Scale(g.Spacing[2]),
		rcmath.Point(g.Origin[0], g.Origin[1], g.Origin[2]),
	}
	inv, err := next.mat.Invert()
	if err != nil {
		return nil, fmt.Errorf("%w: dose matrix: %w", ErrLoad, err)
	}
	next.inv = inv

	for _, d := range next.data {
		if d > next.dmax {
			next.dmax = d
		}
	}
	next.centr = next.centroid()
	return next, nil
}

// centroid computes the dose-weighted mean voxel position and maps it to the
// ambient frame. A volume without positive total dose uses its geometric
// centre.
func (v *Volume) centroid() rcmath.Vec {
	sum := rcmath.Zero()
	i := 0
	for z := 0; z < v.dim[2]; z++ {
		for y := 0; y < v.dim[1]; y++ {
			for x := 0; x < v.dim[0]; x++ {
				d := v.data[i]
				i++
				if d == 0 || math.IsNaN(d) {
					continue
				}
				sum = rcmath.FMAdd(rcmath.Point(float64(x), float64(y), float64(z)), rcmath.Set1(d), sum)
			}
		}
	}
	pos := sum.HProj()
	if !(sum[rcmath.W] > 0) || pos.IsNaN() {
		pos = rcmath.Point(
			float64(v.dim[0]-1)/2,
			float64(v.dim[1]-1)/2,
			float64(v.dim[2]-1)/2,
		)
	}
	return v.mat.MulVec4(pos)
}

// Clear releases the voxel storage and zeroes the dimensions. It is safe on
// an already cleared volume.
func (v *Volume) Clear() {
	v.data = nil
	v.dim = rcmath.Index{}
}

// Empty reports whether the volume holds no voxel data
func (v *Volume) Empty() bool {
	return len(v.data) == 0
}

// Dim returns the voxel dimensions
func (v *Volume) Dim() rcmath.Index {
	return v.dim
}

// DMax returns the maximum dose observed at load time
func (v *Volume) DMax() float64 {
	return v.dmax
}

// Centroid returns the dose-weighted centroid in ambient coordinates
func (v *Volume) Centroid() rcmath.Vec {
	return v.centr
}

// Transform returns the pixel-to-ambient matrix
func (v *Volume) Transform() rcmath.Mat4 {
	return v.mat
}

// Inverse returns the ambient-to-pixel matrix
func (v *Volume) Inverse() rcmath.Mat4 {
	return v.inv
}

// Data exposes the voxel samples. Callers must not modify them.
func (v *Volume) Data() []float64 {
	return v.data
}

// Corners returns the ambient positions of the first and the last voxel
func (v *Volume) Corners() (lo, hi rcmath.Vec) {
	lo = v.mat.MulVec4(rcmath.Point(0, 0, 0))
	hi = v.mat.MulVec4(rcmath.Point(
		float64(v.dim[0]-1),
		float64(v.dim[1]-1),
		float64(v.dim[2]-1),
	))
	return lo, hi
}

// ToPixel maps an ambient coordinate into index space
func (v *Volume) ToPixel(pos rcmath.Vec) rcmath.Vec {
	return v.inv.MulVec4(pos)
}

// ToAmbient maps an index-space coordinate into the ambient frame
func (v *Volume) ToAmbient(pos rcmath.Vec) rcmath.Vec {
	return v.mat.MulVec4(pos)
}
