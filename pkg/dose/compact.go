package dose

import (
	"fmt"
	"math"

	"dosecast/pkg/rcmath"
)

// Bounds is a half-open box of voxel indices [Org, End)
type Bounds struct {
	Org rcmath.Index
	End rcmath.Index
}

// Size returns the extent of the box along each axis
func (b Bounds) Size() rcmath.Index {
	return b.End.Sub(b.Org)
}

// FindBounds returns the tightest box holding every voxel whose dose exceeds
// cutoff. found is false when no voxel does.
func (v *Volume) FindBounds(cutoff float64) (b Bounds, found bool) {
	b.Org = rcmath.Index{v.dim[0], v.dim[1], v.dim[2]}
	i := 0
	for z := 0; z < v.dim[2]; z++ {
		for y := 0; y < v.dim[1]; y++ {
			for x := 0; x < v.dim[0]; x++ {
				if v.data[i] > cutoff {
					found = true
					b.Org = rcmath.Index{min(b.Org[0], x), min(b.Org[1], y), min(b.Org[2], z)}
					b.End = rcmath.Index{max(b.End[0], x+1), max(b.End[1], y+1), max(b.End[2], z+1)}
				}
				i++
			}
		}
	}
	if !found {
		return Bounds{}, false
	}
	return b, true
}

// Compact crops the volume to the smallest box containing every voxel above
// threshold*DMax. threshold is a proportion in [0, 1]. The old voxel buffer
// is dropped, so the only way back is to reload from the source.
//
// The new transform and its inverse are derived before anything is replaced;
// if the shifted transform cannot be inverted the volume is left untouched
// and rcmath.ErrSingular is returned. A threshold that excludes every voxel
// leaves a zero-size volume that renders as background.
func (v *Volume) Compact(threshold float64) error {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return fmt.Errorf("compaction threshold %g outside [0, 1]", threshold)
	}
	if v.Empty() {
		return ErrEmpty
	}

	b, found := v.FindBounds(threshold * v.dmax)
	if !found {
		if v.Verbose {
			fmt.Printf("Compacted dose from %d x %d x %d to nothing\n", v.dim[0], v.dim[1], v.dim[2])
		}
		v.data = []float64{}
		v.dim = rcmath.Index{}
		return nil
	}

	mat := v.mat
	mat[3] = v.mat.MulVec4(b.Org.Vec())
	inv, err := mat.Invert()
	if err != nil {
		return fmt.Errorf("compaction rejected: %w", err)
	}

	size := b.Size()
	next := make([]float64, size.Volume())
	v.copyBox(next, b)

	if v.Verbose {
		fmt.Printf("Compacted dose from %d x %d x %d\n"+
			"                 to %d x %d x %d\n",
			v.dim[0], v.dim[1], v.dim[2],
			size[0], size[1], size[2])
	}

	v.data = next
	v.dim = size
	v.mat = mat
	v.inv = inv
	return nil
}

// copyBox copies the voxels of b into dest in row-major order
func (v *Volume) copyBox(dest []float64, b Bounds) {
	frame := v.dim[0] * v.dim[1]
	n := 0
	for z := b.Org[2]; z < b.End[2]; z++ {
		for y := b.Org[1]; y < b.End[1]; y++ {
			scan := v.data[z*frame+y*v.dim[0]:]
			n += copy(dest[n:], scan[b.Org[0]:b.End[0]])
		}
	}
}
