package dose

import (
	"fmt"
	"strings"

	"dosecast/pkg/rcmath"
)

// Interpolation selects how a real-valued index position is sampled
type Interpolation int

const (
	Nearest Interpolation = iota
	Linear
)

// String returns the configuration name of the mode
func (m Interpolation) String() string {
	switch m {
	case Linear:
		return "linear"
	default:
		return "nearest"
	}
}

// ParseInterpolation converts a configuration name into a mode
func ParseInterpolation(name string) (Interpolation, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "nearest":
		return Nearest, nil
	case "linear", "trilinear":
		return Linear, nil
	default:
		return Nearest, fmt.Errorf("unknown interpolation %q (must be nearest or linear)", name)
	}
}

// Sample evaluates the volume at index-space position pos with mode m
func (v *Volume) Sample(m Interpolation, pos rcmath.Vec) float64 {
	if m == Linear {
		return v.Linear(pos)
	}
	return v.Nearest(pos)
}

// inRange reports whether the first three lanes of pos lie in [0, dim). NaN
// lanes fail.
func (v *Volume) inRange(pos rcmath.Vec) bool {
	for k := 0; k < 3; k++ {
		if !(pos[k] >= 0 && pos[k] < float64(v.dim[k])) {
			return false
		}
	}
	return true
}

// At returns the voxel at idx, or 0 outside [0, dim-1] on any axis
func (v *Volume) At(idx rcmath.Index) float64 {
	if !idx.Within(v.dim) {
		return 0
	}
	return v.data[idx[0]+v.dim[0]*(idx[1]+v.dim[1]*idx[2])]
}

// Nearest returns the voxel closest to the pixel-space position pos, rounding
// ties to even. Positions outside [0, dim) on any axis sample as 0.
func (v *Volume) Nearest(pos rcmath.Vec) float64 {
	if !v.inRange(pos) {
		return 0
	}
	idx, ok := rcmath.Round(pos)
	if !ok {
		return 0
	}
	return v.At(idx)
}

var cellOffsets = [8]rcmath.Index{
	{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 0},
	{0, 0, 1}, {1, 0, 1}, {0, 1, 1}, {1, 1, 1},
}

// Linear interpolates trilinearly between the eight voxels around the
// pixel-space position pos. Neighbours outside the grid count as 0, which
// darkens the outermost half voxel. Positions outside [0, dim) sample as 0.
func (v *Volume) Linear(pos rcmath.Vec) float64 {
	if !v.inRange(pos) {
		return 0
	}
	org, f, ok := rcmath.Decompose(pos)
	if !ok {
		return 0
	}

	var c [8]float64
	for i, off := range cellOffsets {
		c[i] = v.At(org.Add(off))
	}

	// collapse z, then y, then x
	for i := 0; i < 4; i++ {
		c[i] += (c[i+4] - c[i]) * f[rcmath.Z]
	}
	c[0] += (c[2] - c[0]) * f[rcmath.Y]
	c[1] += (c[3] - c[1]) * f[rcmath.Y]
	return c[0] + (c[1]-c[0])*f[rcmath.X]
}
