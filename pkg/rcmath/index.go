package rcmath

import "math"

// Index addresses a voxel. It is kept apart from Vec so integer index
// arithmetic never shares storage with coordinate arithmetic.
type Index [3]int

// Add returns i + j per axis
func (i Index) Add(j Index) Index {
	return Index{i[0] + j[0], i[1] + j[1], i[2] + j[2]}
}

// Sub returns i - j per axis
func (i Index) Sub(j Index) Index {
	return Index{i[0] - j[0], i[1] - j[1], i[2] - j[2]}
}

// Volume is the number of voxels in a box of extent i. Any non-positive
// axis gives zero.
func (i Index) Volume() int {
	if i[0] <= 0 || i[1] <= 0 || i[2] <= 0 {
		return 0
	}
	return i[0] * i[1] * i[2]
}

// Within reports whether every axis of i lies in [0, dim[k]-1]
func (i Index) Within(dim Index) bool {
	for k := 0; k < 3; k++ {
		if i[k] < 0 || i[k] >= dim[k] {
			return false
		}
	}
	return true
}

// Vec converts i to a coordinate vector
func (i Index) Vec() Vec {
	return Vec{float64(i[0]), float64(i[1]), float64(i[2]), 1}
}

// Round converts the first three lanes of v to the nearest index, ties to
// even. ok is false when a lane is NaN or does not fit in an int.
func Round(v Vec) (idx Index, ok bool) {
	for k := 0; k < 3; k++ {
		r := math.RoundToEven(v[k])
		if math.IsNaN(r) || r < math.MinInt32 || r > math.MaxInt32 {
			return Index{}, false
		}
		idx[k] = int(r)
	}
	return idx, true
}

// Decompose splits the first three lanes of v into the integer cell origin
// (floor) and the fractional offset inside the cell.
func Decompose(v Vec) (org Index, frac Vec, ok bool) {
	fl := v.Floor()
	for k := 0; k < 3; k++ {
		if math.IsNaN(fl[k]) || fl[k] < math.MinInt32 || fl[k] > math.MaxInt32 {
			return Index{}, Vec{}, false
		}
		org[k] = int(fl[k])
	}
	frac = v.Sub(fl)
	frac[W] = 0
	return org, frac, true
}
