// Package rcmath provides the small fixed-size linear algebra used by the
// raycaster: a four-lane vector that doubles as a quaternion, 4x4 affine
// matrices and integer voxel indices.
//
// A Vec is used in two roles. A coordinate carries 1 in its W lane and a
// tangent carries 0; affine transforms only behave when callers keep track of
// which one they hold. As a quaternion the W lane is the real part.
package rcmath

import "math"

// Lane indices
const (
	X = iota
	Y
	Z
	W
)

// Vec is a packed four-lane vector
type Vec [4]float64

// Set builds a vector from its four lanes
func Set(x, y, z, w float64) Vec {
	return Vec{x, y, z, w}
}

// Set1 broadcasts s into every lane
func Set1(s float64) Vec {
	return Vec{s, s, s, s}
}

// Zero returns the null vector (a zero tangent)
func Zero() Vec {
	return Vec{}
}

// Point returns the coordinate vector (x, y, z, 1)
func Point(x, y, z float64) Vec {
	return Vec{x, y, z, 1}
}

// Tangent returns the tangent vector (x, y, z, 0)
func Tangent(x, y, z float64) Vec {
	return Vec{x, y, z, 0}
}

// Add returns v + u lanewise
func (v Vec) Add(u Vec) Vec {
	return Vec{v[0] + u[0], v[1] + u[1], v[2] + u[2], v[3] + u[3]}
}

// Sub returns v - u lanewise
func (v Vec) Sub(u Vec) Vec {
	return Vec{v[0] - u[0], v[1] - u[1], v[2] - u[2], v[3] - u[3]}
}

// Mul returns v * u lanewise
func (v Vec) Mul(u Vec) Vec {
	return Vec{v[0] * u[0], v[1] * u[1], v[2] * u[2], v[3] * u[3]}
}

// Div returns v / u lanewise. Division by a zero lane follows IEEE rules.
func (v Vec) Div(u Vec) Vec {
	return Vec{v[0] / u[0], v[1] / u[1], v[2] / u[2], v[3] / u[3]}
}

// Scale multiplies every lane by s
func (v Vec) Scale(s float64) Vec {
	return Vec{v[0] * s, v[1] * s, v[2] * s, v[3] * s}
}

// FMAdd computes a*b + c lanewise with a single rounding per lane
func FMAdd(a, b, c Vec) Vec {
	return Vec{
		math.FMA(a[0], b[0], c[0]),
		math.FMA(a[1], b[1], c[1]),
		math.FMA(a[2], b[2], c[2]),
		math.FMA(a[3], b[3], c[3]),
	}
}

// FMSub computes a*b - c lanewise
func FMSub(a, b, c Vec) Vec {
	return Vec{
		math.FMA(a[0], b[0], -c[0]),
		math.FMA(a[1], b[1], -c[1]),
		math.FMA(a[2], b[2], -c[2]),
		math.FMA(a[3], b[3], -c[3]),
	}
}

// Dot returns the four-lane dot product
func (v Vec) Dot(u Vec) float64 {
	return v[0]*u[0] + v[1]*u[1] + v[2]*u[2] + v[3]*u[3]
}

// DotV returns the dot product broadcast into every lane
func (v Vec) DotV(u Vec) Vec {
	return Set1(v.Dot(u))
}

// Cross returns the Euclidean cross product of the first three lanes. The W
// lane of the result is always zero, so crossing two coordinates yields a
// tangent.
func (v Vec) Cross(u Vec) Vec {
	return Vec{
		v[1]*u[2] - v[2]*u[1],
		v[2]*u[0] - v[0]*u[2],
		v[0]*u[1] - v[1]*u[0],
		0,
	}
}

// Permute returns (v[i0], v[i1], v[i2], v[i3])
func (v Vec) Permute(i0, i1, i2, i3 int) Vec {
	return Vec{v[i0], v[i1], v[i2], v[i3]}
}

// Splat broadcasts lane i into every lane
func (v Vec) Splat(i int) Vec {
	return Set1(v[i])
}

// Min returns the lanewise minimum
func (v Vec) Min(u Vec) Vec {
	return Vec{math.Min(v[0], u[0]), math.Min(v[1], u[1]), math.Min(v[2], u[2]), math.Min(v[3], u[3])}
}

// Max returns the lanewise maximum
func (v Vec) Max(u Vec) Vec {
	return Vec{math.Max(v[0], u[0]), math.Max(v[1], u[1]), math.Max(v[2], u[2]), math.Max(v[3], u[3])}
}

// Floor rounds every lane toward negative infinity
func (v Vec) Floor() Vec {
	return Vec{math.Floor(v[0]), math.Floor(v[1]), math.Floor(v[2]), math.Floor(v[3])}
}

// Ceil rounds every lane toward positive infinity
func (v Vec) Ceil() Vec {
	return Vec{math.Ceil(v[0]), math.Ceil(v[1]), math.Ceil(v[2]), math.Ceil(v[3])}
}

// Mask is the result of a lanewise comparison
type Mask [4]bool

// Any reports whether any of the first n lanes is set
func (m Mask) Any(n int) bool {
	for i := 0; i < n && i < 4; i++ {
		if m[i] {
			return true
		}
	}
	return false
}

// Or combines two masks lanewise
func (m Mask) Or(o Mask) Mask {
	return Mask{m[0] || o[0], m[1] || o[1], m[2] || o[2], m[3] || o[3]}
}

// Less returns the ordered v < u mask. Lanes holding a NaN compare false.
func (v Vec) Less(u Vec) Mask {
	return Mask{v[0] < u[0], v[1] < u[1], v[2] < u[2], v[3] < u[3]}
}

// Greater returns the ordered v > u mask
func (v Vec) Greater(u Vec) Mask {
	return Mask{v[0] > u[0], v[1] > u[1], v[2] > u[2], v[3] > u[3]}
}

// Unordered marks the lanes holding a NaN
func (v Vec) Unordered() Mask {
	return Mask{math.IsNaN(v[0]), math.IsNaN(v[1]), math.IsNaN(v[2]), math.IsNaN(v[3])}
}

// SqrNorm returns the squared norm over all four lanes
func (v Vec) SqrNorm() float64 {
	return v.Dot(v)
}

// Norm normalizes v by multiplying with the reciprocal square root of its
// squared norm. It is the cheaper of the two normalizations and is meant for
// tangents; a zero vector becomes NaN.
func (v Vec) Norm() Vec {
	return v.Scale(1 / math.Sqrt(v.SqrNorm()))
}

// Unit normalizes v by dividing each lane by the exact norm. Use it for
// versors where drift matters. A zero vector becomes NaN.
func (v Vec) Unit() Vec {
	return v.Div(Set1(math.Sqrt(v.SqrNorm())))
}

// Neg negates every lane
func (v Vec) Neg() Vec {
	return Vec{-v[0], -v[1], -v[2], -v[3]}
}

// HProj projects homogeneous coordinates onto the W=1 plane. A tangent
// produces NaN or infinite lanes.
func (v Vec) HProj() Vec {
	return v.Div(v.Splat(W))
}

// IsNaN reports whether any lane is NaN
func (v Vec) IsNaN() bool {
	return v.Unordered().Any(4)
}

// ApproxEqual compares lanewise within an absolute tolerance
func (v Vec) ApproxEqual(u Vec, tol float64) bool {
	for i := range v {
		if math.Abs(v[i]-u[i]) > tol {
			return false
		}
	}
	return true
}
