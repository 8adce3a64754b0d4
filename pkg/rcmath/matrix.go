package rcmath

import (
	"errors"
	"math"
)

// ErrSingular is returned when a matrix has no inverse at working precision
var ErrSingular = errors.New("matrix is singular")

// Mat4 is a 4x4 matrix stored as four column vectors. For an affine
// transform columns 0-2 hold the scaled axis directions and column 3 holds
// the translation with 1 in its W lane.
type Mat4 [4]Vec

// IdentityMat returns the 4x4 identity
func IdentityMat() Mat4 {
	return Mat4{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}
}

// MulVec3 multiplies the upper-left 3x3 block by v. Translation is ignored,
// which is what tangent vectors need.
func (m *Mat4) MulVec3(v Vec) Vec {
	res := Zero()
	res = FMAdd(m[0], v.Splat(X), res)
	res = FMAdd(m[1], v.Splat(Y), res)
	res = FMAdd(m[2], v.Splat(Z), res)
	return res
}

// MulVec4 multiplies the full matrix by v
func (m *Mat4) MulVec4(v Vec) Vec {
	return FMAdd(m[3], v.Splat(W), m.MulVec3(v))
}

// MulMat returns m * r
func (m *Mat4) MulMat(r *Mat4) Mat4 {
	return Mat4{
		m.MulVec4(r[0]),
		m.MulVec4(r[1]),
		m.MulVec4(r[2]),
		m.MulVec4(r[3]),
	}
}

// Invert computes the inverse of m by Gauss-Jordan elimination with partial
// pivoting. The elimination works on the stored vectors directly; since
// inv(transpose(M)) = transpose(inv(M)) the result comes out in the same
// column layout as the input. ErrSingular is returned when the largest
// remaining pivot in some column is exactly zero; the returned matrix is then
// meaningless.
func (m *Mat4) Invert() (Mat4, error) {
	work := *m
	inv := IdentityMat()

	for idx := 0; idx < 4; idx++ {
		if !pivot(&work, &inv, idx) {
			return inv, ErrSingular
		}
		diag := Set1(work[idx][idx])
		work[idx] = work[idx].Div(diag)
		inv[idx] = inv[idx].Div(diag)
		for i := 0; i < 4; i++ {
			if i == idx {
				continue
			}
			loc := Set1(-work[i][idx])
			work[i] = FMAdd(work[idx], loc, work[i])
			inv[i] = FMAdd(inv[idx], loc, inv[i])
		}
	}
	return inv, nil
}

// pivot swaps the vector with the largest magnitude in lane idx into slot
// idx, searching only slots idx and up. It reports false if that magnitude is
// zero.
func pivot(work, inv *Mat4, idx int) bool {
	imax := idx
	cur := math.Abs(work[idx][idx])
	for i := idx + 1; i < 4; i++ {
		if mag := math.Abs(work[i][idx]); mag > cur {
			imax = i
			cur = mag
		}
	}
	if cur == 0 {
		return false
	}
	work[imax], work[idx] = work[idx], work[imax]
	inv[imax], inv[idx] = inv[idx], inv[imax]
	return true
}

// ApproxEqual compares two matrices element by element
func (m *Mat4) ApproxEqual(r *Mat4, tol float64) bool {
	for i := range m {
		if !m[i].ApproxEqual(r[i], tol) {
			return false
		}
	}
	return true
}
