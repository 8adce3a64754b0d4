package rcmath

import "math"

// Identity returns the null rotation (0, 0, 0, 1)
func Identity() Vec {
	return Vec{0, 0, 0, 1}
}

// QVec returns the vector part of q with the real part zeroed
func (q Vec) QVec() Vec {
	q[W] = 0
	return q
}

// Conj returns the quaternion conjugate
func (q Vec) Conj() Vec {
	return Vec{-q[0], -q[1], -q[2], q[3]}
}

// QMul computes the Hamilton product p*q
func QMul(p, q Vec) Vec {
	pr, qr := p[W], q[W]
	pv, qv := p.QVec(), q.QVec()

	acc := pv.Cross(qv)
	acc = FMAdd(Set1(qr), pv, acc)
	acc = FMAdd(Set1(pr), qv, acc)
	acc[W] = pr*qr - pv.Dot(qv)
	return acc
}

// QRot rotates v by the versor q, computing q v q*. The W lane of v is
// preserved, so coordinates stay coordinates.
func QRot(q, v Vec) Vec {
	w := v[W]
	r := QMul(QMul(q, v.QVec()), q.Conj())
	r[W] = w
	return r
}

// Recip returns the multiplicative inverse of a general quaternion
func (q Vec) Recip() Vec {
	return q.Conj().Scale(1 / q.SqrNorm())
}

// QPow raises q to an integral power by repeated squaring. Negative powers
// go through the reciprocal so any non-zero quaternion is accepted.
func QPow(q Vec, pow int) Vec {
	neg := pow < 0
	p := pow
	if neg {
		p = -pow
	}
	res := qpow(q, p)
	if neg {
		return res.Recip()
	}
	return res
}

// VersPow raises the versor v to an integral power. Negative powers use the
// conjugate, which is only the inverse when v has unit norm; that is not
// checked.
func VersPow(v Vec, pow int) Vec {
	if pow < 0 {
		return qpow(v.Conj(), -pow)
	}
	return qpow(v, pow)
}

func qpow(q Vec, p int) Vec {
	res := Identity()
	for p > 0 {
		if p%2 == 1 {
			res = QMul(res, q)
			p--
		} else {
			q = QMul(q, q)
			p /= 2
		}
	}
	return res
}

// QAlign builds the versor rotating tangent u onto tangent v with the
// half-angle construction: w = unit(unit(u) + unit(v)) is the bisector and the
// result is (w x v, w . v). Neither input needs to be normalized.
//
// When u and v are antiparallel the bisector is the zero vector and every lane
// of the result is NaN. Zero inputs do the same. Callers must check.
func QAlign(u, v Vec) Vec {
	u = u.QVec().Unit()
	v = v.QVec().Unit()
	w := u.Add(v).Unit()

	res := w.Cross(v)
	res[W] = w.Dot(v)
	return res
}

// AxisAngle returns the versor rotating by theta radians about axis
func AxisAngle(axis Vec, theta float64) Vec {
	s, c := math.Sincos(theta / 2)
	q := axis.QVec().Unit().Scale(s)
	q[W] = c
	return q
}
