// Package camera models the pinhole camera the raycaster looks through: an
// orientation versor, a position and a velocity.
package camera

import (
	"dosecast/pkg/rcmath"
)

// moveThreshold is the squared distance a position must move by for Update
// to report a change
const moveThreshold = 1e-3

// nearOpposite is the cosine below which two directions are treated as
// opposite; the half-angle bisector is unreliable there
const nearOpposite = -1 + 1e-12

// Camera is a pinhole camera. The orientation rotates the camera's local
// axes into the scene: local +z is forward, +x is right and +y is down the
// image.
type Camera struct {
	// Quat is the orientation versor
	Quat rcmath.Vec

	// Pos is the pinhole position (a coordinate)
	Pos rcmath.Vec

	// Vel is the velocity (a tangent)
	Vel rcmath.Vec
}

// Default returns a camera at the origin with no rotation and no velocity.
// This is not the zero value: the versor and the position both carry 1 in
// their W lane.
func Default() Camera {
	return Camera{
		Quat: rcmath.Identity(),
		Pos:  rcmath.Point(0, 0, 0),
		Vel:  rcmath.Zero(),
	}
}

// ComposeLeft rotates the camera by q expressed in scene axes
func (c *Camera) ComposeLeft(q rcmath.Vec) {
	c.Quat = rcmath.QMul(q, c.Quat)
}

// ComposeRight rotates the camera by q expressed in its own axes
func (c *Camera) ComposeRight(q rcmath.Vec) {
	c.Quat = rcmath.QMul(c.Quat, q)
}

// Normalize renormalizes the orientation to counter drift. Once per render is
// enough.
func (c *Camera) Normalize() {
	c.Quat = c.Quat.Unit()
}

// Forward returns the viewing direction in scene coordinates
func (c *Camera) Forward() rcmath.Vec {
	return rcmath.QRot(c.Quat, rcmath.Tangent(0, 0, 1))
}

// Right returns the image's horizontal axis in scene coordinates
func (c *Camera) Right() rcmath.Vec {
	return rcmath.QRot(c.Quat, rcmath.Tangent(1, 0, 0))
}

// Down returns the image's vertical axis in scene coordinates
func (c *Camera) Down() rcmath.Vec {
	return rcmath.QRot(c.Quat, rcmath.Tangent(0, 1, 0))
}

// Update advances the camera by dt with semi-implicit Euler: velocity first,
// then position from the new velocity. It reports whether the position moved
// far enough to warrant a redraw.
func (c *Camera) Update(accel rcmath.Vec, dt float64) bool {
	old := c.Pos
	step := rcmath.Set1(dt)
	c.Vel = rcmath.FMAdd(accel.QVec(), step, c.Vel)
	c.Pos = rcmath.FMAdd(c.Vel, step, c.Pos)
	return c.Pos.Sub(old).SqrNorm() > moveThreshold
}

// LookAlong turns the camera so it faces along the tangent dir. The turn is
// split into a yaw about the scene z axis, aligning the horizontal parts of
// the two directions, followed by a pitch onto dir. A step with a zero
// direction is skipped; exactly opposite directions take a half turn.
func (c *Camera) LookAlong(dir rcmath.Vec) {
	dir = dir.QVec()

	fwd := c.Forward()
	flat := rcmath.Tangent(fwd[rcmath.X], fwd[rcmath.Y], 0)
	want := rcmath.Tangent(dir[rcmath.X], dir[rcmath.Y], 0)
	c.ComposeLeft(safeAlign(flat, want))

	c.ComposeLeft(safeAlign(c.Forward(), dir))
	c.Normalize()
}

// LookAt turns the camera to face the coordinate pos
func (c *Camera) LookAt(pos rcmath.Vec) {
	c.LookAlong(pos.Sub(c.Pos))
}

// safeAlign is QAlign without NaN results: the identity when either vector
// is zero and a half turn when they are opposite
func safeAlign(u, v rcmath.Vec) rcmath.Vec {
	if !(u.SqrNorm() > 0) || !(v.SqrNorm() > 0) {
		return rcmath.Identity()
	}
	if u.QVec().Unit().Dot(v.QVec().Unit()) < nearOpposite {
		h := halfTurn(u)
		return rcmath.QMul(safeAlign(rcmath.QRot(h, u), v), h)
	}
	q := rcmath.QAlign(u, v)
	if q.IsNaN() {
		return rcmath.Identity()
	}
	return q
}

// halfTurn rotates u onto -u about the first scene axis not too close to u,
// made perpendicular to it. Flat vectors turn about z.
func halfTurn(u rcmath.Vec) rcmath.Vec {
	u = u.QVec().Unit()
	for _, a := range []rcmath.Vec{
		rcmath.Tangent(0, 0, 1),
		rcmath.Tangent(1, 0, 0),
		rcmath.Tangent(0, 1, 0),
	} {
		d := a.Dot(u)
		if d*d < 0.5 {
			axis := a.Sub(u.Scale(d)).Unit()
			return rcmath.Set(axis[rcmath.X], axis[rcmath.Y], axis[rcmath.Z], 0)
		}
	}
	return rcmath.Identity()
}
