package raycast

import (
	"math"

	"dosecast/pkg/rcmath"
)

// Intersect clips the ray org + t*dir against the index-space box [0, dim]
// on every axis. Each axis with a non-zero direction bounds t between the
// parameters of its two planes; the ray is inside the box where all three
// intervals overlap. An axis the ray runs parallel to contributes no bound,
// but the ray misses unless its coordinate there already lies in [0, dim].
//
// Entry and exit come from comparing plane parameters, never from testing a
// computed point against a face, so rays through edges and corners keep both
// crossings after the direction is normalized.
//
// The result is the entry and exit parameters and how many crossings bound
// the ray: 0 for a miss, otherwise 2. A ray that only grazes an edge or
// corner reports two equal parameters.
func Intersect(org, dir rcmath.Vec, dim rcmath.Index) (tmin, tmax float64, n int) {
	tmin, tmax = math.Inf(-1), math.Inf(1)
	bounded := false

	for axis := 0; axis < 3; axis++ {
		hi := float64(dim[axis])
		lo := (0 - org[axis]) / dir[axis]
		far := (hi - org[axis]) / dir[axis]
		if math.IsNaN(lo) || math.IsNaN(far) || math.IsInf(lo, 0) || math.IsInf(far, 0) {
			// parallel to this slab
			if !(org[axis] >= 0 && org[axis] <= hi) {
				return 0, 0, 0
			}
			continue
		}
		if lo > far {
			lo, far = far, lo
		}
		bounded = true
		tmin = math.Max(tmin, lo)
		tmax = math.Min(tmax, far)
	}

	if !bounded || !(tmin <= tmax) {
		return 0, 0, 0
	}
	return tmin, tmax, 2
}

// StepRange converts the crossing parameters into the integer march range
// [ceil(max(tmin, 0)), floor(tmax)). A camera inside the box starts at 0.
func StepRange(tmin, tmax float64) (start, end float64) {
	return math.Ceil(math.Max(tmin, 0)), math.Floor(tmax)
}
