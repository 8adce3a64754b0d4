package visualization

import (
	"image"
	"math"

	"dosecast/internal/models"
	"dosecast/pkg/camera"
	"dosecast/pkg/colormap"
	"dosecast/pkg/dose"
	"dosecast/pkg/raycast"
	"dosecast/pkg/rcmath"
)

// AxisView is one camera placement of the axis report
type AxisView struct {
	// Name is the output file stem
	Name string

	// Dir is the viewing direction
	Dir rcmath.Vec

	// HDim is the ambient axis that spans the image horizontally
	HDim int

	// Target turns the camera with LookAt on the centroid instead of
	// LookAlong Dir
	Target bool
}

// ReportViews are the projections along +x, +y, +z and the main diagonal
var ReportViews = []AxisView{
	{Name: "xcast", Dir: rcmath.Tangent(1, 0, 0), HDim: 1},
	{Name: "ycast", Dir: rcmath.Tangent(0, 1, 0), HDim: 0},
	{Name: "zcast", Dir: rcmath.Tangent(0, 0, 1), HDim: 0},
	{Name: "xyzcast", Dir: rcmath.Tangent(1, 1, 1).Scale(1 / math.Sqrt(3)), HDim: 1, Target: true},
}

// FitDistance is how far back from the centroid the camera must stand for
// the volume's horizontal half-extent along hdim to fill a fov-degree view
func FitDistance(vol *dose.Volume, hdim int, fov float64) float64 {
	lo, hi := vol.Corners()
	c := vol.Centroid()
	l, r := lo.Sub(c), hi.Sub(c)
	w := math.Max(math.Abs(l[hdim]), math.Abs(r[hdim]))
	return w / math.Tan(0.5*fov*math.Pi/180)
}

// Place returns a default camera backed away from the centroid against Dir
// and turned to face it
func (a AxisView) Place(vol *dose.Volume, fov float64) camera.Camera {
	cam := camera.Default()
	c := vol.Centroid()
	dist := FitDistance(vol, a.HDim, fov)
	cam.Pos = rcmath.FMAdd(a.Dir, rcmath.Set1(-dist), c)
	if a.Target {
		cam.LookAt(c)
	} else {
		cam.LookAlong(a.Dir)
	}
	return cam
}

// OrbitCamera returns the starting camera for an orbit: turned +90 degrees
// about x from the default pose
func OrbitCamera() camera.Camera {
	cam := camera.Default()
	cam.ComposeRight(rcmath.Set(math.Sin(math.Pi/4), 0, 0, math.Cos(math.Pi/4)))
	return cam
}

// Orbit moves cam to frame i of n on the circle of the given colatitude
// (degrees from +z) and distance around centre, then turns it to face centre
func Orbit(cam *camera.Camera, centre rcmath.Vec, colatitude, distance float64, i, n int) {
	theta := colatitude * math.Pi / 180
	phi := float64(i) * 2 * math.Pi / float64(n)
	st, ct := math.Sincos(theta)
	sp, cp := math.Sincos(phi)

	disp := rcmath.Tangent(st*sp, -st*cp, ct)
	cam.Pos = rcmath.FMAdd(disp, rcmath.Set1(distance), centre)
	cam.LookAt(centre)
}

// RenderView renders vol as seen from cam into a fresh texture supersample
// times the screen size and returns the frame at screen size
func RenderView(r *raycast.Renderer, vol *dose.Volume, cmap colormap.Colormap, cam camera.Camera, screen raycast.Screen, supersample int) (image.Image, error) {
	if supersample < 1 {
		supersample = 1
	}
	if err := screen.Validate(); err != nil {
		return nil, err
	}
	tex := models.NewTexture(screen.Width*supersample, screen.Height*supersample)
	t, err := raycast.NewTarget(tex, screen)
	if err != nil {
		return nil, err
	}
	r.Render(vol, t, cmap, &cam)
	return Frame(tex, screen.Width, screen.Height), nil
}
