package raycast

import (
	"errors"
	"fmt"
	"math"

	"dosecast/internal/models"
	"dosecast/pkg/camera"
	"dosecast/pkg/rcmath"
)

// ErrInvalidScreen is returned when screen or texture geometry is unusable
var ErrInvalidScreen = errors.New("invalid screen geometry")

// Screen is the logical view: its pixel dimensions and horizontal field of
// view in degrees.
type Screen struct {
	Width  int
	Height int
	FOV    float64
}

// Validate checks the dimensions and that the field of view is in (0, 180]
func (s Screen) Validate() error {
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("%w: %d x %d pixels", ErrInvalidScreen, s.Width, s.Height)
	}
	if !(s.FOV > 0 && s.FOV <= 180) {
		return fmt.Errorf("%w: field of view %g outside (0, 180]", ErrInvalidScreen, s.FOV)
	}
	return nil
}

// Target is the image plane one unit in front of the pinhole together with
// the texture it is sampled into. Size and Res are derived from the screen
// by Update and cannot be set directly.
type Target struct {
	size rcmath.Vec
	res  rcmath.Vec

	// Tex is the caller-owned pixel buffer
	Tex *models.Texture
}

// NewTarget wraps tex and derives the plane geometry from s
func NewTarget(tex *models.Texture, s Screen) (*Target, error) {
	t := &Target{Tex: tex}
	if err := t.Update(s); err != nil {
		return nil, err
	}
	return t, nil
}

// Update recomputes the plane geometry. Call it whenever the screen or the
// texture changes. The plane is 2*tan(fov/2) wide at unit distance and as
// tall as the screen's aspect ratio demands; Res is that size divided by the
// texture's pixel counts, so a texture larger than the screen supersamples.
func (t *Target) Update(s Screen) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if t.Tex == nil || t.Tex.Width <= 0 || t.Tex.Height <= 0 {
		return fmt.Errorf("%w: target texture has no pixels", ErrInvalidScreen)
	}
	if t.Tex.Stride < 4 || len(t.Tex.Pix) < t.Tex.Width*t.Tex.Height*t.Tex.Stride {
		return fmt.Errorf("%w: texture buffer too small for %d x %d x %d bytes",
			ErrInvalidScreen, t.Tex.Width, t.Tex.Height, t.Tex.Stride)
	}

	aspect := float64(s.Height) / float64(s.Width)
	w := 2 * math.Tan(0.5*s.FOV*math.Pi/180)
	t.size = rcmath.Set(w, aspect*w, 0, 0)
	t.res = t.size.Div(rcmath.Set(float64(t.Tex.Width), float64(t.Tex.Height), 1, 1))
	return nil
}

// Size returns the physical plane size (x, y)
func (t *Target) Size() rcmath.Vec {
	return t.size
}

// Res returns the physical pixel spacing (x, y)
func (t *Target) Res() rcmath.Vec {
	return t.res
}

// Basis is the image plane in scene coordinates: the per-pixel steps along a
// scanline and between scanlines, and the position of the top-left pixel.
type Basis struct {
	X   rcmath.Vec
	Y   rcmath.Vec
	Org rcmath.Vec
}

// ComputeBasis rotates the camera's local axes into the scene, scales them by
// the pixel spacing and places the plane's corner half a plane to the left
// of and above a point one unit ahead of the pinhole.
func ComputeBasis(t *Target, cam *camera.Camera) Basis {
	q := cam.Quat
	x := rcmath.QRot(q, rcmath.Tangent(1, 0, 0))
	y := rcmath.QRot(q, rcmath.Tangent(0, 1, 0))
	fwd := rcmath.QRot(q, rcmath.Tangent(0, 0, 1))

	half := t.size.Scale(0.5)
	offs := rcmath.FMSub(x, half.Splat(rcmath.X), fwd)
	offs = rcmath.FMAdd(y, half.Splat(rcmath.Y), offs)

	return Basis{
		X:   x.Mul(t.res.Splat(rcmath.X)),
		Y:   y.Mul(t.res.Splat(rcmath.Y)),
		Org: cam.Pos.Sub(offs),
	}
}
