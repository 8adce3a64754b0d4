// Package session holds the state of one interactive viewing session: the
// dose volume, the camera, the screen and the render target, and applies
// user input to them between frames.
package session

import (
	"fmt"
	"image"
	"math"
	"sync"
	"time"

	"dosecast/internal/models"
	"dosecast/pkg/camera"
	"dosecast/pkg/colormap"
	"dosecast/pkg/config"
	"dosecast/pkg/dose"
	"dosecast/pkg/raycast"
	"dosecast/pkg/rcmath"
	"dosecast/pkg/visualization"
)

// Settings configure a session
type Settings struct {
	Width       int
	Height      int
	FOV         float64
	Supersample int

	Colormap colormap.Kind
	Interp   dose.Interpolation
	Workers  int

	// Speed, Turbo and Slow are accelerations in mm/s^2
	Speed float64
	Turbo float64
	Slow  float64

	// Friction is the kinetic friction coefficient in 1/s
	Friction float64

	// TurnStep is the half-angle of the rotation per pixel of mouse motion
	TurnStep float64

	// CompactThreshold is used by the compact command when no threshold is
	// given
	CompactThreshold float64

	Verbose bool
}

// SettingsFromConfig collects the session settings from cfg
func SettingsFromConfig(cfg *config.Config) (Settings, error) {
	kind, err := colormap.ParseKind(cfg.Display.Colormap)
	if err != nil {
		return Settings{}, err
	}
	interp, err := dose.ParseInterpolation(cfg.Processing.Interpolation)
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		Width:            cfg.Display.Width,
		Height:           cfg.Display.Height,
		FOV:              cfg.Display.FOV,
		Supersample:      cfg.Display.Supersample,
		Colormap:         kind,
		Interp:           interp,
		Workers:          cfg.Processing.NumCores,
		Speed:            cfg.Camera.Speed,
		Turbo:            cfg.Camera.Turbo,
		Slow:             cfg.Camera.Slow,
		Friction:         cfg.Camera.Friction,
		TurnStep:         cfg.Camera.TurnStep,
		CompactThreshold: cfg.Processing.CompactThreshold,
		Verbose:          cfg.Output.Verbose,
	}, nil
}

// Session is safe for concurrent use. Rendering and compaction are
// serialized by the same lock, so the volume is never mutated mid-frame.
type Session struct {
	mu sync.Mutex

	set    Settings
	vol    *dose.Volume
	cam    camera.Camera
	screen raycast.Screen
	target *raycast.Target
	cmap   colormap.Colormap
	rend   raycast.Renderer

	// pitch and yaw are the per-pixel mouse rotations
	pitch rcmath.Vec
	yaw   rcmath.Vec

	keys  [numKeys]bool
	dirty bool
}

// New creates a session over vol. The camera starts at the origin looking
// along +y and is then turned towards the dose centroid.
func New(vol *dose.Volume, set Settings) (*Session, error) {
	if set.Supersample < 1 {
		set.Supersample = 1
	}
	cmap, err := colormap.New(set.Colormap, vol.DMax())
	if err != nil {
		return nil, err
	}

	s := &Session{
		set:   set,
		vol:   vol,
		cmap:  cmap,
		rend:  raycast.Renderer{Workers: set.Workers, Interp: set.Interp},
		dirty: true,
	}
	if err := s.resize(set.Width, set.Height, set.FOV); err != nil {
		return nil, err
	}

	sin, cos := math.Sincos(set.TurnStep)
	s.pitch = rcmath.Set(sin, 0, 0, cos)
	s.yaw = rcmath.Set(0, 0, sin, cos)

	s.cam = camera.Default()
	s.cam.ComposeLeft(rcmath.Set(math.Sin(-math.Pi/4), 0, 0, math.Cos(-math.Pi/4)))
	if !vol.Empty() {
		s.cam.LookAt(vol.Centroid())
	}
	if set.Verbose {
		c := vol.Centroid()
		fmt.Printf("Dose centroid: (%.2f, %.2f, %.2f)\n", c[rcmath.X], c[rcmath.Y], c[rcmath.Z])
	}
	return s, nil
}

// resize rebuilds the target for a new screen. Callers hold the lock.
func (s *Session) resize(w, h int, fov float64) error {
	screen := raycast.Screen{Width: w, Height: h, FOV: fov}
	if err := screen.Validate(); err != nil {
		return err
	}
	if s.target == nil || s.screen.Width != w || s.screen.Height != h {
		tex := models.NewTexture(w*s.set.Supersample, h*s.set.Supersample)
		t, err := raycast.NewTarget(tex, screen)
		if err != nil {
			return err
		}
		s.target = t
	} else if err := s.target.Update(screen); err != nil {
		return err
	}
	s.screen = screen
	s.dirty = true
	return nil
}

// SetKey records a key press or release
func (s *Session) SetKey(k Key, down bool) {
	if k < 0 || k >= numKeys {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[k] = down
}

// Motion turns the camera for a mouse drag of (dx, dy) pixels: yaw about
// the scene z axis, pitch about the camera's own x axis
func (s *Session) Motion(dx, dy int) {
	if dx == 0 && dy == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cam.ComposeLeft(rcmath.VersPow(s.yaw, -dx))
	s.cam.ComposeRight(rcmath.VersPow(s.pitch, -dy))
	s.dirty = true
}

// Wheel narrows the field of view by dy degrees, within [1, 180]
func (s *Session) Wheel(dy float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fov := math.Max(math.Min(s.screen.FOV-dy, 180), 1)
	return s.resize(s.screen.Width, s.screen.Height, fov)
}

// Resize changes the logical screen size
func (s *Session) Resize(w, h int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resize(w, h, s.screen.FOV)
}

// Centre stops the camera and turns it to face the dose centroid
func (s *Session) Centre() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cam.Vel = rcmath.Zero()
	if !s.vol.Empty() {
		s.cam.LookAt(s.vol.Centroid())
	}
	s.dirty = true
}

// Compact crops the volume to the voxels above threshold * dmax. A negative
// threshold uses the configured one.
func (s *Session) Compact(threshold float64) error {
	if threshold < 0 {
		threshold = s.set.CompactThreshold
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.vol.Compact(threshold); err != nil {
		return err
	}
	s.dirty = true
	return nil
}

// acceleration sums the held movement keys in camera axes, with up fixed to
// the scene +z, scales by the speed mode and applies kinetic friction
func (s *Session) acceleration() rcmath.Vec {
	fwd := s.cam.Forward()
	right := s.cam.Right()
	up := rcmath.Tangent(0, 0, 1)

	accel := rcmath.Zero()
	if s.keys[KeyForward] {
		accel = accel.Add(fwd)
	}
	if s.keys[KeyLeft] {
		accel = accel.Sub(right)
	}
	if s.keys[KeyBack] {
		accel = accel.Sub(fwd)
	}
	if s.keys[KeyRight] {
		accel = accel.Add(right)
	}
	if s.keys[KeyUp] {
		accel = accel.Add(up)
	}
	if s.keys[KeyDown] {
		accel = accel.Sub(up)
	}

	switch {
	case s.keys[KeyTurbo]:
		accel = accel.Scale(s.set.Turbo)
	case s.keys[KeySlow]:
		accel = accel.Scale(s.set.Slow)
	default:
		accel = accel.Scale(s.set.Speed)
	}
	return accel.Sub(s.cam.Vel.Scale(s.set.Friction))
}

// Tick advances the camera by dt and reports whether a redraw is due
func (s *Session) Tick(dt time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cam.Update(s.acceleration(), dt.Seconds()) {
		s.dirty = true
	}
	return s.dirty
}

// Dirty reports whether the view changed since the last render
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Render draws a frame if the view is dirty. The returned image is sized
// to the screen and stays valid until the next call.
func (s *Session) Render() (image.Image, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil, false
	}
	return s.render(), true
}

// Snapshot draws a frame regardless of the dirty flag
func (s *Session) Snapshot() image.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.render()
}

func (s *Session) render() image.Image {
	s.rend.Render(s.vol, s.target, s.cmap, &s.cam)
	s.dirty = false
	return visualization.Frame(s.target.Tex, s.screen.Width, s.screen.Height)
}

// Camera returns a copy of the camera
func (s *Session) Camera() camera.Camera {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cam
}

// Screen returns the logical screen
func (s *Session) Screen() raycast.Screen {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.screen
}
