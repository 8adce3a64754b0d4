package session

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dosecast/internal/models"
	"dosecast/pkg/colormap"
	"dosecast/pkg/config"
	"dosecast/pkg/dose"
	"dosecast/pkg/rcmath"
)

// hotVolume is a 5x5x5 grid at ambient y in [8, 12] with a 100 Gy voxel at
// (0, 10, 0) and a faint halo
func hotVolume(t *testing.T) *dose.Volume {
	t.Helper()
	data := make([]float64, 125)
	for k := range data {
		data[k] = 0.001
	}
	data[2+2*5+2*25] = 100
	vol, err := dose.FromGrid(&models.DoseGrid{
		Dim:     [3]int{5, 5, 5},
		Data:    data,
		Origin:  [3]float64{-2, 8, -2},
		RowDir:  [3]float64{1, 0, 0},
		ColDir:  [3]float64{0, 1, 0},
		Spacing: [3]float64{1, 1, 1},
	})
	require.NoError(t, err)
	return vol
}

func testSettings() Settings {
	return Settings{
		Width:            16,
		Height:           9,
		FOV:              90,
		Supersample:      1,
		Colormap:         colormap.Jet,
		Interp:           dose.Nearest,
		Workers:          2,
		Speed:            100,
		Turbo:            1000,
		Slow:             10,
		Friction:         4,
		TurnStep:         math.Pi / 1080,
		CompactThreshold: 0.01,
	}
}

func newSession(t *testing.T) *Session {
	t.Helper()
	s, err := New(hotVolume(t), testSettings())
	require.NoError(t, err)
	return s
}

func TestSettingsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Display.Colormap = "gray"
	cfg.Processing.Interpolation = "linear"

	set, err := SettingsFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, colormap.Gray, set.Colormap)
	assert.Equal(t, dose.Linear, set.Interp)
	assert.Equal(t, cfg.Display.Width, set.Width)
	assert.Equal(t, cfg.Camera.TurnStep, set.TurnStep)

	cfg.Display.Colormap = "rainbow"
	_, err = SettingsFromConfig(cfg)
	assert.Error(t, err)
}

func TestInitialPoseFacesCentroid(t *testing.T) {
	s := newSession(t)
	cam := s.Camera()

	assert.True(t, cam.Pos.ApproxEqual(rcmath.Point(0, 0, 0), 0))
	assert.True(t, cam.Forward().ApproxEqual(rcmath.Tangent(0, 1, 0), 1e-9), "forward %v", cam.Forward())
	assert.True(t, s.Dirty(), "a new session needs a first frame")
}

func TestRenderClearsDirty(t *testing.T) {
	s := newSession(t)

	img, ok := s.Render()
	require.True(t, ok)
	assert.Equal(t, 16, img.Bounds().Dx())
	assert.Equal(t, 9, img.Bounds().Dy())
	assert.False(t, s.Dirty())

	_, ok = s.Render()
	assert.False(t, ok, "no redraw without changes")

	assert.NotNil(t, s.Snapshot())
}

func TestSupersampledRender(t *testing.T) {
	set := testSettings()
	set.Supersample = 3
	s, err := New(hotVolume(t), set)
	require.NoError(t, err)

	img, ok := s.Render()
	require.True(t, ok)
	assert.Equal(t, 16, img.Bounds().Dx())
	assert.Equal(t, 9, img.Bounds().Dy())
}

func TestMotion(t *testing.T) {
	s := newSession(t)
	s.Render()

	// a drag to the left yaws about +z by 2 * 270 * step = pi/2 radians
	s.Motion(-270, 0)
	cam := s.Camera()
	fwd := cam.Forward()
	assert.True(t, fwd.ApproxEqual(rcmath.Tangent(-1, 0, 0), 1e-9), "forward %v", fwd)
	assert.True(t, s.Dirty())

	// dragging up pitches the view up towards +z
	s.Motion(0, -135)
	cam = s.Camera()
	fwd = cam.Forward()
	assert.InDelta(t, math.Sqrt(0.5), fwd[rcmath.Z], 1e-9, "forward %v", fwd)

	s.Render()
	s.Motion(0, 0)
	assert.False(t, s.Dirty())
}

func TestWheelClampsFOV(t *testing.T) {
	s := newSession(t)

	require.NoError(t, s.Wheel(30))
	assert.Equal(t, 60.0, s.Screen().FOV)

	require.NoError(t, s.Wheel(500))
	assert.Equal(t, 1.0, s.Screen().FOV)

	require.NoError(t, s.Wheel(-500))
	assert.Equal(t, 180.0, s.Screen().FOV)
}

func TestResize(t *testing.T) {
	s := newSession(t)
	require.NoError(t, s.Resize(32, 20))
	img := s.Snapshot()
	assert.Equal(t, 32, img.Bounds().Dx())
	assert.Equal(t, 20, img.Bounds().Dy())

	assert.Error(t, s.Resize(0, 20))
	assert.Equal(t, 32, s.Screen().Width, "a rejected resize keeps the old screen")
}

func TestTickMovesCamera(t *testing.T) {
	s := newSession(t)
	s.Render()

	assert.False(t, s.Tick(16*time.Millisecond), "idle camera stays clean")

	s.SetKey(KeyForward, true)
	moved := false
	for i := 0; i < 60; i++ {
		moved = s.Tick(16*time.Millisecond) || moved
	}
	assert.True(t, moved)

	cam := s.Camera()
	assert.Greater(t, cam.Pos[rcmath.Y], 1.0, "moved forward along +y")
	assert.InDelta(t, 0, cam.Pos[rcmath.X], 1e-9)
	assert.InDelta(t, 0, cam.Pos[rcmath.Z], 1e-9)

	// friction brings the camera to rest once the key is released
	s.SetKey(KeyForward, false)
	for i := 0; i < 2000; i++ {
		s.Tick(16 * time.Millisecond)
	}
	assert.Less(t, math.Sqrt(s.Camera().Vel.SqrNorm()), 1e-3)
}

func TestSpeedModes(t *testing.T) {
	run := func(mode Key) float64 {
		s := newSession(t)
		s.SetKey(KeyUp, true)
		if mode >= 0 {
			s.SetKey(mode, true)
		}
		s.Tick(10 * time.Millisecond)
		return s.Camera().Vel[rcmath.Z]
	}
	normal := run(-1)
	assert.InDelta(t, 1, normal, 1e-9)
	assert.InDelta(t, 10, run(KeyTurbo), 1e-9)
	assert.InDelta(t, 0.1, run(KeySlow), 1e-9)
}

func TestCentre(t *testing.T) {
	s := newSession(t)
	s.Motion(300, -120)
	s.Centre()
	cam := s.Camera()
	assert.True(t, cam.Forward().ApproxEqual(rcmath.Tangent(0, 1, 0), 1e-9))
}

func TestCompact(t *testing.T) {
	s := newSession(t)
	s.Render()

	require.NoError(t, s.Compact(-1))
	assert.True(t, s.Dirty())
	assert.Equal(t, rcmath.Index{1, 1, 1}, s.vol.Dim())

	assert.Error(t, s.Compact(2))
}

func TestConcurrentUse(t *testing.T) {
	s := newSession(t)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				switch (w + i) % 4 {
				case 0:
					s.Motion(3, -2)
				case 1:
					s.Tick(time.Millisecond)
				case 2:
					s.Render()
				case 3:
					s.SetKey(KeyRight, i%2 == 0)
				}
			}
		}(w)
	}
	wg.Wait()
	assert.False(t, s.Camera().Quat.IsNaN())
}

func TestParseKey(t *testing.T) {
	k, ok := ParseKey("W")
	assert.True(t, ok)
	assert.Equal(t, KeyForward, k)

	k, ok = ParseKey(" ")
	assert.True(t, ok)
	assert.Equal(t, KeyUp, k)

	_, ok = ParseKey("q")
	assert.False(t, ok)
}
