package visualization

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dosecast/internal/models"
	"dosecast/pkg/colormap"
	"dosecast/pkg/raycast"
	"dosecast/pkg/rcmath"
)

func gradient(w, h int) *models.Texture {
	tex := models.NewTexture(w, h)
	for j := 0; j < h; j++ {
		for i := 0; i < w; i++ {
			px := tex.Pixel(i, j)
			px[0], px[1], px[2], px[3] = byte(i*7), byte(j*11), byte(i+j), 255
		}
	}
	return tex
}

func TestParseEncoding(t *testing.T) {
	for name, want := range map[string]Encoding{"": JPEG, "JPG": JPEG, "png": PNG, "raw": Raw} {
		got, err := ParseEncoding(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
	_, err := ParseEncoding("webp")
	assert.Error(t, err)

	assert.Equal(t, "image/png", PNG.ContentType())
	assert.Equal(t, "image/jpeg", JPEG.ContentType())
}

func TestRawRoundTrip(t *testing.T) {
	tex := gradient(13, 9)
	data, err := EncodeBytes(tex.Image(), Raw, 0)
	require.NoError(t, err)

	img, err := DecodeRaw(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 13, 9), img.Bounds())
	assert.Equal(t, tex.Pix, img.Pix)
}

func TestDecodeRawRejectsGarbage(t *testing.T) {
	_, err := DecodeRaw(bytes.NewReader([]byte("not a frame")))
	assert.Error(t, err)
}

func TestEncodeImageFormats(t *testing.T) {
	img := gradient(16, 16).Image()

	data, err := EncodeBytes(img, PNG, 0)
	require.NoError(t, err)
	decoded, err := imaging.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	// PNG is lossless
	assert.Equal(t, img.Pix, imaging.Clone(decoded).Pix)

	data, err = EncodeBytes(img, JPEG, 90)
	require.NoError(t, err)
	decoded, err = imaging.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), decoded.Bounds())
}

func TestDownsample(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for k := range src.Pix {
		src.Pix[k] = 200
	}

	out := Downsample(src, 20, 10)
	assert.Equal(t, image.Rect(0, 0, 20, 10), out.Bounds())
	r, g, b, a := out.At(10, 5).RGBA()
	assert.InDelta(t, 200, r>>8, 1)
	assert.InDelta(t, 200, g>>8, 1)
	assert.InDelta(t, 200, b>>8, 1)
	assert.InDelta(t, 200, a>>8, 1)

	assert.True(t, Downsample(src, 40, 20) == image.Image(src), "same size should be a no-op")
}

func TestFrameSupersampled(t *testing.T) {
	img := Frame(gradient(64, 32), 32, 16)
	assert.Equal(t, image.Rect(0, 0, 32, 16), img.Bounds())
}

func TestSaveFrame(t *testing.T) {
	dir := t.TempDir()
	img := gradient(8, 8).Image()

	for _, name := range []string{"a.jpg", "b.png"} {
		path := filepath.Join(dir, name)
		require.NoError(t, SaveFrame(img, path, 90))
		_, err := os.Stat(path)
		assert.NoError(t, err)
	}
	assert.Error(t, SaveFrame(img, filepath.Join(dir, "c.unknown"), 90))
}

func TestAnimation(t *testing.T) {
	anim := NewAnimation()
	var buf bytes.Buffer
	assert.Error(t, anim.Encode(&buf), "empty animation")

	red := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for k := 0; k < len(red.Pix); k += 4 {
		red.SetRGBA(k/4%10, k/40, color.RGBA{255, 0, 0, 255})
	}
	anim.AddFrame(gradient(10, 10).Image(), 125)
	anim.AddFrame(red, 4)
	assert.Equal(t, 2, anim.Len())
	require.NoError(t, anim.Encode(&buf))

	g, err := gif.DecodeAll(&buf)
	require.NoError(t, err)
	assert.Len(t, g.Image, 2)
	assert.Equal(t, []int{13, 1}, g.Delay)

	path := filepath.Join(t.TempDir(), "spin.gif")
	require.NoError(t, anim.Save(path))
}

func TestReportViews(t *testing.T) {
	// uniform dose: the centroid is the box centre
	vol := testVolume(t, 11, 21, 5, func(x, y, z int) float64 { return 1 })
	c := vol.Centroid()
	require.True(t, c.ApproxEqual(rcmath.Point(5, 10, 2), 1e-9), "centroid %v", c)

	// x half-extent 5, y half-extent 10
	assert.InDelta(t, 5, FitDistance(vol, 0, 90), 1e-9)
	assert.InDelta(t, 10, FitDistance(vol, 1, 90), 1e-9)

	for _, v := range ReportViews {
		cam := v.Place(vol, 90)
		assert.True(t, cam.Forward().ApproxEqual(v.Dir, 1e-9), "%s faces %v", v.Name, cam.Forward())
		dist := FitDistance(vol, v.HDim, 90)
		back := c.Sub(cam.Pos)
		assert.InDelta(t, dist, math.Sqrt(back.SqrNorm()), 1e-9, v.Name)
	}
}

func TestOrbit(t *testing.T) {
	centre := rcmath.Point(10, -5, 3)
	cam := OrbitCamera()
	n := 8
	for i := 0; i < n; i++ {
		Orbit(&cam, centre, 90, 200, i, n)
		d := centre.Sub(cam.Pos)
		assert.InDelta(t, 200, math.Sqrt(d.SqrNorm()), 1e-9)
		assert.InDelta(t, 3, cam.Pos[rcmath.Z], 1e-9, "equatorial orbit stays level")
		assert.True(t, cam.Forward().ApproxEqual(d.Scale(1.0/200), 1e-9), "frame %d faces %v", i, cam.Forward())
	}

	// frame 0 sits on -y of the centre
	Orbit(&cam, centre, 90, 200, 0, n)
	assert.True(t, cam.Pos.ApproxEqual(rcmath.Point(10, -205, 3), 1e-9), "got %v", cam.Pos)
}

func TestRenderView(t *testing.T) {
	vol := testVolume(t, 11, 21, 5, func(x, y, z int) float64 { return 1 })
	cmap, err := colormap.New(colormap.Jet, vol.DMax())
	require.NoError(t, err)

	zcast := ReportViews[2]
	screen := raycast.Screen{Width: 8, Height: 8, FOV: 65}
	img, err := RenderView(&raycast.Renderer{Workers: 2}, vol, cmap, zcast.Place(vol, 65), screen, 2)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 8), img.Bounds())

	// the centre ray crosses the uniform dose, which maps to red
	r, _, b, _ := img.At(4, 4).RGBA()
	assert.Greater(t, r>>8, uint32(200))
	assert.Less(t, b>>8, uint32(50))

	_, err = RenderView(&raycast.Renderer{}, vol, cmap, zcast.Place(vol, 65), raycast.Screen{Width: 8, Height: 8, FOV: 0}, 1)
	assert.True(t, errors.Is(err, raycast.ErrInvalidScreen))
}
