package visualization

import (
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"io"
	"os"
)

// Animation collects frames for an animated GIF
type Animation struct {
	out gif.GIF
}

// NewAnimation creates an animation that loops forever
func NewAnimation() *Animation {
	return &Animation{out: gif.GIF{LoopCount: 0}}
}

// AddFrame quantizes img to the Plan 9 palette with Floyd-Steinberg
// dithering and appends it, shown for delayMillis
func (a *Animation) AddFrame(img image.Image, delayMillis int) {
	pimg := image.NewPaletted(img.Bounds(), palette.Plan9)
	draw.FloydSteinberg.Draw(pimg, pimg.Bounds(), img, img.Bounds().Min)

	// GIF delays are in hundredths of a second
	delay := (delayMillis + 5) / 10
	if delay < 1 {
		delay = 1
	}
	a.out.Image = append(a.out.Image, pimg)
	a.out.Delay = append(a.out.Delay, delay)
}

// Len returns the number of frames
func (a *Animation) Len() int {
	return len(a.out.Image)
}

// Encode writes the GIF to w
func (a *Animation) Encode(w io.Writer) error {
	if len(a.out.Image) == 0 {
		return fmt.Errorf("animation has no frames")
	}
	return gif.EncodeAll(w, &a.out)
}

// Save writes the GIF to path
func (a *Animation) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := a.Encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
