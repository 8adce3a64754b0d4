// Package colormap converts scalar dose into RGBA pixels by piecewise-linear
// interpolation between colour stops.
package colormap

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrUnknown is returned for a colormap name outside the supported set
var ErrUnknown = errors.New("unknown colormap")

// Kind names one of the built-in colormaps
type Kind int

const (
	// Jet runs blue, green, yellow, orange, red
	Jet Kind = iota

	// Gray runs black to white
	Gray
)

// String returns the configuration name of the colormap
func (k Kind) String() string {
	switch k {
	case Gray:
		return "gray"
	default:
		return "jet"
	}
}

// ParseKind converts a configuration name into a Kind
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "jet", "dose":
		return Jet, nil
	case "gray", "grey", "grayscale":
		return Gray, nil
	default:
		return Jet, fmt.Errorf("%w: %q", ErrUnknown, name)
	}
}

// Colormap writes the colour of a dose value into a pixel. Apply is called
// concurrently from every render worker and must not mutate shared state.
type Colormap interface {
	// Apply writes 4 bytes (RGBA) into px, which must hold at least 4 bytes
	Apply(dose float64, px []byte)
}

// Stop is one RGBA colour stop
type Stop [4]float64

var jetStops = []Stop{
	{0, 0, 255, 255},
	{0, 128, 0, 255},
	{255, 255, 0, 255},
	{255, 192, 0, 255},
	{255, 0, 0, 255},
}

var grayStops = []Stop{
	{0, 0, 0, 255},
	{255, 255, 255, 255},
}

// Ramp maps [0, dmax] evenly across an ordered list of stops
type Ramp struct {
	stops []Stop
	norm  float64
}

// New creates the colormap kind scaled so dmax maps to the last stop
func New(kind Kind, dmax float64) (Colormap, error) {
	switch kind {
	case Jet:
		return NewRamp(jetStops, dmax), nil
	case Gray:
		return NewRamp(grayStops, dmax), nil
	default:
		return nil, fmt.Errorf("%w: kind %d", ErrUnknown, int(kind))
	}
}

// NewRamp creates a ramp over stops. A non-positive or non-finite dmax maps
// every dose onto the first stop.
func NewRamp(stops []Stop, dmax float64) *Ramp {
	r := &Ramp{stops: stops}
	if dmax > 0 && !math.IsInf(dmax, 1) {
		r.norm = 1 / dmax
	}
	return r
}

// Apply implements Colormap. The segment index is clamped into the stop
// range, so doses below zero, above dmax or NaN still land on a stop.
func (r *Ramp) Apply(dose float64, px []byte) {
	n := len(r.stops) - 1
	if n < 1 {
		c := r.stops[0]
		px[0], px[1], px[2], px[3] = toByte(c[0]), toByte(c[1]), toByte(c[2]), toByte(c[3])
		return
	}

	x := dose * r.norm * float64(n)
	if !(x > 0) {
		x = 0
	} else if x > float64(n) {
		x = float64(n)
	}
	idx := int(x)
	if idx >= n {
		idx = n - 1
	}
	frac := x - float64(idx)

	lo, hi := r.stops[idx], r.stops[idx+1]
	for k := 0; k < 4; k++ {
		px[k] = toByte(lo[k] + (hi[k]-lo[k])*frac)
	}
}

func toByte(v float64) byte {
	return byte(math.Round(v))
}
