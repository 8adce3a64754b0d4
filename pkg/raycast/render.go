// Package raycast renders maximum-intensity projections of a dose volume
// through a pinhole camera into a caller-owned texture.
package raycast

import (
	"runtime"
	"sync"

	"dosecast/pkg/camera"
	"dosecast/pkg/colormap"
	"dosecast/pkg/dose"
	"dosecast/pkg/rcmath"
)

// Renderer holds the per-call rendering options. The zero value renders with
// nearest sampling on every available core.
type Renderer struct {
	// Workers is the number of goroutines scanlines are spread across
	Workers int

	// Interp selects the sampling mode used while marching
	Interp dose.Interpolation
}

// frame is the state shared read-only by every worker during one render
type frame struct {
	vol    *dose.Volume
	inv    rcmath.Mat4
	dim    rcmath.Index
	basis  Basis
	pos    rcmath.Vec
	cmap   colormap.Colormap
	interp dose.Interpolation
	tgt    *Target
}

// Render draws one full frame of vol, seen from cam, into t.Tex. The camera
// orientation is renormalized first. Render returns only after every
// scanline has been written.
func (r *Renderer) Render(vol *dose.Volume, t *Target, cmap colormap.Colormap, cam *camera.Camera) {
	cam.Normalize()

	if vol.Empty() {
		fill(t, cmap, 0)
		return
	}

	f := &frame{
		vol:    vol,
		inv:    vol.Inverse(),
		dim:    vol.Dim(),
		basis:  ComputeBasis(t, cam),
		pos:    cam.Pos,
		cmap:   cmap,
		interp: r.Interp,
		tgt:    t,
	}

	workers := r.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > t.Tex.Height {
		workers = t.Tex.Height
	}

	rows := make(chan int, t.Tex.Height)
	for j := 0; j < t.Tex.Height; j++ {
		rows <- j
	}
	close(rows)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range rows {
				f.scanline(j)
			}
		}()
	}
	wg.Wait()
}

// scanline renders row j; it writes nothing outside that row
func (f *frame) scanline(j int) {
	tex := f.tgt.Tex
	row := tex.Row(j)
	start := rcmath.FMAdd(f.basis.Y, rcmath.Set1(float64(j)), f.basis.Org)

	for i := 0; i < tex.Width; i++ {
		pix := rcmath.FMAdd(f.basis.X, rcmath.Set1(float64(i)), start)
		d := f.cast(pix, pix.Sub(f.pos))
		f.cmap.Apply(d, row[i*tex.Stride:(i+1)*tex.Stride])
	}
}

// cast marches the ray leaving the ambient position pix along tangent tan
// and returns the largest sample met, or 0 when the ray misses the volume
func (f *frame) cast(pix, tan rcmath.Vec) float64 {
	org := f.inv.MulVec4(pix)
	dir := f.inv.MulVec3(tan).Norm()

	tmin, tmax, n := Intersect(org, dir, f.dim)
	if n != 2 {
		return 0
	}

	best := 0.0
	start, end := StepRange(tmin, tmax)
	for tau := start; tau < end; tau++ {
		p := rcmath.FMAdd(dir, rcmath.Set1(tau), org)
		if s := f.vol.Sample(f.interp, p); s > best {
			best = s
		}
	}
	return best
}

// Cast returns the projected dose along the single ray through the ambient
// position pix from the camera at pos
func (r *Renderer) Cast(vol *dose.Volume, pos, pix rcmath.Vec) float64 {
	if vol.Empty() {
		return 0
	}
	f := &frame{vol: vol, inv: vol.Inverse(), dim: vol.Dim(), pos: pos, interp: r.Interp}
	return f.cast(pix, pix.Sub(pos))
}

func fill(t *Target, cmap colormap.Colormap, d float64) {
	var px [4]byte
	cmap.Apply(d, px[:])
	tex := t.Tex
	for j := 0; j < tex.Height; j++ {
		row := tex.Row(j)
		for i := 0; i < tex.Width; i++ {
			copy(row[i*tex.Stride:i*tex.Stride+4], px[:])
		}
	}
}
