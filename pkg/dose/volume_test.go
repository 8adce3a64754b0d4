package dose

import (
	"errors"
	"math"
	"testing"

	"dosecast/internal/models"
	"dosecast/pkg/rcmath"
)

// testGrid builds an oblique grid with a recognisable value at every voxel
func testGrid(w, h, d int) *models.DoseGrid {
	data := make([]float64, w*h*d)
	for z := 0; z < d; z++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				data[z*w*h+y*w+x] = float64(x + 10*y + 100*z)
			}
		}
	}
	return &models.DoseGrid{
		Dim:     [3]int{w, h, d},
		Data:    data,
		Origin:  [3]float64{-40, 12.5, 7},
		RowDir:  [3]float64{0, 1, 0},
		ColDir:  [3]float64{-1, 0, 0},
		Spacing: [3]float64{2.5, 2.5, 3},
	}
}

type fakeSource struct {
	grid *models.DoseGrid
	err  error
}

func (f fakeSource) Load(string) (*models.DoseGrid, error) {
	return f.grid, f.err
}

// TestFromGrid verifies dimensions, maximum and transform setup
func TestFromGrid(t *testing.T) {
	v, err := FromGrid(testGrid(4, 3, 2))
	if err != nil {
		t.Fatalf("FromGrid failed: %v", err)
	}

	if v.Dim() != (rcmath.Index{4, 3, 2}) {
		t.Errorf("Expected dimensions [4 3 2], got %v", v.Dim())
	}
	if v.DMax() != 123 {
		t.Errorf("Expected dmax 123, got %f", v.DMax())
	}

	mat := v.Transform()
	inv := v.Inverse()
	prod := mat.MulMat(&inv)
	id := rcmath.IdentityMat()
	if !prod.ApproxEqual(&id, 1e-12) {
		t.Errorf("Inverse is not exact: %v", prod)
	}

	// voxel (1, 0, 0) is one row spacing along RowDir from the origin
	got := v.ToAmbient(rcmath.Point(1, 0, 0))
	if !got.ApproxEqual(rcmath.Point(-40, 15, 7), 1e-12) {
		t.Errorf("Expected (-40, 15, 7), got %v", got)
	}
	// slices follow RowDir x ColDir
	got = v.ToAmbient(rcmath.Point(0, 0, 1))
	if !got.ApproxEqual(rcmath.Point(-40, 12.5, 10), 1e-12) {
		t.Errorf("Expected (-40, 12.5, 10), got %v", got)
	}
}

// TestCentroid verifies the dose-weighted centroid
func TestCentroid(t *testing.T) {
	g := &models.DoseGrid{
		Dim:     [3]int{3, 1, 1},
		Data:    []float64{1, 0, 3},
		RowDir:  [3]float64{1, 0, 0},
		ColDir:  [3]float64{0, 1, 0},
		Spacing: [3]float64{2, 1, 1},
	}
	v, err := FromGrid(g)
	if err != nil {
		t.Fatalf("FromGrid failed: %v", err)
	}
	// (0*1 + 2*3) / 4 = 1.5 voxels -> 3 mm
	if !v.Centroid().ApproxEqual(rcmath.Point(3, 0, 0), 1e-12) {
		t.Errorf("Expected centroid (3, 0, 0), got %v", v.Centroid())
	}

	// zero dose falls back to the geometric centre
	g.Data = []float64{0, 0, 0}
	v, err = FromGrid(g)
	if err != nil {
		t.Fatalf("FromGrid failed: %v", err)
	}
	if !v.Centroid().ApproxEqual(rcmath.Point(2, 0, 0), 1e-12) {
		t.Errorf("Expected geometric centre (2, 0, 0), got %v", v.Centroid())
	}
}

// TestLoadFailures verifies a failed load leaves the volume empty
func TestLoadFailures(t *testing.T) {
	v, err := FromGrid(testGrid(2, 2, 2))
	if err != nil {
		t.Fatalf("FromGrid failed: %v", err)
	}

	srcErr := errors.New("truncated file")
	err = v.Load(fakeSource{err: srcErr}, "dose.dcm")
	if !errors.Is(err, ErrLoad) || !errors.Is(err, srcErr) {
		t.Errorf("Expected ErrLoad wrapping the source error, got %v", err)
	}
	if !v.Empty() || v.Dim() != (rcmath.Index{}) {
		t.Errorf("Expected an empty volume after a failed load, got %v", v.Dim())
	}

	// singular geometry: parallel direction cosines
	g := testGrid(2, 2, 2)
	g.ColDir = g.RowDir
	err = v.Load(fakeSource{grid: g}, "dose.dcm")
	if !errors.Is(err, rcmath.ErrSingular) {
		t.Errorf("Expected ErrSingular, got %v", err)
	}
	if !v.Empty() {
		t.Error("Expected an empty volume after a singular load")
	}

	// sample count mismatch
	g = testGrid(2, 2, 2)
	g.Data = g.Data[:5]
	if err := v.SetGrid(g); !errors.Is(err, ErrLoad) {
		t.Errorf("Expected ErrLoad for short data, got %v", err)
	}

	// allocation guard keeps the previous contents
	if err := v.SetGrid(testGrid(2, 2, 1)); err != nil {
		t.Fatalf("SetGrid failed: %v", err)
	}
	v.SetMaxVoxels(7)
	if err := v.SetGrid(testGrid(2, 2, 2)); !errors.Is(err, ErrOutOfMemory) {
		t.Errorf("Expected ErrOutOfMemory, got %v", err)
	}
	if v.Dim() != (rcmath.Index{2, 2, 1}) {
		t.Errorf("Expected the 2x2x1 volume to survive, got %v", v.Dim())
	}
}

// TestClear verifies clearing is idempotent
func TestClear(t *testing.T) {
	v, err := FromGrid(testGrid(3, 3, 3))
	if err != nil {
		t.Fatalf("FromGrid failed: %v", err)
	}
	v.Clear()
	v.Clear()
	if !v.Empty() || v.Dim() != (rcmath.Index{}) {
		t.Errorf("Expected an empty volume, got %v", v.Dim())
	}
	if got := v.Nearest(rcmath.Point(0, 0, 0)); got != 0 {
		t.Errorf("Expected 0 from a cleared volume, got %f", got)
	}
}

// TestSamplingOutOfRange verifies every out-of-range position samples as 0
func TestSamplingOutOfRange(t *testing.T) {
	g := testGrid(4, 3, 2)
	for i := range g.Data {
		g.Data[i] = 5
	}
	v, err := FromGrid(g)
	if err != nil {
		t.Fatalf("FromGrid failed: %v", err)
	}

	outside := []rcmath.Vec{
		rcmath.Point(-0.01, 1, 1),
		rcmath.Point(-0.4, 1, 1),
		rcmath.Point(4, 1, 1),
		rcmath.Point(1, 3, 1),
		rcmath.Point(1, 1, 2),
		rcmath.Point(1, -7, 1),
		rcmath.Point(math.NaN(), 1, 1),
		rcmath.Point(1e300, 1, 1),
	}
	for _, p := range outside {
		if got := v.Nearest(p); got != 0 {
			t.Errorf("Nearest(%v) = %f, expected 0", p, got)
		}
		if got := v.Linear(p); got != 0 {
			t.Errorf("Linear(%v) = %f, expected 0", p, got)
		}
	}

	if got := v.Nearest(rcmath.Point(3.4, 2, 1)); got != 5 {
		t.Errorf("Expected 5 inside the grid, got %f", got)
	}
}

// TestNearest verifies rounding to the closest voxel
func TestNearest(t *testing.T) {
	v, err := FromGrid(testGrid(4, 3, 2))
	if err != nil {
		t.Fatalf("FromGrid failed: %v", err)
	}

	if got := v.Nearest(rcmath.Point(1.4, 1.6, 0.2)); got != 21 {
		t.Errorf("Expected 21, got %f", got)
	}
	// past the last voxel centre but still inside the box rounds out of range
	if got := v.Nearest(rcmath.Point(3.6, 0, 0)); got != 0 {
		t.Errorf("Expected 0 when rounding past the edge, got %f", got)
	}
}

// TestLinear verifies trilinear interpolation on a linear field
func TestLinear(t *testing.T) {
	v, err := FromGrid(testGrid(4, 3, 2))
	if err != nil {
		t.Fatalf("FromGrid failed: %v", err)
	}

	// the field is linear, so interior interpolation is exact
	got := v.Linear(rcmath.Point(1.25, 0.5, 0.75))
	want := 1.25 + 10*0.5 + 100*0.75
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("Expected %f, got %f", want, got)
	}

	// integer positions reproduce the voxel
	if got := v.Linear(rcmath.Point(2, 1, 1)); got != 112 {
		t.Errorf("Expected 112, got %f", got)
	}

	// beyond the last voxel the missing neighbour counts as zero
	got = v.Linear(rcmath.Point(3.5, 0, 0))
	if math.Abs(got-1.5) > 1e-12 {
		t.Errorf("Expected edge darkening to 1.5, got %f", got)
	}
}

// TestParseInterpolation checks the configuration names
func TestParseInterpolation(t *testing.T) {
	if m, err := ParseInterpolation("Linear"); err != nil || m != Linear {
		t.Errorf("Expected Linear, got %v (%v)", m, err)
	}
	if m, err := ParseInterpolation(""); err != nil || m != Nearest {
		t.Errorf("Expected Nearest, got %v (%v)", m, err)
	}
	if _, err := ParseInterpolation("cubic"); err == nil {
		t.Error("Expected an error for an unknown mode")
	}
}
