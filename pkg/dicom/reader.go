// Package dicom reads RTDose files into the dose grid the raycaster
// consumes.
package dicom

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	dcm "github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"dosecast/internal/models"
)

// ErrMissingAttribute is returned when a required element is absent or
// unreadable
var ErrMissingAttribute = errors.New("missing DICOM attribute")

// Reader loads RTDose files. It satisfies dose.Source.
type Reader struct {
	// Verbose prints a summary of every file read
	Verbose bool
}

// NewReader creates a reader
func NewReader(verbose bool) *Reader {
	return &Reader{Verbose: verbose}
}

// header is the geometry of an RTDose dataset
type header struct {
	rows, cols, frames int

	position    [3]float64
	orientation [6]float64

	// pixelSpacing is (row spacing, column spacing) as stored
	pixelSpacing [2]float64

	thickness float64
	offsets   []float64
	scaling   float64
	units     string
}

// Load parses the file at path
func (r *Reader) Load(path string) (*models.DoseGrid, error) {
	ds, err := dcm.ParseFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	h, err := readHeader(datasetLookup(&ds))
	if err != nil {
		return nil, err
	}

	el, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return nil, fmt.Errorf("%w: PixelData: %v", ErrMissingAttribute, err)
	}
	info := dcm.MustGetPixelDataInfo(el.Value)
	if info.IsEncapsulated {
		return nil, fmt.Errorf("encapsulated (compressed) pixel data is not supported")
	}

	frames := make([][]int, 0, len(info.Frames))
	for _, fr := range info.Frames {
		samples := make([]int, len(fr.NativeData.Data))
		for k, px := range fr.NativeData.Data {
			if len(px) > 0 {
				samples[k] = px[0]
			}
		}
		frames = append(frames, samples)
	}

	g, err := h.grid(frames)
	if err != nil {
		return nil, err
	}
	if r.Verbose {
		fmt.Printf("Read %s: %dx%dx%d voxels, spacing %.3g x %.3g x %.3g mm, units %s\n",
			path, g.Dim[0], g.Dim[1], g.Dim[2], g.Spacing[0], g.Spacing[1], g.Spacing[2], g.Units)
	}
	return g, nil
}

// lookup returns the raw value of an element and whether it was present
type lookup func(t tag.Tag) (interface{}, bool)

func datasetLookup(ds *dcm.Dataset) lookup {
	return func(t tag.Tag) (interface{}, bool) {
		el, err := ds.FindElementByTag(t)
		if err != nil || el.Value == nil {
			return nil, false
		}
		return el.Value.GetValue(), true
	}
}

func readHeader(ds lookup) (header, error) {
	var h header
	var err error

	if h.rows, err = intAttr(ds, tag.Rows, "Rows"); err != nil {
		return h, err
	}
	if h.cols, err = intAttr(ds, tag.Columns, "Columns"); err != nil {
		return h, err
	}
	h.frames, err = intAttr(ds, tag.NumberOfFrames, "NumberOfFrames")
	if err != nil {
		h.frames = 1
	}

	pos, err := floatAttr(ds, tag.ImagePositionPatient, "ImagePositionPatient", 3)
	if err != nil {
		return h, err
	}
	copy(h.position[:], pos)

	ori, err := floatAttr(ds, tag.ImageOrientationPatient, "ImageOrientationPatient", 6)
	if err != nil {
		return h, err
	}
	copy(h.orientation[:], ori)

	sp, err := floatAttr(ds, tag.PixelSpacing, "PixelSpacing", 2)
	if err != nil {
		return h, err
	}
	copy(h.pixelSpacing[:], sp)

	if th, err := floatAttr(ds, tag.SliceThickness, "SliceThickness", 1); err == nil {
		h.thickness = th[0]
	}
	if off, err := floatAttr(ds, tag.GridFrameOffsetVector, "GridFrameOffsetVector", 1); err == nil {
		h.offsets = off
	}

	h.scaling = 1
	if sc, err := floatAttr(ds, tag.DoseGridScaling, "DoseGridScaling", 1); err == nil && sc[0] != 0 {
		h.scaling = sc[0]
	}
	if raw, ok := ds(tag.DoseUnits); ok {
		if s, ok := raw.([]string); ok && len(s) > 0 {
			h.units = strings.TrimSpace(s[0])
		}
	}
	return h, nil
}

// sliceSpacing is the distance between frames: the first step of the frame
// offset vector when there is one, the slice thickness otherwise
func (h header) sliceSpacing() (float64, error) {
	if len(h.offsets) >= 2 {
		if d := h.offsets[1] - h.offsets[0]; d != 0 {
			return d, nil
		}
	}
	if h.thickness != 0 {
		return h.thickness, nil
	}
	if h.frames == 1 {
		return 1, nil
	}
	return 0, fmt.Errorf("%w: no GridFrameOffsetVector step or SliceThickness", ErrMissingAttribute)
}

// grid assembles the dose grid from per-frame stored values. Column spacing
// (PixelSpacing[1]) runs along the row direction, row spacing
// (PixelSpacing[0]) along the column direction.
func (h header) grid(frames [][]int) (*models.DoseGrid, error) {
	if h.rows <= 0 || h.cols <= 0 || h.frames <= 0 {
		return nil, fmt.Errorf("invalid dimensions %dx%dx%d", h.cols, h.rows, h.frames)
	}
	if len(frames) != h.frames {
		return nil, fmt.Errorf("expected %d frames, got %d", h.frames, len(frames))
	}
	dz, err := h.sliceSpacing()
	if err != nil {
		return nil, err
	}

	n := h.rows * h.cols
	g := &models.DoseGrid{
		Dim:     [3]int{h.cols, h.rows, h.frames},
		Data:    make([]float64, 0, n*h.frames),
		Origin:  h.position,
		RowDir:  [3]float64{h.orientation[0], h.orientation[1], h.orientation[2]},
		ColDir:  [3]float64{h.orientation[3], h.orientation[4], h.orientation[5]},
		Spacing: [3]float64{h.pixelSpacing[1], h.pixelSpacing[0], dz},
		Units:   h.units,
	}
	for z, fr := range frames {
		if len(fr) != n {
			return nil, fmt.Errorf("frame %d holds %d samples, expected %d", z, len(fr), n)
		}
		for _, s := range fr {
			g.Data = append(g.Data, float64(s)*h.scaling)
		}
	}
	return g, nil
}

func intAttr(ds lookup, t tag.Tag, name string) (int, error) {
	raw, ok := ds(t)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingAttribute, name)
	}
	v, err := parseInts(raw)
	if err != nil || len(v) == 0 {
		return 0, fmt.Errorf("%w: %s: unreadable value", ErrMissingAttribute, name)
	}
	return v[0], nil
}

func floatAttr(ds lookup, t tag.Tag, name string, count int) ([]float64, error) {
	raw, ok := ds(t)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingAttribute, name)
	}
	v, err := parseFloats(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMissingAttribute, name, err)
	}
	if len(v) < count {
		return nil, fmt.Errorf("%w: %s holds %d values, expected %d", ErrMissingAttribute, name, len(v), count)
	}
	return v, nil
}

// parseFloats reads decimal strings (DS) or integers (US, SS, UL) as floats
func parseFloats(raw interface{}) ([]float64, error) {
	switch v := raw.(type) {
	case []string:
		var out []float64
		for _, s := range v {
			// multi-valued DS elements sometimes arrive unsplit
			for _, part := range strings.Split(s, "\\") {
				part = strings.TrimSpace(part)
				if part == "" {
					continue
				}
				f, err := strconv.ParseFloat(part, 64)
				if err != nil {
					return nil, err
				}
				if math.IsNaN(f) || math.IsInf(f, 0) {
					return nil, fmt.Errorf("non-finite value %q", part)
				}
				out = append(out, f)
			}
		}
		return out, nil
	case []int:
		out := make([]float64, len(v))
		for k, n := range v {
			out[k] = float64(n)
		}
		return out, nil
	case []float64:
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", raw)
	}
}

// parseInts reads integer strings (IS) or integers
func parseInts(raw interface{}) ([]int, error) {
	switch v := raw.(type) {
	case []int:
		return v, nil
	case []string:
		out := make([]int, 0, len(v))
		for _, s := range v {
			n, err := strconv.Atoi(strings.TrimSpace(s))
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", raw)
	}
}
