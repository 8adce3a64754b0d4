// Package visualization turns rendered textures and dose slices into image
// files, encoded frames and animations.
package visualization

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/klauspost/compress/zstd"
	"github.com/nfnt/resize"

	"dosecast/internal/models"
)

// Encoding selects how frames are serialized for transport
type Encoding int

const (
	JPEG Encoding = iota
	PNG

	// Raw is the RGBA bytes behind a width/height header, zstd-compressed
	Raw
)

// String returns the configuration name of the encoding
func (e Encoding) String() string {
	switch e {
	case PNG:
		return "png"
	case Raw:
		return "raw"
	default:
		return "jpeg"
	}
}

// ContentType returns the MIME type of frames in this encoding
func (e Encoding) ContentType() string {
	switch e {
	case PNG:
		return "image/png"
	case Raw:
		return "application/zstd"
	default:
		return "image/jpeg"
	}
}

// ParseEncoding converts a configuration name into an Encoding
func ParseEncoding(name string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "jpeg", "jpg":
		return JPEG, nil
	case "png":
		return PNG, nil
	case "raw":
		return Raw, nil
	default:
		return JPEG, fmt.Errorf("unknown frame encoding %q (must be jpeg, png or raw)", name)
	}
}

// Downsample resizes img to w x h with a Lanczos filter. An image already at
// that size is returned unchanged.
func Downsample(img image.Image, w, h int) image.Image {
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return img
	}
	return resize.Resize(uint(w), uint(h), img, resize.Lanczos3)
}

// Frame returns the texture as an image sized for the screen, downsampling a
// supersampled texture
func Frame(tex *models.Texture, w, h int) image.Image {
	return Downsample(tex.Image(), w, h)
}

// SaveFrame writes img to path; the format follows the file extension
func SaveFrame(img image.Image, path string, quality int) error {
	if err := imaging.Save(img, path, imaging.JPEGQuality(quality)); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

// Encode writes img to w in the requested encoding
func Encode(w io.Writer, img image.Image, enc Encoding, quality int) error {
	switch enc {
	case PNG:
		return imaging.Encode(w, img, imaging.PNG)
	case Raw:
		return encodeRaw(w, img)
	default:
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
	}
}

// EncodeBytes is Encode into a fresh buffer
func EncodeBytes(img image.Image, enc Encoding, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, img, enc, quality); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeRaw(w io.Writer, img image.Image) error {
	rgba := imaging.Clone(img)
	b := rgba.Bounds()

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(b.Dx()))
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(b.Dy()))
	if _, err := zw.Write(hdr[:]); err != nil {
		zw.Close()
		return err
	}
	if _, err := zw.Write(rgba.Pix); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// DecodeRaw reads a frame written with the Raw encoding
func DecodeRaw(r io.Reader) (*image.NRGBA, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var hdr [8]byte
	if _, err := io.ReadFull(zr, hdr[:]); err != nil {
		return nil, fmt.Errorf("failed to read raw frame header: %w", err)
	}
	w := int(binary.LittleEndian.Uint32(hdr[0:4]))
	h := int(binary.LittleEndian.Uint32(hdr[4:8]))
	if w <= 0 || h <= 0 || w > 1<<15 || h > 1<<15 {
		return nil, fmt.Errorf("invalid raw frame size %dx%d", w, h)
	}

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	if _, err := io.ReadFull(zr, img.Pix); err != nil {
		return nil, fmt.Errorf("failed to read raw frame pixels: %w", err)
	}
	return img, nil
}
