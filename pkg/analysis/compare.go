package analysis

import (
	"fmt"
	"image"
	"math"

	"gonum.org/v1/gonum/stat"
)

// FrameMetrics describes how similar two rendered frames are
type FrameMetrics struct {
	// RMSE (Root Mean Square Error) of the luminance in [0, 1]. Lower values
	// indicate closer frames.
	RMSE float64

	// SSIM (Structural Similarity Index) over the whole frame. Values range
	// from -1 to 1, with 1 indicating identical frames.
	SSIM float64

	// Correlation is the Pearson correlation of the luminance; 0 when either
	// frame is flat
	Correlation float64
}

// CompareFrames computes FrameMetrics for two images of the same size
func CompareFrames(a, b image.Image) (FrameMetrics, error) {
	if a.Bounds().Size() != b.Bounds().Size() {
		return FrameMetrics{}, fmt.Errorf("frame sizes differ: %v vs %v", a.Bounds().Size(), b.Bounds().Size())
	}
	x := luminance(a)
	y := luminance(b)
	if len(x) == 0 {
		return FrameMetrics{}, fmt.Errorf("empty frames")
	}

	m := FrameMetrics{
		RMSE: calculateRMSE(x, y),
		SSIM: calculateSSIM(x, y),
	}
	if stat.Variance(x, nil) > 0 && stat.Variance(y, nil) > 0 {
		m.Correlation = stat.Correlation(x, y, nil)
	}
	return m, nil
}

// luminance returns the Rec. 601 luma of every pixel in [0, 1]
func luminance(img image.Image) []float64 {
	b := img.Bounds()
	out := make([]float64, 0, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			out = append(out, (0.299*float64(r)+0.587*float64(g)+0.114*float64(bl))/0xffff)
		}
	}
	return out
}

// calculateRMSE computes the root mean square error
func calculateRMSE(ref, other []float64) float64 {
	n := len(ref)
	if n != len(other) || n == 0 {
		return 0
	}

	mse := 0.0
	for i := 0; i < n; i++ {
		diff := ref[i] - other[i]
		mse += diff * diff
	}
	mse /= float64(n)

	return math.Sqrt(mse)
}

// calculateSSIM computes the Structural Similarity Index
func calculateSSIM(ref, other []float64) float64 {
	// Constants for SSIM calculation
	const L = 1.0 // Dynamic range
	const k1 = 0.01
	const k2 = 0.03

	c1 := (k1 * L) * (k1 * L)
	c2 := (k2 * L) * (k2 * L)

	n := len(ref)
	if n != len(other) || n == 0 {
		return 0
	}

	muX := stat.Mean(ref, nil)
	muY := stat.Mean(other, nil)

	// a single pixel has no spread
	var sigmaX, sigmaY, sigmaXY float64
	if n > 1 {
		sigmaX = stat.Variance(ref, nil)
		sigmaY = stat.Variance(other, nil)
		sigmaXY = stat.Covariance(ref, other, nil)
	}

	num := (2*muX*muY + c1) * (2*sigmaXY + c2)
	den := (muX*muX + muY*muY + c1) * (sigmaX + sigmaY + c2)

	if den > 0 {
		return num / den
	}
	return 0
}
