// Package analysis computes dose statistics and compares rendered frames.
package analysis

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"dosecast/pkg/dose"
)

// DoseStats summarizes the dose distribution of a volume
type DoseStats struct {
	// Voxels is the number of samples considered
	Voxels int

	// Max is the largest dose
	Max float64

	// Mean and StdDev are taken over every voxel
	Mean   float64
	StdDev float64

	// D50 and D95 are the doses received by at least 50% and 95% of the
	// voxels with non-zero dose
	D50 float64
	D95 float64

	// Coverage is the fraction of voxels above Threshold * Max
	Coverage  float64
	Threshold float64
}

// Summarize computes DoseStats for vol. threshold is a proportion of the
// maximum dose.
func Summarize(vol *dose.Volume, threshold float64) (DoseStats, error) {
	if vol.Empty() {
		return DoseStats{}, dose.ErrEmpty
	}
	if !(threshold >= 0 && threshold <= 1) {
		return DoseStats{}, fmt.Errorf("threshold %g outside [0, 1]", threshold)
	}

	data := vol.Data()
	s := DoseStats{
		Voxels:    len(data),
		Threshold: threshold,
	}
	s.Mean, s.StdDev = stat.MeanStdDev(data, nil)

	dosed := make([]float64, 0, len(data))
	for _, d := range data {
		if d > s.Max {
			s.Max = d
		}
		if d > 0 {
			dosed = append(dosed, d)
		}
	}

	cutoff := threshold * s.Max
	above := 0
	for _, d := range data {
		if d > cutoff {
			above++
		}
	}
	s.Coverage = float64(above) / float64(len(data))

	if len(dosed) > 0 {
		sort.Float64s(dosed)
		s.D50 = stat.Quantile(0.50, stat.Empirical, dosed, nil)
		s.D95 = stat.Quantile(0.05, stat.Empirical, dosed, nil)
	}
	return s, nil
}

// String formats the statistics for a report
func (s DoseStats) String() string {
	return fmt.Sprintf("voxels %d, max %.4g, mean %.4g, std %.4g, D50 %.4g, D95 %.4g, %.1f%% above %.0f%% of max",
		s.Voxels, s.Max, s.Mean, s.StdDev, s.D50, s.D95, 100*s.Coverage, 100*s.Threshold)
}
