package overview

import (
	"math"
	"sort"

	"github.com/aluiziolira/not200club/models"
)

// Summarize computes rounded mean, median and mode of samples. It returns nil
// for an empty sample set.
func Summarize(samples []float64) *models.LatencyStats {
	if len(samples) == 0 {
		return nil
	}
	return &models.LatencyStats{
		Samples: len(samples),
		Mean:    Round2(Mean(samples)),
		Median:  Round2(Median(samples)),
		Mode:    Round2(Mode(samples)),
	}
}

// Mean returns the arithmetic mean, or 0 for no samples.
func Mean(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range samples {
		sum += v
	}
	return sum / float64(len(samples))
}

// Median returns the middle value, averaging the two middle values of an
// even-sized set.
func Median(samples []float64) float64 {
	n := len(samples)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, samples)
	sort.Float64s(sorted)

	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// Mode returns the most frequent value after rounding to two decimals. Ties
// go to the value seen first.
func Mode(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	counts := make(map[float64]int, len(samples))
	order := make([]float64, 0, len(samples))
	for _, v := range samples {
		key := Round2(v)
		if counts[key] == 0 {
			order = append(order, key)
		}
		counts[key]++
	}

	best, bestCount := order[0], 0
	for _, key := range order {
		if counts[key] > bestCount {
			best, bestCount = key, counts[key]
		}
	}
	return best
}

// Round2 rounds v to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
