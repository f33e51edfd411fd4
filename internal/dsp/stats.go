package dsp

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Percentile returns the p-th percentile (0-100) of xs using linear
// interpolation between order statistics, matching the numpy convention
// the detector thresholds were tuned against.
func Percentile(xs []float64, p float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	pos := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// Median returns the 50th percentile of xs.
func Median(xs []float64) float64 {
	return Percentile(xs, 50)
}

// Mean returns the arithmetic mean of xs, zero for empty input.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

// Std returns the population standard deviation of xs.
func Std(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := stat.Mean(xs, nil)
	var ss float64
	for _, v := range xs {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)))
}

// CV returns the coefficient of variation (std/mean), or +Inf when the
// mean is zero and the data is not.
func CV(xs []float64) float64 {
	m := Mean(xs)
	if m == 0 {
		if Std(xs) == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return Std(xs) / m
}

// Entropy returns the Shannon entropy (nats) of xs treated as an
// unnormalized distribution. Non-positive weights contribute nothing.
func Entropy(xs []float64) float64 {
	var total float64
	for _, v := range xs {
		if v > 0 {
			total += v
		}
	}
	if total == 0 {
		return 0
	}
	p := make([]float64, 0, len(xs))
	for _, v := range xs {
		if v > 0 {
			p = append(p, v/total)
		}
	}
	return stat.Entropy(p)
}
