package dsp

import (
	"math/cmplx"
	"sort"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/fourier"
)

// BandPass keeps only the [fLow, fHigh] Hz band of the signal by zeroing
// FFT coefficients outside it. Zero-phase, so click edges stay put.
func BandPass(samples []float64, sampleRate int, fLow, fHigh float64) []float64 {
	n := len(samples)
	if n == 0 {
		return nil
	}
	t := fourier.NewFFT(n)
	coeff := t.Coefficients(nil, samples)

	binHz := float64(sampleRate) / float64(n)
	for k := range coeff {
		f := float64(k) * binHz
		if f < fLow || f > fHigh {
			coeff[k] = 0
		}
	}

	out := t.Sequence(nil, coeff)
	scale := 1 / float64(n)
	for i := range out {
		out[i] *= scale
	}
	return out
}

// Envelope returns the magnitude of the analytic signal (Hilbert
// envelope) of the input.
func Envelope(samples []float64) []float64 {
	n := len(samples)
	if n == 0 {
		return nil
	}
	spec := fft.FFTReal(samples)

	// Analytic signal: zero the negative frequencies, double the
	// positive ones, keep DC (and Nyquist for even lengths). For odd
	// lengths bin (n-1)/2 is still a positive frequency and is doubled.
	for k := 1; k < len(spec); k++ {
		switch {
		case n%2 == 0 && k == n/2:
			// Nyquist, keep as-is
		case k <= (n-1)/2:
			spec[k] *= 2
		default:
			spec[k] = 0
		}
	}

	analytic := fft.IFFT(spec)
	env := make([]float64, n)
	for i, v := range analytic {
		env[i] = cmplx.Abs(v)
	}
	return env
}

// MedianSmooth applies a sliding median of odd kernel size, zero-padded
// at the edges. Kernel sizes below 3 return a copy.
func MedianSmooth(x []float64, kernel int) []float64 {
	out := make([]float64, len(x))
	if kernel < 3 {
		copy(out, x)
		return out
	}
	if kernel%2 == 0 {
		kernel++
	}
	half := kernel / 2
	window := make([]float64, kernel)
	for i := range x {
		for j := 0; j < kernel; j++ {
			idx := i - half + j
			if idx < 0 || idx >= len(x) {
				window[j] = 0
			} else {
				window[j] = x[idx]
			}
		}
		sort.Float64s(window)
		out[i] = window[kernel/2]
	}
	return out
}

// PeakOptions filters candidate peaks the way scipy's find_peaks does:
// minimum height, minimum separation, minimum prominence, and a maximum
// width measured at half prominence (zero disables a check).
type PeakOptions struct {
	Height     float64
	Distance   int
	Prominence float64
	MaxWidth   int
}

// FindPeaks returns indices of local maxima of x that satisfy opts,
// sorted ascending. When two peaks fall within Distance of each other
// the taller one wins.
func FindPeaks(x []float64, opts PeakOptions) []int {
	n := len(x)
	if n < 3 {
		return nil
	}

	// Local maxima; plateaus resolve to their midpoint.
	var candidates []int
	for i := 1; i < n-1; {
		if x[i] > x[i-1] {
			j := i
			for j < n-1 && x[j+1] == x[i] {
				j++
			}
			if j < n-1 && x[j+1] < x[i] {
				candidates = append(candidates, (i+j)/2)
			}
			i = j + 1
		} else {
			i++
		}
	}

	if opts.Height > 0 {
		kept := candidates[:0]
		for _, p := range candidates {
			if x[p] >= opts.Height {
				kept = append(kept, p)
			}
		}
		candidates = kept
	}

	if opts.Distance > 1 && len(candidates) > 1 {
		order := make([]int, len(candidates))
		copy(order, candidates)
		sort.Slice(order, func(a, b int) bool { return x[order[a]] > x[order[b]] })
		removed := make(map[int]bool)
		for _, p := range order {
			if removed[p] {
				continue
			}
			for _, q := range candidates {
				if q != p && !removed[q] && abs(q-p) < opts.Distance {
					if x[q] <= x[p] {
						removed[q] = true
					}
				}
			}
		}
		kept := candidates[:0]
		for _, p := range candidates {
			if !removed[p] {
				kept = append(kept, p)
			}
		}
		candidates = kept
	}

	if opts.Prominence > 0 || opts.MaxWidth > 0 {
		kept := candidates[:0]
		for _, p := range candidates {
			prom := prominence(x, p)
			if opts.Prominence > 0 && prom < opts.Prominence {
				continue
			}
			if opts.MaxWidth > 0 {
				if peakWidth(x, p, prom) > float64(opts.MaxWidth) {
					continue
				}
			}
			kept = append(kept, p)
		}
		candidates = kept
	}

	sort.Ints(candidates)
	return candidates
}

// prominence measures how far a peak rises above its bases: the minima
// between the peak and the nearest higher terrain (or the signal edge)
// on each side.
func prominence(x []float64, p int) float64 {
	leftMin := x[p]
	for i := p - 1; i >= 0; i-- {
		if x[i] > x[p] {
			break
		}
		if x[i] < leftMin {
			leftMin = x[i]
		}
	}
	rightMin := x[p]
	for i := p + 1; i < len(x); i++ {
		if x[i] > x[p] {
			break
		}
		if x[i] < rightMin {
			rightMin = x[i]
		}
	}
	base := leftMin
	if rightMin > base {
		base = rightMin
	}
	return x[p] - base
}

// peakWidth measures the peak width in samples at half prominence,
// linearly interpolating the crossings.
func peakWidth(x []float64, p int, prom float64) float64 {
	h := x[p] - prom/2

	left := float64(0)
	for i := p - 1; i >= 0; i-- {
		if x[i] < h {
			left = float64(i) + (h-x[i])/(x[i+1]-x[i])
			break
		}
		if i == 0 {
			left = 0
		}
	}

	right := float64(len(x) - 1)
	for i := p + 1; i < len(x); i++ {
		if x[i] < h {
			right = float64(i) - (h-x[i])/(x[i-1]-x[i])
			break
		}
		if i == len(x)-1 {
			right = float64(len(x) - 1)
		}
	}
	w := right - left
	if w < 0 {
		return 0
	}
	return w
}

func abs(a int) int {
	if a < 0 {
		return -a
	}
	return a
}
