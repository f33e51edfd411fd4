package dsp

import (
	"fmt"
	"math"
)

// Daubechies orthonormal scaling coefficients. The highpass filter is
// derived by quadrature mirror: g[k] = (-1)^k h[L-1-k].
var waveletFilters = map[string][]float64{
	"db2": {
		0.48296291314469025, 0.8365163037378079,
		0.22414386804185735, -0.12940952255092145,
	},
	"db4": {
		0.23037781330885523, 0.7148465705525415,
		0.6308807679295904, -0.02798376941698385,
		-0.18703481171888114, 0.030841381835986965,
		0.032883011666982945, -0.010597401784997278,
	},
	"db8": {
		0.05441584224308161, 0.3128715909144659,
		0.6756307362980128, 0.5853546836548691,
		-0.015829105256023893, -0.2840155429624281,
		0.00047248457399797254, 0.128747426620186,
		-0.01736930100202211, -0.04408825393106472,
		0.013981027917015516, 0.008746094047015655,
		-0.00487035299301066, -0.000391740372995977,
		0.0006754494059985568, -0.00011747678400228192,
	},
}

// Wavelet is an orthonormal analysis/synthesis filter pair.
type Wavelet struct {
	Name string
	lo   []float64
	hi   []float64
}

// WaveletByName returns one of the supported Daubechies wavelets
// (db2, db4, db8).
func WaveletByName(name string) (*Wavelet, error) {
	lo, ok := waveletFilters[name]
	if !ok {
		return nil, fmt.Errorf("unknown wavelet %q (supported: db2, db4, db8)", name)
	}
	L := len(lo)
	hi := make([]float64, L)
	for k := 0; k < L; k++ {
		g := lo[L-1-k]
		if k%2 == 1 {
			g = -g
		}
		hi[k] = g
	}
	return &Wavelet{Name: name, lo: lo, hi: hi}, nil
}

// MaxLevel returns the deepest useful decomposition level for a signal
// of length n.
func (w *Wavelet) MaxLevel(n int) int {
	L := len(w.lo)
	if n < L {
		return 0
	}
	return int(math.Floor(math.Log2(float64(n) / float64(L-1))))
}

// Decomposition holds the coefficient arrays from a multi-level DWT:
// the approximation followed by detail arrays from coarsest to finest
// (Details[len-1] is the finest scale). inputLens records the signal
// length seen at each level so reconstruction can undo odd-length
// padding exactly.
type Decomposition struct {
	Approx    []float64
	Details   [][]float64
	inputLens []int
}

// Coeffs returns every coefficient array (approximation first), the
// order thresholding iterates over.
func (d *Decomposition) Coeffs() [][]float64 {
	out := make([][]float64, 0, len(d.Details)+1)
	out = append(out, d.Approx)
	out = append(out, d.Details...)
	return out
}

// dwtStep runs one periodized analysis step. Odd-length inputs are
// extended by repeating the final sample.
func dwtStep(x []float64, w *Wavelet) (approx, detail []float64) {
	n := len(x)
	if n%2 == 1 {
		padded := make([]float64, n+1)
		copy(padded, x)
		padded[n] = x[n-1]
		x = padded
		n++
	}
	half := n / 2
	L := len(w.lo)
	approx = make([]float64, half)
	detail = make([]float64, half)
	for i := 0; i < half; i++ {
		var a, d float64
		for k := 0; k < L; k++ {
			v := x[(2*i+k)%n]
			a += w.lo[k] * v
			d += w.hi[k] * v
		}
		approx[i] = a
		detail[i] = d
	}
	return approx, detail
}

// idwtStep runs one periodized synthesis step (the transpose of
// dwtStep, exact inverse for orthonormal filters) and truncates to the
// original pre-padding length n.
func idwtStep(approx, detail []float64, w *Wavelet, n int) []float64 {
	m := 2 * len(approx)
	L := len(w.lo)
	x := make([]float64, m)
	for i := range approx {
		for k := 0; k < L; k++ {
			idx := (2*i + k) % m
			x[idx] += w.lo[k]*approx[i] + w.hi[k]*detail[i]
		}
	}
	return x[:n]
}

// Wavedec performs a multi-level discrete wavelet decomposition. A
// level of 0 or less selects the maximum useful level.
func Wavedec(x []float64, w *Wavelet, level int) (*Decomposition, error) {
	if len(x) == 0 {
		return nil, fmt.Errorf("wavedec: empty input")
	}
	maxLevel := w.MaxLevel(len(x))
	if level <= 0 || level > maxLevel {
		level = maxLevel
	}
	if level == 0 {
		level = 1
	}

	dec := &Decomposition{}
	approx := x
	details := make([][]float64, 0, level)
	for lev := 0; lev < level; lev++ {
		dec.inputLens = append(dec.inputLens, len(approx))
		a, d := dwtStep(approx, w)
		details = append(details, d)
		approx = a
	}
	// Store details coarsest-first so the finest scale sits at the end.
	dec.Details = make([][]float64, level)
	for i, d := range details {
		dec.Details[level-1-i] = d
	}
	dec.Approx = approx
	return dec, nil
}

// Waverec inverts Wavedec.
func Waverec(dec *Decomposition, w *Wavelet) []float64 {
	x := dec.Approx
	level := len(dec.Details)
	for lev := 0; lev < level; lev++ {
		d := dec.Details[lev]
		n := dec.inputLens[level-1-lev]
		x = idwtStep(x, d, w, n)
	}
	return x
}

// Threshold applies soft or hard thresholding to xs in place. Soft
// shrinks magnitudes toward zero by delta and zeroes anything that
// crosses; hard zeroes magnitudes below delta and leaves the rest.
func Threshold(xs []float64, delta float64, hard bool) {
	for i, v := range xs {
		if math.Abs(v) < delta {
			xs[i] = 0
		} else if !hard {
			if v > 0 {
				xs[i] = v - delta
			} else {
				xs[i] = v + delta
			}
		}
	}
}

// madScale is the ratio of the median absolute deviation to the standard
// deviation for a standard normal distribution.
const madScale = 0.6744897501960817

// DenoiseConfig controls wavelet-shrinkage denoising.
type DenoiseConfig struct {
	Wavelet   string
	Hard      bool
	Threshold float64 // used as-is when Auto is false
	Auto      bool    // estimate the universal threshold from the data
}

// DefaultDenoiseConfig matches the settings the batch scoring runs use.
func DefaultDenoiseConfig() DenoiseConfig {
	return DenoiseConfig{Wavelet: "db8", Auto: true}
}

// Denoise removes the mean and applies VisuShrink wavelet thresholding
// (Donoho & Johnstone universal threshold). It returns a signal of the
// same length as the input plus the threshold that was applied.
// Degenerate constant input yields a zero threshold and passes through
// untouched (apart from mean removal).
func Denoise(data []float64, cfg DenoiseConfig) ([]float64, float64, error) {
	if len(data) == 0 {
		return nil, 0, fmt.Errorf("denoise: empty input")
	}
	w, err := WaveletByName(cfg.Wavelet)
	if err != nil {
		return nil, 0, err
	}

	x := make([]float64, len(data))
	copy(x, data)
	mean := Mean(x)
	for i := range x {
		x[i] -= mean
	}

	if len(x) < len(w.lo) {
		// Too short to decompose; mean removal is all we can do.
		return x, 0, nil
	}

	dec, err := Wavedec(x, w, 0)
	if err != nil {
		return nil, 0, err
	}

	thresh := cfg.Threshold
	if cfg.Auto {
		finest := dec.Details[len(dec.Details)-1]
		abs := make([]float64, len(finest))
		for i, v := range finest {
			abs[i] = math.Abs(v)
		}
		sigma := Median(abs) / madScale
		thresh = sigma * math.Sqrt(2*math.Log(float64(len(x))))
	}

	for _, coeffs := range dec.Coeffs() {
		Threshold(coeffs, thresh, cfg.Hard)
	}

	out := Waverec(dec, w)
	if len(out) > len(data) {
		out = out[:len(data)]
	}
	return out, thresh, nil
}
