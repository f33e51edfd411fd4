package score

import (
	"github.com/micha2718l/dolphain/internal/dsp"
)

// SpectralMetrics captures the rare-feature statistics the unique
// scorer rewards: band occupancy, spectral diversity, extreme
// frequencies, simultaneous vocalizations, and harmonic stacks.
type SpectralMetrics struct {
	ActiveBands        int
	BandEnergies       map[string]float64 // dB above each band's noise floor
	SpectralEntropy    float64
	PeakFreqRange      float64 // Hz
	MaxFrequency       float64 // Hz
	MinFrequency       float64 // Hz
	MaxSimultaneous    int
	SimultaneousEvents int
	HarmonicEvents     int
}

// freqBand is a named slice of the spectrum used for occupancy checks.
type freqBand struct {
	name string
	low  float64
	high float64
}

// Bands roughly separating ambient rumble, tonal calls, and clicks.
var uniquenessBands = []freqBand{
	{"ultra_low", 0, 2000},
	{"low", 2000, 10000},
	{"mid", 10000, 40000},
	{"high", 40000, 80000},
	{"ultra_high", 80000, 125000},
}

const (
	spectralWindow = 8192
	spectralHop    = 2048 // 75% overlap
)

// Spectral computes the uniqueness metrics from a high-resolution
// spectrogram of the (already denoised) signal.
func Spectral(samples []float64, sampleRate int) (SpectralMetrics, error) {
	m := SpectralMetrics{BandEnergies: map[string]float64{}}

	spec, err := dsp.STFT(samples, sampleRate, spectralWindow, spectralHop, dsp.Hann(spectralWindow))
	if err != nil {
		return m, err
	}
	db := spec.DB()
	nFrames, nBins := spec.NumFrames(), spec.NumBins()

	// Band occupancy: a band is active when its mean level sits well
	// above its own noise floor.
	for _, band := range uniquenessBands {
		lo, hi := spec.BinRange(band.low, band.high)
		if lo >= hi {
			continue
		}
		var vals []float64
		for f := 0; f < nFrames; f++ {
			vals = append(vals, db[f][lo:hi]...)
		}
		mean := dsp.Mean(vals)
		floor := dsp.Percentile(vals, 20)
		if mean > floor+10 {
			m.ActiveBands++
			m.BandEnergies[band.name] = mean - floor
		}
	}

	// Spectral entropy over the per-frequency power distribution.
	freqPower := make([]float64, nBins)
	for f := 0; f < nFrames; f++ {
		for b := 0; b < nBins; b++ {
			freqPower[b] += spec.Power[f][b]
		}
	}
	m.SpectralEntropy = dsp.Entropy(freqPower)

	// Span between the strongest frequencies anywhere in the file.
	var all []float64
	for f := 0; f < nFrames; f++ {
		all = append(all, db[f]...)
	}
	strong := dsp.Percentile(all, 95)
	minF, maxF := -1.0, -1.0
	for b := 0; b < nBins; b++ {
		for f := 0; f < nFrames; f++ {
			if db[f][b] > strong {
				if minF < 0 {
					minF = spec.Freqs[b]
				}
				maxF = spec.Freqs[b]
				break
			}
		}
	}
	if maxF >= 0 {
		m.MinFrequency = minF
		m.MaxFrequency = maxF
		m.PeakFreqRange = maxF - minF
	}

	// Simultaneous vocalizations: several distinct ridges in one frame.
	col := make([]float64, nBins)
	for f := 0; f < nFrames; f++ {
		copy(col, db[f])
		peaks := columnPeaks(col, 95, 50, 0)
		if len(peaks) > 1 {
			m.SimultaneousEvents++
			if len(peaks) > m.MaxSimultaneous {
				m.MaxSimultaneous = len(peaks)
			}
		}
	}

	// Harmonic stacks: peak pairs at ~2x or ~3x frequency ratios.
	// Every 5th frame keeps this affordable at high resolution.
	for f := 0; f < nFrames; f += 5 {
		copy(col, db[f])
		peaks := columnPeaks(col, 90, 20, 5)
		m.HarmonicEvents += harmonicPairs(peaks, spec.Freqs)
	}

	return m, nil
}

// columnPeaks finds peaks in one dB column above its own percentile
// threshold. The column is shifted positive so the height filter
// applies before distance pruning, matching the detector convention.
func columnPeaks(col []float64, pct float64, distance int, prom float64) []int {
	minV := col[0]
	for _, v := range col {
		if v < minV {
			minV = v
		}
	}
	shifted := make([]float64, len(col))
	for i, v := range col {
		shifted[i] = v - minV + 1
	}
	height := dsp.Percentile(col, pct) - minV + 1
	return dsp.FindPeaks(shifted, dsp.PeakOptions{
		Height:     height,
		Distance:   distance,
		Prominence: prom,
	})
}

// harmonicPairs counts base peaks that have a partner near a 2x or 3x
// frequency ratio. Each base counts once no matter how many overtones
// stack above it.
func harmonicPairs(peaks []int, freqs []float64) int {
	var n int
	for i := 0; i < len(peaks); i++ {
		if freqs[peaks[i]] <= 0 {
			continue
		}
		for j := i + 1; j < len(peaks); j++ {
			ratio := freqs[peaks[j]] / freqs[peaks[i]]
			if (ratio > 1.8 && ratio < 2.2) || (ratio > 2.8 && ratio < 3.2) {
				n++
				break
			}
		}
	}
	return n
}
