package score

import (
	"math"
	"sort"

	"github.com/mjibson/go-dsp/fft"

	"github.com/micha2718l/dolphain/internal/detect"
	"github.com/micha2718l/dolphain/internal/dsp"
)

// Input bundles one recording's detector output with the cleaned
// signal it came from. Scorers are pure functions over this value.
type Input struct {
	Whistles    []detect.Whistle
	Chirps      []detect.Chirp
	ClickTrains []detect.ClickTrain
	Signal      []float64 // denoised samples
	SampleRate  int
	Duration    float64 // recording duration, seconds
}

// Coverage returns the fraction of the recording covered by whistles,
// as a percentage.
func (in Input) Coverage() float64 {
	if in.Duration <= 0 {
		return 0
	}
	var total float64
	for _, w := range in.Whistles {
		total += w.Duration
	}
	return total / in.Duration * 100
}

// Standard scores a recording for general biological interest. Each
// feature contributes a capped point allotment; the sum is clamped to
// [0, 100].
func Standard(in Input) float64 {
	score := 0.0
	n := float64(len(in.Whistles))

	// Whistle activity. Diminishing returns past 30 whistles.
	score += math.Min(15, n/30*15)
	score += math.Min(15, in.Coverage()*0.15)

	// Whistle diversity: frequency spread and duration variety.
	if len(in.Whistles) >= 2 {
		freqs := make([]float64, len(in.Whistles))
		durs := make([]float64, len(in.Whistles))
		for i, w := range in.Whistles {
			freqs[i] = w.MeanFreq
			durs[i] = w.Duration
		}
		freqRange := maxOf(freqs) - minOf(freqs)
		score += math.Min(10, freqRange/10000*10)
		score += math.Min(10, dsp.Std(durs)*20)
	}

	// Signal quality in the whistle band versus the low-frequency floor.
	if snr, ok := bandSNR(in.Signal, in.SampleRate); ok {
		score += math.Min(15, math.Max(0, snr/30*15))
	}

	// Frequency modulation: flat tones score low, contoured calls high.
	if fm, ok := meanFM(in.Whistles); ok {
		score += math.Min(15, fm/500*15)
	}

	// Activity patterns: bursting (tight gap spread) and sustained
	// calling (short mean gap).
	if len(in.Whistles) >= 3 {
		starts := make([]float64, len(in.Whistles))
		for i, w := range in.Whistles {
			starts[i] = w.StartTime
		}
		sort.Float64s(starts)
		gaps := make([]float64, len(starts)-1)
		for i := 1; i < len(starts); i++ {
			gaps[i-1] = starts[i] - starts[i-1]
		}
		score += math.Min(10, 1.0/(dsp.Std(gaps)+0.01)*2)
		score += math.Min(10, math.Max(0, (1.0-dsp.Mean(gaps))*10))
	}

	// Overlapping whistles suggest multiple animals. Each pair counts
	// once.
	if len(in.Whistles) >= 2 {
		var overlaps int
		for i := 0; i < len(in.Whistles)-1; i++ {
			for j := i + 1; j < len(in.Whistles); j++ {
				if in.Whistles[i].StartTime <= in.Whistles[j].EndTime &&
					in.Whistles[j].StartTime <= in.Whistles[i].EndTime {
					overlaps++
				}
			}
		}
		score += math.Min(10, float64(overlaps)*2)
	}

	// Chirp activity and sweep extent.
	score += math.Min(8, float64(len(in.Chirps))*2)
	if len(in.Chirps) > 0 {
		var maxSweep float64
		for _, c := range in.Chirps {
			if c.FreqSweep > maxSweep {
				maxSweep = c.FreqSweep
			}
		}
		score += math.Min(7, maxSweep/10000*7)
	}

	// Click activity, regularity, and rate plausibility.
	score += math.Min(8, float64(len(in.ClickTrains))*2)
	if len(in.ClickTrains) > 0 {
		var reg, plausible float64
		for _, tr := range in.ClickTrains {
			reg += 1 - math.Min(1, tr.RegularityCV)
			if tr.ClickRate >= 5 && tr.ClickRate <= 200 {
				plausible++
			}
		}
		score += math.Min(7, reg/float64(len(in.ClickTrains))*7)
		score += math.Min(5, plausible)
	}

	return math.Min(100, score)
}

// Unique scores a recording for rare and exceptional features rather
// than general activity. Clamped to [0, 100].
func Unique(spectral SpectralMetrics, chirps []detect.Chirp, patterns detect.BurstPatterns) float64 {
	score := 0.0

	// Spectral uniqueness.
	score += math.Min(15, float64(spectral.ActiveBands)*3)
	score += math.Min(10, spectral.SpectralEntropy/5.0*10)
	score += math.Min(10, spectral.PeakFreqRange/50000*10)
	switch {
	case spectral.MaxFrequency > 100000:
		score += 5
	case spectral.MaxFrequency > 80000:
		score += 3
	}

	// Special features.
	switch {
	case spectral.MaxSimultaneous >= 4:
		score += 10
	case spectral.MaxSimultaneous >= 3:
		score += 7
	case spectral.MaxSimultaneous >= 2:
		score += 4
	}
	score += math.Min(10, float64(spectral.HarmonicEvents)*0.5)
	if len(chirps) > 0 {
		var fastest float64
		for _, c := range chirps {
			if c.SweepRate > fastest {
				fastest = c.SweepRate
			}
		}
		switch {
		case fastest > 50000:
			score += 10
		case fastest > 30000:
			score += 7
		case fastest > 15000:
			score += 5
		case fastest > 10000:
			score += 3
		}
	}

	// Click pattern uniqueness.
	score += math.Min(8, float64(patterns.BurstClicks)*0.2)
	if patterns.Bimodal {
		score += 6
	}
	if patterns.Accelerating || patterns.Decelerating {
		score += 6
	}
	if patterns.HighlyRegular {
		score += 5
	} else if patterns.TotalClicks >= 5 && patterns.RegularityCV > 0.8 {
		score += 3
	}
	score += math.Min(5, patterns.ICIRange/0.05*5)

	return math.Min(100, score)
}

// bandSNR estimates signal quality as the dB ratio of mean power in
// the whistle band (5-25 kHz) to the low-frequency floor (1-5 kHz).
// The signal is strided by 10 to keep the FFT small; bin frequencies
// are computed at the full sample rate, which the weights were tuned
// against.
func bandSNR(signal []float64, sampleRate int) (float64, bool) {
	if len(signal) < 100 || sampleRate <= 0 {
		return 0, false
	}
	strided := make([]float64, 0, len(signal)/10+1)
	for i := 0; i < len(signal); i += 10 {
		strided = append(strided, signal[i])
	}
	n := len(strided)
	spectrum := fft.FFTReal(strided)

	var sig, noise float64
	var nSig, nNoise int
	for i := 0; i <= n/2; i++ {
		f := float64(i) * float64(sampleRate) / float64(n)
		p := real(spectrum[i])*real(spectrum[i]) + imag(spectrum[i])*imag(spectrum[i])
		switch {
		case f >= 5000 && f <= 25000:
			sig += p
			nSig++
		case f >= 1000 && f < 5000:
			noise += p
			nNoise++
		}
	}
	if nSig == 0 || nNoise == 0 {
		return 0, false
	}
	snr := 10 * math.Log10((sig/float64(nSig))/(noise/float64(nNoise)+1e-10))
	return snr, true
}

// meanFM averages the frame-to-frame frequency jump over the first 10
// whistles with enough contour points to differentiate.
func meanFM(whistles []detect.Whistle) (float64, bool) {
	var fms []float64
	for i, w := range whistles {
		if i == 10 {
			break
		}
		if len(w.Freqs) <= 3 {
			continue
		}
		var sum float64
		for j := 1; j < len(w.Freqs); j++ {
			sum += math.Abs(w.Freqs[j] - w.Freqs[j-1])
		}
		fms = append(fms, sum/float64(len(w.Freqs)-1))
	}
	if len(fms) == 0 {
		return 0, false
	}
	return dsp.Mean(fms), true
}

func maxOf(xs []float64) float64 {
	m := xs[0]
	for _, v := range xs[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func minOf(xs []float64) float64 {
	m := xs[0]
	for _, v := range xs[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
