package detect

import (
	"github.com/micha2718l/dolphain/internal/dsp"
)

// Whistle is a tonal frequency contour emitted by the whistle detector.
// Immutable once emitted.
type Whistle struct {
	StartTime float64   `json:"start_time"`
	EndTime   float64   `json:"end_time"`
	Duration  float64   `json:"duration"`
	MinFreq   float64   `json:"min_freq"`
	MaxFreq   float64   `json:"max_freq"`
	MeanFreq  float64   `json:"mean_freq"`
	Times     []float64 `json:"time"`
	Freqs     []float64 `json:"frequency"`
	Powers    []float64 `json:"power"`
}

// WhistleConfig tunes the whistle detector. The defaults target
// delphinid tonal calls.
type WhistleConfig struct {
	FreqMin         float64 // Hz
	FreqMax         float64 // Hz
	WindowSize      int
	HopSize         int
	PowerPercentile float64 // threshold percentile over masked power
	Tolerance       int     // max bin jump for contour continuation
	MinPoints       int
	MinDuration     float64 // seconds
}

func DefaultWhistleConfig() WhistleConfig {
	return WhistleConfig{
		FreqMin:         2000,
		FreqMax:         20000,
		WindowSize:      2048,
		HopSize:         512,
		PowerPercentile: 85,
		Tolerance:       10,
		MinPoints:       5,
		MinDuration:     0.1,
	}
}

// Whistles runs ridge tracking over the spectrogram band and returns
// the surviving contours. A band that does not fit below Nyquist, or a
// signal too short to analyze, yields an empty list - "no events" is a
// valid outcome, not an error.
func Whistles(samples []float64, sampleRate int, cfg WhistleConfig) []Whistle {
	if cfg.FreqMin >= float64(sampleRate)/2 || len(samples) < cfg.WindowSize {
		return nil
	}

	spec, err := dsp.STFT(samples, sampleRate, cfg.WindowSize, cfg.HopSize, dsp.Hamming(cfg.WindowSize))
	if err != nil {
		return nil
	}
	binLo, binHi := spec.BinRange(cfg.FreqMin, cfg.FreqMax)
	if binHi <= binLo {
		return nil
	}

	// Power threshold at a percentile of the masked band, so the
	// detector adapts to each file's noise floor.
	masked := make([]float64, 0, spec.NumFrames()*(binHi-binLo))
	for _, row := range spec.Power {
		masked = append(masked, row[binLo:binHi]...)
	}
	threshold := dsp.Percentile(masked, cfg.PowerPercentile)

	arena := newContourArena()
	for t, row := range spec.Power {
		arena.closeStale(t)

		// Local maxima along the frequency axis above threshold;
		// keep the single strongest candidate per time step.
		bestBin := -1
		for k := binLo; k < binHi; k++ {
			p := row[k]
			if p <= threshold {
				continue
			}
			if k > binLo && row[k-1] > p {
				continue
			}
			if k < binHi-1 && row[k+1] > p {
				continue
			}
			if bestBin < 0 || p > row[bestBin] {
				bestBin = k
			}
		}
		if bestBin < 0 {
			continue
		}
		if !arena.tryExtend(t, bestBin, row[bestBin], cfg.Tolerance) {
			arena.start(t, bestBin, row[bestBin])
		}
	}

	var whistles []Whistle
	for _, c := range arena.all() {
		w, ok := buildWhistle(c, spec, cfg)
		if ok {
			whistles = append(whistles, w)
		}
	}
	return whistles
}

func buildWhistle(c *contour, spec *dsp.Spectrogram, cfg WhistleConfig) (Whistle, bool) {
	if len(c.frames) < cfg.MinPoints {
		return Whistle{}, false
	}
	start := spec.Times[c.frames[0]]
	end := spec.Times[c.lastFrame()]
	duration := end - start
	if duration < cfg.MinDuration {
		return Whistle{}, false
	}

	w := Whistle{
		StartTime: start,
		EndTime:   end,
		Duration:  duration,
		Times:     make([]float64, len(c.frames)),
		Freqs:     make([]float64, len(c.frames)),
		Powers:    append([]float64(nil), c.powers...),
	}
	var sum float64
	w.MinFreq = spec.Freqs[c.bins[0]]
	w.MaxFreq = w.MinFreq
	for i, frame := range c.frames {
		f := spec.Freqs[c.bins[i]]
		w.Times[i] = spec.Times[frame]
		w.Freqs[i] = f
		sum += f
		if f < w.MinFreq {
			w.MinFreq = f
		}
		if f > w.MaxFreq {
			w.MaxFreq = f
		}
	}
	w.MeanFreq = sum / float64(len(c.frames))
	return w, true
}
