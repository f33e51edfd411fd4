package detect

import (
	"math"
	"sort"

	"github.com/micha2718l/dolphain/internal/dsp"
)

// Chirp is a sustained frequency sweep tracked across the spectrogram.
type Chirp struct {
	StartTime  float64   `json:"start_time"`
	EndTime    float64   `json:"end_time"`
	Duration   float64   `json:"duration"`
	StartFreq  float64   `json:"start_freq"`
	EndFreq    float64   `json:"end_freq"`
	FreqSweep  float64   `json:"freq_sweep"`  // |end - start|, Hz
	SweepRate  float64   `json:"sweep_rate"`  // Hz per second
	Times      []float64 `json:"time"`
	Freqs      []float64 `json:"frequency"`
	Powers     []float64 `json:"power"`
}

// ChirpConfig tunes the chirp detector. Stricter than the whistle
// detector on every axis: it trades recall for contour purity.
type ChirpConfig struct {
	WindowSize       int
	HopSize          int
	PowerPercentile  float64 // dB threshold percentile
	NoiseFloorMargin float64 // dB above the 10th-percentile floor
	Tolerance        int     // max bin jump for continuation
	MaxNewPerStep    int     // caps contour creation on noisy frames
	MinDuration      float64 // seconds
	MinSweep         float64 // Hz
	SmoothnessRatio  float64 // reject when std(jumps) > ratio*mean(jumps)
}

func DefaultChirpConfig() ChirpConfig {
	return ChirpConfig{
		WindowSize:       8192,
		HopSize:          1024,
		PowerPercentile:  95,
		NoiseFloorMargin: 15,
		Tolerance:        8,
		MaxNewPerStep:    3,
		MinDuration:      0.3,
		MinSweep:         3000,
		SmoothnessRatio:  3,
	}
}

// Chirps tracks strong spectral ridges over the full band and keeps
// only long, wide, smooth sweeps. Short or erratic contours are
// discarded even when loud.
func Chirps(samples []float64, sampleRate int, cfg ChirpConfig) []Chirp {
	if len(samples) < cfg.WindowSize {
		return nil
	}
	spec, err := dsp.STFT(samples, sampleRate, cfg.WindowSize, cfg.HopSize, dsp.Hann(cfg.WindowSize))
	if err != nil {
		return nil
	}
	db := spec.DB()

	flat := make([]float64, 0, spec.NumFrames()*spec.NumBins())
	for _, row := range db {
		flat = append(flat, row...)
	}
	// Percentile threshold floored at noise-floor-plus-margin, so a
	// uniformly loud file cannot pull the threshold into its noise.
	threshold := dsp.Percentile(flat, cfg.PowerPercentile)
	if floor := dsp.Percentile(flat, 10) + cfg.NoiseFloorMargin; floor > threshold {
		threshold = floor
	}

	arena := newContourArena()
	nBins := spec.NumBins()
	for t, row := range db {
		arena.closeStale(t)

		// Strict 2D local maxima: a candidate must beat both its
		// frequency neighbors and its time neighbors.
		var peaks []int
		for k := 1; k < nBins-1; k++ {
			v := row[k]
			if v <= threshold || row[k-1] >= v || row[k+1] >= v {
				continue
			}
			if t > 0 && db[t-1][k] >= v {
				continue
			}
			if t < len(db)-1 && db[t+1][k] >= v {
				continue
			}
			peaks = append(peaks, k)
		}
		if len(peaks) == 0 {
			continue
		}
		sort.Slice(peaks, func(a, b int) bool { return row[peaks[a]] > row[peaks[b]] })

		started := 0
		for _, k := range peaks {
			if arena.tryExtend(t, k, row[k], cfg.Tolerance) {
				continue
			}
			if started < cfg.MaxNewPerStep {
				arena.start(t, k, row[k])
				started++
			}
		}
	}

	var chirps []Chirp
	for _, c := range arena.all() {
		ch, ok := buildChirp(c, spec, cfg)
		if ok {
			chirps = append(chirps, ch)
		}
	}
	return chirps
}

func buildChirp(c *contour, spec *dsp.Spectrogram, cfg ChirpConfig) (Chirp, bool) {
	if len(c.frames) < 3 {
		return Chirp{}, false
	}
	start := spec.Times[c.frames[0]]
	end := spec.Times[c.lastFrame()]
	duration := end - start
	if duration < cfg.MinDuration {
		return Chirp{}, false
	}

	freqs := make([]float64, len(c.bins))
	for i, b := range c.bins {
		freqs[i] = spec.Freqs[b]
	}
	sweep := math.Abs(freqs[len(freqs)-1] - freqs[0])
	if sweep < cfg.MinSweep {
		return Chirp{}, false
	}

	// Smoothness: erratic contours have jump deviation far above the
	// mean jump; a real sweep moves steadily.
	jumps := make([]float64, len(freqs)-1)
	for i := 1; i < len(freqs); i++ {
		jumps[i-1] = math.Abs(freqs[i] - freqs[i-1])
	}
	if mean := dsp.Mean(jumps); mean > 0 && dsp.Std(jumps) > cfg.SmoothnessRatio*mean {
		return Chirp{}, false
	}

	times := make([]float64, len(c.frames))
	for i, frame := range c.frames {
		times[i] = spec.Times[frame]
	}
	return Chirp{
		StartTime: start,
		EndTime:   end,
		Duration:  duration,
		StartFreq: freqs[0],
		EndFreq:   freqs[len(freqs)-1],
		FreqSweep: sweep,
		SweepRate: sweep / duration,
		Times:     times,
		Freqs:     freqs,
		Powers:    append([]float64(nil), c.powers...),
	}, true
}
