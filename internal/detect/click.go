package detect

import (
	"math"

	"github.com/micha2718l/dolphain/internal/dsp"
)

// ClickTrain is a group of impulsive clicks linked by inter-click
// interval.
type ClickTrain struct {
	StartTime    float64   `json:"start_time"`
	EndTime      float64   `json:"end_time"`
	NumClicks    int       `json:"n_clicks"`
	MeanICI      float64   `json:"mean_ici"` // seconds
	StdICI       float64   `json:"std_ici"`
	RegularityCV float64   `json:"regularity_cv"`
	ClickRate    float64   `json:"click_rate"` // clicks per second
	ClickTimes   []float64 `json:"click_times"`
}

// ClickConfig tunes the click-train detector, which works on the
// time-domain envelope rather than a spectrogram.
type ClickConfig struct {
	FreqMin            float64 // Hz, band-pass low edge
	FreqMax            float64 // Hz, band-pass high edge
	ThresholdPct       float64 // envelope percentile
	NoiseFloorMult     float64 // absolute floor: mult * 20th percentile
	MinSeparation      float64 // seconds between clicks
	ProminenceFrac     float64 // of threshold
	MaxWidth           float64 // seconds, rejects broad bumps
	DominancePct       float64 // local percentile a click must dominate
	DominanceWindow    float64 // seconds, half-width of the local window
	MaxICI             float64 // seconds, max gap inside a train
	MinClicks          int
	MaxRegularityCV    float64 // strict variant: reject irregular trains
	RequireRegularity  bool
	SmoothKernel       float64 // seconds, median smoothing kernel
}

func DefaultClickConfig() ClickConfig {
	return ClickConfig{
		FreqMin:           20000,
		FreqMax:           150000,
		ThresholdPct:      99.5,
		NoiseFloorMult:    8,
		MinSeparation:     0.002,
		ProminenceFrac:    0.3,
		MaxWidth:          0.001,
		DominancePct:      92,
		DominanceWindow:   0.002,
		MaxICI:            0.05,
		MinClicks:         12,
		MaxRegularityCV:   0.5,
		RequireRegularity: true,
		SmoothKernel:      0.0005,
	}
}

// ClickTrains finds echolocation click trains: band-pass, envelope,
// peak picking, local-dominance filtering, then ICI grouping. A band
// entirely above Nyquist yields an empty list.
func ClickTrains(samples []float64, sampleRate int, cfg ClickConfig) []ClickTrain {
	nyquist := float64(sampleRate) / 2
	if cfg.FreqMin >= nyquist || len(samples) == 0 {
		return nil
	}
	fHigh := cfg.FreqMax
	if fHigh > nyquist {
		fHigh = nyquist * 0.999
	}

	filtered := dsp.BandPass(samples, sampleRate, cfg.FreqMin, fHigh)
	env := dsp.Envelope(filtered)

	// Sub-millisecond median smoothing knocks down single-sample
	// glitches without blunting real click edges.
	kernel := int(float64(sampleRate) * cfg.SmoothKernel)
	if kernel%2 == 0 {
		kernel++
	}
	if kernel >= 3 {
		env = dsp.MedianSmooth(env, kernel)
	}

	threshold := dsp.Percentile(env, cfg.ThresholdPct)
	if floor := cfg.NoiseFloorMult * dsp.Percentile(env, 20); floor > threshold {
		threshold = floor
	}
	if threshold <= 0 {
		return nil
	}

	peaks := dsp.FindPeaks(env, dsp.PeakOptions{
		Height:     threshold,
		Distance:   int(float64(sampleRate) * cfg.MinSeparation),
		Prominence: cfg.ProminenceFrac * threshold,
		MaxWidth:   int(float64(sampleRate) * cfg.MaxWidth),
	})

	// Keep only peaks that dominate their local neighborhood; echoes
	// and reverberation trails fail this.
	halfWin := int(float64(sampleRate) * cfg.DominanceWindow)
	var clicks []float64
	for _, p := range peaks {
		lo := p - halfWin
		if lo < 0 {
			lo = 0
		}
		hi := p + halfWin + 1
		if hi > len(env) {
			hi = len(env)
		}
		if env[p] >= dsp.Percentile(env[lo:hi], cfg.DominancePct) {
			clicks = append(clicks, float64(p)/float64(sampleRate))
		}
	}

	return groupTrains(clicks, cfg)
}

// groupTrains links clicks into trains by inter-click interval and
// applies the count and regularity filters.
func groupTrains(clicks []float64, cfg ClickConfig) []ClickTrain {
	var trains []ClickTrain
	var current []float64
	flush := func() {
		if t, ok := buildTrain(current, cfg); ok {
			trains = append(trains, t)
		}
		current = nil
	}
	for _, c := range clicks {
		if len(current) > 0 && c-current[len(current)-1] > cfg.MaxICI {
			flush()
		}
		current = append(current, c)
	}
	flush()
	return trains
}

func buildTrain(clicks []float64, cfg ClickConfig) (ClickTrain, bool) {
	if len(clicks) < cfg.MinClicks {
		return ClickTrain{}, false
	}
	icis := make([]float64, len(clicks)-1)
	for i := 1; i < len(clicks); i++ {
		icis[i-1] = clicks[i] - clicks[i-1]
	}
	meanICI := dsp.Mean(icis)
	stdICI := dsp.Std(icis)
	cv := 0.0
	if meanICI > 0 {
		cv = stdICI / meanICI
	}
	if cfg.RequireRegularity && cv > cfg.MaxRegularityCV {
		return ClickTrain{}, false
	}

	duration := clicks[len(clicks)-1] - clicks[0]
	rate := 0.0
	if duration > 0 {
		rate = float64(len(clicks)-1) / duration
	}
	return ClickTrain{
		StartTime:    clicks[0],
		EndTime:      clicks[len(clicks)-1],
		NumClicks:    len(clicks),
		MeanICI:      meanICI,
		StdICI:       stdICI,
		RegularityCV: cv,
		ClickRate:    rate,
		ClickTimes:   append([]float64(nil), clicks...),
	}, true
}

// BurstPatterns summarizes irregular click behavior for the uniqueness
// scorer: burst clicking, tempo trends, and the ICI spread.
type BurstPatterns struct {
	TotalClicks   int
	BurstClicks   int // ICIs under 5 ms
	MeanICI       float64
	ICIRange      float64
	RegularityCV  float64
	HighlyRegular bool
	Bimodal       bool
	Accelerating  bool
	Decelerating  bool
}

// ClickPatterns analyzes the raw click times of all trains (or loose
// clicks) for the unusual-pattern features the unique scorer rewards.
func ClickPatterns(clicks []float64) BurstPatterns {
	p := BurstPatterns{TotalClicks: len(clicks)}
	if len(clicks) < 5 {
		return p
	}
	icis := make([]float64, len(clicks)-1)
	minICI, maxICI := math.Inf(1), math.Inf(-1)
	for i := 1; i < len(clicks); i++ {
		ici := clicks[i] - clicks[i-1]
		icis[i-1] = ici
		if ici < 0.005 {
			p.BurstClicks++
		}
		if ici < minICI {
			minICI = ici
		}
		if ici > maxICI {
			maxICI = ici
		}
	}
	p.MeanICI = dsp.Mean(icis)
	p.ICIRange = maxICI - minICI
	if p.MeanICI > 0 {
		p.RegularityCV = dsp.Std(icis) / p.MeanICI
	}
	p.HighlyRegular = p.RegularityCV < 0.3

	// Bimodal ICI distribution: two distinct click rates in one file.
	if len(icis) > 10 {
		hist := make([]float64, 20)
		width := (maxICI - minICI) / 20
		if width > 0 {
			for _, ici := range icis {
				b := int((ici - minICI) / width)
				if b >= 20 {
					b = 19
				}
				hist[b]++
			}
			modes := dsp.FindPeaks(hist, dsp.PeakOptions{Prominence: 2})
			p.Bimodal = len(modes) >= 2
		}
	}

	// Tempo trends: consistent ICI growth or shrinkage.
	if len(icis) > 5 {
		var up, down int
		for i := 1; i < len(icis); i++ {
			switch {
			case icis[i] > icis[i-1]:
				up++
			case icis[i] < icis[i-1]:
				down++
			}
		}
		total := float64(len(icis) - 1)
		p.Accelerating = float64(down)/total > 0.7 // ICIs shrinking, tempo up
		p.Decelerating = float64(up)/total > 0.7
	}
	return p
}
