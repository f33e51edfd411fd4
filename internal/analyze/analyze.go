// Package analyze runs the full decode, denoise, detect, and score
// pipeline over a single recording and renders the result record
// consumed by batch runs and the catalog.
package analyze

import (
	"fmt"
	"math"
	"path/filepath"
	"sort"

	"github.com/micha2718l/dolphain/internal/detect"
	"github.com/micha2718l/dolphain/internal/dsp"
	"github.com/micha2718l/dolphain/internal/ears"
	"github.com/micha2718l/dolphain/internal/score"
	"github.com/micha2718l/dolphain/pkg/logger"
)

// Mode selects the scoring weight table.
type Mode string

const (
	ModeStandard Mode = "standard"
	ModeUnique   Mode = "unique"
)

// Config holds the tunables for one pipeline run. Zero values are
// filled from the detector defaults.
type Config struct {
	Mode    Mode
	Denoise dsp.DenoiseConfig
	Whistle detect.WhistleConfig
	Chirp   detect.ChirpConfig
	Click   detect.ClickConfig
	Logger  *logger.Logger
}

type Option func(*Config)

func WithMode(m Mode) Option {
	return func(c *Config) {
		c.Mode = m
	}
}

func WithDenoise(cfg dsp.DenoiseConfig) Option {
	return func(c *Config) {
		c.Denoise = cfg
	}
}

func WithWhistleConfig(cfg detect.WhistleConfig) Option {
	return func(c *Config) {
		c.Whistle = cfg
	}
}

func WithChirpConfig(cfg detect.ChirpConfig) Option {
	return func(c *Config) {
		c.Chirp = cfg
	}
}

func WithClickConfig(cfg detect.ClickConfig) Option {
	return func(c *Config) {
		c.Click = cfg
	}
}

func WithLogger(log *logger.Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func defaultConfig() *Config {
	return &Config{
		Mode:    ModeStandard,
		Denoise: dsp.DefaultDenoiseConfig(),
		Whistle: detect.DefaultWhistleConfig(),
		Chirp:   detect.DefaultChirpConfig(),
		Click:   detect.DefaultClickConfig(),
		Logger:  logger.GetLogger(),
	}
}

// Report is the per-file output record. Field names follow the JSON
// contract consumed by downstream reporting tools.
type Report struct {
	File                   string  `json:"file"`
	Filename               string  `json:"filename"`
	RecordingDuration      float64 `json:"recording_duration"`
	NumWhistles            int     `json:"n_whistles"`
	MeanWhistleDuration    float64 `json:"mean_whistle_duration"`
	TotalWhistleDuration   float64 `json:"total_whistle_duration"`
	WhistleCoveragePercent float64 `json:"whistle_coverage_percent"`
	NumChirps              int     `json:"n_chirps"`
	MeanFreqSweep          float64 `json:"mean_freq_sweep"`
	NumClickTrains         int     `json:"n_click_trains"`
	TotalClicks            int     `json:"total_clicks"`
	MeanClickRate          float64 `json:"mean_click_rate"`
	Score                  float64 `json:"interestingness_score"`
}

// Result carries the full detector output alongside the summary report.
type Result struct {
	Report      Report
	Whistles    []detect.Whistle
	Chirps      []detect.Chirp
	ClickTrains []detect.ClickTrain
	Cleaned     []float64
}

// File decodes one EARS file and runs the pipeline over it.
func File(path string, opts ...Option) (*Result, error) {
	rec, err := ears.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", path, err)
	}
	res, err := Recording(rec, path, opts...)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", path, err)
	}
	return res, nil
}

// Recording runs denoise, the three detectors, and the configured
// scorer over an already-decoded recording.
func Recording(rec *ears.Recording, path string, opts ...Option) (*Result, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	log := cfg.Logger

	cleaned, thresh, err := dsp.Denoise(rec.Samples, cfg.Denoise)
	if err != nil {
		return nil, fmt.Errorf("denoise: %w", err)
	}
	log.Debugf("denoised %d samples, threshold %.4g", len(cleaned), thresh)

	whistles := detect.Whistles(cleaned, rec.SampleRate, cfg.Whistle)
	chirps := detect.Chirps(cleaned, rec.SampleRate, cfg.Chirp)
	trains := detect.ClickTrains(cleaned, rec.SampleRate, cfg.Click)
	log.Debugf("%s: %d whistles, %d chirps, %d click trains",
		filepath.Base(path), len(whistles), len(chirps), len(trains))

	res := &Result{
		Whistles:    whistles,
		Chirps:      chirps,
		ClickTrains: trains,
		Cleaned:     cleaned,
	}
	res.Report = buildReport(path, rec, res)

	in := score.Input{
		Whistles:    whistles,
		Chirps:      chirps,
		ClickTrains: trains,
		Signal:      cleaned,
		SampleRate:  rec.SampleRate,
		Duration:    rec.Duration(),
	}
	var s float64
	switch cfg.Mode {
	case ModeUnique:
		metrics, err := score.Spectral(cleaned, rec.SampleRate)
		if err != nil {
			return nil, fmt.Errorf("spectral metrics: %w", err)
		}
		patterns := detect.ClickPatterns(allClickTimes(trains))
		s = score.Unique(metrics, chirps, patterns)
	case ModeStandard, "":
		s = score.Standard(in)
	default:
		return nil, fmt.Errorf("unknown scoring mode %q", cfg.Mode)
	}
	res.Report.Score = math.Round(s*100) / 100
	return res, nil
}

func buildReport(path string, rec *ears.Recording, res *Result) Report {
	r := Report{
		File:              path,
		Filename:          filepath.Base(path),
		RecordingDuration: rec.Duration(),
		NumWhistles:       len(res.Whistles),
		NumChirps:         len(res.Chirps),
		NumClickTrains:    len(res.ClickTrains),
	}

	if len(res.Whistles) > 0 {
		var total float64
		for _, w := range res.Whistles {
			total += w.Duration
		}
		r.TotalWhistleDuration = total
		r.MeanWhistleDuration = total / float64(len(res.Whistles))
		if d := rec.Duration(); d > 0 {
			r.WhistleCoveragePercent = total / d * 100
		}
	}

	if len(res.Chirps) > 0 {
		var sweep float64
		for _, c := range res.Chirps {
			sweep += c.FreqSweep
		}
		r.MeanFreqSweep = sweep / float64(len(res.Chirps))
	}

	if len(res.ClickTrains) > 0 {
		var rate float64
		for _, tr := range res.ClickTrains {
			r.TotalClicks += tr.NumClicks
			rate += tr.ClickRate
		}
		r.MeanClickRate = rate / float64(len(res.ClickTrains))
	}

	return r
}

// allClickTimes flattens the click times of every train into one
// sorted sequence for pattern analysis.
func allClickTimes(trains []detect.ClickTrain) []float64 {
	var times []float64
	for _, tr := range trains {
		times = append(times, tr.ClickTimes...)
	}
	sort.Float64s(times)
	return times
}
