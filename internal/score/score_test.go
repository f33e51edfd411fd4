package score

import (
	"math"
	"math/rand"
	"testing"

	"github.com/micha2718l/dolphain/internal/detect"
	"github.com/micha2718l/dolphain/internal/dsp"
)

func whistleAt(start, end, freq float64) detect.Whistle {
	return detect.Whistle{
		StartTime: start,
		EndTime:   end,
		Duration:  end - start,
		MinFreq:   freq,
		MaxFreq:   freq,
		MeanFreq:  freq,
		Freqs:     []float64{freq, freq, freq, freq, freq},
	}
}

func TestStandardEmptyInput(t *testing.T) {
	got := Standard(Input{Duration: 60, SampleRate: 192000})
	if got != 0 {
		t.Errorf("Empty input should score 0, got %v", got)
	}
}

func TestStandardBounds(t *testing.T) {
	// Saturate every feature: many overlapping, diverse whistles plus
	// chirps and regular click trains.
	in := Input{Duration: 10, SampleRate: 192000}
	for i := 0; i < 100; i++ {
		f := 3000 + float64(i%40)*500
		start := float64(i) * 0.05
		w := whistleAt(start, start+2.0+float64(i%7)*0.3, f)
		for j := range w.Freqs {
			w.Freqs[j] = f + float64(j)*800
		}
		in.Whistles = append(in.Whistles, w)
	}
	for i := 0; i < 10; i++ {
		in.Chirps = append(in.Chirps, detect.Chirp{FreqSweep: 20000, SweepRate: 60000})
	}
	for i := 0; i < 10; i++ {
		in.ClickTrains = append(in.ClickTrains, detect.ClickTrain{
			RegularityCV: 0.05, ClickRate: 50, NumClicks: 30,
		})
	}

	got := Standard(in)
	if got < 0 || got > 100 {
		t.Fatalf("Score out of bounds: %v", got)
	}
	if got < 80 {
		t.Errorf("Saturated input should score high, got %v", got)
	}
}

func TestStandardDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	signal := make([]float64, 19200)
	for i := range signal {
		signal[i] = rng.NormFloat64()
	}
	in := Input{
		Whistles:   []detect.Whistle{whistleAt(1, 1.5, 8000), whistleAt(1.2, 1.8, 12000)},
		Signal:     signal,
		SampleRate: 192000,
		Duration:   30,
	}
	a, b := Standard(in), Standard(in)
	if a != b {
		t.Errorf("Re-scoring identical input differed: %v vs %v", a, b)
	}
}

func TestStandardOverlapCountedOnce(t *testing.T) {
	// Two overlapping whistles form one pair worth 2 points. The base
	// input is otherwise identical to a disjoint pair, so the score
	// difference isolates the overlap bonus.
	overlapping := Input{
		Whistles: []detect.Whistle{whistleAt(1, 2, 8000), whistleAt(1.5, 2.5, 8000)},
		Duration: 60,
	}
	disjoint := Input{
		Whistles: []detect.Whistle{whistleAt(1, 2, 8000), whistleAt(10, 11, 8000)},
		Duration: 60,
	}
	diff := Standard(overlapping) - Standard(disjoint)
	if math.Abs(diff-2) > 1e-9 {
		t.Errorf("Overlap bonus = %v, want exactly 2 for a single pair", diff)
	}
}

func TestStandardCoverage(t *testing.T) {
	in := Input{
		Whistles: []detect.Whistle{whistleAt(0, 15, 8000)},
		Duration: 60,
	}
	if got := in.Coverage(); math.Abs(got-25) > 1e-9 {
		t.Errorf("Coverage = %v, want 25", got)
	}
	if (Input{}).Coverage() != 0 {
		t.Error("Zero-duration input should have zero coverage")
	}
}

func TestUniqueEmptyInput(t *testing.T) {
	got := Unique(SpectralMetrics{}, nil, detect.BurstPatterns{})
	if got != 0 {
		t.Errorf("Empty metrics should score 0, got %v", got)
	}
}

func TestUniqueBounds(t *testing.T) {
	m := SpectralMetrics{
		ActiveBands:     5,
		SpectralEntropy: 6,
		PeakFreqRange:   110000,
		MaxFrequency:    120000,
		MaxSimultaneous: 5,
		HarmonicEvents:  40,
	}
	chirps := []detect.Chirp{{SweepRate: 80000}}
	p := detect.BurstPatterns{
		TotalClicks:  200,
		BurstClicks:  100,
		Bimodal:      true,
		Accelerating: true,
		ICIRange:     0.2,
		RegularityCV: 0.1,
	}
	p.HighlyRegular = true
	got := Unique(m, chirps, p)
	if got != 100 {
		t.Errorf("Saturated metrics should clamp to 100, got %v", got)
	}
}

func TestUniqueSweepTiers(t *testing.T) {
	base := Unique(SpectralMetrics{}, nil, detect.BurstPatterns{})
	cases := []struct {
		rate float64
		pts  float64
	}{
		{5000, 0},
		{12000, 3},
		{20000, 5},
		{40000, 7},
		{60000, 10},
	}
	for _, c := range cases {
		got := Unique(SpectralMetrics{}, []detect.Chirp{{SweepRate: c.rate}}, detect.BurstPatterns{})
		if math.Abs(got-base-c.pts) > 1e-9 {
			t.Errorf("Sweep rate %v: got %v points, want %v", c.rate, got-base, c.pts)
		}
	}
}

func TestUniqueIrregularClicks(t *testing.T) {
	p := detect.BurstPatterns{TotalClicks: 30, RegularityCV: 1.2}
	got := Unique(SpectralMetrics{}, nil, p)
	if got != 3 {
		t.Errorf("Exceptionally irregular clicking should add 3 points, got %v", got)
	}
}

func TestSpectralBandOccupancy(t *testing.T) {
	const rate = 192000
	n := rate / 2
	rng := rand.New(rand.NewSource(11))
	white := make([]float64, n)
	for i := range white {
		white[i] = rng.NormFloat64()
	}
	// Low band runs the whole recording; mid band only the first half,
	// so its mean level sits well above its own 20th-percentile floor.
	low := dsp.BandPass(white, rate, 2000, 10000)
	mid := dsp.BandPass(white, rate, 10000, 40000)
	signal := make([]float64, n)
	for i := range signal {
		signal[i] = low[i] + 0.001*rng.NormFloat64()
		if i < n/2 {
			signal[i] += mid[i]
		}
	}

	m, err := Spectral(signal, rate)
	if err != nil {
		t.Fatal(err)
	}
	if m.ActiveBands < 1 {
		t.Error("An intermittently occupied band should register as active")
	}
	if m.MaxFrequency < 2000 || m.MaxFrequency > 45000 {
		t.Errorf("MaxFrequency = %v, want within the energized 2-40 kHz range", m.MaxFrequency)
	}
	if m.PeakFreqRange <= 0 {
		t.Errorf("PeakFreqRange = %v, want positive", m.PeakFreqRange)
	}
	if m.SpectralEntropy < 0 {
		t.Errorf("Entropy must be non-negative, got %v", m.SpectralEntropy)
	}
}

func TestSpectralHarmonicStack(t *testing.T) {
	const rate = 192000
	n := rate / 2
	rng := rand.New(rand.NewSource(12))
	signal := make([]float64, n)
	for i := range signal {
		ti := float64(i) / rate
		signal[i] = math.Sin(2*math.Pi*10000*ti) +
			0.8*math.Sin(2*math.Pi*20000*ti) +
			0.01*rng.NormFloat64()
	}

	m, err := Spectral(signal, rate)
	if err != nil {
		t.Fatal(err)
	}
	if m.HarmonicEvents == 0 {
		t.Error("A tone with a 2x overtone should register harmonic events")
	}
}

func TestSpectralShortInput(t *testing.T) {
	if _, err := Spectral(make([]float64, 100), 192000); err == nil {
		t.Error("Input shorter than one window should error")
	}
}
