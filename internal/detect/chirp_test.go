package detect

import (
	"math"
	"testing"
)

// sweep adds a linear chirp from f0 to f1 Hz over [start, start+dur).
func sweep(x []float64, f0, f1, amp, start, dur float64) {
	s := int(start * testRate)
	e := s + int(dur*testRate)
	if e > len(x) {
		e = len(x)
	}
	var phase float64
	for i := s; i < e; i++ {
		frac := float64(i-s) / float64(e-s)
		f := f0 + (f1-f0)*frac
		phase += 2 * math.Pi * f / testRate
		x[i] += amp * math.Sin(phase)
	}
}

func TestChirpsRecoversLinearSweep(t *testing.T) {
	x := noisySignal(1.0, 0.01, 10)
	sweep(x, 5000, 15000, 1.0, 0.25, 0.5)

	chirps := Chirps(x, testRate, DefaultChirpConfig())
	if len(chirps) == 0 {
		t.Fatal("Expected a chirp for a strong 5->15 kHz sweep")
	}

	// Pick the longest contour; noise may contribute short stragglers.
	best := chirps[0]
	for _, c := range chirps {
		if c.Duration > best.Duration {
			best = c
		}
	}

	binHz := float64(testRate) / float64(DefaultChirpConfig().WindowSize)
	if math.Abs(best.StartFreq-5000) > 2*binHz+200 {
		t.Errorf("Start frequency %v, want ~5000", best.StartFreq)
	}
	if math.Abs(best.EndFreq-15000) > 2*binHz+200 {
		t.Errorf("End frequency %v, want ~15000", best.EndFreq)
	}
	if math.Abs(best.Duration-0.5) > 0.08 {
		t.Errorf("Duration %v, want ~0.5", best.Duration)
	}
	if best.FreqSweep < 8000 {
		t.Errorf("Frequency sweep %v, want ~10000", best.FreqSweep)
	}
	wantRate := best.FreqSweep / best.Duration
	if math.Abs(best.SweepRate-wantRate) > 1e-9 {
		t.Errorf("SweepRate %v inconsistent with sweep/duration %v", best.SweepRate, wantRate)
	}
}

func TestChirpsRejectsSteadyTone(t *testing.T) {
	x := noisySignal(1.0, 0.01, 11)
	tone(x, 10000, 1.0, 0.2, 0.6)

	for _, c := range Chirps(x, testRate, DefaultChirpConfig()) {
		if c.FreqSweep >= DefaultChirpConfig().MinSweep {
			t.Errorf("Steady tone reported as %v Hz sweep", c.FreqSweep)
		}
	}
}

func TestChirpsRejectsShortSweep(t *testing.T) {
	x := noisySignal(1.0, 0.01, 12)
	sweep(x, 5000, 15000, 1.0, 0.4, 0.1) // loud but well under MinDuration

	if chirps := Chirps(x, testRate, DefaultChirpConfig()); len(chirps) != 0 {
		t.Errorf("0.1 s sweep should fail the duration filter, got %d chirps", len(chirps))
	}
}

func TestChirpsShortInput(t *testing.T) {
	if got := Chirps(make([]float64, 1000), testRate, DefaultChirpConfig()); got != nil {
		t.Errorf("Input shorter than the window should return nil, got %v", got)
	}
}
