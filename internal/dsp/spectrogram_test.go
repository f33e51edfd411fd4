package dsp

import (
	"math"
	"testing"
)

func TestWindows(t *testing.T) {
	for _, size := range []int{128, 1024} {
		for name, win := range map[string][]float64{
			"hamming": Hamming(size),
			"hann":    Hann(size),
		} {
			if len(win) != size {
				t.Errorf("%s: expected length %d, got %d", name, size, len(win))
			}
			for i, v := range win {
				if v < 0 || v > 1 {
					t.Errorf("%s[%d] = %v out of [0,1]", name, i, v)
				}
			}
			if win[0] >= win[size/2] {
				t.Errorf("%s window should be lower at the edges", name)
			}
		}
	}
}

func TestSTFTDimensions(t *testing.T) {
	sampleRate := 192000
	windowSize := 1024
	hopSize := 256
	samples := make([]float64, sampleRate/10)

	spec, err := STFT(samples, sampleRate, windowSize, hopSize, Hamming(windowSize))
	if err != nil {
		t.Fatalf("STFT failed: %v", err)
	}

	wantFrames := (len(samples)-windowSize)/hopSize + 1
	if spec.NumFrames() != wantFrames {
		t.Errorf("Expected %d frames, got %d", wantFrames, spec.NumFrames())
	}
	if spec.NumBins() != windowSize/2 {
		t.Errorf("Expected %d bins, got %d", windowSize/2, spec.NumBins())
	}
	if len(spec.Freqs) != spec.NumBins() || len(spec.Times) != spec.NumFrames() {
		t.Error("Coordinate vectors do not match matrix dimensions")
	}
	if spec.Times[1]-spec.Times[0] != spec.FrameDuration() {
		t.Error("Time axis step should equal the hop interval")
	}
}

func TestSTFTTonePeak(t *testing.T) {
	sampleRate := 192000
	windowSize := 2048
	toneFreq := 12000.0

	samples := make([]float64, sampleRate/4)
	for i := range samples {
		samples[i] = math.Sin(2 * math.Pi * toneFreq * float64(i) / float64(sampleRate))
	}

	spec, err := STFT(samples, sampleRate, windowSize, 512, Hamming(windowSize))
	if err != nil {
		t.Fatalf("STFT failed: %v", err)
	}

	// The strongest bin of every frame should sit at the tone frequency.
	wantBin := int(toneFreq / spec.Freqs[1])
	for ti, row := range spec.Power {
		maxBin := 0
		for k, p := range row {
			if p > row[maxBin] {
				maxBin = k
			}
		}
		if maxBin < wantBin-1 || maxBin > wantBin+1 {
			t.Fatalf("frame %d: peak at bin %d, want ~%d", ti, maxBin, wantBin)
		}
	}
}

func TestSTFTErrors(t *testing.T) {
	if _, err := STFT(make([]float64, 64), 192000, 128, 32, Hamming(128)); err == nil {
		t.Error("Expected error for input shorter than window")
	}
	if _, err := STFT(make([]float64, 1024), 192000, 128, 32, Hamming(64)); err == nil {
		t.Error("Expected error for mismatched window length")
	}
}

func TestSpectrogramDB(t *testing.T) {
	spec := &Spectrogram{Power: [][]float64{{1, 100, 0}}}
	db := spec.DB()
	if math.Abs(db[0][0]-0) > 1e-6 {
		t.Errorf("10*log10(1) should be 0, got %v", db[0][0])
	}
	if math.Abs(db[0][1]-20) > 1e-6 {
		t.Errorf("10*log10(100) should be 20, got %v", db[0][1])
	}
	if !math.IsInf(db[0][2], 0) && db[0][2] > -100 {
		t.Errorf("Silent bin should floor far below signal, got %v", db[0][2])
	}
}

func TestBinRange(t *testing.T) {
	spec := &Spectrogram{Freqs: []float64{0, 1000, 2000, 3000, 4000}}
	lo, hi := spec.BinRange(1000, 3000)
	if lo != 1 || hi != 4 {
		t.Errorf("BinRange(1000,3000) = (%d,%d), want (1,4)", lo, hi)
	}
	lo, hi = spec.BinRange(10000, 20000)
	if lo != 0 || hi != 0 {
		t.Errorf("Out-of-range band should return empty range, got (%d,%d)", lo, hi)
	}
}
