package dsp

import (
	"errors"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// Spectrogram is a transient time-major power matrix with its frequency
// and time coordinate vectors. Detectors recompute it per call with
// whatever window suits them; it is never persisted.
type Spectrogram struct {
	Power      [][]float64 // Power[frame][bin], linear
	Freqs      []float64   // Hz per bin
	Times      []float64   // seconds at each frame start
	WindowSize int
	HopSize    int
	SampleRate int
}

// Hamming returns a Hamming window of length n.
func Hamming(n int) []float64 {
	w := make([]float64, n)
	for i := 0; i < n; i++ {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// Hann returns a Hann window of length n.
func Hann(n int) []float64 {
	w := make([]float64, n)
	for i := 0; i < n; i++ {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

// STFT computes a short-time Fourier power spectrogram. Frames start
// every hopSize samples; a trailing partial frame is dropped.
func STFT(samples []float64, sampleRate, windowSize, hopSize int, window []float64) (*Spectrogram, error) {
	if len(window) != windowSize {
		return nil, errors.New("window length must equal windowSize")
	}
	if len(samples) < windowSize {
		return nil, errors.New("input shorter than window size")
	}

	nBins := windowSize / 2
	power := make([][]float64, 0, (len(samples)-windowSize)/hopSize+1)
	times := make([]float64, 0, cap(power))

	frame := make([]float64, windowSize)
	for start := 0; start+windowSize <= len(samples); start += hopSize {
		copy(frame, samples[start:start+windowSize])
		for i := 0; i < windowSize; i++ {
			frame[i] *= window[i]
		}
		spec := fft.FFTReal(frame)
		p := make([]float64, nBins)
		for k := 0; k < nBins; k++ {
			m := cmplx.Abs(spec[k])
			p[k] = m * m
		}
		power = append(power, p)
		times = append(times, float64(start)/float64(sampleRate))
	}

	freqs := make([]float64, nBins)
	for k := range freqs {
		freqs[k] = float64(k) * float64(sampleRate) / float64(windowSize)
	}

	return &Spectrogram{
		Power:      power,
		Freqs:      freqs,
		Times:      times,
		WindowSize: windowSize,
		HopSize:    hopSize,
		SampleRate: sampleRate,
	}, nil
}

// NumFrames returns the number of time frames.
func (s *Spectrogram) NumFrames() int { return len(s.Power) }

// NumBins returns the number of frequency bins.
func (s *Spectrogram) NumBins() int {
	if len(s.Power) == 0 {
		return 0
	}
	return len(s.Power[0])
}

// FrameDuration returns the hop interval in seconds, the time
// resolution of the spectrogram.
func (s *Spectrogram) FrameDuration() float64 {
	return float64(s.HopSize) / float64(s.SampleRate)
}

// DB returns the spectrogram in decibels with a flooring epsilon so
// silent bins stay finite.
func (s *Spectrogram) DB() [][]float64 {
	const eps = 1e-12
	out := make([][]float64, len(s.Power))
	for t, row := range s.Power {
		dbRow := make([]float64, len(row))
		for k, p := range row {
			dbRow[k] = 10 * math.Log10(p+eps)
		}
		out[t] = dbRow
	}
	return out
}

// BinRange returns the bin indices [lo, hi) covering the frequency band
// [fLow, fHigh]. An empty range comes back as (0, 0).
func (s *Spectrogram) BinRange(fLow, fHigh float64) (int, int) {
	lo, hi := -1, -1
	for k, f := range s.Freqs {
		if lo < 0 && f >= fLow {
			lo = k
		}
		if f <= fHigh {
			hi = k
		}
	}
	if lo < 0 || hi < lo {
		return 0, 0
	}
	return lo, hi + 1
}
