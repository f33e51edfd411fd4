// Package viz renders recordings as spectrogram images for quick
// visual triage of high-scoring files.
package viz

import (
	"fmt"
	"image"
	"image/draw"
	"math"

	"github.com/eligwz/spectrogram"

	"github.com/micha2718l/dolphain/internal/ears"
)

// Options controls the rendered image geometry.
type Options struct {
	Width  int
	Height int // frequency bins
}

func DefaultOptions() Options {
	return Options{Width: 2048, Height: 512}
}

// WritePNG renders a recording's spectrogram to a PNG. Samples are
// peak-normalized to [-1, 1] before rendering; raw EARS counts would
// otherwise saturate the color map.
func WritePNG(rec *ears.Recording, path string, opts Options) error {
	if rec.NumSamples() == 0 {
		return fmt.Errorf("rendering spectrogram: recording has no samples")
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return fmt.Errorf("rendering spectrogram: invalid geometry %dx%d", opts.Width, opts.Height)
	}

	var maxAbs float64
	for _, v := range rec.Samples {
		if a := math.Abs(v); a > maxAbs {
			maxAbs = a
		}
	}
	samples := make([]float64, len(rec.Samples))
	if maxAbs > 0 {
		for i, v := range rec.Samples {
			samples[i] = v / maxAbs
		}
	}

	img := spectrogram.NewImage128(image.Rect(0, 0, opts.Width, opts.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(spectrogram.ParseColor("000000")), image.Point{}, draw.Src)

	// Hamming window, FFT, linear magnitude.
	spectrogram.Drawfft(
		img,
		samples,
		uint32(rec.SampleRate),
		uint32(opts.Height),
		false,
		false,
		true,
		false,
	)

	if err := spectrogram.SavePng(img, path); err != nil {
		return fmt.Errorf("saving spectrogram png: %w", err)
	}
	return nil
}
