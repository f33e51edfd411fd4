package ears

import (
	"fmt"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteWAV exports a recording as a 16-bit mono PCM WAV file so standard
// audio tools can play it. Samples are peak-normalized before scaling;
// the EARS raw counts are already int16-ranged but files recorded at low
// gain would otherwise be nearly silent.
func WriteWAV(rec *Recording, path string) error {
	if rec.NumSamples() == 0 {
		return fmt.Errorf("writing WAV: recording has no samples")
	}

	var maxAbs float64
	for _, v := range rec.Samples {
		if a := math.Abs(v); a > maxAbs {
			maxAbs = a
		}
	}
	scale := 1.0
	if maxAbs > 0 {
		scale = 32767.0 / maxAbs
	}

	data := make([]int, rec.NumSamples())
	for i, v := range rec.Samples {
		data[i] = int(math.Round(v * scale))
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating WAV file: %w", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, rec.SampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: rec.SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("writing WAV data: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalizing WAV file: %w", err)
	}
	return nil
}
