package analyze

import (
	"encoding/binary"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/micha2718l/dolphain/internal/ears"
)

// writeEARSFile packs the samples into 512-byte EARS records under
// t.TempDir and returns the path.
func writeEARSFile(t *testing.T, name string, samples []int16) string {
	t.Helper()
	header := [ears.HeaderSize]byte{6: 14} // constant, valid timestamp
	nRecords := len(samples) / ears.SamplesPerRecord
	buf := make([]byte, 0, nRecords*ears.RecordSize)
	for r := 0; r < nRecords; r++ {
		buf = append(buf, header[:]...)
		for i := 0; i < ears.SamplesPerRecord; i++ {
			var b [2]byte
			binary.BigEndian.PutUint16(b[:], uint16(samples[r*ears.SamplesPerRecord+i]))
			buf = append(buf, b[:]...)
		}
	}
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// toneRecording synthesizes 1.2 s of low noise with an 8 kHz tone in
// the middle half, quantized the way the logger hardware would.
func toneRecording(t *testing.T) string {
	t.Helper()
	rng := rand.New(rand.NewSource(5))
	n := 1.2 * float64(ears.SampleRate)
	samples := make([]int16, int(n))
	for i := range samples {
		ti := float64(i) / ears.SampleRate
		v := 40 * rng.NormFloat64()
		if ti >= 0.3 && ti < 0.9 {
			v += 8000 * math.Sin(2*math.Pi*8000*ti)
		}
		samples[i] = int16(v)
	}
	return writeEARSFile(t, "71234.DAT", samples)
}

func TestFileStandardPipeline(t *testing.T) {
	path := toneRecording(t)

	res, err := File(path)
	if err != nil {
		t.Fatal(err)
	}
	r := res.Report

	if r.Filename != "71234.DAT" {
		t.Errorf("Filename = %q", r.Filename)
	}
	if math.Abs(r.RecordingDuration-1.2) > 0.01 {
		t.Errorf("RecordingDuration = %v, want ~1.2", r.RecordingDuration)
	}
	if r.NumWhistles < 1 {
		t.Fatal("Expected the 8 kHz tone to be detected as a whistle")
	}
	if r.WhistleCoveragePercent <= 0 || r.WhistleCoveragePercent > 100 {
		t.Errorf("WhistleCoveragePercent = %v", r.WhistleCoveragePercent)
	}
	if r.MeanWhistleDuration <= 0 {
		t.Errorf("MeanWhistleDuration = %v, want positive", r.MeanWhistleDuration)
	}
	if r.Score < 0 || r.Score > 100 {
		t.Errorf("Score = %v, out of bounds", r.Score)
	}
	if r.Score == 0 {
		t.Error("A detected whistle should contribute a nonzero score")
	}
	// 1.2 s truncates to whole 250-sample records.
	wantSamples := int(1.2*float64(ears.SampleRate)) / ears.SamplesPerRecord * ears.SamplesPerRecord
	if len(res.Cleaned) != wantSamples {
		t.Errorf("Cleaned length = %d, want %d", len(res.Cleaned), wantSamples)
	}
}

func TestFileUniqueMode(t *testing.T) {
	path := toneRecording(t)

	res, err := File(path, WithMode(ModeUnique))
	if err != nil {
		t.Fatal(err)
	}
	if res.Report.Score < 0 || res.Report.Score > 100 {
		t.Errorf("Score = %v, out of bounds", res.Report.Score)
	}
}

func TestFileUnknownMode(t *testing.T) {
	path := toneRecording(t)
	if _, err := File(path, WithMode("exotic")); err == nil {
		t.Error("Unknown scoring mode should error")
	}
}

func TestFileMissing(t *testing.T) {
	if _, err := File(filepath.Join(t.TempDir(), "nope.DAT")); err == nil {
		t.Error("Missing file should error")
	}
}

func TestRecordingDeterministic(t *testing.T) {
	path := toneRecording(t)
	rec, err := ears.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	a, err := Recording(rec, path)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Recording(rec, path)
	if err != nil {
		t.Fatal(err)
	}
	if a.Report != b.Report {
		t.Errorf("Re-analysis differed: %+v vs %+v", a.Report, b.Report)
	}
}
