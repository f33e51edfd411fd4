// Package ears decodes the fixed-record binary files produced by EARS
// (Ecological Acoustic Recorder) bottom-moored hydrophone loggers.
package ears

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"
)

// EARS format constants. Every record is 512 bytes: a 12-byte header
// followed by 250 big-endian signed 16-bit samples. The sample rate is
// fixed by the hardware regardless of file extension.
const (
	RecordSize       = 512
	HeaderSize       = 12
	SamplesPerRecord = 250
	SampleRate       = 192000
	timestampClock   = 32000 // Hz, header timestamp tick rate
)

// Deployment epochs. Files whose name starts with '7' come from the
// 2015 deployment; everything else uses the legacy epoch.
var (
	epoch2015   = time.Date(2015, time.October, 27, 0, 0, 0, 0, time.UTC)
	epochLegacy = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)
)

// Timestamp is a change point in the header timestamp stream: the sample
// index at which a new header value was first seen, and the decoded time.
type Timestamp struct {
	Index int
	Time  time.Time
}

// Recording is a decoded EARS file: the raw (unscaled) sample stream and
// the timing metadata recovered from record headers.
type Recording struct {
	Samples    []float64
	SampleRate int
	TimeStart  time.Time
	TimeEnd    time.Time
	Timestamps []Timestamp
}

// NumSamples returns the number of decoded samples.
func (r *Recording) NumSamples() int { return len(r.Samples) }

// Duration returns the recording length in seconds.
func (r *Recording) Duration() float64 {
	return float64(len(r.Samples)) / float64(r.SampleRate)
}

// DecodeError reports a structurally unusable input buffer. Heuristic
// "nothing found" outcomes elsewhere in the pipeline are not errors;
// this is reserved for buffers that cannot yield a single record.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("ears: %s", e.Reason)
}

// Epoch selects the deployment epoch from a filename. Only the first
// character matters.
func Epoch(filename string) time.Time {
	if len(filename) > 0 && filename[0] == '7' {
		return epoch2015
	}
	return epochLegacy
}

// headerTime decodes the 48-bit timestamp packed into header bytes 6..11
// and converts it to an absolute time against the given epoch. The tick
// counter runs at the 32 kHz timestamp clock, not the sample rate.
func headerTime(header []byte, epoch time.Time) time.Time {
	s := header[6:12]
	ticks := (float64(s[0])-14)/16*math.Pow(2, 40) +
		float64(s[1])*math.Pow(2, 32) +
		float64(s[2])*math.Pow(2, 24) +
		float64(s[3])*math.Pow(2, 16) +
		float64(s[4])*math.Pow(2, 8) +
		float64(s[5])
	seconds := ticks / timestampClock
	return epoch.Add(time.Duration(seconds * float64(time.Second)))
}

// Decode parses an EARS byte buffer into a Recording. The filename is
// used only to select the deployment epoch. Trailing bytes that do not
// fill a complete 512-byte record are dropped; this mirrors the logger's
// historical behavior and is deliberately not an error. A buffer shorter
// than one record fails with a DecodeError since no timestamp exists.
func Decode(buf []byte, filename string) (*Recording, error) {
	nRecords := len(buf) / RecordSize
	if nRecords == 0 {
		return nil, &DecodeError{Reason: fmt.Sprintf("buffer too short: %d bytes, need at least %d", len(buf), RecordSize)}
	}

	epoch := Epoch(filepath.Base(filename))

	samples := make([]float64, 0, nRecords*SamplesPerRecord)
	var timestamps []Timestamp
	var prevHeader []byte

	for i := 0; i < nRecords; i++ {
		offset := i * RecordSize
		header := buf[offset : offset+HeaderSize]
		block := buf[offset+HeaderSize : offset+RecordSize]

		for j := 0; j < SamplesPerRecord; j++ {
			v := int16(binary.BigEndian.Uint16(block[2*j:]))
			samples = append(samples, float64(v))
		}

		// Repeated identical headers carry no new timing info.
		if prevHeader == nil || !bytes.Equal(header, prevHeader) {
			timestamps = append(timestamps, Timestamp{
				Index: i * SamplesPerRecord,
				Time:  headerTime(header, epoch),
			})
			prevHeader = header
		}
	}

	rec := &Recording{
		Samples:    samples,
		SampleRate: SampleRate,
		TimeStart:  timestamps[0].Time,
		Timestamps: timestamps,
	}
	rec.TimeEnd = rec.TimeStart.Add(time.Duration(rec.Duration() * float64(time.Second)))
	return rec, nil
}

// ReadFile reads and decodes an EARS file from disk.
func ReadFile(path string) (*Recording, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading EARS file: %w", err)
	}
	return Decode(buf, filepath.Base(path))
}

// Normalize maps samples into [-1, 1] in place by removing the mean and
// dividing by the maximum absolute value. Constant input is left at zero
// after mean removal.
func Normalize(samples []float64) {
	if len(samples) == 0 {
		return
	}
	var mean float64
	for _, v := range samples {
		mean += v
	}
	mean /= float64(len(samples))

	var maxAbs float64
	for i := range samples {
		samples[i] -= mean
		if a := math.Abs(samples[i]); a > maxAbs {
			maxAbs = a
		}
	}
	if maxAbs == 0 {
		return
	}
	for i := range samples {
		samples[i] /= maxAbs
	}
}
