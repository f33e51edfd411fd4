package batch

import (
	"context"
	"encoding/binary"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/micha2718l/dolphain/internal/ears"
)

// noiseFile writes a short noise-only recording in EARS framing.
func noiseFile(t *testing.T, dir, name string, seed int64) string {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	header := [ears.HeaderSize]byte{6: 14}
	const nRecords = 384 // 0.5 s
	buf := make([]byte, 0, nRecords*ears.RecordSize)
	for r := 0; r < nRecords; r++ {
		buf = append(buf, header[:]...)
		for i := 0; i < ears.SamplesPerRecord; i++ {
			var b [2]byte
			binary.BigEndian.PutUint16(b[:], uint16(int16(100*rng.NormFloat64())))
			buf = append(buf, b[:]...)
		}
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunProcessesAllFiles(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		noiseFile(t, dir, "70001.DAT", 1),
		noiseFile(t, dir, "70002.DAT", 2),
		noiseFile(t, dir, "70003.DAT", 3),
	}
	// Too short for a single record: must be recorded as an error, not
	// abort the batch.
	bad := filepath.Join(dir, "70004.DAT")
	if err := os.WriteFile(bad, make([]byte, 100), 0o644); err != nil {
		t.Fatal(err)
	}
	files = append(files, bad)

	cpPath := filepath.Join(dir, "checkpoint.json")
	cp, err := Run(context.Background(), files, Config{
		CheckpointPath: cpPath,
		Workers:        2,
		SaveEvery:      2,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(cp.Results) != 3 {
		t.Errorf("Results = %d, want 3", len(cp.Results))
	}
	if len(cp.Errors) != 1 || cp.Errors[0].File != bad {
		t.Errorf("Errors = %+v, want one entry for the truncated file", cp.Errors)
	}
	if cp.RunID == "" {
		t.Error("RunID missing")
	}
	if _, err := os.Stat(cpPath); err != nil {
		t.Errorf("Checkpoint not written: %v", err)
	}
}

func TestRunResumesFromCheckpoint(t *testing.T) {
	dir := t.TempDir()
	a := noiseFile(t, dir, "70001.DAT", 4)
	b := noiseFile(t, dir, "70002.DAT", 5)
	cpPath := filepath.Join(dir, "checkpoint.json")

	first, err := Run(context.Background(), []string{a, b}, Config{CheckpointPath: cpPath})
	if err != nil {
		t.Fatal(err)
	}
	if len(first.Results) != 2 {
		t.Fatalf("First run Results = %d, want 2", len(first.Results))
	}

	c := noiseFile(t, dir, "70003.DAT", 6)
	second, err := Run(context.Background(), []string{a, b, c}, Config{CheckpointPath: cpPath})
	if err != nil {
		t.Fatal(err)
	}
	if len(second.Results) != 3 {
		t.Fatalf("Resumed run Results = %d, want 3", len(second.Results))
	}
	if second.RunID != first.RunID {
		t.Error("Resume should keep the original run ID")
	}
	seen := map[string]int{}
	for _, r := range second.Results {
		seen[r.File]++
	}
	for f, n := range seen {
		if n != 1 {
			t.Errorf("%s processed %d times", f, n)
		}
	}
}

func TestRunCancelled(t *testing.T) {
	dir := t.TempDir()
	files := []string{noiseFile(t, dir, "70001.DAT", 7)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cp, err := Run(ctx, files, Config{})
	if err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if len(cp.Results) != 0 {
		t.Errorf("Cancelled before dispatch, Results = %d", len(cp.Results))
	}
}

func TestRunSaveFailureDoesNotDeadlock(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		noiseFile(t, dir, "70001.DAT", 8),
		noiseFile(t, dir, "70002.DAT", 9),
		noiseFile(t, dir, "70003.DAT", 10),
		noiseFile(t, dir, "70004.DAT", 11),
	}

	// Checkpoint in a directory that does not exist: every Save fails.
	cpPath := filepath.Join(dir, "missing", "checkpoint.json")
	done := make(chan error, 1)
	go func() {
		_, err := Run(context.Background(), files, Config{
			CheckpointPath: cpPath,
			Workers:        2,
			SaveEvery:      1,
		})
		done <- err
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected a save error")
		}
	case <-time.After(30 * time.Second):
		t.Fatal("Run did not return after a save failure")
	}
}

func TestCheckpointSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cp.json")

	cp, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cp.RunID == "" {
		t.Error("Fresh checkpoint should get a run ID")
	}

	cp.Errors = append(cp.Errors, FileError{File: "x.DAT", Error: "boom"})
	if err := cp.Save(path); err != nil {
		t.Fatal(err)
	}
	if cp.LastUpdated.IsZero() || time.Since(cp.LastUpdated) > time.Minute {
		t.Errorf("LastUpdated = %v", cp.LastUpdated)
	}

	back, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if back.RunID != cp.RunID || len(back.Errors) != 1 || back.Errors[0].Error != "boom" {
		t.Errorf("Round trip mismatch: %+v", back)
	}
}
