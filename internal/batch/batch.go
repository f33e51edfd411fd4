// Package batch drives the analysis pipeline over large file lists
// with periodic checkpointing, so multi-day runs over field datasets
// can be killed and resumed without losing work.
package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/micha2718l/dolphain/internal/analyze"
	"github.com/micha2718l/dolphain/pkg/logger"
)

// FileError records one failed file. Failures never abort the batch.
type FileError struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// Checkpoint is the resumable on-disk state of a batch run.
type Checkpoint struct {
	RunID       string           `json:"run_id"`
	Results     []analyze.Report `json:"results"`
	Errors      []FileError      `json:"errors"`
	LastUpdated time.Time        `json:"last_updated"`
}

// Processed reports whether a file already has a result or a recorded
// error from an earlier run.
func (c *Checkpoint) Processed(file string) bool {
	for _, r := range c.Results {
		if r.File == file {
			return true
		}
	}
	for _, e := range c.Errors {
		if e.File == file {
			return true
		}
	}
	return false
}

// Config tunes a batch run. Zero values fall back to the defaults.
type Config struct {
	CheckpointPath string
	SaveEvery      int // checkpoint after this many completions
	Workers        int
	Options        []analyze.Option // forwarded to every analysis
	Logger         *logger.Logger
}

func (c *Config) fill() {
	if c.SaveEvery <= 0 {
		c.SaveEvery = 10
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.Logger == nil {
		c.Logger = logger.GetLogger()
	}
}

// Load reads a checkpoint from disk. A missing file yields a fresh
// checkpoint with a new run ID.
func Load(path string) (*Checkpoint, error) {
	buf, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Checkpoint{RunID: uuid.NewString()}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(buf, &cp); err != nil {
		return nil, fmt.Errorf("load checkpoint %s: %w", path, err)
	}
	if cp.RunID == "" {
		cp.RunID = uuid.NewString()
	}
	return &cp, nil
}

// Save writes the checkpoint atomically.
func (c *Checkpoint) Save(path string) error {
	c.LastUpdated = time.Now().UTC()
	buf, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

type outcome struct {
	file   string
	report analyze.Report
	err    error
}

// Run analyzes every file not already covered by the checkpoint.
// Files are independent, so they fan out across workers; a single
// collector owns the checkpoint. Cancellation stops dispatch at the
// next file boundary, saves, and returns the context error alongside
// the partial checkpoint.
func Run(ctx context.Context, files []string, cfg Config) (*Checkpoint, error) {
	cfg.fill()
	log := cfg.Logger

	cp := &Checkpoint{RunID: uuid.NewString()}
	if cfg.CheckpointPath != "" {
		loaded, err := Load(cfg.CheckpointPath)
		if err != nil {
			return nil, err
		}
		cp = loaded
	}

	var pending []string
	for _, f := range files {
		if !cp.Processed(f) {
			pending = append(pending, f)
		}
	}
	if skipped := len(files) - len(pending); skipped > 0 {
		log.Infof("run %s: resuming, %d of %d files already processed", cp.RunID, skipped, len(files))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan string)
	results := make(chan outcome)

	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range jobs {
				res, err := analyze.File(f, cfg.Options...)
				o := outcome{file: f, err: err}
				if err == nil {
					o.report = res.Report
				}
				results <- o
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, f := range pending {
			select {
			case <-ctx.Done():
				return
			case jobs <- f:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	// An early return here would strand workers blocked on results, so
	// a save failure cancels dispatch and keeps draining the channel.
	var sinceSave int
	var saveErr error
	for o := range results {
		if o.err != nil {
			log.Warnf("run %s: %s failed: %v", cp.RunID, o.file, o.err)
			cp.Errors = append(cp.Errors, FileError{File: o.file, Error: o.err.Error()})
		} else {
			cp.Results = append(cp.Results, o.report)
		}
		if saveErr != nil {
			continue
		}
		sinceSave++
		if cfg.CheckpointPath != "" && sinceSave >= cfg.SaveEvery {
			if err := cp.Save(cfg.CheckpointPath); err != nil {
				saveErr = err
				cancel()
				continue
			}
			sinceSave = 0
			log.Debugf("run %s: checkpoint saved, %d results, %d errors",
				cp.RunID, len(cp.Results), len(cp.Errors))
		}
	}
	if saveErr != nil {
		return cp, saveErr
	}

	if cfg.CheckpointPath != "" {
		if err := cp.Save(cfg.CheckpointPath); err != nil {
			return cp, err
		}
	}
	log.Infof("run %s: done, %d results, %d errors", cp.RunID, len(cp.Results), len(cp.Errors))
	return cp, ctx.Err()
}
