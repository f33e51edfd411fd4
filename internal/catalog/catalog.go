// Package catalog persists per-file analysis records to SQLite so top
// scorers can be pulled out of multi-thousand-file surveys without
// re-reading checkpoint JSON.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/micha2718l/dolphain/internal/analyze"
)

const DefaultDBFile = "dolphain.sqlite3"

var errNilCatalog = errors.New("catalog is nil")

// ScoreRecord is one analyzed file as stored in the catalog. A file
// appears once per run.
type ScoreRecord struct {
	ID                     string  `gorm:"primaryKey;type:varchar(36)"`
	RunID                  string  `gorm:"uniqueIndex:idx_run_file,priority:1" json:"run_id"`
	File                   string  `gorm:"uniqueIndex:idx_run_file,priority:2" json:"file"`
	Filename               string  `json:"filename"`
	RecordingDuration      float64 `json:"recording_duration"`
	NumWhistles            int     `json:"n_whistles"`
	MeanWhistleDuration    float64 `json:"mean_whistle_duration"`
	WhistleCoveragePercent float64 `json:"whistle_coverage_percent"`
	NumChirps              int     `json:"n_chirps"`
	MeanFreqSweep          float64 `json:"mean_freq_sweep"`
	NumClickTrains         int     `json:"n_click_trains"`
	TotalClicks            int     `json:"total_clicks"`
	MeanClickRate          float64 `json:"mean_click_rate"`
	Score                  float64 `gorm:"index:idx_score" json:"interestingness_score"`
	CreatedAt              time.Time
}

// Catalog wraps the SQLite store.
type Catalog struct {
	DB *gorm.DB
}

// Open creates or opens a catalog database at path, migrating the
// schema as needed.
func Open(path string) (*Catalog, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating catalog dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening catalog db: %w", err)
	}
	if err := db.AutoMigrate(&ScoreRecord{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &Catalog{DB: db}, nil
}

// Close releases the underlying connection pool.
func (c *Catalog) Close() error {
	if c == nil || c.DB == nil {
		return nil
	}
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Store inserts one report under a run ID.
func (c *Catalog) Store(runID string, r analyze.Report) error {
	if c == nil || c.DB == nil {
		return errNilCatalog
	}
	rec := ScoreRecord{
		ID:                     uuid.NewString(),
		RunID:                  runID,
		File:                   r.File,
		Filename:               r.Filename,
		RecordingDuration:      r.RecordingDuration,
		NumWhistles:            r.NumWhistles,
		MeanWhistleDuration:    r.MeanWhistleDuration,
		WhistleCoveragePercent: r.WhistleCoveragePercent,
		NumChirps:              r.NumChirps,
		MeanFreqSweep:          r.MeanFreqSweep,
		NumClickTrains:         r.NumClickTrains,
		TotalClicks:            r.TotalClicks,
		MeanClickRate:          r.MeanClickRate,
		Score:                  r.Score,
	}
	if err := c.DB.Create(&rec).Error; err != nil {
		return fmt.Errorf("storing record for %s: %w", r.File, err)
	}
	return nil
}

// StoreAll batch-inserts every report of a run.
func (c *Catalog) StoreAll(runID string, reports []analyze.Report) error {
	if c == nil || c.DB == nil {
		return errNilCatalog
	}
	if len(reports) == 0 {
		return nil
	}
	recs := make([]ScoreRecord, 0, len(reports))
	for _, r := range reports {
		recs = append(recs, ScoreRecord{
			ID:                     uuid.NewString(),
			RunID:                  runID,
			File:                   r.File,
			Filename:               r.Filename,
			RecordingDuration:      r.RecordingDuration,
			NumWhistles:            r.NumWhistles,
			MeanWhistleDuration:    r.MeanWhistleDuration,
			WhistleCoveragePercent: r.WhistleCoveragePercent,
			NumChirps:              r.NumChirps,
			MeanFreqSweep:          r.MeanFreqSweep,
			NumClickTrains:         r.NumClickTrains,
			TotalClicks:            r.TotalClicks,
			MeanClickRate:          r.MeanClickRate,
			Score:                  r.Score,
		})
	}
	if err := c.DB.CreateInBatches(recs, 500).Error; err != nil {
		return fmt.Errorf("batch insert records: %w", err)
	}
	return nil
}

// Top returns the n highest-scoring records, newest runs included.
func (c *Catalog) Top(n int) ([]ScoreRecord, error) {
	if c == nil || c.DB == nil {
		return nil, errNilCatalog
	}
	var recs []ScoreRecord
	err := c.DB.Order("score DESC").Limit(n).Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("querying top records: %w", err)
	}
	return recs, nil
}

// TopForRun returns the n highest-scoring records of one run.
func (c *Catalog) TopForRun(runID string, n int) ([]ScoreRecord, error) {
	if c == nil || c.DB == nil {
		return nil, errNilCatalog
	}
	var recs []ScoreRecord
	err := c.DB.Where("run_id = ?", runID).Order("score DESC").Limit(n).Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("querying top records for run %s: %w", runID, err)
	}
	return recs, nil
}
