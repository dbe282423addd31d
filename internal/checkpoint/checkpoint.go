// Package checkpoint persists resumable job state as atomic JSON files.
//
// Each long-running job owns one checkpoint file under the store's
// directory, keyed by job ID. Writes go through a temp file and rename so
// a crash mid-save can never leave a torn checkpoint. Removing the file
// signals job completion.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SchemaVersion is bumped when the checkpoint layout changes incompatibly.
const SchemaVersion = 1

// Cursor is the resumable position of a job. Jobs use the fields relevant
// to them; the rest stay at their zero values.
type Cursor struct {
	// Backfill fields. Offset counts papers of the day at LastEndDate
	// already committed when a run's budget expired mid-day.
	AnchorDate       string `json:"anchor_date,omitempty"`
	LastEndDate      string `json:"last_end_date,omitempty"`
	EarliestIngested string `json:"earliest_ingested,omitempty"`
	Offset           int    `json:"offset,omitempty"`
	Completed        bool   `json:"completed,omitempty"`

	// Enrichment fields.
	CurrentDate string `json:"current_date,omitempty"`
	LastID      string `json:"last_id,omitempty"`
}

// Record is the on-disk checkpoint contents.
type Record struct {
	SchemaVersion int            `json:"schema_version"`
	JobID         string         `json:"job_id"`
	Direction     string         `json:"direction,omitempty"`
	Cursor        Cursor         `json:"cursor"`
	Stats         map[string]int `json:"stats"`
	LastSavedAt   time.Time      `json:"last_saved_at"`
}

// Store reads and writes checkpoint files under a single directory.
type Store struct {
	dir string
}

// NewStore creates a Store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating checkpoint dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Path returns the checkpoint file path for a job.
func (s *Store) Path(jobID string) string {
	return filepath.Join(s.dir, jobID+".json")
}

// Load reads a job's checkpoint. The second return value reports whether a
// checkpoint exists; a missing file is not an error.
func (s *Store) Load(jobID string) (*Record, bool, error) {
	data, err := os.ReadFile(s.Path(jobID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading checkpoint %s: %w", jobID, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, false, fmt.Errorf("parsing checkpoint %s: %w", jobID, err)
	}
	if rec.SchemaVersion != SchemaVersion {
		return nil, false, fmt.Errorf("checkpoint %s has schema version %d, want %d",
			jobID, rec.SchemaVersion, SchemaVersion)
	}
	return &rec, true, nil
}

// Save writes a job's checkpoint atomically. The record's schema version
// and save timestamp are set here.
func (s *Store) Save(rec *Record) error {
	rec.SchemaVersion = SchemaVersion
	rec.LastSavedAt = time.Now().UTC()
	if rec.Stats == nil {
		rec.Stats = map[string]int{}
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding checkpoint %s: %w", rec.JobID, err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(s.dir, rec.JobID+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating checkpoint temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing checkpoint %s: %w", rec.JobID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing checkpoint temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.Path(rec.JobID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("committing checkpoint %s: %w", rec.JobID, err)
	}
	return nil
}

// Clear removes a job's checkpoint. Missing files are not an error, so
// Clear doubles as the completion signal and the --reset implementation.
func (s *Store) Clear(jobID string) error {
	if err := os.Remove(s.Path(jobID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing checkpoint %s: %w", jobID, err)
	}
	return nil
}

// List returns the job IDs that currently have checkpoints.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing checkpoints: %w", err)
	}
	var jobs []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		jobs = append(jobs, name[:len(name)-len(".json")])
	}
	return jobs, nil
}
