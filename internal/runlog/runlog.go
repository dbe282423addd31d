// Package runlog keeps a local SQLite ledger of pipeline runs, so the
// status command can answer "what ran, when, and how did it go" without
// touching the graph.
package runlog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Run is one recorded pipeline run.
type Run struct {
	ID         int64          `json:"id"`
	Job        string         `json:"job"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	OK         bool           `json:"ok"`
	Error      string         `json:"error,omitempty"`
	Stats      map[string]int `json:"stats,omitempty"`
}

// DB wraps the run ledger database.
type DB struct {
	db *sql.DB
}

// Open opens or creates the ledger at path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening run ledger: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating run ledger schema: %w", err)
	}
	return &DB{db: db}, nil
}

// Close closes the ledger.
func (d *DB) Close() error {
	return d.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			job TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL,
			ok INTEGER NOT NULL,
			error TEXT,
			stats_json TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_runs_job ON runs(job, started_at DESC);
	`
	_, err := db.Exec(schema)
	return err
}

// Append records a finished run.
func (d *DB) Append(run Run) error {
	statsJSON := "{}"
	if len(run.Stats) > 0 {
		data, err := json.Marshal(run.Stats)
		if err != nil {
			return fmt.Errorf("encoding run stats: %w", err)
		}
		statsJSON = string(data)
	}

	ok := 0
	if run.OK {
		ok = 1
	}
	_, err := d.db.Exec(`
		INSERT INTO runs (job, started_at, finished_at, ok, error, stats_json)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.Job,
		run.StartedAt.UTC().Unix(),
		run.FinishedAt.UTC().Unix(),
		ok,
		run.Error,
		statsJSON,
	)
	if err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	return nil
}

// Recent returns the most recent runs, newest first. job narrows to one
// job when non-empty.
func (d *DB) Recent(job string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, job, started_at, finished_at, ok, error, stats_json
		FROM runs`
	args := []any{}
	if job != "" {
		query += ` WHERE job = ?`
		args = append(args, job)
	}
	query += ` ORDER BY started_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			run       Run
			started   int64
			finished  int64
			ok        int
			errText   sql.NullString
			statsJSON sql.NullString
		)
		if err := rows.Scan(&run.ID, &run.Job, &started, &finished, &ok, &errText, &statsJSON); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		run.StartedAt = time.Unix(started, 0).UTC()
		run.FinishedAt = time.Unix(finished, 0).UTC()
		run.OK = ok != 0
		run.Error = errText.String
		if statsJSON.Valid && statsJSON.String != "" && statsJSON.String != "{}" {
			if err := json.Unmarshal([]byte(statsJSON.String), &run.Stats); err != nil {
				return nil, fmt.Errorf("decoding run stats: %w", err)
			}
		}
		out = append(out, run)
	}
	return out, rows.Err()
}
