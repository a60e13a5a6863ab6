package result

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);
CREATE TABLE IF NOT EXISTS jobs (
	job_id           TEXT PRIMARY KEY,
	feature_name     TEXT NOT NULL,
	timestamp        TEXT NOT NULL,
	status           TEXT NOT NULL,
	final_action     TEXT NOT NULL,
	final_confidence REAL NOT NULL,
	record           TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS jobs_timestamp ON jobs(timestamp);
`

// SQLiteStore keeps job records in a single SQLite table. Rows are only ever
// inserted.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path, creating its parent
// directory if needed.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	var v int
	err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := s.db.Exec("INSERT INTO schema_version(version) VALUES(?)", schemaVersion); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	case v != schemaVersion:
		return fmt.Errorf("unknown schema version %d", v)
	}
	return nil
}

func (s *SQLiteStore) Save(ctx context.Context, job *JobRecord) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshaling job %s: %w", job.JobID, err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs(job_id, feature_name, timestamp, status, final_action, final_confidence, record)
		 VALUES(?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(job_id) DO NOTHING`,
		job.JobID, job.Descriptor.FeatureName, job.Timestamp.UTC().Format(time.RFC3339Nano),
		string(job.Status), string(job.FinalAction), job.FinalConfidence, string(data),
	)
	if err != nil {
		return fmt.Errorf("insert job %s: %w", job.JobID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert job %s: %w", job.JobID, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", job.JobID, ErrJobExists)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, id string) (*JobRecord, error) {
	var data string
	err := s.db.QueryRowContext(ctx, "SELECT record FROM jobs WHERE job_id = ?", id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrJobNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", id, err)
	}
	var job JobRecord
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, fmt.Errorf("parsing job %s: %w", id, err)
	}
	return &job, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]*JobRecord, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT record FROM jobs ORDER BY timestamp, job_id")
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()
	var jobs []*JobRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		var job JobRecord
		if err := json.Unmarshal([]byte(data), &job); err != nil {
			return nil, fmt.Errorf("parsing job: %w", err)
		}
		jobs = append(jobs, &job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	sortJobs(jobs)
	return jobs, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
