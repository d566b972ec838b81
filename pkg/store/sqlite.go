package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/psantana5/mlmon/pkg/models"
)

// SQLiteStore archives jobs, reports, and run summaries in SQLite.
// Structured payloads are stored as JSON columns; the indexed columns
// exist for listing and lookup only.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// WAL plus a 10s busy timeout keeps concurrent readers off SQLITE_BUSY
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=10000&_synchronous=NORMAL", dbPath)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer avoids lock contention
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// initSchema creates the database schema
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		stage TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		payload TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		dataset_id TEXT NOT NULL,
		compiled_at DATETIME NOT NULL,
		payload TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		passed BOOLEAN NOT NULL,
		payload TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_created ON jobs(created_at);
	CREATE INDEX IF NOT EXISTS idx_reports_compiled ON reports(compiled_at);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveJob inserts or replaces a job
func (s *SQLiteStore) SaveJob(job *models.TrainingJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO jobs (id, stage, created_at, payload)
		VALUES (?, ?, ?, ?)
	`, job.ID, string(job.CurrentStage), job.CreatedAt, string(payload))
	return err
}

// GetJob retrieves a job by ID
func (s *SQLiteStore) GetJob(id string) (*models.TrainingJob, error) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM jobs WHERE id = ?`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}

	var job models.TrainingJob
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

// ListJobs returns all jobs, newest first
func (s *SQLiteStore) ListJobs() []*models.TrainingJob {
	rows, err := s.db.Query(`SELECT payload FROM jobs ORDER BY created_at DESC`)
	if err != nil {
		return []*models.TrainingJob{}
	}
	defer rows.Close()

	var jobs []*models.TrainingJob
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			continue
		}
		var job models.TrainingJob
		if err := json.Unmarshal([]byte(payload), &job); err != nil {
			continue
		}
		jobs = append(jobs, &job)
	}
	return jobs
}

// SaveReport archives a compiled report
func (s *SQLiteStore) SaveReport(report *models.TestReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO reports (id, dataset_id, compiled_at, payload)
		VALUES (?, ?, ?, ?)
	`, report.ID, report.Dataset.ID, report.CompiledAt, string(payload))
	return err
}

// GetReport retrieves a report by ID
func (s *SQLiteStore) GetReport(id string) (*models.TestReport, error) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM reports WHERE id = ?`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, err
	}

	var report models.TestReport
	if err := json.Unmarshal([]byte(payload), &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &report, nil
}

// ListReports returns all archived reports, newest first
func (s *SQLiteStore) ListReports() []*models.TestReport {
	rows, err := s.db.Query(`SELECT payload FROM reports ORDER BY compiled_at DESC`)
	if err != nil {
		return []*models.TestReport{}
	}
	defer rows.Close()

	var reports []*models.TestReport
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			continue
		}
		var report models.TestReport
		if err := json.Unmarshal([]byte(payload), &report); err != nil {
			continue
		}
		reports = append(reports, &report)
	}
	return reports
}

// SaveRun archives a run summary
func (s *SQLiteStore) SaveRun(summary *models.RunSummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO runs (id, started_at, passed, payload)
		VALUES (?, ?, ?, ?)
	`, summary.ID, summary.StartedAt, summary.Passed, string(payload))
	return err
}

// GetRun retrieves a run summary by ID
func (s *SQLiteStore) GetRun(id string) (*models.RunSummary, error) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM runs WHERE id = ?`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}

	var run models.RunSummary
	if err := json.Unmarshal([]byte(payload), &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run summary: %w", err)
	}
	return &run, nil
}

// ListRuns returns all run summaries, newest first
func (s *SQLiteStore) ListRuns() []*models.RunSummary {
	rows, err := s.db.Query(`SELECT payload FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return []*models.RunSummary{}
	}
	defer rows.Close()

	var runs []*models.RunSummary
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			continue
		}
		var run models.RunSummary
		if err := json.Unmarshal([]byte(payload), &run); err != nil {
			continue
		}
		runs = append(runs, &run)
	}
	return runs
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
