package store

import (
	"errors"

	"github.com/psantana5/mlmon/pkg/models"
)

var (
	ErrJobNotFound    = errors.New("job not found")
	ErrReportNotFound = errors.New("report not found")
	ErrRunNotFound    = errors.New("run not found")

	ErrUnsupportedBackend = errors.New("unsupported store backend")
)

// Store persists finished training jobs and compiled load-test output.
// Both the in-memory and SQLite backends implement it.
type Store interface {
	// Job operations
	SaveJob(job *models.TrainingJob) error
	GetJob(id string) (*models.TrainingJob, error)
	ListJobs() []*models.TrainingJob

	// Report archive
	SaveReport(report *models.TestReport) error
	GetReport(id string) (*models.TestReport, error)
	ListReports() []*models.TestReport

	// Run summaries
	SaveRun(summary *models.RunSummary) error
	GetRun(id string) (*models.RunSummary, error)
	ListRuns() []*models.RunSummary

	Close() error
}

// Config selects and configures a store backend
type Config struct {
	Type string // "memory" or "sqlite"
	Path string // database file, sqlite only
}

// NewStore creates a store from configuration. Memory is the default.
func NewStore(config Config) (Store, error) {
	switch config.Type {
	case "sqlite":
		path := config.Path
		if path == "" {
			path = "mlmon.db"
		}
		return NewSQLiteStore(path)
	case "memory", "":
		return NewMemoryStore(), nil
	default:
		return nil, ErrUnsupportedBackend
	}
}
