package store

import (
	"sort"
	"sync"

	"github.com/psantana5/mlmon/pkg/models"
)

// MemoryStore is the in-memory store used by the server and in tests
type MemoryStore struct {
	mu      sync.RWMutex
	jobs    map[string]*models.TrainingJob
	reports map[string]*models.TestReport
	runs    map[string]*models.RunSummary
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:    make(map[string]*models.TrainingJob),
		reports: make(map[string]*models.TestReport),
		runs:    make(map[string]*models.RunSummary),
	}
}

// SaveJob inserts or replaces a job. A detached copy is stored so a job
// still being driven by its stage machine can be read back safely.
func (s *MemoryStore) SaveJob(job *models.TrainingJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job.Clone()
	return nil
}

// GetJob retrieves a job by ID
func (s *MemoryStore) GetJob(id string) (*models.TrainingJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// ListJobs returns all jobs, newest first
func (s *MemoryStore) ListJobs() []*models.TrainingJob {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]*models.TrainingJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs
}

// SaveReport archives a compiled report
func (s *MemoryStore) SaveReport(report *models.TestReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[report.ID] = report
	return nil
}

// GetReport retrieves a report by ID
func (s *MemoryStore) GetReport(id string) (*models.TestReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report, ok := s.reports[id]
	if !ok {
		return nil, ErrReportNotFound
	}
	return report, nil
}

// ListReports returns all archived reports, newest first
func (s *MemoryStore) ListReports() []*models.TestReport {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reports := make([]*models.TestReport, 0, len(s.reports))
	for _, report := range s.reports {
		reports = append(reports, report)
	}
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].CompiledAt.After(reports[j].CompiledAt)
	})
	return reports
}

// SaveRun archives a run summary
func (s *MemoryStore) SaveRun(summary *models.RunSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[summary.ID] = summary
	return nil
}

// GetRun retrieves a run summary by ID
func (s *MemoryStore) GetRun(id string) (*models.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return run, nil
}

// ListRuns returns all run summaries, newest first
func (s *MemoryStore) ListRuns() []*models.RunSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]*models.RunSummary, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	return runs
}

// Close is a no-op for the in-memory store
func (s *MemoryStore) Close() error {
	return nil
}
