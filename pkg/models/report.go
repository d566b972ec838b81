package models

import (
	"time"
)

// BaselineRecord is the zero-point snapshot captured before a test starts
type BaselineRecord struct {
	Snapshot   MetricSnapshot `json:"snapshot"`
	CapturedAt time.Time      `json:"captured_at"`
}

// TestReport is the compiled outcome of one load test. Immutable once
// produced; owned by whoever requested the test.
type TestReport struct {
	ID               string            `json:"id"`
	Dataset          DatasetDescriptor `json:"dataset"`
	Baseline         MetricSnapshot    `json:"baseline"`
	Samples          []MetricSnapshot  `json:"samples"`
	PeakCPU          float64           `json:"peak_cpu"`
	PeakMemory       float64           `json:"peak_memory"`
	MemoryDeltaMB    float64           `json:"memory_delta_mb"`
	CPUDeltaPercent  float64           `json:"cpu_delta_percent"`
	TrainingDuration time.Duration     `json:"training_duration_ns"`
	JobResult        *JobResult        `json:"job_result,omitempty"`
	JobFailed        bool              `json:"job_failed"`
	FailureReason    FailureReason     `json:"failure_reason,omitempty"`

	// DirtyBaseline marks a baseline captured after a cooldown that timed
	// out, so deltas against it must be read with suspicion.
	DirtyBaseline bool `json:"dirty_baseline,omitempty"`

	// Degraded marks a report compiled without usable samples
	Degraded bool   `json:"degraded,omitempty"`
	Error    string `json:"error,omitempty"`

	CompiledAt time.Time `json:"compiled_at"`
}

// RunSummary aggregates the reports of one sequential load-test run.
// Reports keep the order of the input dataset list.
type RunSummary struct {
	ID         string       `json:"id"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Reports    []TestReport `json:"reports"`

	// Passed is the verdict of the measurement-authenticity checks
	Passed     bool     `json:"passed"`
	Violations []string `json:"violations,omitempty"`
}
