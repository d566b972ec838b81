package report

import (
	"errors"
	"time"

	"github.com/psantana5/mlmon/pkg/models"
)

// ErrInsufficientSamples means no snapshot was captured for the test
// window. Compile cannot produce peaks or deltas without at least one.
var ErrInsufficientSamples = errors.New("no samples captured during test window")

// Compile builds a TestReport from the baseline, the samples collected
// during the test window, and the finished job. It is a pure function of
// its inputs: same inputs, same report. The ID derives from the job and
// the timestamp from the job's own terminal time.
func Compile(baseline *models.BaselineRecord, samples []models.MetricSnapshot, job *models.TrainingJob) (*models.TestReport, error) {
	if len(samples) == 0 {
		return nil, ErrInsufficientSamples
	}

	report := &models.TestReport{
		ID:         reportID(job),
		Dataset:    job.Dataset,
		Baseline:   baseline.Snapshot,
		Samples:    samples,
		CompiledAt: compiledAt(job, samples),
	}

	for _, s := range samples {
		if s.CPUPercent > report.PeakCPU {
			report.PeakCPU = s.CPUPercent
		}
		if s.MemoryPercent > report.PeakMemory {
			report.PeakMemory = s.MemoryPercent
		}
	}

	last := samples[len(samples)-1]
	report.MemoryDeltaMB = last.MemoryUsedMB - baseline.Snapshot.MemoryUsedMB
	report.CPUDeltaPercent = report.PeakCPU - baseline.Snapshot.CPUPercent
	report.TrainingDuration = job.TrainingDuration()

	if job.CurrentStage == models.StageFailed {
		report.JobFailed = true
		report.FailureReason = job.FailureReason
		report.Error = job.Error
	} else {
		report.JobResult = job.Result
	}

	return report, nil
}

// DegradedReport builds the placeholder report recorded when a test
// yielded no usable samples. It carries the job outcome but no resource
// measurements.
func DegradedReport(baseline *models.BaselineRecord, job *models.TrainingJob, cause error) *models.TestReport {
	report := &models.TestReport{
		ID:         reportID(job),
		Dataset:    job.Dataset,
		Baseline:   baseline.Snapshot,
		Degraded:   true,
		Error:      cause.Error(),
		CompiledAt: compiledAt(job, nil),
	}
	report.TrainingDuration = job.TrainingDuration()
	if job.CurrentStage == models.StageFailed {
		report.JobFailed = true
		report.FailureReason = job.FailureReason
	} else {
		report.JobResult = job.Result
	}
	return report
}

// reportID names the report after its job; each job compiles to at most
// one report.
func reportID(job *models.TrainingJob) string {
	return "report-" + job.ID
}

// compiledAt derives the report timestamp from its inputs so compilation
// stays reproducible.
func compiledAt(job *models.TrainingJob, samples []models.MetricSnapshot) time.Time {
	if job.CompletedAt != nil {
		return *job.CompletedAt
	}
	if n := len(samples); n > 0 {
		return samples[n-1].Timestamp
	}
	return job.CreatedAt
}
