package report

import (
	"fmt"
	"time"

	"github.com/psantana5/mlmon/pkg/models"
)

// Verifier checks that a report describes genuine measurement rather
// than fabricated or replayed data. Interval is the broadcast tick the
// samples were captured under.
type Verifier struct {
	Interval time.Duration
}

// Verify returns every violation found in the report. An empty slice
// means the report passes.
func (v Verifier) Verify(r *models.TestReport) []string {
	var violations []string

	if r.Degraded {
		// Degraded reports declare themselves unusable; nothing to verify
		return violations
	}

	if len(r.Samples) == 0 {
		violations = append(violations, fmt.Sprintf("report %s: no samples", r.ID))
		return violations
	}

	if v.Interval > 0 && r.TrainingDuration >= v.Interval {
		expected := int((r.TrainingDuration + v.Interval - 1) / v.Interval)
		if len(r.Samples) < expected {
			violations = append(violations, fmt.Sprintf(
				"report %s: %d samples for %v of training at %v interval, expected at least %d",
				r.ID, len(r.Samples), r.TrainingDuration, v.Interval, expected))
		}
	}

	for i := 1; i < len(r.Samples); i++ {
		if !r.Samples[i].Timestamp.After(r.Samples[i-1].Timestamp) {
			violations = append(violations, fmt.Sprintf(
				"report %s: sample %d timestamp not after sample %d", r.ID, i, i-1))
		}
	}

	for i, s := range r.Samples {
		if !s.Valid() {
			violations = append(violations, fmt.Sprintf(
				"report %s: sample %d outside valid ranges", r.ID, i))
		}
	}

	return violations
}

// VerifyJob checks the stage history of a finished job: stages must
// appear in pipeline order with no repeats and no gaps, every exited
// stage stamped, and entry times strictly increasing.
func (v Verifier) VerifyJob(job *models.TrainingJob) []string {
	var violations []string

	prevIndex := -1
	var prevEntered time.Time
	for i, rec := range job.StageHistory {
		idx := models.StageIndex(rec.Stage)
		if idx < 0 {
			violations = append(violations, fmt.Sprintf(
				"job %s: history holds non-work stage %s", job.ID, rec.Stage))
			continue
		}
		if idx != prevIndex+1 {
			violations = append(violations, fmt.Sprintf(
				"job %s: stage %s out of order at position %d", job.ID, rec.Stage, i))
		}
		if i > 0 && !rec.EnteredAt.After(prevEntered) {
			violations = append(violations, fmt.Sprintf(
				"job %s: stage %s entry time not after previous stage", job.ID, rec.Stage))
		}
		if rec.ExitedAt != nil && rec.ExitedAt.Before(rec.EnteredAt) {
			violations = append(violations, fmt.Sprintf(
				"job %s: stage %s exited before it was entered", job.ID, rec.Stage))
		}
		prevIndex = idx
		prevEntered = rec.EnteredAt
	}

	if job.CurrentStage == models.StageComplete {
		want := len(models.WorkStages())
		if len(job.StageHistory) != want {
			violations = append(violations, fmt.Sprintf(
				"job %s: completed with %d stage records, expected %d",
				job.ID, len(job.StageHistory), want))
		}
		for _, rec := range job.StageHistory {
			if rec.ExitedAt == nil {
				violations = append(violations, fmt.Sprintf(
					"job %s: completed but stage %s never exited", job.ID, rec.Stage))
			}
		}
	}

	return violations
}

// VerifyRun applies the per-report and per-job checks across a whole run
// and fills in the summary verdict.
func (v Verifier) VerifyRun(summary *models.RunSummary, jobs []*models.TrainingJob) {
	var violations []string
	for i := range summary.Reports {
		violations = append(violations, v.Verify(&summary.Reports[i])...)
	}
	for _, job := range jobs {
		violations = append(violations, v.VerifyJob(job)...)
	}
	summary.Violations = violations
	summary.Passed = len(violations) == 0
}
