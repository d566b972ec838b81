package models

import (
	"time"

	"github.com/google/uuid"
)

// FailureReason classifies why a job reached StageFailed
type FailureReason string

const (
	FailureWorkError    FailureReason = "work_error"    // Stage work function returned an error
	FailureStageTimeout FailureReason = "stage_timeout" // Stage exceeded its time ceiling
	FailureCanceled     FailureReason = "canceled"      // Externally aborted
)

// DatasetDescriptor identifies an input dataset by shape and size.
// The core never parses dataset content, only reads these attributes.
type DatasetDescriptor struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Rows      int    `json:"rows"`
	Columns   int    `json:"columns"`
	SizeBytes int64  `json:"size_bytes"`
}

// JobResult is the outcome reported by the training work provider.
// Absent (nil on TrainingJob) while the job is running or after failure.
type JobResult struct {
	Accuracy      float64 `json:"accuracy"`
	RowsProcessed int     `json:"rows_processed"`
}

// StageRecord tracks one stage's entry and exit timestamps
type StageRecord struct {
	Stage     TrainingStage `json:"stage"`
	EnteredAt time.Time     `json:"entered_at"`
	ExitedAt  *time.Time    `json:"exited_at,omitempty"`
}

// TrainingJob represents one run of the training pipeline. It is owned
// exclusively by the stage machine that created it; every other component
// treats it as read-only.
type TrainingJob struct {
	ID            string            `json:"id"`
	Dataset       DatasetDescriptor `json:"dataset"`
	CurrentStage  TrainingStage     `json:"current_stage"`
	StageHistory  []StageRecord     `json:"stage_history"`
	Result        *JobResult        `json:"result,omitempty"`
	FailureReason FailureReason     `json:"failure_reason,omitempty"`
	Error         string            `json:"error,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty"`
}

// NewTrainingJob creates a job positioned at the initial stage
func NewTrainingJob(ds DatasetDescriptor) *TrainingJob {
	return &TrainingJob{
		ID:           uuid.New().String(),
		Dataset:      ds,
		CurrentStage: StageUploading,
		CreatedAt:    time.Now(),
	}
}

// Clone returns a deep copy of the job. Stores and API handlers read
// clones so the stage machine can keep mutating the original.
func (j *TrainingJob) Clone() *TrainingJob {
	out := *j
	if len(j.StageHistory) > 0 {
		out.StageHistory = make([]StageRecord, len(j.StageHistory))
		for i, rec := range j.StageHistory {
			if rec.ExitedAt != nil {
				exited := *rec.ExitedAt
				rec.ExitedAt = &exited
			}
			out.StageHistory[i] = rec
		}
	}
	if j.Result != nil {
		result := *j.Result
		out.Result = &result
	}
	if j.CompletedAt != nil {
		completed := *j.CompletedAt
		out.CompletedAt = &completed
	}
	return &out
}

// StageRecordFor returns the history record for a stage, if the job
// entered it.
func (j *TrainingJob) StageRecordFor(stage TrainingStage) (StageRecord, bool) {
	for _, rec := range j.StageHistory {
		if rec.Stage == stage {
			return rec, true
		}
	}
	return StageRecord{}, false
}

// TrainingDuration returns how long the job spent in StageTraining,
// or zero if the stage was never entered or never exited.
func (j *TrainingJob) TrainingDuration() time.Duration {
	rec, ok := j.StageRecordFor(StageTraining)
	if !ok || rec.ExitedAt == nil {
		return 0
	}
	return rec.ExitedAt.Sub(rec.EnteredAt)
}

// Terminal reports whether the job reached a terminal stage
func (j *TrainingJob) Terminal() bool {
	return IsTerminalStage(j.CurrentStage)
}
