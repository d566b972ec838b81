package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/psantana5/mlmon/pkg/logging"
	"github.com/psantana5/mlmon/pkg/models"
)

// EventSink receives lifecycle events as they happen. The broadcast hub
// implements this; tests substitute an in-memory sink.
type EventSink interface {
	Publish(ev models.Event)
}

// Machine drives one training job through the linear stage progression.
// It sequences stages, timestamps entry and exit, and emits exactly one
// lifecycle event per transition. Stage work lives in the Provider; the
// machine assumes nothing about stage durations.
type Machine struct {
	provider     Provider
	events       EventSink
	stageTimeout time.Duration
	logger       *logging.Logger

	mu  sync.Mutex
	job *models.TrainingJob
}

// NewMachine creates a stage machine owning job. stageTimeout is the
// ceiling for any single stage; zero disables it.
func NewMachine(job *models.TrainingJob, provider Provider, events EventSink, stageTimeout time.Duration, logger *logging.Logger) *Machine {
	return &Machine{
		provider:     provider,
		events:       events,
		stageTimeout: stageTimeout,
		logger:       logger.WithField("job_id", job.ID),
		job:          job,
	}
}

// Job returns the job owned by this machine. Callers must treat it as
// read-only; it is only safe to inspect freely once Run has returned.
func (m *Machine) Job() *models.TrainingJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.job
}

// JobSnapshot returns a deep copy of the job taken under the machine's
// lock. Safe to call from other goroutines, and from event sinks, while
// the job is still running.
func (m *Machine) JobSnapshot() *models.TrainingJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.job.Clone()
}

// Run executes every work stage in order and blocks until the job reaches
// a terminal stage. Returns nil on completion and the causing error on
// failure; the job itself always ends terminal.
func (m *Machine) Run(ctx context.Context) error {
	for _, stage := range models.WorkStages() {
		if err := m.enter(stage); err != nil {
			// Broken progression is a programming error, not a work error
			m.fail(models.FailureWorkError, err)
			return err
		}

		if err := m.runStage(ctx, stage); err != nil {
			reason := classifyFailure(ctx, err)
			m.exit(stage)
			m.fail(reason, err)
			return err
		}

		m.exit(stage)
	}

	result := m.provider.Result(m.job.Dataset)
	m.complete(&result)
	return nil
}

// runStage invokes the provider under the per-stage ceiling
func (m *Machine) runStage(ctx context.Context, stage models.TrainingStage) error {
	stageCtx := ctx
	if m.stageTimeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, m.stageTimeout)
		defer cancel()
	}

	if err := m.provider.RunStage(stageCtx, stage, m.job.Dataset); err != nil {
		if errors.Is(stageCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("stage %s exceeded %v ceiling: %w", stage, m.stageTimeout, err)
		}
		return err
	}
	return nil
}

// enter transitions the job into stage and emits stage_entered.
// Publishing happens outside the lock so sinks may take a job snapshot.
func (m *Machine) enter(stage models.TrainingStage) error {
	m.mu.Lock()
	if m.job.CurrentStage != stage {
		if err := models.ValidateTransition(m.job.CurrentStage, stage); err != nil {
			m.mu.Unlock()
			return err
		}
		m.job.CurrentStage = stage
	}

	now := time.Now()
	m.job.StageHistory = append(m.job.StageHistory, models.StageRecord{
		Stage:     stage,
		EnteredAt: now,
	})
	jobID := m.job.ID
	m.mu.Unlock()

	m.logger.Debug("stage entered", map[string]interface{}{"stage": string(stage)})
	m.events.Publish(models.Event{
		Type:      models.EventStageEntered,
		JobID:     jobID,
		Stage:     stage,
		Timestamp: now,
	})
	return nil
}

// exit stamps the current stage record and emits stage_exited
func (m *Machine) exit(stage models.TrainingStage) {
	m.mu.Lock()
	now := time.Now()
	for i := len(m.job.StageHistory) - 1; i >= 0; i-- {
		if m.job.StageHistory[i].Stage == stage && m.job.StageHistory[i].ExitedAt == nil {
			m.job.StageHistory[i].ExitedAt = &now
			break
		}
	}
	jobID := m.job.ID
	m.mu.Unlock()

	m.events.Publish(models.Event{
		Type:      models.EventStageExited,
		JobID:     jobID,
		Stage:     stage,
		Timestamp: now,
	})
}

// complete moves the job to StageComplete with its result
func (m *Machine) complete(result *models.JobResult) {
	m.mu.Lock()
	now := time.Now()
	m.job.CurrentStage = models.StageComplete
	m.job.Result = result
	m.job.CompletedAt = &now
	jobID := m.job.ID
	m.mu.Unlock()

	m.logger.Info("job completed", map[string]interface{}{
		"accuracy": result.Accuracy,
		"rows":     result.RowsProcessed,
	})
	m.events.Publish(models.Event{
		Type:      models.EventJobCompleted,
		JobID:     jobID,
		Stage:     models.StageComplete,
		Timestamp: now,
		Result:    result,
	})
}

// fail moves the job to StageFailed. No further stages execute and the
// job result stays absent.
func (m *Machine) fail(reason models.FailureReason, cause error) {
	m.mu.Lock()
	if models.IsTerminalStage(m.job.CurrentStage) {
		m.mu.Unlock()
		return
	}

	now := time.Now()
	m.job.CurrentStage = models.StageFailed
	m.job.FailureReason = reason
	m.job.Error = cause.Error()
	m.job.CompletedAt = &now
	jobID := m.job.ID
	m.mu.Unlock()

	m.logger.Warn("job failed", map[string]interface{}{
		"reason": string(reason),
		"error":  cause.Error(),
	})
	m.events.Publish(models.Event{
		Type:      models.EventJobFailed,
		JobID:     jobID,
		Stage:     models.StageFailed,
		Timestamp: now,
		Reason:    string(reason),
	})
}

// classifyFailure maps a stage error to its failure reason
func classifyFailure(ctx context.Context, err error) models.FailureReason {
	switch {
	case ctx.Err() != nil:
		return models.FailureCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return models.FailureStageTimeout
	default:
		return models.FailureWorkError
	}
}
