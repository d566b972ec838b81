package loadtest

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/psantana5/mlmon/pkg/cooldown"
	"github.com/psantana5/mlmon/pkg/hub"
	"github.com/psantana5/mlmon/pkg/logging"
	"github.com/psantana5/mlmon/pkg/models"
	"github.com/psantana5/mlmon/pkg/pipeline"
	"github.com/psantana5/mlmon/pkg/report"
)

// Config tunes one sequential load-test run
type Config struct {
	// StageTimeout is the per-stage ceiling applied to each job
	StageTimeout time.Duration
	// CooldownTolerance is the allowed distance from baseline, in
	// percentage points, on cpu and memory simultaneously
	CooldownTolerance float64
	// CooldownTimeout bounds the wait between consecutive tests
	CooldownTimeout time.Duration
}

// DefaultConfig mirrors the operational defaults: 5 point tolerance and
// a 30 second cooldown ceiling.
func DefaultConfig() Config {
	return Config{
		StageTimeout:      2 * time.Minute,
		CooldownTolerance: 5.0,
		CooldownTimeout:   30 * time.Second,
	}
}

// Orchestrator runs datasets through the training pipeline one at a
// time, measuring each against a fresh baseline. Tests never overlap:
// the next baseline is captured only after the previous test's cooldown
// settles or times out.
type Orchestrator struct {
	hub      *hub.Hub
	cooldown *cooldown.Coordinator
	provider pipeline.Provider
	config   Config
	logger   *logging.Logger
}

// NewOrchestrator wires a run against an already started hub
func NewOrchestrator(h *hub.Hub, c *cooldown.Coordinator, provider pipeline.Provider, config Config, logger *logging.Logger) *Orchestrator {
	return &Orchestrator{
		hub:      h,
		cooldown: c,
		provider: provider,
		config:   config,
		logger:   logger.WithField("component", "loadtest"),
	}
}

// Run executes every dataset in order and returns the aggregated
// summary. A failed job produces a report and the run continues; only
// baseline capture failure or cancellation aborts the run.
func (o *Orchestrator) Run(ctx context.Context, datasets []models.DatasetDescriptor) (*models.RunSummary, error) {
	summary := &models.RunSummary{
		ID:        uuid.New().String(),
		StartedAt: time.Now(),
	}

	var jobs []*models.TrainingJob
	dirtyBaseline := false

	for i, ds := range datasets {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		o.logger.Info("starting test", map[string]interface{}{
			"dataset": ds.ID,
			"rows":    ds.Rows,
		})

		baseline, err := o.cooldown.CaptureBaseline(ctx)
		if err != nil {
			return nil, err
		}

		job, rep := o.runOne(ctx, baseline, ds)
		rep.DirtyBaseline = dirtyBaseline
		summary.Reports = append(summary.Reports, *rep)
		jobs = append(jobs, job)

		// Cooldown gates the next test; nothing follows the last one
		dirtyBaseline = false
		if i < len(datasets)-1 {
			outcome := o.cooldown.AwaitCooldown(ctx, baseline, o.config.CooldownTolerance, o.config.CooldownTimeout)
			if outcome == cooldown.TimedOut {
				dirtyBaseline = true
			}
		}
	}

	summary.FinishedAt = time.Now()

	verifier := report.Verifier{Interval: o.hub.Interval()}
	verifier.VerifyRun(summary, jobs)

	o.logger.Info("run finished", map[string]interface{}{
		"run_id":     summary.ID,
		"reports":    len(summary.Reports),
		"passed":     summary.Passed,
		"violations": len(summary.Violations),
	})
	return summary, nil
}

// runOne executes a single dataset test: subscribe a collector, drive
// the job to a terminal stage, force a final broadcast, then compile.
func (o *Orchestrator) runOne(ctx context.Context, baseline *models.BaselineRecord, ds models.DatasetDescriptor) (*models.TrainingJob, *models.TestReport) {
	collector := NewCollector()
	handle := o.hub.Subscribe(collector)

	job := models.NewTrainingJob(ds)
	machine := pipeline.NewMachine(job, o.provider, o.hub, o.config.StageTimeout, o.logger)

	done := make(chan error, 1)
	go func() {
		done <- machine.Run(ctx)
	}()
	runErr := <-done

	// One forced sample so jobs shorter than a tick still measure
	o.hub.BroadcastNow(ctx)
	o.hub.Unsubscribe(handle)
	collector.Close()

	if runErr != nil {
		o.logger.Warn("job failed, continuing run", map[string]interface{}{
			"job_id": job.ID,
			"error":  runErr.Error(),
		})
	}

	rep, err := report.Compile(baseline, collector.Snapshots(), job)
	if err != nil {
		if !errors.Is(err, report.ErrInsufficientSamples) {
			o.logger.Error("report compilation failed", map[string]interface{}{"error": err.Error()})
		}
		rep = report.DegradedReport(baseline, job, err)
	}
	return job, rep
}
