package pipeline

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/psantana5/mlmon/pkg/models"
)

// Provider supplies the work behind each non-terminal stage. The stage
// machine calls RunStage exactly once per job per stage and never assumes
// anything about how long a stage takes.
type Provider interface {
	RunStage(ctx context.Context, stage models.TrainingStage, ds models.DatasetDescriptor) error
	Result(ds models.DatasetDescriptor) models.JobResult
}

// FixedDelayProvider simulates stage work with a fixed delay per stage,
// independent of input size. Kept for demos and tests; production load
// tests use ScaledProvider so duration tracks dataset size.
type FixedDelayProvider struct {
	Delays map[models.TrainingStage]time.Duration
}

// DefaultStageDelays returns the toy per-stage delays
func DefaultStageDelays() map[models.TrainingStage]time.Duration {
	return map[models.TrainingStage]time.Duration{
		models.StageUploading:     1 * time.Second,
		models.StageValidating:    1 * time.Second,
		models.StagePreprocessing: 2 * time.Second,
		models.StageTraining:      3 * time.Second,
		models.StageEvaluating:    2 * time.Second,
	}
}

// RunStage sleeps for the stage's configured delay
func (p *FixedDelayProvider) RunStage(ctx context.Context, stage models.TrainingStage, ds models.DatasetDescriptor) error {
	return sleepCtx(ctx, p.Delays[stage])
}

// Result reports a simulated accuracy for the dataset
func (p *FixedDelayProvider) Result(ds models.DatasetDescriptor) models.JobResult {
	return simulatedResult(ds)
}

// ScaledProvider simulates stage work whose duration scales with dataset
// row count, so larger inputs measurably take longer.
type ScaledProvider struct {
	Base   time.Duration // Floor duration per stage
	PerRow time.Duration // Additional time per dataset row (training stage)
}

// RunStage sleeps proportionally to dataset size for compute-heavy stages
func (p *ScaledProvider) RunStage(ctx context.Context, stage models.TrainingStage, ds models.DatasetDescriptor) error {
	d := p.Base
	switch stage {
	case models.StageTraining:
		d += time.Duration(ds.Rows) * p.PerRow
	case models.StagePreprocessing, models.StageEvaluating:
		d += time.Duration(ds.Rows) * p.PerRow / 4
	}
	return sleepCtx(ctx, d)
}

// Result reports a simulated accuracy for the dataset
func (p *ScaledProvider) Result(ds models.DatasetDescriptor) models.JobResult {
	return simulatedResult(ds)
}

// simulatedResult derives a deterministic pseudo-accuracy from the dataset
// identity, in the 0.75-0.99 band the dashboard expects.
func simulatedResult(ds models.DatasetDescriptor) models.JobResult {
	h := fnv.New32a()
	h.Write([]byte(ds.ID))
	variance := float64(h.Sum32()%2000) / 10000 // [0, 0.20)
	accuracy := 0.75 + variance
	if accuracy > 0.99 {
		accuracy = 0.99
	}
	return models.JobResult{
		Accuracy:      accuracy,
		RowsProcessed: ds.Rows,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
