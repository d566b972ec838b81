package cooldown

import (
	"context"
	"math"
	"time"

	"github.com/psantana5/mlmon/pkg/logging"
	"github.com/psantana5/mlmon/pkg/models"
	"github.com/psantana5/mlmon/pkg/retry"
	"github.com/psantana5/mlmon/pkg/sampler"
)

// Outcome is the result of waiting for the system to settle
type Outcome string

const (
	// Settled means cpu and memory returned within tolerance of baseline
	Settled Outcome = "settled"
	// TimedOut means the timeout elapsed first. Not an error: the next
	// test proceeds but its baseline is flagged dirty.
	TimedOut Outcome = "timed_out"
)

// Coordinator gates sequential test execution: it captures the baseline
// snapshot before a test and waits for metrics to return near that
// baseline afterwards.
type Coordinator struct {
	sampler      sampler.Sampler
	pollInterval time.Duration
	logger       *logging.Logger
}

// New creates a coordinator polling every pollInterval during cooldown
func New(s sampler.Sampler, pollInterval time.Duration, logger *logging.Logger) *Coordinator {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Coordinator{
		sampler:      s,
		pollInterval: pollInterval,
		logger:       logger.WithField("component", "cooldown"),
	}
}

// CaptureBaseline samples the host for use as the test's zero point.
// Sampling failures are transient, so capture retries with backoff before
// giving up.
func (c *Coordinator) CaptureBaseline(ctx context.Context) (*models.BaselineRecord, error) {
	var snap models.MetricSnapshot
	err := retry.Do(ctx, retry.DefaultConfig(), func() error {
		var sampleErr error
		snap, sampleErr = c.sampler.Sample(ctx)
		return sampleErr
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("baseline captured", map[string]interface{}{
		"cpu_percent":    snap.CPUPercent,
		"memory_percent": snap.MemoryPercent,
		"memory_used_mb": snap.MemoryUsedMB,
	})
	return &models.BaselineRecord{Snapshot: snap, CapturedAt: time.Now()}, nil
}

// AwaitCooldown polls until both cpu_percent and memory_percent are
// simultaneously within tolerance of the baseline, or until timeout.
// Transient sampling failures skip that poll. A TimedOut outcome is an
// annotation, never an error.
func (c *Coordinator) AwaitCooldown(ctx context.Context, baseline *models.BaselineRecord, tolerance float64, timeout time.Duration) Outcome {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		snap, err := c.sampler.Sample(ctx)
		if err == nil && withinTolerance(snap, baseline.Snapshot, tolerance) {
			c.logger.Info("system settled to baseline", map[string]interface{}{
				"cpu_percent":    snap.CPUPercent,
				"memory_percent": snap.MemoryPercent,
			})
			return Settled
		}
		if err != nil {
			c.logger.Warn("cooldown sample failed, retrying next poll", map[string]interface{}{"error": err.Error()})
		}

		if time.Now().After(deadline) {
			c.logger.Warn("cooldown timed out", map[string]interface{}{"timeout": timeout.String()})
			return TimedOut
		}

		select {
		case <-ctx.Done():
			return TimedOut
		case <-ticker.C:
		}
	}
}

// withinTolerance checks both gating metrics at once
func withinTolerance(current, baseline models.MetricSnapshot, tolerance float64) bool {
	return math.Abs(current.CPUPercent-baseline.CPUPercent) <= tolerance &&
		math.Abs(current.MemoryPercent-baseline.MemoryPercent) <= tolerance
}
