package cooldown

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/psantana5/mlmon/pkg/logging"
	"github.com/psantana5/mlmon/pkg/models"
	"github.com/psantana5/mlmon/pkg/sampler"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.ERROR, false)
}

// sequenceSampler replays a fixed series of readings, repeating the last
type sequenceSampler struct {
	mu       sync.Mutex
	readings []models.MetricSnapshot
	errs     []error
	pos      int
}

func (s *sequenceSampler) Sample(ctx context.Context) (models.MetricSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.pos
	if i >= len(s.readings) {
		i = len(s.readings) - 1
	}
	s.pos++

	if i < len(s.errs) && s.errs[i] != nil {
		return models.MetricSnapshot{}, s.errs[i]
	}
	return s.readings[i], nil
}

func snap(cpu, mem float64) models.MetricSnapshot {
	return models.MetricSnapshot{
		Timestamp:     time.Now(),
		CPUPercent:    cpu,
		MemoryPercent: mem,
		MemoryUsedMB:  1024,
		DiskPercent:   50,
		ProcessCount:  100,
	}
}

func TestCaptureBaseline(t *testing.T) {
	s := &sequenceSampler{readings: []models.MetricSnapshot{snap(10, 40)}}
	c := New(s, time.Millisecond, testLogger())

	baseline, err := c.CaptureBaseline(context.Background())
	if err != nil {
		t.Fatalf("CaptureBaseline() error = %v", err)
	}
	if baseline.Snapshot.CPUPercent != 10 {
		t.Errorf("baseline cpu = %v, want 10", baseline.Snapshot.CPUPercent)
	}
	if baseline.CapturedAt.IsZero() {
		t.Error("baseline must record capture time")
	}
}

func TestCaptureBaselineRetriesTransientFailure(t *testing.T) {
	s := &sequenceSampler{
		readings: []models.MetricSnapshot{{}, snap(10, 40)},
		errs:     []error{sampler.ErrSamplingUnavailable, nil},
	}
	c := New(s, time.Millisecond, testLogger())

	baseline, err := c.CaptureBaseline(context.Background())
	if err != nil {
		t.Fatalf("CaptureBaseline() error = %v", err)
	}
	if baseline.Snapshot.CPUPercent != 10 {
		t.Errorf("baseline cpu = %v, want 10", baseline.Snapshot.CPUPercent)
	}
}

func TestAwaitCooldownSettles(t *testing.T) {
	// Load decays back toward baseline over successive polls
	s := &sequenceSampler{readings: []models.MetricSnapshot{
		snap(80, 70),
		snap(40, 55),
		snap(12, 42),
	}}
	c := New(s, time.Millisecond, testLogger())

	baseline := &models.BaselineRecord{Snapshot: snap(10, 40), CapturedAt: time.Now()}
	outcome := c.AwaitCooldown(context.Background(), baseline, 5.0, time.Second)
	if outcome != Settled {
		t.Errorf("outcome = %v, want %v", outcome, Settled)
	}
}

func TestAwaitCooldownNeverSettlesOutsideTolerance(t *testing.T) {
	// Memory stays 6 points above baseline: cpu alone is not enough
	s := &sequenceSampler{readings: []models.MetricSnapshot{snap(10, 46)}}
	c := New(s, time.Millisecond, testLogger())

	baseline := &models.BaselineRecord{Snapshot: snap(10, 40), CapturedAt: time.Now()}
	outcome := c.AwaitCooldown(context.Background(), baseline, 5.0, 20*time.Millisecond)
	if outcome != TimedOut {
		t.Errorf("outcome = %v, want %v", outcome, TimedOut)
	}
}

func TestAwaitCooldownTwoSidedTolerance(t *testing.T) {
	// A reading below baseline by more than tolerance is also not settled
	s := &sequenceSampler{readings: []models.MetricSnapshot{
		snap(1, 40), // 9 points below baseline cpu
		snap(8, 40), // within tolerance both sides
	}}
	c := New(s, time.Millisecond, testLogger())

	baseline := &models.BaselineRecord{Snapshot: snap(10, 40), CapturedAt: time.Now()}
	outcome := c.AwaitCooldown(context.Background(), baseline, 5.0, time.Second)
	if outcome != Settled {
		t.Fatalf("outcome = %v, want %v", outcome, Settled)
	}
	// First reading must have been rejected, so two polls happened
	if s.pos < 2 {
		t.Errorf("settled after %d polls, want at least 2", s.pos)
	}
}

func TestAwaitCooldownSkipsSamplingErrors(t *testing.T) {
	s := &sequenceSampler{
		readings: []models.MetricSnapshot{{}, snap(11, 41)},
		errs:     []error{sampler.ErrSamplingUnavailable, nil},
	}
	c := New(s, time.Millisecond, testLogger())

	baseline := &models.BaselineRecord{Snapshot: snap(10, 40), CapturedAt: time.Now()}
	outcome := c.AwaitCooldown(context.Background(), baseline, 5.0, time.Second)
	if outcome != Settled {
		t.Errorf("outcome = %v, want %v", outcome, Settled)
	}
}

func TestAwaitCooldownContextCancel(t *testing.T) {
	s := &sequenceSampler{readings: []models.MetricSnapshot{snap(90, 90)}}
	c := New(s, 5*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	baseline := &models.BaselineRecord{Snapshot: snap(10, 40), CapturedAt: time.Now()}
	outcome := c.AwaitCooldown(ctx, baseline, 5.0, time.Minute)
	if outcome != TimedOut {
		t.Errorf("outcome = %v, want %v", outcome, TimedOut)
	}
}
