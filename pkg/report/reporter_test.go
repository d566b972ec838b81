package report

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/psantana5/mlmon/pkg/models"
)

func baseline(cpu, mem, usedMB float64) *models.BaselineRecord {
	return &models.BaselineRecord{
		Snapshot: models.MetricSnapshot{
			Timestamp:     time.Now().Add(-time.Minute),
			CPUPercent:    cpu,
			MemoryPercent: mem,
			MemoryUsedMB:  usedMB,
			DiskPercent:   50,
			ProcessCount:  100,
		},
		CapturedAt: time.Now().Add(-time.Minute),
	}
}

func sampleAt(offset time.Duration, cpu, mem, usedMB float64) models.MetricSnapshot {
	return models.MetricSnapshot{
		Timestamp:     time.Now().Add(offset),
		CPUPercent:    cpu,
		MemoryPercent: mem,
		MemoryUsedMB:  usedMB,
		DiskPercent:   50,
		ProcessCount:  100,
	}
}

func completedJob(t *testing.T) *models.TrainingJob {
	t.Helper()
	job := models.NewTrainingJob(models.DatasetDescriptor{ID: "ds-1", Name: "iris", Rows: 150})

	entered := time.Now().Add(-10 * time.Second)
	for _, stage := range models.WorkStages() {
		exited := entered.Add(2 * time.Second)
		job.StageHistory = append(job.StageHistory, models.StageRecord{
			Stage:     stage,
			EnteredAt: entered,
			ExitedAt:  &exited,
		})
		entered = exited
	}
	job.CurrentStage = models.StageComplete
	job.Result = &models.JobResult{Accuracy: 0.91, RowsProcessed: 150}
	now := time.Now()
	job.CompletedAt = &now
	return job
}

func TestCompilePeaksAndDeltas(t *testing.T) {
	base := baseline(10, 40, 1000)
	samples := []models.MetricSnapshot{
		sampleAt(-3*time.Second, 35, 45, 1100),
		sampleAt(-2*time.Second, 80, 55, 1300),
		sampleAt(-1*time.Second, 60, 50, 1250),
	}
	job := completedJob(t)

	rep, err := Compile(base, samples, job)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	if rep.PeakCPU != 80 {
		t.Errorf("PeakCPU = %v, want 80", rep.PeakCPU)
	}
	if rep.PeakMemory != 55 {
		t.Errorf("PeakMemory = %v, want 55", rep.PeakMemory)
	}
	// Memory delta uses the final sample, not the peak
	if rep.MemoryDeltaMB != 250 {
		t.Errorf("MemoryDeltaMB = %v, want 250", rep.MemoryDeltaMB)
	}
	if rep.CPUDeltaPercent != 70 {
		t.Errorf("CPUDeltaPercent = %v, want 70", rep.CPUDeltaPercent)
	}
	if rep.TrainingDuration != 2*time.Second {
		t.Errorf("TrainingDuration = %v, want 2s", rep.TrainingDuration)
	}
	if rep.JobFailed {
		t.Error("completed job must not be marked failed")
	}
	if rep.JobResult == nil || rep.JobResult.Accuracy != 0.91 {
		t.Errorf("JobResult = %+v, want accuracy 0.91", rep.JobResult)
	}
}

func TestCompileDeterministic(t *testing.T) {
	base := baseline(10, 40, 1000)
	samples := []models.MetricSnapshot{
		sampleAt(-2*time.Second, 35, 45, 1100),
		sampleAt(-1*time.Second, 80, 55, 1300),
	}
	job := completedJob(t)

	first, err := Compile(base, samples, job)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	second, err := Compile(base, samples, job)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	// Identical inputs yield identical reports, ID and timestamp included
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Compile not deterministic:\nfirst  = %+v\nsecond = %+v", first, second)
	}
	if first.ID != "report-"+job.ID {
		t.Errorf("report ID = %q, want one derived from the job", first.ID)
	}
	if !first.CompiledAt.Equal(*job.CompletedAt) {
		t.Errorf("CompiledAt = %v, want the job completion time", first.CompiledAt)
	}
}

func TestCompileNoSamples(t *testing.T) {
	_, err := Compile(baseline(10, 40, 1000), nil, completedJob(t))
	if !errors.Is(err, ErrInsufficientSamples) {
		t.Errorf("Compile() error = %v, want ErrInsufficientSamples", err)
	}
}

func TestCompileFailedJob(t *testing.T) {
	job := models.NewTrainingJob(models.DatasetDescriptor{ID: "bad", Name: "bad", Rows: 10})
	job.CurrentStage = models.StageFailed
	job.FailureReason = models.FailureWorkError
	job.Error = "label column missing"

	rep, err := Compile(baseline(10, 40, 1000), []models.MetricSnapshot{sampleAt(0, 20, 42, 1010)}, job)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	if !rep.JobFailed {
		t.Error("failed job must be marked failed in the report")
	}
	if rep.FailureReason != models.FailureWorkError {
		t.Errorf("FailureReason = %v, want %v", rep.FailureReason, models.FailureWorkError)
	}
	if rep.JobResult != nil {
		t.Error("failed job must not carry a result")
	}
}

func TestDegradedReport(t *testing.T) {
	job := completedJob(t)
	rep := DegradedReport(baseline(10, 40, 1000), job, ErrInsufficientSamples)

	if !rep.Degraded {
		t.Error("report must be marked degraded")
	}
	if rep.Error == "" {
		t.Error("degraded report must record its cause")
	}
	if rep.JobResult == nil {
		t.Error("degraded report still carries the job outcome")
	}
}

func TestVerifierPassesCleanReport(t *testing.T) {
	base := baseline(10, 40, 1000)
	samples := []models.MetricSnapshot{
		sampleAt(-3*time.Second, 35, 45, 1100),
		sampleAt(-2*time.Second, 80, 55, 1300),
		sampleAt(-1*time.Second, 60, 50, 1250),
	}
	rep, err := Compile(base, samples, completedJob(t))
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	v := Verifier{Interval: time.Second}
	if violations := v.Verify(rep); len(violations) != 0 {
		t.Errorf("Verify() = %v, want none", violations)
	}
}

func TestVerifierFlagsTooFewSamples(t *testing.T) {
	base := baseline(10, 40, 1000)
	// Training ran 2s at a 1s interval but only one sample exists
	rep, err := Compile(base, []models.MetricSnapshot{sampleAt(0, 35, 45, 1100)}, completedJob(t))
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	v := Verifier{Interval: time.Second}
	if violations := v.Verify(rep); len(violations) == 0 {
		t.Error("Verify() passed a report with too few samples for its duration")
	}
}

func TestVerifierFlagsUnorderedTimestamps(t *testing.T) {
	base := baseline(10, 40, 1000)
	first := sampleAt(-1*time.Second, 35, 45, 1100)
	second := sampleAt(-2*time.Second, 40, 46, 1150) // earlier than first
	third := sampleAt(0, 42, 47, 1200)

	rep, err := Compile(base, []models.MetricSnapshot{first, second, third}, completedJob(t))
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	v := Verifier{Interval: time.Second}
	if violations := v.Verify(rep); len(violations) == 0 {
		t.Error("Verify() passed a report with unordered sample timestamps")
	}
}

func TestVerifierFlagsBrokenStageHistory(t *testing.T) {
	job := completedJob(t)
	// Swap two records to break the progression
	job.StageHistory[1], job.StageHistory[2] = job.StageHistory[2], job.StageHistory[1]

	v := Verifier{Interval: time.Second}
	if violations := v.VerifyJob(job); len(violations) == 0 {
		t.Error("VerifyJob() passed a job with out-of-order stage history")
	}
}

func TestVerifierSkipsDegradedReports(t *testing.T) {
	rep := DegradedReport(baseline(10, 40, 1000), completedJob(t), ErrInsufficientSamples)

	v := Verifier{Interval: time.Second}
	if violations := v.Verify(rep); len(violations) != 0 {
		t.Errorf("Verify() on degraded report = %v, want none", violations)
	}
}
