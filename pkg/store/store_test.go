package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/psantana5/mlmon/pkg/models"
)

// stores under test share one behavioral suite
func testStores(t *testing.T) map[string]Store {
	t.Helper()

	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func TestStoreJobs(t *testing.T) {
	for name, st := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			job := models.NewTrainingJob(models.DatasetDescriptor{ID: "ds-1", Name: "iris", Rows: 150})
			job.CurrentStage = models.StageComplete
			job.Result = &models.JobResult{Accuracy: 0.9, RowsProcessed: 150}

			if err := st.SaveJob(job); err != nil {
				t.Fatalf("SaveJob() error = %v", err)
			}

			got, err := st.GetJob(job.ID)
			if err != nil {
				t.Fatalf("GetJob() error = %v", err)
			}
			if got.ID != job.ID || got.CurrentStage != models.StageComplete {
				t.Errorf("GetJob() = %+v", got)
			}
			if got.Result == nil || got.Result.Accuracy != 0.9 {
				t.Errorf("result not preserved: %+v", got.Result)
			}

			if _, err := st.GetJob("missing"); !errors.Is(err, ErrJobNotFound) {
				t.Errorf("GetJob(missing) error = %v, want ErrJobNotFound", err)
			}
		})
	}
}

func TestMemoryStoreDetachesSavedJob(t *testing.T) {
	st := NewMemoryStore()
	job := models.NewTrainingJob(models.DatasetDescriptor{ID: "ds-1", Name: "iris", Rows: 150})

	if err := st.SaveJob(job); err != nil {
		t.Fatalf("SaveJob() error = %v", err)
	}

	// A stage machine keeps mutating the job after it was saved
	job.CurrentStage = models.StageTraining
	job.StageHistory = append(job.StageHistory, models.StageRecord{
		Stage:     models.StageUploading,
		EnteredAt: time.Now(),
	})
	job.Result = &models.JobResult{Accuracy: 0.5}

	got, err := st.GetJob(job.ID)
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if got.CurrentStage != models.StageUploading {
		t.Errorf("stored stage = %v, want the state at save time", got.CurrentStage)
	}
	if len(got.StageHistory) != 0 {
		t.Errorf("stored history length = %d, want 0", len(got.StageHistory))
	}
	if got.Result != nil {
		t.Error("stored job must not see the later result")
	}
}

func TestStoreListJobsNewestFirst(t *testing.T) {
	for name, st := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			older := models.NewTrainingJob(models.DatasetDescriptor{ID: "old", Rows: 1})
			older.CreatedAt = time.Now().Add(-time.Hour)
			newer := models.NewTrainingJob(models.DatasetDescriptor{ID: "new", Rows: 1})

			if err := st.SaveJob(older); err != nil {
				t.Fatal(err)
			}
			if err := st.SaveJob(newer); err != nil {
				t.Fatal(err)
			}

			jobs := st.ListJobs()
			if len(jobs) != 2 {
				t.Fatalf("got %d jobs, want 2", len(jobs))
			}
			if jobs[0].ID != newer.ID {
				t.Errorf("ListJobs() not newest first: %s before %s", jobs[0].ID, jobs[1].ID)
			}
		})
	}
}

func TestStoreReports(t *testing.T) {
	for name, st := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			report := &models.TestReport{
				ID:            "rep-1",
				Dataset:       models.DatasetDescriptor{ID: "ds-1", Name: "iris", Rows: 150},
				PeakCPU:       82.5,
				MemoryDeltaMB: 120,
				DirtyBaseline: true,
				CompiledAt:    time.Now(),
			}

			if err := st.SaveReport(report); err != nil {
				t.Fatalf("SaveReport() error = %v", err)
			}

			got, err := st.GetReport("rep-1")
			if err != nil {
				t.Fatalf("GetReport() error = %v", err)
			}
			if got.PeakCPU != 82.5 || !got.DirtyBaseline {
				t.Errorf("GetReport() = %+v", got)
			}

			if _, err := st.GetReport("missing"); !errors.Is(err, ErrReportNotFound) {
				t.Errorf("GetReport(missing) error = %v, want ErrReportNotFound", err)
			}

			if got := len(st.ListReports()); got != 1 {
				t.Errorf("ListReports() length = %d, want 1", got)
			}
		})
	}
}

func TestStoreRuns(t *testing.T) {
	for name, st := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			summary := &models.RunSummary{
				ID:        "run-1",
				StartedAt: time.Now().Add(-time.Minute),
				Passed:    true,
				Reports: []models.TestReport{
					{ID: "rep-1", CompiledAt: time.Now()},
				},
			}

			if err := st.SaveRun(summary); err != nil {
				t.Fatalf("SaveRun() error = %v", err)
			}

			got, err := st.GetRun("run-1")
			if err != nil {
				t.Fatalf("GetRun() error = %v", err)
			}
			if !got.Passed || len(got.Reports) != 1 {
				t.Errorf("GetRun() = %+v", got)
			}

			if _, err := st.GetRun("missing"); !errors.Is(err, ErrRunNotFound) {
				t.Errorf("GetRun(missing) error = %v, want ErrRunNotFound", err)
			}
		})
	}
}

func TestNewStoreConfig(t *testing.T) {
	st, err := NewStore(Config{Type: "memory"})
	if err != nil {
		t.Fatalf("NewStore(memory) error = %v", err)
	}
	if _, ok := st.(*MemoryStore); !ok {
		t.Errorf("NewStore(memory) = %T", st)
	}

	if _, err := NewStore(Config{Type: "postgres"}); !errors.Is(err, ErrUnsupportedBackend) {
		t.Errorf("NewStore(postgres) error = %v, want ErrUnsupportedBackend", err)
	}
}
