package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/psantana5/mlmon/pkg/hub"
	"github.com/psantana5/mlmon/pkg/logging"
	"github.com/psantana5/mlmon/pkg/models"
	"github.com/psantana5/mlmon/pkg/pipeline"
	"github.com/psantana5/mlmon/pkg/store"
)

// Server exposes the monitoring and training API over HTTP
type Server struct {
	hub          *hub.Hub
	store        store.Store
	provider     pipeline.Provider
	activity     *ActivityLog
	stageTimeout time.Duration
	logger       *logging.Logger
	startedAt    time.Time
}

// NewServer wires the HTTP layer against a started hub and a store.
// The server subscribes its activity log to the hub so every lifecycle
// event shows up in the feed.
func NewServer(h *hub.Hub, st store.Store, provider pipeline.Provider, stageTimeout time.Duration, logger *logging.Logger) *Server {
	s := &Server{
		hub:          h,
		store:        st,
		provider:     provider,
		activity:     NewActivityLog(),
		stageTimeout: stageTimeout,
		logger:       logger.WithField("component", "api"),
		startedAt:    time.Now(),
	}

	h.Subscribe(hub.SubscriberFunc(func(msg hub.Message) error {
		for _, ev := range msg.Events {
			// Activity events originate here and are already logged
			if ev.Type == models.EventActivity {
				continue
			}
			s.activity.RecordEvent(ev)
		}
		return nil
	}))
	return s
}

// Router builds the route table
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/train", s.StartTraining).Methods("POST")
	r.HandleFunc("/api/training/{id}", s.GetTraining).Methods("GET")
	r.HandleFunc("/api/jobs", s.ListJobs).Methods("GET")
	r.HandleFunc("/api/reports", s.ListReports).Methods("GET")
	r.HandleFunc("/api/reports/{id}", s.GetReport).Methods("GET")
	r.HandleFunc("/api/status", s.Status).Methods("GET")
	r.HandleFunc("/api/activity", s.Activity).Methods("GET")
	r.HandleFunc("/events", s.Events).Methods("GET")
	r.HandleFunc("/metrics", s.Metrics).Methods("GET")
	r.HandleFunc("/health", s.Health).Methods("GET")

	return r
}

// StartTraining launches a training job for the posted dataset and
// returns immediately with the job ID.
func (s *Server) StartTraining(w http.ResponseWriter, r *http.Request) {
	var ds models.DatasetDescriptor
	if err := json.NewDecoder(r.Body).Decode(&ds); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if ds.Rows <= 0 {
		http.Error(w, "Dataset must declare a positive row count", http.StatusBadRequest)
		return
	}
	if ds.ID == "" {
		ds.ID = ds.Name
	}

	job := models.NewTrainingJob(ds)
	if err := s.store.SaveJob(job); err != nil {
		s.logger.Error("failed to persist job", map[string]interface{}{"error": err.Error()})
		http.Error(w, "Failed to persist job", http.StatusInternalServerError)
		return
	}

	// The sink persists a snapshot on every transition, so reads during
	// the run see live stage progress, never the machine's own job.
	sink := &trainingSink{hub: s.hub, store: s.store, logger: s.logger}
	machine := pipeline.NewMachine(job, s.provider, sink, s.stageTimeout, s.logger)
	sink.machine = machine
	go func() {
		if err := machine.Run(context.Background()); err != nil {
			s.logger.Warn("training job failed", map[string]interface{}{
				"job_id": job.ID,
				"error":  err.Error(),
			})
		}
		// Force one broadcast so short jobs still surface a sample
		s.hub.BroadcastNow(context.Background())
		if err := s.store.SaveJob(machine.JobSnapshot()); err != nil {
			s.logger.Error("failed to persist finished job", map[string]interface{}{"error": err.Error()})
		}
	}()

	// Announce through the hub so every subscriber sees the start too
	s.activity.Add("training started for dataset " + ds.Name)
	s.hub.Publish(models.Event{
		Type:      models.EventActivity,
		Timestamp: time.Now(),
		Payload:   map[string]interface{}{"message": "training started for dataset " + ds.Name},
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"job_id": job.ID,
		"stage":  job.CurrentStage,
	})
}

// GetTraining returns one job by ID
func (s *Server) GetTraining(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	job, err := s.store.GetJob(vars["id"])
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			http.Error(w, "Job not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to load job", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job)
}

// ListJobs returns all jobs, newest first
func (s *Server) ListJobs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.store.ListJobs())
}

// ListReports returns the archived load-test reports
func (s *Server) ListReports(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.store.ListReports())
}

// GetReport returns one archived report by ID
func (s *Server) GetReport(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	report, err := s.store.GetReport(vars["id"])
	if err != nil {
		if errors.Is(err, store.ErrReportNotFound) {
			http.Error(w, "Report not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to load report", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}

// Status reports the latest snapshot and hub state
func (s *Server) Status(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"snapshot":    s.hub.LastSnapshot(),
		"subscribers": s.hub.SubscriberCount(),
		"interval":    s.hub.Interval().String(),
		"uptime":      time.Since(s.startedAt).String(),
	})
}

// Activity returns the recent activity feed, newest first
func (s *Server) Activity(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.activity.Entries())
}

// Events streams hub broadcasts to the client over server-sent events.
// The subscription lives until the client disconnects.
func (s *Server) Events(w http.ResponseWriter, r *http.Request) {
	sub, err := newSSESubscriber(w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	handle := s.hub.Subscribe(sub)
	defer func() {
		s.hub.Unsubscribe(handle)
		sub.close()
	}()

	s.logger.Debug("event stream opened", map[string]interface{}{"remote": r.RemoteAddr})
	<-r.Context().Done()
	s.logger.Debug("event stream closed", map[string]interface{}{"remote": r.RemoteAddr})
}

// Health is the liveness endpoint
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

// trainingSink forwards lifecycle events to the hub and persists a
// detached job snapshot after each transition. The machine is set once,
// before Run starts.
type trainingSink struct {
	hub     *hub.Hub
	store   store.Store
	logger  *logging.Logger
	machine *pipeline.Machine
}

func (t *trainingSink) Publish(ev models.Event) {
	t.hub.Publish(ev)
	if err := t.store.SaveJob(t.machine.JobSnapshot()); err != nil {
		t.logger.Error("failed to persist job progress", map[string]interface{}{"error": err.Error()})
	}
}
