package models

import (
	"time"
)

// EventType identifies a lifecycle event emitted by a stage machine
type EventType string

const (
	EventStageEntered EventType = "stage_entered"
	EventStageExited  EventType = "stage_exited"
	EventJobCompleted EventType = "job_completed"
	EventJobFailed    EventType = "job_failed"
	EventActivity     EventType = "activity"
)

// Event is one lifecycle notification. Events are buffered by the
// broadcast hub and flushed on the next tick, never merged or dropped.
type Event struct {
	Type      EventType              `json:"type"`
	JobID     string                 `json:"job_id,omitempty"`
	Stage     TrainingStage          `json:"stage,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Reason    string                 `json:"reason,omitempty"`
	Result    *JobResult             `json:"result,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}
