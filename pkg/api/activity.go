package api

import (
	"fmt"
	"sync"
	"time"

	"github.com/psantana5/mlmon/pkg/models"
)

// activityCapacity bounds the in-memory activity log
const activityCapacity = 50

// ActivityEntry is one human-readable line in the activity feed
type ActivityEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// ActivityLog keeps the most recent activity entries, newest first.
// Older entries fall off once capacity is reached.
type ActivityLog struct {
	mu      sync.Mutex
	entries []ActivityEntry
}

// NewActivityLog creates an empty activity log
func NewActivityLog() *ActivityLog {
	return &ActivityLog{}
}

// Add records one entry, evicting the oldest when full
func (l *ActivityLog) Add(message string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, ActivityEntry{
		Timestamp: time.Now(),
		Message:   message,
	})
	if len(l.entries) > activityCapacity {
		l.entries = l.entries[len(l.entries)-activityCapacity:]
	}
}

// RecordEvent translates a lifecycle event into an activity line
func (l *ActivityLog) RecordEvent(ev models.Event) {
	switch ev.Type {
	case models.EventStageEntered:
		l.Add(fmt.Sprintf("job %s entered stage %s", ev.JobID, ev.Stage))
	case models.EventStageExited:
		l.Add(fmt.Sprintf("job %s exited stage %s", ev.JobID, ev.Stage))
	case models.EventJobCompleted:
		if ev.Result != nil {
			l.Add(fmt.Sprintf("job %s completed with accuracy %.4f", ev.JobID, ev.Result.Accuracy))
		} else {
			l.Add(fmt.Sprintf("job %s completed", ev.JobID))
		}
	case models.EventJobFailed:
		l.Add(fmt.Sprintf("job %s failed (%s)", ev.JobID, ev.Reason))
	case models.EventActivity:
		if msg, ok := ev.Payload["message"].(string); ok {
			l.Add(msg)
		}
	}
}

// Entries returns the log newest first
func (l *ActivityLog) Entries() []ActivityEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]ActivityEntry, len(l.entries))
	for i, entry := range l.entries {
		out[len(l.entries)-1-i] = entry
	}
	return out
}
