package loadtest

import (
	"sync"

	"github.com/psantana5/mlmon/pkg/hub"
	"github.com/psantana5/mlmon/pkg/models"
)

// Collector is a hub subscriber that accumulates every snapshot and
// lifecycle event pushed during one test window.
type Collector struct {
	mu        sync.Mutex
	snapshots []models.MetricSnapshot
	events    []models.Event
	closed    bool
}

// NewCollector creates an empty collector
func NewCollector() *Collector {
	return &Collector{}
}

// Push records the broadcast payload
func (c *Collector) Push(msg hub.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return hub.ErrSubscriberClosed
	}
	c.snapshots = append(c.snapshots, msg.Snapshot)
	c.events = append(c.events, msg.Events...)
	return nil
}

// Close stops the collector from accepting further pushes
func (c *Collector) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// Snapshots returns a copy of the captured snapshots
func (c *Collector) Snapshots() []models.MetricSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.MetricSnapshot, len(c.snapshots))
	copy(out, c.snapshots)
	return out
}

// Events returns a copy of the captured lifecycle events
func (c *Collector) Events() []models.Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.Event, len(c.events))
	copy(out, c.events)
	return out
}
