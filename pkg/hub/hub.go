package hub

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/psantana5/mlmon/pkg/logging"
	"github.com/psantana5/mlmon/pkg/models"
	"github.com/psantana5/mlmon/pkg/sampler"
)

// Hub fans out metric snapshots and training lifecycle events to
// subscribers. One background goroutine drives the tick loop for the
// process lifetime: every tick samples the host once, drains the pending
// event buffer, and pushes a single combined message to every live
// subscriber. Events appended between ticks are flushed on the very next
// tick, never merged or dropped.
type Hub struct {
	sampler  sampler.Sampler
	interval time.Duration
	logger   *logging.Logger
	metrics  *hubMetrics

	// tickMu serializes whole-tick execution. A forced broadcast must
	// never interleave with a scheduled tick or subscribers could see
	// snapshots in inverted timestamp order.
	tickMu sync.Mutex

	mu       sync.Mutex
	subs     map[Handle]Subscriber
	dead     map[Handle]bool
	pending  []models.Event
	nextID   Handle
	lastSnap models.MetricSnapshot

	stopCh   chan struct{}
	stopOnce sync.Once
}

// New creates a hub broadcasting every interval
func New(s sampler.Sampler, interval time.Duration, logger *logging.Logger) *Hub {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Hub{
		sampler:  s,
		interval: interval,
		logger:   logger.WithField("component", "hub"),
		metrics:  newHubMetrics(),
		subs:     make(map[Handle]Subscriber),
		dead:     make(map[Handle]bool),
		stopCh:   make(chan struct{}),
	}
}

// Interval returns the configured tick interval
func (h *Hub) Interval() time.Duration {
	return h.interval
}

// Registry exposes the hub's Prometheus collectors
func (h *Hub) Registry() *prometheus.Registry {
	return h.metrics.registry
}

// Subscribe registers a sink and returns its handle
func (h *Hub) Subscribe(sub Subscriber) Handle {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	handle := h.nextID
	h.subs[handle] = sub
	h.metrics.subscribers.Set(float64(len(h.subs)))
	h.logger.Debug("subscriber added", map[string]interface{}{"handle": int64(handle)})
	return handle
}

// Unsubscribe removes a sink. Safe to call with a stale handle.
func (h *Hub) Unsubscribe(handle Handle) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.subs, handle)
	delete(h.dead, handle)
	h.metrics.subscribers.Set(float64(len(h.subs)))
}

// Publish appends a lifecycle event to the pending buffer. Appends and
// the tick's drain share one mutex so no event is read twice or lost.
func (h *Hub) Publish(ev models.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pending = append(h.pending, ev)
}

// LastSnapshot returns the most recent successfully captured snapshot
func (h *Hub) LastSnapshot() models.MetricSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastSnap
}

// SubscriberCount returns the current size of the subscriber set
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Start launches the tick loop in a background goroutine
func (h *Hub) Start(ctx context.Context) {
	h.logger.Info("broadcast hub started", map[string]interface{}{"interval": h.interval.String()})
	go h.run(ctx)
}

// Stop terminates the tick loop
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
	})
}

// run is the main broadcast loop
func (h *Hub) run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.tick(ctx, false)
		case <-h.stopCh:
			h.logger.Info("broadcast hub stopped")
			return
		case <-ctx.Done():
			h.logger.Info("broadcast hub stopped", map[string]interface{}{"cause": "context"})
			return
		}
	}
}

// BroadcastNow performs one immediate off-tick broadcast. The load-test
// orchestrator calls this at job completion so even a job shorter than
// one tick interval yields at least one sample.
func (h *Hub) BroadcastNow(ctx context.Context) {
	h.metrics.forcedSamples.Inc()
	h.tick(ctx, true)
}

// tick samples once and pushes snapshot plus drained events to every
// subscriber. Sampler failures are absorbed: the tick is skipped, events
// stay buffered for the next tick, and nothing propagates to subscribers.
func (h *Hub) tick(ctx context.Context, forced bool) {
	h.tickMu.Lock()
	defer h.tickMu.Unlock()

	h.removeDead()

	snap, err := h.sampler.Sample(ctx)
	if err != nil {
		h.metrics.sampleErrors.Inc()
		h.logger.Warn("sampling unavailable, skipping tick", map[string]interface{}{"error": err.Error()})
		return
	}

	h.mu.Lock()
	h.lastSnap = snap
	events := h.pending
	h.pending = nil
	subs := make(map[Handle]Subscriber, len(h.subs))
	for handle, sub := range h.subs {
		subs[handle] = sub
	}
	h.mu.Unlock()

	msg := Message{Snapshot: snap, Events: events}

	var failed []Handle
	for handle, sub := range subs {
		if err := sub.Push(msg); err != nil {
			failed = append(failed, handle)
		}
	}

	if len(failed) > 0 {
		h.mu.Lock()
		for _, handle := range failed {
			h.dead[handle] = true
		}
		h.mu.Unlock()
	}

	h.metrics.broadcasts.Inc()
	h.metrics.eventsFlushed.Add(float64(len(events)))
	if len(events) > 0 && !forced {
		h.logger.Debug("tick broadcast", map[string]interface{}{
			"events":      len(events),
			"subscribers": len(subs),
		})
	}
}

// removeDead drops sinks whose previous push failed. Removal happens on
// the tick after the failure and never blocks the broadcast for others.
func (h *Hub) removeDead() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.dead) == 0 {
		return
	}
	for handle := range h.dead {
		delete(h.subs, handle)
		h.metrics.droppedSinks.Inc()
		h.logger.Debug("dropped disconnected subscriber", map[string]interface{}{"handle": int64(handle)})
	}
	h.dead = make(map[Handle]bool)
	h.metrics.subscribers.Set(float64(len(h.subs)))
}
