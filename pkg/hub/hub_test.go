package hub

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/psantana5/mlmon/pkg/logging"
	"github.com/psantana5/mlmon/pkg/models"
	"github.com/psantana5/mlmon/pkg/sampler"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.ERROR, false)
}

// fakeSampler returns sequential snapshots; failures can be injected
type fakeSampler struct {
	mu      sync.Mutex
	count   int
	failing bool
}

func (f *fakeSampler) Sample(ctx context.Context) (models.MetricSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return models.MetricSnapshot{}, sampler.ErrSamplingUnavailable
	}
	f.count++
	return models.MetricSnapshot{
		Timestamp:     time.Now(),
		CPUPercent:    float64(f.count),
		MemoryPercent: 40,
		MemoryUsedMB:  1024,
		DiskPercent:   50,
		ProcessCount:  200,
	}, nil
}

func (f *fakeSampler) setFailing(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = v
}

// recordingSub captures pushed messages
type recordingSub struct {
	mu       sync.Mutex
	messages []Message
}

func (r *recordingSub) Push(msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return nil
}

func (r *recordingSub) all() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

func TestHubBroadcastsAtInterval(t *testing.T) {
	// 5ms ticks over the window plus the forced broadcast at the end
	// must yield at least 3 samples.
	h := New(&fakeSampler{}, 5*time.Millisecond, testLogger())
	sub := &recordingSub{}
	h.Subscribe(sub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx)
	defer h.Stop()

	time.Sleep(25 * time.Millisecond)
	h.BroadcastNow(ctx)

	msgs := sub.all()
	if len(msgs) < 3 {
		t.Fatalf("got %d messages over 25ms at 5ms interval, want >= 3", len(msgs))
	}

	// Snapshots are strictly ordered
	for i := 1; i < len(msgs); i++ {
		if !msgs[i].Snapshot.Timestamp.After(msgs[i-1].Snapshot.Timestamp) {
			t.Errorf("snapshot %d timestamp not after snapshot %d", i, i-1)
		}
	}
}

func TestHubOrdersConcurrentBroadcasts(t *testing.T) {
	h := New(&fakeSampler{}, time.Millisecond, testLogger())
	sub := &recordingSub{}
	h.Subscribe(sub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx)

	// Forced broadcasts race the scheduled ticks; delivery must still
	// follow sample order.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				h.BroadcastNow(ctx)
			}
		}()
	}
	wg.Wait()
	h.Stop()

	msgs := sub.all()
	if len(msgs) < 100 {
		t.Fatalf("got %d messages, want >= 100", len(msgs))
	}
	for i := 1; i < len(msgs); i++ {
		if !msgs[i].Snapshot.Timestamp.After(msgs[i-1].Snapshot.Timestamp) {
			t.Fatalf("snapshot %d delivered out of timestamp order", i)
		}
	}
}

func TestHubTicksWithZeroSubscribers(t *testing.T) {
	fs := &fakeSampler{}
	h := New(fs, 5*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx)
	defer h.Stop()

	time.Sleep(20 * time.Millisecond)

	// Loop keeps sampling so LastSnapshot stays fresh
	if h.LastSnapshot().IsZero() {
		t.Error("hub with no subscribers must still sample")
	}
	if h.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount() = %d, want 0", h.SubscriberCount())
	}
}

func TestHubFlushesBufferedEvents(t *testing.T) {
	h := New(&fakeSampler{}, time.Hour, testLogger())
	sub := &recordingSub{}
	h.Subscribe(sub)

	h.Publish(models.Event{Type: models.EventStageEntered, JobID: "j1", Stage: models.StageUploading})
	h.Publish(models.Event{Type: models.EventStageExited, JobID: "j1", Stage: models.StageUploading})

	h.BroadcastNow(context.Background())

	msgs := sub.all()
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if len(msgs[0].Events) != 2 {
		t.Fatalf("got %d events in broadcast, want 2", len(msgs[0].Events))
	}
	if msgs[0].Events[0].Type != models.EventStageEntered {
		t.Errorf("events out of order: first = %v", msgs[0].Events[0].Type)
	}

	// Flushed events are not re-delivered
	h.BroadcastNow(context.Background())
	msgs = sub.all()
	if len(msgs[1].Events) != 0 {
		t.Errorf("second broadcast carried %d events, want 0", len(msgs[1].Events))
	}
}

func TestHubKeepsEventsAcrossFailedTick(t *testing.T) {
	fs := &fakeSampler{}
	h := New(fs, time.Hour, testLogger())
	sub := &recordingSub{}
	h.Subscribe(sub)

	h.Publish(models.Event{Type: models.EventJobCompleted, JobID: "j1"})

	// Sampler failure skips the tick without dropping the buffer
	fs.setFailing(true)
	h.BroadcastNow(context.Background())
	if got := len(sub.all()); got != 0 {
		t.Fatalf("failed tick delivered %d messages, want 0", got)
	}

	fs.setFailing(false)
	h.BroadcastNow(context.Background())

	msgs := sub.all()
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if len(msgs[0].Events) != 1 || msgs[0].Events[0].JobID != "j1" {
		t.Errorf("buffered event not delivered after sampler recovered: %+v", msgs[0].Events)
	}
}

func TestHubRemovesDeadSubscriberNextTick(t *testing.T) {
	h := New(&fakeSampler{}, time.Hour, testLogger())

	var pushes int64
	failing := SubscriberFunc(func(Message) error {
		atomic.AddInt64(&pushes, 1)
		return errors.New("connection reset")
	})
	healthy := &recordingSub{}

	h.Subscribe(failing)
	h.Subscribe(healthy)

	// First tick: push fails, sink marked dead but still counted
	h.BroadcastNow(context.Background())
	if got := atomic.LoadInt64(&pushes); got != 1 {
		t.Fatalf("failing sink pushed %d times, want 1", got)
	}
	if len(healthy.all()) != 1 {
		t.Fatal("a failing sink must not block delivery to others")
	}

	// Second tick: dead sink removed before sampling, no further pushes
	h.BroadcastNow(context.Background())
	if got := atomic.LoadInt64(&pushes); got != 1 {
		t.Errorf("dead sink pushed %d times after removal, want 1", got)
	}
	if h.SubscriberCount() != 1 {
		t.Errorf("SubscriberCount() = %d, want 1", h.SubscriberCount())
	}
}

func TestHubUnsubscribeStaleHandle(t *testing.T) {
	h := New(&fakeSampler{}, time.Hour, testLogger())
	handle := h.Subscribe(&recordingSub{})
	h.Unsubscribe(handle)
	h.Unsubscribe(handle) // second call must be harmless
	h.Unsubscribe(Handle(9999))

	if h.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount() = %d, want 0", h.SubscriberCount())
	}
}

func TestHubStopIsIdempotent(t *testing.T) {
	h := New(&fakeSampler{}, time.Millisecond, testLogger())
	h.Start(context.Background())
	h.Stop()
	h.Stop()
}
