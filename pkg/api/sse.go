package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/psantana5/mlmon/pkg/hub"
)

// sseSubscriber adapts one server-sent-events connection to the hub
// subscriber interface. Writes happen on the hub's tick goroutine, so
// every access to the response writer is serialized by the mutex.
type sseSubscriber struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	closed  bool
}

func newSSESubscriber(w http.ResponseWriter) (*sseSubscriber, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming unsupported by connection")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	return &sseSubscriber{w: w, flusher: flusher}, nil
}

// Push writes one broadcast message as an SSE data frame
func (s *sseSubscriber) Push(msg hub.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return hub.ErrSubscriberClosed
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		s.closed = true
		return err
	}
	s.flusher.Flush()
	return nil
}

// close stops further writes once the client disconnects
func (s *sseSubscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}
