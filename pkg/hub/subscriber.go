package hub

import (
	"errors"

	"github.com/psantana5/mlmon/pkg/models"
)

// Message is the combined payload pushed to every subscriber once per
// tick: the latest snapshot plus all lifecycle events buffered since the
// previous tick. Events may be empty (snapshot-only heartbeat).
type Message struct {
	Snapshot models.MetricSnapshot `json:"snapshot"`
	Events   []models.Event        `json:"events"`
}

// Subscriber is an opaque push-capable sink. A Push error marks the sink
// disconnected; the hub removes it on the following tick. Push must not
// block indefinitely.
type Subscriber interface {
	Push(msg Message) error
}

// SubscriberFunc adapts a function to the Subscriber interface
type SubscriberFunc func(msg Message) error

// Push calls f
func (f SubscriberFunc) Push(msg Message) error {
	return f(msg)
}

// ErrSubscriberClosed is returned by sinks that were torn down
var ErrSubscriberClosed = errors.New("subscriber closed")

// Handle identifies one subscription
type Handle int64
