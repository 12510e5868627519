package notify

import (
	"context"
	"sync"
)

// Recorder is a Notifier for tests. It captures publishes in order and can
// be configured to fail.
type Recorder struct {
	mu       sync.Mutex
	events   []RecordedEvent
	FailWith error
}

// RecordedEvent is one captured publish.
type RecordedEvent struct {
	Topic   string
	Payload []byte
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Publish records the event, or returns FailWith if set.
func (r *Recorder) Publish(ctx context.Context, topic string, payload []byte) error {
	if r.FailWith != nil {
		return r.FailWith
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]byte, len(payload))
	copy(cp, payload)
	r.events = append(r.events, RecordedEvent{Topic: topic, Payload: cp})
	return nil
}

// Events returns the captured publishes in publish order.
func (r *Recorder) Events() []RecordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RecordedEvent, len(r.events))
	copy(out, r.events)
	return out
}

var _ Notifier = (*Recorder)(nil)
