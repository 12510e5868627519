// Package notify delivers typing-indicator and partial-message events to
// chat viewers. Delivery is at-most-once and best effort: publishing to a
// topic nobody is watching is not an error, and a failed publish never fails
// the turn that produced it.
package notify

import (
	"context"
	"encoding/json"
)

// Event types published during one agent turn, always in the order
// start-typing, zero or more partial-message, done-typing.
const (
	EventStartTyping    = "start-typing"
	EventPartialMessage = "partial-message"
	EventDoneTyping     = "done-typing"
)

// Event is the payload published to a conversation topic.
type Event struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// Encode marshals the event for the wire. Marshalling a flat struct of two
// strings cannot fail, so the error is dropped.
func (e Event) Encode() []byte {
	raw, _ := json.Marshal(e)
	return raw
}

// Notifier publishes a payload to all current subscribers of a topic.
type Notifier interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}
