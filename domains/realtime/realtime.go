// Package realtime is the publish-only contract the core uses to notify
// dashboard clients. Delivery is fire-and-forget.
package realtime

import (
	"context"
	"sync"
)

type EventType string

const (
	EventNewMessage           EventType = "new_message"
	EventConversationUpdated  EventType = "conversation_updated"
	EventMessageDeleted       EventType = "message_deleted"
	EventConversationAssigned EventType = "conversation_assigned"
	EventPresenceUpdate       EventType = "presence_update"
)

type Event struct {
	Type           EventType `json:"type"`
	ConversationID uint      `json:"conversation_id,omitempty"`
	Payload        any       `json:"payload,omitempty"`
}

// Publisher must never block the caller for longer than it takes to enqueue.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}

// Recorder keeps published events in memory. Handy in tests and in the MCP process.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []EventType {
	events := r.Events()
	out := make([]EventType, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}
