// Package events provides a small in-process publish/subscribe bus used to
// fan training-run progress out to live consumers (WebSocket streams, status
// monitors) without coupling them to the training service.
package events

import (
	"sync"
	"time"
)

// EventType identifies the kind of event published on the bus.
type EventType string

const (
	// EpisodeCompleted is published after every finished training episode.
	EpisodeCompleted EventType = "episode_completed"
	// RunStarted is published when a training run begins executing.
	RunStarted EventType = "run_started"
	// RunCompleted is published when a training run finishes successfully.
	RunCompleted EventType = "run_completed"
	// RunFailed is published when a training run aborts with an error.
	RunFailed EventType = "run_failed"
)

// Event is a single bus message. Data carries event-specific payload fields.
type Event struct {
	Type      EventType              `json:"type"`
	RunID     string                 `json:"run_id"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Handler receives published events. Handlers run synchronously on the
// publisher's goroutine and must not block; slow consumers should hand off
// to a buffered channel and drop on overflow.
type Handler func(*Event)

// Bus is a minimal synchronous pub/sub fan-out keyed by event type.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[EventType]map[int]Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[EventType]map[int]Handler)}
}

// Subscribe registers a handler for one event type and returns a function
// that removes the subscription.
func (b *Bus) Subscribe(t EventType, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[t] == nil {
		b.subs[t] = make(map[int]Handler)
	}
	id := b.nextID
	b.nextID++
	b.subs[t][id] = h

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[t], id)
	}
}

// Publish delivers the event to every handler subscribed to its type.
func (b *Bus) Publish(e *Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[e.Type]))
	for _, h := range b.subs[e.Type] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}
