package status

import (
	"sync"
	"time"

	"github.com/joseph-ayodele/hr-extractor/constants"
)

// EventType classifies messages emitted while documents move through the queue.
type EventType string

const (
	EventTypeItem    EventType = "item"
	EventTypeBatch   EventType = "batch"
	EventTypePacing  EventType = "pacing"
	EventTypeCleared EventType = "cleared"
)

// Event is a sequenced payload consumed by observers (HTTP pollers, logs).
type Event struct {
	Seq         int64                 `json:"seq"`
	Timestamp   time.Time             `json:"timestamp"`
	Type        EventType             `json:"type"`
	ItemID      string                `json:"item_id,omitempty"`
	Filename    string                `json:"filename,omitempty"`
	ItemStatus  constants.ItemStatus  `json:"item_status,omitempty"`
	BatchStatus constants.BatchStatus `json:"batch_status,omitempty"`
	ErrorKind   constants.ErrorKind   `json:"error_kind,omitempty"`
	Message     string                `json:"message,omitempty"`
	DelayMs     int64                 `json:"delay_ms,omitempty"`
}

// Publisher receives events. EventBus is the in-memory implementation.
type Publisher interface {
	Publish(event Event) Event
}

// Discard is a Publisher that drops everything.
type Discard struct{}

func (Discard) Publish(event Event) Event { return event }

// EventBus stores recent events and provides incremental reads.
type EventBus struct {
	mu        sync.RWMutex
	nextSeq   int64
	maxEvents int
	events    []Event
}

// NewEventBus creates a bounded in-memory event buffer.
func NewEventBus(maxEvents int) *EventBus {
	if maxEvents <= 0 {
		maxEvents = 1000
	}
	return &EventBus{
		maxEvents: maxEvents,
		events:    make([]Event, 0, maxEvents),
	}
}

// Publish appends one event and assigns sequence and timestamp.
func (b *EventBus) Publish(event Event) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.events = append(b.events, event)
	if len(b.events) > b.maxEvents {
		trim := len(b.events) - b.maxEvents
		b.events = append([]Event(nil), b.events[trim:]...)
	}
	return event
}

// Since returns events with sequence strictly greater than seq.
func (b *EventBus) Since(seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.events) == 0 {
		return nil
	}
	out := make([]Event, 0, len(b.events))
	for _, event := range b.events {
		if event.Seq > seq {
			out = append(out, event)
		}
	}
	return out
}

// LastSeq returns the sequence number of the newest event, or 0.
func (b *EventBus) LastSeq() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.nextSeq
}
