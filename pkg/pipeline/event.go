package pipeline

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// EventType enumerates the progress event vocabulary. Order is significant:
// a narrative block is framed by text-start/text-end, the document body by
// data-clear/data-title/data-documentDelta/data-finish, and the optional
// binary payload follows data-finish.
type EventType string

const (
	EventTextStart     EventType = "text-start"
	EventTextDelta     EventType = "text-delta"
	EventTextEnd       EventType = "text-end"
	EventDataClear     EventType = "data-clear"
	EventDataTitle     EventType = "data-title"
	EventDataDocDelta  EventType = "data-documentDelta"
	EventDataFinish    EventType = "data-finish"
	EventDataDocx      EventType = "data-docx"
)

// DocxPayload carries the generated binary as base64 with its download name.
type DocxPayload struct {
	Content  string `json:"content"`
	Filename string `json:"filename"`
}

// Event is one entry of the progress feed.
type Event struct {
	Type  EventType
	ID    string
	Delta string
	Data  any
}

// MarshalJSON emits the wire form: text events carry id (and delta), data
// events carry data, null included for clear and finish.
func (e Event) MarshalJSON() ([]byte, error) {
	m := map[string]any{"type": e.Type}
	switch e.Type {
	case EventTextStart, EventTextEnd:
		m["id"] = e.ID
	case EventTextDelta:
		m["id"] = e.ID
		m["delta"] = e.Delta
	default:
		m["data"] = e.Data
	}
	return json.Marshal(m)
}

// Feed is the ordered, append-only progress channel of one pipeline
// invocation. It has a single producer (the pipeline) and is closed when the
// invocation ends, normally or not. Consumers range over Events and must
// tolerate arbitrary chunk granularity.
type Feed struct {
	correlationID string
	ch            chan Event
	closeOnce     sync.Once
}

func NewFeed() *Feed {
	return &Feed{
		correlationID: "protocol-" + uuid.NewString(),
		ch:            make(chan Event, 64),
	}
}

// CorrelationID identifies the narrative text block of this invocation.
func (f *Feed) CorrelationID() string {
	return f.correlationID
}

// Events is the consumer side of the feed.
func (f *Feed) Events() <-chan Event {
	return f.ch
}

// Emit appends one event, giving up when the context is cancelled so a gone
// consumer cannot wedge the pipeline.
func (f *Feed) Emit(ctx context.Context, e Event) {
	select {
	case f.ch <- e:
	case <-ctx.Done():
	}
}

// Close ends the feed. Safe to call more than once.
func (f *Feed) Close() {
	f.closeOnce.Do(func() { close(f.ch) })
}
