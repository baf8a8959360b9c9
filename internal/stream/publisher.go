package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
)

type EventType string

const (
	EventProgress         EventType = "progress"
	EventSkeletonComplete EventType = "skeleton_complete"
	EventStepComplete     EventType = "step_complete"
	EventLevelStart       EventType = "level_start"
	EventLevelComplete    EventType = "level_complete"
	EventPart1Complete    EventType = "part1_complete"
	EventPart2Complete    EventType = "part2_complete"
	EventDone             EventType = "done"
	EventError            EventType = "error"
)

// Event is the wire envelope. Content is deliberately an opaque JSON
// string that consumers re-parse themselves, decoupling transport from
// schema evolution.
type Event struct {
	Type     EventType      `json:"type"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Sink delivers one serialized event to the client. A Send error means the
// delivery channel is gone; the publisher discards everything after it.
type Sink interface {
	Send(event Event) error
}

var (
	// ErrOutOfOrder is returned when a publish would violate the event
	// ordering invariants. The event is dropped.
	ErrOutOfOrder = errors.New("event violates stream ordering")
	// ErrClosed is returned once the delivery channel has gone away.
	ErrClosed = errors.New("event stream closed")
)

// Publisher is the single serialized publish point for one request.
// It enforces: skeleton_complete precedes every step_complete; done and
// error are strictly terminal; nothing follows a terminal event. Relative
// order among step completions is unconstrained.
type Publisher struct {
	mu           sync.Mutex
	sink         Sink
	requestID    string
	seq          int
	skeletonSeen bool
	terminal     bool
	closed       bool
}

func NewPublisher(sink Sink, requestID string) *Publisher {
	return &Publisher{sink: sink, requestID: requestID}
}

// Publish serializes content, stamps sequencing metadata, and sends.
// Safe for concurrent use by parallel step tasks.
func (p *Publisher) Publish(eventType EventType, content any, metadata map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		// In-flight tasks finishing after the client went away: results
		// are discarded, never written to a dead channel.
		return ErrClosed
	}
	if p.terminal {
		return fmt.Errorf("%w: %s after terminal event", ErrOutOfOrder, eventType)
	}
	if eventType == EventStepComplete && !p.skeletonSeen {
		return fmt.Errorf("%w: step_complete before skeleton_complete", ErrOutOfOrder)
	}

	payload, err := encodeContent(content)
	if err != nil {
		log.Printf("WARN: failed to encode %s content: %v", eventType, err)
		return err
	}

	meta := map[string]any{"seq": p.seq, "request_id": p.requestID}
	for k, v := range metadata {
		meta[k] = v
	}

	if err := p.sink.Send(Event{Type: eventType, Content: payload, Metadata: meta}); err != nil {
		p.closed = true
		log.Printf("WARN: event stream closed mid-request: %v", err)
		return ErrClosed
	}

	p.seq++
	switch eventType {
	case EventSkeletonComplete:
		p.skeletonSeen = true
	case EventDone, EventError:
		p.terminal = true
	}
	return nil
}

// Closed reports whether the delivery channel has gone away.
func (p *Publisher) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func encodeContent(content any) (string, error) {
	switch c := content.(type) {
	case nil:
		return "", nil
	case string:
		return c, nil
	default:
		data, err := json.Marshal(content)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}

// ── SSE sink ───────────────────────────────────────────────

// SSESink writes events to an HTTP response as server-sent events,
// flushing each one immediately so time-to-first-byte is not delayed.
type SSESink struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSESink prepares the response for streaming. It returns an error when
// the writer cannot flush, since buffered SSE defeats the purpose.
func NewSSESink(w http.ResponseWriter) (*SSESink, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	return &SSESink{w: w, flusher: flusher}, nil
}

func (s *SSESink) Send(event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event.Type, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
