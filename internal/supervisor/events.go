package supervisor

import (
	"encoding/json"
	"sync"
	"time"
)

// EventType represents the type of dashboard event.
type EventType string

const (
	EventRowSubmitted  EventType = "row_submitted"
	EventRowResolved   EventType = "row_resolved"
	EventRowFailed     EventType = "row_failed"
	EventRowsCleared   EventType = "rows_cleared"
	EventTop100Started EventType = "top100_started"
	EventTop100Loaded  EventType = "top100_loaded"
	EventTop100Empty   EventType = "top100_empty"
	EventTop100Failed  EventType = "top100_failed"
	EventDealerChanged EventType = "dealer_changed"
)

// Event is a state change pushed to SSE consumers. Views re-fetch on the
// event rather than reading shared state.
type Event struct {
	Type       EventType `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	Key        string    `json:"key,omitempty"`
	DealerCode string    `json:"dealer_code,omitempty"`
	PartNumber string    `json:"part_number,omitempty"`
	Month      string    `json:"month,omitempty"`
	Count      int       `json:"count,omitempty"`
	Attempts   int       `json:"attempts,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// EventBus manages event publishing and subscription for SSE consumers.
type EventBus struct {
	events      chan Event
	subscribers map[chan Event]struct{}
	mu          sync.RWMutex
	shutdown    chan struct{}
	once        sync.Once
}

// NewEventBus creates a new event bus with the specified buffer size.
func NewEventBus(bufferSize int) *EventBus {
	eb := &EventBus{
		events:      make(chan Event, bufferSize),
		subscribers: make(map[chan Event]struct{}),
		shutdown:    make(chan struct{}),
	}

	go eb.forward()

	return eb
}

// forward forwards events from the main channel to all subscribers.
func (eb *EventBus) forward() {
	for {
		select {
		case event, ok := <-eb.events:
			if !ok {
				return
			}
			// Hold the read lock while sending so Unsubscribe/Shutdown cannot
			// close a channel mid-send.
			eb.mu.RLock()
			for ch := range eb.subscribers {
				select {
				case ch <- event:
				default:
					// Subscriber channel is full, skip (fail-open)
				}
			}
			eb.mu.RUnlock()
		case <-eb.shutdown:
			return
		}
	}
}

// Publish publishes an event. This is non-blocking and will drop events if
// the buffer is full. Publishing on a nil bus or after Shutdown is a no-op.
func (eb *EventBus) Publish(event Event) {
	if eb == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	eb.mu.RLock()
	defer eb.mu.RUnlock()
	select {
	case <-eb.shutdown:
		return
	default:
	}

	select {
	case eb.events <- event:
	default:
		// Buffer full, drop event (fail-open)
	}
}

// Subscribe creates a new subscription channel for SSE consumers.
func (eb *EventBus) Subscribe() chan Event {
	ch := make(chan Event, 16)
	eb.mu.Lock()
	eb.subscribers[ch] = struct{}{}
	eb.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscription channel and closes it.
func (eb *EventBus) Unsubscribe(ch chan Event) {
	eb.mu.Lock()
	if _, exists := eb.subscribers[ch]; exists {
		delete(eb.subscribers, ch)
		close(ch)
	}
	eb.mu.Unlock()
}

// Shutdown stops the forwarding goroutine and closes every subscriber
// channel. It is safe on a nil bus.
func (eb *EventBus) Shutdown() {
	if eb == nil {
		return
	}
	eb.once.Do(func() {
		eb.mu.Lock()
		close(eb.shutdown)
		for ch := range eb.subscribers {
			close(ch)
		}
		eb.subscribers = make(map[chan Event]struct{})
		eb.mu.Unlock()
	})
}

// FormatSSEEvent formats an event as Server-Sent Events format.
func FormatSSEEvent(event Event) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", err
	}
	return "event: " + string(event.Type) + "\ndata: " + string(data) + "\n\n", nil
}
