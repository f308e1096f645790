package supervisor

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestEventBus_PublishSubscribe(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Shutdown()

	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	bus.Publish(Event{Type: EventRowSubmitted, Key: "row-1"})

	select {
	case received := <-sub:
		if received.Key != "row-1" {
			t.Errorf("expected key row-1, got %s", received.Key)
		}
		if received.Type != EventRowSubmitted {
			t.Errorf("expected type %s, got %s", EventRowSubmitted, received.Type)
		}
		if received.Timestamp.IsZero() {
			t.Error("expected Publish to stamp the event")
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("did not receive event within timeout")
	}
}

func TestEventBus_NonBlockingPublish(t *testing.T) {
	bus := NewEventBus(1)
	defer bus.Shutdown()

	start := time.Now()
	for i := 0; i < 100; i++ {
		bus.Publish(Event{Type: EventRowResolved, Key: "k"})
	}
	if d := time.Since(start); d > 50*time.Millisecond {
		t.Errorf("publish took too long: %v (should be non-blocking)", d)
	}
}

func TestEventBus_MultipleSubscribers(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Shutdown()

	sub1 := bus.Subscribe()
	defer bus.Unsubscribe(sub1)
	sub2 := bus.Subscribe()
	defer bus.Unsubscribe(sub2)

	bus.Publish(Event{Type: EventDealerChanged, DealerCode: "20456"})

	received1 := false
	received2 := false

	timeout := time.After(100 * time.Millisecond)
	for !received1 || !received2 {
		select {
		case <-sub1:
			received1 = true
		case <-sub2:
			received2 = true
		case <-timeout:
			if !received1 {
				t.Error("subscriber 1 did not receive event")
			}
			if !received2 {
				t.Error("subscriber 2 did not receive event")
			}
			return
		}
	}
}

func TestEventBus_ShutdownClosesSubscribers(t *testing.T) {
	bus := NewEventBus(4)
	sub := bus.Subscribe()

	bus.Shutdown()
	bus.Shutdown() // idempotent

	select {
	case _, ok := <-sub:
		if ok {
			t.Error("expected closed channel after shutdown")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("subscriber channel not closed")
	}

	// Publishing after shutdown must not panic.
	bus.Publish(Event{Type: EventRowsCleared})
}

func TestEventBus_NilPublish(t *testing.T) {
	var bus *EventBus
	bus.Publish(Event{Type: EventRowsCleared})
}

func TestFormatSSEEvent(t *testing.T) {
	event := Event{
		Type:       EventTop100Loaded,
		Timestamp:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		DealerCode: "10131",
		Month:      "October",
		Count:      100,
	}

	sse, err := FormatSSEEvent(event)
	if err != nil {
		t.Fatalf("failed to format SSE event: %v", err)
	}

	if !strings.HasPrefix(sse, "event: top100_loaded\n") {
		t.Errorf("unexpected prefix: %q", sse)
	}
	if !strings.HasSuffix(sse, "\n\n") {
		t.Error("SSE format should end with '\\n\\n'")
	}

	dataLine := strings.TrimSuffix(strings.SplitN(sse, "\n", 2)[1], "\n\n")
	if !strings.HasPrefix(dataLine, "data: ") {
		t.Fatalf("second line should be data, got %q", dataLine)
	}
	if !json.Valid([]byte(strings.TrimPrefix(dataLine, "data: "))) {
		t.Error("SSE data is not valid JSON")
	}
}
