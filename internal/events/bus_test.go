package events

import (
	"errors"
	"testing"
)

func TestBusDispatchOrderAndIsolation(t *testing.T) {
	bus := NewBus()
	var calls []string

	bus.Subscribe(EventKickResolved, func(Event) error {
		calls = append(calls, "first")
		return errors.New("boom")
	})
	bus.Subscribe(EventKickResolved, func(e Event) error {
		calls = append(calls, "second:"+e.SessionID)
		return nil
	})
	bus.Subscribe(EventSessionEnd, func(Event) error {
		calls = append(calls, "end")
		return nil
	})

	bus.Publish(Event{Type: EventKickResolved, SessionID: "s1"})

	if len(calls) != 2 || calls[0] != "first" || calls[1] != "second:s1" {
		t.Fatalf("calls = %v, want [first second:s1]", calls)
	}
}

func TestBusPublishWithoutSubscribers(t *testing.T) {
	NewBus().Publish(Event{Type: EventSessionStart})
}
