package fanout

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/charleschow/penalty-lab/internal/events"
)

// Envelope is the wire format for events sent over the fanout WebSocket.
type Envelope struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	Player    string          `json:"player,omitempty"`
	Timestamp time.Time       `json:"ts"`
	Payload   json.RawMessage `json:"payload"`
}

// MarshalEvent serializes an Event into a JSON-encoded Envelope.
func MarshalEvent(evt events.Event) ([]byte, error) {
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	env := Envelope{
		Type:      string(evt.Type),
		ID:        evt.ID,
		SessionID: evt.SessionID,
		Player:    evt.Player,
		Timestamp: evt.Timestamp,
		Payload:   payload,
	}
	return json.Marshal(env)
}

// UnmarshalEvent deserializes a JSON Envelope back into a typed Event.
func UnmarshalEvent(data []byte) (events.Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return events.Event{}, fmt.Errorf("unmarshal envelope: %w", err)
	}

	evt := events.Event{
		ID:        env.ID,
		Type:      events.EventType(env.Type),
		SessionID: env.SessionID,
		Player:    env.Player,
		Timestamp: env.Timestamp,
	}

	switch evt.Type {
	case events.EventKickResolved:
		var ke events.KickEvent
		if err := json.Unmarshal(env.Payload, &ke); err != nil {
			return evt, fmt.Errorf("unmarshal kick_resolved: %w", err)
		}
		evt.Payload = ke
	case events.EventSessionStart, events.EventSessionEnd:
		var se events.SessionEvent
		if err := json.Unmarshal(env.Payload, &se); err != nil {
			return evt, fmt.Errorf("unmarshal %s: %w", env.Type, err)
		}
		evt.Payload = se
	default:
		return evt, fmt.Errorf("unknown event type: %s", env.Type)
	}

	return evt, nil
}
