package events

import "time"

// Event is the envelope that flows through the event bus.
// Every domain event (session start, kick, session end) is wrapped in one.
type Event struct {
	ID        string
	Type      EventType
	SessionID string
	Player    string
	Timestamp time.Time
	Payload   any
}

type EventType string

const (
	EventSessionStart EventType = "session_start"
	EventKickResolved EventType = "kick_resolved"
	EventSessionEnd   EventType = "session_end"
)
