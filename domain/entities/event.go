package entities

import "time"

// EventType names a diagnostics feed event
type EventType string

const (
	EventSessionStarted EventType = "session_started"
	EventSessionEnded   EventType = "session_ended"
	EventTranscript     EventType = "transcript"
	EventUtterance      EventType = "utterance"
	EventDiscarded      EventType = "discarded"
	EventTurn           EventType = "turn"
	EventMute           EventType = "mute"
)

// Event is one observation of the voice loop, published for operators
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	Text     string `json:"text,omitempty"`
	Response string `json:"response,omitempty"`
	IsFinal  bool   `json:"is_final,omitempty"`
	Muted    *bool  `json:"muted,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Error    string `json:"error,omitempty"`
}

// NewEvent creates an event stamped with the current time
func NewEvent(t EventType, sessionID string) Event {
	return Event{Type: t, SessionID: sessionID, Timestamp: time.Now()}
}
