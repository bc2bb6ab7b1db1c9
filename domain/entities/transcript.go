package entities

import "time"

// TranscriptEvent is a single result from the streaming recognizer.
// Partial events carry IsFinal=false and may be revised by later events.
type TranscriptEvent struct {
	Text      string    `json:"text"`
	IsFinal   bool      `json:"is_final"`
	Stability float32   `json:"stability,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Utterance is a final transcript accepted for a dialog turn
type Utterance struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id"`
}
