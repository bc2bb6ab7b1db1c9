package entities

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionStatus represents the status of a listening session
type SessionStatus string

const (
	SessionStatusActive     SessionStatus = "active"
	SessionStatusTerminated SessionStatus = "terminated"
)

// EndReason records why a listening session stopped
type EndReason string

const (
	EndReasonNone             EndReason = ""
	EndReasonTerminationWord  EndReason = "termination_word"
	EndReasonRecognitionError EndReason = "recognition_error"
	EndReasonCaptureClosed    EndReason = "capture_closed"
	EndReasonStreamEnded      EndReason = "stream_ended"
	EndReasonShutdown         EndReason = "shutdown"
)

// Session is one recognition session: from opening the capture device
// until the stream is torn down.
type Session struct {
	ID         string        `json:"id"`
	StartedAt  time.Time     `json:"started_at"`
	EndedAt    *time.Time    `json:"ended_at,omitempty"`
	Status     SessionStatus `json:"status"`
	EndReason  EndReason     `json:"end_reason,omitempty"`
	Utterances int           `json:"utterances"`

	mu sync.Mutex
}

// NewSession creates an active session with a fresh id
func NewSession() *Session {
	return &Session{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		Status:    SessionStatusActive,
	}
}

// RecordUtterance counts an utterance handed to the dialog flow
func (s *Session) RecordUtterance() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Utterances++
}

// Terminate marks the session as ended. Only the first reason is kept.
func (s *Session) Terminate(reason EndReason) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status == SessionStatusTerminated {
		return false
	}
	now := time.Now()
	s.Status = SessionStatusTerminated
	s.EndReason = reason
	s.EndedAt = &now
	return true
}

// IsActive reports whether the session has not been terminated
func (s *Session) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Status == SessionStatusActive
}

// Reason returns the recorded end reason
func (s *Session) Reason() EndReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.EndReason
}

// Duration returns how long the session has been (or was) running
func (s *Session) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.EndedAt != nil {
		return s.EndedAt.Sub(s.StartedAt)
	}
	return time.Since(s.StartedAt)
}

// SessionInfo is a copy of the session fields safe to hand to other goroutines
type SessionInfo struct {
	ID         string        `json:"id"`
	StartedAt  time.Time     `json:"started_at"`
	EndedAt    *time.Time    `json:"ended_at,omitempty"`
	Status     SessionStatus `json:"status"`
	EndReason  EndReason     `json:"end_reason,omitempty"`
	Utterances int           `json:"utterances"`
}

// Info returns a snapshot of the session
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionInfo{
		ID:         s.ID,
		StartedAt:  s.StartedAt,
		EndedAt:    s.EndedAt,
		Status:     s.Status,
		EndReason:  s.EndReason,
		Utterances: s.Utterances,
	}
}

// Validate validates the session data
func (s *Session) Validate() error {
	if s.ID == "" {
		return errors.New("session id is required")
	}
	if s.Status != SessionStatusActive && s.Status != SessionStatusTerminated {
		return errors.New("invalid session status")
	}
	return nil
}
