package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/satriahrh/smartspeaker/domain/entities"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Supported message types
const (
	MessageTypeHello     MessageType = "hello"
	MessageTypeEvent     MessageType = "event"
	MessageTypeStatus    MessageType = "status"
	MessageTypeSubscribe MessageType = "subscribe"
	MessageTypePing      MessageType = "ping"
	MessageTypePong      MessageType = "pong"
	MessageTypeError     MessageType = "error"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp"`
}

func newBase(t MessageType) BaseMessage {
	return BaseMessage{Type: t, Timestamp: time.Now().Format(time.RFC3339)}
}

// HelloMessage is sent once after the connection is accepted
type HelloMessage struct {
	BaseMessage
	Subject string `json:"subject,omitempty"`
}

// EventMessage carries one voice loop event
type EventMessage struct {
	BaseMessage
	Event entities.Event `json:"event"`
}

// StatusMessage is the periodic status snapshot
type StatusMessage struct {
	BaseMessage
	Status Status `json:"status"`
}

// Status summarizes the running speaker
type Status struct {
	Session *entities.SessionInfo `json:"session,omitempty"`
	Muted   bool                  `json:"muted"`
	Clients int                   `json:"clients"`
}

// SubscribeMessage restricts the events a client receives. An empty list
// subscribes to everything.
type SubscribeMessage struct {
	BaseMessage
	Events []entities.EventType `json:"events"`
}

// PingMessage represents a ping message for connection health check
type PingMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// PongMessage represents a pong response
type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

var knownEventTypes = map[entities.EventType]bool{
	entities.EventSessionStarted: true,
	entities.EventSessionEnded:   true,
	entities.EventTranscript:     true,
	entities.EventUtterance:      true,
	entities.EventDiscarded:      true,
	entities.EventTurn:           true,
	entities.EventMute:           true,
}

// MessageValidator provides validation for messages sent by feed clients
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage parses and validates an incoming client message
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (interface{}, error) {
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch base.Type {
	case MessageTypePing:
		var msg PingMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid ping message: %w", err)
		}
		return &msg, nil

	case MessageTypeSubscribe:
		var msg SubscribeMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid subscribe message: %w", err)
		}
		for _, t := range msg.Events {
			if !knownEventTypes[t] {
				return nil, fmt.Errorf("unknown event type: %s", t)
			}
		}
		return &msg, nil

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

// CreateEventMessage wraps an event for the feed
func CreateEventMessage(event entities.Event) *EventMessage {
	return &EventMessage{BaseMessage: newBase(MessageTypeEvent), Event: event}
}

// CreateStatusMessage wraps a status snapshot
func CreateStatusMessage(status Status) *StatusMessage {
	return &StatusMessage{BaseMessage: newBase(MessageTypeStatus), Status: status}
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(code, message, details string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: newBase(MessageTypeError),
		Code:        code,
		Message:     message,
		Details:     details,
	}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage(data string) *PongMessage {
	return &PongMessage{BaseMessage: newBase(MessageTypePong), Data: data}
}
