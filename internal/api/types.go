package api

import "github.com/satriahrh/smartspeaker/domain/entities"

// HealthResponse is returned by the health endpoint
type HealthResponse struct {
	Status  string                `json:"status"`
	Service string                `json:"service"`
	Muted   bool                  `json:"muted"`
	Session *entities.SessionInfo `json:"session,omitempty"`
}

// DevicesResponse lists the audio devices known to the driver
type DevicesResponse struct {
	Devices []entities.DeviceInfo `json:"devices"`
}

// HistoryResponse is the context window of one user
type HistoryResponse struct {
	UserID        int64                       `json:"user_id"`
	HistoryLength int                         `json:"history_length"`
	Turns         []entities.ConversationTurn `json:"turns"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
