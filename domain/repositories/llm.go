package repositories

import (
	"context"

	"github.com/satriahrh/smartspeaker/domain/entities"
)

// LargeLanguageModel abstracts any chat completion provider
type LargeLanguageModel interface {
	// Complete returns the reply to an ordered list of messages
	Complete(ctx context.Context, messages []ChatMessage) (string, error)
}

// ChatMessage represents a single message in a completion request
type ChatMessage struct {
	Role    entities.Role `json:"role"`
	Content string        `json:"content"`
}
