package entities

import (
	"fmt"
	"time"
)

// Role represents the author of a conversation message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ParseRole converts a stored role name into a Role
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleSystem, RoleUser, RoleAssistant:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// ConversationTurn is one persisted message of a user's conversation history
type ConversationTurn struct {
	UserID    int64     `json:"user_id" bson:"user_id"`
	Role      Role      `json:"role" bson:"role"`
	Content   string    `json:"content" bson:"content"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// NewConversationTurn creates a turn stamped with the current time
func NewConversationTurn(userID int64, role Role, content string) ConversationTurn {
	return ConversationTurn{
		UserID:    userID,
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// TurnsForUser returns the turns belonging to userID, preserving order
func TurnsForUser(turns []ConversationTurn, userID int64) []ConversationTurn {
	out := make([]ConversationTurn, 0, len(turns))
	for _, t := range turns {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out
}
