package repositories

import (
	"context"

	"github.com/satriahrh/smartspeaker/domain/entities"
)

// HistoryRepository persists the whole conversation table.
// Load on a store that does not exist yet returns an empty slice.
type HistoryRepository interface {
	Load(ctx context.Context) ([]entities.ConversationTurn, error)
	Save(ctx context.Context, turns []entities.ConversationTurn) error
}
