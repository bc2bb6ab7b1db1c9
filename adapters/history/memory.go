package history

import (
	"context"
	"sync"

	"github.com/satriahrh/smartspeaker/domain/entities"
	"github.com/satriahrh/smartspeaker/domain/repositories"
)

// MemoryRepository keeps the conversation table in process memory.
// History is lost on restart.
type MemoryRepository struct {
	mu    sync.RWMutex
	turns []entities.ConversationTurn
}

var _ repositories.HistoryRepository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// Load implements repositories.HistoryRepository
func (r *MemoryRepository) Load(ctx context.Context) ([]entities.ConversationTurn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]entities.ConversationTurn, len(r.turns))
	copy(out, r.turns)
	return out, nil
}

// Save implements repositories.HistoryRepository
func (r *MemoryRepository) Save(ctx context.Context, turns []entities.ConversationTurn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns = make([]entities.ConversationTurn, len(turns))
	copy(r.turns, turns)
	return nil
}
