package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/satriahrh/smartspeaker/domain/entities"
	"github.com/satriahrh/smartspeaker/domain/repositories"
)

const (
	historyCollection = "conversation_history"
	defaultHistoryKey = "default"
)

// historyDocument holds the whole conversation table of one speaker
type historyDocument struct {
	ID        string                      `bson:"_id"`
	Turns     []entities.ConversationTurn `bson:"turns"`
	UpdatedAt time.Time                   `bson:"updated_at"`
}

// HistoryRepository implements HistoryRepository with one MongoDB document
// per speaker, replaced in full on every save.
type HistoryRepository struct {
	collection *mongo.Collection
	key        string
	logger     *zap.Logger
}

var _ repositories.HistoryRepository = (*HistoryRepository)(nil)

// NewHistoryRepository creates a repository storing under key
func NewHistoryRepository(db *mongo.Database, key string, logger *zap.Logger) *HistoryRepository {
	if key == "" {
		key = defaultHistoryKey
	}
	return &HistoryRepository{
		collection: db.Collection(historyCollection),
		key:        key,
		logger:     logger,
	}
}

// Load implements repositories.HistoryRepository
func (r *HistoryRepository) Load(ctx context.Context) ([]entities.ConversationTurn, error) {
	var doc historyDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": r.key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return []entities.ConversationTurn{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	if doc.Turns == nil {
		doc.Turns = []entities.ConversationTurn{}
	}
	return doc.Turns, nil
}

// Save implements repositories.HistoryRepository
func (r *HistoryRepository) Save(ctx context.Context, turns []entities.ConversationTurn) error {
	if turns == nil {
		turns = []entities.ConversationTurn{}
	}
	doc := historyDocument{
		ID:        r.key,
		Turns:     turns,
		UpdatedAt: time.Now(),
	}

	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": r.key}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save history: %w", err)
	}

	r.logger.Debug("History saved", zap.String("key", r.key), zap.Int("turns", len(turns)))
	return nil
}
