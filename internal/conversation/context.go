// Package conversation keeps the per-user rolling conversation window and
// assembles completion requests from it.
package conversation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/satriahrh/smartspeaker/domain"
	"github.com/satriahrh/smartspeaker/domain/entities"
	"github.com/satriahrh/smartspeaker/domain/repositories"
)

const defaultHistoryLength = 8

// Config holds the context window settings
type Config struct {
	// HistoryLength is how many of the most recent turns go into a request
	HistoryLength int
}

// Context appends turns to the history store and builds completion
// requests from the most recent ones.
type Context struct {
	repo          repositories.HistoryRepository
	historyLength int
	logger        *zap.Logger
}

// New creates a conversation context backed by repo
func New(repo repositories.HistoryRepository, cfg Config, logger *zap.Logger) *Context {
	historyLength := cfg.HistoryLength
	if historyLength <= 0 {
		historyLength = defaultHistoryLength
		logger.Info("Using default history length", zap.Int("historyLength", historyLength))
	}
	return &Context{
		repo:          repo,
		historyLength: historyLength,
		logger:        logger,
	}
}

// HistoryLength returns the window size N
func (c *Context) HistoryLength() int { return c.historyLength }

// AppendUser persists a user turn and returns the whole table with the turn
// appended. The returned table is valid even when the error is non-nil, so a
// request can still carry the utterance when the store is failing.
func (c *Context) AppendUser(ctx context.Context, userID int64, text string) ([]entities.ConversationTurn, error) {
	return c.append(ctx, entities.NewConversationTurn(userID, entities.RoleUser, text))
}

// AppendAssistant persists an assistant turn before returning
func (c *Context) AppendAssistant(ctx context.Context, userID int64, text string) error {
	_, err := c.append(ctx, entities.NewConversationTurn(userID, entities.RoleAssistant, text))
	return err
}

// append never saves over a table it could not read, otherwise an unreadable
// row would replace the stored history with a single turn.
func (c *Context) append(ctx context.Context, turn entities.ConversationTurn) ([]entities.ConversationTurn, error) {
	turns, err := c.repo.Load(ctx)
	if err != nil {
		return []entities.ConversationTurn{turn}, fmt.Errorf("%w: failed to load history, %s turn not saved: %v", domain.ErrHistoryStore, turn.Role, err)
	}
	turns = append(turns, turn)

	if err := c.repo.Save(ctx, turns); err != nil {
		return turns, fmt.Errorf("%w: failed to save %s turn: %v", domain.ErrHistoryStore, turn.Role, err)
	}

	c.logger.Debug("Appended conversation turn",
		zap.Int64("userID", turn.UserID),
		zap.String("role", string(turn.Role)),
		zap.Int("totalTurns", len(turns)))
	return turns, nil
}

// load reads the whole table for building requests. A store that cannot be
// read is treated as empty so a broken history never blocks a conversation.
func (c *Context) load(ctx context.Context) []entities.ConversationTurn {
	turns, err := c.repo.Load(ctx)
	if err != nil {
		c.logger.Warn("Failed to load conversation history, using empty window", zap.Error(err))
		return nil
	}
	return turns
}

// Window returns the last N turns of userID in chronological order
func (c *Context) Window(ctx context.Context, userID int64) []entities.ConversationTurn {
	return c.window(c.load(ctx), userID)
}

func (c *Context) window(table []entities.ConversationTurn, userID int64) []entities.ConversationTurn {
	turns := entities.TurnsForUser(table, userID)
	if len(turns) > c.historyLength {
		turns = turns[len(turns)-c.historyLength:]
	}
	return turns
}

// BuildRequest returns the system message, an empty user placeholder and
// then the user's last N turns read from the store.
func (c *Context) BuildRequest(ctx context.Context, userID int64, roleText string) []repositories.ChatMessage {
	return c.RequestFrom(c.load(ctx), userID, roleText)
}

// RequestFrom builds the same request as BuildRequest from a table the
// caller already holds, such as the one returned by AppendUser.
func (c *Context) RequestFrom(table []entities.ConversationTurn, userID int64, roleText string) []repositories.ChatMessage {
	window := c.window(table, userID)

	messages := make([]repositories.ChatMessage, 0, len(window)+2)
	messages = append(messages,
		repositories.ChatMessage{Role: entities.RoleSystem, Content: roleText},
		repositories.ChatMessage{Role: entities.RoleUser, Content: ""},
	)
	for _, t := range window {
		messages = append(messages, repositories.ChatMessage{Role: t.Role, Content: t.Content})
	}
	return messages
}
