package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/smartspeaker/domain"
	"github.com/satriahrh/smartspeaker/domain/entities"
	"github.com/satriahrh/smartspeaker/domain/repositories"
	"github.com/satriahrh/smartspeaker/internal/conversation"
)

// Speaker plays a reply with the microphone muted
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// RoleSource provides the system prompt for each turn
type RoleSource interface {
	Load() (string, error)
}

// TurnResult describes one completed or abandoned turn
type TurnResult struct {
	Utterance string
	Response  string
	Elapsed   time.Duration
	Err       error
}

// DialogService runs one conversational turn per utterance: remember the
// user text, ask the completion backend, remember and speak the reply.
type DialogService struct {
	llm          repositories.LargeLanguageModel
	conversation *conversation.Context
	speaker      Speaker
	role         RoleSource
	userID       int64
	publisher    repositories.EventPublisher
	logger       *zap.Logger
}

// NewDialogService creates a dialog driver for a single user
func NewDialogService(
	llm repositories.LargeLanguageModel,
	conv *conversation.Context,
	speaker Speaker,
	role RoleSource,
	userID int64,
	publisher repositories.EventPublisher,
	logger *zap.Logger,
) *DialogService {
	if publisher == nil {
		publisher = repositories.NopPublisher{}
	}
	return &DialogService{
		llm:          llm,
		conversation: conv,
		speaker:      speaker,
		role:         role,
		userID:       userID,
		publisher:    publisher,
		logger:       logger,
	}
}

// HandleUtterance runs a turn to completion. Failures end the turn, never
// the session; the returned result carries the error for reporting.
func (s *DialogService) HandleUtterance(ctx context.Context, u entities.Utterance) TurnResult {
	started := time.Now()
	result := TurnResult{Utterance: u.Text}

	response, err := s.respond(ctx, u.Text)
	result.Response = response
	if err == nil {
		err = s.speak(ctx, response)
	}
	result.Err = err
	result.Elapsed = time.Since(started)

	event := entities.NewEvent(entities.EventTurn, u.SessionID)
	event.Text = u.Text
	event.Response = response
	if err != nil {
		event.Error = err.Error()
		s.logger.Error("Turn abandoned",
			zap.String("session_id", u.SessionID),
			zap.String("utterance", u.Text),
			zap.Duration("elapsed", result.Elapsed),
			zap.Error(err))
	} else {
		s.logger.Info("Turn completed",
			zap.String("session_id", u.SessionID),
			zap.String("utterance", u.Text),
			zap.String("response", response),
			zap.Duration("elapsed", result.Elapsed))
	}
	s.publisher.Publish(event)

	return result
}

func (s *DialogService) respond(ctx context.Context, text string) (string, error) {
	roleText, err := s.role.Load()
	if err != nil {
		return "", err
	}

	table, err := s.conversation.AppendUser(ctx, s.userID, text)
	if err != nil {
		s.logger.Warn("Failed to persist user turn", zap.Error(err))
	}

	messages := s.conversation.RequestFrom(table, s.userID, roleText)
	s.logger.Debug("Sending completion request", zap.Int("messages", len(messages)))

	response, err := s.llm.Complete(ctx, messages)
	if err != nil {
		if !errors.Is(err, domain.ErrCompletionBackend) {
			err = fmt.Errorf("%w: %v", domain.ErrCompletionBackend, err)
		}
		return "", err
	}
	response = strings.TrimSpace(response)

	if err := s.conversation.AppendAssistant(ctx, s.userID, response); err != nil {
		s.logger.Warn("Failed to persist assistant turn", zap.Error(err))
	}
	return response, nil
}

func (s *DialogService) speak(ctx context.Context, response string) error {
	if err := s.speaker.Speak(ctx, response); err != nil {
		return fmt.Errorf("failed to speak response: %w", err)
	}
	return nil
}
