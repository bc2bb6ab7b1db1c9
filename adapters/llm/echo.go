package llm

import (
	"context"
	"fmt"

	"github.com/satriahrh/smartspeaker/domain/entities"
	"github.com/satriahrh/smartspeaker/domain/repositories"
)

// EchoLLM repeats the latest user message. Used for bench runs without
// a completion backend.
type EchoLLM struct{}

var _ repositories.LargeLanguageModel = EchoLLM{}

// Complete implements repositories.LargeLanguageModel
func (EchoLLM) Complete(ctx context.Context, messages []repositories.ChatMessage) (string, error) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == entities.RoleUser && messages[i].Content != "" {
			return fmt.Sprintf("Вы сказали: %s", messages[i].Content), nil
		}
	}
	return "Я вас слушаю.", nil
}
