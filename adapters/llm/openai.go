package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/satriahrh/smartspeaker/domain/entities"
	"github.com/satriahrh/smartspeaker/domain/repositories"
)

const (
	defaultOpenAIModel       = "gpt-4o"
	defaultOpenAITemperature = 0.7
	defaultOpenAITimeout     = 60 * time.Second
)

// OpenAIConfig holds configuration for the OpenAI completion adapter
type OpenAIConfig struct {
	APIKey      string        // Required
	BaseURL     string        // Optional: API base URL, e.g. for a compatible gateway
	Model       string        // Optional: default "gpt-4o"
	Temperature float32       // Optional: 0 to 2, default 0.7
	ProxyURL    string        // Optional: HTTP proxy for outbound requests
	Timeout     time.Duration // Optional: per-request timeout, default 60s
}

// OpenAILLM implements LargeLanguageModel with the OpenAI chat completions API
type OpenAILLM struct {
	client      *openai.Client
	model       string
	temperature float32
	logger      *zap.Logger
}

var _ repositories.LargeLanguageModel = (*OpenAILLM)(nil)

// ValidateOpenAIConfig validates the OpenAIConfig
func ValidateOpenAIConfig(config OpenAIConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("OpenAI API key is required")
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", config.Temperature)
	}
	if config.ProxyURL != "" {
		if _, err := url.Parse(config.ProxyURL); err != nil {
			return fmt.Errorf("invalid proxy URL: %w", err)
		}
	}
	return nil
}

// NewOpenAILLM creates an OpenAI completion client
func NewOpenAILLM(config OpenAIConfig, logger *zap.Logger) (*OpenAILLM, error) {
	if err := ValidateOpenAIConfig(config); err != nil {
		return nil, err
	}

	model := config.Model
	if model == "" {
		model = defaultOpenAIModel
		logger.Info("Using default model", zap.String("model", model))
	}

	temperature := config.Temperature
	if temperature == 0 {
		temperature = defaultOpenAITemperature
		logger.Info("Using default temperature", zap.Float32("temperature", temperature))
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultOpenAITimeout
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	httpClient := &http.Client{Timeout: timeout}
	if config.ProxyURL != "" {
		proxy, _ := url.Parse(config.ProxyURL)
		httpClient.Transport = &http.Transport{Proxy: http.ProxyURL(proxy)}
		logger.Info("Using HTTP proxy for completions", zap.String("proxy", proxy.Host))
	}
	clientConfig.HTTPClient = httpClient

	return &OpenAILLM{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       model,
		temperature: temperature,
		logger:      logger,
	}, nil
}

// Complete sends the messages as one chat completion request
func (o *OpenAILLM) Complete(ctx context.Context, messages []repositories.ChatMessage) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    toOpenAIMessages(messages),
		Temperature: o.temperature,
	}

	started := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	o.logger.Info("Chat completion received",
		zap.String("model", resp.Model),
		zap.Int("promptTokens", resp.Usage.PromptTokens),
		zap.Int("completionTokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(started)))

	return resp.Choices[0].Message.Content, nil
}

// toOpenAIMessages converts the request, skipping messages with no content:
// the client omits an empty content field and the API rejects such messages.
func toOpenAIMessages(messages []repositories.ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		if m.Content == "" {
			continue
		}
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case entities.RoleSystem:
			role = openai.ChatMessageRoleSystem
		case entities.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}
