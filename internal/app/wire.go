// Package app builds the adapters selected by the configuration.
package app

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"go.uber.org/zap"

	"github.com/satriahrh/smartspeaker/adapters/history"
	"github.com/satriahrh/smartspeaker/adapters/llm"
	"github.com/satriahrh/smartspeaker/adapters/mongo"
	"github.com/satriahrh/smartspeaker/adapters/stt"
	"github.com/satriahrh/smartspeaker/adapters/tts"
	"github.com/satriahrh/smartspeaker/domain/repositories"
	"github.com/satriahrh/smartspeaker/internal/config"
)

// CloseFunc releases an adapter's resources
type CloseFunc func()

func nopClose() {}

// NewLogger builds the process logger from APP_ENV and LOG_LEVEL
func NewLogger(cfg config.Config) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.IsDevelopment() {
		zcfg = zap.NewDevelopmentConfig()
	}
	if cfg.LogLevel != "" {
		level, err := zap.ParseAtomicLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		zcfg.Level = level
	}
	return zcfg.Build()
}

// NewRecognizer returns the configured speech recognizer
func NewRecognizer(cfg config.Config, stdin io.Reader, logger *zap.Logger) repositories.SpeechToText {
	if cfg.STTProvider == config.STTConsole {
		logger.Info("Using console recognizer, type one utterance per line")
		return stt.NewConsoleSpeechToText(stdin, logger)
	}
	return stt.NewGoogleSpeechToText(stt.GoogleSpeechConfig{CredentialsFile: cfg.CredentialsFile}, logger)
}

// RecognitionConfig returns the static streaming settings
func RecognitionConfig(cfg config.Config) repositories.RecognitionConfig {
	return repositories.RecognitionConfig{
		SampleRate:           cfg.SampleRate,
		Encoding:             "LINEAR16",
		Language:             cfg.LanguageCode,
		Model:                cfg.STTModel,
		UseEnhanced:          true,
		AutomaticPunctuation: true,
		InterimResults:       true,
		SingleUtterance:      false,
	}
}

// NewSynthesizer returns the configured speech synthesizer
func NewSynthesizer(ctx context.Context, cfg config.Config, logger *zap.Logger) (repositories.TextToSpeech, CloseFunc, error) {
	switch cfg.TTSProvider {
	case config.TTSElevenLabs:
		synth, err := tts.NewElevenLabsTTS(tts.NewElevenLabsConfigFromEnv(), logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create ElevenLabs synthesizer: %w", err)
		}
		return synth, nopClose, nil
	default:
		synth, err := tts.NewGoogleTTS(ctx, tts.GoogleTTSConfig{
			CredentialsFile: cfg.CredentialsFile,
			LanguageCode:    cfg.LanguageCode,
			VoiceName:       cfg.TTSVoice,
			Gender:          cfg.TTSGender,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Google synthesizer: %w", err)
		}
		return synth, func() {
			if err := synth.Close(); err != nil {
				logger.Warn("Failed to close synthesizer", zap.Error(err))
			}
		}, nil
	}
}

// NewCompletion returns the configured completion backend
func NewCompletion(ctx context.Context, cfg config.Config, logger *zap.Logger) (repositories.LargeLanguageModel, error) {
	switch cfg.LLMProvider {
	case config.LLMEcho:
		logger.Info("Using echo completion backend")
		return llm.EchoLLM{}, nil
	case config.LLMGemini:
		backend, err := llm.NewGeminiLLM(ctx, llm.GeminiConfig{
			APIKey:      cfg.GeminiAPIKey,
			Model:       cfg.GeminiModel,
			Temperature: cfg.Temperature,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini backend: %w", err)
		}
		return backend, nil
	default:
		backend, err := llm.NewOpenAILLM(llm.OpenAIConfig{
			APIKey:      cfg.OpenAIAPIKey,
			BaseURL:     cfg.OpenAIBaseURL,
			Model:       cfg.OpenAIModel,
			Temperature: cfg.Temperature,
			ProxyURL:    cfg.OpenAIProxyURL,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI backend: %w", err)
		}
		return backend, nil
	}
}

// NewHistory returns the configured conversation history store
func NewHistory(ctx context.Context, cfg config.Config, logger *zap.Logger) (repositories.HistoryRepository, CloseFunc, error) {
	switch cfg.HistoryBackend {
	case config.HistoryMemory:
		return history.NewMemoryRepository(), nopClose, nil
	case config.HistoryMongo:
		client, err := mongo.NewClient(ctx, mongo.Config{URI: cfg.MongoURI, Database: cfg.MongoDatabase}, logger)
		if err != nil {
			return nil, nil, err
		}
		repo := mongo.NewHistoryRepository(client.Database, "speaker-"+strconv.FormatInt(cfg.UserID, 10), logger)
		return repo, func() {
			client.Close(context.Background())
		}, nil
	default:
		return history.NewCSVRepository(cfg.HistoryFile, logger), nopClose, nil
	}
}
