// Package config loads process settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Provider names
const (
	STTGoogle  = "google"
	STTConsole = "console"

	TTSGoogle     = "google"
	TTSElevenLabs = "elevenlabs"

	LLMOpenAI = "openai"
	LLMGemini = "gemini"
	LLMEcho   = "echo"

	HistoryCSV    = "csv"
	HistoryMongo  = "mongo"
	HistoryMemory = "memory"
)

// Config holds every setting of the speaker process
type Config struct {
	AppEnv   string
	LogLevel string

	// Capture
	SampleRate    int
	ChunkFrames   int
	CaptureDevice string

	// Recognition
	LanguageCode    string
	STTProvider     string
	STTModel        string
	CredentialsFile string

	// Segmentation
	MinTextLength int
	PauseTime     time.Duration

	// Synthesis and playback
	TTSProvider        string
	TTSVoice           string
	TTSGender          string
	PlaybackOutputFile string
	GreetingFile       string
	MixerCard          string
	MixerControl       string

	// Completion
	LLMProvider    string
	OpenAIAPIKey   string
	OpenAIModel    string
	OpenAIBaseURL  string
	OpenAIProxyURL string
	GeminiAPIKey   string
	GeminiModel    string
	Temperature    float32

	// Conversation
	HistoryBackend string
	HistoryFile    string
	HistoryLength  int
	MongoURI       string
	MongoDatabase  string
	RoleFile       string
	UserID         int64
	SessionRestart bool

	// Diagnostics
	DiagAddr      string
	DiagJWTSecret string
}

// Load reads .env (if present) and the environment, applies defaults and
// validates the result.
func Load(logger *zap.Logger) (Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file loaded", zap.Error(err))
	}
	return FromEnv(logger)
}

// FromEnv builds a Config from environment variables only
func FromEnv(logger *zap.Logger) (Config, error) {
	var errs []error
	p := parser{errs: &errs}

	cfg := Config{
		AppEnv:   getenv("APP_ENV", "production"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		SampleRate:    p.int("SAMPLE_RATE", 44100),
		CaptureDevice: getenv("CAPTURE_DEVICE", "1"),

		LanguageCode:    getenv("LANGUAGE_CODE", "ru-RU"),
		STTProvider:     strings.ToLower(getenv("STT_PROVIDER", STTGoogle)),
		STTModel:        getenv("STT_MODEL", "command_and_search"),
		CredentialsFile: getenv("GOOGLE_APPLICATION_CREDENTIALS", "ge200.json"),

		MinTextLength: p.int("MIN_TEXT_LENGTH", 3),
		PauseTime:     p.seconds("PAUSE_TIME", 1500*time.Millisecond),

		TTSProvider:        strings.ToLower(getenv("TTS_PROVIDER", TTSGoogle)),
		TTSVoice:           getenv("TTS_VOICE", "ru-RU-Wavenet-D"),
		TTSGender:          strings.ToUpper(getenv("TTS_GENDER", "male")),
		PlaybackOutputFile: getenv("PLAYBACK_OUTPUT_FILE", "output.mp3"),
		GreetingFile:       os.Getenv("GREETING_FILE"),
		MixerCard:          getenv("MIXER_CARD", "1"),
		MixerControl:       getenv("MIXER_CONTROL", "Mic"),

		LLMProvider:    strings.ToLower(getenv("LLM_PROVIDER", LLMOpenAI)),
		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:    getenv("OPENAI_MODEL", "gpt-4o"),
		OpenAIBaseURL:  os.Getenv("OPENAI_BASE_URL"),
		OpenAIProxyURL: os.Getenv("OPENAI_PROXY_URL"),
		GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
		GeminiModel:    os.Getenv("GEMINI_MODEL"),
		Temperature:    p.float32("TEMPERATURE", 0.7),

		HistoryBackend: strings.ToLower(getenv("HISTORY_BACKEND", HistoryCSV)),
		HistoryFile:    getenv("HISTORY_FILE", "history1.csv"),
		HistoryLength:  p.int("HISTORY_LENGTH", 8),
		MongoURI:       os.Getenv("MONGODB_URI"),
		MongoDatabase:  os.Getenv("MONGODB_DATABASE"),
		RoleFile:       getenv("ROLE_FILE", "role.txt"),
		UserID:         p.int64("USER_ID", 111),
		SessionRestart: p.bool("SESSION_RESTART", false),

		DiagAddr:      os.Getenv("DIAG_ADDR"),
		DiagJWTSecret: os.Getenv("DIAG_JWT_SECRET"),
	}
	cfg.ChunkFrames = p.int("CHUNK_FRAMES", cfg.SampleRate/10)

	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	logger.Info("Configuration loaded",
		zap.String("app_env", cfg.AppEnv),
		zap.Int("sample_rate", cfg.SampleRate),
		zap.String("capture_device", cfg.CaptureDevice),
		zap.String("language", cfg.LanguageCode),
		zap.String("stt", cfg.STTProvider),
		zap.String("tts", cfg.TTSProvider),
		zap.String("llm", cfg.LLMProvider),
		zap.String("history", cfg.HistoryBackend))
	return cfg, nil
}

// Validate checks ranges and provider requirements
func (c Config) Validate() error {
	var errs []error
	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("SAMPLE_RATE must be positive, got %d", c.SampleRate))
	}
	if c.ChunkFrames <= 0 {
		errs = append(errs, fmt.Errorf("CHUNK_FRAMES must be positive, got %d", c.ChunkFrames))
	}
	if c.MinTextLength < 0 {
		errs = append(errs, fmt.Errorf("MIN_TEXT_LENGTH must not be negative, got %d", c.MinTextLength))
	}
	if c.PauseTime < 0 {
		errs = append(errs, fmt.Errorf("PAUSE_TIME must not be negative, got %s", c.PauseTime))
	}
	if c.HistoryLength <= 0 {
		errs = append(errs, fmt.Errorf("HISTORY_LENGTH must be positive, got %d", c.HistoryLength))
	}

	switch c.STTProvider {
	case STTGoogle, STTConsole:
	default:
		errs = append(errs, fmt.Errorf("unknown STT_PROVIDER %q", c.STTProvider))
	}
	switch c.TTSProvider {
	case TTSGoogle, TTSElevenLabs:
	default:
		errs = append(errs, fmt.Errorf("unknown TTS_PROVIDER %q", c.TTSProvider))
	}
	switch c.LLMProvider {
	case LLMOpenAI:
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for the openai provider"))
		}
	case LLMGemini:
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required for the gemini provider"))
		}
	case LLMEcho:
	default:
		errs = append(errs, fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider))
	}
	switch c.HistoryBackend {
	case HistoryCSV:
		if c.HistoryFile == "" {
			errs = append(errs, errors.New("HISTORY_FILE is required for the csv backend"))
		}
	case HistoryMongo, HistoryMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown HISTORY_BACKEND %q", c.HistoryBackend))
	}

	return errors.Join(errs...)
}

// IsDevelopment reports whether APP_ENV selects the development logger
func (c Config) IsDevelopment() bool {
	return c.AppEnv == "development" || c.AppEnv == "dev"
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

// parser collects conversion errors so every bad variable is reported at once
type parser struct {
	errs *[]error
}

func (p parser) fail(key, value string, err error) {
	*p.errs = append(*p.errs, fmt.Errorf("invalid %s %q: %w", key, value, err))
}

func (p parser) int(key string, fallback int) int {
	v := getenv(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return n
}

func (p parser) int64(key string, fallback int64) int64 {
	v := getenv(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return n
}

func (p parser) float32(key string, fallback float32) float32 {
	v := getenv(key, "")
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return float32(f)
}

func (p parser) bool(key string, fallback bool) bool {
	v := getenv(key, "")
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return b
}

// seconds accepts a plain number of seconds ("1.5") or a Go duration ("1500ms")
func (p parser) seconds(key string, fallback time.Duration) time.Duration {
	v := getenv(key, "")
	if v == "" {
		return fallback
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(f * float64(time.Second))
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return d
}
