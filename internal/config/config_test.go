package config

import (
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

var allKeys = []string{
	"APP_ENV", "LOG_LEVEL", "SAMPLE_RATE", "CHUNK_FRAMES", "CAPTURE_DEVICE",
	"LANGUAGE_CODE", "STT_PROVIDER", "STT_MODEL", "GOOGLE_APPLICATION_CREDENTIALS",
	"MIN_TEXT_LENGTH", "PAUSE_TIME", "TTS_PROVIDER", "TTS_VOICE", "TTS_GENDER",
	"PLAYBACK_OUTPUT_FILE", "GREETING_FILE", "MIXER_CARD", "MIXER_CONTROL",
	"LLM_PROVIDER", "OPENAI_API_KEY", "OPENAI_MODEL", "OPENAI_BASE_URL",
	"OPENAI_PROXY_URL", "GEMINI_API_KEY", "GEMINI_MODEL", "TEMPERATURE",
	"HISTORY_BACKEND", "HISTORY_FILE", "HISTORY_LENGTH", "MONGODB_URI",
	"MONGODB_DATABASE", "ROLE_FILE", "USER_ID", "SESSION_RESTART",
	"DIAG_ADDR", "DIAG_JWT_SECRET",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := FromEnv(zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.SampleRate != 44100 {
		t.Errorf("Expected sample rate 44100, got %d", cfg.SampleRate)
	}
	if cfg.ChunkFrames != 4410 {
		t.Errorf("Expected chunk frames 4410, got %d", cfg.ChunkFrames)
	}
	if cfg.CaptureDevice != "1" {
		t.Errorf("Expected capture device 1, got %q", cfg.CaptureDevice)
	}
	if cfg.LanguageCode != "ru-RU" {
		t.Errorf("Expected ru-RU, got %q", cfg.LanguageCode)
	}
	if cfg.MinTextLength != 3 {
		t.Errorf("Expected min text length 3, got %d", cfg.MinTextLength)
	}
	if cfg.PauseTime != 1500*time.Millisecond {
		t.Errorf("Expected pause 1.5s, got %s", cfg.PauseTime)
	}
	if cfg.HistoryLength != 8 || cfg.HistoryFile != "history1.csv" {
		t.Errorf("Unexpected history defaults: %d %q", cfg.HistoryLength, cfg.HistoryFile)
	}
	if cfg.UserID != 111 {
		t.Errorf("Expected user id 111, got %d", cfg.UserID)
	}
	if cfg.OpenAIModel != "gpt-4o" || cfg.Temperature != 0.7 {
		t.Errorf("Unexpected completion defaults: %q %f", cfg.OpenAIModel, cfg.Temperature)
	}
	if cfg.TTSGender != "MALE" {
		t.Errorf("Expected gender MALE, got %q", cfg.TTSGender)
	}
	if cfg.SessionRestart {
		t.Error("Expected session restart to be off by default")
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SAMPLE_RATE", "16000")
	t.Setenv("PAUSE_TIME", "750ms")
	t.Setenv("LLM_PROVIDER", "Echo")
	t.Setenv("STT_PROVIDER", "console")
	t.Setenv("HISTORY_BACKEND", "mongo")
	t.Setenv("SESSION_RESTART", "true")
	t.Setenv("USER_ID", "42")

	cfg, err := FromEnv(zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.SampleRate != 16000 || cfg.ChunkFrames != 1600 {
		t.Errorf("Expected 16000/1600, got %d/%d", cfg.SampleRate, cfg.ChunkFrames)
	}
	if cfg.PauseTime != 750*time.Millisecond {
		t.Errorf("Expected 750ms, got %s", cfg.PauseTime)
	}
	if cfg.LLMProvider != LLMEcho {
		t.Errorf("Expected echo provider, got %q", cfg.LLMProvider)
	}
	if !cfg.SessionRestart || cfg.UserID != 42 {
		t.Errorf("Unexpected overrides: restart=%v user=%d", cfg.SessionRestart, cfg.UserID)
	}
}

func TestFromEnv_PauseSeconds(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_PROVIDER", "echo")
	t.Setenv("PAUSE_TIME", "2")

	cfg, err := FromEnv(zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.PauseTime != 2*time.Second {
		t.Errorf("Expected 2s, got %s", cfg.PauseTime)
	}
}

func TestFromEnv_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad int", map[string]string{"SAMPLE_RATE": "fast"}, "SAMPLE_RATE"},
		{"bad pause", map[string]string{"PAUSE_TIME": "soon"}, "PAUSE_TIME"},
		{"missing openai key", map[string]string{"LLM_PROVIDER": "openai"}, "OPENAI_API_KEY"},
		{"missing gemini key", map[string]string{"LLM_PROVIDER": "gemini"}, "GEMINI_API_KEY"},
		{"unknown stt", map[string]string{"LLM_PROVIDER": "echo", "STT_PROVIDER": "whisper"}, "STT_PROVIDER"},
		{"unknown history", map[string]string{"LLM_PROVIDER": "echo", "HISTORY_BACKEND": "redis"}, "HISTORY_BACKEND"},
		{"zero history length", map[string]string{"LLM_PROVIDER": "echo", "HISTORY_LENGTH": "0"}, "HISTORY_LENGTH"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := FromEnv(zaptest.NewLogger(t))
			if err == nil {
				t.Fatal("Expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error mentioning %s, got %v", tt.want, err)
			}
		})
	}
}
