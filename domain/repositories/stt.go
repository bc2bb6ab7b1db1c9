package repositories

import (
	"context"

	"github.com/satriahrh/smartspeaker/domain/entities"
)

// RecognitionConfig holds the static settings sent once at stream start
type RecognitionConfig struct {
	SampleRate           int    `json:"sample_rate"`
	Encoding             string `json:"encoding"`
	Language             string `json:"language"`
	Model                string `json:"model"`
	UseEnhanced          bool   `json:"use_enhanced"`
	AutomaticPunctuation bool   `json:"automatic_punctuation"`
	InterimResults       bool   `json:"interim_results"`
	SingleUtterance      bool   `json:"single_utterance"`
}

// SpeechToText abstracts streaming speech recognition services
type SpeechToText interface {
	// StreamingRecognize consumes audio blocks until the channel is closed
	// and emits transcript events in arrival order.
	StreamingRecognize(ctx context.Context, config RecognitionConfig, audio <-chan []byte) (TranscriptStream, error)
}

// TranscriptStream is a running recognition stream.
// Events is closed when the stream ends; Err is valid after that.
type TranscriptStream interface {
	Events() <-chan entities.TranscriptEvent
	Err() error
}
