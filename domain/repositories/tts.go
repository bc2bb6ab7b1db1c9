package repositories

import "context"

// TextToSpeech abstracts speech synthesis services.
// Voice, locale and encoding are fixed by the adapter configuration.
type TextToSpeech interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
