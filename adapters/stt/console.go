package stt

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/smartspeaker/domain/entities"
	"github.com/satriahrh/smartspeaker/domain/repositories"
)

// ConsoleSpeechToText reads transcripts from a line-oriented reader instead
// of recognizing audio. Each non-empty line becomes a final event. Audio is
// still consumed so the capture path behaves as it does in production.
type ConsoleSpeechToText struct {
	input  io.Reader
	logger *zap.Logger

	once  sync.Once
	lines chan string
}

var _ repositories.SpeechToText = (*ConsoleSpeechToText)(nil)

// NewConsoleSpeechToText creates a recognizer fed by input
func NewConsoleSpeechToText(input io.Reader, logger *zap.Logger) *ConsoleSpeechToText {
	return &ConsoleSpeechToText{
		input:  input,
		logger: logger,
		lines:  make(chan string),
	}
}

// readLines scans the input once for the lifetime of the recognizer, so
// successive sessions share one reader.
func (c *ConsoleSpeechToText) readLines() {
	defer close(c.lines)
	scanner := bufio.NewScanner(c.input)
	for scanner.Scan() {
		c.lines <- scanner.Text()
	}
	if err := scanner.Err(); err != nil {
		c.logger.Warn("Console input failed", zap.Error(err))
	}
}

// StreamingRecognize implements repositories.SpeechToText
func (c *ConsoleSpeechToText) StreamingRecognize(ctx context.Context, config repositories.RecognitionConfig, audio <-chan []byte) (repositories.TranscriptStream, error) {
	c.once.Do(func() { go c.readLines() })

	c.logger.Info("Initializing console transcription",
		zap.Int("sampleRate", config.SampleRate),
		zap.String("language", config.Language))

	s := &consoleStream{events: make(chan entities.TranscriptEvent)}
	audioDone := make(chan struct{})

	go func() {
		defer close(audioDone)
		received := 0
		for block := range audio {
			received += len(block)
		}
		c.logger.Debug("Console recognizer drained audio", zap.Int("bytes", received))
	}()

	go func() {
		defer close(s.events)
		for {
			select {
			case <-ctx.Done():
				return
			case <-audioDone:
				return
			case line, ok := <-c.lines:
				if !ok {
					return
				}
				line = strings.TrimRight(line, "\r")
				if strings.TrimSpace(line) == "" {
					continue
				}
				event := entities.TranscriptEvent{Text: line, IsFinal: true, Stability: 1, Timestamp: time.Now()}
				select {
				case s.events <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return s, nil
}

type consoleStream struct {
	events chan entities.TranscriptEvent
}

func (s *consoleStream) Events() <-chan entities.TranscriptEvent { return s.events }

func (s *consoleStream) Err() error { return nil }
