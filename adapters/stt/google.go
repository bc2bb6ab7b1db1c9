package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/satriahrh/smartspeaker/domain"
	"github.com/satriahrh/smartspeaker/domain/entities"
	"github.com/satriahrh/smartspeaker/domain/repositories"
)

const eventBufferSize = 64

// GoogleSpeechConfig holds configuration for the Google recognizer
type GoogleSpeechConfig struct {
	// CredentialsFile is a service account JSON file. Empty means
	// application default credentials.
	CredentialsFile string
}

// GoogleSpeechToText implements SpeechToText for Google Cloud
type GoogleSpeechToText struct {
	opts   []option.ClientOption
	logger *zap.Logger
}

var _ repositories.SpeechToText = (*GoogleSpeechToText)(nil)

// NewGoogleSpeechToText creates a Google streaming recognizer
func NewGoogleSpeechToText(config GoogleSpeechConfig, logger *zap.Logger) *GoogleSpeechToText {
	var opts []option.ClientOption
	if config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(config.CredentialsFile))
	} else {
		logger.Info("Using application default credentials for speech")
	}
	return &GoogleSpeechToText{opts: opts, logger: logger}
}

// StreamingRecognize opens a bidirectional stream, sends the recognition
// config, then forwards every audio block until audio is closed.
func (g *GoogleSpeechToText) StreamingRecognize(ctx context.Context, config repositories.RecognitionConfig, audio <-chan []byte) (repositories.TranscriptStream, error) {
	encoding, err := getAudioEncoding(config.Encoding)
	if err != nil {
		return nil, err
	}

	client, err := speech.NewClient(ctx, g.opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create speech client: %v", domain.ErrRecognitionStream, err)
	}

	stream, err := client.StreamingRecognize(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: failed to create streaming recognize: %v", domain.ErrRecognitionStream, err)
	}

	recognitionConfig := &speechpb.RecognitionConfig{
		Encoding:                   encoding,
		SampleRateHertz:            int32(config.SampleRate),
		LanguageCode:               config.Language,
		Model:                      config.Model,
		UseEnhanced:                config.UseEnhanced,
		EnableAutomaticPunctuation: config.AutomaticPunctuation,
	}

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config:          recognitionConfig,
				InterimResults:  config.InterimResults,
				SingleUtterance: config.SingleUtterance,
			},
		},
	}); err != nil {
		stream.CloseSend()
		client.Close()
		return nil, fmt.Errorf("%w: failed to send streaming config: %v", domain.ErrRecognitionStream, err)
	}

	g.logger.Info("Recognition stream opened",
		zap.String("language", config.Language),
		zap.String("model", config.Model),
		zap.Int("sampleRate", config.SampleRate),
		zap.Bool("interimResults", config.InterimResults))

	s := &googleStream{
		client: client,
		stream: stream,
		ctx:    ctx,
		events: make(chan entities.TranscriptEvent, eventBufferSize),
		logger: g.logger,
	}
	go s.sendAudio(audio)
	go s.receiveResults()

	return s, nil
}

type googleStream struct {
	client *speech.Client
	stream speechpb.Speech_StreamingRecognizeClient
	ctx    context.Context
	events chan entities.TranscriptEvent
	logger *zap.Logger

	mu  sync.Mutex
	err error
}

func (s *googleStream) Events() <-chan entities.TranscriptEvent { return s.events }

func (s *googleStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *googleStream) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// sendAudio forwards blocks until the audio channel is closed. After a send
// failure it keeps draining so the producer side never stalls.
func (s *googleStream) sendAudio(audio <-chan []byte) {
	var sent, bytes int
	failed := false

	for block := range audio {
		if failed || len(block) == 0 {
			continue
		}
		if err := s.stream.Send(&speechpb.StreamingRecognizeRequest{
			StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
				AudioContent: block,
			},
		}); err != nil {
			// io.EOF means the server closed the stream; Recv reports why
			if !errors.Is(err, io.EOF) {
				s.logger.Error("Failed to send audio data", zap.Error(err))
			}
			failed = true
			continue
		}
		sent++
		bytes += len(block)
	}

	if err := s.stream.CloseSend(); err != nil {
		s.logger.Debug("CloseSend failed", zap.Error(err))
	}
	s.logger.Info("Audio stream finished", zap.Int("blocks", sent), zap.Int("bytes", bytes))
}

func (s *googleStream) receiveResults() {
	defer s.client.Close()
	defer close(s.events)

	for {
		resp, err := s.stream.Recv()
		if err == io.EOF {
			return
		}
		if err != nil {
			if s.ctx.Err() != nil || status.Code(err) == codes.Canceled {
				return
			}
			s.setErr(fmt.Errorf("%w: %v", domain.ErrRecognitionStream, err))
			return
		}

		if len(resp.Results) == 0 || len(resp.Results[0].Alternatives) == 0 {
			continue
		}

		result := resp.Results[0]
		event := entities.TranscriptEvent{
			Text:      result.Alternatives[0].Transcript,
			IsFinal:   result.IsFinal,
			Stability: result.Stability,
			Timestamp: time.Now(),
		}

		select {
		case s.events <- event:
		case <-s.ctx.Done():
			return
		}
	}
}

// getAudioEncoding converts string encoding to Google Speech API enum
func getAudioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch encoding {
	case "", "WAV", "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported encoding: %s", encoding)
	}
}
