package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/satriahrh/smartspeaker/domain"
	"github.com/satriahrh/smartspeaker/domain/entities"
	"github.com/satriahrh/smartspeaker/domain/repositories"
	"github.com/satriahrh/smartspeaker/internal/capture"
	"github.com/satriahrh/smartspeaker/internal/segmenter"
)

// UtteranceHandler consumes promoted utterances, one at a time
type UtteranceHandler interface {
	HandleUtterance(ctx context.Context, u entities.Utterance) TurnResult
}

// RunnerConfig holds the static settings of every session
type RunnerConfig struct {
	Capture     repositories.CaptureParams
	Device      capture.DeviceSelector
	Recognition repositories.RecognitionConfig
	Segmenter   segmenter.Config
	// RestartOnError opens a fresh session after a recognition stream error
	RestartOnError bool
	// RestartDelay is the pause before reopening after an error (default 1s)
	RestartDelay time.Duration
}

const defaultRestartDelay = time.Second

// SessionRunner wires capture, recognition, segmentation and the dialog
// driver, and owns the shutdown cascade of each session.
type SessionRunner struct {
	driver    repositories.CaptureDriver
	stt       repositories.SpeechToText
	handler   UtteranceHandler
	config    RunnerConfig
	publisher repositories.EventPublisher
	logger    *zap.Logger

	mu      sync.Mutex
	current *entities.Session
}

// NewSessionRunner creates a session runner
func NewSessionRunner(
	driver repositories.CaptureDriver,
	stt repositories.SpeechToText,
	handler UtteranceHandler,
	config RunnerConfig,
	publisher repositories.EventPublisher,
	logger *zap.Logger,
) *SessionRunner {
	if publisher == nil {
		publisher = repositories.NopPublisher{}
	}
	if config.RestartDelay <= 0 {
		config.RestartDelay = defaultRestartDelay
	}
	return &SessionRunner{
		driver:    driver,
		stt:       stt,
		handler:   handler,
		config:    config,
		publisher: publisher,
		logger:    logger,
	}
}

// Current returns the running or most recent session, or nil
func (r *SessionRunner) Current() *entities.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Run runs sessions until one ends for a reason other than a recognition
// error, or until restarts are disabled. Device errors are returned as is.
func (r *SessionRunner) Run(ctx context.Context) error {
	for {
		session, err := r.RunSession(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			return nil
		}
		if session == nil || !errors.Is(err, domain.ErrRecognitionStream) || !r.config.RestartOnError {
			return err
		}
		r.logger.Warn("Recognition stream failed, starting a new session",
			zap.String("session_id", session.ID),
			zap.Duration("delay", r.config.RestartDelay),
			zap.Error(err))

		timer := time.NewTimer(r.config.RestartDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// RunSession opens the capture device and processes transcript events until
// the session terminates. The returned session is nil only when the device
// could not be opened.
func (r *SessionRunner) RunSession(ctx context.Context) (*entities.Session, error) {
	c, err := capture.Open(r.driver, r.config.Capture, r.config.Device, r.logger)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	session := entities.NewSession()
	r.mu.Lock()
	r.current = session
	r.mu.Unlock()

	seg := segmenter.New(r.config.Segmenter)
	seg.SetSession(session.ID)

	logger := r.logger.With(zap.String("session_id", session.ID))
	logger.Info("Session started", zap.String("device", c.Device().Name))
	r.publisher.Publish(entities.NewEvent(entities.EventSessionStarted, session.ID))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	recognition := r.config.Recognition
	if recognition.SampleRate == 0 {
		recognition.SampleRate = c.Params().SampleRate
	}

	stream, err := r.stt.StreamingRecognize(gctx, recognition, c.Buffer().Stream(gctx))
	if err != nil {
		if !errors.Is(err, domain.ErrRecognitionStream) {
			err = fmt.Errorf("%w: %v", domain.ErrRecognitionStream, err)
		}
		r.finish(session, entities.EndReasonRecognitionError, err, logger)
		return session, err
	}

	// Closing the capture is the single shutdown signal: the buffer emits
	// its end marker, the audio stream closes and the recognizer drains.
	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			session.Terminate(entities.EndReasonShutdown)
		}
		c.Close()
		return nil
	})

	g.Go(func() error {
		defer cancel()
		for ev := range stream.Events() {
			r.process(gctx, session, seg, c, ev, logger)
		}
		if ctx.Err() != nil {
			session.Terminate(entities.EndReasonShutdown)
			return nil
		}
		if err := stream.Err(); err != nil {
			session.Terminate(entities.EndReasonRecognitionError)
			return err
		}
		if c.Buffer().Stats().Closed {
			session.Terminate(entities.EndReasonCaptureClosed)
		} else {
			session.Terminate(entities.EndReasonStreamEnded)
		}
		return nil
	})

	err = g.Wait()
	r.finish(session, session.Reason(), err, logger)
	return session, err
}

func (r *SessionRunner) process(ctx context.Context, session *entities.Session, seg *segmenter.Segmenter, c *capture.Capture, ev entities.TranscriptEvent, logger *zap.Logger) {
	if !session.IsActive() {
		return
	}

	event := entities.NewEvent(entities.EventTranscript, session.ID)
	event.Text = ev.Text
	event.IsFinal = ev.IsFinal
	r.publisher.Publish(event)
	logger.Debug("Transcript", zap.String("text", ev.Text), zap.Bool("is_final", ev.IsFinal))

	d := seg.Process(ev)
	switch {
	case d.Utterance != nil:
		session.RecordUtterance()
		promoted := entities.NewEvent(entities.EventUtterance, session.ID)
		promoted.Text = d.Utterance.Text
		r.publisher.Publish(promoted)
		logger.Info("Utterance promoted", zap.String("text", d.Utterance.Text))

		r.handler.HandleUtterance(ctx, *d.Utterance)
	case d.Discarded != "":
		discarded := entities.NewEvent(entities.EventDiscarded, session.ID)
		discarded.Text = ev.Text
		discarded.Reason = d.Discarded
		r.publisher.Publish(discarded)
		logger.Info("Final transcript discarded",
			zap.String("text", ev.Text),
			zap.String("reason", d.Discarded))
	}

	if d.Terminate {
		logger.Info("Termination word heard", zap.String("text", ev.Text))
		session.Terminate(entities.EndReasonTerminationWord)
		c.Close()
	}
}

func (r *SessionRunner) finish(session *entities.Session, reason entities.EndReason, err error, logger *zap.Logger) {
	session.Terminate(reason)
	info := session.Info()

	event := entities.NewEvent(entities.EventSessionEnded, session.ID)
	event.Reason = string(info.EndReason)
	if err != nil {
		event.Error = err.Error()
	}
	r.publisher.Publish(event)

	logger.Info("Session ended",
		zap.String("reason", string(info.EndReason)),
		zap.Int("utterances", info.Utterances),
		zap.Duration("duration", session.Duration()),
		zap.Error(err))
}
