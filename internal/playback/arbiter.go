// Package playback serializes speech output and keeps the microphone
// capture switch off while the speaker is playing.
package playback

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/smartspeaker/domain"
	"github.com/satriahrh/smartspeaker/domain/repositories"
)

const (
	defaultPollInterval    = 100 * time.Millisecond
	defaultPlaybackTimeout = 2 * time.Minute
	restoreTimeout         = 5 * time.Second
)

// Config holds arbiter timing settings
type Config struct {
	// PollInterval is how often the player is asked whether it is done
	PollInterval time.Duration
	// PlaybackTimeout bounds a single playback
	PlaybackTimeout time.Duration
}

// Arbiter runs mute → produce audio → play → unmute cycles, one at a time.
// Capture is re-enabled on every exit path of a cycle.
type Arbiter struct {
	mixer  repositories.CaptureMixer
	player repositories.Player
	synth  repositories.TextToSpeech

	pollInterval    time.Duration
	playbackTimeout time.Duration

	cycle    sync.Mutex
	muted    atomic.Bool
	observer atomic.Pointer[func(muted bool)]

	logger *zap.Logger
}

// New creates an arbiter
func New(mixer repositories.CaptureMixer, player repositories.Player, synth repositories.TextToSpeech, cfg Config, logger *zap.Logger) *Arbiter {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	playbackTimeout := cfg.PlaybackTimeout
	if playbackTimeout <= 0 {
		playbackTimeout = defaultPlaybackTimeout
	}

	return &Arbiter{
		mixer:           mixer,
		player:          player,
		synth:           synth,
		pollInterval:    pollInterval,
		playbackTimeout: playbackTimeout,
		logger:          logger,
	}
}

// OnMuteChange registers fn to be called after every mute state change
func (a *Arbiter) OnMuteChange(fn func(muted bool)) {
	a.observer.Store(&fn)
}

// Muted reports whether capture is currently switched off by the arbiter
func (a *Arbiter) Muted() bool { return a.muted.Load() }

// Speak synthesizes text and plays it with capture muted
func (a *Arbiter) Speak(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: nothing to say", domain.ErrSynthesisBackend)
	}
	return a.run(ctx, func(ctx context.Context) ([]byte, error) {
		audio, err := a.synth.Synthesize(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrSynthesisBackend, err)
		}
		return audio, nil
	})
}

// Play plays pre-rendered audio with capture muted
func (a *Arbiter) Play(ctx context.Context, audio []byte) error {
	return a.run(ctx, func(context.Context) ([]byte, error) {
		return audio, nil
	})
}

func (a *Arbiter) run(ctx context.Context, produce func(context.Context) ([]byte, error)) error {
	a.cycle.Lock()
	defer a.cycle.Unlock()

	started := time.Now()
	defer func() {
		restoreCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), restoreTimeout)
		defer cancel()
		a.Restore(restoreCtx)
	}()

	if err := a.mixer.SetCapture(ctx, false); err != nil {
		return fmt.Errorf("%w: failed to mute capture: %v", domain.ErrMuteControl, err)
	}
	a.setMuted(true)

	audio, err := produce(ctx)
	if err != nil {
		return err
	}
	if len(audio) == 0 {
		return fmt.Errorf("%w: empty audio payload", domain.ErrPlayback)
	}

	if err := a.player.Start(ctx, audio); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPlayback, err)
	}
	if err := a.wait(ctx); err != nil {
		return err
	}

	a.logger.Info("Playback finished",
		zap.Int("bytes", len(audio)),
		zap.Duration("elapsed", time.Since(started)))
	return nil
}

func (a *Arbiter) wait(ctx context.Context) error {
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(a.playbackTimeout)
	defer deadline.Stop()

	for a.player.Playing() {
		select {
		case <-ctx.Done():
			a.stopPlayer()
			return ctx.Err()
		case <-deadline.C:
			a.stopPlayer()
			return fmt.Errorf("%w: playback exceeded %s", domain.ErrPlayback, a.playbackTimeout)
		case <-ticker.C:
		}
	}
	return nil
}

func (a *Arbiter) stopPlayer() {
	if err := a.player.Stop(); err != nil {
		a.logger.Warn("Failed to stop player", zap.Error(err))
	}
}

// Restore switches capture back on. It is safe to call at any time and
// any number of times; a failure is logged and returned.
func (a *Arbiter) Restore(ctx context.Context) error {
	if err := a.mixer.SetCapture(ctx, true); err != nil {
		a.logger.Error("Failed to re-enable capture", zap.Error(err))
		return fmt.Errorf("%w: failed to unmute capture: %v", domain.ErrMuteControl, err)
	}
	a.setMuted(false)
	return nil
}

func (a *Arbiter) setMuted(muted bool) {
	if a.muted.Swap(muted) == muted {
		return
	}
	a.logger.Debug("Capture mute changed", zap.Bool("muted", muted))
	if fn := a.observer.Load(); fn != nil {
		(*fn)(muted)
	}
}
