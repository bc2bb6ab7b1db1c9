//go:build hostaudio

package audio

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	"go.uber.org/zap"

	"github.com/satriahrh/smartspeaker/domain/repositories"
)

// BeepPlayer implements Player with the beep speaker. MP3 and WAV payloads
// are decoded and resampled to the speaker rate.
type BeepPlayer struct {
	sampleRate beep.SampleRate
	outputFile string

	initOnce sync.Once
	initErr  error

	mu      sync.Mutex
	current beep.StreamSeekCloser
	playing atomic.Bool

	logger *zap.Logger
}

var _ repositories.Player = (*BeepPlayer)(nil)

// NewBeepPlayer creates a player. The speaker device is opened on first use.
func NewBeepPlayer(config BeepPlayerConfig, logger *zap.Logger) *BeepPlayer {
	rate := config.SampleRate
	if rate <= 0 {
		rate = defaultPlayerSampleRate
		logger.Info("Using default speaker sample rate", zap.Int("sample_rate", rate))
	}
	return &BeepPlayer{
		sampleRate: beep.SampleRate(rate),
		outputFile: config.OutputFile,
		logger:     logger,
	}
}

func (p *BeepPlayer) init() error {
	p.initOnce.Do(func() {
		p.initErr = speaker.Init(p.sampleRate, p.sampleRate.N(time.Second/10))
	})
	return p.initErr
}

// Start implements repositories.Player. It returns once playback has begun.
func (p *BeepPlayer) Start(_ context.Context, audio []byte) error {
	if p.outputFile != "" {
		if err := os.WriteFile(p.outputFile, audio, 0o644); err != nil {
			p.logger.Warn("Failed to write playback output file",
				zap.String("path", p.outputFile), zap.Error(err))
		}
	}

	streamer, format, err := decodeAudio(audio)
	if err != nil {
		return err
	}

	if err := p.init(); err != nil {
		streamer.Close()
		return fmt.Errorf("failed to initialize speaker: %w", err)
	}

	var source beep.Streamer = streamer
	if format.SampleRate != p.sampleRate {
		source = beep.Resample(resampleQuality, format.SampleRate, p.sampleRate, streamer)
	}

	p.mu.Lock()
	p.stopLocked()
	p.current = streamer
	p.playing.Store(true)
	p.mu.Unlock()

	speaker.Play(beep.Seq(source, beep.Callback(func() {
		p.finished(streamer)
	})))

	p.logger.Debug("Playback started",
		zap.Int("bytes", len(audio)),
		zap.Int("source_rate", int(format.SampleRate)))
	return nil
}

// Playing implements repositories.Player
func (p *BeepPlayer) Playing() bool {
	return p.playing.Load()
}

// Stop implements repositories.Player
func (p *BeepPlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	return nil
}

func (p *BeepPlayer) stopLocked() {
	if p.current == nil {
		return
	}
	speaker.Clear()
	p.current.Close()
	p.current = nil
	p.playing.Store(false)
}

// finished runs on the speaker goroutine when the sequence ends
func (p *BeepPlayer) finished(streamer beep.StreamSeekCloser) {
	go func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.current != streamer {
			return
		}
		p.current.Close()
		p.current = nil
		p.playing.Store(false)
	}()
}
