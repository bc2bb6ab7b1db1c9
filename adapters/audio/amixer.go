package audio

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/smartspeaker/domain/repositories"
)

const (
	defaultAmixerBinary  = "amixer"
	defaultAmixerCard    = "1"
	defaultAmixerControl = "Mic"
)

// AmixerConfig selects the ALSA mixer control whose capture switch is toggled
type AmixerConfig struct {
	Binary  string // Optional: default "amixer"
	Card    string // Optional: default "1"
	Control string // Optional: default "Mic"
}

// Amixer implements CaptureMixer by invoking the ALSA amixer tool
type Amixer struct {
	binary  string
	card    string
	control string
	logger  *zap.Logger
}

var _ repositories.CaptureMixer = (*Amixer)(nil)

// NewAmixer creates a mixer control for the configured card and control
func NewAmixer(config AmixerConfig, logger *zap.Logger) *Amixer {
	if config.Binary == "" {
		config.Binary = defaultAmixerBinary
	}
	if config.Card == "" {
		config.Card = defaultAmixerCard
		logger.Info("Using default mixer card", zap.String("card", config.Card))
	}
	if config.Control == "" {
		config.Control = defaultAmixerControl
		logger.Info("Using default mixer control", zap.String("control", config.Control))
	}
	return &Amixer{
		binary:  config.Binary,
		card:    config.Card,
		control: config.Control,
		logger:  logger,
	}
}

// SetCapture implements repositories.CaptureMixer
func (a *Amixer) SetCapture(ctx context.Context, enabled bool) error {
	state := "nocap"
	if enabled {
		state = "cap"
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, a.binary, "-c", a.card, "-q", "sset", a.control, state)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to set %s capture to %s: %w: %s",
			a.control, state, err, strings.TrimSpace(stderr.String()))
	}

	a.logger.Debug("Mixer capture switched",
		zap.String("card", a.card),
		zap.String("control", a.control),
		zap.Bool("enabled", enabled))
	return nil
}

// NopMixer is a CaptureMixer for hosts without a hardware capture switch
type NopMixer struct{}

var _ repositories.CaptureMixer = NopMixer{}

// SetCapture implements repositories.CaptureMixer
func (NopMixer) SetCapture(context.Context, bool) error { return nil }
