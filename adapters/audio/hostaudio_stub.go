//go:build !hostaudio

package audio

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/satriahrh/smartspeaker/domain/entities"
	"github.com/satriahrh/smartspeaker/domain/repositories"
)

var errHostAudioUnavailable = errors.New("host audio not available: rebuild with -tags hostaudio")

// PortAudioDriver stub when PortAudio is not compiled in
type PortAudioDriver struct{}

var _ repositories.CaptureDriver = (*PortAudioDriver)(nil)

func NewPortAudioDriver(logger *zap.Logger) (*PortAudioDriver, error) {
	return nil, errHostAudioUnavailable
}

func (d *PortAudioDriver) Close() error { return nil }

func (d *PortAudioDriver) Devices() ([]entities.DeviceInfo, error) {
	return nil, errHostAudioUnavailable
}

func (d *PortAudioDriver) DefaultInput() (entities.DeviceInfo, error) {
	return entities.DeviceInfo{}, errHostAudioUnavailable
}

func (d *PortAudioDriver) OpenInput(entities.DeviceInfo, repositories.CaptureParams, repositories.CaptureCallback) (repositories.CaptureStream, error) {
	return nil, errHostAudioUnavailable
}

// BeepPlayer stub when the beep speaker is not compiled in. Payloads are
// still decoded so a broken file is reported as such.
type BeepPlayer struct{}

var _ repositories.Player = (*BeepPlayer)(nil)

func NewBeepPlayer(config BeepPlayerConfig, logger *zap.Logger) *BeepPlayer {
	logger.Warn("Speaker not compiled in, playback will fail", zap.Error(errHostAudioUnavailable))
	return &BeepPlayer{}
}

func (p *BeepPlayer) Start(_ context.Context, audio []byte) error {
	streamer, _, err := decodeAudio(audio)
	if err != nil {
		return err
	}
	streamer.Close()
	return errHostAudioUnavailable
}

func (p *BeepPlayer) Playing() bool { return false }

func (p *BeepPlayer) Stop() error { return nil }
