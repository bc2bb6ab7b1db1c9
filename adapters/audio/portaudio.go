//go:build hostaudio

package audio

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"go.uber.org/zap"

	"github.com/satriahrh/smartspeaker/domain/entities"
	"github.com/satriahrh/smartspeaker/domain/repositories"
)

// PortAudioDriver implements CaptureDriver on top of PortAudio.
// The library is initialized for the lifetime of the driver.
type PortAudioDriver struct {
	mu     sync.Mutex
	closed bool
	logger *zap.Logger
}

var _ repositories.CaptureDriver = (*PortAudioDriver)(nil)

// NewPortAudioDriver initializes PortAudio
func NewPortAudioDriver(logger *zap.Logger) (*PortAudioDriver, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	logger.Info("PortAudio initialized", zap.String("version", portaudio.VersionText()))
	return &PortAudioDriver{logger: logger}, nil
}

// Close terminates PortAudio. Safe to call more than once.
func (d *PortAudioDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate portaudio: %w", err)
	}
	return nil
}

// Devices implements repositories.CaptureDriver
func (d *PortAudioDriver) Devices() ([]entities.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	defaultName := ""
	if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil {
		defaultName = def.Name
	}

	infos := make([]entities.DeviceInfo, 0, len(devices))
	for i, dev := range devices {
		infos = append(infos, toDeviceInfo(i, dev, defaultName))
	}
	return infos, nil
}

// DefaultInput implements repositories.CaptureDriver
func (d *PortAudioDriver) DefaultInput() (entities.DeviceInfo, error) {
	def, err := portaudio.DefaultInputDevice()
	if err != nil {
		return entities.DeviceInfo{}, fmt.Errorf("failed to get default input device: %w", err)
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return entities.DeviceInfo{}, fmt.Errorf("failed to list devices: %w", err)
	}
	for i, dev := range devices {
		if dev.Name == def.Name {
			return toDeviceInfo(i, dev, def.Name), nil
		}
	}
	return entities.DeviceInfo{}, fmt.Errorf("default input device %q not in device list", def.Name)
}

// OpenInput implements repositories.CaptureDriver. Samples are delivered as
// signed 16-bit little-endian PCM.
func (d *PortAudioDriver) OpenInput(device entities.DeviceInfo, params repositories.CaptureParams, callback repositories.CaptureCallback) (repositories.CaptureStream, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	if device.Index < 0 || device.Index >= len(devices) {
		return nil, fmt.Errorf("device index %d out of range", device.Index)
	}
	dev := devices[device.Index]

	streamParams := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: params.Channels,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(params.SampleRate),
		FramesPerBuffer: params.FramesPerBuffer,
	}

	var scratch []byte
	process := func(in []int16, _ portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
		if cap(scratch) < len(in)*2 {
			scratch = make([]byte, len(in)*2)
		}
		buf := scratch[:len(in)*2]
		for i, sample := range in {
			binary.LittleEndian.PutUint16(buf[i*2:], uint16(sample))
		}
		callback(buf, repositories.CaptureStatus{
			Overflow: flags&portaudio.InputOverflow != 0,
		})
	}

	stream, err := portaudio.OpenStream(streamParams, process)
	if err != nil {
		return nil, fmt.Errorf("failed to open input stream on %q: %w", dev.Name, err)
	}

	d.logger.Debug("Input stream opened",
		zap.String("device", dev.Name),
		zap.Int("sample_rate", params.SampleRate),
		zap.Int("channels", params.Channels),
		zap.Int("frames_per_buffer", params.FramesPerBuffer))

	return stream, nil
}

func toDeviceInfo(index int, dev *portaudio.DeviceInfo, defaultName string) entities.DeviceInfo {
	return entities.DeviceInfo{
		Index:             index,
		Name:              dev.Name,
		MaxInputChannels:  dev.MaxInputChannels,
		DefaultSampleRate: dev.DefaultSampleRate,
		IsDefaultInput:    dev.Name == defaultName,
	}
}
