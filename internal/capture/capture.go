package capture

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/satriahrh/smartspeaker/domain"
	"github.com/satriahrh/smartspeaker/domain/entities"
	"github.com/satriahrh/smartspeaker/domain/repositories"
)

const defaultChannels = 1

type selectorKind int

const (
	selectDefault selectorKind = iota
	selectIndex
	selectName
)

// DeviceSelector picks one input device by index or by name
type DeviceSelector struct {
	kind  selectorKind
	index int
	name  string
}

// DefaultDevice selects the host's default input device
func DefaultDevice() DeviceSelector { return DeviceSelector{kind: selectDefault} }

// DeviceByIndex selects the device with the given driver index
func DeviceByIndex(i int) DeviceSelector { return DeviceSelector{kind: selectIndex, index: i} }

// DeviceByName selects a device by name, exact match first, then substring
func DeviceByName(name string) DeviceSelector { return DeviceSelector{kind: selectName, name: name} }

// ParseDeviceSelector turns a configuration value into a selector.
// Numbers select by index, anything else by name, empty means default.
func ParseDeviceSelector(s string) DeviceSelector {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "default") {
		return DefaultDevice()
	}
	if i, err := strconv.Atoi(s); err == nil && i >= 0 {
		return DeviceByIndex(i)
	}
	return DeviceByName(s)
}

func (s DeviceSelector) String() string {
	switch s.kind {
	case selectIndex:
		return fmt.Sprintf("index:%d", s.index)
	case selectName:
		return fmt.Sprintf("name:%q", s.name)
	default:
		return "default"
	}
}

// Resolve finds the device matched by the selector among the driver's devices
func (s DeviceSelector) Resolve(driver repositories.CaptureDriver) (entities.DeviceInfo, error) {
	if s.kind == selectDefault {
		dev, err := driver.DefaultInput()
		if err != nil {
			return entities.DeviceInfo{}, fmt.Errorf("%w: no default input device: %v", domain.ErrDeviceUnavailable, err)
		}
		return dev, nil
	}

	devices, err := driver.Devices()
	if err != nil {
		return entities.DeviceInfo{}, fmt.Errorf("%w: failed to list devices: %v", domain.ErrDeviceUnavailable, err)
	}

	switch s.kind {
	case selectIndex:
		for _, d := range devices {
			if d.Index == s.index {
				return d, nil
			}
		}
	case selectName:
		for _, d := range devices {
			if strings.EqualFold(d.Name, s.name) {
				return d, nil
			}
		}
		needle := strings.ToLower(s.name)
		for _, d := range devices {
			if d.CanCapture() && strings.Contains(strings.ToLower(d.Name), needle) {
				return d, nil
			}
		}
	}

	return entities.DeviceInfo{}, fmt.Errorf("%w: no device matches %s", domain.ErrDeviceUnavailable, s)
}

// Capture owns one opened input device and the buffer it feeds
type Capture struct {
	stream repositories.CaptureStream
	buffer *Buffer
	device entities.DeviceInfo
	params repositories.CaptureParams
	logger *zap.Logger

	overflows atomic.Int64

	closeOnce sync.Once
	closeErr  error
}

// Open claims the selected input device and starts streaming into a new
// buffer. Any failure to find, open or start the device is reported as
// domain.ErrDeviceUnavailable.
func Open(driver repositories.CaptureDriver, params repositories.CaptureParams, selector DeviceSelector, logger *zap.Logger) (*Capture, error) {
	if params.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", params.SampleRate)
	}
	if params.Channels == 0 {
		params.Channels = defaultChannels
	}
	if params.FramesPerBuffer <= 0 {
		params.FramesPerBuffer = params.SampleRate / 10
		logger.Info("Using default frames per buffer", zap.Int("framesPerBuffer", params.FramesPerBuffer))
	}

	device, err := selector.Resolve(driver)
	if err != nil {
		return nil, err
	}
	if !device.CanCapture() {
		return nil, fmt.Errorf("%w: device %d (%s) has no input channels", domain.ErrDeviceUnavailable, device.Index, device.Name)
	}

	c := &Capture{
		buffer: NewBuffer(),
		device: device,
		params: params,
		logger: logger.With(zap.Int("deviceIndex", device.Index), zap.String("deviceName", device.Name)),
	}

	stream, err := driver.OpenInput(device, params, c.onAudio)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open device %d: %v", domain.ErrDeviceUnavailable, device.Index, err)
	}
	c.stream = stream

	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("%w: failed to start device %d: %v", domain.ErrDeviceUnavailable, device.Index, err)
	}

	c.logger.Info("Audio capture started",
		zap.Int("sampleRate", params.SampleRate),
		zap.Int("channels", params.Channels),
		zap.Int("framesPerBuffer", params.FramesPerBuffer))

	return c, nil
}

// WithCapture opens the device, runs fn and always closes the device,
// including when fn panics.
func WithCapture(driver repositories.CaptureDriver, params repositories.CaptureParams, selector DeviceSelector, logger *zap.Logger, fn func(*Capture) error) error {
	c, err := Open(driver, params, selector, logger)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(c)
}

// onAudio runs on the driver thread and must never panic across it
func (c *Capture) onAudio(data []byte, status repositories.CaptureStatus) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Capture callback panicked, ending stream", zap.Any("panic", r))
			c.buffer.Close()
		}
	}()

	if status.Err != nil {
		c.logger.Error("Capture driver reported an error, ending stream", zap.Error(status.Err))
		c.buffer.Close()
		return
	}
	if status.Overflow {
		n := c.overflows.Add(1)
		c.logger.Warn("Input overflow", zap.Int64("overflows", n))
	}
	if len(data) == 0 {
		return
	}
	c.buffer.Push(data)
}

// Buffer returns the buffer fed by this device
func (c *Capture) Buffer() *Buffer { return c.buffer }

// Device returns the opened device
func (c *Capture) Device() entities.DeviceInfo { return c.device }

// Params returns the effective stream parameters
func (c *Capture) Params() repositories.CaptureParams { return c.params }

// Overflows returns how many driver overflow flags were seen
func (c *Capture) Overflows() int64 { return c.overflows.Load() }

// Close stops the stream, writes the end marker and releases the device.
// It is safe to call multiple times.
func (c *Capture) Close() error {
	c.closeOnce.Do(func() {
		var errs []error
		if err := c.stream.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop stream: %w", err))
		}
		c.buffer.Close()
		if err := c.stream.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close stream: %w", err))
		}
		c.closeErr = errors.Join(errs...)

		stats := c.buffer.Stats()
		c.logger.Info("Audio capture closed",
			zap.Uint64("chunks", stats.ChunksPushed),
			zap.Uint64("bytes", stats.BytesPushed),
			zap.Int64("overflows", c.overflows.Load()),
			zap.Error(c.closeErr))
	})
	return c.closeErr
}

// ListDevices returns every device known to the driver
func ListDevices(driver repositories.CaptureDriver) ([]entities.DeviceInfo, error) {
	devices, err := driver.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list audio devices: %w", err)
	}
	return devices, nil
}

// LogDevices writes one log line per device for troubleshooting
func LogDevices(driver repositories.CaptureDriver, logger *zap.Logger) {
	devices, err := ListDevices(driver)
	if err != nil {
		logger.Warn("Could not enumerate audio devices", zap.Error(err))
		return
	}
	for _, d := range devices {
		logger.Info("Audio device",
			zap.Int("index", d.Index),
			zap.String("name", d.Name),
			zap.Int("maxInputChannels", d.MaxInputChannels),
			zap.Float64("defaultSampleRate", d.DefaultSampleRate),
			zap.Bool("defaultInput", d.IsDefaultInput))
	}
}
