package repositories

import (
	"context"

	"github.com/satriahrh/smartspeaker/domain/entities"
)

// CaptureParams describes the requested input stream format
type CaptureParams struct {
	SampleRate      int `json:"sample_rate"`
	Channels        int `json:"channels"`
	FramesPerBuffer int `json:"frames_per_buffer"`
}

// CaptureStatus is reported by the driver with every callback
type CaptureStatus struct {
	Overflow bool
	Err      error
}

// CaptureCallback receives raw little-endian PCM from the driver thread.
// The data slice is only valid for the duration of the call.
type CaptureCallback func(data []byte, status CaptureStatus)

// CaptureStream is an opened but not necessarily started input stream
type CaptureStream interface {
	Start() error
	Stop() error
	Close() error
}

// CaptureDriver abstracts the host audio API
type CaptureDriver interface {
	Devices() ([]entities.DeviceInfo, error)
	DefaultInput() (entities.DeviceInfo, error)
	OpenInput(device entities.DeviceInfo, params CaptureParams, callback CaptureCallback) (CaptureStream, error)
}

// Player plays one encoded audio payload at a time
type Player interface {
	Start(ctx context.Context, audio []byte) error
	Playing() bool
	Stop() error
}

// CaptureMixer toggles the capture switch of a mixer control
type CaptureMixer interface {
	SetCapture(ctx context.Context, enabled bool) error
}
