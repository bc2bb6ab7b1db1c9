package entities

// AudioChunk is one block of raw PCM delivered by the capture driver.
// Seq is assigned by the capture buffer in arrival order.
type AudioChunk struct {
	Seq  uint64
	Data []byte
}

// DeviceInfo describes an audio input device as reported by the driver
type DeviceInfo struct {
	Index             int     `json:"index"`
	Name              string  `json:"name"`
	MaxInputChannels  int     `json:"max_input_channels"`
	DefaultSampleRate float64 `json:"default_sample_rate"`
	IsDefaultInput    bool    `json:"is_default_input"`
}

// CanCapture reports whether the device has at least one input channel
func (d DeviceInfo) CanCapture() bool {
	return d.MaxInputChannels > 0
}
