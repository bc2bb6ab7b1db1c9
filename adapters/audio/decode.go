// Package audio binds the capture and playback ports to the host sound system.
// The PortAudio driver and the beep speaker need cgo sound headers and are
// built with -tags hostaudio; without the tag they are stubs that fail at
// startup.
package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/wav"
)

const (
	defaultPlayerSampleRate = 44100
	resampleQuality         = 4
)

var errEmptyAudio = errors.New("empty audio payload")

// BeepPlayerConfig holds speaker settings
type BeepPlayerConfig struct {
	SampleRate int    // Optional: default 44100
	OutputFile string // Optional: every payload is also written here before playback
}

// decodeAudio picks the decoder from the payload header: RIFF is WAV,
// anything else is treated as MP3.
func decodeAudio(audio []byte) (beep.StreamSeekCloser, beep.Format, error) {
	if len(audio) == 0 {
		return nil, beep.Format{}, errEmptyAudio
	}

	if bytes.HasPrefix(audio, []byte("RIFF")) {
		streamer, format, err := wav.Decode(bytes.NewReader(audio))
		if err != nil {
			return nil, beep.Format{}, fmt.Errorf("failed to decode wav: %w", err)
		}
		return streamer, format, nil
	}

	streamer, format, err := mp3.Decode(io.NopCloser(bytes.NewReader(audio)))
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("failed to decode mp3: %w", err)
	}
	return streamer, format, nil
}
