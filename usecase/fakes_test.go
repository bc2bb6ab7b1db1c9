package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/satriahrh/smartspeaker/domain/entities"
	"github.com/satriahrh/smartspeaker/domain/repositories"
)

type fakeStream struct {
	mu      sync.Mutex
	onStart func()
	stopped int
	closed  int
}

func (s *fakeStream) Start() error {
	if s.onStart != nil {
		s.onStart()
	}
	return nil
}

func (s *fakeStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped++
	return nil
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *fakeStream) released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped > 0 && s.closed > 0
}

// fakeDriver exposes one microphone and pushes a block of audio on start
type fakeDriver struct {
	devices []entities.DeviceInfo
	streams []*fakeStream
	mu      sync.Mutex
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		devices: []entities.DeviceInfo{
			{Index: 0, Name: "USB PnP Sound Device", MaxInputChannels: 1, DefaultSampleRate: 16000, IsDefaultInput: true},
		},
	}
}

func (d *fakeDriver) Devices() ([]entities.DeviceInfo, error) { return d.devices, nil }

func (d *fakeDriver) DefaultInput() (entities.DeviceInfo, error) {
	for _, dev := range d.devices {
		if dev.IsDefaultInput {
			return dev, nil
		}
	}
	return entities.DeviceInfo{}, errors.New("no default input")
}

func (d *fakeDriver) OpenInput(dev entities.DeviceInfo, params repositories.CaptureParams, cb repositories.CaptureCallback) (repositories.CaptureStream, error) {
	s := &fakeStream{onStart: func() {
		cb([]byte{1, 2, 3, 4}, repositories.CaptureStatus{})
	}}
	d.mu.Lock()
	d.streams = append(d.streams, s)
	d.mu.Unlock()
	return s, nil
}

func (d *fakeDriver) lastStream() *fakeStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.streams) == 0 {
		return nil
	}
	return d.streams[len(d.streams)-1]
}

// script is what one recognition stream emits
type script struct {
	events []entities.TranscriptEvent
	// holdOpen keeps the stream alive until the audio channel closes
	holdOpen bool
	err      error
	openErr  error
}

type scriptedStream struct {
	events chan entities.TranscriptEvent
	err    error
}

func (s *scriptedStream) Events() <-chan entities.TranscriptEvent { return s.events }
func (s *scriptedStream) Err() error                              { return s.err }

// scriptedSTT plays one script per StreamingRecognize call
type scriptedSTT struct {
	mu      sync.Mutex
	scripts []script
	calls   int
	audio   [][]byte
	configs []repositories.RecognitionConfig
}

func (f *scriptedSTT) StreamingRecognize(ctx context.Context, cfg repositories.RecognitionConfig, audio <-chan []byte) (repositories.TranscriptStream, error) {
	f.mu.Lock()
	sc := f.scripts[f.calls%len(f.scripts)]
	f.calls++
	f.configs = append(f.configs, cfg)
	f.mu.Unlock()

	if sc.openErr != nil {
		return nil, sc.openErr
	}

	audioDone := make(chan struct{})
	go func() {
		defer close(audioDone)
		for block := range audio {
			f.mu.Lock()
			f.audio = append(f.audio, block)
			f.mu.Unlock()
		}
	}()

	stream := &scriptedStream{events: make(chan entities.TranscriptEvent)}
	go func() {
		defer close(stream.events)
		for _, ev := range sc.events {
			select {
			case stream.events <- ev:
			case <-ctx.Done():
				return
			}
		}
		if sc.holdOpen {
			select {
			case <-audioDone:
			case <-ctx.Done():
			}
		}
		stream.err = sc.err
	}()
	return stream, nil
}

func (f *scriptedSTT) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *scriptedSTT) audioBytes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.audio {
		n += len(b)
	}
	return n
}

type recordingHandler struct {
	mu         sync.Mutex
	utterances []entities.Utterance
}

func (h *recordingHandler) HandleUtterance(ctx context.Context, u entities.Utterance) TurnResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.utterances = append(h.utterances, u)
	return TurnResult{Utterance: u.Text}
}

func (h *recordingHandler) texts() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.utterances))
	for _, u := range h.utterances {
		out = append(out, u.Text)
	}
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []entities.Event
}

func (p *recordingPublisher) Publish(e entities.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) types() []entities.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]entities.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func final(text string, at time.Time) entities.TranscriptEvent {
	return entities.TranscriptEvent{Text: text, IsFinal: true, Timestamp: at}
}

func partial(text string, at time.Time) entities.TranscriptEvent {
	return entities.TranscriptEvent{Text: text, Timestamp: at}
}
