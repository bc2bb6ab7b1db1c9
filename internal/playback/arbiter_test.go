package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/smartspeaker/domain"
)

type fakeMixer struct {
	mu        sync.Mutex
	enabled   bool
	calls     []bool
	muteErr   error
	unmuteErr error
}

func newFakeMixer() *fakeMixer { return &fakeMixer{enabled: true} }

func (m *fakeMixer) SetCapture(ctx context.Context, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, enabled)
	if !enabled && m.muteErr != nil {
		return m.muteErr
	}
	if enabled && m.unmuteErr != nil {
		return m.unmuteErr
	}
	m.enabled = enabled
	return nil
}

func (m *fakeMixer) captureEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

type fakePlayer struct {
	mu        sync.Mutex
	mixer     *fakeMixer
	polls     int
	remaining int
	startErr  error
	stopped   bool
	forever   bool
	// enabledWhilePlaying records the capture switch seen during playback
	enabledWhilePlaying []bool
	played              []byte
}

func (p *fakePlayer) Start(ctx context.Context, audio []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startErr != nil {
		return p.startErr
	}
	p.played = audio
	return nil
}

func (p *fakePlayer) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.polls++
	p.enabledWhilePlaying = append(p.enabledWhilePlaying, p.mixer.captureEnabled())
	if p.stopped {
		return false
	}
	if p.forever {
		return true
	}
	if p.remaining > 0 {
		p.remaining--
		return true
	}
	return false
}

func (p *fakePlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	return nil
}

type fakeSynth struct {
	audio []byte
	err   error
	panic bool
	texts []string
}

func (s *fakeSynth) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if s.panic {
		panic("synthesizer crashed")
	}
	s.texts = append(s.texts, text)
	return s.audio, s.err
}

func newTestArbiter(t *testing.T, synth *fakeSynth) (*Arbiter, *fakeMixer, *fakePlayer) {
	mixer := newFakeMixer()
	player := &fakePlayer{mixer: mixer, remaining: 3}
	a := New(mixer, player, synth, Config{PollInterval: time.Millisecond}, zaptest.NewLogger(t))
	return a, mixer, player
}

func TestSpeakMutesOnlyDuringPlayback(t *testing.T) {
	a, mixer, player := newTestArbiter(t, &fakeSynth{audio: []byte("mp3")})

	if !mixer.captureEnabled() {
		t.Fatal("Expected capture enabled before Speak")
	}
	if err := a.Speak(context.Background(), "привет"); err != nil {
		t.Fatalf("Speak failed: %v", err)
	}
	if !mixer.captureEnabled() {
		t.Error("Expected capture enabled after Speak")
	}
	if a.Muted() {
		t.Error("Expected arbiter to report unmuted")
	}

	if len(player.enabledWhilePlaying) < 3 {
		t.Fatalf("Expected the player to be polled, got %d polls", len(player.enabledWhilePlaying))
	}
	for i, enabled := range player.enabledWhilePlaying {
		if enabled {
			t.Errorf("Poll %d: capture was enabled while playing", i)
		}
	}
	if string(player.played) != "mp3" {
		t.Errorf("Expected synthesized audio to be played, got %q", player.played)
	}

	wantCalls := []bool{false, true}
	if len(mixer.calls) != 2 || mixer.calls[0] != wantCalls[0] || mixer.calls[1] != wantCalls[1] {
		t.Errorf("Expected mute then unmute, got %v", mixer.calls)
	}
}

func TestSynthesisErrorRestoresCapture(t *testing.T) {
	a, mixer, player := newTestArbiter(t, &fakeSynth{err: errors.New("quota exceeded")})

	if !mixer.captureEnabled() {
		t.Fatal("Expected capture enabled before Speak")
	}

	err := a.Speak(context.Background(), "ответ")
	if !errors.Is(err, domain.ErrSynthesisBackend) {
		t.Errorf("Expected ErrSynthesisBackend, got %v", err)
	}
	if !mixer.captureEnabled() {
		t.Error("Expected capture enabled after synthesis failure")
	}
	if player.polls != 0 {
		t.Error("Expected no playback after synthesis failure")
	}
}

func TestPlayerStartErrorRestoresCapture(t *testing.T) {
	a, mixer, player := newTestArbiter(t, &fakeSynth{audio: []byte("mp3")})
	player.startErr = errors.New("no output device")

	err := a.Speak(context.Background(), "ответ")
	if !errors.Is(err, domain.ErrPlayback) {
		t.Errorf("Expected ErrPlayback, got %v", err)
	}
	if !mixer.captureEnabled() {
		t.Error("Expected capture enabled after player failure")
	}
}

func TestEmptyAudioIsPlaybackError(t *testing.T) {
	a, mixer, _ := newTestArbiter(t, &fakeSynth{audio: nil})

	if err := a.Speak(context.Background(), "ответ"); !errors.Is(err, domain.ErrPlayback) {
		t.Errorf("Expected ErrPlayback, got %v", err)
	}
	if !mixer.captureEnabled() {
		t.Error("Expected capture enabled")
	}
}

func TestPanicRestoresCapture(t *testing.T) {
	a, mixer, _ := newTestArbiter(t, &fakeSynth{panic: true})

	func() {
		defer func() {
			if recover() == nil {
				t.Error("Expected panic to propagate")
			}
		}()
		a.Speak(context.Background(), "ответ")
	}()

	if !mixer.captureEnabled() {
		t.Error("Expected capture enabled after panic")
	}
}

func TestCancellationStopsPlayerAndRestoresCapture(t *testing.T) {
	a, mixer, player := newTestArbiter(t, &fakeSynth{audio: []byte("mp3")})
	player.forever = true

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := a.Speak(ctx, "долгий ответ"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
	if !player.stopped {
		t.Error("Expected player to be stopped")
	}
	if !mixer.captureEnabled() {
		t.Error("Expected capture enabled after cancellation")
	}
}

func TestPlaybackTimeout(t *testing.T) {
	mixer := newFakeMixer()
	player := &fakePlayer{mixer: mixer, forever: true}
	a := New(mixer, player, &fakeSynth{}, Config{
		PollInterval:    time.Millisecond,
		PlaybackTimeout: 10 * time.Millisecond,
	}, zaptest.NewLogger(t))

	if err := a.Play(context.Background(), []byte("wav")); !errors.Is(err, domain.ErrPlayback) {
		t.Errorf("Expected ErrPlayback on timeout, got %v", err)
	}
	if !player.stopped || !mixer.captureEnabled() {
		t.Error("Expected player stopped and capture enabled after timeout")
	}
}

func TestMuteFailureStillAttemptsUnmute(t *testing.T) {
	a, mixer, player := newTestArbiter(t, &fakeSynth{audio: []byte("mp3")})
	mixer.muteErr = errors.New("amixer: Unable to find simple control")

	err := a.Speak(context.Background(), "ответ")
	if !errors.Is(err, domain.ErrMuteControl) {
		t.Errorf("Expected ErrMuteControl, got %v", err)
	}
	if player.polls != 0 {
		t.Error("Expected no playback when capture could not be muted")
	}
	if len(mixer.calls) != 2 || !mixer.calls[1] {
		t.Errorf("Expected an unmute attempt after mute failure, got %v", mixer.calls)
	}
}

func TestUnmuteFailureDoesNotHidePlaybackResult(t *testing.T) {
	a, mixer, _ := newTestArbiter(t, &fakeSynth{audio: []byte("mp3")})
	mixer.unmuteErr = errors.New("card gone")

	if err := a.Speak(context.Background(), "ответ"); err != nil {
		t.Errorf("Expected playback to succeed, got %v", err)
	}
}

func TestRestoreIsIdempotent(t *testing.T) {
	a, mixer, _ := newTestArbiter(t, &fakeSynth{audio: []byte("mp3")})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := a.Restore(ctx); err != nil {
			t.Fatalf("Restore %d failed: %v", i, err)
		}
	}
	if !mixer.captureEnabled() || a.Muted() {
		t.Error("Expected capture enabled after repeated Restore")
	}
}

func TestMuteObserver(t *testing.T) {
	a, _, _ := newTestArbiter(t, &fakeSynth{audio: []byte("mp3")})

	var seen []bool
	a.OnMuteChange(func(muted bool) { seen = append(seen, muted) })

	if err := a.Play(context.Background(), []byte("wav")); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 2 || !seen[0] || seen[1] {
		t.Errorf("Expected [true false], got %v", seen)
	}
}

func TestSpeakRejectsBlankText(t *testing.T) {
	a, mixer, _ := newTestArbiter(t, &fakeSynth{audio: []byte("mp3")})

	if err := a.Speak(context.Background(), "   "); !errors.Is(err, domain.ErrSynthesisBackend) {
		t.Errorf("Expected ErrSynthesisBackend, got %v", err)
	}
	if len(mixer.calls) != 0 || !mixer.captureEnabled() {
		t.Error("Expected blank text to leave the mixer untouched")
	}
}
