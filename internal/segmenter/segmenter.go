// Package segmenter turns a stream of recognizer results into discrete
// utterances and detects spoken requests to end the session.
package segmenter

import (
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/satriahrh/smartspeaker/domain/entities"
)

const (
	defaultPauseTime     = 1500 * time.Millisecond
	defaultMinTextLength = 3
)

var defaultTerminationWords = []string{"exit", "quit"}

// State is the segmenter's position in the utterance cycle
type State int

const (
	// Idle: nothing heard since the last decision
	Idle State = iota
	// Partial: interim results are arriving
	Partial
	// Cooldown: an utterance was just promoted; finals are suppressed
	// until the pause time has elapsed
	Cooldown
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Partial:
		return "partial"
	case Cooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

// Reasons a final result was not promoted
const (
	DiscardTooShort = "too_short"
	DiscardCooldown = "cooldown"
)

// Config controls the promotion gate
type Config struct {
	PauseTime        time.Duration
	MinTextLength    int
	TerminationWords []string
}

// Decision is the outcome of processing one transcript event
type Decision struct {
	// Utterance is set when the event was promoted
	Utterance *entities.Utterance
	// Terminate is set when the text contains a termination word
	Terminate bool
	// Discarded names why a final event was not promoted
	Discarded string
}

// Segmenter is the utterance segmentation state machine
type Segmenter struct {
	pause     time.Duration
	minLength int
	words     map[string]struct{}

	mu        sync.Mutex
	state     State
	lastActed time.Time
	sessionID string
}

// New creates a segmenter, filling unset config fields with defaults
func New(cfg Config) *Segmenter {
	if cfg.PauseTime <= 0 {
		cfg.PauseTime = defaultPauseTime
	}
	if cfg.MinTextLength <= 0 {
		cfg.MinTextLength = defaultMinTextLength
	}
	if len(cfg.TerminationWords) == 0 {
		cfg.TerminationWords = defaultTerminationWords
	}

	words := make(map[string]struct{}, len(cfg.TerminationWords))
	for _, w := range cfg.TerminationWords {
		words[strings.ToLower(w)] = struct{}{}
	}

	return &Segmenter{
		pause:     cfg.PauseTime,
		minLength: cfg.MinTextLength,
		words:     words,
	}
}

// SetSession tags subsequently promoted utterances with a session id
func (s *Segmenter) SetSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionID = id
}

// State returns the current state
func (s *Segmenter) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Reset returns to Idle and forgets the last promotion time
func (s *Segmenter) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Idle
	s.lastActed = time.Time{}
}

// Process applies one event. Events must be fed in arrival order.
func (s *Segmenter) Process(ev entities.TranscriptEvent) Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := Decision{Terminate: s.containsTerminationWord(ev.Text)}
	inCooldown := !s.lastActed.IsZero() && ev.Timestamp.Sub(s.lastActed) < s.pause

	if !ev.IsFinal {
		if !inCooldown {
			s.state = Partial
		}
		return d
	}

	text := strings.TrimSpace(ev.Text)
	switch {
	case inCooldown:
		d.Discarded = DiscardCooldown
		s.state = Cooldown
	case utf8.RuneCountInString(text) < s.minLength:
		d.Discarded = DiscardTooShort
		s.state = Idle
	default:
		s.lastActed = ev.Timestamp
		s.state = Cooldown
		d.Utterance = &entities.Utterance{
			Text:      text,
			Timestamp: ev.Timestamp,
			SessionID: s.sessionID,
		}
	}
	return d
}

// containsTerminationWord matches whole words only, case-insensitively.
// Letters, digits and underscore form words, in any script.
func (s *Segmenter) containsTerminationWord(text string) bool {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
	})
	for _, f := range fields {
		if _, ok := s.words[strings.ToLower(f)]; ok {
			return true
		}
	}
	return false
}
