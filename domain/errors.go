package domain

import "errors"

// Failure classes surfaced by the voice loop. Adapters wrap the underlying
// cause with one of these so callers can branch with errors.Is.
var (
	// ErrDeviceUnavailable means no matching input device could be claimed.
	ErrDeviceUnavailable = errors.New("audio device unavailable")

	// ErrRecognitionStream means the streaming recognizer failed mid-session.
	ErrRecognitionStream = errors.New("recognition stream error")

	// ErrCompletionBackend means the text-completion service failed.
	ErrCompletionBackend = errors.New("completion backend error")

	// ErrSynthesisBackend means the speech synthesis service failed.
	ErrSynthesisBackend = errors.New("synthesis backend error")

	// ErrPlayback means decoded audio could not be played.
	ErrPlayback = errors.New("playback error")

	// ErrHistoryStore means the conversation history could not be read or written.
	ErrHistoryStore = errors.New("history store error")

	// ErrMuteControl means the capture mixer control rejected a change.
	ErrMuteControl = errors.New("mute control error")
)
