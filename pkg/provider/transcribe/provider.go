// Package transcribe defines the Provider interface for speech-to-text
// backends.
//
// A provider receives one complete audio clip and returns the text it
// heard. Pronunciation evaluation works on short utterances (a spoken word
// or phrase), so there is no session lifecycle: each request is a single
// round trip. Silence is a first-class outcome, reported as ErrNoSpeech
// rather than an empty result, so callers can tell "nothing was said"
// apart from "the backend is down".
//
// Implementations must be safe for concurrent use; the HTTP layer calls
// Transcribe from many handlers at once.
package transcribe

import (
	"context"
	"errors"
	"strings"

	"github.com/MrWong99/parlo/pkg/audio"
)

// ErrNoSpeech is returned when the backend processed the audio but could
// not make out any words (silence, noise, or a clip recorded too quietly).
// It reports on the user's recording, not on the backend's health.
var ErrNoSpeech = errors.New("no speech recognized in audio")

// ErrUnavailable is returned when the backend could not be reached or
// answered with a server-side failure. Failover moves to the next provider
// on this error.
var ErrUnavailable = errors.New("transcription backend unavailable")

// Request is a single transcription job.
type Request struct {
	// Audio is the complete uploaded file in its original container.
	Audio []byte

	// Format is the detected container format of Audio.
	Format audio.Format

	// Language is the BCP-47 tag recognition should assume (e.g. "es-ES").
	// Empty lets the backend auto-detect, where supported.
	Language string
}

// Result is the outcome of a transcription job.
type Result struct {
	// Text is the raw transcript, before any normalization.
	Text string
}

// Provider is the abstraction over any speech-to-text backend.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Transcribe runs one transcription job. It returns ErrNoSpeech when
	// the audio holds no intelligible words, and ErrUnavailable (possibly
	// wrapped) when the backend cannot serve requests.
	Transcribe(ctx context.Context, req Request) (Result, error)

	// Name identifies the backend in logs, metrics, and failover state.
	Name() string

	// Close releases resources held by the provider, such as loaded models
	// or idle connections. Calling Close more than once is safe.
	Close() error
}

// PrimarySubtag reduces a BCP-47 tag to its lowercase primary language
// subtag, the two-letter code whisper-style backends expect ("es-ES"
// becomes "es"). Bare tags pass through unchanged apart from case.
func PrimarySubtag(tag string) string {
	if i := strings.IndexAny(tag, "-_"); i >= 0 {
		tag = tag[:i]
	}
	return strings.ToLower(tag)
}
