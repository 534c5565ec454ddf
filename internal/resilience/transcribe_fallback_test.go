package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/MrWong99/parlo/pkg/audio"
	"github.com/MrWong99/parlo/pkg/provider/transcribe"
	tmock "github.com/MrWong99/parlo/pkg/provider/transcribe/mock"
)

func chainConfig() FallbackConfig {
	return FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{
			MaxFailures:  2,
			ResetTimeout: time.Hour,
		},
	}
}

func TestTranscriberFallback_PrimarySuccess(t *testing.T) {
	primary := &tmock.Provider{
		ProviderName: "whisper-a",
		Results:      []tmock.Outcome{{Text: "la cancion"}},
	}
	secondary := &tmock.Provider{ProviderName: "whisper-b"}

	fb := NewTranscriberFallback(primary, chainConfig())
	fb.AddFallback(secondary)

	result, err := fb.Transcribe(context.Background(), transcribe.Request{
		Audio:    []byte("clip"),
		Format:   audio.FormatWAV,
		Language: "es-ES",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "la cancion" {
		t.Fatalf("Text = %q, want la cancion", result.Text)
	}
	if got := primary.CallCount(); got != 1 {
		t.Fatalf("primary called %d times, want 1", got)
	}
	if got := secondary.CallCount(); got != 0 {
		t.Fatalf("secondary called %d times, want 0", got)
	}
	if got := primary.Calls[0].Req.Language; got != "es-ES" {
		t.Fatalf("primary saw language %q, want es-ES", got)
	}
}

func TestTranscriberFallback_UnavailablePrimaryFailsOver(t *testing.T) {
	primary := &tmock.Provider{
		ProviderName: "whisper-a",
		Results: []tmock.Outcome{{
			Err: fmt.Errorf("whisperhttp: %w: connection refused", transcribe.ErrUnavailable),
		}},
	}
	secondary := &tmock.Provider{
		ProviderName: "whisper-b",
		Results:      []tmock.Outcome{{Text: "que tal"}},
	}

	fb := NewTranscriberFallback(primary, chainConfig())
	fb.AddFallback(secondary)

	result, err := fb.Transcribe(context.Background(), transcribe.Request{
		Audio:  []byte("clip"),
		Format: audio.FormatWAV,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "que tal" {
		t.Fatalf("Text = %q, want que tal", result.Text)
	}
	if got := primary.CallCount(); got != 1 {
		t.Fatalf("primary called %d times, want 1", got)
	}
	if got := secondary.CallCount(); got != 1 {
		t.Fatalf("secondary called %d times, want 1", got)
	}
}

func TestTranscriberFallback_NoSpeechIsFinal(t *testing.T) {
	primary := &tmock.Provider{
		ProviderName: "whisper-a",
		Results: []tmock.Outcome{{
			Err: fmt.Errorf("whisperhttp: %w", transcribe.ErrNoSpeech),
		}},
	}
	secondary := &tmock.Provider{
		ProviderName: "whisper-b",
		Results:      []tmock.Outcome{{Text: "should never be heard"}},
	}

	fb := NewTranscriberFallback(primary, chainConfig())
	fb.AddFallback(secondary)

	// Well past MaxFailures, so a misclassified no-speech would open the
	// primary's breaker and divert calls to the secondary.
	for i := 0; i < 5; i++ {
		_, err := fb.Transcribe(context.Background(), transcribe.Request{
			Audio:  []byte("clip"),
			Format: audio.FormatWAV,
		})
		if !errors.Is(err, transcribe.ErrNoSpeech) {
			t.Fatalf("round %d: err = %v, want ErrNoSpeech", i, err)
		}
		if errors.Is(err, ErrAllFailed) {
			t.Fatalf("round %d: no-speech must not be reported as chain failure", i)
		}
	}
	if got := primary.CallCount(); got != 5 {
		t.Fatalf("primary called %d times, want 5", got)
	}
	if got := secondary.CallCount(); got != 0 {
		t.Fatalf("secondary called %d times, want 0 (silence is an answer)", got)
	}
}

func TestTranscriberFallback_UnavailableOpensBreaker(t *testing.T) {
	primary := &tmock.Provider{
		ProviderName: "whisper-a",
		Results: []tmock.Outcome{{
			Err: fmt.Errorf("whisperhttp: %w: HTTP 500", transcribe.ErrUnavailable),
		}},
	}
	secondary := &tmock.Provider{
		ProviderName: "whisper-b",
		Results:      []tmock.Outcome{{Text: "hola"}},
	}

	fb := NewTranscriberFallback(primary, chainConfig())
	fb.AddFallback(secondary)

	for i := 0; i < 4; i++ {
		result, err := fb.Transcribe(context.Background(), transcribe.Request{
			Audio:  []byte("clip"),
			Format: audio.FormatWAV,
		})
		if err != nil {
			t.Fatalf("round %d: unexpected error: %v", i, err)
		}
		if result.Text != "hola" {
			t.Fatalf("round %d: Text = %q, want hola", i, result.Text)
		}
	}

	// MaxFailures is 2, so rounds 3 and 4 must skip the primary entirely.
	if got := primary.CallCount(); got != 2 {
		t.Fatalf("primary called %d times, want 2 (breaker should be open)", got)
	}
	if got := secondary.CallCount(); got != 4 {
		t.Fatalf("secondary called %d times, want 4", got)
	}
}

func TestTranscriberFallback_UnsupportedFormatDoesNotTripBreaker(t *testing.T) {
	primary := &tmock.Provider{
		ProviderName: "whisper-a",
		Results: []tmock.Outcome{{
			Err: fmt.Errorf("whisperhttp: %w", audio.ErrUnsupportedFormat),
		}},
	}
	secondary := &tmock.Provider{
		ProviderName: "openai",
		Results:      []tmock.Outcome{{Text: "desde la nube"}},
	}

	fb := NewTranscriberFallback(primary, chainConfig())
	fb.AddFallback(secondary)

	for i := 0; i < 5; i++ {
		result, err := fb.Transcribe(context.Background(), transcribe.Request{
			Audio:  []byte("clip"),
			Format: audio.FormatMP3,
		})
		if err != nil {
			t.Fatalf("round %d: unexpected error: %v", i, err)
		}
		if result.Text != "desde la nube" {
			t.Fatalf("round %d: Text = %q, want desde la nube", i, result.Text)
		}
	}

	// A clip the primary cannot decode says nothing about its health, so the
	// chain must keep offering it every request.
	if got := primary.CallCount(); got != 5 {
		t.Fatalf("primary called %d times, want 5", got)
	}
}

func TestTranscriberFallback_AllFail(t *testing.T) {
	primary := &tmock.Provider{
		ProviderName: "whisper-a",
		Results: []tmock.Outcome{{
			Err: fmt.Errorf("whisperhttp: %w: connection refused", transcribe.ErrUnavailable),
		}},
	}
	secondary := &tmock.Provider{
		ProviderName: "whisper-b",
		Results: []tmock.Outcome{{
			Err: fmt.Errorf("whispercpp: %w: process audio", transcribe.ErrUnavailable),
		}},
	}

	fb := NewTranscriberFallback(primary, chainConfig())
	fb.AddFallback(secondary)

	_, err := fb.Transcribe(context.Background(), transcribe.Request{
		Audio:  []byte("clip"),
		Format: audio.FormatWAV,
	})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
	if !errors.Is(err, transcribe.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable preserved for the HTTP layer", err)
	}
}

func TestTranscriberFallback_NamesAndClose(t *testing.T) {
	primary := &tmock.Provider{ProviderName: "whisper-a"}
	secondary := &tmock.Provider{ProviderName: "whisper-b"}

	fb := NewTranscriberFallback(primary, chainConfig())
	fb.AddFallback(secondary)

	if got := fb.Name(); got != "failover" {
		t.Errorf("Name() = %q, want failover", got)
	}
	names := fb.Names()
	if len(names) != 2 || names[0] != "whisper-a" || names[1] != "whisper-b" {
		t.Errorf("Names() = %v, want [whisper-a whisper-b]", names)
	}

	if err := fb.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if primary.CloseCallCount != 1 {
		t.Errorf("primary closed %d times, want 1", primary.CloseCallCount)
	}
	if secondary.CloseCallCount != 1 {
		t.Errorf("secondary closed %d times, want 1", secondary.CloseCallCount)
	}
}
