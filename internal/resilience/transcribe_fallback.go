package resilience

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/parlo/pkg/provider/transcribe"
)

// TranscriberFallback implements [transcribe.Provider] with automatic failover
// across multiple transcription backends. Each backend has its own circuit
// breaker; when the primary fails or its breaker is open, the next healthy
// fallback is tried.
//
// Two error classes never fail over:
//
//   - [transcribe.ErrNoSpeech] is a final answer. A backend that heard
//     silence has done its job, so the chain returns the error as-is and the
//     backend's breaker records a success.
//   - Errors observed after the caller's context is done are attributed to
//     the caller, not the backend.
//
// Errors other than [transcribe.ErrUnavailable] fail over without counting
// against the breaker: a clip the backend cannot decode says nothing about
// the backend's health, and the next backend may well support the format.
type TranscriberFallback struct {
	group     *FallbackGroup[transcribe.Provider]
	providers []transcribe.Provider
}

// Compile-time interface assertion.
var _ transcribe.Provider = (*TranscriberFallback)(nil)

// NewTranscriberFallback creates a [TranscriberFallback] with primary as the
// preferred backend. The config's Accept and Blame classifiers are fixed to
// the transcription error taxonomy.
func NewTranscriberFallback(primary transcribe.Provider, cfg FallbackConfig) *TranscriberFallback {
	cfg.Accept = func(err error) bool {
		return errors.Is(err, transcribe.ErrNoSpeech)
	}
	cfg.Blame = func(err error) bool {
		return errors.Is(err, transcribe.ErrUnavailable)
	}
	return &TranscriberFallback{
		group:     NewFallbackGroup(primary, primary.Name(), cfg),
		providers: []transcribe.Provider{primary},
	}
}

// AddFallback registers an additional transcription backend. Fallbacks are
// tried in the order they are added, after the primary.
func (f *TranscriberFallback) AddFallback(p transcribe.Provider) {
	f.group.AddFallback(p.Name(), p)
	f.providers = append(f.providers, p)
}

// Transcribe sends the clip to the first healthy backend and returns its
// transcript.
func (f *TranscriberFallback) Transcribe(ctx context.Context, req transcribe.Request) (transcribe.Result, error) {
	return ExecuteWithResult(ctx, f.group, func(p transcribe.Provider) (transcribe.Result, error) {
		return p.Transcribe(ctx, req)
	})
}

// Name implements [transcribe.Provider].
func (f *TranscriberFallback) Name() string { return "failover" }

// Ready reports whether the chain can currently accept work: at least one
// backend's breaker must not be open. Readiness probes use this to flag a
// fully tripped chain before the next request hits [ErrAllFailed].
func (f *TranscriberFallback) Ready() error {
	var open []string
	for name, state := range f.group.States() {
		if state != StateOpen {
			return nil
		}
		open = append(open, name)
	}
	return fmt.Errorf("all transcription breakers are open: %v", open)
}

// Names lists the chained backends in failover order.
func (f *TranscriberFallback) Names() []string {
	names := make([]string, len(f.providers))
	for i, p := range f.providers {
		names[i] = p.Name()
	}
	return names
}

// Close releases every backend in the chain.
func (f *TranscriberFallback) Close() error {
	var errs []error
	for _, p := range f.providers {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}
