// Package mock provides a test double for the transcribe.Provider
// interface.
//
// Pre-populate Results with the outcomes each call should return, in
// order, then inspect Calls to verify what the caller sent. When Results
// runs out the last entry repeats, so a single-entry script covers the
// common "always say this" case.
//
// Example:
//
//	p := &mock.Provider{Results: []mock.Outcome{{Text: "cansion"}}}
//	result, err := p.Transcribe(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/parlo/pkg/provider/transcribe"
)

// Outcome scripts the return values of one Transcribe call.
type Outcome struct {
	// Text is the transcript to return when Err is nil.
	Text string

	// Err, if non-nil, is returned instead of a result.
	Err error
}

// Call records a single invocation of Transcribe.
type Call struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context

	// Req is the request passed to Transcribe. Audio is not copied.
	Req transcribe.Request
}

// Provider is a mock implementation of transcribe.Provider.
type Provider struct {
	mu sync.Mutex

	// ProviderName is returned by Name. Defaults to "mock".
	ProviderName string

	// Results scripts successive Transcribe outcomes. When empty, calls
	// return an empty Result.
	Results []Outcome

	// Calls records every call to Transcribe in order.
	Calls []Call

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int

	next int
}

// Transcribe records the call and returns the next scripted outcome.
func (p *Provider) Transcribe(ctx context.Context, req transcribe.Request) (transcribe.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, Call{Ctx: ctx, Req: req})

	if len(p.Results) == 0 {
		return transcribe.Result{}, nil
	}
	outcome := p.Results[min(p.next, len(p.Results)-1)]
	p.next++
	if outcome.Err != nil {
		return transcribe.Result{}, outcome.Err
	}
	return transcribe.Result{Text: outcome.Text}, nil
}

// Name returns ProviderName, or "mock" when unset.
func (p *Provider) Name() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ProviderName == "" {
		return "mock"
	}
	return p.ProviderName
}

// Close records the call.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CloseCallCount++
	return nil
}

// CallCount returns the number of Transcribe calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// Reset clears all recorded calls and rewinds the script. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = nil
	p.CloseCallCount = 0
	p.next = 0
}

// Ensure Provider implements transcribe.Provider at compile time.
var _ transcribe.Provider = (*Provider)(nil)
