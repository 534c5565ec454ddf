package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every entry in a [FallbackGroup] fails or has an
// open circuit breaker. The last entry's error stays in the wrap chain, so
// callers can still classify the outcome with [errors.Is].
var ErrAllFailed = errors.New("all providers failed")

// FallbackConfig configures a [FallbackGroup].
type FallbackConfig struct {
	// CircuitBreaker is the template for each entry's breaker. Its Name field
	// is overwritten with the entry's name.
	CircuitBreaker CircuitBreakerConfig

	// Accept reports whether an error is a final answer rather than a
	// failure. Accepted errors are returned to the caller without trying
	// further entries and count as breaker successes. A nil Accept treats
	// every error as a failure.
	Accept func(error) bool

	// Blame reports whether an error counts against the entry's breaker.
	// Unblamed errors still fail over to the next entry, they just do not
	// push the breaker towards opening. A nil Blame blames every error.
	Blame func(error) bool
}

// fallbackEntry pairs a provider value with its dedicated circuit breaker.
type fallbackEntry[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup wraps a primary and zero or more fallback instances of the same
// provider type. When the primary fails (or its circuit breaker is open), the
// next healthy fallback is tried in registration order.
//
// FallbackGroup is safe for concurrent use.
type FallbackGroup[T any] struct {
	entries []fallbackEntry[T]
	cfg     FallbackConfig
}

// NewFallbackGroup creates a [FallbackGroup] with primary as the first entry.
// Additional fallbacks are registered via [FallbackGroup.AddFallback].
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	cbCfg := cfg.CircuitBreaker
	cbCfg.Name = primaryName
	return &FallbackGroup[T]{
		entries: []fallbackEntry[T]{
			{
				name:    primaryName,
				value:   primary,
				breaker: NewCircuitBreaker(cbCfg),
			},
		},
		cfg: cfg,
	}
}

// AddFallback appends a fallback provider. Fallbacks are tried in the order they
// are added, after the primary.
func (fg *FallbackGroup[T]) AddFallback(name string, fallback T) {
	cbCfg := fg.cfg.CircuitBreaker
	cbCfg.Name = name
	fg.entries = append(fg.entries, fallbackEntry[T]{
		name:    name,
		value:   fallback,
		breaker: NewCircuitBreaker(cbCfg),
	})
}

// Execute tries fn against each entry in order until one succeeds or returns
// an accepted error. Circuit-breaker-open entries are skipped. Returns
// [ErrAllFailed] wrapping the last error if every entry fails.
func (fg *FallbackGroup[T]) Execute(ctx context.Context, fn func(T) error) error {
	_, err := ExecuteWithResult(ctx, fg, func(v T) (struct{}, error) {
		return struct{}{}, fn(v)
	})
	return err
}

// ExecuteWithResult tries fn against each entry in the group until one succeeds
// or returns an accepted error, returning both the result value and error. This
// is a package-level function because Go does not support method-level type
// parameters.
//
// A call that fails after ctx is already done is attributed to the caller, not
// the entry: it is returned without failover and without penalizing the
// entry's breaker.
func ExecuteWithResult[T any, R any](ctx context.Context, fg *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var (
		lastErr error
		zero    R
	)
	for i := range fg.entries {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		entry := &fg.entries[i]
		var (
			result R
			final  error
			skip   error
		)
		err := entry.breaker.Execute(func() error {
			var callErr error
			result, callErr = fn(entry.value)
			switch {
			case callErr == nil:
				return nil
			case fg.accepts(callErr):
				final = callErr
				return nil
			case ctx.Err() != nil:
				final = callErr
				return nil
			case fg.blames(callErr):
				return callErr
			default:
				skip = callErr
				return nil
			}
		})
		if err == nil {
			if skip != nil {
				lastErr = skip
				slog.Warn("provider failed, trying next",
					"provider", entry.name, "error", skip)
				continue
			}
			return result, final
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping provider (circuit open)", "provider", entry.name)
		} else {
			slog.Warn("provider failed, trying next",
				"provider", entry.name, "error", err)
		}
	}
	return zero, fmt.Errorf("%w: %w", ErrAllFailed, lastErr)
}

// States reports each entry's circuit breaker state, keyed by entry name.
func (fg *FallbackGroup[T]) States() map[string]State {
	states := make(map[string]State, len(fg.entries))
	for i := range fg.entries {
		states[fg.entries[i].name] = fg.entries[i].breaker.State()
	}
	return states
}

func (fg *FallbackGroup[T]) accepts(err error) bool {
	return fg.cfg.Accept != nil && fg.cfg.Accept(err)
}

func (fg *FallbackGroup[T]) blames(err error) bool {
	return fg.cfg.Blame == nil || fg.cfg.Blame(err)
}
