package observe

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/parlo/pkg/provider/transcribe"
)

// InstrumentedTranscriber decorates a [transcribe.Provider] with a client
// span plus latency and outcome metrics for every call. Wrap each backend
// individually before chaining them into a failover group, so that
// per-backend attribution survives the chain (which reports a single
// aggregate name).
type InstrumentedTranscriber struct {
	next    transcribe.Provider
	metrics *Metrics
}

// Compile-time interface assertion.
var _ transcribe.Provider = (*InstrumentedTranscriber)(nil)

// InstrumentTranscriber wraps p so every Transcribe call is traced and
// recorded under p's name. A nil metrics falls back to [DefaultMetrics].
func InstrumentTranscriber(p transcribe.Provider, m *Metrics) *InstrumentedTranscriber {
	if m == nil {
		m = DefaultMetrics()
	}
	return &InstrumentedTranscriber{next: p, metrics: m}
}

// Transcribe implements [transcribe.Provider].
func (it *InstrumentedTranscriber) Transcribe(ctx context.Context, req transcribe.Request) (transcribe.Result, error) {
	name := it.next.Name()
	ctx, span := StartSpan(ctx, "transcribe "+name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(Attr("provider", name)),
	)
	defer span.End()

	start := time.Now()
	res, err := it.next.Transcribe(ctx, req)

	it.metrics.TranscribeDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(Attr("provider", name)),
	)
	switch {
	case err == nil:
		it.metrics.RecordProviderRequest(ctx, name, "ok")
	case errors.Is(err, transcribe.ErrNoSpeech):
		// Hearing silence is a final answer, not a backend fault.
		it.metrics.RecordProviderRequest(ctx, name, "no_speech")
	default:
		it.metrics.RecordProviderRequest(ctx, name, "error")
		it.metrics.RecordProviderError(ctx, name, errorKind(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

// Name implements [transcribe.Provider].
func (it *InstrumentedTranscriber) Name() string { return it.next.Name() }

// Close implements [transcribe.Provider].
func (it *InstrumentedTranscriber) Close() error { return it.next.Close() }

// errorKind buckets a provider error for the error counter. Context
// cancellation is attributed to the caller rather than the backend.
func errorKind(err error) string {
	switch {
	case errors.Is(err, transcribe.ErrUnavailable):
		return "unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "rejected"
	}
}
