package observe

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/parlo/pkg/provider/transcribe"
)

// stubTranscriber is a minimal transcribe.Provider with scripted behaviour.
type stubTranscriber struct {
	name   string
	result transcribe.Result
	err    error
	closed bool
}

func (s *stubTranscriber) Transcribe(ctx context.Context, req transcribe.Request) (transcribe.Result, error) {
	if s.err != nil {
		return transcribe.Result{}, s.err
	}
	return s.result, nil
}

func (s *stubTranscriber) Name() string { return s.name }

func (s *stubTranscriber) Close() error {
	s.closed = true
	return nil
}

func TestInstrumentTranscriber_Success(t *testing.T) {
	m, reader, exporter := testSetup(t)

	stub := &stubTranscriber{name: "mock", result: transcribe.Result{Text: "kamisaraki"}}
	it := InstrumentTranscriber(stub, m)

	res, err := it.Transcribe(context.Background(), transcribe.Request{})
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if res.Text != "kamisaraki" {
		t.Errorf("Text = %q, want %q", res.Text, "kamisaraki")
	}

	rm := collect(t, reader)
	got, ok := findMetric(rm, "parlo.provider.requests")
	if !ok {
		t.Fatal("metric parlo.provider.requests not found")
	}
	sum, ok := got.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("unexpected data type %T", got.Data)
	}
	if len(sum.DataPoints) != 1 {
		t.Fatalf("len(DataPoints) = %d, want 1", len(sum.DataPoints))
	}
	dp := sum.DataPoints[0]
	if got := attrValue(t, dp.Attributes, "provider"); got != "mock" {
		t.Errorf("provider = %q, want %q", got, "mock")
	}
	if got := attrValue(t, dp.Attributes, "status"); got != "ok" {
		t.Errorf("status = %q, want %q", got, "ok")
	}

	durGot, ok := findMetric(rm, "parlo.transcribe.duration")
	if !ok {
		t.Fatal("metric parlo.transcribe.duration not found")
	}
	hist, ok := durGot.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("unexpected data type %T", durGot.Data)
	}
	if len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 1 {
		t.Error("expected exactly one duration observation")
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("len(spans) = %d, want 1", len(spans))
	}
	if spans[0].Name != "transcribe mock" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "transcribe mock")
	}
}

func TestInstrumentTranscriber_NoSpeechIsNotAnError(t *testing.T) {
	m, reader, _ := testSetup(t)

	stub := &stubTranscriber{name: "whisper", err: transcribe.ErrNoSpeech}
	it := InstrumentTranscriber(stub, m)

	_, err := it.Transcribe(context.Background(), transcribe.Request{})
	if !errors.Is(err, transcribe.ErrNoSpeech) {
		t.Fatalf("error = %v, want ErrNoSpeech", err)
	}

	rm := collect(t, reader)
	got, ok := findMetric(rm, "parlo.provider.requests")
	if !ok {
		t.Fatal("metric parlo.provider.requests not found")
	}
	sum := got.Data.(metricdata.Sum[int64])
	if status := attrValue(t, sum.DataPoints[0].Attributes, "status"); status != "no_speech" {
		t.Errorf("status = %q, want %q", status, "no_speech")
	}
	if errGot, ok := findMetric(rm, "parlo.provider.errors"); ok {
		errSum := errGot.Data.(metricdata.Sum[int64])
		if len(errSum.DataPoints) != 0 {
			t.Error("no_speech must not count as a provider error")
		}
	}
}

func TestInstrumentTranscriber_UnavailableError(t *testing.T) {
	m, reader, _ := testSetup(t)

	stub := &stubTranscriber{
		name: "whisper",
		err:  fmt.Errorf("whisperhttp: post transcription: %w", transcribe.ErrUnavailable),
	}
	it := InstrumentTranscriber(stub, m)

	_, err := it.Transcribe(context.Background(), transcribe.Request{})
	if !errors.Is(err, transcribe.ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}

	rm := collect(t, reader)
	got, ok := findMetric(rm, "parlo.provider.requests")
	if !ok {
		t.Fatal("metric parlo.provider.requests not found")
	}
	sum := got.Data.(metricdata.Sum[int64])
	if status := attrValue(t, sum.DataPoints[0].Attributes, "status"); status != "error" {
		t.Errorf("status = %q, want %q", status, "error")
	}

	errGot, ok := findMetric(rm, "parlo.provider.errors")
	if !ok {
		t.Fatal("metric parlo.provider.errors not found")
	}
	errSum := errGot.Data.(metricdata.Sum[int64])
	if len(errSum.DataPoints) != 1 {
		t.Fatalf("len(DataPoints) = %d, want 1", len(errSum.DataPoints))
	}
	if kind := attrValue(t, errSum.DataPoints[0].Attributes, "kind"); kind != "unavailable" {
		t.Errorf("kind = %q, want %q", kind, "unavailable")
	}
}

func TestInstrumentTranscriber_DelegatesNameAndClose(t *testing.T) {
	stub := &stubTranscriber{name: "openai"}
	it := InstrumentTranscriber(stub, &Metrics{})

	if it.Name() != "openai" {
		t.Errorf("Name() = %q, want %q", it.Name(), "openai")
	}
	if err := it.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !stub.closed {
		t.Error("Close() did not reach the wrapped provider")
	}
}

func TestInstrumentTranscriber_NilMetricsUsesDefault(t *testing.T) {
	it := InstrumentTranscriber(&stubTranscriber{name: "mock"}, nil)
	if it.metrics == nil {
		t.Error("nil metrics should fall back to DefaultMetrics")
	}
	if it.metrics != DefaultMetrics() {
		t.Error("fallback should be the package default instance")
	}
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"unavailable", transcribe.ErrUnavailable, "unavailable"},
		{"wrapped unavailable", fmt.Errorf("whisper: %w", transcribe.ErrUnavailable), "unavailable"},
		{"canceled", context.Canceled, "canceled"},
		{"deadline", context.DeadlineExceeded, "canceled"},
		{"other", errors.New("cannot decode clip"), "rejected"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorKind(tt.err); got != tt.want {
				t.Errorf("errorKind(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
