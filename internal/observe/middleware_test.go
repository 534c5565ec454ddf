package observe

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// testSetup wires test-scoped metrics plus an in-memory span exporter into
// the global OTel state, restoring the previous providers on cleanup. Tests
// using it must not run in parallel.
func testSetup(t *testing.T) (*Metrics, *sdkmetric.ManualReader, *tracetest.InMemoryExporter) {
	t.Helper()
	m, reader := newTestMetrics(t)

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prevTracer := otel.GetTracerProvider()
	prevProp := otel.GetTextMapPropagator()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTracer)
		otel.SetTextMapPropagator(prevProp)
	})
	return m, reader, exporter
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddleware_RecordsRequestDuration(t *testing.T) {
	m, reader, _ := testSetup(t)

	handler := Middleware(m)(okHandler())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))

	rm := collect(t, reader)
	got, ok := findMetric(rm, "parlo.http.request.duration")
	if !ok {
		t.Fatal("metric parlo.http.request.duration not found")
	}
	hist, ok := got.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("unexpected data type %T", got.Data)
	}
	if len(hist.DataPoints) != 1 {
		t.Fatalf("len(DataPoints) = %d, want 1", len(hist.DataPoints))
	}
	dp := hist.DataPoints[0]
	if dp.Count != 1 {
		t.Errorf("count = %d, want 1", dp.Count)
	}
	if got := attrValue(t, dp.Attributes, "method"); got != http.MethodGet {
		t.Errorf("method = %q, want %q", got, http.MethodGet)
	}
	if got := attrValue(t, dp.Attributes, "path"); got != "/api/v1/ping" {
		t.Errorf("path = %q, want %q", got, "/api/v1/ping")
	}
}

func TestMiddleware_UsesRoutePatternForMetrics(t *testing.T) {
	m, reader, _ := testSetup(t)

	mux := chi.NewRouter()
	mux.Use(Middleware(m))
	mux.Get("/api/v1/words/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/words/kamisaraki", nil))

	rm := collect(t, reader)
	got, ok := findMetric(rm, "parlo.http.request.duration")
	if !ok {
		t.Fatal("metric parlo.http.request.duration not found")
	}
	hist := got.Data.(metricdata.Histogram[float64])
	if len(hist.DataPoints) != 1 {
		t.Fatalf("len(DataPoints) = %d, want 1", len(hist.DataPoints))
	}
	if got := attrValue(t, hist.DataPoints[0].Attributes, "path"); got != "/api/v1/words/{id}" {
		t.Errorf("path = %q, want route pattern %q", got, "/api/v1/words/{id}")
	}
}

func TestMiddleware_SetsCorrelationHeader(t *testing.T) {
	m, _, exporter := testSetup(t)

	handler := Middleware(m)(okHandler())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	cid := rec.Header().Get("X-Correlation-ID")
	if cid == "" {
		t.Fatal("X-Correlation-ID header not set")
	}
	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("len(spans) = %d, want 1", len(spans))
	}
	if want := spans[0].SpanContext.TraceID().String(); cid != want {
		t.Errorf("X-Correlation-ID = %q, want trace ID %q", cid, want)
	}
}

func TestMiddleware_RecordsResponseStatusOnSpan(t *testing.T) {
	m, _, exporter := testSetup(t)

	handler := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("len(spans) = %d, want 1", len(spans))
	}
	var status int64 = -1
	for _, kv := range spans[0].Attributes {
		if kv.Key == "http.response.status_code" {
			status = kv.Value.AsInt64()
		}
	}
	if status != http.StatusNotFound {
		t.Errorf("span status attribute = %d, want %d", status, http.StatusNotFound)
	}
	if spans[0].Name != "HTTP GET /missing" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "HTTP GET /missing")
	}
}

func TestMiddleware_PropagatesIncomingTraceContext(t *testing.T) {
	m, _, exporter := testSetup(t)

	handler := Middleware(m)(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("len(spans) = %d, want 1", len(spans))
	}
	if got := spans[0].SpanContext.TraceID().String(); got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("trace ID = %q, want the propagated one", got)
	}
	if got := spans[0].Parent.SpanID().String(); got != "00f067aa0ba902b7" {
		t.Errorf("parent span ID = %q, want the propagated one", got)
	}
}
