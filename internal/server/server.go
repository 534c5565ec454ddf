// Package server exposes the parlo HTTP API: word and category lookups,
// catalog export, health and metrics endpoints, and the evaluation route
// that runs an uploaded clip through transcription and pronunciation
// scoring.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/parlo/internal/catalog"
	"github.com/MrWong99/parlo/internal/config"
	"github.com/MrWong99/parlo/internal/health"
	"github.com/MrWong99/parlo/internal/observe"
	"github.com/MrWong99/parlo/internal/score"
	"github.com/MrWong99/parlo/pkg/provider/transcribe"
)

const (
	// serviceName identifies this service in the ping and liveness bodies.
	serviceName = "parlo"

	// maxMultipartMemory bounds the in-memory portion of multipart parsing;
	// larger parts spill to temporary files.
	maxMultipartMemory = 10 << 20

	// maxAudioBytes caps the whole evaluation request body.
	maxAudioBytes = 15 << 20

	// shutdownTimeout bounds the graceful drain when Run's context ends.
	shutdownTimeout = 10 * time.Second
)

// Server owns the HTTP surface. Construct it with [New], then either call
// [Server.Run] for the full listen/shutdown lifecycle or mount
// [Server.Handler] on a test server.
type Server struct {
	addr           string
	requestTimeout time.Duration
	language       string
	hintThreshold  int

	store       catalog.Store
	transcriber transcribe.Provider
	engine      *score.Engine
	suggester   *catalog.Suggester
	metrics     *observe.Metrics
	health      *health.Handler
	router      chi.Router

	extraChecks []health.Check
}

// Option customises a [Server] beyond its required collaborators.
type Option func(*Server)

// WithMetrics injects a metrics instance instead of the package default.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithReadyChecks appends readiness checks beyond the built-in catalog
// and transcriber probes, e.g. a database ping for the postgres backend.
func WithReadyChecks(checks ...health.Check) Option {
	return func(s *Server) { s.extraChecks = append(s.extraChecks, checks...) }
}

// readinessReporter is implemented by transcribers that can report whether
// they would currently accept work (the failover chain exposes its breaker
// states this way). Plain providers are assumed ready.
type readinessReporter interface {
	Ready() error
}

// chainReporter is implemented by transcribers that wrap several backends
// and can list them in failover order.
type chainReporter interface {
	Names() []string
}

// New wires a Server from its collaborators. The scoring engine is built
// from the configured weights, and the hint suggester from a snapshot of
// the catalog taken now; the catalog is read-only while serving, so the
// snapshot cannot go stale.
func New(ctx context.Context, cfg *config.Config, store catalog.Store, transcriber transcribe.Provider, opts ...Option) (*Server, error) {
	if store == nil {
		return nil, errors.New("server: catalog store is required")
	}
	if transcriber == nil {
		return nil, errors.New("server: transcriber is required")
	}

	s := &Server{
		addr:           cfg.Server.ListenAddr,
		requestTimeout: cfg.Server.RequestTimeout.Std(),
		language:       cfg.Transcribe.Language,
		hintThreshold:  cfg.Scoring.HintThreshold,
		store:          store,
		transcriber:    transcriber,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}

	weights := score.DefaultWeights()
	if !cfg.Scoring.Weights.IsZero() {
		weights = cfg.Scoring.Weights.Weights()
	}
	eng, err := score.New(score.WithWeights(weights))
	if err != nil {
		return nil, fmt.Errorf("server: build scoring engine: %w", err)
	}
	s.engine = eng

	snap, err := store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("server: load catalog for hints: %w", err)
	}
	var words []catalog.Word
	for _, c := range snap.Categories {
		words = append(words, c.Words...)
	}
	s.suggester = catalog.NewSuggester(words)

	transcriberCheck := health.Check{
		Component: "transcriber",
		Probe: func(context.Context) error {
			if rr, ok := s.transcriber.(readinessReporter); ok {
				return rr.Ready()
			}
			return nil
		},
	}
	if cr, ok := s.transcriber.(chainReporter); ok {
		transcriberCheck.Detail = func() string {
			return "chain: " + strings.Join(cr.Names(), ", ")
		}
	}
	checks := []health.Check{
		{Component: "catalog", Probe: func(ctx context.Context) error {
			_, err := store.Categories(ctx)
			return err
		}},
		transcriberCheck,
	}
	s.health = health.New(serviceName, append(checks, s.extraChecks...)...)

	s.router = s.routes()
	return s, nil
}

// Handler returns the assembled route tree, primarily for httptest servers.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(corsAllowAll)
	r.Use(observe.Middleware(s.metrics))
	r.Use(middleware.Recoverer)
	if s.requestTimeout > 0 {
		r.Use(middleware.Timeout(s.requestTimeout))
	}

	r.Get("/healthz", s.health.Liveness)
	r.Get("/readyz", s.health.Readiness)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ping", s.handlePing)
		r.Get("/words/random", s.handleRandomWord)
		r.Get("/words/{id}", s.handleWord)
		r.Post("/evaluations", s.handleEvaluate)
		r.Get("/categories", s.handleCategories)
		r.Get("/categories/{id}", s.handleCategory)
		r.Get("/categories/{id}/words", s.handleCategoryWords)
		r.Get("/export", s.handleExport)
	})

	return r
}

// Run serves until ctx is cancelled, then drains in-flight requests for up
// to shutdownTimeout. It returns nil on a clean shutdown.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("http server listening", "addr", s.addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: listen on %s: %w", s.addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// corsAllowAll answers any origin. The practice frontend is a static page
// served from wherever is convenient, so the API cannot pin an origin list.
func corsAllowAll(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
