// Command parlo runs the pronunciation practice server: an HTTP API that
// serves a vocabulary catalog, accepts audio recordings, transcribes them
// through a configurable provider chain and scores the transcript against
// the expected word.
//
// Usage:
//
//	parlo -config config.yaml
//
// The configuration file selects the catalog backend (JSON file or
// PostgreSQL), the transcription providers in failover order and the
// scoring weights. See configs/example.yaml for a commented starting point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/parlo/internal/catalog"
	"github.com/MrWong99/parlo/internal/config"
	"github.com/MrWong99/parlo/internal/health"
	"github.com/MrWong99/parlo/internal/observe"
	"github.com/MrWong99/parlo/internal/resilience"
	"github.com/MrWong99/parlo/internal/server"
	"github.com/MrWong99/parlo/pkg/provider/transcribe"
	"github.com/MrWong99/parlo/pkg/provider/transcribe/mock"
	"github.com/MrWong99/parlo/pkg/provider/transcribe/openai"
	"github.com/MrWong99/parlo/pkg/provider/transcribe/whispercpp"
	"github.com/MrWong99/parlo/pkg/provider/transcribe/whisperhttp"
)

// version is overridden at build time via
// -ldflags "-X main.version=v1.2.3".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── Flags ─────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("parlo", version)
		return 0
	}

	// ── Configuration ─────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "parlo: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "parlo: %v\n", err)
		}
		return 1
	}

	// ── Logging ───────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(cfg.Server.LogLevel))
	slog.Info("parlo starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal handling ───────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────
	// Must come before any provider is built so that instruments bind to
	// the real meter provider instead of the no-op default.
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "parlo",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialize telemetry", "error", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			slog.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	// ── Catalog store ─────────────────────────────────────────────────────
	store, storeChecks, err := openCatalog(ctx, cfg)
	if err != nil {
		slog.Error("failed to open catalog", "backend", cfg.Catalog.Backend, "error", err)
		return 1
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("catalog close failed", "error", err)
		}
	}()

	// ── Transcription chain ───────────────────────────────────────────────
	registry := config.NewRegistry()
	registerBuiltinProviders(registry)

	transcriber, err := buildTranscriber(cfg, registry)
	if err != nil {
		slog.Error("failed to build transcription chain", "error", err)
		return 1
	}
	defer func() {
		if err := transcriber.Close(); err != nil {
			slog.Warn("transcriber close failed", "error", err)
		}
	}()

	// ── HTTP server ───────────────────────────────────────────────────────
	srv, err := server.New(ctx, cfg, store, transcriber, server.WithReadyChecks(storeChecks...))
	if err != nil {
		slog.Error("failed to build server", "error", err)
		return 1
	}

	printStartupSummary(cfg)
	slog.Info("server ready — press Ctrl+C to shut down")

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("server stopped with error", "error", err)
		return 1
	}

	slog.Info("goodbye")
	return 0
}

// newLogger builds a text handler writing to stderr at the configured level.
func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// pooledStore couples a [catalog.PostgresStore] with the pgx pool backing
// it so that closing the store also closes the pool.
type pooledStore struct {
	*catalog.PostgresStore
	pool *pgxpool.Pool
}

func (p *pooledStore) Close() error {
	p.pool.Close()
	return nil
}

// openCatalog opens the configured catalog backend. The JSON backend is
// seeded with the starter vocabulary on first run; the postgres backend
// gets its schema migrated and contributes a database readiness checker.
func openCatalog(ctx context.Context, cfg *config.Config) (catalog.Store, []health.Check, error) {
	switch cfg.Catalog.Backend {
	case config.CatalogPostgres:
		pool, err := pgxpool.New(ctx, cfg.Catalog.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		store := catalog.NewPostgresStore(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		slog.Info("catalog ready", "backend", config.CatalogPostgres)
		check := health.Check{Component: "database", Probe: pool.Ping}
		return &pooledStore{PostgresStore: store, pool: pool}, []health.Check{check}, nil

	default:
		// Backend validation happens in config.Load; anything that is not
		// postgres is the JSON file store.
		store, err := catalog.NewJSONStore(cfg.Catalog.Path)
		if err != nil {
			return nil, nil, err
		}
		if err := seedIfEmpty(ctx, store, cfg.Catalog.Path); err != nil {
			store.Close()
			return nil, nil, err
		}
		slog.Info("catalog ready", "backend", config.CatalogJSON, "path", cfg.Catalog.Path)
		return store, nil, nil
	}
}

// seedIfEmpty provisions the starter vocabulary into a fresh JSON store so
// a first run has something to practice against.
func seedIfEmpty(ctx context.Context, store *catalog.JSONStore, path string) error {
	if _, err := store.RandomWord(ctx); !errors.Is(err, catalog.ErrEmptyCatalog) {
		return nil
	}
	if err := store.Seed(catalog.StarterCategories()); err != nil {
		return fmt.Errorf("seed starter catalog: %w", err)
	}
	slog.Info("seeded starter catalog", "path", path)
	return nil
}

// registerBuiltinProviders wires the transcription backends that ship with
// parlo into the registry. Deployments embedding parlo as a library can
// register additional factories before calling buildTranscriber.
func registerBuiltinProviders(reg *config.Registry) {
	reg.Register(config.ProviderWhisper, func(entry config.ProviderEntry) (transcribe.Provider, error) {
		return whisperhttp.New(entry.ServerURL)
	})
	reg.Register(config.ProviderWhisperCpp, func(entry config.ProviderEntry) (transcribe.Provider, error) {
		return whispercpp.New(entry.ModelPath)
	})
	reg.Register(config.ProviderOpenAI, func(entry config.ProviderEntry) (transcribe.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if entry.Model != "" {
			opts = append(opts, openai.WithModel(entry.Model))
		}
		return openai.New(entry.APIKey, opts...)
	})
	reg.Register(config.ProviderMock, func(entry config.ProviderEntry) (transcribe.Provider, error) {
		return &mock.Provider{Results: []mock.Outcome{{Text: entry.Text}}}, nil
	})
}

// buildTranscriber instantiates every configured provider, wraps each one in
// metrics instrumentation and, when more than one is listed, chains them
// behind per-provider circuit breakers in failover order.
func buildTranscriber(cfg *config.Config, reg *config.Registry) (transcribe.Provider, error) {
	providers := make([]transcribe.Provider, 0, len(cfg.Transcribe.Providers))
	for _, entry := range cfg.Transcribe.Providers {
		p, err := reg.Create(entry)
		if err != nil {
			for _, built := range providers {
				built.Close()
			}
			return nil, fmt.Errorf("create provider %q: %w", entry.Name, err)
		}
		slog.Info("transcription provider created", "name", p.Name())
		providers = append(providers, observe.InstrumentTranscriber(p, nil))
	}

	if len(providers) == 1 {
		return providers[0], nil
	}

	chain := resilience.NewTranscriberFallback(providers[0], resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  cfg.Transcribe.CircuitBreaker.MaxFailures,
			ResetTimeout: cfg.Transcribe.CircuitBreaker.ResetTimeout.Std(),
		},
	})
	for _, p := range providers[1:] {
		chain.AddFallback(p)
	}
	slog.Info("transcription failover chain assembled", "order", chain.Names())
	return chain, nil
}

// printStartupSummary writes a human-readable banner to stdout. Log lines
// carry the same information for machines; this one is for the person who
// just typed "parlo" in a terminal.
func printStartupSummary(cfg *config.Config) {
	names := make([]string, 0, len(cfg.Transcribe.Providers))
	for _, entry := range cfg.Transcribe.Providers {
		names = append(names, string(entry.Name))
	}

	fmt.Println()
	fmt.Println("  ╔══════════════════════════════════════╗")
	fmt.Println("  ║         parlo is starting up         ║")
	fmt.Println("  ╠══════════════════════════════════════╣")
	printRow("Listen address", cfg.Server.ListenAddr)
	printRow("Catalog backend", string(cfg.Catalog.Backend))
	printRow("Providers", strings.Join(names, ", "))
	printRow("Language", cfg.Transcribe.Language)
	printRow("Hint threshold", fmt.Sprintf("%d", cfg.Scoring.HintThreshold))
	fmt.Println("  ╚══════════════════════════════════════╝")
	fmt.Println()
}

// printRow renders one banner line, truncating values that would break the
// box layout.
func printRow(label, value string) {
	const width = 18
	if len(value) > width {
		value = value[:width-1] + "…"
	}
	fmt.Printf("  ║  %-16s %-*s ║\n", label+":", width, value)
}
