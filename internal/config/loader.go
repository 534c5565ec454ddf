package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/parlo/internal/score"
)

// envPattern matches ${VAR} placeholders in the raw YAML document.
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// ${VAR} placeholders are replaced with the value of the environment
// variable VAR (empty when unset) before decoding, so secrets such as API
// keys stay out of the file. Unknown YAML keys are rejected.
func LoadFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	data = expandEnv(data)

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// expandEnv replaces every ${VAR} placeholder with os.Getenv("VAR").
func expandEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		name := envPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.RequestTimeout < 0 {
		errs = append(errs, errors.New("server.request_timeout must not be negative"))
	}

	// Catalog
	switch backend := cfg.Catalog.Backend; {
	case backend != "" && !backend.IsValid():
		errs = append(errs, fmt.Errorf("catalog.backend %q is invalid; valid values: json, postgres", backend))
	case backend == CatalogPostgres && cfg.Catalog.DSN == "":
		errs = append(errs, errors.New("catalog.dsn is required for the postgres backend"))
	case (backend == CatalogJSON || backend == "") && cfg.Catalog.Path == "":
		errs = append(errs, errors.New("catalog.path is required for the json backend"))
	}
	if cfg.Catalog.Backend == CatalogPostgres && cfg.Catalog.Path != "" {
		slog.Warn("catalog.path is ignored by the postgres backend")
	}

	// Scoring
	if th := cfg.Scoring.HintThreshold; th < 0 || th > 100 {
		errs = append(errs, fmt.Errorf("scoring.hint_threshold %d is out of range [0, 100]", th))
	}
	if w := cfg.Scoring.Weights; !w.IsZero() {
		if err := w.Weights().Validate(); err != nil {
			errs = append(errs, fmt.Errorf("scoring.weights: %w", err))
		} else if w.Weights() != score.DefaultWeights() {
			slog.Warn("scoring.weights overridden away from the default blend",
				"fuzzy", w.Fuzzy,
				"levenshtein", w.Levenshtein,
				"sequence", w.Sequence,
				"phonetic", w.Phonetic,
			)
		}
	}

	// Transcribe
	if len(cfg.Transcribe.Providers) == 0 {
		errs = append(errs, errors.New("transcribe.providers must list at least one provider"))
	}
	for i, p := range cfg.Transcribe.Providers {
		prefix := fmt.Sprintf("transcribe.providers[%d]", i)
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		if !p.Name.IsValid() {
			errs = append(errs, fmt.Errorf("%s.name %q is invalid; valid values: whisper, whispercpp, openai, mock", prefix, p.Name))
			continue
		}
		switch p.Name {
		case ProviderWhisper:
			if p.ServerURL == "" {
				errs = append(errs, fmt.Errorf("%s.server_url is required for the whisper provider", prefix))
			}
		case ProviderWhisperCpp:
			if p.ModelPath == "" {
				errs = append(errs, fmt.Errorf("%s.model_path is required for the whispercpp provider", prefix))
			}
		case ProviderOpenAI:
			if p.APIKey == "" {
				errs = append(errs, fmt.Errorf("%s.api_key is required for the openai provider", prefix))
			}
		}
	}
	if cfg.Transcribe.CircuitBreaker.MaxFailures < 0 {
		errs = append(errs, errors.New("transcribe.circuit_breaker.max_failures must not be negative"))
	}
	if cfg.Transcribe.CircuitBreaker.ResetTimeout < 0 {
		errs = append(errs, errors.New("transcribe.circuit_breaker.reset_timeout must not be negative"))
	}

	return errors.Join(errs...)
}
