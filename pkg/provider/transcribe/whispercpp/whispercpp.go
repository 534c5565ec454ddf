// Package whispercpp provides in-process transcription through the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a)
// and headers (whisper.h) must be available at link time via LIBRARY_PATH
// and C_INCLUDE_PATH environment variables.
//
// The model is loaded once at startup and shared across all requests; each
// request runs inference on a fresh whisper context, which is the
// concurrency model the bindings require.
package whispercpp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/MrWong99/parlo/pkg/audio"
	"github.com/MrWong99/parlo/pkg/provider/transcribe"
)

const defaultLanguage = "es"

// Compile-time assertion that Provider implements transcribe.Provider.
var _ transcribe.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithLanguage sets the ISO-639-1 language code used when a request does
// not carry one. Defaults to "es".
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithThreads sets the number of CPU threads used per inference. Zero
// leaves the bindings' default in place.
func WithThreads(n uint) Option {
	return func(p *Provider) {
		p.threads = n
	}
}

// Provider implements transcribe.Provider using the whisper.cpp Go
// bindings, eliminating HTTP overhead entirely.
type Provider struct {
	model    whisperlib.Model
	language string
	threads  uint
}

// New creates a Provider that loads the whisper.cpp model from the given
// file path. The caller must call Close when the provider is no longer
// needed to release the model memory.
func New(modelPath string, opts ...Option) (*Provider, error) {
	if modelPath == "" {
		return nil, errors.New("whispercpp: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whispercpp: load model %q: %w", modelPath, err)
	}

	p := &Provider{
		model:    model,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Name implements transcribe.Provider.
func (p *Provider) Name() string { return "whispercpp" }

// Close releases the whisper model.
func (p *Provider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// Transcribe decodes the uploaded audio to the 16 kHz mono float samples
// whisper.cpp consumes and runs inference. Inference itself cannot be
// cancelled mid-run; the context is only checked before work starts.
func (p *Provider) Transcribe(ctx context.Context, req transcribe.Request) (transcribe.Result, error) {
	if err := ctx.Err(); err != nil {
		return transcribe.Result{}, fmt.Errorf("whispercpp: context already cancelled: %w", err)
	}

	clip, err := audio.Decode(req.Audio, req.Format)
	if err != nil {
		return transcribe.Result{}, fmt.Errorf("whispercpp: %w", err)
	}
	samples := floatSamples(clip.To16kMono())

	text, err := p.infer(samples, req.Language)
	if err != nil {
		return transcribe.Result{}, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return transcribe.Result{}, fmt.Errorf("whispercpp: %w", transcribe.ErrNoSpeech)
	}
	return transcribe.Result{Text: text}, nil
}

// infer runs whisper.cpp inference on a fresh context and concatenates the
// resulting segments. Contexts are not thread-safe but the shared model is,
// so each call creates its own.
func (p *Provider) infer(samples []float32, language string) (string, error) {
	wctx, err := p.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whispercpp: %w: create context: %v", transcribe.ErrUnavailable, err)
	}

	lang := transcribe.PrimarySubtag(language)
	if lang == "" {
		lang = p.language
	}
	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whispercpp: failed to set language, using model default",
			"language", lang, "error", err)
	}
	if p.threads > 0 {
		wctx.SetThreads(p.threads)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whispercpp: %w: process audio: %v", transcribe.ErrUnavailable, err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whispercpp: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, " "), nil
}

// floatSamples converts a clip's PCM to the normalized float32 buffer
// whisper.cpp consumes, scaling into [-1.0, 1.0].
func floatSamples(c audio.Clip) []float32 {
	out := make([]float32, len(c.Samples))
	for i, s := range c.Samples {
		out[i] = float32(s) / 32768.0
	}
	return out
}
