// Package openai provides a transcribe.Provider backed by the OpenAI audio
// transcription API.
//
// Unlike the whisper providers it uploads the original container bytes
// directly; the API accepts wav, ogg, webm, mp3 and m4a, so no local
// decoding is required.
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/MrWong99/parlo/pkg/audio"
	"github.com/MrWong99/parlo/pkg/provider/transcribe"
)

const defaultModel = "whisper-1"

// Compile-time assertion that Provider implements transcribe.Provider.
var _ transcribe.Provider = (*Provider)(nil)

// config holds optional configuration for the provider.
type config struct {
	baseURL    string
	model      string
	timeout    time.Duration
	maxRetries int
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL. Useful for
// proxies and API-compatible gateways.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithModel sets the transcription model. Defaults to "whisper-1".
func WithModel(model string) Option {
	return func(c *config) {
		c.model = model
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithMaxRetries caps the SDK's automatic retries. The failover chain
// already retries across providers, so a low cap keeps latency bounded.
func WithMaxRetries(n int) Option {
	return func(c *config) {
		c.maxRetries = n
	}
}

// Provider implements transcribe.Provider using the OpenAI API.
type Provider struct {
	client oai.Client
	model  string
}

// New constructs a Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}

	cfg := &config{model: defaultModel, maxRetries: -1}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}
	if cfg.maxRetries >= 0 {
		reqOpts = append(reqOpts, option.WithMaxRetries(cfg.maxRetries))
	}

	return &Provider{client: oai.NewClient(reqOpts...), model: cfg.model}, nil
}

// Name implements transcribe.Provider.
func (p *Provider) Name() string { return "openai" }

// Close implements transcribe.Provider. The SDK client holds no resources
// that need explicit release.
func (p *Provider) Close() error { return nil }

// Transcribe uploads the audio to the transcription endpoint and returns
// the recognized text.
func (p *Provider) Transcribe(ctx context.Context, req transcribe.Request) (transcribe.Result, error) {
	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(req.Audio), uploadName(req.Format), contentType(req.Format)),
		Model: oai.AudioModel(p.model),
	}
	if lang := transcribe.PrimarySubtag(req.Language); lang != "" {
		params.Language = param.NewOpt(lang)
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return transcribe.Result{}, classify(err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return transcribe.Result{}, fmt.Errorf("openai: %w", transcribe.ErrNoSpeech)
	}
	return transcribe.Result{Text: text}, nil
}

// classify sorts an SDK error into the provider error taxonomy. Client
// mistakes (HTTP 4xx other than auth and rate limits) stay plain wrapped
// errors; everything else means the backend cannot serve us right now.
func classify(err error) error {
	var apierr *oai.Error
	if errors.As(err, &apierr) {
		switch {
		case apierr.StatusCode == http.StatusTooManyRequests,
			apierr.StatusCode == http.StatusUnauthorized,
			apierr.StatusCode == http.StatusForbidden,
			apierr.StatusCode >= 500:
			return fmt.Errorf("openai: %w: HTTP %d", transcribe.ErrUnavailable, apierr.StatusCode)
		default:
			return fmt.Errorf("openai: transcription rejected: %w", err)
		}
	}
	// No API error type means the request never got a response.
	return fmt.Errorf("openai: %w: %v", transcribe.ErrUnavailable, err)
}

// uploadName gives the API a filename whose extension matches the
// container, which it uses to pick a decoder.
func uploadName(f audio.Format) string {
	if f == audio.FormatUnknown {
		return "audio.wav"
	}
	return "audio." + string(f)
}

// contentType maps a container format to its MIME type. Unknown formats
// are declared as WAV to match uploadName's fallback.
func contentType(f audio.Format) string {
	switch f {
	case audio.FormatMP3:
		return "audio/mpeg"
	case audio.FormatM4A:
		return "audio/mp4"
	case audio.FormatOgg:
		return "audio/ogg"
	case audio.FormatWebM:
		return "audio/webm"
	default:
		return "audio/wav"
	}
}
