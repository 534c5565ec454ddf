// Package whisperhttp provides a transcribe.Provider backed by a running
// whisper-server binary, which exposes a batch REST API at POST /inference.
//
// The uploaded container is decoded locally and re-encoded as the mono WAV
// whisper.cpp expects, so the server never has to cope with browser
// formats.
//
// Usage:
//
//	p, err := whisperhttp.New("http://localhost:8080",
//	    whisperhttp.WithTimeout(10*time.Second),
//	)
//	result, err := p.Transcribe(ctx, transcribe.Request{
//	    Audio:    upload,
//	    Format:   audio.FormatOgg,
//	    Language: "es-ES",
//	})
package whisperhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/parlo/pkg/audio"
	"github.com/MrWong99/parlo/pkg/provider/transcribe"
)

const (
	defaultTimeout = 30 * time.Second

	// defaultSampleRate is what whisper.cpp models are trained on.
	defaultSampleRate = 16000
)

// Compile-time assertion that Provider implements transcribe.Provider.
var _ transcribe.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithHTTPClient replaces the default HTTP client. Useful for custom
// transports or connection pools shared across providers.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// WithTimeout sets the per-request timeout. Defaults to 30 s, which covers
// whisper-server inference on clips of a few seconds.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.timeout = d
	}
}

// WithSampleRate sets the sample rate uploads are resampled to before
// inference. Defaults to 16000, which whisper models expect; only change
// this for a server that resamples on its own.
func WithSampleRate(rate int) Option {
	return func(p *Provider) {
		p.sampleRate = rate
	}
}

// Provider implements transcribe.Provider against a whisper-server HTTP
// endpoint. Safe for concurrent use.
type Provider struct {
	serverURL  string
	sampleRate int
	timeout    time.Duration
	httpClient *http.Client
}

// New creates a Provider that connects to the whisper-server at serverURL
// (e.g., "http://localhost:8080"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whisperhttp: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		sampleRate: defaultSampleRate,
		timeout:    defaultTimeout,
	}
	for _, o := range opts {
		o(p)
	}
	if p.httpClient == nil {
		p.httpClient = &http.Client{Timeout: p.timeout}
	}
	return p, nil
}

// Name implements transcribe.Provider.
func (p *Provider) Name() string { return "whisperhttp" }

// Close releases idle connections held by the HTTP client.
func (p *Provider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// Transcribe decodes the uploaded audio, normalizes it to mono PCM at the
// configured sample rate, and submits it to the /inference endpoint.
func (p *Provider) Transcribe(ctx context.Context, req transcribe.Request) (transcribe.Result, error) {
	clip, err := audio.Decode(req.Audio, req.Format)
	if err != nil {
		return transcribe.Result{}, fmt.Errorf("whisperhttp: %w", err)
	}

	mono := audio.DownmixMono(clip.Samples, clip.Channels)
	mono = audio.ResampleMono(mono, clip.SampleRate, p.sampleRate)
	wav := audio.EncodeWAV(audio.Clip{Samples: mono, SampleRate: p.sampleRate, Channels: 1})

	text, err := p.infer(ctx, wav, transcribe.PrimarySubtag(req.Language))
	if err != nil {
		return transcribe.Result{}, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return transcribe.Result{}, fmt.Errorf("whisperhttp: %w", transcribe.ErrNoSpeech)
	}
	return transcribe.Result{Text: text}, nil
}

// infer posts the WAV file to the whisper-server /inference endpoint as
// multipart/form-data and parses the JSON response.
func (p *Provider) infer(ctx context.Context, wav []byte, language string) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("whisperhttp: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return "", fmt.Errorf("whisperhttp: write wav data: %w", err)
	}
	if language != "" {
		if err := mw.WriteField("language", language); err != nil {
			return "", fmt.Errorf("whisperhttp: write language field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("whisperhttp: close multipart writer: %w", err)
	}

	endpoint := p.serverURL + "/inference"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("whisperhttp: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisperhttp: %w: %v", transcribe.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("whisperhttp: %w: server returned HTTP %d", transcribe.ErrUnavailable, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("whisperhttp: %w: read response body: %v", transcribe.ErrUnavailable, err)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("whisperhttp: %w: parse JSON response: %v", transcribe.ErrUnavailable, err)
	}

	return result.Text, nil
}
