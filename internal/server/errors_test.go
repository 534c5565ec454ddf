package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/MrWong99/parlo/internal/catalog"
	"github.com/MrWong99/parlo/internal/resilience"
	"github.com/MrWong99/parlo/internal/score"
	"github.com/MrWong99/parlo/pkg/audio"
	"github.com/MrWong99/parlo/pkg/provider/transcribe"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{
			name:       "no speech",
			err:        transcribe.ErrNoSpeech,
			wantCode:   "no_speech",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "wrapped no speech",
			err:        fmt.Errorf("whispercpp: %w", transcribe.ErrNoSpeech),
			wantCode:   "no_speech",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unsupported format",
			err:        fmt.Errorf("audio: format %q: %w", "mp3", audio.ErrUnsupportedFormat),
			wantCode:   "unsupported_media",
			wantStatus: http.StatusUnsupportedMediaType,
		},
		{
			name: "exhausted chain that only rejected the container",
			err: fmt.Errorf("%w: %w", resilience.ErrAllFailed,
				fmt.Errorf("audio: format %q: %w", "webm", audio.ErrUnsupportedFormat)),
			wantCode:   "unsupported_media",
			wantStatus: http.StatusUnsupportedMediaType,
		},
		{
			name:       "backend unavailable",
			err:        fmt.Errorf("whisperhttp: post: %w", transcribe.ErrUnavailable),
			wantCode:   "transcriber_unavailable",
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "exhausted chain",
			err:        fmt.Errorf("%w: %w", resilience.ErrAllFailed, errors.New("connection refused")),
			wantCode:   "transcriber_unavailable",
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "missing word",
			err:        fmt.Errorf("catalog: word %q: %w", "ghost", catalog.ErrNotFound),
			wantCode:   "not_found",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "empty catalog",
			err:        catalog.ErrEmptyCatalog,
			wantCode:   "not_found",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "empty reference",
			err:        score.ErrEmptyReference,
			wantCode:   "empty_reference",
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "unclassified",
			err:        errors.New("boom"),
			wantCode:   "internal",
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := classify(tt.err)
			if got.Error != tt.wantCode {
				t.Errorf("code = %q, want %q", got.Error, tt.wantCode)
			}
			if got.Status != tt.wantStatus {
				t.Errorf("status = %d, want %d", got.Status, tt.wantStatus)
			}
		})
	}
}

func TestClassify_InternalHidesDetail(t *testing.T) {
	t.Parallel()

	got := classify(errors.New("pgx: connection string contains password"))
	if strings.Contains(got.Message, "password") {
		t.Errorf("internal error message leaked details: %q", got.Message)
	}
	if got.Message != "internal error" {
		t.Errorf("message = %q, want %q", got.Message, "internal error")
	}
}
