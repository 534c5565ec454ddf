package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/MrWong99/parlo/internal/catalog"
	"github.com/MrWong99/parlo/internal/observe"
	"github.com/MrWong99/parlo/internal/resilience"
	"github.com/MrWong99/parlo/internal/score"
	"github.com/MrWong99/parlo/pkg/audio"
	"github.com/MrWong99/parlo/pkg/provider/transcribe"
)

// errorResponse is the envelope every failing request returns.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// classify maps errors from the catalog, audio, transcription, and scoring
// layers onto the envelope. Order matters: no-speech is a final answer, an
// exhausted failover chain whose backends all rejected the container is an
// unsupported upload rather than an outage, and only then does chain
// exhaustion count as 502.
func classify(err error) errorResponse {
	switch {
	case errors.Is(err, transcribe.ErrNoSpeech):
		return errorResponse{Error: "no_speech", Message: err.Error(), Status: http.StatusBadRequest}
	case errors.Is(err, audio.ErrUnsupportedFormat):
		return errorResponse{Error: "unsupported_media", Message: err.Error(), Status: http.StatusUnsupportedMediaType}
	case errors.Is(err, transcribe.ErrUnavailable), errors.Is(err, resilience.ErrAllFailed):
		return errorResponse{Error: "transcriber_unavailable", Message: err.Error(), Status: http.StatusBadGateway}
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, catalog.ErrEmptyCatalog):
		return errorResponse{Error: "not_found", Message: err.Error(), Status: http.StatusNotFound}
	case errors.Is(err, score.ErrEmptyReference):
		return errorResponse{Error: "empty_reference", Message: err.Error(), Status: http.StatusInternalServerError}
	default:
		return errorResponse{Error: "internal", Message: "internal error", Status: http.StatusInternalServerError}
	}
}

// writeError classifies err, logs it with trace correlation, and writes the
// envelope. Server-side failures log at error level, client mistakes at
// debug.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	resp := classify(err)
	log := observe.Logger(ctx)
	if resp.Status >= http.StatusInternalServerError {
		log.Error("request failed", "code", resp.Error, "err", err)
	} else {
		log.Debug("request rejected", "code", resp.Error, "err", err)
	}
	writeJSON(w, resp.Status, resp)
}

// writeInvalidInput reports a malformed request (missing fields, empty or
// oversized uploads, broken multipart encoding).
func writeInvalidInput(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: "invalid_input", Message: message, Status: status})
}
