package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrWong99/parlo/internal/catalog"
	"github.com/MrWong99/parlo/internal/observe"
	"github.com/MrWong99/parlo/pkg/audio"
	"github.com/MrWong99/parlo/pkg/provider/transcribe"
)

// pingResponse answers the connectivity probe the practice frontend fires
// on load.
type pingResponse struct {
	OK      bool   `json:"ok"`
	Service string `json:"service"`
}

// scorePayload carries the blended final score plus the four metric scores
// it was computed from.
type scorePayload struct {
	Final       int `json:"final"`
	Fuzzy       int `json:"fuzzy"`
	Levenshtein int `json:"levenshtein"`
	Sequence    int `json:"sequence"`
	Phonetic    int `json:"phonetic"`
}

// hintPayload names the catalog word the utterance resembled more than the
// requested one.
type hintPayload struct {
	WordID string `json:"wordId"`
	Target string `json:"target"`
}

// evaluationResponse is the evaluation endpoint's success body. Reference
// and Spoken are the normalized strings the metrics actually compared.
type evaluationResponse struct {
	WordID    string       `json:"wordId"`
	Reference string       `json:"reference"`
	Spoken    string       `json:"spoken"`
	Score     scorePayload `json:"score"`
	Hint      *hintPayload `json:"hint,omitempty"`
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, pingResponse{OK: true, Service: serviceName})
}

func (s *Server) handleRandomWord(w http.ResponseWriter, r *http.Request) {
	word, err := s.store.RandomWord(r.Context())
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, word)
}

func (s *Server) handleWord(w http.ResponseWriter, r *http.Request) {
	word, err := s.store.Word(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, word)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.store.Categories(r.Context())
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	if cats == nil {
		cats = []catalog.Category{}
	}
	writeJSON(w, http.StatusOK, cats)
}

func (s *Server) handleCategory(w http.ResponseWriter, r *http.Request) {
	cat, err := s.store.Category(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

func (s *Server) handleCategoryWords(w http.ResponseWriter, r *http.Request) {
	cat, err := s.store.Category(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	words := cat.Words
	if words == nil {
		words = []catalog.Word{}
	}
	writeJSON(w, http.StatusOK, words)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.Snapshot(r.Context())
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="catalog.json"`)
	writeJSON(w, http.StatusOK, snap)
}

// handleEvaluate accepts a multipart form with a word_id field and an audio
// file, transcribes the clip, and scores the transcript against the word's
// target text. When the final score falls below the hint threshold and a
// different catalog word matches the utterance better, that word is
// attached as a hint.
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, maxAudioBytes)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeInvalidInput(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds the %d MiB audio limit", maxAudioBytes>>20))
			return
		}
		writeInvalidInput(w, http.StatusBadRequest,
			"request must be multipart/form-data with word_id and audio fields")
		return
	}

	wordID := r.FormValue("word_id")
	if wordID == "" {
		writeInvalidInput(w, http.StatusBadRequest, "word_id form field is required")
		return
	}
	file, header, err := r.FormFile("audio")
	if err != nil {
		writeInvalidInput(w, http.StatusBadRequest, "audio form file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(ctx, w, fmt.Errorf("server: read audio part: %w", err))
		return
	}
	if len(data) == 0 {
		writeInvalidInput(w, http.StatusBadRequest, "audio file is empty")
		return
	}

	word, err := s.store.Word(ctx, wordID)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	format := audio.Detect(header.Filename, header.Header.Get("Content-Type"))
	result, err := s.transcriber.Transcribe(ctx, transcribe.Request{
		Audio:    data,
		Format:   format,
		Language: s.language,
	})
	if err != nil {
		if errors.Is(err, transcribe.ErrNoSpeech) {
			s.metrics.RecordEvaluation(ctx, "no_speech")
		} else {
			s.metrics.RecordEvaluation(ctx, "error")
		}
		writeError(ctx, w, err)
		return
	}

	scoreStart := time.Now()
	ev, err := s.engine.Evaluate(word.Target, result.Text)
	s.metrics.ScoreDuration.Record(ctx, time.Since(scoreStart).Seconds())
	if err != nil {
		s.metrics.RecordEvaluation(ctx, "error")
		writeError(ctx, w, err)
		return
	}
	s.metrics.RecordEvaluation(ctx, "ok")
	s.metrics.RecordFinalScore(ctx, ev.Final)

	resp := evaluationResponse{
		WordID:    word.ID,
		Reference: ev.Reference,
		Spoken:    ev.Spoken,
		Score: scorePayload{
			Final:       ev.Final,
			Fuzzy:       ev.Fuzzy,
			Levenshtein: ev.Levenshtein,
			Sequence:    ev.Sequence,
			Phonetic:    ev.Phonetic,
		},
	}
	if s.hintThreshold > 0 && ev.Final < s.hintThreshold {
		if sug, ok := s.suggester.Suggest(result.Text, word.ID); ok {
			resp.Hint = &hintPayload{WordID: sug.Word.ID, Target: sug.Word.Target}
		}
	}

	observe.Logger(ctx).Info("evaluation complete",
		"word_id", word.ID,
		"final", ev.Final,
		"hinted", resp.Hint != nil,
	)
	writeJSON(w, http.StatusOK, resp)
}

// writeJSON encodes v with the given status. Encoding failures after the
// header is written can only be logged.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("server: encode response", "err", err)
	}
}
