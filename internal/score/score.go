// Package score implements the pronunciation-scoring core: canonical text
// normalization, four independent string-similarity metrics, and a weighted
// blend of the four into one final 0..100 score.
//
// The four metrics each rate a normalized spoken attempt against a
// normalized reference word:
//
//   - [FuzzyScore]: indel ratio (substitutions count as delete plus insert).
//   - [LevenshteinScore]: edit distance normalized by the longer input.
//   - [SequenceScore]: Ratcliff/Obershelp longest-matching-blocks ratio.
//   - [PhoneticScore]: SequenceScore over phonetically folded strings, so
//     confusable spellings such as "casa" and "caza" count as identical.
//
// [Engine.Evaluate] ties them together:
//
//	engine, err := score.New()
//	if err != nil {
//		// invalid weights
//	}
//	ev, err := engine.Evaluate("canción", "Cansion")
//	// ev.Final == 88, ev.Phonetic == 100, ev.Reference == "cancion"
//
// Every function in this package is pure and deterministic: no I/O, no
// mutable package state, and identical inputs always produce identical
// scores. An Engine is immutable after construction and safe for any number
// of concurrent callers.
package score

import (
	"errors"
	"fmt"
	"math"
)

// ErrEmptyReference reports that a reference word normalized to the empty
// string, which makes scoring meaningless. It signals a catalog data
// problem, not a property of the spoken attempt.
var ErrEmptyReference = errors.New("reference text is empty after normalization")

// Weights blends the four metric scores into the final score. The fields
// must be non-negative and sum to 1. A Weights value is plain data; pass it
// to [New] via [WithWeights] to build an Engine around it.
type Weights struct {
	Fuzzy       float64
	Levenshtein float64
	Sequence    float64
	Phonetic    float64
}

// DefaultWeights returns the standard blend: fuzzy and Levenshtein carry 30%
// each, sequence match and phonetic 20% each.
func DefaultWeights() Weights {
	return Weights{Fuzzy: 0.30, Levenshtein: 0.30, Sequence: 0.20, Phonetic: 0.20}
}

// Validate reports whether the weights form a usable blend: no negative
// entries, and a sum of 1 within a tolerance of 1e-9.
func (w Weights) Validate() error {
	var errs []error
	if w.Fuzzy < 0 || w.Levenshtein < 0 || w.Sequence < 0 || w.Phonetic < 0 {
		errs = append(errs, errors.New("weights must not be negative"))
	}
	if sum := w.Fuzzy + w.Levenshtein + w.Sequence + w.Phonetic; math.Abs(sum-1) > 1e-9 {
		errs = append(errs, fmt.Errorf("weights must sum to 1, got %v", sum))
	}
	return errors.Join(errs...)
}

// Aggregate blends four 0..100 metric scores into the final score. The
// weighted sum is truncated toward zero, never rounded: a blend of 99.6
// yields 99.
func (w Weights) Aggregate(fuzzy, levenshtein, sequence, phonetic int) int {
	sum := float64(fuzzy)*w.Fuzzy +
		float64(levenshtein)*w.Levenshtein +
		float64(sequence)*w.Sequence +
		float64(phonetic)*w.Phonetic
	return int(sum)
}

// Evaluation is the outcome of scoring one spoken attempt against one
// reference word. Reference and Spoken carry the normalized strings that
// the metrics actually compared, for diagnostic display.
type Evaluation struct {
	Final       int
	Fuzzy       int
	Levenshtein int
	Sequence    int
	Phonetic    int
	Reference   string
	Spoken      string
}

// Engine evaluates spoken attempts against reference words. It holds the
// weight blend and the phonetic folding table as immutable configuration;
// construct it once with [New] and share it freely across goroutines.
type Engine struct {
	weights Weights
	folder  Folder
}

// Option is a functional option for configuring an [Engine].
type Option func(*Engine)

// WithWeights replaces the default metric blend. The weights are validated
// by [New].
func WithWeights(w Weights) Option {
	return func(e *Engine) { e.weights = w }
}

// WithFoldRules replaces the default phonetic folding table used by the
// phonetic metric.
func WithFoldRules(rules []FoldRule) Option {
	return func(e *Engine) { e.folder = NewFolder(rules) }
}

// New returns an [Engine] configured with the supplied options. Defaults
// are [DefaultWeights] and [DefaultFoldRules]. Returns an error when the
// configured weights do not validate.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		weights: DefaultWeights(),
		folder:  defaultFolder,
	}
	for _, o := range opts {
		o(e)
	}
	if err := e.weights.Validate(); err != nil {
		return nil, fmt.Errorf("score: %w", err)
	}
	return e, nil
}

// Weights returns the engine's metric blend.
func (e *Engine) Weights() Weights { return e.weights }

// Evaluate normalizes both inputs, rates the normalized pair with all four
// metrics, and blends the results into the final score.
//
// It returns [ErrEmptyReference] when the reference text normalizes to the
// empty string. An empty spoken attempt is not an error: every metric then
// scores 0 against the non-empty reference.
func (e *Engine) Evaluate(reference, spoken string) (Evaluation, error) {
	ref := Normalize(reference)
	if ref == "" {
		return Evaluation{}, ErrEmptyReference
	}
	spk := Normalize(spoken)

	ev := Evaluation{
		Fuzzy:       FuzzyScore(ref, spk),
		Levenshtein: LevenshteinScore(ref, spk),
		Sequence:    SequenceScore(ref, spk),
		Phonetic:    e.folder.Score(ref, spk),
		Reference:   ref,
		Spoken:      spk,
	}
	ev.Final = e.weights.Aggregate(ev.Fuzzy, ev.Levenshtein, ev.Sequence, ev.Phonetic)
	return ev, nil
}
