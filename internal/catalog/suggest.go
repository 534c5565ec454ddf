package catalog

import (
	"github.com/antzucaro/matchr"

	"github.com/MrWong99/parlo/internal/score"
)

const defaultSuggestThreshold = 0.80

// SuggestOption is a functional option for configuring a [Suggester].
type SuggestOption func(*Suggester)

// WithSuggestThreshold sets the minimum Jaro-Winkler score (on folded
// forms) required before a word is suggested. Default: 0.80.
func WithSuggestThreshold(threshold float64) SuggestOption {
	return func(s *Suggester) {
		s.threshold = threshold
	}
}

// Suggestion is a catalog word that sounds close to what the learner said,
// together with its Jaro-Winkler similarity on the folded forms.
type Suggestion struct {
	Word  Word
	Score float64
}

type suggestEntry struct {
	word   Word
	folded string
}

// Suggester finds the catalog word that sounds closest to a transcription.
// It is used to hint "did you mean ...?" when an evaluation scores below
// the hint threshold: the learner may have pronounced a different catalog
// word well rather than the requested word badly.
//
// Candidates are compared on phonetically folded forms so that confusable
// spellings ("casa" vs "caza") rank as identical. All methods are safe for
// concurrent use; the Suggester is read-only after construction.
type Suggester struct {
	threshold float64
	folder    score.Folder
	entries   []suggestEntry
}

// NewSuggester builds a [Suggester] over the given words. Words whose
// target text normalizes to nothing (digits, punctuation) are skipped.
func NewSuggester(words []Word, opts ...SuggestOption) *Suggester {
	s := &Suggester{
		threshold: defaultSuggestThreshold,
		folder:    score.NewFolder(score.DefaultFoldRules()),
	}
	for _, o := range opts {
		o(s)
	}

	s.entries = make([]suggestEntry, 0, len(words))
	for _, w := range words {
		folded := s.folder.Fold(score.Normalize(w.Target))
		if folded == "" {
			continue
		}
		s.entries = append(s.entries, suggestEntry{word: w, folded: folded})
	}
	return s
}

// Suggest returns the catalog word most similar to spoken, excluding the
// word with ID excludeID (normally the word the learner was asked to say).
// ok is false when no candidate reaches the threshold or spoken normalizes
// to nothing.
func (s *Suggester) Suggest(spoken, excludeID string) (suggestion Suggestion, ok bool) {
	folded := s.folder.Fold(score.Normalize(spoken))
	if folded == "" {
		return Suggestion{}, false
	}

	var best Suggestion
	for _, e := range s.entries {
		if e.word.ID == excludeID {
			continue
		}
		jw := matchr.JaroWinkler(folded, e.folded, false)
		if jw > best.Score {
			best = Suggestion{Word: e.word, Score: jw}
		}
	}

	if best.Score < s.threshold {
		return Suggestion{}, false
	}
	return best, true
}
