// Package catalog manages the words users practice pronouncing: thematic
// categories of word pairs, each pairing a prompt in the learner's language
// with the target-language text an utterance is scored against.
//
// Two backends implement [Store]: [JSONStore] keeps the whole catalog in a
// single JSON document on disk (the default, suited to the catalog's size),
// and [PostgresStore] serves the same read surface from PostgreSQL.
// [Suggester] adds "did you mean" lookups over the word list.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when the requested word or category does not exist.
var ErrNotFound = errors.New("not found in catalog")

// ErrEmptyCatalog is returned by RandomWord when the catalog holds no words.
var ErrEmptyCatalog = errors.New("catalog contains no words")

// ErrDuplicateID is returned when seeding data that reuses an ID.
var ErrDuplicateID = errors.New("duplicate id")

// Word is one practice entry.
type Word struct {
	// ID identifies the word across the API.
	ID string `json:"id"`

	// Source is the prompt in the learner's language, e.g. Spanish.
	Source string `json:"source"`

	// Target is the target-language text the utterance is scored against.
	Target string `json:"target"`
}

// Category groups words by theme.
type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Words []Word `json:"words,omitempty"`
}

// Snapshot is the full catalog document: the JSON backend's on-disk shape
// and the export endpoint's payload.
type Snapshot struct {
	Categories []Category `json:"categories"`
}

// clone deep-copies the document so callers cannot alias store state.
func (s Snapshot) clone() Snapshot {
	out := Snapshot{Categories: make([]Category, len(s.Categories))}
	for i, c := range s.Categories {
		words := make([]Word, len(c.Words))
		copy(words, c.Words)
		out.Categories[i] = Category{ID: c.ID, Name: c.Name, Words: words}
	}
	return out
}

// Store provides read access to the catalog.
//
// All implementations must be safe for concurrent use.
type Store interface {
	// RandomWord returns one word drawn uniformly from the whole catalog.
	// Returns [ErrEmptyCatalog] when the catalog holds no words.
	RandomWord(ctx context.Context) (Word, error)

	// Word retrieves a word by ID.
	// Returns [ErrNotFound] when no word with that ID exists.
	Word(ctx context.Context, id string) (Word, error)

	// Categories lists every category without its word list.
	Categories(ctx context.Context) ([]Category, error)

	// Category retrieves a category by ID, including its words.
	// Returns [ErrNotFound] when no category with that ID exists.
	Category(ctx context.Context, id string) (Category, error)

	// Snapshot returns the whole catalog document.
	Snapshot(ctx context.Context) (Snapshot, error)

	// Close releases backend resources.
	Close() error
}

// validateCategories checks seed data: every category and word needs a
// catalog-wide unique ID, and every word needs target text to score against.
func validateCategories(cats []Category) error {
	catIDs := make(map[string]struct{}, len(cats))
	wordIDs := make(map[string]struct{})
	for _, c := range cats {
		if c.ID == "" {
			return fmt.Errorf("catalog: category %q has no id", c.Name)
		}
		if _, dup := catIDs[c.ID]; dup {
			return fmt.Errorf("catalog: category %q: %w", c.ID, ErrDuplicateID)
		}
		catIDs[c.ID] = struct{}{}

		for _, w := range c.Words {
			if w.ID == "" {
				return fmt.Errorf("catalog: word %q in category %q has no id", w.Target, c.ID)
			}
			if _, dup := wordIDs[w.ID]; dup {
				return fmt.Errorf("catalog: word %q: %w", w.ID, ErrDuplicateID)
			}
			wordIDs[w.ID] = struct{}{}
			if strings.TrimSpace(w.Target) == "" {
				return fmt.Errorf("catalog: word %q has no target text", w.ID)
			}
		}
	}
	return nil
}

// StarterCategories returns a small Aymara starter set used to seed an
// empty catalog on first run, so a fresh install can serve practice words
// immediately.
func StarterCategories() []Category {
	return []Category{
		{
			ID:   "saludos",
			Name: "Saludos",
			Words: []Word{
				{ID: "kamisaraki", Source: "¿cómo estás?", Target: "kamisaraki"},
				{ID: "waliki", Source: "bien", Target: "waliki"},
				{ID: "jikisinkama", Source: "hasta luego", Target: "jikisinkama"},
			},
		},
		{
			ID:   "familia",
			Name: "Familia",
			Words: []Word{
				{ID: "warmi", Source: "mujer", Target: "warmi"},
				{ID: "chacha", Source: "hombre", Target: "chacha"},
				{ID: "wawa", Source: "bebé", Target: "wawa"},
			},
		},
		{
			ID:   "cuerpo",
			Name: "Cuerpo",
			Words: []Word{
				{ID: "nayra", Source: "ojo", Target: "nayra"},
				{ID: "laka", Source: "boca", Target: "laka"},
				{ID: "ampara", Source: "mano", Target: "ampara"},
			},
		},
	}
}
