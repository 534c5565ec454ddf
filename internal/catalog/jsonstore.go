package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
)

// Compile-time assertion that JSONStore satisfies the Store interface.
var _ Store = (*JSONStore)(nil)

// JSONStore is a [Store] backed by a single JSON document on disk. All
// reads are served from an in-memory copy; [JSONStore.Reload] picks up
// external edits to the file.
type JSONStore struct {
	path string

	mu  sync.RWMutex
	doc Snapshot
}

// NewJSONStore opens the catalog document at path. A missing file is not an
// error: an empty catalog is created and persisted, along with any missing
// parent directories.
func NewJSONStore(path string) (*JSONStore, error) {
	s := &JSONStore{path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// load reads the document from disk into memory, creating an empty one when
// the file is absent. Callers must hold the write lock (or, during
// construction, exclusive access).
func (s *JSONStore) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.doc = Snapshot{Categories: []Category{}}
		return s.save()
	}
	if err != nil {
		return fmt.Errorf("catalog: read %s: %w", s.path, err)
	}

	var doc Snapshot
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("catalog: parse %s: %w", s.path, err)
	}
	s.doc = doc
	return nil
}

// save writes the document to a temp file in the same directory and renames
// it over path, so a concurrent reader of the file never observes a partial
// write. Callers must hold the write lock.
func (s *JSONStore) save() error {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("catalog: marshal: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("catalog: create %s: %w", dir, err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("catalog: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("catalog: replace %s: %w", s.path, err)
	}
	return nil
}

// Reload re-reads the document from disk, replacing the in-memory copy.
func (s *JSONStore) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Seed fills an empty store with the given categories and persists the
// result. It refuses to overwrite existing data.
func (s *JSONStore) Seed(cats []Category) error {
	if err := validateCategories(cats); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.doc.Categories) > 0 {
		return fmt.Errorf("catalog: seed: store already holds %d categories", len(s.doc.Categories))
	}
	s.doc = Snapshot{Categories: cats}.clone()
	return s.save()
}

// RandomWord implements [Store.RandomWord].
func (s *JSONStore) RandomWord(ctx context.Context) (Word, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var words []Word
	for _, c := range s.doc.Categories {
		words = append(words, c.Words...)
	}
	if len(words) == 0 {
		return Word{}, ErrEmptyCatalog
	}
	return words[rand.IntN(len(words))], nil
}

// Word implements [Store.Word].
func (s *JSONStore) Word(ctx context.Context, id string) (Word, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.doc.Categories {
		for _, w := range c.Words {
			if w.ID == id {
				return w, nil
			}
		}
	}
	return Word{}, fmt.Errorf("catalog: word %q: %w", id, ErrNotFound)
}

// Categories implements [Store.Categories].
func (s *JSONStore) Categories(ctx context.Context) ([]Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Category, 0, len(s.doc.Categories))
	for _, c := range s.doc.Categories {
		out = append(out, Category{ID: c.ID, Name: c.Name})
	}
	return out, nil
}

// Category implements [Store.Category].
func (s *JSONStore) Category(ctx context.Context, id string) (Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.doc.Categories {
		if c.ID != id {
			continue
		}
		words := make([]Word, len(c.Words))
		copy(words, c.Words)
		return Category{ID: c.ID, Name: c.Name, Words: words}, nil
	}
	return Category{}, fmt.Errorf("catalog: category %q: %w", id, ErrNotFound)
}

// Snapshot implements [Store.Snapshot].
func (s *JSONStore) Snapshot(ctx context.Context) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.clone(), nil
}

// Close implements [Store.Close]. The document is already on disk, so there
// is nothing to flush.
func (s *JSONStore) Close() error { return nil }
