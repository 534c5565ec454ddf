package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the catalog tables. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS categories (
    id   TEXT PRIMARY KEY,
    name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS words (
    id          TEXT PRIMARY KEY,
    category_id TEXT NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
    source      TEXT NOT NULL DEFAULT '',
    target      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_words_category ON words(category_id);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database.
type PostgresStore struct {
	db DB
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a [PostgresStore] over the given connection or
// pool. The caller is responsible for calling [PostgresStore.Migrate] to
// ensure the schema exists before issuing queries, and for closing the
// connection when done.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL against the database, creating the
// catalog tables and indexes if they do not already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("catalog: migrate: %w", err)
	}
	return nil
}

// Seed inserts the given categories and their words. Intended for first-run
// provisioning; inserting an existing ID returns [ErrDuplicateID].
func (s *PostgresStore) Seed(ctx context.Context, cats []Category) error {
	if err := validateCategories(cats); err != nil {
		return err
	}

	const insertCategory = `INSERT INTO categories (id, name) VALUES ($1, $2)`
	const insertWord = `INSERT INTO words (id, category_id, source, target) VALUES ($1, $2, $3, $4)`

	for _, c := range cats {
		if _, err := s.db.Exec(ctx, insertCategory, c.ID, c.Name); err != nil {
			if isDuplicateKeyError(err) {
				return fmt.Errorf("catalog: category %q: %w", c.ID, ErrDuplicateID)
			}
			return fmt.Errorf("catalog: seed category %q: %w", c.ID, err)
		}
		for _, w := range c.Words {
			if _, err := s.db.Exec(ctx, insertWord, w.ID, c.ID, w.Source, w.Target); err != nil {
				if isDuplicateKeyError(err) {
					return fmt.Errorf("catalog: word %q: %w", w.ID, ErrDuplicateID)
				}
				return fmt.Errorf("catalog: seed word %q: %w", w.ID, err)
			}
		}
	}
	return nil
}

// RandomWord implements [Store.RandomWord]. The table stays small (a
// practice vocabulary, not an event log), so ORDER BY random() is fine.
func (s *PostgresStore) RandomWord(ctx context.Context) (Word, error) {
	const query = `SELECT id, source, target FROM words ORDER BY random() LIMIT 1`

	var w Word
	err := s.db.QueryRow(ctx, query).Scan(&w.ID, &w.Source, &w.Target)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Word{}, ErrEmptyCatalog
		}
		return Word{}, fmt.Errorf("catalog: random word: %w", err)
	}
	return w, nil
}

// Word implements [Store.Word].
func (s *PostgresStore) Word(ctx context.Context, id string) (Word, error) {
	const query = `SELECT id, source, target FROM words WHERE id = $1`

	var w Word
	err := s.db.QueryRow(ctx, query, id).Scan(&w.ID, &w.Source, &w.Target)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Word{}, fmt.Errorf("catalog: word %q: %w", id, ErrNotFound)
		}
		return Word{}, fmt.Errorf("catalog: word %q: %w", id, err)
	}
	return w, nil
}

// Categories implements [Store.Categories].
func (s *PostgresStore) Categories(ctx context.Context) ([]Category, error) {
	const query = `SELECT id, name FROM categories ORDER BY name`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("catalog: categories: %w", err)
	}
	defer rows.Close()

	var cats []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("catalog: categories scan: %w", err)
		}
		cats = append(cats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: categories: %w", err)
	}
	return cats, nil
}

// Category implements [Store.Category].
func (s *PostgresStore) Category(ctx context.Context, id string) (Category, error) {
	const query = `SELECT id, name FROM categories WHERE id = $1`

	var c Category
	if err := s.db.QueryRow(ctx, query, id).Scan(&c.ID, &c.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Category{}, fmt.Errorf("catalog: category %q: %w", id, ErrNotFound)
		}
		return Category{}, fmt.Errorf("catalog: category %q: %w", id, err)
	}

	words, err := s.categoryWords(ctx, id)
	if err != nil {
		return Category{}, err
	}
	c.Words = words
	return c, nil
}

// Snapshot implements [Store.Snapshot].
func (s *PostgresStore) Snapshot(ctx context.Context) (Snapshot, error) {
	cats, err := s.Categories(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	for i := range cats {
		words, err := s.categoryWords(ctx, cats[i].ID)
		if err != nil {
			return Snapshot{}, err
		}
		cats[i].Words = words
	}
	if cats == nil {
		cats = []Category{}
	}
	return Snapshot{Categories: cats}, nil
}

// Close implements [Store.Close]. The connection or pool is owned by the
// caller, so there is nothing to release here.
func (s *PostgresStore) Close() error { return nil }

// categoryWords loads the word list of one category.
func (s *PostgresStore) categoryWords(ctx context.Context, categoryID string) ([]Word, error) {
	const query = `SELECT id, source, target FROM words WHERE category_id = $1 ORDER BY source`

	rows, err := s.db.Query(ctx, query, categoryID)
	if err != nil {
		return nil, fmt.Errorf("catalog: words of %q: %w", categoryID, err)
	}
	defer rows.Close()

	var words []Word
	for rows.Next() {
		var w Word
		if err := rows.Scan(&w.ID, &w.Source, &w.Target); err != nil {
			return nil, fmt.Errorf("catalog: words of %q scan: %w", categoryID, err)
		}
		words = append(words, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: words of %q: %w", categoryID, err)
	}
	return words, nil
}

// isDuplicateKeyError checks whether a PostgreSQL error is a unique-violation
// (SQLSTATE 23505).
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
