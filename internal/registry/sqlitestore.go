package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dusk-indust/jitcap/internal/capability"
	_ "modernc.org/sqlite"
)

// Compile-time assertion: *SQLiteStore satisfies Store.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore persists capability metadata in a single SQLite table using the
// pure-Go modernc.org/sqlite driver.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at path. Parent
// directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("sqlite: create parent directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: enable WAL: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// InitSchema creates the capabilities table if it does not exist.
func (s *SQLiteStore) InitSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS capabilities (
			name TEXT PRIMARY KEY,
			description TEXT NOT NULL,
			origin TEXT NOT NULL,
			category TEXT NOT NULL,
			schema_params TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_capabilities_category
			ON capabilities(category COLLATE NOCASE);
	`)
	if err != nil {
		return fmt.Errorf("sqlite: init schema: %w", err)
	}
	return nil
}

// Register upserts meta under its name.
func (s *SQLiteStore) Register(ctx context.Context, meta capability.Metadata) error {
	if err := validate(meta); err != nil {
		return err
	}
	params, err := encodeParams(meta.SchemaParams)
	if err != nil {
		return fmt.Errorf("sqlite: encode %s: %w", meta.Name, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO capabilities (name, description, origin, category, schema_params)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			description = excluded.description,
			origin = excluded.origin,
			category = excluded.category,
			schema_params = excluded.schema_params
	`, meta.Name, meta.Description, meta.Origin, meta.Category, params)
	if err != nil {
		return fmt.Errorf("sqlite: register %s: %w", meta.Name, err)
	}
	return nil
}

// Delete removes the named capability.
func (s *SQLiteStore) Delete(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM capabilities WHERE name = ?", name); err != nil {
		return fmt.Errorf("sqlite: delete %s: %w", name, err)
	}
	return nil
}

// Get returns the capability for name, or nil if not found.
func (s *SQLiteStore) Get(ctx context.Context, name string) (*capability.Metadata, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT name, description, origin, category, schema_params
		FROM capabilities WHERE name = ?
	`, name)
	meta, err := scanMetadata(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get %s: %w", name, err)
	}
	return meta, nil
}

// LookupOrigin returns the origin registered for name.
func (s *SQLiteStore) LookupOrigin(ctx context.Context, name string) (string, error) {
	var origin string
	err := s.db.QueryRowContext(ctx, "SELECT origin FROM capabilities WHERE name = ?", name).Scan(&origin)
	if errors.Is(err, sql.ErrNoRows) {
		return "", capability.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("sqlite: lookup origin %s: %w", name, err)
	}
	return origin, nil
}

// List returns all capabilities sorted by name.
func (s *SQLiteStore) List(ctx context.Context) ([]capability.Metadata, error) {
	return s.queryAll(ctx, `
		SELECT name, description, origin, category, schema_params
		FROM capabilities ORDER BY name
	`)
}

// ByCategory returns capabilities in the given category, ignoring case.
func (s *SQLiteStore) ByCategory(ctx context.Context, category string) ([]capability.Metadata, error) {
	return s.queryAll(ctx, `
		SELECT name, description, origin, category, schema_params
		FROM capabilities WHERE category = ? COLLATE NOCASE ORDER BY name
	`, category)
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) queryAll(ctx context.Context, query string, args ...any) ([]capability.Metadata, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query: %w", err)
	}
	defer rows.Close()

	var out []capability.Metadata
	for rows.Next() {
		meta, err := scanMetadata(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan: %w", err)
		}
		out = append(out, *meta)
	}
	return out, rows.Err()
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanMetadata(sc scanner) (*capability.Metadata, error) {
	var (
		meta   capability.Metadata
		params sql.NullString
	)
	if err := sc.Scan(&meta.Name, &meta.Description, &meta.Origin, &meta.Category, &params); err != nil {
		return nil, err
	}
	if params.Valid && params.String != "" {
		if err := json.Unmarshal([]byte(params.String), &meta.SchemaParams); err != nil {
			return nil, fmt.Errorf("decode schema params for %s: %w", meta.Name, err)
		}
	}
	return &meta, nil
}

// encodeParams returns the JSON form of params, or nil for an empty map.
func encodeParams(params map[string]any) (any, error) {
	if len(params) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}
