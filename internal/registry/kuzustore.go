//go:build cgo

package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dusk-indust/jitcap/internal/capability"
	kuzu "github.com/kuzudb/go-kuzu"
)

// KuzuStore implements Store using KuzuDB. It requires CGO because the
// go-kuzu driver wraps KuzuDB's C library.
type KuzuStore struct {
	db   *kuzu.Database
	conn *kuzu.Connection
}

// Compile-time check that KuzuStore satisfies Store.
var _ Store = (*KuzuStore)(nil)

// NewKuzuStore creates a KuzuStore backed by an in-memory KuzuDB instance.
func NewKuzuStore() (*KuzuStore, error) {
	return newKuzu(":memory:")
}

// NewKuzuFileStore creates a KuzuStore backed by a file-based KuzuDB at the
// given path. KuzuDB creates the leaf itself for new databases.
func NewKuzuFileStore(dbPath string) (*KuzuStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("kuzu: create parent directory: %w", err)
	}
	return newKuzu(dbPath)
}

func newKuzu(path string) (*KuzuStore, error) {
	cfg := kuzu.DefaultSystemConfig()
	db, err := kuzu.OpenDatabase(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("kuzu: open database: %w", err)
	}
	conn, err := kuzu.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("kuzu: open connection: %w", err)
	}
	return &KuzuStore{db: db, conn: conn}, nil
}

func openKuzu(path string) (Store, error) {
	if path == "" || path == ":memory:" {
		return NewKuzuStore()
	}
	return NewKuzuFileStore(path)
}

// Close releases the KuzuDB connection and database.
func (s *KuzuStore) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
	return nil
}

// InitSchema creates the Capability node table if it does not exist.
func (s *KuzuStore) InitSchema(_ context.Context) error {
	res, err := s.conn.Query(`CREATE NODE TABLE IF NOT EXISTS Capability(
		name STRING,
		description STRING,
		origin STRING,
		category STRING,
		schema_params STRING,
		PRIMARY KEY(name)
	)`)
	if err != nil {
		return fmt.Errorf("kuzu: init schema: %w", err)
	}
	res.Close()
	return nil
}

// Register upserts a Capability node.
func (s *KuzuStore) Register(_ context.Context, meta capability.Metadata) error {
	if err := validate(meta); err != nil {
		return err
	}
	params := ""
	if len(meta.SchemaParams) > 0 {
		raw, err := json.Marshal(meta.SchemaParams)
		if err != nil {
			return fmt.Errorf("kuzu: encode %s: %w", meta.Name, err)
		}
		params = string(raw)
	}
	return s.exec(
		`MERGE (c:Capability {name: $name})
		 SET c.description = $desc, c.origin = $origin, c.category = $cat, c.schema_params = $params`,
		map[string]any{
			"name":   meta.Name,
			"desc":   meta.Description,
			"origin": meta.Origin,
			"cat":    meta.Category,
			"params": params,
		},
	)
}

// Delete removes the named Capability node.
func (s *KuzuStore) Delete(_ context.Context, name string) error {
	return s.exec("MATCH (c:Capability {name: $name}) DELETE c", map[string]any{"name": name})
}

// Get returns the capability for name, or nil if not found.
func (s *KuzuStore) Get(_ context.Context, name string) (*capability.Metadata, error) {
	rows, err := s.query(
		`MATCH (c:Capability {name: $name})
		 RETURN c.name, c.description, c.origin, c.category, c.schema_params`,
		map[string]any{"name": name},
	)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rowToMetadata(rows[0])
}

// LookupOrigin returns the origin registered for name.
func (s *KuzuStore) LookupOrigin(ctx context.Context, name string) (string, error) {
	meta, err := s.Get(ctx, name)
	if err != nil {
		return "", err
	}
	if meta == nil {
		return "", capability.ErrNotFound
	}
	return meta.Origin, nil
}

// List returns all capabilities sorted by name.
func (s *KuzuStore) List(_ context.Context) ([]capability.Metadata, error) {
	return s.queryAll(
		`MATCH (c:Capability)
		 RETURN c.name, c.description, c.origin, c.category, c.schema_params
		 ORDER BY c.name`,
		nil,
	)
}

// ByCategory returns capabilities in the given category, ignoring case.
func (s *KuzuStore) ByCategory(_ context.Context, category string) ([]capability.Metadata, error) {
	return s.queryAll(
		`MATCH (c:Capability) WHERE lower(c.category) = lower($cat)
		 RETURN c.name, c.description, c.origin, c.category, c.schema_params
		 ORDER BY c.name`,
		map[string]any{"cat": category},
	)
}

func (s *KuzuStore) queryAll(cypher string, params map[string]any) ([]capability.Metadata, error) {
	rows, err := s.query(cypher, params)
	if err != nil {
		return nil, err
	}
	out := make([]capability.Metadata, 0, len(rows))
	for _, r := range rows {
		meta, err := rowToMetadata(r)
		if err != nil {
			return nil, err
		}
		out = append(out, *meta)
	}
	return out, nil
}

// exec runs a parameterized Cypher statement and discards the result.
func (s *KuzuStore) exec(cypher string, params map[string]any) error {
	stmt, err := s.conn.Prepare(cypher)
	if err != nil {
		return fmt.Errorf("kuzu: prepare: %w", err)
	}
	defer stmt.Close()

	res, err := s.conn.Execute(stmt, params)
	if err != nil {
		return fmt.Errorf("kuzu: execute: %w", err)
	}
	res.Close()
	return nil
}

// query runs a Cypher statement and collects all result rows. Each row is a
// []any slice with values in column order.
func (s *KuzuStore) query(cypher string, params map[string]any) ([][]any, error) {
	var res *kuzu.QueryResult
	var err error

	if len(params) == 0 {
		res, err = s.conn.Query(cypher)
	} else {
		var stmt *kuzu.PreparedStatement
		stmt, err = s.conn.Prepare(cypher)
		if err != nil {
			return nil, fmt.Errorf("kuzu: prepare: %w", err)
		}
		defer stmt.Close()
		res, err = s.conn.Execute(stmt, params)
	}
	if err != nil {
		return nil, fmt.Errorf("kuzu: query: %w", err)
	}
	defer res.Close()

	var rows [][]any
	for res.HasNext() {
		tuple, err := res.Next()
		if err != nil {
			return nil, fmt.Errorf("kuzu: next: %w", err)
		}
		vals, err := tuple.GetAsSlice()
		if err != nil {
			return nil, fmt.Errorf("kuzu: row values: %w", err)
		}
		rows = append(rows, vals)
	}
	return rows, nil
}

// rowToMetadata converts a 5-column row into Metadata.
// Column order: name, description, origin, category, schema_params.
func rowToMetadata(r []any) (*capability.Metadata, error) {
	meta := &capability.Metadata{
		Name:        toString(r[0]),
		Description: toString(r[1]),
		Origin:      toString(r[2]),
		Category:    toString(r[3]),
	}
	if raw := toString(r[4]); raw != "" {
		if err := json.Unmarshal([]byte(raw), &meta.SchemaParams); err != nil {
			return nil, fmt.Errorf("kuzu: decode schema params for %s: %w", meta.Name, err)
		}
	}
	return meta, nil
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}
