// Package registry stores capability metadata and answers origin lookups.
//
// Implementations: MemStore (default, tests), BoltStore and SQLiteStore
// (persistent, pure Go), KuzuStore (persistent, requires cgo).
package registry

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dusk-indust/jitcap/internal/capability"
)

// Store is the interface for the capability catalog backend. The storage
// technology is opaque to the hydration cache.
type Store interface {
	io.Closer

	// InitSchema prepares the backend. Called once before any data is written
	// and safe to call again.
	InitSchema(ctx context.Context) error

	// Register inserts or replaces a capability keyed by name.
	Register(ctx context.Context, meta capability.Metadata) error

	// Delete removes a capability. Deleting a missing name is not an error.
	Delete(ctx context.Context, name string) error

	// Get returns the capability with the given name, or nil if absent.
	Get(ctx context.Context, name string) (*capability.Metadata, error)

	// LookupOrigin returns the origin of a capability, or ErrNotFound.
	LookupOrigin(ctx context.Context, name string) (string, error)

	// List returns every capability sorted by name.
	List(ctx context.Context) ([]capability.Metadata, error)

	// ByCategory returns capabilities whose category matches, ignoring case,
	// sorted by name.
	ByCategory(ctx context.Context, category string) ([]capability.Metadata, error)
}

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendBolt   = "bolt"
	BackendSQLite = "sqlite"
	BackendKuzu   = "kuzu"
)

// Backends lists the backend names known to this build.
func Backends() []string {
	return []string{BackendMemory, BackendBolt, BackendSQLite, BackendKuzu}
}

// Open creates and initializes a store for the named backend. path is ignored
// by the memory backend.
func Open(ctx context.Context, backend, path string) (Store, error) {
	var (
		s   Store
		err error
	)
	switch strings.ToLower(backend) {
	case "", BackendMemory:
		s = NewMemStore()
	case BackendBolt:
		s, err = NewBoltStore(path)
	case BackendSQLite:
		s, err = NewSQLiteStore(path)
	case BackendKuzu:
		s, err = openKuzu(path)
	default:
		return nil, fmt.Errorf("registry: unknown backend %q", backend)
	}
	if err != nil {
		return nil, err
	}
	if err := s.InitSchema(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// validate is called by every backend's Register.
func validate(meta capability.Metadata) error {
	if err := meta.Validate(); err != nil {
		return fmt.Errorf("registry: %w", err)
	}
	return nil
}

func sortByName(items []capability.Metadata) {
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
}

func filterCategory(items []capability.Metadata, category string) []capability.Metadata {
	out := make([]capability.Metadata, 0, len(items))
	for _, m := range items {
		if strings.EqualFold(m.Category, category) {
			out = append(out, m)
		}
	}
	return out
}
