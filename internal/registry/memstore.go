package registry

import (
	"context"
	"maps"
	"sync"

	"github.com/dusk-indust/jitcap/internal/capability"
)

// Compile-time assertion: *MemStore satisfies Store.
var _ Store = (*MemStore)(nil)

// MemStore implements Store using a Go map. Thread-safe via sync.RWMutex.
type MemStore struct {
	mu    sync.RWMutex
	items map[string]capability.Metadata
}

// NewMemStore returns an initialized MemStore ready for use.
func NewMemStore() *MemStore {
	return &MemStore{items: make(map[string]capability.Metadata)}
}

// InitSchema is a no-op for the in-memory store.
func (m *MemStore) InitSchema(_ context.Context) error {
	return nil
}

// Register stores meta keyed by name, replacing any previous entry.
func (m *MemStore) Register(_ context.Context, meta capability.Metadata) error {
	if err := validate(meta); err != nil {
		return err
	}
	meta.SchemaParams = maps.Clone(meta.SchemaParams)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[meta.Name] = meta
	return nil
}

// Delete removes the named capability.
func (m *MemStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, name)
	return nil
}

// Get returns the capability for name, or nil if not found.
func (m *MemStore) Get(_ context.Context, name string) (*capability.Metadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	meta, ok := m.items[name]
	if !ok {
		return nil, nil
	}
	return &meta, nil
}

// LookupOrigin returns the origin registered for name.
func (m *MemStore) LookupOrigin(ctx context.Context, name string) (string, error) {
	meta, _ := m.Get(ctx, name)
	if meta == nil {
		return "", capability.ErrNotFound
	}
	return meta.Origin, nil
}

// List returns all capabilities sorted by name.
func (m *MemStore) List(_ context.Context) ([]capability.Metadata, error) {
	m.mu.RLock()
	out := make([]capability.Metadata, 0, len(m.items))
	for _, meta := range m.items {
		out = append(out, meta)
	}
	m.mu.RUnlock()

	sortByName(out)
	return out, nil
}

// ByCategory returns capabilities in the given category.
func (m *MemStore) ByCategory(ctx context.Context, category string) ([]capability.Metadata, error) {
	all, _ := m.List(ctx)
	return filterCategory(all, category), nil
}

// Close is a no-op for the in-memory store.
func (m *MemStore) Close() error {
	return nil
}
