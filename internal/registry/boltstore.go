package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dusk-indust/jitcap/internal/capability"
	bolt "go.etcd.io/bbolt"
)

var capabilityBucket = []byte("capabilities")

// Compile-time assertion: *BoltStore satisfies Store.
var _ Store = (*BoltStore)(nil)

// BoltStore persists capability metadata as JSON values in a BoltDB file,
// keyed by capability name.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) a BoltDB database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	if path == "" {
		return nil, fmt.Errorf("bolt: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("bolt: create parent directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("bolt: open %s: %w", path, err)
	}
	return &BoltStore{db: db}, nil
}

// InitSchema ensures the capability bucket exists.
func (b *BoltStore) InitSchema(_ context.Context) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(capabilityBucket)
		return err
	})
}

// Register upserts meta under its name.
func (b *BoltStore) Register(_ context.Context, meta capability.Metadata) error {
	if err := validate(meta); err != nil {
		return err
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("bolt: encode %s: %w", meta.Name, err)
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(capabilityBucket).Put([]byte(meta.Name), raw)
	})
}

// Delete removes the named capability.
func (b *BoltStore) Delete(_ context.Context, name string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(capabilityBucket).Delete([]byte(name))
	})
}

// Get returns the capability for name, or nil if not found.
func (b *BoltStore) Get(_ context.Context, name string) (*capability.Metadata, error) {
	var meta *capability.Metadata
	err := b.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(capabilityBucket).Get([]byte(name))
		if raw == nil {
			return nil
		}
		meta = &capability.Metadata{}
		return json.Unmarshal(raw, meta)
	})
	if err != nil {
		return nil, fmt.Errorf("bolt: get %s: %w", name, err)
	}
	return meta, nil
}

// LookupOrigin returns the origin registered for name.
func (b *BoltStore) LookupOrigin(ctx context.Context, name string) (string, error) {
	meta, err := b.Get(ctx, name)
	if err != nil {
		return "", err
	}
	if meta == nil {
		return "", capability.ErrNotFound
	}
	return meta.Origin, nil
}

// List returns all capabilities. Bolt iterates keys in byte order, which is
// already name order.
func (b *BoltStore) List(_ context.Context) ([]capability.Metadata, error) {
	var out []capability.Metadata
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(capabilityBucket).ForEach(func(k, v []byte) error {
			var meta capability.Metadata
			if err := json.Unmarshal(v, &meta); err != nil {
				return fmt.Errorf("decode %s: %w", k, err)
			}
			out = append(out, meta)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("bolt: list: %w", err)
	}
	return out, nil
}

// ByCategory returns capabilities in the given category.
func (b *BoltStore) ByCategory(ctx context.Context, category string) ([]capability.Metadata, error) {
	all, err := b.List(ctx)
	if err != nil {
		return nil, err
	}
	return filterCategory(all, category), nil
}

// Close releases the database file.
func (b *BoltStore) Close() error {
	return b.db.Close()
}
