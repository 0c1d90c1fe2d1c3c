// Package transport talks to the endpoint a descriptor names: it fetches the
// endpoint's tool schemas and invokes tools on it.
package transport

import (
	"context"
	"fmt"

	"github.com/dusk-indust/jitcap/internal/capability"
)

// Transport is the wire-level collaborator of the hydration cache. Every
// failure wraps capability.ErrTransport; an endpoint with no tools is a
// successful, empty result.
type Transport interface {
	// FetchSchemas returns every tool schema the endpoint serves.
	FetchSchemas(ctx context.Context, d capability.Descriptor) ([]capability.Schema, error)

	// Invoke calls the named tool on the endpoint.
	Invoke(ctx context.Context, d capability.Descriptor, name string, args map[string]any) (*capability.Result, error)
}

// failure wraps err as a transport failure for descriptor d.
func failure(d capability.Descriptor, op string, err error) error {
	return fmt.Errorf("%w: %s %q: %w", capability.ErrTransport, op, d.String(), err)
}
