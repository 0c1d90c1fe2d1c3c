// Package hydration implements the just-in-time capability cache. Schemas are
// fetched from an origin the first time one of its capabilities is needed and
// then served from memory; execution is only possible for hydrated names.
package hydration

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dusk-indust/jitcap/internal/capability"
	"github.com/dusk-indust/jitcap/internal/resolver"
	"github.com/dusk-indust/jitcap/internal/search"
	"github.com/dusk-indust/jitcap/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrNoOrigin marks a search candidate that carries no origin URI.
	ErrNoOrigin = errors.New("hydration: candidate has no origin")

	// ErrCleared is reported when Clear ran while an origin was being
	// hydrated; the fetched schemas are discarded.
	ErrCleared = errors.New("hydration: cache cleared during hydration")
)

// Searcher ranks registered capabilities for a query.
// *search.Dispatcher satisfies it.
type Searcher interface {
	Search(ctx context.Context, query, mode string, opts search.Options) ([]capability.Candidate, error)
}

// OriginLookup resolves a capability name to its origin URI.
// registry.Store satisfies it.
type OriginLookup interface {
	LookupOrigin(ctx context.Context, name string) (string, error)
}

// SiblingPolicy decides what HydrateByName does with the other schemas an
// origin returns alongside the requested one.
type SiblingPolicy int

const (
	// SiblingsEager activates every schema the origin returned.
	SiblingsEager SiblingPolicy = iota
	// SiblingsDeferred activates only the requested schema. The others stay
	// cached with the origin and are activated, without a new fetch, when a
	// later discovery reaches that origin.
	SiblingsDeferred
)

// Config holds the collaborators of a Cache.
type Config struct {
	Registry  OriginLookup
	Search    Searcher
	Transport transport.Transport
	Logger    *zap.Logger

	// Mode is passed to Search; empty uses the searcher's active mode.
	Mode     string
	Siblings SiblingPolicy
}

// originEntry is one member of the hydrated-origins set together with the
// schema set fetched from it.
type originEntry struct {
	descriptor capability.Descriptor
	schemas    []capability.Schema
}

// Cache is the hydration state of one agent session. It is safe for
// concurrent use; concurrent hydrations of one origin share a single fetch.
type Cache struct {
	registry  OriginLookup
	search    Searcher
	transport transport.Transport
	logger    *zap.Logger
	mode      string
	siblings  SiblingPolicy

	mu      sync.Mutex
	active  map[string]capability.Hydrated
	origins map[string]*originEntry
	gen     uint64

	flights singleflight.Group
}

// New creates an empty Cache.
func New(cfg Config) *Cache {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		registry:  cfg.Registry,
		search:    cfg.Search,
		transport: cfg.Transport,
		logger:    logger,
		mode:      cfg.Mode,
		siblings:  cfg.Siblings,
		active:    make(map[string]capability.Hydrated),
		origins:   make(map[string]*originEntry),
	}
}

// Discover returns previews of the capabilities matching query. It performs
// no transport I/O and does not change the cache.
func (c *Cache) Discover(ctx context.Context, query string, limit int) ([]capability.Preview, error) {
	candidates, err := c.candidates(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	previews := make([]capability.Preview, len(candidates))
	for i, cand := range candidates {
		previews[i] = capability.PreviewOf(cand)
	}
	return previews, nil
}

// DiscoverAndHydrate searches for query and hydrates every candidate's
// origin, returning the full schemas that were loaded or already cached.
func (c *Cache) DiscoverAndHydrate(ctx context.Context, query string, limit int) ([]capability.Schema, error) {
	schemas, _, err := c.DiscoverAndHydrateReport(ctx, query, limit)
	return schemas, err
}

// DiscoverAndHydrateReport is DiscoverAndHydrate that also returns the
// candidates that failed. Only a search error is returned as an error.
func (c *Cache) DiscoverAndHydrateReport(ctx context.Context, query string, limit int) ([]capability.Schema, *Report, error) {
	report := &Report{}
	candidates, err := c.candidates(ctx, query, limit)
	if err != nil {
		return nil, report, err
	}

	out := []capability.Schema{}
	seen := make(map[string]bool)
	for _, cand := range candidates {
		if cand.Origin == "" {
			c.logger.Warn("skipping candidate without origin", zap.String("capability", cand.ID))
			report.add(cand.ID, "", ErrNoOrigin)
			continue
		}

		schemas, err := c.hydrateOrigin(ctx, cand.Origin, nil)
		if err != nil {
			c.logger.Warn("hydration failed",
				zap.String("capability", cand.ID),
				zap.String("origin", cand.Origin),
				zap.Error(err),
			)
			report.add(cand.ID, cand.Origin, err)
			continue
		}
		for _, s := range schemas {
			if seen[s.Name] {
				continue
			}
			seen[s.Name] = true
			out = append(out, s)
		}
	}

	c.logger.Debug("discover and hydrate",
		zap.String("query", query),
		zap.Int("candidates", len(candidates)),
		zap.Int("schemas", len(out)),
		zap.Int("failures", len(report.Failures)),
	)
	return out, report, nil
}

// HydrateByName hydrates the origin of one registered capability and returns
// its schema. It returns nil, nil when the name is not registered or its
// origin does not serve a tool of that name.
func (c *Cache) HydrateByName(ctx context.Context, name string) (*capability.Schema, error) {
	if c.registry == nil {
		return nil, errors.New("hydration: no registry configured")
	}
	origin, err := c.registry.LookupOrigin(ctx, name)
	if errors.Is(err, capability.ErrNotFound) || (err == nil && origin == "") {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("hydration: lookup %s: %w", name, err)
	}

	var only func(string) bool
	if c.siblings == SiblingsDeferred {
		only = func(n string) bool { return n == name }
	}
	schemas, err := c.hydrateOrigin(ctx, origin, only)
	if err != nil {
		return nil, fmt.Errorf("hydration: %s: %w", name, err)
	}
	for _, s := range schemas {
		if s.Name == name {
			return &s, nil
		}
	}
	return nil, nil
}

// Execute invokes a hydrated capability. A name outside the active table
// fails with *capability.NotHydratedError. The transport result is returned
// unchanged and failures are not retried.
func (c *Cache) Execute(ctx context.Context, name string, args map[string]any) (*capability.Result, error) {
	c.mu.Lock()
	h, ok := c.active[name]
	var active []string
	if !ok {
		active = c.activeNamesLocked()
	}
	c.mu.Unlock()

	if !ok {
		return nil, &capability.NotHydratedError{Name: name, Active: active}
	}
	return c.transport.Invoke(ctx, h.Descriptor, name, args)
}

// IsHydrated reports whether name is in the active table.
func (c *Cache) IsHydrated(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.active[name]
	return ok
}

// ActiveNames returns the hydrated capability names in sorted order.
func (c *Cache) ActiveNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeNamesLocked()
}

// ActiveSchemas returns the hydrated schemas sorted by name.
func (c *Cache) ActiveSchemas() []capability.Schema {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]capability.Schema, 0, len(c.active))
	for _, h := range c.active {
		out = append(out, h.Schema)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// HydratedOrigins returns the origins fetched so far, sorted.
func (c *Cache) HydratedOrigins() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.origins))
	for o := range c.origins {
		out = append(out, o)
	}
	sort.Strings(out)
	return out
}

// Clear empties the active table and the hydrated-origins set together.
// Hydrations in flight when Clear runs discard their results.
func (c *Cache) Clear() {
	c.mu.Lock()
	n := len(c.active)
	c.active = make(map[string]capability.Hydrated)
	c.origins = make(map[string]*originEntry)
	c.gen++
	c.mu.Unlock()

	c.logger.Info("hydration cache cleared", zap.Int("released", n))
}

func (c *Cache) candidates(ctx context.Context, query string, limit int) ([]capability.Candidate, error) {
	if c.search == nil {
		return nil, errors.New("hydration: no search configured")
	}
	candidates, err := c.search.Search(ctx, query, c.mode, search.Options{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("hydration: %w", err)
	}
	return candidates, nil
}

// hydrateOrigin makes sure origin is in the hydrated set, fetching it at most
// once, then activates the schemas accepted by want (all when want is nil)
// and returns them.
func (c *Cache) hydrateOrigin(ctx context.Context, origin string, want func(string) bool) ([]capability.Schema, error) {
	entry, err := c.fetch(ctx, origin)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.origins[origin] != entry {
		return nil, ErrCleared
	}
	var out []capability.Schema
	for _, s := range entry.schemas {
		if want != nil && !want(s.Name) {
			continue
		}
		c.active[s.Name] = capability.Hydrated{Schema: s, Descriptor: entry.descriptor, Origin: origin}
		out = append(out, s)
	}
	return out, nil
}

// fetch returns the cached entry for origin or resolves and fetches it.
// Concurrent callers for one origin within one generation share a single
// transport call. The shared call is not cancelled by any one caller; a
// caller whose ctx ends stops waiting and gets ctx.Err().
func (c *Cache) fetch(ctx context.Context, origin string) (*originEntry, error) {
	c.mu.Lock()
	if e := c.origins[origin]; e != nil {
		c.mu.Unlock()
		return e, nil
	}
	gen := c.gen
	c.mu.Unlock()

	key := fmt.Sprintf("%d\x00%s", gen, origin)
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.flights.DoChan(key, func() (any, error) {
		return c.fetchOrigin(fetchCtx, origin, gen)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*originEntry), nil
	}
}

// fetchOrigin resolves origin and fetches its schemas. The result is
// discarded with ErrCleared when Clear ran after generation gen began.
func (c *Cache) fetchOrigin(ctx context.Context, origin string, gen uint64) (*originEntry, error) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return nil, ErrCleared
	}
	if e := c.origins[origin]; e != nil {
		c.mu.Unlock()
		return e, nil
	}
	c.mu.Unlock()

	desc, err := resolver.Resolve(origin)
	if err != nil {
		return nil, err
	}
	schemas, err := c.transport.FetchSchemas(ctx, desc)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return nil, ErrCleared
	}
	e := &originEntry{descriptor: desc, schemas: schemas}
	c.origins[origin] = e

	c.logger.Info("origin hydrated",
		zap.String("origin", origin),
		zap.String("descriptor", desc.String()),
		zap.Strings("tools", capability.Names(schemas)),
	)
	return e, nil
}

func (c *Cache) activeNamesLocked() []string {
	names := make([]string, 0, len(c.active))
	for n := range c.active {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
