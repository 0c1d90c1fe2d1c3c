package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dusk-indust/jitcap/internal/capability"
)

// Compile-time check.
var _ Transport = (*StaticTransport)(nil)

// Handler answers an invocation of one tool on a StaticTransport endpoint.
type Handler func(ctx context.Context, args map[string]any) (*capability.Result, error)

// Tool is a schema together with the handler that serves it.
type Tool struct {
	Schema  capability.Schema
	Handler Handler
}

// Endpoint is the in-process stand-in for one tool server.
type Endpoint struct {
	Tools []Tool
	// Err, when set, makes every fetch and invocation fail.
	Err error
}

// StaticTransport serves endpoints from an in-process table keyed by
// descriptor. It records how many schema fetches each descriptor received.
type StaticTransport struct {
	mu        sync.Mutex
	endpoints map[string]Endpoint
	fetches   map[string]int
}

// NewStaticTransport creates an empty StaticTransport.
func NewStaticTransport() *StaticTransport {
	return &StaticTransport{
		endpoints: make(map[string]Endpoint),
		fetches:   make(map[string]int),
	}
}

// Serve installs ep as the endpoint for d, replacing any previous one.
func (s *StaticTransport) Serve(d capability.Descriptor, ep Endpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endpoints[d.Key()] = ep
}

// Fetches reports how many times FetchSchemas was called for d.
func (s *StaticTransport) Fetches(d capability.Descriptor) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches[d.Key()]
}

// FetchSchemas implements Transport.
func (s *StaticTransport) FetchSchemas(_ context.Context, d capability.Descriptor) ([]capability.Schema, error) {
	s.mu.Lock()
	s.fetches[d.Key()]++
	ep, ok := s.endpoints[d.Key()]
	s.mu.Unlock()

	if !ok {
		return nil, failure(d, "connect", errors.New("no endpoint"))
	}
	if ep.Err != nil {
		return nil, failure(d, "list tools", ep.Err)
	}
	schemas := make([]capability.Schema, len(ep.Tools))
	for i, t := range ep.Tools {
		schemas[i] = t.Schema
	}
	return schemas, nil
}

// Invoke implements Transport.
func (s *StaticTransport) Invoke(ctx context.Context, d capability.Descriptor, name string, args map[string]any) (*capability.Result, error) {
	s.mu.Lock()
	ep, ok := s.endpoints[d.Key()]
	s.mu.Unlock()

	if !ok {
		return nil, failure(d, "connect", errors.New("no endpoint"))
	}
	if ep.Err != nil {
		return nil, failure(d, "call "+name, ep.Err)
	}
	for _, t := range ep.Tools {
		if t.Schema.Name != name {
			continue
		}
		if t.Handler == nil {
			return &capability.Result{}, nil
		}
		res, err := t.Handler(ctx, args)
		if err != nil {
			return nil, failure(d, "call "+name, err)
		}
		return res, nil
	}
	return nil, failure(d, "call "+name, fmt.Errorf("unknown tool %q", name))
}

// EchoHandler returns a handler that reports the tool name and its
// arguments, with keys in sorted order.
func EchoHandler(name string) Handler {
	return func(_ context.Context, args map[string]any) (*capability.Result, error) {
		keys := make([]string, 0, len(args))
		for k := range args {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s=%v", k, args[k])
		}
		structured, err := json.Marshal(map[string]any{"tool": name, "arguments": args})
		if err != nil {
			return nil, err
		}
		return &capability.Result{
			Text:       fmt.Sprintf("%s(%s)", name, strings.Join(parts, ", ")),
			Structured: structured,
		}, nil
	}
}
