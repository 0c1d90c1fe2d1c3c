package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/dusk-indust/jitcap/internal/capability"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// version is set by the linker at build time.
var version = "dev"

// Compile-time check.
var _ Transport = (*MCPTransport)(nil)

// Dialer produces the MCP transport used to reach the endpoint a descriptor
// names.
type Dialer func(ctx context.Context, d capability.Descriptor) (mcp.Transport, error)

// CommandDialer launches the descriptor as a subprocess speaking MCP over
// stdio. The process outlives the dialing request; it is stopped when the
// session is closed.
func CommandDialer(_ context.Context, d capability.Descriptor) (mcp.Transport, error) {
	return &mcp.CommandTransport{Command: exec.Command(d.Command, d.Args...)}, nil
}

// MCPTransport implements Transport with the MCP Go SDK client. It keeps one
// client session per descriptor, opened on first use.
type MCPTransport struct {
	client *mcp.Client
	dial   Dialer
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[string]*mcp.ClientSession
	connect  singleflight.Group
}

// MCPOption configures an MCPTransport.
type MCPOption func(*MCPTransport)

// WithDialer replaces the default CommandDialer.
func WithDialer(dial Dialer) MCPOption {
	return func(t *MCPTransport) { t.dial = dial }
}

// WithLogger sets the transport logger.
func WithLogger(logger *zap.Logger) MCPOption {
	return func(t *MCPTransport) { t.logger = logger }
}

// NewMCPTransport creates an MCPTransport.
func NewMCPTransport(opts ...MCPOption) *MCPTransport {
	t := &MCPTransport{
		client: mcp.NewClient(&mcp.Implementation{
			Name:    "jitcap",
			Version: version,
		}, nil),
		dial:     CommandDialer,
		logger:   zap.NewNop(),
		sessions: make(map[string]*mcp.ClientSession),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// FetchSchemas lists every tool the endpoint serves, following pagination.
func (t *MCPTransport) FetchSchemas(ctx context.Context, d capability.Descriptor) ([]capability.Schema, error) {
	session, err := t.session(ctx, d)
	if err != nil {
		return nil, failure(d, "connect", err)
	}

	schemas := []capability.Schema{}
	params := &mcp.ListToolsParams{}
	for {
		res, err := session.ListTools(ctx, params)
		if err != nil {
			t.dropBroken(ctx, d, session)
			return nil, failure(d, "list tools", err)
		}
		for _, tool := range res.Tools {
			s, err := toSchema(tool)
			if err != nil {
				return nil, failure(d, "decode tool", err)
			}
			schemas = append(schemas, s)
		}
		if res.NextCursor == "" {
			break
		}
		params = &mcp.ListToolsParams{Cursor: res.NextCursor}
	}

	t.logger.Debug("fetched tool schemas",
		zap.String("descriptor", d.String()),
		zap.Int("tools", len(schemas)),
	)
	return schemas, nil
}

// Invoke calls a tool. A result flagged as an error by the endpoint is
// reported as a transport failure carrying the endpoint's message.
func (t *MCPTransport) Invoke(ctx context.Context, d capability.Descriptor, name string, args map[string]any) (*capability.Result, error) {
	session, err := t.session(ctx, d)
	if err != nil {
		return nil, failure(d, "connect", err)
	}
	if args == nil {
		args = map[string]any{}
	}

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.dropBroken(ctx, d, session)
		return nil, failure(d, "call "+name, err)
	}

	out := &capability.Result{Text: contentText(res.Content)}
	if res.StructuredContent != nil {
		raw, err := json.Marshal(res.StructuredContent)
		if err != nil {
			return nil, failure(d, "encode result of "+name, err)
		}
		out.Structured = raw
	}
	if res.IsError {
		return nil, failure(d, "call "+name, errors.New(out.String()))
	}
	return out, nil
}

// Close closes every open session.
func (t *MCPTransport) Close() error {
	t.mu.Lock()
	sessions := t.sessions
	t.sessions = make(map[string]*mcp.ClientSession)
	t.mu.Unlock()

	var errs []error
	for key, s := range sessions {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close session %q: %w", strings.ReplaceAll(key, "\x00", " "), err))
		}
	}
	return errors.Join(errs...)
}

// session returns the open session for d, connecting if necessary. Concurrent
// callers for the same descriptor share one connection attempt, which is not
// cancelled when one of them gives up.
func (t *MCPTransport) session(ctx context.Context, d capability.Descriptor) (*mcp.ClientSession, error) {
	key := d.Key()
	if s := t.lookup(key); s != nil {
		return s, nil
	}

	connectCtx := context.WithoutCancel(ctx)
	ch := t.connect.DoChan(key, func() (any, error) {
		if s := t.lookup(key); s != nil {
			return s, nil
		}
		mt, err := t.dial(connectCtx, d)
		if err != nil {
			return nil, err
		}
		s, err := t.client.Connect(connectCtx, mt, nil)
		if err != nil {
			return nil, err
		}
		t.mu.Lock()
		t.sessions[key] = s
		t.mu.Unlock()

		t.logger.Info("connected to capability endpoint", zap.String("descriptor", d.String()))
		return s, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*mcp.ClientSession), nil
	}
}

func (t *MCPTransport) lookup(key string) *mcp.ClientSession {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessions[key]
}

// dropBroken closes and forgets session after a failed request so the next
// call for d redials. Failures caused by the caller's own cancellation keep
// the session.
func (t *MCPTransport) dropBroken(ctx context.Context, d capability.Descriptor, session *mcp.ClientSession) {
	if ctx.Err() != nil {
		return
	}
	key := d.Key()
	t.mu.Lock()
	if t.sessions[key] != session {
		t.mu.Unlock()
		return
	}
	delete(t.sessions, key)
	t.mu.Unlock()

	t.logger.Warn("dropping capability endpoint session", zap.String("descriptor", d.String()))
	_ = session.Close()
}

func toSchema(tool *mcp.Tool) (capability.Schema, error) {
	s := capability.Schema{Name: tool.Name, Description: tool.Description}
	if tool.InputSchema != nil {
		raw, err := json.Marshal(tool.InputSchema)
		if err != nil {
			return capability.Schema{}, fmt.Errorf("input schema of %s: %w", tool.Name, err)
		}
		s.InputSchema = raw
	}
	return s, nil
}

func contentText(content []mcp.Content) string {
	var parts []string
	for _, c := range content {
		if tc, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}
