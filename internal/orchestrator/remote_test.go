package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/dusk-indust/jitcap/internal/capability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// modelHandler decodes a model/generate request and answers with fn's result.
func modelHandler(t *testing.T, fn func(p GenerateParams) (*GenerateResult, *rpcErrorObject)) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req rpcRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			return
		}
		assert.Equal(t, jsonRPCVersion, req.JSONRPC)
		assert.Equal(t, MethodGenerate, req.Method)

		var params GenerateParams
		assert.NoError(t, json.Unmarshal(req.Params, &params))

		result, rpcErr := fn(params)
		resp := rpcResponse{JSONRPC: jsonRPCVersion, ID: req.ID, Error: rpcErr}
		if result != nil {
			raw, err := json.Marshal(result)
			assert.NoError(t, err)
			resp.Result = raw
		}
		w.Header().Set("Content-Type", "application/json")
		assert.NoError(t, json.NewEncoder(w).Encode(resp))
	}
}

func TestRemoteModel_Generate(t *testing.T) {
	var got GenerateParams
	ts := httptest.NewServer(modelHandler(t, func(p GenerateParams) (*GenerateResult, *rpcErrorObject) {
		got = p
		return &GenerateResult{Call: &ToolCall{
			Name:      DiscoveryToolName,
			Arguments: map[string]any{"query": "stock prices"},
		}}, nil
	}))
	defer ts.Close()

	m := NewRemoteModel(ts.URL)
	resp, err := m.Generate(context.Background(), "revenue?", []capability.Schema{DiscoveryTool()})
	require.NoError(t, err)

	assert.Equal(t, "revenue?", got.Prompt)
	require.Len(t, got.Tools, 1)
	assert.Equal(t, DiscoveryToolName, got.Tools[0].Name)
	assert.Contains(t, string(got.Tools[0].InputSchema), `"query"`)

	require.NotNil(t, resp.Call)
	assert.Equal(t, DiscoveryToolName, resp.Call.Name)
	assert.Equal(t, "stock prices", resp.Call.Arguments["query"])
	assert.False(t, resp.Done)
}

func TestRemoteModel_RPCError(t *testing.T) {
	ts := httptest.NewServer(modelHandler(t, func(GenerateParams) (*GenerateResult, *rpcErrorObject) {
		return nil, &rpcErrorObject{Code: -32603, Message: "overloaded"}
	}))
	defer ts.Close()

	_, err := NewRemoteModel(ts.URL).Generate(context.Background(), "x", nil)
	var rpcErr *RPCError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, -32603, rpcErr.Code)
	assert.Equal(t, "model: rpc error -32603: overloaded", rpcErr.Error())
}

func TestRemoteModel_HTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := NewRemoteModel(ts.URL).Generate(context.Background(), "x", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 502")
}

func TestRemoteModel_UnnamedCallRejected(t *testing.T) {
	ts := httptest.NewServer(modelHandler(t, func(GenerateParams) (*GenerateResult, *rpcErrorObject) {
		return &GenerateResult{Call: &ToolCall{}}, nil
	}))
	defer ts.Close()

	_, err := NewRemoteModel(ts.URL).Generate(context.Background(), "x", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tool call without a name")
}

func TestRemoteModel_DrivesRun(t *testing.T) {
	cache, st := newCache(t, true)

	var mu sync.Mutex
	turn := 0
	ts := httptest.NewServer(modelHandler(t, func(p GenerateParams) (*GenerateResult, *rpcErrorObject) {
		mu.Lock()
		defer mu.Unlock()
		turn++
		switch turn {
		case 1:
			return &GenerateResult{Call: &ToolCall{Name: DiscoveryToolName, Arguments: map[string]any{"query": "stock prices"}}}, nil
		case 2:
			names := make([]string, len(p.Tools))
			for i, tool := range p.Tools {
				names[i] = tool.Name
			}
			assert.Equal(t, []string{DiscoveryToolName, "finance_tool"}, names)
			return &GenerateResult{Call: &ToolCall{Name: "finance_tool", Arguments: map[string]any{"ticker": "NVDA"}}}, nil
		default:
			assert.True(t, strings.HasSuffix(p.Prompt, "Tool (finance_tool): finance_tool(ticker=NVDA)"))
			return &GenerateResult{Content: "NVDA looks fine.", Done: true}, nil
		}
	}))
	defer ts.Close()

	o := New(NewRemoteModel(ts.URL), cache, Config{}, WithLogger(zaptest.NewLogger(t)))
	answer, err := o.Run(context.Background(), "How is NVIDIA doing?")
	require.NoError(t, err)
	assert.Equal(t, "NVDA looks fine.", answer)
	assert.Equal(t, 1, st.Fetches(financeDesc))
}
