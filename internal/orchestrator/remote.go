package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/dusk-indust/jitcap/internal/capability"
)

// MethodGenerate is the JSON-RPC method a remote model endpoint serves.
const MethodGenerate = "model/generate"

const jsonRPCVersion = "2.0"

var _ Model = (*RemoteModel)(nil)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcErrorObject `json:"error,omitempty"`
}

type rpcErrorObject struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// GenerateParams is the params object of a model/generate call.
type GenerateParams struct {
	Prompt string      `json:"prompt"`
	Tools  []ToolParam `json:"tools"`
}

// ToolParam is one tool the model may call.
type ToolParam struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// GenerateResult is the result object of a model/generate call.
type GenerateResult struct {
	Content string    `json:"content,omitempty"`
	Call    *ToolCall `json:"call,omitempty"`
	Done    bool      `json:"done,omitempty"`
}

// RPCError is a JSON-RPC error returned by a model endpoint.
type RPCError struct {
	Code    int
	Message string
	Data    json.RawMessage
}

func (e *RPCError) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("model: rpc error %d: %s (data: %s)", e.Code, e.Message, string(e.Data))
	}
	return fmt.Sprintf("model: rpc error %d: %s", e.Code, e.Message)
}

// RemoteModel is a Model served by an HTTP JSON-RPC 2.0 endpoint.
type RemoteModel struct {
	endpoint  string
	http      *http.Client
	requestID atomic.Int64
}

// RemoteOption configures a RemoteModel.
type RemoteOption func(*RemoteModel)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) RemoteOption {
	return func(m *RemoteModel) {
		m.http.Timeout = d
	}
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) RemoteOption {
	return func(m *RemoteModel) {
		m.http = hc
	}
}

// NewRemoteModel returns a Model that posts model/generate calls to endpoint.
func NewRemoteModel(endpoint string, opts ...RemoteOption) *RemoteModel {
	m := &RemoteModel{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Generate implements Model.
func (m *RemoteModel) Generate(ctx context.Context, prompt string, tools []capability.Schema) (Response, error) {
	params := GenerateParams{Prompt: prompt, Tools: make([]ToolParam, len(tools))}
	for i, t := range tools {
		params.Tools[i] = ToolParam{Name: t.Name, Description: t.Description}
		if len(t.InputSchema) > 0 {
			params.Tools[i].InputSchema = t.InputSchema
		}
	}

	var result GenerateResult
	if err := m.call(ctx, MethodGenerate, params, &result); err != nil {
		return Response{}, err
	}
	if result.Call != nil && result.Call.Name == "" {
		return Response{}, fmt.Errorf("model: %s: tool call without a name", MethodGenerate)
	}
	return Response{Content: result.Content, Call: result.Call, Done: result.Done}, nil
}

func (m *RemoteModel) call(ctx context.Context, method string, params, result any) error {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("model: marshal params: %w", err)
	}
	body, err := json.Marshal(rpcRequest{
		JSONRPC: jsonRPCVersion,
		ID:      m.requestID.Add(1),
		Method:  method,
		Params:  paramsJSON,
	})
	if err != nil {
		return fmt.Errorf("model: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("model: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := m.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("model: %s: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("model: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model: %s: HTTP %d: %s", method, resp.StatusCode, string(respBody))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return fmt.Errorf("model: decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return &RPCError{Code: rpcResp.Error.Code, Message: rpcResp.Error.Message, Data: rpcResp.Error.Data}
	}
	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("model: decode result: %w", err)
		}
	}
	return nil
}
