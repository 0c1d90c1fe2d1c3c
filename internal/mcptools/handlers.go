package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/dusk-indust/jitcap/internal/capability"
	"github.com/dusk-indust/jitcap/internal/hydration"
	"github.com/dusk-indust/jitcap/internal/orchestrator"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

const defaultLimit = 5

// GatewayService handles MCP tool calls against one hydration cache.
type GatewayService struct {
	cache  *hydration.Cache
	logger *zap.Logger
}

// NewGatewayService creates a GatewayService over cache.
func NewGatewayService(cache *hydration.Cache, logger *zap.Logger) *GatewayService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GatewayService{cache: cache, logger: logger}
}

// DiscoverTools searches the registry and hydrates the matching capabilities.
func (s *GatewayService) DiscoverTools(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DiscoverInput,
) (*mcp.CallToolResult, DiscoverOutput, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, DiscoverOutput{}, fmt.Errorf("query is required")
	}

	schemas, report, err := s.cache.DiscoverAndHydrateReport(ctx, query, limitOr(input.Limit))
	if err != nil {
		return nil, DiscoverOutput{}, err
	}

	out := DiscoverOutput{Tools: summaries(schemas)}
	for _, f := range report.Failures {
		out.Failures = append(out.Failures, f.Error())
	}
	if len(schemas) == 0 {
		out.Summary = "No tools found for: " + query
	} else {
		out.Summary = fmt.Sprintf("Discovered and loaded %d tools: [%s]",
			len(schemas), strings.Join(capability.Names(schemas), ", "))
	}

	s.logger.Info("gateway discover",
		zap.String("query", query),
		zap.Int("loaded", len(schemas)),
		zap.Int("failed", len(out.Failures)),
	)
	return textResult(out.Summary), out, nil
}

// PreviewTools returns candidate previews without hydrating anything.
func (s *GatewayService) PreviewTools(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DiscoverInput,
) (*mcp.CallToolResult, PreviewOutput, error) {
	previews, err := s.cache.Discover(ctx, strings.TrimSpace(input.Query), limitOr(input.Limit))
	if err != nil {
		return nil, PreviewOutput{}, err
	}
	return nil, PreviewOutput{
		Previews: previews,
		Hint:     orchestrator.PromptHint(previews, s.cache.ActiveNames()),
	}, nil
}

// ExecuteTool invokes a hydrated capability. Calling a name that was never
// hydrated is a tool error naming the hydrated alternatives.
func (s *GatewayService) ExecuteTool(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ExecuteInput,
) (*mcp.CallToolResult, ExecuteOutput, error) {
	if input.Name == "" {
		return nil, ExecuteOutput{}, fmt.Errorf("name is required")
	}

	res, err := s.cache.Execute(ctx, input.Name, input.Arguments)
	if err != nil {
		s.logger.Warn("gateway execute failed", zap.String("tool", input.Name), zap.Error(err))
		res := textResult(err.Error())
		res.IsError = true
		return res, ExecuteOutput{Name: input.Name}, nil
	}
	out := ExecuteOutput{Name: input.Name, Result: res.String()}
	return textResult(out.Result), out, nil
}

// HydrateTool loads the origin of one registered capability by name.
func (s *GatewayService) HydrateTool(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input HydrateInput,
) (*mcp.CallToolResult, HydrateOutput, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, HydrateOutput{}, fmt.Errorf("name is required")
	}

	schema, err := s.cache.HydrateByName(ctx, name)
	if err != nil {
		s.logger.Warn("gateway hydrate failed", zap.String("tool", name), zap.Error(err))
		res := textResult(err.Error())
		res.IsError = true
		return res, HydrateOutput{Active: s.cache.ActiveNames()}, nil
	}

	out := HydrateOutput{Active: s.cache.ActiveNames()}
	if schema == nil {
		return textResult("No capability named " + name), out, nil
	}
	out.Found = true
	out.Tool = ToolSummary{Name: schema.Name, Description: schema.Description}
	return textResult(fmt.Sprintf("Loaded %s. Active tools: [%s]", schema.Name, strings.Join(out.Active, ", "))), out, nil
}

// ListActiveTools reports the hydrated capabilities and their origins.
func (s *GatewayService) ListActiveTools(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ ListActiveInput,
) (*mcp.CallToolResult, ListActiveOutput, error) {
	return nil, ListActiveOutput{
		Tools:   summaries(s.cache.ActiveSchemas()),
		Origins: s.cache.HydratedOrigins(),
	}, nil
}

// ClearTools releases every hydrated capability.
func (s *GatewayService) ClearTools(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ ClearInput,
) (*mcp.CallToolResult, ClearOutput, error) {
	released := s.cache.ActiveNames()
	s.cache.Clear()
	return nil, ClearOutput{Released: released}, nil
}

func limitOr(n int) int {
	if n <= 0 {
		return defaultLimit
	}
	return n
}

func summaries(schemas []capability.Schema) []ToolSummary {
	out := make([]ToolSummary, len(schemas))
	for i, s := range schemas {
		out[i] = ToolSummary{Name: s.Name, Description: s.Description}
	}
	return out
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}
