package mcptools

import "github.com/dusk-indust/jitcap/internal/capability"

// --- MCP Tool Types for the gateway server ---
// External agents use these tools to discover, hydrate and call capabilities
// through one MCP connection instead of wiring every tool server themselves.

// DiscoverInput is the input of the discover_tools and preview_tools tools.
type DiscoverInput struct {
	Query string `json:"query" jsonschema:"Description of the capability or tool you need"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of tools to discover (default: 5)"`
}

// ToolSummary is the name and description of one capability.
type ToolSummary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// DiscoverOutput is the result of discover_tools.
type DiscoverOutput struct {
	Tools    []ToolSummary `json:"tools"`
	Failures []string      `json:"failures,omitempty"`
	Summary  string        `json:"summary"`
}

// PreviewOutput is the result of preview_tools.
type PreviewOutput struct {
	Previews []capability.Preview `json:"previews"`
	Hint     string               `json:"hint,omitempty"`
}

// ExecuteInput is the input of execute_tool.
type ExecuteInput struct {
	Name      string         `json:"name" jsonschema:"name of a hydrated tool"`
	Arguments map[string]any `json:"arguments,omitempty" jsonschema:"arguments passed to the tool"`
}

// ExecuteOutput is the result of execute_tool.
type ExecuteOutput struct {
	Name   string `json:"name"`
	Result string `json:"result"`
}

// HydrateInput is the input of hydrate_tool.
type HydrateInput struct {
	Name string `json:"name" jsonschema:"name of a registered capability"`
}

// HydrateOutput is the result of hydrate_tool. Active lists every loaded
// tool afterwards, which includes the origin's other tools when siblings are
// loaded eagerly.
type HydrateOutput struct {
	Found  bool        `json:"found"`
	Tool   ToolSummary `json:"tool"`
	Active []string    `json:"active"`
}

// ListActiveInput is the input of list_active_tools.
type ListActiveInput struct{}

// ListActiveOutput is the result of list_active_tools.
type ListActiveOutput struct {
	Tools   []ToolSummary `json:"tools"`
	Origins []string      `json:"origins"`
}

// ClearInput is the input of clear_tools.
type ClearInput struct{}

// ClearOutput is the result of clear_tools.
type ClearOutput struct {
	Released []string `json:"released"`
}
