package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dusk-indust/jitcap/internal/capability"
	"github.com/google/jsonschema-go/jsonschema"
)

// DiscoveryToolName is the name of the always-available discovery tool.
const DiscoveryToolName = "discover_tools"

const discoveryDescription = "Search for and load tools based on a capability description. " +
	"Use this when you need a tool that isn't currently available. " +
	"Describe what capability you need (e.g., 'read CSV files', 'access stock prices', 'send emails') " +
	"and relevant tools will be loaded and made available for use."

// DefaultCategories are advertised to the model before anything is found.
var DefaultCategories = []string{"Financial", "Admin", "Search", "Code", "Social"}

// DiscoveryInputSchema is the input schema of the discovery tool: a required
// string query and an optional integer limit defaulting to 5.
func DiscoveryInputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"query": {
				Type:        "string",
				Description: "Description of the capability or tool you need",
			},
			"limit": {
				Type:        "integer",
				Description: "Maximum number of tools to discover (default: 5)",
				Default:     json.RawMessage("5"),
			},
		},
		Required: []string{"query"},
	}
}

// DiscoveryTool returns the static schema of the discovery tool.
func DiscoveryTool() capability.Schema {
	raw, err := json.Marshal(DiscoveryInputSchema())
	if err != nil {
		panic(fmt.Sprintf("orchestrator: marshal discovery schema: %v", err))
	}
	return capability.Schema{
		Name:        DiscoveryToolName,
		Description: discoveryDescription,
		InputSchema: raw,
	}
}

// discoveryArgs extracts the query and limit of a discovery call. Models
// send numbers in whatever form their JSON decoder produced; "n_results" is
// accepted as an alias of "limit".
func discoveryArgs(args map[string]any, def int) (string, int) {
	query, _ := args["query"].(string)

	v, ok := args["limit"]
	if !ok {
		v = args["n_results"]
	}
	limit := def
	switch n := v.(type) {
	case int:
		limit = n
	case int64:
		limit = int(n)
	case float64:
		limit = int(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			limit = int(i)
		}
	}
	if limit <= 0 {
		limit = def
	}
	return strings.TrimSpace(query), limit
}

// PromptHint is the system prompt extension describing what the agent can
// ask for: the known categories before any search, the candidate list once
// previews exist but nothing is loaded, and nothing after hydration.
func PromptHint(previews []capability.Preview, active []string) string {
	switch {
	case len(active) > 0:
		return ""
	case len(previews) == 0:
		return fmt.Sprintf("Available tool categories: %s. Request tools if needed.", strings.Join(DefaultCategories, ", "))
	default:
		names := make([]string, len(previews))
		for i, p := range previews {
			names[i] = p.Name
		}
		return fmt.Sprintf("I found these potential tools: %s. Shall I load them?", strings.Join(names, ", "))
	}
}
