package orchestrator

import (
	"context"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/dusk-indust/jitcap/internal/capability"
	"gopkg.in/yaml.v3"
)

// Compile-time check.
var _ Model = (*ScriptedModel)(nil)

// Step is one scripted model turn. A step with Requires set is skipped when
// that tool is not visible on its turn.
type Step struct {
	Content  string    `yaml:"content,omitempty"`
	Call     *ToolCall `yaml:"call,omitempty"`
	Done     bool      `yaml:"done,omitempty"`
	Requires string    `yaml:"requires,omitempty"`
}

// Script is the on-disk form of a ScriptedModel.
type Script struct {
	Steps []Step `yaml:"steps"`
}

// LoadScript reads a YAML script from path.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: read script: %w", err)
	}
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("orchestrator: parse script %s: %w", path, err)
	}
	if len(s.Steps) == 0 {
		return nil, fmt.Errorf("orchestrator: script %s has no steps", path)
	}
	return &s, nil
}

// DemoScript discovers finance tools, calls finance_tool if it was loaded,
// and finishes.
func DemoScript() *Script {
	return &Script{Steps: []Step{
		{Call: &ToolCall{
			Name:      DiscoveryToolName,
			Arguments: map[string]any{"query": "stock prices financial data"},
		}},
		{
			Call: &ToolCall{
				Name:      "finance_tool",
				Arguments: map[string]any{"ticker": "NVDA", "metric": "revenue"},
			},
			Requires: "finance_tool",
		},
		{Content: "I found the revenue data for NVIDIA.", Done: true},
	}}
}

// ScriptedModel replays a fixed list of steps. Once the script is exhausted
// every turn answers Done.
type ScriptedModel struct {
	mu      sync.Mutex
	steps   []Step
	next    int
	prompts []string
}

// NewScriptedModel creates a ScriptedModel from s.
func NewScriptedModel(s *Script) *ScriptedModel {
	return &ScriptedModel{steps: slices.Clone(s.Steps)}
}

// Generate implements Model.
func (m *ScriptedModel) Generate(ctx context.Context, prompt string, tools []capability.Schema) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)

	visible := capability.Names(tools)
	for m.next < len(m.steps) {
		step := m.steps[m.next]
		m.next++
		if step.Requires != "" && !slices.Contains(visible, step.Requires) {
			continue
		}
		return Response{Content: step.Content, Call: step.Call, Done: step.Done}, nil
	}
	return Response{Done: true}, nil
}

// Prompts returns every prompt the model received, in order.
func (m *ScriptedModel) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.prompts)
}
