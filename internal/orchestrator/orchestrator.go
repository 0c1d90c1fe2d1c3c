// Package orchestrator drives the agent-facing turn loop: the model sees the
// discovery tool plus whatever has been hydrated, asks for more tools when it
// needs them, and calls hydrated tools until it is done.
package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/dusk-indust/jitcap/internal/capability"
	"github.com/dusk-indust/jitcap/internal/hydration"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxTurnsReached is the final answer of a run that used every turn.
const MaxTurnsReached = "Max turns reached"

// State identifies where a turn is in the loop.
type State int

const (
	StateAwaitModel State = iota
	StateDiscovering
	StateHydrating
	StateExecuting
	StateDone
)

func (s State) String() string {
	names := [...]string{
		"await-model",
		"discovering",
		"hydrating",
		"executing",
		"done",
	}
	if s >= 0 && int(s) < len(names) {
		return names[s]
	}
	return "unknown"
}

// ToolCall is a model's request to invoke a tool.
type ToolCall struct {
	Name      string         `yaml:"name" json:"name"`
	Arguments map[string]any `yaml:"arguments" json:"arguments"`
}

// Response is one model turn. Done ends the run with Content as the answer.
type Response struct {
	Content string
	Call    *ToolCall
	Done    bool
}

// Model generates the next response given the prompt and the tools the
// agent can currently see.
type Model interface {
	Generate(ctx context.Context, prompt string, tools []capability.Schema) (Response, error)
}

// Capabilities is the hydration state an Orchestrator drives.
// *hydration.Cache satisfies it.
type Capabilities interface {
	DiscoverAndHydrateReport(ctx context.Context, query string, limit int) ([]capability.Schema, *hydration.Report, error)
	Execute(ctx context.Context, name string, args map[string]any) (*capability.Result, error)
	IsHydrated(name string) bool
	ActiveSchemas() []capability.Schema
}

// Config bounds a run.
type Config struct {
	// MaxTurns is the number of model turns before giving up. Default 10.
	MaxTurns int
	// HistoryWindow is how many past messages are replayed in the prompt.
	// Default 5.
	HistoryWindow int
	// DiscoveryLimit is the limit used when a discovery call omits one.
	// Default 5.
	DiscoveryLimit int
}

func (c Config) withDefaults() Config {
	if c.MaxTurns <= 0 {
		c.MaxTurns = 10
	}
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = 5
	}
	if c.DiscoveryLimit <= 0 {
		c.DiscoveryLimit = 5
	}
	return c
}

// Orchestrator runs the turn loop for one agent session.
type Orchestrator struct {
	model    Model
	caps     Capabilities
	cfg      Config
	session  string
	logger   *zap.Logger
	reporter *EventReporter
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger; the session id is attached to every entry.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithReporter sends turn events to r.
func WithReporter(r *EventReporter) Option {
	return func(o *Orchestrator) { o.reporter = r }
}

// WithSession overrides the generated session id.
func WithSession(id string) Option {
	return func(o *Orchestrator) { o.session = id }
}

// New creates an Orchestrator that owns caps for the lifetime of the session.
func New(model Model, caps Capabilities, cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		model:   model,
		caps:    caps,
		cfg:     cfg.withDefaults(),
		session: uuid.NewString(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With(zap.String("session", o.session))
	return o
}

// Session returns the session id.
func (o *Orchestrator) Session() string { return o.session }

// Tools returns the capability set visible to the model: the discovery tool
// followed by the hydrated schemas.
func (o *Orchestrator) Tools() []capability.Schema {
	active := o.caps.ActiveSchemas()
	tools := make([]capability.Schema, 0, len(active)+1)
	tools = append(tools, DiscoveryTool())
	return append(tools, active...)
}

// Run drives the loop for input until the model is done or the turn budget
// is spent. Tool failures are fed back to the model as text; only a model
// error or cancellation ends the run with an error.
func (o *Orchestrator) Run(ctx context.Context, input string) (string, error) {
	history := []string{"User: " + input}
	prompt := input

	for turn := 1; turn <= o.cfg.MaxTurns; turn++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		tools := o.Tools()
		o.logger.Info("turn started", zap.Int("turn", turn), zap.Int("tools", len(tools)))
		o.emit(turn, StateAwaitModel, "", fmt.Sprintf("%d tools available", len(tools)))

		resp, err := o.model.Generate(ctx, prompt, tools)
		if err != nil {
			return "", fmt.Errorf("orchestrator: turn %d: %w", turn, err)
		}

		if resp.Done {
			answer := resp.Content
			if answer == "" {
				answer = "Done"
			}
			o.emit(turn, StateDone, "", answer)
			return answer, nil
		}

		if resp.Call == nil {
			if resp.Content != "" {
				o.emit(turn, StateDone, "", resp.Content)
				return resp.Content, nil
			}
			continue
		}

		name := resp.Call.Name
		o.logger.Info("model called tool", zap.Int("turn", turn), zap.String("tool", name))

		var result string
		switch {
		case name == DiscoveryToolName:
			result = o.discover(ctx, turn, resp.Call.Arguments)
		case o.caps.IsHydrated(name):
			result = o.execute(ctx, turn, name, resp.Call.Arguments)
		default:
			result = fmt.Sprintf("Unknown tool: %s. Use %s to find available tools.", name, DiscoveryToolName)
		}

		history = append(history, fmt.Sprintf("Tool (%s): %s", name, result))
		prompt = o.prompt(input, history)
	}

	o.logger.Warn("turn budget exhausted", zap.Int("maxTurns", o.cfg.MaxTurns))
	o.emit(o.cfg.MaxTurns, StateDone, "", MaxTurnsReached)
	return MaxTurnsReached, nil
}

func (o *Orchestrator) discover(ctx context.Context, turn int, args map[string]any) string {
	query, limit := discoveryArgs(args, o.cfg.DiscoveryLimit)
	o.emit(turn, StateDiscovering, DiscoveryToolName, query)

	schemas, report, err := o.caps.DiscoverAndHydrateReport(ctx, query, limit)
	if err != nil {
		o.logger.Error("discovery failed", zap.String("query", query), zap.Error(err))
		return fmt.Sprintf("Error executing %s: %v", DiscoveryToolName, err)
	}

	names := capability.Names(schemas)
	msg := fmt.Sprintf("loaded %d", len(names))
	if report != nil && !report.OK() {
		msg += fmt.Sprintf(", %d failed", len(report.Failures))
	}
	o.emit(turn, StateHydrating, DiscoveryToolName, msg)

	if len(schemas) == 0 {
		return "No tools found for: " + query
	}
	result := fmt.Sprintf("Discovered and loaded %d tools: [%s]", len(names), strings.Join(names, ", "))
	o.logger.Info(result, zap.String("query", query))
	return result
}

func (o *Orchestrator) execute(ctx context.Context, turn int, name string, args map[string]any) string {
	o.emit(turn, StateExecuting, name, "")

	res, err := o.caps.Execute(ctx, name, args)
	if err != nil {
		o.logger.Warn("tool failed", zap.String("tool", name), zap.Error(err))
		return fmt.Sprintf("Error executing %s: %v", name, err)
	}
	return res.String()
}

// prompt rebuilds the model prompt from the input and the most recent
// history entries.
func (o *Orchestrator) prompt(input string, history []string) string {
	recent := history
	if len(recent) > o.cfg.HistoryWindow {
		recent = recent[len(recent)-o.cfg.HistoryWindow:]
	}
	return input + "\n\nPrevious actions:\n" + strings.Join(recent, "\n")
}

func (o *Orchestrator) emit(turn int, state State, tool, msg string) {
	if o.reporter == nil {
		return
	}
	o.reporter.Emit(TurnEvent{
		Session: o.session,
		Turn:    turn,
		State:   state,
		Tool:    tool,
		Message: msg,
	})
}
