// Package capability defines the data model shared by the resolver, search,
// registry, transport and hydration packages.
package capability

import (
	"encoding/json"
	"errors"
	"strings"
)

// --- Models ---

// Metadata describes a registered capability. Name is the unique key; a
// second registration with the same name replaces the first.
type Metadata struct {
	Name         string         `json:"name" yaml:"name"`
	Description  string         `json:"description" yaml:"description"`
	Origin       string         `json:"origin" yaml:"origin"`
	Category     string         `json:"category" yaml:"category"`
	SchemaParams map[string]any `json:"schemaParams,omitempty" yaml:"schemaParams,omitempty"`
}

// Validate checks the fields required for registration.
func (m Metadata) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return errors.New("capability: name is required")
	}
	return nil
}

// Descriptor is the security-checked execution target derived from an origin.
// It is recomputed on every resolution and never persisted.
type Descriptor struct {
	Command string   `json:"command"`
	Args    []string `json:"args"`
}

// Key returns a stable string form of the descriptor. Two descriptors with the
// same key launch the same process.
func (d Descriptor) Key() string {
	var sb strings.Builder
	sb.WriteString(d.Command)
	for _, a := range d.Args {
		sb.WriteByte(0)
		sb.WriteString(a)
	}
	return sb.String()
}

// String renders the descriptor as a shell-like command line for display.
func (d Descriptor) String() string {
	if len(d.Args) == 0 {
		return d.Command
	}
	return d.Command + " " + strings.Join(d.Args, " ")
}

// Schema is the full tool definition fetched from an origin.
type Schema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

// Hydrated is an entry of the hydration cache's active table.
type Hydrated struct {
	Schema     Schema
	Descriptor Descriptor
	Origin     string
}

// Candidate is a ranked search hit. Distance is nil when the strategy does not
// produce a relevance measure.
type Candidate struct {
	ID       string   `json:"id"`
	Document string   `json:"document"`
	Origin   string   `json:"origin"`
	Category string   `json:"category"`
	Distance *float64 `json:"distance,omitempty"`
}

// Preview is the lightweight projection of a candidate returned by discovery.
type Preview struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Origin      string `json:"origin"`
}

// PreviewOf projects a candidate into a preview.
func PreviewOf(c Candidate) Preview {
	return Preview{
		Name:        c.ID,
		Description: c.Document,
		Category:    c.Category,
		Origin:      c.Origin,
	}
}

// Result is the outcome of invoking a hydrated capability.
type Result struct {
	Text       string          `json:"text"`
	Structured json.RawMessage `json:"structured,omitempty"`
}

// String returns the text form of the result, falling back to the structured
// payload when no text content was produced.
func (r *Result) String() string {
	if r == nil {
		return ""
	}
	if r.Text != "" || len(r.Structured) == 0 {
		return r.Text
	}
	return string(r.Structured)
}

// Names returns the names of the given schemas in order.
func Names(schemas []Schema) []string {
	out := make([]string, len(schemas))
	for i, s := range schemas {
		out[i] = s.Name
	}
	return out
}
