// Package search routes free-text capability queries to a ranking strategy.
//
// Modes form a closed set. Each mode has exactly one handler, registered at
// construction time; the Dispatcher itself performs no ranking.
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/dusk-indust/jitcap/internal/capability"
)

// DefaultLimit is the number of candidates returned when Options.Limit is unset.
const DefaultLimit = 5

// Mode identifies a ranking strategy.
type Mode int

const (
	// ModeSemantic ranks by TF-IDF cosine similarity. It is the default.
	ModeSemantic Mode = iota

	// ModeBM25 ranks by Okapi BM25 keyword relevance.
	ModeBM25

	// ModeCategory returns every capability whose category equals the query.
	ModeCategory
)

// DefaultMode is always registered and used as the fallback.
const DefaultMode = ModeSemantic

func (m Mode) String() string {
	switch m {
	case ModeSemantic:
		return "semantic"
	case ModeBM25:
		return "bm25"
	case ModeCategory:
		return "category"
	default:
		return "unknown"
	}
}

// Modes lists every mode in declaration order.
func Modes() []Mode {
	return []Mode{ModeSemantic, ModeBM25, ModeCategory}
}

// ParseMode maps a mode name to its Mode.
func ParseMode(name string) (Mode, error) {
	for _, m := range Modes() {
		if strings.EqualFold(name, m.String()) {
			return m, nil
		}
	}
	return DefaultMode, fmt.Errorf("%w: %s", capability.ErrUnsupportedMode, name)
}

// Options tunes a single search call.
type Options struct {
	// Limit caps the number of candidates. Zero or negative means DefaultLimit.
	Limit int

	// Category restricts ModeCategory to this category instead of the query.
	Category string
}

func (o Options) limit() int {
	if o.Limit <= 0 {
		return DefaultLimit
	}
	return o.Limit
}

// Strategy ranks capabilities for a query. Results are in relevance order and
// carry a stable ID. No match is an empty slice, not an error.
type Strategy interface {
	Search(ctx context.Context, query string, opts Options) ([]capability.Candidate, error)
}

// Corpus is the read-only view of the registry that strategies rank over.
type Corpus interface {
	List(ctx context.Context) ([]capability.Metadata, error)
	ByCategory(ctx context.Context, category string) ([]capability.Metadata, error)
}

func toCandidate(m capability.Metadata, distance *float64) capability.Candidate {
	return capability.Candidate{
		ID:       m.Name,
		Document: m.Description,
		Origin:   m.Origin,
		Category: m.Category,
		Distance: distance,
	}
}
