package search

import (
	"context"
	"strings"

	"github.com/dusk-indust/jitcap/internal/capability"
)

// Compile-time check.
var _ Strategy = (*Category)(nil)

// Category returns capabilities whose category matches Options.Category, or
// the query itself when no category option is given. Results are in name
// order and carry no distance.
type Category struct {
	corpus Corpus
}

// NewCategory creates a Category strategy over corpus.
func NewCategory(corpus Corpus) *Category {
	return &Category{corpus: corpus}
}

// Search implements Strategy.
func (c *Category) Search(ctx context.Context, query string, opts Options) ([]capability.Candidate, error) {
	category := strings.TrimSpace(opts.Category)
	if category == "" {
		category = strings.TrimSpace(query)
	}
	if category == "" {
		return []capability.Candidate{}, nil
	}

	items, err := c.corpus.ByCategory(ctx, category)
	if err != nil {
		return nil, err
	}
	if limit := opts.limit(); len(items) > limit {
		items = items[:limit]
	}
	out := make([]capability.Candidate, len(items))
	for i, m := range items {
		out[i] = toCandidate(m, nil)
	}
	return out, nil
}
