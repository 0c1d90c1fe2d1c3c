package search

import (
	"sort"
	"strings"
	"unicode"

	"github.com/dusk-indust/jitcap/internal/capability"
)

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "any": true, "are": true, "for": true,
	"from": true, "i": true, "in": true, "is": true, "it": true, "me": true,
	"need": true, "of": true, "on": true, "or": true, "the": true, "to": true,
	"with": true,
}

// tokenize lowercases s, splits on anything that is not a letter or digit,
// drops stopwords and folds a trailing plural "s".
func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if stopwords[f] {
			continue
		}
		out = append(out, fold(f))
	}
	return out
}

func fold(tok string) string {
	if len(tok) > 3 && strings.HasSuffix(tok, "s") && !strings.HasSuffix(tok, "ss") {
		return tok[:len(tok)-1]
	}
	return tok
}

// documentText is the text a capability is ranked on.
func documentText(m capability.Metadata) string {
	return m.Name + " " + m.Description + " " + m.Category
}

// termCounts returns token frequencies.
func termCounts(tokens []string) map[string]int {
	tf := make(map[string]int, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}
	return tf
}

// scored pairs a capability with its relevance distance (lower is better).
type scored struct {
	meta     capability.Metadata
	distance float64
}

// rank orders hits by ascending distance, ties broken by name, and converts
// the first limit of them into candidates.
func rank(hits []scored, limit int) []capability.Candidate {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].distance != hits[j].distance {
			return hits[i].distance < hits[j].distance
		}
		return hits[i].meta.Name < hits[j].meta.Name
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]capability.Candidate, len(hits))
	for i, h := range hits {
		d := h.distance
		out[i] = toCandidate(h.meta, &d)
	}
	return out
}
