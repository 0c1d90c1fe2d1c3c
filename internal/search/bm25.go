package search

import (
	"context"
	"math"

	"github.com/dusk-indust/jitcap/internal/capability"
)

// Okapi BM25 parameters.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// Compile-time check.
var _ Strategy = (*BM25)(nil)

// BM25 ranks capabilities by Okapi BM25 keyword relevance. The reported
// distance is 1/(1+score) so that, as with Semantic, lower is better.
type BM25 struct {
	corpus Corpus
}

// NewBM25 creates a BM25 strategy over corpus.
func NewBM25(corpus Corpus) *BM25 {
	return &BM25{corpus: corpus}
}

// Search implements Strategy.
func (b *BM25) Search(ctx context.Context, query string, opts Options) ([]capability.Candidate, error) {
	docs, err := b.corpus.List(ctx)
	if err != nil {
		return nil, err
	}
	qTokens := tokenize(query)
	if len(docs) == 0 || len(qTokens) == 0 {
		return []capability.Candidate{}, nil
	}

	docTF := make([]map[string]int, len(docs))
	docLen := make([]int, len(docs))
	df := make(map[string]int)
	total := 0
	for i, d := range docs {
		tokens := tokenize(documentText(d))
		docTF[i] = termCounts(tokens)
		docLen[i] = len(tokens)
		total += len(tokens)
		for term := range docTF[i] {
			df[term]++
		}
	}

	n := float64(len(docs))
	avgLen := float64(total) / n
	if avgLen == 0 {
		avgLen = 1
	}

	terms := termCounts(qTokens)
	var hits []scored
	for i, d := range docs {
		var score float64
		for term := range terms {
			f := float64(docTF[i][term])
			if f == 0 {
				continue
			}
			idf := math.Log(1 + (n-float64(df[term])+0.5)/(float64(df[term])+0.5))
			score += idf * (f * (bm25K1 + 1)) / (f + bm25K1*(1-bm25B+bm25B*float64(docLen[i])/avgLen))
		}
		if score <= 0 {
			continue
		}
		hits = append(hits, scored{meta: d, distance: 1 / (1 + score)})
	}
	return rank(hits, opts.limit()), nil
}
