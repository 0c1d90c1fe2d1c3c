package search

import (
	"context"
	"math"

	"github.com/dusk-indust/jitcap/internal/capability"
)

// Compile-time check.
var _ Strategy = (*Semantic)(nil)

// Semantic ranks capabilities by TF-IDF cosine similarity between the query
// and each capability's name, description and category. Distance is
// 1 - cosine; capabilities sharing no term with the query are not returned.
type Semantic struct {
	corpus Corpus
}

// NewSemantic creates a Semantic strategy over corpus.
func NewSemantic(corpus Corpus) *Semantic {
	return &Semantic{corpus: corpus}
}

// Search implements Strategy.
func (s *Semantic) Search(ctx context.Context, query string, opts Options) ([]capability.Candidate, error) {
	docs, err := s.corpus.List(ctx)
	if err != nil {
		return nil, err
	}
	qTokens := tokenize(query)
	if len(docs) == 0 || len(qTokens) == 0 {
		return []capability.Candidate{}, nil
	}

	docTF := make([]map[string]int, len(docs))
	df := make(map[string]int)
	for i, d := range docs {
		docTF[i] = termCounts(tokenize(documentText(d)))
		for term := range docTF[i] {
			df[term]++
		}
	}

	n := float64(len(docs))
	idf := func(term string) float64 {
		return math.Log((n+1)/(float64(df[term])+1)) + 1
	}

	qVec := weigh(termCounts(qTokens), idf)
	qNorm := norm(qVec)

	var hits []scored
	for i, d := range docs {
		dVec := weigh(docTF[i], idf)
		var dot float64
		for term, w := range qVec {
			dot += w * dVec[term]
		}
		if dot == 0 {
			continue
		}
		cos := dot / (qNorm * norm(dVec))
		hits = append(hits, scored{meta: d, distance: 1 - cos})
	}
	return rank(hits, opts.limit()), nil
}

func weigh(tf map[string]int, idf func(string) float64) map[string]float64 {
	v := make(map[string]float64, len(tf))
	for term, c := range tf {
		v[term] = float64(c) * idf(term)
	}
	return v
}

func norm(v map[string]float64) float64 {
	var sum float64
	for _, w := range v {
		sum += w * w
	}
	return math.Sqrt(sum)
}
