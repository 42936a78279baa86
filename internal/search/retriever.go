package search

import (
	"math"
	"sort"

	"github.com/hyperjump/tanya/internal/keyword"
	"github.com/hyperjump/tanya/internal/models"
)

// Retrieval limits.
const (
	DefaultTopK = 5
	MaxTopK     = 20
)

// Retriever ranks snapshot chunks by weighted keyword overlap with a query.
type Retriever struct {
	analyzer *keyword.Analyzer
	topK     int
	maxTopK  int
}

// RetrieverOption configures a Retriever.
type RetrieverOption func(*Retriever)

// WithTopK sets the default and maximum number of results. Non-positive values are ignored.
func WithTopK(topK, maxTopK int) RetrieverOption {
	return func(r *Retriever) {
		if maxTopK > 0 {
			r.maxTopK = maxTopK
		}
		if topK > 0 {
			r.topK = topK
		}
		if r.topK > r.maxTopK {
			r.topK = r.maxTopK
		}
	}
}

// NewRetriever creates a retriever that normalizes queries with analyzer.
func NewRetriever(analyzer *keyword.Analyzer, opts ...RetrieverOption) *Retriever {
	r := &Retriever{
		analyzer: analyzer,
		topK:     DefaultTopK,
		maxTopK:  MaxTopK,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Prepare analyzes question text into a Query.
func (r *Retriever) Prepare(text string) models.Query {
	return models.Query{Text: text, Terms: r.analyzer.Terms(text)}
}

// TopK returns the default result count.
func (r *Retriever) TopK() int { return r.topK }

// Retrieve returns at most k chunks of snap that share a term with q, best first.
// Score is the sum over matched query terms of idf * (1 + ln tf); equal scores keep
// snapshot order. k <= 0 uses the default; k is capped at the maximum.
// An empty result means nothing relevant was found.
func (r *Retriever) Retrieve(q models.Query, snap *Snapshot, k int) []models.RetrievalResult {
	if len(q.Terms) == 0 || snap == nil || snap.ChunkCount() == 0 {
		return nil
	}
	if k <= 0 {
		k = r.topK
	}
	if k > r.maxTopK {
		k = r.maxTopK
	}

	idf := make([]float64, len(q.Terms))
	for j, term := range q.Terms {
		idf[j] = snap.IDF(term)
	}

	var results []models.RetrievalResult
	for i := range snap.Chunks {
		score := 0.0
		matched := 0
		for j, term := range q.Terms {
			tf := snap.TermFrequency(i, term)
			if tf == 0 {
				continue
			}
			matched++
			score += idf[j] * (1 + math.Log(float64(tf)))
		}
		if score <= 0 {
			continue
		}
		results = append(results, models.RetrievalResult{
			Chunk:        &snap.Chunks[i],
			Score:        score,
			MatchedTerms: matched,
			Coverage:     float64(matched) / float64(len(q.Terms)),
		})
	}

	sort.SliceStable(results, func(a, b int) bool { return results[a].Score > results[b].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results
}
