// Package keyword normalizes document and query text into retrieval terms.
package keyword

import (
	"fmt"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/lang/fr"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/token/porter"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/registry"
)

// AnalyzerName is the name of the analyzer inside its private registry cache.
const AnalyzerName = "tanya_procedures"

// Analyzer turns text into normalized terms: unicode word tokens, lowercased,
// French elisions removed, English and French stop words dropped, Porter stemmed.
// The same Analyzer must be used for chunks and queries. Safe for concurrent use.
type Analyzer struct {
	analyze func([]byte) analysis.TokenStream
}

// NewAnalyzer builds the analysis chain in a private bleve registry cache.
func NewAnalyzer() (*Analyzer, error) {
	cache := registry.NewCache()
	a, err := cache.DefineAnalyzer(AnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": unicode.Name,
		"token_filters": []interface{}{
			lowercase.Name,
			fr.ElisionName,
			en.StopName,
			fr.StopName,
			porter.Name,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to define analyzer: %w", err)
	}
	return &Analyzer{analyze: a.Analyze}, nil
}

// Tokens returns every normalized term of text in order, duplicates included.
func (a *Analyzer) Tokens(text string) []string {
	if text == "" {
		return nil
	}
	stream := a.analyze([]byte(text))
	out := make([]string, 0, len(stream))
	for _, tok := range stream {
		if len(tok.Term) == 0 {
			continue
		}
		out = append(out, string(tok.Term))
	}
	return out
}

// Terms returns the distinct normalized terms of text in first-seen order.
func (a *Analyzer) Terms(text string) []string {
	tokens := a.Tokens(text)
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Frequencies returns term -> occurrence count for text.
func (a *Analyzer) Frequencies(text string) map[string]int {
	tokens := a.Tokens(text)
	freq := make(map[string]int, len(tokens))
	for _, t := range tokens {
		freq[t]++
	}
	return freq
}
