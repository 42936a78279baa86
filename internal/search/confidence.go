package search

import (
	"math"

	"github.com/hyperjump/tanya/internal/models"
)

// Default label cut points on the 0..100 confidence scale.
const (
	DefaultHighThreshold   = 70
	DefaultMediumThreshold = 40
)

// Weights in confidence points; they sum to 100.
const (
	coveragePoints   = 70
	separationPoints = 30
)

// ConfidenceScorer maps retrieval results to a 0..100 confidence and a label.
type ConfidenceScorer struct {
	high   int
	medium int
}

// NewConfidenceScorer creates a scorer with the given label thresholds.
// Invalid thresholds (not 0 < medium < high <= 100) fall back to the defaults.
func NewConfidenceScorer(high, medium int) *ConfidenceScorer {
	if medium <= 0 || medium >= high || high > 100 {
		high, medium = DefaultHighThreshold, DefaultMediumThreshold
	}
	return &ConfidenceScorer{high: high, medium: medium}
}

// MediumThreshold returns the lowest confidence labeled medium.
func (s *ConfidenceScorer) MediumThreshold() int { return s.medium }

// Score computes round(70*coverage + 30*separation) where coverage is the fraction of
// query terms found in the top chunk and separation is how far the top score stands
// above the runner-up (1 when there is none). Chunks of the top chunk's document whose
// offsets overlap it repeat its text through the overlap window and are not runners-up.
// No results give (0, low).
func (s *ConfidenceScorer) Score(results []models.RetrievalResult, q models.Query) (int, models.ConfidenceLabel) {
	if len(results) == 0 {
		return 0, models.ConfidenceLow
	}
	top := results[0]
	coverage := top.Coverage
	if len(q.Terms) > 0 {
		coverage = float64(top.MatchedTerms) / float64(len(q.Terms))
	}
	separation := 1.0
	if second := runnerUp(results); second != nil && top.Score > 0 {
		separation = (top.Score - second.Score) / top.Score
	}
	conf := int(math.Round(coveragePoints*clamp01(coverage) + separationPoints*clamp01(separation)))
	return conf, s.Label(conf)
}

// runnerUp returns the best result that is not an overlap copy of the top chunk.
func runnerUp(results []models.RetrievalResult) *models.RetrievalResult {
	top := results[0].Chunk
	for i := 1; i < len(results); i++ {
		c := results[i].Chunk
		if top != nil && c != nil && c.DocumentID == top.DocumentID &&
			c.StartOffset < top.EndOffset && top.StartOffset < c.EndOffset {
			continue
		}
		return &results[i]
	}
	return nil
}

// Label returns the label for a confidence value.
func (s *ConfidenceScorer) Label(conf int) models.ConfidenceLabel {
	switch {
	case conf >= s.high:
		return models.ConfidenceHigh
	case conf >= s.medium:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
