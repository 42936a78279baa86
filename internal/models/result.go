package models

// RetrievalResult is a chunk matched by a query. Score is always > 0.
type RetrievalResult struct {
	Chunk        *Chunk  `json:"chunk"`
	Score        float64 `json:"score"`
	MatchedTerms int     `json:"matched_terms"`
	// Coverage is the fraction of distinct query terms present in the chunk.
	Coverage float64 `json:"coverage"`
}

// ConfidenceLabel is the categorical form of a confidence value.
type ConfidenceLabel string

const (
	ConfidenceHigh   ConfidenceLabel = "high"
	ConfidenceMedium ConfidenceLabel = "medium"
	ConfidenceLow    ConfidenceLabel = "low"
)

// Source attributes part of an answer to a document chunk.
type Source struct {
	Text     string    `json:"text"`
	Document string    `json:"document"`
	Type     ChunkType `json:"type"`
}

// Answer is the structured result of a question.
type Answer struct {
	Text            string          `json:"answer"`
	Confidence      int             `json:"confidence"`
	ConfidenceLabel ConfidenceLabel `json:"confidence_label"`
	Sources         []Source        `json:"sources"`
}

// AskResponse is the wire shape of an answered question.
type AskResponse struct {
	Question string `json:"question"`
	Answer
}
