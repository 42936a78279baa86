// Package pipeline answers questions against the current document snapshot.
package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hyperjump/tanya/internal/answer"
	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/internal/search"
	"go.uber.org/zap"
)

var (
	// ErrEmptyQuery is returned for blank questions. Nothing is retrieved.
	ErrEmptyQuery = errors.New("empty query")
	// ErrInternalCompute is returned when answering fails unexpectedly.
	// It affects only the failing request.
	ErrInternalCompute = errors.New("internal compute error")
)

// Pipeline runs retrieval, confidence scoring, and answer generation.
// Safe for concurrent use; it never writes to the snapshot store.
type Pipeline struct {
	store     *search.SnapshotStore
	retriever *search.Retriever
	scorer    *search.ConfidenceScorer
	generator *answer.Generator
	logger    *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a logger for per-question debug output.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// New creates a pipeline reading snapshots from store.
func New(store *search.SnapshotStore, retriever *search.Retriever, scorer *search.ConfidenceScorer, generator *answer.Generator, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:     store,
		retriever: retriever,
		scorer:    scorer,
		generator: generator,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ask answers question from the snapshot current at call time.
func (p *Pipeline) Ask(question string) (*models.Answer, error) {
	return p.AskTopK(question, 0)
}

// AskTopK is Ask with an explicit result count; k <= 0 uses the retriever default.
func (p *Pipeline) AskTopK(question string, k int) (ans *models.Answer, err error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuery
	}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("answering panicked", zap.Any("panic", r), zap.String("question", question))
			ans, err = nil, fmt.Errorf("%w: %v", ErrInternalCompute, r)
		}
	}()

	snap := p.store.Current()
	q := p.retriever.Prepare(question)
	results := p.retriever.Retrieve(q, snap, k)
	if err := checkResults(results, k, p.retriever.TopK()); err != nil {
		p.logger.Error("retrieval invariant violated", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrInternalCompute, err)
	}
	confidence, label := p.scorer.Score(results, q)
	a := p.generator.Generate(q, results, confidence, label)

	p.logger.Debug("question answered",
		zap.Uint64("snapshot", snap.Version),
		zap.Int("terms", len(q.Terms)),
		zap.Int("results", len(results)),
		zap.Int("confidence", a.Confidence),
		zap.String("label", string(a.ConfidenceLabel)),
	)
	return &a, nil
}

// checkResults verifies positive, non-increasing scores within the requested bound.
func checkResults(results []models.RetrievalResult, k, defaultK int) error {
	limit := k
	if limit <= 0 {
		limit = defaultK
	}
	if limit > 0 && len(results) > limit {
		return fmt.Errorf("got %d results for k=%d", len(results), limit)
	}
	for i, r := range results {
		if r.Chunk == nil || !(r.Score > 0) {
			return fmt.Errorf("result %d has score %v", i, r.Score)
		}
		if i > 0 && r.Score > results[i-1].Score {
			return fmt.Errorf("result %d scores above result %d", i, i-1)
		}
	}
	return nil
}
