// Package search provides the immutable retrieval snapshot, keyword retrieval,
// and confidence scoring.
package search

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/hyperjump/tanya/internal/keyword"
	"github.com/hyperjump/tanya/internal/models"
)

// Snapshot is an immutable view of the loaded documents and their chunks with
// precomputed term statistics. It is replaced wholesale on reload, never mutated.
type Snapshot struct {
	Version   uint64
	LoadedAt  time.Time
	Documents []models.Document
	Chunks    []models.Chunk

	termFreqs []map[string]int
	docFreqs  map[string]int
}

// NewSnapshot builds a snapshot from docs and chunks. Chunk Index values are
// rewritten to each chunk's position in the snapshot.
func NewSnapshot(version uint64, docs []models.Document, chunks []models.Chunk, analyzer *keyword.Analyzer) *Snapshot {
	s := &Snapshot{
		Version:   version,
		LoadedAt:  time.Now(),
		Documents: append([]models.Document(nil), docs...),
		Chunks:    make([]models.Chunk, len(chunks)),
		termFreqs: make([]map[string]int, len(chunks)),
		docFreqs:  make(map[string]int),
	}
	for i, ch := range chunks {
		ch.Index = i
		s.Chunks[i] = ch
		freq := analyzer.Frequencies(ch.Text)
		s.termFreqs[i] = freq
		for term := range freq {
			s.docFreqs[term]++
		}
	}
	return s
}

// EmptySnapshot returns a snapshot with no documents.
func EmptySnapshot() *Snapshot {
	return &Snapshot{
		LoadedAt: time.Now(),
		docFreqs: make(map[string]int),
	}
}

// ChunkCount returns the number of chunks.
func (s *Snapshot) ChunkCount() int { return len(s.Chunks) }

// DocumentCount returns the number of documents.
func (s *Snapshot) DocumentCount() int { return len(s.Documents) }

// TermFrequency returns how often term occurs in chunk i.
func (s *Snapshot) TermFrequency(i int, term string) int {
	return s.termFreqs[i][term]
}

// DocumentFrequency returns the number of chunks containing term.
func (s *Snapshot) DocumentFrequency(term string) int {
	return s.docFreqs[term]
}

// IDF returns the rarity weight of term: ln(1 + (N - df + 0.5) / (df + 0.5)).
// It is always positive and decreases as the term appears in more chunks.
func (s *Snapshot) IDF(term string) float64 {
	n := float64(len(s.Chunks))
	df := float64(s.docFreqs[term])
	return math.Log(1 + (n-df+0.5)/(df+0.5))
}

// SnapshotStore publishes the current snapshot. Readers never block.
type SnapshotStore struct {
	current atomic.Pointer[Snapshot]
}

// NewSnapshotStore returns a store holding initial, or an empty snapshot when initial is nil.
func NewSnapshotStore(initial *Snapshot) *SnapshotStore {
	st := &SnapshotStore{}
	if initial == nil {
		initial = EmptySnapshot()
	}
	st.current.Store(initial)
	return st
}

// Current returns the published snapshot. Never nil.
func (st *SnapshotStore) Current() *Snapshot {
	return st.current.Load()
}

// Publish replaces the current snapshot.
func (st *SnapshotStore) Publish(s *Snapshot) {
	if s == nil {
		return
	}
	st.current.Store(s)
}
