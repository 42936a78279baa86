// Package models defines core data structures for documents, chunks, queries, and answers.
package models

import "time"

// Document is a loaded procedure document. It is never modified after loading.
type Document struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	RawText    string    `json:"-"`
	Path       string    `json:"path,omitempty"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified"`
}

// ChunkType classifies the content of a chunk.
type ChunkType string

const (
	ChunkProcedure   ChunkType = "procedure"
	ChunkRequirement ChunkType = "requirement"
	ChunkContact     ChunkType = "contact"
	ChunkGeneral     ChunkType = "general"
)

// Chunk is an offset-tracked slice of a document's raw text.
// Text always equals RawText[StartOffset:EndOffset] of the owning document.
type Chunk struct {
	ID            string    `json:"id"`
	DocumentID    string    `json:"document_id"`
	DocumentTitle string    `json:"document_title"`
	Text          string    `json:"text"`
	StartOffset   int       `json:"start_offset"`
	EndOffset     int       `json:"end_offset"`
	Index         int       `json:"index"`
	Type          ChunkType `json:"type"`
}
