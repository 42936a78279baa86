// Package indexer provides document chunking and snapshot building.
package indexer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hyperjump/tanya/internal/models"
)

// Default chunk sizes, in words.
const (
	DefaultChunkSize    = 120
	DefaultChunkOverlap = 20
)

// Chunker splits a document into overlapping, sentence-aligned chunks whose
// offsets point back into the document's raw text.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in words).
// Out-of-range values fall back to the defaults.
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 0
		if DefaultChunkOverlap < chunkSize {
			chunkOverlap = DefaultChunkOverlap
		}
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// span is a half-open byte range [start, end) of the raw text.
type span struct {
	start, end int
	words      int
}

// Chunk splits doc into chunks. Chunk i+1 starts at or before the end of chunk i,
// the first chunk starts at 0 and the last ends at len(doc.RawText).
// Blank documents yield no chunks. The result depends only on doc and the chunker sizes.
func (c *Chunker) Chunk(doc *models.Document) []models.Chunk {
	raw := doc.RawText
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	segs := c.splitOversized(raw, segment(raw))

	chunks := make([]models.Chunk, 0, len(segs)/2+1)
	start := 0
	for start < len(segs) {
		end := start
		words := 0
		for end < len(segs) && (end == start || words+segs[end].words <= c.chunkSize) {
			words += segs[end].words
			end++
		}
		chunks = append(chunks, c.newChunk(doc, len(chunks), segs[start].start, segs[end-1].end))
		if end == len(segs) {
			break
		}
		// Carry trailing segments into the next chunk while they fit the overlap
		// budget and still leave room for the next unseen segment.
		next := end
		carried := 0
		for next-1 > start {
			w := segs[next-1].words
			if carried+w > c.chunkOverlap || carried+w+segs[end].words > c.chunkSize {
				break
			}
			carried += w
			next--
		}
		start = next
	}
	return chunks
}

func (c *Chunker) newChunk(doc *models.Document, n, start, end int) models.Chunk {
	text := doc.RawText[start:end]
	return models.Chunk{
		ID:            fmt.Sprintf("%s#%d", doc.ID, n),
		DocumentID:    doc.ID,
		DocumentTitle: doc.Title,
		Text:          text,
		StartOffset:   start,
		EndOffset:     end,
		Index:         n,
		Type:          Classify(text),
	}
}

// segment cuts raw into sentence or line spans that tile [0, len(raw)).
// A cut happens at the end of a whitespace run that contains a newline or that
// follows a sentence terminator, unless the token before it is a list ordinal
// such as "1.". An ordinal is one when it opens a segment, follows a colon, or
// continues the numbering of the previous ordinal; "the fee is 1." ends a sentence.
// Every span except possibly a leading one contains a word.
func segment(raw string) []span {
	var spans []span
	segStart := 0
	words := 0
	lastOrdinal := 0
	prevTok := ""
	i := 0
	for i < len(raw) {
		r, size := utf8.DecodeRuneInString(raw[i:])
		if !unicode.IsSpace(r) {
			tokStart := i
			for i < len(raw) {
				r, size = utf8.DecodeRuneInString(raw[i:])
				if unicode.IsSpace(r) {
					break
				}
				i += size
			}
			words++
			if i >= len(raw) {
				break
			}
			wsStart := i
			newline := false
			for i < len(raw) {
				r, size = utf8.DecodeRuneInString(raw[i:])
				if !unicode.IsSpace(r) {
					break
				}
				if r == '\n' {
					newline = true
				}
				i += size
			}
			tok := raw[tokStart:wsStart]
			marker := false
			if n, ok := ordinalNumber(tok); ok && (words == 1 || strings.HasSuffix(prevTok, ":") || (lastOrdinal > 0 && n == lastOrdinal+1)) {
				lastOrdinal, marker = n, true
			} else if words == 1 {
				lastOrdinal = 0
			}
			prevTok = tok
			if newline || (!marker && endsSentence(tok)) {
				spans = append(spans, span{start: segStart, end: i, words: words})
				segStart = i
				words = 0
			}
			continue
		}
		i += size
	}
	if segStart < len(raw) {
		if words == 0 && len(spans) > 0 {
			spans[len(spans)-1].end = len(raw)
		} else {
			spans = append(spans, span{start: segStart, end: len(raw), words: words})
		}
	}
	return spans
}

var ordinalToken = regexp.MustCompile(`^\(?(\d{1,3})[.)]$`)

func ordinalNumber(tok string) (int, bool) {
	m := ordinalToken.FindStringSubmatch(tok)
	if m == nil {
		return 0, false
	}
	n, _ := strconv.Atoi(m[1])
	return n, true
}

// endsSentence reports whether tok closes a sentence.
func endsSentence(tok string) bool {
	trimmed := strings.TrimRight(tok, `"')]»”’`)
	if trimmed == "" {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(trimmed)
	return last == '.' || last == '!' || last == '?'
}

// splitOversized hard-splits spans longer than chunkSize words at word starts.
func (c *Chunker) splitOversized(raw string, spans []span) []span {
	out := make([]span, 0, len(spans))
	for _, s := range spans {
		if s.words <= c.chunkSize {
			out = append(out, s)
			continue
		}
		pieceStart := s.start
		words := 0
		inWord := false
		for i, r := range raw[s.start:s.end] {
			pos := s.start + i
			if unicode.IsSpace(r) {
				inWord = false
				continue
			}
			if inWord {
				continue
			}
			inWord = true
			if words == c.chunkSize {
				out = append(out, span{start: pieceStart, end: pos, words: words})
				pieceStart = pos
				words = 0
			}
			words++
		}
		out = append(out, span{start: pieceStart, end: s.end, words: words})
	}
	return out
}
