// Package answer assembles extractive answers from retrieved chunks.
package answer

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/hyperjump/tanya/internal/models"
)

// Fixed answer texts.
const (
	NoInformationText  = "I couldn't find relevant information to answer your question."
	LowReliabilityNote = "Note: this answer has low reliability. Please verify it against the source documents."
)

// Defaults for answer assembly.
const (
	DefaultSupportRatio    = 0.75
	DefaultMediumThreshold = 40
)

// Generator builds answers only from text present in the retrieved chunks.
type Generator struct {
	supportRatio    float64
	mediumThreshold int
}

// Option configures a Generator.
type Option func(*Generator)

// WithSupportRatio sets the fraction of the top score a chunk needs to contribute items.
func WithSupportRatio(r float64) Option {
	return func(g *Generator) {
		if r > 0 && r <= 1 {
			g.supportRatio = r
		}
	}
}

// WithMediumThreshold sets the confidence below which the low-reliability note is added.
func WithMediumThreshold(t int) Option {
	return func(g *Generator) {
		if t > 0 {
			g.mediumThreshold = t
		}
	}
}

// NewGenerator creates a Generator.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		supportRatio:    DefaultSupportRatio,
		mediumThreshold: DefaultMediumThreshold,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate builds the answer for results, which must be ordered best first.
// No results give the no-information answer with confidence 0, label low and no sources.
func (g *Generator) Generate(q models.Query, results []models.RetrievalResult, confidence int, label models.ConfidenceLabel) models.Answer {
	if len(results) == 0 {
		return models.Answer{
			Text:            NoInformationText,
			Confidence:      0,
			ConfidenceLabel: models.ConfidenceLow,
			Sources:         []models.Source{},
		}
	}

	top := results[0]
	format := DetectFormat(top.Chunk.Text)
	var items []listItem
	if format == FormatProse {
		items = extractItems(top.Chunk.Text, FormatProse)
	} else {
		items = g.listItems(results, format)
	}

	text := render(items, format)
	if confidence < g.mediumThreshold {
		text += "\n\n" + LowReliabilityNote
	}
	return models.Answer{
		Text:            text,
		Confidence:      confidence,
		ConfidenceLabel: label,
		Sources:         Sources(results),
	}
}

// listItems starts from the top chunk's items and adds items from supporting chunks:
// chunks of the same document that score close to the top one and share its format.
// These are the neighbours cut by the overlap window, so they are merged in document
// order. Chunks from other documents never contribute items.
func (g *Generator) listItems(results []models.RetrievalResult, format Format) []listItem {
	top := results[0].Chunk
	cutoff := results[0].Score * g.supportRatio
	var before, after []*models.Chunk
	for _, r := range results[1:] {
		c := r.Chunk
		if r.Score < cutoff || c.DocumentID != top.DocumentID || DetectFormat(c.Text) != format {
			continue
		}
		if c.StartOffset < top.StartOffset {
			before = append(before, c)
		} else {
			after = append(after, c)
		}
	}
	// Nearest neighbours first in both directions.
	sort.SliceStable(before, func(i, j int) bool { return before[i].StartOffset > before[j].StartOffset })
	sort.SliceStable(after, func(i, j int) bool { return after[i].StartOffset < after[j].StartOffset })

	items := extractItems(top.Text, format)
	if format == FormatOrdered {
		return extendRun(items, before, after)
	}
	return mergeBullets(items, before, after)
}

// extendRun grows a numbered run with the items of neighbouring chunks that
// continue it. A neighbour must repeat an item of the run or pick up at the next
// number; anything else is a different list.
func extendRun(items []listItem, before, after []*models.Chunk) []listItem {
	for _, c := range after {
		next := ordinalItems(c.Text)
		last := items[len(items)-1]
		if len(next) == 0 || !(next[0].n == last.n+1 || containsItem(items, next[0])) {
			continue
		}
		for _, it := range next {
			last = items[len(items)-1]
			switch {
			case it.n > last.n:
				items = append(items, it)
			case it.n == last.n && len(it.text) > len(last.text) && sameItem(it, last):
				// The run's last item was cut at the chunk end.
				items[len(items)-1] = it
			}
		}
	}
	for _, c := range before {
		prev := ordinalItems(c.Text)
		first := items[0]
		if len(prev) == 0 || !(prev[len(prev)-1].n == first.n-1 || containsItem(items, prev[len(prev)-1])) {
			continue
		}
		var head []listItem
		for _, it := range prev {
			if it.n < first.n {
				head = append(head, it)
			}
		}
		items = append(head, items...)
	}
	return items
}

// sameItem reports whether a and b are the same numbered item, allowing either
// text to be cut short.
func sameItem(a, b listItem) bool {
	if a.n != b.n {
		return false
	}
	x, y := strings.ToLower(a.text), strings.ToLower(b.text)
	return strings.HasPrefix(x, y) || strings.HasPrefix(y, x)
}

func containsItem(items []listItem, it listItem) bool {
	for _, have := range items {
		if sameItem(have, it) {
			return true
		}
	}
	return false
}

// mergeBullets joins bullet items in document order, dropping repeats.
func mergeBullets(items []listItem, before, after []*models.Chunk) []listItem {
	seen := make(map[string]struct{})
	add := func(dst []listItem, src []listItem) []listItem {
		for _, it := range src {
			key := strings.ToLower(it.text)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			dst = append(dst, it)
		}
		return dst
	}
	merged := add(nil, items)
	for _, c := range before {
		merged = append(add(nil, bulletItems(c.Text)), merged...)
	}
	for _, c := range after {
		merged = add(merged, bulletItems(c.Text))
	}
	return merged
}

// render lays items out; ordered items keep their document numbers.
func render(items []listItem, format Format) string {
	var b strings.Builder
	for i, item := range items {
		switch format {
		case FormatOrdered:
			if i > 0 {
				b.WriteByte('\n')
			}
			fmt.Fprintf(&b, "%d. %s", item.n, item.text)
		case FormatBullet:
			if i > 0 {
				b.WriteByte('\n')
			}
			b.WriteString("• " + item.text)
		default:
			if i > 0 {
				b.WriteString("\n\n")
			}
			b.WriteString(item.text)
		}
	}
	return b.String()
}

// Sources converts results to sources in retrieval order.
func Sources(results []models.RetrievalResult) []models.Source {
	sources := make([]models.Source, 0, len(results))
	for _, r := range results {
		sources = append(sources, models.Source{
			Text:     strings.TrimSpace(r.Chunk.Text),
			Document: r.Chunk.DocumentTitle,
			Type:     r.Chunk.Type,
		})
	}
	return sources
}

var ordinalPrefix = regexp.MustCompile(`^\d+\. (.+)$`)

// ListItems splits a rendered answer back into its list items. Prose answers return nil.
func ListItems(text string) []string {
	body, _, _ := strings.Cut(text, "\n\n"+LowReliabilityNote)
	var items []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "• "):
			items = append(items, strings.TrimPrefix(line, "• "))
		default:
			if m := ordinalPrefix.FindStringSubmatch(line); m != nil {
				items = append(items, m[1])
			} else {
				return nil
			}
		}
	}
	return items
}
