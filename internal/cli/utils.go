// Package cli provides CLI output helpers for tanya.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/hyperjump/tanya/internal/answer"
	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates an --output flag value. Empty means text.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(OutputText):
		return OutputText, nil
	case string(OutputJSON):
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (use text or json)", s)
	}
}

var (
	headingStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	labelStyles  = map[models.ConfidenceLabel]lipgloss.Style{
		models.ConfidenceHigh:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("78")),
		models.ConfidenceMedium: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
		models.ConfidenceLow:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
	}
)

// RenderLabel styles a confidence label for terminal output.
func RenderLabel(label models.ConfidenceLabel) string {
	style, ok := labelStyles[label]
	if !ok {
		return string(label)
	}
	return style.Render(string(label))
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteAnswer writes an answered question to w in the given format.
func WriteAnswer(w io.Writer, resp *models.AskResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintf(w, "\n%s %s\n\n", headingStyle.Render("Q:"), resp.Question)
	heading := "A:"
	if items := answer.ListItems(resp.Text); len(items) > 0 {
		heading = fmt.Sprintf("A (%d items):", len(items))
	}
	fmt.Fprintf(w, "%s\n%s\n\n", headingStyle.Render(heading), resp.Text)
	fmt.Fprintf(w, "Confidence: %d%% (%s)\n", resp.Confidence, RenderLabel(resp.ConfidenceLabel))
	if len(resp.Sources) > 0 {
		fmt.Fprintln(w, "\nSources:")
		for i, src := range resp.Sources {
			fmt.Fprintf(w, "  %d. %s [%s]\n", i+1, src.Document, src.Type)
			fmt.Fprintf(w, "     %s\n", mutedStyle.Render(TruncateWords(utils.CollapseSpaces(src.Text), 24)))
		}
	}
	fmt.Fprintln(w)
	return nil
}

// WriteChunks writes the chunks of a document to w in the given format.
func WriteChunks(w io.Writer, doc *models.Document, chunks []models.Chunk, format OutputFormat) error {
	if format == OutputJSON {
		if chunks == nil {
			chunks = []models.Chunk{}
		}
		return writeJSON(w, map[string]interface{}{
			"document": doc,
			"chunks":   chunks,
		})
	}
	fmt.Fprintf(w, "\n%s (%d bytes, %d chunks)\n\n", headingStyle.Render(doc.Title), len(doc.RawText), len(chunks))
	for _, c := range chunks {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "%s | offsets %d-%d | %d words | %s\n", c.ID, c.StartOffset, c.EndOffset, len(strings.Fields(c.Text)), c.Type)
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(strings.TrimSpace(c.Text), 400))
	}
	return nil
}

// WriteStatus writes a status map to w. Text output lists keys in sorted order.
func WriteStatus(w io.Writer, status map[string]interface{}, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, status)
	}
	keys := make([]string, 0, len(status))
	for k := range status {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := status[k]
		if nested, ok := v.(map[string]interface{}); ok {
			fmt.Fprintf(w, "%s:\n", headingStyle.Render(k))
			sub := make([]string, 0, len(nested))
			for nk := range nested {
				sub = append(sub, nk)
			}
			sort.Strings(sub)
			for _, nk := range sub {
				fmt.Fprintf(w, "  %s: %v\n", nk, nested[nk])
			}
			continue
		}
		fmt.Fprintf(w, "%s: %v\n", k, v)
	}
	return nil
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
