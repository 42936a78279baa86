package answer

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hyperjump/tanya/pkg/utils"
)

// Format is the layout detected in a chunk.
type Format int

const (
	// FormatProse is plain paragraphs.
	FormatProse Format = iota
	// FormatOrdered is a numbered list ("1. a 2. b" or "Step 1: a").
	FormatOrdered
	// FormatBullet is a list of lines starting with •, - or *.
	FormatBullet
)

func (f Format) String() string {
	switch f {
	case FormatOrdered:
		return "ordered"
	case FormatBullet:
		return "bullet"
	default:
		return "prose"
	}
}

// formatRule matches one layout. Rules are pure and evaluated in priority order.
type formatRule struct {
	format Format
	match  func(text string) bool
}

var formatRules = []formatRule{
	{FormatOrdered, func(text string) bool { return len(ordinalItems(text)) >= 2 }},
	{FormatBullet, func(text string) bool { return len(bulletItems(text)) >= 2 }},
}

// DetectFormat returns the first matching format, or FormatProse.
func DetectFormat(text string) Format {
	for _, r := range formatRules {
		if r.match(text) {
			return r.format
		}
	}
	return FormatProse
}

// Items extracts list items (or paragraphs for prose) from text in the given format.
func Items(text string, f Format) []string {
	var texts []string
	for _, it := range extractItems(text, f) {
		texts = append(texts, it.text)
	}
	return texts
}

func extractItems(text string, f Format) []listItem {
	switch f {
	case FormatOrdered:
		return ordinalItems(text)
	case FormatBullet:
		return bulletItems(text)
	default:
		var items []listItem
		for _, p := range paragraphs(text) {
			items = append(items, listItem{text: p})
		}
		return items
	}
}

var (
	wordToken     = regexp.MustCompile(`\S+`)
	ordinalToken  = regexp.MustCompile(`^\(?(\d{1,2})[.)]$`)
	stepNumber    = regexp.MustCompile(`^(\d{1,2})[:.)\-]?$`)
	bulletLine    = regexp.MustCompile(`^[ \t]*[•\-*][ \t]+(.+)$`)
	blankLines    = regexp.MustCompile(`\n[ \t]*\n`)
	itemTrimChars = " \t\r\n;,"
)

// marker is a list ordinal found in text; [start, end) covers the marker itself.
// A marker at a line start may open a list at any number, which is how a chunk
// cut from the middle of a long procedure begins. An anchored marker (after ":",
// a sentence end, or a "Step" keyword) may open a list at 1.
type marker struct {
	n          int
	start, end int
	lineStart  bool
	anchored   bool
}

func (m marker) opensList() bool {
	return m.lineStart || (m.n == 1 && m.anchored)
}

// listItem is one extracted item; n is its original number in ordered lists.
type listItem struct {
	n    int
	text string
}

// findMarkers returns "N." / "N)" tokens and "Step N" phrases in text order.
func findMarkers(text string) []marker {
	toks := wordToken.FindAllStringIndex(text, -1)
	var markers []marker
	for i := 0; i < len(toks); i++ {
		tok := text[toks[i][0]:toks[i][1]]
		lineStart := strings.TrimLeft(text[lineBegin(text, toks[i][0]):toks[i][0]], " \t\r") == ""
		if m := ordinalToken.FindStringSubmatch(tok); m != nil {
			n, _ := strconv.Atoi(m[1])
			anchored := lineStart
			if i > 0 {
				anchored = anchored || opensAfter(text[toks[i-1][0]:toks[i-1][1]])
			}
			markers = append(markers, marker{n: n, start: toks[i][0], end: toks[i][1], lineStart: lineStart, anchored: anchored})
			continue
		}
		word := strings.ToLower(tok)
		if (word == "step" || word == "étape" || word == "etape") && i+1 < len(toks) {
			next := text[toks[i+1][0]:toks[i+1][1]]
			if m := stepNumber.FindStringSubmatch(next); m != nil {
				n, _ := strconv.Atoi(m[1])
				markers = append(markers, marker{n: n, start: toks[i][0], end: toks[i+1][1], lineStart: lineStart, anchored: true})
				i++
			}
		}
	}
	return markers
}

func lineBegin(text string, pos int) int {
	return strings.LastIndexByte(text[:pos], '\n') + 1
}

// opensAfter reports whether a list may start right after tok: an introducing
// colon or the end of a sentence that is not itself a number.
func opensAfter(tok string) bool {
	if strings.HasSuffix(tok, ":") {
		return true
	}
	if ordinalToken.MatchString(tok) || strings.IndexFunc(tok, unicode.IsLetter) < 0 {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(tok)
	return last == '.' || last == '!' || last == '?'
}

// ordinalSequence returns the first run of consecutively numbered markers with at
// least two entries. Markers that neither open nor continue the run are item text.
func ordinalSequence(text string) []marker {
	var run []marker
	for _, m := range findMarkers(text) {
		if len(run) > 0 && m.n == run[len(run)-1].n+1 {
			run = append(run, m)
			continue
		}
		if m.opensList() {
			if len(run) >= 2 {
				break
			}
			run = []marker{m}
		}
	}
	return run
}

// ordinalItems returns the text after each marker up to the next marker or end of line.
// Text before the first marker is dropped.
func ordinalItems(text string) []listItem {
	seq := ordinalSequence(text)
	if len(seq) < 2 {
		return nil
	}
	items := make([]listItem, 0, len(seq))
	for i, m := range seq {
		end := len(text)
		if i+1 < len(seq) {
			end = seq[i+1].start
		}
		if nl := strings.IndexByte(text[m.end:end], '\n'); nl >= 0 {
			end = m.end + nl
		}
		if item := cleanItem(text[m.end:end]); item != "" {
			items = append(items, listItem{n: m.n, text: item})
		}
	}
	return items
}

// bulletItems returns the content of lines starting with a bullet marker.
func bulletItems(text string) []listItem {
	var items []listItem
	for _, line := range strings.Split(text, "\n") {
		if m := bulletLine.FindStringSubmatch(line); m != nil {
			if item := cleanItem(m[1]); item != "" {
				items = append(items, listItem{text: item})
			}
		}
	}
	return items
}

// paragraphs splits text on blank lines and collapses whitespace inside each paragraph.
func paragraphs(text string) []string {
	var out []string
	for _, p := range blankLines.Split(strings.ReplaceAll(text, "\r\n", "\n"), -1) {
		if p = utils.CollapseSpaces(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func cleanItem(s string) string {
	s = utils.CollapseSpaces(s)
	s = strings.TrimLeft(s, ":- ")
	return strings.Trim(s, itemTrimChars)
}
