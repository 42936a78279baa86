package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"io"
	"regexp"
	"sort"
	"strings"
)

const (
	docxDefaultDocumentPath = "word/document.xml"
	contentTypesPath        = "[Content_Types].xml"
	docxMainContentType     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
	pptxSlidePrefix         = "ppt/slides/slide"
)

var (
	// Paragraph elements; <w:p> (Word) and <a:p> (DrawingML, used by slides).
	wordParagraph  = regexp.MustCompile(`(?s)<w:p[ >].*?</w:p>`)
	slideParagraph = regexp.MustCompile(`(?s)<a:p[ >].*?</a:p>`)
	wordText       = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)
	slideText      = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)
	wordTab        = regexp.MustCompile(`<w:tab/>`)
	mainPartName   = regexp.MustCompile(`<Override[^>]*PartName="([^"]+)"[^>]*ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"`)
	mainPartName2  = regexp.MustCompile(`<Override[^>]*ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]*PartName="([^"]+)"`)
)

// readZipEntry returns the bytes of the named entry, or nil when absent.
func readZipEntry(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		return data, nil
	}
	return nil, nil
}

// docxMainDocumentPath finds the main document part from [Content_Types].xml.
func docxMainDocumentPath(zr *zip.Reader) string {
	ct, err := readZipEntry(zr, contentTypesPath)
	if err != nil || ct == nil {
		return docxDefaultDocumentPath
	}
	for _, re := range []*regexp.Regexp{mainPartName, mainPartName2} {
		if m := re.FindSubmatch(ct); len(m) > 1 {
			return strings.TrimPrefix(string(m[1]), "/")
		}
	}
	return docxDefaultDocumentPath
}

// paragraphLines returns one line per paragraph element, skipping empty ones.
func paragraphLines(xml string, paragraph, text *regexp.Regexp) []string {
	var lines []string
	for _, p := range paragraph.FindAllString(xml, -1) {
		var b strings.Builder
		for _, m := range text.FindAllStringSubmatch(p, -1) {
			b.WriteString(m[1])
		}
		line := strings.TrimSpace(html.UnescapeString(b.String()))
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// extractDOCX extracts text from .docx bytes, one line per paragraph.
func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract DOCX: not a zip: %w", err)
	}
	docPath := docxMainDocumentPath(zr)
	docXML, err := readZipEntry(zr, docPath)
	if err != nil {
		return "", fmt.Errorf("extract DOCX: %w", err)
	}
	if docXML == nil {
		return "", fmt.Errorf("extract DOCX: %s not found", docPath)
	}
	xml := wordTab.ReplaceAllString(string(docXML), "<w:t> </w:t>")
	return strings.Join(paragraphLines(xml, wordParagraph, wordText), "\n"), nil
}

// extractPPTX extracts text from .pptx bytes, slides in numeric order, one line per paragraph.
func extractPPTX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract PPTX: not a zip: %w", err)
	}
	type slide struct {
		num  int
		name string
	}
	var slides []slide
	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, pptxSlidePrefix) || !strings.HasSuffix(f.Name, ".xml") {
			continue
		}
		var n int
		if _, err := fmt.Sscanf(strings.TrimPrefix(f.Name, pptxSlidePrefix), "%d.xml", &n); err != nil {
			continue
		}
		slides = append(slides, slide{num: n, name: f.Name})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var lines []string
	for _, s := range slides {
		data, err := readZipEntry(zr, s.name)
		if err != nil {
			return "", fmt.Errorf("extract PPTX: %w", err)
		}
		lines = append(lines, paragraphLines(string(data), slideParagraph, slideText)...)
	}
	return strings.Join(lines, "\n"), nil
}
