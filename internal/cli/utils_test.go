package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hyperjump/tanya/internal/models"
)

func sampleResponse() *models.AskResponse {
	return &models.AskResponse{
		Question: "What documents are required to open an account?",
		Answer: models.Answer{
			Text:            "1. ID card\n2. Proof of address\n3. Initial deposit",
			Confidence:      83,
			ConfidenceLabel: models.ConfidenceHigh,
			Sources: []models.Source{{
				Text:     "Open an account requires: 1. ID card 2. Proof of address 3. Initial deposit",
				Document: "accounts.txt",
				Type:     models.ChunkRequirement,
			}},
		},
	}
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputText, false},
		{"text", OutputText, false},
		{"JSON", OutputJSON, false},
		{" json ", OutputJSON, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOutputFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseOutputFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseOutputFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWriteAnswer_JSON(t *testing.T) {
	resp := sampleResponse()
	var buf bytes.Buffer
	if err := WriteAnswer(&buf, resp, OutputJSON); err != nil {
		t.Fatalf("WriteAnswer(json): %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	for _, key := range []string{"question", "answer", "confidence", "confidence_label", "sources"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("missing key %q in %s", key, buf.String())
		}
	}
	if decoded["confidence_label"] != "high" {
		t.Errorf("confidence_label = %v", decoded["confidence_label"])
	}
}

func TestWriteAnswer_text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteAnswer(&buf, sampleResponse(), OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Q:", "A (3 items):", "1. ID card", "Confidence: 83%", "high", "Sources:", "accounts.txt [requirement]"} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteAnswer_textWithoutSources(t *testing.T) {
	resp := &models.AskResponse{Question: "weather?", Answer: models.Answer{
		Text:            "I couldn't find relevant information to answer your question.",
		ConfidenceLabel: models.ConfidenceLow,
		Sources:         []models.Source{},
	}}
	var buf bytes.Buffer
	if err := WriteAnswer(&buf, resp, OutputText); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "Sources:") {
		t.Errorf("unexpected sources section:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), "A:\nI couldn't find") || strings.Contains(buf.String(), "items):") {
		t.Errorf("prose answer should have a plain heading:\n%s", buf.String())
	}
}

func TestWriteChunks(t *testing.T) {
	doc := &models.Document{ID: "doc:1", Title: "accounts.txt", RawText: "Step one. Step two."}
	chunks := []models.Chunk{
		{ID: "doc:1#0", DocumentID: "doc:1", Text: "Step one. ", StartOffset: 0, EndOffset: 10, Type: models.ChunkGeneral},
		{ID: "doc:1#1", DocumentID: "doc:1", Text: "Step two.", StartOffset: 10, EndOffset: 19, Type: models.ChunkGeneral},
	}

	var text bytes.Buffer
	if err := WriteChunks(&text, doc, chunks, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text.String(), "doc:1#1 | offsets 10-19 | 2 words | general") {
		t.Errorf("text output:\n%s", text.String())
	}

	var js bytes.Buffer
	if err := WriteChunks(&js, doc, nil, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded struct {
		Chunks []models.Chunk `json:"chunks"`
	}
	if err := json.Unmarshal(js.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Chunks == nil || len(decoded.Chunks) != 0 {
		t.Errorf("expected empty chunk list, got %#v", decoded.Chunks)
	}
}

func TestWriteStatus_textSorted(t *testing.T) {
	status := map[string]interface{}{
		"version": 3,
		"chunks":  12,
		"config":  map[string]interface{}{"top_k": 5, "chunk_size": 120},
	}
	var buf bytes.Buffer
	if err := WriteStatus(&buf, status, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if strings.Index(out, "chunks: 12") > strings.Index(out, "version: 3") {
		t.Errorf("keys not sorted:\n%s", out)
	}
	if strings.Index(out, "chunk_size: 120") > strings.Index(out, "top_k: 5") {
		t.Errorf("nested keys not sorted:\n%s", out)
	}
}

func TestRenderLabel(t *testing.T) {
	for _, l := range []models.ConfidenceLabel{models.ConfidenceHigh, models.ConfidenceMedium, models.ConfidenceLow, "other"} {
		if got := RenderLabel(l); !strings.Contains(got, string(l)) {
			t.Errorf("RenderLabel(%q) = %q", l, got)
		}
	}
}

func TestTruncateWords(t *testing.T) {
	tests := []struct {
		name     string
		s        string
		maxWords int
		want     string
	}{
		{"empty", "", 3, ""},
		{"few words", "one two", 3, "one two"},
		{"exact", "one two three", 3, "one two three"},
		{"more", "one two three four", 3, "one two three..."},
		{"single long", "word", 1, "word"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateWords(tt.s, tt.maxWords)
			if got != tt.want {
				t.Errorf("TruncateWords(%q, %d) = %q, want %q", tt.s, tt.maxWords, got, tt.want)
			}
		})
	}
}
