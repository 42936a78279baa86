package keyword

import (
	"reflect"
	"testing"
)

func newTestAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	a, err := NewAnalyzer()
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}
	return a
}

func TestAnalyzer_TermsStemsAndDropsStopWords(t *testing.T) {
	a := newTestAnalyzer(t)
	got := a.Terms("What documents are required to open an account?")
	want := []string{"document", "requir", "open", "account"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Terms = %v, want %v", got, want)
	}
}

func TestAnalyzer_QueryAndDocumentAgree(t *testing.T) {
	a := newTestAnalyzer(t)
	doc := a.Frequencies("Open an account requires: 1. ID card 2. Proof of address 3. Initial deposit")
	for _, term := range []string{"open", "account", "requir"} {
		if doc[term] == 0 {
			t.Errorf("document frequencies missing %q: %v", term, doc)
		}
	}
	if doc["document"] != 0 {
		t.Errorf("document text should not contain term \"document\": %v", doc)
	}
}

func TestAnalyzer_FrenchElisionAndStopWords(t *testing.T) {
	a := newTestAnalyzer(t)
	got := a.Terms("l'ouverture d'un compte")
	for _, term := range got {
		if term == "l'ouverture" || term == "d'un" || term == "un" {
			t.Errorf("elision or stop word not removed: %v", got)
		}
	}
	if len(got) == 0 {
		t.Fatal("expected content terms")
	}
}

func TestAnalyzer_CaseInsensitive(t *testing.T) {
	a := newTestAnalyzer(t)
	if !reflect.DeepEqual(a.Terms("ACCOUNT Deposit"), a.Terms("account deposit")) {
		t.Error("analysis should be case-insensitive")
	}
}

func TestAnalyzer_Frequencies(t *testing.T) {
	a := newTestAnalyzer(t)
	freq := a.Frequencies("deposit deposits deposit card")
	if freq["deposit"] != 3 {
		t.Errorf("deposit count = %d, want 3", freq["deposit"])
	}
	if freq["card"] != 1 {
		t.Errorf("card count = %d, want 1", freq["card"])
	}
}

func TestAnalyzer_Empty(t *testing.T) {
	a := newTestAnalyzer(t)
	if got := a.Terms(""); len(got) != 0 {
		t.Errorf("Terms(\"\") = %v", got)
	}
	if got := a.Terms("the and of"); len(got) != 0 {
		t.Errorf("stop-word-only text should have no terms: %v", got)
	}
}
