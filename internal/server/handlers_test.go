package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/tanya/internal/answer"
	"github.com/hyperjump/tanya/internal/audit"
	"github.com/hyperjump/tanya/internal/auth"
	"github.com/hyperjump/tanya/internal/config"
	"github.com/hyperjump/tanya/internal/indexer"
	"github.com/hyperjump/tanya/internal/keyword"
	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/internal/pipeline"
	"github.com/hyperjump/tanya/internal/search"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const accountsText = "Open an account requires: 1. ID card 2. Proof of address 3. Initial deposit"

type testEnv struct {
	handler http.Handler
	server  *Server
	audit   *audit.SQLiteStore
	docsDir string
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()
	dir := t.TempDir()
	docsDir := filepath.Join(dir, "docs")
	if err := os.MkdirAll(docsDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(docsDir, "accounts.txt"), []byte(accountsText), 0600); err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{}
	cfg.Documents.Directories = []string{docsDir}
	cfg.Auth.Users = []config.UserConfig{
		{Email: "agent@bank.example", Name: "Agent", Role: models.RoleAgent, PasswordHash: mustHash(t, "agent-pass")},
		{Email: "admin@bank.example", Name: "Admin", Role: models.RoleAdmin, PasswordHash: mustHash(t, "admin-pass")},
	}
	config.ApplyDefaults(cfg)
	if mutate != nil {
		mutate(cfg)
	}

	analyzer, err := keyword.NewAnalyzer()
	if err != nil {
		t.Fatal(err)
	}
	snapshots := search.NewSnapshotStore(nil)
	idx := indexer.NewIndexer(snapshots, analyzer, cfg, nil)
	if _, err := idx.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	p := pipeline.New(snapshots,
		search.NewRetriever(analyzer, search.WithTopK(cfg.Retrieval.TopK, cfg.Retrieval.MaxTopK)),
		search.NewConfidenceScorer(cfg.Answer.HighThreshold, cfg.Answer.MediumThreshold),
		answer.NewGenerator(answer.WithMediumThreshold(cfg.Answer.MediumThreshold)),
	)

	users, err := auth.NewDirectory(cfg.Auth.Users)
	if err != nil {
		t.Fatal(err)
	}
	manager := auth.NewManager(users, auth.NewMemoryStore())

	rec, err := audit.NewSQLiteStore(filepath.Join(dir, "audit.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = rec.Close() })

	srv := NewServer(p, snapshots, idx, manager, rec, cfg, zap.NewNop())
	return &testEnv{handler: srv.Router(), server: srv, audit: rec, docsDir: docsDir}
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	return string(h)
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	r := httptest.NewRequest(method, path, &buf)
	r.Header.Set("Content-Type", "application/json")
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)
	return w
}

func (e *testEnv) login(t *testing.T, email, password string) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/login", "", loginRequest{Email: email, Password: password})
	if w.Code != http.StatusOK {
		t.Fatalf("login status: got %d, body %s", w.Code, w.Body.String())
	}
	var out loginResponse
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	return out.SessionToken
}

func TestHandleLogin(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/login", "", loginRequest{Email: "agent@bank.example", Password: "agent-pass"})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out loginResponse
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if !out.Success || out.SessionToken == "" {
		t.Errorf("expected success with token, got %+v", out)
	}
	if out.User == nil || out.User.Email != "agent@bank.example" || out.User.Role != models.RoleAgent {
		t.Errorf("user: got %+v", out.User)
	}
}

func TestHandleLogin_Failures(t *testing.T) {
	env := newTestEnv(t, nil)
	tests := []struct {
		name string
		body interface{}
		want int
	}{
		{"wrong password", loginRequest{Email: "agent@bank.example", Password: "nope"}, http.StatusUnauthorized},
		{"unknown user", loginRequest{Email: "who@bank.example", Password: "agent-pass"}, http.StatusUnauthorized},
		{"missing password", loginRequest{Email: "agent@bank.example"}, http.StatusBadRequest},
		{"missing email", loginRequest{Password: "agent-pass"}, http.StatusBadRequest},
		{"not json", "plain string", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/login", "", tt.body)
			if w.Code != tt.want {
				t.Fatalf("status: got %d, want %d", w.Code, tt.want)
			}
			var out loginResponse
			if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
				t.Fatal(err)
			}
			if out.Success || out.Message == "" {
				t.Errorf("expected failure with message, got %+v", out)
			}
		})
	}
}

func TestHandleAsk_ValidSession(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.login(t, "agent@bank.example", "agent-pass")

	question := "What documents are required to open an account?"
	w := env.do(t, http.MethodPost, "/ask", token, models.AskRequest{Question: question})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	var out models.AskResponse
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Question != question {
		t.Errorf("question: got %q", out.Question)
	}
	if out.ConfidenceLabel != models.ConfidenceHigh {
		t.Errorf("label: got %q", out.ConfidenceLabel)
	}
	items := answer.ListItems(out.Text)
	want := []string{"ID card", "Proof of address", "Initial deposit"}
	if len(items) != len(want) {
		t.Fatalf("items: got %v, want %v", items, want)
	}
	for i := range want {
		if items[i] != want[i] {
			t.Errorf("item %d: got %q, want %q", i, items[i], want[i])
		}
	}
	if len(out.Sources) != 1 || out.Sources[0].Document != "accounts.txt" {
		t.Errorf("sources: got %+v", out.Sources)
	}
}

func TestHandleAsk_Unauthorized(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, token := range []string{"", "not-a-session"} {
		w := env.do(t, http.MethodPost, "/ask", token, models.AskRequest{Question: "open an account"})
		if w.Code != http.StatusUnauthorized {
			t.Errorf("token %q: got %d, want 401", token, w.Code)
		}
		var out map[string]string
		if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
			t.Fatal(err)
		}
		if out["error"] == "" {
			t.Errorf("token %q: expected error message", token)
		}
	}

	n, err := env.audit.Count(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("expected no audit events for rejected requests, got %d", n)
	}
}

func TestHandleAsk_BadRequests(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.login(t, "agent@bank.example", "agent-pass")

	w := env.do(t, http.MethodPost, "/ask", token, models.AskRequest{Question: "   "})
	if w.Code != http.StatusBadRequest {
		t.Errorf("blank question: got %d, want 400", w.Code)
	}
	w = env.do(t, http.MethodPost, "/ask", token, 42)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad body: got %d, want 400", w.Code)
	}
}

func TestHandleAsk_NoInformation(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.login(t, "agent@bank.example", "agent-pass")

	w := env.do(t, http.MethodPost, "/ask", token, models.AskRequest{Question: "What is the weather today?"})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out models.AskResponse
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Text != answer.NoInformationText || out.Confidence != 0 || out.ConfidenceLabel != models.ConfidenceLow {
		t.Errorf("unexpected answer: %+v", out.Answer)
	}
	if out.Sources == nil || len(out.Sources) != 0 {
		t.Errorf("sources: got %#v, want empty list", out.Sources)
	}
}

func TestHandleLogout(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.login(t, "agent@bank.example", "agent-pass")

	w := env.do(t, http.MethodPost, "/logout", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("logout: got %d", w.Code)
	}
	w = env.do(t, http.MethodPost, "/ask", token, models.AskRequest{Question: "open an account"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("ask after logout: got %d, want 401", w.Code)
	}
}

func TestHandleHealthAndStatus(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health: got %d", w.Code)
	}
	var health struct {
		Status          string         `json:"status"`
		DocumentsLoaded int            `json:"documents_loaded"`
		ChunksCount     int            `json:"chunks_count"`
		Documents       []documentInfo `json:"documents"`
	}
	if err := json.NewDecoder(w.Body).Decode(&health); err != nil {
		t.Fatal(err)
	}
	if health.Status != "healthy" || health.DocumentsLoaded != 1 || health.ChunksCount != 1 {
		t.Errorf("health: got %+v", health)
	}
	if len(health.Documents) != 1 || health.Documents[0].Name != "accounts.txt" || health.Documents[0].Size != int64(len(accountsText)) {
		t.Errorf("documents: got %+v", health.Documents)
	}

	w = env.do(t, http.MethodGet, "/status", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var status map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if status["version"].(float64) != 1 || status["chunks"].(float64) != 1 {
		t.Errorf("status: got %v", status)
	}
	if _, ok := status["audit_disk_usage_bytes"]; !ok {
		t.Error("expected audit disk usage in status")
	}
}

func TestHandleReload_AdminOnly(t *testing.T) {
	env := newTestEnv(t, nil)
	agent := env.login(t, "agent@bank.example", "agent-pass")
	admin := env.login(t, "admin@bank.example", "admin-pass")

	if w := env.do(t, http.MethodPost, "/reload", agent, nil); w.Code != http.StatusForbidden {
		t.Errorf("agent reload: got %d, want 403", w.Code)
	}

	if err := os.WriteFile(filepath.Join(env.docsDir, "cards.txt"), []byte("Lost cards are blocked by calling the hotline."), 0600); err != nil {
		t.Fatal(err)
	}
	w := env.do(t, http.MethodPost, "/reload", admin, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("admin reload: got %d", w.Code)
	}
	var out struct {
		Documents int    `json:"documents"`
		Chunks    int    `json:"chunks"`
		Version   uint64 `json:"version"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Documents != 2 || out.Version != 2 {
		t.Errorf("reload: got %+v", out)
	}
}

func TestHandleAudit(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, http.MethodPost, "/login", "", loginRequest{Email: "agent@bank.example", Password: "bad"})
	agent := env.login(t, "agent@bank.example", "agent-pass")
	env.do(t, http.MethodPost, "/ask", agent, models.AskRequest{Question: "open an account"})
	admin := env.login(t, "admin@bank.example", "admin-pass")

	if w := env.do(t, http.MethodGet, "/audit", agent, nil); w.Code != http.StatusForbidden {
		t.Errorf("agent audit: got %d, want 403", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/audit?limit=zero", admin, nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad limit: got %d, want 400", w.Code)
	}

	w := env.do(t, http.MethodGet, "/audit?limit=10", admin, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("audit: got %d", w.Code)
	}
	var out struct {
		Events []audit.Event `json:"events"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Events) != 4 {
		t.Fatalf("events: got %d, want 4", len(out.Events))
	}
	// Newest first: admin login, question, agent login, failed login.
	if out.Events[1].Action != audit.ActionAskQuestion || out.Events[1].Question != "open an account" {
		t.Errorf("ask event: got %+v", out.Events[1])
	}
	if out.Events[3].Action != audit.ActionLogin || out.Events[3].Success {
		t.Errorf("failed login event: got %+v", out.Events[3])
	}
}

func TestRouter_BasePath(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) { cfg.Server.BasePath = "/api/" })

	w := env.do(t, http.MethodPost, "/api/login", "", loginRequest{Email: "agent@bank.example", Password: "agent-pass"})
	if w.Code != http.StatusOK {
		t.Errorf("/api/login: got %d", w.Code)
	}
	w = env.do(t, http.MethodPost, "/login", "", loginRequest{Email: "agent@bank.example", Password: "agent-pass"})
	if w.Code != http.StatusNotFound {
		t.Errorf("/login without base path: got %d, want 404", w.Code)
	}
}

func TestLoginRateLimit(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Auth.LoginRateLimit.PerMinute = 1
		cfg.Auth.LoginRateLimit.Burst = 2
	})
	body := loginRequest{Email: "agent@bank.example", Password: "bad"}
	for i := 0; i < 2; i++ {
		if w := env.do(t, http.MethodPost, "/login", "", body); w.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: got %d, want 401", i+1, w.Code)
		}
	}
	if w := env.do(t, http.MethodPost, "/login", "", body); w.Code != http.StatusTooManyRequests {
		t.Errorf("third attempt: got %d, want 429", w.Code)
	}
}

func TestLoginLimiter_PruneDropsRefilledClients(t *testing.T) {
	l := newLoginLimiter(6000, 2) // one token every 10ms
	for i := 0; i < 1000; i++ {
		l.allow(fmt.Sprintf("10.1.%d.%d", i/256, i%256))
	}
	l.allow("10.9.9.9")
	l.allow("10.9.9.9")
	if len(l.clients) != 1001 {
		t.Fatalf("clients = %d, want 1001", len(l.clients))
	}

	time.Sleep(50 * time.Millisecond)
	if n := l.prune(); n != 1001 {
		t.Errorf("pruned %d, want 1001", n)
	}
	if len(l.clients) != 0 {
		t.Errorf("clients left = %d", len(l.clients))
	}

	l.allow("10.9.9.9")
	l.allow("10.9.9.9")
	if n := l.prune(); n != 0 {
		t.Errorf("a client that just spent its burst was pruned")
	}
	if !l.allow("10.2.0.1") {
		t.Errorf("a pruned or new client should be allowed")
	}
}

func TestServer_PruneLoginClients(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Auth.LoginRateLimit.PerMinute = 1
		cfg.Auth.LoginRateLimit.Burst = 1
	})
	env.do(t, http.MethodPost, "/login", "", loginRequest{Email: "agent@bank.example", Password: "bad"})
	if n := env.server.PruneLoginClients(); n != 0 {
		t.Errorf("client with an empty bucket was pruned")
	}
	if w := env.do(t, http.MethodPost, "/login", "", loginRequest{Email: "agent@bank.example", Password: "bad"}); w.Code != http.StatusTooManyRequests {
		t.Errorf("limit should survive pruning: got %d", w.Code)
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	if got := clientIP(r); got != "10.0.0.1" {
		t.Errorf("got %q", got)
	}
	r.RemoteAddr = "10.0.0.2"
	if got := clientIP(r); got != "10.0.0.2" {
		t.Errorf("got %q", got)
	}
}
