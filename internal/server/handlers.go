package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/tanya/internal/audit"
	"github.com/hyperjump/tanya/internal/auth"
	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/internal/pipeline"
	"go.uber.org/zap"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success      bool         `json:"success"`
	Message      string       `json:"message,omitempty"`
	SessionToken string       `json:"session_token,omitempty"`
	User         *models.User `json:"user,omitempty"`
}

type documentInfo struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondLogin(w, http.StatusBadRequest, loginResponse{Message: "invalid request body"})
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		respondLogin(w, http.StatusBadRequest, loginResponse{Message: "email and password are required"})
		return
	}

	session, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.record(r, audit.Event{Action: audit.ActionLogin, Email: req.Email, Success: false})
		if errors.Is(err, auth.ErrInvalidCredentials) {
			respondLogin(w, http.StatusUnauthorized, loginResponse{Message: "invalid email or password"})
			return
		}
		s.logger.Error("login failed", zap.Error(err))
		respondLogin(w, http.StatusInternalServerError, loginResponse{Message: "internal server error"})
		return
	}
	s.record(r, audit.Event{Action: audit.ActionLogin, Email: session.User.Email, Success: true})
	s.logger.Debug("login", zap.String("email", session.User.Email), zap.String("role", session.User.Role))
	respondLogin(w, http.StatusOK, loginResponse{
		Success:      true,
		SessionToken: session.Token,
		User:         &session.User,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if err := s.auth.Logout(r.Context(), auth.BearerToken(r)); err != nil {
		s.logger.Error("logout failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.record(r, audit.Event{Action: audit.ActionLogout, Email: user.Email, Success: true})
	s.respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req models.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ans, err := s.pipeline.Ask(req.Question)
	if errors.Is(err, pipeline.ErrEmptyQuery) {
		s.respondError(w, http.StatusBadRequest, models.ErrEmptyQuestion.Error())
		return
	}
	if err != nil {
		s.logger.Error("ask failed", zap.String("question", req.Question), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	user := auth.UserFromContext(r.Context())
	s.record(r, audit.Event{
		Action:          audit.ActionAskQuestion,
		Email:           user.Email,
		Success:         true,
		Question:        req.Question,
		Confidence:      ans.Confidence,
		ConfidenceLabel: string(ans.ConfidenceLabel),
	})
	s.respondJSON(w, http.StatusOK, models.AskResponse{Question: req.Question, Answer: *ans})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshots.Current()
	docs := make([]documentInfo, 0, len(snap.Documents))
	for _, d := range snap.Documents {
		docs = append(docs, documentInfo{Name: d.Title, Size: d.Size, Modified: d.ModifiedAt})
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":           "healthy",
		"documents_loaded": snap.DocumentCount(),
		"chunks_count":     snap.ChunkCount(),
		"documents":        docs,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshots.Current()
	resp := map[string]interface{}{
		"version":        snap.Version,
		"loaded_at":      snap.LoadedAt,
		"documents":      snap.DocumentCount(),
		"chunks":         snap.ChunkCount(),
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	}
	if du, ok := s.audit.(interface{ DiskUsage() (int64, error) }); ok {
		if n, err := du.DiskUsage(); err == nil {
			resp["audit_disk_usage_bytes"] = n
		}
	}

	cfg := s.config
	resp["config"] = map[string]interface{}{
		"directories":      cfg.Documents.Directories,
		"extensions":       cfg.Documents.Extensions,
		"watch":            cfg.Documents.Watch,
		"chunk_size":       cfg.Chunking.ChunkSize,
		"chunk_overlap":    cfg.Chunking.ChunkOverlap,
		"top_k":            cfg.Retrieval.TopK,
		"high_threshold":   cfg.Answer.HighThreshold,
		"medium_threshold": cfg.Answer.MediumThreshold,
		"session_store":    cfg.Auth.Store,
		"audit_enabled":    cfg.Audit.EnabledOrDefault(),
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if s.indexer == nil {
		s.respondError(w, http.StatusNotImplemented, "reload not available")
		return
	}
	snap, err := s.indexer.Reload(r.Context())
	if err != nil {
		s.logger.Error("reload failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"documents": snap.DocumentCount(),
		"chunks":    snap.ChunkCount(),
		"version":   snap.Version,
	})
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	events, err := s.audit.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("audit query failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

// record writes an audit event. Failures are logged and never fail the request.
func (s *Server) record(r *http.Request, e audit.Event) {
	e.RemoteAddr = clientIP(r)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 5*time.Second)
	defer cancel()
	if err := s.audit.Record(ctx, e); err != nil {
		s.logger.Warn("audit record failed", zap.String("action", e.Action), zap.Error(err))
	}
}

func respondLogin(w http.ResponseWriter, status int, resp loginResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
