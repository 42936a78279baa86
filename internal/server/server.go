// Package server provides the HTTP API for tanya.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hyperjump/tanya/internal/audit"
	"github.com/hyperjump/tanya/internal/auth"
	"github.com/hyperjump/tanya/internal/config"
	"github.com/hyperjump/tanya/internal/indexer"
	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/internal/pipeline"
	"github.com/hyperjump/tanya/internal/search"
	"go.uber.org/zap"
)

// Server is the HTTP server for the tanya API.
type Server struct {
	pipeline  *pipeline.Pipeline
	snapshots *search.SnapshotStore
	indexer   *indexer.Indexer
	auth      *auth.Manager
	audit     audit.Recorder
	config    *config.Config
	logger    *zap.Logger
	limiter   *loginLimiter
	server    *http.Server
	started   time.Time
}

// NewServer creates a server with the given dependencies.
// idx may be nil, in which case POST /reload answers 501. rec may be nil to disable auditing.
func NewServer(
	p *pipeline.Pipeline,
	snapshots *search.SnapshotStore,
	idx *indexer.Indexer,
	authManager *auth.Manager,
	rec audit.Recorder,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	if rec == nil {
		rec = audit.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		pipeline:  p,
		snapshots: snapshots,
		indexer:   idx,
		auth:      authManager,
		audit:     rec,
		config:    cfg,
		logger:    logger,
		limiter:   newLoginLimiter(cfg.Auth.LoginRateLimit.PerMinute, cfg.Auth.LoginRateLimit.Burst),
		started:   time.Now(),
	}
}

// PruneLoginClients forgets login rate limit state for idle clients and returns
// how many were dropped.
func (s *Server) PruneLoginClients() int {
	return s.limiter.prune()
}

// Router builds the HTTP handler with all middleware and routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if s.config.Server.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.config.Server.RequestTimeout))
	}
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.Server.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	base := strings.TrimRight(s.config.Server.BasePath, "/")
	if base == "" {
		s.routes(r)
	} else {
		r.Route(base, s.routes)
	}
	return r
}

func (s *Server) routes(r chi.Router) {
	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.With(s.limiter.middleware).Post("/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(s.auth))
		r.Post("/logout", s.handleLogout)
		r.Post("/ask", s.handleAsk)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(models.RoleAdmin))
			r.Post("/reload", s.handleReload)
			r.Get("/audit", s.handleAudit)
		})
	})
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr), zap.String("base_path", s.config.Server.BasePath))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
