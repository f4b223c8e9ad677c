// Package server assembles the HTTP API.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/docuvec/docuvec/internal/audit"
	"github.com/docuvec/docuvec/internal/config"
	"github.com/docuvec/docuvec/internal/document"
	"github.com/docuvec/docuvec/internal/ingest"
	"github.com/docuvec/docuvec/internal/job"
	"github.com/docuvec/docuvec/internal/search"
	"github.com/docuvec/docuvec/internal/storage"
)

// Deps bundles the collaborators the API routes need.
type Deps struct {
	Documents   *document.Store
	Jobs        *job.Store
	Audit       *audit.Store
	Coordinator *ingest.Coordinator
	Engine      *search.Engine
	Index       document.Deindexer
	Objects     storage.ObjectStore
}

// Server is the docuvec HTTP server.
type Server struct {
	cfg        config.Config
	router     chi.Router
	httpServer *http.Server
	logger     *zap.Logger
}

// New creates a server with every feature's routes registered.
func New(cfg config.Config, deps Deps, logger *zap.Logger) *Server {
	s := &Server{cfg: cfg, logger: logger}
	s.router = s.buildRouter(deps)
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter(deps Deps) chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.Server.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	// Health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Raw object downloads; storage_url on completed documents points here.
	r.Get("/objects/*", handleObject(deps.Objects))

	r.Route("/api/documents", func(r chi.Router) {
		ingest.RegisterRoutes(r, deps.Coordinator, s.cfg.Pipeline.MaxUploadBytes)
		document.RegisterRoutes(r, deps.Documents, deps.Audit, deps.Index, deps.Objects)
	})
	job.RegisterRoutes(r, deps.Jobs)
	search.RegisterRoutes(r, deps.Engine)
	audit.RegisterRoutes(r, deps.Audit)

	return r
}

func handleObject(objects storage.ObjectStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "*")
		if key == "" || strings.Contains(key, "..") {
			http.Error(w, "object not found", http.StatusNotFound)
			return
		}

		rc, err := objects.Open(r.Context(), key)
		if err != nil {
			http.Error(w, "object not found", http.StatusNotFound)
			return
		}
		defer rc.Close()

		switch strings.ToLower(path.Ext(key)) {
		case ".pdf":
			w.Header().Set("Content-Type", "application/pdf")
		case ".jpg", ".jpeg":
			w.Header().Set("Content-Type", "image/jpeg")
		default:
			w.Header().Set("Content-Type", "application/octet-stream")
		}
		io.Copy(w, rc)
	}
}

// Router returns the chi router, mainly for tests.
func (s *Server) Router() chi.Router { return s.router }

// Start begins listening on the configured port. It blocks until the
// listener fails or Shutdown is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Server.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("docuvec server listening", zap.String("addr", addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
