package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ppiankov/certverify/internal/llm"
	"github.com/ppiankov/certverify/internal/model"
	"github.com/ppiankov/certverify/internal/pipeline"
	"github.com/ppiankov/certverify/internal/storage"
)

// Verifier runs one verification
type Verifier interface {
	Verify(ctx context.Context, req pipeline.Request, observers ...pipeline.Observer) (*pipeline.Result, error)
}

// Deps are the collaborators behind the HTTP API. Endpoints whose
// dependency is nil answer 503.
type Deps struct {
	Verifier Verifier
	Provider llm.Provider
	Ingester *storage.Ingester
	Registry storage.Registry
}

// Server is the HTTP API server for certverify
type Server struct {
	router chi.Router
	deps   Deps
	log    *slog.Logger
	cfg    model.ServerConfig
	now    func() time.Time
}

// NewServer creates and configures the HTTP server
func NewServer(deps Deps, log *slog.Logger, cfg model.ServerConfig) *Server {
	s := &Server{
		deps: deps,
		log:  log,
		cfg:  cfg,
		now:  time.Now,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.cfg.APIKey != "" {
			r.Use(AuthMiddleware(s.cfg.APIKey, s.log))
		}

		r.Post("/api/extract", s.handleExtract)
		r.Post("/api/verify", s.handleVerify)
		r.Get("/api/certificates", s.handleListCertificates)
		r.Post("/api/certificates", s.handleIngestCertificates)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// uploadLimit is the per-file upload limit in bytes
func (s *Server) uploadLimit() int64 {
	if s.cfg.MaxUploadBytes <= 0 {
		return 50 << 20
	}
	return s.cfg.MaxUploadBytes
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func unavailable(w http.ResponseWriter, what string) {
	jsonError(w, what+" is not configured", http.StatusServiceUnavailable)
}
