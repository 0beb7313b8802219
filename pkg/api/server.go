// pkg/api/server.go
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/tenderops/tender-ingress/pkg/config"
	"github.com/tenderops/tender-ingress/pkg/pipeline"
	"github.com/tenderops/tender-ingress/pkg/search"
	"github.com/tenderops/tender-ingress/pkg/store"
)

// Server is the HTTP facade over the pipeline, the search layer and the
// store's read paths.
type Server struct {
	cfg      *config.Config
	store    store.Store
	pipeline *pipeline.Pipeline
	searcher *search.Searcher
	logger   *zap.Logger
	router   *chi.Mux
}

// NewServer wires the HTTP routes over the given components.
func NewServer(cfg *config.Config, st store.Store, p *pipeline.Pipeline, s *search.Searcher) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if p == nil {
		return nil, fmt.Errorf("pipeline cannot be nil")
	}
	if s == nil {
		return nil, fmt.Errorf("searcher cannot be nil")
	}

	srv := &Server{
		cfg:      cfg,
		store:    st,
		pipeline: p,
		searcher: s,
		logger:   zap.L().Named("api"),
	}
	srv.router = srv.buildRouter()
	return srv, nil
}

// Router returns the configured HTTP handler.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) buildRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealthz)

	r.Route("/api", func(r chi.Router) {
		r.Get("/", s.handleRoot)
		r.Post("/ingest", s.handleIngest)
		r.Get("/tenders", s.handleListTenders)
		r.Post("/search", s.handleSearch)
		r.Get("/data-quality", s.handleDataQuality)
		r.Get("/pipeline-health", s.handlePipelineHealth)
		r.Post("/validate", s.handleValidate)
	})

	return r
}

// requestLogger logs one line per request with status and latency.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("Request handled",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)))
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
