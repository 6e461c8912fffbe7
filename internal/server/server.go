// Package server provides the HTTP boundary for the extraction service.
package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/docuflow/extract-service/internal/config"
	"github.com/docuflow/extract-service/internal/pipeline"
)

// Version is the service version reported by the health endpoint.
const Version = "1.0.0"

// Extractor is the pipeline entry point consumed by the handlers.
type Extractor interface {
	Extract(ctx context.Context, reg pipeline.ArtifactRegistry, doc pipeline.Document, opts pipeline.Options) (*pipeline.Result, error)
}

// Capabilities are the static capability flags exposed on /health.
type Capabilities struct {
	OCR            bool `json:"ocr"`
	PDF            bool `json:"pdf"`
	PageExtraction bool `json:"page_extraction"`
}

// Server wires configuration, the extractor and the router together.
type Server struct {
	cfg          *config.Config
	log          zerolog.Logger
	extractor    Extractor
	capabilities Capabilities
}

// New creates the HTTP server component.
func New(cfg *config.Config, log zerolog.Logger, extractor Extractor, caps Capabilities) *Server {
	return &Server{
		cfg:          cfg,
		log:          log,
		extractor:    extractor,
		capabilities: caps,
	}
}

// Router builds the chi router with all routes registered.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Post("/api/extract", s.handleExtract)

	return r
}
