// Package server provides the HTTP API for weave.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/weaveai/weave/internal/answer"
	"github.com/weaveai/weave/internal/config"
	"github.com/weaveai/weave/internal/enquiry"
	"github.com/weaveai/weave/internal/models"
	"github.com/weaveai/weave/internal/qualify"
)

// EnquiryHandler runs an enquiry end to end.
type EnquiryHandler interface {
	HandleEnquiry(ctx context.Context, req enquiry.Request) *enquiry.Outcome
}

// Answerer answers questions from approved content.
type Answerer interface {
	AnswerWithRetrieval(ctx context.Context, query string) *answer.Answer
	GenerateSafeAnswer(ctx context.Context, query string) *answer.SafeAnswer
}

// RuleSource provides the current qualification rules.
type RuleSource interface {
	Rules() []qualify.Rule
}

// ContentStore is the read side of the content store.
type ContentStore interface {
	GetContent(ctx context.Context, hash string) ([]byte, error)
	ListApprovedDocuments(ctx context.Context) ([]*models.Document, error)
}

// DocumentIngester approves and archives documents.
type DocumentIngester interface {
	ReplaceText(ctx context.Context, name, text, approvedBy string) ([]*models.Document, error)
	ArchiveDocument(ctx context.Context, id string) error
}

// AuditReader reads back the audit log for one enquiry.
type AuditReader interface {
	Entries(ctx context.Context, enquiryID string) ([]models.AuditEntry, error)
}

// Services are the components the API exposes. Audit may be nil when the configured
// sink cannot be read back.
type Services struct {
	Enquiries EnquiryHandler
	Answers   Answerer
	Rules     RuleSource
	Store     ContentStore
	Ingest    DocumentIngester
	Audit     AuditReader
}

// Server is the HTTP server for the weave API.
type Server struct {
	svc    Services
	config *config.ServerConfig
	logger *zap.Logger
	server *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(svc Services, cfg *config.ServerConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{svc: svc, config: cfg, logger: logger}
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	timeout := s.config.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/enquiries", s.handleEnquiry)
		r.Post("/answers", s.handleAnswer)
		r.Post("/qualify", s.handleQualify)
		r.Get("/documents", s.handleListDocuments)
		r.Post("/documents", s.handleCreateDocument)
		r.Post("/documents/{id}/archive", s.handleArchiveDocument)
		r.Get("/content/{hash}", s.handleGetContent)
		r.Get("/audit/{enquiryID}", s.handleAudit)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
