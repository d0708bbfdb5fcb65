// Package server exposes the email webhook and the admin review API over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/raphaelgruber/contractflow/internal/metrics"
	"github.com/raphaelgruber/contractflow/internal/models"
	"github.com/raphaelgruber/contractflow/internal/service"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Header names.
const (
	HeaderAPIKey         = "X-API-Key"
	HeaderAdminKey       = "X-Admin-Key"
	HeaderIdempotencyKey = "X-Idempotency-Key"
)

const serviceName = "contractflow"

// PipelineSubmitter runs an uploaded document through the pipeline.
type PipelineSubmitter interface {
	SubmitAndWait(ctx context.Context, sender, subject, filePath, idempotencyKey string) (service.Outcome, error)
	InFlight() int
}

// ReviewQueue is the admin view of the review queue.
type ReviewQueue interface {
	Pending(ctx context.Context) ([]models.ReviewItem, error)
	Approved(ctx context.Context, limit, offset int) ([]models.ProcessedContract, error)
	Approve(ctx context.Context, reviewID string) (*models.ReviewItem, error)
	Reject(ctx context.Context, reviewID string) (*models.ReviewItem, error)
}

// Options configures a Server.
type Options struct {
	Pipeline PipelineSubmitter
	Reviews  ReviewQueue
	Metrics  *metrics.Collector
	Logger   *slog.Logger

	WebhookSecret  string
	AdminKey       string
	UploadDir      string
	MaxUploadBytes int64

	// WriteTimeout must exceed the executor's sync wait (default 60s).
	WriteTimeout time.Duration
}

// Server wraps the HTTP router with its dependencies and lifecycle management.
type Server struct {
	opts    Options
	router  chi.Router
	handler http.Handler
	logger  *slog.Logger
}

// New creates the server and registers all routes.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 60 * time.Second
	}

	s := &Server{opts: opts, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware(logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/stats", s.handleStats)

	r.With(RequireAPIKey(logger, HeaderAPIKey, opts.WebhookSecret, "webhook")).
		Post("/email-webhook", s.handleEmailWebhook)

	r.Group(func(r chi.Router) {
		r.Use(RequireAPIKey(logger, HeaderAdminKey, opts.AdminKey, "admin"))
		r.Get("/review-queue", s.handleReviewQueue)
		r.Get("/approved-contracts", s.handleApprovedContracts)
		r.Post("/approve/{id}", s.handleResolve(true))
		r.Post("/reject/{id}", s.handleResolve(false))
	})

	s.router = r
	s.handler = otelhttp.NewHandler(r, serviceName)
	return s
}

// Handler returns the instrumented root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves on addr and blocks until ctx is cancelled, then shuts down
// gracefully within shutdownTimeout.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      s.opts.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": serviceName})
}

type statsResponse struct {
	metrics.Snapshot
	InFlight int `json:"in_flight"`
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	resp := statsResponse{Snapshot: s.opts.Metrics.Snapshot()}
	if s.opts.Pipeline != nil {
		resp.InFlight = s.opts.Pipeline.InFlight()
	}
	writeJSON(w, http.StatusOK, resp)
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}
