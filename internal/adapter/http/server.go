package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/recon-hdob/internal/domain"
	"github.com/couchcryptid/recon-hdob/internal/hdob"
	"github.com/couchcryptid/recon-hdob/internal/service"
)

const defaultMaxBodyBytes = 64 << 20

// Converter runs conversions and reports readiness.
type Converter interface {
	sharedobs.ReadinessChecker
	Convert(ctx context.Context, req service.Request) (*service.Response, error)
}

// Options are the per-request defaults and limits.
type Options struct {
	// Job supplies interval, workers, anchor, and flags when the request
	// does not override them.
	Job     domain.ConversionJob
	Message hdob.MessageOptions

	AllowAnyInterval bool
	MaxBodyBytes     int64
}

// Server exposes health, readiness, metrics, and conversion HTTP endpoints.
type Server struct {
	httpServer *http.Server
	conv       Converter
	opts       Options
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics,
// POST /v1/convert, and POST /v1/plot routes.
func NewServer(addr string, conv Converter, opts Options, logger *slog.Logger) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       60 * time.Second,
			WriteTimeout:      120 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		conv:   conv,
		opts:   opts,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(conv))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /v1/convert", s.handleConvert)
	mux.HandleFunc("POST /v1/plot", s.handlePlot)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}
