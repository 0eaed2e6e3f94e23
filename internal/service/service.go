// Package service runs conversions for the HTTP daemon. It caches results by
// input content, collapses identical concurrent requests, and publishes
// fresh observations to Kafka when a publisher is configured.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"golang.org/x/sync/singleflight"

	"github.com/couchcryptid/recon-hdob/internal/domain"
	"github.com/couchcryptid/recon-hdob/internal/hdob"
	"github.com/couchcryptid/recon-hdob/internal/observability"
	"github.com/couchcryptid/recon-hdob/internal/pipeline"
)

// Converter runs one conversion job over raw IWG1 lines.
type Converter interface {
	Convert(ctx context.Context, lines []string, job domain.ConversionJob) (*pipeline.Result, error)
}

// Publisher delivers produced observations downstream.
type Publisher interface {
	Publish(ctx context.Context, mission string, records []domain.HDOBRecord, plot []hdob.PlotPoint) error
}

// Request is one conversion submitted to the service.
type Request struct {
	Lines   []string
	Job     domain.ConversionJob
	Mission string
}

// Response carries the result and how it was obtained.
type Response struct {
	Result *pipeline.Result
	// Cached is true when the result was served without converting.
	Cached bool
	// Published is true when this conversion's observations were handed to
	// the publisher. Concurrent identical requests share one publication.
	Published bool
}

// Service is safe for concurrent use.
type Service struct {
	conv      Converter
	publisher Publisher
	cache     *resultCache
	inflight  singleflight.Group
	ready     atomic.Bool
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher publishes every freshly converted result.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// New creates a Service holding at most cacheSize results. A cacheSize of
// zero disables caching.
func New(conv Converter, cacheSize int, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Service {
	s := &Service{
		conv:    conv,
		cache:   newResultCache(cacheSize),
		logger:  logger,
		metrics: metrics,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start marks the service as accepting work.
func (s *Service) Start() {
	s.ready.Store(true)
	s.metrics.ServiceRunning.Set(1)
	s.logger.Info("conversion service started", "cache_size", s.cache.capacity, "publish", s.publisher != nil)
}

// Stop marks the service as draining; readiness fails from now on.
func (s *Service) Stop() {
	s.ready.Store(false)
	s.metrics.ServiceRunning.Set(0)
}

// CheckReadiness reports whether the service accepts work and, when
// publishing, whether the publisher can reach its brokers.
func (s *Service) CheckReadiness(ctx context.Context) error {
	if !s.ready.Load() {
		return errors.New("conversion service is not accepting work")
	}
	if rc, ok := s.publisher.(sharedobs.ReadinessChecker); ok {
		return rc.CheckReadiness(ctx)
	}
	return nil
}

// Convert serves req from the cache or runs it. Fresh results are published
// when a publisher is configured; a publish failure is logged and counted
// but does not fail the conversion. A caller whose ctx ends stops waiting;
// the conversion continues for the other callers and fills the cache.
func (s *Service) Convert(ctx context.Context, req Request) (*Response, error) {
	if err := req.Job.Validate(); err != nil {
		return nil, err
	}

	key := cacheKey(req.Lines, req.Job)
	if res, ok := s.cache.get(key); ok {
		s.metrics.ResultCache.WithLabelValues("hit").Inc()
		return &Response{Result: res, Cached: true}, nil
	}
	s.metrics.ResultCache.WithLabelValues("miss").Inc()

	// Callers sharing a key share one conversion, so it must outlive any
	// single caller's cancellation.
	shared := context.WithoutCancel(ctx)
	ch := s.inflight.DoChan(key, func() (any, error) {
		res, err := s.conv.Convert(shared, req.Lines, req.Job)
		if err != nil {
			return nil, err
		}
		s.cache.add(key, res)
		return &Response{Result: res, Published: s.publish(shared, req.Mission, res)}, nil
	})

	var r singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r = <-ch:
	}
	if r.Err != nil {
		return nil, r.Err
	}
	resp := *r.Val.(*Response)
	return &resp, nil
}

func (s *Service) publish(ctx context.Context, mission string, res *pipeline.Result) bool {
	if s.publisher == nil {
		return false
	}
	if err := s.publisher.Publish(ctx, mission, res.Records, res.Plot); err != nil {
		s.logger.Error("publish observations failed",
			"error", err,
			"mission", mission,
			"observations", len(res.Records),
		)
		return false
	}
	return true
}
