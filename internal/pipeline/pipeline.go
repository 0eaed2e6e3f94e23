// Package pipeline turns IWG1 lines into an ordered HDOB record sequence:
// parse, filter by time window, partition into buckets, then select and
// encode segments of buckets in parallel and merge them in segment order.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/couchcryptid/recon-hdob/internal/domain"
	"github.com/couchcryptid/recon-hdob/internal/forkjoin"
	"github.com/couchcryptid/recon-hdob/internal/hdob"
	"github.com/couchcryptid/recon-hdob/internal/iwg1"
	"github.com/couchcryptid/recon-hdob/internal/observability"
)

// Parser turns raw input lines into time-sorted telemetry records.
type Parser interface {
	Parse(ctx context.Context, lines []string, workers int) (*iwg1.Result, error)
}

// SegmentProcessor selects and encodes the buckets of one segment.
type SegmentProcessor interface {
	Process(ctx context.Context, seg Segment, job domain.ConversionJob) ([]domain.HDOBRecord, error)
}

// Result is the output of one conversion run.
type Result struct {
	Records []domain.HDOBRecord
	Plot    []hdob.PlotPoint
	Summary Summary
}

// Converter runs conversion jobs. It holds no per-run state and is safe for
// concurrent use.
type Converter struct {
	parser    Parser
	processor SegmentProcessor
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// Option configures a Converter.
type Option func(*Converter)

// WithParser replaces the IWG1 parser.
func WithParser(p Parser) Option {
	return func(c *Converter) { c.parser = p }
}

// WithProcessor replaces the segment processor.
func WithProcessor(sp SegmentProcessor) Option {
	return func(c *Converter) { c.processor = sp }
}

// New creates a Converter with the standard parser and transformer.
func New(logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Converter {
	c := &Converter{
		parser:    iwg1.NewParser(),
		processor: NewTransformer(logger),
		logger:    logger,
		metrics:   metrics,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Convert parses lines and converts them according to job. The job is
// validated before any line is read, so a bad window fails fast with a
// *domain.FilterError.
func (c *Converter) Convert(ctx context.Context, lines []string, job domain.ConversionJob) (*Result, error) {
	start := domain.Clock().Now()
	if err := job.Validate(); err != nil {
		c.metrics.Conversions.WithLabelValues("error").Inc()
		return nil, err
	}

	parsed, err := c.parser.Parse(ctx, lines, job.Workers)
	if err != nil {
		c.metrics.Conversions.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("parse: %w", err)
	}
	c.recordParse(parsed)

	res, err := c.run(ctx, parsed.Records, job)
	if err != nil {
		c.metrics.Conversions.WithLabelValues("error").Inc()
		return nil, err
	}
	res.Summary.addDiagnostics(parsed.Diagnostics)
	res.Summary.OutOfOrder = parsed.OutOfOrder
	c.finish(res, start)
	return res, nil
}

// ConvertRecords converts records that were already parsed. Records are
// sorted by time if needed; Seq breaks ties between equal timestamps, so
// callers building records by hand should number them in input order.
func (c *Converter) ConvertRecords(ctx context.Context, records []domain.TelemetryRecord, job domain.ConversionJob) (*Result, error) {
	start := domain.Clock().Now()
	if err := job.Validate(); err != nil {
		c.metrics.Conversions.WithLabelValues("error").Inc()
		return nil, err
	}
	if err := checkPositions(records); err != nil {
		c.metrics.Conversions.WithLabelValues("error").Inc()
		return nil, err
	}
	sorted := slices.IsSortedFunc(records, func(a, b domain.TelemetryRecord) int {
		return a.Time.Compare(b.Time)
	})
	if !sorted {
		records = slices.Clone(records)
		slices.SortStableFunc(records, func(a, b domain.TelemetryRecord) int {
			return a.Time.Compare(b.Time)
		})
	}

	res, err := c.run(ctx, records, job)
	if err != nil {
		c.metrics.Conversions.WithLabelValues("error").Inc()
		return nil, err
	}
	c.finish(res, start)
	return res, nil
}

// checkPositions enforces what the parser guarantees for records built by
// other callers: every record has a position within physical range.
func checkPositions(records []domain.TelemetryRecord) error {
	for _, r := range records {
		if !r.HasPosition() {
			return &domain.EncodingError{Line: r.Line, Err: domain.ErrMissingPosition}
		}
		if math.Abs(*r.Lat) > 90 || math.Abs(*r.Lon) > 180 {
			return &domain.EncodingError{Line: r.Line, Err: fmt.Errorf("%w: %g,%g", domain.ErrPositionRange, *r.Lat, *r.Lon)}
		}
	}
	return nil
}

func (c *Converter) run(ctx context.Context, records []domain.TelemetryRecord, job domain.ConversionJob) (*Result, error) {
	kept, outside := FilterRecords(records, job.Window)
	buckets, empty := Partition(kept, job.Interval)
	segs := Segments(buckets, job.Workers)

	c.metrics.RecordsOutsideWindow.Add(float64(outside))
	c.metrics.EmptyBuckets.Add(float64(empty))
	c.logger.Debug("partitioned",
		"records", len(kept),
		"outside_window", outside,
		"buckets", len(buckets),
		"empty_buckets", empty,
		"segments", len(segs),
	)

	clock := domain.Clock()
	parts, err := forkjoin.Run(ctx, segs, job.Workers, func(ctx context.Context, _ int, seg Segment) ([]domain.HDOBRecord, error) {
		t0 := clock.Now()
		out, err := c.processor.Process(ctx, seg, job)
		c.metrics.SegmentDuration.Observe(clock.Since(t0).Seconds())
		return out, err
	})
	if err != nil {
		return nil, fmt.Errorf("encode segments: %w", err)
	}

	res := &Result{}
	for _, p := range parts {
		res.Records = append(res.Records, p...)
	}
	res.Plot = make([]hdob.PlotPoint, 0, len(res.Records))
	for _, r := range res.Records {
		pt, err := hdob.NewPlotPoint(r)
		if err != nil {
			return nil, fmt.Errorf("plot feed for %s: %w", r.Time.Format("15:04:05"), err)
		}
		res.Plot = append(res.Plot, pt)
	}

	res.Summary = Summary{
		Records:       len(records),
		OutsideWindow: outside,
		Buckets:       len(buckets),
		EmptyBuckets:  empty,
		Produced:      len(res.Records),
		Segments:      len(segs),
		Workers:       job.Workers,
		Digest:        Digest(res.Records),
	}
	return res, nil
}

func (c *Converter) recordParse(parsed *iwg1.Result) {
	d := parsed.Diagnostics
	c.metrics.LinesRead.Add(float64(d.TotalLines))
	c.metrics.RecordsParsed.Add(float64(len(parsed.Records)))
	for reason, n := range d.Reasons {
		c.metrics.LinesSkipped.WithLabelValues(reason).Add(float64(n))
	}
	if d.Skipped == 0 {
		return
	}
	examples := make([]string, 0, len(d.Examples))
	for _, ex := range d.Examples {
		examples = append(examples, ex.Error())
	}
	c.logger.Warn("skipped malformed lines",
		"skipped", d.Skipped,
		"reasons", d.Reasons,
		"examples", examples,
	)
}

func (c *Converter) finish(res *Result, start time.Time) {
	clock := domain.Clock()
	res.Summary.StartedAt = start
	res.Summary.Duration = clock.Since(start)

	c.metrics.ObservationsProduced.Add(float64(res.Summary.Produced))
	c.metrics.ConversionDuration.Observe(res.Summary.Duration.Seconds())
	c.metrics.Conversions.WithLabelValues("success").Inc()
	c.logger.Info("conversion complete", "summary", res.Summary)
}
