package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/recon-hdob/internal/config"
	"github.com/couchcryptid/recon-hdob/internal/domain"
	"github.com/couchcryptid/recon-hdob/internal/hdob"
	"github.com/couchcryptid/recon-hdob/internal/observability"
)

const (
	publishAttempts = 3
	initialBackoff  = 200 * time.Millisecond
	maxBackoff      = 5 * time.Second
)

// Observation is the payload published for each HDOB data line.
type Observation struct {
	Mission string `json:"mission"`
	Line    string `json:"line"`
	hdob.PlotPoint
}

// messageWriter is the subset of *kafkago.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes HDOB observations to a Kafka topic, one message per data
// line, keyed by mission so a flight stays on one partition in order.
type Writer struct {
	writer  messageWriter
	brokers []string
	logger  *slog.Logger
	metrics *observability.Metrics
	backoff time.Duration
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchFlushInterval,
	}
	return &Writer{
		writer:  w,
		brokers: cfg.KafkaBrokers,
		logger:  logger,
		metrics: metrics,
		backoff: initialBackoff,
	}
}

// Publish writes one message per record. plot must be the plot feed of the
// same records. Transient failures are retried with exponential backoff.
func (w *Writer) Publish(ctx context.Context, mission string, records []domain.HDOBRecord, plot []hdob.PlotPoint) error {
	if len(records) == 0 {
		return nil
	}
	if len(plot) != len(records) {
		return fmt.Errorf("publish: %d records but %d plot points", len(records), len(plot))
	}

	producedAt := domain.Clock().Now().UTC()
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := serializeToMessage(mission, records[i], plot[i], producedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}

	backoff := w.backoff
	var err error
	for attempt := 1; attempt <= publishAttempts; attempt++ {
		if err = w.writer.WriteMessages(ctx, msgs...); err == nil {
			w.metrics.Published.Add(float64(len(msgs)))
			return nil
		}
		w.metrics.PublishErrors.Inc()
		if attempt == publishAttempts || ctx.Err() != nil {
			break
		}
		w.logger.Warn("publish failed, retrying",
			"error", err,
			"attempt", attempt,
			"messages", len(msgs),
			"backoff", backoff,
		)
		if !retry.SleepWithContext(ctx, backoff) {
			break
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
	return fmt.Errorf("publish %d observations: %w", len(msgs), err)
}

// CheckReadiness dials the first reachable broker.
func (w *Writer) CheckReadiness(ctx context.Context) error {
	var lastErr error
	for _, b := range w.brokers {
		conn, err := kafkago.DialContext(ctx, "tcp", b)
		if err != nil {
			lastErr = err
			continue
		}
		return conn.Close()
	}
	if lastErr == nil {
		return errors.New("no kafka brokers configured")
	}
	return fmt.Errorf("kafka unreachable: %w", lastErr)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals one observation into a Kafka message.
func serializeToMessage(mission string, rec domain.HDOBRecord, pt hdob.PlotPoint, producedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(Observation{Mission: mission, Line: rec.Line, PlotPoint: pt})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize observation: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(mission),
		Value: data,
		Time:  rec.Time,
		Headers: []kafkago.Header{
			{Key: "observed_at", Value: []byte(rec.Time.UTC().Format(time.RFC3339))},
			{Key: "produced_at", Value: []byte(producedAt.Format(time.RFC3339))},
		},
	}, nil
}
