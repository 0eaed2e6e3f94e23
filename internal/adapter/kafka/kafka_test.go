package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/recon-hdob/internal/config"
	"github.com/couchcryptid/recon-hdob/internal/domain"
	"github.com/couchcryptid/recon-hdob/internal/hdob"
	"github.com/couchcryptid/recon-hdob/internal/observability"
)

const line = "151000 2530N 08015W 6968 03048 9912 +124 +091 140040 045 /// /// 00"

var observedAt = time.Date(2024, 9, 26, 15, 10, 0, 0, time.UTC)

type fakeWriter struct {
	failures int
	calls    int
	written  []kafkago.Message
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("leader not available")
	}
	f.written = append(f.written, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func testWriter(fw *fakeWriter) (*Writer, *observability.Metrics) {
	m := observability.NewMetricsForTesting()
	return &Writer{
		writer:  fw,
		logger:  observability.DiscardLogger(),
		metrics: m,
		backoff: time.Millisecond,
	}, m
}

func records(t *testing.T) ([]domain.HDOBRecord, []hdob.PlotPoint) {
	t.Helper()
	rec := domain.HDOBRecord{Time: observedAt, Line: line}
	pt, err := hdob.NewPlotPoint(rec)
	require.NoError(t, err)
	return []domain.HDOBRecord{rec}, []hdob.PlotPoint{pt}
}

func TestSerializeToMessage(t *testing.T) {
	recs, plot := records(t)
	produced := time.Date(2024, 9, 27, 0, 0, 0, 0, time.UTC)

	msg, err := serializeToMessage("AF309 1309A HELENE", recs[0], plot[0], produced)
	require.NoError(t, err)

	assert.Equal(t, []byte("AF309 1309A HELENE"), msg.Key)
	assert.Equal(t, observedAt, msg.Time)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "observed_at", msg.Headers[0].Key)
	assert.Equal(t, []byte("2024-09-26T15:10:00Z"), msg.Headers[0].Value)
	assert.Equal(t, "produced_at", msg.Headers[1].Key)
	assert.Equal(t, []byte("2024-09-27T00:00:00Z"), msg.Headers[1].Value)

	var obs Observation
	require.NoError(t, json.Unmarshal(msg.Value, &obs))
	assert.Equal(t, line, obs.Line)
	assert.Equal(t, "AF309 1309A HELENE", obs.Mission)
	assert.InDelta(t, 25.5, obs.Lat, 1e-9)
	assert.InDelta(t, -80.25, obs.Lon, 1e-9)
	require.NotNil(t, obs.WindSpeedKt)
	assert.InDelta(t, 40, *obs.WindSpeedKt, 0)
	assert.JSONEq(t, `{"mission":"AF309 1309A HELENE","line":"`+line+`","time":"2024-09-26T15:10:00Z","lat":25.5,"lon":-80.25,"wind_dir_deg":140,"wind_speed_kt":40,"surface_pressure_hpa":991.2}`, string(msg.Value))
}

func TestPublish_RetriesThenSucceeds(t *testing.T) {
	fake := clockwork.NewFakeClockAt(time.Date(2024, 9, 27, 1, 2, 3, 0, time.UTC))
	domain.SetClock(fake)
	t.Cleanup(func() { domain.SetClock(nil) })

	fw := &fakeWriter{failures: 2}
	w, m := testWriter(fw)
	recs, plot := records(t)

	require.NoError(t, w.Publish(context.Background(), "AFXXX 0000A INVEST", recs, plot))
	assert.Equal(t, 3, fw.calls)
	require.Len(t, fw.written, 1)
	assert.Equal(t, []byte("2024-09-27T01:02:03Z"), fw.written[0].Headers[1].Value)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Published), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.PublishErrors), 0)
}

func TestPublish_GivesUp(t *testing.T) {
	fw := &fakeWriter{failures: publishAttempts}
	w, m := testWriter(fw)
	recs, plot := records(t)

	err := w.Publish(context.Background(), "AFXXX 0000A INVEST", recs, plot)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")
	assert.Equal(t, publishAttempts, fw.calls)
	assert.Zero(t, testutil.ToFloat64(m.Published))
}

func TestPublish_Empty(t *testing.T) {
	fw := &fakeWriter{}
	w, _ := testWriter(fw)
	require.NoError(t, w.Publish(context.Background(), "m", nil, nil))
	assert.Zero(t, fw.calls)
}

func TestPublish_MismatchedPlot(t *testing.T) {
	w, _ := testWriter(&fakeWriter{})
	recs, _ := records(t)
	assert.Error(t, w.Publish(context.Background(), "m", recs, nil))
}

func TestNewWriter_UsesBatchSettings(t *testing.T) {
	cfg := &config.Config{
		KafkaBrokers:       []string{"localhost:9092"},
		KafkaSinkTopic:     "hdob-observations",
		BatchSize:          25,
		BatchFlushInterval: 250 * time.Millisecond,
	}
	w := NewWriter(cfg, observability.DiscardLogger(), observability.NewMetricsForTesting())
	kw, ok := w.writer.(*kafkago.Writer)
	require.True(t, ok)
	assert.Equal(t, "hdob-observations", kw.Topic)
	assert.Equal(t, 25, kw.BatchSize)
	assert.Equal(t, 250*time.Millisecond, kw.BatchTimeout)
	require.NoError(t, w.Close())
}

func TestCheckReadiness_NoBrokers(t *testing.T) {
	w, _ := testWriter(&fakeWriter{})
	assert.Error(t, w.CheckReadiness(context.Background()))
}
