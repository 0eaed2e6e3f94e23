package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "recon_hdob"

// Metrics holds the Prometheus counters, histograms, and gauges for IWG1 to
// HDOB conversion.
type Metrics struct {
	LinesRead            prometheus.Counter
	LinesSkipped         *prometheus.CounterVec // labels: reason
	RecordsParsed        prometheus.Counter
	RecordsOutsideWindow prometheus.Counter
	EmptyBuckets         prometheus.Counter
	ObservationsProduced prometheus.Counter
	Conversions          *prometheus.CounterVec // labels: outcome={success,error}

	ConversionDuration prometheus.Histogram
	SegmentDuration    prometheus.Histogram

	// Service metrics.
	ServiceRunning prometheus.Gauge
	ResultCache    *prometheus.CounterVec // labels: result={hit,miss}
	Published      prometheus.Counter
	PublishErrors  prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates metrics registered with reg. The CLI passes a
// private registry since it never serves /metrics.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	m := newMetrics()
	reg.MustRegister(
		m.LinesRead,
		m.LinesSkipped,
		m.RecordsParsed,
		m.RecordsOutsideWindow,
		m.EmptyBuckets,
		m.ObservationsProduced,
		m.Conversions,
		m.ConversionDuration,
		m.SegmentDuration,
		m.ServiceRunning,
		m.ResultCache,
		m.Published,
		m.PublishErrors,
	)
	return m
}

// NewMetricsForTesting creates Metrics that are not registered anywhere, so
// tests can build as many as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		LinesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_read_total",
			Help:      "Total IWG1 input lines read.",
		}),
		LinesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_skipped_total",
			Help:      "Input lines rejected by the parser, by reason.",
		}, []string{"reason"}),
		RecordsParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_parsed_total",
			Help:      "Telemetry records accepted by the parser.",
		}),
		RecordsOutsideWindow: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_outside_window_total",
			Help:      "Records dropped by the UTC time window.",
		}),
		EmptyBuckets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "empty_buckets_total",
			Help:      "Intervals inside the data span that held no records.",
		}),
		ObservationsProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_produced_total",
			Help:      "HDOB data lines produced.",
		}),
		Conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversions_total",
			Help:      "Conversion runs by outcome.",
		}, []string{"outcome"}),
		ConversionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "conversion_duration_seconds",
			Help:      "Duration of a complete conversion run.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		SegmentDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "segment_duration_seconds",
			Help:      "Time spent selecting and encoding one segment.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		ServiceRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "service_running",
			Help:      "1 when the conversion service is accepting work, 0 when shut down.",
		}),
		ResultCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "result_cache_total",
			Help:      "Conversion result cache lookups by result.",
		}, []string{"result"}),
		Published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_published_total",
			Help:      "HDOB observations written to Kafka.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Failed Kafka publish attempts.",
		}),
	}
}
