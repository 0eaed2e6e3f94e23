package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/recon-hdob/internal/domain"
	"github.com/couchcryptid/recon-hdob/internal/hdob"
)

// StandardIntervals are the HDOB reporting intervals accepted unless
// HDOB_ALLOW_ANY_INTERVAL is set.
var StandardIntervals = []time.Duration{10 * time.Second, 30 * time.Second, 60 * time.Second, 120 * time.Second}

const maxWorkers = 256

// Config holds all service and CLI settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Conversion defaults.
	Interval         time.Duration
	AllowAnyInterval bool
	Workers          int
	Anchor           domain.SelectionAnchor
	Flags            string
	LinesPerMessage  int
	WMOHeader        string
	Center           string

	// Input limits.
	MaxBodyBytes int64
	FetchTimeout time.Duration
	CacheSize    int

	// Kafka publication of produced observations.
	KafkaEnabled       bool
	KafkaBrokers       []string
	KafkaSinkTopic     string
	BatchSize          int
	BatchFlushInterval time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}
	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}
	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	allowAny := os.Getenv("HDOB_ALLOW_ANY_INTERVAL") == "true"
	interval, err := ParseInterval(sharedcfg.EnvOrDefault("HDOB_INTERVAL", "30s"), allowAny)
	if err != nil {
		return nil, fmt.Errorf("invalid HDOB_INTERVAL: %w", err)
	}

	workers, err := parseIntRange("HDOB_WORKERS", 4, 1, maxWorkers)
	if err != nil {
		return nil, err
	}
	linesPerMessage, err := parseIntRange("HDOB_LINES_PER_MESSAGE", hdob.DefaultLinesPerMessage, 1, 99)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parseIntRange("CACHE_SIZE", 32, 0, 10000)
	if err != nil {
		return nil, err
	}
	maxBody, err := parseIntRange("MAX_BODY_BYTES", 64<<20, 1, 1<<30)
	if err != nil {
		return nil, err
	}

	fetchTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("FETCH_TIMEOUT", "60s"))
	if err != nil || fetchTimeout <= 0 {
		return nil, errors.New("invalid FETCH_TIMEOUT")
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		Interval:         interval,
		AllowAnyInterval: allowAny,
		Workers:          workers,
		Anchor:           domain.SelectionAnchor(sharedcfg.EnvOrDefault("HDOB_ANCHOR", string(domain.AnchorStart))),
		Flags:            sharedcfg.EnvOrDefault("HDOB_FLAGS", domain.DefaultFlags),
		LinesPerMessage:  linesPerMessage,
		WMOHeader:        sharedcfg.EnvOrDefault("HDOB_WMO_HEADER", hdob.DefaultWMOHeader),
		Center:           sharedcfg.EnvOrDefault("HDOB_CENTER", hdob.DefaultCenter),

		MaxBodyBytes: int64(maxBody),
		FetchTimeout: fetchTimeout,
		CacheSize:    cacheSize,

		KafkaEnabled:       os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "hdob-observations"),
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
	}

	if err := cfg.Job().Validate(); err != nil {
		return nil, fmt.Errorf("invalid conversion defaults: %w", err)
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if cfg.KafkaEnabled && cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}
	return cfg, nil
}

// Job returns the default conversion job: configured interval, workers,
// anchor, and flags, with no time window.
func (c *Config) Job() domain.ConversionJob {
	return domain.ConversionJob{
		Interval: c.Interval,
		Workers:  c.Workers,
		Anchor:   c.Anchor,
		Flags:    c.Flags,
	}
}

// MessageOptions returns the configured HDOB message framing.
func (c *Config) MessageOptions() hdob.MessageOptions {
	return hdob.MessageOptions{
		WMOHeader:       c.WMOHeader,
		Center:          c.Center,
		Mission:         hdob.DefaultMission,
		LinesPerMessage: c.LinesPerMessage,
	}
}

// ParseInterval accepts a Go duration ("30s", "2m") or a bare number of
// seconds. Unless allowAny is set, only StandardIntervals are accepted.
func ParseInterval(s string, allowAny bool) (time.Duration, error) {
	s = strings.TrimSpace(s)
	var d time.Duration
	if n, err := strconv.Atoi(s); err == nil {
		d = time.Duration(n) * time.Second
	} else if d, err = time.ParseDuration(s); err != nil {
		return 0, fmt.Errorf("%q is not a duration", s)
	}
	if d < time.Second || d%time.Second != 0 {
		return 0, fmt.Errorf("%s is not a whole number of seconds", d)
	}
	if !allowAny && !slices.Contains(StandardIntervals, d) {
		return 0, fmt.Errorf("%s is not one of 10s, 30s, 60s, 120s", d)
	}
	return d, nil
}

func parseIntRange(key string, def, lo, hi int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s: must be %d-%d", key, lo, hi)
	}
	return n, nil
}
