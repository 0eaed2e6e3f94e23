package pipeline

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/couchcryptid/recon-hdob/internal/domain"
	"github.com/couchcryptid/recon-hdob/internal/iwg1"
)

// ParseExample is a rejected input line kept for the run report.
type ParseExample struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
	Raw    string `json:"raw"`
	Error  string `json:"error"`
}

// Summary reports what a conversion run did.
type Summary struct {
	TotalLines    int            `json:"total_lines"`
	HeaderLines   int            `json:"header_lines"`
	BlankLines    int            `json:"blank_lines"`
	SkippedLines  int            `json:"skipped_lines"`
	SkipReasons   map[string]int `json:"skip_reasons,omitempty"`
	ParseExamples []ParseExample `json:"parse_examples,omitempty"`

	Records       int `json:"records"`
	OutOfOrder    int `json:"out_of_order"`
	OutsideWindow int `json:"outside_window"`
	Buckets       int `json:"buckets"`
	EmptyBuckets  int `json:"empty_buckets"`
	Produced      int `json:"produced"`
	Segments      int `json:"segments"`
	Workers       int `json:"workers"`

	// Digest is the xxhash64 of the data lines, each followed by a newline.
	// Equal digests mean byte-identical HDOB output.
	Digest    string        `json:"digest"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
}

func (s *Summary) addDiagnostics(d iwg1.Diagnostics) {
	s.TotalLines = d.TotalLines
	s.HeaderLines = d.HeaderLines
	s.BlankLines = d.BlankLines
	s.SkippedLines = d.Skipped
	s.SkipReasons = d.Reasons
	for _, ex := range d.Examples {
		pe := ParseExample{Line: ex.Line, Reason: ex.Reason, Raw: ex.Raw}
		if ex.Err != nil {
			pe.Error = ex.Err.Error()
		}
		s.ParseExamples = append(s.ParseExamples, pe)
	}
}

// LogValue groups the counters for structured logging.
func (s Summary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("total_lines", s.TotalLines),
		slog.Int("skipped_lines", s.SkippedLines),
		slog.Int("records", s.Records),
		slog.Int("outside_window", s.OutsideWindow),
		slog.Int("buckets", s.Buckets),
		slog.Int("empty_buckets", s.EmptyBuckets),
		slog.Int("produced", s.Produced),
		slog.Int("segments", s.Segments),
		slog.String("digest", s.Digest),
		slog.Duration("duration", s.Duration),
	)
}

// Digest hashes the data lines the same way Summary.Digest does.
func Digest(records []domain.HDOBRecord) string {
	h := xxhash.New()
	for _, r := range records {
		_, _ = h.WriteString(r.Line)
		_, _ = h.WriteString("\n")
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
