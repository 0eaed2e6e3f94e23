// Package iwg1 parses IWG1 telemetry lines into validated records.
package iwg1

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/recon-hdob/internal/domain"
	"github.com/couchcryptid/recon-hdob/internal/forkjoin"
)

// Tag is the packet identifier that starts every IWG1 line.
const Tag = "IWG1"

// Column indices, counting the tag as column 0.
const (
	colTime        = 1
	colLat         = 2
	colLon         = 3
	colGPSAlt      = 4
	colWGSAlt      = 5
	colPressAlt    = 6
	colAmbientTemp = 20
	colDewPoint    = 21
	colStaticPress = 23
	colWindSpeed   = 26
	colWindDir     = 27

	// lastMappedCol is the highest column the converter reads; anything past
	// it is auxiliary.
	lastMappedCol = colWindDir
	minFields     = colLon + 1
)

// DefaultMaxExamples is how many rejected lines are kept verbatim.
const DefaultMaxExamples = 10

var timeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"20060102T150405",
	"20060102 150405",
}

// LineKind classifies a line that did not fail to parse.
type LineKind int

const (
	KindRecord LineKind = iota
	KindBlank
	KindHeader
)

// Diagnostics summarizes the lines a parse skipped.
type Diagnostics struct {
	TotalLines  int
	HeaderLines int
	BlankLines  int
	Skipped     int
	Reasons     map[string]int
	Examples    []*domain.ParseError
}

// Result is the outcome of parsing a whole input.
type Result struct {
	// Records are sorted by timestamp; records sharing a timestamp keep
	// their input order.
	Records     []domain.TelemetryRecord
	OutOfOrder  int
	Diagnostics Diagnostics
}

// Parser turns raw lines into telemetry records.
type Parser struct {
	maxExamples int
}

// Option configures a Parser.
type Option func(*Parser)

// WithMaxExamples sets how many rejected lines are retained for reporting.
func WithMaxExamples(n int) Option {
	return func(p *Parser) {
		p.maxExamples = n
	}
}

// NewParser creates a Parser.
func NewParser(opts ...Option) *Parser {
	p := &Parser{maxExamples: DefaultMaxExamples}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ReadLines reads every line of r. A conversion needs the whole flight in
// memory before bucketing starts.
func ReadLines(r io.Reader) ([]string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var lines []string
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read lines: %w", err)
	}
	return lines, nil
}

// Parse parses lines using up to workers contiguous chunks in parallel. The
// result is identical to a sequential parse.
func (p *Parser) Parse(ctx context.Context, lines []string, workers int) (*Result, error) {
	chunks := forkjoin.Split(len(lines), workers)

	parts, err := forkjoin.Run(ctx, chunks, workers, func(_ context.Context, _ int, span [2]int) (chunk, error) {
		return p.parseChunk(lines[span[0]:span[1]], span[0]), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse iwg1: %w", err)
	}

	res := &Result{Diagnostics: Diagnostics{
		TotalLines: len(lines),
		Reasons:    map[string]int{},
	}}
	for _, c := range parts {
		res.Records = append(res.Records, c.records...)
		res.Diagnostics.merge(c.diag, p.maxExamples)
	}

	var latest time.Time
	for i := range res.Records {
		res.Records[i].Seq = i
		if res.Records[i].Time.Before(latest) {
			res.OutOfOrder++
		} else {
			latest = res.Records[i].Time
		}
	}
	if res.OutOfOrder > 0 {
		slices.SortStableFunc(res.Records, func(a, b domain.TelemetryRecord) int {
			return a.Time.Compare(b.Time)
		})
	}
	return res, nil
}

type chunk struct {
	records []domain.TelemetryRecord
	diag    Diagnostics
}

func (p *Parser) parseChunk(lines []string, offset int) chunk {
	c := chunk{diag: Diagnostics{Reasons: map[string]int{}}}
	for i, raw := range lines {
		rec, kind, err := p.ParseLine(offset+i+1, raw)
		if err != nil {
			var pe *domain.ParseError
			if !errors.As(err, &pe) {
				pe = &domain.ParseError{Line: offset + i + 1, Reason: "unknown", Raw: raw, Err: err}
			}
			c.diag.Skipped++
			c.diag.Reasons[pe.Reason]++
			if len(c.diag.Examples) < p.maxExamples {
				c.diag.Examples = append(c.diag.Examples, pe)
			}
			continue
		}
		switch kind {
		case KindBlank:
			c.diag.BlankLines++
		case KindHeader:
			c.diag.HeaderLines++
		default:
			c.records = append(c.records, rec)
		}
	}
	return c
}

func (d *Diagnostics) merge(o Diagnostics, maxExamples int) {
	d.HeaderLines += o.HeaderLines
	d.BlankLines += o.BlankLines
	d.Skipped += o.Skipped
	for k, v := range o.Reasons {
		d.Reasons[k] += v
	}
	for _, ex := range o.Examples {
		if len(d.Examples) >= maxExamples {
			break
		}
		d.Examples = append(d.Examples, ex)
	}
}

// ParseLine parses one raw line. Blank and header lines return a kind other
// than KindRecord and no error; rejected lines return a *domain.ParseError.
func (p *Parser) ParseLine(lineNo int, raw string) (domain.TelemetryRecord, LineKind, error) {
	line := strings.TrimSpace(raw)
	if line == "" {
		return domain.TelemetryRecord{}, KindBlank, nil
	}

	parts := strings.Split(line, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if isHeader(parts) {
		return domain.TelemetryRecord{}, KindHeader, nil
	}

	fail := func(reason string, err error) (domain.TelemetryRecord, LineKind, error) {
		return domain.TelemetryRecord{}, KindRecord, &domain.ParseError{Line: lineNo, Reason: reason, Raw: raw, Err: err}
	}

	if parts[0] != Tag {
		return fail(domain.ReasonNotIWG1, fmt.Errorf("unexpected packet tag %q", parts[0]))
	}
	if len(parts) < minFields {
		return fail(domain.ReasonFieldCount, fmt.Errorf("expected at least %d fields, got %d", minFields, len(parts)))
	}

	ts, err := ParseTimestamp(parts[colTime])
	if err != nil {
		return fail(domain.ReasonTimestamp, err)
	}

	rec := domain.TelemetryRecord{Line: lineNo, Time: ts}

	if rec.Lat, err = optionalFloat(parts, colLat); err != nil {
		return fail(domain.ReasonNumeric, err)
	}
	if rec.Lon, err = optionalFloat(parts, colLon); err != nil {
		return fail(domain.ReasonNumeric, err)
	}
	if !rec.HasPosition() {
		return fail(domain.ReasonPosition, domain.ErrMissingPosition)
	}
	if math.Abs(*rec.Lat) > 90 || math.Abs(*rec.Lon) > 180 {
		return fail(domain.ReasonPosition, fmt.Errorf("%w: %g,%g", domain.ErrPositionRange, *rec.Lat, *rec.Lon))
	}

	optional := []struct {
		col int
		dst **float64
	}{
		{colPressAlt, &rec.PressAltM},
		{colAmbientTemp, &rec.TempC},
		{colDewPoint, &rec.DewPointC},
		{colStaticPress, &rec.StaticPressHPa},
		{colWindSpeed, &rec.WindSpeedMS},
		{colWindDir, &rec.WindDirDeg},
	}
	for _, o := range optional {
		if *o.dst, err = optionalFloat(parts, o.col); err != nil {
			return fail(domain.ReasonNumeric, err)
		}
	}

	gps, err := optionalFloat(parts, colGPSAlt)
	if err != nil {
		return fail(domain.ReasonNumeric, err)
	}
	wgs, err := optionalFloat(parts, colWGSAlt)
	if err != nil {
		return fail(domain.ReasonNumeric, err)
	}
	rec.GeoAltM = gps
	if rec.GeoAltM == nil {
		rec.GeoAltM = wgs
	}

	if len(parts) > lastMappedCol+1 {
		rec.AuxFields = len(parts) - lastMappedCol - 1
	}
	return rec, KindRecord, nil
}

// ParseTimestamp accepts the timestamp layouts seen in IWG1 archives and
// returns the instant in UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%w: unrecognized time format %q", domain.ErrMissingTimestamp, s)
}

// optionalFloat reads column col. Missing columns, blank cells, and
// non-finite tokens yield nil.
func optionalFloat(parts []string, col int) (*float64, error) {
	if col >= len(parts) {
		return nil, nil
	}
	s := parts[col]
	switch strings.ToLower(s) {
	case "", "nan", "inf", "+inf", "-inf":
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("column %d: %w", col, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, nil
	}
	return &v, nil
}

// isHeader recognizes a labels line, with or without the IWG1 tag.
func isHeader(parts []string) bool {
	if len(parts) > 0 && parts[0] == Tag {
		parts = parts[1:]
	}
	return len(parts) >= 3 &&
		strings.EqualFold(parts[1], "Lat") &&
		strings.EqualFold(parts[2], "Lon")
}
