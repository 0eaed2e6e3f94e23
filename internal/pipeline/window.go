package pipeline

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/recon-hdob/internal/domain"
	"github.com/couchcryptid/recon-hdob/internal/iwg1"
)

// ParseBound reads one end of a time window. Accepted forms are a UTC time
// of day (HH:MM, HH:MM:SS, HHMM, HHMMSS) or an absolute timestamp in any
// layout the IWG1 parser accepts. An empty string is an open bound.
func ParseBound(s string) (*domain.Bound, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if ofDay, ok, err := parseTimeOfDay(s); ok {
		if err != nil {
			return nil, err
		}
		return &domain.Bound{OfDay: ofDay, TimeOfDay: true, Text: s}, nil
	}
	at, err := iwg1.ParseTimestamp(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is neither a time of day nor a timestamp", domain.ErrInvalidWindow, s)
	}
	return &domain.Bound{At: at, Text: s}, nil
}

// ParseWindow builds a window from start and end strings. Failures are
// *domain.FilterError naming the offending bound.
func ParseWindow(start, end string) (domain.TimeWindow, error) {
	from, err := ParseBound(start)
	if err != nil {
		return domain.TimeWindow{}, &domain.FilterError{Bound: "start", Err: err}
	}
	to, err := ParseBound(end)
	if err != nil {
		return domain.TimeWindow{}, &domain.FilterError{Bound: "end", Err: err}
	}
	w := domain.TimeWindow{From: from, To: to}
	if err := w.Validate(); err != nil {
		return domain.TimeWindow{}, err
	}
	return w, nil
}

// parseTimeOfDay reports ok when s has a time-of-day shape; err is set when
// the shape matched but a component is out of range.
func parseTimeOfDay(s string) (time.Duration, bool, error) {
	var parts []string
	switch {
	case strings.Contains(s, ":"):
		parts = strings.Split(s, ":")
		if len(parts) != 2 && len(parts) != 3 {
			return 0, false, nil
		}
	case len(s) == 4 || len(s) == 6:
		for i := 0; i < len(s); i += 2 {
			parts = append(parts, s[i:i+2])
		}
	default:
		return 0, false, nil
	}

	vals := [3]int{}
	for i, p := range parts {
		if len(p) == 0 || len(p) > 2 {
			return 0, false, nil
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, false, nil
		}
		vals[i] = n
	}
	hh, mm, ss := vals[0], vals[1], vals[2]
	if hh > 23 || mm > 59 || ss > 59 {
		return 0, true, fmt.Errorf("%w: time of day %q out of range", domain.ErrInvalidWindow, s)
	}
	return time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute + time.Duration(ss)*time.Second, true, nil
}

// resolveWindow pins time-of-day bounds to the UTC date of first. An end
// that would fall before the start, or before the first record when there
// is no start, moves to the next day so a flight crossing midnight keeps
// its tail. A pinned window that ends before first is retried on the next
// day, so a window entirely after midnight selects the post-midnight part
// of the flight.
func resolveWindow(w domain.TimeWindow, first, last time.Time) (from, to *time.Time) {
	first = first.UTC()
	day := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, time.UTC)
	from, to = pinWindow(w, day, first)
	if to == nil || !to.Before(first) {
		return from, to
	}
	nf, nt := pinWindow(w, day.Add(24*time.Hour), first)
	if (nf == nil || !nf.After(last)) && !nt.Before(first) {
		return nf, nt
	}
	return from, to
}

func pinWindow(w domain.TimeWindow, day, first time.Time) (from, to *time.Time) {
	pin := func(b *domain.Bound) *time.Time {
		if b == nil {
			return nil
		}
		t := b.At
		if b.TimeOfDay {
			t = day.Add(b.OfDay)
		}
		return &t
	}

	from, to = pin(w.From), pin(w.To)
	if to != nil && w.To.TimeOfDay {
		floor := first
		if from != nil {
			floor = *from
		}
		if to.Before(floor) {
			next := to.Add(24 * time.Hour)
			to = &next
		}
	}
	return from, to
}

// FilterRecords keeps records whose timestamps lie in the window, inclusive
// on both ends, preserving order. records must be sorted by time.
func FilterRecords(records []domain.TelemetryRecord, w domain.TimeWindow) (kept []domain.TelemetryRecord, outside int) {
	if w.IsZero() || len(records) == 0 {
		return records, 0
	}
	from, to := resolveWindow(w, records[0].Time, records[len(records)-1].Time)

	kept = make([]domain.TelemetryRecord, 0, len(records))
	for _, r := range records {
		if from != nil && r.Time.Before(*from) {
			continue
		}
		if to != nil && r.Time.After(*to) {
			continue
		}
		kept = append(kept, r)
	}
	return kept, len(records) - len(kept)
}
