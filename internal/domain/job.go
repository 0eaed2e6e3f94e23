package domain

import (
	"fmt"
	"time"
)

// SelectionAnchor is the reference point inside a bucket that records are
// measured against when choosing the representative observation.
type SelectionAnchor string

const (
	AnchorStart  SelectionAnchor = "start"
	AnchorCenter SelectionAnchor = "center"
)

// DefaultFlags is the HDOB quality-flag field written when the job sets none.
const DefaultFlags = "00"

// Bound is one end of a UTC time window. It is either an absolute instant or
// a time of day that is pinned to a date once the data is known.
type Bound struct {
	At        time.Time
	OfDay     time.Duration // offset from 00:00 UTC
	TimeOfDay bool
	Text      string // as supplied, for messages
}

// TimeWindow restricts conversion to records within [From, To], inclusive on
// both ends. A nil bound is open.
type TimeWindow struct {
	From *Bound
	To   *Bound
}

// IsZero reports whether the window leaves the timeline unrestricted.
func (w TimeWindow) IsZero() bool {
	return w.From == nil && w.To == nil
}

// Validate rejects windows that can never match. Time-of-day windows are
// always valid because an end before the start wraps past midnight.
func (w TimeWindow) Validate() error {
	if w.From == nil || w.To == nil {
		return nil
	}
	if w.From.TimeOfDay || w.To.TimeOfDay {
		return nil
	}
	if w.From.At.After(w.To.At) {
		return &FilterError{
			Err: fmt.Errorf("%w: start %s is after end %s", ErrInvalidWindow,
				w.From.At.Format(time.RFC3339), w.To.At.Format(time.RFC3339)),
		}
	}
	return nil
}

// ConversionJob is the immutable configuration of one run.
type ConversionJob struct {
	Interval time.Duration
	Window   TimeWindow
	Workers  int
	Anchor   SelectionAnchor
	Flags    string
}

// Validate checks the job before any input is touched. Window problems are
// returned as *FilterError.
func (j ConversionJob) Validate() error {
	if j.Interval < time.Second || j.Interval%time.Second != 0 {
		return fmt.Errorf("%w: interval must be a positive whole number of seconds, got %s", ErrInvalidJob, j.Interval)
	}
	if j.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1, got %d", ErrInvalidJob, j.Workers)
	}
	switch j.Anchor {
	case "", AnchorStart, AnchorCenter:
	default:
		return fmt.Errorf("%w: unknown anchor %q", ErrInvalidJob, j.Anchor)
	}
	if j.Flags != "" && len(j.Flags) != 2 {
		return fmt.Errorf("%w: flags must be two characters, got %q", ErrInvalidJob, j.Flags)
	}
	return j.Window.Validate()
}

// EffectiveAnchor returns the anchor, defaulting to the bucket start.
func (j ConversionJob) EffectiveAnchor() SelectionAnchor {
	if j.Anchor == "" {
		return AnchorStart
	}
	return j.Anchor
}

// EffectiveFlags returns the flag field, defaulting to DefaultFlags.
func (j ConversionJob) EffectiveFlags() string {
	if j.Flags == "" {
		return DefaultFlags
	}
	return j.Flags
}
