package domain

import (
	"errors"
	"fmt"
)

var (
	ErrMissingTimestamp = errors.New("missing timestamp")
	ErrMissingPosition  = errors.New("missing position")
	ErrPositionRange    = errors.New("position out of range")
	ErrInvalidWindow    = errors.New("invalid time window")
	ErrInvalidJob       = errors.New("invalid conversion job")
)

// Parse failure reasons, used as metric labels and summary keys.
const (
	ReasonNotIWG1    = "not_iwg1"
	ReasonFieldCount = "field_count"
	ReasonTimestamp  = "timestamp"
	ReasonNumeric    = "numeric"
	ReasonPosition   = "position"
)

// ParseError describes a rejected input line. Parse errors are recovered
// locally: the line is skipped and counted.
type ParseError struct {
	Line   int
	Reason string
	Raw    string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s: %v", e.Line, e.Reason, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// FilterError reports an unusable time window. It is fatal and raised
// before any record is processed.
type FilterError struct {
	Bound string
	Err   error
}

func (e *FilterError) Error() string {
	if e.Bound == "" {
		return fmt.Sprintf("time window: %v", e.Err)
	}
	return fmt.Sprintf("time window %s: %v", e.Bound, e.Err)
}

func (e *FilterError) Unwrap() error { return e.Err }

// EncodingError means a selection reached the encoder without a timestamp or
// position. The parser rejects such records, so this signals a broken
// upstream invariant.
type EncodingError struct {
	Line int
	Err  error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encode record from line %d: %v", e.Line, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// IOError wraps failures reading input or writing output.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
