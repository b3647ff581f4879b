package split

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyInput is returned when the input holds fewer than one header plus
// one data row. It is reported before any chunk is emitted.
var ErrEmptyInput = errors.New("input must have a header and at least one data row")

// DecodeError is returned when no candidate encoding could decode the input,
// including the substituting fallback. Tried lists the encodings attempted,
// in probe order.
type DecodeError struct {
	Tried []string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("unable to decode input (tried %s)", strings.Join(e.Tried, ", "))
}

// CountError is returned when the counting pass fails before any chunk has
// been assembled.
type CountError struct {
	Err error
}

func (e *CountError) Error() string {
	return fmt.Sprintf("counting rows: %v", e.Err)
}

func (e *CountError) Unwrap() error { return e.Err }

// StreamError is returned when reading the input fails during chunk
// assembly. Chunk is the 1-based index of the chunk in progress and Row the
// number of data rows consumed when the failure occurred. Chunks already
// emitted remain valid.
type StreamError struct {
	Chunk int
	Row   int64
	Err   error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("streaming chunk %d (row %d): %v", e.Chunk, e.Row, e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

// SinkError wraps a failure reported by the sink while emitting a chunk.
// The engine does not retry; chunks emitted before the failure remain valid.
type SinkError struct {
	Chunk int
	Err   error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("emitting chunk %d: %v", e.Chunk, e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }
