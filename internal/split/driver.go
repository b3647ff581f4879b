package split

import (
	"context"
	"io"
	"log/slog"
	"time"
)

// Sink receives completed chunks. Emit is called exactly once per chunk, in
// strictly increasing index order, never concurrently, with at most one
// chunk in flight. A returned error fails the split; the engine does not
// retry (retry policy, if any, belongs to the sink).
type Sink interface {
	Emit(ctx context.Context, c *Chunk) error
}

// ProgressFunc receives (rows processed, total rows, chunks emitted) after
// each chunk emission. Advisory only; it must not block the engine beyond a
// bounded call.
type ProgressFunc func(rowsProcessed, totalRows int64, chunksEmitted int)

// Options configure one split operation.
type Options struct {
	// Capacity is the maximum number of data rows per chunk. Zero or
	// negative selects DefaultCapacity.
	Capacity int
}

// Result summarizes a completed split.
type Result struct {
	TotalRows  int64
	Chunks     int
	ChunkRows  []int
	Encoding   string
	Fallback   bool
	BlankLines int64
	Duration   time.Duration
}

// Driver states. A split moves strictly forward through these; stateFailed
// is terminal and a failed split cannot be resumed.
type state int

const (
	stateIdle state = iota
	stateEncodingResolved
	stateCounted
	stateStreaming
	stateCompleted
	stateFailed
)

type driver struct {
	state    state
	source   *LineSource
	sink     Sink
	progress ProgressFunc
	capacity int

	rows   int64
	total  int64
	result *Result
}

// Split partitions src into chunks of opts.Capacity data rows and hands each
// to sink in index order. progress may be nil. The input is read twice: once
// to count rows, once to assemble chunks; src must support seeking back to
// its start between the passes.
//
// On failure the returned error identifies the failing stage and, during
// streaming, the chunk index and row offset in progress. Chunks emitted
// before the failure remain valid; no partial chunk is ever emitted.
func Split(ctx context.Context, src io.ReadSeeker, sink Sink, progress ProgressFunc, opts Options) (*Result, error) {
	capacity := opts.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	d := &driver{sink: sink, progress: progress, capacity: capacity}
	res, err := d.run(ctx, src)
	if err != nil {
		d.state = stateFailed
		return nil, err
	}
	return res, nil
}

func (d *driver) run(ctx context.Context, src io.ReadSeeker) (*Result, error) {
	start := time.Now()

	source, err := NewLineSource(src)
	if err != nil {
		return nil, err
	}
	d.source = source
	d.state = stateEncodingResolved

	enc := source.Encoding()
	if enc.Fallback {
		slog.Debug("no encoding decoded the input cleanly, substituting",
			"encoding", enc.Name, "tried", enc.Tried())
	}

	total, err := CountRows(source)
	if err != nil {
		return nil, err
	}
	d.total = total
	d.state = stateCounted

	d.result = &Result{
		TotalRows:  total,
		Encoding:   enc.Name,
		Fallback:   enc.Fallback,
		BlankLines: source.Dropped(),
	}
	if d.result.BlankLines > 0 {
		slog.Debug("blank lines excluded from row count",
			"blank_lines", d.result.BlankLines, "total_rows", total)
	}

	header, err := source.Next()
	if err != nil {
		// The counting pass saw the header, so failing here means the
		// input changed underneath us.
		return nil, &StreamError{Chunk: 1, Row: 0, Err: err}
	}

	d.state = stateStreaming
	asm := newAssembler(header, d.capacity)

	for {
		row, err := source.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &StreamError{Chunk: d.result.Chunks + 1, Row: d.rows, Err: err}
		}
		d.rows++
		if c := asm.add(row); c != nil {
			if err := d.emit(ctx, c); err != nil {
				return nil, err
			}
		}
	}

	if c := asm.flush(); c != nil {
		if err := d.emit(ctx, c); err != nil {
			return nil, err
		}
	}

	d.state = stateCompleted
	d.result.Duration = time.Since(start)
	return d.result, nil
}

// emit hands a completed chunk to the sink and pushes a progress update.
// Cancellation is honored here, between chunk emissions, never mid-row.
func (d *driver) emit(ctx context.Context, c *Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.sink.Emit(ctx, c); err != nil {
		return &SinkError{Chunk: c.Index, Err: err}
	}
	d.result.Chunks++
	d.result.ChunkRows = append(d.result.ChunkRows, c.RowCount())
	if d.progress != nil {
		d.progress(d.rows, d.total, d.result.Chunks)
	}
	return nil
}
