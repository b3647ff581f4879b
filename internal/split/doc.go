// Package split implements the streaming CSV partition engine.
//
// The engine takes one large delimited text file and partitions it into an
// ordered sequence of smaller chunks, each carrying the original header plus
// at most a fixed number of data rows. The input is never loaded into memory
// as a whole: at most one chunk's worth of rows is resident at any time.
//
// # Pipeline
//
// A split runs as one sequential pass over the following stages:
//
//  1. Encoding resolution: a sample from the start of the input is probed
//     against UTF-8, ISO-8859-1 and Windows-1252; the read position is
//     restored afterwards, so the probe is side-effect free.
//  2. Row counting: one linear scan computes the total data-row count so
//     callers can report absolute progress. The position is reset to the
//     start when the count completes.
//  3. Chunk assembly: decoded, trimmed, non-empty lines are grouped into
//     chunks of [Options.Capacity] rows. The first line is the header and is
//     shared (not copied) across every chunk.
//
// Completed chunks are handed to a [Sink] synchronously, in strictly
// increasing index order, with at most one chunk in flight. After each
// emission a progress callback receives (rows processed, total rows, chunks
// emitted). Cancellation is honored between chunk emissions.
//
// # Guarantees
//
// Every data row appears in exactly one chunk, in its original relative
// order. Chunk indices are contiguous starting at 1. Every chunk except
// possibly the last holds exactly Capacity rows. Blank and whitespace-only
// lines never occupy a row slot.
//
// The engine is stateless between invocations. Concurrent splits over
// different inputs share no mutable state; the input and sink of one split
// must not be shared with another.
package split
