package split

import (
	"io"
	"strings"
)

// DefaultCapacity is the calibrated number of data rows per chunk.
const DefaultCapacity = 49999

// Chunk is one bounded output unit: the input header plus up to Capacity
// data rows, in input order. A chunk is immutable once assembled and is
// handed to the sink exactly once.
type Chunk struct {
	// Index is the 1-based position of the chunk in emission order.
	Index int

	// Header is the first non-empty line of the input, replicated verbatim
	// into every chunk. The string is shared across chunks, not copied.
	Header string

	// Rows are the data rows assigned to this chunk.
	Rows []string
}

// RowCount returns the number of data rows in the chunk.
func (c *Chunk) RowCount() int { return len(c.Rows) }

// WriteTo writes the chunk as CSV text: the header, each row on its own
// line, with a trailing newline.
func (c *Chunk) WriteTo(w io.Writer) (int64, error) {
	var total int64
	n, err := io.WriteString(w, c.Header)
	total += int64(n)
	if err != nil {
		return total, err
	}
	for _, row := range c.Rows {
		n, err = io.WriteString(w, "\n"+row)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	n, err = io.WriteString(w, "\n")
	total += int64(n)
	return total, err
}

// String returns the chunk body as a single string.
func (c *Chunk) String() string {
	var b strings.Builder
	b.Grow(len(c.Header) + 1)
	c.WriteTo(&b) //nolint:errcheck // strings.Builder never fails
	return b.String()
}

// assembler groups incoming data rows into fixed-capacity chunks. The row at
// zero-based position i belongs to chunk i/capacity; rows are never
// re-ordered or duplicated. At most capacity rows are buffered at once.
type assembler struct {
	capacity int
	header   string
	next     int
	buf      []string
}

func newAssembler(header string, capacity int) *assembler {
	return &assembler{
		capacity: capacity,
		header:   header,
		next:     1,
		buf:      make([]string, 0, capacity),
	}
}

// add appends a row to the working buffer and returns a completed chunk when
// the buffer reaches capacity, nil otherwise.
func (a *assembler) add(row string) *Chunk {
	a.buf = append(a.buf, row)
	if len(a.buf) < a.capacity {
		return nil
	}
	return a.cut()
}

// flush returns the final partial chunk, or nil when no rows are buffered.
func (a *assembler) flush() *Chunk {
	if len(a.buf) == 0 {
		return nil
	}
	return a.cut()
}

func (a *assembler) cut() *Chunk {
	c := &Chunk{Index: a.next, Header: a.header, Rows: a.buf}
	a.next++
	a.buf = make([]string, 0, a.capacity)
	return c
}
