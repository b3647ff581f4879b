package split

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// maxLineSize is the scanner buffer limit for a single line (10 MB).
const maxLineSize = 10 * 1024 * 1024

// LineSource yields decoded, trimmed, non-empty lines from a seekable input,
// in original order. It holds no more than one line in memory. The sequence
// is restartable only through Reset, which seeks back to the start of the
// input and re-applies the resolved decoding.
type LineSource struct {
	src     io.ReadSeeker
	res     Resolution
	scanner *bufio.Scanner
	dropped int64
}

// NewLineSource resolves the input's encoding and returns a source positioned
// at the first line.
func NewLineSource(src io.ReadSeeker) (*LineSource, error) {
	res, err := ResolveEncoding(src)
	if err != nil {
		return nil, err
	}
	s := &LineSource{src: src, res: res}
	s.rewind()
	return s, nil
}

// Encoding returns the resolution the source decodes with.
func (s *LineSource) Encoding() Resolution { return s.res }

// Dropped returns the number of blank or whitespace-only lines skipped so
// far, cumulative across passes. Dropped lines never occupy a row slot.
func (s *LineSource) Dropped() int64 { return s.dropped }

// Next returns the next non-empty line with surrounding whitespace removed.
// It returns io.EOF once the input is exhausted.
func (s *LineSource) Next() (string, error) {
	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" {
			s.dropped++
			continue
		}
		return line, nil
	}
	if err := s.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// Reset seeks the underlying input back to its start so a fresh pass can
// begin. Resuming a partially consumed scanner is not supported.
func (s *LineSource) Reset() error {
	if _, err := s.src.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("reset line source: %w", err)
	}
	s.rewind()
	return nil
}

func (s *LineSource) rewind() {
	s.scanner = bufio.NewScanner(s.res.Reader(s.src))
	s.scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxLineSize)
}

// CountRows performs the counting pass: one linear scan over the source that
// returns the number of data rows, excluding the header line. The source is
// reset to the start before and after counting so the chunking pass starts
// from a clean position.
//
// It returns ErrEmptyInput when the input has no header or no data rows, and
// a *CountError when the scan itself fails.
func CountRows(src *LineSource) (int64, error) {
	if err := src.Reset(); err != nil {
		return 0, &CountError{Err: err}
	}

	var lines int64
	for {
		_, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, &CountError{Err: err}
		}
		lines++
	}

	if err := src.Reset(); err != nil {
		return 0, &CountError{Err: err}
	}

	if lines < 2 {
		return 0, ErrEmptyInput
	}
	return lines - 1, nil
}
