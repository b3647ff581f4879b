package split

import (
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// sampleSize is the number of bytes probed from the start of the input when
// resolving the text encoding.
const sampleSize = 64 * 1024

type candidate struct {
	name string
	enc  encoding.Encoding
}

// Probe order mirrors the upload tooling this engine replaces: well-formed
// UTF-8 first, then the single-byte fallbacks.
var candidates = []candidate{
	{"utf-8", unicode.UTF8},
	{"iso-8859-1", charmap.ISO8859_1},
	{"windows-1252", charmap.Windows1252},
}

// Resolution is the outcome of encoding detection for one input.
type Resolution struct {
	// Name identifies the encoding that will decode the stream.
	Name string

	// Fallback is true when no candidate decoded the sample cleanly and the
	// final candidate was selected with substitution of undecodable bytes.
	Fallback bool

	tried []string
	enc   encoding.Encoding
}

// Tried returns the encoding names attempted, in probe order.
func (r Resolution) Tried() []string { return r.tried }

// Reader wraps src with a decoder for the resolved encoding. A UTF-8 BOM, if
// present, is stripped; UTF-16 BOMs override the resolved encoding entirely.
func (r Resolution) Reader(src io.Reader) io.Reader {
	return transform.NewReader(src, unicode.BOMOverride(r.enc.NewDecoder()))
}

// ResolveEncoding probes a sample from the start of src and returns the first
// candidate encoding that decodes it without loss. If every candidate fails,
// the last candidate is returned with Fallback set so decoding substitutes
// rather than fails. The read position of src is restored before returning,
// so the probe can run at most once per split without disturbing later reads.
func ResolveEncoding(src io.ReadSeeker) (Resolution, error) {
	pos, err := src.Seek(0, io.SeekCurrent)
	if err != nil {
		return Resolution{}, fmt.Errorf("encoding probe: %w", err)
	}

	buf := make([]byte, sampleSize)
	n, err := io.ReadFull(src, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return Resolution{}, fmt.Errorf("encoding probe: %w", err)
	}
	if _, err := src.Seek(pos, io.SeekStart); err != nil {
		return Resolution{}, fmt.Errorf("encoding probe: restore position: %w", err)
	}
	sample := buf[:n]

	var tried []string
	for _, c := range candidates {
		tried = append(tried, c.name)
		if decodesCleanly(c, sample) {
			return Resolution{Name: c.name, enc: c.enc, tried: tried}, nil
		}
	}

	last := candidates[len(candidates)-1]
	return Resolution{Name: last.name, enc: last.enc, Fallback: true, tried: tried}, nil
}

// decodesCleanly reports whether the sample decodes under c without producing
// replacement characters. The sample may end mid-rune, so an incomplete
// trailing UTF-8 sequence does not count against the candidate.
func decodesCleanly(c candidate, sample []byte) bool {
	if c.enc == unicode.UTF8 {
		sample = sample[:len(sample)-incompleteTrailingBytes(sample)]
		return utf8.Valid(sample)
	}

	decoded, err := c.enc.NewDecoder().Bytes(sample)
	if err != nil {
		return false
	}
	return !bytes.ContainsRune(decoded, utf8.RuneError)
}

// incompleteTrailingBytes returns how many bytes at the end of data form the
// start of an unfinished multi-byte UTF-8 sequence.
func incompleteTrailingBytes(data []byte) int {
	for i := 1; i <= utf8.UTFMax-1 && i <= len(data); i++ {
		b := data[len(data)-i]
		if b >= 0xC0 {
			if i < runeLen(b) {
				return i
			}
			return 0
		}
		if b&0xC0 != 0x80 {
			return 0
		}
	}
	return 0
}

// runeLen returns the expected length of a UTF-8 sequence starting with b.
func runeLen(b byte) int {
	switch {
	case b < 0x80:
		return 1
	case b < 0xC0:
		return 0 // continuation byte
	case b < 0xE0:
		return 2
	case b < 0xF0:
		return 3
	default:
		return 4
	}
}
