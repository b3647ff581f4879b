// Package sink provides chunk sinks for the split engine.
//
// Sinks receive completed chunks exactly once, in index order. The file sink
// is built on viant/afs so chunk destinations are URLs: file:///tmp/out,
// mem://localhost/test, or any scheme afs supports.
package sink

import (
	"bytes"
	"context"
	"fmt"

	"github.com/infernocod3s/csv-splitter/internal/split"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
)

// DefaultPattern names chunk files split_<index>.csv, 1-based.
const DefaultPattern = "split_%d.csv"

// FileSink writes each chunk as one file under a base URL. The write is
// all-or-nothing per chunk: the body is assembled in memory first, then
// uploaded in a single call.
type FileSink struct {
	fs      afs.Service
	baseURL string
	pattern string

	// Written lists the URLs of chunks emitted so far, in index order.
	Written []string
}

// NewFileSink returns a sink writing chunks under baseURL. pattern must hold
// one %d verb for the chunk index; an empty pattern selects DefaultPattern.
func NewFileSink(baseURL, pattern string) *FileSink {
	if pattern == "" {
		pattern = DefaultPattern
	}
	return &FileSink{
		fs:      afs.New(),
		baseURL: baseURL,
		pattern: pattern,
	}
}

// Emit writes the chunk to <baseURL>/<pattern % index>.
func (s *FileSink) Emit(ctx context.Context, c *split.Chunk) error {
	var body bytes.Buffer
	body.Grow(len(c.Header) + 1)
	if _, err := c.WriteTo(&body); err != nil {
		return err
	}

	URL := url.Join(s.baseURL, fmt.Sprintf(s.pattern, c.Index))
	if err := s.fs.Upload(ctx, URL, file.DefaultFileOsMode, &body); err != nil {
		return fmt.Errorf("upload %s: %w", URL, err)
	}
	s.Written = append(s.Written, URL)
	return nil
}

// URL returns the destination URL for a chunk index.
func (s *FileSink) URL(index int) string {
	return url.Join(s.baseURL, fmt.Sprintf(s.pattern, index))
}
