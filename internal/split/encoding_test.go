package split

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
)

func TestResolveEncoding(t *testing.T) {
	tests := []struct {
		name         string
		input        []byte
		wantName     string
		wantFallback bool
	}{
		{
			name:     "plain ascii",
			input:    []byte("a,b,c\nr1,r2,r3\n"),
			wantName: "utf-8",
		},
		{
			name:     "multibyte utf-8",
			input:    []byte("name,city\nRenée,Zürich\n"),
			wantName: "utf-8",
		},
		{
			name:     "latin-1 accents",
			input:    []byte{'n', 'a', 'm', 'e', '\n', 'R', 'e', 'n', 0xE9, 'e', '\n'},
			wantName: "iso-8859-1",
		},
		{
			name:     "empty input",
			input:    nil,
			wantName: "utf-8",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ResolveEncoding(bytes.NewReader(tt.input))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", res.Name, tt.wantName)
			}
			if res.Fallback != tt.wantFallback {
				t.Errorf("Fallback = %v, want %v", res.Fallback, tt.wantFallback)
			}
		})
	}
}

func TestResolveEncodingRestoresPosition(t *testing.T) {
	r := strings.NewReader("a,b\nr1,r2\n")
	if _, err := ResolveEncoding(r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pos, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		t.Fatalf("seek: %v", err)
	}
	if pos != 0 {
		t.Errorf("position after probe = %d, want 0", pos)
	}
}

func TestSplitDecodesLatin1(t *testing.T) {
	// "Ren<e9>e" is invalid UTF-8 but valid ISO-8859-1.
	in := append([]byte("name\n"), []byte{'R', 'e', 'n', 0xE9, 'e', '\n'}...)

	sink := &captureSink{}
	res, err := Split(context.Background(), bytes.NewReader(in), sink, nil, Options{Capacity: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Encoding != "iso-8859-1" {
		t.Errorf("Encoding = %q, want iso-8859-1", res.Encoding)
	}
	if got := sink.chunks[0].Rows[0]; got != "Renée" {
		t.Errorf("decoded row = %q, want %q", got, "Renée")
	}
}

func TestSplitStripsBOM(t *testing.T) {
	in := append([]byte{0xEF, 0xBB, 0xBF}, []byte("a,b\nr1,r2\n")...)

	sink := &captureSink{}
	if _, err := Split(context.Background(), bytes.NewReader(in), sink, nil, Options{Capacity: 10}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := sink.chunks[0].Header; got != "a,b" {
		t.Errorf("header = %q, want %q (BOM not stripped)", got, "a,b")
	}
}

func TestIncompleteTrailingBytes(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want int
	}{
		{name: "complete ascii", data: []byte("abc"), want: 0},
		{name: "complete two-byte rune", data: []byte("ab\xc3\xa9"), want: 0},
		{name: "truncated two-byte rune", data: []byte("ab\xc3"), want: 1},
		{name: "truncated three-byte rune", data: []byte("ab\xe2\x82"), want: 2},
		{name: "truncated four-byte rune", data: []byte("ab\xf0\x9f\x98"), want: 3},
		{name: "empty", data: nil, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := incompleteTrailingBytes(tt.data); got != tt.want {
				t.Errorf("incompleteTrailingBytes = %d, want %d", got, tt.want)
			}
		})
	}
}
