package web

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/infernocod3s/csv-splitter/internal/config"
	"github.com/infernocod3s/csv-splitter/internal/job"
)

func testServer(t *testing.T) *Server {
	t.Helper()

	service, err := job.NewService(job.Settings{
		MaxFileSize: 1 << 20,
		Retention:   time.Minute,
		WorkDir:     t.TempDir(),
	}, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	cfg := &config.Config{}
	cfg.Split.MaxFileSize = 1 << 20
	cfg.Rate.Enabled = false

	return NewServer(service, cfg)
}

func uploadCSV(t *testing.T, srv *Server, content, capacity string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "data.csv")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if capacity != "" {
		if err := mw.WriteField("capacity", capacity); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/split", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestSplitUploadLifecycle(t *testing.T) {
	srv := testServer(t)

	rec := uploadCSV(t, srv, "a,b\n1,2\n3,4\n5,6\n", "2")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("upload status = %d, body %s", rec.Code, rec.Body)
	}

	var accepted struct {
		JobID string `json:"jobId"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&accepted); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if accepted.JobID == "" {
		t.Fatal("expected a job ID")
	}

	// GetResult blocks until the job finishes.
	req := httptest.NewRequest(http.MethodGet, "/api/split/"+accepted.JobID+"/result", nil)
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("result status = %d, body %s", rec.Code, rec.Body)
	}

	var result struct {
		TotalRows int64    `json:"totalRows"`
		Chunks    int      `json:"chunks"`
		Files     []string `json:"files"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.TotalRows != 3 || result.Chunks != 2 {
		t.Errorf("got %d rows in %d chunks, want 3 rows in 2 chunks", result.TotalRows, result.Chunks)
	}
	if len(result.Files) != 2 {
		t.Fatalf("got %d download links, want 2", len(result.Files))
	}

	req = httptest.NewRequest(http.MethodGet, result.Files[1], nil)
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("download status = %d", rec.Code)
	}
	if got, want := rec.Body.String(), "a,b\n5,6\n"; got != want {
		t.Errorf("chunk 2 = %q, want %q", got, want)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Errorf("Content-Disposition = %q, want attachment", cd)
	}
}

func TestSplitUploadEmptyFile(t *testing.T) {
	srv := testServer(t)

	rec := uploadCSV(t, srv, "header_only\n", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("upload status = %d", rec.Code)
	}
	var accepted struct {
		JobID string `json:"jobId"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&accepted); err != nil {
		t.Fatalf("decode: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/split/"+accepted.JobID+"/result", nil)
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	var result struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Error == "" {
		t.Error("expected an error for a header-only file")
	}
}

func TestSplitUploadInvalidCapacity(t *testing.T) {
	srv := testServer(t)

	for _, capacity := range []string{"0", "-5", "lots"} {
		rec := uploadCSV(t, srv, "a,b\n1,2\n", capacity)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("capacity %q: status = %d, want %d", capacity, rec.Code, http.StatusBadRequest)
		}
	}
}

func TestUnknownJobReturnsNotFound(t *testing.T) {
	srv := testServer(t)

	for _, path := range []string{
		"/api/split/nope/result",
		"/api/split/nope/progress",
		"/api/split/nope/files/1",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want %d", path, rec.Code, http.StatusNotFound)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/api/split/nope/cancel", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("cancel: status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestProgressStreamsEvents(t *testing.T) {
	srv := testServer(t)

	rec := uploadCSV(t, srv, "a,b\n1,2\n3,4\n", "1")
	var accepted struct {
		JobID string `json:"jobId"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&accepted); err != nil {
		t.Fatalf("decode: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/split/"+accepted.JobID+"/progress", nil).WithContext(ctx)
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "event: progress") {
		t.Errorf("no progress events in stream: %q", body)
	}
	if !strings.Contains(body, `"phase":"complete"`) {
		t.Errorf("stream did not reach the complete phase: %q", body)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body = %s", rec.Body)
	}
}

func TestHistoryWithoutStore(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var entries []json.RawMessage
	if err := json.NewDecoder(rec.Body).Decode(&entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("got %d entries, want 0", len(entries))
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
	} {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !rl.allow("1.2.3.4") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.allow("1.2.3.4") {
		t.Error("fourth request should be limited")
	}
	if !rl.allow("5.6.7.8") {
		t.Error("a different IP should not be limited")
	}
}
