package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/infernocod3s/csv-splitter/internal/history"
	"github.com/infernocod3s/csv-splitter/internal/job"
	"github.com/infernocod3s/csv-splitter/internal/logging"
)

const indexPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>CSV Splitter</title>
<style>
body { font-family: sans-serif; max-width: 40rem; margin: 3rem auto; }
progress { width: 100%; }
</style>
</head>
<body>
<h1>CSV Splitter</h1>
<p>Upload a CSV file to split it into parts. The header row is repeated in every part.</p>
<form id="f">
<input type="file" name="file" accept=".csv" required>
<input type="number" name="capacity" placeholder="rows per part" min="1">
<button type="submit">Split</button>
</form>
<progress id="p" max="100" value="0" hidden></progress>
<div id="out"></div>
<script>
document.getElementById('f').addEventListener('submit', async (e) => {
  e.preventDefault();
  const out = document.getElementById('out');
  const bar = document.getElementById('p');
  out.textContent = '';
  const resp = await fetch('/api/split', { method: 'POST', body: new FormData(e.target) });
  const body = await resp.json();
  if (!resp.ok) { out.textContent = body.message || 'upload failed'; return; }
  bar.hidden = false;
  const es = new EventSource('/api/split/' + body.jobId + '/progress');
  es.addEventListener('progress', (ev) => {
    const p = JSON.parse(ev.data);
    bar.value = p.percent;
    if (p.phase === 'complete' || p.phase === 'failed' || p.phase === 'cancelled') {
      es.close();
      fetch('/api/split/' + body.jobId + '/result').then(r => r.json()).then(res => {
        if (res.error) { out.textContent = res.error; return; }
        out.innerHTML = res.files.map((f, i) =>
          '<a href="' + f + '" download>part ' + (i + 1) + '</a>').join('<br>');
      });
    }
  });
});
</script>
</body>
</html>
`

// handleIndex serves the minimal upload page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(indexPage))
}

// handleHealth is a liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"status":     "ok",
		"activeJobs": s.service.ActiveJobs(),
	})
}

// handleSplit accepts a multipart CSV upload and starts a split job.
// The response carries the job ID for progress subscription.
func (s *Server) handleSplit(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	// An extra megabyte covers the multipart framing around the file.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Split.MaxFileSize+1<<20)

	f, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.respondError(w, r, job.ErrTooLarge)
			return
		}
		s.respondError(w, r, fmt.Errorf("reading upload: %w", err))
		return
	}
	defer f.Close()

	capacity := 0
	if raw := r.FormValue("capacity"); raw != "" {
		capacity, err = strconv.Atoi(raw)
		if err != nil || capacity < 1 {
			w.WriteHeader(http.StatusBadRequest)
			writeJSON(w, job.UserMessage{
				Code:    "SPL400",
				Message: "Chunk capacity must be a positive whole number.",
				Action:  "Correct the capacity value and try again.",
			})
			return
		}
	}

	jobID, err := s.service.StartSplit(r.Context(), header.Filename, f, header.Size, capacity)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	log.Info("split job accepted",
		"job_id", jobID,
		"file", header.Filename,
		"size", header.Size,
	)

	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]string{"jobId": jobID})
}

// handleProgress streams job progress as server-sent events. Clients that
// reconnect with a Last-Event-ID header resume from the current snapshot,
// since each event carries the full job state.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	updates, err := s.service.SubscribeProgress(jobID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	eventID := 0
	if last := r.Header.Get("Last-Event-ID"); last != "" {
		if n, err := strconv.Atoi(last); err == nil {
			eventID = n
		}
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case p, open := <-updates:
			if !open {
				return
			}
			eventID++
			payload, err := json.Marshal(struct {
				job.Progress
				Percent int `json:"percent"`
			}{p, p.Percent()})
			if err != nil {
				slog.Error("marshal progress", "error", err)
				return
			}
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", eventID, payload)
			flusher.Flush()
		}
	}
}

// handleResult returns the final outcome of a finished job, blocking until
// the job is done. Download URLs for each chunk are included on success.
func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	result, err := s.service.GetResult(jobID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	files := make([]string, 0, result.Chunks)
	for i := 1; i <= result.Chunks; i++ {
		files = append(files, fmt.Sprintf("/api/split/%s/files/%d", jobID, i))
	}

	writeJSON(w, struct {
		*job.Result
		Files []string `json:"files"`
	}{result, files})
}

// handleCancel requests cancellation of a running job.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	if err := s.service.Cancel(jobID); err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("split job cancelled", "job_id", jobID)
	writeJSON(w, map[string]string{"status": "cancelling"})
}

// handleDownload serves a single chunk file of a completed job.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 1 {
		s.respondError(w, r, job.ErrNotFound)
		return
	}

	rc, name, err := s.service.OpenChunk(jobID, index)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if _, err := io.Copy(w, rc); err != nil {
		slog.Error("chunk download interrupted", "job_id", jobID, "index", index, "error", err)
	}
}

// handleHistory returns recent finished jobs from the history store.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	entries, err := s.service.History(ctx, limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, entries)
}

// respondError maps an internal error to a user-facing JSON message with an
// appropriate HTTP status.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	msg := job.MapError(err)

	status := http.StatusInternalServerError
	switch msg.Code {
	case "SPL001", "SPL002": // empty input, undecodable input
		status = http.StatusUnprocessableEntity
	case "SPL003": // too large
		status = http.StatusRequestEntityTooLarge
	case "SPL004": // cancelled or timed out
		status = http.StatusConflict
	case "SPL005": // unknown job or chunk
		status = http.StatusNotFound
	case "SPL006": // concurrency limit
		status = http.StatusServiceUnavailable
	}

	logging.FromContext(r.Context()).Warn("request failed",
		"code", msg.Code,
		"status", status,
		"error", err,
	)

	w.WriteHeader(status)
	writeJSON(w, msg)
}
