// Package job orchestrates asynchronous split jobs: one upload in, a
// numbered set of chunk files out, with progress fan-out, cancellation,
// a concurrency limiter and optional Postgres history.
package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/infernocod3s/csv-splitter/internal/history"
	"github.com/infernocod3s/csv-splitter/internal/sink"
	"github.com/infernocod3s/csv-splitter/internal/split"
)

// ErrNotFound is returned for unknown or already cleaned up job IDs.
var ErrNotFound = errors.New("job not found")

// ErrTooLarge is returned when an input exceeds the configured size limit.
// The limit guards the service, not the engine.
var ErrTooLarge = errors.New("input file exceeds the maximum allowed size")

// Settings configure the job service.
type Settings struct {
	Capacity      int           // default rows per chunk
	MaxFileSize   int64         // reject inputs larger than this
	MaxConcurrent int           // parallel job limit
	MaxWait       time.Duration // wait for a free slot before ErrTooManyJobs
	Timeout       time.Duration // per-job deadline
	Retention     time.Duration // how long results and chunk files stay available
	WorkDir       string        // spool and chunk output directory
}

// Service runs split jobs in the background and tracks their lifecycle.
type Service struct {
	settings Settings
	limiter  *Limiter
	store    *history.Store // nil when history is disabled

	mu   sync.RWMutex
	jobs map[string]*activeJob
}

type activeJob struct {
	ID        string
	FileName  string
	Dir       string
	StartedAt time.Time
	Cancel    context.CancelFunc

	Progress Progress
	Result   *Result
	Done     chan struct{}

	ListenerMu sync.Mutex
	Listeners  []chan Progress
}

// NewService creates a Service. store may be nil to disable history.
func NewService(settings Settings, store *history.Store) (*Service, error) {
	if settings.Capacity <= 0 {
		settings.Capacity = split.DefaultCapacity
	}
	if settings.WorkDir == "" {
		settings.WorkDir = filepath.Join(os.TempDir(), "csv-splitter")
	}
	if err := os.MkdirAll(settings.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}

	return &Service{
		settings: settings,
		limiter:  NewLimiter(settings.MaxConcurrent, settings.MaxWait),
		store:    store,
		jobs:     make(map[string]*activeJob),
	}, nil
}

// StartSplit spools the input to disk and begins an asynchronous split.
// It returns the job ID immediately; use SubscribeProgress for updates.
// capacity <= 0 selects the configured default. size is the declared input
// size when known (0 if unknown); inputs over the limit are rejected either
// up front or while spooling.
func (s *Service) StartSplit(ctx context.Context, fileName string, r io.Reader, size int64, capacity int) (string, error) {
	if capacity <= 0 {
		capacity = s.settings.Capacity
	}
	if s.settings.MaxFileSize > 0 && size > s.settings.MaxFileSize {
		return "", ErrTooLarge
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return "", err
	}

	jobID := uuid.New().String()
	dir := filepath.Join(s.settings.WorkDir, jobID)

	inputPath, err := s.spool(dir, r)
	if err != nil {
		s.limiter.Release()
		os.RemoveAll(dir)
		return "", err
	}

	jobCtx, cancel := context.WithTimeout(context.Background(), s.timeout())
	j := &activeJob{
		ID:        jobID,
		FileName:  fileName,
		Dir:       dir,
		StartedAt: time.Now(),
		Cancel:    cancel,
		Progress: Progress{
			JobID:    jobID,
			FileName: fileName,
			Phase:    PhaseStarting,
		},
		Done: make(chan struct{}),
	}

	s.mu.Lock()
	s.jobs[jobID] = j
	s.mu.Unlock()

	go func() {
		defer s.limiter.Release()
		defer cancel()
		// run's own deferred block has already closed Done and swept the
		// listeners by the time a panic reaches here, so only record it.
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic in split job", "job_id", jobID, "panic", r)
				j.updateProgress(func(p *Progress) {
					p.Phase = PhaseFailed
					p.Error = fmt.Sprintf("internal error: %v", r)
				})
			}
		}()
		s.run(jobCtx, j, inputPath, capacity)
	}()

	return jobID, nil
}

// spool copies the upload into the job directory so the split can seek over
// it, enforcing the size limit while copying.
func (s *Service) spool(dir string, r io.Reader) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create job dir: %w", err)
	}

	path := filepath.Join(dir, "input.csv")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create spool file: %w", err)
	}
	defer f.Close()

	src := r
	if s.settings.MaxFileSize > 0 {
		src = io.LimitReader(r, s.settings.MaxFileSize+1)
	}
	written, err := io.Copy(f, src)
	if err != nil {
		return "", fmt.Errorf("spool input: %w", err)
	}
	if s.settings.MaxFileSize > 0 && written > s.settings.MaxFileSize {
		return "", ErrTooLarge
	}
	return path, nil
}

// run executes one split job to completion.
func (s *Service) run(ctx context.Context, j *activeJob, inputPath string, capacity int) {
	// Done closes before the listener sweep so a subscriber arriving in
	// between sees the terminal state instead of registering a channel
	// nobody will close.
	defer func() {
		close(j.Done)
		j.closeListeners()
		s.cleanup(j.ID)
	}()

	logger := slog.With("job_id", j.ID, "file", j.FileName)
	logger.Info("split job started", "capacity", capacity)

	j.updateProgress(func(p *Progress) { p.Phase = PhaseCounting })

	f, err := os.Open(inputPath)
	if err != nil {
		s.finishFailed(j, capacity, fmt.Errorf("open spooled input: %w", err))
		return
	}
	defer f.Close()

	out := sink.NewFileSink(j.Dir, "")
	progress := func(rows, total int64, chunks int) {
		j.updateProgress(func(p *Progress) {
			p.Phase = PhaseSplitting
			p.RowsProcessed = rows
			p.TotalRows = total
			p.ChunksEmitted = chunks
		})
	}

	res, err := split.Split(ctx, f, out, progress, split.Options{Capacity: capacity})
	if err != nil {
		s.finishFailed(j, capacity, err)
		return
	}

	j.updateProgress(func(p *Progress) {
		p.Phase = PhaseComplete
		p.RowsProcessed = res.TotalRows
		p.TotalRows = res.TotalRows
		p.ChunksEmitted = res.Chunks
	})

	j.Result = &Result{
		JobID:     j.ID,
		FileName:  j.FileName,
		TotalRows: res.TotalRows,
		Capacity:  capacity,
		Chunks:    res.Chunks,
		ChunkRows: res.ChunkRows,
		Encoding:  res.Encoding,
		Duration:  res.Duration,
	}

	logger.Info("split job completed",
		"rows", res.TotalRows, "chunks", res.Chunks,
		"encoding", res.Encoding, "duration", res.Duration,
	)
	s.record(j, history.StatusCompleted, "")
}

// finishFailed moves the job into its terminal failure state. Cancellation
// and deadline expiry are reported as cancelled, everything else as failed.
func (s *Service) finishFailed(j *activeJob, capacity int, err error) {
	status := history.StatusFailed
	phase := PhaseFailed
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		status = history.StatusCancelled
		phase = PhaseCancelled
	}

	j.updateProgress(func(p *Progress) {
		p.Phase = phase
		p.Error = err.Error()
	})

	snap := j.snapshot()
	j.Result = &Result{
		JobID:     j.ID,
		FileName:  j.FileName,
		TotalRows: snap.TotalRows,
		Capacity:  capacity,
		Chunks:    snap.ChunksEmitted,
		Duration:  time.Since(j.StartedAt),
		Error:     err.Error(),
	}

	slog.Warn("split job did not complete",
		"job_id", j.ID, "file", j.FileName, "status", status, "error", err)
	s.record(j, status, err.Error())
}

// record writes the job outcome to history. Best effort.
func (s *Service) record(j *activeJob, status, errMsg string) {
	if s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	snap := j.snapshot()
	entry := history.Entry{
		JobID:     j.ID,
		FileName:  j.FileName,
		TotalRows: snap.TotalRows,
		Chunks:    snap.ChunksEmitted,
		Capacity:  s.settings.Capacity,
		Status:    status,
		Error:     errMsg,
		Duration:  time.Since(j.StartedAt),
		StartedAt: j.StartedAt,
	}
	if j.Result != nil {
		entry.Capacity = j.Result.Capacity
	}
	if err := s.store.Record(ctx, entry); err != nil {
		slog.Warn("failed to record job history", "job_id", j.ID, "error", err)
	}
}

// SubscribeProgress returns a channel of progress updates for a job. The
// current snapshot is delivered immediately; the channel closes when the job
// reaches a terminal state.
func (s *Service) SubscribeProgress(jobID string) (<-chan Progress, error) {
	j, err := s.get(jobID)
	if err != nil {
		return nil, err
	}

	ch := make(chan Progress, 10)
	j.ListenerMu.Lock()
	select {
	case <-j.Done:
		// Terminal state already reached, deliver the final snapshot only.
		ch <- j.Progress
		close(ch)
	default:
		j.Listeners = append(j.Listeners, ch)
		select {
		case ch <- j.Progress:
		default:
		}
	}
	j.ListenerMu.Unlock()

	return ch, nil
}

// GetProgress returns the current progress snapshot without blocking.
func (s *Service) GetProgress(jobID string) (Progress, error) {
	j, err := s.get(jobID)
	if err != nil {
		return Progress{}, err
	}
	return j.snapshot(), nil
}

// Cancel stops an in-flight job. The engine observes the cancellation
// between chunk emissions, so already written chunks stay on disk until the
// job's retention expires.
func (s *Service) Cancel(jobID string) error {
	j, err := s.get(jobID)
	if err != nil {
		return err
	}
	j.Cancel()
	return nil
}

// GetResult blocks until the job completes and returns its final result.
func (s *Service) GetResult(jobID string) (*Result, error) {
	j, err := s.get(jobID)
	if err != nil {
		return nil, err
	}
	<-j.Done
	if j.Result == nil {
		// Job died before producing a result (panic path).
		return &Result{JobID: j.ID, FileName: j.FileName, Error: j.snapshot().Error}, nil
	}
	return j.Result, nil
}

// OpenChunk opens chunk file <index> of a completed job for reading and
// returns the reader plus the canonical file name.
func (s *Service) OpenChunk(jobID string, index int) (io.ReadCloser, string, error) {
	j, err := s.get(jobID)
	if err != nil {
		return nil, "", err
	}

	select {
	case <-j.Done:
	default:
		return nil, "", fmt.Errorf("job %s still running", jobID)
	}
	if j.Result == nil || j.Result.Error != "" || index < 1 || index > j.Result.Chunks {
		return nil, "", ErrNotFound
	}

	name := fmt.Sprintf(sink.DefaultPattern, index)
	f, err := os.Open(filepath.Join(j.Dir, name))
	if err != nil {
		return nil, "", fmt.Errorf("open chunk %d: %w", index, err)
	}
	return f, name, nil
}

// History returns recent job history entries, newest first. Empty when no
// history store is configured.
func (s *Service) History(ctx context.Context, limit int) ([]history.Entry, error) {
	return s.store.Recent(ctx, limit)
}

// ActiveJobs returns the number of jobs currently holding a limiter slot.
func (s *Service) ActiveJobs() int { return s.limiter.Active() }

// WaitForDrain blocks until all running jobs complete or ctx is done.
func (s *Service) WaitForDrain(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

func (s *Service) get(jobID string) (*activeJob, error) {
	s.mu.RLock()
	j, ok := s.jobs[jobID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	return j, nil
}

// cleanup drops the job record and its files after the retention window.
func (s *Service) cleanup(jobID string) {
	retention := s.settings.Retention
	if retention <= 0 {
		retention = 30 * time.Minute
	}
	time.AfterFunc(retention, func() {
		s.mu.Lock()
		j, ok := s.jobs[jobID]
		delete(s.jobs, jobID)
		s.mu.Unlock()
		if ok {
			if err := os.RemoveAll(j.Dir); err != nil {
				slog.Warn("failed to remove job dir", "job_id", jobID, "error", err)
			}
		}
	})
}

func (s *Service) timeout() time.Duration {
	if s.settings.Timeout > 0 {
		return s.settings.Timeout
	}
	return 10 * time.Minute
}

// updateProgress applies mutate to the snapshot and sends the result to all
// listeners, all under ListenerMu so readers never see a torn snapshot.
// Sends are non-blocking; slow listeners miss intermediate updates.
func (j *activeJob) updateProgress(mutate func(*Progress)) {
	j.ListenerMu.Lock()
	defer j.ListenerMu.Unlock()
	mutate(&j.Progress)
	for _, ch := range j.Listeners {
		select {
		case ch <- j.Progress:
		default:
		}
	}
}

// snapshot returns a copy of the current progress under the same lock the
// writers hold.
func (j *activeJob) snapshot() Progress {
	j.ListenerMu.Lock()
	defer j.ListenerMu.Unlock()
	return j.Progress
}

func (j *activeJob) closeListeners() {
	j.ListenerMu.Lock()
	defer j.ListenerMu.Unlock()
	for _, ch := range j.Listeners {
		close(ch)
	}
	j.Listeners = nil
}
