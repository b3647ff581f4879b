package job

import "time"

// Phase indicates the current stage of a split job.
type Phase string

const (
	PhaseStarting  Phase = "starting"
	PhaseCounting  Phase = "counting"
	PhaseSplitting Phase = "splitting"
	PhaseComplete  Phase = "complete"
	PhaseFailed    Phase = "failed"
	PhaseCancelled Phase = "cancelled"
)

// Progress is a snapshot of a running split job.
type Progress struct {
	JobID         string `json:"jobId"`
	FileName      string `json:"fileName"`
	Phase         Phase  `json:"phase"`
	TotalRows     int64  `json:"totalRows"`
	RowsProcessed int64  `json:"rowsProcessed"`
	ChunksEmitted int    `json:"chunksEmitted"`
	Error         string `json:"error,omitempty"` // non-empty when Phase is failed
}

// Percent returns row-based progress in [0, 100]. Zero until the counting
// pass has established the total.
func (p Progress) Percent() int {
	if p.TotalRows <= 0 {
		return 0
	}
	pct := int(p.RowsProcessed * 100 / p.TotalRows)
	if pct > 100 {
		pct = 100
	}
	return pct
}

// Result is the final outcome of a split job.
type Result struct {
	JobID     string        `json:"jobId"`
	FileName  string        `json:"fileName"`
	TotalRows int64         `json:"totalRows"`
	Capacity  int           `json:"capacity"`
	Chunks    int           `json:"chunks"`
	ChunkRows []int         `json:"chunkRows,omitempty"`
	Encoding  string        `json:"encoding,omitempty"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"` // non-empty when the job failed
}
