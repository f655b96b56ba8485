package models

import (
	"time"
)

// JobStatus represents the state of a summarization job
type JobStatus string

const (
	JobStatusRunning JobStatus = "running"
	JobStatusSuccess JobStatus = "success"
	JobStatusError   JobStatus = "error"
	JobStatusAborted JobStatus = "aborted"
)

// IsTerminal reports whether the status is a terminal state
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusSuccess || s == JobStatusError || s == JobStatusAborted
}

// MaxJobLogs bounds the per-job log buffer; oldest entries are evicted first
const MaxJobLogs = 200

// JobContext is the frozen input snapshot taken when a job is created.
// APIKey is cleared the moment the job leaves running - it must never be
// retained once the pipeline no longer needs it, and it is never serialized
// into API responses.
type JobContext struct {
	PageURL string `json:"page_url"`
	PDFURL  string `json:"pdf_url,omitempty"` // optional explicit override
	Project string `json:"project"`
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"-"`
}

// JobLogEntry is a single log line attached to a job
type JobLogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// JobResult is present only on success
type JobResult struct {
	Title         string `json:"title"`
	SummaryLength int    `json:"summary_length"`
	NoteURL       string `json:"note_url"`
}

// PaperJob is the unit of work: one end-to-end request to summarize one
// paper. The persisted record is the single source of truth for all
// observers - nothing about a job lives only in process memory.
type PaperJob struct {
	ID      string     `json:"id"`
	Status  JobStatus  `json:"status"`
	Context JobContext `json:"context"`

	Logs   []JobLogEntry `json:"logs"`
	Result *JobResult    `json:"result,omitempty"`
	Error  string        `json:"error,omitempty"`

	CancelRequested bool   `json:"cancel_requested,omitempty"`
	CancelReason    string `json:"cancel_reason,omitempty"`

	StartedAt  time.Time  `json:"started_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// NewPaperJob creates a running job with the given id and context snapshot
func NewPaperJob(id string, jobCtx JobContext) *PaperJob {
	now := time.Now()
	return &PaperJob{
		ID:        id,
		Status:    JobStatusRunning,
		Context:   jobCtx,
		Logs:      []JobLogEntry{},
		StartedAt: now,
		UpdatedAt: now,
	}
}

// AppendLog adds a log entry, evicting the oldest entry beyond MaxJobLogs
func (j *PaperJob) AppendLog(message string) {
	j.Logs = append(j.Logs, JobLogEntry{
		Timestamp: time.Now(),
		Message:   message,
	})
	if len(j.Logs) > MaxJobLogs {
		j.Logs = j.Logs[len(j.Logs)-MaxJobLogs:]
	}
	j.UpdatedAt = time.Now()
}

// RequestCancel flags the job for cooperative cancellation
func (j *PaperJob) RequestCancel(reason string) {
	j.CancelRequested = true
	j.CancelReason = reason
	j.UpdatedAt = time.Now()
}

// MarkSuccess transitions the job to success with the given result
func (j *PaperJob) MarkSuccess(result JobResult) {
	j.Result = &result
	j.finish(JobStatusSuccess)
}

// MarkError transitions the job to error with a human-readable message
func (j *PaperJob) MarkError(message string) {
	j.Error = message
	j.finish(JobStatusError)
}

// MarkAborted transitions the job to aborted with a human-readable message
func (j *PaperJob) MarkAborted(message string) {
	j.Error = message
	j.finish(JobStatusAborted)
}

// finish applies the terminal transition invariants: the credential and
// cancellation flags never survive leaving the running state.
func (j *PaperJob) finish(status JobStatus) {
	j.Status = status
	j.Context.APIKey = ""
	j.CancelRequested = false
	j.CancelReason = ""
	now := time.Now()
	j.FinishedAt = &now
	j.UpdatedAt = now
}

// Clone returns a deep copy of the job so callers can hand snapshots to
// other goroutines without sharing mutable state
func (j *PaperJob) Clone() *PaperJob {
	clone := *j
	clone.Logs = make([]JobLogEntry, len(j.Logs))
	copy(clone.Logs, j.Logs)
	if j.Result != nil {
		result := *j.Result
		clone.Result = &result
	}
	if j.FinishedAt != nil {
		finished := *j.FinishedAt
		clone.FinishedAt = &finished
	}
	return &clone
}
