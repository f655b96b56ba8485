package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/scribo/internal/models"
)

// ErrDelegateBusy is returned when the delegate is already running a
// different job - the single-slot concurrency ceiling.
var ErrDelegateBusy = errors.New("delegate is busy with another job")

// CancelToken exposes the cooperative cancellation flag to the pipeline.
// It is checked between steps only - an in-flight network call is never
// forcibly terminated.
type CancelToken interface {
	// Cancelled returns the flag and the requested reason
	Cancelled() (bool, string)
}

// JobReporter is the delegate's only channel back to the orchestrator.
// Every call is a message across the execution boundary - the delegate
// never touches persisted state directly.
type JobReporter interface {
	// AppendLog records a pipeline log line for the job. Calls for a job
	// that is no longer current are dropped.
	AppendLog(jobID, message string)

	// Complete reports a successful pipeline run
	Complete(jobID string, result models.JobResult)

	// Fail reports a pipeline step failure
	Fail(jobID, message string)

	// Abort reports a cancellation observed between steps
	Abort(jobID, reason string)
}

// ExecutionDelegate runs the summarization pipeline for exactly one job at
// a time, decoupled from the orchestrator's lifecycle. Run returns once the
// pipeline has been started; outcomes arrive through the JobReporter.
//
// A duplicate Run for the same job id (a resume signal) is a no-op success;
// a Run for a different job id while busy returns ErrDelegateBusy.
type ExecutionDelegate interface {
	Run(ctx context.Context, job *models.PaperJob, resume bool, token CancelToken) error

	// NotifyCancel is a best-effort fast-path hint that cancellation was
	// requested for the given job; the polled token remains authoritative.
	NotifyCancel(jobID string)
}
