package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
)

var (
	// ErrInvalidRequest wraps request validation failures
	ErrInvalidRequest = errors.New("invalid job request")

	// ErrAlreadyRunning is returned when a start arrives while a job is
	// still in the running state
	ErrAlreadyRunning = errors.New("a job is already running")

	// ErrNoActiveJob is returned when cancel finds no running job
	ErrNoActiveJob = errors.New("no active job")

	// ErrCancelAlreadyRequested is returned when the running job already
	// carries a cancellation flag
	ErrCancelAlreadyRequested = errors.New("cancellation already requested")

	// ErrJobStillRunning is returned when clear is attempted on a running job
	ErrJobStillRunning = errors.New("job is still running")
)

// Service owns the job lifecycle: it validates starts, persists every
// state transition, relays cancellation, and applies delegate reports.
// All mutations of the persisted record are serialized behind mu so the
// record never interleaves writes from the API side and the pipeline side.
type Service struct {
	storage  interfaces.JobStorage
	events   interfaces.EventService
	delegate interfaces.ExecutionDelegate
	logger   arbor.ILogger
	validate *validator.Validate

	mu sync.Mutex
}

// Compile-time interface assertion
var _ interfaces.JobReporter = (*Service)(nil)

// NewService creates a new job orchestrator. The execution delegate is
// attached afterwards via SetDelegate because the delegate reports back
// into this service.
func NewService(storage interfaces.JobStorage, events interfaces.EventService, logger arbor.ILogger) *Service {
	return &Service{
		storage:  storage,
		events:   events,
		logger:   logger,
		validate: validator.New(),
	}
}

// SetDelegate attaches the execution delegate
func (s *Service) SetDelegate(delegate interfaces.ExecutionDelegate) {
	s.delegate = delegate
}

// Start validates the request, persists a fresh running job and hands it
// to the delegate. A terminal record from an earlier run is overwritten;
// a running record rejects the start with ErrAlreadyRunning.
func (s *Service) Start(ctx context.Context, req *models.JobRequest) (*models.PaperJob, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.storage.Get(ctx)
	if err != nil && !errors.Is(err, interfaces.ErrNoJob) {
		return nil, fmt.Errorf("failed to read job record: %w", err)
	}
	if current != nil && current.Status == models.JobStatusRunning {
		return nil, ErrAlreadyRunning
	}

	job := models.NewPaperJob(common.NewJobID(), req.ToContext())
	job.AppendLog("Job accepted")

	if err := s.storage.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to persist job: %w", err)
	}
	s.publishStatus(ctx, job)

	s.logger.Info().
		Str("job_id", job.ID).
		Str("page_url", job.Context.PageURL).
		Msg("Job started")

	if err := s.delegate.Run(ctx, job, false, s.tokenFor(job.ID)); err != nil {
		job.MarkError(fmt.Sprintf("Could not start execution: %v", err))
		if saveErr := s.storage.Save(ctx, job); saveErr != nil {
			s.logger.Error().Err(saveErr).Str("job_id", job.ID).Msg("Failed to persist start failure")
		}
		s.publishStatus(ctx, job)
		return nil, err
	}

	return job.Clone(), nil
}

// Cancel flags the running job for cooperative cancellation. The job stays
// running until the delegate observes the flag at a step boundary.
func (s *Service) Cancel(ctx context.Context, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.storage.Get(ctx)
	if errors.Is(err, interfaces.ErrNoJob) {
		return ErrNoActiveJob
	}
	if err != nil {
		return fmt.Errorf("failed to read job record: %w", err)
	}
	if job.Status != models.JobStatusRunning {
		return ErrNoActiveJob
	}
	if job.CancelRequested {
		return ErrCancelAlreadyRequested
	}

	if reason == "" {
		reason = "cancel requested"
	}
	job.RequestCancel(reason)
	job.AppendLog("Cancellation requested")

	if err := s.storage.Save(ctx, job); err != nil {
		return fmt.Errorf("failed to persist cancel request: %w", err)
	}
	s.publishStatus(ctx, job)

	s.delegate.NotifyCancel(job.ID)

	s.logger.Info().Str("job_id", job.ID).Str("reason", reason).Msg("Cancellation requested")
	return nil
}

// Status returns a snapshot of the current job, or ErrNoActiveJob when
// idle. Pure read, no side effects.
func (s *Service) Status(ctx context.Context) (*models.PaperJob, error) {
	job, err := s.storage.Get(ctx)
	if errors.Is(err, interfaces.ErrNoJob) {
		return nil, ErrNoActiveJob
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read job record: %w", err)
	}
	return job.Clone(), nil
}

// Clear removes a terminal job record. Clearing while idle is a no-op;
// clearing a running job is refused.
func (s *Service) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.storage.Get(ctx)
	if errors.Is(err, interfaces.ErrNoJob) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read job record: %w", err)
	}
	if job.Status == models.JobStatusRunning {
		return ErrJobStillRunning
	}

	if err := s.storage.Delete(ctx); err != nil {
		return fmt.Errorf("failed to clear job record: %w", err)
	}

	s.logger.Info().Str("job_id", job.ID).Msg("Job record cleared")
	return nil
}

// ResumeOnStartup inspects the persisted record after a restart. A running
// job whose credential survived is handed back to the delegate with the
// resume flag; a running job whose credential is gone can never finish and
// is aborted instead.
func (s *Service) ResumeOnStartup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.storage.Get(ctx)
	if errors.Is(err, interfaces.ErrNoJob) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read job record: %w", err)
	}
	if job.Status != models.JobStatusRunning {
		return nil
	}

	if job.Context.APIKey == "" {
		job.MarkAborted("Job state was inconsistent after restart")
		if err := s.storage.Save(ctx, job); err != nil {
			return fmt.Errorf("failed to persist abort: %w", err)
		}
		s.publishStatus(ctx, job)
		s.logger.Warn().Str("job_id", job.ID).Msg("Aborted stale job without credential after restart")
		return nil
	}

	s.logger.Info().Str("job_id", job.ID).Msg("Resuming job after restart")

	if err := s.delegate.Run(ctx, job, true, s.tokenFor(job.ID)); err != nil {
		job.MarkError(fmt.Sprintf("Could not resume execution: %v", err))
		if saveErr := s.storage.Save(ctx, job); saveErr != nil {
			return fmt.Errorf("failed to persist resume failure: %w", saveErr)
		}
		s.publishStatus(ctx, job)
	}
	return nil
}

// AppendLog implements interfaces.JobReporter. Reports for a job that is
// no longer the current running record are dropped.
func (s *Service) AppendLog(jobID, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := context.Background()
	job, ok := s.currentRunning(ctx, jobID)
	if !ok {
		return
	}

	job.AppendLog(message)
	if err := s.storage.Save(ctx, job); err != nil {
		s.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to persist job log")
		return
	}

	s.publish(ctx, interfaces.Event{
		Type: interfaces.EventJobLog,
		Payload: map[string]interface{}{
			"job_id":  jobID,
			"message": message,
		},
	})
}

// Complete implements interfaces.JobReporter
func (s *Service) Complete(jobID string, result models.JobResult) {
	s.finishJob(jobID, func(job *models.PaperJob) {
		job.AppendLog(fmt.Sprintf("Note created: %s", result.NoteURL))
		job.MarkSuccess(result)
	})
}

// Fail implements interfaces.JobReporter
func (s *Service) Fail(jobID, message string) {
	s.finishJob(jobID, func(job *models.PaperJob) {
		job.AppendLog(message)
		job.MarkError(message)
	})
}

// Abort implements interfaces.JobReporter
func (s *Service) Abort(jobID, reason string) {
	s.finishJob(jobID, func(job *models.PaperJob) {
		job.AppendLog(fmt.Sprintf("Aborted: %s", reason))
		job.MarkAborted(reason)
	})
}

// finishJob applies a terminal transition under the mutation lock
func (s *Service) finishJob(jobID string, transition func(*models.PaperJob)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := context.Background()
	job, ok := s.currentRunning(ctx, jobID)
	if !ok {
		return
	}

	transition(job)

	if err := s.storage.Save(ctx, job); err != nil {
		s.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to persist terminal transition")
		return
	}
	s.publishStatus(ctx, job)

	s.logger.Info().
		Str("job_id", jobID).
		Str("status", string(job.Status)).
		Msg("Job finished")
}

// currentRunning loads the record when it matches jobID and is still
// running; stale or missing records return ok=false
func (s *Service) currentRunning(ctx context.Context, jobID string) (*models.PaperJob, bool) {
	job, err := s.storage.Get(ctx)
	if err != nil {
		if !errors.Is(err, interfaces.ErrNoJob) {
			s.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to read job record")
		}
		return nil, false
	}
	if job.ID != jobID || job.Status != models.JobStatusRunning {
		s.logger.Debug().Str("job_id", jobID).Msg("Dropping report for stale job")
		return nil, false
	}
	return job, true
}

func (s *Service) publishStatus(ctx context.Context, job *models.PaperJob) {
	s.publish(ctx, interfaces.Event{
		Type: interfaces.EventJobStatusChange,
		Payload: map[string]interface{}{
			"job_id":           job.ID,
			"status":           string(job.Status),
			"cancel_requested": job.CancelRequested,
		},
	})
}

func (s *Service) publish(ctx context.Context, event interfaces.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("event_type", string(event.Type)).Msg("Failed to publish event")
	}
}

// tokenFor builds a cancel token that polls the persisted record, so the
// flag survives restarts along with the job itself
func (s *Service) tokenFor(jobID string) interfaces.CancelToken {
	return &storedCancelToken{storage: s.storage, jobID: jobID}
}

type storedCancelToken struct {
	storage interfaces.JobStorage
	jobID   string
}

func (t *storedCancelToken) Cancelled() (bool, string) {
	job, err := t.storage.Get(context.Background())
	if err != nil || job.ID != t.jobID {
		return false, ""
	}
	return job.CancelRequested, job.CancelReason
}
