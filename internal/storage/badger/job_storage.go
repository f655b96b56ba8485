package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// currentJobKey is the fixed well-known key holding the single job record
const currentJobKey = "current_job"

// JobStorage implements interfaces.JobStorage over Badger. One record,
// overwritten whole on every mutation, so a reload after restart always
// sees a complete snapshot.
type JobStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.JobStorage = (*JobStorage)(nil)

// NewJobStorage creates a new JobStorage instance
func NewJobStorage(db *BadgerDB, logger arbor.ILogger) *JobStorage {
	return &JobStorage{
		db:     db,
		logger: logger,
	}
}

// Get returns the current job, or interfaces.ErrNoJob when idle
func (s *JobStorage) Get(ctx context.Context) (*models.PaperJob, error) {
	var job models.PaperJob
	err := s.db.Store().Get(currentJobKey, &job)
	if err == badgerhold.ErrNotFound {
		return nil, interfaces.ErrNoJob
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job record: %w", err)
	}
	return &job, nil
}

// Save overwrites the job record
func (s *JobStorage) Save(ctx context.Context, job *models.PaperJob) error {
	if job == nil {
		return fmt.Errorf("cannot save nil job")
	}
	if err := s.db.Store().Upsert(currentJobKey, job); err != nil {
		return fmt.Errorf("failed to save job record: %w", err)
	}
	return nil
}

// Delete removes the job record; deleting an absent record is a no-op
func (s *JobStorage) Delete(ctx context.Context) error {
	err := s.db.Store().Delete(currentJobKey, &models.PaperJob{})
	if err == badgerhold.ErrNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete job record: %w", err)
	}
	return nil
}
