package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/scribo/internal/models"
)

// ErrNoJob is returned when no job record is persisted (the idle state)
var ErrNoJob = errors.New("no job record")

// JobStorage persists the single PaperJob record behind a fixed well-known
// key. The record is overwritten atomically on each mutation and survives
// process restart - it is the only shared mutable state in the system.
type JobStorage interface {
	// Get returns the current job, or ErrNoJob when idle
	Get(ctx context.Context) (*models.PaperJob, error)

	// Save overwrites the job record
	Save(ctx context.Context, job *models.PaperJob) error

	// Delete removes the job record. Deleting an absent record is not an error.
	Delete(ctx context.Context) error
}
