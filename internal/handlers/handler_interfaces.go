package handlers

import (
	"context"

	"github.com/ternarybob/scribo/internal/models"
)

// JobOrchestrator is the job lifecycle surface the HTTP handlers depend on
type JobOrchestrator interface {
	Start(ctx context.Context, req *models.JobRequest) (*models.PaperJob, error)
	Cancel(ctx context.Context, reason string) error
	Status(ctx context.Context) (*models.PaperJob, error)
	Clear(ctx context.Context) error
}
