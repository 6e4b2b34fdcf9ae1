package jobs

import (
	"context"
	"time"

	"studykit-worker/pkg/models"

	"github.com/google/uuid"
)

type JobService interface {
	EnqueueGeneration(ctx context.Context, req *models.GenerationRequest) (*models.Job, error)
	EnqueueCollectionGeneration(ctx context.Context, req *models.CollectionGenerationRequest) (*models.Job, error)
	EnqueueDocumentGeneration(ctx context.Context, req *models.DocumentGenerationRequest) (*models.Job, error)
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	ListJobs(ctx context.Context, status, jobType string, ownerID *uuid.UUID) ([]*models.Job, error)
	ClaimNextPending(ctx context.Context, jobType models.JobType) (*models.Job, error)
	UpdateProgress(ctx context.Context, id uuid.UUID, value float64) error
	Finalize(ctx context.Context, id uuid.UUID, status models.JobStatus, result models.JSON, errMsg string, kind models.FailureKind) error
	CleanupOldJobs(ctx context.Context, maxAge time.Duration) (int64, error)
}
