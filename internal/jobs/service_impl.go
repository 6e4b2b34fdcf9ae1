package jobs

import (
	"context"
	"fmt"
	"time"

	"studykit-worker/internal/logger"
	"studykit-worker/pkg/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// CollectionCreator is the slice of the study repository the job service
// needs to set up parent aggregates at enqueue time.
type CollectionCreator interface {
	CreateCollection(ctx context.Context, collection *models.Collection) error
	CreateDocument(ctx context.Context, document *models.Document) error
}

type jobServiceImpl struct {
	repo   JobRepository
	study  CollectionCreator
	log    *logger.Logger
	tracer trace.Tracer
}

func NewJobService(repo JobRepository, study CollectionCreator, log *logger.Logger) JobService {
	return &jobServiceImpl{
		repo:   repo,
		study:  study,
		log:    log,
		tracer: otel.Tracer("studykit-worker/jobs"),
	}
}

func (s *jobServiceImpl) EnqueueGeneration(ctx context.Context, req *models.GenerationRequest) (*models.Job, error) {
	ctx, span := s.tracer.Start(ctx, "jobs.EnqueueGeneration")
	defer span.End()

	payload := &models.GenerationPayload{
		Mode:     req.Mode,
		Text:     req.Text,
		Metadata: req.Metadata,
	}
	if payload.Mode == "" {
		payload.Mode = models.ModeText
	}

	job, err := s.enqueue(ctx, models.JobTypeGeneration, req.OwnerID, payload)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("job.id", job.ID.String()))
	return job, nil
}

func (s *jobServiceImpl) EnqueueCollectionGeneration(ctx context.Context, req *models.CollectionGenerationRequest) (*models.Job, error) {
	ctx, span := s.tracer.Start(ctx, "jobs.EnqueueCollectionGeneration")
	defer span.End()

	collection := &models.Collection{
		ID:           uuid.New(),
		OwnerID:      req.OwnerID,
		Title:        req.Title,
		Tags:         models.StringSlice(req.Tags),
		Status:       models.CollectionProcessing,
		TotalSources: len(req.Sources),
	}
	if err := s.study.CreateCollection(ctx, collection); err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	payload := &models.CollectionGenerationPayload{
		CollectionID: collection.ID,
		UserID:       req.OwnerID,
		Title:        req.Title,
		Tags:         req.Tags,
		Sources:      req.Sources,
	}

	job, err := s.enqueue(ctx, models.JobTypeCollectionGeneration, req.OwnerID, payload)
	if err != nil {
		return nil, err
	}
	s.log.Info("Collection generation enqueued",
		"job_id", job.ID,
		"collection_id", collection.ID,
		"sources", len(req.Sources))
	span.SetAttributes(
		attribute.String("job.id", job.ID.String()),
		attribute.String("collection.id", collection.ID.String()),
	)
	return job, nil
}

func (s *jobServiceImpl) EnqueueDocumentGeneration(ctx context.Context, req *models.DocumentGenerationRequest) (*models.Job, error) {
	ctx, span := s.tracer.Start(ctx, "jobs.EnqueueDocumentGeneration")
	defer span.End()

	document := &models.Document{
		ID:          req.DocumentID,
		OwnerID:     req.OwnerID,
		Title:       req.Title,
		StoragePath: req.StoragePath,
		Status:      models.DocumentProcessing,
	}
	if err := s.study.CreateDocument(ctx, document); err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	collection := &models.Collection{
		ID:           uuid.New(),
		OwnerID:      req.OwnerID,
		Title:        req.Title,
		Tags:         models.StringSlice(req.Tags),
		Status:       models.CollectionProcessing,
		TotalSources: 1,
	}
	if err := s.study.CreateCollection(ctx, collection); err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	payload := &models.DocumentGenerationPayload{
		DocumentID:   document.ID,
		CollectionID: collection.ID,
		UserID:       req.OwnerID,
		StoragePath:  req.StoragePath,
		Title:        req.Title,
		Tags:         req.Tags,
	}

	job, err := s.enqueue(ctx, models.JobTypeDocumentGeneration, req.OwnerID, payload)
	if err != nil {
		return nil, err
	}
	s.log.Info("Document generation enqueued",
		"job_id", job.ID,
		"document_id", document.ID,
		"collection_id", collection.ID)
	span.SetAttributes(
		attribute.String("job.id", job.ID.String()),
		attribute.String("document.id", document.ID.String()),
	)
	return job, nil
}

func (s *jobServiceImpl) enqueue(ctx context.Context, jobType models.JobType, ownerID uuid.UUID, payload interface{}) (*models.Job, error) {
	encoded, err := models.EncodePayload(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	job := &models.Job{
		ID:      uuid.New(),
		OwnerID: ownerID,
		Type:    jobType,
		Status:  models.StatusPending,
		Payload: encoded,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	return job, nil
}

func (s *jobServiceImpl) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	ctx, span := s.tracer.Start(ctx, "jobs.GetJob")
	defer span.End()
	span.SetAttributes(attribute.String("job.id", id.String()))

	return s.repo.GetByID(ctx, id)
}

func (s *jobServiceImpl) ListJobs(ctx context.Context, status, jobType string, ownerID *uuid.UUID) ([]*models.Job, error) {
	ctx, span := s.tracer.Start(ctx, "jobs.ListJobs")
	defer span.End()

	filters := JobFilters{
		Status:  status,
		Type:    jobType,
		OwnerID: ownerID,
	}
	return s.repo.List(ctx, filters)
}

func (s *jobServiceImpl) ClaimNextPending(ctx context.Context, jobType models.JobType) (*models.Job, error) {
	return s.repo.ClaimNextPending(ctx, jobType)
}

func (s *jobServiceImpl) UpdateProgress(ctx context.Context, id uuid.UUID, value float64) error {
	return s.repo.UpdateProgress(ctx, id, value)
}

func (s *jobServiceImpl) Finalize(ctx context.Context, id uuid.UUID, status models.JobStatus, result models.JSON, errMsg string, kind models.FailureKind) error {
	ctx, span := s.tracer.Start(ctx, "jobs.Finalize")
	defer span.End()
	span.SetAttributes(
		attribute.String("job.id", id.String()),
		attribute.String("job.status", string(status)),
	)

	if err := s.repo.Finalize(ctx, id, status, result, errMsg, kind); err != nil {
		return err
	}
	if status == models.StatusFailed {
		s.log.Warn("Job failed", "job_id", id, "failure_kind", kind, "error", errMsg)
	} else {
		s.log.Info("Job finalized", "job_id", id, "status", status)
	}
	return nil
}

func (s *jobServiceImpl) CleanupOldJobs(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge)
	deleted, err := s.repo.DeleteOldJobs(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.log.Info("Old jobs cleaned up", "deleted", deleted, "cutoff", cutoff)
	}
	return deleted, nil
}
