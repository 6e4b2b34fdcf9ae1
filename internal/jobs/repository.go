package jobs

import (
	"context"
	"errors"
	"time"

	"studykit-worker/pkg/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrAlreadyTerminal is returned by Finalize when the row reached a
// different terminal state first (e.g. a timeout racing a late success).
var ErrAlreadyTerminal = errors.New("job is already in a terminal state")

type JobRepository interface {
	Create(ctx context.Context, job *models.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	List(ctx context.Context, filters JobFilters) ([]*models.Job, error)
	ClaimNextPending(ctx context.Context, jobType models.JobType) (*models.Job, error)
	UpdateProgress(ctx context.Context, id uuid.UUID, value float64) error
	Finalize(ctx context.Context, id uuid.UUID, status models.JobStatus, result models.JSON, errMsg string, kind models.FailureKind) error
	DeleteOldJobs(ctx context.Context, olderThan time.Time) (int64, error)
}

type JobFilters struct {
	Status  string
	Type    string
	OwnerID *uuid.UUID
	Limit   int
	Offset  int
}

type jobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepository{db: db}
}

func (r *jobRepository) Create(ctx context.Context, job *models.Job) error {
	job.Status = models.StatusPending
	job.Progress = nil

	return r.db.WithContext(ctx).Create(job).Error
}

func (r *jobRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	var job models.Job
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *jobRepository) List(ctx context.Context, filters JobFilters) ([]*models.Job, error) {
	var jobs []*models.Job

	query := r.db.WithContext(ctx).Model(&models.Job{})

	if filters.Status != "" {
		query = query.Where("status = ?", filters.Status)
	}

	if filters.Type != "" {
		query = query.Where("type = ?", filters.Type)
	}

	if filters.OwnerID != nil {
		query = query.Where("owner_id = ?", *filters.OwnerID)
	}

	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}

	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	query = query.Order("created_at DESC")

	err := query.Find(&jobs).Error
	return jobs, err
}

// ClaimNextPending atomically claims the oldest pending job of the given
// type. The claim is a compare-and-swap on status: the conditional UPDATE
// only matches while the row is still pending, so of N racing pollers only
// the one whose update reports a changed row owns the job. Everyone else
// sees nil and keeps polling.
func (r *jobRepository) ClaimNextPending(ctx context.Context, jobType models.JobType) (*models.Job, error) {
	var candidate models.Job
	err := r.db.WithContext(ctx).
		Where("status = ? AND type = ?", models.StatusPending, jobType).
		Order("created_at ASC").
		First(&candidate).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	now := time.Now()
	res := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND status = ?", candidate.ID, models.StatusPending).
		Updates(map[string]interface{}{
			"status":     models.StatusRunning,
			"started_at": now,
			"updated_at": now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// lost the race; the next poll will pick up whatever is left
		return nil, nil
	}

	candidate.Status = models.StatusRunning
	candidate.StartedAt = &now
	candidate.UpdatedAt = now
	return &candidate, nil
}

// UpdateProgress clamps the value to [0,1] and writes it only while the job
// is still running and the value does not regress. Late or backwards
// updates are silently dropped.
func (r *jobRepository) UpdateProgress(ctx context.Context, id uuid.UUID, value float64) error {
	if value < 0 {
		value = 0
	}
	if value > 1 {
		value = 1
	}

	return r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND status = ? AND (progress IS NULL OR progress <= ?)",
			id, models.StatusRunning, value).
		Updates(map[string]interface{}{
			"progress":   value,
			"updated_at": time.Now(),
		}).Error
}

// Finalize moves a running job to a terminal state. Calling it again with
// any terminal status is safe: the row no longer matches and
// ErrAlreadyTerminal is returned for the caller to log.
func (r *jobRepository) Finalize(ctx context.Context, id uuid.UUID, status models.JobStatus, result models.JSON, errMsg string, kind models.FailureKind) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":      status,
		"finished_at": now,
		"updated_at":  now,
	}
	if result != nil {
		updates["result"] = result
	}
	if errMsg != "" {
		updates["error"] = errMsg
	}
	if kind != "" {
		updates["failure_kind"] = kind
	}
	if status == models.StatusSucceeded {
		updates["progress"] = 1.0
	}

	res := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND status = ?", id, models.StatusRunning).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var existing models.Job
		if err := r.db.WithContext(ctx).Select("status").Where("id = ?", id).First(&existing).Error; err != nil {
			return err
		}
		if existing.Status == status {
			return nil // idempotent repeat of the same terminal state
		}
		return ErrAlreadyTerminal
	}

	return nil
}

func (r *jobRepository) DeleteOldJobs(ctx context.Context, olderThan time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("created_at < ? AND status IN ?", olderThan,
		[]models.JobStatus{models.StatusSucceeded, models.StatusFailed, models.StatusCancelled}).
		Delete(&models.Job{})

	return result.RowsAffected, result.Error
}
