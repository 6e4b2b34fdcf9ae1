package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type JobType string

const (
	JobTypeGeneration           JobType = "generation"
	JobTypeCollectionGeneration JobType = "collection-generation"
	JobTypeDocumentGeneration   JobType = "document-generation"
)

type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusSucceeded JobStatus = "succeeded"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// FailureKind distinguishes classes of job failure for operators, most
// importantly "timeout" (stuck pipeline) from "input" (rejected request).
type FailureKind string

const (
	FailureInput       FailureKind = "input"
	FailureExternal    FailureKind = "external"
	FailureTimeout     FailureKind = "timeout"
	FailurePersistence FailureKind = "persistence"
)

// JSON type for PostgreSQL compatibility
type JSON map[string]interface{}

func (j JSON) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = make(map[string]interface{})
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JSON", value)
	}

	if len(bytes) == 0 {
		*j = make(map[string]interface{})
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// StringSlice type for PostgreSQL JSON arrays
type StringSlice []string

func (ss StringSlice) Value() (driver.Value, error) {
	if ss == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal(ss)
}

func (ss *StringSlice) Scan(value interface{}) error {
	if value == nil {
		*ss = []string{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into StringSlice", value)
	}

	if len(bytes) == 0 {
		*ss = []string{}
		return nil
	}

	return json.Unmarshal(bytes, ss)
}

// Job is the durable unit-of-work record. It is created by an enqueuing
// caller and mutated only by the worker that claimed it.
type Job struct {
	ID          uuid.UUID   `json:"id" gorm:"type:uuid;primary_key"`
	OwnerID     uuid.UUID   `json:"owner_id" gorm:"type:uuid;not null;index"`
	Type        JobType     `json:"type" gorm:"type:varchar(40);not null;index"`
	Status      JobStatus   `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	Progress    *float64    `json:"progress,omitempty" gorm:"check:progress >= 0 AND progress <= 1"`
	Payload     JSON        `json:"payload" gorm:"type:jsonb;default:'{}'"`
	Result      JSON        `json:"result,omitempty" gorm:"type:jsonb"`
	Error       string      `json:"error,omitempty" gorm:"type:text"`
	FailureKind FailureKind `json:"failure_kind,omitempty" gorm:"type:varchar(20)"`
	CreatedAt   time.Time   `json:"created_at" gorm:"index"`
	UpdatedAt   time.Time   `json:"updated_at"`
	StartedAt   *time.Time  `json:"started_at,omitempty" gorm:"index"`
	FinishedAt  *time.Time  `json:"finished_at,omitempty" gorm:"index"`
}

func (Job) TableName() string {
	return "jobs"
}

func (j *Job) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	now := time.Now()
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	j.UpdatedAt = now

	if j.Payload == nil {
		j.Payload = JSON{}
	}

	return nil
}

func (j *Job) BeforeUpdate(tx *gorm.DB) error {
	j.UpdatedAt = time.Now()
	return nil
}

// IsTerminal returns true if the job is in a final state.
func (j *Job) IsTerminal() bool {
	return j.Status == StatusSucceeded || j.Status == StatusFailed || j.Status == StatusCancelled
}

// JobResponse is the job status surface consumed by pollers.
type JobResponse struct {
	ID         uuid.UUID              `json:"id"`
	OwnerID    uuid.UUID              `json:"owner_id"`
	Type       JobType                `json:"type"`
	Status     JobStatus              `json:"status"`
	Progress   *float64               `json:"progress,omitempty"`
	Result     map[string]interface{} `json:"result,omitempty"`
	Error      string                 `json:"error,omitempty"`
	IsTerminal bool                   `json:"is_terminal"`
	CreatedAt  time.Time              `json:"created_at"`
	StartedAt  *time.Time             `json:"started_at,omitempty"`
	FinishedAt *time.Time             `json:"finished_at,omitempty"`
}

func (j *Job) ToResponse() *JobResponse {
	return &JobResponse{
		ID:         j.ID,
		OwnerID:    j.OwnerID,
		Type:       j.Type,
		Status:     j.Status,
		Progress:   j.Progress,
		Result:     map[string]interface{}(j.Result),
		Error:      j.Error,
		IsTerminal: j.IsTerminal(),
		CreatedAt:  j.CreatedAt,
		StartedAt:  j.StartedAt,
		FinishedAt: j.FinishedAt,
	}
}

// JobListResponse is a list of jobs.
type JobListResponse struct {
	Jobs  []*JobResponse `json:"jobs"`
	Count int            `json:"count" example:"25"`
}
