package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CollectionStatus string

const (
	CollectionProcessing CollectionStatus = "processing"
	CollectionReady      CollectionStatus = "ready"
	CollectionFailed     CollectionStatus = "failed"
)

// Collection is a study set: the parent aggregate of sources, flashcards and
// quiz questions. It is created on enqueue and transitions to ready or failed
// only by the job that processes it; readers must treat status=ready as the
// single "generation complete" signal.
type Collection struct {
	ID               uuid.UUID        `json:"id" gorm:"type:uuid;primary_key"`
	OwnerID          uuid.UUID        `json:"owner_id" gorm:"type:uuid;not null;index"`
	Title            string           `json:"title" gorm:"type:text;not null"`
	Tags             StringSlice      `json:"tags" gorm:"type:jsonb;default:'[]'"`
	Status           CollectionStatus `json:"status" gorm:"type:varchar(20);not null;default:'processing';index"`
	TotalSources     int              `json:"total_sources" gorm:"default:0"`
	TotalFlashcards  int              `json:"total_flashcards" gorm:"default:0"`
	TotalQuiz        int              `json:"total_quiz" gorm:"default:0"`
	PromptTokens     int              `json:"prompt_tokens" gorm:"default:0"`
	CompletionTokens int              `json:"completion_tokens" gorm:"default:0"`
	Metadata         JSON             `json:"metadata" gorm:"type:jsonb;default:'{}'"`
	CreatedAt        time.Time        `json:"created_at" gorm:"index"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

func (Collection) TableName() string {
	return "collections"
}

func (c *Collection) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now

	if c.Tags == nil {
		c.Tags = StringSlice{}
	}
	if c.Metadata == nil {
		c.Metadata = JSON{}
	}

	return nil
}

func (c *Collection) BeforeUpdate(tx *gorm.DB) error {
	c.UpdatedAt = time.Now()
	return nil
}

// CollectionSource records one content source of a collection. Sources past
// the corpus truncation point keep included=false but still record length.
type CollectionSource struct {
	ID           uuid.UUID  `json:"id" gorm:"type:uuid;primary_key"`
	CollectionID uuid.UUID  `json:"collection_id" gorm:"type:uuid;not null;index;constraint:OnDelete:CASCADE"`
	DocumentID   *uuid.UUID `json:"document_id,omitempty" gorm:"type:uuid;index"`
	Title        string     `json:"title" gorm:"type:text"`
	StoragePath  string     `json:"storage_path,omitempty" gorm:"type:text"`
	TextLength   int        `json:"text_length" gorm:"default:0"`
	Included     bool       `json:"included" gorm:"default:false"`
	OrderIndex   int        `json:"order_index" gorm:"default:0"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (CollectionSource) TableName() string {
	return "collection_sources"
}

func (s *CollectionSource) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.CreatedAt = time.Now()
	return nil
}

type DocumentStatus string

const (
	DocumentProcessing DocumentStatus = "processing"
	DocumentReady      DocumentStatus = "ready"
	DocumentFailed     DocumentStatus = "failed"
)

// Document is an uploaded source document; document-generation jobs build a
// study set from a single one and report status on it.
type Document struct {
	ID          uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	OwnerID     uuid.UUID      `json:"owner_id" gorm:"type:uuid;not null;index"`
	Title       string         `json:"title" gorm:"type:text;not null"`
	StoragePath string         `json:"storage_path" gorm:"type:text;not null"`
	Status      DocumentStatus `json:"status" gorm:"type:varchar(20);not null;default:'processing'"`
	TextLength  int            `json:"text_length" gorm:"default:0"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (Document) TableName() string {
	return "documents"
}

func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	now := time.Now()
	d.CreatedAt = now
	d.UpdatedAt = now
	return nil
}

func (d *Document) BeforeUpdate(tx *gorm.DB) error {
	d.UpdatedAt = time.Now()
	return nil
}
