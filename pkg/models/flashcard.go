package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Flashcard content is immutable once generated; per-user review state lives
// in FlashcardStats.
type Flashcard struct {
	ID           uuid.UUID   `json:"id" gorm:"type:uuid;primary_key"`
	CollectionID uuid.UUID   `json:"collection_id" gorm:"type:uuid;not null;index;constraint:OnDelete:CASCADE"`
	Question     string      `json:"question" gorm:"type:text;not null"`
	Answer       string      `json:"answer" gorm:"type:text;not null"`
	Tags         StringSlice `json:"tags" gorm:"type:jsonb;default:'[]'"`
	OrderIndex   int         `json:"order_index" gorm:"default:0"`
	CreatedAt    time.Time   `json:"created_at"`
}

func (Flashcard) TableName() string {
	return "flashcards"
}

func (f *Flashcard) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	f.CreatedAt = time.Now()
	if f.Tags == nil {
		f.Tags = StringSlice{}
	}
	return nil
}

// FlashcardStats carries the SM-2 memory state for one (flashcard, user)
// pair. Created lazily on the first review.
type FlashcardStats struct {
	ID             uuid.UUID  `json:"id" gorm:"type:uuid;primary_key"`
	FlashcardID    uuid.UUID  `json:"flashcard_id" gorm:"type:uuid;not null;uniqueIndex:idx_flashcard_user"`
	UserID         uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_flashcard_user"`
	EaseFactor     float64    `json:"ease_factor" gorm:"default:2.5;check:ease_factor >= 1.3"`
	IntervalDays   int        `json:"interval_days" gorm:"default:0;check:interval_days >= 0"`
	Repetitions    int        `json:"repetitions" gorm:"default:0;check:repetitions >= 0"`
	Box            int        `json:"box" gorm:"default:0"`
	LastReviewedAt *time.Time `json:"last_reviewed_at,omitempty"`
	NextReviewAt   *time.Time `json:"next_review_at,omitempty" gorm:"index"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (FlashcardStats) TableName() string {
	return "flashcard_stats"
}

func (s *FlashcardStats) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	now := time.Now()
	s.CreatedAt = now
	s.UpdatedAt = now
	return nil
}

func (s *FlashcardStats) BeforeUpdate(tx *gorm.DB) error {
	s.UpdatedAt = time.Now()
	return nil
}

// FlashcardReviewRequest is the review-submission surface.
type FlashcardReviewRequest struct {
	Quality string `json:"quality" binding:"required"` // easy | medium | hard
}

// FlashcardReviewResponse reports the updated schedule after a review.
type FlashcardReviewResponse struct {
	Box        int       `json:"box"`
	NextReview time.Time `json:"next_review"`
}
