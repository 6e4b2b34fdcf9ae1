package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WeakArea accumulates per-tag difficulty for one user within a collection.
// The score only ever rises (incorrect answers add 5 up to 100); it does not
// decay with correct answers.
type WeakArea struct {
	ID              uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	UserID          uuid.UUID `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_user_collection_tag"`
	CollectionID    uuid.UUID `json:"collection_id" gorm:"type:uuid;not null;uniqueIndex:idx_user_collection_tag"`
	Tag             string    `json:"tag" gorm:"type:varchar(120);not null;uniqueIndex:idx_user_collection_tag"`
	DifficultyScore int       `json:"difficulty_score" gorm:"default:0;check:difficulty_score >= 0 AND difficulty_score <= 100"`
	QuestionsCount  int       `json:"questions_count" gorm:"default:0"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (WeakArea) TableName() string {
	return "weak_areas"
}

func (w *WeakArea) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	now := time.Now()
	w.CreatedAt = now
	w.UpdatedAt = now
	return nil
}

func (w *WeakArea) BeforeUpdate(tx *gorm.DB) error {
	w.UpdatedAt = time.Now()
	return nil
}
