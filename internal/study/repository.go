package study

import (
	"context"
	"fmt"

	"studykit-worker/pkg/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists study-set aggregates: collections, their sources and
// the generated artifacts.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateCollection(ctx context.Context, collection *models.Collection) error {
	if err := r.db.WithContext(ctx).Create(collection).Error; err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

func (r *Repository) GetCollection(ctx context.Context, id uuid.UUID) (*models.Collection, error) {
	var collection models.Collection
	if err := r.db.WithContext(ctx).First(&collection, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("collection %s: %w", id, err)
	}
	return &collection, nil
}

// CreateDocument upserts the document row: re-generating from an already
// known document resets it to processing instead of failing on the key.
func (r *Repository) CreateDocument(ctx context.Context, document *models.Document) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "storage_path", "status", "updated_at"}),
	}).Create(document).Error
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

func (r *Repository) SetDocumentStatus(ctx context.Context, id uuid.UUID, status models.DocumentStatus, textLength int) error {
	updates := map[string]interface{}{"status": status}
	if textLength > 0 {
		updates["text_length"] = textLength
	}
	err := r.db.WithContext(ctx).Model(&models.Document{}).
		Where("id = ?", id).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("failed to update document %s: %w", id, err)
	}
	return nil
}

func (r *Repository) CreateSources(ctx context.Context, sources []models.CollectionSource) error {
	if len(sources) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&sources).Error; err != nil {
		return fmt.Errorf("failed to create collection sources: %w", err)
	}
	return nil
}

func (r *Repository) CreateFlashcards(ctx context.Context, flashcards []models.Flashcard) error {
	if len(flashcards) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&flashcards).Error; err != nil {
		return fmt.Errorf("failed to create flashcards: %w", err)
	}
	return nil
}

func (r *Repository) CreateQuizQuestions(ctx context.Context, questions []models.QuizQuestion) error {
	if len(questions) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&questions).Error; err != nil {
		return fmt.Errorf("failed to create quiz questions: %w", err)
	}
	return nil
}

// CollectionTotals carries the counters of the completion transition.
type CollectionTotals struct {
	TotalSources     int
	TotalFlashcards  int
	TotalQuiz        int
	PromptTokens     int
	CompletionTokens int
	Metadata         models.JSON
}

// CompleteCollection performs the single processing->ready transition.
// Only the job that owns the collection ever gets here, so a zero-row
// update means the collection was already finalized.
func (r *Repository) CompleteCollection(ctx context.Context, id uuid.UUID, totals CollectionTotals) error {
	updates := map[string]interface{}{
		"status":            models.CollectionReady,
		"total_sources":     totals.TotalSources,
		"total_flashcards":  totals.TotalFlashcards,
		"total_quiz":        totals.TotalQuiz,
		"prompt_tokens":     totals.PromptTokens,
		"completion_tokens": totals.CompletionTokens,
	}
	if totals.Metadata != nil {
		updates["metadata"] = totals.Metadata
	}

	res := r.db.WithContext(ctx).Model(&models.Collection{}).
		Where("id = ? AND status = ?", id, models.CollectionProcessing).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to complete collection %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("collection %s is not processing", id)
	}
	return nil
}

// MarkCollectionFailed takes the collection out of circulation after a
// pipeline failure. Idempotent; a ready collection is left alone.
func (r *Repository) MarkCollectionFailed(ctx context.Context, id uuid.UUID) error {
	err := r.db.WithContext(ctx).Model(&models.Collection{}).
		Where("id = ? AND status = ?", id, models.CollectionProcessing).
		Update("status", models.CollectionFailed).Error
	if err != nil {
		return fmt.Errorf("failed to mark collection %s failed: %w", id, err)
	}
	return nil
}
