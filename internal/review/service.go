package review

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
	"gorm.io/gorm"
)

// Service runs the review schedulers synchronously inside request handlers.
// Row contention on one user's one card is effectively nil, so plain
// read-then-write is enough here.
type Service struct {
	db     *gorm.DB
	log    *logger.Logger
	tracer trace.Tracer
	now    func() time.Time
}

func NewService(db *gorm.DB, log *logger.Logger) *Service {
	return &Service{
		db:     db,
		log:    log,
		tracer: otel.Tracer("studykit-worker/review"),
		now:    time.Now,
	}
}

// SubmitFlashcardReview evaluates one SM-2 review and persists the new
// memory state, creating it on the first review of a card.
func (s *Service) SubmitFlashcardReview(ctx context.Context, flashcardID, userID uuid.UUID, req *models.FlashcardReviewRequest) (*models.FlashcardReviewResponse, error) {
	ctx, span := s.tracer.Start(ctx, "review.SubmitFlashcardReview")
	defer span.End()
	span.SetAttributes(attribute.String("flashcard.id", flashcardID.String()))

	quality, err := ParseQuality(req.Quality)
	if err != nil {
		return nil, err
	}

	var card models.Flashcard
	if err := s.db.WithContext(ctx).First(&card, "id = ?", flashcardID).Error; err != nil {
		return nil, fmt.Errorf("flashcard %s: %w", flashcardID, err)
	}

	stats := models.FlashcardStats{}
	err = s.db.WithContext(ctx).
		Where("flashcard_id = ? AND user_id = ?", flashcardID, userID).
		Attrs(models.FlashcardStats{
			FlashcardID: flashcardID,
			UserID:      userID,
			EaseFactor:  2.5,
		}).
		FirstOrCreate(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load flashcard stats: %w", err)
	}

	state := SM2Review(SM2State{
		EaseFactor:   stats.EaseFactor,
		IntervalDays: stats.IntervalDays,
		Repetitions:  stats.Repetitions,
	}, quality)

	now := s.now()
	next := now.AddDate(0, 0, state.IntervalDays)
	stats.EaseFactor = state.EaseFactor
	stats.IntervalDays = state.IntervalDays
	stats.Repetitions = state.Repetitions
	stats.Box = Box(state.Repetitions)
	stats.LastReviewedAt = &now
	stats.NextReviewAt = &next

	if err := s.db.WithContext(ctx).Save(&stats).Error; err != nil {
		return nil, fmt.Errorf("failed to save flashcard stats: %w", err)
	}

	s.log.Debug("Flashcard reviewed",
		"flashcard_id", flashcardID,
		"quality", req.Quality,
		"box", stats.Box,
		"interval_days", stats.IntervalDays)

	return &models.FlashcardReviewResponse{Box: stats.Box, NextReview: next}, nil
}

// SubmitQuizAnswer appends one answer to the attempt log, updates mastery
// stats, bumps weak areas on an incorrect answer and recomputes the session
// aggregate from the full log.
func (s *Service) SubmitQuizAnswer(ctx context.Context, questionID, userID uuid.UUID, req *models.QuizAnswerRequest) (*models.QuizAnswerResponse, error) {
	ctx, span := s.tracer.Start(ctx, "review.SubmitQuizAnswer")
	defer span.End()
	span.SetAttributes(attribute.String("question.id", questionID.String()))

	var question models.QuizQuestion
	if err := s.db.WithContext(ctx).First(&question, "id = ?", questionID).Error; err != nil {
		return nil, fmt.Errorf("quiz question %s: %w", questionID, err)
	}

	session, err := s.resolveSession(ctx, userID, question.CollectionID, req.SessionID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	isCorrect := req.IsCorrect != nil && *req.IsCorrect
	answer := models.QuizAnswer{
		QuestionID:       questionID,
		SessionID:        &session.ID,
		UserID:           userID,
		IsCorrect:        isCorrect,
		UserAnswer:       req.UserAnswer,
		TimeSpentSeconds: req.TimeSpentSeconds,
		AnsweredAt:       now,
	}
	if err := s.db.WithContext(ctx).Create(&answer).Error; err != nil {
		return nil, fmt.Errorf("failed to record answer: %w", err)
	}

	if err := s.updateQuestionStats(ctx, questionID, userID, isCorrect, now); err != nil {
		return nil, err
	}

	if !isCorrect {
		if err := s.bumpWeakAreas(ctx, userID, question.CollectionID, question.Tags); err != nil {
			return nil, err
		}
	}

	if err := s.recomputeSession(ctx, session); err != nil {
		return nil, err
	}

	return &models.QuizAnswerResponse{AnswerID: answer.ID, SessionID: session.ID}, nil
}

func (s *Service) resolveSession(ctx context.Context, userID, collectionID uuid.UUID, sessionID *uuid.UUID) (*models.QuizSession, error) {
	if sessionID != nil {
		var session models.QuizSession
		err := s.db.WithContext(ctx).
			First(&session, "id = ? AND user_id = ?", *sessionID, userID).Error
		if err != nil {
			return nil, fmt.Errorf("quiz session %s: %w", *sessionID, err)
		}
		return &session, nil
	}

	session := models.QuizSession{
		UserID:       userID,
		CollectionID: &collectionID,
	}
	if err := s.db.WithContext(ctx).Create(&session).Error; err != nil {
		return nil, fmt.Errorf("failed to create quiz session: %w", err)
	}
	return &session, nil
}

func (s *Service) updateQuestionStats(ctx context.Context, questionID, userID uuid.UUID, isCorrect bool, now time.Time) error {
	stats := models.QuizQuestionStats{}
	err := s.db.WithContext(ctx).
		Where("question_id = ? AND user_id = ?", questionID, userID).
		Attrs(models.QuizQuestionStats{
			QuestionID:   questionID,
			UserID:       userID,
			MasteryLevel: models.MasteryLearning,
		}).
		FirstOrCreate(&stats).Error
	if err != nil {
		return fmt.Errorf("failed to load question stats: %w", err)
	}

	ApplyAnswer(&stats, isCorrect, now)

	if err := s.db.WithContext(ctx).Save(&stats).Error; err != nil {
		return fmt.Errorf("failed to save question stats: %w", err)
	}
	return nil
}

func (s *Service) bumpWeakAreas(ctx context.Context, userID, collectionID uuid.UUID, tags []string) error {
	for _, tag := range tags {
		area := models.WeakArea{}
		err := s.db.WithContext(ctx).
			Where("user_id = ? AND collection_id = ? AND tag = ?", userID, collectionID, tag).
			Attrs(models.WeakArea{
				UserID:       userID,
				CollectionID: collectionID,
				Tag:          tag,
			}).
			FirstOrCreate(&area).Error
		if err != nil {
			return fmt.Errorf("failed to load weak area %q: %w", tag, err)
		}

		BumpWeakArea(&area)

		if err := s.db.WithContext(ctx).Save(&area).Error; err != nil {
			return fmt.Errorf("failed to save weak area %q: %w", tag, err)
		}
	}
	return nil
}

// recomputeSession rebuilds the aggregate from the full answer log rather
// than incrementing counters, so a missed increment can never skew it.
func (s *Service) recomputeSession(ctx context.Context, session *models.QuizSession) error {
	var total, correct int64
	if err := s.db.WithContext(ctx).Model(&models.QuizAnswer{}).
		Where("session_id = ?", session.ID).
		Count(&total).Error; err != nil {
		return fmt.Errorf("failed to count session answers: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.QuizAnswer{}).
		Where("session_id = ? AND is_correct = ?", session.ID, true).
		Count(&correct).Error; err != nil {
		return fmt.Errorf("failed to count correct answers: %w", err)
	}

	session.TotalQuestions = int(total)
	session.CorrectAnswers = int(correct)
	session.IncorrectAnswers = int(total - correct)
	if total > 0 {
		session.ScorePercentage = float64(correct) / float64(total) * 100
	} else {
		session.ScorePercentage = 0
	}

	if err := s.db.WithContext(ctx).Save(session).Error; err != nil {
		return fmt.Errorf("failed to save quiz session: %w", err)
	}
	return nil
}

// WeakAreas lists a user's weak areas for a collection, hardest first.
func (s *Service) WeakAreas(ctx context.Context, collectionID, userID uuid.UUID) ([]models.WeakArea, error) {
	var areas []models.WeakArea
	err := s.db.WithContext(ctx).
		Where("collection_id = ? AND user_id = ?", collectionID, userID).
		Order("difficulty_score DESC, questions_count DESC").
		Find(&areas).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list weak areas: %w", err)
	}
	return areas, nil
}
