package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MasteryLevel string

const (
	MasteryLearning  MasteryLevel = "learning"
	MasteryReviewing MasteryLevel = "reviewing"
	MasteryMastered  MasteryLevel = "mastered"
)

type QuizQuestion struct {
	ID           uuid.UUID   `json:"id" gorm:"type:uuid;primary_key"`
	CollectionID uuid.UUID   `json:"collection_id" gorm:"type:uuid;not null;index;constraint:OnDelete:CASCADE"`
	Type         string      `json:"type" gorm:"type:varchar(40);not null"` // multiple-choice, true-false, ...
	Prompt       string      `json:"prompt" gorm:"type:text;not null"`
	Options      StringSlice `json:"options" gorm:"type:jsonb;default:'[]'"`
	Answer       string      `json:"answer" gorm:"type:text;not null"`
	Explanation  string      `json:"explanation,omitempty" gorm:"type:text"`
	Tags         StringSlice `json:"tags" gorm:"type:jsonb;default:'[]'"`
	OrderIndex   int         `json:"order_index" gorm:"default:0"`
	CreatedAt    time.Time   `json:"created_at"`
}

func (QuizQuestion) TableName() string {
	return "quiz_questions"
}

func (q *QuizQuestion) BeforeCreate(tx *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	q.CreatedAt = time.Now()
	if q.Options == nil {
		q.Options = StringSlice{}
	}
	if q.Tags == nil {
		q.Tags = StringSlice{}
	}
	return nil
}

// QuizQuestionStats carries the mastery state for one (question, user) pair.
// Created lazily on the first answer.
type QuizQuestionStats struct {
	ID                uuid.UUID    `json:"id" gorm:"type:uuid;primary_key"`
	QuestionID        uuid.UUID    `json:"question_id" gorm:"type:uuid;not null;uniqueIndex:idx_question_user"`
	UserID            uuid.UUID    `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_question_user"`
	TotalAttempts     int          `json:"total_attempts" gorm:"default:0"`
	CorrectAttempts   int          `json:"correct_attempts" gorm:"default:0"`
	IncorrectAttempts int          `json:"incorrect_attempts" gorm:"default:0"`
	MasteryLevel      MasteryLevel `json:"mastery_level" gorm:"type:varchar(20);default:'learning'"`
	NextReviewAt      *time.Time   `json:"next_review_at,omitempty" gorm:"index"`
	LastAttemptedAt   *time.Time   `json:"last_attempted_at,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

func (QuizQuestionStats) TableName() string {
	return "quiz_question_stats"
}

func (s *QuizQuestionStats) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	now := time.Now()
	s.CreatedAt = now
	s.UpdatedAt = now
	return nil
}

func (s *QuizQuestionStats) BeforeUpdate(tx *gorm.DB) error {
	s.UpdatedAt = time.Now()
	return nil
}

// QuizSession aggregates the answers of one quiz run. Recomputed from the
// full answer log after every insert, never incrementally.
type QuizSession struct {
	ID               uuid.UUID  `json:"id" gorm:"type:uuid;primary_key"`
	UserID           uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;index"`
	CollectionID     *uuid.UUID `json:"collection_id,omitempty" gorm:"type:uuid;index"`
	TotalQuestions   int        `json:"total_questions" gorm:"default:0"`
	CorrectAnswers   int        `json:"correct_answers" gorm:"default:0"`
	IncorrectAnswers int        `json:"incorrect_answers" gorm:"default:0"`
	ScorePercentage  float64    `json:"score_percentage" gorm:"default:0"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (QuizSession) TableName() string {
	return "quiz_sessions"
}

func (s *QuizSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	now := time.Now()
	s.CreatedAt = now
	s.UpdatedAt = now
	return nil
}

func (s *QuizSession) BeforeUpdate(tx *gorm.DB) error {
	s.UpdatedAt = time.Now()
	return nil
}

// QuizAnswer is the append-only attempt log.
type QuizAnswer struct {
	ID               uuid.UUID  `json:"id" gorm:"type:uuid;primary_key"`
	QuestionID       uuid.UUID  `json:"question_id" gorm:"type:uuid;not null;index"`
	SessionID        *uuid.UUID `json:"session_id,omitempty" gorm:"type:uuid;index"`
	UserID           uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;index"`
	IsCorrect        bool       `json:"is_correct"`
	UserAnswer       string     `json:"user_answer,omitempty" gorm:"type:text"`
	TimeSpentSeconds int        `json:"time_spent_seconds,omitempty" gorm:"default:0"`
	AnsweredAt       time.Time  `json:"answered_at" gorm:"index"`
}

func (QuizAnswer) TableName() string {
	return "quiz_answers"
}

func (a *QuizAnswer) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.AnsweredAt.IsZero() {
		a.AnsweredAt = time.Now()
	}
	return nil
}

// QuizAnswerRequest is the answer-submission surface.
type QuizAnswerRequest struct {
	IsCorrect        *bool      `json:"is_correct" binding:"required"`
	UserAnswer       string     `json:"user_answer,omitempty"`
	TimeSpentSeconds int        `json:"time_spent_seconds,omitempty"`
	SessionID        *uuid.UUID `json:"session_id,omitempty"`
}

type QuizAnswerResponse struct {
	AnswerID  uuid.UUID `json:"answer_id"`
	SessionID uuid.UUID `json:"session_id"`
}
