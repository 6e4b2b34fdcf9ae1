package review

import (
	"time"

	"studykit-worker/pkg/models"
)

// MasteryFor recomputes the mastery tier from the running attempt ratio.
func MasteryFor(correct, total int) models.MasteryLevel {
	if total == 0 {
		return models.MasteryLearning
	}
	switch {
	case 5*correct >= 4*total: // correct >= 0.8 * total
		return models.MasteryMastered
	case 2*correct >= total: // correct >= 0.5 * total
		return models.MasteryReviewing
	default:
		return models.MasteryLearning
	}
}

// reviewDelayDays is the next-review offset for a tier, pulled one day
// closer (floored at 1) for learners with more than three wrong attempts.
func reviewDelayDays(level models.MasteryLevel, incorrectAttempts int) int {
	var days int
	switch level {
	case models.MasteryMastered:
		days = 30
	case models.MasteryReviewing:
		days = 7
	default:
		days = 1
	}
	if incorrectAttempts > 3 {
		days--
		if days < 1 {
			days = 1
		}
	}
	return days
}

// ApplyAnswer folds one answer into the per-question stats.
func ApplyAnswer(stats *models.QuizQuestionStats, isCorrect bool, now time.Time) {
	stats.TotalAttempts++
	if isCorrect {
		stats.CorrectAttempts++
	} else {
		stats.IncorrectAttempts++
	}
	stats.MasteryLevel = MasteryFor(stats.CorrectAttempts, stats.TotalAttempts)

	stats.LastAttemptedAt = &now
	next := now.AddDate(0, 0, reviewDelayDays(stats.MasteryLevel, stats.IncorrectAttempts))
	stats.NextReviewAt = &next
}

// BumpWeakArea registers one incorrect answer on a topic.
func BumpWeakArea(area *models.WeakArea) {
	area.DifficultyScore += 5
	if area.DifficultyScore > 100 {
		area.DifficultyScore = 100
	}
	area.QuestionsCount++
}
