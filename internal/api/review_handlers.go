package api

import (
	"errors"
	"net/http"

	"studykit-worker/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// userIDFromRequest reads the caller identity. Authentication lives at the
// gateway; this service trusts the forwarded user id.
func (h *Handlers) userIDFromRequest(c *gin.Context) (uuid.UUID, bool) {
	raw := c.GetHeader("X-User-ID")
	if raw == "" {
		raw = c.Query("user_id")
	}
	userID, result := h.validator.ValidateUUIDParam("user_id", raw)
	if !result.Valid {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "Invalid or missing user id",
			"validation_errors": result.Errors,
		})
		return uuid.Nil, false
	}
	return userID, true
}

// ReviewFlashcard records one flashcard review and returns the updated
// scheduling state.
func (h *Handlers) ReviewFlashcard(c *gin.Context) {
	flashcardID, result := h.validator.ValidateUUIDParam("flashcard_id", c.Param("id"))
	if !result.Valid {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "Invalid flashcard ID",
			"validation_errors": result.Errors,
		})
		return
	}

	userID, ok := h.userIDFromRequest(c)
	if !ok {
		return
	}

	var req models.FlashcardReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format", "details": err.Error()})
		return
	}
	if result := h.validator.ValidateFlashcardReviewRequest(&req); !result.Valid {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "Validation failed",
			"validation_errors": result.Errors,
		})
		return
	}

	resp, err := h.reviewService.SubmitFlashcardReview(c.Request.Context(), flashcardID, userID, &req)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "flashcard not found"})
			return
		}
		h.log.Error("Failed to record flashcard review", "flashcard_id", flashcardID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// AnswerQuizQuestion records one quiz answer, updating question stats, the
// session score and the weak-area rollup.
func (h *Handlers) AnswerQuizQuestion(c *gin.Context) {
	questionID, result := h.validator.ValidateUUIDParam("question_id", c.Param("id"))
	if !result.Valid {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "Invalid question ID",
			"validation_errors": result.Errors,
		})
		return
	}

	userID, ok := h.userIDFromRequest(c)
	if !ok {
		return
	}

	var req models.QuizAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format", "details": err.Error()})
		return
	}
	if result := h.validator.ValidateQuizAnswerRequest(&req); !result.Valid {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "Validation failed",
			"validation_errors": result.Errors,
		})
		return
	}

	resp, err := h.reviewService.SubmitQuizAnswer(c.Request.Context(), questionID, userID, &req)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "quiz question not found"})
			return
		}
		h.log.Error("Failed to record quiz answer", "question_id", questionID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetWeakAreas lists a user's weak areas for a collection, worst first.
func (h *Handlers) GetWeakAreas(c *gin.Context) {
	collectionID, result := h.validator.ValidateUUIDParam("collection_id", c.Param("id"))
	if !result.Valid {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "Invalid collection ID",
			"validation_errors": result.Errors,
		})
		return
	}

	userID, ok := h.userIDFromRequest(c)
	if !ok {
		return
	}

	weakAreas, err := h.reviewService.WeakAreas(c.Request.Context(), collectionID, userID)
	if err != nil {
		h.log.Error("Failed to list weak areas", "collection_id", collectionID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"weak_areas": weakAreas})
}
