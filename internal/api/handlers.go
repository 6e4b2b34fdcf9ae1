package api

import (
	"net/http"
	"strconv"
	"time"

	"studykit-worker/internal/jobs"
	"studykit-worker/internal/logger"
	"studykit-worker/internal/review"
	"studykit-worker/internal/validation"
	"studykit-worker/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handlers struct {
	jobService    jobs.JobService
	reviewService *review.Service
	validator     *validation.APIValidator
	log           *logger.Logger
}

func NewHandlers(jobService jobs.JobService, reviewService *review.Service, validator *validation.APIValidator, log *logger.Logger) *Handlers {
	return &Handlers{
		jobService:    jobService,
		reviewService: reviewService,
		validator:     validator,
		log:           log,
	}
}

func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "studykit-worker",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// CreateGenerationJob enqueues a one-shot text generation job.
func (h *Handlers) CreateGenerationJob(c *gin.Context) {
	var req models.GenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format", "details": err.Error()})
		return
	}

	if result := h.validator.ValidateGenerationRequest(&req); !result.Valid {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "Validation failed",
			"validation_errors": result.Errors,
		})
		return
	}

	job, err := h.jobService.EnqueueGeneration(c.Request.Context(), &req)
	if err != nil {
		h.log.Error("Failed to enqueue generation job", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, job.ToResponse())
}

// CreateCollectionGeneration enqueues study-set generation over a set of
// sources. The job id comes back immediately; artifacts land later.
func (h *Handlers) CreateCollectionGeneration(c *gin.Context) {
	var req models.CollectionGenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format", "details": err.Error()})
		return
	}

	if result := h.validator.ValidateCollectionGenerationRequest(&req); !result.Valid {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "Validation failed",
			"validation_errors": result.Errors,
		})
		return
	}

	job, err := h.jobService.EnqueueCollectionGeneration(c.Request.Context(), &req)
	if err != nil {
		h.log.Error("Failed to enqueue collection generation", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, job.ToResponse())
}

// CreateDocumentGeneration enqueues study-set generation for a single
// stored document.
func (h *Handlers) CreateDocumentGeneration(c *gin.Context) {
	var req models.DocumentGenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format", "details": err.Error()})
		return
	}

	if result := h.validator.ValidateDocumentGenerationRequest(&req); !result.Valid {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "Validation failed",
			"validation_errors": result.Errors,
		})
		return
	}

	job, err := h.jobService.EnqueueDocumentGeneration(c.Request.Context(), &req)
	if err != nil {
		h.log.Error("Failed to enqueue document generation", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, job.ToResponse())
}

func (h *Handlers) GetJobStatus(c *gin.Context) {
	jobID, result := h.validator.ValidateJobIDParam(c.Param("id"))
	if !result.Valid {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "Invalid job ID",
			"validation_errors": result.Errors,
		})
		return
	}

	job, err := h.jobService.GetJob(c.Request.Context(), jobID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, job.ToResponse())
}

func (h *Handlers) ListJobs(c *gin.Context) {
	status := c.Query("status")
	jobType := c.Query("type")
	limit := intQuery(c, "limit", 100)
	offset := intQuery(c, "offset", 0)

	if result := h.validator.ValidateListParams(status, jobType, limit, offset); !result.Valid {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "Invalid query parameters",
			"validation_errors": result.Errors,
		})
		return
	}

	var ownerID *uuid.UUID
	if ownerIDStr := c.Query("owner_id"); ownerIDStr != "" {
		parsed, result := h.validator.ValidateUUIDParam("owner_id", ownerIDStr)
		if !result.Valid {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":             "Invalid owner_id parameter",
				"validation_errors": result.Errors,
			})
			return
		}
		ownerID = &parsed
	}

	jobList, err := h.jobService.ListJobs(c.Request.Context(), status, jobType, ownerID)
	if err != nil {
		h.log.Error("Failed to list jobs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	responses := make([]*models.JobResponse, len(jobList))
	for i, job := range jobList {
		responses[i] = job.ToResponse()
	}
	c.JSON(http.StatusOK, gin.H{"jobs": responses})
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
