package validation

import (
	"fmt"

	"studykit-worker/pkg/models"

	"github.com/google/uuid"
)

// APIValidator is the request-level validation surface used by the HTTP
// handlers. Binding tags catch missing fields; this layer enforces the
// domain rules binding cannot express.
type APIValidator struct {
	validationService *ValidationService
}

func NewAPIValidator(config *ValidationConfig) *APIValidator {
	return &APIValidator{
		validationService: NewValidationService(config),
	}
}

func (av *APIValidator) ValidateGenerationRequest(req *models.GenerationRequest) *ValidationResult {
	result := &ValidationResult{Valid: true}

	result.merge(av.validationService.ValidateUUIDField("owner_id", req.OwnerID.String()))

	switch req.Mode {
	case "", models.ModeText, models.ModeStructured:
	default:
		result.AddError("mode", string(req.Mode),
			"mode must be text or structured", "INVALID_MODE")
	}

	if req.Text == "" {
		result.AddError("text", "", "text is required", "REQUIRED")
	}
	result.merge(av.validationService.ValidateInlineText(req.Text))
	result.merge(av.validationService.ValidateMetadata(req.Metadata))

	return result
}

func (av *APIValidator) ValidateCollectionGenerationRequest(req *models.CollectionGenerationRequest) *ValidationResult {
	result := &ValidationResult{Valid: true}

	result.merge(av.validationService.ValidateUUIDField("owner_id", req.OwnerID.String()))
	result.merge(av.validationService.ValidateTitle(req.Title))
	result.merge(av.validationService.ValidateTags(req.Tags))

	if len(req.Sources) == 0 {
		result.AddError("sources", "", "at least one source is required", "REQUIRED")
	}
	if len(req.Sources) > av.validationService.config.MaxSources {
		result.AddError("sources", "",
			fmt.Sprintf("too many sources (max %d)", av.validationService.config.MaxSources),
			"TOO_MANY_SOURCES")
	}
	for i, src := range req.Sources {
		field := fmt.Sprintf("sources[%d]", i)
		if src.RawText == "" && src.StoragePath == "" {
			result.AddError(field, src.Title,
				"source needs raw_text or a storage_path", "EMPTY_SOURCE")
			continue
		}
		if src.StoragePath != "" {
			result.merge(av.validationService.ValidateStoragePath(src.StoragePath))
		}
		if src.RawText != "" {
			result.merge(av.validationService.ValidateInlineText(src.RawText))
		}
	}

	return result
}

func (av *APIValidator) ValidateDocumentGenerationRequest(req *models.DocumentGenerationRequest) *ValidationResult {
	result := &ValidationResult{Valid: true}

	result.merge(av.validationService.ValidateUUIDField("owner_id", req.OwnerID.String()))
	result.merge(av.validationService.ValidateUUIDField("document_id", req.DocumentID.String()))
	result.merge(av.validationService.ValidateTitle(req.Title))
	result.merge(av.validationService.ValidateTags(req.Tags))
	result.merge(av.validationService.ValidateStoragePath(req.StoragePath))

	return result
}

// ValidateDocumentPath checks a raw storage path from a URL parameter.
func (av *APIValidator) ValidateDocumentPath(path string) *ValidationResult {
	return av.validationService.ValidateStoragePath(path)
}

func (av *APIValidator) ValidateFlashcardReviewRequest(req *models.FlashcardReviewRequest) *ValidationResult {
	result := &ValidationResult{Valid: true}

	switch req.Quality {
	case "easy", "medium", "hard":
	default:
		result.AddError("quality", req.Quality,
			"quality must be easy, medium or hard", "INVALID_QUALITY")
	}
	return result
}

func (av *APIValidator) ValidateQuizAnswerRequest(req *models.QuizAnswerRequest) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if req.IsCorrect == nil {
		result.AddError("is_correct", "", "is_correct is required", "REQUIRED")
	}
	if req.TimeSpentSeconds < 0 {
		result.AddError("time_spent_seconds", fmt.Sprintf("%d", req.TimeSpentSeconds),
			"time spent cannot be negative", "NEGATIVE_DURATION")
	}
	return result
}

// ValidateUUIDParam validates a URL parameter and returns the parsed UUID.
func (av *APIValidator) ValidateUUIDParam(field, value string) (uuid.UUID, *ValidationResult) {
	result := av.validationService.ValidateUUIDField(field, value)
	if !result.Valid {
		return uuid.Nil, result
	}
	parsed, _ := uuid.Parse(value)
	return parsed, result
}

func (av *APIValidator) ValidateJobIDParam(jobID string) (uuid.UUID, *ValidationResult) {
	return av.ValidateUUIDParam("job_id", jobID)
}

// ValidateListParams checks the job list query string. Empty filters are
// valid; they just mean unfiltered.
func (av *APIValidator) ValidateListParams(status, jobType string, limit, offset int) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if status != "" {
		switch models.JobStatus(status) {
		case models.StatusPending, models.StatusRunning, models.StatusSucceeded,
			models.StatusFailed, models.StatusCancelled:
		default:
			result.AddError("status", status,
				"invalid status (must be: pending, running, succeeded, failed, cancelled)",
				"INVALID_STATUS")
		}
	}

	if jobType != "" {
		switch models.JobType(jobType) {
		case models.JobTypeGeneration, models.JobTypeCollectionGeneration,
			models.JobTypeDocumentGeneration:
		default:
			result.AddError("type", jobType,
				"invalid job type (must be: generation, collection-generation, document-generation)",
				"INVALID_TYPE")
		}
	}

	if limit < 0 {
		result.AddError("limit", fmt.Sprintf("%d", limit), "limit cannot be negative", "NEGATIVE_LIMIT")
	} else if limit > 1000 {
		result.AddError("limit", fmt.Sprintf("%d", limit), "limit too large (max 1000)", "LIMIT_TOO_LARGE")
	}
	if offset < 0 {
		result.AddError("offset", fmt.Sprintf("%d", offset), "offset cannot be negative", "NEGATIVE_OFFSET")
	}

	return result
}
