package api

import (
	"net/http"
	"strings"

	"studykit-worker/internal/logger"
	"studykit-worker/internal/storage"
	"studykit-worker/internal/validation"

	"github.com/gin-gonic/gin"
)

// maxDocumentBytes caps a single document upload.
const maxDocumentBytes = 10 << 20

// DocumentHandlers serves the raw document store that generation jobs
// later read their sources from. Paths are relative storage paths.
type DocumentHandlers struct {
	storageService *storage.Service
	validator      *validation.APIValidator
	log            *logger.Logger
}

func NewDocumentHandlers(storageService *storage.Service, validator *validation.APIValidator, log *logger.Logger) *DocumentHandlers {
	return &DocumentHandlers{
		storageService: storageService,
		validator:      validator,
		log:            log,
	}
}

func (h *DocumentHandlers) documentPath(c *gin.Context) (string, bool) {
	path := strings.TrimPrefix(c.Param("path"), "/")
	if result := h.validator.ValidateDocumentPath(path); !result.Valid {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "Invalid document path",
			"validation_errors": result.Errors,
		})
		return "", false
	}
	return path, true
}

// UploadDocument stores the request body under the given storage path.
// Re-uploading an existing path overwrites it.
func (h *DocumentHandlers) UploadDocument(c *gin.Context) {
	path, ok := h.documentPath(c)
	if !ok {
		return
	}

	existed, err := h.storageService.DocumentExists(c.Request.Context(), path)
	if err != nil {
		h.log.Error("Failed to check document", "path", path, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	body := http.MaxBytesReader(c.Writer, c.Request.Body, maxDocumentBytes)
	if err := h.storageService.UploadDocument(c.Request.Context(), path, body); err != nil {
		h.log.Error("Failed to upload document", "path", path, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	status := http.StatusCreated
	if existed {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"storage_path": path,
		"overwritten":  existed,
	})
}

// CheckDocument reports whether a document is present in the store.
func (h *DocumentHandlers) CheckDocument(c *gin.Context) {
	path, ok := h.documentPath(c)
	if !ok {
		return
	}

	exists, err := h.storageService.DocumentExists(c.Request.Context(), path)
	if err != nil {
		h.log.Error("Failed to check document", "path", path, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !exists {
		c.Status(http.StatusNotFound)
		return
	}
	c.Status(http.StatusOK)
}

// DeleteDocument removes a stored document.
func (h *DocumentHandlers) DeleteDocument(c *gin.Context) {
	path, ok := h.documentPath(c)
	if !ok {
		return
	}

	if err := h.storageService.DeleteDocument(c.Request.Context(), path); err != nil {
		h.log.Error("Failed to delete document", "path", path, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
