package api

import (
	"net/http"

	"studykit-worker/internal/jobs"
	"studykit-worker/internal/logger"
	"studykit-worker/internal/review"
	"studykit-worker/internal/storage"
	"studykit-worker/internal/validation"
	"studykit-worker/internal/worker"

	"github.com/gin-gonic/gin"
)

// WorkerStatsProvider exposes the worker pool's health surface without
// coupling the router to the pool itself.
type WorkerStatsProvider interface {
	Stats() worker.PoolStats
}

func SetupRouter(
	jobService jobs.JobService,
	reviewService *review.Service,
	storageService *storage.Service,
	validator *validation.APIValidator,
	pool WorkerStatsProvider,
	log *logger.Logger,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))
	r.Use(SecurityHeadersMiddleware())

	handlers := NewHandlers(jobService, reviewService, validator, log)
	documents := NewDocumentHandlers(storageService, validator, log)

	r.GET("/health", handlers.Health)

	api := r.Group("/api/v1")
	{
		api.POST("/generate", handlers.CreateGenerationJob)
		api.POST("/collections/generate", handlers.CreateCollectionGeneration)
		api.POST("/documents/generate", handlers.CreateDocumentGeneration)
		api.PUT("/documents/*path", documents.UploadDocument)
		api.HEAD("/documents/*path", documents.CheckDocument)
		api.DELETE("/documents/*path", documents.DeleteDocument)
		api.GET("/jobs/:id", handlers.GetJobStatus)
		api.GET("/jobs", handlers.ListJobs)

		api.POST("/flashcards/:id/review", handlers.ReviewFlashcard)
		api.POST("/quiz/:id/answer", handlers.AnswerQuizQuestion)
		api.GET("/collections/:id/weak-areas", handlers.GetWeakAreas)

		api.GET("/workers/stats", func(c *gin.Context) {
			if pool == nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "worker pool not running"})
				return
			}
			c.JSON(http.StatusOK, pool.Stats())
		})
	}

	return r
}
