package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"studykit-worker/internal/database"
	"studykit-worker/internal/jobs"
	"studykit-worker/internal/logger"
	"studykit-worker/internal/review"
	"studykit-worker/internal/storage"
	"studykit-worker/internal/storage/filesystem"
	"studykit-worker/internal/study"
	"studykit-worker/internal/validation"
	"studykit-worker/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type apiFixture struct {
	db     *gorm.DB
	router *gin.Engine
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))

	log := logger.NewNop()
	studyRepo := study.NewRepository(db)
	jobService := jobs.NewJobService(jobs.NewJobRepository(db), studyRepo, log)
	reviewService := review.NewService(db, log)
	validator := validation.NewAPIValidator(validation.DefaultValidationConfig())

	backend, err := filesystem.NewFilesystemStorage(t.TempDir())
	require.NoError(t, err)
	storageService := storage.NewService(backend)

	return &apiFixture{
		db:     db,
		router: SetupRouter(jobService, reviewService, storageService, validator, nil, log),
	}
}

func (f *apiFixture) request(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t)
	w := f.request(t, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "studykit-worker", body["service"])
}

func TestCreateCollectionGeneration(t *testing.T) {
	f := newAPIFixture(t)

	w := f.request(t, http.MethodPost, "/api/v1/collections/generate", gin.H{
		"owner_id": uuid.New().String(),
		"title":    "Concurrency in Go",
		"tags":     []string{"go", "concurrency"},
		"sources": []gin.H{
			{"title": "chapter 1", "raw_text": "goroutines are cheap"},
			{"title": "chapter 2", "storage_path": "courses/ch2.md"},
		},
	})

	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, "collection-generation", body["type"])
	assert.NotEmpty(t, body["id"])

	// The parent collection exists immediately in processing state.
	var collection models.Collection
	require.NoError(t, f.db.First(&collection).Error)
	assert.Equal(t, models.CollectionProcessing, collection.Status)
	assert.Equal(t, 2, collection.TotalSources)
}

func TestCreateCollectionGeneration_Invalid(t *testing.T) {
	f := newAPIFixture(t)

	cases := []struct {
		name string
		body gin.H
	}{
		{"no sources", gin.H{
			"owner_id": uuid.New().String(),
			"title":    "Empty",
			"sources":  []gin.H{},
		}},
		{"path traversal", gin.H{
			"owner_id": uuid.New().String(),
			"title":    "Sneaky",
			"sources":  []gin.H{{"title": "x", "storage_path": "../../etc/passwd.txt"}},
		}},
		{"absolute path", gin.H{
			"owner_id": uuid.New().String(),
			"title":    "Sneaky",
			"sources":  []gin.H{{"title": "x", "storage_path": "/etc/hosts.txt"}},
		}},
		{"binary extension", gin.H{
			"owner_id": uuid.New().String(),
			"title":    "Binary",
			"sources":  []gin.H{{"title": "x", "storage_path": "courses/app.exe"}},
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := f.request(t, http.MethodPost, "/api/v1/collections/generate", tc.body)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			body := decodeBody(t, w)
			assert.NotEmpty(t, body["validation_errors"])
		})
	}
}

func TestCreateGenerationJob(t *testing.T) {
	f := newAPIFixture(t)

	w := f.request(t, http.MethodPost, "/api/v1/generate", gin.H{
		"owner_id": uuid.New().String(),
		"mode":     "text",
		"text":     "summarize the select statement",
	})

	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t, "generation", body["type"])
	assert.Equal(t, "pending", body["status"])
}

func TestCreateGenerationJob_BadMode(t *testing.T) {
	f := newAPIFixture(t)

	w := f.request(t, http.MethodPost, "/api/v1/generate", gin.H{
		"owner_id": uuid.New().String(),
		"mode":     "interpretive-dance",
		"text":     "anything",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetJobStatus(t *testing.T) {
	f := newAPIFixture(t)

	created := f.request(t, http.MethodPost, "/api/v1/generate", gin.H{
		"owner_id": uuid.New().String(),
		"text":     "some text",
	})
	require.Equal(t, http.StatusAccepted, created.Code)
	jobID := decodeBody(t, created)["id"].(string)

	w := f.request(t, http.MethodGet, "/api/v1/jobs/"+jobID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, jobID, decodeBody(t, w)["id"])

	w = f.request(t, http.MethodGet, "/api/v1/jobs/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.request(t, http.MethodGet, "/api/v1/jobs/"+uuid.New().String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListJobs(t *testing.T) {
	f := newAPIFixture(t)
	ownerID := uuid.New()

	for i := 0; i < 3; i++ {
		w := f.request(t, http.MethodPost, "/api/v1/generate", gin.H{
			"owner_id": ownerID.String(),
			"text":     fmt.Sprintf("text %d", i),
		})
		require.Equal(t, http.StatusAccepted, w.Code)
	}

	w := f.request(t, http.MethodGet, "/api/v1/jobs?status=pending&owner_id="+ownerID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Len(t, body["jobs"], 3)

	w = f.request(t, http.MethodGet, "/api/v1/jobs?status=definitely-not-a-status", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.request(t, http.MethodGet, "/api/v1/jobs?type=transcoding", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func seedFlashcard(t *testing.T, f *apiFixture) models.Flashcard {
	t.Helper()
	collection := models.Collection{
		ID:      uuid.New(),
		OwnerID: uuid.New(),
		Title:   "Seeded",
		Status:  models.CollectionReady,
	}
	require.NoError(t, f.db.Create(&collection).Error)
	card := models.Flashcard{
		CollectionID: collection.ID,
		Question:     "What does the select statement do?",
		Answer:       "Waits on multiple channel operations.",
	}
	require.NoError(t, f.db.Create(&card).Error)
	return card
}

func seedQuizQuestion(t *testing.T, f *apiFixture) models.QuizQuestion {
	t.Helper()
	collection := models.Collection{
		ID:      uuid.New(),
		OwnerID: uuid.New(),
		Title:   "Seeded",
		Status:  models.CollectionReady,
	}
	require.NoError(t, f.db.Create(&collection).Error)
	question := models.QuizQuestion{
		CollectionID: collection.ID,
		Type:         "multiple-choice",
		Prompt:       "Which keyword starts a goroutine?",
		Options:      models.StringSlice{"go", "run", "spawn", "fork"},
		Answer:       "go",
		Tags:         models.StringSlice{"goroutines"},
	}
	require.NoError(t, f.db.Create(&question).Error)
	return question
}

func TestReviewFlashcard(t *testing.T) {
	f := newAPIFixture(t)
	card := seedFlashcard(t, f)
	userID := uuid.New()

	path := fmt.Sprintf("/api/v1/flashcards/%s/review?user_id=%s", card.ID, userID)
	w := f.request(t, http.MethodPost, path, gin.H{"quality": "easy"})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.EqualValues(t, 1, body["box"])
	assert.NotEmpty(t, body["next_review"])
}

func TestReviewFlashcard_Invalid(t *testing.T) {
	f := newAPIFixture(t)
	card := seedFlashcard(t, f)
	userID := uuid.New()

	// Missing user id.
	w := f.request(t, http.MethodPost,
		fmt.Sprintf("/api/v1/flashcards/%s/review", card.ID), gin.H{"quality": "easy"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Unknown quality.
	w = f.request(t, http.MethodPost,
		fmt.Sprintf("/api/v1/flashcards/%s/review?user_id=%s", card.ID, userID),
		gin.H{"quality": "impossible"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Unknown flashcard.
	w = f.request(t, http.MethodPost,
		fmt.Sprintf("/api/v1/flashcards/%s/review?user_id=%s", uuid.New(), userID),
		gin.H{"quality": "easy"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAnswerQuizQuestion(t *testing.T) {
	f := newAPIFixture(t)
	question := seedQuizQuestion(t, f)
	userID := uuid.New()

	path := fmt.Sprintf("/api/v1/quiz/%s/answer?user_id=%s", question.ID, userID)
	w := f.request(t, http.MethodPost, path, gin.H{
		"is_correct":         false,
		"user_answer":        "run",
		"time_spent_seconds": 12,
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.NotEmpty(t, body["answer_id"])
	sessionID := body["session_id"].(string)
	assert.NotEmpty(t, sessionID)

	// A second answer in the same session reuses it.
	w = f.request(t, http.MethodPost, path, gin.H{
		"is_correct": true,
		"session_id": sessionID,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, sessionID, decodeBody(t, w)["session_id"])

	// The incorrect answer surfaced the question's tag as a weak area.
	weak := f.request(t, http.MethodGet,
		fmt.Sprintf("/api/v1/collections/%s/weak-areas?user_id=%s", question.CollectionID, userID), nil)
	require.Equal(t, http.StatusOK, weak.Code)
	areas := decodeBody(t, weak)["weak_areas"].([]interface{})
	require.Len(t, areas, 1)
	area := areas[0].(map[string]interface{})
	assert.Equal(t, "goroutines", area["tag"])
}

func TestAnswerQuizQuestion_MissingIsCorrect(t *testing.T) {
	f := newAPIFixture(t)
	question := seedQuizQuestion(t, f)

	w := f.request(t, http.MethodPost,
		fmt.Sprintf("/api/v1/quiz/%s/answer?user_id=%s", question.ID, uuid.New()),
		gin.H{"user_answer": "go"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDocumentUploadLifecycle(t *testing.T) {
	f := newAPIFixture(t)

	put := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPut, "/api/v1/documents/courses/slides.txt", strings.NewReader(body))
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, req)
		return w
	}

	w := put("Membranes move solutes.")
	require.Equal(t, http.StatusCreated, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "courses/slides.txt", body["storage_path"])
	assert.Equal(t, false, body["overwritten"])

	w = f.request(t, http.MethodHead, "/api/v1/documents/courses/slides.txt", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = put("Membranes move solutes, revised.")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["overwritten"])

	w = f.request(t, http.MethodDelete, "/api/v1/documents/courses/slides.txt", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = f.request(t, http.MethodHead, "/api/v1/documents/courses/slides.txt", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDocumentUpload_InvalidPath(t *testing.T) {
	f := newAPIFixture(t)

	tests := []struct {
		name string
		path string
	}{
		{"forbidden extension", "/api/v1/documents/setup.exe"},
		{"no extension", "/api/v1/documents/notes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, tt.path, strings.NewReader("content"))
			w := httptest.NewRecorder()
			f.router.ServeHTTP(w, req)

			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, decodeBody(t, w), "validation_errors")
		})
	}
}

func TestWorkersStats_NoPool(t *testing.T) {
	f := newAPIFixture(t)
	w := f.request(t, http.MethodGet, "/api/v1/workers/stats", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
