package study

import (
	"context"
	"fmt"
	"testing"
	"time"

	"studykit-worker/internal/database"
	"studykit-worker/internal/extraction"
	"studykit-worker/internal/generation"
	"studykit-worker/internal/logger"
	"studykit-worker/pkg/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupStudyRepo(t *testing.T) (*Repository, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return NewRepository(db), db
}

func newTestPersister(repo *Repository, batchSize int) *Persister {
	p := NewPersister(repo, logger.NewNop(), batchSize)
	p.yield = func() {}
	return p
}

func processingCollection(t *testing.T, repo *Repository) *models.Collection {
	t.Helper()
	collection := &models.Collection{
		OwnerID: uuid.New(),
		Title:   "Cell Biology",
		Status:  models.CollectionProcessing,
	}
	require.NoError(t, repo.CreateCollection(context.Background(), collection))
	return collection
}

func studySetOf(flashcards, quiz int) *generation.StudySet {
	set := &generation.StudySet{Summary: "Membrane transport."}
	for i := 0; i < flashcards; i++ {
		set.Flashcards = append(set.Flashcards, generation.Flashcard{
			Question: fmt.Sprintf("question %d", i),
			Answer:   fmt.Sprintf("answer %d", i),
			Tags:     []string{"biology"},
		})
	}
	for i := 0; i < quiz; i++ {
		set.Quiz = append(set.Quiz, generation.QuizQuestion{
			Type:   "short_answer",
			Prompt: fmt.Sprintf("prompt %d", i),
			Answer: fmt.Sprintf("answer %d", i),
		})
	}
	return set
}

func corpusOf(lengths ...int) *extraction.Corpus {
	corpus := &extraction.Corpus{}
	for i, length := range lengths {
		corpus.Sources = append(corpus.Sources, extraction.SourceReport{
			Title:      fmt.Sprintf("source %d", i),
			TextLength: length,
			Included:   true,
		})
		corpus.TotalChars += length
	}
	return corpus
}

func TestPersistStudySet_CompletesCollection(t *testing.T) {
	repo, db := setupStudyRepo(t)
	persister := newTestPersister(repo, DefaultBatchSize)
	ctx := context.Background()
	collection := processingCollection(t, repo)

	result, err := persister.PersistStudySet(ctx, collection.ID, studySetOf(5, 3), corpusOf(3000, 4000),
		generation.Usage{PromptTokens: 1800, CompletionTokens: 950}, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, result.FlashcardsCount)
	assert.Equal(t, 3, result.QuizCount)

	updated, err := repo.GetCollection(ctx, collection.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CollectionReady, updated.Status)
	assert.Equal(t, 2, updated.TotalSources)
	assert.Equal(t, 5, updated.TotalFlashcards)
	assert.Equal(t, 3, updated.TotalQuiz)
	assert.Equal(t, 1800, updated.PromptTokens)
	assert.Equal(t, 950, updated.CompletionTokens)
	assert.Equal(t, "Membrane transport.", updated.Metadata["summary"])

	var flashcards []models.Flashcard
	require.NoError(t, db.Where("collection_id = ?", collection.ID).Order("order_index").Find(&flashcards).Error)
	require.Len(t, flashcards, 5)
	assert.Equal(t, "question 0", flashcards[0].Question)

	var sources []models.CollectionSource
	require.NoError(t, db.Where("collection_id = ?", collection.ID).Order("order_index").Find(&sources).Error)
	require.Len(t, sources, 2)
	assert.Equal(t, 3000, sources[0].TextLength)
	assert.True(t, sources[1].Included)
}

func TestPersistStudySet_BatchProgress(t *testing.T) {
	repo, _ := setupStudyRepo(t)
	persister := newTestPersister(repo, 10)
	collection := processingCollection(t, repo)

	var reported [][2]int
	_, err := persister.PersistStudySet(context.Background(), collection.ID, studySetOf(25, 5), corpusOf(20000),
		generation.Usage{}, func(done, total int) {
			reported = append(reported, [2]int{done, total})
		})
	require.NoError(t, err)

	// 25 flashcards in batches of 10, then one batch of 5 quiz questions.
	assert.Equal(t, [][2]int{{10, 30}, {20, 30}, {25, 30}, {30, 30}}, reported)
}

func TestPersistStudySet_FailureMarksCollectionFailed(t *testing.T) {
	repo, db := setupStudyRepo(t)
	persister := newTestPersister(repo, DefaultBatchSize)
	ctx := context.Background()
	collection := processingCollection(t, repo)

	// Dropping the table mid-run stands in for a storage failure.
	require.NoError(t, db.Migrator().DropTable(&models.QuizQuestion{}))

	_, err := persister.PersistStudySet(ctx, collection.ID, studySetOf(2, 2), corpusOf(1000),
		generation.Usage{}, nil)
	require.Error(t, err)

	updated, err := repo.GetCollection(ctx, collection.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CollectionFailed, updated.Status)

	var flashcards int64
	require.NoError(t, db.Model(&models.Flashcard{}).Where("collection_id = ?", collection.ID).Count(&flashcards).Error)
	assert.Equal(t, int64(2), flashcards, "committed batches are not rolled back")
}

func TestPersistStudySet_ExpiredDeadlineStillFailsCollection(t *testing.T) {
	repo, _ := setupStudyRepo(t)
	persister := newTestPersister(repo, DefaultBatchSize)
	collection := processingCollection(t, repo)

	// The job deadline expires mid-persist; the failure mark must not
	// run on the dead context or the collection stays processing.
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	_, err := persister.PersistStudySet(ctx, collection.ID, studySetOf(3, 2), corpusOf(1000),
		generation.Usage{}, nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	updated, err := repo.GetCollection(context.Background(), collection.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CollectionFailed, updated.Status)
}

func TestCompleteCollection_RequiresProcessing(t *testing.T) {
	repo, _ := setupStudyRepo(t)
	ctx := context.Background()
	collection := processingCollection(t, repo)

	require.NoError(t, repo.MarkCollectionFailed(ctx, collection.ID))

	err := repo.CompleteCollection(ctx, collection.ID, CollectionTotals{})
	assert.Error(t, err, "a failed collection can not become ready")

	// MarkCollectionFailed is idempotent and leaves non-processing rows alone.
	require.NoError(t, repo.MarkCollectionFailed(ctx, collection.ID))
}

func TestCreateDocument_UpsertResetsStatus(t *testing.T) {
	repo, _ := setupStudyRepo(t)
	ctx := context.Background()

	docID := uuid.New()
	first := &models.Document{
		ID:          docID,
		OwnerID:     uuid.New(),
		Title:       "Lecture 1",
		StoragePath: "documents/lecture1.txt",
		Status:      models.DocumentProcessing,
	}
	require.NoError(t, repo.CreateDocument(ctx, first))
	require.NoError(t, repo.SetDocumentStatus(ctx, docID, models.DocumentReady, 4200))

	again := &models.Document{
		ID:          docID,
		OwnerID:     first.OwnerID,
		Title:       "Lecture 1 (revised)",
		StoragePath: "documents/lecture1-v2.txt",
		Status:      models.DocumentProcessing,
	}
	require.NoError(t, repo.CreateDocument(ctx, again))

	var document models.Document
	require.NoError(t, repo.db.First(&document, "id = ?", docID).Error)
	assert.Equal(t, models.DocumentProcessing, document.Status)
	assert.Equal(t, "Lecture 1 (revised)", document.Title)
	assert.Equal(t, 4200, document.TextLength, "text length survives the upsert")
}
