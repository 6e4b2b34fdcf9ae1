package study

import (
	"context"
	"time"

	"studykit-worker/internal/extraction"
	"studykit-worker/internal/generation"
	"studykit-worker/internal/logger"
	"studykit-worker/pkg/models"

	"github.com/google/uuid"
)

// DefaultBatchSize is the fixed insert batch size for generated artifacts.
const DefaultBatchSize = 25

// ProgressFunc reports persisted artifacts after each committed batch.
type ProgressFunc func(done, total int)

// Persister writes the generated study set under its collection and then
// performs the single completion transition. Committed batches are never
// rolled back on a later failure; the collection is marked failed instead.
type Persister struct {
	repo      *Repository
	log       *logger.Logger
	batchSize int
	yield     func()
}

func NewPersister(repo *Repository, log *logger.Logger, batchSize int) *Persister {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Persister{
		repo:      repo,
		log:       log,
		batchSize: batchSize,
		// Brief pause between batches keeps bulk inserts from hogging
		// the connection pool.
		yield: func() { time.Sleep(10 * time.Millisecond) },
	}
}

// PersistResult reports what one persist run wrote.
type PersistResult struct {
	FlashcardsCount int
	QuizCount       int
}

// PersistStudySet writes sources, flashcards and quiz questions for the
// collection, then completes it. On error the collection is marked failed
// and the error is returned for the job to record as a persistence failure.
func (p *Persister) PersistStudySet(
	ctx context.Context,
	collectionID uuid.UUID,
	studySet *generation.StudySet,
	corpus *extraction.Corpus,
	usage generation.Usage,
	progress ProgressFunc,
) (*PersistResult, error) {
	result, err := p.persist(ctx, collectionID, studySet, corpus, usage, progress)
	if err != nil {
		// The persist error may be the job deadline itself, so the failure
		// mark runs on its own context to still land after expiry.
		markCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if markErr := p.repo.MarkCollectionFailed(markCtx, collectionID); markErr != nil {
			p.log.Error("Failed to mark collection failed after persistence error",
				"collection_id", collectionID, "error", markErr)
		}
		return nil, err
	}
	return result, nil
}

func (p *Persister) persist(
	ctx context.Context,
	collectionID uuid.UUID,
	studySet *generation.StudySet,
	corpus *extraction.Corpus,
	usage generation.Usage,
	progress ProgressFunc,
) (*PersistResult, error) {
	sources := make([]models.CollectionSource, 0, len(corpus.Sources))
	for i, report := range corpus.Sources {
		sources = append(sources, models.CollectionSource{
			CollectionID: collectionID,
			DocumentID:   report.DocumentID,
			Title:        report.Title,
			StoragePath:  report.StoragePath,
			TextLength:   report.TextLength,
			Included:     report.Included,
			OrderIndex:   i,
		})
	}
	if err := p.repo.CreateSources(ctx, sources); err != nil {
		return nil, err
	}

	flashcards := make([]models.Flashcard, 0, len(studySet.Flashcards))
	for i, card := range studySet.Flashcards {
		flashcards = append(flashcards, models.Flashcard{
			CollectionID: collectionID,
			Question:     card.Question,
			Answer:       card.Answer,
			Tags:         models.StringSlice(card.Tags),
			OrderIndex:   i,
		})
	}
	questions := make([]models.QuizQuestion, 0, len(studySet.Quiz))
	for i, q := range studySet.Quiz {
		questions = append(questions, models.QuizQuestion{
			CollectionID: collectionID,
			Type:         q.Type,
			Prompt:       q.Prompt,
			Options:      models.StringSlice(q.Options),
			Answer:       q.Answer,
			Explanation:  q.Explanation,
			Tags:         models.StringSlice(q.Tags),
			OrderIndex:   i,
		})
	}

	total := len(flashcards) + len(questions)
	done := 0

	for start := 0; start < len(flashcards); start += p.batchSize {
		end := minInt(start+p.batchSize, len(flashcards))
		if err := p.repo.CreateFlashcards(ctx, flashcards[start:end]); err != nil {
			return nil, err
		}
		done += end - start
		p.afterBatch(progress, done, total)
	}
	for start := 0; start < len(questions); start += p.batchSize {
		end := minInt(start+p.batchSize, len(questions))
		if err := p.repo.CreateQuizQuestions(ctx, questions[start:end]); err != nil {
			return nil, err
		}
		done += end - start
		p.afterBatch(progress, done, total)
	}

	metadata := models.JSON{}
	if studySet.Summary != "" {
		metadata["summary"] = studySet.Summary
	}
	if len(studySet.Notes) > 0 {
		metadata["notes"] = studySet.Notes
	}

	err := p.repo.CompleteCollection(ctx, collectionID, CollectionTotals{
		TotalSources:     len(corpus.Sources),
		TotalFlashcards:  len(flashcards),
		TotalQuiz:        len(questions),
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		Metadata:         metadata,
	})
	if err != nil {
		return nil, err
	}

	p.log.Info("Study set persisted",
		"collection_id", collectionID,
		"flashcards", len(flashcards),
		"quiz", len(questions))

	return &PersistResult{
		FlashcardsCount: len(flashcards),
		QuizCount:       len(questions),
	}, nil
}

func (p *Persister) afterBatch(progress ProgressFunc, done, total int) {
	if progress != nil {
		progress(done, total)
	}
	if p.yield != nil {
		p.yield()
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
