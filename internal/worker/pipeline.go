package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"studykit-worker/internal/extraction"
	"studykit-worker/internal/generation"
	"studykit-worker/internal/jobs"
	"studykit-worker/internal/logger"
	"studykit-worker/internal/study"
	"studykit-worker/pkg/models"

	"github.com/google/uuid"
)

// ErrUnknownJobType means a job row carries a type no pipeline handles.
var ErrUnknownJobType = errors.New("unknown job type")

// PipelineError tags a pipeline failure with its failure kind.
type PipelineError struct {
	Kind models.FailureKind
	Err  error
}

func (e *PipelineError) Error() string { return e.Err.Error() }
func (e *PipelineError) Unwrap() error { return e.Err }

func inputErr(err error) error       { return &PipelineError{Kind: models.FailureInput, Err: err} }
func externalErr(err error) error    { return &PipelineError{Kind: models.FailureExternal, Err: err} }
func persistenceErr(err error) error { return &PipelineError{Kind: models.FailurePersistence, Err: err} }

// Pipeline turns one claimed job into artifacts: extract, assemble the
// corpus, invoke generation, persist. One job runs start to finish on its
// worker; there is no intra-job concurrency.
type Pipeline struct {
	jobService jobs.JobService
	extractor  *extraction.Extractor
	invoker    generation.Invoker
	persister  *study.Persister
	studyRepo  *study.Repository
	log        *logger.Logger

	corpusBudget    int
	progressTimeout time.Duration
}

func NewPipeline(
	jobService jobs.JobService,
	extractor *extraction.Extractor,
	invoker generation.Invoker,
	persister *study.Persister,
	studyRepo *study.Repository,
	log *logger.Logger,
	corpusBudget int,
	progressTimeout time.Duration,
) *Pipeline {
	if corpusBudget <= 0 {
		corpusBudget = extraction.DefaultCorpusBudget
	}
	if progressTimeout <= 0 {
		progressTimeout = 2 * time.Second
	}
	return &Pipeline{
		jobService:      jobService,
		extractor:       extractor,
		invoker:         invoker,
		persister:       persister,
		studyRepo:       studyRepo,
		log:             log,
		corpusBudget:    corpusBudget,
		progressTimeout: progressTimeout,
	}
}

// Process dispatches on the job type. The switch is exhaustive over the
// types workers claim; anything else is rejected as bad input.
func (p *Pipeline) Process(ctx context.Context, job *models.Job) (models.JSON, error) {
	switch job.Type {
	case models.JobTypeCollectionGeneration:
		return p.processCollectionGeneration(ctx, job)
	case models.JobTypeDocumentGeneration:
		return p.processDocumentGeneration(ctx, job)
	case models.JobTypeGeneration:
		return p.processGeneration(ctx, job)
	default:
		return nil, inputErr(fmt.Errorf("%w: %s", ErrUnknownJobType, job.Type))
	}
}

func (p *Pipeline) processCollectionGeneration(ctx context.Context, job *models.Job) (models.JSON, error) {
	var payload models.CollectionGenerationPayload
	if err := models.DecodePayload(job.Payload, &payload); err != nil {
		return nil, inputErr(err)
	}
	if payload.CollectionID == uuid.Nil {
		return nil, inputErr(errors.New("payload is missing collection_id"))
	}
	if len(payload.Sources) == 0 {
		p.failCollection(payload.CollectionID)
		return nil, inputErr(errors.New("payload has no sources"))
	}

	result, err := p.generateIntoCollection(ctx, job, payload.CollectionID, payload.Title, payload.Tags, payload.Sources)
	if err != nil {
		return nil, err
	}
	return resultJSON(result.result)
}

func (p *Pipeline) processDocumentGeneration(ctx context.Context, job *models.Job) (models.JSON, error) {
	var payload models.DocumentGenerationPayload
	if err := models.DecodePayload(job.Payload, &payload); err != nil {
		return nil, inputErr(err)
	}
	if payload.CollectionID == uuid.Nil || payload.DocumentID == uuid.Nil {
		return nil, inputErr(errors.New("payload is missing collection_id or document_id"))
	}

	source := models.SourceInput{
		DocumentID:  &payload.DocumentID,
		StoragePath: payload.StoragePath,
		Title:       payload.Title,
		Tags:        payload.Tags,
	}
	result, err := p.generateIntoCollection(ctx, job, payload.CollectionID, payload.Title, payload.Tags, []models.SourceInput{source})
	if err != nil {
		p.setDocumentStatus(payload.DocumentID, models.DocumentFailed, 0)
		return nil, err
	}
	p.setDocumentStatus(payload.DocumentID, models.DocumentReady, result.textLength)
	return resultJSON(result.result)
}

type collectionOutcome struct {
	result     models.CollectionGenerationResult
	textLength int
}

func (p *Pipeline) generateIntoCollection(
	ctx context.Context,
	job *models.Job,
	collectionID uuid.UUID,
	title string,
	tags []string,
	sources []models.SourceInput,
) (*collectionOutcome, error) {
	p.reportProgress(job.ID, 0.05)

	extracted := p.extractor.Extract(ctx, sources)
	corpus, err := extraction.BuildCorpus(extracted, p.corpusBudget)
	if err != nil {
		p.failCollection(collectionID)
		if errors.Is(err, extraction.ErrEmptyCorpus) {
			return nil, inputErr(err)
		}
		return nil, externalErr(err)
	}
	p.reportProgress(job.ID, 0.2)
	p.log.Debug("Corpus assembled",
		"job_id", job.ID,
		"total_chars", corpus.TotalChars,
		"sources", len(corpus.Sources))

	flashcardCount, quizCount := extraction.TargetCounts(corpus.TotalChars)
	studySet, usage, err := p.invoker.GenerateStudySet(ctx, generation.Request{
		Corpus:         corpus.Text,
		Title:          title,
		Tags:           tags,
		FlashcardCount: flashcardCount,
		QuizCount:      quizCount,
	})
	if err != nil {
		p.failCollection(collectionID)
		return nil, externalErr(err)
	}
	p.reportProgress(job.ID, 0.6)

	persisted, err := p.persister.PersistStudySet(ctx, collectionID, studySet, corpus, usage,
		func(done, total int) {
			if total > 0 {
				p.reportProgress(job.ID, 0.6+0.35*float64(done)/float64(total))
			}
		})
	if err != nil {
		// The persister already marked the collection failed.
		return nil, persistenceErr(err)
	}

	return &collectionOutcome{
		result: models.CollectionGenerationResult{
			CollectionID:    collectionID,
			FlashcardsCount: persisted.FlashcardsCount,
			QuizCount:       persisted.QuizCount,
			TokensUsed:      usage.Total(),
		},
		textLength: corpus.TotalChars,
	}, nil
}

func (p *Pipeline) processGeneration(ctx context.Context, job *models.Job) (models.JSON, error) {
	var payload models.GenerationPayload
	if err := models.DecodePayload(job.Payload, &payload); err != nil {
		return nil, inputErr(err)
	}
	text := extraction.Normalize(payload.Text)
	if text == "" {
		return nil, inputErr(errors.New("payload has no text"))
	}
	p.reportProgress(job.ID, 0.1)

	switch payload.Mode {
	case models.ModeStructured:
		flashcardCount, quizCount := extraction.TargetCounts(len([]rune(text)))
		studySet, usage, err := p.invoker.GenerateStudySet(ctx, generation.Request{
			Corpus:         text,
			FlashcardCount: flashcardCount,
			QuizCount:      quizCount,
		})
		if err != nil {
			return nil, externalErr(err)
		}
		return resultJSON(models.GenerationResult{
			Mode:       payload.Mode,
			Kind:       "structured",
			Data:       studySet,
			TokensUsed: usage.Total(),
			Model:      p.invoker.ModelName(),
		})
	case models.ModeText, "":
		output, usage, err := p.invoker.GenerateText(ctx, text)
		if err != nil {
			return nil, externalErr(err)
		}
		return resultJSON(models.GenerationResult{
			Mode:       models.ModeText,
			Kind:       "text",
			Data:       output,
			TokensUsed: usage.Total(),
			Model:      p.invoker.ModelName(),
		})
	default:
		return nil, inputErr(fmt.Errorf("unknown generation mode %q", payload.Mode))
	}
}

// reportProgress is fire-and-forget: it gets its own short deadline so a
// slow store never blocks the pipeline, and a terminal job drops the write
// at the store.
func (p *Pipeline) reportProgress(jobID uuid.UUID, value float64) {
	ctx, cancel := context.WithTimeout(context.Background(), p.progressTimeout)
	defer cancel()
	if err := p.jobService.UpdateProgress(ctx, jobID, value); err != nil {
		p.log.Debug("Progress update dropped", "job_id", jobID, "error", err)
	}
}

// Failure-path writes run on their own context so they still land after
// the job deadline has expired.
func (p *Pipeline) failCollection(collectionID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.studyRepo.MarkCollectionFailed(ctx, collectionID); err != nil {
		p.log.Error("Failed to mark collection failed", "collection_id", collectionID, "error", err)
	}
}

func (p *Pipeline) setDocumentStatus(documentID uuid.UUID, status models.DocumentStatus, textLength int) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.studyRepo.SetDocumentStatus(ctx, documentID, status, textLength); err != nil {
		p.log.Error("Failed to update document status", "document_id", documentID, "error", err)
	}
}

func resultJSON(v interface{}) (models.JSON, error) {
	encoded, err := models.EncodePayload(v)
	if err != nil {
		return nil, persistenceErr(fmt.Errorf("failed to encode result: %w", err))
	}
	return encoded, nil
}
