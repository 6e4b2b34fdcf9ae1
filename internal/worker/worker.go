package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"studykit-worker/internal/jobs"
	"studykit-worker/internal/logger"
	"studykit-worker/pkg/models"

	"github.com/google/uuid"
)

// Processor executes one claimed job. *Pipeline is the production
// implementation.
type Processor interface {
	Process(ctx context.Context, job *models.Job) (models.JSON, error)
}

// Worker is one single-threaded claim loop. It claims a pending job,
// processes it to completion, then polls again; an empty poll backs off
// exponentially until the next successful claim.
type Worker struct {
	id         int
	jobService jobs.JobService
	processor  Processor
	config     *PoolConfig
	log        *logger.Logger

	// sleep is swapped out in tests to avoid wall-clock waits. It returns
	// false when the context ended during the wait.
	sleep func(ctx context.Context, d time.Duration) bool

	mu           sync.RWMutex
	status       string
	currentJobID uuid.UUID

	jobsTotal   int64
	jobsSuccess int64
	jobsFailed  int64
}

func NewWorker(id int, jobService jobs.JobService, processor Processor, config *PoolConfig, log *logger.Logger) *Worker {
	return &Worker{
		id:         id,
		jobService: jobService,
		processor:  processor,
		config:     config,
		log:        log.With("worker", id),
		sleep:      sleepCtx,
		status:     "idle",
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (w *Worker) run(ctx context.Context) {
	w.log.Debug("Worker started")
	delay := w.config.PollBase

	for {
		if ctx.Err() != nil {
			w.setState("stopped", uuid.Nil)
			w.log.Debug("Worker stopped")
			return
		}

		job := w.claim(ctx)
		if job != nil {
			w.processJob(ctx, job)
			delay = w.config.PollBase
			continue
		}

		if !w.sleep(ctx, delay) {
			w.setState("stopped", uuid.Nil)
			w.log.Debug("Worker stopped")
			return
		}
		delay = time.Duration(float64(delay) * w.config.BackoffFactor)
		if delay > w.config.PollMax {
			delay = w.config.PollMax
		}
	}
}

// claim tries each handled job type in priority order and returns the
// first job won, or nil when the queue is empty.
func (w *Worker) claim(ctx context.Context) *models.Job {
	for _, jobType := range w.config.JobTypes {
		job, err := w.jobService.ClaimNextPending(ctx, jobType)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				w.log.Error("Claim failed", "job_type", jobType, "error", err)
			}
			continue
		}
		if job != nil {
			return job
		}
	}
	return nil
}

func (w *Worker) processJob(ctx context.Context, job *models.Job) {
	w.setState("busy", job.ID)
	atomic.AddInt64(&w.jobsTotal, 1)
	defer w.setState("idle", uuid.Nil)

	w.log.Info("Processing job", "job_id", job.ID, "job_type", job.Type)
	start := time.Now()

	jobCtx, cancel := context.WithTimeout(ctx, w.config.JobTimeout)
	defer cancel()

	result, err := w.runPipeline(jobCtx, job)

	// The job context may already be dead here; terminal writes get a
	// fresh deadline so a timed-out job is still finalized.
	finalCtx, cancelFinal := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelFinal()

	if err != nil {
		kind := classifyFailure(jobCtx, err)
		atomic.AddInt64(&w.jobsFailed, 1)
		w.log.Warn("Job failed",
			"job_id", job.ID,
			"failure_kind", kind,
			"duration", time.Since(start),
			"error", err)
		if finalizeErr := w.jobService.Finalize(finalCtx, job.ID, models.StatusFailed, nil, err.Error(), kind); finalizeErr != nil {
			w.log.Error("Failed to finalize job", "job_id", job.ID, "error", finalizeErr)
		}
		return
	}

	atomic.AddInt64(&w.jobsSuccess, 1)
	w.log.Info("Job succeeded", "job_id", job.ID, "duration", time.Since(start))
	if finalizeErr := w.jobService.Finalize(finalCtx, job.ID, models.StatusSucceeded, result, "", ""); finalizeErr != nil {
		w.log.Error("Failed to finalize job", "job_id", job.ID, "error", finalizeErr)
	}
}

// runPipeline isolates job execution: a panic inside one job fails that
// job, not the worker loop.
func (w *Worker) runPipeline(ctx context.Context, job *models.Job) (result models.JSON, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return w.processor.Process(ctx, job)
}

// classifyFailure picks the failure kind for the record. A dead job
// deadline always reads as a timeout so stuck pipelines stay
// distinguishable from rejected input.
func classifyFailure(jobCtx context.Context, err error) models.FailureKind {
	if errors.Is(jobCtx.Err(), context.DeadlineExceeded) {
		return models.FailureTimeout
	}
	var pipelineErr *PipelineError
	if errors.As(err, &pipelineErr) {
		return pipelineErr.Kind
	}
	return models.FailureExternal
}

func (w *Worker) setState(status string, jobID uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentJobID = jobID
}

func (w *Worker) Stats() WorkerStats {
	w.mu.RLock()
	status, currentJobID := w.status, w.currentJobID
	w.mu.RUnlock()

	currentJobIDStr := ""
	if currentJobID != uuid.Nil {
		currentJobIDStr = currentJobID.String()
	}
	return WorkerStats{
		ID:           w.id,
		Status:       status,
		CurrentJobID: currentJobIDStr,
		JobsTotal:    atomic.LoadInt64(&w.jobsTotal),
		JobsSuccess:  atomic.LoadInt64(&w.jobsSuccess),
		JobsFailed:   atomic.LoadInt64(&w.jobsFailed),
	}
}
