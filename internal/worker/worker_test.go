package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"studykit-worker/internal/logger"
	"studykit-worker/pkg/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type finalizeCall struct {
	id     uuid.UUID
	status models.JobStatus
	result models.JSON
	errMsg string
	kind   models.FailureKind
}

// stubJobService feeds workers a scripted claim sequence (nil entries are
// empty polls) and records every terminal write.
type stubJobService struct {
	mu        sync.Mutex
	claims    []*models.Job
	progress  []float64
	finalized []finalizeCall
}

func (s *stubJobService) ClaimNextPending(ctx context.Context, jobType models.JobType) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.claims) == 0 {
		return nil, nil
	}
	job := s.claims[0]
	s.claims = s.claims[1:]
	return job, nil
}

func (s *stubJobService) UpdateProgress(ctx context.Context, id uuid.UUID, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = append(s.progress, value)
	return nil
}

func (s *stubJobService) Finalize(ctx context.Context, id uuid.UUID, status models.JobStatus, result models.JSON, errMsg string, kind models.FailureKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalized = append(s.finalized, finalizeCall{id, status, result, errMsg, kind})
	return nil
}

func (s *stubJobService) finalizedCalls() []finalizeCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]finalizeCall(nil), s.finalized...)
}

func (s *stubJobService) EnqueueGeneration(ctx context.Context, req *models.GenerationRequest) (*models.Job, error) {
	return nil, errors.New("not implemented")
}

func (s *stubJobService) EnqueueCollectionGeneration(ctx context.Context, req *models.CollectionGenerationRequest) (*models.Job, error) {
	return nil, errors.New("not implemented")
}

func (s *stubJobService) EnqueueDocumentGeneration(ctx context.Context, req *models.DocumentGenerationRequest) (*models.Job, error) {
	return nil, errors.New("not implemented")
}

func (s *stubJobService) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	return nil, nil
}

func (s *stubJobService) ListJobs(ctx context.Context, status, jobType string, ownerID *uuid.UUID) ([]*models.Job, error) {
	return nil, nil
}

func (s *stubJobService) CleanupOldJobs(ctx context.Context, maxAge time.Duration) (int64, error) {
	return 0, nil
}

type processorFunc func(ctx context.Context, job *models.Job) (models.JSON, error)

func (f processorFunc) Process(ctx context.Context, job *models.Job) (models.JSON, error) {
	return f(ctx, job)
}

func testPoolConfig() *PoolConfig {
	return &PoolConfig{
		WorkerCount:   1,
		PollBase:      2 * time.Second,
		PollMax:       30 * time.Second,
		BackoffFactor: 1.5,
		JobTimeout:    time.Minute,
		JobTypes:      []models.JobType{models.JobTypeGeneration},
	}
}

func runningJob(jobType models.JobType) *models.Job {
	return &models.Job{
		ID:      uuid.New(),
		OwnerID: uuid.New(),
		Type:    jobType,
		Status:  models.StatusRunning,
		Payload: models.JSON{},
	}
}

// runWorker drives the claim loop with a recording sleep until maxSleeps
// empty-poll waits have happened, then stops the worker.
func runWorker(t *testing.T, w *Worker, maxSleeps int) []time.Duration {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var sleeps []time.Duration
	w.sleep = func(ctx context.Context, d time.Duration) bool {
		mu.Lock()
		sleeps = append(sleeps, d)
		n := len(sleeps)
		mu.Unlock()
		if n >= maxSleeps {
			cancel()
			return false
		}
		return true
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.run(ctx)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	return sleeps
}

func TestWorker_BackoffGrowsToCap(t *testing.T) {
	svc := &stubJobService{}
	w := NewWorker(0, svc, processorFunc(nil), testPoolConfig(), logger.NewNop())

	sleeps := runWorker(t, w, 9)

	require.Len(t, sleeps, 9)
	assert.Equal(t, []time.Duration{
		2 * time.Second,
		3 * time.Second,
		4500 * time.Millisecond,
		6750 * time.Millisecond,
		10125 * time.Millisecond,
	}, sleeps[:5])
	for i := 1; i < len(sleeps); i++ {
		assert.GreaterOrEqual(t, sleeps[i], sleeps[i-1])
		assert.LessOrEqual(t, sleeps[i], 30*time.Second)
	}
	assert.Equal(t, 30*time.Second, sleeps[7])
	assert.Equal(t, 30*time.Second, sleeps[8])
}

func TestWorker_BackoffResetsAfterClaim(t *testing.T) {
	svc := &stubJobService{
		claims: []*models.Job{nil, nil, runningJob(models.JobTypeGeneration)},
	}
	proc := processorFunc(func(ctx context.Context, job *models.Job) (models.JSON, error) {
		return models.JSON{"ok": true}, nil
	})
	w := NewWorker(0, svc, proc, testPoolConfig(), logger.NewNop())

	sleeps := runWorker(t, w, 4)

	// Two empty polls, a claimed job, then the backoff starts over.
	assert.Equal(t, []time.Duration{
		2 * time.Second,
		3 * time.Second,
		2 * time.Second,
		3 * time.Second,
	}, sleeps)

	calls := svc.finalizedCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, models.StatusSucceeded, calls[0].status)
}

func TestWorker_PanicFailsJobNotWorker(t *testing.T) {
	job := runningJob(models.JobTypeGeneration)
	svc := &stubJobService{claims: []*models.Job{job}}
	proc := processorFunc(func(ctx context.Context, j *models.Job) (models.JSON, error) {
		panic("boom")
	})
	w := NewWorker(0, svc, proc, testPoolConfig(), logger.NewNop())

	// The worker keeps polling after the panic, so the sleep recorder
	// still fires.
	sleeps := runWorker(t, w, 2)
	require.Len(t, sleeps, 2)

	calls := svc.finalizedCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, job.ID, calls[0].id)
	assert.Equal(t, models.StatusFailed, calls[0].status)
	assert.Contains(t, calls[0].errMsg, "job panicked: boom")
	assert.Equal(t, models.FailureExternal, calls[0].kind)

	stats := w.Stats()
	assert.Equal(t, int64(1), stats.JobsTotal)
	assert.Equal(t, int64(1), stats.JobsFailed)
}

func TestWorker_TimeoutReadsAsTimeout(t *testing.T) {
	job := runningJob(models.JobTypeGeneration)
	svc := &stubJobService{claims: []*models.Job{job}}
	proc := processorFunc(func(ctx context.Context, j *models.Job) (models.JSON, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	cfg := testPoolConfig()
	cfg.JobTimeout = 20 * time.Millisecond
	w := NewWorker(0, svc, proc, cfg, logger.NewNop())

	runWorker(t, w, 1)

	calls := svc.finalizedCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, models.StatusFailed, calls[0].status)
	assert.Equal(t, models.FailureTimeout, calls[0].kind)
}

func TestWorker_PipelineFailureKindPropagates(t *testing.T) {
	job := runningJob(models.JobTypeGeneration)
	svc := &stubJobService{claims: []*models.Job{job}}
	proc := processorFunc(func(ctx context.Context, j *models.Job) (models.JSON, error) {
		return nil, inputErr(errors.New("payload has no text"))
	})
	w := NewWorker(0, svc, proc, testPoolConfig(), logger.NewNop())

	runWorker(t, w, 1)

	calls := svc.finalizedCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, models.FailureInput, calls[0].kind)
	assert.Equal(t, "payload has no text", calls[0].errMsg)
}

func TestClassifyFailure(t *testing.T) {
	live := context.Background()

	expired, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-expired.Done()

	assert.Equal(t, models.FailureTimeout, classifyFailure(expired, errors.New("anything")))
	assert.Equal(t, models.FailurePersistence, classifyFailure(live, persistenceErr(errors.New("insert failed"))))
	assert.Equal(t, models.FailureInput, classifyFailure(live, inputErr(errors.New("bad payload"))))
	assert.Equal(t, models.FailureExternal, classifyFailure(live, errors.New("connection refused")))
}

func TestPool_StartStop(t *testing.T) {
	svc := &stubJobService{}
	cfg := testPoolConfig()
	cfg.WorkerCount = 2
	cfg.PollBase = 5 * time.Millisecond
	cfg.PollMax = 10 * time.Millisecond

	pool := NewPool(svc, processorFunc(nil), cfg, logger.NewNop())

	require.NoError(t, pool.Start(context.Background()))
	require.NoError(t, pool.Start(context.Background())) // idempotent

	stats := pool.Stats()
	assert.True(t, stats.Running)
	assert.Equal(t, 2, stats.WorkerCount)

	require.NoError(t, pool.Stop())
	require.NoError(t, pool.Stop())

	stats = pool.Stats()
	assert.False(t, stats.Running)
	for _, ws := range stats.Workers {
		assert.Equal(t, "stopped", ws.Status)
	}
}
