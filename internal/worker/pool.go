package worker

import (
	"context"
	"sync"
	"time"

	"studykit-worker/internal/jobs"
	"studykit-worker/internal/logger"
	"studykit-worker/pkg/models"
)

// Pool runs a fixed set of polling workers. Workers share nothing in
// process; the job store's conditional claim is the only coordination
// point, so more pools can run against the same database.
type Pool struct {
	jobService jobs.JobService
	processor  Processor
	config     *PoolConfig
	log        *logger.Logger

	workers []*Worker
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.RWMutex
}

type PoolConfig struct {
	WorkerCount   int
	PollBase      time.Duration // first retry delay after an empty poll
	PollMax       time.Duration // backoff ceiling
	BackoffFactor float64
	JobTimeout    time.Duration // hard per-job budget
	JobTypes      []models.JobType
}

func DefaultPoolConfig() *PoolConfig {
	return &PoolConfig{
		WorkerCount:   3,
		PollBase:      2 * time.Second,
		PollMax:       30 * time.Second,
		BackoffFactor: 1.5,
		JobTimeout:    5 * time.Minute,
		JobTypes: []models.JobType{
			models.JobTypeCollectionGeneration,
			models.JobTypeDocumentGeneration,
			models.JobTypeGeneration,
		},
	}
}

func NewPool(jobService jobs.JobService, processor Processor, config *PoolConfig, log *logger.Logger) *Pool {
	if config == nil {
		config = DefaultPoolConfig()
	}

	pool := &Pool{
		jobService: jobService,
		processor:  processor,
		config:     config,
		log:        log,
	}
	for i := 0; i < config.WorkerCount; i++ {
		pool.workers = append(pool.workers, NewWorker(i, jobService, processor, config, log))
	}
	return pool
}

func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}

	ctx, p.cancel = context.WithCancel(ctx)
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.run(ctx)
		}(w)
	}

	p.running = true
	p.log.Info("Worker pool started",
		"workers", p.config.WorkerCount,
		"poll_base", p.config.PollBase,
		"job_timeout", p.config.JobTimeout)
	return nil
}

func (p *Pool) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return nil
	}

	p.cancel()
	p.wg.Wait()
	p.running = false
	p.log.Info("Worker pool stopped")
	return nil
}

// PoolStats is the pool's health surface.
type PoolStats struct {
	WorkerCount int           `json:"worker_count"`
	Running     bool          `json:"running"`
	Workers     []WorkerStats `json:"workers"`
}

type WorkerStats struct {
	ID           int    `json:"id"`
	Status       string `json:"status"` // idle, busy, stopped
	CurrentJobID string `json:"current_job_id,omitempty"`
	JobsTotal    int64  `json:"jobs_total"`
	JobsSuccess  int64  `json:"jobs_success"`
	JobsFailed   int64  `json:"jobs_failed"`
}

func (p *Pool) Stats() PoolStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := PoolStats{
		WorkerCount: len(p.workers),
		Running:     p.running,
	}
	for _, w := range p.workers {
		stats.Workers = append(stats.Workers, w.Stats())
	}
	return stats
}
