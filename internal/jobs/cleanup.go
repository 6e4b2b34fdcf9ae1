package jobs

import (
	"context"
	"time"

	"studykit-worker/internal/logger"

	"github.com/go-co-op/gocron"
)

// CleanupService periodically removes terminal jobs older than maxAge.
type CleanupService struct {
	service   JobService
	log       *logger.Logger
	scheduler *gocron.Scheduler
	interval  time.Duration
	maxAge    time.Duration
}

func NewCleanupService(service JobService, log *logger.Logger, interval, maxAge time.Duration) *CleanupService {
	return &CleanupService{
		service:   service,
		log:       log,
		scheduler: gocron.NewScheduler(time.UTC),
		interval:  interval,
		maxAge:    maxAge,
	}
}

func (c *CleanupService) Start() error {
	_, err := c.scheduler.Every(c.interval).Do(c.run)
	if err != nil {
		return err
	}
	c.scheduler.StartAsync()
	c.log.Info("Job cleanup scheduled", "interval", c.interval, "max_age", c.maxAge)
	return nil
}

func (c *CleanupService) Stop() {
	c.scheduler.Stop()
}

func (c *CleanupService) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := c.service.CleanupOldJobs(ctx, c.maxAge); err != nil {
		c.log.Error("Job cleanup failed", "error", err)
	}
}
