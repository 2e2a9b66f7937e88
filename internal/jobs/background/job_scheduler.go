package background

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bizledger/internal/services"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

const expirySweepJob = "subscription-expiry-sweep"

// JobScheduler runs the periodic billing jobs.
type JobScheduler struct {
	scheduler     gocron.Scheduler
	subscriptions services.SubscriptionService
	logger        *zap.Logger
	sweepTimeout  time.Duration
	jobs          map[string]gocron.Job
	mu            sync.RWMutex
}

// NewJobScheduler creates a scheduler with the expiry sweep registered every interval.
func NewJobScheduler(subscriptions services.SubscriptionService, interval time.Duration, logger *zap.Logger) (*JobScheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("expiry sweep interval must be positive, got %s", interval)
	}

	scheduler, err := gocron.NewScheduler(gocron.WithStopTimeout(10 * time.Second))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	js := &JobScheduler{
		scheduler:     scheduler,
		subscriptions: subscriptions,
		logger:        logger,
		sweepTimeout:  time.Minute,
		jobs:          make(map[string]gocron.Job),
	}

	job, err := scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(js.RunExpirySweep, context.Background()),
		gocron.WithName(expirySweepJob),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return nil, fmt.Errorf("register %s: %w", expirySweepJob, err)
	}
	js.jobs[expirySweepJob] = job

	logger.Info("registered background jobs", zap.Int("count", len(js.jobs)), zap.Duration("expiry_sweep_interval", interval))
	return js, nil
}

// Start starts the job scheduler
func (js *JobScheduler) Start() {
	js.logger.Info("starting background job scheduler")
	js.scheduler.Start()
}

// Stop waits for running jobs up to the stop timeout.
func (js *JobScheduler) Stop() error {
	js.logger.Info("stopping background job scheduler")
	return js.scheduler.Shutdown()
}

// RunExpirySweep flips every lapsed subscription inactive.
func (js *JobScheduler) RunExpirySweep(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, js.sweepTimeout)
	defer cancel()

	start := time.Now()
	expired, err := js.subscriptions.ExpireLapsed(ctx)
	if err != nil {
		js.logger.Error("subscription expiry sweep failed", zap.Error(err))
		return err
	}
	js.logger.Info("subscription expiry sweep completed",
		zap.Int("expired", expired),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

// JobNames lists the registered jobs.
func (js *JobScheduler) JobNames() []string {
	js.mu.RLock()
	defer js.mu.RUnlock()

	names := make([]string, 0, len(js.jobs))
	for name := range js.jobs {
		names = append(names, name)
	}
	return names
}
