package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/i474232898/ims-weather/internal/config"
	"github.com/i474232898/ims-weather/internal/metrics"
)

// Jobs are the units run on schedule.
type Jobs interface {
	UpdateRain(ctx context.Context) error
	UpdateTemp(ctx context.Context) error
	CollectForecast(ctx context.Context) error
	Aggregate(ctx context.Context) error
}

// Scheduler runs the jobs on their cron expressions.
type Scheduler struct {
	scheduler *gocron.Scheduler
	jobs      Jobs
	schedules config.Schedules
	timeout   time.Duration
	logger    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Scheduler. Expressions are read in loc; runs longer than
// timeout are cancelled.
func New(jobs Jobs, schedules config.Schedules, loc *time.Location, timeout time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := gocron.NewScheduler(loc)
	// a job still running when its next tick arrives is skipped
	s.SingletonModeAll()
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		scheduler: s,
		jobs:      jobs,
		schedules: schedules,
		timeout:   timeout,
		logger:    logger.Named("scheduler"),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start registers every job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	for _, job := range []struct {
		name string
		expr string
		fn   func(context.Context) error
	}{
		{"rain", s.schedules.Rain, s.jobs.UpdateRain},
		{"temp", s.schedules.Temp, s.jobs.UpdateTemp},
		{"forecast", s.schedules.Forecast, s.jobs.CollectForecast},
		{"aggregate", s.schedules.Aggregate, s.jobs.Aggregate},
	} {
		if _, err := s.scheduler.Cron(job.expr).Tag(job.name).Do(s.run, job.name, job.fn); err != nil {
			return fmt.Errorf("schedule %s %q: %w", job.name, job.expr, err)
		}
		s.logger.Info("job scheduled", zap.String("job", job.name), zap.String("cron", job.expr))
	}

	s.scheduler.StartAsync()
	return nil
}

// run executes one job run under a fresh run id.
func (s *Scheduler) run(name string, fn func(context.Context) error) {
	log := s.logger.With(zap.String("job", name), zap.String("run_id", uuid.NewString()))
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	log.Info("job started")
	if err := fn(ctx); err != nil {
		metrics.JobRuns.WithLabelValues(name, "error").Inc()
		log.Error("job failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return
	}
	metrics.JobRuns.WithLabelValues(name, "ok").Inc()
	log.Info("job completed", zap.Duration("elapsed", time.Since(start)))
}

// Stop cancels running jobs and stops the scheduler.
func (s *Scheduler) Stop() {
	s.cancel()
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
