package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is a unit of periodic work. Its context is bounded by the job interval.
type Job func(ctx context.Context) error

// Scheduler runs named jobs on fixed intervals.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
	names  []string
}

func NewScheduler(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	cronLog := cronLogger{logger.Sugar()}
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		logger: logger,
	}
}

// Every registers job to run each interval.
func (s *Scheduler) Every(name string, interval time.Duration, job Job) error {
	if interval < time.Second {
		return fmt.Errorf("job %s: interval %s is below one second", name, interval)
	}
	_, err := s.cron.AddFunc("@every "+interval.String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		defer cancel()
		if err := job(ctx); err != nil {
			s.logger.Error("scheduled job failed", zap.String("job", name), zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("job %s: %w", name, err)
	}
	s.names = append(s.names, name)
	return nil
}

// Jobs returns the names of registered jobs in registration order.
func (s *Scheduler) Jobs() []string {
	return append([]string(nil), s.names...)
}

// Start launches the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Strings("jobs", s.names))
}

// Stop waits for running jobs or ctx, whichever ends first.
func (s *Scheduler) Stop(ctx context.Context) error {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sweeper is a limiter whose idle entries can be evicted.
type Sweeper interface {
	Name() string
	Sweep() int
}

// SweepJob evicts idle limiter entries.
func SweepJob(logger *zap.Logger, sweepers ...Sweeper) Job {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(context.Context) error {
		for _, sw := range sweepers {
			if n := sw.Sweep(); n > 0 {
				logger.Debug("rate limiter swept", zap.String("limiter", sw.Name()), zap.Int("evicted", n))
			}
		}
		return nil
	}
}

// DrainJob adapts ProfileSync.Drain to a Job.
func DrainJob(ps *ProfileSync, logger *zap.Logger) Job {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context) error {
		res, err := ps.Drain(ctx)
		if err != nil {
			return err
		}
		if res.Synced+res.Failed+res.Dropped > 0 {
			logger.Info("profile sync drained",
				zap.Int("synced", res.Synced),
				zap.Int("failed", res.Failed),
				zap.Int("dropped", res.Dropped))
		}
		return nil
	}
}

// cronLogger routes cron's internal logging through zap.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
