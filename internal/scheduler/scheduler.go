package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"job_harvester/internal/domain"
)

// BatchRunner runs one ingestion over a set of sources.
type BatchRunner interface {
	RunBatch(ctx context.Context, sourceIDs []string, limit, concurrency int) (*domain.BatchRunResult, error)
}

type Config struct {
	Spec        string
	Sources     []string
	Limit       int
	Concurrency int
}

// Scheduler re-scrapes the configured sources on a cron schedule. A run that
// is still going when the next tick fires causes that tick to be skipped.
type Scheduler struct {
	runner BatchRunner
	cfg    Config
	logger *slog.Logger
	cron   *cron.Cron
}

func NewScheduler(runner BatchRunner, cfg Config, logger *slog.Logger) *Scheduler {
	logger = logger.With("component", "scheduler")
	cl := cronLogger{logger: logger}
	return &Scheduler{
		runner: runner,
		cfg:    cfg,
		logger: logger,
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}
}

// Start registers the job and blocks until ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.cfg.Spec, func() { s.run(ctx) }); err != nil {
		return fmt.Errorf("add cron job %q: %w", s.cfg.Spec, err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "spec", s.cfg.Spec, "sources", len(s.cfg.Sources))

	<-ctx.Done()

	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
	return ctx.Err()
}

func (s *Scheduler) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	res, err := s.runner.RunBatch(ctx, s.cfg.Sources, s.cfg.Limit, s.cfg.Concurrency)
	switch {
	case errors.Is(err, domain.ErrNoPosts):
		s.logger.Warn("scheduled run found no posts", "sources", len(s.cfg.Sources))
	case err != nil:
		s.logger.Error("scheduled run failed", "error", err)
	default:
		s.logger.Info("scheduled run completed",
			"run_id", res.RunID,
			"posts", res.TotalPostsScraped,
			"jobs_extracted", res.TotalJobsExtracted,
			"jobs_saved", res.TotalJobsSaved,
			"errors", res.TotalErrors,
		)
	}
}

// cronLogger routes cron's internal logging through slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
