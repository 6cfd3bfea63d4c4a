package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/elonfeng/dailyscope/pkg/pipeline"
)

// DefaultInterval is the time between runs when none is configured.
const DefaultInterval = time.Hour

// Runner performs one pipeline run.
type Runner interface {
	Run(ctx context.Context) *pipeline.Result
}

// Pruner trims stored runs to the newest keep.
type Pruner interface {
	PruneRuns(ctx context.Context, keep int) (int64, error)
}

// Scheduler runs the pipeline periodically.
type Scheduler struct {
	runner   Runner
	pruner   Pruner
	interval time.Duration
	retain   int
	log      *zap.Logger
}

// New creates a new scheduler. pruner may be nil; retain <= 0 keeps every run.
func New(runner Runner, pruner Pruner, interval time.Duration, retain int, log *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		runner:   runner,
		pruner:   pruner,
		interval: interval,
		retain:   retain,
		log:      log,
	}
}

// Run starts the scheduler loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run immediately on start.
	s.log.Info("scheduler: initial run")
	s.tick(ctx)

	s.log.Info("scheduler: running", zap.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler: stopped")
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	res := s.runner.Run(ctx)
	if res != nil && res.SinkErr != nil {
		s.log.Warn("scheduler: sink errors", zap.String("run_id", res.RunID), zap.Error(res.SinkErr))
	}

	if s.pruner == nil || s.retain <= 0 || ctx.Err() != nil {
		return
	}
	n, err := s.pruner.PruneRuns(ctx, s.retain)
	if err != nil {
		s.log.Warn("scheduler: prune failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.log.Debug("scheduler: pruned runs", zap.Int64("count", n))
	}
}
