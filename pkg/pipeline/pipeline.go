// Package pipeline runs one collection: concurrent collectors, aggregation,
// filtering, scoring, ranking and sink fan-out.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/elonfeng/dailyscope/pkg/sink"
	"github.com/elonfeng/dailyscope/pkg/source"
	"github.com/elonfeng/dailyscope/pkg/virality"
)

const (
	DefaultConcurrency = 4
	DefaultTimeout     = 30 * time.Second
)

// Options tunes a pipeline. MaxResults is applied as given; zero or less
// yields an empty ranking.
type Options struct {
	Concurrency int
	Timeout     time.Duration
	MaxResults  int
}

// Result describes a finished run.
type Result struct {
	RunID       string
	StartedAt   time.Time
	FinishedAt  time.Time
	Batches     []source.Batch
	Collected   int
	Dropped     int
	FailedUnits []string
	Stories     []virality.ScoredStory
	// SinkErr joins the errors of every sink that failed.
	SinkErr error
}

// Output converts the result into what sinks receive.
func (r *Result) Output() sink.Output {
	return sink.Output{
		RunID:       r.RunID,
		StartedAt:   r.StartedAt,
		GeneratedAt: r.FinishedAt,
		FailedUnits: r.FailedUnits,
		Stories:     r.Stories,
	}
}

// Pipeline wires collectors to the scorer and sinks.
type Pipeline struct {
	collectors []source.Collector
	filter     *source.Filter
	scorer     *virality.Scorer
	sinks      *sink.Manager
	log        *zap.Logger
	opts       Options

	now   func() time.Time
	newID func() string
}

// New creates a pipeline. A nil filter uses the default title rules, a nil
// scorer the default tables and a nil sink manager writes nowhere.
func New(collectors []source.Collector, filter *source.Filter, scorer *virality.Scorer, sinks *sink.Manager, log *zap.Logger, opts Options) *Pipeline {
	if filter == nil {
		filter = source.NewFilter(0, nil)
	}
	if scorer == nil {
		scorer = virality.NewScorer(virality.DefaultTables())
	}
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Pipeline{
		collectors: collectors,
		filter:     filter,
		scorer:     scorer,
		sinks:      sinks,
		log:        log,
		opts:       opts,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Units lists the units of work in collection order.
func (p *Pipeline) Units() []source.Unit {
	units := make([]source.Unit, len(p.collectors))
	for i, c := range p.collectors {
		units[i] = c.Unit()
	}
	return units
}

// Scorer returns the scorer the pipeline ranks with.
func (p *Pipeline) Scorer() *virality.Scorer { return p.scorer }

// Run performs one full run. Collector and sink failures are recorded in the
// result and never abort the run.
func (p *Pipeline) Run(ctx context.Context) *Result {
	res := &Result{RunID: p.newID(), StartedAt: p.now().UTC()}
	log := p.log.With(zap.String("run_id", res.RunID))

	res.Batches = p.collectAll(ctx, log)
	for _, b := range res.Batches {
		if b.Failed() {
			res.FailedUnits = append(res.FailedUnits, b.Unit.String())
		}
	}

	stories := virality.Aggregate(res.Batches)
	res.Collected = len(stories)

	stories, res.Dropped = p.filter.Apply(stories)
	if res.Dropped > 0 {
		log.Debug("dropped malformed or excluded stories", zap.Int("count", res.Dropped))
	}

	res.Stories = virality.Rank(virality.ScoreAll(p.scorer, stories), p.opts.MaxResults)
	res.FinishedAt = p.now().UTC()

	if p.sinks.HasSinks() {
		res.SinkErr = p.sinks.Write(ctx, res.Output())
	}

	fields := []zap.Field{
		zap.Int("count", len(res.Stories)),
		zap.Int("collected", res.Collected),
		zap.Strings("failed_units", res.FailedUnits),
		zap.Duration("took", res.FinishedAt.Sub(res.StartedAt)),
	}
	if len(res.Stories) > 0 {
		top := res.Stories[0]
		fields = append(fields, zap.String("top_title", top.Title), zap.Int("top_score", top.ViralityScore))
	}
	log.Info("run complete", fields...)

	return res
}

// collectAll runs every collector with bounded concurrency. Each batch lands
// in its collector's slot, so the result follows collector order.
func (p *Pipeline) collectAll(ctx context.Context, log *zap.Logger) []source.Batch {
	batches := make([]source.Batch, len(p.collectors))

	var (
		wg  sync.WaitGroup
		sem = make(chan struct{}, p.opts.Concurrency)
	)
	for i, c := range p.collectors {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			b := p.collectGuarded(ctx, c)
			if b.Failed() {
				log.Warn("collector failed", zap.Stringer("unit", b.Unit), zap.Error(b.Err))
			} else {
				log.Debug("collector done", zap.Stringer("unit", b.Unit), zap.Int("count", len(b.Stories)))
			}
			batches[i] = b
		}()
	}
	wg.Wait()

	return batches
}

// collectGuarded calls one collector under its own timeout. Errors, panics
// and timeouts become a failed batch.
func (p *Pipeline) collectGuarded(ctx context.Context, c source.Collector) source.Batch {
	unit := c.Unit()

	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	type outcome struct {
		stories []source.Story
		err     error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("collector panicked: %v", r)}
			}
		}()
		stories, err := c.Collect(ctx)
		done <- outcome{stories: stories, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return source.Batch{Unit: unit, Err: o.err}
		}
		return source.Batch{Unit: unit, Stories: o.stories}
	case <-ctx.Done():
		return source.Batch{Unit: unit, Err: fmt.Errorf("collect %s: %w", unit, ctx.Err())}
	}
}
