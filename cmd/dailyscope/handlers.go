package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/elonfeng/dailyscope/internal/config"
	"github.com/elonfeng/dailyscope/internal/logger"
	"github.com/elonfeng/dailyscope/internal/scheduler"
	"github.com/elonfeng/dailyscope/internal/store"
	"github.com/elonfeng/dailyscope/pkg/httpclient"
	"github.com/elonfeng/dailyscope/pkg/pipeline"
	"github.com/elonfeng/dailyscope/pkg/server"
	"github.com/elonfeng/dailyscope/pkg/sink"
	"github.com/elonfeng/dailyscope/pkg/source"
	"github.com/elonfeng/dailyscope/pkg/virality"
)

type collectOptions struct {
	sources       []string
	subs          []string
	sorts         []string
	maxResults    int
	maxResultsSet bool
	jsonOutput    bool
	explain       bool
}

// app bundles what every command needs.
type app struct {
	cfg *config.Config
	log *zap.Logger
	db  *store.SQLiteStore
}

func setup() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	if cfg.File != "" {
		log.Debug("config loaded", zap.String("file", cfg.File))
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	return &app{cfg: cfg, log: log, db: db}, nil
}

func (a *app) close() {
	a.db.Close()
	_ = a.log.Sync()
}

// buildCollectors creates one collector per news site and one per
// (subreddit, sort) pair, in configuration order. Unknown or invalid sites are
// skipped with a warning.
func buildCollectors(cfg *config.Config, client httpclient.Client, log *zap.Logger) []source.Collector {
	var collectors []source.Collector
	limit := cfg.Run.PerSourceLimit

	for _, id := range cfg.Run.NewsSources {
		site, ok := cfg.Sites[id]
		if !ok {
			log.Warn("unknown news site, skipping", zap.String("source", id))
			continue
		}

		var (
			c   source.Collector
			err error
		)
		if site.FeedURL != "" {
			c, err = source.NewFeed(client, id, site.FeedURL, limit)
		} else {
			c, err = source.NewNewsPage(client, id, site, limit)
		}
		if err != nil {
			log.Warn("invalid news site, skipping", zap.String("source", id), zap.Error(err))
			continue
		}
		collectors = append(collectors, c)
	}

	session := source.NewRedditSession(client, source.RedditAuth{
		ClientID:     cfg.Reddit.ClientID,
		ClientSecret: cfg.Reddit.ClientSecret,
		UserAgent:    cfg.Reddit.UserAgent,
		BaseURL:      cfg.Reddit.BaseURL,
	})
	for _, sub := range cfg.Run.RedditSubs {
		for _, srt := range cfg.Run.Sorts() {
			c, err := session.NewReddit(sub, srt, cfg.Run.RedditTime, limit)
			if err != nil {
				log.Warn("invalid subreddit, skipping", zap.String("source", sub), zap.Error(err))
				continue
			}
			collectors = append(collectors, c)
		}
	}

	return collectors
}

// buildSinks returns the store sink, any extra sinks and the sinks declared in
// the sinks file, in that order.
func buildSinks(ctx context.Context, a *app, extra ...sink.Sink) (*sink.Manager, error) {
	mgr := sink.NewManager(a.log, sink.NewStore(a.db))
	mgr.Add(extra...)

	if a.cfg.Sinks.File == "" {
		return mgr, nil
	}
	cfgs, err := sink.LoadConfigs(a.cfg.Sinks.File)
	if err != nil {
		return nil, err
	}
	built, err := sink.BuildAll(ctx, sink.DefaultRegistry(), cfgs, a.log)
	if err != nil {
		return nil, err
	}
	mgr.Add(built...)
	a.log.Debug("sinks ready", zap.Strings("sink", mgr.Names()))
	return mgr, nil
}

func buildPipeline(cfg *config.Config, sinks *sink.Manager, log *zap.Logger) *pipeline.Pipeline {
	client := httpclient.NewRestyClient(cfg.Run.Timeout)
	collectors := buildCollectors(cfg, client, log)
	filter := source.NewFilter(cfg.Run.MaxTitleLength, cfg.Filter.ExcludeKeywords)
	scorer := virality.NewScorer(cfg.Scoring.Tables())

	return pipeline.New(collectors, filter, scorer, sinks, log, pipeline.Options{
		Concurrency: cfg.Run.Concurrency,
		Timeout:     cfg.Run.Timeout,
		MaxResults:  cfg.Run.MaxResults,
	})
}

// applyCollectFlags overrides the run selection with command-line flags.
func applyCollectFlags(cfg *config.Config, opts collectOptions) error {
	if len(opts.sources) > 0 {
		cfg.Run.NewsSources = nil
		for _, s := range opts.sources {
			if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
				cfg.Run.NewsSources = append(cfg.Run.NewsSources, s)
			}
		}
	}
	if len(opts.subs) > 0 {
		cfg.Run.RedditSubs = nil
		for _, s := range opts.subs {
			if s = strings.TrimPrefix(strings.TrimSpace(s), "r/"); s != "" {
				cfg.Run.RedditSubs = append(cfg.Run.RedditSubs, s)
			}
		}
	}
	if len(opts.sorts) > 0 {
		cfg.Run.RedditSorts = nil
		for _, s := range opts.sorts {
			srt, ok := source.ParseSort(s)
			if !ok {
				return fmt.Errorf("unknown sort %q (want one of hot, rising, top, new, best, controversial)", s)
			}
			cfg.Run.RedditSorts = append(cfg.Run.RedditSorts, string(srt))
		}
	}
	if opts.maxResultsSet {
		if opts.maxResults < 0 {
			return fmt.Errorf("--max-results must not be negative")
		}
		cfg.Run.MaxResults = opts.maxResults
	}
	return nil
}

func runCollect(ctx context.Context, opts collectOptions) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	if err := applyCollectFlags(a.cfg, opts); err != nil {
		return err
	}

	scorer := virality.NewScorer(a.cfg.Scoring.Tables())
	var out sink.Sink
	switch {
	case opts.jsonOutput:
		out = sink.NewJSONWriter("stdout", os.Stdout)
	case opts.explain:
		out = sink.NewTable(os.Stdout, scorer)
	default:
		out = sink.NewTable(os.Stdout, nil)
	}

	sinks, err := buildSinks(ctx, a, out)
	if err != nil {
		return err
	}
	defer sinks.Close()

	res := buildPipeline(a.cfg, sinks, a.log).Run(ctx)
	if res.SinkErr != nil {
		a.log.Warn("some sinks failed", zap.Error(res.SinkErr))
	}

	printSummary(os.Stderr, res)
	return nil
}

func printSummary(w io.Writer, res *pipeline.Result) {
	if len(res.Stories) == 0 {
		fmt.Fprint(w, "found 0 stories")
	} else {
		top := res.Stories[0]
		fmt.Fprintf(w, "found %d stories, top: %q (%s, score %d)", len(res.Stories), top.Title, top.Source, top.ViralityScore)
	}
	if len(res.FailedUnits) > 0 {
		fmt.Fprintf(w, "; failed: %s", strings.Join(res.FailedUnits, ", "))
	}
	fmt.Fprintln(w)
}

func runTop(ctx context.Context, runID string, jsonOutput bool) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	var run *store.Run
	if runID != "" {
		run, err = a.db.GetRun(ctx, runID)
	} else {
		run, err = a.db.LatestRun(ctx)
	}
	if errors.Is(err, store.ErrNotFound) && runID == "" {
		fmt.Println("no runs yet (try: dailyscope collect)")
		return nil
	}
	if err != nil {
		return err
	}

	stories, err := a.db.RunStories(ctx, run.ID)
	if err != nil {
		return err
	}

	out := sink.Output{
		RunID:       run.ID,
		StartedAt:   run.StartedAt,
		GeneratedAt: run.FinishedAt,
		FailedUnits: run.FailedUnits,
		Stories:     stories,
	}
	if jsonOutput {
		return sink.NewJSONWriter("stdout", os.Stdout).Write(ctx, out)
	}

	fmt.Printf("run %s, finished %s\n\n", run.ID, run.FinishedAt.Local().Format(time.RFC1123))
	return sink.NewTable(os.Stdout, nil).Write(ctx, out)
}

func runRuns(ctx context.Context, limit int, jsonOutput bool) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	runs, err := a.db.ListRuns(ctx, limit)
	if err != nil {
		return err
	}

	if jsonOutput {
		if runs == nil {
			runs = []store.Run{}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Println("no runs yet (try: dailyscope collect)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFINISHED\tSTORIES\tFAILED")
	for _, r := range runs {
		failed := "-"
		if len(r.FailedUnits) > 0 {
			failed = strings.Join(r.FailedUnits, ",")
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			r.ID, r.FinishedAt.Format(time.RFC3339), r.StoryCount, failed)
	}
	return w.Flush()
}

func runServe(port int) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	if port == 0 {
		port = a.cfg.Server.Port
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sinks, err := buildSinks(ctx, a)
	if err != nil {
		return err
	}
	defer sinks.Close()

	p := buildPipeline(a.cfg, sinks, a.log)
	return server.New(a.db, p, port, a.log).ListenAndServe(ctx)
}

func runDaemon(port int) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	if port == 0 {
		port = a.cfg.Server.Port
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sinks, err := buildSinks(ctx, a)
	if err != nil {
		return err
	}
	defer sinks.Close()

	p := buildPipeline(a.cfg, sinks, a.log)
	sched := scheduler.New(p, a.db, a.cfg.Schedule.Interval, a.cfg.Database.RetainRuns, a.log)

	// Start scheduler in background.
	go func() {
		if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
			a.log.Error("scheduler error", zap.Error(err))
		}
	}()

	err = server.New(a.db, p, port, a.log).ListenAndServe(ctx)
	a.log.Info("shutting down")
	return err
}

func runInit(path string) error {
	if err := config.WriteDefault(path); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}
