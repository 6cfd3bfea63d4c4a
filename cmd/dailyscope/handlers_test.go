package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/elonfeng/dailyscope/internal/config"
	"github.com/elonfeng/dailyscope/pkg/httpclient"
	"github.com/elonfeng/dailyscope/pkg/pipeline"
	"github.com/elonfeng/dailyscope/pkg/source"
	"github.com/elonfeng/dailyscope/pkg/virality"
)

func TestBuildCollectorsOrder(t *testing.T) {
	cfg := config.Default()
	cfg.Run.NewsSources = []string{"reuters", "nosuchsite", "vox"}
	cfg.Run.RedditSubs = []string{"news", "worldnews"}
	cfg.Run.RedditSorts = []string{"hot", "rising"}
	cfg.Sites["vox"] = source.Site{FeedURL: "https://www.vox.com/rss/index.xml"}

	core, logs := observer.New(zapcore.WarnLevel)
	collectors := buildCollectors(cfg, httpclient.NewRestyClient(time.Second), zap.New(core))

	want := []string{"reuters", "vox", "r/news/hot", "r/news/rising", "r/worldnews/hot", "r/worldnews/rising"}
	if len(collectors) != len(want) {
		t.Fatalf("got %d collectors, want %d", len(collectors), len(want))
	}
	for i, c := range collectors {
		if got := c.Unit().String(); got != want[i] {
			t.Errorf("collector %d = %s, want %s", i, got, want[i])
		}
	}
	if _, ok := collectors[1].(*source.Feed); !ok {
		t.Errorf("vox collector = %T, want *source.Feed", collectors[1])
	}
	if n := logs.FilterMessage("unknown news site, skipping").Len(); n != 1 {
		t.Errorf("unknown site warnings = %d, want 1", n)
	}
}

func TestApplyCollectFlags(t *testing.T) {
	cfg := config.Default()
	err := applyCollectFlags(cfg, collectOptions{
		sources:       []string{" BBC "},
		subs:          []string{"r/technology"},
		sorts:         []string{"Top"},
		maxResults:    0,
		maxResultsSet: true,
	})
	if err != nil {
		t.Fatalf("applyCollectFlags: %v", err)
	}
	if got := strings.Join(cfg.Run.NewsSources, ","); got != "bbc" {
		t.Errorf("NewsSources = %s", got)
	}
	if got := strings.Join(cfg.Run.RedditSubs, ","); got != "technology" {
		t.Errorf("RedditSubs = %s", got)
	}
	if got := strings.Join(cfg.Run.RedditSorts, ","); got != "top" {
		t.Errorf("RedditSorts = %s", got)
	}
	if cfg.Run.MaxResults != 0 {
		t.Errorf("MaxResults = %d, want explicit 0", cfg.Run.MaxResults)
	}
}

func TestApplyCollectFlagsErrors(t *testing.T) {
	tests := []struct {
		name string
		opts collectOptions
	}{
		{"unknown sort", collectOptions{sorts: []string{"trending"}}},
		{"negative max", collectOptions{maxResults: -1, maxResultsSet: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := applyCollectFlags(config.Default(), tt.opts); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestApplyCollectFlagsKeepsConfigMax(t *testing.T) {
	cfg := config.Default()
	cfg.Run.MaxResults = 7
	if err := applyCollectFlags(cfg, collectOptions{}); err != nil {
		t.Fatal(err)
	}
	if cfg.Run.MaxResults != 7 {
		t.Errorf("MaxResults = %d, want 7", cfg.Run.MaxResults)
	}
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, &pipeline.Result{
		FailedUnits: []string{"reuters"},
		Stories: []virality.ScoredStory{{
			Story:         source.Story{Title: "Quake hits", Source: "BBC"},
			ViralityScore: 48,
		}},
	})
	want := "found 1 stories, top: \"Quake hits\" (BBC, score 48); failed: reuters\n"
	if buf.String() != want {
		t.Errorf("summary = %q, want %q", buf.String(), want)
	}

	buf.Reset()
	printSummary(&buf, &pipeline.Result{SinkErr: errors.New("ignored")})
	if buf.String() != "found 0 stories\n" {
		t.Errorf("empty summary = %q", buf.String())
	}
}

func TestRootCommands(t *testing.T) {
	root := rootCmd()
	for _, name := range []string{"collect", "top", "runs", "serve", "run", "init", "version"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("command %q not registered", name)
		}
	}
}
