package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/elonfeng/dailyscope/pkg/source"
	"github.com/elonfeng/dailyscope/pkg/virality"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleStories(now time.Time) []virality.ScoredStory {
	return []virality.ScoredStory{
		{
			Story: source.Story{
				Title: "A", URL: "https://bbc.co.uk/a", Source: "BBC", Type: source.TypeNews,
				Position: source.IntPtr(1), CollectedAt: now,
			},
			ViralityScore: 48,
		},
		{
			Story: source.Story{
				Title: "B", URL: "https://reddit.com/r/news/b", Source: "r/news", Type: source.TypeReddit,
				Upvotes: source.IntPtr(6000), Sort: source.SortHot, CollectedAt: now,
			},
			ViralityScore: 48,
		},
	}
}

func TestSaveRunAndRead(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	run := Run{ID: "run-1", StartedAt: now, FinishedAt: now.Add(3 * time.Second), FailedUnits: []string{"reuters"}}
	if err := s.SaveRun(ctx, run, sampleStories(now)); err != nil {
		t.Fatalf("save run: %v", err)
	}

	got, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if got.StoryCount != 2 {
		t.Errorf("story count = %d, want 2", got.StoryCount)
	}
	if len(got.FailedUnits) != 1 || got.FailedUnits[0] != "reuters" {
		t.Errorf("failed units = %v", got.FailedUnits)
	}
	if !got.StartedAt.Equal(now) {
		t.Errorf("started at = %v, want %v", got.StartedAt, now)
	}

	stories, err := s.RunStories(ctx, "run-1")
	if err != nil {
		t.Fatalf("run stories: %v", err)
	}
	if len(stories) != 2 {
		t.Fatalf("got %d stories, want 2", len(stories))
	}
	if stories[0].Title != "A" || stories[1].Title != "B" {
		t.Errorf("order = %q, %q", stories[0].Title, stories[1].Title)
	}
	if stories[0].PositionOr(0) != 1 || stories[0].Upvotes != nil {
		t.Errorf("news story fields = %+v", stories[0].Story)
	}
	if stories[1].UpvotesOr(0) != 6000 || stories[1].Position != nil || stories[1].Sort != source.SortHot {
		t.Errorf("reddit story fields = %+v", stories[1].Story)
	}
	if stories[1].ViralityScore != 48 {
		t.Errorf("score = %d", stories[1].ViralityScore)
	}
}

func TestSaveRun_DuplicateID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	run := Run{ID: "dup", StartedAt: now, FinishedAt: now}
	if err := s.SaveRun(ctx, run, nil); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := s.SaveRun(ctx, run, sampleStories(now)); err == nil {
		t.Fatal("expected error for duplicate run id")
	}

	stories, err := s.RunStories(ctx, "dup")
	if err != nil {
		t.Fatalf("run stories: %v", err)
	}
	if len(stories) != 0 {
		t.Errorf("failed save leaked %d stories", len(stories))
	}
}

func TestGetRun_NotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetRun(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRun err = %v, want ErrNotFound", err)
	}
	if _, err := s.LatestRun(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("LatestRun err = %v, want ErrNotFound", err)
	}
}

func TestLatestAndListRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		if err := s.SaveRun(ctx, Run{ID: fmt.Sprintf("run-%d", i), StartedAt: at, FinishedAt: at}, nil); err != nil {
			t.Fatalf("save run %d: %v", i, err)
		}
	}

	latest, err := s.LatestRun(ctx)
	if err != nil {
		t.Fatalf("latest run: %v", err)
	}
	if latest.ID != "run-2" {
		t.Errorf("latest = %s, want run-2", latest.ID)
	}

	runs, err := s.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-2" || runs[1].ID != "run-1" {
		t.Errorf("runs = %+v", runs)
	}
	if runs[0].FailedUnits == nil {
		t.Error("failed units should decode to an empty slice")
	}
}

func TestPruneRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		if err := s.SaveRun(ctx, Run{ID: fmt.Sprintf("run-%d", i), StartedAt: at, FinishedAt: at}, sampleStories(at)); err != nil {
			t.Fatalf("save run %d: %v", i, err)
		}
	}

	n, err := s.PruneRuns(ctx, 2)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 3 {
		t.Errorf("pruned %d runs, want 3", n)
	}

	runs, _ := s.ListRuns(ctx, 10)
	if len(runs) != 2 || runs[0].ID != "run-4" || runs[1].ID != "run-3" {
		t.Errorf("remaining runs = %+v", runs)
	}

	stories, _ := s.RunStories(ctx, "run-0")
	if len(stories) != 0 {
		t.Errorf("pruned run still has %d stories", len(stories))
	}

	if n, err := s.PruneRuns(ctx, 0); err != nil || n != 0 {
		t.Errorf("PruneRuns(0) = %d, %v", n, err)
	}
}
