package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/elonfeng/dailyscope/pkg/httpclient"
)

func listingJSON(t *testing.T, posts ...redditPost) []byte {
	t.Helper()
	var l redditListing
	for _, p := range posts {
		l.Data.Children = append(l.Data.Children, struct {
			Data redditPost `json:"data"`
		}{Data: p})
	}
	b, err := json.Marshal(l)
	if err != nil {
		t.Fatalf("marshal listing: %v", err)
	}
	return b
}

func newTestSession(srvURL string, auth RedditAuth) *RedditSession {
	auth.BaseURL = srvURL
	return NewRedditSession(httpclient.NewRestyClient(2*time.Second), auth)
}

func TestNewReddit_Validation(t *testing.T) {
	s := NewRedditSession(nil, RedditAuth{})
	if _, err := s.NewReddit("  ", SortHot, "day", 10); err == nil {
		t.Fatal("expected error for empty subreddit")
	}

	r, err := s.NewReddit("r/news", "", "", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Unit() != RedditUnit("news", SortHot) {
		t.Errorf("unit = %+v, want r/news/hot", r.Unit())
	}
	if r.limit != DefaultLimit || r.window != "day" {
		t.Errorf("defaults not applied: limit=%d window=%q", r.limit, r.window)
	}
}

func TestReddit_Collect(t *testing.T) {
	var gotPath, gotLimit, gotWindow, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotLimit = r.URL.Query().Get("limit")
		gotWindow = r.URL.Query().Get("t")
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(listingJSON(t,
			redditPost{ID: "s", Title: "Megathread", Permalink: "/r/news/comments/s/", Score: 90000, Stickied: true},
			redditPost{ID: "a", Title: " Big story ", Permalink: "/r/news/comments/a/big/", Score: 6000},
			redditPost{ID: "b", Title: "", Permalink: "/r/news/comments/b/", Score: 10},
			redditPost{ID: "c", Title: "Downvoted", Permalink: "/r/news/comments/c/", Score: -4},
		))
	}))
	defer srv.Close()

	r, err := newTestSession(srv.URL, RedditAuth{UserAgent: "test-agent"}).NewReddit("news", SortRising, "day", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stories, err := r.Collect(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}

	if gotPath != "/r/news/rising.json" {
		t.Errorf("path = %q", gotPath)
	}
	if gotLimit != "10" || gotWindow != "day" {
		t.Errorf("query limit=%q t=%q", gotLimit, gotWindow)
	}
	if gotUA != "test-agent" {
		t.Errorf("user agent = %q", gotUA)
	}

	if len(stories) != 2 {
		t.Fatalf("got %d stories, want 2: %+v", len(stories), stories)
	}
	s := stories[0]
	if s.Title != "Big story" {
		t.Errorf("title = %q", s.Title)
	}
	if s.URL != "https://reddit.com/r/news/comments/a/big/" {
		t.Errorf("url = %q", s.URL)
	}
	if s.Source != "r/news" || s.Type != TypeReddit || s.Sort != SortRising {
		t.Errorf("story = %+v", s)
	}
	if s.UpvotesOr(-1) != 6000 {
		t.Errorf("upvotes = %d, want 6000", s.UpvotesOr(-1))
	}
	if s.Position != nil {
		t.Errorf("news field populated on reddit story: %+v", s)
	}
	if got := stories[1].UpvotesOr(-1); got != 0 {
		t.Errorf("negative score clamped to %d, want 0", got)
	}
}

func TestReddit_CollectCapsAtLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		var posts []redditPost
		for i := 0; i < 5; i++ {
			posts = append(posts, redditPost{Title: "p", Permalink: "/p", Score: i})
		}
		_, _ = w.Write(listingJSON(t, posts...))
	}))
	defer srv.Close()

	r, _ := newTestSession(srv.URL, RedditAuth{}).NewReddit("news", SortHot, "day", 3)
	stories, err := r.Collect(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(stories) != 3 {
		t.Errorf("got %d stories, want 3", len(stories))
	}
}

func TestReddit_CollectErrors(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		r, _ := newTestSession(srv.URL, RedditAuth{}).NewReddit("news", SortHot, "day", 10)
		if _, err := r.Collect(context.Background()); err == nil {
			t.Fatal("expected error for 429")
		}
	})

	t.Run("bad json", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("<html>"))
		}))
		defer srv.Close()

		r, _ := newTestSession(srv.URL, RedditAuth{}).NewReddit("news", SortHot, "day", 10)
		if _, err := r.Collect(context.Background()); err == nil {
			t.Fatal("expected decode error")
		}
	})
}

func TestReddit_OAuthTokenShared(t *testing.T) {
	var tokenCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/access_token" {
			tokenCalls.Add(1)
			user, pass, ok := r.BasicAuth()
			if !ok || user != "id" || pass != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`{"access_token":"tok","expires_in":3600}`))
			return
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write(listingJSON(t, redditPost{Title: "x", Permalink: "/x", Score: 100}))
	}))
	defer srv.Close()

	session := newTestSession(srv.URL, RedditAuth{ClientID: "id", ClientSecret: "secret"})
	hot, _ := session.NewReddit("news", SortHot, "day", 10)
	rising, _ := session.NewReddit("news", SortRising, "day", 10)

	for _, r := range []*Reddit{hot, rising} {
		stories, err := r.Collect(context.Background())
		if err != nil {
			t.Fatalf("collect %s: %v", r.Unit(), err)
		}
		if len(stories) != 1 {
			t.Errorf("%s: got %d stories, want 1", r.Unit(), len(stories))
		}
	}
	if got := tokenCalls.Load(); got != 1 {
		t.Errorf("token requested %d times, want 1", got)
	}
}

func TestReddit_OAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	r, _ := newTestSession(srv.URL, RedditAuth{ClientID: "id", ClientSecret: "bad"}).NewReddit("news", SortHot, "day", 10)
	if _, err := r.Collect(context.Background()); err == nil {
		t.Fatal("expected auth error")
	}
}
