package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/elonfeng/dailyscope/pkg/httpclient"
)

const voxFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
  <title>Vox</title>
  <item><title>Alpha</title><link>https://vox.example/alpha</link></item>
  <item><title></title><link>https://vox.example/untitled</link></item>
  <item><title>Gamma</title><link>https://vox.example/gamma</link></item>
</channel></rss>`

func feedServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewFeed_Validation(t *testing.T) {
	if _, err := NewFeed(nil, "", "https://x/feed", 10); err == nil {
		t.Error("expected error for empty id")
	}
	if _, err := NewFeed(nil, "vox", " ", 10); err == nil {
		t.Error("expected error for empty feed url")
	}
}

func TestFeed_Collect(t *testing.T) {
	srv := feedServer(t, http.StatusOK, voxFeed)

	f, err := NewFeed(httpclient.NewRestyClient(2*time.Second), "vox", srv.URL, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Unit() != NewsUnit("vox") {
		t.Errorf("unit = %+v", f.Unit())
	}

	stories, err := f.Collect(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(stories) != 2 {
		t.Fatalf("got %d stories, want 2", len(stories))
	}
	if stories[0].Title != "Alpha" || stories[0].Source != "VOX" || stories[0].PositionOr(0) != 1 {
		t.Errorf("first = %+v", stories[0])
	}
	if stories[1].Title != "Gamma" || stories[1].PositionOr(0) != 3 {
		t.Errorf("second = %+v", stories[1])
	}
}

func TestFeed_CollectLimit(t *testing.T) {
	srv := feedServer(t, http.StatusOK, voxFeed)

	f, _ := NewFeed(httpclient.NewRestyClient(2*time.Second), "vox", srv.URL, 1)
	stories, err := f.Collect(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(stories) != 1 {
		t.Errorf("got %d stories, want 1", len(stories))
	}
}

func TestFeed_CollectErrors(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		srv := feedServer(t, http.StatusInternalServerError, "")
		f, _ := NewFeed(httpclient.NewRestyClient(2*time.Second), "vox", srv.URL, 10)
		if _, err := f.Collect(context.Background()); err == nil {
			t.Fatal("expected status error")
		}
	})

	t.Run("not a feed", func(t *testing.T) {
		srv := feedServer(t, http.StatusOK, "this is not xml")
		f, _ := NewFeed(httpclient.NewRestyClient(2*time.Second), "vox", srv.URL, 10)
		if _, err := f.Collect(context.Background()); err == nil {
			t.Fatal("expected parse error")
		}
	})
}
