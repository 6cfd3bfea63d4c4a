package sink

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/elonfeng/dailyscope/pkg/virality"
)

func TestRedis_Keys(t *testing.T) {
	r := NewRedis("", redis.NewClient(&redis.Options{Addr: "localhost:0"}), "", 0)
	defer r.Close()

	if r.Name() != "redis" {
		t.Errorf("name = %q", r.Name())
	}
	if got := r.runKey("abc"); got != "dailyscope:run:abc" {
		t.Errorf("run key = %q", got)
	}
	if r.latestKey() != "dailyscope:latest" || r.runsKey() != "dailyscope:runs" {
		t.Errorf("keys = %q %q", r.latestKey(), r.runsKey())
	}
	if err := r.Write(context.Background(), Output{}); err == nil {
		t.Error("expected error for output without run id")
	}
}

// TestRedis_Write needs a live server; set DAILYSCOPE_TEST_REDIS=host:port.
func TestRedis_Write(t *testing.T) {
	addr := os.Getenv("DAILYSCOPE_TEST_REDIS")
	if addr == "" {
		t.Skip("DAILYSCOPE_TEST_REDIS not set")
	}

	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	prefix := "dailyscope-test-" + time.Now().Format("150405.000")
	r := NewRedis("", rdb, prefix, time.Minute)
	defer func() {
		rdb.Del(ctx, r.runKey("run-1"), r.latestKey(), r.runsKey())
		r.Close()
	}()

	if err := r.Write(ctx, sampleOutput()); err != nil {
		t.Fatalf("write: %v", err)
	}

	items, err := rdb.LRange(ctx, r.runKey("run-1"), 0, -1).Result()
	if err != nil {
		t.Fatalf("lrange: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	var first virality.ScoredStory
	if err := json.Unmarshal([]byte(items[0]), &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if first.Title != "A" || first.ViralityScore != 48 {
		t.Errorf("first = %+v", first)
	}

	if latest, _ := rdb.Get(ctx, r.latestKey()).Result(); latest != "run-1" {
		t.Errorf("latest = %q", latest)
	}
	if n, _ := rdb.ZCard(ctx, r.runsKey()).Result(); n != 1 {
		t.Errorf("runs index size = %d", n)
	}
}
