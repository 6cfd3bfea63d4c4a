package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "dailyscope"

// Redis publishes each run as a list of stories, keeps a pointer to the
// latest run and indexes runs in a sorted set by generation time.
type Redis struct {
	name   string
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedis creates a redis sink. Keys are written under prefix; a positive
// ttl expires per-run lists.
func NewRedis(name string, rdb redis.UniversalClient, prefix string, ttl time.Duration) *Redis {
	if name == "" {
		name = "redis"
	}
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &Redis{name: name, rdb: rdb, prefix: prefix, ttl: ttl}
}

func (r *Redis) runKey(runID string) string { return fmt.Sprintf("%s:run:%s", r.prefix, runID) }
func (r *Redis) latestKey() string         { return r.prefix + ":latest" }
func (r *Redis) runsKey() string           { return r.prefix + ":runs" }

func (r *Redis) Name() string { return r.name }

func (r *Redis) Write(ctx context.Context, out Output) error {
	if out.RunID == "" {
		return fmt.Errorf("redis sink requires a run id")
	}

	members := make([]any, 0, len(out.Stories))
	for _, s := range out.Stories {
		b, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("marshal story: %w", err)
		}
		members = append(members, b)
	}

	key := r.runKey(out.RunID)
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(members) > 0 {
			pipe.RPush(ctx, key, members...)
			if r.ttl > 0 {
				pipe.Expire(ctx, key, r.ttl)
			}
		}
		pipe.Set(ctx, r.latestKey(), out.RunID, 0)
		pipe.ZAdd(ctx, r.runsKey(), redis.Z{Score: float64(out.GeneratedAt.Unix()), Member: out.RunID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis write run %s: %w", out.RunID, err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
