package sink

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder creates a Sink from a config entry.
type Builder func(ctx context.Context, cfg Config, log *zap.Logger) (Sink, error)

// Registry maps sink types to builders.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// NewRegistry returns a registry with optional pre-registered builders.
func NewRegistry(builders map[string]Builder) *Registry {
	r := &Registry{builders: make(map[string]Builder)}
	for typ, b := range builders {
		r.Register(typ, b)
	}
	return r
}

// Register associates a builder with a sink type.
func (r *Registry) Register(typ string, builder Builder) {
	if typ = strings.TrimSpace(strings.ToLower(typ)); typ == "" || builder == nil {
		return
	}
	r.mu.Lock()
	r.builders[typ] = builder
	r.mu.Unlock()
}

// SinkFor builds the sink described by cfg.
func (r *Registry) SinkFor(ctx context.Context, cfg Config, log *zap.Logger) (Sink, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("sink %q has no type configured", cfg.ID)
	}

	r.mu.RLock()
	builder := r.builders[strings.ToLower(cfg.Type)]
	r.mu.RUnlock()

	if builder == nil {
		return nil, fmt.Errorf("no sink registered for type %q", cfg.Type)
	}
	return builder(ctx, cfg, log)
}

// DefaultRegistry wires up every sink type of the sinks file.
func DefaultRegistry() *Registry {
	return NewRegistry(map[string]Builder{
		TypeJSON:    newJSONSink,
		TypeBolt:    newBoltSink,
		TypeRedis:   newRedisSink,
		TypeWebhook: newWebhookSink,
		TypeSlack:   newSlackSink,
		TypeDiscord: newDiscordSink,
		TypeQueue:   newQueueSink,
	})
}

// BuildAll instantiates the enabled sinks of cfgs. On failure, sinks built so
// far are closed.
func BuildAll(ctx context.Context, reg *Registry, cfgs []Config, log *zap.Logger) ([]Sink, error) {
	if reg == nil || len(cfgs) == 0 {
		return nil, nil
	}
	if log == nil {
		log = zap.NewNop()
	}

	var sinks []Sink
	for _, cfg := range cfgs {
		if !cfg.EnabledValue() {
			log.Info("sink disabled", zap.String("sink", cfg.ID))
			continue
		}
		s, err := reg.SinkFor(ctx, cfg, log)
		if err != nil {
			closeErr := NewManager(nil, sinks...).Close()
			return nil, errors.Join(fmt.Errorf("build sink %q: %w", cfg.ID, err), closeErr)
		}
		sinks = append(sinks, s)
	}
	return sinks, nil
}

func newJSONSink(_ context.Context, cfg Config, _ *zap.Logger) (Sink, error) {
	if cfg.JSON == nil {
		return nil, fmt.Errorf("sink %q missing json configuration", cfg.ID)
	}
	return NewJSONFile(cfg.ID, cfg.JSON.Path), nil
}

func newBoltSink(_ context.Context, cfg Config, _ *zap.Logger) (Sink, error) {
	if cfg.Bolt == nil {
		return nil, fmt.Errorf("sink %q missing bolt configuration", cfg.ID)
	}
	return OpenBolt(cfg.ID, cfg.Bolt.Path)
}

func newRedisSink(_ context.Context, cfg Config, _ *zap.Logger) (Sink, error) {
	if cfg.Redis == nil {
		return nil, fmt.Errorf("sink %q missing redis configuration", cfg.ID)
	}
	ttl, err := cfg.Redis.TTLDuration()
	if err != nil {
		return nil, fmt.Errorf("sink %q redis ttl: %w", cfg.ID, err)
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return NewRedis(cfg.ID, rdb, cfg.Redis.KeyPrefix, ttl), nil
}

func newWebhookSink(_ context.Context, cfg Config, _ *zap.Logger) (Sink, error) {
	if cfg.Webhook == nil {
		return nil, fmt.Errorf("sink %q missing webhook configuration", cfg.ID)
	}
	return NewWebhook(cfg.ID, cfg.Webhook.URL, cfg.Webhook.Secret, nil), nil
}

func newSlackSink(_ context.Context, cfg Config, _ *zap.Logger) (Sink, error) {
	if cfg.Slack == nil {
		return nil, fmt.Errorf("sink %q missing slack configuration", cfg.ID)
	}
	return NewSlack(cfg.ID, cfg.Slack.WebhookURL, nil), nil
}

func newDiscordSink(_ context.Context, cfg Config, _ *zap.Logger) (Sink, error) {
	if cfg.Discord == nil {
		return nil, fmt.Errorf("sink %q missing discord configuration", cfg.ID)
	}
	return NewDiscord(cfg.ID, cfg.Discord.WebhookURL, nil), nil
}
