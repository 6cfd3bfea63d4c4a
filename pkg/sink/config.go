package sink

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported sink types in the sinks file.
const (
	TypeJSON    = "json"
	TypeBolt    = "bolt"
	TypeRedis   = "redis"
	TypeWebhook = "webhook"
	TypeSlack   = "slack"
	TypeDiscord = "discord"
	TypeQueue   = "queue"
)

// configFile is the layout of the sinks file.
type configFile struct {
	Sinks []Config `json:"sinks" yaml:"sinks"`
}

// Config is a single sink entry declared in the sinks file.
type Config struct {
	ID      string         `json:"id" yaml:"id"`
	Type    string         `json:"type" yaml:"type"`
	Enabled *bool          `json:"enabled" yaml:"enabled"`
	JSON    *FileConfig    `json:"json" yaml:"json"`
	Bolt    *FileConfig    `json:"bolt" yaml:"bolt"`
	Redis   *RedisConfig   `json:"redis" yaml:"redis"`
	Webhook *WebhookConfig `json:"webhook" yaml:"webhook"`
	Slack   *ChatConfig    `json:"slack" yaml:"slack"`
	Discord *ChatConfig    `json:"discord" yaml:"discord"`
	Queue   *QueueConfig   `json:"queue" yaml:"queue"`
}

// FileConfig points a file-backed sink at its path.
type FileConfig struct {
	Path string `json:"path" yaml:"path"`
}

// RedisConfig holds redis connection and key settings.
type RedisConfig struct {
	Addr      string `json:"addr" yaml:"addr"`
	Username  string `json:"username" yaml:"username"`
	Password  string `json:"password" yaml:"password"`
	DB        int    `json:"db" yaml:"db"`
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix"`
	TTL       string `json:"ttl" yaml:"ttl"`
}

// TTLDuration parses TTL; empty means no expiry.
func (c RedisConfig) TTLDuration() (time.Duration, error) {
	if c.TTL == "" {
		return 0, nil
	}
	return time.ParseDuration(c.TTL)
}

// WebhookConfig holds generic webhook settings.
type WebhookConfig struct {
	URL    string `json:"url" yaml:"url"`
	Secret string `json:"secret" yaml:"secret"`
}

// ChatConfig holds a chat incoming-webhook URL.
type ChatConfig struct {
	WebhookURL string `json:"webhook_url" yaml:"webhook_url"`
}

// QueueConfig selects a cloud queue provider.
type QueueConfig struct {
	Provider string     `json:"provider" yaml:"provider"`
	SQS      *SQSConfig `json:"sqs" yaml:"sqs"`
	SNS      *SNSConfig `json:"sns" yaml:"sns"`
	GCP      *GCPConfig `json:"gcp" yaml:"gcp"`
}

// SQSConfig holds AWS SQS specific settings.
type SQSConfig struct {
	QueueURL        string `json:"uri" yaml:"uri"`
	Region          string `json:"region" yaml:"region"`
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key"`
}

// SNSConfig holds AWS SNS specific settings.
type SNSConfig struct {
	TopicARN        string `json:"topic_arn" yaml:"topic_arn"`
	Region          string `json:"region" yaml:"region"`
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key"`
}

// GCPConfig holds the Pub/Sub topic settings.
type GCPConfig struct {
	ProjectID       string `json:"project_id" yaml:"project_id"`
	Topic           string `json:"topic" yaml:"topic"`
	CredentialsFile string `json:"credentials_file" yaml:"credentials_file"`
}

// EnabledValue returns the enabled flag, defaulting to true.
func (c Config) EnabledValue() bool {
	if c.Enabled == nil {
		return true
	}
	return *c.Enabled
}

// LoadConfigs reads sink entries from a YAML or JSON file. ${VAR} references
// are expanded from the environment before decoding.
func LoadConfigs(path string) ([]Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sinks file path is empty")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sinks file: %w", err)
	}

	file, err := parseConfigFile([]byte(os.ExpandEnv(string(raw))), filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if len(file.Sinks) == 0 {
		return nil, errors.New("sinks file contains no sinks entries")
	}

	seen := make(map[string]bool, len(file.Sinks))
	out := make([]Config, len(file.Sinks))
	for i := range file.Sinks {
		cfg := sanitizeConfig(file.Sinks[i])
		if err := validateConfig(cfg); err != nil {
			return nil, fmt.Errorf("sinks[%d]: %w", i, err)
		}
		if seen[cfg.ID] {
			return nil, fmt.Errorf("duplicate sink id %q", cfg.ID)
		}
		seen[cfg.ID] = true
		out[i] = cfg
	}
	return out, nil
}

// parseConfigFile decodes by extension, or tries YAML then JSON when the
// extension is unknown.
func parseConfigFile(data []byte, ext string) (configFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	decoders := []struct {
		name string
		exts []string
		fn   func([]byte, any) error
	}{
		{name: "yaml", exts: []string{".yaml", ".yml"}, fn: yaml.Unmarshal},
		{name: "json", exts: []string{".json"}, fn: json.Unmarshal},
	}

	known := false
	for _, d := range decoders {
		for _, e := range d.exts {
			known = known || e == ext
		}
	}

	var errs []error
	for _, d := range decoders {
		matches := !known
		for _, e := range d.exts {
			matches = matches || e == ext
		}
		if !matches {
			continue
		}

		var file configFile
		if err := d.fn(data, &file); err != nil {
			errs = append(errs, fmt.Errorf("decode %s sinks: %w", d.name, err))
			continue
		}
		return file, nil
	}

	return configFile{}, fmt.Errorf("sinks file format not recognized (expected YAML or JSON): %w", errors.Join(errs...))
}

// sanitizeConfig trims and normalizes fields.
func sanitizeConfig(cfg Config) Config {
	cfg.ID = strings.TrimSpace(cfg.ID)
	cfg.Type = strings.ToLower(strings.TrimSpace(cfg.Type))
	if cfg.Enabled == nil {
		def := true
		cfg.Enabled = &def
	}

	if cfg.JSON != nil {
		c := *cfg.JSON
		c.Path = strings.TrimSpace(c.Path)
		cfg.JSON = &c
	}
	if cfg.Bolt != nil {
		c := *cfg.Bolt
		c.Path = strings.TrimSpace(c.Path)
		cfg.Bolt = &c
	}
	if cfg.Redis != nil {
		c := *cfg.Redis
		c.Addr = strings.TrimSpace(c.Addr)
		c.KeyPrefix = strings.TrimSpace(c.KeyPrefix)
		c.TTL = strings.TrimSpace(c.TTL)
		cfg.Redis = &c
	}
	if cfg.Webhook != nil {
		c := *cfg.Webhook
		c.URL = strings.TrimSpace(c.URL)
		cfg.Webhook = &c
	}
	if cfg.Slack != nil {
		c := *cfg.Slack
		c.WebhookURL = strings.TrimSpace(c.WebhookURL)
		cfg.Slack = &c
	}
	if cfg.Discord != nil {
		c := *cfg.Discord
		c.WebhookURL = strings.TrimSpace(c.WebhookURL)
		cfg.Discord = &c
	}
	if cfg.Queue != nil {
		qc := *cfg.Queue
		qc.Provider = strings.ToLower(strings.TrimSpace(qc.Provider))
		if qc.SQS != nil {
			a := *qc.SQS
			a.QueueURL = strings.TrimSpace(a.QueueURL)
			a.Region = strings.TrimSpace(a.Region)
			a.AccessKeyID = strings.TrimSpace(a.AccessKeyID)
			a.SecretAccessKey = strings.TrimSpace(a.SecretAccessKey)
			qc.SQS = &a
		}
		if qc.SNS != nil {
			s := *qc.SNS
			s.TopicARN = strings.TrimSpace(s.TopicARN)
			s.Region = strings.TrimSpace(s.Region)
			s.AccessKeyID = strings.TrimSpace(s.AccessKeyID)
			s.SecretAccessKey = strings.TrimSpace(s.SecretAccessKey)
			qc.SNS = &s
		}
		if qc.GCP != nil {
			g := *qc.GCP
			g.ProjectID = strings.TrimSpace(g.ProjectID)
			g.Topic = strings.TrimSpace(g.Topic)
			g.CredentialsFile = strings.TrimSpace(g.CredentialsFile)
			qc.GCP = &g
		}
		cfg.Queue = &qc
	}
	return cfg
}

// validateConfig checks that required fields are present.
func validateConfig(cfg Config) error {
	if cfg.ID == "" {
		return errors.New("id is required")
	}
	if cfg.Type == "" {
		return fmt.Errorf("type is required for sink %q", cfg.ID)
	}

	switch cfg.Type {
	case TypeJSON:
		if cfg.JSON == nil || cfg.JSON.Path == "" {
			return fmt.Errorf("json.path is required for sink %q", cfg.ID)
		}
	case TypeBolt:
		if cfg.Bolt == nil || cfg.Bolt.Path == "" {
			return fmt.Errorf("bolt.path is required for sink %q", cfg.ID)
		}
	case TypeRedis:
		if cfg.Redis == nil || cfg.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required for sink %q", cfg.ID)
		}
		if _, err := cfg.Redis.TTLDuration(); err != nil {
			return fmt.Errorf("redis.ttl of sink %q: %w", cfg.ID, err)
		}
	case TypeWebhook:
		if cfg.Webhook == nil || cfg.Webhook.URL == "" {
			return fmt.Errorf("webhook.url is required for sink %q", cfg.ID)
		}
	case TypeSlack:
		if cfg.Slack == nil || cfg.Slack.WebhookURL == "" {
			return fmt.Errorf("slack.webhook_url is required for sink %q", cfg.ID)
		}
	case TypeDiscord:
		if cfg.Discord == nil || cfg.Discord.WebhookURL == "" {
			return fmt.Errorf("discord.webhook_url is required for sink %q", cfg.ID)
		}
	case TypeQueue:
		if cfg.Queue == nil {
			return fmt.Errorf("queue config required for sink %q", cfg.ID)
		}
		switch cfg.Queue.Provider {
		case QueueProviderAWSSQS:
			return validateSQSConfig(cfg.ID, cfg.Queue.SQS)
		case QueueProviderAWSSNS:
			return validateSNSConfig(cfg.ID, cfg.Queue.SNS)
		case QueueProviderGCP:
			return validateGCPConfig(cfg.ID, cfg.Queue.GCP)
		default:
			return fmt.Errorf("queue provider %q not supported for sink %q", cfg.Queue.Provider, cfg.ID)
		}
	default:
		return fmt.Errorf("type %q not supported for sink %q", cfg.Type, cfg.ID)
	}
	return nil
}

func validateSQSConfig(id string, cfg *SQSConfig) error {
	if cfg == nil {
		return fmt.Errorf("sqs config required for sink %q", id)
	}
	if cfg.QueueURL == "" {
		return fmt.Errorf("sqs.uri is required for sink %q", id)
	}
	if cfg.Region == "" {
		return fmt.Errorf("sqs.region is required for sink %q", id)
	}
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return fmt.Errorf("sqs credentials are required for sink %q", id)
	}
	return nil
}

func validateSNSConfig(id string, cfg *SNSConfig) error {
	if cfg == nil {
		return fmt.Errorf("sns config required for sink %q", id)
	}
	if cfg.TopicARN == "" {
		return fmt.Errorf("sns.topic_arn is required for sink %q", id)
	}
	if cfg.Region == "" {
		return fmt.Errorf("sns.region is required for sink %q", id)
	}
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return fmt.Errorf("sns credentials are required for sink %q", id)
	}
	return nil
}

func validateGCPConfig(id string, cfg *GCPConfig) error {
	if cfg == nil {
		return fmt.Errorf("gcp config required for sink %q", id)
	}
	if cfg.ProjectID == "" {
		return fmt.Errorf("gcp.project_id is required for sink %q", id)
	}
	if cfg.Topic == "" {
		return fmt.Errorf("gcp.topic is required for sink %q", id)
	}
	return nil
}
