package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/elonfeng/dailyscope/pkg/source"
	"github.com/elonfeng/dailyscope/pkg/virality"
)

// EnvPrefix prefixes every environment override, e.g. DAILYSCOPE_RUN_MAX_RESULTS.
const EnvPrefix = "DAILYSCOPE"

// Config is the root configuration.
type Config struct {
	Log      LogConfig              `mapstructure:"log" yaml:"log"`
	Database DatabaseConfig         `mapstructure:"database" yaml:"database"`
	Run      RunConfig              `mapstructure:"run" yaml:"run"`
	Sites    map[string]source.Site `mapstructure:"sites" yaml:"sites"`
	Reddit   RedditConfig           `mapstructure:"reddit" yaml:"reddit"`
	Scoring  ScoringConfig          `mapstructure:"scoring" yaml:"scoring"`
	Filter   FilterConfig           `mapstructure:"filter" yaml:"filter"`
	Schedule ScheduleConfig         `mapstructure:"schedule" yaml:"schedule"`
	Server   ServerConfig           `mapstructure:"server" yaml:"server"`
	Sinks    SinksConfig            `mapstructure:"sinks" yaml:"sinks"`

	// File is the config file that was read, empty when running on defaults.
	File string `mapstructure:"-" yaml:"-"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path       string `mapstructure:"path" yaml:"path"`
	RetainRuns int    `mapstructure:"retain_runs" yaml:"retain_runs"`
}

// RunConfig selects what one run collects and how much it keeps.
type RunConfig struct {
	NewsSources    []string      `mapstructure:"news_sources" yaml:"news_sources"`
	RedditSubs     []string      `mapstructure:"reddit_subs" yaml:"reddit_subs"`
	RedditSorts    []string      `mapstructure:"reddit_sorts" yaml:"reddit_sorts"`
	RedditTime     string        `mapstructure:"reddit_time" yaml:"reddit_time"`
	MaxResults     int           `mapstructure:"max_results" yaml:"max_results"`
	PerSourceLimit int           `mapstructure:"per_source_limit" yaml:"per_source_limit"`
	MaxTitleLength int           `mapstructure:"max_title_length" yaml:"max_title_length"`
	Concurrency    int           `mapstructure:"concurrency" yaml:"concurrency"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// Sorts returns the configured listing sorts.
func (r RunConfig) Sorts() []source.Sort {
	out := make([]source.Sort, 0, len(r.RedditSorts))
	for _, s := range r.RedditSorts {
		out = append(out, source.Sort(s))
	}
	return out
}

// RedditConfig holds Reddit API settings.
type RedditConfig struct {
	BaseURL      string `mapstructure:"base_url" yaml:"base_url,omitempty"`
	ClientID     string `mapstructure:"client_id" yaml:"client_id,omitempty"`
	ClientSecret string `mapstructure:"client_secret" yaml:"client_secret,omitempty"`
	UserAgent    string `mapstructure:"user_agent" yaml:"user_agent"`
}

// ScoringConfig overrides entries of the built-in weight tables.
type ScoringConfig struct {
	SourceWeights   map[string]float64 `mapstructure:"source_weights" yaml:"source_weights"`
	SortMultipliers map[string]float64 `mapstructure:"sort_multipliers" yaml:"sort_multipliers"`
}

// Tables returns the default tables with the configured overrides applied.
func (s ScoringConfig) Tables() virality.Tables {
	override := virality.Tables{
		SourceWeights:   s.SourceWeights,
		SortMultipliers: make(map[source.Sort]float64, len(s.SortMultipliers)),
	}
	for k, v := range s.SortMultipliers {
		override.SortMultipliers[source.Sort(k)] = v
	}
	return virality.DefaultTables().Merge(override)
}

// FilterConfig configures story filtering.
type FilterConfig struct {
	ExcludeKeywords []string `mapstructure:"exclude_keywords" yaml:"exclude_keywords"`
}

// ScheduleConfig configures daemon mode.
type ScheduleConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port" yaml:"port"`
}

// SinksConfig points to the optional sinks file.
type SinksConfig struct {
	File string `mapstructure:"file" yaml:"file"`
}

var (
	defaultNewsSources = []string{"bbc", "reuters", "apnews"}
	defaultRedditSubs  = []string{"news", "worldnews"}
	defaultRedditSorts = []string{"hot", "rising"}
)

const (
	defaultMaxResults = 20
	defaultRedditTime = "day"
	defaultRetainRuns = 100
	defaultPort       = 8080
	defaultInterval   = time.Hour
)

// Default returns a Config with every documented default.
func Default() *Config {
	return &Config{
		Log:      LogConfig{Level: "info", Format: "console"},
		Database: DatabaseConfig{Path: "./dailyscope.db", RetainRuns: defaultRetainRuns},
		Run: RunConfig{
			NewsSources:    clone(defaultNewsSources),
			RedditSubs:     clone(defaultRedditSubs),
			RedditSorts:    clone(defaultRedditSorts),
			RedditTime:     defaultRedditTime,
			MaxResults:     defaultMaxResults,
			PerSourceLimit: source.DefaultLimit,
			MaxTitleLength: source.DefaultMaxTitleLength,
			Concurrency:    4,
			Timeout:        30 * time.Second,
		},
		Sites:    source.DefaultSites(),
		Reddit:   RedditConfig{UserAgent: "dailyscope/1.0"},
		Scoring:  ScoringConfig{SourceWeights: map[string]float64{}, SortMultipliers: map[string]float64{}},
		Schedule: ScheduleConfig{Interval: defaultInterval},
		Server:   ServerConfig{Port: defaultPort},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("database.retain_runs", d.Database.RetainRuns)
	v.SetDefault("run.news_sources", d.Run.NewsSources)
	v.SetDefault("run.reddit_subs", d.Run.RedditSubs)
	v.SetDefault("run.reddit_sorts", d.Run.RedditSorts)
	v.SetDefault("run.reddit_time", d.Run.RedditTime)
	v.SetDefault("run.max_results", d.Run.MaxResults)
	v.SetDefault("run.per_source_limit", d.Run.PerSourceLimit)
	v.SetDefault("run.max_title_length", d.Run.MaxTitleLength)
	v.SetDefault("run.concurrency", d.Run.Concurrency)
	v.SetDefault("run.timeout", d.Run.Timeout)
	v.SetDefault("reddit.base_url", "")
	v.SetDefault("reddit.client_id", "")
	v.SetDefault("reddit.client_secret", "")
	v.SetDefault("reddit.user_agent", d.Reddit.UserAgent)
	v.SetDefault("filter.exclude_keywords", []string{})
	v.SetDefault("schedule.interval", d.Schedule.Interval)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("sinks.file", "")
}

// Load reads configuration. An explicit path must exist; otherwise
// config.yaml is searched in the usual places and defaults are used when none
// is found. A .env file in the working directory is loaded first.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("reddit.client_id", EnvPrefix+"_REDDIT_CLIENT_ID", "REDDIT_CLIENT_ID")
	_ = v.BindEnv("reddit.client_secret", EnvPrefix+"_REDDIT_CLIENT_SECRET", "REDDIT_CLIENT_SECRET")

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/dailyscope")
		v.AddConfigPath("configs")
	}

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	cfg.sanitize()
	return &cfg, nil
}

// sanitize replaces absent, empty or out-of-range values with defaults.
// An explicit max_results of 0 is kept and yields an empty ranking.
func (c *Config) sanitize() {
	d := Default()

	if strings.TrimSpace(c.Log.Level) == "" {
		c.Log.Level = d.Log.Level
	}
	if strings.TrimSpace(c.Log.Format) == "" {
		c.Log.Format = d.Log.Format
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		c.Database.Path = d.Database.Path
	}
	if c.Database.RetainRuns < 0 {
		c.Database.RetainRuns = d.Database.RetainRuns
	}

	c.Run.NewsSources = normalizeList(c.Run.NewsSources, strings.ToLower)
	if len(c.Run.NewsSources) == 0 {
		c.Run.NewsSources = d.Run.NewsSources
	}
	c.Run.RedditSubs = normalizeList(c.Run.RedditSubs, func(s string) string { return strings.TrimPrefix(s, "r/") })
	if len(c.Run.RedditSubs) == 0 {
		c.Run.RedditSubs = d.Run.RedditSubs
	}
	c.Run.RedditSorts = knownSorts(c.Run.RedditSorts)
	if len(c.Run.RedditSorts) == 0 {
		c.Run.RedditSorts = d.Run.RedditSorts
	}
	if strings.TrimSpace(c.Run.RedditTime) == "" {
		c.Run.RedditTime = d.Run.RedditTime
	}
	if c.Run.MaxResults < 0 {
		c.Run.MaxResults = d.Run.MaxResults
	}
	if c.Run.PerSourceLimit <= 0 {
		c.Run.PerSourceLimit = d.Run.PerSourceLimit
	}
	if c.Run.MaxTitleLength <= 0 {
		c.Run.MaxTitleLength = d.Run.MaxTitleLength
	}
	if c.Run.Concurrency <= 0 {
		c.Run.Concurrency = d.Run.Concurrency
	}
	if c.Run.Timeout <= 0 {
		c.Run.Timeout = d.Run.Timeout
	}

	sites := source.DefaultSites()
	for id, s := range c.Sites {
		sites[strings.ToLower(strings.TrimSpace(id))] = s
	}
	c.Sites = sites

	if strings.TrimSpace(c.Reddit.UserAgent) == "" {
		c.Reddit.UserAgent = d.Reddit.UserAgent
	}
	if c.Schedule.Interval <= 0 {
		c.Schedule.Interval = d.Schedule.Interval
	}
	if c.Server.Port <= 0 {
		c.Server.Port = d.Server.Port
	}
}

// normalizeList trims, maps and de-duplicates entries, dropping empty ones.
func normalizeList(in []string, fn func(string) string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = fn(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func knownSorts(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[source.Sort]bool, len(in))
	for _, s := range in {
		srt, ok := source.ParseSort(s)
		if !ok || seen[srt] {
			continue
		}
		seen[srt] = true
		out = append(out, string(srt))
	}
	return out
}

func clone(s []string) []string {
	return append([]string(nil), s...)
}

const defaultHeader = `# dailyscope configuration.
# Every key can be overridden with DAILYSCOPE_<SECTION>_<KEY>, e.g. DAILYSCOPE_RUN_MAX_RESULTS=10.
# REDDIT_CLIENT_ID / REDDIT_CLIENT_SECRET enable the authenticated Reddit API.

`

// WriteDefault writes a starter config file. It refuses to overwrite an
// existing file.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("encode default config: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := f.WriteString(defaultHeader); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
