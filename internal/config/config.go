// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/quseop/property-ci-scraper/internal/property"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Fetcher   FetcherConfig   `mapstructure:"fetcher"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	DB        DBConfig        `mapstructure:"db"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Jobs      []JobConfig     `mapstructure:"jobs"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// FetcherConfig governs the page fetcher.
type FetcherConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
}

// SchedulerConfig governs run result retention.
type SchedulerConfig struct {
	ResultsPerJob int `mapstructure:"results_per_job"`
}

// DBConfig controls access to the relational database. An empty DSN selects
// the in-memory listing store.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// SnapshotConfig sets the markup snapshot archive provider.
type SnapshotConfig struct {
	// Provider is one of "", "memory", "local" or "gcs". Empty disables
	// snapshot archiving.
	Provider    string `mapstructure:"provider"`
	BaseDir     string `mapstructure:"base_dir"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
	ContentType string `mapstructure:"content_type"`
}

// PubSubConfig holds metadata for run event notifications.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// JobConfig declares a scraping job installed at startup.
type JobConfig struct {
	Name      string               `mapstructure:"name"`
	TargetURL string               `mapstructure:"target_url"`
	Schedule  string               `mapstructure:"schedule"`
	Selectors property.SelectorSet `mapstructure:"selectors"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCRAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("fetcher.timeout_seconds", 30)
	v.SetDefault("scheduler.results_per_job", 20)
	v.SetDefault("snapshot.provider", "")
	v.SetDefault("snapshot.content_type", "text/html; charset=utf-8")
	v.SetDefault("pubsub.topic_name", "scraper-run-events")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Fetcher.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetcher.timeout_seconds must be > 0")
	}
	if c.Scheduler.ResultsPerJob <= 0 {
		return fmt.Errorf("scheduler.results_per_job must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.Snapshot.Provider {
	case "", "memory", "local", "gcs":
	default:
		return fmt.Errorf("snapshot.provider must be one of memory, local, gcs")
	}
	if c.Snapshot.Provider == "local" && c.Snapshot.BaseDir == "" {
		return fmt.Errorf("snapshot.base_dir must be set for the local provider")
	}
	if c.Snapshot.Provider == "gcs" && c.Snapshot.GCSBucket == "" {
		return fmt.Errorf("snapshot.gcs_bucket must be set for the gcs provider")
	}
	if c.PubSub.Enabled && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub is enabled")
	}
	for i, job := range c.Jobs {
		if job.TargetURL == "" {
			return fmt.Errorf("jobs[%d].target_url is required", i)
		}
		if job.Schedule == "" {
			return fmt.Errorf("jobs[%d].schedule is required", i)
		}
	}
	return nil
}

// FetchTimeout converts the fetcher timeout config into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetcher.TimeoutSeconds) * time.Second
}
