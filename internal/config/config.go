// Package config loads and validates starcrawl configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	GitHub   GitHubConfig   `mapstructure:"github"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Database DatabaseConfig `mapstructure:"database"`
	Export   ExportConfig   `mapstructure:"export"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// GitHubConfig configures access to the GraphQL search API.
type GitHubConfig struct {
	Token          string `mapstructure:"token"`
	APIURL         string `mapstructure:"api_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
}

// CrawlerConfig governs the crawl run: how many records to collect,
// how they are fetched, and how failures and quota are handled.
type CrawlerConfig struct {
	Target        int         `mapstructure:"target"`
	Criterion     string      `mapstructure:"criterion"`
	BatchSize     int         `mapstructure:"batch_size"`
	ShardCap      int         `mapstructure:"shard_cap"`
	PolitenessRPS float64     `mapstructure:"politeness_rps"`
	Retry         RetryConfig `mapstructure:"retry"`
	Quota         QuotaConfig `mapstructure:"quota"`
}

// RetryConfig configures transient-failure retry behavior.
type RetryConfig struct {
	MaxAttempts      int  `mapstructure:"max_attempts"`
	BackoffInitialMs int  `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int  `mapstructure:"backoff_max_ms"`
	Jitter           bool `mapstructure:"jitter"`
}

// QuotaConfig configures the API quota governor.
type QuotaConfig struct {
	Buffer             int `mapstructure:"buffer"`
	ResetMarginSeconds int `mapstructure:"reset_margin_seconds"`
}

// DatabaseConfig selects and configures the record store backend.
type DatabaseConfig struct {
	Driver   string         `mapstructure:"driver"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// SQLiteConfig points at the embedded database file.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// PostgresConfig controls access to the relational database.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// ExportConfig sets where export artifacts are written.
type ExportConfig struct {
	Dir string `mapstructure:"dir"`
}

// ArchiveConfig selects where export artifacts are archived.
type ArchiveConfig struct {
	Provider string             `mapstructure:"provider"`
	GCS      GCSArchiveConfig   `mapstructure:"gcs"`
	Local    LocalArchiveConfig `mapstructure:"local"`
}

// GCSArchiveConfig holds bucket metadata for cloud archival.
type GCSArchiveConfig struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// LocalArchiveConfig points at a directory for local archival.
type LocalArchiveConfig struct {
	Dir string `mapstructure:"dir"`
}

// NotifyConfig holds metadata for run-completion notifications.
type NotifyConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// ServerConfig controls the optional status HTTP server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("STARCRAWL")
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
	v.SetDefault("github.api_url", "https://api.github.com/graphql")
	v.SetDefault("github.timeout_seconds", 30)
	v.SetDefault("github.user_agent", "starcrawl/1.0")
	v.SetDefault("crawler.target", 100000)
	v.SetDefault("crawler.criterion", "stars:>0")
	v.SetDefault("crawler.batch_size", 100)
	v.SetDefault("crawler.shard_cap", 1000)
	v.SetDefault("crawler.politeness_rps", 10.0)
	v.SetDefault("crawler.retry.max_attempts", 3)
	v.SetDefault("crawler.retry.backoff_initial_ms", 2000)
	v.SetDefault("crawler.retry.backoff_max_ms", 60000)
	v.SetDefault("crawler.retry.jitter", true)
	v.SetDefault("crawler.quota.buffer", 100)
	v.SetDefault("crawler.quota.reset_margin_seconds", 5)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.sqlite.path", "starcrawl.db")
	v.SetDefault("database.postgres.max_conns", 10)
	v.SetDefault("database.postgres.min_conns", 2)
	v.SetDefault("export.dir", ".")
	v.SetDefault("archive.provider", "noop")
	v.SetDefault("archive.gcs.prefix", "exports")
	v.SetDefault("notify.provider", "noop")
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Crawler.Target <= 0 {
		return fmt.Errorf("crawler.target must be > 0")
	}
	if c.Crawler.BatchSize <= 0 || c.Crawler.BatchSize > 100 {
		return fmt.Errorf("crawler.batch_size must be in 1..100")
	}
	if c.Crawler.ShardCap <= 0 {
		return fmt.Errorf("crawler.shard_cap must be > 0")
	}
	if c.GitHub.TimeoutSeconds <= 0 {
		return fmt.Errorf("github.timeout_seconds must be > 0")
	}
	switch c.Database.Driver {
	case "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("database.driver must be sqlite, postgres, or memory")
	}
	if c.Database.Driver == "postgres" && c.Database.Postgres.DSN == "" {
		return fmt.Errorf("database.postgres.dsn must be set when driver is postgres")
	}
	if c.Database.Driver == "sqlite" && c.Database.SQLite.Path == "" {
		return fmt.Errorf("database.sqlite.path must be set when driver is sqlite")
	}
	if c.Archive.Provider == "gcs" && c.Archive.GCS.Bucket == "" {
		return fmt.Errorf("archive.gcs.bucket must be set when archive provider is gcs")
	}
	if c.Notify.Provider == "pubsub" && (c.Notify.ProjectID == "" || c.Notify.TopicID == "") {
		return fmt.Errorf("notify.project_id and notify.topic_id must be set when notify provider is pubsub")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0 when the status server is enabled")
	}
	return nil
}

// RequestTimeout converts the GitHub timeout config into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.GitHub.TimeoutSeconds) * time.Second
}

// InitialBackoff converts the retry initial delay into a duration.
func (c RetryConfig) InitialBackoff() time.Duration {
	return time.Duration(c.BackoffInitialMs) * time.Millisecond
}

// MaxBackoff converts the retry delay cap into a duration.
func (c RetryConfig) MaxBackoff() time.Duration {
	return time.Duration(c.BackoffMaxMs) * time.Millisecond
}

// ResetMargin converts the quota reset margin into a duration.
func (c QuotaConfig) ResetMargin() time.Duration {
	return time.Duration(c.ResetMarginSeconds) * time.Second
}
