package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Port           int      `mapstructure:"port"`
	DatabaseDriver string   `mapstructure:"database_driver"` // "sqlite" or "postgres"
	DatabasePath   string   `mapstructure:"database_path"`   // SQLite file path
	DatabaseURL    string   `mapstructure:"database_url"`    // PostgreSQL DSN
	LogLevel       string   `mapstructure:"log_level"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	// Detection
	BaselineWindowSize int `mapstructure:"baseline_window_size"` // samples kept per statistic
	MinSamples         int `mapstructure:"min_samples"`          // cold-start floor before rules run
	QueueSize          int `mapstructure:"queue_size"`           // detection queue capacity
	BatchIntervalSec   int `mapstructure:"batch_interval_sec"`   // batch rule scan cadence

	// Dispatch
	MinAlertSeverity string `mapstructure:"min_alert_severity"`  // info | warning | critical
	RateLimitCount   int    `mapstructure:"rate_limit_count"`    // alerts per key per window
	RateLimitWindowS int    `mapstructure:"rate_limit_window_s"` // rate limit window seconds
	WebhookURL       string `mapstructure:"webhook_url"`         // optional generic webhook
	SlackWebhookURL  string `mapstructure:"slack_webhook_url"`   // optional Slack incoming webhook

	// HTTP
	RequestTimeoutSec  int   `mapstructure:"request_timeout_sec"`  // HTTP read/write; 0 = use server default
	ShutdownTimeoutSec int   `mapstructure:"shutdown_timeout_sec"` // Graceful shutdown wait
	MaxBodyBytes       int64 `mapstructure:"max_body_bytes"`       // Max request body size

	// Tracing
	OTLPEndpoint     string  `mapstructure:"otlp_endpoint"`      // empty = tracing disabled
	TraceSampleRatio float64 `mapstructure:"trace_sample_ratio"` // 0..1
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/qawatch/")
	viper.AddConfigPath("$HOME/.qawatch")
	viper.AddConfigPath(".")

	// Defaults
	viper.SetDefault("port", 8080)
	viper.SetDefault("database_driver", "sqlite")
	viper.SetDefault("database_path", "./qawatch.db")
	viper.SetDefault("database_url", "")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("allowed_origins", []string{"*"})

	viper.SetDefault("baseline_window_size", 30)
	viper.SetDefault("min_samples", 5)
	viper.SetDefault("queue_size", 256)
	viper.SetDefault("batch_interval_sec", 300)

	viper.SetDefault("min_alert_severity", "warning")
	viper.SetDefault("rate_limit_count", 10)
	viper.SetDefault("rate_limit_window_s", 300)
	viper.SetDefault("webhook_url", "")
	viper.SetDefault("slack_webhook_url", "")

	viper.SetDefault("request_timeout_sec", 30)
	viper.SetDefault("shutdown_timeout_sec", 15)
	viper.SetDefault("max_body_bytes", 512*1024)

	viper.SetDefault("otlp_endpoint", "")
	viper.SetDefault("trace_sample_ratio", 0.1)

	// Environment variables
	viper.SetEnvPrefix("QAWATCH")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; using defaults and env vars
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
