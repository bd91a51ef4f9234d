// Package config provides configuration management for the scraper.
// It defines the configuration structure, defaults and validation.
package config

import (
	"net/url"
	"time"
)

// ScrapeConfig holds the full configuration surface. Every field is
// independently overridable via flag, environment variable or YAML.
type ScrapeConfig struct {
	// Target site
	BaseURL       string `mapstructure:"base_url" yaml:"base_url"`             // Directory site root, e.g. https://www.mecsr.org
	ListPath      string `mapstructure:"list_path" yaml:"list_path"`           // Paginated listing path
	DetailPattern string `mapstructure:"detail_pattern" yaml:"detail_pattern"` // Regex matching detail-page paths
	UserAgent     string `mapstructure:"user_agent" yaml:"user_agent"`         // HTTP User-Agent header

	// Concurrency and rate limiting
	MaxConcurrent     int `mapstructure:"max_concurrent" yaml:"max_concurrent"`           // In-flight fetch bound
	RequestsPerMinute int `mapstructure:"requests_per_minute" yaml:"requests_per_minute"` // Token-bucket budget
	BatchSize         int `mapstructure:"batch_size" yaml:"batch_size"`                   // Targets per checkpointed batch

	// Retry
	MaxRetries     int           `mapstructure:"max_retries" yaml:"max_retries"`
	BaseRetryDelay time.Duration `mapstructure:"base_retry_delay" yaml:"base_retry_delay"`
	MaxRetryDelay  time.Duration `mapstructure:"max_retry_delay" yaml:"max_retry_delay"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`

	// Scope and resume
	MaxPages   int `mapstructure:"max_pages" yaml:"max_pages"`     // 0 = crawl until an empty list page
	ResumeFrom int `mapstructure:"resume_from" yaml:"resume_from"` // First list page to request

	// Output
	OutputFormat   string `mapstructure:"output_format" yaml:"output_format"` // json, csv or sqlite
	OutputDir      string `mapstructure:"output_dir" yaml:"output_dir"`
	CheckpointPath string `mapstructure:"checkpoint_path" yaml:"checkpoint_path"`

	// Validation
	StrictRules bool `mapstructure:"strict_rules" yaml:"strict_rules"` // Business-rule violations reject instead of warn

	// Observability
	LogLevel    string `mapstructure:"log_level" yaml:"log_level"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MetricsAddr string `mapstructure:"metrics_addr" yaml:"metrics_addr"` // Empty disables the metrics endpoint
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *ScrapeConfig {
	return &ScrapeConfig{
		BaseURL:           "https://www.mecsr.org",
		ListPath:          "/directory-shopping-centres",
		DetailPattern:     `^/directory-shopping-centres/[^/]+$`,
		UserAgent:         "MallCrawl/1.0",
		MaxConcurrent:     10,
		RequestsPerMinute: 45,
		BatchSize:         20,
		MaxRetries:        3,
		BaseRetryDelay:    2 * time.Second,
		MaxRetryDelay:     60 * time.Second,
		RequestTimeout:    30 * time.Second,
		MaxPages:          0,
		ResumeFrom:        1,
		OutputFormat:      "json",
		OutputDir:         "./output",
		CheckpointPath:    "./output/checkpoint.db",
		LogLevel:          "info",
	}
}

// Validate checks the configuration and normalizes soft limits.
func (c *ScrapeConfig) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ErrInvalidBaseURL
	}
	if c.MaxConcurrent <= 0 {
		return ErrInvalidConcurrency
	}
	if c.RequestsPerMinute <= 0 {
		return ErrInvalidRateLimit
	}
	if c.MaxRetries < 0 {
		return ErrInvalidRetries
	}
	if c.RequestTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.BaseRetryDelay <= 0 {
		c.BaseRetryDelay = 2 * time.Second
	}
	if c.MaxRetryDelay < c.BaseRetryDelay {
		c.MaxRetryDelay = c.BaseRetryDelay
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 20
	}
	if c.ResumeFrom < 1 {
		c.ResumeFrom = 1
	}
	switch c.OutputFormat {
	case "json", "csv", "sqlite":
	default:
		return ErrInvalidOutputFormat
	}
	if c.OutputDir == "" {
		return ErrEmptyOutputDir
	}
	if c.CheckpointPath == "" {
		return ErrEmptyCheckpointPath
	}
	return nil
}
