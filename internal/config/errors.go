package config

import "errors"

var (
	// ErrInvalidBaseURL is returned when base_url is not an absolute URL
	ErrInvalidBaseURL = errors.New("base_url must be an absolute http(s) URL")
	// ErrInvalidConcurrency is returned when max_concurrent is not greater than 0
	ErrInvalidConcurrency = errors.New("max_concurrent must be greater than 0")
	// ErrInvalidRateLimit is returned when requests_per_minute is not greater than 0
	ErrInvalidRateLimit = errors.New("requests_per_minute must be greater than 0")
	// ErrInvalidRetries is returned when max_retries is negative
	ErrInvalidRetries = errors.New("max_retries must not be negative")
	// ErrInvalidTimeout is returned when request_timeout is not greater than 0
	ErrInvalidTimeout = errors.New("request_timeout must be greater than 0")
	// ErrInvalidOutputFormat is returned for formats other than json, csv or sqlite
	ErrInvalidOutputFormat = errors.New("output_format must be one of: json, csv, sqlite")
	// ErrEmptyOutputDir is returned when output_dir is empty
	ErrEmptyOutputDir = errors.New("output_dir cannot be empty")
	// ErrEmptyCheckpointPath is returned when checkpoint_path is empty
	ErrEmptyCheckpointPath = errors.New("checkpoint_path cannot be empty")
)
