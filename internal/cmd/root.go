// Package cmd provides the command-line interface for MallCrawl.
// It handles flag parsing, configuration loading and pipeline execution.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"mallcrawl/internal/config"
	"mallcrawl/internal/crawler"
	"mallcrawl/internal/logging"
	"mallcrawl/internal/parser"
	"mallcrawl/internal/storage"
	"mallcrawl/internal/validate"
)

var (
	cfgFile   string
	version   string
	buildTime string
)

var rootCmd = &cobra.Command{
	Use:   "mallcrawl [base-url]",
	Short: "A resumable scraper for paginated directory sites",
	Long: `MallCrawl extracts structured records from a paginated directory site.

It walks the list pages, fetches every detail page through a shared
rate limit with bounded concurrency and retry, validates the extracted
records and writes them to JSON, CSV or SQLite. Progress is
checkpointed so an interrupted run resumes where it stopped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScraper,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets version information for the CLI.
func SetVersionInfo(v, bt string) {
	version = v
	buildTime = bt
	rootCmd.Version = fmt.Sprintf("%s (built %s)", version, buildTime)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./mallcrawl.yml)")
	rootCmd.Flags().Bool("show-config", false, "Display current configuration in YAML format and exit")

	rootCmd.Flags().String("list-path", "/directory-shopping-centres", "Paginated listing path on the base URL")
	rootCmd.Flags().String("detail-pattern", `^/directory-shopping-centres/[^/]+$`, "Regex matching detail-page paths")
	rootCmd.Flags().StringP("user-agent", "u", "MallCrawl/1.0", "HTTP User-Agent header")

	rootCmd.Flags().IntP("max-concurrent", "c", 10, "Maximum in-flight detail fetches")
	rootCmd.Flags().Int("requests-per-minute", 45, "Shared request budget per minute")
	rootCmd.Flags().IntP("batch-size", "b", 20, "Targets per checkpointed batch")

	rootCmd.Flags().Int("max-retries", 3, "Retries per target after the first attempt")
	rootCmd.Flags().Duration("base-retry-delay", 2*time.Second, "Initial backoff delay")
	rootCmd.Flags().Duration("max-retry-delay", 60*time.Second, "Backoff delay ceiling")
	rootCmd.Flags().DurationP("timeout", "t", 30*time.Second, "Per-request timeout")

	rootCmd.Flags().IntP("max-pages", "p", 0, "Stop after N list pages (0=until empty)")
	rootCmd.Flags().Int("resume-from", 1, "First list page to request")

	rootCmd.Flags().StringP("output-format", "f", "json", "Output format: json, csv or sqlite")
	rootCmd.Flags().StringP("output-dir", "o", "./output", "Output directory")
	rootCmd.Flags().String("checkpoint", "./output/checkpoint.db", "Checkpoint database path")

	rootCmd.Flags().Bool("strict-rules", false, "Reject records on business-rule violations")

	rootCmd.Flags().String("log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.Flags().String("log-file", "", "Log file path (console only if empty)")
	rootCmd.Flags().String("metrics-addr", "", "Prometheus metrics listen address (disabled if empty)")

	bindFlags := []struct {
		viperKey string
		flagName string
	}{
		{"list_path", "list-path"},
		{"detail_pattern", "detail-pattern"},
		{"user_agent", "user-agent"},
		{"max_concurrent", "max-concurrent"},
		{"requests_per_minute", "requests-per-minute"},
		{"batch_size", "batch-size"},
		{"max_retries", "max-retries"},
		{"base_retry_delay", "base-retry-delay"},
		{"max_retry_delay", "max-retry-delay"},
		{"request_timeout", "timeout"},
		{"max_pages", "max-pages"},
		{"resume_from", "resume-from"},
		{"output_format", "output-format"},
		{"output_dir", "output-dir"},
		{"checkpoint_path", "checkpoint"},
		{"strict_rules", "strict-rules"},
		{"log_level", "log-level"},
		{"log_file", "log-file"},
		{"metrics_addr", "metrics-addr"},
	}

	for _, bind := range bindFlags {
		if err := viper.BindPFlag(bind.viperKey, rootCmd.Flags().Lookup(bind.flagName)); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to bind flag %s: %v\n", bind.flagName, err)
		}
	}
}

// initConfig reads in the config file and environment variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("mallcrawl")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("MC")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

func showCurrentConfig(cfg *config.ScrapeConfig) error {
	yamlData, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration to YAML: %w", err)
	}

	fmt.Printf("# Current MallCrawl Configuration\n")
	fmt.Printf("# Generated at: %s\n", time.Now().Format(time.RFC3339))
	fmt.Printf("# Config file search path: ./mallcrawl.yml; env prefix: MC_\n\n")
	fmt.Print(string(yamlData))
	return nil
}

func runScraper(cmd *cobra.Command, args []string) error {
	showConfig, _ := cmd.Flags().GetBool("show-config")

	cfg := config.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if len(args) == 1 {
		cfg.BaseURL = args[0]
	}

	if showConfig {
		return showCurrentConfig(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := logging.SetDefault(logging.Config{
		Level:    logging.ParseLevel(cfg.LogLevel),
		FilePath: cfg.LogFile,
		Console:  true,
	}); err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}

	if err := os.MkdirAll(cfg.OutputDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if dir := filepath.Dir(cfg.CheckpointPath); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create checkpoint directory: %w", err)
		}
	}

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := runPipeline(ctx, cfg)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.Canceled) && report != nil {
		slog.Info("Run interrupted, progress checkpointed", "succeeded", report.Succeeded)
	}
	return nil
}

// runPipeline assembles the component graph and executes one run.
func runPipeline(ctx context.Context, cfg *config.ScrapeConfig) (*crawler.RunReport, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	listParser, err := parser.NewListParser(cfg.DetailPattern, base.Host)
	if err != nil {
		return nil, err
	}

	checkpoint, err := storage.NewSQLiteCheckpoint(cfg.CheckpointPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint: %w", err)
	}
	defer func() { _ = checkpoint.Close() }()

	sink, err := storage.NewSink(cfg.OutputFormat, cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open output sink: %w", err)
	}
	defer func() { _ = sink.Close() }()

	state, err := checkpoint.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	fetcher := crawler.NewHTTPClient(cfg.UserAgent, cfg.RequestTimeout)
	defer fetcher.Close()

	limiter := crawler.NewRateLimiter(cfg.RequestsPerMinute, 1)
	retry := crawler.RetryPolicy{
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  cfg.BaseRetryDelay,
		MaxDelay:   cfg.MaxRetryDelay,
	}

	discoverer := crawler.NewPaginationDiscoverer(
		fetcher, limiter, retry, listParser,
		cfg.BaseURL, cfg.ListPath, cfg.ResumeFrom, cfg.MaxPages, state,
	)
	processor := crawler.NewBatchProcessor(
		fetcher, limiter, retry,
		parser.NewDetailParser(), validate.New(cfg.StrictRules), checkpoint,
		cfg.MaxConcurrent, cfg.BatchSize,
	)

	pipeline := crawler.NewPipeline(discoverer, processor, checkpoint, sink)
	return pipeline.Run(ctx)
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	slog.Info("Serving metrics", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("Metrics server failed", "error", err)
	}
}
