package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"

	"mallcrawl/internal/config"
)

func TestSetVersionInfo(t *testing.T) {
	version := "1.2.3"
	buildTime := "2026-08-01T10:00:00Z"

	SetVersionInfo(version, buildTime)

	expected := "1.2.3 (built 2026-08-01T10:00:00Z)"
	if rootCmd.Version != expected {
		t.Errorf("Expected version %s, got %s", expected, rootCmd.Version)
	}
}

func TestExecute(t *testing.T) {
	// Save original args
	origArgs := os.Args
	defer func() { os.Args = origArgs }()

	// Help is handled internally by cobra and returns nil
	os.Args = []string{"mallcrawl", "--help"}
	err := Execute()
	if err != nil {
		t.Logf("Execute with help returned: %v", err)
	}
}

func TestInitConfig(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "config.yaml")

	configContent := `
max_concurrent: 5
requests_per_minute: 30
user_agent: "TestAgent/1.0"
`

	err := os.WriteFile(configFile, []byte(configContent), 0644)
	if err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	cfgFile = configFile
	initConfig()

	if viper.ConfigFileUsed() != configFile {
		t.Errorf("Expected config file %s, got %s", configFile, viper.ConfigFileUsed())
	}
	if got := viper.GetInt("max_concurrent"); got != 5 {
		t.Errorf("Expected max_concurrent 5 from file, got %d", got)
	}

	// Reset for other tests
	cfgFile = ""
	viper.Reset()
}

func TestRootCmd(t *testing.T) {
	if rootCmd.Use != "mallcrawl [base-url]" {
		t.Errorf("Expected use 'mallcrawl [base-url]', got %s", rootCmd.Use)
	}

	if rootCmd.Short != "A resumable scraper for paginated directory sites" {
		t.Errorf("Unexpected short description: %s", rootCmd.Short)
	}

	if rootCmd.RunE == nil {
		t.Error("RunE should be set to runScraper")
	}
}

func TestFlagBinding(t *testing.T) {
	flags := rootCmd.Flags()

	expectedFlags := []string{
		"list-path",
		"detail-pattern",
		"user-agent",
		"max-concurrent",
		"requests-per-minute",
		"batch-size",
		"max-retries",
		"base-retry-delay",
		"max-retry-delay",
		"timeout",
		"max-pages",
		"resume-from",
		"output-format",
		"output-dir",
		"checkpoint",
		"strict-rules",
		"log-level",
		"log-file",
		"metrics-addr",
		"show-config",
	}

	for _, flagName := range expectedFlags {
		if flags.Lookup(flagName) == nil {
			t.Errorf("Expected flag %s to be defined", flagName)
		}
	}

	persistentFlags := rootCmd.PersistentFlags()
	if persistentFlags.Lookup("config") == nil {
		t.Error("Expected persistent flag 'config' to be defined")
	}
}

func TestShowCurrentConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	if err := showCurrentConfig(cfg); err != nil {
		t.Errorf("showCurrentConfig failed: %v", err)
	}
}
