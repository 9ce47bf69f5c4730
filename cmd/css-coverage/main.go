package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jupierce/css-coverage-analysis/pkg/config"
	"github.com/jupierce/css-coverage-analysis/pkg/log"
)

var (
	// Global flags
	verbosity      string
	logDir         string
	configPath     string
	maxConcurrency int

	// settings is the configuration resolved before any command runs.
	settings = config.Default()

	rootCmd = &cobra.Command{
		Use:   "css-coverage",
		Short: "Reduce browser CSS coverage dumps to line and byte coverage",
		Long: `css-coverage turns the CSS coverage JSON recorded by a browser into
per-stylesheet line and byte coverage.

Every dump is filtered down to CSS (inline <style> blocks are extracted from
HTML documents), pretty-printed with its used ranges carried along,
deduplicated by stylesheet text and measured line by line.

Settings are read from .css-coverage.yaml (or --config), then from
CSS_COVERAGE_* environment variables, then from explicitly set flags.`,
		Example: `  # Summarise every dump in ./css-coverage
  css-coverage analyze

  # Fail when less than 60% of CSS lines are used
  css-coverage analyze dumps/ --min-line-coverage 0.6

  # Build a collection database and browse it
  css-coverage collection compile --collection nightly
  css-coverage collection render --collection nightly`,
		SilenceUsage:      true,
		PersistentPreRunE: loadSettings,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&verbosity, "verbosity", "info", "Log verbosity (error, info, debug, trace)")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "Also write logs to a file in this directory")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: "+config.DefaultFile+" when present)")
	rootCmd.PersistentFlags().IntVar(&maxConcurrency, "max-concurrency", 8, "Maximum number of files processed at once")
}

// loadSettings reads the config file and environment and lets flags given
// on the command line win.
func loadSettings(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("verbosity") {
		cfg.LogLevel = verbosity
	}
	if flags.Changed("max-concurrency") {
		cfg.MaxConcurrency = maxConcurrency
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if _, err := log.ParseLevel(cfg.LogLevel); err != nil {
		return err
	}

	settings = cfg
	return nil
}

// createLogger creates a console logger at the configured level. Log files
// go to --log-dir, or to defaultDir when the flag is not set.
func createLogger(defaultDir string) (*log.Logger, error) {
	level, err := log.ParseLevel(settings.LogLevel)
	if err != nil {
		return nil, err
	}

	dir := logDir
	if dir == "" {
		dir = defaultDir
	}

	logger, err := log.New(level, dir)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return logger, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
