package cmd

import (
	"log/slog"
	"os"

	"github.com/adalundhe/prism/core/config"
	"github.com/spf13/cobra"
)

var (
	rootConfigPath string
	rootLogLevel   string
	rootLogJSON    bool
)

var rootCmd = &cobra.Command{
	Use:   "prism",
	Short: "Prism - design token extraction from UI screenshots",
	Long: `Prism extracts design tokens (colors, spacing, typography, shadows,
gradients, radii) from UI screenshots using vision models, deduplicates
them across images, and renders them as CSS, SCSS, JSON, or Tailwind
theme files.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootConfigPath, "config", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&rootLogLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&rootLogJSON, "log-json", false, "emit logs as JSON")
}

// loadConfig layers file and environment config, then applies flag
// overrides. Flags win over everything.
func loadConfig() (*config.Config, error) {
	manager := config.NewManager(rootConfigPath)
	if err := manager.Load(); err != nil {
		return nil, err
	}

	cfg := manager.Get()
	if rootLogLevel != "" {
		cfg.Log.Level = rootLogLevel
	}
	if rootLogJSON {
		cfg.Log.Format = "json"
	}
	return cfg, nil
}

// newLogger builds the process logger from config.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
