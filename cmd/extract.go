// Package cmd provides CLI commands for the Prism application.
// This file implements the extract command, the main pipeline entry point.
package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/adalundhe/prism/core/aggregate"
	"github.com/adalundhe/prism/core/config"
	"github.com/adalundhe/prism/core/extract"
	"github.com/adalundhe/prism/core/generate"
	"github.com/adalundhe/prism/core/orchestrator"
	"github.com/adalundhe/prism/core/preprocess"
	"github.com/adalundhe/prism/core/providers"
	"github.com/adalundhe/prism/core/token"
	"github.com/adalundhe/prism/core/validate"
	"github.com/spf13/cobra"
)

var (
	extractCategories []string
	extractFormats    []string
	extractOutputDir  string
	extractJSON       bool
)

// outputExtensions maps format names to the file extension used when
// writing generated artifacts.
var outputExtensions = map[string]string{
	"css":      "css",
	"scss":     "scss",
	"json":     "json",
	"tailwind": "tailwind.js",
}

var extractCmd = &cobra.Command{
	Use:   "extract <image>...",
	Short: "Extract design tokens from screenshots",
	Long: `Extract design tokens from one or more UI screenshots.

Each argument is a local image file or an http(s) URL. Extracted tokens
are merged across images, validated, and written out in the requested
formats.

Examples:
  prism extract screenshot.png
  prism extract --categories color,spacing home.png settings.png
  prism extract --formats css,tailwind --output ./tokens https://example.com/shot.png
  prism extract --json screenshot.png | jq '.tokens'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringSliceVar(&extractCategories, "categories", nil, "token categories to extract (default: all)")
	extractCmd.Flags().StringSliceVar(&extractFormats, "formats", nil, "output formats (default: from config)")
	extractCmd.Flags().StringVar(&extractOutputDir, "output", "", "directory for generated files (default: from config)")
	extractCmd.Flags().BoolVar(&extractJSON, "json", false, "print the full run report as JSON")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	images, err := resolveImages(args)
	if err != nil {
		return err
	}

	categories, err := resolveCategories(extractCategories)
	if err != nil {
		return err
	}

	formats := extractFormats
	if len(formats) == 0 {
		formats = cfg.Output.Formats
	}
	outputDir := extractOutputDir
	if outputDir == "" {
		outputDir = cfg.Output.Dir
	}

	coordinator, err := buildCoordinator(cfg, logger)
	if err != nil {
		return err
	}

	result, err := coordinator.RunExtraction(cmd.Context(), images, categories, formats)
	if err != nil {
		return err
	}

	if extractJSON {
		return json.NewEncoder(os.Stdout).Encode(result)
	}

	if err := writeOutputs(outputDir, result.GeneratedOutputs); err != nil {
		return err
	}
	printSummary(cmd, result)
	return nil
}

// buildCoordinator wires the five stage agents from config.
func buildCoordinator(cfg *config.Config, logger *slog.Logger) (*orchestrator.Coordinator, error) {
	registry := token.DefaultRegistry()

	invokers, err := buildInvokers(cfg)
	if err != nil {
		return nil, err
	}

	preprocessor := preprocess.NewAgent(preprocess.Config{
		MaxPayloadBytes:   cfg.Preprocess.MaxPayloadBytes,
		MaxPixelDimension: cfg.Preprocess.MaxPixelDimension,
		TargetDimension:   cfg.Preprocess.TargetDimension,
		FetchTimeout:      cfg.Preprocess.FetchTimeout,
		Logger:            logger,
	})

	extractor := extract.NewAgent(extract.Config{
		MaxTokens: cfg.Providers.Anthropic.MaxTokens,
		Logger:    logger,
	}, registry, invokers)

	coordinatorCfg := orchestrator.Config{
		PreprocessConcurrency: cfg.Pipeline.PreprocessConcurrency,
		ExtractConcurrency:    cfg.Pipeline.ExtractConcurrency,
		AdaptiveExtraction:    cfg.Pipeline.AdaptiveExtraction,
		TaskTimeout:           cfg.Pipeline.TaskTimeout,
		Logger:                logger,
	}
	coordinatorCfg.Breaker.FailureThreshold = cfg.Pipeline.FailureThreshold
	coordinatorCfg.Breaker.RecoveryTimeout = cfg.Pipeline.RecoveryTimeout

	return orchestrator.New(
		coordinatorCfg,
		registry,
		preprocessor,
		extractor,
		aggregate.NewAgent(registry, logger),
		validate.NewAgent(registry, logger),
		generate.NewAgent(),
	), nil
}

// buildInvokers registers every provider with a key in the environment.
func buildInvokers(cfg *config.Config) (*providers.Registry, error) {
	registry := providers.NewRegistry()

	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		invoker, err := providers.NewAnthropicInvoker(providers.AnthropicConfig{
			APIKey:    key,
			Model:     cfg.Providers.Anthropic.Model,
			MaxTokens: cfg.Providers.Anthropic.MaxTokens,
		})
		if err != nil {
			return nil, err
		}
		registry.Register(invoker)
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		invoker, err := providers.NewOpenAIInvoker(providers.OpenAIConfig{
			APIKey:    key,
			Model:     cfg.Providers.OpenAI.Model,
			MaxTokens: cfg.Providers.OpenAI.MaxTokens,
		})
		if err != nil {
			return nil, err
		}
		registry.Register(invoker)
	}

	if len(registry.Names()) == 0 {
		return nil, fmt.Errorf("no providers configured: set ANTHROPIC_API_KEY or OPENAI_API_KEY")
	}
	return registry, nil
}

// resolveImages turns CLI arguments into image references. URLs pass
// through; anything else is read from disk up front so a bad path fails
// before the run starts.
func resolveImages(args []string) ([]token.ImageReference, error) {
	images := make([]token.ImageReference, 0, len(args))
	for _, arg := range args {
		if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
			images = append(images, token.ImageReference{URL: arg})
			continue
		}
		data, err := os.ReadFile(arg)
		if err != nil {
			return nil, fmt.Errorf("image %s: %w", arg, err)
		}
		images = append(images, token.ImageReference{Data: data})
	}
	return images, nil
}

func resolveCategories(names []string) ([]token.Category, error) {
	if len(names) == 0 {
		return token.AllCategories(), nil
	}

	known := make(map[token.Category]bool)
	for _, c := range token.AllCategories() {
		known[c] = true
	}

	categories := make([]token.Category, 0, len(names))
	for _, name := range names {
		c := token.Category(strings.TrimSpace(name))
		if !known[c] {
			return nil, fmt.Errorf("unknown category %q", name)
		}
		categories = append(categories, c)
	}
	return categories, nil
}

func writeOutputs(dir string, outputs map[string]string) error {
	if len(outputs) == 0 {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	for format, text := range outputs {
		ext, ok := outputExtensions[format]
		if !ok {
			ext = format
		}
		path := filepath.Join(dir, "tokens."+ext)
		if err := os.WriteFile(path, []byte(text), 0644); err != nil {
			return err
		}
	}
	return nil
}

func printSummary(cmd *cobra.Command, result *token.PipelineResult) {
	cmd.Printf("session %s: %d tokens", result.SessionID, len(result.Tokens))
	if result.PartialSuccess {
		cmd.Printf(" (partial: %d task errors)", len(result.Errors))
	}
	cmd.Println()

	for _, taskErr := range result.Errors {
		cmd.Printf("  error [%s] %s: %s\n", taskErr.Kind, taskErr.TaskID, taskErr.Message)
	}
}
