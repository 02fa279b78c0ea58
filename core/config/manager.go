package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

// Manager holds the live configuration behind an atomic pointer so readers
// on hot paths never take a lock. Load and Reload swap the whole config;
// callers must not mutate the returned pointer.
type Manager struct {
	configPtr atomic.Pointer[Config]
	path      string
	watchers  []func(*Config)
	watcherMu sync.RWMutex
}

type Config struct {
	Providers  ProvidersConfig  `yaml:"providers"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Preprocess PreprocessConfig `yaml:"preprocess"`
	Output     OutputConfig     `yaml:"output"`
	Log        LogConfig        `yaml:"log"`
}

type ProvidersConfig struct {
	Default   string          `yaml:"default"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
}

type AnthropicConfig struct {
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

type OpenAIConfig struct {
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

type PipelineConfig struct {
	PreprocessConcurrency int           `yaml:"preprocess_concurrency"`
	ExtractConcurrency    int           `yaml:"extract_concurrency"`
	AdaptiveExtraction    bool          `yaml:"adaptive_extraction"`
	TaskTimeout           time.Duration `yaml:"task_timeout"`
	FailureThreshold      int           `yaml:"failure_threshold"`
	RecoveryTimeout       time.Duration `yaml:"recovery_timeout"`
}

type PreprocessConfig struct {
	MaxPayloadBytes   int64         `yaml:"max_payload_bytes"`
	MaxPixelDimension int           `yaml:"max_pixel_dimension"`
	TargetDimension   int           `yaml:"target_dimension"`
	FetchTimeout      time.Duration `yaml:"fetch_timeout"`
}

type OutputConfig struct {
	Formats []string `yaml:"formats"`
	Dir     string   `yaml:"dir"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// NewManager creates a manager seeded with defaults. path is the explicit
// config file, or empty to search the standard locations.
func NewManager(path string) *Manager {
	m := &Manager{path: path}
	m.configPtr.Store(DefaultConfig())
	return m
}

func DefaultConfig() *Config {
	return &Config{
		Providers: ProvidersConfig{
			Default: "anthropic",
			Anthropic: AnthropicConfig{
				Model:     "claude-sonnet-4-5-20250901",
				MaxTokens: 4096,
			},
			OpenAI: OpenAIConfig{
				Model:     "gpt-4o",
				MaxTokens: 4096,
			},
		},
		Pipeline: PipelineConfig{
			PreprocessConcurrency: 8,
			ExtractConcurrency:    2,
			TaskTimeout:           2 * time.Minute,
			FailureThreshold:      5,
			RecoveryTimeout:       30 * time.Second,
		},
		Preprocess: PreprocessConfig{
			MaxPayloadBytes:   20 << 20,
			MaxPixelDimension: 8192,
			TargetDimension:   1568,
			FetchTimeout:      30 * time.Second,
		},
		Output: OutputConfig{
			Formats: []string{"css", "json"},
			Dir:     ".",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Get returns the current configuration snapshot.
func (m *Manager) Get() *Config {
	return m.configPtr.Load()
}

// Load layers the config: defaults, then each discovered file, then
// environment overrides, and swaps the result in atomically.
func (m *Manager) Load() error {
	cfg := DefaultConfig()

	for _, path := range m.paths() {
		if err := mergeYAMLFile(path, cfg); err != nil {
			return fmt.Errorf("config %s: %w", path, err)
		}
	}

	applyEnvironment(cfg)

	m.configPtr.Store(cfg)
	m.notifyWatchers(cfg)

	return nil
}

// paths returns the config files to layer, lowest precedence first.
func (m *Manager) paths() []string {
	if m.path != "" {
		return []string{m.path}
	}

	var paths []string
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "prism", "config.yaml"))
	}
	paths = append(paths, filepath.Join(".", "prism.yaml"))
	return paths
}

// mergeYAMLFile overlays one file's settings onto cfg. A missing file is
// not an error.
func mergeYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	layer := &Config{}
	if err := yaml.Unmarshal(data, layer); err != nil {
		return err
	}

	DeepMerge(cfg, layer)
	return nil
}

func applyEnvironment(cfg *Config) {
	if v := os.Getenv("PRISM_PROVIDER"); v != "" {
		cfg.Providers.Default = v
	}
	if v := os.Getenv("PRISM_ANTHROPIC_MODEL"); v != "" {
		cfg.Providers.Anthropic.Model = v
	}
	if v := os.Getenv("PRISM_OPENAI_MODEL"); v != "" {
		cfg.Providers.OpenAI.Model = v
	}
	if v := os.Getenv("PRISM_TASK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Pipeline.TaskTimeout = d
		}
	}
	if v := os.Getenv("PRISM_EXTRACT_CONCURRENCY"); v != "" {
		if n, err := parseInt(v); err == nil {
			cfg.Pipeline.ExtractConcurrency = n
		}
	}
	if v := os.Getenv("PRISM_ADAPTIVE_EXTRACTION"); v != "" {
		cfg.Pipeline.AdaptiveExtraction = strings.ToLower(v) == "true"
	}
	if v := os.Getenv("PRISM_FETCH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Preprocess.FetchTimeout = d
		}
	}
	if v := os.Getenv("PRISM_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("PRISM_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// OnChange registers a callback invoked after every successful Load.
func (m *Manager) OnChange(fn func(*Config)) {
	m.watcherMu.Lock()
	m.watchers = append(m.watchers, fn)
	m.watcherMu.Unlock()
}

func (m *Manager) notifyWatchers(cfg *Config) {
	m.watcherMu.RLock()
	watchers := m.watchers
	m.watcherMu.RUnlock()

	for _, fn := range watchers {
		fn(cfg)
	}
}

func (m *Manager) Reload() error {
	return m.Load()
}

func parseInt(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	return n, err
}
