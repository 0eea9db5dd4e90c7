package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Provider default models.
const (
	DefaultGeminiModel     = "gemini-2.0-flash"
	DefaultOpenRouterModel = "google/gemini-flash-1.5"
	DefaultOllamaModel     = "llama3.2"
	DefaultOllamaHost      = "http://localhost:11434"
	DefaultOpenRouterURL   = "https://openrouter.ai/api/v1"
	DefaultToolBinary      = "terminal-jarvis"
)

// Config captures the tunable runtime settings.
type Config struct {
	RequestTimeoutSeconds int     `yaml:"request_timeout_seconds"`
	SpinnerTickMs         int     `yaml:"spinner_tick_ms"`
	MaxSessionRebuilds    int     `yaml:"max_session_rebuilds"`
	MaxToolRounds         int     `yaml:"max_tool_rounds"`
	OllamaProbeTimeoutMs  int     `yaml:"ollama_probe_timeout_ms"`
	OllamaHost            string  `yaml:"ollama_host,omitempty"`
	GeminiModel           string  `yaml:"gemini_model"`
	OpenRouterModel       string  `yaml:"openrouter_model"`
	OllamaModel           string  `yaml:"ollama_model"`
	OpenRouterBaseURL     string  `yaml:"openrouter_base_url"`
	Temperature           float64 `yaml:"temperature"`
	SystemPrompt          string  `yaml:"system_prompt,omitempty"`
	ToolBinary            string  `yaml:"tool_binary,omitempty"`
	HistoryPath           string  `yaml:"history_path"`
	TranscriptPath        string  `yaml:"transcript_path"`
	LogPath               string  `yaml:"log_path"`
	LogMaxSizeMB          int     `yaml:"log_max_size_mb"`
	LogMaxBackups         int     `yaml:"log_max_backups"`
	LogMaxAgeDays         int     `yaml:"log_max_age_days"`
	RenderMarkdown        *bool   `yaml:"render_markdown,omitempty"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	dir := Dir()
	markdown := true
	return Config{
		RequestTimeoutSeconds: 60,
		SpinnerTickMs:         350,
		MaxSessionRebuilds:    2,
		MaxToolRounds:         5,
		OllamaProbeTimeoutMs:  2000,
		GeminiModel:           DefaultGeminiModel,
		OpenRouterModel:       DefaultOpenRouterModel,
		OllamaModel:           DefaultOllamaModel,
		OpenRouterBaseURL:     DefaultOpenRouterURL,
		Temperature:           0.2,
		HistoryPath:           filepath.Join(dir, "history"),
		TranscriptPath:        filepath.Join(dir, "transcript.db"),
		LogPath:               filepath.Join(dir, "jarvis.log"),
		LogMaxSizeMB:          10,
		LogMaxBackups:         3,
		LogMaxAgeDays:         28,
		RenderMarkdown:        &markdown,
	}
}

// Dir is the directory holding config, credentials and state. It honours
// JARVIS_CONFIG_DIR.
func Dir() string {
	if dir := os.Getenv("JARVIS_CONFIG_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".jarvis"
	}
	return filepath.Join(home, ".jarvis")
}

// Path is the config file location. It honours JARVIS_CONFIG_PATH.
func Path() string {
	if p := os.Getenv("JARVIS_CONFIG_PATH"); p != "" {
		return p
	}
	return filepath.Join(Dir(), "config.yaml")
}

// LoadUserConfig loads the config at Path.
func LoadUserConfig() (Config, error) {
	return Load(Path())
}

// Load reads the YAML configuration from disk and fills unset fields with
// defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := cfg.applyDefaults(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyDefaults fills in optional values to keep the YAML file concise.
func (c *Config) applyDefaults() error {
	// Pointers are not dereferenced so an explicit render_markdown: false
	// survives the merge.
	if err := mergo.Merge(c, Defaults(), mergo.WithoutDereference); err != nil {
		return fmt.Errorf("apply defaults: %w", err)
	}
	c.SystemPrompt = strings.TrimSpace(c.SystemPrompt)
	c.OpenRouterBaseURL = strings.TrimRight(c.OpenRouterBaseURL, "/")
	return nil
}

// Validate rejects out-of-range settings.
func (c Config) Validate() error {
	if c.RequestTimeoutSeconds <= 0 || c.RequestTimeoutSeconds > 600 {
		return fmt.Errorf("request_timeout_seconds must be between 1 and 600 (got %d)", c.RequestTimeoutSeconds)
	}
	if c.SpinnerTickMs < 50 || c.SpinnerTickMs > 5000 {
		return fmt.Errorf("spinner_tick_ms must be between 50 and 5000 (got %d)", c.SpinnerTickMs)
	}
	if c.MaxSessionRebuilds < 0 {
		return fmt.Errorf("max_session_rebuilds must be >= 0")
	}
	if c.MaxToolRounds < 1 {
		return fmt.Errorf("max_tool_rounds must be >= 1")
	}
	if c.Temperature < 0 || c.Temperature > 2.0 {
		return fmt.Errorf("temperature must be between 0 and 2.0 (got %f)", c.Temperature)
	}
	if c.OllamaProbeTimeoutMs <= 0 {
		return fmt.Errorf("ollama_probe_timeout_ms must be > 0")
	}
	return nil
}

// RequestTimeout bounds one attempt at a turn.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// SpinnerTick is the progress indicator frame interval.
func (c Config) SpinnerTick() time.Duration {
	return time.Duration(c.SpinnerTickMs) * time.Millisecond
}

// OllamaProbeTimeout bounds the local daemon reachability check.
func (c Config) OllamaProbeTimeout() time.Duration {
	return time.Duration(c.OllamaProbeTimeoutMs) * time.Millisecond
}

// Markdown reports whether answers should be rendered as markdown.
func (c Config) Markdown() bool {
	return c.RenderMarkdown == nil || *c.RenderMarkdown
}

// Save writes the config to Path.
func Save(c Config) error {
	return SaveTo(Path(), c)
}

// SaveTo writes the config to path, creating its directory.
func SaveTo(path string, c Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
