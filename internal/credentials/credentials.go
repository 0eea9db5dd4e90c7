package credentials

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"jarvis/internal/config"
)

// Provider names used as keys in the credential file.
const (
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"
)

// Credentials stores API keys and the preferred model chosen during setup.
type Credentials struct {
	PreferredModel string              `yaml:"preferred_model,omitempty"`
	Providers      map[string]Provider `yaml:"providers"`
}

// Provider stores authentication details for a single provider
type Provider struct {
	APIKey string `yaml:"api_key"`
}

// Manager handles credential storage and retrieval
type Manager struct {
	path string
}

// NewManager returns a manager for JARVIS_CREDENTIALS_PATH, or
// credentials.yaml in the config directory.
func NewManager() *Manager {
	credPath := os.Getenv("JARVIS_CREDENTIALS_PATH")
	if credPath == "" {
		credPath = filepath.Join(config.Dir(), "credentials.yaml")
	}
	return &Manager{path: credPath}
}

// NewManagerAt returns a manager for an explicit file.
func NewManagerAt(path string) *Manager {
	return &Manager{path: path}
}

// Load reads credentials from disk
func (m *Manager) Load() (*Credentials, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Credentials{Providers: make(map[string]Provider)}, nil
		}
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	var creds Credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	if creds.Providers == nil {
		creds.Providers = make(map[string]Provider)
	}
	return &creds, nil
}

// Save writes credentials to disk with user-only permissions.
func (m *Manager) Save(creds *Credentials) error {
	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create credentials directory: %w", err)
	}

	data, err := yaml.Marshal(creds)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}
	if err := os.WriteFile(m.path, data, 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}

// Exists checks if credentials file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.path)
	return err == nil
}

// Path returns the credentials file path
func (m *Manager) Path() string {
	return m.path
}

// GetAPIKey returns the API key for a provider
func (c *Credentials) GetAPIKey(provider string) string {
	if c == nil || c.Providers == nil {
		return ""
	}
	return c.Providers[provider].APIKey
}

// SetProvider sets the API key for a provider
func (c *Credentials) SetProvider(name, apiKey string) {
	if c.Providers == nil {
		c.Providers = make(map[string]Provider)
	}
	c.Providers[name] = Provider{APIKey: apiKey}
}

// RemoveProvider removes a provider
func (c *Credentials) RemoveProvider(name string) {
	if c.Providers != nil {
		delete(c.Providers, name)
	}
}

// HasAnyProvider checks if any provider is configured
func (c *Credentials) HasAnyProvider() bool {
	for _, p := range c.Providers {
		if p.APIKey != "" {
			return true
		}
	}
	return c.PreferredModel != ""
}

// envKeys maps the variables the provider chain reads onto stored values.
var envKeys = map[string]func(*Credentials) string{
	"GOOGLE_API_KEY":     func(c *Credentials) string { return c.GetAPIKey(ProviderGemini) },
	"GEMINI_API_KEY":     func(c *Credentials) string { return c.GetAPIKey(ProviderGemini) },
	"OPENROUTER_API_KEY": func(c *Credentials) string { return c.GetAPIKey(ProviderOpenRouter) },
	"JARVIS_MODEL":       func(c *Credentials) string { return c.PreferredModel },
}

// Getenv returns a lookup that prefers the process environment and falls
// back to stored credentials for provider keys and JARVIS_MODEL.
func Getenv(creds *Credentials, getenv func(string) string) func(string) string {
	if getenv == nil {
		getenv = os.Getenv
	}
	return func(key string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		if creds == nil {
			return ""
		}
		if lookup, ok := envKeys[key]; ok {
			return lookup(creds)
		}
		return ""
	}
}

// NormalizeProvider maps user spellings onto provider names.
func NormalizeProvider(input string) string {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "google", "google-gemini", "gemini":
		return ProviderGemini
	case "openrouter", "or":
		return ProviderOpenRouter
	case "ollama", "local":
		return ProviderOllama
	case "all", "*":
		return "all"
	default:
		return strings.ToLower(strings.TrimSpace(input))
	}
}

// ProviderOfModel names the provider a JARVIS_MODEL value selects.
func ProviderOfModel(model string) string {
	model = strings.ToLower(strings.TrimSpace(model))
	switch {
	case strings.HasPrefix(model, "openrouter/"):
		return ProviderOpenRouter
	case strings.HasPrefix(model, "ollama/"):
		return ProviderOllama
	case strings.HasPrefix(model, "gemini"):
		return ProviderGemini
	}
	return ""
}

// Logout forgets a provider's stored key, or every provider for "all". An
// empty name selects the provider of the preferred model. The preferred model
// is cleared when it belongs to a removed provider.
func (m *Manager) Logout(provider string) (string, error) {
	creds, err := m.Load()
	if err != nil {
		return "", err
	}
	provider = NormalizeProvider(provider)
	if provider == "" {
		provider = ProviderOfModel(creds.PreferredModel)
	}
	switch provider {
	case "":
		return "", fmt.Errorf("no active provider found")
	case "all":
		creds.Providers = make(map[string]Provider)
		creds.PreferredModel = ""
	case ProviderGemini, ProviderOpenRouter, ProviderOllama:
		creds.RemoveProvider(provider)
		if ProviderOfModel(creds.PreferredModel) == provider {
			creds.PreferredModel = ""
		}
	default:
		return "", fmt.Errorf("unknown provider: %s", provider)
	}
	if err := m.Save(creds); err != nil {
		return "", err
	}
	return provider, nil
}
