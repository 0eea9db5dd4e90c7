package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"jarvis/internal/config"
	"jarvis/internal/credentials"
	"jarvis/internal/gemini"
	"jarvis/internal/llm"
	"jarvis/internal/logging"
	"jarvis/internal/ollama"
	"jarvis/internal/openrouter"
)

// ModelHandle identifies the backend a Descriptor talks to. It is either a
// ModelName resolved when a session is built, or a ClientHandle that already
// carries a constructed client.
type ModelHandle interface {
	model() string
}

// ModelName is a bare model identifier such as "ollama/llama3.2".
type ModelName string

func (n ModelName) model() string { return string(n) }

// ClientHandle pairs an initialised client with the model it serves.
type ClientHandle struct {
	Client llm.Client
	Model  string
}

func (h ClientHandle) model() string { return h.Model }

// Descriptor is one entry of the provider chain.
type Descriptor struct {
	Handle   ModelHandle
	Label    string
	Provider string
}

// Model returns the model identifier sent with requests.
func (d Descriptor) Model() string {
	if d.Handle == nil {
		return ""
	}
	return d.Handle.model()
}

func (d Descriptor) String() string { return d.Label }

// Chain is the ordered list of providers tried for a turn. It is never
// mutated after construction.
type Chain struct {
	entries []Descriptor
}

// NewChain returns a chain over entries. At least one entry is required.
func NewChain(entries ...Descriptor) (*Chain, error) {
	if len(entries) == 0 {
		return nil, ErrNoProviderConfigured
	}
	cp := make([]Descriptor, len(entries))
	copy(cp, entries)
	return &Chain{entries: cp}, nil
}

// Len reports how many providers the chain holds.
func (c *Chain) Len() int { return len(c.entries) }

// At returns the i-th descriptor.
func (c *Chain) At(i int) Descriptor { return c.entries[i] }

// Descriptors returns a copy of the entries in priority order.
func (c *Chain) Descriptors() []Descriptor {
	out := make([]Descriptor, len(c.entries))
	copy(out, c.entries)
	return out
}

// Cursor points at the active chain entry. It only moves forward.
type Cursor struct {
	chain *Chain
	pos   int
}

// NewCursor returns a cursor at the head of chain.
func NewCursor(chain *Chain) *Cursor {
	return &Cursor{chain: chain}
}

// Index returns the current position.
func (c *Cursor) Index() int { return c.pos }

// Current returns the active descriptor.
func (c *Cursor) Current() Descriptor { return c.chain.At(c.pos) }

// HasNext reports whether a later provider exists.
func (c *Cursor) HasNext() bool { return c.pos+1 < c.chain.Len() }

// Advance moves to the next provider. It returns false at the end of the
// chain, leaving the cursor where it was.
func (c *Cursor) Advance() (Descriptor, bool) {
	if !c.HasNext() {
		return Descriptor{}, false
	}
	c.pos++
	return c.Current(), true
}

// ConfigError reports a provider configuration problem found at startup.
type ConfigError struct {
	Msg string
	Err error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ErrNoProviderConfigured is returned when no provider source is usable.
var ErrNoProviderConfigured = &ConfigError{Msg: `no provider configured. Set one of:
  GOOGLE_API_KEY or GEMINI_API_KEY   (get a key at https://aistudio.google.com/app/apikey)
  OPENROUTER_API_KEY                 (get a key at https://openrouter.ai/keys)
  or run Ollama locally              (https://ollama.com/download, then: ollama pull llama3.2)`}

// ErrProviderInit marks a backend that could not be constructed.
var ErrProviderInit = errors.New("provider initialization failed")

// ProviderInitError wraps the reason a backend could not be constructed.
type ProviderInitError struct {
	Label string
	Err   error
}

func (e *ProviderInitError) Error() string {
	return fmt.Sprintf("%s: %v", e.Label, e.Err)
}

func (e *ProviderInitError) Unwrap() []error { return []error{ErrProviderInit, e.Err} }

func providerInitFailed(label string, err error) error {
	return &ProviderInitError{Label: label, Err: err}
}

// Backends constructs clients for each provider kind.
type Backends struct {
	Getenv     func(string) string
	Gemini     func(ctx context.Context, apiKey string) (llm.Client, error)
	OpenRouter func(apiKey string) (llm.Client, error)
	Ollama     func(host string) (llm.Client, error)
	// Probe reports whether a local Ollama daemon answers at host.
	Probe func(ctx context.Context, host string) bool

	GeminiModel     string
	OpenRouterModel string
	OllamaModel     string
	OllamaHost      string
}

// DefaultBackends wires the real SDK clients. Environment lookups go through
// getenv, which normally falls back to stored credentials.
func DefaultBackends(cfg config.Config, getenv func(string) string) Backends {
	if getenv == nil {
		getenv = os.Getenv
	}
	probeTimeout := cfg.OllamaProbeTimeout()
	return Backends{
		Getenv: getenv,
		Gemini: func(ctx context.Context, apiKey string) (llm.Client, error) {
			return gemini.NewClient(ctx, apiKey)
		},
		OpenRouter: func(apiKey string) (llm.Client, error) {
			return openrouter.NewClient(openrouter.Options{
				APIKey:  apiKey,
				BaseURL: cfg.OpenRouterBaseURL,
				Referer: "https://github.com/BA-CalderonMorales/terminal-jarvis",
				Title:   "Terminal Jarvis",
			}), nil
		},
		Ollama: func(host string) (llm.Client, error) {
			return ollama.NewClient(host), nil
		},
		Probe: func(ctx context.Context, host string) bool {
			return ollama.Probe(ctx, host, probeTimeout)
		},
		GeminiModel:     cfg.GeminiModel,
		OpenRouterModel: cfg.OpenRouterModel,
		OllamaModel:     cfg.OllamaModel,
		OllamaHost:      cfg.OllamaHost,
	}
}

func (b Backends) getenv(key string) string {
	if b.Getenv == nil {
		return strings.TrimSpace(os.Getenv(key))
	}
	return strings.TrimSpace(b.Getenv(key))
}

func (b Backends) googleKey() string {
	if k := b.getenv("GOOGLE_API_KEY"); k != "" {
		return k
	}
	return b.getenv("GEMINI_API_KEY")
}

func (b Backends) ollamaHost() string {
	if b.OllamaHost != "" && b.getenv("OLLAMA_HOST") == "" {
		return strings.TrimRight(b.OllamaHost, "/")
	}
	return ollama.Host(b.getenv)
}

// LocalOllama returns the configured Ollama address and whether a daemon
// answers there.
func (b Backends) LocalOllama(ctx context.Context) (string, bool) {
	host := b.ollamaHost()
	if b.Probe == nil {
		return host, false
	}
	return host, b.Probe(ctx, host)
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// Resolve returns a client for d, constructing one when d only names a model.
func (b Backends) Resolve(ctx context.Context, d Descriptor) (llm.Client, error) {
	switch h := d.Handle.(type) {
	case ClientHandle:
		if h.Client == nil {
			return nil, providerInitFailed(d.Label, errors.New("missing client"))
		}
		return h.Client, nil
	case ModelName:
		client, err := b.construct(ctx, d.Provider)
		if err != nil {
			return nil, providerInitFailed(d.Label, err)
		}
		return client, nil
	default:
		return nil, providerInitFailed(d.Label, fmt.Errorf("unsupported model handle %T", d.Handle))
	}
}

func (b Backends) construct(ctx context.Context, provider string) (llm.Client, error) {
	switch provider {
	case credentials.ProviderGemini:
		key := b.googleKey()
		if key == "" {
			return nil, errors.New("GOOGLE_API_KEY or GEMINI_API_KEY is not set")
		}
		if b.Gemini == nil {
			return nil, errors.New("gemini backend unavailable")
		}
		return b.Gemini(ctx, key)
	case credentials.ProviderOpenRouter:
		key := b.getenv("OPENROUTER_API_KEY")
		if key == "" {
			return nil, errors.New("OPENROUTER_API_KEY is not set")
		}
		if b.OpenRouter == nil {
			return nil, errors.New("openrouter backend unavailable")
		}
		return b.OpenRouter(key)
	case credentials.ProviderOllama:
		if b.Ollama == nil {
			return nil, errors.New("ollama backend unavailable")
		}
		return b.Ollama(b.ollamaHost())
	}
	return nil, fmt.Errorf("unknown provider %q", provider)
}

// BuildChain assembles the provider chain from the environment. An explicit
// JARVIS_MODEL yields a single entry; otherwise Gemini, OpenRouter and a
// reachable local Ollama are added in that order.
func BuildChain(ctx context.Context, b Backends) (*Chain, error) {
	log := logging.NewStructuredLogger("chain")
	if explicit := b.getenv("JARVIS_MODEL"); explicit != "" {
		d, err := b.explicit(ctx, explicit)
		if err != nil {
			return nil, err
		}
		log.Info("explicit model selected", "model", explicit, "label", d.Label)
		return NewChain(d)
	}

	geminiModel := orDefault(b.GeminiModel, config.DefaultGeminiModel)
	openRouterModel := orDefault(b.OpenRouterModel, config.DefaultOpenRouterModel)
	ollamaModel := orDefault(b.OllamaModel, config.DefaultOllamaModel)

	// Fixed slots keep the order stable however the goroutines finish.
	slots := make([]*Descriptor, 3)
	g, gctx := errgroup.WithContext(ctx)

	if key := b.googleKey(); key != "" {
		g.Go(func() error {
			label := fmt.Sprintf("Gemini (%s)", geminiModel)
			if b.Gemini == nil {
				return nil
			}
			client, err := b.Gemini(gctx, key)
			if err != nil {
				log.Warn("skipping provider", "label", label, "error", err)
				return nil
			}
			slots[0] = &Descriptor{
				Handle:   ClientHandle{Client: client, Model: geminiModel},
				Label:    label,
				Provider: credentials.ProviderGemini,
			}
			return nil
		})
	}
	if key := b.getenv("OPENROUTER_API_KEY"); key != "" {
		g.Go(func() error {
			label := fmt.Sprintf("OpenRouter (%s)", openRouterModel)
			if b.OpenRouter == nil {
				return nil
			}
			client, err := b.OpenRouter(key)
			if err != nil {
				log.Warn("skipping provider", "label", label, "error", err)
				return nil
			}
			slots[1] = &Descriptor{
				Handle:   ClientHandle{Client: client, Model: "openrouter/" + openRouterModel},
				Label:    label,
				Provider: credentials.ProviderOpenRouter,
			}
			return nil
		})
	}
	g.Go(func() error {
		host := b.ollamaHost()
		if b.Probe == nil || !b.Probe(gctx, host) {
			log.Debug("ollama not reachable", "host", host)
			return nil
		}
		slots[2] = &Descriptor{
			Handle:   ModelName("ollama/" + ollamaModel),
			Label:    fmt.Sprintf("Ollama %s (local)", ollamaModel),
			Provider: credentials.ProviderOllama,
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var entries []Descriptor
	for _, d := range slots {
		if d != nil {
			entries = append(entries, *d)
		}
	}
	if len(entries) == 0 {
		return nil, ErrNoProviderConfigured
	}
	log.Info("provider chain built", "providers", len(entries), "primary", entries[0].Label)
	return NewChain(entries...)
}

func (b Backends) explicit(ctx context.Context, model string) (Descriptor, error) {
	lower := strings.ToLower(model)
	switch {
	case strings.HasPrefix(lower, "openrouter/"):
		if b.getenv("OPENROUTER_API_KEY") == "" {
			return Descriptor{}, &ConfigError{Msg: fmt.Sprintf("JARVIS_MODEL=%q requires OPENROUTER_API_KEY", model)}
		}
		return Descriptor{
			Handle:   ModelName(model),
			Label:    fmt.Sprintf("OpenRouter (%s)", model[len("openrouter/"):]),
			Provider: credentials.ProviderOpenRouter,
		}, nil
	case strings.HasPrefix(lower, "ollama/"):
		name := model[len("ollama/"):]
		return Descriptor{
			Handle:   ModelName(model),
			Label:    fmt.Sprintf("Ollama %s (local)", name),
			Provider: credentials.ProviderOllama,
		}, nil
	case strings.HasPrefix(lower, "gemini"):
		key := b.googleKey()
		if key == "" {
			return Descriptor{}, &ConfigError{Msg: fmt.Sprintf("JARVIS_MODEL=%q requires GOOGLE_API_KEY or GEMINI_API_KEY", model)}
		}
		label := fmt.Sprintf("Gemini (%s)", model)
		if b.Gemini == nil {
			return Descriptor{}, providerInitFailed(label, errors.New("gemini backend unavailable"))
		}
		client, err := b.Gemini(ctx, key)
		if err != nil {
			return Descriptor{}, providerInitFailed(label, err)
		}
		return Descriptor{
			Handle:   ClientHandle{Client: client, Model: model},
			Label:    label,
			Provider: credentials.ProviderGemini,
		}, nil
	}
	return Descriptor{}, &ConfigError{
		Msg: fmt.Sprintf("unrecognised JARVIS_MODEL=%q (prefix with openrouter/, ollama/, or gemini)", model),
		Err: ErrProviderInit,
	}
}
