package credentials

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"jarvis/internal/ui"
)

// Key format hints shown when a pasted key looks wrong.
const (
	GeminiKeyPrefix     = "AIza"
	OpenRouterKeyPrefix = "sk-or-v1-"

	geminiKeyURL     = "https://aistudio.google.com/app/apikey"
	openRouterKeyURL = "https://openrouter.ai/keys"
)

// Preferred models written by the wizard, in JARVIS_MODEL form.
const (
	GeminiPreferredModel     = "gemini-2.0-flash"
	OpenRouterPreferredModel = "openrouter/google/gemini-flash-1.5"
	OllamaPreferredModel     = "ollama/llama3.2"
)

// Outcome describes what the wizard changed.
type Outcome struct {
	Provider string
	Model    string
	// Configured is true when the chain should be rebuilt right away.
	Configured bool
}

// Wizard walks the user through choosing and configuring a provider.
type Wizard struct {
	Manager *Manager
	In      io.Reader
	Out     io.Writer
	Theme   ui.Theme
	// OllamaHost returns the daemon address and whether it answered.
	OllamaHost func(ctx context.Context) (string, bool)
	Setenv     func(key, value string) error

	reader *bufio.Reader
}

// NewWizard returns a wizard on the process terminal.
func NewWizard(manager *Manager, theme ui.Theme, ollama func(context.Context) (string, bool)) *Wizard {
	return &Wizard{
		Manager:    manager,
		In:         os.Stdin,
		Out:        os.Stdout,
		Theme:      theme,
		OllamaHost: ollama,
		Setenv:     os.Setenv,
	}
}

// Run shows the provider menu and applies the choice.
func (w *Wizard) Run(ctx context.Context) (Outcome, error) {
	w.reader = bufio.NewReader(w.In)
	t := w.Theme

	w.printf("\n   %s  %s\n", t.Accent.Render("┌─────┐"), t.Title.Render("Terminal Jarvis -- Provider Setup"))
	w.printf("   %s  %s\n", t.Accent.Render("│ T.J │"), t.Body.Render("Let's connect a language model."))
	w.printf("   %s\n\n", t.Accent.Render("└─────┘"))
	w.printf("   %s\n\n", t.Body.Render("Which provider do you want to use?"))
	w.printf("   %s %s  %s\n", t.Accent.Render("1."), t.Title.Render("Google Gemini"), t.Dim.Render("-- recommended, free tier"))
	w.printf("   %s %s     %s\n", t.Accent.Render("2."), t.Title.Render("OpenRouter"), t.Dim.Render("-- 100+ models, paste API key"))
	w.printf("   %s %s         %s\n", t.Accent.Render("3."), t.Title.Render("Ollama"), t.Dim.Render("-- local, no API key required"))
	w.printf("   %s %s           %s\n", t.Accent.Render("4."), t.Title.Render("Skip"), t.Dim.Render("-- configure it later"))

	choice, err := w.ask("   > ")
	if err != nil {
		return Outcome{}, err
	}

	switch strings.ToLower(choice) {
	case "1", "gemini", "google":
		return w.keyProvider(ProviderGemini, "Google Gemini", "GOOGLE_API_KEY", GeminiKeyPrefix, geminiKeyURL, GeminiPreferredModel)
	case "2", "openrouter", "or":
		return w.keyProvider(ProviderOpenRouter, "OpenRouter", "OPENROUTER_API_KEY", OpenRouterKeyPrefix, openRouterKeyURL, OpenRouterPreferredModel)
	case "3", "ollama", "local":
		return w.ollama(ctx)
	default:
		w.printf("\n   %s\n\n", t.Body.Render("Skipped. Run /setup anytime to retry."))
		return Outcome{}, nil
	}
}

func (w *Wizard) keyProvider(provider, title, envKey, prefix, url, model string) (Outcome, error) {
	t := w.Theme
	w.printf("\n   %s %s\n", t.Accent.Render("►"), t.Title.Render(title+" Setup"))
	w.printf("   %s\n\n", t.Dim.Render(url))
	w.printf("   %s\n", t.Body.Render("Create a key on that page, then paste it below."))

	key, err := w.ask(fmt.Sprintf("   Paste %s (Enter to skip): ", envKey))
	if err != nil || key == "" {
		return Outcome{}, err
	}
	if !strings.HasPrefix(key, prefix) {
		w.printf("   %s\n", t.Body.Render(fmt.Sprintf("Note: key doesn't look like a %s key (expected prefix '%s').", title, prefix)))
		ans, err := w.ask("   Save anyway? [y/N] ")
		if err != nil {
			return Outcome{}, err
		}
		if ans = strings.ToLower(ans); ans != "y" && ans != "yes" {
			return Outcome{}, nil
		}
	}

	creds, err := w.Manager.Load()
	if err != nil {
		return Outcome{}, err
	}
	creds.SetProvider(provider, key)
	creds.PreferredModel = model
	if err := w.Manager.Save(creds); err != nil {
		return Outcome{}, fmt.Errorf("save credentials: %w", err)
	}
	w.export(envKey, key)
	w.export("JARVIS_MODEL", model)

	w.printf("\n   %s\n", t.Success.Render(fmt.Sprintf("%s saved to %s", envKey, w.Manager.Path())))
	w.printf("   %s\n\n", t.Success.Render(fmt.Sprintf("Active provider set to %s.", title)))
	return Outcome{Provider: provider, Model: model, Configured: true}, nil
}

func (w *Wizard) ollama(ctx context.Context) (Outcome, error) {
	t := w.Theme
	w.printf("\n   %s %s\n", t.Accent.Render("►"), t.Title.Render("Ollama Setup"))
	w.printf("   %s\n", t.Dim.Render("Install: https://ollama.com/download"))
	w.printf("   %s\n\n", t.Dim.Render("Then:    ollama pull llama3.2"))

	creds, err := w.Manager.Load()
	if err != nil {
		return Outcome{}, err
	}
	creds.PreferredModel = OllamaPreferredModel
	if err := w.Manager.Save(creds); err != nil {
		return Outcome{}, fmt.Errorf("save credentials: %w", err)
	}
	w.export("JARVIS_MODEL", OllamaPreferredModel)

	host, reachable := "", false
	if w.OllamaHost != nil {
		host, reachable = w.OllamaHost(ctx)
	}
	if reachable {
		w.printf("   %s\n\n", t.Success.Render(fmt.Sprintf("Ollama detected at %s. Active provider set to Ollama.", host)))
		return Outcome{Provider: ProviderOllama, Model: OllamaPreferredModel, Configured: true}, nil
	}
	w.printf("   %s\n\n", t.Body.Render("Ollama is not reachable yet. Start it, then run /setup again."))
	return Outcome{Provider: ProviderOllama, Model: OllamaPreferredModel}, nil
}

func (w *Wizard) export(key, value string) {
	if w.Setenv != nil {
		_ = w.Setenv(key, value)
	}
}

func (w *Wizard) ask(label string) (string, error) {
	w.printf("%s", label)
	line, err := w.reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		if err == io.EOF {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (w *Wizard) printf(format string, args ...any) {
	fmt.Fprintf(w.Out, format, args...)
}

// EnvKeysFor lists the environment variables that configure provider.
func EnvKeysFor(provider string) []string {
	switch provider {
	case ProviderGemini:
		return []string{"GOOGLE_API_KEY", "GEMINI_API_KEY"}
	case ProviderOpenRouter:
		return []string{"OPENROUTER_API_KEY"}
	case ProviderOllama:
		return []string{"OLLAMA_HOST"}
	case "all":
		return []string{"GOOGLE_API_KEY", "GEMINI_API_KEY", "OPENROUTER_API_KEY", "OLLAMA_HOST", "JARVIS_MODEL"}
	}
	return nil
}
