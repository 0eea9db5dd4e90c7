package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"golang.org/x/term"

	"jarvis/internal/agent"
	"jarvis/internal/config"
	"jarvis/internal/credentials"
	"jarvis/internal/llm/mockclient"
	"jarvis/internal/logging"
	"jarvis/internal/prompts"
	"jarvis/internal/tooling"
	"jarvis/internal/transcript"
	"jarvis/internal/ui"
)

// Version is set via -ldflags during build
var Version = "dev"

// CLI is the command line surface.
type CLI struct {
	Model   string           `help:"Use a single model (sets JARVIS_MODEL), e.g. openrouter/anthropic/claude-3.5-sonnet or ollama/llama3.2."`
	Timeout time.Duration    `help:"Per-attempt response timeout (overrides request_timeout_seconds)."`
	Setup   bool             `help:"Run the provider setup wizard before starting."`
	Prompt  string           `short:"p" help:"Run a single prompt and exit (non-interactive mode)."`
	Debug   bool             `help:"Write debug-level logs."`
	NoColor bool             `name:"no-color" help:"Disable styled output."`
	Version kong.VersionFlag `help:"Print version and exit."`
}

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("jarvis"),
		kong.Description("Terminal Jarvis: a conversational front end for AI coding tools."),
		kong.UsageOnError(),
		kong.Vars{"version": "Terminal Jarvis " + Version},
	)
	os.Exit(run(cli))
}

func run(cli CLI) int {
	if _, err := config.LoadEnv(config.EnvFiles()...); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load environment file: %v\n", err)
	}
	if cli.Model != "" {
		os.Setenv("JARVIS_MODEL", cli.Model)
	}

	cfg, err := config.LoadUserConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if cli.Timeout > 0 {
		cfg.RequestTimeoutSeconds = int((cli.Timeout + time.Second - 1) / time.Second)
	}

	closer, err := logging.Init(logging.Config{
		Path:       cfg.LogPath,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
		Debug:      cli.Debug,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		return 1
	}
	defer closer.Close()
	log := logging.NewStructuredLogger("main")
	log.Info("starting", "version", Version, "config", config.Path())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	ui.Version = Version
	theme := ui.NewTheme(ui.ColorEnabled(cli.NoColor))
	markdown := cfg.Markdown() && term.IsTerminal(int(os.Stdout.Fd()))
	console := ui.NewConsole(os.Stdout, theme, markdown)
	interactive := term.IsTerminal(int(os.Stdin.Fd())) && cli.Prompt == ""

	cwd, _ := os.Getwd()
	prompts.SetMetadata(buildEnvironmentMetadata(cwd))

	manager := credentials.NewManager()
	mock := os.Getenv("JARVIS_MOCK_LLM") == "1"
	buildChain := func(ctx context.Context) (*agent.Chain, error) {
		if mock {
			log.Info("JARVIS_MOCK_LLM=1 detected; using mock LLM client")
			return agent.NewChain(agent.Descriptor{
				Handle: agent.ClientHandle{Client: mockclient.New(), Model: "mock"},
				Label:  "Mock (echo)",
			})
		}
		creds, err := manager.Load()
		if err != nil {
			log.Warn("credentials unreadable", "error", err)
		}
		return agent.BuildChain(ctx, backends(cfg, creds))
	}
	ollamaHost := func(ctx context.Context) (string, bool) {
		creds, _ := manager.Load()
		return backends(cfg, creds).LocalOllama(ctx)
	}
	wizard := func(ctx context.Context) (credentials.Outcome, error) {
		return credentials.NewWizard(manager, theme, ollamaHost).Run(ctx)
	}

	if cli.Setup {
		if _, err := wizard(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Setup failed: %v\n", err)
			return 1
		}
	}

	chain, err := buildChain(ctx)
	if errors.Is(err, agent.ErrNoProviderConfigured) && interactive && !cli.Setup {
		console.Warn("setup", "No AI provider is configured yet.")
		if _, werr := wizard(ctx); werr != nil {
			fmt.Fprintf(os.Stderr, "Setup failed: %v\n", werr)
			return 1
		}
		chain, err = buildChain(ctx)
	}
	if err != nil {
		log.Error("no provider chain", "error", err)
		if errors.Is(err, agent.ErrNoProviderConfigured) {
			console.AuthGuide("")
			return 1
		}
		fmt.Fprintf(os.Stderr, "Provider setup failed: %v\n", err)
		return 1
	}

	suppress := ui.NewSuppressSignal()
	bin := tooling.NewCollaborator(cfg.ToolBinary, suppress)
	tools := tooling.NewRegistry(tooling.DefaultTools(bin)...)
	spinner := ui.NewSpinner(os.Stdout, cfg.SpinnerTick(), suppress).WithTheme(theme)

	creds, _ := manager.Load()
	exec := agent.NewExecutor(agent.ExecutorOptions{
		Chain: chain,
		Factory: &agent.Factory{
			Backends:      backends(cfg, creds),
			Tools:         tools,
			SystemPrompt:  prompts.Combine(cfg.SystemPrompt),
			Temperature:   cfg.Temperature,
			MaxToolRounds: cfg.MaxToolRounds,
		},
		Console:     console,
		Spinner:     spinner,
		Suppress:    suppress,
		Timeout:     cfg.RequestTimeout(),
		MaxRebuilds: cfg.MaxSessionRebuilds,
	})

	store, err := transcript.Open(cfg.TranscriptPath)
	if err != nil {
		log.Warn("transcript disabled", "path", cfg.TranscriptPath, "error", err)
		store = nil
	}
	defer store.Close()

	a := agent.New(agent.Options{
		Config:       cfg,
		Console:      console,
		Executor:     exec,
		Tools:        tools,
		Collaborator: bin,
		Credentials:  manager,
		Transcript:   store,
		RebuildChain: buildChain,
		Setup:        wizard,
		OllamaHost:   ollamaHost,
		Suppress:     suppress,
		Interactive:  &interactive,
	})

	if cli.Prompt != "" {
		if err := a.RunOneShot(ctx, cli.Prompt); err != nil {
			log.Error("prompt failed", "error", err)
			return 1
		}
		return 0
	}
	if err := a.Run(ctx); err != nil {
		log.Error("repl stopped", "error", err)
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	return 0
}

// backends resolves keys from the environment first and stored credentials
// second. The wizard exports new keys into the environment, so sessions
// built after /setup see them.
func backends(cfg config.Config, creds *credentials.Credentials) agent.Backends {
	return agent.DefaultBackends(cfg, credentials.Getenv(creds, os.Getenv))
}

func buildEnvironmentMetadata(workspace string) string {
	now := time.Now()
	zoneName, _ := now.Zone()
	lines := []string{
		fmt.Sprintf("- OS: %s (%s)", runtime.GOOS, runtime.GOARCH),
	}
	if shell := detectShell(); shell != "" {
		lines = append(lines, fmt.Sprintf("- Shell: %s", filepath.Base(shell)))
	}
	lines = append(lines, fmt.Sprintf("- Date: %s (%s)", now.Format("2006-01-02"), zoneName))
	if workspace != "" {
		lines = append(lines, fmt.Sprintf("- Working Directory: %s", workspace))
	}
	lines = append(lines, fmt.Sprintf("- Terminal Jarvis Version: %s", Version))
	return strings.Join(lines, "\n")
}

func detectShell() string {
	for _, key := range []string{"SHELL", "COMSPEC"} {
		if shell := strings.TrimSpace(os.Getenv(key)); shell != "" {
			return shell
		}
	}
	return ""
}
