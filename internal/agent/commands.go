package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"jarvis/internal/credentials"
	"jarvis/internal/tooling"
)

const defaultHistoryLimit = 10

// handleCommand runs a slash command and reports whether the REPL should
// exit.
func (a *Agent) handleCommand(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	rest := parts[1:]

	switch cmd {
	case "/exit", "/quit":
		a.console.Goodbye()
		return true
	case "/help":
		a.console.Help()
	case "/tools":
		a.runTool(ctx, "list")
	case "/status":
		a.runTool(ctx, "status")
	case "/config":
		a.runTool(ctx, "config", "show")
	case "/install":
		if len(rest) == 0 {
			a.console.Info("Usage: /install <tool-name>")
			return false
		}
		a.runTool(ctx, append([]string{"install"}, rest...)...)
	case "/update":
		a.runTool(ctx, append([]string{"update"}, rest...)...)
	case "/auth":
		if len(rest) > 0 {
			a.runTool(ctx, append([]string{"auth", "help"}, rest...)...)
			return false
		}
		a.interactiveTool(ctx, "auth", "manage")
	case "/setup":
		a.setup(ctx)
	case "/logout":
		target := ""
		if len(rest) > 0 {
			target = rest[0]
		}
		a.logout(ctx, target)
	case "/provider", "/providers":
		a.showProviders()
	case "/history":
		limit := defaultHistoryLimit
		if len(rest) > 0 {
			n, err := strconv.Atoi(rest[0])
			if err != nil || n <= 0 {
				a.console.Info("Usage: /history [n]")
				return false
			}
			limit = n
		}
		a.showHistory(ctx, limit)
	case "/clear":
		if err := a.exec.Reset(ctx); err != nil {
			a.console.Warn("ERROR", "could not start a new session: %v", err)
			return false
		}
		a.console.Clear()
		a.console.Info("Started a fresh conversation with %s.", a.exec.Current().Label)
	default:
		a.console.Info("Unknown command '%s'. Type /help for options.", cmd)
	}
	return false
}

func (a *Agent) runTool(ctx context.Context, args ...string) {
	if a.bin == nil {
		a.console.Output(tooling.NotFoundMessage)
		return
	}
	out, err := a.bin.Run(ctx, args...)
	if err != nil {
		if errors.Is(err, tooling.ErrCollaboratorNotFound) {
			a.console.Output(tooling.NotFoundMessage)
			return
		}
		if ctx.Err() != nil {
			a.console.Info("(Command cancelled.)")
			return
		}
		a.console.Warn("ERROR", "%v", err)
		return
	}
	a.console.Output(out)
}

func (a *Agent) interactiveTool(ctx context.Context, args ...string) {
	if a.bin == nil {
		a.console.Output(tooling.NotFoundMessage)
		return
	}
	if err := a.bin.Interactive(ctx, args...); err != nil {
		if errors.Is(err, tooling.ErrCollaboratorNotFound) {
			a.console.Output(tooling.NotFoundMessage)
			return
		}
		a.console.Warn("ERROR", "%v", err)
	}
}

func (a *Agent) setup(ctx context.Context) {
	if a.setupFn == nil {
		a.console.Warn("setup", "Setup is unavailable: no credential store configured.")
		return
	}
	outcome, err := a.setupFn(ctx)
	if err != nil {
		a.console.Warn("setup", "Setup failed: %v", err)
		return
	}
	if outcome.Configured {
		a.refreshProviders(ctx)
	}
}

// refreshProviders rebuilds the chain after credentials changed. The current
// chain stays in place when nothing usable is configured.
func (a *Agent) refreshProviders(ctx context.Context) {
	if a.rebuild == nil {
		return
	}
	chain, err := a.rebuild(ctx)
	if err == nil {
		err = a.exec.ReplaceChain(ctx, chain)
	}
	if err != nil {
		a.log.Warn("provider refresh failed", "error", err)
		a.console.Warn("setup", "Provider update saved, but no active provider is ready yet. Run /setup again.")
		return
	}
	a.console.Success("Active provider switched to %s.", a.exec.Current().Label)
}

func (a *Agent) logout(ctx context.Context, target string) {
	if a.creds == nil {
		a.console.Info("Could not log out provider: no credential store configured")
		return
	}
	provider, err := a.creds.Logout(target)
	if err != nil {
		a.console.Info("Could not log out provider: %v", err)
		return
	}
	// Keys exported by setup in this process would otherwise survive.
	for _, key := range credentials.EnvKeysFor(provider) {
		os.Unsetenv(key)
	}
	if model := os.Getenv("JARVIS_MODEL"); provider == "all" || (model != "" && credentials.ProviderOfModel(model) == provider) {
		os.Unsetenv("JARVIS_MODEL")
	}
	a.console.Success("Logged out %s credentials. Run /setup to switch providers.", provider)
	a.refreshProviders(ctx)
}

func (a *Agent) showProviders() {
	t := a.console.Theme()
	w := a.console.Writer()
	chain := a.exec.Chain()
	fmt.Fprintf(w, "\n   %s\n", t.Accent.Render("Provider chain:"))
	for i, d := range chain.Descriptors() {
		marker := "  "
		style := t.Dim
		switch {
		case i == a.exec.Cursor():
			marker = "► "
			style = t.Title
		case i > a.exec.Cursor():
			style = t.Body
		}
		fmt.Fprintf(w, "   %s%s\n", t.Accent.Render(marker), style.Render(fmt.Sprintf("%d. %s", i+1, d.Label)))
	}
	fmt.Fprintf(w, "\n   %s\n\n", t.Dim.Render(fmt.Sprintf("Request timeout %s. Failed providers are not retried until restart or /setup.", a.exec.Timeout())))
}

func (a *Agent) showHistory(ctx context.Context, limit int) {
	if a.transcript == nil {
		a.console.Info("History is not being recorded.")
		return
	}
	turns, err := a.transcript.Recent(ctx, limit)
	if err != nil {
		a.console.Warn("ERROR", "could not read history: %v", err)
		return
	}
	if len(turns) == 0 {
		a.console.Info("No turns recorded yet.")
		return
	}
	t := a.console.Theme()
	w := a.console.Writer()
	fmt.Fprintln(w)
	for _, turn := range turns {
		fmt.Fprintf(w, "   %s %s %s\n",
			t.Dim.Render(turn.Time.Local().Format("2006-01-02 15:04")),
			t.Accent.Render(fmt.Sprintf("[%s]", turn.Outcome)),
			t.Body.Render(truncate(turn.User, 60)))
		fmt.Fprintf(w, "      %s\n", t.Dim.Render(fmt.Sprintf("%s, %d attempt(s), %s",
			turn.Provider, turn.Attempts, turn.Duration.Round(100*time.Millisecond))))
	}
	fmt.Fprintln(w)
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
