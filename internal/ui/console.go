package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	"jarvis/internal/classify"
	"jarvis/internal/llm"
	"jarvis/internal/logging"
)

const indent = "   "

// Console prints everything the REPL shows the user.
type Console struct {
	out    io.Writer
	theme  Theme
	render *glamour.TermRenderer
}

// NewConsole builds a console. When markdown is true the answer is rendered
// through glamour.
func NewConsole(out io.Writer, theme Theme, markdown bool) *Console {
	c := &Console{out: out, theme: theme}
	if markdown {
		if r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(0),
		); err == nil {
			c.render = r
		} else {
			logging.ErrorLog("markdown renderer unavailable: %v", err)
		}
	}
	return c
}

// Theme returns the console's styles.
func (c *Console) Theme() Theme { return c.theme }

// Writer returns the underlying output.
func (c *Console) Writer() io.Writer { return c.out }

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

// Clear wipes the screen and homes the cursor.
func (c *Console) Clear() {
	c.printf("\033[2J\033[H")
}

// Home renders the banner with the active provider.
func (c *Console) Home(providerLabel, cwd string) {
	t := c.theme
	c.printf("%s%s  %s\n", indent, t.Accent.Render("┌─────┐"), t.Title.Render("Terminal Jarvis"))
	c.printf("%s%s  %s\n", indent, t.Accent.Render("│ T.J │"), t.Body.Render(Version))
	c.printf("%s%s  %s\n", indent, t.Accent.Render("│ ═ ═ │"), t.Body.Render("Provider: "+providerLabel))
	c.printf("%s%s  %s\n", indent, t.Accent.Render("│     │"), t.Body.Render(cwd))
	c.printf("%s%s  %s\n", indent, t.Accent.Render("└─────┘"), t.Accent.Render("Type /help to see available commands"))
	c.printf("\n%s%s\n\n", indent, t.Body.Render("Or describe what you want in plain English."))
}

type helpEntry struct {
	usage string
	desc  string
}

var helpEntries = []helpEntry{
	{"/tools", "list all AI coding tools"},
	{"/install <tool>", "install a tool"},
	{"/update [tool]", "update one or all tools"},
	{"/status", "tool health dashboard"},
	{"/auth [tool]", "authentication help"},
	{"/config", "show current config"},
	{"/setup", "interactive provider setup wizard"},
	{"/logout [provider]", "forget a stored provider key"},
	{"/provider", "show the provider chain"},
	{"/history [n]", "show recent turns"},
	{"/clear", "start a fresh conversation"},
	{"/help", "show this help"},
	{"/exit", "exit"},
}

// Help lists the slash commands.
func (c *Console) Help() {
	t := c.theme
	c.printf("\n%s%s\n", indent, t.Accent.Render("Commands:"))
	for _, e := range helpEntries {
		c.printf("%s%s %s\n", indent, t.Accent.Render(fmt.Sprintf("%-20s", e.usage)), e.desc)
	}
	c.printf("\n%s%s\n\n", indent, t.Body.Render("Arrow keys for history  |  plain English also works"))
	c.printf("%s%s\n", indent, t.Title.Render("Examples:"))
	for _, ex := range []string{"which tools are installed?", "launch claude", "how do I set up auth for gemini?"} {
		c.printf("%s%s\n", indent, t.Body.Render(ex))
	}
	c.printf("\n")
}

// Response prints a classified reply: reasoning dimmed under a header, then
// the answer.
func (c *Console) Response(res classify.Result) {
	t := c.theme
	c.printf("\n")
	if res.HasReasoning() {
		c.printf("%s%s\n", indent, t.Thinking.Render("thinking"))
		for _, line := range strings.Split(res.Reasoning, "\n") {
			c.printf("%s%s\n", indent, t.Thinking.Render(line))
		}
		c.printf("\n")
	}
	if res.Answer == "" {
		return
	}
	if c.render != nil {
		rendered, err := c.render.Render(res.Answer)
		if err == nil {
			c.printf("%s\n", strings.TrimRight(rendered, "\n"))
			c.printf("\n")
			return
		}
		logging.ErrorLog("markdown render failed: %v", err)
	}
	for _, line := range strings.Split(res.Answer, "\n") {
		c.printf("%s%s\n", indent, t.Body.Render(line))
	}
	c.printf("\n")
}

// Output prints raw collaborator output.
func (c *Console) Output(text string) {
	c.printf("%s\n", strings.TrimRight(text, "\n"))
}

// Fallback announces that a provider failed and the next one is being tried.
func (c *Console) Fallback(cause llm.Kind, failing, next string) {
	t := c.theme
	switch cause {
	case llm.KindAuth:
		c.printf("\n%s%s %s\n\n", indent, t.Accent.Render("[auth]"),
			t.Body.Render(fmt.Sprintf("%s: bad key -- trying %s...", failing, next)))
	case llm.KindTimeout:
		c.printf("\n%s%s %s\n\n", indent, t.Accent.Render("[timeout]"),
			t.Body.Render(fmt.Sprintf("%s took too long -- trying %s...", failing, next)))
	default:
		c.printf("\n%s%s %s\n\n", indent, t.Accent.Render(fmt.Sprintf("[%s failed]", failing)),
			t.Body.Render(fmt.Sprintf("Falling back to %s...", next)))
	}
}

// SessionReset notes that the conversation was rebuilt after the backend
// rejected its history.
func (c *Console) SessionReset(label string) {
	c.printf("%s%s\n", indent, c.theme.Dim.Render(fmt.Sprintf("[session] %s rejected the conversation state; starting fresh.", label)))
}

// NoResponse is printed when the last provider timed out.
func (c *Console) NoResponse(timeout time.Duration) {
	c.printf("\n%s%s No response after %s\n\n", indent, c.theme.Accent.Render("[timeout]"), formatSeconds(timeout))
}

// AllFailed is printed when every provider failed for a non-auth reason.
func (c *Console) AllFailed(err error) {
	c.printf("\n%s%s All providers failed. Last error: %v\n\n", indent, c.theme.Failure.Render("[ERROR]"), err)
}

// AuthGuide explains how to configure a provider after authentication
// failed everywhere, or at startup when nothing is configured.
func (c *Console) AuthGuide(failedLabel string) {
	t := c.theme
	if failedLabel != "" {
		c.printf("\n%s%s %s\n", indent, t.Accent.Render("[auth failed]"), t.Body.Render(failedLabel+" rejected the API key."))
	}
	c.printf("\n%s%s\n\n", indent, t.Title.Render("Choose a provider and configure it:"))
	option := func(n int, name, note string, lines ...string) {
		c.printf("%s%s %s  %s\n", indent, t.Accent.Render("►"), t.Title.Render(fmt.Sprintf("Option %d: %s", n, name)), t.Dim.Render("("+note+")"))
		for _, l := range lines {
			c.printf("%s    %s\n", indent, l)
		}
		c.printf("\n")
	}
	option(1, "Google Gemini", "recommended, free tier available",
		t.Body.Render("GOOGLE_API_KEY=your-key-here"),
		t.Dim.Render("https://aistudio.google.com/app/apikey"))
	option(2, "OpenRouter", "100+ cloud models",
		t.Body.Render("OPENROUTER_API_KEY=your-key-here"),
		t.Dim.Render("https://openrouter.ai/keys"))
	option(3, "Ollama", "local, no API key required",
		t.Dim.Render("Install: https://ollama.com/download"),
		t.Dim.Render("Then:    ollama pull llama3.2"))
	c.printf("%s%s\n\n", indent, t.Body.Render("Run /setup now (no restart needed), or export the variable and restart."))
}

// Info prints a light informational line.
func (c *Console) Info(format string, args ...any) {
	c.printf("%s%s\n", indent, c.theme.Body.Render(fmt.Sprintf(format, args...)))
}

// Success prints a confirmation line.
func (c *Console) Success(format string, args ...any) {
	c.printf("\n%s%s\n\n", indent, c.theme.Success.Render(fmt.Sprintf(format, args...)))
}

// Warn prints a tagged notice.
func (c *Console) Warn(tag, format string, args ...any) {
	c.printf("\n%s%s %s\n\n", indent, c.theme.Accent.Render("["+tag+"]"), fmt.Sprintf(format, args...))
}

// Goodbye is printed on exit.
func (c *Console) Goodbye() {
	c.printf("\n%s%s\n\n", indent, c.theme.Accent.Render("Goodbye."))
}

func formatSeconds(d time.Duration) string {
	if d%time.Second == 0 {
		return fmt.Sprintf("%ds", int(d/time.Second))
	}
	return d.String()
}
