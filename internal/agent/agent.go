package agent

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	prompt "github.com/c-bata/go-prompt"
	"golang.org/x/term"

	"jarvis/internal/classify"
	"jarvis/internal/config"
	"jarvis/internal/credentials"
	"jarvis/internal/llm"
	"jarvis/internal/logging"
	"jarvis/internal/tooling"
	"jarvis/internal/transcript"
	"jarvis/internal/ui"
)

const (
	promptText     = "   > "
	exitPromptText = "   Exit Terminal Jarvis? [y/N] "
	setupNowText   = "   Run setup wizard now? [Y/n] "
)

var commandSuggestions = []prompt.Suggest{
	{Text: "/help", Description: "show available commands"},
	{Text: "/tools", Description: "list all AI coding tools"},
	{Text: "/install", Description: "install a tool"},
	{Text: "/update", Description: "update one or all tools"},
	{Text: "/status", Description: "tool health dashboard"},
	{Text: "/auth", Description: "authentication help"},
	{Text: "/config", Description: "show current config"},
	{Text: "/setup", Description: "provider setup wizard"},
	{Text: "/logout", Description: "forget a stored provider key"},
	{Text: "/provider", Description: "show the provider chain"},
	{Text: "/history", Description: "show recent turns"},
	{Text: "/clear", Description: "start a fresh conversation"},
	{Text: "/exit", Description: "exit Terminal Jarvis"},
	{Text: "/quit", Description: "exit Terminal Jarvis"},
}

type interruptTracker struct {
	mu     sync.Mutex
	last   time.Time
	window time.Duration
}

func newInterruptTracker(window time.Duration) *interruptTracker {
	return &interruptTracker{window: window}
}

func (t *interruptTracker) secondPress() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	if !t.last.IsZero() && now.Sub(t.last) < t.window {
		t.last = time.Time{}
		return true
	}
	t.last = now
	return false
}

type promptExit struct{}

// ChainBuilder rebuilds the provider chain from the current environment and
// stored credentials.
type ChainBuilder func(ctx context.Context) (*Chain, error)

// Options wires the REPL to its collaborators.
type Options struct {
	Config       config.Config
	Console      *ui.Console
	Executor     *Executor
	Tools        *tooling.Registry
	Collaborator *tooling.Collaborator
	Credentials  *credentials.Manager
	Transcript   *transcript.Store
	RebuildChain ChainBuilder
	// Setup runs the provider wizard. When nil a credentials.Wizard on the
	// REPL's input is used.
	Setup      func(ctx context.Context) (credentials.Outcome, error)
	OllamaHost func(ctx context.Context) (string, bool)
	Suppress   *ui.SuppressSignal
	In         io.Reader
	// Interactive selects the go-prompt line editor. It defaults to whether
	// stdin is a terminal.
	Interactive *bool
}

// Agent is the interactive front end.
type Agent struct {
	cfg        config.Config
	console    *ui.Console
	exec       *Executor
	tools      *tooling.Registry
	bin        *tooling.Collaborator
	creds      *credentials.Manager
	transcript *transcript.Store
	rebuild    ChainBuilder
	setupFn    func(ctx context.Context) (credentials.Outcome, error)
	ollamaHost func(ctx context.Context) (string, bool)
	suppress   *ui.SuppressSignal
	in         *bufio.Reader
	isTTY      bool
	log        *logging.StructuredLogger

	requestCancelMu sync.Mutex
	requestCancel   context.CancelFunc
}

// New builds the REPL.
func New(opts Options) *Agent {
	in := opts.In
	if in == nil {
		in = os.Stdin
	}
	isTTY := term.IsTerminal(int(os.Stdin.Fd())) && in == io.Reader(os.Stdin)
	if opts.Interactive != nil {
		isTTY = *opts.Interactive
	}
	a := &Agent{
		cfg:        opts.Config,
		console:    opts.Console,
		exec:       opts.Executor,
		tools:      opts.Tools,
		bin:        opts.Collaborator,
		creds:      opts.Credentials,
		transcript: opts.Transcript,
		rebuild:    opts.RebuildChain,
		setupFn:    opts.Setup,
		ollamaHost: opts.OllamaHost,
		suppress:   opts.Suppress,
		in:         bufio.NewReader(in),
		isTTY:      isTTY,
		log:        logging.NewStructuredLogger("repl"),
	}
	if a.setupFn == nil && a.creds != nil {
		a.setupFn = a.runWizard
	}
	if a.exec != nil && a.setupFn != nil && a.rebuild != nil {
		a.exec.onAuth = a.recoverAuth
	}
	return a
}

// Run shows the home screen and reads lines until the user exits.
func (a *Agent) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.exec.Prepare(ctx); err != nil {
		a.log.Warn("initial session failed", "error", err)
	}
	cwd, _ := os.Getwd()
	a.console.Home(a.exec.Current().Label, cwd)

	tracker := newInterruptTracker(2 * time.Second)
	if a.isTTY {
		return a.runPrompt(ctx, cancel)
	}
	go a.handleInterrupts(ctx, cancel, tracker)
	return a.runNonInteractive(ctx, cancel)
}

// RunOneShot runs a single turn and reports whether it produced an answer.
func (a *Agent) RunOneShot(ctx context.Context, text string) error {
	res := a.turn(ctx, text)
	if !res.OK() {
		if res.Err != nil {
			return fmt.Errorf("turn failed (%s): %w", res.Kind, res.Err)
		}
		return fmt.Errorf("turn failed (%s)", res.Kind)
	}
	return nil
}

func (a *Agent) runPrompt(ctx context.Context, cancel context.CancelFunc) (err error) {
	history := loadInputHistory(a.cfg.HistoryPath)

	var restore func()
	if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
		if state, terr := term.GetState(fd); terr == nil {
			restore = func() { _ = term.Restore(fd, state) }
		}
	}
	if restore != nil {
		defer restore()
	}

	var exitRequested, confirming atomic.Bool
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(promptExit); ok {
				err = nil
				return
			}
			panic(r)
		}
	}()
	exit := func() {
		exitRequested.Store(true)
		cancel()
		panic(promptExit{})
	}

	executor := func(in string) {
		if exitRequested.Load() || ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(in)
		if confirming.Swap(false) {
			if ans := strings.ToLower(line); ans == "y" || ans == "yes" {
				a.console.Goodbye()
				exit()
			}
			return
		}
		if line == "" {
			return
		}
		history.Add(line)
		if a.handleLine(ctx, line) {
			exit()
		}
	}

	p := prompt.New(
		executor,
		a.commandCompleter(),
		prompt.OptionHistory(history.Entries()),
		prompt.OptionTitle("Terminal Jarvis"),
		prompt.OptionLivePrefix(func() (string, bool) {
			if confirming.Load() {
				return exitPromptText, true
			}
			return promptText, true
		}),
		prompt.OptionPrefixTextColor(prompt.Cyan),
		prompt.OptionAddKeyBind(
			prompt.KeyBind{
				Key: prompt.ControlC,
				Fn: func(buf *prompt.Buffer) {
					if a.cancelInFlightRequest() {
						return
					}
					if confirming.Load() {
						a.console.Goodbye()
						exit()
					}
					confirming.Store(true)
					fmt.Fprintf(a.console.Writer(), "\r%-60s\r", "")
				},
			},
			prompt.KeyBind{
				Key: prompt.ControlD,
				Fn: func(buf *prompt.Buffer) {
					if buf.Text() == "" {
						a.console.Goodbye()
						exit()
					}
				},
			},
		),
		prompt.OptionSetExitCheckerOnInput(func(string, bool) bool {
			if exitRequested.Load() {
				return true
			}
			select {
			case <-ctx.Done():
				return true
			default:
				return false
			}
		}),
	)

	p.Run()
	return nil
}

func (a *Agent) commandCompleter() func(prompt.Document) []prompt.Suggest {
	return func(doc prompt.Document) []prompt.Suggest {
		word := doc.GetWordBeforeCursor()
		prefix := strings.TrimLeft(doc.TextBeforeCursor(), " \t")
		if !strings.HasPrefix(prefix, "/") || strings.ContainsAny(prefix, " \t") {
			return nil
		}
		return prompt.FilterHasPrefix(commandSuggestions, word, true)
	}
}

func (a *Agent) runNonInteractive(ctx context.Context, cancel context.CancelFunc) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		fmt.Fprint(a.console.Writer(), promptText)
		line, err := a.in.ReadString('\n')
		if err != nil && line == "" {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				a.console.Goodbye()
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}
		if a.handleLine(ctx, strings.TrimSpace(line)) {
			cancel()
			return nil
		}
	}
}

func (a *Agent) handleInterrupts(ctx context.Context, cancel context.CancelFunc, tracker *interruptTracker) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sigCh:
			if a.suppress.Raised() {
				continue
			}
			if a.cancelInFlightRequest() {
				continue
			}
			if tracker.secondPress() {
				a.console.Goodbye()
				cancel()
				return
			}
			fmt.Fprintln(a.console.Writer(), "\n   (Press Ctrl+C again within 2s to exit)")
		}
	}
}

// guardInterrupts turns SIGINT into cancellation of the running line while
// the line editor is not reading keys. Interrupts meant for a tool that owns
// the terminal are ignored.
func (a *Agent) guardInterrupts(ctx context.Context) func() {
	if !a.isTTY {
		return func() {}
	}
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-sigCh:
				if a.suppress.Raised() {
					continue
				}
				a.cancelInFlightRequest()
			}
		}
	}()
	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}

// handleLine dispatches one input line and reports whether the REPL should
// exit.
func (a *Agent) handleLine(ctx context.Context, line string) bool {
	if line == "" {
		return false
	}

	lineCtx, cancel := context.WithCancel(ctx)
	a.setInFlightCancel(cancel)
	stop := a.guardInterrupts(lineCtx)
	defer func() {
		stop()
		a.clearInFlightCancel()
		cancel()
	}()

	if strings.HasPrefix(line, "/") {
		return a.handleCommand(lineCtx, line)
	}
	if tool, ok := LaunchIntent(line); ok {
		a.launch(lineCtx, tool)
		return false
	}

	logging.DevLog("dispatching prompt: %d chars", len(line))
	a.turn(lineCtx, line)
	return false
}

// turn runs text through the executor, renders the answer and records it.
func (a *Agent) turn(ctx context.Context, text string) TurnResult {
	res := a.exec.Execute(ctx, text)
	logging.DevLog("turn finished: kind=%s provider=%s attempts=%d duration=%s", res.Kind, res.Provider, res.Attempts, res.Duration.Round(time.Millisecond))

	switch {
	case res.OK():
		if strings.TrimSpace(res.Text) != "" {
			a.console.Response(classify.Classify(res.Text))
		}
	case res.Kind == llm.KindCancelled:
		a.console.Info("(Request cancelled.)")
	}
	a.record(text, res)
	return res
}

func (a *Agent) launch(ctx context.Context, tool string) {
	if a.bin == nil {
		a.console.Output(tooling.NotFoundMessage)
		return
	}
	a.console.Info("Launching %s...", tool)
	out, err := a.bin.Launch(ctx, tool)
	switch {
	case errors.Is(err, tooling.ErrCollaboratorNotFound):
		a.console.Output(tooling.NotFoundMessage)
		return
	case err != nil:
		a.console.Warn("ERROR", "%v", err)
		return
	}
	a.console.Info("%s", out)
	if err := a.exec.Reset(ctx); err != nil {
		a.log.Warn("session rebuild after launch failed", "error", err)
	}
}

func outcomeOf(kind llm.Kind) string {
	switch kind {
	case KindSuccess:
		return transcript.OutcomeAnswered
	case llm.KindTimeout:
		return transcript.OutcomeTimeout
	case llm.KindAuth:
		return transcript.OutcomeAuth
	case llm.KindCancelled:
		return transcript.OutcomeCanceled
	default:
		return transcript.OutcomeFailed
	}
}

func (a *Agent) record(text string, res TurnResult) {
	if a.transcript == nil {
		return
	}
	answer := res.Text
	if !res.OK() {
		answer = res.Detail
	}
	// Recorded even when the turn's context was cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := a.transcript.Record(ctx, transcript.Turn{
		Provider: res.Provider,
		Outcome:  outcomeOf(res.Kind),
		Attempts: res.Attempts,
		Duration: res.Duration,
		User:     text,
		Answer:   answer,
	}); err != nil {
		a.log.Warn("transcript write failed", "error", err)
	}
}

// recoverAuth offers the setup wizard after every provider rejected its key.
func (a *Agent) recoverAuth(ctx context.Context) *Chain {
	a.console.Warn("auth", "Authentication failed. You can fix it now without restarting.")
	fmt.Fprint(a.console.Writer(), setupNowText)
	ans, err := a.in.ReadString('\n')
	if err != nil && ans == "" {
		return nil
	}
	if ans = strings.ToLower(strings.TrimSpace(ans)); ans == "n" || ans == "no" {
		return nil
	}
	outcome, err := a.setupFn(ctx)
	if err != nil || !outcome.Configured {
		return nil
	}
	chain, err := a.rebuild(ctx)
	if err != nil {
		a.console.Warn("setup", "Could not load providers after setup. Try /setup again.")
		return nil
	}
	return chain
}

func (a *Agent) runWizard(ctx context.Context) (credentials.Outcome, error) {
	w := credentials.NewWizard(a.creds, a.console.Theme(), a.ollamaHost)
	w.In = a.in
	w.Out = a.console.Writer()
	return w.Run(ctx)
}

func (a *Agent) setInFlightCancel(cancel context.CancelFunc) {
	a.requestCancelMu.Lock()
	a.requestCancel = cancel
	a.requestCancelMu.Unlock()
}

func (a *Agent) clearInFlightCancel() {
	a.requestCancelMu.Lock()
	a.requestCancel = nil
	a.requestCancelMu.Unlock()
}

func (a *Agent) cancelInFlightRequest() bool {
	a.requestCancelMu.Lock()
	cancel := a.requestCancel
	a.requestCancel = nil
	a.requestCancelMu.Unlock()
	if cancel != nil {
		cancel()
		return true
	}
	return false
}
