package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"jarvis/internal/llm"
	"jarvis/internal/logging"
	"jarvis/internal/ui"
)

// KindSuccess marks an attempt that produced a reply.
const KindSuccess llm.Kind = "success"

const (
	defaultRequestTimeout = 60 * time.Second
	defaultMaxRebuilds    = 2
	handoffPoll           = 250 * time.Millisecond
)

// TurnResult is the outcome of an attempt, and of a whole turn when returned
// from Execute.
type TurnResult struct {
	Kind     llm.Kind
	Text     string
	Detail   string
	Err      error
	Provider string
	Attempts int
	Duration time.Duration
}

// OK reports whether the turn produced a reply.
func (r TurnResult) OK() bool { return r.Kind == KindSuccess }

// Indicator is the progress display shown while waiting on a provider.
type Indicator interface {
	Start()
	Stop()
}

// AuthRecovery is offered a chance to fix credentials when every provider
// rejected them. It returns a replacement chain, or nil to give up.
type AuthRecovery func(ctx context.Context) *Chain

// ExecutorOptions configures an Executor.
type ExecutorOptions struct {
	Chain       *Chain
	Factory     SessionFactory
	Console     *ui.Console
	Spinner     Indicator
	Suppress    *ui.SuppressSignal
	Timeout     time.Duration
	MaxRebuilds int
	// PollInterval is how often an expired deadline rechecks a raised
	// suppress signal. The deadline is paused while another program owns
	// the terminal and restarts with a full Timeout once it returns, so a
	// turn that hands off can take longer than Timeout in wall-clock time.
	PollInterval time.Duration
	AuthRecovery AuthRecovery
}

// Executor runs turns against the chain, falling back between providers.
// It owns the cursor and the current session; it is not safe for concurrent
// turns.
type Executor struct {
	chain    *Chain
	cursor   *Cursor
	session  Runner
	factory  SessionFactory
	console  *ui.Console
	spinner  Indicator
	suppress *ui.SuppressSignal
	onAuth   AuthRecovery

	timeout      time.Duration
	maxRebuilds  int
	pollInterval time.Duration
	log          *logging.StructuredLogger
}

// NewExecutor returns an executor positioned at the head of the chain. The
// first session is built lazily on the first turn unless Prepare is called.
func NewExecutor(opts ExecutorOptions) *Executor {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultRequestTimeout
	}
	if opts.MaxRebuilds < 0 {
		opts.MaxRebuilds = defaultMaxRebuilds
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = handoffPoll
	}
	if opts.Spinner == nil {
		opts.Spinner = noopIndicator{}
	}
	return &Executor{
		chain:        opts.Chain,
		cursor:       NewCursor(opts.Chain),
		factory:      opts.Factory,
		console:      opts.Console,
		spinner:      opts.Spinner,
		suppress:     opts.Suppress,
		onAuth:       opts.AuthRecovery,
		timeout:      opts.Timeout,
		maxRebuilds:  opts.MaxRebuilds,
		pollInterval: opts.PollInterval,
		log:          logging.NewStructuredLogger("executor"),
	}
}

type noopIndicator struct{}

func (noopIndicator) Start() {}
func (noopIndicator) Stop()  {}

// Chain returns the chain in use.
func (e *Executor) Chain() *Chain { return e.chain }

// Cursor returns the position in the chain.
func (e *Executor) Cursor() int { return e.cursor.Index() }

// Current returns the active chain entry.
func (e *Executor) Current() Descriptor { return e.cursor.Current() }

// Timeout returns the per-attempt deadline.
func (e *Executor) Timeout() time.Duration { return e.timeout }

// Prepare builds the first session, skipping providers that fail to start.
func (e *Executor) Prepare(ctx context.Context) error {
	if e.session != nil {
		return nil
	}
	return e.ensureSession(ctx)
}

// Reset discards the conversation and starts over on the current provider.
func (e *Executor) Reset(ctx context.Context) error {
	e.session = nil
	return e.ensureSession(ctx)
}

// ReplaceChain installs a new chain, for example after setup, and starts a
// session at its head.
func (e *Executor) ReplaceChain(ctx context.Context, chain *Chain) error {
	e.chain = chain
	e.cursor = NewCursor(chain)
	e.session = nil
	return e.ensureSession(ctx)
}

// ensureSession builds a session for the cursor, advancing past providers
// that cannot be constructed.
func (e *Executor) ensureSession(ctx context.Context) error {
	for e.session == nil {
		d := e.cursor.Current()
		s, err := e.factory.NewSession(ctx, d)
		if err == nil {
			e.session = s
			return nil
		}
		e.log.Warn("session build failed", "provider", d.Label, "error", err)
		if _, ok := e.cursor.Advance(); !ok {
			return err
		}
		e.notify(func(c *ui.Console) { c.Warn("init", "%s unavailable: %v", d.Label, err) })
	}
	return nil
}

// Execute runs one user turn to completion. Per-attempt failures never
// escape: the returned result describes how the turn ended, and the console
// has already been told about fallbacks and exhaustion.
func (e *Executor) Execute(ctx context.Context, text string) TurnResult {
	defer e.suppress.Clear()
	start := time.Now()
	finish := func(r TurnResult, attempts int) TurnResult {
		r.Attempts = attempts
		r.Duration = time.Since(start)
		if r.Provider == "" {
			r.Provider = e.cursor.Current().Label
		}
		return r
	}

	if err := e.ensureSession(ctx); err != nil {
		e.notify(func(c *ui.Console) { c.AllFailed(err) })
		return finish(TurnResult{Kind: llm.KindTransient, Err: err, Detail: err.Error()}, 0)
	}

	attempts, rebuilds := 0, 0
	recovered := false
	for {
		attempts++
		current := e.cursor.Current()
		res := e.attempt(ctx, e.session, text)
		res.Provider = current.Label
		e.log.Info("attempt finished", "provider", current.Label, "kind", string(res.Kind), "attempt", attempts)

		switch res.Kind {
		case KindSuccess:
			if e.session.NeedsRebuild() {
				e.log.Debug("rebuilding session after terminal handoff", "provider", current.Label)
				e.session = nil
				if err := e.ensureSession(ctx); err != nil {
					e.log.Warn("post-handoff rebuild failed", "error", err)
				}
			}
			return finish(res, attempts)
		case llm.KindCancelled:
			return finish(res, attempts)
		case llm.KindSessionCorruption:
			if rebuilds < e.maxRebuilds {
				rebuilds++
				s, err := e.factory.NewSession(ctx, current)
				if err == nil {
					e.session = s
					e.notify(func(c *ui.Console) { c.SessionReset(current.Label) })
					continue
				}
				e.log.Warn("same-provider rebuild failed", "provider", current.Label, "error", err)
			}
		}

		if e.advance(ctx, res.Kind, current) {
			continue
		}

		if res.Kind == llm.KindAuth && e.onAuth != nil && !recovered {
			recovered = true
			if chain := e.onAuth(ctx); chain != nil {
				if err := e.ReplaceChain(ctx, chain); err == nil {
					e.notify(func(c *ui.Console) { c.Success("Setup complete. Retrying your request...") })
					continue
				}
			}
		}
		e.exhausted(res, current)
		return finish(res, attempts)
	}
}

// advance moves the cursor to the next provider that can start a session.
func (e *Executor) advance(ctx context.Context, cause llm.Kind, failing Descriptor) bool {
	for {
		next, ok := e.cursor.Advance()
		if !ok {
			return false
		}
		s, err := e.factory.NewSession(ctx, next)
		if err != nil {
			e.log.Warn("fallback provider failed to start", "provider", next.Label, "error", err)
			e.notify(func(c *ui.Console) { c.Warn("init", "%s unavailable: %v", next.Label, err) })
			continue
		}
		e.notify(func(c *ui.Console) { c.Fallback(cause, failing.Label, next.Label) })
		e.session = s
		return true
	}
}

func (e *Executor) exhausted(res TurnResult, last Descriptor) {
	e.notify(func(c *ui.Console) {
		switch res.Kind {
		case llm.KindAuth:
			c.AuthGuide(last.Label)
		case llm.KindTimeout:
			c.NoResponse(e.timeout)
		default:
			err := res.Err
			if err == nil {
				err = errors.New(res.Detail)
			}
			c.AllFailed(err)
		}
	})
}

func (e *Executor) notify(fn func(c *ui.Console)) {
	if e.console != nil {
		fn(e.console)
	}
}

type runOutcome struct {
	text string
	err  error
}

// attempt sends text once to session and waits for a reply, the deadline,
// or cancellation of ctx.
func (e *Executor) attempt(ctx context.Context, session Runner, text string) TurnResult {
	e.spinner.Start()
	defer e.spinner.Stop()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered so an abandoned run can still deliver and exit.
	done := make(chan runOutcome, 1)
	go func() {
		var reply llm.Collector
		err := session.Run(runCtx, text, reply.Handle)
		done <- runOutcome{text: reply.Text(), err: err}
	}()

	timer := time.NewTimer(e.timeout)
	defer timer.Stop()
	handoff := false

	for {
		select {
		case out := <-done:
			return e.classify(ctx, out)
		case <-ctx.Done():
			return TurnResult{Kind: llm.KindCancelled, Err: ctx.Err(), Detail: "request cancelled"}
		case <-timer.C:
			// The deadline does not run while another program owns the
			// terminal; a fresh window starts when it returns.
			if e.suppress.Raised() {
				handoff = true
				timer.Reset(e.pollInterval)
				continue
			}
			if handoff {
				handoff = false
				timer.Reset(e.timeout)
				continue
			}
			return TurnResult{
				Kind:   llm.KindTimeout,
				Err:    context.DeadlineExceeded,
				Detail: fmt.Sprintf("no response after %s", e.timeout),
			}
		}
	}
}

func (e *Executor) classify(ctx context.Context, out runOutcome) TurnResult {
	// Only errors are classified; a reply that mentions 401 or "forbidden"
	// is still an answer.
	if out.err == nil {
		return TurnResult{Kind: KindSuccess, Text: out.text}
	}
	if ctx.Err() != nil {
		return TurnResult{Kind: llm.KindCancelled, Err: ctx.Err(), Detail: "request cancelled"}
	}
	return TurnResult{Kind: llm.Classify(out.err), Err: out.err, Detail: out.err.Error()}
}
