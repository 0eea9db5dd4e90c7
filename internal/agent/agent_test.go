package agent

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jarvis/internal/credentials"
	"jarvis/internal/llm/mockclient"
	"jarvis/internal/tooling"
	"jarvis/internal/transcript"
	"jarvis/internal/ui"
)

const fakeJarvis = `#!/bin/sh
case "$1" in
  list) echo "claude   installed" ; echo "aider    missing" ;;
  status) echo "all tools healthy" ;;
  install) echo "installed $2" ;;
  run) echo "session for $2" ;;
  *) echo "args: $*" ;;
esac
`

type replHarness struct {
	agent      *Agent
	out        *bytes.Buffer
	toolOut    *bytes.Buffer
	exec       *Executor
	factory    *countingFactory
	transcript *transcript.Store
	creds      *credentials.Manager
}

func newRepl(t *testing.T, input string, entries ...Descriptor) *replHarness {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script collaborator requires a unix shell")
	}
	dir := t.TempDir()
	bin := filepath.Join(dir, tooling.BinaryName)
	require.NoError(t, os.WriteFile(bin, []byte(fakeJarvis), 0o755))

	suppress := ui.NewSuppressSignal()
	collab := tooling.NewCollaborator(bin, suppress)
	toolOut := &bytes.Buffer{}
	collab.Stdin = strings.NewReader("")
	collab.Stdout = toolOut
	collab.Stderr = toolOut

	out := &bytes.Buffer{}
	console := ui.NewConsole(out, ui.NewTheme(false), false)
	chain, err := NewChain(entries...)
	require.NoError(t, err)
	factory := &countingFactory{
		inner: &Factory{Tools: tooling.NewRegistry(tooling.DefaultTools(collab)...), MaxToolRounds: 5},
		fail:  map[string]error{},
	}
	exec := NewExecutor(ExecutorOptions{
		Chain:       chain,
		Factory:     factory,
		Console:     console,
		Suppress:    suppress,
		Timeout:     time.Second,
		MaxRebuilds: 2,
	})

	store, err := transcript.Open(filepath.Join(dir, "transcript.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	creds := credentials.NewManagerAt(filepath.Join(dir, "credentials.yaml"))

	interactive := false
	a := New(Options{
		Console:      console,
		Executor:     exec,
		Collaborator: collab,
		Credentials:  creds,
		Transcript:   store,
		Suppress:     suppress,
		In:           strings.NewReader(input),
		Interactive:  &interactive,
	})
	return &replHarness{agent: a, out: out, toolOut: toolOut, exec: exec, factory: factory, transcript: store, creds: creds}
}

func mockDescriptor(label string, steps ...mockclient.Step) Descriptor {
	return scriptedDescriptor(label, mockclient.NewScripted(steps...))
}

func TestReplTurnAndCommands(t *testing.T) {
	h := newRepl(t, "/help\n/tools\nHmm, the user wants a greeting.\n\nHello there!\n/history\n/provider\n/bogus\n/install\n/exit\nnever read\n",
		mockDescriptor("Mock One", mockclient.Step{Response: mockclient.Text("Let me think about it. Hello, friend!")}))

	require.NoError(t, h.agent.Run(context.Background()))
	out := h.out.String()

	assert.Contains(t, out, "Provider: Mock One")
	assert.Contains(t, out, "/history [n]")
	assert.Contains(t, out, "claude   installed")
	assert.Contains(t, out, "thinking")
	assert.Contains(t, out, "Hello, friend!")
	assert.Contains(t, out, "[answered]")
	assert.Contains(t, out, "► 1. Mock One")
	assert.Contains(t, out, "Unknown command '/bogus'. Type /help for options.")
	assert.Contains(t, out, "Usage: /install <tool-name>")
	assert.Contains(t, out, "Goodbye.")

	turns, err := h.transcript.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "Hmm, the user wants a greeting.", turns[0].User)
	assert.Equal(t, transcript.OutcomeAnswered, turns[1].Outcome)
}

func TestReplEOFSaysGoodbye(t *testing.T) {
	h := newRepl(t, "", mockDescriptor("Mock"))
	require.NoError(t, h.agent.Run(context.Background()))
	assert.Contains(t, h.out.String(), "Goodbye.")
}

func TestReplDirectLaunchRebuildsSession(t *testing.T) {
	client := mockclient.NewScripted()
	h := newRepl(t, "please launch aider\n/exit\n", scriptedDescriptor("Mock", client))

	require.NoError(t, h.agent.Run(context.Background()))
	assert.Contains(t, h.out.String(), "Launching aider...")
	assert.Contains(t, h.out.String(), "Returned from aider. Back in Terminal Jarvis home.")
	assert.Contains(t, h.toolOut.String(), "session for aider")
	assert.Zero(t, client.Calls(), "no model round trip")
	assert.Equal(t, 2, h.factory.count("Mock"))
}

func TestReplModelToolCall(t *testing.T) {
	h := newRepl(t, "install goose\n/exit\n", mockDescriptor("Mock",
		mockclient.Step{Response: mockclient.ToolCall("call_1", "install_tool", `{"tool_name":"goose"}`)},
		mockclient.Step{Response: mockclient.Text("Goose is installed.")},
	))
	require.NoError(t, h.agent.Run(context.Background()))
	assert.Contains(t, h.out.String(), "Goose is installed.")
}

func TestReplSetupSwitchesProvider(t *testing.T) {
	h := newRepl(t, "/setup\n/provider\n/exit\n", mockDescriptor("Old"))
	replacement, err := NewChain(mockDescriptor("New"))
	require.NoError(t, err)
	h.agent.setupFn = func(context.Context) (credentials.Outcome, error) {
		return credentials.Outcome{Provider: "ollama", Configured: true}, nil
	}
	h.agent.rebuild = func(context.Context) (*Chain, error) { return replacement, nil }

	require.NoError(t, h.agent.Run(context.Background()))
	assert.Contains(t, h.out.String(), "Active provider switched to New.")
	assert.Contains(t, h.out.String(), "► 1. New")
}

func TestReplSetupWithoutUsableProvider(t *testing.T) {
	h := newRepl(t, "/setup\n/exit\n", mockDescriptor("Old"))
	h.agent.setupFn = func(context.Context) (credentials.Outcome, error) {
		return credentials.Outcome{Configured: true}, nil
	}
	h.agent.rebuild = func(context.Context) (*Chain, error) { return nil, ErrNoProviderConfigured }

	require.NoError(t, h.agent.Run(context.Background()))
	assert.Contains(t, h.out.String(), "no active provider is ready yet")
	assert.Equal(t, "Old", h.exec.Current().Label)
}

func TestReplLogout(t *testing.T) {
	h := newRepl(t, "/logout openrouter\n/logout\n/exit\n", mockDescriptor("Mock"))
	creds := &credentials.Credentials{PreferredModel: credentials.OpenRouterPreferredModel}
	creds.SetProvider(credentials.ProviderOpenRouter, "sk-or-v1-test")
	require.NoError(t, h.creds.Save(creds))
	t.Setenv("OPENROUTER_API_KEY", "sk-or-v1-test")
	t.Setenv("JARVIS_MODEL", credentials.OpenRouterPreferredModel)

	require.NoError(t, h.agent.Run(context.Background()))
	out := h.out.String()
	assert.Contains(t, out, "Logged out openrouter credentials. Run /setup to switch providers.")
	assert.Contains(t, out, "Could not log out provider: no active provider found")
	assert.Empty(t, os.Getenv("OPENROUTER_API_KEY"))
	assert.Empty(t, os.Getenv("JARVIS_MODEL"))

	loaded, err := h.creds.Load()
	require.NoError(t, err)
	assert.Empty(t, loaded.GetAPIKey(credentials.ProviderOpenRouter))
}

func TestReplAuthRecoveryOffersSetup(t *testing.T) {
	h := newRepl(t, "hello\ny\n/exit\n", mockDescriptor("Bad", mockclient.Step{Err: errors.New("401 Unauthorized")}))
	replacement, err := NewChain(mockDescriptor("Good", mockclient.Step{Response: mockclient.Text("Hi again.")}))
	require.NoError(t, err)
	h.agent.setupFn = func(context.Context) (credentials.Outcome, error) {
		return credentials.Outcome{Configured: true}, nil
	}
	h.agent.rebuild = func(context.Context) (*Chain, error) { return replacement, nil }
	h.exec.onAuth = h.agent.recoverAuth

	require.NoError(t, h.agent.Run(context.Background()))
	out := h.out.String()
	assert.Contains(t, out, "Run setup wizard now? [Y/n]")
	assert.Contains(t, out, "Hi again.")
}

func TestRunOneShot(t *testing.T) {
	h := newRepl(t, "", mockDescriptor("Mock", mockclient.Step{Response: mockclient.Text("42")}))
	require.NoError(t, h.agent.RunOneShot(context.Background(), "answer?"))
	assert.Contains(t, h.out.String(), "42")

	h = newRepl(t, "", mockDescriptor("Broken", mockclient.Step{Err: errors.New("connection refused")}))
	err := h.agent.RunOneShot(context.Background(), "answer?")
	require.Error(t, err)
	assert.Contains(t, h.out.String(), "All providers failed. Last error: connection refused")
}
