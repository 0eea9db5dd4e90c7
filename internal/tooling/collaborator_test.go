package tooling

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
)

const fakeScript = `#!/bin/sh
case "$1" in
  list) echo "claude   installed" ;;
  fail) echo "partial"; echo "boom" >&2; exit 3 ;;
  silent) exit 0 ;;
  noisy-ok) echo "fine"; echo "ignored" >&2 ;;
  run) echo "running $2" ;;
  *) echo "args: $*" ;;
esac
`

func writeFakeBinary(t *testing.T, dir string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script collaborator requires a unix shell")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := filepath.Join(dir, BinaryName)
	if err := os.WriteFile(path, []byte(fakeScript), 0o755); err != nil {
		t.Fatalf("write fake binary: %v", err)
	}
	return path
}

func notOnPath(string) (string, error) { return "", errors.New("not found") }

type countingQuieter struct {
	raised  atomic.Int32
	cleared atomic.Int32
}

func (q *countingQuieter) Raise() { q.raised.Add(1) }
func (q *countingQuieter) Clear() { q.cleared.Add(1) }

func TestLocateSearchOrder(t *testing.T) {
	root := t.TempDir()
	project := filepath.Join(root, "project", "nested")
	if err := os.MkdirAll(project, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	cargo := filepath.Join(root, "cargo")
	cargoBin := writeFakeBinary(t, filepath.Join(cargo, "bin"))

	c := &Collaborator{
		lookPath: notOnPath,
		getwd:    func() (string, error) { return project, nil },
		getenv: func(key string) string {
			if key == "CARGO_HOME" {
				return cargo
			}
			return ""
		},
	}

	got, err := c.Locate()
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if got != cargoBin {
		t.Fatalf("expected cargo home binary %s, got %s", cargoBin, got)
	}

	debugBin := writeFakeBinary(t, filepath.Join(root, "project", "target", "debug"))
	if got, _ = c.Locate(); got != debugBin {
		t.Fatalf("expected debug build %s, got %s", debugBin, got)
	}

	releaseBin := writeFakeBinary(t, filepath.Join(root, "project", "target", "release"))
	if got, _ = c.Locate(); got != releaseBin {
		t.Fatalf("expected release build %s, got %s", releaseBin, got)
	}

	c.lookPath = func(string) (string, error) { return "/usr/bin/terminal-jarvis", nil }
	if got, _ = c.Locate(); got != "/usr/bin/terminal-jarvis" {
		t.Fatalf("expected PATH to win, got %s", got)
	}
}

func TestLocateMissing(t *testing.T) {
	empty := t.TempDir()
	c := &Collaborator{
		lookPath: notOnPath,
		getwd:    func() (string, error) { return empty, nil },
		getenv:   func(string) string { return filepath.Join(empty, "cargo") },
	}
	if _, err := c.Locate(); !errors.Is(err, ErrCollaboratorNotFound) {
		t.Fatalf("expected ErrCollaboratorNotFound, got %v", err)
	}

	c.Binary = filepath.Join(empty, "nope")
	if _, err := c.Locate(); !errors.Is(err, ErrCollaboratorNotFound) {
		t.Fatalf("expected override miss to report not found, got %v", err)
	}
}

func TestRunCapturedOutput(t *testing.T) {
	bin := writeFakeBinary(t, t.TempDir())
	c := &Collaborator{Binary: bin}
	ctx := context.Background()

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"list"}, "claude   installed"},
		{[]string{"fail"}, "partial\nboom"},
		{[]string{"silent"}, "(no output)"},
		{[]string{"noisy-ok"}, "fine"},
		{[]string{"auth", "help", "claude"}, "args: auth help claude"},
	}
	for _, tt := range tests {
		got, err := c.Run(ctx, tt.args...)
		if err != nil {
			t.Fatalf("run %v: %v", tt.args, err)
		}
		if got != tt.want {
			t.Errorf("run %v: expected %q, got %q", tt.args, tt.want, got)
		}
	}
}

func TestLaunchRaisesQuieter(t *testing.T) {
	bin := writeFakeBinary(t, t.TempDir())
	var out bytes.Buffer
	q := &countingQuieter{}
	c := &Collaborator{Binary: bin, Quiet: q, Stdin: strings.NewReader(""), Stdout: &out, Stderr: &out}

	msg, err := c.Launch(context.Background(), "claude")
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	if msg != "Returned from claude. Back in Terminal Jarvis home." {
		t.Fatalf("unexpected launch message %q", msg)
	}
	if !strings.Contains(out.String(), "running claude") {
		t.Fatalf("child output not forwarded: %q", out.String())
	}
	if q.raised.Load() != 1 || q.cleared.Load() != 1 {
		t.Fatalf("expected one raise and one clear, got %d/%d", q.raised.Load(), q.cleared.Load())
	}

	if _, err := c.Launch(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty tool name")
	}
}

func TestRegistryDispatch(t *testing.T) {
	bin := writeFakeBinary(t, t.TempDir())
	var out bytes.Buffer
	c := &Collaborator{Binary: bin, Stdin: strings.NewReader(""), Stdout: &out, Stderr: &out}
	reg := NewRegistry(DefaultTools(c)...)
	ctx := context.Background()

	if got := len(reg.Definitions()); got != 9 {
		t.Fatalf("expected 9 tool definitions, got %d", got)
	}

	text, disturbed := reg.Dispatch(ctx, "get_tool_info", `{"tool_name":"aider"}`)
	if text != "args: info aider" || disturbed {
		t.Fatalf("get_tool_info: %q disturbed=%v", text, disturbed)
	}

	text, _ = reg.Dispatch(ctx, "update_tool", `{}`)
	if text != "args: update" {
		t.Fatalf("update_tool without name: %q", text)
	}

	text, _ = reg.Dispatch(ctx, "show_config", "")
	if text != "args: config show" {
		t.Fatalf("show_config: %q", text)
	}

	text, disturbed = reg.Dispatch(ctx, "launch_tool", `{"tool_name":"goose"}`)
	if !disturbed {
		t.Fatalf("launch_tool should disturb the session, got %q", text)
	}

	text, _ = reg.Dispatch(ctx, "install_tool", `{}`)
	if !strings.Contains(text, "tool_name is required") {
		t.Fatalf("expected missing argument error, got %q", text)
	}

	text, _ = reg.Dispatch(ctx, "format_disk", `{}`)
	if text != "unknown tool: format_disk" {
		t.Fatalf("unknown tool: %q", text)
	}

	text, _ = reg.Dispatch(ctx, "list_tools", `{not json`)
	if !strings.HasPrefix(text, "invalid arguments for list_tools") {
		t.Fatalf("bad json: %q", text)
	}
}

func TestDispatchReportsMissingBinaryInline(t *testing.T) {
	c := &Collaborator{Binary: filepath.Join(t.TempDir(), "missing")}
	reg := NewRegistry(DefaultTools(c)...)

	text, disturbed := reg.Dispatch(context.Background(), "launch_tool", `{"tool_name":"claude"}`)
	if text != NotFoundMessage {
		t.Fatalf("expected not-found message, got %q", text)
	}
	if disturbed {
		t.Fatal("failed launch must not mark the session disturbed")
	}
}
