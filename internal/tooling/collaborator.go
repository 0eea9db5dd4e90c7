package tooling

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"jarvis/internal/logging"
)

// BinaryName is the tool-management binary every tool shells out to.
const BinaryName = "terminal-jarvis"

// NotFoundMessage is shown in place of tool output when the binary is missing.
const NotFoundMessage = "terminal-jarvis binary not found. Install it first: cargo install terminal-jarvis"

const noOutput = "(no output)"

// ErrCollaboratorNotFound is returned when the binary cannot be located.
var ErrCollaboratorNotFound = errors.New("terminal-jarvis binary not found")

// Quieter is raised for the duration of an interactive handoff so that
// anything drawing on the terminal (the progress spinner) can step aside.
type Quieter interface {
	Raise()
	Clear()
}

// Collaborator runs the terminal-jarvis binary.
type Collaborator struct {
	// Binary overrides discovery when set.
	Binary string
	Quiet  Quieter

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	lookPath func(string) (string, error)
	getwd    func() (string, error)
	getenv   func(string) string
	homeDir  func() (string, error)
}

// NewCollaborator returns a Collaborator wired to the process terminal.
func NewCollaborator(binary string, quiet Quieter) *Collaborator {
	return &Collaborator{
		Binary: strings.TrimSpace(binary),
		Quiet:  quiet,
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Locate finds the binary. The search order is the explicit override, PATH,
// cargo target directories walking up from the working directory, then
// $CARGO_HOME/bin.
func (c *Collaborator) Locate() (string, error) {
	name := BinaryName
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	if c.Binary != "" {
		if isExecutable(c.Binary) {
			return c.Binary, nil
		}
		return "", fmt.Errorf("%w: %s", ErrCollaboratorNotFound, c.Binary)
	}
	if path, err := c.look(name); err == nil {
		return path, nil
	}

	if wd, err := c.wd(); err == nil {
		dir := wd
		for {
			for _, profile := range []string{"release", "debug"} {
				candidate := filepath.Join(dir, "target", profile, name)
				if isExecutable(candidate) {
					return candidate, nil
				}
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	cargoHome := c.env("CARGO_HOME")
	if cargoHome == "" {
		if home, err := c.home(); err == nil {
			cargoHome = filepath.Join(home, ".cargo")
		}
	}
	if cargoHome != "" {
		candidate := filepath.Join(cargoHome, "bin", name)
		if isExecutable(candidate) {
			return candidate, nil
		}
	}
	return "", ErrCollaboratorNotFound
}

// Run invokes the binary with captured output. stderr is appended only when
// the command exits non-zero. Empty output becomes "(no output)".
func (c *Collaborator) Run(ctx context.Context, args ...string) (string, error) {
	path, err := c.Locate()
	if err != nil {
		return "", err
	}
	logging.DevLog("collaborator: %s %s", path, strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	runErr := cmd.Run()

	out := strings.TrimSpace(stdout.String())
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return "", fmt.Errorf("run %s: %w", BinaryName, runErr)
		}
		if errText := strings.TrimSpace(stderr.String()); errText != "" {
			if out != "" {
				out += "\n"
			}
			out += errText
		}
	}
	if out == "" {
		out = noOutput
	}
	return out, nil
}

// Launch hands the terminal to `terminal-jarvis run <name>` until it exits.
// The quieter is raised for the whole handoff.
func (c *Collaborator) Launch(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("tool name is required")
	}
	path, err := c.Locate()
	if err != nil {
		return "", err
	}
	if c.Quiet != nil {
		c.Quiet.Raise()
		defer c.Quiet.Clear()
	}

	logging.UserLog("handing terminal to %s", name)
	// The child owns the terminal; it is not tied to ctx so a turn timeout
	// cannot kill an interactive session.
	cmd := exec.Command(path, "run", name)
	cmd.Stdin = c.Stdin
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return "", fmt.Errorf("launch %s: %w", name, err)
		}
		logging.DevLog("collaborator: %s exited with %d", name, exitErr.ExitCode())
	}
	return fmt.Sprintf("Returned from %s. Back in Terminal Jarvis home.", name), nil
}

// Interactive runs the binary with the terminal attached, for commands such
// as `auth manage` that prompt the user themselves.
func (c *Collaborator) Interactive(ctx context.Context, args ...string) error {
	path, err := c.Locate()
	if err != nil {
		return err
	}
	if c.Quiet != nil {
		c.Quiet.Raise()
		defer c.Quiet.Clear()
	}
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdin = c.Stdin
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil
		}
		return fmt.Errorf("run %s: %w", BinaryName, err)
	}
	return nil
}

func (c *Collaborator) look(name string) (string, error) {
	if c.lookPath != nil {
		return c.lookPath(name)
	}
	return exec.LookPath(name)
}

func (c *Collaborator) wd() (string, error) {
	if c.getwd != nil {
		return c.getwd()
	}
	return os.Getwd()
}

func (c *Collaborator) env(key string) string {
	if c.getenv != nil {
		return c.getenv(key)
	}
	return os.Getenv(key)
}

func (c *Collaborator) home() (string, error) {
	if c.homeDir != nil {
		return c.homeDir()
	}
	return os.UserHomeDir()
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode()&0o111 != 0
}
