package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// DevMode indicates if development logging is enabled
	DevMode = os.Getenv("DEV_MODE") == "1"
	// Logger is the shared logger instance
	Logger *log.Logger

	mu sync.Mutex
)

func init() {
	Logger = log.NewWithOptions(os.Stderr, log.Options{
		Level:  log.WarnLevel,
		Prefix: "jarvis",
	})
	if DevMode {
		Logger.SetLevel(log.DebugLevel)
	}
}

// Config controls where logs go once the REPL owns the terminal.
type Config struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Debug      bool
	JSON       bool
}

// Init redirects the shared logger to a rotating file. The returned closer
// flushes and closes the file.
func Init(cfg Config) (io.Closer, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("log path must be set")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	rotator := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
	}
	level := log.InfoLevel
	if cfg.Debug || DevMode {
		level = log.DebugLevel
	}
	formatter := log.TextFormatter
	if cfg.JSON {
		formatter = log.JSONFormatter
	}
	next := log.NewWithOptions(rotator, log.Options{
		Level:           level,
		Prefix:          "jarvis",
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       formatter,
	})

	mu.Lock()
	Logger = next
	mu.Unlock()
	return rotator, nil
}

// SetOutput swaps the logger's writer, mainly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	Logger.SetOutput(w)
}

func current() *log.Logger {
	mu.Lock()
	defer mu.Unlock()
	return Logger
}

// DevLog logs at debug level, visible with DEV_MODE=1 or --debug
func DevLog(format string, args ...interface{}) {
	current().Debugf(format, args...)
}

// UserLog logs important user-facing information
func UserLog(format string, args ...interface{}) {
	current().Infof(format, args...)
}

// ErrorLog logs errors (always visible)
func ErrorLog(format string, args ...interface{}) {
	current().Errorf(format, args...)
}
