// Package transcript keeps a local record of completed turns so the REPL can
// show recent history across restarts.
package transcript

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Outcome values recorded for a turn.
const (
	OutcomeAnswered = "answered"
	OutcomeFailed   = "failed"
	OutcomeTimeout  = "timeout"
	OutcomeAuth     = "auth"
	OutcomeCanceled = "canceled"
)

// Turn is one user request and how it ended.
type Turn struct {
	ID       int64
	Time     time.Time
	Provider string
	Outcome  string
	Attempts int
	Duration time.Duration
	User     string
	Answer   string
}

// Store persists turns in a SQLite file.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the transcript database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("transcript path must be set")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("prepare transcript dir: %w", err)
	}
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}

	if err := ensureSchema(db); err != nil {
		// An unreadable file is recreated rather than blocking startup.
		db.Close()
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			return nil, fmt.Errorf("init transcript schema: %w", err)
		}
		os.Remove(path + "-wal")
		os.Remove(path + "-shm")
		if db, err = openDB(path); err != nil {
			return nil, err
		}
		if err := ensureSchema(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("init transcript schema: %w", err)
		}
	}
	return &Store{db: db, path: path}, nil
}

func openDB(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	return db, nil
}

func ensureSchema(db *sql.DB) error {
	_, err := db.ExecContext(context.Background(), `
CREATE TABLE IF NOT EXISTS turns (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at TIMESTAMP NOT NULL,
	provider TEXT NOT NULL,
	outcome TEXT NOT NULL,
	attempts INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	user_text TEXT NOT NULL,
	answer TEXT NOT NULL
)`)
	return err
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Record appends a turn and returns its row id.
func (s *Store) Record(ctx context.Context, turn Turn) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("transcript store not initialized")
	}
	if turn.Time.IsZero() {
		turn.Time = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `
INSERT INTO turns (created_at, provider, outcome, attempts, duration_ms, user_text, answer)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		turn.Time.UTC(), turn.Provider, turn.Outcome, turn.Attempts,
		turn.Duration.Milliseconds(), turn.User, turn.Answer)
	if err != nil {
		return 0, fmt.Errorf("record turn: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns up to n turns, oldest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Turn, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("transcript store not initialized")
	}
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, created_at, provider, outcome, attempts, duration_ms, user_text, answer
FROM turns ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var (
			t  Turn
			ms int64
		)
		if err := rows.Scan(&t.ID, &t.Time, &t.Provider, &t.Outcome, &t.Attempts, &ms, &t.User, &t.Answer); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.Duration = time.Duration(ms) * time.Millisecond
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// Count returns the number of stored turns.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM turns`).Scan(&n)
	return n, err
}

// Clear removes every stored turn.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM turns`)
	return err
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
