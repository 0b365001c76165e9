// Package transcript keeps a local, best-effort log of chat turns for
// offline inspection. It is observability only: a failed write never fails
// the request, and nothing reads it on the request path.
package transcript

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Turn is one completed (or failed) chat exchange.
type Turn struct {
	ID          string
	ThreadID    string
	Topic       string
	UserMessage string
	Reply       string
	Status      string
	ErrorMsg    string
	Duration    time.Duration
	CreatedAt   time.Time
}

// Store is a SQLite-backed turn log.
type Store struct {
	db *sql.DB
}

// New opens (and if needed initializes) the turn log at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS turns (
			id TEXT PRIMARY KEY,
			thread_id TEXT NOT NULL,
			topic TEXT,
			user_message TEXT NOT NULL,
			reply TEXT,
			status TEXT NOT NULL,
			error_message TEXT,
			duration_ns INTEGER,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_turns_thread ON turns(thread_id)`,
		`CREATE INDEX IF NOT EXISTS idx_turns_status ON turns(status)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Append records a turn. Missing IDs and timestamps are filled in.
func (s *Store) Append(ctx context.Context, t Turn) error {
	if t.ID == "" {
		t.ID = "turn_" + uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO turns (id, thread_id, topic, user_message, reply, status, error_message, duration_ns, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ThreadID, t.Topic, t.UserMessage, t.Reply, t.Status, t.ErrorMsg, t.Duration.Nanoseconds(), t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert turn: %w", err)
	}
	return nil
}

// ListByThread returns a thread's turns, oldest first.
func (s *Store) ListByThread(ctx context.Context, threadID string) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, thread_id, topic, user_message, reply, status, error_message, duration_ns, created_at
		 FROM turns WHERE thread_id = ? ORDER BY created_at ASC, rowid ASC`,
		threadID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		var durationNs int64
		if err := rows.Scan(&t.ID, &t.ThreadID, &t.Topic, &t.UserMessage, &t.Reply,
			&t.Status, &t.ErrorMsg, &durationNs, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		t.Duration = time.Duration(durationNs)
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
