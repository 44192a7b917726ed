// Package trace persists a per-run audit of dispatched effects to SQLite.
// Tracing is optional diagnostics: recording failures are logged and
// swallowed, never surfaced to the dispatch loop.
package trace

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mattjoyce/jqbridge/internal/log"
	"github.com/mattjoyce/jqbridge/internal/protocol"
)

// Open opens (and creates if needed) the trace database at path and
// ensures required tables exist.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("trace path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create trace directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open trace db: %w", err)
	}

	// Basic health check + apply a few safe pragmas.
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(pctx, "PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign_keys: %w", err)
	}
	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if err := bootstrap(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func bootstrap(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS effect_log (
  id          INTEGER PRIMARY KEY AUTOINCREMENT,
  session_id  TEXT NOT NULL,
  seq         INTEGER NOT NULL,
  op          TEXT NOT NULL,
  request     JSON NOT NULL,
  status      TEXT NOT NULL,
  err_kind    TEXT,
  err_message TEXT,
  elapsed_us  INTEGER NOT NULL,
  created_at  TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS effect_log_session_seq_idx ON effect_log(session_id, seq);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap trace db: %w", err)
		}
	}
	return nil
}

// Store records the effects of one session. Implements session.Recorder.
type Store struct {
	db        *sql.DB
	sessionID string
	seq       atomic.Int64
	logger    *slog.Logger
}

// NewStore creates a recorder bound to one session ID.
func NewStore(db *sql.DB, sessionID string) *Store {
	return &Store{
		db:        db,
		sessionID: sessionID,
		logger:    log.WithComponent("trace"),
	}
}

// Record inserts one effect row. Errors are logged, not returned: a broken
// trace database must not break the session.
func (s *Store) Record(op, requestLine string, outcome protocol.Outcome, elapsed time.Duration) {
	seq := s.seq.Add(1)
	status := "ok"
	var errKind, errMessage sql.NullString
	if outcome.Err != nil {
		status = "err"
		errKind = sql.NullString{String: string(outcome.Err.Kind), Valid: true}
		errMessage = sql.NullString{String: outcome.Err.Message, Valid: true}
	}

	_, err := s.db.Exec(
		`INSERT INTO effect_log (session_id, seq, op, request, status, err_kind, err_message, elapsed_us, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.sessionID, seq, op, requestLine, status, errKind, errMessage,
		elapsed.Microseconds(), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		s.logger.Warn("failed to record effect", "op", op, "error", err)
	}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
