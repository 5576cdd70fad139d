// Package store provides storage backends for conversation session state.
//
// This file implements the SQLite-backed store.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"

	"github.com/BTreeMap/CookFlow/internal/models"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists sessions in a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLite store at the DSN from options. The DSN is
// a file path; missing parent directories are created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("SQLiteStore.NewSQLiteStore: creating SQLite store", "dsn_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("SQLiteStore failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("SQLiteStore failed to open connection", "error", err)
		return nil, err
	}
	// A single connection serializes writers, avoiding SQLITE_BUSY under
	// concurrent turns.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		slog.Error("SQLiteStore ping failed", "error", err)
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("SQLiteStore failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	slog.Debug("SQLiteStore.NewSQLiteStore: store ready")
	return &SQLiteStore{db: db}, nil
}

// LoadConversationState implements Store.
func (s *SQLiteStore) LoadConversationState(ctx context.Context, sessionID string) (*models.ConversationState, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT state, version FROM conversation_sessions WHERE session_id = ?`, sessionID)

	var payload string
	var version int64
	if err := row.Scan(&payload, &version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Error("SQLiteStore.LoadConversationState failed", "error", err, "session_id", sessionID)
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}

	var state models.ConversationState
	if err := json.Unmarshal([]byte(payload), &state); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", sessionID, err)
	}
	state.Version = version
	return &state, nil
}

// SaveConversationState implements Store.
func (s *SQLiteStore) SaveConversationState(ctx context.Context, state *models.ConversationState, expectedVersion int64) error {
	if state == nil || state.SessionID == "" {
		return fmt.Errorf("conversation state missing session ID")
	}

	stored := state.Clone()
	stored.Version = expectedVersion + 1
	payload, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", state.SessionID, err)
	}

	var res sql.Result
	if expectedVersion == 0 {
		res, err = s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO conversation_sessions (session_id, state, version, created_at, updated_at)
			 VALUES (?, ?, 1, ?, ?)`,
			state.SessionID, string(payload), stored.CreatedAt.UTC(), stored.UpdatedAt.UTC())
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE conversation_sessions SET state = ?, version = ?, updated_at = ?
			 WHERE session_id = ? AND version = ?`,
			string(payload), stored.Version, stored.UpdatedAt.UTC(), state.SessionID, expectedVersion)
	}
	if err != nil {
		slog.Error("SQLiteStore.SaveConversationState failed", "error", err, "session_id", state.SessionID)
		return fmt.Errorf("failed to save session %s: %w", state.SessionID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check save result for session %s: %w", state.SessionID, err)
	}
	if affected == 0 {
		slog.Debug("SQLiteStore.SaveConversationState: version conflict", "session_id", state.SessionID, "expected_version", expectedVersion)
		return models.ErrVersionConflict
	}

	state.Version = stored.Version
	return nil
}

// DeleteConversationState implements Store.
func (s *SQLiteStore) DeleteConversationState(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM conversation_sessions WHERE session_id = ?`, sessionID); err != nil {
		slog.Error("SQLiteStore.DeleteConversationState failed", "error", err, "session_id", sessionID)
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	return nil
}

// SweepExpiredSessions implements Store.
func (s *SQLiteStore) SweepExpiredSessions(ctx context.Context, ttl time.Duration) (int, error) {
	cutoff := time.Now().Add(-ttl).UTC()
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM conversation_sessions WHERE updated_at < ?`, cutoff)
	if err != nil {
		slog.Error("SQLiteStore.SweepExpiredSessions failed", "error", err)
		return 0, fmt.Errorf("failed to sweep expired sessions: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count swept sessions: %w", err)
	}
	if affected > 0 {
		slog.Info("SQLiteStore.SweepExpiredSessions: removed expired sessions", "count", affected, "ttl", ttl)
	}
	return int(affected), nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
