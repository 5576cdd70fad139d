// Package store provides storage backends for conversation session state.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	_ "github.com/lib/pq"

	"github.com/BTreeMap/CookFlow/internal/models"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists sessions in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "dsn_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("PostgresStore failed to open connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("PostgresStore ping failed", "error", err)
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("PostgresStore failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	slog.Debug("PostgresStore.NewPostgresStore: store ready")
	return &PostgresStore{db: db}, nil
}

// LoadConversationState implements Store.
func (s *PostgresStore) LoadConversationState(ctx context.Context, sessionID string) (*models.ConversationState, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT state, version FROM conversation_sessions WHERE session_id = $1`, sessionID)

	var payload string
	var version int64
	if err := row.Scan(&payload, &version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Error("PostgresStore.LoadConversationState failed", "error", err, "session_id", sessionID)
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
func (s *PostgresStore) SaveConversationState(ctx context.Context, state *models.ConversationState, expectedVersion int64) error {
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
			`INSERT INTO conversation_sessions (session_id, state, version, created_at, updated_at)
			 VALUES ($1, $2, 1, $3, $4)
			 ON CONFLICT (session_id) DO NOTHING`,
			state.SessionID, string(payload), stored.CreatedAt.UTC(), stored.UpdatedAt.UTC())
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE conversation_sessions SET state = $1, version = $2, updated_at = $3
			 WHERE session_id = $4 AND version = $5`,
			string(payload), stored.Version, stored.UpdatedAt.UTC(), state.SessionID, expectedVersion)
	}
	if err != nil {
		slog.Error("PostgresStore.SaveConversationState failed", "error", err, "session_id", state.SessionID)
		return fmt.Errorf("failed to save session %s: %w", state.SessionID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check save result for session %s: %w", state.SessionID, err)
	}
	if affected == 0 {
		slog.Debug("PostgresStore.SaveConversationState: version conflict", "session_id", state.SessionID, "expected_version", expectedVersion)
		return models.ErrVersionConflict
	}

	state.Version = stored.Version
	return nil
}

// DeleteConversationState implements Store.
func (s *PostgresStore) DeleteConversationState(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM conversation_sessions WHERE session_id = $1`, sessionID); err != nil {
		slog.Error("PostgresStore.DeleteConversationState failed", "error", err, "session_id", sessionID)
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	return nil
}

// SweepExpiredSessions implements Store.
func (s *PostgresStore) SweepExpiredSessions(ctx context.Context, ttl time.Duration) (int, error) {
	cutoff := time.Now().Add(-ttl).UTC()
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM conversation_sessions WHERE updated_at < $1`, cutoff)
	if err != nil {
		slog.Error("PostgresStore.SweepExpiredSessions failed", "error", err)
		return 0, fmt.Errorf("failed to sweep expired sessions: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count swept sessions: %w", err)
	}
	if affected > 0 {
		slog.Info("PostgresStore.SweepExpiredSessions: removed expired sessions", "count", affected, "ttl", ttl)
	}
	return int(affected), nil
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
