// Package store provides storage backends for conversation session state.
//
// This file implements the Redis-backed store. Sessions live under
// cookflow:session:<id> with a native TTL refreshed on every save, so the
// periodic sweep has nothing to do on this backend.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/BTreeMap/CookFlow/internal/models"
)

const redisSessionKeyPrefix = "cookflow:session:"

// RedisStore persists sessions in Redis.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis store from a redis:// DSN in options.
func NewRedisStore(opts ...Option) (*RedisStore, error) {
	cfg := Opts{SessionTTL: DefaultSessionTTL}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("RedisStore.NewRedisStore: creating Redis store", "dsn_set", cfg.DSN != "", "session_ttl", cfg.SessionTTL)

	if cfg.DSN == "" {
		slog.Error("RedisStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	redisOpts, err := redis.ParseURL(cfg.DSN)
	if err != nil {
		slog.Error("RedisStore failed to parse DSN", "error", err)
		return nil, fmt.Errorf("failed to parse Redis DSN: %w", err)
	}

	client := redis.NewClient(redisOpts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		slog.Error("RedisStore ping failed", "error", err)
		client.Close()
		return nil, fmt.Errorf("Redis ping failed: %w", err)
	}

	slog.Debug("RedisStore.NewRedisStore: store ready")
	return &RedisStore{client: client, ttl: cfg.SessionTTL}, nil
}

func sessionKey(sessionID string) string {
	return redisSessionKeyPrefix + sessionID
}

// LoadConversationState implements Store.
func (s *RedisStore) LoadConversationState(ctx context.Context, sessionID string) (*models.ConversationState, error) {
	data, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		slog.Error("RedisStore.LoadConversationState failed", "error", err, "session_id", sessionID)
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}

	var state models.ConversationState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", sessionID, err)
	}
	return &state, nil
}

// SaveConversationState implements Store. The version check runs under WATCH
// so a concurrent save of the same session fails instead of clobbering it.
func (s *RedisStore) SaveConversationState(ctx context.Context, state *models.ConversationState, expectedVersion int64) error {
	if state == nil || state.SessionID == "" {
		return fmt.Errorf("conversation state missing session ID")
	}
	key := sessionKey(state.SessionID)

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			if expectedVersion != 0 {
				return models.ErrVersionConflict
			}
		case err != nil:
			return fmt.Errorf("failed to read session %s: %w", state.SessionID, err)
		default:
			var current models.ConversationState
			if err := json.Unmarshal(data, &current); err != nil {
				return fmt.Errorf("failed to decode session %s: %w", state.SessionID, err)
			}
			if current.Version != expectedVersion {
				return models.ErrVersionConflict
			}
		}

		stored := state.Clone()
		stored.Version = expectedVersion + 1
		payload, err := json.Marshal(stored)
		if err != nil {
			return fmt.Errorf("failed to encode session %s: %w", state.SessionID, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, s.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		state.Version = stored.Version
		return nil
	}

	err := s.client.Watch(ctx, txf, key)
	if errors.Is(err, redis.TxFailedErr) {
		slog.Debug("RedisStore.SaveConversationState: version conflict", "session_id", state.SessionID, "expected_version", expectedVersion)
		return models.ErrVersionConflict
	}
	if err != nil && !errors.Is(err, models.ErrVersionConflict) {
		slog.Error("RedisStore.SaveConversationState failed", "error", err, "session_id", state.SessionID)
	}
	return err
}

// DeleteConversationState implements Store.
func (s *RedisStore) DeleteConversationState(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		slog.Error("RedisStore.DeleteConversationState failed", "error", err, "session_id", sessionID)
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	return nil
}

// SweepExpiredSessions implements Store. Redis expires sessions natively via
// the TTL set on each save, so there is nothing to remove here.
func (s *RedisStore) SweepExpiredSessions(ctx context.Context, ttl time.Duration) (int, error) {
	return 0, nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
