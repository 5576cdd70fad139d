// Package store provides storage backends for conversation session state.
//
// It includes an in-memory store for tests and single-process deployments,
// plus SQLite, PostgreSQL, and Redis backends. All backends implement
// optimistic concurrency: every save carries the version the caller loaded,
// and a mismatch with the stored version fails with ErrVersionConflict.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/BTreeMap/CookFlow/internal/models"
)

// Store is the persistence interface for conversation sessions.
type Store interface {
	// LoadConversationState returns the state for sessionID, or (nil, nil)
	// when the session does not exist.
	LoadConversationState(ctx context.Context, sessionID string) (*models.ConversationState, error)

	// SaveConversationState persists state when the stored version still
	// equals expectedVersion (0 for a session that has never been saved).
	// On success the state's Version is advanced to expectedVersion+1; on a
	// mismatch it returns models.ErrVersionConflict and stores nothing.
	SaveConversationState(ctx context.Context, state *models.ConversationState, expectedVersion int64) error

	// DeleteConversationState removes the session. Deleting a session that
	// does not exist is not an error.
	DeleteConversationState(ctx context.Context, sessionID string) error

	// SweepExpiredSessions deletes sessions whose last update is older than
	// ttl and reports how many were removed. Backends with native expiry
	// may remove nothing here.
	SweepExpiredSessions(ctx context.Context, ttl time.Duration) (int, error)

	// Close releases backend resources.
	Close() error
}

// InMemoryStore keeps sessions in a process-local map.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.ConversationState
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*models.ConversationState)}
}

// LoadConversationState implements Store.
func (s *InMemoryStore) LoadConversationState(ctx context.Context, sessionID string) (*models.ConversationState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	return state.Clone(), nil
}

// SaveConversationState implements Store.
func (s *InMemoryStore) SaveConversationState(ctx context.Context, state *models.ConversationState, expectedVersion int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if state == nil || state.SessionID == "" {
		return fmt.Errorf("conversation state missing session ID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.sessions[state.SessionID]
	if !exists {
		if expectedVersion != 0 {
			return models.ErrVersionConflict
		}
	} else if current.Version != expectedVersion {
		return models.ErrVersionConflict
	}

	stored := state.Clone()
	stored.Version = expectedVersion + 1
	s.sessions[state.SessionID] = stored
	state.Version = stored.Version
	return nil
}

// DeleteConversationState implements Store.
func (s *InMemoryStore) DeleteConversationState(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// SweepExpiredSessions implements Store.
func (s *InMemoryStore) SweepExpiredSessions(ctx context.Context, ttl time.Duration) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, state := range s.sessions {
		if state.UpdatedAt.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// Close implements Store.
func (s *InMemoryStore) Close() error {
	return nil
}
