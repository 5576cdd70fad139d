// Package sessionlock serializes turn processing per conversation session.
//
// Concurrent turns for the same session must not interleave, otherwise both
// would load the same state snapshot and the second commit would clobber the
// first. The registry hands out one in-process lock per session ID and
// reclaims locks that no goroutine is using.
package sessionlock

import (
	"context"
	"log/slog"
	"sync"
)

// Registry manages per-session locks keyed by session ID.
type Registry struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	ch   chan struct{}
	refs int
}

// NewRegistry creates an empty lock registry.
func NewRegistry() *Registry {
	return &Registry{locks: make(map[string]*sessionLock)}
}

// Acquire blocks until the lock for sessionID is free or ctx is done.
// On success it returns a release function that must be called to free the
// lock; calling release more than once is safe. On context cancellation it
// returns the context error and no lock is held.
func (r *Registry) Acquire(ctx context.Context, sessionID string) (func(), error) {
	r.mu.Lock()
	l, ok := r.locks[sessionID]
	if !ok {
		l = &sessionLock{ch: make(chan struct{}, 1)}
		r.locks[sessionID] = l
	}
	l.refs++
	r.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
	default:
		slog.Debug("Registry.Acquire: waiting for session lock", "session_id", sessionID)
		select {
		case l.ch <- struct{}{}:
		case <-ctx.Done():
			r.put(sessionID, l)
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			<-l.ch
			r.put(sessionID, l)
		})
	}
	return release, nil
}

// put drops one reference and reclaims the lock once nobody holds it.
func (r *Registry) put(sessionID string, l *sessionLock) {
	r.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(r.locks, sessionID)
	}
	r.mu.Unlock()
}

// Len reports how many sessions currently have a live lock entry.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locks)
}
