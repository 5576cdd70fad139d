// Package flow implements the per-turn dialogue pipeline: intent
// classification, constraint extraction and merging, retrieval-grounded
// generation, validation with a bounded regeneration budget, and the
// all-or-nothing session commit.
package flow

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/BTreeMap/CookFlow/internal/models"
)

// phaseTransitions lists the allowed edges of the turn state machine. A turn
// may skip phases its intent does not need (a chat turn never retrieves, a
// constraint acknowledgment never generates), so edges jump forward; the only
// backward edge is VALIDATING back to GENERATING for a regeneration attempt.
var phaseTransitions = map[models.StateType][]models.StateType{
	models.StateIdle:        {models.StateClassifying},
	models.StateClassifying: {models.StateMerging},
	models.StateMerging:     {models.StateRetrieving, models.StateGenerating, models.StateResponding},
	models.StateRetrieving:  {models.StateGenerating, models.StateResponding},
	models.StateGenerating:  {models.StateValidating, models.StateResponding},
	models.StateValidating:  {models.StateGenerating, models.StateResponding},
	models.StateResponding:  {models.StateIdle},
}

// PhaseTracker records which phase of a turn each session is currently in.
// Phases are volatile: they exist for inspection and transition checking,
// never persist, and reset to IDLE when the process restarts. The mutex
// guards only the map; no I/O ever happens while it is held.
type PhaseTracker struct {
	mu     sync.RWMutex
	phases map[string]models.StateType
}

// NewPhaseTracker creates an empty tracker. Sessions it has never seen are in
// phase IDLE.
func NewPhaseTracker() *PhaseTracker {
	return &PhaseTracker{phases: make(map[string]models.StateType)}
}

// Phase returns the current phase for a session.
func (t *PhaseTracker) Phase(sessionID string) models.StateType {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if phase, ok := t.phases[sessionID]; ok {
		return phase
	}
	return models.StateIdle
}

// Transition moves a session from one phase to another, verifying both that
// the session is currently in the expected phase and that the edge is an
// allowed one. Moving to IDLE drops the map entry.
func (t *PhaseTracker) Transition(sessionID string, from, to models.StateType) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	current, ok := t.phases[sessionID]
	if !ok {
		current = models.StateIdle
	}
	if current != from {
		err := fmt.Errorf("invalid phase transition for session %s: expected %s, current is %s", sessionID, from, current)
		slog.Error("PhaseTracker.Transition: unexpected current phase", "sessionID", sessionID, "expected", from, "current", current)
		return err
	}
	if current.IsTerminal() {
		return fmt.Errorf("session %s is in terminal phase %s", sessionID, current)
	}
	allowed := false
	for _, next := range phaseTransitions[from] {
		if next == to {
			allowed = true
			break
		}
	}
	if !allowed {
		err := fmt.Errorf("invalid phase transition for session %s: %s -> %s", sessionID, from, to)
		slog.Error("PhaseTracker.Transition: edge not allowed", "sessionID", sessionID, "from", from, "to", to)
		return err
	}

	if to == models.StateIdle {
		delete(t.phases, sessionID)
	} else {
		t.phases[sessionID] = to
	}
	slog.Debug("PhaseTracker.Transition: moved", "sessionID", sessionID, "from", from, "to", to)
	return nil
}

// Fail forces a session into the terminal FAILED phase, from any phase.
func (t *PhaseTracker) Fail(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phases[sessionID] = models.StateFailed
	slog.Warn("PhaseTracker.Fail: session marked failed", "sessionID", sessionID)
}

// Reset drops a session back to IDLE unconditionally. Used when a turn aborts
// mid-flight (cancellation) and when a failed backend has recovered.
func (t *PhaseTracker) Reset(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.phases, sessionID)
}
