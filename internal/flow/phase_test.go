package flow

import (
	"strings"
	"testing"

	"github.com/BTreeMap/CookFlow/internal/models"
)

func TestPhaseTrackerFullTurnWalk(t *testing.T) {
	tracker := NewPhaseTracker()
	const session = "walk"

	if got := tracker.Phase(session); got != models.StateIdle {
		t.Fatalf("initial phase = %s, want %s", got, models.StateIdle)
	}

	steps := []struct{ from, to models.StateType }{
		{models.StateIdle, models.StateClassifying},
		{models.StateClassifying, models.StateMerging},
		{models.StateMerging, models.StateRetrieving},
		{models.StateRetrieving, models.StateGenerating},
		{models.StateGenerating, models.StateValidating},
		{models.StateValidating, models.StateGenerating},
		{models.StateGenerating, models.StateValidating},
		{models.StateValidating, models.StateResponding},
		{models.StateResponding, models.StateIdle},
	}
	for _, step := range steps {
		if err := tracker.Transition(session, step.from, step.to); err != nil {
			t.Fatalf("Transition(%s -> %s) failed: %v", step.from, step.to, err)
		}
	}
	if got := tracker.Phase(session); got != models.StateIdle {
		t.Errorf("phase after full walk = %s, want %s", got, models.StateIdle)
	}
}

func TestPhaseTrackerShortcutEdges(t *testing.T) {
	tracker := NewPhaseTracker()
	const session = "ack"

	// A constraint acknowledgment goes straight from MERGING to RESPONDING.
	for _, step := range []struct{ from, to models.StateType }{
		{models.StateIdle, models.StateClassifying},
		{models.StateClassifying, models.StateMerging},
		{models.StateMerging, models.StateResponding},
		{models.StateResponding, models.StateIdle},
	} {
		if err := tracker.Transition(session, step.from, step.to); err != nil {
			t.Fatalf("Transition(%s -> %s) failed: %v", step.from, step.to, err)
		}
	}
}

func TestPhaseTrackerRejectsMismatchedCurrent(t *testing.T) {
	tracker := NewPhaseTracker()
	const session = "mismatch"

	err := tracker.Transition(session, models.StateMerging, models.StateRetrieving)
	if err == nil {
		t.Fatal("Transition from a phase the session is not in should fail")
	}
	if !strings.Contains(err.Error(), "expected MERGING, current is IDLE") {
		t.Errorf("error = %q, want the expected/current mismatch", err)
	}
	if got := tracker.Phase(session); got != models.StateIdle {
		t.Errorf("phase after failed transition = %s, want %s", got, models.StateIdle)
	}
}

func TestPhaseTrackerRejectsUnknownEdge(t *testing.T) {
	tracker := NewPhaseTracker()
	const session = "edge"

	if err := tracker.Transition(session, models.StateIdle, models.StateClassifying); err != nil {
		t.Fatalf("Transition to CLASSIFYING failed: %v", err)
	}
	if err := tracker.Transition(session, models.StateClassifying, models.StateResponding); err == nil {
		t.Fatal("CLASSIFYING -> RESPONDING is not an allowed edge")
	}
	if got := tracker.Phase(session); got != models.StateClassifying {
		t.Errorf("phase after rejected edge = %s, want %s", got, models.StateClassifying)
	}
}

func TestPhaseTrackerFailIsTerminal(t *testing.T) {
	tracker := NewPhaseTracker()
	const session = "broken"

	tracker.Fail(session)
	if got := tracker.Phase(session); got != models.StateFailed {
		t.Fatalf("phase after Fail = %s, want %s", got, models.StateFailed)
	}
	if err := tracker.Transition(session, models.StateFailed, models.StateIdle); err == nil {
		t.Fatal("transition out of FAILED should fail")
	}

	tracker.Reset(session)
	if got := tracker.Phase(session); got != models.StateIdle {
		t.Errorf("phase after Reset = %s, want %s", got, models.StateIdle)
	}
}

func TestPhaseTrackerSessionsAreIndependent(t *testing.T) {
	tracker := NewPhaseTracker()

	if err := tracker.Transition("a", models.StateIdle, models.StateClassifying); err != nil {
		t.Fatalf("Transition for session a failed: %v", err)
	}
	if got := tracker.Phase("b"); got != models.StateIdle {
		t.Errorf("phase of untouched session = %s, want %s", got, models.StateIdle)
	}
}
