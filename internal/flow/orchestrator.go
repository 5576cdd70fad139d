package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/CookFlow/internal/constraint"
	"github.com/BTreeMap/CookFlow/internal/genai"
	"github.com/BTreeMap/CookFlow/internal/models"
	"github.com/BTreeMap/CookFlow/internal/retrieval"
	"github.com/BTreeMap/CookFlow/internal/sessionlock"
	"github.com/BTreeMap/CookFlow/internal/store"
	"github.com/BTreeMap/CookFlow/internal/util"
)

const (
	// DefaultRetryBudget is how many regeneration attempts follow a rejected
	// or deficient recipe draft. A budget of n allows n+1 generator calls.
	DefaultRetryBudget = 2
	// DefaultMaxHistoryTurns bounds the stored conversation history.
	DefaultMaxHistoryTurns = 50
)

// Orchestrator drives one dialogue turn end to end: classify the utterance,
// extract and merge constraints, retrieve grounding, generate and validate a
// reply, and commit the session state. Turns for the same session are
// serialized; the commit is all or nothing.
type Orchestrator struct {
	store      store.Store
	classifier *Classifier
	extractor  *Extractor
	generator  *Generator
	merger     *constraint.Merger
	validator  *constraint.Validator
	gate       *retrieval.Gate
	phases     *PhaseTracker
	locks      *sessionlock.Registry

	retryBudget     int
	maxHistoryTurns int
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithRetryBudget sets the regeneration budget for rejected drafts.
func WithRetryBudget(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n >= 0 {
			o.retryBudget = n
		}
	}
}

// WithHistoryCap bounds how many history turns a session retains.
func WithHistoryCap(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxHistoryTurns = n
		}
	}
}

// NewOrchestrator wires the turn pipeline. A nil model client degrades the
// classifier and extractor to keyword rules and makes generation report the
// model as unavailable; a nil gate disables retrieval grounding.
func NewOrchestrator(st store.Store, client genai.ClientInterface, gate *retrieval.Gate, table *constraint.Table, opts ...OrchestratorOption) *Orchestrator {
	if table == nil {
		table = constraint.DefaultTable()
	}
	o := &Orchestrator{
		store:           st,
		classifier:      NewClassifier(client, table),
		extractor:       NewExtractor(client, table),
		generator:       NewGenerator(client),
		merger:          constraint.NewMerger(table),
		validator:       constraint.NewValidator(table),
		gate:            gate,
		phases:          NewPhaseTracker(),
		locks:           sessionlock.NewRegistry(),
		retryBudget:     DefaultRetryBudget,
		maxHistoryTurns: DefaultMaxHistoryTurns,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// turnOutcome carries a handler's result back to ProcessTurn. commit=false
// means the turn must leave the stored session untouched.
type turnOutcome struct {
	reply    string
	verdict  models.TurnVerdict
	grounded bool
	commit   bool
	recipe   *models.RecipeDraft
}

// CreateSession makes sure a session exists and returns its state. Creating
// a session that already exists is idempotent.
func (o *Orchestrator) CreateSession(ctx context.Context, sessionID string) (*models.ConversationState, error) {
	existing, err := o.store.LoadConversationState(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session %s: %w", sessionID, err)
	}
	if existing != nil {
		return existing, nil
	}

	state := models.NewConversationState(sessionID)
	if err := o.store.SaveConversationState(ctx, state, 0); err != nil {
		if errors.Is(err, models.ErrVersionConflict) {
			// Lost a create race; the session exists now.
			existing, loadErr := o.store.LoadConversationState(ctx, sessionID)
			if loadErr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("failed to create session %s: %w", sessionID, err)
	}
	slog.Info("Orchestrator.CreateSession: session created", "session_id", sessionID)
	return state, nil
}

// SessionStatus reports the stored state and live phase of a session.
func (o *Orchestrator) SessionStatus(ctx context.Context, sessionID string) (*models.SessionStatus, error) {
	state, err := o.store.LoadConversationState(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, models.ErrSessionNotFound
	}
	return &models.SessionStatus{
		SessionID:   state.SessionID,
		Constraints: state.Constraints,
		TurnCount:   state.TurnCount,
		Phase:       o.phases.Phase(sessionID),
		UpdatedAt:   state.UpdatedAt,
		Version:     state.Version,
	}, nil
}

// EndSession deletes a session's stored state and clears its live phase.
func (o *Orchestrator) EndSession(ctx context.Context, sessionID string) error {
	if err := o.store.DeleteConversationState(ctx, sessionID); err != nil {
		return err
	}
	o.phases.Reset(sessionID)
	slog.Info("Orchestrator.EndSession: session ended", "session_id", sessionID)
	return nil
}

// ProcessTurn runs one utterance through the full pipeline and returns the
// reply. A turn against an unknown session mints it on commit. On any error
// or non-committing outcome the stored state is untouched.
func (o *Orchestrator) ProcessTurn(ctx context.Context, req *models.TurnRequest) (*models.TurnResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	sessionID := req.SessionID
	turnID := util.GenerateRandomID("turn_", 12)
	slog.Debug("Orchestrator.ProcessTurn: processing turn", "session_id", sessionID, "turn_id", turnID)

	release, err := o.locks.Acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	prior, err := o.loadState(ctx, sessionID)
	if err != nil {
		o.phases.Fail(sessionID)
		return nil, err
	}
	if o.phases.Phase(sessionID) == models.StateFailed {
		// The store answered again; leave FAILED before starting the turn.
		o.phases.Reset(sessionID)
	}

	preVersion := prior.Version
	working := prior.Clone()

	defer func() {
		if o.phases.Phase(sessionID) != models.StateFailed {
			o.phases.Reset(sessionID)
		}
	}()

	if err := o.advance(ctx, sessionID, models.StateIdle, models.StateClassifying); err != nil {
		return nil, err
	}
	intent, err := o.classifier.Classify(ctx, req.Utterance, working.Constraints)
	switch {
	case err == nil:
	case errors.Is(err, models.ErrClassificationAmbiguous):
		intent = models.IntentUnknown
	default:
		return nil, err
	}

	if err := o.advance(ctx, sessionID, models.StateClassifying, models.StateMerging); err != nil {
		return nil, err
	}
	var extracted models.ConstraintSet
	neg := cloneNegations(req.Negations)
	if intent == models.IntentConstraintUpdate || intent == models.IntentRecipeRequest {
		extractedSet, extractedNeg, exErr := o.extractor.Extract(ctx, req.Utterance)
		if exErr != nil {
			return nil, exErr
		}
		extracted = extractedSet
		neg = combineNegations(neg, extractedNeg)
	}
	working.Constraints = o.merger.Merge(prior.Constraints, extracted, neg)

	var outcome turnOutcome
	switch intent {
	case models.IntentChat:
		outcome, err = o.handleChat(ctx, sessionID, working, req.Utterance)
	case models.IntentConstraintUpdate:
		outcome, err = o.handleConstraintUpdate(ctx, sessionID, working)
	case models.IntentRecipeRequest:
		outcome, err = o.handleRecipeRequest(ctx, sessionID, working, req.Utterance)
	case models.IntentSafetyQuestion:
		outcome, err = o.handleSafetyQuestion(ctx, sessionID, req.Utterance)
	case models.IntentCookingQuestion:
		outcome, err = o.handleCookingQuestion(ctx, sessionID, working, req.Utterance)
	default:
		outcome, err = o.handleUnknown(ctx, sessionID)
	}
	if err != nil {
		return nil, err
	}

	resp := &models.TurnResponse{
		SessionID: sessionID,
		Text:      outcome.reply,
		Intent:    intent,
		Verdict:   outcome.verdict,
		Grounded:  outcome.grounded,
	}
	if !outcome.commit {
		resp.Constraints = prior.Constraints
		resp.TurnCount = prior.TurnCount
		return resp, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o.finalizeTurn(working, req.Utterance, outcome)
	if err := o.commitState(ctx, working, preVersion, req.Utterance, outcome, extracted, neg); err != nil {
		return nil, err
	}
	if err := o.phases.Transition(sessionID, models.StateResponding, models.StateIdle); err != nil {
		slog.Warn("Orchestrator.ProcessTurn: failed to return phase to idle", "error", err, "session_id", sessionID)
	}

	resp.Constraints = working.Constraints
	resp.TurnCount = working.TurnCount
	slog.Info("Orchestrator.ProcessTurn: turn committed",
		"session_id", sessionID, "turn_id", turnID, "intent", intent, "verdict", outcome.verdict,
		"grounded", outcome.grounded, "turn_count", working.TurnCount)
	return resp, nil
}

// advance moves the session phase, refusing to proceed on a dead context.
func (o *Orchestrator) advance(ctx context.Context, sessionID string, from, to models.StateType) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return o.phases.Transition(sessionID, from, to)
}

// loadState fetches the session state, retrying once on transient store
// errors. A missing session gets a fresh zero-version state so the commit
// can mint it.
func (o *Orchestrator) loadState(ctx context.Context, sessionID string) (*models.ConversationState, error) {
	state, err := o.store.LoadConversationState(ctx, sessionID)
	if err != nil && !errors.Is(err, context.Canceled) && ctx.Err() == nil {
		slog.Warn("Orchestrator.loadState: retrying after load failure", "error", err, "session_id", sessionID)
		state, err = o.store.LoadConversationState(ctx, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	if state == nil {
		state = models.NewConversationState(sessionID)
	}
	return state, nil
}

func (o *Orchestrator) handleChat(ctx context.Context, sessionID string, state *models.ConversationState, utterance string) (turnOutcome, error) {
	if err := o.advance(ctx, sessionID, models.StateMerging, models.StateGenerating); err != nil {
		return turnOutcome{}, err
	}
	reply, err := o.generateText(ctx, func() (string, error) {
		return o.generator.GenerateChat(ctx, state.Turns, utterance)
	})
	if err != nil {
		if abort := abortError(ctx, err); abort != nil {
			return turnOutcome{}, abort
		}
		slog.Error("Orchestrator.handleChat: model unavailable", "error", err, "session_id", sessionID)
		if advErr := o.advance(ctx, sessionID, models.StateGenerating, models.StateResponding); advErr != nil {
			return turnOutcome{}, advErr
		}
		return turnOutcome{reply: Apology(backendModel), verdict: models.TurnFallback}, nil
	}
	if err := o.advance(ctx, sessionID, models.StateGenerating, models.StateResponding); err != nil {
		return turnOutcome{}, err
	}
	return turnOutcome{reply: reply, verdict: models.TurnAccepted, commit: true}, nil
}

func (o *Orchestrator) handleConstraintUpdate(ctx context.Context, sessionID string, state *models.ConversationState) (turnOutcome, error) {
	if err := o.advance(ctx, sessionID, models.StateMerging, models.StateResponding); err != nil {
		return turnOutcome{}, err
	}
	return turnOutcome{reply: ConstraintAck(state.Constraints), verdict: models.TurnAccepted, commit: true}, nil
}

func (o *Orchestrator) handleRecipeRequest(ctx context.Context, sessionID string, state *models.ConversationState, utterance string) (turnOutcome, error) {
	if err := o.advance(ctx, sessionID, models.StateMerging, models.StateRetrieving); err != nil {
		return turnOutcome{}, err
	}
	facts, note, grounded, err := o.retrieveRecipes(ctx, utterance, state.Constraints)
	if err != nil {
		return turnOutcome{}, err
	}
	if err := o.advance(ctx, sessionID, models.StateRetrieving, models.StateGenerating); err != nil {
		return turnOutcome{}, err
	}

	var feedback []string
	var verdict models.ValidationVerdict
	attempts := o.retryBudget + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		draft, genErr := o.generateDraft(ctx, utterance, state.Constraints, facts, feedback)
		if genErr != nil {
			if abort := abortError(ctx, genErr); abort != nil {
				return turnOutcome{}, abort
			}
			if errors.Is(genErr, ErrDraftUnparseable) && attempt < attempts {
				slog.Warn("Orchestrator.handleRecipeRequest: unparseable draft, regenerating",
					"session_id", sessionID, "attempt", attempt)
				feedback = append(feedback, "Respond with the JSON recipe object only.")
				continue
			}
			slog.Error("Orchestrator.handleRecipeRequest: generation failed", "error", genErr, "session_id", sessionID)
			if advErr := o.advance(ctx, sessionID, models.StateGenerating, models.StateResponding); advErr != nil {
				return turnOutcome{}, advErr
			}
			return turnOutcome{reply: Apology(backendModel), verdict: models.TurnFallback, grounded: grounded}, nil
		}

		if err := o.advance(ctx, sessionID, models.StateGenerating, models.StateValidating); err != nil {
			return turnOutcome{}, err
		}
		verdict = o.validator.Validate(*draft, state.Constraints, facts)
		if verdict.Tag == models.VerdictAccepted {
			if err := o.advance(ctx, sessionID, models.StateValidating, models.StateResponding); err != nil {
				return turnOutcome{}, err
			}
			return turnOutcome{
				reply:    RenderRecipe(*draft, note),
				verdict:  models.TurnAccepted,
				grounded: grounded,
				commit:   true,
				recipe:   draft,
			}, nil
		}

		slog.Info("Orchestrator.handleRecipeRequest: draft not accepted",
			"session_id", sessionID, "attempt", attempt, "tag", verdict.Tag,
			"violated_constraint", verdict.ViolatedConstraint)
		if attempt < attempts {
			line := verdict.Feedback
			if line == "" {
				line = verdict.Reason
			}
			feedback = append(feedback, line)
			if err := o.advance(ctx, sessionID, models.StateValidating, models.StateGenerating); err != nil {
				return turnOutcome{}, err
			}
		}
	}

	if err := o.advance(ctx, sessionID, models.StateValidating, models.StateResponding); err != nil {
		return turnOutcome{}, err
	}
	return turnOutcome{
		reply:    Refusal(verdict.ViolatedConstraint, verdict.Reason),
		verdict:  models.TurnFallback,
		grounded: grounded,
		commit:   true,
	}, nil
}

func (o *Orchestrator) handleSafetyQuestion(ctx context.Context, sessionID, utterance string) (turnOutcome, error) {
	if err := o.advance(ctx, sessionID, models.StateMerging, models.StateRetrieving); err != nil {
		return turnOutcome{}, err
	}
	facts, note, grounded, err := o.retrieveSafety(ctx, utterance)
	if err != nil {
		return turnOutcome{}, err
	}
	if err := o.advance(ctx, sessionID, models.StateRetrieving, models.StateGenerating); err != nil {
		return turnOutcome{}, err
	}
	answer, err := o.generateText(ctx, func() (string, error) {
		return o.generator.GenerateSafetyAnswer(ctx, utterance, facts)
	})
	if err != nil {
		if abort := abortError(ctx, err); abort != nil {
			return turnOutcome{}, abort
		}
		slog.Error("Orchestrator.handleSafetyQuestion: model unavailable", "error", err, "session_id", sessionID)
		if advErr := o.advance(ctx, sessionID, models.StateGenerating, models.StateResponding); advErr != nil {
			return turnOutcome{}, advErr
		}
		return turnOutcome{reply: Apology(backendModel), verdict: models.TurnFallback}, nil
	}
	if err := o.advance(ctx, sessionID, models.StateGenerating, models.StateResponding); err != nil {
		return turnOutcome{}, err
	}
	verdict := models.TurnAccepted
	if note != "" {
		verdict = models.TurnFallback
	}
	return turnOutcome{reply: SafetyAnswer(answer, note), verdict: verdict, grounded: grounded, commit: true}, nil
}

func (o *Orchestrator) handleCookingQuestion(ctx context.Context, sessionID string, state *models.ConversationState, utterance string) (turnOutcome, error) {
	// Culinary constants answer without a model round trip.
	if entries := LookupCulinaryConstants(utterance); len(entries) > 0 {
		if err := o.advance(ctx, sessionID, models.StateMerging, models.StateResponding); err != nil {
			return turnOutcome{}, err
		}
		return turnOutcome{reply: CulinaryAnswer(entries), verdict: models.TurnAccepted, grounded: true, commit: true}, nil
	}

	if err := o.advance(ctx, sessionID, models.StateMerging, models.StateGenerating); err != nil {
		return turnOutcome{}, err
	}
	answer, err := o.generateText(ctx, func() (string, error) {
		return o.generator.GenerateCookingAnswer(ctx, utterance, state.LastRecipeTitle, state.LastRecipeText)
	})
	if err != nil {
		if abort := abortError(ctx, err); abort != nil {
			return turnOutcome{}, abort
		}
		slog.Error("Orchestrator.handleCookingQuestion: model unavailable", "error", err, "session_id", sessionID)
		if advErr := o.advance(ctx, sessionID, models.StateGenerating, models.StateResponding); advErr != nil {
			return turnOutcome{}, advErr
		}
		return turnOutcome{reply: Apology(backendModel), verdict: models.TurnFallback}, nil
	}
	if err := o.advance(ctx, sessionID, models.StateGenerating, models.StateResponding); err != nil {
		return turnOutcome{}, err
	}
	return turnOutcome{reply: answer, verdict: models.TurnAccepted, grounded: state.LastRecipeText != "", commit: true}, nil
}

func (o *Orchestrator) handleUnknown(ctx context.Context, sessionID string) (turnOutcome, error) {
	if err := o.advance(ctx, sessionID, models.StateMerging, models.StateResponding); err != nil {
		return turnOutcome{}, err
	}
	return turnOutcome{reply: Clarification(), verdict: models.TurnClarification, commit: true}, nil
}

// retrieveRecipes fetches recipe grounding, retrying once and degrading to an
// ungrounded turn with a disclosure note when the backend stays down.
func (o *Orchestrator) retrieveRecipes(ctx context.Context, utterance string, constraints models.ConstraintSet) ([]models.RetrievedFact, string, bool, error) {
	if o.gate == nil {
		return nil, noteRetrievalDown, false, nil
	}
	facts, err := o.gate.RetrieveRecipes(ctx, utterance, constraints)
	if err != nil && !errors.Is(err, context.Canceled) && ctx.Err() == nil {
		slog.Warn("Orchestrator.retrieveRecipes: retrying after retrieval failure", "error", err)
		facts, err = o.gate.RetrieveRecipes(ctx, utterance, constraints)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return nil, "", false, err
		}
		slog.Error("Orchestrator.retrieveRecipes: retrieval unavailable", "error", err)
		return nil, noteRetrievalDown, false, nil
	}
	if len(facts) == 0 {
		return nil, noteNoMatches, false, nil
	}
	return facts, "", true, nil
}

// retrieveSafety fetches safety-rule grounding with the same degradation
// behavior as retrieveRecipes.
func (o *Orchestrator) retrieveSafety(ctx context.Context, utterance string) ([]models.RetrievedFact, string, bool, error) {
	if o.gate == nil {
		return nil, noteSafetyDown, false, nil
	}
	facts, err := o.gate.RetrieveSafety(ctx, utterance)
	if err != nil && !errors.Is(err, context.Canceled) && ctx.Err() == nil {
		slog.Warn("Orchestrator.retrieveSafety: retrying after retrieval failure", "error", err)
		facts, err = o.gate.RetrieveSafety(ctx, utterance)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return nil, "", false, err
		}
		slog.Error("Orchestrator.retrieveSafety: retrieval unavailable", "error", err)
		return nil, noteSafetyDown, false, nil
	}
	if len(facts) == 0 {
		return nil, noteSafetyNoRules, false, nil
	}
	return facts, "", true, nil
}

// generateText calls the model once and retries once on a transient outage.
func (o *Orchestrator) generateText(ctx context.Context, call func() (string, error)) (string, error) {
	reply, err := call()
	if err != nil && isRetryableModelErr(err) && ctx.Err() == nil {
		slog.Warn("Orchestrator.generateText: retrying after model failure", "error", err)
		reply, err = call()
	}
	return reply, err
}

// generateDraft calls the recipe generator, retrying once on a transient
// model outage. Unparseable drafts are not retried here; the caller spends
// its regeneration budget on them.
func (o *Orchestrator) generateDraft(ctx context.Context, utterance string, constraints models.ConstraintSet, facts []models.RetrievedFact, feedback []string) (*models.RecipeDraft, error) {
	draft, err := o.generator.GenerateRecipe(ctx, utterance, constraints, facts, feedback)
	if err != nil && isRetryableModelErr(err) && ctx.Err() == nil {
		slog.Warn("Orchestrator.generateDraft: retrying after model failure", "error", err)
		draft, err = o.generator.GenerateRecipe(ctx, utterance, constraints, facts, feedback)
	}
	return draft, err
}

// finalizeTurn folds a committed outcome into the working state.
func (o *Orchestrator) finalizeTurn(state *models.ConversationState, utterance string, outcome turnOutcome) {
	state.AppendTurn(models.RoleUser, utterance)
	state.AppendTurn(models.RoleAssistant, outcome.reply)
	state.TurnCount++
	if outcome.recipe != nil {
		state.LastRecipeTitle = outcome.recipe.Title
		state.LastRecipeText = RenderRecipe(*outcome.recipe, "")
	}
	if len(state.Turns) > o.maxHistoryTurns {
		state.Turns = append([]models.Turn(nil), state.Turns[len(state.Turns)-o.maxHistoryTurns:]...)
	}
	state.UpdatedAt = time.Now()
}

// commitState saves the working state with optimistic concurrency. On a
// version conflict the turn is replayed onto the freshly loaded state: the
// merge is deterministic, so re-applying this turn's extraction on top of
// the concurrent writer's constraints preserves both. A second conflict
// propagates to the caller.
func (o *Orchestrator) commitState(ctx context.Context, working *models.ConversationState, expectedVersion int64, utterance string, outcome turnOutcome, extracted models.ConstraintSet, neg models.Negations) error {
	err := o.store.SaveConversationState(ctx, working, expectedVersion)
	if err == nil {
		return nil
	}

	if errors.Is(err, models.ErrVersionConflict) {
		slog.Warn("Orchestrator.commitState: version conflict, replaying turn",
			"session_id", working.SessionID, "expected_version", expectedVersion)
		fresh, loadErr := o.store.LoadConversationState(ctx, working.SessionID)
		if loadErr != nil {
			o.phases.Fail(working.SessionID)
			return fmt.Errorf("failed to reload session %s after version conflict: %w", working.SessionID, loadErr)
		}
		if fresh == nil {
			fresh = models.NewConversationState(working.SessionID)
		}
		merged := fresh.Clone()
		merged.Constraints = o.merger.Merge(fresh.Constraints, extracted, neg)
		o.finalizeTurn(merged, utterance, outcome)
		if saveErr := o.store.SaveConversationState(ctx, merged, fresh.Version); saveErr != nil {
			return fmt.Errorf("failed to save session %s after version conflict: %w", working.SessionID, saveErr)
		}
		*working = *merged
		return nil
	}

	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return err
	}
	slog.Warn("Orchestrator.commitState: retrying after save failure", "error", err, "session_id", working.SessionID)
	if retryErr := o.store.SaveConversationState(ctx, working, expectedVersion); retryErr != nil {
		o.phases.Fail(working.SessionID)
		return fmt.Errorf("failed to save session %s: %w", working.SessionID, retryErr)
	}
	return nil
}

// abortError reports whether a backend failure should abort the turn instead
// of degrading it: the caller is gone, or the error is a cancellation that
// outran the context check.
func abortError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func isRetryableModelErr(err error) bool {
	return errors.Is(err, models.ErrModelUnavailable) || errors.Is(err, models.ErrModelTimeout)
}

// cloneNegations deep-copies request negations into a mutable map.
func cloneNegations(neg models.Negations) models.Negations {
	out := make(models.Negations, len(neg))
	for category, values := range neg {
		out[category] = append([]string(nil), values...)
	}
	return out
}

// combineNegations folds extractor negations into the request's. An existing
// empty slice already clears the whole category and absorbs value-level
// retractions for it.
func combineNegations(base, extra models.Negations) models.Negations {
	for category, values := range extra {
		existing, ok := base[category]
		if ok && len(existing) == 0 {
			continue
		}
		if len(values) == 0 {
			base[category] = nil
			continue
		}
		base[category] = append(existing, values...)
	}
	return base
}
