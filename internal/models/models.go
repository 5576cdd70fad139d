// Package models defines the core data structures for CookFlow.
//
// It includes constraint state, conversation state, retrieval facts, recipe
// drafts, validation verdicts, and the API envelope shared across modules.
package models

import (
	"errors"
	"strings"
	"time"
)

// ConstraintCategory identifies one dimension of a ConstraintSet.
type ConstraintCategory string

const (
	// CategoryDiet restricts recipes to a dietary label (vegan, keto, ...).
	CategoryDiet ConstraintCategory = "diet"
	// CategoryMealType restricts recipes to a meal slot (breakfast, dinner, ...).
	CategoryMealType ConstraintCategory = "meal_type"
	// CategoryCookingMethod restricts how a recipe is prepared (baked, grilled, ...).
	CategoryCookingMethod ConstraintCategory = "cooking_method"
	// CategoryAvailableIngredients lists what the user has on hand.
	CategoryAvailableIngredients ConstraintCategory = "available_ingredients"
	// CategoryExcludedIngredients lists ingredients recipes must not use.
	CategoryExcludedIngredients ConstraintCategory = "excluded_ingredients"
)

// IsValidConstraintCategory checks if the given category is supported.
func IsValidConstraintCategory(c ConstraintCategory) bool {
	switch c {
	case CategoryDiet, CategoryMealType, CategoryCookingMethod,
		CategoryAvailableIngredients, CategoryExcludedIngredients:
		return true
	default:
		return false
	}
}

// Negations maps a constraint category to the values being retracted in the
// current turn. An empty value slice clears the whole category ("no longer
// vegan"); a non-empty slice removes only the named values ("I don't have
// eggs anymore").
type Negations map[ConstraintCategory][]string

// Validate checks that every negated category is a known one.
func (n Negations) Validate() error {
	for category := range n {
		if !IsValidConstraintCategory(category) {
			return ErrInvalidNegationCategory
		}
	}
	return nil
}

// ConstraintSet holds the cumulative constraints of one session. Values are
// kept canonical: lower-cased, deduplicated, and sorted.
//
// InventoryDeclared distinguishes "the user never mentioned an inventory"
// (false, Available empty, recipes unconstrained by inventory) from "the user
// declared what they have, possibly nothing" (true). The two must never be
// conflated: an empty declared inventory forbids every ingredient.
type ConstraintSet struct {
	Diet              []string `json:"diet,omitempty"`
	MealType          []string `json:"meal_type,omitempty"`
	CookingMethod     []string `json:"cooking_method,omitempty"`
	Available         []string `json:"available_ingredients,omitempty"`
	Excluded          []string `json:"excluded_ingredients,omitempty"`
	InventoryDeclared bool     `json:"inventory_declared,omitempty"`
}

// Values returns the value slice for the given category.
func (c *ConstraintSet) Values(category ConstraintCategory) []string {
	switch category {
	case CategoryDiet:
		return c.Diet
	case CategoryMealType:
		return c.MealType
	case CategoryCookingMethod:
		return c.CookingMethod
	case CategoryAvailableIngredients:
		return c.Available
	case CategoryExcludedIngredients:
		return c.Excluded
	default:
		return nil
	}
}

// SetValues replaces the value slice for the given category.
func (c *ConstraintSet) SetValues(category ConstraintCategory, values []string) {
	switch category {
	case CategoryDiet:
		c.Diet = values
	case CategoryMealType:
		c.MealType = values
	case CategoryCookingMethod:
		c.CookingMethod = values
	case CategoryAvailableIngredients:
		c.Available = values
	case CategoryExcludedIngredients:
		c.Excluded = values
	}
}

// Clone returns a deep copy so callers can mutate freely.
func (c ConstraintSet) Clone() ConstraintSet {
	clone := ConstraintSet{InventoryDeclared: c.InventoryDeclared}
	clone.Diet = append([]string(nil), c.Diet...)
	clone.MealType = append([]string(nil), c.MealType...)
	clone.CookingMethod = append([]string(nil), c.CookingMethod...)
	clone.Available = append([]string(nil), c.Available...)
	clone.Excluded = append([]string(nil), c.Excluded...)
	return clone
}

// IsEmpty reports whether no constraint of any category is active.
func (c ConstraintSet) IsEmpty() bool {
	return len(c.Diet) == 0 && len(c.MealType) == 0 && len(c.CookingMethod) == 0 &&
		len(c.Available) == 0 && len(c.Excluded) == 0 && !c.InventoryDeclared
}

// Describe renders the active constraints as a short human-readable summary
// for acknowledgment messages.
func (c ConstraintSet) Describe() string {
	var parts []string
	if len(c.Diet) > 0 {
		parts = append(parts, "diet: "+strings.Join(c.Diet, ", "))
	}
	if len(c.MealType) > 0 {
		parts = append(parts, "meal: "+strings.Join(c.MealType, ", "))
	}
	if len(c.CookingMethod) > 0 {
		parts = append(parts, "method: "+strings.Join(c.CookingMethod, ", "))
	}
	if c.InventoryDeclared {
		if len(c.Available) == 0 {
			parts = append(parts, "on hand: nothing yet")
		} else {
			parts = append(parts, "on hand: "+strings.Join(c.Available, ", "))
		}
	}
	if len(c.Excluded) > 0 {
		parts = append(parts, "avoiding: "+strings.Join(c.Excluded, ", "))
	}
	if len(parts) == 0 {
		return "no active constraints"
	}
	return strings.Join(parts, "; ")
}

// Validate checks the ConstraintSet invariants.
func (c ConstraintSet) Validate() error {
	excluded := make(map[string]bool, len(c.Excluded))
	for _, v := range c.Excluded {
		excluded[v] = true
	}
	for _, v := range c.Available {
		if excluded[v] {
			return ErrOverlappingIngredients
		}
	}
	if len(c.Available) > 0 && !c.InventoryDeclared {
		return ErrUndeclaredInventory
	}
	return nil
}

// Turn roles stored in conversation history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn represents a single message in the conversation history.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationState owns everything a session accumulates across turns. It is
// serialized as JSON by the session stores; Version is the optimistic stamp
// checked on save.
type ConversationState struct {
	SessionID       string        `json:"session_id"`
	Constraints     ConstraintSet `json:"constraints"`
	Turns           []Turn        `json:"turns,omitempty"`
	TurnCount       int           `json:"turn_count"`
	LastRecipeTitle string        `json:"last_recipe_title,omitempty"`
	LastRecipeText  string        `json:"last_recipe_text,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	Version         int64         `json:"version"`
}

// NewConversationState creates a fresh state for a session id.
func NewConversationState(sessionID string) *ConversationState {
	now := time.Now()
	return &ConversationState{
		SessionID: sessionID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AppendTurn records one history entry with the current timestamp.
func (s *ConversationState) AppendTurn(role, content string) {
	s.Turns = append(s.Turns, Turn{Role: role, Content: content, Timestamp: time.Now()})
}

// Clone returns a deep copy of the state.
func (s *ConversationState) Clone() *ConversationState {
	clone := *s
	clone.Constraints = s.Constraints.Clone()
	clone.Turns = append([]Turn(nil), s.Turns...)
	return &clone
}

// FactCategory classifies what kind of grounding a retrieved fact provides.
type FactCategory string

const (
	// FactSafetyRule marks food-safety guidance (temperatures, allergens, storage).
	FactSafetyRule FactCategory = "safety_rule"
	// FactRecipeReference marks a reference recipe from the corpus.
	FactRecipeReference FactCategory = "recipe_reference"
)

// RetrievedFact is an immutable grounding record produced by the retrieval
// gate for the current turn only; it is never persisted.
type RetrievedFact struct {
	SourceID string       `json:"source_id"`
	Snippet  string       `json:"snippet"`
	Score    float64      `json:"score"`
	Category FactCategory `json:"category"`
}

// RecipeDraft is the model's proposed recipe, transient between generation
// and validation.
type RecipeDraft struct {
	Title       string   `json:"title"`
	Ingredients []string `json:"ingredients"`
	Steps       []string `json:"steps"`
	MealType    string   `json:"meal_type,omitempty"`
	Minutes     int      `json:"minutes,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Validate checks that a draft is structurally usable before it is checked
// against constraints.
func (d *RecipeDraft) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return ErrDraftMissingTitle
	}
	if len(d.Ingredients) == 0 {
		return ErrDraftMissingIngredients
	}
	if len(d.Steps) == 0 {
		return ErrDraftMissingSteps
	}
	return nil
}

// VerdictTag is the categorical outcome of recipe validation.
type VerdictTag string

const (
	// VerdictAccepted means the draft satisfies every active constraint.
	VerdictAccepted VerdictTag = "accepted"
	// VerdictRejected means the draft violates a constraint and cannot be
	// repaired by feedback alone.
	VerdictRejected VerdictTag = "rejected"
	// VerdictNeedsRegeneration means a narrow violation was found and the
	// draft should be regenerated with feedback.
	VerdictNeedsRegeneration VerdictTag = "needs_regeneration"
)

// ValidationVerdict is the validator's judgment on one RecipeDraft.
type ValidationVerdict struct {
	Tag                VerdictTag `json:"tag"`
	Reason             string     `json:"reason,omitempty"`
	ViolatedConstraint string     `json:"violated_constraint,omitempty"`
	Feedback           string     `json:"feedback,omitempty"`
}

// AcceptedVerdict builds an accepted verdict.
func AcceptedVerdict() ValidationVerdict {
	return ValidationVerdict{Tag: VerdictAccepted}
}

// RejectedVerdict builds a rejected verdict naming the violated constraint.
func RejectedVerdict(reason, violatedConstraint string) ValidationVerdict {
	return ValidationVerdict{Tag: VerdictRejected, Reason: reason, ViolatedConstraint: violatedConstraint}
}

// RegenerationVerdict builds a needs-regeneration verdict carrying feedback
// for the next generation attempt.
func RegenerationVerdict(feedback, violatedConstraint string) ValidationVerdict {
	return ValidationVerdict{Tag: VerdictNeedsRegeneration, Feedback: feedback, ViolatedConstraint: violatedConstraint}
}

// Intent is the closed set of turn intents. Every utterance maps to exactly
// one; IntentUnknown is the catch-all that yields a clarifying question.
type Intent string

const (
	// IntentChat is ordinary conversation with no cooking semantics.
	IntentChat Intent = "chat"
	// IntentConstraintUpdate states or retracts constraints without asking
	// for a recipe.
	IntentConstraintUpdate Intent = "constraint_update"
	// IntentRecipeRequest asks for a recipe suggestion.
	IntentRecipeRequest Intent = "recipe_request"
	// IntentSafetyQuestion asks about food safety.
	IntentSafetyQuestion Intent = "safety_question"
	// IntentCookingQuestion asks a culinary fact or about a step of the last
	// suggested recipe.
	IntentCookingQuestion Intent = "cooking_question"
	// IntentUnknown is the total-mapping catch-all.
	IntentUnknown Intent = "unknown"
)

// IsValidIntent checks if the given intent is part of the closed set.
func IsValidIntent(i Intent) bool {
	switch i {
	case IntentChat, IntentConstraintUpdate, IntentRecipeRequest,
		IntentSafetyQuestion, IntentCookingQuestion, IntentUnknown:
		return true
	default:
		return false
	}
}

// TurnVerdict is the API-level outcome tag of a processed turn.
type TurnVerdict string

const (
	// TurnAccepted marks a normally answered turn.
	TurnAccepted TurnVerdict = "accepted"
	// TurnFallback marks a degraded answer (refusal, apology, ungrounded).
	TurnFallback TurnVerdict = "fallback"
	// TurnClarification marks a clarifying question back to the user.
	TurnClarification TurnVerdict = "clarification"
)

// Validation constants for input validation
const (
	// MaxUtteranceLength defines the maximum allowed length for a user utterance
	MaxUtteranceLength = 4096
	// MaxSessionIDLength defines the maximum allowed length for a session id
	MaxSessionIDLength = 128
)

// Error variables for the backend and constraint taxonomy
var (
	ErrClassificationAmbiguous = errors.New("intent classification ambiguous")
	ErrRetrievalUnavailable    = errors.New("retrieval store unavailable")
	ErrModelUnavailable        = errors.New("generative model unavailable")
	ErrModelTimeout            = errors.New("generative model timed out")
	ErrConstraintViolation     = errors.New("draft violates an active constraint")
	ErrVersionConflict         = errors.New("session state version conflict")
	ErrSessionNotFound         = errors.New("session not found")
)

// Error variables for request and state validation
var (
	ErrEmptyUtterance          = errors.New("utterance cannot be empty")
	ErrUtteranceTooLong        = errors.New("utterance exceeds maximum length")
	ErrEmptySessionID          = errors.New("session id cannot be empty")
	ErrSessionIDTooLong        = errors.New("session id exceeds maximum length")
	ErrInvalidNegationCategory = errors.New("negation names an unknown constraint category")
	ErrOverlappingIngredients  = errors.New("excluded and available ingredients overlap")
	ErrUndeclaredInventory     = errors.New("available ingredients present without declared inventory")
	ErrDraftMissingTitle       = errors.New("recipe draft has no title")
	ErrDraftMissingIngredients = errors.New("recipe draft has no ingredients")
	ErrDraftMissingSteps       = errors.New("recipe draft has no steps")
)

// CreateSessionRequest is the body of POST /sessions.
type CreateSessionRequest struct {
	SessionID string `json:"session_id,omitempty"`
}

// Validate checks the optional session id.
func (r *CreateSessionRequest) Validate() error {
	if len(r.SessionID) > MaxSessionIDLength {
		return ErrSessionIDTooLong
	}
	return nil
}

// TurnRequest is the body of POST /sessions/{id}/turns.
type TurnRequest struct {
	SessionID string    `json:"session_id,omitempty"`
	Utterance string    `json:"utterance"`
	Negations Negations `json:"negations,omitempty"`
}

// Validate performs comprehensive validation on a TurnRequest.
func (r *TurnRequest) Validate() error {
	if r.SessionID == "" {
		return ErrEmptySessionID
	}
	if len(r.SessionID) > MaxSessionIDLength {
		return ErrSessionIDTooLong
	}
	if strings.TrimSpace(r.Utterance) == "" {
		return ErrEmptyUtterance
	}
	if len(r.Utterance) > MaxUtteranceLength {
		return ErrUtteranceTooLong
	}
	return r.Negations.Validate()
}

// TurnResponse is what a processed turn returns to the caller.
type TurnResponse struct {
	SessionID   string        `json:"session_id"`
	Text        string        `json:"text"`
	Intent      Intent        `json:"intent"`
	Verdict     TurnVerdict   `json:"verdict"`
	Constraints ConstraintSet `json:"constraints"`
	TurnCount   int           `json:"turn_count"`
	Grounded    bool          `json:"grounded"`
}

// SessionStatus summarizes a session for GET /sessions/{id}.
type SessionStatus struct {
	SessionID   string        `json:"session_id"`
	Constraints ConstraintSet `json:"constraints"`
	TurnCount   int           `json:"turn_count"`
	Phase       StateType     `json:"phase"`
	UpdatedAt   time.Time     `json:"updated_at"`
	Version     int64         `json:"version"`
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{response: APIResponse{}}
}

// WithStatus sets the response status.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the response message.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithResult sets the response result payload.
func (b *APIResponseBuilder) WithResult(result interface{}) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Success builds an ok response carrying a result payload.
func Success(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithResult(result).
		Build()
}

// SuccessWithMessage builds an ok response with a message and payload.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithMessage(message).
		WithResult(result).
		Build()
}

// Error builds an error response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusError).
		WithMessage(message).
		Build()
}
