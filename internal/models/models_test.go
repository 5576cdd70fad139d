package models

import (
	"errors"
	"testing"
)

func TestConstraintSetValidate(t *testing.T) {
	cs := ConstraintSet{
		Available:         []string{"egg", "oats"},
		Excluded:          []string{"peanut"},
		InventoryDeclared: true,
	}
	if err := cs.Validate(); err != nil {
		t.Errorf("expected valid constraint set, got %v", err)
	}

	overlapping := ConstraintSet{
		Available:         []string{"egg", "milk"},
		Excluded:          []string{"milk"},
		InventoryDeclared: true,
	}
	if err := overlapping.Validate(); !errors.Is(err, ErrOverlappingIngredients) {
		t.Errorf("expected ErrOverlappingIngredients, got %v", err)
	}

	undeclared := ConstraintSet{Available: []string{"egg"}}
	if err := undeclared.Validate(); !errors.Is(err, ErrUndeclaredInventory) {
		t.Errorf("expected ErrUndeclaredInventory, got %v", err)
	}
}

func TestConstraintSetCloneIsDeep(t *testing.T) {
	original := ConstraintSet{
		Diet:              []string{"vegan"},
		Available:         []string{"oats"},
		InventoryDeclared: true,
	}
	clone := original.Clone()
	clone.Diet[0] = "keto"
	clone.Available = append(clone.Available, "egg")

	if original.Diet[0] != "vegan" {
		t.Errorf("clone mutated original diet: %v", original.Diet)
	}
	if len(original.Available) != 1 {
		t.Errorf("clone mutated original inventory: %v", original.Available)
	}
}

func TestConstraintSetValuesRoundTrip(t *testing.T) {
	var cs ConstraintSet
	categories := []ConstraintCategory{
		CategoryDiet, CategoryMealType, CategoryCookingMethod,
		CategoryAvailableIngredients, CategoryExcludedIngredients,
	}
	for _, category := range categories {
		cs.SetValues(category, []string{"value-" + string(category)})
	}
	for _, category := range categories {
		values := cs.Values(category)
		if len(values) != 1 || values[0] != "value-"+string(category) {
			t.Errorf("category %s: got %v", category, values)
		}
	}
}

func TestConstraintSetDescribe(t *testing.T) {
	empty := ConstraintSet{}
	if got := empty.Describe(); got != "no active constraints" {
		t.Errorf("empty set described as %q", got)
	}

	declaredNothing := ConstraintSet{InventoryDeclared: true}
	if got := declaredNothing.Describe(); got != "on hand: nothing yet" {
		t.Errorf("declared-empty inventory described as %q", got)
	}

	full := ConstraintSet{
		Diet:     []string{"vegan"},
		MealType: []string{"breakfast"},
	}
	want := "diet: vegan; meal: breakfast"
	if got := full.Describe(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestNegationsValidate(t *testing.T) {
	good := Negations{CategoryDiet: nil, CategoryAvailableIngredients: {"egg"}}
	if err := good.Validate(); err != nil {
		t.Errorf("expected valid negations, got %v", err)
	}

	bad := Negations{"mood": nil}
	if err := bad.Validate(); !errors.Is(err, ErrInvalidNegationCategory) {
		t.Errorf("expected ErrInvalidNegationCategory, got %v", err)
	}
}

func TestTurnRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     TurnRequest
		wantErr error
	}{
		{"valid", TurnRequest{SessionID: "s1", Utterance: "hello"}, nil},
		{"missing session", TurnRequest{Utterance: "hello"}, ErrEmptySessionID},
		{"empty utterance", TurnRequest{SessionID: "s1", Utterance: "   "}, ErrEmptyUtterance},
		{"long utterance", TurnRequest{SessionID: "s1", Utterance: string(make([]byte, MaxUtteranceLength+1))}, ErrUtteranceTooLong},
		{"bad negation", TurnRequest{SessionID: "s1", Utterance: "hi", Negations: Negations{"nope": nil}}, ErrInvalidNegationCategory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == nil && err != nil {
				t.Errorf("expected no error, got %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestRecipeDraftValidate(t *testing.T) {
	draft := RecipeDraft{
		Title:       "Oat Porridge",
		Ingredients: []string{"oats", "water"},
		Steps:       []string{"Simmer oats in water."},
	}
	if err := draft.Validate(); err != nil {
		t.Errorf("expected valid draft, got %v", err)
	}

	if err := (&RecipeDraft{Ingredients: []string{"oats"}, Steps: []string{"cook"}}).Validate(); !errors.Is(err, ErrDraftMissingTitle) {
		t.Errorf("expected ErrDraftMissingTitle, got %v", err)
	}
	if err := (&RecipeDraft{Title: "x", Steps: []string{"cook"}}).Validate(); !errors.Is(err, ErrDraftMissingIngredients) {
		t.Errorf("expected ErrDraftMissingIngredients, got %v", err)
	}
	if err := (&RecipeDraft{Title: "x", Ingredients: []string{"oats"}}).Validate(); !errors.Is(err, ErrDraftMissingSteps) {
		t.Errorf("expected ErrDraftMissingSteps, got %v", err)
	}
}

func TestVerdictBuilders(t *testing.T) {
	accepted := AcceptedVerdict()
	if accepted.Tag != VerdictAccepted {
		t.Errorf("expected accepted tag, got %s", accepted.Tag)
	}

	rejected := RejectedVerdict("milk is excluded", "milk")
	if rejected.Tag != VerdictRejected || rejected.ViolatedConstraint != "milk" {
		t.Errorf("unexpected rejected verdict: %+v", rejected)
	}

	regen := RegenerationVerdict("avoid egg", "egg")
	if regen.Tag != VerdictNeedsRegeneration || regen.Feedback != "avoid egg" {
		t.Errorf("unexpected regeneration verdict: %+v", regen)
	}
}

func TestIsValidIntent(t *testing.T) {
	valid := []Intent{IntentChat, IntentConstraintUpdate, IntentRecipeRequest, IntentSafetyQuestion, IntentCookingQuestion, IntentUnknown}
	for _, intent := range valid {
		if !IsValidIntent(intent) {
			t.Errorf("intent %s should be valid", intent)
		}
	}
	if IsValidIntent(Intent("banter")) {
		t.Error("unexpected intent accepted")
	}
}

func TestIsValidStateType(t *testing.T) {
	if !IsValidStateType(StateGenerating) {
		t.Error("GENERATING should be a known phase")
	}
	if IsValidStateType(StateType("DREAMING")) {
		t.Error("unknown phase accepted")
	}
	if !StateFailed.IsTerminal() {
		t.Error("FAILED should be terminal")
	}
	if StateIdle.IsTerminal() {
		t.Error("IDLE should not be terminal")
	}
}

func TestAPIResponseBuilders(t *testing.T) {
	ok := Success(map[string]string{"k": "v"})
	if ok.Status != string(APIStatusOK) || ok.Result == nil {
		t.Errorf("unexpected success response: %+v", ok)
	}

	withMsg := SuccessWithMessage("done", nil)
	if withMsg.Message != "done" || withMsg.Status != string(APIStatusOK) {
		t.Errorf("unexpected success-with-message response: %+v", withMsg)
	}

	apiErr := Error("boom")
	if apiErr.Status != string(APIStatusError) || apiErr.Message != "boom" {
		t.Errorf("unexpected error response: %+v", apiErr)
	}
}

func TestConversationStateAppendAndClone(t *testing.T) {
	state := NewConversationState("s1")
	state.AppendTurn(RoleUser, "hello")
	state.AppendTurn(RoleAssistant, "hi there")

	if len(state.Turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(state.Turns))
	}
	if state.Turns[0].Role != RoleUser || state.Turns[1].Role != RoleAssistant {
		t.Errorf("unexpected roles: %+v", state.Turns)
	}

	clone := state.Clone()
	clone.AppendTurn(RoleUser, "more")
	clone.Constraints.Diet = []string{"vegan"}
	if len(state.Turns) != 2 {
		t.Errorf("clone mutated original turns: %d", len(state.Turns))
	}
	if len(state.Constraints.Diet) != 0 {
		t.Errorf("clone mutated original constraints: %v", state.Constraints.Diet)
	}
}
