package constraint

import (
	"testing"

	"github.com/BTreeMap/CookFlow/internal/models"
)

func validDraft() models.RecipeDraft {
	return models.RecipeDraft{
		Title:       "Oat Porridge",
		Ingredients: []string{"oats", "water", "salt"},
		Steps:       []string{"Simmer the oats in water.", "Season with salt."},
		MealType:    "breakfast",
	}
}

func TestValidateRejectsInventoryViolation(t *testing.T) {
	validator := NewValidator(nil)
	constraints := models.ConstraintSet{
		Available:         []string{"egg"},
		InventoryDeclared: true,
	}
	draft := models.RecipeDraft{
		Title:       "Milk Toast",
		Ingredients: []string{"egg", "milk"},
		Steps:       []string{"Warm the milk."},
	}

	verdict := validator.Validate(draft, constraints, nil)

	if verdict.Tag != models.VerdictRejected {
		t.Fatalf("expected rejected, got %s", verdict.Tag)
	}
	if verdict.ViolatedConstraint != "milk" {
		t.Errorf("expected violated_constraint milk, got %q", verdict.ViolatedConstraint)
	}
	if verdict.Feedback == "" {
		t.Error("expected regeneration feedback on a narrow violation")
	}
}

func TestValidateAcceptsWhenUnconstrained(t *testing.T) {
	validator := NewValidator(nil)
	verdict := validator.Validate(validDraft(), models.ConstraintSet{}, nil)
	if verdict.Tag != models.VerdictAccepted {
		t.Errorf("expected accepted for unconstrained draft, got %s (%s)", verdict.Tag, verdict.Reason)
	}
}

func TestValidateStaplesBypassInventory(t *testing.T) {
	validator := NewValidator(nil)
	constraints := models.ConstraintSet{
		Available:         []string{"oats"},
		InventoryDeclared: true,
	}

	verdict := validator.Validate(validDraft(), constraints, nil)

	if verdict.Tag != models.VerdictAccepted {
		t.Errorf("water and salt should pass as staples, got %s (%s)", verdict.Tag, verdict.Reason)
	}
}

func TestValidateDeclaredEmptyInventoryForbidsEverything(t *testing.T) {
	validator := NewValidator(nil)
	constraints := models.ConstraintSet{InventoryDeclared: true}

	verdict := validator.Validate(validDraft(), constraints, nil)

	if verdict.Tag != models.VerdictRejected {
		t.Errorf("declared-empty inventory should reject any real ingredient, got %s", verdict.Tag)
	}
	if verdict.ViolatedConstraint != "oats" {
		t.Errorf("expected oats flagged first, got %q", verdict.ViolatedConstraint)
	}
}

func TestValidateRejectsExcludedIngredient(t *testing.T) {
	validator := NewValidator(nil)
	constraints := models.ConstraintSet{Excluded: []string{"peanut"}}
	draft := models.RecipeDraft{
		Title:       "Peanut Noodles",
		Ingredients: []string{"noodles", "peanut butter"},
		Steps:       []string{"Toss noodles with peanut butter."},
	}

	verdict := validator.Validate(draft, constraints, nil)

	if verdict.Tag != models.VerdictRejected {
		t.Fatalf("expected rejected, got %s", verdict.Tag)
	}
	if verdict.ViolatedConstraint != "peanut" {
		t.Errorf("expected violated_constraint peanut, got %q", verdict.ViolatedConstraint)
	}
}

func TestValidateRejectsDietForbiddenIngredient(t *testing.T) {
	validator := NewValidator(nil)
	constraints := models.ConstraintSet{Diet: []string{"vegan"}}
	draft := models.RecipeDraft{
		Title:       "Scrambled Eggs",
		Ingredients: []string{"eggs", "oats"},
		Steps:       []string{"Scramble the eggs, fold in oats."},
	}

	verdict := validator.Validate(draft, constraints, nil)

	if verdict.Tag != models.VerdictRejected {
		t.Fatalf("expected rejected under vegan, got %s", verdict.Tag)
	}
	if verdict.ViolatedConstraint != "egg" && verdict.ViolatedConstraint != "eggs" {
		t.Errorf("expected egg flagged, got %q", verdict.ViolatedConstraint)
	}
	if verdict.Feedback == "" {
		t.Error("expected regeneration feedback naming the offender")
	}
}

func TestValidateRejectsMealTypeMismatch(t *testing.T) {
	validator := NewValidator(nil)
	constraints := models.ConstraintSet{MealType: []string{"breakfast"}}
	draft := validDraft()
	draft.MealType = "dinner"

	verdict := validator.Validate(draft, constraints, nil)

	if verdict.Tag != models.VerdictRejected {
		t.Fatalf("expected rejected on meal type, got %s", verdict.Tag)
	}
	if verdict.ViolatedConstraint != "dinner" {
		t.Errorf("expected declared meal type flagged, got %q", verdict.ViolatedConstraint)
	}
}

func TestValidateSafetyFactRejectsFlaggedIngredient(t *testing.T) {
	validator := NewValidator(nil)
	facts := []models.RetrievedFact{
		{
			SourceID: "safety-7",
			Snippet:  "Never serve raw sprouts to young children or anyone immunocompromised.",
			Score:    0.9,
			Category: models.FactSafetyRule,
		},
	}
	draft := models.RecipeDraft{
		Title:       "Sprout Salad",
		Ingredients: []string{"sprouts", "lemon"},
		Steps:       []string{"Toss sprouts with lemon."},
	}

	verdict := validator.Validate(draft, models.ConstraintSet{}, facts)

	if verdict.Tag != models.VerdictRejected {
		t.Fatalf("expected rejected on safety fact, got %s", verdict.Tag)
	}
	if verdict.ViolatedConstraint != "sprout" && verdict.ViolatedConstraint != "sprouts" {
		t.Errorf("expected sprouts flagged, got %q", verdict.ViolatedConstraint)
	}
}

func TestValidateSafetyFactIgnoresNonWarningSnippets(t *testing.T) {
	validator := NewValidator(nil)
	facts := []models.RetrievedFact{
		{
			SourceID: "safety-2",
			Snippet:  "Oats keep well in a sealed container for months.",
			Score:    0.8,
			Category: models.FactSafetyRule,
		},
	}

	verdict := validator.Validate(validDraft(), models.ConstraintSet{}, facts)

	if verdict.Tag != models.VerdictAccepted {
		t.Errorf("informational snippet should not reject, got %s (%s)", verdict.Tag, verdict.Reason)
	}
}

func TestValidateIncompleteDraftNeedsRegeneration(t *testing.T) {
	validator := NewValidator(nil)
	draft := models.RecipeDraft{Title: "Mystery", Ingredients: []string{"oats"}}

	verdict := validator.Validate(draft, models.ConstraintSet{}, nil)

	if verdict.Tag != models.VerdictNeedsRegeneration {
		t.Errorf("structurally incomplete draft should need regeneration, got %s", verdict.Tag)
	}
	if verdict.Feedback == "" {
		t.Error("expected feedback telling the model to produce a complete recipe")
	}
}

func TestMatchesIngredient(t *testing.T) {
	tests := []struct {
		text, term string
		want       bool
	}{
		{"cheddar cheese", "cheese", true},
		{"eggs", "egg", true},
		{"rolled oats", "oat", true},
		{"eggplant", "egg", false},
		{"olive oil", "olive oil", true},
		{"milk", "oat", false},
	}
	for _, tt := range tests {
		if got := MatchesIngredient(tt.text, tt.term); got != tt.want {
			t.Errorf("MatchesIngredient(%q, %q) = %v, want %v", tt.text, tt.term, got, tt.want)
		}
	}
}
