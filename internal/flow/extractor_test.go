package flow

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/BTreeMap/CookFlow/internal/models"
)

func TestExtractByRulesDietAndMealType(t *testing.T) {
	extractor := NewExtractor(nil, nil)

	cs, neg, err := extractor.Extract(context.Background(), "I'm vegan and it's breakfast")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if !reflect.DeepEqual(cs.Diet, []string{"vegan"}) {
		t.Errorf("Diet = %v, want [vegan]", cs.Diet)
	}
	if !reflect.DeepEqual(cs.MealType, []string{"breakfast"}) {
		t.Errorf("MealType = %v, want [breakfast]", cs.MealType)
	}
	if neg != nil {
		t.Errorf("Negations = %v, want nil", neg)
	}
}

func TestExtractByRulesDietAlias(t *testing.T) {
	extractor := NewExtractor(nil, nil)

	cs, _, err := extractor.Extract(context.Background(), "we eat plant-based at home")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if !reflect.DeepEqual(cs.Diet, []string{"vegan"}) {
		t.Errorf("Diet = %v, want alias resolved to [vegan]", cs.Diet)
	}
}

func TestExtractByRulesInventoryList(t *testing.T) {
	extractor := NewExtractor(nil, nil)

	cs, neg, err := extractor.Extract(context.Background(), "I have eggs and oats, suggest something")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if !reflect.DeepEqual(cs.Available, []string{"eggs", "oats"}) {
		t.Errorf("Available = %v, want [eggs oats]", cs.Available)
	}
	if !cs.InventoryDeclared {
		t.Error("InventoryDeclared = false, want true after an inventory statement")
	}
	if neg != nil {
		t.Errorf("Negations = %v, want nil", neg)
	}
}

func TestExtractByRulesQuantityFiller(t *testing.T) {
	extractor := NewExtractor(nil, nil)

	cs, _, err := extractor.Extract(context.Background(), "i've got some rice and a few mushrooms left")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if !reflect.DeepEqual(cs.Available, []string{"rice", "mushrooms"}) {
		t.Errorf("Available = %v, want filler trimmed to [rice mushrooms]", cs.Available)
	}
}

func TestExtractByRulesExclusion(t *testing.T) {
	extractor := NewExtractor(nil, nil)

	cs, neg, err := extractor.Extract(context.Background(), "something without mushrooms")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if !reflect.DeepEqual(cs.Excluded, []string{"mushrooms"}) {
		t.Errorf("Excluded = %v, want [mushrooms]", cs.Excluded)
	}
	if cs.InventoryDeclared {
		t.Error("InventoryDeclared = true, want false for a pure exclusion")
	}
	if neg != nil {
		t.Errorf("Negations = %v, want nil", neg)
	}
}

func TestExtractByRulesAllergy(t *testing.T) {
	extractor := NewExtractor(nil, nil)

	cs, _, err := extractor.Extract(context.Background(), "I'm allergic to peanuts and shellfish")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if !reflect.DeepEqual(cs.Excluded, []string{"peanuts", "shellfish"}) {
		t.Errorf("Excluded = %v, want [peanuts shellfish]", cs.Excluded)
	}
}

func TestExtractByRulesDietRetraction(t *testing.T) {
	extractor := NewExtractor(nil, nil)

	cs, neg, err := extractor.Extract(context.Background(), "i'm no longer vegan")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(cs.Diet) != 0 {
		t.Errorf("Diet = %v, want empty on retraction", cs.Diet)
	}
	if !reflect.DeepEqual(neg[models.CategoryDiet], []string{"vegan"}) {
		t.Errorf("diet negations = %v, want [vegan]", neg[models.CategoryDiet])
	}
}

func TestExtractByRulesIngredientRanOut(t *testing.T) {
	extractor := NewExtractor(nil, nil)

	cs, neg, err := extractor.Extract(context.Background(), "I don't have eggs anymore")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(cs.Available) != 0 {
		t.Errorf("Available = %v, want empty; the phrase is a retraction", cs.Available)
	}
	if !reflect.DeepEqual(neg[models.CategoryAvailableIngredients], []string{"eggs"}) {
		t.Errorf("available negations = %v, want [eggs]", neg[models.CategoryAvailableIngredients])
	}
}

func TestExtractByRulesExclusionLifted(t *testing.T) {
	extractor := NewExtractor(nil, nil)

	_, neg, err := extractor.Extract(context.Background(), "eggs are fine now")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if !reflect.DeepEqual(neg[models.CategoryExcludedIngredients], []string{"eggs"}) {
		t.Errorf("excluded negations = %v, want [eggs]", neg[models.CategoryExcludedIngredients])
	}
}

func TestExtractByRulesEmptyInventory(t *testing.T) {
	extractor := NewExtractor(nil, nil)

	cs, _, err := extractor.Extract(context.Background(), "my fridge is empty")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if !cs.InventoryDeclared {
		t.Error("InventoryDeclared = false, want true for an empty-inventory statement")
	}
	if len(cs.Available) != 0 {
		t.Errorf("Available = %v, want empty", cs.Available)
	}
}

func TestExtractByRulesNothingToExtract(t *testing.T) {
	extractor := NewExtractor(nil, nil)

	cs, neg, err := extractor.Extract(context.Background(), "tell me a story about the sea")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if !cs.IsEmpty() {
		t.Errorf("ConstraintSet = %+v, want empty", cs)
	}
	if neg != nil {
		t.Errorf("Negations = %v, want nil", neg)
	}
}

func TestExtractUsesModelToolCall(t *testing.T) {
	client := &mockModelClient{}
	client.queueToolCall("extract_constraints",
		`{"diet":["plant-based"],"available_ingredients":["tofu"],"negations":{"excluded_ingredients":["eggs"],"bogus":["x"]}}`)
	extractor := NewExtractor(client, nil)

	cs, neg, err := extractor.Extract(context.Background(), "irrelevant, the script answers")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	// Raw model values pass through; the merger canonicalizes them later.
	if !reflect.DeepEqual(cs.Diet, []string{"plant-based"}) {
		t.Errorf("Diet = %v, want raw [plant-based]", cs.Diet)
	}
	if !reflect.DeepEqual(cs.Available, []string{"tofu"}) {
		t.Errorf("Available = %v, want [tofu]", cs.Available)
	}
	if !cs.InventoryDeclared {
		t.Error("InventoryDeclared = false, want true when the model lists ingredients")
	}
	if !reflect.DeepEqual(neg[models.CategoryExcludedIngredients], []string{"eggs"}) {
		t.Errorf("excluded negations = %v, want [eggs]", neg[models.CategoryExcludedIngredients])
	}
	if _, ok := neg[models.ConstraintCategory("bogus")]; ok {
		t.Error("unknown negation category should be dropped")
	}
}

func TestExtractModelErrorFallsBackToRules(t *testing.T) {
	client := &mockModelClient{}
	client.queueToolError(errors.New("rate limited"))
	extractor := NewExtractor(client, nil)

	cs, _, err := extractor.Extract(context.Background(), "i'm vegetarian")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if !reflect.DeepEqual(cs.Diet, []string{"vegetarian"}) {
		t.Errorf("Diet = %v, want rules fallback [vegetarian]", cs.Diet)
	}
}

func TestExtractCancellationPropagates(t *testing.T) {
	client := &mockModelClient{}
	extractor := NewExtractor(client, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := extractor.Extract(ctx, "i'm vegan")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Extract error = %v, want context.Canceled", err)
	}
}
