package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/BTreeMap/CookFlow/internal/models"
)

type failingIndex struct{}

func (failingIndex) Search(ctx context.Context, query string, category models.FactCategory, k int) ([]models.RetrievedFact, error) {
	return nil, errors.New("index offline")
}

func (failingIndex) Close() error { return nil }

func TestGateRetrieveRecipesAppliesK(t *testing.T) {
	gate := NewGate(NewMemoryIndex(DefaultCorpus()))

	facts, err := gate.RetrieveRecipes(context.Background(), "vegan breakfast", models.ConstraintSet{})
	if err != nil {
		t.Fatalf("RetrieveRecipes failed: %v", err)
	}
	if len(facts) != DefaultRecipeK {
		t.Errorf("RetrieveRecipes returned %d facts, want %d", len(facts), DefaultRecipeK)
	}
	for _, fact := range facts {
		if fact.Category != models.FactRecipeReference {
			t.Errorf("fact %s category = %s, want recipe_reference", fact.SourceID, fact.Category)
		}
	}
}

func TestGateDropsRecipesMentioningExcludedIngredients(t *testing.T) {
	gate := NewGate(NewMemoryIndex(DefaultCorpus()))

	constraints := models.ConstraintSet{Excluded: []string{"tofu"}}
	facts, err := gate.RetrieveRecipes(context.Background(), "vegan breakfast", constraints)
	if err != nil {
		t.Fatalf("RetrieveRecipes failed: %v", err)
	}
	if len(facts) != DefaultRecipeK {
		t.Errorf("RetrieveRecipes returned %d facts, want %d after filtering", len(facts), DefaultRecipeK)
	}
	for _, fact := range facts {
		if fact.SourceID == "recipe-tofu-scramble" {
			t.Errorf("fact %s mentions excluded ingredient, should have been dropped", fact.SourceID)
		}
	}
}

func TestGateRetrieveSafetyUsesSafetyK(t *testing.T) {
	gate := NewGate(NewMemoryIndex(DefaultCorpus()))

	facts, err := gate.RetrieveSafety(context.Background(), "undercooked chicken temperature")
	if err != nil {
		t.Fatalf("RetrieveSafety failed: %v", err)
	}
	if len(facts) != DefaultSafetyK {
		t.Errorf("RetrieveSafety returned %d facts, want %d", len(facts), DefaultSafetyK)
	}
	if facts[0].SourceID != "safety-chicken-temperature" {
		t.Errorf("top fact = %s, want safety-chicken-temperature", facts[0].SourceID)
	}
}

func TestGateEmptyResultIsNotAnError(t *testing.T) {
	gate := NewGate(NewMemoryIndex(DefaultCorpus()))

	facts, err := gate.RetrieveRecipes(context.Background(), "xylophone", models.ConstraintSet{})
	if err != nil {
		t.Fatalf("RetrieveRecipes failed: %v", err)
	}
	if len(facts) != 0 {
		t.Errorf("RetrieveRecipes returned %d facts, want 0", len(facts))
	}
}

func TestGateWrapsIndexFailure(t *testing.T) {
	gate := NewGate(failingIndex{})

	_, err := gate.RetrieveRecipes(context.Background(), "vegan dinner", models.ConstraintSet{})
	if !errors.Is(err, models.ErrRetrievalUnavailable) {
		t.Errorf("RetrieveRecipes error = %v, want ErrRetrievalUnavailable", err)
	}

	_, err = gate.RetrieveSafety(context.Background(), "raw chicken")
	if !errors.Is(err, models.ErrRetrievalUnavailable) {
		t.Errorf("RetrieveSafety error = %v, want ErrRetrievalUnavailable", err)
	}
}

func TestGateOptionsOverrideDefaults(t *testing.T) {
	gate := NewGate(NewMemoryIndex(DefaultCorpus()), WithRecipeK(1), WithSafetyK(1))

	facts, err := gate.RetrieveRecipes(context.Background(), "vegan breakfast", models.ConstraintSet{})
	if err != nil {
		t.Fatalf("RetrieveRecipes failed: %v", err)
	}
	if len(facts) != 1 {
		t.Errorf("RetrieveRecipes returned %d facts, want 1", len(facts))
	}

	facts, err = gate.RetrieveSafety(context.Background(), "raw sprouts")
	if err != nil {
		t.Fatalf("RetrieveSafety failed: %v", err)
	}
	if len(facts) != 1 {
		t.Errorf("RetrieveSafety returned %d facts, want 1", len(facts))
	}
}

func TestBuildRecipeQuery(t *testing.T) {
	constraints := models.ConstraintSet{
		Diet:      []string{"vegan"},
		MealType:  []string{"breakfast"},
		Available: []string{"tofu", "spinach"},
		Excluded:  []string{"peanuts"},
	}

	query := BuildRecipeQuery("something quick", constraints)

	for _, want := range []string{"something quick", "vegan", "breakfast", "tofu", "spinach"} {
		if !strings.Contains(query, want) {
			t.Errorf("BuildRecipeQuery() = %q, missing %q", query, want)
		}
	}
	if strings.Contains(query, "peanuts") {
		t.Errorf("BuildRecipeQuery() = %q, must not include excluded ingredients", query)
	}
}
