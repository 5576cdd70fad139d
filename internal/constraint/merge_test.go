package constraint

import (
	"reflect"
	"testing"

	"github.com/BTreeMap/CookFlow/internal/models"
)

func TestMergeUnionsAdditiveCategories(t *testing.T) {
	merger := NewMerger(nil)
	prior := models.ConstraintSet{
		MealType:          []string{"breakfast"},
		Available:         []string{"oats"},
		InventoryDeclared: true,
	}
	extracted := models.ConstraintSet{
		MealType:  []string{"Brunch"},
		Available: []string{"Eggs", "oats"},
	}

	merged := merger.Merge(prior, extracted, nil)

	if !reflect.DeepEqual(merged.MealType, []string{"breakfast", "brunch"}) {
		t.Errorf("meal types not unioned: %v", merged.MealType)
	}
	if !reflect.DeepEqual(merged.Available, []string{"eggs", "oats"}) {
		t.Errorf("available not unioned: %v", merged.Available)
	}
	if !merged.InventoryDeclared {
		t.Error("inventory flag lost on merge")
	}
}

func TestMergeIdempotence(t *testing.T) {
	merger := NewMerger(nil)
	prior := models.ConstraintSet{
		Diet:     []string{"Vegetarian"},
		MealType: []string{"dinner"},
		Excluded: []string{"peanut"},
	}
	extracted := models.ConstraintSet{
		Diet:              []string{"vegan"},
		Available:         []string{"tofu", "rice"},
		InventoryDeclared: true,
	}

	once := merger.Merge(prior, extracted, nil)
	twice := merger.Merge(once, models.ConstraintSet{}, nil)

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("merge is not idempotent:\nonce:  %+v\ntwice: %+v", once, twice)
	}
}

func TestMergeDietReplacesWholesale(t *testing.T) {
	merger := NewMerger(nil)
	prior := models.ConstraintSet{Diet: []string{"vegan"}}
	extracted := models.ConstraintSet{Diet: []string{"vegetarian"}}

	merged := merger.Merge(prior, extracted, nil)

	if !reflect.DeepEqual(merged.Diet, []string{"vegetarian"}) {
		t.Errorf("diet should be replaced, not unioned: %v", merged.Diet)
	}
}

func TestMergeDietAliasCanonicalized(t *testing.T) {
	merger := NewMerger(nil)
	merged := merger.Merge(models.ConstraintSet{}, models.ConstraintSet{Diet: []string{"Plant-Based"}}, nil)
	if !reflect.DeepEqual(merged.Diet, []string{"vegan"}) {
		t.Errorf("alias not canonicalized: %v", merged.Diet)
	}
}

func TestMergeNegationClearsOnlyTargetedCategory(t *testing.T) {
	merger := NewMerger(nil)
	prior := models.ConstraintSet{
		Diet:              []string{"vegan"},
		MealType:          []string{"breakfast"},
		Available:         []string{"egg", "oats"},
		InventoryDeclared: true,
	}
	neg := models.Negations{models.CategoryAvailableIngredients: nil}

	merged := merger.Merge(prior, models.ConstraintSet{}, neg)

	if len(merged.Available) != 0 {
		t.Errorf("available not cleared: %v", merged.Available)
	}
	if merged.InventoryDeclared {
		t.Error("clearing inventory should reset the declared sentinel")
	}
	if !reflect.DeepEqual(merged.Diet, []string{"vegan"}) {
		t.Errorf("diet touched by inventory negation: %v", merged.Diet)
	}
	if !reflect.DeepEqual(merged.MealType, []string{"breakfast"}) {
		t.Errorf("meal type touched by inventory negation: %v", merged.MealType)
	}
}

func TestMergeValueLevelNegationRemovesOne(t *testing.T) {
	merger := NewMerger(nil)
	prior := models.ConstraintSet{
		Available:         []string{"egg", "oats", "milk"},
		InventoryDeclared: true,
	}
	neg := models.Negations{models.CategoryAvailableIngredients: {"Milk"}}

	merged := merger.Merge(prior, models.ConstraintSet{}, neg)

	if !reflect.DeepEqual(merged.Available, []string{"egg", "oats"}) {
		t.Errorf("value-level negation wrong: %v", merged.Available)
	}
	if !merged.InventoryDeclared {
		t.Error("removing one item should keep the inventory declared")
	}
}

func TestMergeDietNegationByValue(t *testing.T) {
	merger := NewMerger(nil)
	prior := models.ConstraintSet{Diet: []string{"gluten-free", "vegan"}}
	neg := models.Negations{models.CategoryDiet: {"plant based"}}

	merged := merger.Merge(prior, models.ConstraintSet{}, neg)

	if !reflect.DeepEqual(merged.Diet, []string{"gluten-free"}) {
		t.Errorf("diet alias negation wrong: %v", merged.Diet)
	}
}

func TestMergeKeepsExclusionAndAvailabilityDisjoint(t *testing.T) {
	merger := NewMerger(nil)

	// Newly available removes a standing exclusion.
	prior := models.ConstraintSet{Excluded: []string{"cheese"}}
	merged := merger.Merge(prior, models.ConstraintSet{Available: []string{"cheese"}}, nil)
	if len(merged.Excluded) != 0 {
		t.Errorf("newly available value should leave the excluded list: %v", merged.Excluded)
	}
	if !reflect.DeepEqual(merged.Available, []string{"cheese"}) {
		t.Errorf("available missing the new value: %v", merged.Available)
	}

	// Newly excluded removes a standing availability.
	prior = models.ConstraintSet{Available: []string{"cheese", "bread"}, InventoryDeclared: true}
	merged = merger.Merge(prior, models.ConstraintSet{Excluded: []string{"cheese"}}, nil)
	if !reflect.DeepEqual(merged.Available, []string{"bread"}) {
		t.Errorf("newly excluded value should leave the available list: %v", merged.Available)
	}
	if !reflect.DeepEqual(merged.Excluded, []string{"cheese"}) {
		t.Errorf("excluded missing the new value: %v", merged.Excluded)
	}

	// Both sides in one turn: exclusion wins.
	merged = merger.Merge(models.ConstraintSet{}, models.ConstraintSet{
		Available: []string{"shrimp"},
		Excluded:  []string{"shrimp"},
	}, nil)
	if len(merged.Available) != 0 || !reflect.DeepEqual(merged.Excluded, []string{"shrimp"}) {
		t.Errorf("exclusion should win a same-turn conflict: avail=%v excl=%v", merged.Available, merged.Excluded)
	}

	if err := merged.Validate(); err != nil {
		t.Errorf("merged set violates invariants: %v", err)
	}
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	merger := NewMerger(nil)
	prior := models.ConstraintSet{Available: []string{"egg"}, InventoryDeclared: true}
	extracted := models.ConstraintSet{Available: []string{"oats"}}

	merger.Merge(prior, extracted, models.Negations{models.CategoryAvailableIngredients: {"egg"}})

	if !reflect.DeepEqual(prior.Available, []string{"egg"}) {
		t.Errorf("prior mutated: %v", prior.Available)
	}
	if !reflect.DeepEqual(extracted.Available, []string{"oats"}) {
		t.Errorf("extracted mutated: %v", extracted.Available)
	}
}

func TestMergeDeclaredEmptyInventory(t *testing.T) {
	merger := NewMerger(nil)
	merged := merger.Merge(models.ConstraintSet{}, models.ConstraintSet{InventoryDeclared: true}, nil)
	if !merged.InventoryDeclared {
		t.Error("declared-empty inventory lost")
	}
	if len(merged.Available) != 0 {
		t.Errorf("unexpected available values: %v", merged.Available)
	}
}
