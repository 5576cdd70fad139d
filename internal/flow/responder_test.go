package flow

import (
	"strings"
	"testing"

	"github.com/BTreeMap/CookFlow/internal/models"
)

func TestRenderRecipe(t *testing.T) {
	draft := models.RecipeDraft{
		Title:       "Veggie Tacos",
		Ingredients: []string{"tortillas", "black beans"},
		Steps:       []string{"Warm the tortillas.", "Fill with beans."},
		MealType:    "dinner",
		Minutes:     20,
	}

	got := RenderRecipe(draft, "")
	want := "Veggie Tacos (dinner, about 20 minutes)\n\n" +
		"Ingredients:\n- tortillas\n- black beans\n\n" +
		"Steps:\n1. Warm the tortillas.\n2. Fill with beans."
	if got != want {
		t.Errorf("RenderRecipe =\n%q\nwant\n%q", got, want)
	}
}

func TestRenderRecipeOmitsEmptyMeta(t *testing.T) {
	draft := models.RecipeDraft{
		Title:       "Toast",
		Ingredients: []string{"bread"},
		Steps:       []string{"Toast the bread."},
	}

	got := RenderRecipe(draft, "")
	if strings.Contains(got, "(") {
		t.Errorf("RenderRecipe = %q, want no meta parentheses", got)
	}
	if !strings.HasPrefix(got, "Toast\n\nIngredients:") {
		t.Errorf("RenderRecipe = %q, want bare title line", got)
	}
}

func TestRenderRecipeAppendsNote(t *testing.T) {
	draft := models.RecipeDraft{
		Title:       "Toast",
		Ingredients: []string{"bread"},
		Steps:       []string{"Toast the bread."},
	}

	got := RenderRecipe(draft, noteNoMatches)
	if !strings.HasSuffix(got, noteNoMatches) {
		t.Errorf("RenderRecipe = %q, want trailing disclosure note", got)
	}
}

func TestSafetyAnswerEnforcesPrefix(t *testing.T) {
	got := SafetyAnswer("Discard food left out over two hours.", "")
	if !strings.HasPrefix(got, safetyPrefix) {
		t.Errorf("SafetyAnswer = %q, want %q prefix", got, safetyPrefix)
	}

	already := "⚠️ SAFETY FIRST: Discard it."
	if got := SafetyAnswer(already, ""); got != already {
		t.Errorf("SafetyAnswer double-prefixed: %q", got)
	}
}

func TestSafetyAnswerAppendsNote(t *testing.T) {
	got := SafetyAnswer("Chill leftovers promptly.", noteSafetyNoRules)
	if !strings.HasSuffix(got, noteSafetyNoRules) {
		t.Errorf("SafetyAnswer = %q, want trailing note", got)
	}
}

func TestConstraintAckSummarizesConstraints(t *testing.T) {
	c := models.ConstraintSet{Diet: []string{"vegan"}, MealType: []string{"breakfast"}}
	got := ConstraintAck(c)
	if !strings.Contains(got, "diet: vegan") || !strings.Contains(got, "meal: breakfast") {
		t.Errorf("ConstraintAck = %q, want the constraint summary", got)
	}
}

func TestRefusalNamesViolatedConstraint(t *testing.T) {
	got := Refusal("vegan", "uses egg")
	if !strings.Contains(got, `"vegan"`) {
		t.Errorf("Refusal = %q, want the violated constraint named", got)
	}
	if !strings.Contains(got, "uses egg") {
		t.Errorf("Refusal = %q, want the reason included", got)
	}

	generic := Refusal("", "")
	if strings.Contains(generic, `""`) {
		t.Errorf("generic Refusal = %q, want no empty quoted constraint", generic)
	}
}

func TestApologyNamesBackend(t *testing.T) {
	if got := Apology(backendModel); !strings.Contains(got, "cooking brain") {
		t.Errorf("model apology = %q", got)
	}
	if got := Apology(backendRetrieval); !strings.Contains(got, "recipe library") {
		t.Errorf("retrieval apology = %q", got)
	}
	// Every apology promises the session was untouched.
	for _, backend := range []string{backendModel, backendRetrieval, "other"} {
		if got := Apology(backend); !strings.Contains(got, "Nothing about your preferences changed") {
			t.Errorf("Apology(%q) = %q, want the no-change promise", backend, got)
		}
	}
}

func TestCulinaryAnswerListsEntries(t *testing.T) {
	got := CulinaryAnswer([]string{"cup: 16 tablespoons", "simmer: gentle bubbling"})
	want := "Here's what I have in my notes:\n- cup: 16 tablespoons\n- simmer: gentle bubbling"
	if got != want {
		t.Errorf("CulinaryAnswer =\n%q\nwant\n%q", got, want)
	}
}
