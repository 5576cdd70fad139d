package constraint

import (
	"fmt"
	"strings"

	"github.com/BTreeMap/CookFlow/internal/models"
)

// Validator checks recipe drafts against the active ConstraintSet, the diet
// table, and retrieved safety facts. It is stateless; the regeneration
// budget belongs to the orchestrator.
type Validator struct {
	table   *Table
	staples map[string]bool
}

// ValidatorOption customizes a Validator.
type ValidatorOption func(*Validator)

// WithPantryStaples overrides the staple ingredients (water, salt, ...) that
// bypass the inventory containment check.
func WithPantryStaples(staples []string) ValidatorOption {
	return func(v *Validator) {
		v.staples = make(map[string]bool, len(staples))
		for _, s := range staples {
			v.staples[NormalizeValue(s)] = true
		}
	}
}

// NewValidator creates a Validator backed by the given diet table. A nil
// table falls back to the embedded default; staples default to the table's
// pantry_staples list.
func NewValidator(table *Table, opts ...ValidatorOption) *Validator {
	if table == nil {
		table = DefaultTable()
	}
	v := &Validator{table: table, staples: make(map[string]bool, len(table.PantryStaples))}
	for _, s := range table.PantryStaples {
		v.staples[NormalizeValue(s)] = true
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// safetyWarningMarkers are the cue words that make a safety snippet an
// interdiction rather than general guidance.
var safetyWarningMarkers = []string{
	"never", "do not", "don't", "avoid", "unsafe", "dangerous", "toxic", "must not", "discard",
}

// Validate runs the check sequence from the most concrete constraint to the
// most diffuse one: exclusions, inventory containment, diet compatibility,
// meal type, safety facts. The first check that fails decides the verdict.
//
// A structurally deficient draft (missing title, ingredients, or steps)
// yields needs_regeneration: the model produced an unusable draft rather
// than a non-compliant one. Constraint violations yield rejected with the
// offending ingredient in ViolatedConstraint and, when the violation is
// narrow enough to repair by substitution, regeneration feedback.
func (v *Validator) Validate(draft models.RecipeDraft, constraints models.ConstraintSet, facts []models.RetrievedFact) models.ValidationVerdict {
	if err := draft.Validate(); err != nil {
		return models.RegenerationVerdict(
			"The previous draft was incomplete ("+err.Error()+"). Produce a complete recipe with a title, an ingredient list, and numbered steps.", "")
	}

	if verdict, violated := v.checkIngredients(draft, constraints); violated {
		return verdict
	}
	if verdict, violated := v.checkMealType(draft, constraints); violated {
		return verdict
	}
	if verdict, violated := v.checkSafetyFacts(draft, facts); violated {
		return verdict
	}
	return models.AcceptedVerdict()
}

// checkIngredients covers exclusions, inventory containment, and
// diet-forbidden ingredients. Violations across these three are collected
// together so the feedback can name every offender at once.
func (v *Validator) checkIngredients(draft models.RecipeDraft, constraints models.ConstraintSet) (models.ValidationVerdict, bool) {
	type violation struct {
		ingredient string
		reason     string
	}
	var violations []violation
	flagged := make(map[string]bool)
	flag := func(ingredient, reason string) {
		norm := NormalizeValue(ingredient)
		if flagged[norm] {
			return
		}
		flagged[norm] = true
		violations = append(violations, violation{ingredient: norm, reason: reason})
	}

	for _, ingredient := range draft.Ingredients {
		for _, excluded := range constraints.Excluded {
			if MatchesIngredient(ingredient, excluded) {
				flag(excluded, fmt.Sprintf("%s is on the excluded list", excluded))
			}
		}
	}

	if constraints.InventoryDeclared {
		for _, ingredient := range draft.Ingredients {
			if v.isStaple(ingredient) {
				continue
			}
			if !v.inInventory(ingredient, constraints.Available) {
				flag(ingredient, fmt.Sprintf("%s is not among the available ingredients", NormalizeValue(ingredient)))
			}
		}
	}

	for _, diet := range constraints.Diet {
		for _, term := range v.table.ForbiddenFor(diet) {
			for _, ingredient := range draft.Ingredients {
				if MatchesIngredient(ingredient, term) {
					flag(term, fmt.Sprintf("%s is not %s", term, diet))
				}
			}
		}
	}

	if len(violations) == 0 {
		return models.ValidationVerdict{}, false
	}

	first := violations[0]
	verdict := models.RejectedVerdict(first.reason, first.ingredient)
	names := make([]string, 0, len(violations))
	for i, viol := range violations {
		if i == 3 {
			break
		}
		names = append(names, viol.ingredient)
	}
	verdict.Feedback = "Regenerate the recipe without " + strings.Join(names, ", ") + "."
	if constraints.InventoryDeclared && len(constraints.Available) > 0 {
		verdict.Feedback += " Use only: " + strings.Join(constraints.Available, ", ") + " plus pantry staples."
	}
	return verdict, true
}

func (v *Validator) checkMealType(draft models.RecipeDraft, constraints models.ConstraintSet) (models.ValidationVerdict, bool) {
	if len(constraints.MealType) == 0 || strings.TrimSpace(draft.MealType) == "" {
		return models.ValidationVerdict{}, false
	}
	declared := NormalizeValue(draft.MealType)
	for _, mealType := range constraints.MealType {
		if declared == mealType {
			return models.ValidationVerdict{}, false
		}
	}
	verdict := models.RejectedVerdict(
		fmt.Sprintf("draft is a %s recipe but the requested meal is %s", declared, strings.Join(constraints.MealType, " or ")),
		declared)
	verdict.Feedback = "Regenerate as a " + strings.Join(constraints.MealType, " or ") + " recipe."
	return verdict, true
}

// checkSafetyFacts flags a draft when a warning-bearing safety snippet names
// one of its ingredients, or when a step reuses the phrase the snippet warns
// about.
func (v *Validator) checkSafetyFacts(draft models.RecipeDraft, facts []models.RetrievedFact) (models.ValidationVerdict, bool) {
	for _, fact := range facts {
		if fact.Category != models.FactSafetyRule {
			continue
		}
		marker, warned := warnedPhrase(fact.Snippet)
		if !warned {
			continue
		}
		for _, ingredient := range draft.Ingredients {
			if MatchesIngredient(fact.Snippet, NormalizeValue(ingredient)) {
				verdict := models.RejectedVerdict(
					fmt.Sprintf("safety rule %s applies: %s", fact.SourceID, strings.TrimSpace(fact.Snippet)),
					NormalizeValue(ingredient))
				verdict.Feedback = "Regenerate the recipe without " + NormalizeValue(ingredient) + "; a safety rule forbids it."
				return verdict, true
			}
		}
		for _, step := range draft.Steps {
			if phraseOverlapsStep(marker, step) {
				verdict := models.RejectedVerdict(
					fmt.Sprintf("safety rule %s contradicts a step: %s", fact.SourceID, strings.TrimSpace(fact.Snippet)),
					"")
				verdict.Feedback = "Rewrite the steps to respect: " + strings.TrimSpace(fact.Snippet)
				return verdict, true
			}
		}
	}
	return models.ValidationVerdict{}, false
}

func (v *Validator) isStaple(ingredient string) bool {
	if v.staples[NormalizeValue(ingredient)] {
		return true
	}
	for staple := range v.staples {
		if MatchesIngredient(ingredient, staple) {
			return true
		}
	}
	return false
}

func (v *Validator) inInventory(ingredient string, available []string) bool {
	for _, item := range available {
		if MatchesIngredient(ingredient, item) || MatchesIngredient(item, ingredient) {
			return true
		}
	}
	return false
}

// warnedPhrase returns the tokens immediately following the first warning
// marker in a snippet, if any.
func warnedPhrase(snippet string) ([]string, bool) {
	norm := " " + NormalizeValue(snippet) + " "
	for _, marker := range safetyWarningMarkers {
		idx := strings.Index(norm, " "+marker+" ")
		if idx < 0 {
			continue
		}
		rest := norm[idx+len(marker)+2:]
		tokens := foldTokens(rest)
		if len(tokens) > 4 {
			tokens = tokens[:4]
		}
		return tokens, true
	}
	return nil, false
}

// phraseOverlapsStep reports whether a step shares two consecutive tokens
// with the warned phrase.
func phraseOverlapsStep(phrase []string, step string) bool {
	if len(phrase) < 2 {
		return false
	}
	stepTokens := foldTokens(step)
	for i := 0; i+1 < len(phrase); i++ {
		for j := 0; j+1 < len(stepTokens); j++ {
			if phrase[i] == stepTokens[j] && phrase[i+1] == stepTokens[j+1] {
				return true
			}
		}
	}
	return false
}

// MatchesIngredient reports whether term occurs in text as a whole-word
// phrase, folding simple plurals so "eggs" matches "egg" and "rolled oats"
// matches "oat".
func MatchesIngredient(text, term string) bool {
	textTokens := foldTokens(text)
	termTokens := foldTokens(term)
	if len(termTokens) == 0 || len(textTokens) < len(termTokens) {
		return false
	}
	for i := 0; i+len(termTokens) <= len(textTokens); i++ {
		match := true
		for j, tt := range termTokens {
			if textTokens[i+j] != tt {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// foldTokens normalizes, strips punctuation, and folds plural nouns.
func foldTokens(s string) []string {
	fields := strings.Fields(NormalizeValue(s))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?()[]\"'")
		if len(f) > 3 && strings.HasSuffix(f, "s") && !strings.HasSuffix(f, "ss") {
			f = strings.TrimSuffix(f, "s")
		}
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
