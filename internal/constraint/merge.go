package constraint

import (
	"github.com/BTreeMap/CookFlow/internal/models"
)

// Merger combines prior constraint state with constraints extracted from the
// current turn. It is pure: inputs are never mutated and the output is
// canonical (lower-cased, deduplicated, sorted), so merging twice with the
// same arguments is a no-op.
type Merger struct {
	table *Table
}

// NewMerger creates a Merger backed by the given diet table. A nil table
// falls back to the embedded default.
func NewMerger(table *Table) *Merger {
	if table == nil {
		table = DefaultTable()
	}
	return &Merger{table: table}
}

// Merge applies negations to the prior state, then folds in the extracted
// constraints.
//
// Negation semantics: an empty value slice clears the whole category ("no
// longer vegan"); a non-empty slice removes only the named values ("I don't
// have eggs anymore"). Clearing available_ingredients also resets the
// declared-inventory sentinel. Nothing else ever removes an available
// ingredient implicitly.
//
// Extracted values union into the prior per category, except diet: dietary
// labels are categorical, so a turn that states a diet replaces the prior
// diet wholesale (last statement wins). Availability and exclusion stay
// disjoint, with the newer statement winning; when one turn states both
// sides for the same value, exclusion wins.
func (m *Merger) Merge(prior, extracted models.ConstraintSet, neg models.Negations) models.ConstraintSet {
	result := prior.Clone()

	for category, values := range neg {
		if !models.IsValidConstraintCategory(category) {
			continue
		}
		if len(values) == 0 {
			result.SetValues(category, nil)
			if category == models.CategoryAvailableIngredients {
				result.InventoryDeclared = false
			}
			continue
		}
		remove := make(map[string]bool, len(values))
		for _, v := range values {
			if category == models.CategoryDiet {
				remove[m.table.CanonicalDiet(v)] = true
			} else {
				remove[NormalizeValue(v)] = true
			}
		}
		var kept []string
		for _, v := range result.Values(category) {
			if !remove[v] {
				kept = append(kept, v)
			}
		}
		result.SetValues(category, kept)
	}

	if len(extracted.Diet) > 0 {
		canonical := make([]string, 0, len(extracted.Diet))
		for _, d := range extracted.Diet {
			canonical = append(canonical, m.table.CanonicalDiet(d))
		}
		result.Diet = m.table.ResolveDietConflicts(canonical)
	}

	result.MealType = unionValues(result.MealType, extracted.MealType)
	result.CookingMethod = unionValues(result.CookingMethod, extracted.CookingMethod)

	newAvailable := NormalizeValues(extracted.Available)
	newExcluded := NormalizeValues(extracted.Excluded)
	result.Available = unionValues(result.Available, newAvailable)
	result.Excluded = unionValues(result.Excluded, newExcluded)
	if extracted.InventoryDeclared || len(newAvailable) > 0 {
		result.InventoryDeclared = true
	}

	result.Excluded = removeValues(result.Excluded, subtractValues(newAvailable, newExcluded))
	result.Available = removeValues(result.Available, newExcluded)

	result.Diet = NormalizeValues(result.Diet)
	result.MealType = NormalizeValues(result.MealType)
	result.CookingMethod = NormalizeValues(result.CookingMethod)
	result.Available = NormalizeValues(result.Available)
	result.Excluded = NormalizeValues(result.Excluded)

	return result
}

// unionValues merges two value lists into canonical form.
func unionValues(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	combined := make([]string, 0, len(a)+len(b))
	combined = append(combined, a...)
	combined = append(combined, b...)
	return NormalizeValues(combined)
}

// removeValues drops every value of remove from values.
func removeValues(values, remove []string) []string {
	if len(values) == 0 || len(remove) == 0 {
		return values
	}
	drop := make(map[string]bool, len(remove))
	for _, r := range remove {
		drop[r] = true
	}
	var kept []string
	for _, v := range values {
		if !drop[v] {
			kept = append(kept, v)
		}
	}
	return kept
}

// subtractValues returns the values of a not present in b.
func subtractValues(a, b []string) []string {
	if len(a) == 0 {
		return nil
	}
	drop := make(map[string]bool, len(b))
	for _, v := range b {
		drop[v] = true
	}
	var out []string
	for _, v := range a {
		if !drop[v] {
			out = append(out, v)
		}
	}
	return out
}
