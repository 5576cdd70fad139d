// Package constraint implements the constraint vocabulary, the pure merge of
// constraint state across turns, and validation of recipe drafts against the
// active constraints.
//
// The diet-incompatibility table is data-driven: a JSON document maps each
// dietary label to forbidden ingredient terms, conflicting labels, and
// surface-form aliases. A default table is embedded; deployments can override
// it with their own file.
package constraint

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

//go:embed diet_table.json
var defaultTableJSON []byte

// DietRule describes one dietary label.
type DietRule struct {
	Aliases       []string `json:"aliases"`        // surface forms canonicalized to this label
	Forbidden     []string `json:"forbidden"`      // ingredient terms incompatible with the diet
	ConflictsWith []string `json:"conflicts_with"` // labels that cannot coexist with this one
}

// Table is the parsed constraint vocabulary: diet rules plus the known meal
// types, cooking methods, and pantry staples.
type Table struct {
	Diets          map[string]DietRule `json:"diets"`
	MealTypes      []string            `json:"meal_types"`
	CookingMethods []string            `json:"cooking_methods"`
	PantryStaples  []string            `json:"pantry_staples"`

	aliasToDiet map[string]string
}

// ParseTable parses a diet table from JSON and builds the alias index.
func ParseTable(data []byte) (*Table, error) {
	var t Table
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse diet table: %w", err)
	}
	if len(t.Diets) == 0 {
		return nil, fmt.Errorf("diet table defines no diets")
	}
	t.aliasToDiet = make(map[string]string)
	for label, rule := range t.Diets {
		t.aliasToDiet[NormalizeValue(label)] = label
		for _, alias := range rule.Aliases {
			t.aliasToDiet[NormalizeValue(alias)] = label
		}
	}
	return &t, nil
}

// LoadTableFile parses a diet table from a file on disk.
func LoadTableFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read diet table %s: %w", path, err)
	}
	return ParseTable(data)
}

// DefaultTable returns the embedded default table. The embedded document is a
// build-time asset, so a parse failure is a programming error.
func DefaultTable() *Table {
	t, err := ParseTable(defaultTableJSON)
	if err != nil {
		panic(fmt.Sprintf("embedded diet table is invalid: %v", err))
	}
	return t
}

// CanonicalDiet maps a surface form to its canonical diet label. Unknown
// labels pass through normalized, so user-stated diets outside the table are
// still tracked (they just carry no forbidden-ingredient rules).
func (t *Table) CanonicalDiet(value string) string {
	norm := NormalizeValue(value)
	if label, ok := t.aliasToDiet[norm]; ok {
		return label
	}
	return norm
}

// ForbiddenFor returns the forbidden ingredient terms for a diet label, nil
// when the label is not in the table.
func (t *Table) ForbiddenFor(diet string) []string {
	rule, ok := t.Diets[t.CanonicalDiet(diet)]
	if !ok {
		return nil
	}
	return rule.Forbidden
}

// Conflicts reports whether two diet labels cannot coexist.
func (t *Table) Conflicts(a, b string) bool {
	ca, cb := t.CanonicalDiet(a), t.CanonicalDiet(b)
	if ca == cb {
		return false
	}
	if rule, ok := t.Diets[ca]; ok {
		for _, c := range rule.ConflictsWith {
			if t.CanonicalDiet(c) == cb {
				return true
			}
		}
	}
	if rule, ok := t.Diets[cb]; ok {
		for _, c := range rule.ConflictsWith {
			if t.CanonicalDiet(c) == ca {
				return true
			}
		}
	}
	return false
}

// DietLabels returns the canonical diet labels in sorted order.
func (t *Table) DietLabels() []string {
	labels := make([]string, 0, len(t.Diets))
	for label := range t.Diets {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// ResolveDietConflicts enforces mutual exclusion inside one diet list,
// keeping the later-stated label of any conflicting pair.
func (t *Table) ResolveDietConflicts(labels []string) []string {
	var kept []string
	for _, label := range labels {
		canonical := t.CanonicalDiet(label)
		if canonical == "" {
			continue
		}
		filtered := kept[:0]
		duplicate := false
		for _, existing := range kept {
			if existing == canonical {
				duplicate = true
			}
			if !t.Conflicts(existing, canonical) {
				filtered = append(filtered, existing)
			}
		}
		kept = filtered
		if !duplicate {
			kept = append(kept, canonical)
		}
	}
	return kept
}

// NormalizeValue lower-cases, trims, and collapses inner whitespace.
func NormalizeValue(value string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(value))), " ")
}

// NormalizeValues normalizes each value, drops empties, deduplicates, and
// sorts. Returns nil for an empty result so canonical sets compare equal.
func NormalizeValues(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		norm := NormalizeValue(v)
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, norm)
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}

// ContainsTerm reports whether term occurs in text on word boundaries, so
// "cheddar cheese" matches the term "cheese" but "eggplant" does not match
// "egg". Both sides are normalized first.
func ContainsTerm(text, term string) bool {
	normText := " " + NormalizeValue(text) + " "
	normTerm := NormalizeValue(term)
	if normTerm == "" {
		return false
	}
	return strings.Contains(normText, " "+normTerm+" ")
}
