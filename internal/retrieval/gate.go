package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/CookFlow/internal/constraint"
	"github.com/BTreeMap/CookFlow/internal/models"
)

// Defaults for the retrieval gate, overridable via options.
const (
	DefaultRecipeK       = 3
	DefaultSafetyK       = 2
	DefaultSearchTimeout = 5 * time.Second
)

// Gate decides what to look up for a turn and shapes the results for the
// generator. Recipe requests retrieve reference recipes; safety questions
// retrieve safety rules; chat retrieves nothing.
type Gate struct {
	index   Index
	recipeK int
	safetyK int
	timeout time.Duration
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithRecipeK sets how many reference recipes a recipe request retrieves.
func WithRecipeK(k int) GateOption {
	return func(g *Gate) {
		if k > 0 {
			g.recipeK = k
		}
	}
}

// WithSafetyK sets how many safety rules a safety question retrieves.
func WithSafetyK(k int) GateOption {
	return func(g *Gate) {
		if k > 0 {
			g.safetyK = k
		}
	}
}

// WithSearchTimeout caps the duration of one index lookup.
func WithSearchTimeout(d time.Duration) GateOption {
	return func(g *Gate) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// NewGate creates a retrieval gate over the given index.
func NewGate(index Index, opts ...GateOption) *Gate {
	g := &Gate{
		index:   index,
		recipeK: DefaultRecipeK,
		safetyK: DefaultSafetyK,
		timeout: DefaultSearchTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// RetrieveRecipes returns reference recipes matching the utterance and the
// active constraints. Recipes that mention an excluded ingredient are dropped
// so the generator is never prompted with them.
func (g *Gate) RetrieveRecipes(ctx context.Context, utterance string, constraints models.ConstraintSet) ([]models.RetrievedFact, error) {
	query := BuildRecipeQuery(utterance, constraints)

	fetchK := g.recipeK
	if len(constraints.Excluded) > 0 {
		// Over-fetch so post-filtering can still fill the requested k.
		fetchK = g.recipeK * 2
	}
	facts, err := g.search(ctx, query, models.FactRecipeReference, fetchK)
	if err != nil {
		return nil, err
	}

	facts = dropExcluded(facts, constraints.Excluded)
	if len(facts) > g.recipeK {
		facts = facts[:g.recipeK]
	}
	return facts, nil
}

// RetrieveSafety returns safety rules matching the utterance.
func (g *Gate) RetrieveSafety(ctx context.Context, utterance string) ([]models.RetrievedFact, error) {
	return g.search(ctx, utterance, models.FactSafetyRule, g.safetyK)
}

// search runs one index lookup under the gate timeout and maps failures onto
// the shared error taxonomy. Caller cancellation passes through untouched.
func (g *Gate) search(ctx context.Context, query string, category models.FactCategory, k int) ([]models.RetrievedFact, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	facts, err := g.index.Search(ctx, query, category, k)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", models.ErrRetrievalUnavailable, err)
	}

	slog.Debug("Gate.search: retrieval complete", "category", category, "keywords", len(tokenizeQuery(query)), "results", len(facts))
	return facts, nil
}

// BuildRecipeQuery combines the utterance with active constraint values so
// reference recipes match both what was asked and what is already known.
// Excluded ingredients never join the query.
func BuildRecipeQuery(utterance string, c models.ConstraintSet) string {
	parts := []string{utterance}
	parts = append(parts, c.Diet...)
	parts = append(parts, c.MealType...)
	parts = append(parts, c.CookingMethod...)
	parts = append(parts, c.Available...)
	return strings.Join(parts, " ")
}

// dropExcluded removes facts whose snippet names an excluded ingredient.
func dropExcluded(facts []models.RetrievedFact, excluded []string) []models.RetrievedFact {
	if len(excluded) == 0 {
		return facts
	}
	kept := facts[:0]
	for _, fact := range facts {
		mentions := false
		for _, term := range excluded {
			if constraint.MatchesIngredient(fact.Snippet, term) {
				mentions = true
				break
			}
		}
		if !mentions {
			kept = append(kept, fact)
		}
	}
	return kept
}
