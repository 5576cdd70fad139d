package flow

import (
	"fmt"
	"strings"

	"github.com/BTreeMap/CookFlow/internal/models"
)

const safetyPrefix = "⚠️ SAFETY FIRST: "

// Backend names used in apology templates. Degraded responses always say
// which backend caused them.
const (
	backendModel     = "model"
	backendRetrieval = "retrieval"
)

// Disclosure notes appended to degraded answers.
const (
	noteRetrievalDown = "Heads up: my recipe library was unreachable just now, so this suggestion comes from general knowledge only."
	noteNoMatches     = "I didn't find a close match in my recipe library, so this is a general suggestion."
	noteSafetyDown    = "My safety library was unreachable just now, so treat this as general guidance and double-check anything risky."
	noteSafetyNoRules = "No specific rule in my safety library covers this, so treat the advice as general guidance."
)

// RenderRecipe formats an accepted draft for the user. A non-empty note is
// appended as a trailing paragraph (retrieval disclosures).
func RenderRecipe(draft models.RecipeDraft, note string) string {
	var b strings.Builder
	b.WriteString(draft.Title)
	var meta []string
	if draft.MealType != "" {
		meta = append(meta, draft.MealType)
	}
	if draft.Minutes > 0 {
		meta = append(meta, fmt.Sprintf("about %d minutes", draft.Minutes))
	}
	if len(meta) > 0 {
		b.WriteString(" (" + strings.Join(meta, ", ") + ")")
	}
	b.WriteString("\n\nIngredients:\n")
	for _, ingredient := range draft.Ingredients {
		b.WriteString("- " + ingredient + "\n")
	}
	b.WriteString("\nSteps:\n")
	for i, step := range draft.Steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}
	if note != "" {
		b.WriteString("\n" + note)
	}
	return strings.TrimRight(b.String(), "\n")
}

// SafetyAnswer enforces the safety prefix on a grounded answer and appends
// the degradation note when the safety library could not back it.
func SafetyAnswer(text, note string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "⚠️") {
		text = safetyPrefix + text
	}
	if note != "" {
		text += "\n\n" + note
	}
	return text
}

// ConstraintAck acknowledges a constraint update with the merged summary.
func ConstraintAck(c models.ConstraintSet) string {
	return "Got it, I'll keep that in mind. Current preferences: " + c.Describe() + "."
}

// Refusal is the safe templated refusal after the regeneration budget is
// exhausted. It names the violated constraint so the user can loosen it.
func Refusal(violatedConstraint, reason string) string {
	if violatedConstraint == "" {
		return "I tried a few versions, but I couldn't put together a recipe that respects all of your constraints. Rather than serve something that breaks them, I'll skip this one. Loosen a constraint or ask for a different dish and I'll try again."
	}
	msg := fmt.Sprintf("I tried a few versions, but every draft ran into your %q restriction", violatedConstraint)
	if reason != "" {
		msg += " (" + reason + ")"
	}
	return msg + ". Rather than serve something that breaks it, I'll skip this one. Loosen a constraint or ask for a different dish and I'll try again."
}

// Clarification asks the user to restate an unclassifiable request.
func Clarification() string {
	return "I want to make sure I help with the right thing. Are you asking for a recipe, updating your preferences, or asking a cooking or food safety question?"
}

// Apology is the templated failure response for an unreachable backend. The
// session state is unchanged when it is used.
func Apology(backend string) string {
	switch backend {
	case backendModel:
		return "I'm sorry, my cooking brain isn't responding right now. Nothing about your preferences changed; please try again in a moment."
	case backendRetrieval:
		return "I'm sorry, my recipe library isn't responding right now. Nothing about your preferences changed; please try again in a moment."
	default:
		return "I'm sorry, something on my side isn't responding right now. Nothing about your preferences changed; please try again in a moment."
	}
}

// CulinaryAnswer formats matched culinary-constant entries.
func CulinaryAnswer(entries []string) string {
	var b strings.Builder
	b.WriteString("Here's what I have in my notes:\n")
	for _, entry := range entries {
		b.WriteString("- " + entry + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
