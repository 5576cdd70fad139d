package flow

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/BTreeMap/CookFlow/internal/constraint"
	"github.com/BTreeMap/CookFlow/internal/genai"
	"github.com/BTreeMap/CookFlow/internal/models"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"
)

// ambiguityThreshold is the model-reported confidence below which a
// classification is answered with a clarifying question instead of a guess.
const ambiguityThreshold = 0.5

const classifierSystemPrompt = `You route messages for a cooking assistant.
Call the classify_turn tool with exactly one intent:
- chat: small talk or anything without cooking semantics
- constraint_update: the user states or retracts dietary preferences, available or excluded ingredients, meal type, or cooking method, without asking for a recipe
- recipe_request: the user wants a recipe or a meal suggestion
- safety_question: the user asks about food safety, storage, spoilage, or hygiene
- cooking_question: the user asks about techniques, conversions, substitutions, or a step of a recipe
- unknown: none of the above fits
Report your confidence between 0 and 1.`

// Classifier maps a user utterance to exactly one Intent. The primary path is
// one chat completion with a classify_turn tool call; a deterministic keyword
// layer takes over whenever the model is unavailable or returns nothing
// usable, so classification itself never fails a turn.
type Classifier struct {
	client genai.ClientInterface
	table  *constraint.Table
}

// NewClassifier creates a classifier. A nil client selects the keyword layer
// outright; a nil table falls back to the embedded default vocabulary.
func NewClassifier(client genai.ClientInterface, table *constraint.Table) *Classifier {
	if table == nil {
		table = constraint.DefaultTable()
	}
	return &Classifier{client: client, table: table}
}

func classifyToolDefinition() openai.ChatCompletionToolParam {
	return openai.ChatCompletionToolParam{
		Type: "function",
		Function: shared.FunctionDefinitionParam{
			Name:        "classify_turn",
			Description: openai.String("Classify the intent of the user's message for a cooking assistant."),
			Parameters: shared.FunctionParameters{
				"type": "object",
				"properties": map[string]interface{}{
					"intent": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"chat", "constraint_update", "recipe_request", "safety_question", "cooking_question", "unknown"},
						"description": "The single intent of the message",
					},
					"confidence": map[string]interface{}{
						"type":        "number",
						"description": "Classification confidence between 0 and 1",
					},
				},
				"required": []string{"intent"},
			},
		},
	}
}

// Classify maps the utterance to an intent. It is read-only and total: every
// input yields an intent, with IntentUnknown as the catch-all. The only error
// values are context cancellation and ErrClassificationAmbiguous, raised when
// the model itself reports low confidence.
func (c *Classifier) Classify(ctx context.Context, utterance string, constraints models.ConstraintSet) (models.Intent, error) {
	if c.client == nil {
		return c.classifyByRules(utterance), nil
	}

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(classifierSystemPrompt),
	}
	if !constraints.IsEmpty() {
		messages = append(messages, openai.SystemMessage("ACTIVE CONSTRAINTS: "+constraints.Describe()))
	}
	messages = append(messages, openai.UserMessage(utterance))

	resp, err := c.client.GenerateWithTools(ctx, messages, []openai.ChatCompletionToolParam{classifyToolDefinition()})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		slog.Warn("Classifier.Classify: model classification failed, using keyword rules", "error", err)
		return c.classifyByRules(utterance), nil
	}

	intent, confidence, ok := parseClassification(resp)
	if !ok {
		slog.Debug("Classifier.Classify: no usable classify_turn call, using keyword rules")
		return c.classifyByRules(utterance), nil
	}
	if confidence < ambiguityThreshold {
		slog.Debug("Classifier.Classify: confidence below threshold", "intent", intent, "confidence", confidence)
		return models.IntentUnknown, models.ErrClassificationAmbiguous
	}
	slog.Debug("Classifier.Classify: classified", "intent", intent, "confidence", confidence)
	return intent, nil
}

// parseClassification extracts the intent and confidence from the first
// well-formed classify_turn call. A missing confidence counts as certain.
func parseClassification(resp *genai.ToolCallResponse) (models.Intent, float64, bool) {
	if resp == nil {
		return "", 0, false
	}
	for _, call := range resp.ToolCalls {
		if call.Function.Name != "classify_turn" {
			continue
		}
		var args struct {
			Intent     string   `json:"intent"`
			Confidence *float64 `json:"confidence"`
		}
		if err := json.Unmarshal(call.Function.Arguments, &args); err != nil {
			slog.Warn("Classifier: malformed classify_turn arguments", "error", err)
			continue
		}
		intent := models.Intent(args.Intent)
		if !models.IsValidIntent(intent) {
			slog.Warn("Classifier: model returned unknown intent label", "intent", args.Intent)
			continue
		}
		confidence := 1.0
		if args.Confidence != nil {
			confidence = *args.Confidence
		}
		return intent, confidence, true
	}
	return "", 0, false
}

// Keyword terms for the deterministic fallback layer. Matching is word-level
// (see constraint.ContainsTerm), so "cook" does not match "cooking". Order of
// the checks below resolves overlaps: safety wins over cooking questions,
// cooking questions win over recipe requests, recipe requests win over
// constraint statements.
var (
	safetyTerms = []string{
		"safe", "safety", "spoil", "spoiled", "go bad", "gone bad", "undercooked",
		"expired", "expire", "bacteria", "food poisoning", "contamination",
		"cross-contamination", "leftover", "leftovers", "refrigerate", "hygiene",
		"left out", "botulism", "salmonella",
	}
	cookingTerms = []string{
		"how long", "how much", "how many", "how do i", "how to", "what temperature",
		"convert", "conversion", "substitute", "substitution", "instead of",
		"replacement", "step", "tablespoon", "tablespoons", "teaspoon", "teaspoons",
		"grams", "ounces", "internal temperature", "degrees", "al dente", "simmer",
	}
	recipeTerms = []string{
		"recipe", "suggest", "suggestion", "recommend", "make me", "cook", "dish",
		"meal", "menu", "hungry", "crave", "craving", "what should i eat",
		"what can i make", "something to eat", "dinner idea", "idea",
	}
	constraintTerms = []string{
		"i have", "i've got", "i got", "allergic", "allergy", "without",
		"i don't eat", "i can't eat", "don't have", "no longer", "anymore",
		"avoid", "intolerant", "on hand", "in my fridge", "in my pantry",
		"my fridge", "prefer", "i'm out of",
	}
	chatTerms = []string{
		"hi", "hello", "hey", "thanks", "thank you", "how are you", "good morning",
		"good evening", "bye", "goodbye", "who are you", "what can you do",
	}
)

// classifyByRules is the deterministic keyword layer. It is total; anything
// no rule covers is IntentUnknown, which downstream answers with a
// clarifying question.
func (c *Classifier) classifyByRules(utterance string) models.Intent {
	switch {
	case hasAnyTerm(utterance, safetyTerms):
		return models.IntentSafetyQuestion
	case hasAnyTerm(utterance, cookingTerms):
		return models.IntentCookingQuestion
	case hasAnyTerm(utterance, recipeTerms):
		return models.IntentRecipeRequest
	case c.mentionsDiet(utterance), hasAnyTerm(utterance, constraintTerms), c.mentionsMealType(utterance):
		return models.IntentConstraintUpdate
	case hasAnyTerm(utterance, chatTerms):
		return models.IntentChat
	default:
		return models.IntentUnknown
	}
}

func hasAnyTerm(utterance string, terms []string) bool {
	for _, term := range terms {
		if constraint.ContainsTerm(utterance, term) {
			return true
		}
	}
	return false
}

// mentionsDiet checks the utterance against every diet label and alias in the
// vocabulary table.
func (c *Classifier) mentionsDiet(utterance string) bool {
	for _, label := range c.table.DietLabels() {
		if constraint.ContainsTerm(utterance, label) {
			return true
		}
		for _, alias := range c.table.Diets[label].Aliases {
			if constraint.ContainsTerm(utterance, alias) {
				return true
			}
		}
	}
	return false
}

func (c *Classifier) mentionsMealType(utterance string) bool {
	for _, mealType := range c.table.MealTypes {
		if constraint.ContainsTerm(utterance, mealType) {
			return true
		}
	}
	return false
}
