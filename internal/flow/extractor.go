package flow

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/BTreeMap/CookFlow/internal/constraint"
	"github.com/BTreeMap/CookFlow/internal/genai"
	"github.com/BTreeMap/CookFlow/internal/models"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"
)

const extractorSystemPrompt = `You extract cooking constraints from one user message.
Call the extract_constraints tool. Only report what this message states; never
invent values and never repeat constraints from earlier turns. Set
inventory_declared when the user describes what they have on hand, even if the
answer is nothing. Use negations for retractions such as "I'm no longer vegan"
(map the category to the retracted values) or "forget my ingredients" (map the
category to an empty list to clear it).`

// Extractor pulls structured constraints and retractions out of a free-form
// utterance. Like the classifier it prefers a tool call and degrades to a
// keyword layer driven by the vocabulary table.
type Extractor struct {
	client genai.ClientInterface
	table  *constraint.Table
}

// NewExtractor creates an extractor. A nil table falls back to the embedded
// default vocabulary.
func NewExtractor(client genai.ClientInterface, table *constraint.Table) *Extractor {
	if table == nil {
		table = constraint.DefaultTable()
	}
	return &Extractor{client: client, table: table}
}

func extractToolDefinition() openai.ChatCompletionToolParam {
	stringArray := map[string]interface{}{
		"type":  "array",
		"items": map[string]interface{}{"type": "string"},
	}
	return openai.ChatCompletionToolParam{
		Type: "function",
		Function: shared.FunctionDefinitionParam{
			Name:        "extract_constraints",
			Description: openai.String("Record the cooking constraints stated or retracted in the user's message."),
			Parameters: shared.FunctionParameters{
				"type": "object",
				"properties": map[string]interface{}{
					"diet":                  stringArray,
					"meal_type":             stringArray,
					"cooking_method":        stringArray,
					"available_ingredients": stringArray,
					"excluded_ingredients":  stringArray,
					"inventory_declared": map[string]interface{}{
						"type":        "boolean",
						"description": "True when the user describes their inventory, even an empty one",
					},
					"negations": map[string]interface{}{
						"type":                 "object",
						"description":          "Retracted constraints: category to retracted values, or to an empty list to clear the category",
						"additionalProperties": stringArray,
					},
				},
			},
		},
	}
}

// Extract returns the constraints stated in the utterance plus any
// retractions. The only error it can return is context cancellation; every
// other model failure falls back to the keyword layer.
func (e *Extractor) Extract(ctx context.Context, utterance string) (models.ConstraintSet, models.Negations, error) {
	if e.client == nil {
		cs, neg := e.extractByRules(utterance)
		return cs, neg, nil
	}

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(extractorSystemPrompt),
		openai.UserMessage(utterance),
	}
	resp, err := e.client.GenerateWithTools(ctx, messages, []openai.ChatCompletionToolParam{extractToolDefinition()})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return models.ConstraintSet{}, nil, err
		}
		slog.Warn("Extractor.Extract: model extraction failed, using keyword rules", "error", err)
		cs, neg := e.extractByRules(utterance)
		return cs, neg, nil
	}

	cs, neg, ok := parseExtraction(resp)
	if !ok {
		slog.Debug("Extractor.Extract: no usable extract_constraints call, using keyword rules")
		cs, neg = e.extractByRules(utterance)
	}
	return cs, neg, nil
}

// parseExtraction decodes the first well-formed extract_constraints call.
func parseExtraction(resp *genai.ToolCallResponse) (models.ConstraintSet, models.Negations, bool) {
	if resp == nil {
		return models.ConstraintSet{}, nil, false
	}
	for _, call := range resp.ToolCalls {
		if call.Function.Name != "extract_constraints" {
			continue
		}
		var args struct {
			Diet              []string            `json:"diet"`
			MealType          []string            `json:"meal_type"`
			CookingMethod     []string            `json:"cooking_method"`
			Available         []string            `json:"available_ingredients"`
			Excluded          []string            `json:"excluded_ingredients"`
			InventoryDeclared bool                `json:"inventory_declared"`
			Negations         map[string][]string `json:"negations"`
		}
		if err := json.Unmarshal(call.Function.Arguments, &args); err != nil {
			slog.Warn("Extractor: malformed extract_constraints arguments", "error", err)
			continue
		}
		cs := models.ConstraintSet{
			Diet:              args.Diet,
			MealType:          args.MealType,
			CookingMethod:     args.CookingMethod,
			Available:         args.Available,
			Excluded:          args.Excluded,
			InventoryDeclared: args.InventoryDeclared || len(args.Available) > 0,
		}
		var neg models.Negations
		for category, values := range args.Negations {
			cat := models.ConstraintCategory(category)
			if !models.IsValidConstraintCategory(cat) {
				slog.Warn("Extractor: model negated unknown category", "category", category)
				continue
			}
			if neg == nil {
				neg = models.Negations{}
			}
			neg[cat] = values
		}
		return cs, neg, true
	}
	return models.ConstraintSet{}, nil, false
}

// Marker phrases for the keyword layer. The ingredient-list markers capture
// the comma/"and" separated items that follow them, stopping at the first
// request word ("suggest", "make", ...).
var (
	availableMarkers = []string{"i have got", "i've got", "i have", "i got", "we have"}
	excludedMarkers  = []string{"allergic to", "allergy to", "without", "i don't eat", "i can't eat", "avoid", "i hate", "don't use", "hold the"}
	outOfMarkers     = []string{"i don't have", "i'm out of", "i ran out of", "ran out of", "no more"}
	emptyInventory   = []string{"i have nothing", "i don't have anything", "my fridge is empty", "nothing in my fridge", "nothing at home"}
)

// requestStopWords end an ingredient list when they start an item, so
// "I have eggs and oats, suggest something" captures only eggs and oats.
var requestStopWords = map[string]bool{
	"suggest": true, "make": true, "cook": true, "give": true, "recommend": true,
	"what": true, "can": true, "could": true, "please": true, "something": true,
	"anything": true, "so": true, "but": true, "now": true, "then": true,
	"recipe": true, "want": true, "need": true, "show": true, "tell": true,
	"find": true, "help": true, "let": true, "feel": true, "any": true,
	"nothing": true, "anymore": true,
}

// extractByRules is the deterministic keyword layer driven by the vocabulary
// table.
func (e *Extractor) extractByRules(utterance string) (models.ConstraintSet, models.Negations) {
	var cs models.ConstraintSet
	neg := models.Negations{}
	norm := constraint.NormalizeValue(utterance)

	for _, label := range e.table.DietLabels() {
		forms := append([]string{label}, e.table.Diets[label].Aliases...)
		for _, form := range forms {
			if !constraint.ContainsTerm(norm, form) {
				continue
			}
			if dietRetracted(norm, form) {
				neg[models.CategoryDiet] = append(neg[models.CategoryDiet], label)
			} else {
				cs.Diet = append(cs.Diet, label)
			}
			break
		}
	}

	for _, mealType := range e.table.MealTypes {
		if constraint.ContainsTerm(norm, mealType) {
			cs.MealType = append(cs.MealType, mealType)
		}
	}
	for _, method := range e.table.CookingMethods {
		if constraint.ContainsTerm(norm, method) {
			cs.CookingMethod = append(cs.CookingMethod, method)
		}
	}

	// Retractions are parsed before availability: "I don't have eggs anymore"
	// must not read as "I have eggs".
	for _, marker := range outOfMarkers {
		if items, ok := listAfter(norm, marker); ok && len(items) > 0 {
			neg[models.CategoryAvailableIngredients] = append(neg[models.CategoryAvailableIngredients], items...)
		}
	}
	if len(neg[models.CategoryAvailableIngredients]) == 0 {
		for _, marker := range availableMarkers {
			if items, ok := listAfter(norm, marker); ok && len(items) > 0 {
				cs.Available = append(cs.Available, items...)
				cs.InventoryDeclared = true
				break
			}
		}
	}
	for _, marker := range excludedMarkers {
		if items, ok := listAfter(norm, marker); ok && len(items) > 0 {
			cs.Excluded = append(cs.Excluded, items...)
		}
	}
	for _, phrase := range emptyInventory {
		if constraint.ContainsTerm(norm, phrase) {
			cs.InventoryDeclared = true
			break
		}
	}

	// "eggs are fine now" lifts an exclusion.
	for _, marker := range []string{"is fine now", "are fine now", "is ok now", "are ok now", "is okay now", "are okay now"} {
		if item, ok := tokenBefore(norm, marker); ok {
			neg[models.CategoryExcludedIngredients] = append(neg[models.CategoryExcludedIngredients], item)
		}
	}

	if len(neg) == 0 {
		neg = nil
	}
	return cs, neg
}

// dietRetracted reports whether the diet form appears in a retraction phrase.
func dietRetracted(norm, form string) bool {
	retractions := []string{
		"no longer " + form,
		"not " + form + " anymore",
		"stopped being " + form,
		"quit being " + form,
		"gave up being " + form,
	}
	for _, phrase := range retractions {
		if constraint.ContainsTerm(norm, phrase) {
			return true
		}
	}
	return false
}

// listAfter returns the ingredient list following the first occurrence of
// marker, if the marker is present.
func listAfter(norm, marker string) ([]string, bool) {
	padded := " " + norm + " "
	idx := strings.Index(padded, " "+marker+" ")
	if idx < 0 {
		return nil, false
	}
	rest := padded[idx+len(marker)+2:]
	return splitIngredientList(rest), true
}

// tokenBefore returns the token immediately preceding the first occurrence of
// marker.
func tokenBefore(norm, marker string) (string, bool) {
	padded := " " + norm + " "
	idx := strings.Index(padded, " "+marker+" ")
	if idx <= 0 {
		return "", false
	}
	before := strings.Fields(padded[:idx])
	if len(before) == 0 {
		return "", false
	}
	return cleanListItem(before[len(before)-1]), true
}

// splitIngredientList splits "eggs, oats and milk, suggest something" into
// ["eggs", "oats", "milk"], stopping at the first item that starts with a
// request word.
func splitIngredientList(s string) []string {
	var out []string
	chunks := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == '.' || r == '!' || r == '?'
	})
	for _, chunk := range chunks {
		for _, part := range strings.Split(chunk, " and ") {
			item := cleanListItem(part)
			if item == "" {
				continue
			}
			first := strings.Fields(item)[0]
			if requestStopWords[first] {
				return out
			}
			out = append(out, item)
		}
	}
	return out
}

// cleanListItem trims quantity filler from one list item.
func cleanListItem(item string) string {
	item = strings.TrimSpace(item)
	for _, prefix := range []string{"some ", "a few ", "a little ", "a ", "an ", "the ", "fresh ", "leftover "} {
		item = strings.TrimPrefix(item, prefix)
	}
	for _, suffix := range []string{" on hand", " left", " in the fridge", " in my fridge", " in the pantry", " in my pantry", " at home", " anymore", " again"} {
		item = strings.TrimSuffix(item, suffix)
	}
	return strings.Trim(item, " .,;:!?")
}
