package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BTreeMap/CookFlow/internal/genai"
	"github.com/BTreeMap/CookFlow/internal/models"
	"github.com/openai/openai-go"
)

// maxChatHistory caps how many prior turns are replayed to the model.
const maxChatHistory = 30

// ErrDraftUnparseable indicates the model reply could not be decoded into a
// recipe draft. The orchestrator counts it against the regeneration budget.
var ErrDraftUnparseable = errors.New("model reply is not a usable recipe draft")

const recipeSystemPrompt = `You are the executive chef of a cooking assistant.
Create exactly one recipe for the user's request, respecting every stated
constraint. Respond with a single JSON object and nothing else:
{"title": string, "ingredients": [string], "steps": [string], "meal_type": string, "minutes": number, "tags": [string]}
Ingredients are plain names with optional quantities; steps are complete
sentences in cooking order.`

const chatSystemPrompt = `You are the host of a cooking assistant, greeting and
chatting with guests. Comply with reasonable requests, keep replies short, and
when the topic drifts far from food, gently remind the guest that you are a
chef here for their culinary questions.`

const safetySystemPrompt = `You are a chef instructor answering a food safety
question. Answer strictly based on the official guidelines provided; when they
do not cover the question, use general food safety knowledge and be extremely
cautious. Start your answer with "⚠️ SAFETY FIRST:" whenever there is any risk.`

const cookingSystemPrompt = `You are a chef instructor. Answer the user's
cooking question like a patient teacher. When the context includes the recipe
the user is cooking, check it first and answer about its actual steps. Without
context, answer generally and say so when you are not certain.`

// Generator owns every call to the generative model: recipe drafting, chat
// replies, and grounded safety or cooking answers. It holds no session state.
type Generator struct {
	client genai.ClientInterface
}

// NewGenerator creates a generator. A nil client makes every call report
// ErrModelUnavailable, which the orchestrator answers with an apology.
func NewGenerator(client genai.ClientInterface) *Generator {
	return &Generator{client: client}
}

// GenerateRecipe asks the model for one recipe draft. Retrieved reference
// recipes ground the generation; feedback lines from rejected attempts are
// replayed so the next draft can avoid the same violation.
func (g *Generator) GenerateRecipe(ctx context.Context, utterance string, constraints models.ConstraintSet, facts []models.RetrievedFact, feedback []string) (*models.RecipeDraft, error) {
	if g.client == nil {
		return nil, fmt.Errorf("%w: no model client configured", models.ErrModelUnavailable)
	}

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(recipeSystemPrompt),
	}
	if directives := constraintDirectives(constraints); directives != "" {
		messages = append(messages, openai.SystemMessage(directives))
	}
	if references := referenceBlock(facts); references != "" {
		messages = append(messages, openai.SystemMessage(references))
	}
	for _, line := range feedback {
		messages = append(messages, openai.SystemMessage("PREVIOUS ATTEMPT REJECTED: "+line))
	}
	messages = append(messages, openai.UserMessage(utterance))

	reply, err := g.client.GenerateWithMessages(ctx, messages)
	if err != nil {
		return nil, err
	}
	draft, err := parseRecipeDraft(reply)
	if err != nil {
		slog.Warn("Generator.GenerateRecipe: unparseable draft", "error", err, "replyLength", len(reply))
		return nil, err
	}
	slog.Debug("Generator.GenerateRecipe: draft produced", "title", draft.Title, "ingredients", len(draft.Ingredients), "steps", len(draft.Steps))
	return draft, nil
}

// GenerateChat produces a conversational reply over the capped history.
func (g *Generator) GenerateChat(ctx context.Context, turns []models.Turn, utterance string) (string, error) {
	if g.client == nil {
		return "", fmt.Errorf("%w: no model client configured", models.ErrModelUnavailable)
	}
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(chatSystemPrompt),
	}
	messages = append(messages, historyMessages(turns)...)
	messages = append(messages, openai.UserMessage(utterance))
	return g.client.GenerateWithMessages(ctx, messages)
}

// GenerateSafetyAnswer answers a food safety question grounded on the
// retrieved safety rules.
func (g *Generator) GenerateSafetyAnswer(ctx context.Context, utterance string, facts []models.RetrievedFact) (string, error) {
	if g.client == nil {
		return "", fmt.Errorf("%w: no model client configured", models.ErrModelUnavailable)
	}
	guidelines := "No specific rules found. Use your general food safety knowledge and be extremely cautious."
	if len(facts) > 0 {
		var lines []string
		for _, fact := range facts {
			lines = append(lines, "RULE: "+fact.Snippet)
		}
		guidelines = strings.Join(lines, "\n")
	}
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(safetySystemPrompt),
		openai.SystemMessage("OFFICIAL SAFETY GUIDELINES:\n" + guidelines),
		openai.UserMessage(utterance),
	}
	return g.client.GenerateWithMessages(ctx, messages)
}

// GenerateCookingAnswer answers a technique or instruction question, grounded
// on the session's last suggested recipe when one exists.
func (g *Generator) GenerateCookingAnswer(ctx context.Context, utterance, lastRecipeTitle, lastRecipeText string) (string, error) {
	if g.client == nil {
		return "", fmt.Errorf("%w: no model client configured", models.ErrModelUnavailable)
	}
	var contextBlock string
	switch {
	case lastRecipeText != "":
		contextBlock = fmt.Sprintf("USER IS COOKING: %q\n\nOFFICIAL RECIPE:\n%s", lastRecipeTitle, lastRecipeText)
	case lastRecipeTitle != "":
		contextBlock = fmt.Sprintf("USER IS COOKING: %q (no steps on file).", lastRecipeTitle)
	default:
		contextBlock = "The user asks a general cooking question; no recipe is on file."
	}
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(cookingSystemPrompt),
		openai.SystemMessage("CONTEXT: " + contextBlock),
		openai.UserMessage(utterance),
	}
	return g.client.GenerateWithMessages(ctx, messages)
}

// constraintDirectives renders the active constraints as hard instructions.
func constraintDirectives(c models.ConstraintSet) string {
	if c.IsEmpty() {
		return ""
	}
	lines := []string{"ACTIVE CONSTRAINTS: " + c.Describe() + "."}
	if len(c.Excluded) > 0 {
		lines = append(lines, "Never use: "+strings.Join(c.Excluded, ", ")+".")
	}
	if c.InventoryDeclared {
		if len(c.Available) > 0 {
			lines = append(lines, "Use only these ingredients plus pantry staples: "+strings.Join(c.Available, ", ")+".")
		} else {
			lines = append(lines, "The user has no ingredients on hand; suggest a shopping-light recipe built on pantry staples.")
		}
	}
	return strings.Join(lines, "\n")
}

// referenceBlock formats retrieved recipe facts the way the generation prompt
// expects them.
func referenceBlock(facts []models.RetrievedFact) string {
	var b strings.Builder
	option := 0
	for _, fact := range facts {
		if fact.Category != models.FactRecipeReference {
			continue
		}
		option++
		fmt.Fprintf(&b, "--- RECIPE OPTION %d ---\n%s\n", option, fact.Snippet)
	}
	if option == 0 {
		return ""
	}
	return "REFERENCE RECIPES:\n" + b.String()
}

// historyMessages converts stored turns into chat messages, newest last,
// capped at maxChatHistory.
func historyMessages(turns []models.Turn) []openai.ChatCompletionMessageParamUnion {
	if len(turns) > maxChatHistory {
		turns = turns[len(turns)-maxChatHistory:]
	}
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case models.RoleUser:
			messages = append(messages, openai.UserMessage(turn.Content))
		case models.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(turn.Content))
		}
	}
	return messages
}

// parseRecipeDraft decodes the model reply into a draft. The reply may wrap
// the JSON object in prose or a markdown fence; everything outside the
// outermost braces is ignored.
func parseRecipeDraft(reply string) (*models.RecipeDraft, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in reply", ErrDraftUnparseable)
	}
	var draft models.RecipeDraft
	if err := json.Unmarshal([]byte(reply[start:end+1]), &draft); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDraftUnparseable, err)
	}
	return &draft, nil
}
