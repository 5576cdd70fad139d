// Package genai provides the OpenAI-backed language model layer used for
// intent classification, constraint extraction, and recipe generation.
package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/BTreeMap/CookFlow/internal/models"
)

// Default client settings, overridable via options.
const (
	DefaultModel     = "gpt-4o-mini"
	DefaultTimeout   = 30 * time.Second
	DefaultMaxTokens = 1024
)

// ErrMissingAPIKey indicates no API key was supplied via options or environment.
var ErrMissingAPIKey = errors.New("OPENAI_API_KEY not set")

// ClientInterface defines the model operations the dialogue flow depends on.
// Tests substitute fakes for this interface.
type ClientInterface interface {
	// GenerateWithMessages runs a chat completion and returns the assistant text.
	GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error)
	// GenerateWithTools runs a chat completion with tool definitions and returns
	// the assistant text plus any tool calls the model chose to make.
	GenerateWithTools(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, tools []openai.ChatCompletionToolParam) (*ToolCallResponse, error)
}

// ToolCallResponse carries the assistant content and tool calls from one completion.
type ToolCallResponse struct {
	Content   string
	ToolCalls []ToolCall
}

// ToolCall is a single function invocation requested by the model.
type ToolCall struct {
	ID       string
	Function ToolCallFunction
}

// ToolCallFunction holds the function name and its raw JSON arguments.
type ToolCallFunction struct {
	Name      string
	Arguments json.RawMessage
}

// Opts holds configuration for the GenAI client.
type Opts struct {
	APIKey    string
	Model     string
	Timeout   time.Duration
	MaxTokens int64
}

// Option configures the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key explicitly instead of reading the environment.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel sets the chat model name.
func WithModel(model string) Option {
	return func(o *Opts) {
		if model != "" {
			o.Model = model
		}
	}
}

// WithTimeout caps the duration of a single model request.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) {
		if d > 0 {
			o.Timeout = d
		}
	}
}

// WithMaxTokens caps completion length.
func WithMaxTokens(n int64) Option {
	return func(o *Opts) {
		if n > 0 {
			o.MaxTokens = n
		}
	}
}

// Client wraps the OpenAI chat completion API.
type Client struct {
	client    openai.Client
	model     string
	timeout   time.Duration
	maxTokens int64
}

// NewClient initializes a GenAI client. The API key comes from options or the
// OPENAI_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	o := Opts{
		Model:     DefaultModel,
		Timeout:   DefaultTimeout,
		MaxTokens: DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.APIKey == "" {
		o.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if o.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	slog.Debug("GenAI.NewClient: initializing client", "model", o.Model, "timeout", o.Timeout, "maxTokens", o.MaxTokens)
	return &Client{
		client:    openai.NewClient(option.WithAPIKey(o.APIKey)),
		model:     o.Model,
		timeout:   o.Timeout,
		maxTokens: o.MaxTokens,
	}, nil
}

// GenerateWithMessages runs a chat completion and returns the assistant text.
func (c *Client) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	completion, err := c.complete(ctx, openai.ChatCompletionNewParams{
		Messages:  messages,
		Model:     shared.ChatModel(c.model),
		MaxTokens: param.NewOpt(c.maxTokens),
	})
	if err != nil {
		return "", err
	}

	content := completion.Choices[0].Message.Content
	slog.Debug("GenAI.GenerateWithMessages: completion received", "messageCount", len(messages), "responseLength", len(content))
	return content, nil
}

// GenerateWithTools runs a chat completion with tool definitions.
func (c *Client) GenerateWithTools(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, tools []openai.ChatCompletionToolParam) (*ToolCallResponse, error) {
	completion, err := c.complete(ctx, openai.ChatCompletionNewParams{
		Messages:  messages,
		Model:     shared.ChatModel(c.model),
		Tools:     tools,
		MaxTokens: param.NewOpt(c.maxTokens),
	})
	if err != nil {
		return nil, err
	}

	msg := completion.Choices[0].Message
	resp := &ToolCallResponse{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, ToolCall{
			ID: tc.ID,
			Function: ToolCallFunction{
				Name:      tc.Function.Name,
				Arguments: json.RawMessage(tc.Function.Arguments),
			},
		})
	}

	slog.Debug("GenAI.GenerateWithTools: completion received",
		"messageCount", len(messages), "toolCount", len(tools),
		"responseLength", len(resp.Content), "toolCallCount", len(resp.ToolCalls))
	return resp, nil
}

// complete issues one chat completion request with the client timeout applied
// and maps transport failures onto the shared error taxonomy.
func (c *Client) complete(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classifyError(err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned", models.ErrModelUnavailable)
	}
	return completion, nil
}

// classifyError maps OpenAI client errors onto models.ErrModelTimeout and
// models.ErrModelUnavailable so callers can branch without knowing the SDK.
// Caller cancellation passes through untouched.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", models.ErrModelTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%w: status %d", models.ErrModelUnavailable, apiErr.StatusCode)
		}
		return fmt.Errorf("model request rejected: %w", err)
	}
	return fmt.Errorf("%w: %v", models.ErrModelUnavailable, err)
}
