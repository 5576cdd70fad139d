package flow

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/openai/openai-go"

	"github.com/BTreeMap/CookFlow/internal/genai"
)

// scriptedReply is one queued answer for a text completion.
type scriptedReply struct {
	reply string
	err   error
}

// scriptedTool is one queued answer for a tool completion.
type scriptedTool struct {
	resp *genai.ToolCallResponse
	err  error
}

// mockModelClient implements genai.ClientInterface with scripted answer
// queues, consumed in order. When a queue runs dry it falls back to a benign
// default: an empty tool response (so keyword rules take over) or a short
// canned reply.
type mockModelClient struct {
	mu           sync.Mutex
	replies      []scriptedReply
	toolReplies  []scriptedTool
	messageCalls int
	toolCalls    int
	lastMessages []openai.ChatCompletionMessageParamUnion
	beforeReply  func(ctx context.Context)
}

func (m *mockModelClient) queueReply(reply string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, scriptedReply{reply: reply, err: err})
}

func (m *mockModelClient) queueToolCall(name, args string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toolReplies = append(m.toolReplies, scriptedTool{resp: &genai.ToolCallResponse{
		ToolCalls: []genai.ToolCall{{
			ID: "call-1",
			Function: genai.ToolCallFunction{
				Name:      name,
				Arguments: json.RawMessage(args),
			},
		}},
	}})
}

func (m *mockModelClient) queueToolError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toolReplies = append(m.toolReplies, scriptedTool{err: err})
}

func (m *mockModelClient) counts() (messageCalls, toolCalls int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.messageCalls, m.toolCalls
}

func (m *mockModelClient) lastMessageCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.lastMessages)
}

func (m *mockModelClient) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	m.mu.Lock()
	m.messageCalls++
	m.lastMessages = messages
	next := scriptedReply{reply: "Happy to help in the kitchen!"}
	if len(m.replies) > 0 {
		next = m.replies[0]
		m.replies = m.replies[1:]
	}
	hook := m.beforeReply
	m.mu.Unlock()

	if hook != nil {
		hook(ctx)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return next.reply, next.err
}

func (m *mockModelClient) GenerateWithTools(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, tools []openai.ChatCompletionToolParam) (*genai.ToolCallResponse, error) {
	m.mu.Lock()
	m.toolCalls++
	next := scriptedTool{resp: &genai.ToolCallResponse{}}
	if len(m.toolReplies) > 0 {
		next = m.toolReplies[0]
		m.toolReplies = m.toolReplies[1:]
	}
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return next.resp, next.err
}
