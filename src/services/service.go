package services

import (
	"context"
	"errors"
)

// ErrUnavailable is returned by a collaborator whose Connect has not
// succeeded (for example the calendar before credentials are configured)
var ErrUnavailable = errors.New("service not connected")

// Role tags a conversation message. The set is closed so trimming and
// dispatch logic can match exhaustively.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message represents one entry in a conversation
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content,omitempty"`
	// ToolCalls is set on assistant messages that request tool invocations
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// ToolCallID correlates a tool result with the invocation that produced it
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// ToolCall represents a function call requested by the reasoning backend
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"` // "function"
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the function name and its JSON-encoded arguments
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Tool describes a function available to the reasoning backend
type Tool struct {
	Type     string       `json:"type"` // "function"
	Function ToolFunction `json:"function"`
}

// ToolFunction is the JSON-schema description of one tool
type ToolFunction struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  interface{} `json:"parameters"`
}

// Completion is one reasoning-backend response: either final text or a set
// of tool invocations to execute before calling again
type Completion struct {
	Content   string
	ToolCalls []ToolCall
}

// Completer is the reasoning backend consumed by the conversation engine
type Completer interface {
	Complete(ctx context.Context, messages []Message, tools []Tool) (*Completion, error)
}

// Transcriber converts caller audio to text
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Synthesizer converts agent text to transport-ready audio
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// UserMessage builds a user message
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant message
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// SystemMessage builds a system message
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// ToolResultMessage builds a tool result correlated with a tool call id
func ToolResultMessage(toolCallID, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: toolCallID}
}
