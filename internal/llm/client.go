package llm

import "context"

// Conversation roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one turn of the conversation sent to the model.
type Message struct {
	Role    string
	Content string
	// ToolCalls is set on assistant messages that request tool invocations.
	ToolCalls []ToolCall
	// ToolCallID links a tool-role result back to the call that produced it.
	ToolCallID string
}

// ToolCall is one tool invocation requested by the model. Arguments is the
// raw JSON argument object as returned by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolSpec describes a tool offered to the model. Parameters is a JSON
// schema object.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Completion is a non-streamed model reply: free text, tool calls, or both.
type Completion struct {
	Content   string
	ToolCalls []ToolCall
}

// Fragment is one streamed piece of a model reply. A non-nil Err terminates
// the stream; fragments already delivered stand.
type Fragment struct {
	Content string
	Err     error
}

// Client is the language-model collaborator boundary.
type Client interface {
	// Complete sends the conversation and optional tool schema, returning
	// the model's next turn.
	Complete(ctx context.Context, messages []Message, tools []ToolSpec) (*Completion, error)
	// Stream opens a token stream for the conversation. The channel is
	// closed when the stream ends; the last fragment may carry an error.
	Stream(ctx context.Context, messages []Message) (<-chan Fragment, error)
}
