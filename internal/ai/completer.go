package ai

import "context"

// Completer is the LLM endpoint. It receives the conversation and the tool
// manifest and returns the raw response text, which is not assumed to be
// valid JSON.
type Completer interface {
	Complete(ctx context.Context, conversation []Message, tools []ToolSpec) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, conversation []Message, tools []ToolSpec) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, conversation []Message, tools []ToolSpec) (string, error) {
	return f(ctx, conversation, tools)
}
