package ai

import (
	"context"
	"log"

	"github.com/lojasmm/sqldash/internal/llmjson"
)

// RunWithRetries calls c up to maxRetries times and returns the first output
// that yields valid JSON, re-serialized compactly. Completer errors, empty
// output and unparseable JSON all consume an attempt. Attempts are not
// spaced out.
func RunWithRetries(ctx context.Context, c Completer, conversation []Message, tools []ToolSpec, maxRetries int) (string, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	var last error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		raw, err := c.Complete(ctx, conversation, tools)
		switch {
		case err != nil:
			last = err
		case raw == "":
			last = ErrEmptyOutput
		default:
			out, err := llmjson.Canonical(raw)
			if err == nil {
				return out, nil
			}
			last = err
		}
		log.Printf("retry: attempt %d/%d failed: %v", attempt, maxRetries, last)
	}
	return "", &RetriesExhaustedError{Attempts: maxRetries, Last: last}
}

// unwrapping adapts c so that it returns the assistant text of a completion
// envelope instead of the envelope itself.
func unwrapping(c Completer) Completer {
	return CompleterFunc(func(ctx context.Context, conversation []Message, tools []ToolSpec) (string, error) {
		raw, err := c.Complete(ctx, conversation, tools)
		if err != nil {
			return "", err
		}
		return unwrapCompletion(raw)
	})
}
