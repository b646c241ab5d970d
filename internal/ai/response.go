package ai

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lojasmm/sqldash/internal/llmjson"
)

// Result is the outcome of one conversation.
type Result struct {
	Content  string    // final assistant text
	Messages []Message // full transcript, system prompt first
	Rounds   int       // tool rounds executed
	Calls    int       // completions requested

	// BudgetExhausted is set when the last reply still asked for tools.
	BudgetExhausted bool
}

// ParseCompletion reads the assistant message out of a chat-completions
// envelope. Envelopes wrapped in prose or code fences are accepted.
func ParseCompletion(raw string) (Message, error) {
	doc, err := parseDocument(raw)
	if err != nil {
		return Message{}, newError(KindProtocol, "completion", fmt.Errorf("malformed response: %w", err))
	}

	if e, err := doc.Get("error"); err == nil && !e.IsNull() {
		return Message{}, newError(KindProtocol, "completion", fmt.Errorf("%w: %s", ErrProviderReported, providerMessage(e)))
	}

	v, err := doc.Get("choices", "[0]", "message")
	if errors.Is(err, llmjson.ErrNotFound) || (err == nil && v.Kind() != llmjson.Object) {
		return Message{}, newError(KindProtocol, "completion", ErrNoChoices)
	}
	if err != nil {
		return Message{}, newError(KindProtocol, "completion", err)
	}

	var msg Message
	if err := v.Decode(&msg); err != nil {
		return Message{}, newError(KindProtocol, "completion", fmt.Errorf("malformed message: %w", err))
	}
	msg.Role = RoleAssistant
	return msg, nil
}

// unwrapCompletion returns the assistant text of an envelope. Text that is
// not an envelope, or an envelope whose message has no text, is returned
// unchanged.
func unwrapCompletion(raw string) (string, error) {
	doc, err := parseDocument(raw)
	if err != nil || doc.Kind() != llmjson.Object {
		return raw, nil
	}
	if e, err := doc.Get("error"); err == nil && !e.IsNull() {
		return "", fmt.Errorf("%w: %s", ErrProviderReported, providerMessage(e))
	}
	content, err := doc.Get("choices", "[0]", "message", "content")
	if err != nil {
		return raw, nil
	}
	if s, err := content.Str(); err == nil {
		return s, nil
	}
	return raw, nil
}

// parseDocument parses raw as JSON and only falls back to the extractor when
// that fails. A fence inside a string value must not be taken for the document.
func parseDocument(raw string) (llmjson.Value, error) {
	if doc, err := llmjson.ParseString(strings.TrimSpace(raw)); err == nil {
		return doc, nil
	}
	return llmjson.ParseString(llmjson.Extract(raw))
}

func providerMessage(e llmjson.Value) string {
	if m, err := e.Get("message"); err == nil {
		if s, err := m.Str(); err == nil {
			return s
		}
	}
	if s, err := e.Str(); err == nil {
		return s
	}
	return string(e.Raw())
}
