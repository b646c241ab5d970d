package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"google.golang.org/genai"

	"github.com/lojasmm/sqldash/internal/ai"
	"github.com/lojasmm/sqldash/internal/config"
)

// GeminiClient adapts the Gemini API to the chat-completions contract: the
// conversation is translated to genai contents and the reply is encoded
// back into a {"choices":[{"message":...}]} envelope.
type GeminiClient struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, cfg config.LLM) (*GeminiClient, error) {
	return newGemini(ctx, cfg, genai.HTTPOptions{})
}

func newGemini(ctx context.Context, cfg config.LLM, opts genai.HTTPOptions) (*GeminiClient, error) {
	t := timeout(cfg)
	opts.Timeout = &t
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: opts,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	return &GeminiClient{client: client, model: cfg.Model}, nil
}

func (g *GeminiClient) Complete(ctx context.Context, conversation []ai.Message, tools []ai.ToolSpec) (string, error) {
	system, contents, err := toContents(conversation)
	if err != nil {
		return "", err
	}

	cfg := &genai.GenerateContentConfig{SystemInstruction: system}
	if len(tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, len(tools))
		for i, t := range tools {
			decls[i] = &genai.FunctionDeclaration{
				Name:                 t.Function.Name,
				Description:          t.Function.Description,
				ParametersJsonSchema: t.Function.Parameters,
			}
		}
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}
	log.Printf("llm: gemini answered in %dms (%d messages, %d tools)",
		time.Since(start).Milliseconds(), len(conversation), len(tools))

	return encodeReply(resp)
}

// toContents splits off the system prompt and converts the rest. Consecutive
// tool results are grouped into one user turn, as Gemini expects.
func toContents(conversation []ai.Message) (*genai.Content, []*genai.Content, error) {
	var (
		system   *genai.Content
		contents []*genai.Content
	)
	for _, m := range conversation {
		switch m.Role {
		case ai.RoleSystem:
			system = genai.NewContentFromText(m.Text(), genai.RoleUser)
		case ai.RoleUser:
			contents = append(contents, genai.NewContentFromText(m.Text(), genai.RoleUser))
		case ai.RoleAssistant:
			c := &genai.Content{Role: genai.RoleModel}
			if m.Text() != "" {
				c.Parts = append(c.Parts, genai.NewPartFromText(m.Text()))
			}
			for _, tc := range m.ToolCalls {
				var args map[string]any
				if tc.Function.Arguments != "" {
					if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
						return nil, nil, fmt.Errorf("gemini: arguments of %s: %w", tc.Function.Name, err)
					}
				}
				c.Parts = append(c.Parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   tc.ID,
					Name: tc.Function.Name,
					Args: args,
				}})
			}
			contents = append(contents, c)
		case ai.RoleTool:
			part := &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       m.ToolCallID,
				Name:     m.Name,
				Response: toolResponse(m.Text()),
			}}
			if n := len(contents); n > 0 && contents[n-1].Role == genai.RoleUser && isResponses(contents[n-1]) {
				contents[n-1].Parts = append(contents[n-1].Parts, part)
				continue
			}
			contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{part}})
		}
	}
	return system, contents, nil
}

func isResponses(c *genai.Content) bool {
	for _, p := range c.Parts {
		if p.FunctionResponse == nil {
			return false
		}
	}
	return len(c.Parts) > 0
}

// toolResponse wraps a tool's JSON result as the map Gemini requires.
func toolResponse(result string) map[string]any {
	var v any
	if err := json.Unmarshal([]byte(result), &v); err != nil {
		return map[string]any{"output": result}
	}
	if obj, ok := v.(map[string]any); ok {
		return obj
	}
	return map[string]any{"output": v}
}

func encodeReply(resp *genai.GenerateContentResponse) (string, error) {
	msg := ai.Message{Role: ai.RoleAssistant}
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		var text string
		for i, p := range resp.Candidates[0].Content.Parts {
			switch {
			case p.FunctionCall != nil:
				tc, err := toToolCall(i, p.FunctionCall)
				if err != nil {
					return "", err
				}
				msg.ToolCalls = append(msg.ToolCalls, tc)
			case p.Text != "" && !p.Thought:
				text += p.Text
			}
		}
		if text != "" {
			msg.Content = &text
		}
	}

	out, err := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"index": 0, "message": msg}},
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func toToolCall(i int, fc *genai.FunctionCall) (ai.ToolCall, error) {
	args := []byte("{}")
	if fc.Args != nil {
		var err error
		if args, err = json.Marshal(fc.Args); err != nil {
			return ai.ToolCall{}, fmt.Errorf("gemini: encode arguments: %w", err)
		}
	}
	id := fc.ID
	if id == "" {
		id = fmt.Sprintf("call_%d", i)
	}
	return ai.ToolCall{
		ID:       id,
		Type:     "function",
		Function: ai.FunctionCall{Name: fc.Name, Arguments: string(args)},
	}, nil
}
