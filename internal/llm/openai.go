package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/azure"
	"github.com/openai/openai-go/v3/option"

	"github.com/lojasmm/sqldash/internal/ai"
	"github.com/lojasmm/sqldash/internal/config"
)

// ChatClient calls a chat-completions endpoint through the OpenAI SDK and
// returns the response body untouched.
type ChatClient struct {
	name   string
	model  string
	client openai.Client
}

// NewOpenAI targets api.openai.com or any server speaking its protocol.
func NewOpenAI(cfg config.LLM) *ChatClient {
	return &ChatClient{
		name:  config.ProviderOpenAI,
		model: cfg.Model,
		client: openai.NewClient(
			option.WithBaseURL(cfg.BaseURL),
			option.WithAPIKey(cfg.APIKey),
			option.WithRequestTimeout(timeout(cfg)),
			option.WithMaxRetries(0),
		),
	}
}

// NewAzure targets an Azure OpenAI deployment. The SDK routes on the model
// field, so the deployment name is sent as the model.
func NewAzure(cfg config.LLM) *ChatClient {
	return &ChatClient{
		name:  config.ProviderAzure,
		model: cfg.Deployment,
		client: openai.NewClient(
			azure.WithEndpoint(cfg.Endpoint, cfg.APIVersion),
			option.WithHeaderDel("authorization"),
			azure.WithAPIKey(cfg.APIKey),
			option.WithRequestTimeout(timeout(cfg)),
			option.WithMaxRetries(0),
		),
	}
}

// Retries are left to the caller.
func (c *ChatClient) Complete(ctx context.Context, conversation []ai.Message, tools []ai.ToolSpec) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: toParams(conversation),
	}
	if len(tools) > 0 {
		specs, err := toTools(tools)
		if err != nil {
			return "", fmt.Errorf("%s: %w", c.name, err)
		}
		params.Tools = specs
		params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("auto")}
	}

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", c.name, err)
	}
	log.Printf("llm: %s answered in %dms (%d messages, %d tools)",
		c.name, time.Since(start).Milliseconds(), len(conversation), len(tools))
	return resp.RawJSON(), nil
}

func toParams(conversation []ai.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(conversation))
	for _, m := range conversation {
		switch m.Role {
		case ai.RoleSystem:
			out = append(out, openai.SystemMessage(m.Text()))
		case ai.RoleTool:
			out = append(out, openai.ToolMessage(m.Text(), m.ToolCallID))
		case ai.RoleAssistant:
			var p openai.ChatCompletionAssistantMessageParam
			if m.Content != nil {
				p.Content.OfString = openai.String(*m.Content)
			}
			for _, call := range m.ToolCalls {
				p.ToolCalls = append(p.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: call.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      call.Function.Name,
							Arguments: call.Function.Arguments,
						},
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &p})
		default:
			out = append(out, openai.UserMessage(m.Text()))
		}
	}
	return out
}

func toTools(tools []ai.ToolSpec) ([]openai.ChatCompletionToolUnionParam, error) {
	out := make([]openai.ChatCompletionToolUnionParam, 0, len(tools))
	for _, t := range tools {
		var params openai.FunctionParameters
		if t.Function.Parameters != nil {
			raw, err := json.Marshal(t.Function.Parameters)
			if err != nil {
				return nil, fmt.Errorf("encode %s parameters: %w", t.Function.Name, err)
			}
			if err := json.Unmarshal(raw, &params); err != nil {
				return nil, fmt.Errorf("encode %s parameters: %w", t.Function.Name, err)
			}
		}
		out = append(out, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        t.Function.Name,
			Description: openai.String(t.Function.Description),
			Parameters:  params,
		}))
	}
	return out, nil
}

func timeout(cfg config.LLM) time.Duration {
	if cfg.Timeout > 0 {
		return cfg.Timeout
	}
	return 60 * time.Second
}
