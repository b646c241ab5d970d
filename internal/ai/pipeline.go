package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/lojasmm/sqldash/internal/llmjson"
)

// Dashboard runs the analyze, fetch and render stages in order and returns
// an HTML document. A failing stage yields an HTML error page.
func (a *Agent) Dashboard(ctx context.Context, message string) string {
	analysis, err := a.analyze(ctx, message)
	if err != nil {
		log.Printf("agent: analyze stage failed: %v", err)
		return errorPage("Could not analyze the request: " + err.Error())
	}
	log.Printf("agent: analysis ready (%d bytes)", len(analysis))

	metrics, err := a.fetch(ctx, analysis)
	if err != nil {
		log.Printf("agent: fetch stage failed: %v", err)
		return errorPage("Could not fetch the dashboard data: " + err.Error())
	}
	log.Printf("agent: metrics ready (%d bytes)", len(metrics))

	page, err := a.render(ctx, metrics)
	if err != nil {
		log.Printf("agent: render stage failed: %v", err)
		return errorPage("Could not render the dashboard: " + err.Error())
	}
	return page
}

func (a *Agent) analyze(ctx context.Context, message string) (string, error) {
	conversation := []Message{
		SystemMessage(analysisPrompt(a.instructions)),
		UserMessage(message),
	}
	return a.stage(ctx, "analyze", conversation, a.registry.Manifest(true, false))
}

func (a *Agent) fetch(ctx context.Context, analysis string) (string, error) {
	conversation := []Message{
		SystemMessage(a.instructions.Metrics),
		UserMessage(analysis),
	}
	return a.stage(ctx, "fetch", conversation, a.registry.Manifest(false, true))
}

func (a *Agent) stage(ctx context.Context, name string, conversation []Message, tools []ToolSpec) (string, error) {
	out, err := RunWithRetries(ctx, unwrapping(a.completer), conversation, tools, a.maxRetries)
	if errors.Is(err, ErrProviderReported) {
		return "", newError(KindProtocol, name, err)
	}
	if err != nil {
		return "", newError(KindTransport, name, err)
	}
	return out, nil
}

// render asks the model for a fenced HTML dashboard and falls back to the
// built-in template when the reply has none. No tools are offered.
func (a *Agent) render(ctx context.Context, metrics string) (string, error) {
	conversation := []Message{
		SystemMessage(a.instructions.Render),
		UserMessage(metrics),
	}

	var (
		raw  string
		last error
	)
	for attempt := 1; attempt <= a.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		raw, last = a.completer.Complete(ctx, conversation, nil)
		if last == nil && strings.TrimSpace(raw) == "" {
			last = ErrEmptyOutput
		}
		if last == nil {
			break
		}
		log.Printf("retry: render attempt %d/%d failed: %v", attempt, a.maxRetries, last)
	}
	if last != nil {
		return "", newError(KindTransport, "render", &RetriesExhaustedError{Attempts: a.maxRetries, Last: last})
	}

	text, err := unwrapCompletion(raw)
	if err != nil {
		return "", newError(KindProtocol, "render", err)
	}
	if html, ok := llmjson.ExtractHTML(text); ok {
		return html, nil
	}

	log.Printf("agent: no HTML block in render output, using fallback template")
	page, err := RenderFallback(metrics)
	if err != nil {
		return "", newError(KindData, "render", fmt.Errorf("fallback template: %w", err))
	}
	return page, nil
}
