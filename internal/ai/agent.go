package ai

import (
	"context"
	"fmt"
	"log"

	"github.com/lojasmm/sqldash/internal/config"
)

const (
	defaultTurnBudget = 10
	defaultMaxRetries = 3

	// ErrorPrefix starts every failed Run answer.
	ErrorPrefix = "agent error: "
)

// Agent answers natural-language questions about a database by letting the
// model call the registry's tools, and builds HTML dashboards through a
// three-stage pipeline.
type Agent struct {
	completer    Completer
	registry     *Registry
	instructions config.Instructions
	turnBudget   int
	maxRetries   int
}

type Option func(*Agent)

// WithTurnBudget caps the number of tool rounds in a conversation.
func WithTurnBudget(n int) Option {
	return func(a *Agent) {
		if n >= 0 {
			a.turnBudget = n
		}
	}
}

// WithMaxRetries sets how many times a pipeline stage calls the model.
func WithMaxRetries(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxRetries = n
		}
	}
}

func NewAgent(c Completer, r *Registry, instructions config.Instructions, opts ...Option) *Agent {
	a := &Agent{
		completer:    c,
		registry:     r,
		instructions: instructions,
		turnBudget:   defaultTurnBudget,
		maxRetries:   defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run answers message and always returns text: failures come back as
// "agent error: <description>".
func (a *Agent) Run(ctx context.Context, message string) string {
	res, err := a.Converse(ctx, message)
	if err != nil {
		log.Printf("agent: run failed (%s): %v", KindOf(err), err)
		return ErrorPrefix + err.Error()
	}
	return res.Content
}

// Converse drives the tool-calling loop. The model is called once, then
// again after every round of tool calls until it stops asking for tools or
// the turn budget is spent.
func (a *Agent) Converse(ctx context.Context, message string) (*Result, error) {
	res := &Result{
		Messages: []Message{
			SystemMessage(a.instructions.Agent),
			UserMessage(message),
		},
	}
	tools := a.registry.Manifest(true, true)

	reply, err := a.step(ctx, res, tools)
	if err != nil {
		return res, err
	}

	for budget := a.turnBudget; len(reply.ToolCalls) > 0 && budget > 0; budget-- {
		for _, call := range reply.ToolCalls {
			log.Printf("agent: calling tool %s", call.Function.Name)
			out, err := a.registry.Dispatch(ctx, call)
			if err != nil {
				return res, err
			}
			res.Messages = append(res.Messages, ToolMessage(call, out))
		}
		res.Rounds++

		if reply, err = a.step(ctx, res, tools); err != nil {
			return res, err
		}
	}

	if reply.Content != nil {
		res.Content = *reply.Content
		res.BudgetExhausted = len(reply.ToolCalls) > 0
		return res, nil
	}
	if len(reply.ToolCalls) > 0 {
		res.BudgetExhausted = true
		return res, newError(KindBudget, "conversation", fmt.Errorf("%w after %d rounds", ErrTurnBudgetExhausted, res.Rounds))
	}
	return res, newError(KindProtocol, "conversation", ErrNoContent)
}

// step sends the transcript to the model and appends its reply.
func (a *Agent) step(ctx context.Context, res *Result, tools []ToolSpec) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}
	raw, err := a.completer.Complete(ctx, res.Messages, tools)
	if err != nil {
		return Message{}, newError(KindTransport, "completion", err)
	}
	res.Calls++

	reply, err := ParseCompletion(raw)
	if err != nil {
		return Message{}, err
	}
	res.Messages = append(res.Messages, reply)
	return reply, nil
}
