package ai

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes failures for the loop and the pipeline.
type ErrorKind string

const (
	KindConfig    ErrorKind = "config_error"     // missing instructions or credentials, fatal at startup
	KindTransport ErrorKind = "transport_error"  // empty or unparseable model output, retried
	KindProtocol  ErrorKind = "protocol_error"   // malformed completion or tool call, aborts the run
	KindData      ErrorKind = "data_error"       // database failure, returned to the model as a tool result
	KindBudget    ErrorKind = "budget_exhausted" // turn budget ran out with tool calls still pending
)

var (
	ErrEmptyOutput         = errors.New("empty result from LLM callback")
	ErrProviderReported    = errors.New("LLM reported an error")
	ErrNoChoices           = errors.New("no choices in LLM response")
	ErrBadArguments        = errors.New("invalid tool arguments")
	ErrMissingArgument     = errors.New("missing required tool argument")
	ErrUnknownTool         = errors.New("unknown tool")
	ErrNoContent           = errors.New("no valid content in final LLM response")
	ErrTurnBudgetExhausted = errors.New("turn budget exhausted with tool calls pending")
)

// Error attaches a kind and the failing operation to an underlying error.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// RetriesExhaustedError is returned by RunWithRetries after the last attempt.
type RetriesExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *RetriesExhaustedError) Unwrap() error { return e.Last }

// KindOf reports the kind of err, or "" when it was not classified.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var re *RetriesExhaustedError
	if errors.As(err, &re) {
		return KindTransport
	}
	return ""
}
