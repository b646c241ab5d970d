package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"
)

const (
	ToolGetSchema = "get_schema"
	ToolReadQuery = "read_query"

	// Per-tool execution timeout
	toolTimeout = 30 * time.Second
)

// Tool is a single function the model can call. Execute returns the JSON
// text handed back to the model; an error is reified as {"error": ...}.
type Tool interface {
	Name() string
	Description() string
	Parameters() *jsonschema.Schema
	Execute(ctx context.Context, args json.RawMessage) (string, error)
}

type registeredTool struct {
	tool   Tool
	schema *gojsonschema.Schema
}

// Registry holds all registered tools.
type Registry struct {
	tools map[string]registeredTool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]registeredTool)}
}

// Register adds t, compiling its parameter schema for argument validation.
func (r *Registry) Register(t Tool) error {
	entry := registeredTool{tool: t}
	if p := t.Parameters(); p != nil {
		raw, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("marshal %s parameters: %w", t.Name(), err)
		}
		entry.schema, err = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
		if err != nil {
			return fmt.Errorf("compile %s parameters: %w", t.Name(), err)
		}
	}
	r.tools[t.Name()] = entry
	return nil
}

func (r *Registry) Get(name string) (Tool, error) {
	e, ok := r.tools[name]
	if !ok {
		return nil, newError(KindProtocol, "tool "+name, ErrUnknownTool)
	}
	return e.tool, nil
}

// Names lists the registered tools in name order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Manifest returns tool definitions for the chat-completions API. The flags
// select which of the two database tools are offered; any other registered
// tool is always included.
func (r *Registry) Manifest(includeSchema, includeQuery bool) []ToolSpec {
	specs := make([]ToolSpec, 0, len(r.tools))
	for _, name := range r.Names() {
		if (name == ToolGetSchema && !includeSchema) || (name == ToolReadQuery && !includeQuery) {
			continue
		}
		t := r.tools[name].tool
		specs = append(specs, ToolSpec{
			Type: "function",
			Function: FunctionSpec{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return specs
}

// Dispatch validates the call's arguments, applies a timeout, runs the tool
// and logs execution duration. Malformed calls are protocol errors; tool
// failures come back as an {"error": ...} payload for the model.
func (r *Registry) Dispatch(ctx context.Context, call ToolCall) (string, error) {
	name := call.Function.Name
	e, ok := r.tools[name]
	if !ok {
		return "", newError(KindProtocol, "tool "+name, ErrUnknownTool)
	}

	args := json.RawMessage(call.Function.Arguments)
	if !json.Valid(args) {
		return "", newError(KindProtocol, "tool "+name, fmt.Errorf("%w: not JSON: %q", ErrBadArguments, call.Function.Arguments))
	}
	if e.schema != nil {
		if err := validateArgs(e.schema, args); err != nil {
			return "", newError(KindProtocol, "tool "+name, err)
		}
	}

	// Apply per-tool timeout
	toolCtx, cancel := context.WithTimeout(ctx, toolTimeout)
	defer cancel()

	start := time.Now()
	result, err := e.tool.Execute(toolCtx, args)
	log.Printf("tool: %s completed in %dms", name, time.Since(start).Milliseconds())

	if err != nil {
		log.Printf("tool: %s %s: %v", name, KindData, err)
		return errorPayload(err.Error()), nil
	}
	return result, nil
}

func validateArgs(schema *gojsonschema.Schema, args json.RawMessage) error {
	res, err := schema.Validate(gojsonschema.NewBytesLoader(args))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadArguments, err)
	}
	if res.Valid() {
		return nil
	}

	sentinel := ErrBadArguments
	details := make([]string, 0, len(res.Errors()))
	for _, re := range res.Errors() {
		if re.Type() == "required" {
			sentinel = ErrMissingArgument
		}
		details = append(details, re.String())
	}
	return fmt.Errorf("%w: %s", sentinel, strings.Join(details, "; "))
}

func errorPayload(msg string) string {
	b, _ := json.Marshal(map[string]string{"error": msg})
	return string(b)
}

var reflector = &jsonschema.Reflector{
	DoNotReference:            true,
	AllowAdditionalProperties: true,
}

// ParametersFor reflects the JSON schema of an argument struct.
func ParametersFor(v any) *jsonschema.Schema {
	s := reflector.Reflect(v)
	s.Version = ""
	s.ID = ""
	return s
}
