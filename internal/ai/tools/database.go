package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/lojasmm/sqldash/internal/ai"
)

// --- GetSchema ---

// SchemaArgs is empty: get_schema takes no arguments.
type SchemaArgs struct{}

type GetSchema struct {
	db Gateway
}

func NewGetSchema(g Gateway) *GetSchema {
	return &GetSchema{db: g}
}

func (t *GetSchema) Name() string { return ai.ToolGetSchema }
func (t *GetSchema) Description() string {
	return "Returns the database schema as a list of {table_name, column_name, data_type} rows"
}
func (t *GetSchema) Parameters() *jsonschema.Schema { return ai.ParametersFor(&SchemaArgs{}) }

func (t *GetSchema) Execute(ctx context.Context, _ json.RawMessage) (string, error) {
	return t.db.SchemaJSON(ctx), nil
}

// --- ReadQuery ---

type QueryArgs struct {
	Query string `json:"query" jsonschema:"description=A single SQL SELECT statement"`
}

type ReadQuery struct {
	db Gateway
}

func NewReadQuery(g Gateway) *ReadQuery {
	return &ReadQuery{db: g}
}

func (t *ReadQuery) Name() string { return ai.ToolReadQuery }
func (t *ReadQuery) Description() string {
	return "Runs a read-only SELECT query and returns the rows as a JSON array of objects"
}
func (t *ReadQuery) Parameters() *jsonschema.Schema { return ai.ParametersFor(&QueryArgs{}) }

func (t *ReadQuery) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var in QueryArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("decode arguments: %w", err)
	}
	return t.db.QueryJSON(ctx, in.Query), nil
}
