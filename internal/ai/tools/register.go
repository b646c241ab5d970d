package tools

import (
	"context"
	"fmt"

	"github.com/lojasmm/sqldash/internal/ai"
)

// Gateway is the database access the tools need. Both methods return a JSON
// document; failures are reported inside it as {"error": ...}.
type Gateway interface {
	SchemaJSON(ctx context.Context) string
	QueryJSON(ctx context.Context, query string) string
}

// BuildRegistry creates a Registry with the database tools bound to g.
func BuildRegistry(g Gateway) (*ai.Registry, error) {
	r := ai.NewRegistry()
	for _, t := range []ai.Tool{NewGetSchema(g), NewReadQuery(g)} {
		if err := r.Register(t); err != nil {
			return nil, fmt.Errorf("register %s: %w", t.Name(), err)
		}
	}
	return r, nil
}
