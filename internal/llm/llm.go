// Package llm provides the completion endpoints the agent talks to.
package llm

import (
	"context"
	"fmt"

	"github.com/lojasmm/sqldash/internal/ai"
	"github.com/lojasmm/sqldash/internal/config"
)

// New returns the completer for the configured provider.
func New(ctx context.Context, cfg config.LLM) (ai.Completer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &ai.Error{Kind: ai.KindConfig, Op: "llm", Err: err}
	}
	switch cfg.Provider {
	case config.ProviderAzure:
		return NewAzure(cfg), nil
	case config.ProviderOpenAI:
		return NewOpenAI(cfg), nil
	case config.ProviderGemini:
		g, err := NewGemini(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.Provider)
	}
}
