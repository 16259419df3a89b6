package llm

import (
	"context"
)

type LLMClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Named is implemented by clients that can report which provider served a
// generation.
type Named interface {
	Provider() string
}

// ProviderName returns the provider of c, or "unknown".
func ProviderName(c LLMClient) string {
	if n, ok := c.(Named); ok {
		return n.Provider()
	}
	return "unknown"
}
