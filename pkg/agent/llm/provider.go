// Package llm provides the reply-generation capability.
package llm

import (
	"context"

	"github.com/restockai/voiceline/pkg/agent/types"
)

// Provider is the interface for language-model backends.
type Provider interface {
	// Name returns the provider identifier (e.g., "openai").
	Name() string

	// Generate produces the next agent reply from the conversation so far.
	Generate(ctx context.Context, history []types.Turn, opts GenerateOptions) (string, error)
}

// GenerateOptions configures one generation call.
type GenerateOptions struct {
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}
