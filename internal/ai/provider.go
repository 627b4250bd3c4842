package ai

import (
	"context"
	"encoding/json"
	"fmt"
)

// CompletionRequest is the opaque request contract with an AI provider. The
// substance of prompts is owned by callers.
type CompletionRequest struct {
	SystemInstruction string
	UserContent       string
	MaxOutputTokens   int
	// StructuredOutput asks the provider for a JSON response; the gateway
	// rejects non-parseable structured responses instead of defaulting them.
	StructuredOutput bool
}

// CompletionResponse carries either free text or, in structured mode, the
// parsed JSON document.
type CompletionResponse struct {
	Text string
	JSON json.RawMessage
}

// Provider is one upstream AI completion backend. Implementations must be
// safe for concurrent use and retain no state between calls.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// RateLimitError marks an upstream 429. The gateway retries these with
// backoff; every other error goes straight to fallback.
type RateLimitError struct {
	Provider string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: rate limited", e.Provider)
}

// UpstreamProviderError is the terminal gateway failure, wrapping the last
// underlying provider error.
type UpstreamProviderError struct {
	Provider string
	Err      error
}

func (e *UpstreamProviderError) Error() string {
	return fmt.Sprintf("upstream provider %s failed: %v", e.Provider, e.Err)
}

func (e *UpstreamProviderError) Unwrap() error { return e.Err }
