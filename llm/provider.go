// Package llm provides LLM provider abstractions.
//
// LLM Provider interface - the abstract interface for LLM providers.
// Each provider implementation hides:
// - API client initialization and authentication
// - Request/response format for its model family
// - Provider-specific error handling
//
// Providers are stateless beyond their API client: model id, sampling
// parameters, and prompts travel with each request, so one provider serves
// every model of its family.

package llm

import (
	"context"

	"github.com/jesamkim/aws-strands-agents-chatbot/model"
)

// InvokeRequest is a single prompt/response round trip. No streaming: one
// request, one complete text response.
type InvokeRequest struct {
	ModelID      string
	Prompt       string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
}

// InvokeResponse carries the model's raw text and token usage when the
// provider reports it.
type InvokeResponse struct {
	Text  string
	Usage *model.TokenUsage
}

// Provider defines the abstract interface for LLM providers.
// Implementations hide provider-specific details while exposing
// a consistent invocation interface.
type Provider interface {
	// Name returns the provider name (for logging/debugging).
	Name() string

	// Invoke sends one prompt and returns the complete response text.
	Invoke(ctx context.Context, req InvokeRequest) (*InvokeResponse, error)
}

// defaultMaxTokens applies when a request leaves MaxTokens unset.
const defaultMaxTokens = 4096

func maxTokensOrDefault(req InvokeRequest) int {
	if req.MaxTokens <= 0 {
		return defaultMaxTokens
	}
	return req.MaxTokens
}
