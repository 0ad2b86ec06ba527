// Provider factory - constructing providers and routing clients.
//
// Quick Start:
//
//	// One family with an explicit key
//	p, err := llm.NewProvider(llm.FamilyClaude, "sk-ant-...")
//
//	// A client for every family whose API key is in the environment
//	client, err := llm.ClientFromEnv()
//
//	resp, err := client.Invoke(ctx, llm.InvokeRequest{
//	    ModelID:   llm.ModelClaudeHaiku4,
//	    Prompt:    "Suggest three search keywords for: vacation policy",
//	    MaxTokens: 512,
//	})

package llm

import (
	"fmt"
	"os"
)

// NewProvider constructs the provider implementation for a family.
func NewProvider(family Family, apiKey string) (Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%s: empty API key", family)
	}
	switch family {
	case FamilyClaude:
		return NewAnthropicProvider(apiKey), nil
	case FamilyOpenAI:
		return NewOpenAIProvider(apiKey), nil
	case FamilyDeepSeek:
		return NewDeepSeekProvider(apiKey), nil
	case FamilyGemini:
		return NewGeminiProvider(apiKey), nil
	default:
		return nil, fmt.Errorf("unknown family: %v", family)
	}
}

// NewProviderFromEnv constructs a family's provider with its API key read
// from the environment.
func NewProviderFromEnv(family Family) (Provider, error) {
	envVar := family.EnvVar()
	apiKey := os.Getenv(envVar)
	if apiKey == "" {
		return nil, fmt.Errorf("%s: %s environment variable not set", family, envVar)
	}
	return NewProvider(family, apiKey)
}

// ClientFromEnv builds a routing client with a provider for every family
// whose API key environment variable is set. At least one family must be
// configured.
func ClientFromEnv() (*Client, error) {
	client := NewClient()
	families := []Family{FamilyClaude, FamilyOpenAI, FamilyDeepSeek, FamilyGemini}
	for _, f := range families {
		apiKey := os.Getenv(f.EnvVar())
		if apiKey == "" {
			continue
		}
		p, err := NewProvider(f, apiKey)
		if err != nil {
			return nil, err
		}
		client.Register(f, p)
	}
	if len(client.Families()) == 0 {
		return nil, fmt.Errorf("no model family configured: set at least one of ANTHROPIC_API_KEY, OPENAI_API_KEY, DEEPSEEK_API_KEY, GEMINI_API_KEY")
	}
	return client, nil
}
