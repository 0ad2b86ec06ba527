// Agent configuration types.
//
// Information Hiding:
// - Default values hidden
// - Per-phase model assignment hidden

package agent

import "github.com/jesamkim/aws-strands-agents-chatbot/llm"

// Config holds the engine configuration.
type Config struct {
	// OrchestrationModel plans searches and generates keywords. A cheap,
	// fast model is enough here.
	OrchestrationModel string

	// SynthesisModel writes the final answers. This is where model quality
	// shows, so the default is a stronger model than the orchestration one.
	SynthesisModel string

	// SystemPrompt is prepended to every answer-generating call.
	SystemPrompt string

	// IndexDescription is a short description of what the search index
	// holds, included in keyword-generation prompts.
	IndexDescription string

	// Temperature for answer generation. Keyword generation always runs
	// at zero temperature regardless.
	Temperature float64

	// MaxTokens bounds answer length.
	MaxTokens int

	// MaxIterations bounds the reasoning loop.
	MaxIterations int

	// MaxConsecutiveErrors trips the error breaker.
	MaxConsecutiveErrors int

	// HistoryWindow is how many recent conversation turns enter the loop.
	HistoryWindow int
}

// DefaultConfig returns the standard engine configuration.
func DefaultConfig() Config {
	return Config{
		OrchestrationModel:   llm.ModelClaudeHaiku4,
		SynthesisModel:       llm.ModelClaudeSonnet4,
		SystemPrompt:         "You are a helpful assistant.",
		Temperature:          0.1,
		MaxTokens:            4000,
		MaxIterations:        5,
		MaxConsecutiveErrors: 3,
		HistoryWindow:        10,
	}
}

// withDefaults fills unset fields so a partially built Config is usable.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.OrchestrationModel == "" {
		c.OrchestrationModel = def.OrchestrationModel
	}
	if c.SynthesisModel == "" {
		c.SynthesisModel = def.SynthesisModel
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = def.SystemPrompt
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = def.MaxTokens
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = def.MaxIterations
	}
	if c.MaxConsecutiveErrors <= 0 {
		c.MaxConsecutiveErrors = def.MaxConsecutiveErrors
	}
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = def.HistoryWindow
	}
	return c
}
