// Engine builder for fluent configuration.
//
// Information Hiding:
// - Builder state management hidden
// - Default value application hidden

package agent

import (
	"github.com/charmbracelet/log"

	"github.com/jesamkim/aws-strands-agents-chatbot/llm"
	"github.com/jesamkim/aws-strands-agents-chatbot/search"
)

// Builder provides fluent configuration for creating engines.
// Usage: agent.NewBuilder(llmClient) - no stutter.
type Builder struct {
	cfg    Config
	llm    *llm.Client
	search *search.Client
	logger *log.Logger
}

// NewBuilder creates an engine builder around an LLM client.
func NewBuilder(llmClient *llm.Client) *Builder {
	return &Builder{llm: llmClient}
}

// OrchestrationModel sets the model for planning and keyword calls.
func (b *Builder) OrchestrationModel(id string) *Builder {
	b.cfg.OrchestrationModel = id
	return b
}

// SynthesisModel sets the model for answer generation.
func (b *Builder) SynthesisModel(id string) *Builder {
	b.cfg.SynthesisModel = id
	return b
}

// SystemPrompt sets the base system prompt for answer calls.
func (b *Builder) SystemPrompt(prompt string) *Builder {
	b.cfg.SystemPrompt = prompt
	return b
}

// IndexDescription describes the document index to the keyword planner.
func (b *Builder) IndexDescription(desc string) *Builder {
	b.cfg.IndexDescription = desc
	return b
}

// Temperature sets the sampling temperature for answer generation.
func (b *Builder) Temperature(t float64) *Builder {
	b.cfg.Temperature = t
	return b
}

// MaxTokens bounds generated answer length.
func (b *Builder) MaxTokens(n int) *Builder {
	b.cfg.MaxTokens = n
	return b
}

// MaxIterations bounds the reasoning loop.
func (b *Builder) MaxIterations(n int) *Builder {
	b.cfg.MaxIterations = n
	return b
}

// Search attaches a document search client.
func (b *Builder) Search(client *search.Client) *Builder {
	b.search = client
	return b
}

// Logger overrides the engine's default logger.
func (b *Builder) Logger(logger *log.Logger) *Builder {
	b.logger = logger
	return b
}

// Build creates the engine. Unset fields fall back to defaults.
func (b *Builder) Build() *Engine {
	e := New(b.cfg, b.llm, b.search)
	if b.logger != nil {
		e.WithLogger(b.logger)
	}
	return e
}
