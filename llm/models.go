// Model families and identifiers.
//
// Family is the closed set of provider variants. Model-id strings are
// classified into a family exactly once, here, via a prefix table; every
// other dispatch in the codebase is on the Family tag, never on model-id
// substrings.

package llm

import (
	"fmt"
	"strings"
)

// Family represents a supported model family.
type Family int

const (
	// FamilyClaude is Anthropic Claude models.
	FamilyClaude Family = iota
	// FamilyOpenAI is OpenAI GPT and reasoning models.
	FamilyOpenAI
	// FamilyDeepSeek is DeepSeek models.
	FamilyDeepSeek
	// FamilyGemini is Google Gemini models.
	FamilyGemini
)

// String returns the family name.
func (f Family) String() string {
	switch f {
	case FamilyClaude:
		return "claude"
	case FamilyOpenAI:
		return "openai"
	case FamilyDeepSeek:
		return "deepseek"
	case FamilyGemini:
		return "gemini"
	default:
		return "unknown"
	}
}

// EnvVar returns the environment variable name for this family's API key.
func (f Family) EnvVar() string {
	switch f {
	case FamilyClaude:
		return "ANTHROPIC_API_KEY"
	case FamilyOpenAI:
		return "OPENAI_API_KEY"
	case FamilyDeepSeek:
		return "DEEPSEEK_API_KEY"
	case FamilyGemini:
		return "GEMINI_API_KEY"
	default:
		return ""
	}
}

// DefaultModel returns the default model for this family.
func (f Family) DefaultModel() string {
	switch f {
	case FamilyClaude:
		return ModelClaudeSonnet4
	case FamilyOpenAI:
		return ModelOpenAIGPT52
	case FamilyDeepSeek:
		return ModelDeepSeekV32
	case FamilyGemini:
		return ModelGeminiFlash3
	default:
		return ""
	}
}

// ParseFamily parses a family from string (case-insensitive).
func ParseFamily(s string) (Family, error) {
	switch strings.ToLower(s) {
	case "claude", "anthropic":
		return FamilyClaude, nil
	case "openai", "gpt":
		return FamilyOpenAI, nil
	case "deepseek":
		return FamilyDeepSeek, nil
	case "gemini", "google":
		return FamilyGemini, nil
	default:
		return 0, fmt.Errorf("unknown model family: %s", s)
	}
}

// familyPrefixes maps model-id prefixes to families. Order matters only for
// readability; prefixes do not overlap.
var familyPrefixes = []struct {
	prefix string
	family Family
}{
	{"claude-", FamilyClaude},
	{"gpt-", FamilyOpenAI},
	{"o1", FamilyOpenAI},
	{"o3", FamilyOpenAI},
	{"o4", FamilyOpenAI},
	{"deepseek-", FamilyDeepSeek},
	{"gemini-", FamilyGemini},
}

// FamilyFor classifies a model id into its family.
func FamilyFor(modelID string) (Family, error) {
	id := strings.ToLower(strings.TrimSpace(modelID))
	for _, e := range familyPrefixes {
		if strings.HasPrefix(id, e.prefix) {
			return e.family, nil
		}
	}
	return 0, fmt.Errorf("no known family for model id %q", modelID)
}

// Model identifier constants for all supported families.

// Anthropic model identifiers (January 2026)
const (
	// ModelClaudeOpus45 is Claude Opus 4.5: Latest flagship, best for complex synthesis.
	ModelClaudeOpus45 = "claude-opus-4-5-20251101"
	// ModelClaudeSonnet4 is Claude Sonnet 4: Balanced performance.
	ModelClaudeSonnet4 = "claude-sonnet-4-20250514"
	// ModelClaudeHaiku4 is Claude Haiku 4: Fast and efficient, good for planning calls.
	ModelClaudeHaiku4 = "claude-haiku-4-20250514"
)

// OpenAI model identifiers (January 2026)
const (
	// ModelOpenAIGPT52 is GPT-5.2: Latest flagship model (December 2025).
	ModelOpenAIGPT52 = "gpt-5.2"
	// ModelOpenAIGPT5 is GPT-5: Previous flagship (August 2025).
	ModelOpenAIGPT5 = "gpt-5"
	// ModelOpenAIO3Mini is O3-mini: Efficient reasoning model.
	ModelOpenAIO3Mini = "o3-mini"
	// ModelOpenAIGPT4oMini is GPT-4o-mini: Legacy model.
	ModelOpenAIGPT4oMini = "gpt-4o-mini"
)

// DeepSeek model identifiers (January 2026)
const (
	// ModelDeepSeekV32 is V3.2: Latest general model.
	ModelDeepSeekV32 = "deepseek-v3.2"
	// ModelDeepSeekR1 is R1: Reasoning model with chain-of-thought.
	ModelDeepSeekR1 = "deepseek-r1"
)

// Gemini model identifiers (January 2026)
const (
	// ModelGeminiPro3 is Gemini 3 Pro: Advanced reasoning, 1M context window.
	ModelGeminiPro3 = "gemini-3-pro"
	// ModelGeminiFlash3 is Gemini 3 Flash: Speed optimized.
	ModelGeminiFlash3 = "gemini-3-flash"
	// ModelGeminiFlash2 is Gemini 2.0 Flash: Legacy model.
	ModelGeminiFlash2 = "gemini-2.0-flash"
)

// KnownModels lists the model ids this module ships constants for, by family.
func KnownModels() map[Family][]string {
	return map[Family][]string{
		FamilyClaude:   {ModelClaudeOpus45, ModelClaudeSonnet4, ModelClaudeHaiku4},
		FamilyOpenAI:   {ModelOpenAIGPT52, ModelOpenAIGPT5, ModelOpenAIO3Mini, ModelOpenAIGPT4oMini},
		FamilyDeepSeek: {ModelDeepSeekV32, ModelDeepSeekR1},
		FamilyGemini:   {ModelGeminiPro3, ModelGeminiFlash3, ModelGeminiFlash2},
	}
}
