package llm

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/jesamkim/aws-strands-agents-chatbot/model"
)

type fakeProvider struct {
	name    string
	lastReq InvokeRequest
	text    string
	err     error
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Invoke(_ context.Context, req InvokeRequest) (*InvokeResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &InvokeResponse{
		Text:  f.text,
		Usage: &model.TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
	}, nil
}

var _ Provider = (*fakeProvider)(nil)

func TestFamilyFor(t *testing.T) {
	cases := []struct {
		modelID string
		want    Family
	}{
		{ModelClaudeOpus45, FamilyClaude},
		{ModelClaudeHaiku4, FamilyClaude},
		{ModelOpenAIGPT52, FamilyOpenAI},
		{"o3-mini", FamilyOpenAI},
		{"o1", FamilyOpenAI},
		{ModelDeepSeekV32, FamilyDeepSeek},
		{ModelGeminiFlash3, FamilyGemini},
		{"  claude-sonnet-4-20250514  ", FamilyClaude},
		{"CLAUDE-HAIKU-4-20250514", FamilyClaude},
	}
	for _, c := range cases {
		got, err := FamilyFor(c.modelID)
		if err != nil {
			t.Fatalf("FamilyFor(%q): unexpected error: %v", c.modelID, err)
		}
		if got != c.want {
			t.Errorf("FamilyFor(%q) = %v, want %v", c.modelID, got, c.want)
		}
	}
}

func TestFamilyForUnknown(t *testing.T) {
	if _, err := FamilyFor("titan-express-v1"); err == nil {
		t.Fatal("expected error for unknown model id")
	}
	if _, err := FamilyFor(""); err == nil {
		t.Fatal("expected error for empty model id")
	}
}

func TestKnownModelsClassify(t *testing.T) {
	for family, models := range KnownModels() {
		for _, id := range models {
			got, err := FamilyFor(id)
			if err != nil {
				t.Fatalf("known model %q does not classify: %v", id, err)
			}
			if got != family {
				t.Errorf("model %q classified as %v, listed under %v", id, got, family)
			}
		}
	}
}

func TestDefaultModelRoundTrip(t *testing.T) {
	for _, f := range []Family{FamilyClaude, FamilyOpenAI, FamilyDeepSeek, FamilyGemini} {
		got, err := FamilyFor(f.DefaultModel())
		if err != nil {
			t.Fatalf("%v default model does not classify: %v", f, err)
		}
		if got != f {
			t.Errorf("%v default model classified as %v", f, got)
		}
	}
}

func TestParseFamily(t *testing.T) {
	cases := []struct {
		in   string
		want Family
	}{
		{"claude", FamilyClaude},
		{"Anthropic", FamilyClaude},
		{"openai", FamilyOpenAI},
		{"gpt", FamilyOpenAI},
		{"deepseek", FamilyDeepSeek},
		{"GOOGLE", FamilyGemini},
	}
	for _, c := range cases {
		got, err := ParseFamily(c.in)
		if err != nil {
			t.Fatalf("ParseFamily(%q): unexpected error: %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("ParseFamily(%q) = %v, want %v", c.in, got, c.want)
		}
	}
	if _, err := ParseFamily("mistral"); err == nil {
		t.Fatal("expected error for unknown family name")
	}
}

func TestClientRouting(t *testing.T) {
	claude := &fakeProvider{name: "claude-fake", text: "from claude"}
	client := NewClient().Register(FamilyClaude, claude)

	resp, err := client.Invoke(context.Background(), InvokeRequest{
		ModelID:     ModelClaudeHaiku4,
		Prompt:      "hi",
		Temperature: 0.2,
		MaxTokens:   256,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "from claude" {
		t.Errorf("expected routed response, got %q", resp.Text)
	}
	if claude.lastReq.ModelID != ModelClaudeHaiku4 {
		t.Errorf("provider saw model %q", claude.lastReq.ModelID)
	}
}

func TestClientRoutingUnregisteredFamily(t *testing.T) {
	client := NewClient().Register(FamilyClaude, &fakeProvider{name: "claude-fake"})

	_, err := client.Invoke(context.Background(), InvokeRequest{ModelID: ModelOpenAIGPT52, Prompt: "hi"})
	if err == nil {
		t.Fatal("expected error for unregistered family")
	}
	if !strings.Contains(err.Error(), "no provider registered") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestClientRoutingUnknownModel(t *testing.T) {
	client := NewClient().Register(FamilyClaude, &fakeProvider{name: "claude-fake"})

	if _, err := client.Invoke(context.Background(), InvokeRequest{ModelID: "nova-pro-v1", Prompt: "hi"}); err == nil {
		t.Fatal("expected error for unknown model id")
	}
}

func TestClientProviderError(t *testing.T) {
	boom := fmt.Errorf("throttled")
	client := NewClient().Register(FamilyClaude, &fakeProvider{name: "claude-fake", err: boom})

	_, err := client.Invoke(context.Background(), InvokeRequest{ModelID: ModelClaudeHaiku4, Prompt: "hi"})
	if err == nil {
		t.Fatal("expected provider error to propagate")
	}
	if !strings.Contains(err.Error(), "throttled") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestClientSupports(t *testing.T) {
	client := NewClient().Register(FamilyGemini, &fakeProvider{name: "gemini-fake"})

	if !client.Supports(ModelGeminiPro3) {
		t.Error("expected gemini model to be supported")
	}
	if client.Supports(ModelClaudeOpus45) {
		t.Error("claude should not be supported without registration")
	}
	if client.Supports("unknown-model") {
		t.Error("unknown model id should not be supported")
	}
}

func TestClientFamiliesStableOrder(t *testing.T) {
	client := NewClient().
		Register(FamilyGemini, &fakeProvider{name: "g"}).
		Register(FamilyClaude, &fakeProvider{name: "c"})

	families := client.Families()
	if len(families) != 2 {
		t.Fatalf("expected 2 families, got %d", len(families))
	}
	if families[0] != FamilyClaude || families[1] != FamilyGemini {
		t.Errorf("unexpected order: %v", families)
	}
}

func TestNewProviderEmptyKey(t *testing.T) {
	if _, err := NewProvider(FamilyClaude, ""); err == nil {
		t.Fatal("expected error for empty API key")
	}
}

func TestMaxTokensDefault(t *testing.T) {
	if got := maxTokensOrDefault(InvokeRequest{}); got != defaultMaxTokens {
		t.Errorf("expected default %d, got %d", defaultMaxTokens, got)
	}
	if got := maxTokensOrDefault(InvokeRequest{MaxTokens: 512}); got != 512 {
		t.Errorf("expected 512, got %d", got)
	}
}
