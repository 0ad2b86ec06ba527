package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/jesamkim/aws-strands-agents-chatbot/llm"
	"github.com/jesamkim/aws-strands-agents-chatbot/model"
	"github.com/jesamkim/aws-strands-agents-chatbot/search"
)

// scriptProvider replays canned replies in call order and records every
// request it sees.
type scriptProvider struct {
	replies []string
	calls   []llm.InvokeRequest
	err     error
}

func (p *scriptProvider) Name() string { return "script" }

func (p *scriptProvider) Invoke(_ context.Context, req llm.InvokeRequest) (*llm.InvokeResponse, error) {
	p.calls = append(p.calls, req)
	if p.err != nil {
		return nil, p.err
	}
	if len(p.calls) > len(p.replies) {
		return nil, fmt.Errorf("script exhausted at call %d", len(p.calls))
	}
	return &llm.InvokeResponse{
		Text:  p.replies[len(p.calls)-1],
		Usage: &model.TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
	}, nil
}

type panicProvider struct{}

func (panicProvider) Name() string { return "panic" }

func (panicProvider) Invoke(context.Context, llm.InvokeRequest) (*llm.InvokeResponse, error) {
	panic("provider exploded")
}

// fakeBackend serves hits from a per-query function.
type fakeBackend struct {
	hits func(query string) []model.SearchResult
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) Retrieve(_ context.Context, query string, _ int) ([]model.SearchResult, error) {
	if b.hits == nil {
		return nil, nil
	}
	return b.hits(query), nil
}

// testEngine wires an engine with silenced logging. Pass a nil backend for
// an unconfigured index.
func testEngine(cfg Config, p llm.Provider, backend search.Backend) *Engine {
	client := llm.NewClient().Register(llm.FamilyClaude, p)
	sc := search.NewClient(backend)
	sc.SetLogger(log.New(io.Discard))
	return New(cfg, client, sc).WithLogger(log.New(io.Discard))
}

func stepTypes(trace []model.StepRecord) []model.StepType {
	out := make([]model.StepType, 0, len(trace))
	for _, s := range trace {
		out = append(out, s.Type)
	}
	return out
}

func TestGreetingAnsweredWithoutModel(t *testing.T) {
	p := &scriptProvider{err: errors.New("model must not be called")}
	eng := testEngine(Config{}, p, &fakeBackend{})

	res := eng.Run(context.Background(), "안녕하세요", nil)

	if res.TerminationReason != ReasonGoalAchieved {
		t.Fatalf("reason = %q", res.TerminationReason)
	}
	if res.Content != "안녕하세요! 무엇을 도와드릴까요?" {
		t.Errorf("content = %q", res.Content)
	}
	if res.IterationsUsed != 1 {
		t.Errorf("iterations = %d, want 1", res.IterationsUsed)
	}
	if got := stepTypes(res.Trace); !reflect.DeepEqual(got, []model.StepType{model.StepOrchestration, model.StepObservation}) {
		t.Errorf("trace = %v, want orchestration+observation only", got)
	}
	if res.Trace[0].Orchestration.Intent != intentGreeting {
		t.Errorf("intent = %q", res.Trace[0].Orchestration.Intent)
	}
	if len(p.calls) != 0 {
		t.Errorf("greeting made %d model calls", len(p.calls))
	}
	if len(res.CitationsUsed) != 0 || len(res.SearchResults) != 0 {
		t.Error("greeting produced citations or search results")
	}

	// Same input, same reply: the path is fully deterministic.
	again := eng.Run(context.Background(), "안녕하세요", nil)
	if again.Content != res.Content {
		t.Errorf("greeting not deterministic: %q vs %q", again.Content, res.Content)
	}
}

func TestEnglishGreetingReply(t *testing.T) {
	p := &scriptProvider{err: errors.New("model must not be called")}
	eng := testEngine(Config{}, p, &fakeBackend{})

	res := eng.Run(context.Background(), "hello", nil)
	if res.Content != "Hello! How can I help you today?" {
		t.Errorf("content = %q", res.Content)
	}
	if len(p.calls) != 0 {
		t.Errorf("greeting made %d model calls", len(p.calls))
	}
}

func TestSearchAnswersWithCitations(t *testing.T) {
	backend := &fakeBackend{hits: func(query string) []model.SearchResult {
		return []model.SearchResult{
			{Content: query + " 상세 규정: " + strings.Repeat("내용 ", 25), Score: 0.7, Source: "policy/" + query + "-1"},
			{Content: query + " 추가 항목: " + strings.Repeat("세부 ", 25), Score: 0.6, Source: "policy/" + query + "-2"},
		}
	}}
	p := &scriptProvider{replies: []string{
		`["휴가", "연차", "규정"]`,
		"연차는 15일입니다 [1][2].",
	}}
	eng := testEngine(Config{}, p, backend)

	res := eng.Run(context.Background(), "연차 휴가는 며칠인가요?", nil)

	if res.TerminationReason != ReasonGoalAchieved {
		t.Fatalf("reason = %q", res.TerminationReason)
	}
	if res.IterationsUsed != 1 {
		t.Errorf("iterations = %d, want 1", res.IterationsUsed)
	}
	if got := stepTypes(res.Trace); !reflect.DeepEqual(got, []model.StepType{model.StepOrchestration, model.StepAction, model.StepObservation}) {
		t.Fatalf("trace = %v", got)
	}

	if !strings.Contains(res.Content, "연차는 15일입니다 [1][2].") {
		t.Errorf("answer body missing: %q", res.Content)
	}
	if !strings.Contains(res.Content, "References:") || !strings.Contains(res.Content, "[1] policy/휴가-1:") {
		t.Errorf("references missing: %q", res.Content)
	}
	if !reflect.DeepEqual(res.CitationsUsed, []int{1, 2}) {
		t.Errorf("citations = %v, want [1 2]", res.CitationsUsed)
	}
	if len(res.SearchResults) != 5 {
		t.Errorf("search results = %d, want 5 after merge cap", len(res.SearchResults))
	}
	if res.TokenUsage.TotalTokens != 30 {
		t.Errorf("token usage = %d, want 30", res.TokenUsage.TotalTokens)
	}

	if len(p.calls) != 2 {
		t.Fatalf("model calls = %d, want 2", len(p.calls))
	}
	kw := p.calls[0]
	if kw.ModelID != llm.ModelClaudeHaiku4 {
		t.Errorf("keyword call model = %q", kw.ModelID)
	}
	if kw.Temperature != 0 || kw.MaxTokens != keywordMaxTokens {
		t.Errorf("keyword call params: temp %v tokens %d", kw.Temperature, kw.MaxTokens)
	}
	synth := p.calls[1]
	if synth.ModelID != llm.ModelClaudeSonnet4 {
		t.Errorf("synthesis call model = %q", synth.ModelID)
	}
	if !strings.Contains(synth.SystemPrompt, "Cite evidence inline") {
		t.Errorf("synthesis system prompt lacks citation rules: %q", synth.SystemPrompt)
	}
	if !strings.Contains(synth.Prompt, "[1]") {
		t.Errorf("evidence not in synthesis prompt: %q", synth.Prompt)
	}

	if kws := res.Trace[1].Action.SearchKeywords; !reflect.DeepEqual(kws, []string{"휴가", "연차", "규정"}) {
		t.Errorf("action keywords = %v", kws)
	}
}

func TestRetryUntilBudgetAccepts(t *testing.T) {
	backend := &fakeBackend{hits: func(query string) []model.SearchResult {
		score := 0.1
		if query == "k5" {
			score = 0.25
		}
		return []model.SearchResult{{
			Content: query + " 관련 문서: " + strings.Repeat("상세 ", 30),
			Score:   score,
			Source:  "kb/" + query,
		}}
	}}
	p := &scriptProvider{replies: []string{
		`["k1a", "k1b", "k1c"]`,
		`["k2"]`,
		`["k3"]`,
		`["k4"]`,
		`["k5"]`,
		"수집된 정보로 정리했습니다 [7].",
	}}
	eng := testEngine(Config{}, p, backend)

	res := eng.Run(context.Background(), "장애 처리 기준은 무엇인가요?", nil)

	if res.TerminationReason != ReasonGoalAchieved {
		t.Fatalf("reason = %q", res.TerminationReason)
	}
	if res.IterationsUsed != 5 {
		t.Errorf("iterations = %d, want 5", res.IterationsUsed)
	}
	if len(res.Trace) != 15 {
		t.Errorf("trace steps = %d, want 15", len(res.Trace))
	}
	if len(p.calls) != 6 {
		t.Fatalf("model calls = %d, want 6", len(p.calls))
	}
	if !reflect.DeepEqual(res.CitationsUsed, []int{7}) {
		t.Errorf("citations = %v, want [7]", res.CitationsUsed)
	}
	if len(res.SearchResults) != 7 {
		t.Errorf("accumulated results = %d, want 7", len(res.SearchResults))
	}

	// Early observations retried on weak averages.
	first := res.Trace[2].Observation
	if first == nil || !first.NeedsRetry || !strings.HasPrefix(first.RetryReason, "average score") {
		t.Errorf("first observation = %+v", first)
	}
	// The last pass runs with the relaxed, answer-anyway prompt.
	if !strings.Contains(p.calls[5].Prompt, "final attempt") {
		t.Errorf("final synthesis prompt not relaxed: %q", p.calls[5].Prompt)
	}
}

func TestRepeatedKeywordsStopTheLoop(t *testing.T) {
	backend := &fakeBackend{hits: func(query string) []model.SearchResult {
		return []model.SearchResult{{
			Content: query + " 관련 안내문입니다.",
			Score:   0.1,
			Source:  "kb/" + query,
		}}
	}}
	same := `["보험", "급여", "청구"]`
	p := &scriptProvider{replies: []string{same, same, same}}
	eng := testEngine(Config{}, p, backend)

	res := eng.Run(context.Background(), "보험 급여 청구 방법", nil)

	if res.TerminationReason != ReasonKeywordRepetition {
		t.Fatalf("reason = %q, want %q", res.TerminationReason, ReasonKeywordRepetition)
	}
	if res.IterationsUsed != 2 {
		t.Errorf("iterations = %d, want 2", res.IterationsUsed)
	}
	if !strings.Contains(res.Content, "Based on the information found so far") {
		t.Errorf("best-effort answer missing: %q", res.Content)
	}
	if !strings.Contains(res.Content, "References:") {
		t.Errorf("best-effort answer lacks references: %q", res.Content)
	}
	if !reflect.DeepEqual(res.CitationsUsed, []int{1, 2, 3}) {
		t.Errorf("citations = %v, want [1 2 3]", res.CitationsUsed)
	}
	if len(p.calls) != 3 {
		t.Errorf("model calls = %d, want 3", len(p.calls))
	}
}

func TestModelOutageStillAnswers(t *testing.T) {
	backend := &fakeBackend{hits: func(query string) []model.SearchResult {
		return []model.SearchResult{{
			Content: query + " 관련 조항: " + strings.Repeat("문서 ", 40),
			Score:   0.8,
			Source:  "kb/" + query,
		}}
	}}
	p := &scriptProvider{err: errors.New("throttled")}
	eng := testEngine(Config{}, p, backend)

	res := eng.Run(context.Background(), "회사 승인 절차 알려줘", nil)

	if res.TerminationReason != ReasonGoalAchieved {
		t.Fatalf("reason = %q", res.TerminationReason)
	}
	if res.Content != apologyAnswer {
		t.Errorf("content = %q, want stock apology", res.Content)
	}
	if res.IterationsUsed != 1 {
		t.Errorf("iterations = %d, want 1", res.IterationsUsed)
	}
	// Keyword generation fell back to extraction, then synthesis failed.
	if len(p.calls) != 2 {
		t.Errorf("model calls = %d, want 2", len(p.calls))
	}
	last := res.Trace[len(res.Trace)-1]
	if last.Type != model.StepObservation || !last.Err {
		t.Errorf("last step = %+v", last)
	}
	if kws := res.Trace[1].Action.SearchKeywords; !reflect.DeepEqual(kws, []string{"회사", "승인", "절차"}) {
		t.Errorf("fallback keywords = %v", kws)
	}
}

func TestEmptySearchRunsOutOfBudget(t *testing.T) {
	backend := &fakeBackend{}
	p := &scriptProvider{replies: []string{
		`["서버", "장애", "로그"]`,
		`["k2"]`,
		`["k3"]`,
		`["k4"]`,
		`["k5"]`,
		"관련 문서를 찾지 못했습니다.",
	}}
	eng := testEngine(Config{}, p, backend)

	res := eng.Run(context.Background(), "서버 장애 로그는 어디에 있나요?", nil)

	if res.TerminationReason != ReasonGoalAchieved {
		t.Fatalf("reason = %q", res.TerminationReason)
	}
	if res.IterationsUsed != 5 {
		t.Errorf("iterations = %d, want 5", res.IterationsUsed)
	}
	if res.Content != "관련 문서를 찾지 못했습니다." {
		t.Errorf("content = %q", res.Content)
	}
	if len(res.SearchResults) != 0 || len(res.CitationsUsed) != 0 {
		t.Error("empty searches produced results or citations")
	}
	if len(p.calls) != 6 {
		t.Fatalf("model calls = %d, want 6", len(p.calls))
	}
	if !strings.Contains(p.calls[5].Prompt, "no evidence was found") {
		t.Errorf("final prompt lacks empty-evidence note: %q", p.calls[5].Prompt)
	}
}

func TestCancelledContextStops(t *testing.T) {
	p := &scriptProvider{err: errors.New("model must not be called")}
	eng := testEngine(Config{}, p, &fakeBackend{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := eng.Run(ctx, "아무 질문이나", nil)
	if res.TerminationReason != ReasonCancelled {
		t.Fatalf("reason = %q", res.TerminationReason)
	}
	if res.Content != noInformationAnswer {
		t.Errorf("content = %q", res.Content)
	}
	if len(res.Trace) != 0 {
		t.Errorf("trace = %d steps, want 0", len(res.Trace))
	}
	if len(p.calls) != 0 {
		t.Errorf("cancelled run made %d model calls", len(p.calls))
	}
}

func TestNoIndexAnswersFromModelKnowledge(t *testing.T) {
	p := &scriptProvider{replies: []string{"네, 고래는 포유류입니다."}}
	eng := testEngine(Config{}, p, nil)

	res := eng.Run(context.Background(), "고래는 포유류인가요?", nil)

	if res.TerminationReason != ReasonGoalAchieved {
		t.Fatalf("reason = %q", res.TerminationReason)
	}
	if res.Content != "네, 고래는 포유류입니다." {
		t.Errorf("content = %q", res.Content)
	}
	if got := stepTypes(res.Trace); !reflect.DeepEqual(got, []model.StepType{model.StepOrchestration, model.StepObservation}) {
		t.Errorf("trace = %v", got)
	}
	if res.Trace[0].Orchestration.Intent != intentGeneral {
		t.Errorf("intent = %q", res.Trace[0].Orchestration.Intent)
	}
	if len(p.calls) != 1 {
		t.Fatalf("model calls = %d, want 1", len(p.calls))
	}
	if p.calls[0].ModelID != llm.ModelClaudeSonnet4 {
		t.Errorf("direct answer model = %q", p.calls[0].ModelID)
	}
	if !strings.Contains(p.calls[0].Prompt, "No document index is available") {
		t.Errorf("prompt = %q", p.calls[0].Prompt)
	}
}

func TestContinuationAnswersFromHistory(t *testing.T) {
	backend := &fakeBackend{hits: func(query string) []model.SearchResult {
		t.Errorf("continuation searched for %q", query)
		return nil
	}}
	p := &scriptProvider{replies: []string{"추가로 경조사 휴가도 있습니다."}}
	eng := testEngine(Config{}, p, backend)

	history := []model.ConversationTurn{
		{Role: model.RoleUser, Content: "휴가 규정 알려줘"},
		{Role: model.RoleAssistant, Content: "휴가는 15일입니다"},
	}
	res := eng.Run(context.Background(), "그럼 다음은?", history)

	if res.TerminationReason != ReasonGoalAchieved {
		t.Fatalf("reason = %q", res.TerminationReason)
	}
	if res.Content != "추가로 경조사 휴가도 있습니다." {
		t.Errorf("content = %q", res.Content)
	}
	if res.Trace[0].Orchestration.Intent != intentContinuation {
		t.Errorf("intent = %q", res.Trace[0].Orchestration.Intent)
	}
	if got := stepTypes(res.Trace); !reflect.DeepEqual(got, []model.StepType{model.StepOrchestration, model.StepObservation}) {
		t.Errorf("trace = %v", got)
	}
	if len(p.calls) != 1 {
		t.Fatalf("model calls = %d, want 1", len(p.calls))
	}
	if !strings.Contains(p.calls[0].Prompt, "휴가는 15일입니다") {
		t.Errorf("history missing from prompt: %q", p.calls[0].Prompt)
	}
	if !strings.Contains(p.calls[0].Prompt, "Follow-up question: 그럼 다음은?") {
		t.Errorf("follow-up line missing: %q", p.calls[0].Prompt)
	}
}

func TestPanicRecovered(t *testing.T) {
	eng := testEngine(Config{}, panicProvider{}, nil)

	res := eng.Run(context.Background(), "무엇이든 물어보세요", nil)

	if res.TerminationReason != ReasonInternalError {
		t.Fatalf("reason = %q", res.TerminationReason)
	}
	if res.Content != apologyAnswer {
		t.Errorf("content = %q", res.Content)
	}
	last := res.Trace[len(res.Trace)-1]
	if last.Type != model.StepError || !strings.Contains(last.Content, "internal error") {
		t.Errorf("last step = %+v", last)
	}
	if got := stepTypes(res.Trace); !reflect.DeepEqual(got, []model.StepType{model.StepOrchestration, model.StepError}) {
		t.Errorf("trace = %v", got)
	}
}

func TestBuilderAppliesOptions(t *testing.T) {
	client := llm.NewClient().Register(llm.FamilyClaude, &scriptProvider{})
	eng := NewBuilder(client).
		OrchestrationModel(llm.ModelClaudeHaiku4).
		SynthesisModel(llm.ModelClaudeOpus45).
		SystemPrompt("You answer HR questions.").
		IndexDescription("HR policies").
		Temperature(0.3).
		MaxTokens(512).
		MaxIterations(2).
		Logger(log.New(io.Discard)).
		Build()

	cfg := eng.Config()
	if cfg.SynthesisModel != llm.ModelClaudeOpus45 {
		t.Errorf("synthesis model = %q", cfg.SynthesisModel)
	}
	if cfg.SystemPrompt != "You answer HR questions." {
		t.Errorf("system prompt = %q", cfg.SystemPrompt)
	}
	if cfg.MaxIterations != 2 || cfg.MaxTokens != 512 {
		t.Errorf("limits = %d/%d", cfg.MaxIterations, cfg.MaxTokens)
	}
	// Unset fields still default.
	if cfg.MaxConsecutiveErrors != 3 || cfg.HistoryWindow != 10 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	def := DefaultConfig()
	if !reflect.DeepEqual(cfg, Config{
		OrchestrationModel:   def.OrchestrationModel,
		SynthesisModel:       def.SynthesisModel,
		SystemPrompt:         def.SystemPrompt,
		MaxTokens:            def.MaxTokens,
		MaxIterations:        def.MaxIterations,
		MaxConsecutiveErrors: def.MaxConsecutiveErrors,
		HistoryWindow:        def.HistoryWindow,
	}) {
		t.Errorf("withDefaults = %+v", cfg)
	}

	kept := Config{MaxIterations: 7, Temperature: 0.9}.withDefaults()
	if kept.MaxIterations != 7 || kept.Temperature != 0.9 {
		t.Errorf("explicit values overridden: %+v", kept)
	}
}
