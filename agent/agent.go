// ReAct (Reason + Act) loop implementation.
//
// This is THE canonical implementation of the ReAct pattern.
// All chat turns go through this module.
//
// Information Hiding:
// - Phase sequencing hidden
// - Retry hand-off between iterations hidden
// - Citation numbering hidden
// - Termination policy hidden

package agent

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jesamkim/aws-strands-agents-chatbot/llm"
	"github.com/jesamkim/aws-strands-agents-chatbot/model"
	"github.com/jesamkim/aws-strands-agents-chatbot/search"
)

// Termination reasons reported alongside the safety stops declared in
// safety.go.
const (
	ReasonGoalAchieved   = "goal achieved"
	ReasonNoMoreKeywords = "cannot find more keywords"
	ReasonCancelled      = "cancelled"
	ReasonInternalError  = "internal error"
)

// apologyAnswer is the stock reply when answer generation itself failed.
const apologyAnswer = "I'm sorry, something went wrong while preparing the answer. Please try again."

// noInformationAnswer is the reply when the loop stops with no usable
// evidence and no synthesized answer.
const noInformationAnswer = "I could not find relevant information in the available documents. Please try rephrasing your question."

// loopContext is the mutable state of one run: the question, accumulated
// evidence, the step trace, and the retry hand-off from observation to the
// next orchestration.
type loopContext struct {
	query     string
	history   []model.ConversationTurn
	iteration int

	retryKeywords []string
	retryReason   string

	accumulated  []model.SearchResult
	seen         map[string]bool
	nextCitation int

	steps    []model.StepRecord
	usage    model.TokenUsage
	llmCalls int
}

func newLoopContext(query string, history []model.ConversationTurn) *loopContext {
	return &loopContext{
		query:        query,
		history:      history,
		seen:         make(map[string]bool),
		nextCitation: 1,
	}
}

func (lc *loopContext) record(step model.StepRecord) {
	lc.steps = append(lc.steps, step)
}

// appendResults folds freshly retrieved results into the run's evidence.
// Duplicates of earlier evidence are dropped; the rest get the next
// citation ids. Ids are never reassigned, so a marker emitted in one
// iteration stays valid in every later one.
func (lc *loopContext) appendResults(results []model.SearchResult) []model.SearchResult {
	var added []model.SearchResult
	for _, r := range results {
		fp := search.Fingerprint(r.Content)
		if lc.seen[fp] {
			continue
		}
		lc.seen[fp] = true
		r.CitationID = lc.nextCitation
		lc.nextCitation++
		lc.accumulated = append(lc.accumulated, r)
		added = append(added, r)
	}
	return added
}

// Engine drives the reasoning loop for one question at a time. An Engine
// holds no per-run state and is safe to reuse across turns of a session.
type Engine struct {
	cfg    Config
	llm    *llm.Client
	search *search.Client
	logger *log.Logger
}

// New creates an engine. Zero config fields fall back to defaults. The
// search client may be unconfigured, in which case every turn is answered
// from model knowledge.
func New(cfg Config, llmClient *llm.Client, searchClient *search.Client) *Engine {
	return &Engine{
		cfg:    cfg.withDefaults(),
		llm:    llmClient,
		search: searchClient,
		logger: log.NewWithOptions(os.Stderr, log.Options{Prefix: "agent"}),
	}
}

// WithLogger replaces the engine's logger. Returns the engine for chaining.
func (e *Engine) WithLogger(logger *log.Logger) *Engine {
	e.logger = logger
	return e
}

// Config returns the effective configuration after defaulting.
func (e *Engine) Config() Config {
	return e.cfg
}

// WithMaxIterations returns a copy of the engine whose runs are capped at n
// iterations. The receiver is unchanged, so a shared engine can serve
// requests with different budgets concurrently.
func (e *Engine) WithMaxIterations(n int) *Engine {
	if n <= 0 || n == e.cfg.MaxIterations {
		return e
	}
	derived := *e
	derived.cfg.MaxIterations = n
	return &derived
}

// Run executes the loop for one user turn. The returned Result always
// carries content and a termination reason; model and search failures
// surface in the trace and in fallback answers, never as a panic or an
// empty reply.
func (e *Engine) Run(ctx context.Context, query string, history []model.ConversationTurn) (res model.Result) {
	start := time.Now()
	lc := newLoopContext(query, model.Window(history, e.cfg.HistoryWindow))

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("run panicked", "panic", r)
			lc.record(model.NewErrorStep(fmt.Sprintf("internal error: %v", r)))
			res = e.finish(lc, ReasonInternalError, apologyAnswer)
		}
		res.ExecutionTime = time.Since(start)
	}()

	e.logger.Info("run starting",
		"query", previewRunes(query, 60), "history", len(lc.history))
	res = e.run(ctx, lc)
	return res
}

func (e *Engine) run(ctx context.Context, lc *loopContext) model.Result {
	safety := NewSafetyController(e.cfg.MaxIterations, e.cfg.MaxConsecutiveErrors)

	for lc.iteration = 1; lc.iteration <= e.cfg.MaxIterations; lc.iteration++ {
		if ctx.Err() != nil {
			e.logger.Warn("run cancelled", "iteration", lc.iteration)
			return e.finish(lc, ReasonCancelled, e.bestEffortAnswer(lc))
		}

		orch := e.orchestrate(ctx, lc)
		lc.record(model.NewOrchestrationStep(orchestrationModel(e.cfg, orch), orchestrationContent(orch), orch))
		e.bookkeep(safety, orch.Err)
		e.logger.Debug("orchestration", "iteration", lc.iteration,
			"intent", orch.Intent, "search", orch.NeedsSearch)

		var act *model.ActionResult
		if orch.NeedsSearch {
			a := e.act(ctx, lc)
			act = &a
			lc.record(model.NewActionStep(a.Content, a))
			e.bookkeep(safety, a.Err)
		}

		obs, modelUsed := e.observe(ctx, lc)
		lc.record(model.NewObservationStep(modelUsed, observationContent(obs), obs))
		e.bookkeep(safety, obs.Err)

		if obs.IsFinalAnswer {
			return e.finish(lc, ReasonGoalAchieved, obs.FinalAnswer)
		}
		if obs.NeedsRetry {
			if len(obs.RetryKeywords) == 0 {
				e.logger.Info("no alternative keywords remain", "iteration", lc.iteration)
				return e.finish(lc, ReasonNoMoreKeywords, e.bestEffortAnswer(lc))
			}
			lc.retryKeywords = obs.RetryKeywords
			lc.retryReason = obs.RetryReason
		}

		if ok, reason := safety.ShouldContinue(lc.iteration, act); !ok {
			e.logger.Warn("safety stop", "iteration", lc.iteration, "reason", reason)
			return e.finish(lc, reason, e.bestEffortAnswer(lc))
		}
	}

	e.logger.Warn("iteration budget exhausted without a final answer")
	return e.finish(lc, ReasonMaxIterations, e.fallbackAnswer(lc))
}

// invoke runs one model call and accounts its tokens to the run.
func (e *Engine) invoke(ctx context.Context, lc *loopContext, modelID, prompt, system string, temperature float64, maxTokens int) (string, error) {
	lc.llmCalls++
	resp, err := e.llm.Invoke(ctx, llm.InvokeRequest{
		ModelID:      modelID,
		Prompt:       prompt,
		SystemPrompt: system,
		Temperature:  temperature,
		MaxTokens:    maxTokens,
	})
	if err != nil {
		return "", err
	}
	if resp.Usage != nil {
		lc.usage.Add(*resp.Usage)
	}
	return resp.Text, nil
}

// bookkeep advances the safety controller's error streak from one step's
// outcome.
func (e *Engine) bookkeep(s *SafetyController, errored bool) {
	if errored {
		s.RecordError()
		return
	}
	s.ResetErrorCount()
}

// finish resolves citations against the collected evidence and assembles
// the public result.
func (e *Engine) finish(lc *loopContext, reason, answer string) model.Result {
	content, cited := FinalizeCitations(answer, lc.accumulated)

	iterations := lc.iteration
	if iterations > e.cfg.MaxIterations {
		iterations = e.cfg.MaxIterations
	}

	e.logger.Info("run finished", "reason", reason, "iterations", iterations,
		"results", len(lc.accumulated), "llm_calls", lc.llmCalls,
		"tokens", lc.usage.TotalTokens)

	return model.Result{
		Content:           content,
		Trace:             lc.steps,
		IterationsUsed:    iterations,
		TerminationReason: reason,
		CitationsUsed:     cited,
		SearchResults:     lc.accumulated,
		TokenUsage:        lc.usage,
	}
}

// bestEffortAnswer assembles a partial reply from the strongest evidence
// when the loop stops without a synthesized answer.
func (e *Engine) bestEffortAnswer(lc *loopContext) string {
	if len(lc.accumulated) == 0 {
		return noInformationAnswer
	}

	top := make([]model.SearchResult, len(lc.accumulated))
	copy(top, lc.accumulated)
	sort.SliceStable(top, func(i, j int) bool { return top[i].Score > top[j].Score })
	if len(top) > 3 {
		top = top[:3]
	}

	var b strings.Builder
	b.WriteString("Based on the information found so far:\n")
	for _, r := range top {
		fmt.Fprintf(&b, "\n• %s [%d]", previewRunes(r.Content, 100), r.CitationID)
	}
	return b.String()
}

// fallbackAnswer covers the exit where the iteration budget ran out without
// the observation step finalizing.
func (e *Engine) fallbackAnswer(lc *loopContext) string {
	if len(lc.accumulated) > 0 {
		return e.bestEffortAnswer(lc)
	}
	var searches int
	for _, s := range lc.steps {
		if s.Type == model.StepAction {
			searches++
		}
	}
	return fmt.Sprintf("I could not find a reliable answer within %d iterations (%d searches). Please try rephrasing the question.",
		e.cfg.MaxIterations, searches)
}

func orchestrationModel(cfg Config, r model.OrchestrationResult) string {
	if r.Intent == intentSearch {
		return cfg.OrchestrationModel
	}
	return ""
}

func orchestrationContent(r model.OrchestrationResult) string {
	if r.NeedsSearch {
		return fmt.Sprintf("intent %s: search with [%s]", r.Intent, strings.Join(r.SearchKeywords, ", "))
	}
	return fmt.Sprintf("intent %s: %s", r.Intent, r.Reasoning)
}

func observationContent(r model.ObservationResult) string {
	switch {
	case r.IsFinalAnswer && r.Err:
		return "answer generation failed"
	case r.IsFinalAnswer:
		return fmt.Sprintf("final answer ready (quality %.2f, %d citations)", r.QualityScore, len(r.Citations))
	case r.NeedsRetry && len(r.RetryKeywords) > 0:
		return fmt.Sprintf("retry needed (%s), next keywords [%s]", r.RetryReason, strings.Join(r.RetryKeywords, ", "))
	case r.NeedsRetry:
		return fmt.Sprintf("retry needed (%s) but no alternative keywords remain", r.RetryReason)
	default:
		return "observation recorded"
	}
}
