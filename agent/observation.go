// Observation step: judges the evidence gathered so far and either
// finalizes an answer or asks for another pass with different keywords.
//
// The quality bar drops as iterations are spent. Early passes demand
// strong matches; the last pass accepts whatever was found, so the loop
// always ends with an answer rather than an apology about searching.

package agent

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	jsonutil "github.com/jesamkim/aws-strands-agents-chatbot/internal/json"
	"github.com/jesamkim/aws-strands-agents-chatbot/model"
)

// qualityAssessment is the verdict on one action's search results.
type qualityAssessment struct {
	ok     bool
	avg    float64
	max    float64
	reason string
}

// Quality floors per iteration band: average score, best score, combined
// content length in characters.
type qualityFloor struct {
	avg     float64
	max     float64
	content int
}

func floorFor(iteration int) qualityFloor {
	switch {
	case iteration <= 2:
		return qualityFloor{avg: 0.5, max: 0.6, content: 200}
	case iteration <= 4:
		return qualityFloor{avg: 0.4, max: 0.5, content: 150}
	default:
		return qualityFloor{avg: 0.2, max: 0.3, content: 50}
	}
}

// assessQuality decides whether the results support a final answer.
// Retry verdicts are only possible while iterations remain; at the budget
// the results are accepted as they are.
func assessQuality(results []model.SearchResult, iteration, maxIterations int) qualityAssessment {
	canRetry := iteration < maxIterations

	if len(results) == 0 {
		if canRetry {
			return qualityAssessment{reason: "no search results"}
		}
		return qualityAssessment{ok: true}
	}

	var sum, max float64
	var contentLen int
	for _, r := range results {
		sum += r.Score
		if r.Score > max {
			max = r.Score
		}
		contentLen += utf8.RuneCountInString(r.Content)
	}
	avg := sum / float64(len(results))

	if canRetry {
		floor := floorFor(iteration)
		switch {
		case avg < floor.avg:
			return qualityAssessment{avg: avg, max: max,
				reason: fmt.Sprintf("average score %.2f below %.2f", avg, floor.avg)}
		case max < floor.max:
			return qualityAssessment{avg: avg, max: max,
				reason: fmt.Sprintf("best score %.2f below %.2f", max, floor.max)}
		case contentLen < floor.content:
			return qualityAssessment{avg: avg, max: max,
				reason: fmt.Sprintf("combined content length %d below %d", contentLen, floor.content)}
		}
	}
	return qualityAssessment{ok: true, avg: avg, max: max}
}

// observe evaluates the current iteration. Returns the result and the model
// the step charged its work to, for the trace record.
func (e *Engine) observe(ctx context.Context, lc *loopContext) (model.ObservationResult, string) {
	act := currentIterationAction(lc.steps)
	if act == nil {
		return e.directAnswer(ctx, lc)
	}
	if act.Err {
		return e.searchFailureAnswer(ctx, lc), e.cfg.SynthesisModel
	}

	q := assessQuality(act.SearchResults, lc.iteration, e.cfg.MaxIterations)
	if !q.ok {
		return e.retryVerdict(ctx, lc, act, q), e.cfg.OrchestrationModel
	}
	return e.synthesize(ctx, lc, q), e.cfg.SynthesisModel
}

// currentIterationAction returns the action belonging to the iteration
// being observed, nil when the iteration skipped the action phase. An
// action is current only if it was recorded after the latest orchestration.
func currentIterationAction(steps []model.StepRecord) *model.ActionResult {
	lastOrch, lastAct := -1, -1
	for i, s := range steps {
		switch s.Type {
		case model.StepOrchestration:
			lastOrch = i
		case model.StepAction:
			lastAct = i
		}
	}
	if lastAct >= 0 && lastAct > lastOrch {
		return steps[lastAct].Action
	}
	return nil
}

// Canned greeting replies, checked in order. Greetings never cost a model
// call.
var greetingReplies = []struct {
	match string
	reply string
}{
	{"안녕", "안녕하세요! 무엇을 도와드릴까요?"},
	{"hello", "Hello! How can I help you today?"},
	{"hey", "Hey! What can I help you with?"},
	{"hi", "Hi there! What can I do for you?"},
}

const defaultGreeting = "Hello! How can I help you today?"

// directAnswer handles iterations that never searched: greetings get a
// canned reply, continuations re-answer with conversation context, and
// everything else is answered from model knowledge.
func (e *Engine) directAnswer(ctx context.Context, lc *loopContext) (model.ObservationResult, string) {
	intent := intentGeneral
	if orch := model.LastOrchestration(lc.steps); orch != nil {
		intent = orch.Intent
	}

	switch intent {
	case intentGreeting:
		lower := strings.ToLower(lc.query)
		reply := defaultGreeting
		for _, g := range greetingReplies {
			if strings.Contains(lower, g.match) {
				reply = g.reply
				break
			}
		}
		return model.ObservationResult{IsFinalAnswer: true, FinalAnswer: reply, QualityScore: 1.0}, ""

	case intentContinuation:
		prompt := fmt.Sprintf(
			"Previous conversation:\n%s\nFollow-up question: %s\n\nAnswer the follow-up question using the conversation above.",
			historyContext(lc.history, 6, 500), lc.query)
		return e.answerOrApologize(ctx, lc, prompt), e.cfg.SynthesisModel

	default:
		var b strings.Builder
		if hc := historyContext(lc.history, 2, 150); hc != "" {
			fmt.Fprintf(&b, "Previous conversation:\n%s\n", hc)
		}
		fmt.Fprintf(&b, "Question: %s\n\nNo document index is available. Answer from general knowledge.", lc.query)
		return e.answerOrApologize(ctx, lc, b.String()), e.cfg.SynthesisModel
	}
}

// searchFailureAnswer produces a final answer after the action phase
// failed outright. The reply comes from general knowledge and says so.
func (e *Engine) searchFailureAnswer(ctx context.Context, lc *loopContext) model.ObservationResult {
	prompt := fmt.Sprintf(
		"The document search failed for this question. Answer from general knowledge and mention that the document index could not be consulted.\n\nQuestion: %s",
		lc.query)
	return e.answerOrApologize(ctx, lc, prompt)
}

// answerOrApologize runs one synthesis-model call for answers that carry no
// evidence. A failed call ends the turn with the stock apology.
func (e *Engine) answerOrApologize(ctx context.Context, lc *loopContext, prompt string) model.ObservationResult {
	text, err := e.invoke(ctx, lc, e.cfg.SynthesisModel, prompt, e.cfg.SystemPrompt, e.cfg.Temperature, e.cfg.MaxTokens)
	if err != nil {
		e.logger.Warn("answer generation failed", "err", err)
		return apologyResult()
	}
	return model.ObservationResult{
		IsFinalAnswer: true,
		FinalAnswer:   strings.TrimSpace(text),
		QualityScore:  1.0,
	}
}

// retryVerdict reports weak evidence and proposes the next keywords.
// Leaving the keywords empty tells the loop driver to give up instead.
func (e *Engine) retryVerdict(ctx context.Context, lc *loopContext, act *model.ActionResult, q qualityAssessment) model.ObservationResult {
	keywords := e.generateRetryKeywords(ctx, lc, act.SearchKeywords)
	e.logger.Debug("retry requested", "reason", q.reason, "keywords", strings.Join(keywords, ","))
	return model.ObservationResult{
		NeedsRetry:    true,
		RetryKeywords: keywords,
		RetryReason:   q.reason,
		QualityScore:  q.avg,
	}
}

// generateRetryKeywords asks the orchestration model for replacements,
// falling back to deterministic alternatives so a model outage does not by
// itself end the retry chain.
func (e *Engine) generateRetryKeywords(ctx context.Context, lc *loopContext, previous []string) []string {
	prompt := fmt.Sprintf(
		"The search keywords [%s] returned poor results for the question below.\nQuestion: %s\nSuggest 3 different keywords. Try synonyms, broader terms, or narrower terms.\nOutput format: [\"keyword1\", \"keyword2\", \"keyword3\"]",
		strings.Join(previous, ", "), lc.query)

	text, err := e.invoke(ctx, lc, e.cfg.OrchestrationModel, prompt, keywordSystemPrompt, 0, keywordMaxTokens)
	if err != nil {
		e.logger.Debug("retry keyword generation failed, deriving alternatives", "err", err)
		return alternativeKeywords(previous, lc.query, 3)
	}
	keywords, err := jsonutil.ExtractStringArray(text)
	if err != nil || len(keywords) == 0 {
		return alternativeKeywords(previous, lc.query, 3)
	}
	if len(keywords) > 3 {
		keywords = keywords[:3]
	}
	return keywords
}

const citationRules = "\n\nCite evidence inline using [n] markers that match the evidence ids. Cite only ids that appear in the evidence. Do not invent sources."

// synthesize composes the final answer from all evidence collected during
// the run. At the iteration budget the prompt is relaxed so the model
// answers with whatever is available instead of refusing.
func (e *Engine) synthesize(ctx context.Context, lc *loopContext, q qualityAssessment) model.ObservationResult {
	evidence := evidenceBlock(lc.accumulated)
	if evidence == "" {
		evidence = "(no evidence was found in the document index)"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", lc.query)
	if hc := historyContext(lc.history, 2, 150); hc != "" {
		fmt.Fprintf(&b, "Previous conversation:\n%s\n", hc)
	}
	fmt.Fprintf(&b, "Evidence:\n%s\n\n", evidence)
	if lc.iteration >= e.cfg.MaxIterations {
		b.WriteString("This is the final attempt. Write the best possible answer from the evidence above even where it is incomplete, and say plainly what is missing.")
	} else {
		b.WriteString("Write the answer to the question based on the evidence above. If the evidence does not fully cover the question, answer what it supports and note what is missing.")
	}

	text, err := e.invoke(ctx, lc, e.cfg.SynthesisModel, b.String(), e.cfg.SystemPrompt+citationRules, e.cfg.Temperature, e.cfg.MaxTokens)
	if err != nil {
		e.logger.Warn("answer synthesis failed", "err", err)
		return apologyResult()
	}

	answer := ensureSourceMarkers(strings.TrimSpace(text), lc.accumulated)
	return model.ObservationResult{
		IsFinalAnswer: true,
		FinalAnswer:   answer,
		QualityScore:  q.avg,
		Citations:     citationIDs(stripReferencesTail(answer)),
	}
}

func apologyResult() model.ObservationResult {
	return model.ObservationResult{IsFinalAnswer: true, FinalAnswer: apologyAnswer, Err: true}
}

// evidenceBlock renders accumulated results as numbered evidence the model
// can cite. Content is clipped per result to keep the prompt bounded.
func evidenceBlock(results []model.SearchResult) string {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		source := r.Source
		if source == "" {
			source = "unknown"
		}
		fmt.Fprintf(&b, "[%d] %s\nSource: %s", r.CitationID, truncateRunes(r.Content, 400), source)
	}
	return b.String()
}

// historyContext renders the most recent turns for a prompt. Assistant
// turns are clipped to assistantLimit characters; user turns are short
// already and pass through whole.
func historyContext(history []model.ConversationTurn, turns, assistantLimit int) string {
	recent := model.Window(history, turns)
	if len(recent) == 0 {
		return ""
	}
	var b strings.Builder
	for _, t := range recent {
		label := "User"
		content := t.Content
		if t.Role == model.RoleAssistant {
			label = "Assistant"
			content = truncateRunes(content, assistantLimit)
		}
		fmt.Fprintf(&b, "%s: %s\n", label, content)
	}
	return b.String()
}
