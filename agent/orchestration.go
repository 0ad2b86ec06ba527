// Orchestration step: decides whether to search and with what keywords.
//
// Most queries never reach the model here. Continuations, greetings, and
// unconfigured-index turns are classified by rules; only a genuinely new
// searchable query costs a keyword-generation call.

package agent

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	jsonutil "github.com/jesamkim/aws-strands-agents-chatbot/internal/json"
	"github.com/jesamkim/aws-strands-agents-chatbot/model"
)

// Conversational intents assigned by orchestration.
const (
	intentContinuation = "continuation"
	intentGreeting     = "greeting"
	intentGeneral      = "general"
	intentSearch       = "search"
	intentRetrySearch  = "retry search"
)

// continuationConnectives mark short follow-up questions that lean on the
// previous answer ("then?", "또는?").
var continuationConnectives = []string{
	"다음은", "그럼", "그러면", "또는", "아니면", "그리고", "그런데",
	"그래서", "그렇다면", "그럼에도", "하지만", "그런데도", "그래도",
	"계속", "이어서", "추가로", "더", "또", "그 외에", "다른",
	"next", "then", "also", "more", "continue", "what about", "how about",
}

// interrogativeStarters open short questions that only make sense against
// prior context.
var interrogativeStarters = []string{
	"뭐", "무엇", "어떤", "어떻게", "왜", "언제", "어디", "누가", "얼마",
	"what", "how", "why", "when", "where", "who",
}

var greetingWords = []string{
	"안녕", "안녕하세요", "안녕하십니까", "hello", "hi", "hey",
}

const keywordSystemPrompt = "You are a keyword extraction expert. Generate precise search keywords in JSON array format."

const keywordMaxTokens = 100

// orchestrate classifies the turn and plans the next action. Decision order:
// conversation continuation, greeting, no index configured, retry keywords
// pending, and finally fresh keyword generation.
func (e *Engine) orchestrate(ctx context.Context, lc *loopContext) model.OrchestrationResult {
	query := strings.TrimSpace(lc.query)

	if isContinuation(query, lc.history) {
		return model.OrchestrationResult{
			Intent:     intentContinuation,
			Confidence: 0.9,
			Reasoning:  "conversation continuation, context applied",
		}
	}

	if isGreeting(query) {
		return model.OrchestrationResult{
			Intent:     intentGreeting,
			Confidence: 0.9,
			Reasoning:  "simple greeting, no search needed",
		}
	}

	if !e.search.Configured() {
		return model.OrchestrationResult{
			Intent:     intentGeneral,
			Confidence: 0.9,
			Reasoning:  "no search index configured, answering from model knowledge",
		}
	}

	if len(lc.retryKeywords) > 0 {
		keywords := lc.retryKeywords
		reason := lc.retryReason
		lc.retryKeywords = nil
		lc.retryReason = ""
		return model.OrchestrationResult{
			NeedsSearch:    true,
			SearchKeywords: keywords,
			Intent:         intentRetrySearch,
			Confidence:     0.9,
			Reasoning:      "retrying with different keywords: " + reason,
		}
	}

	return model.OrchestrationResult{
		NeedsSearch:    true,
		SearchKeywords: e.generateKeywords(ctx, lc),
		Intent:         intentSearch,
		Confidence:     0.95,
		Reasoning:      "search index configured, searching before answering",
	}
}

// generateKeywords asks the orchestration model for three search keywords.
// Parse failures and call failures both fall back to deterministic
// extraction from the query, so this never fails and never retries the
// model.
func (e *Engine) generateKeywords(ctx context.Context, lc *loopContext) []string {
	desc := e.cfg.IndexDescription
	if desc == "" {
		desc = "general document collection"
	}

	contextLine := ""
	for i := len(lc.history) - 1; i >= 0; i-- {
		if lc.history[i].Role == model.RoleUser {
			contextLine = "Previous: " + truncateRunes(lc.history[i].Content, 100) + "\n"
			break
		}
	}

	prompt := fmt.Sprintf(
		"Query: %s\nIndex: %s\n%s\nGenerate 3 search keywords for the document index.\nOutput format: [\"keyword1\", \"keyword2\", \"keyword3\"]",
		lc.query, truncateRunes(desc, 100), contextLine,
	)

	text, err := e.invoke(ctx, lc, e.cfg.OrchestrationModel, prompt, keywordSystemPrompt, 0, keywordMaxTokens)
	if err != nil {
		e.logger.Debug("keyword generation failed, extracting from query", "err", err)
		return extractKeywords(lc.query)
	}

	keywords, err := jsonutil.ExtractStringArray(text)
	if err != nil || len(keywords) == 0 {
		e.logger.Debug("keyword reply unparseable, extracting from query", "reply", previewRunes(text, 60))
		return extractKeywords(lc.query)
	}
	if len(keywords) > 3 {
		keywords = keywords[:3]
	}
	return keywords
}

// isContinuation reports whether a short query only makes sense as a
// follow-up: it contains a continuation connective (10 characters or less)
// or opens with a bare interrogative (20 characters or less). Either way a
// prior conversation must exist.
func isContinuation(query string, history []model.ConversationTurn) bool {
	if len(history) == 0 {
		return false
	}
	n := utf8.RuneCountInString(query)
	if n == 0 {
		return false
	}
	lower := strings.ToLower(query)

	if n <= 10 {
		for _, conn := range continuationConnectives {
			if strings.Contains(lower, conn) {
				return true
			}
		}
	}
	if n <= 20 {
		for _, starter := range interrogativeStarters {
			if strings.HasPrefix(lower, starter) {
				return true
			}
		}
	}
	return false
}

// isGreeting matches short queries against the greeting list. Tokens are
// compared whole, so "this" does not match "hi".
func isGreeting(query string) bool {
	if query == "" || utf8.RuneCountInString(query) >= 20 {
		return false
	}
	tokens := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		for _, greeting := range greetingWords {
			if tok == greeting {
				return true
			}
		}
	}
	return false
}
