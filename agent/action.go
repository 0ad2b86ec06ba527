// Action step: executes the searches the orchestration step planned.

package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/jesamkim/aws-strands-agents-chatbot/model"
)

// Per-keyword result caps. Retries fetch a little deeper since the first
// pass came up short.
const (
	searchPerQuery = 2
	retryPerQuery  = 3
)

// act runs the planned searches and records what came back. When the
// orchestration step decided against searching this is a stub, kept so a
// caller that always invokes all three phases still gets a coherent record.
func (e *Engine) act(ctx context.Context, lc *loopContext) model.ActionResult {
	orch := model.LastOrchestration(lc.steps)
	if orch == nil || !orch.NeedsSearch {
		return model.ActionResult{Content: "no search requested, answering directly"}
	}

	if !e.search.Configured() {
		return model.ActionResult{Content: "cannot search: index not configured", Err: true}
	}

	if orch.Intent == intentRetrySearch {
		return e.retrySearch(ctx, lc, orch.SearchKeywords)
	}

	if len(orch.SearchKeywords) == 0 {
		return model.ActionResult{Content: "cannot search: no keywords produced", Err: true}
	}

	return e.performSearch(ctx, lc, orch.SearchKeywords, searchPerQuery)
}

// retrySearch replaces the previous iteration's keywords. Suggestions from
// the observation step win; otherwise alternatives are derived from the
// failed keywords and the query.
func (e *Engine) retrySearch(ctx context.Context, lc *loopContext, suggested []string) model.ActionResult {
	previous := previousSearchKeywords(lc.steps)

	keywords := suggested
	if len(keywords) == 0 {
		keywords = alternativeKeywords(previous, lc.query, 5)
	}
	if len(keywords) == 0 {
		return model.ActionResult{
			SearchKeywords: previous,
			Content:        "retry requested but no alternative keywords available",
			Err:            true,
		}
	}

	e.logger.Debug("retrying search",
		"previous", strings.Join(previous, ","),
		"keywords", strings.Join(keywords, ","))

	res := e.performSearch(ctx, lc, keywords, retryPerQuery)
	if !res.Err {
		res.Content = fmt.Sprintf("retry search: keywords [%s] replaced with [%s]\n%s",
			strings.Join(previous, ", "), strings.Join(keywords, ", "), res.Content)
	}
	return res
}

// performSearch queries the index and folds new results into the loop
// context. Zero hits is not an action error; the observation step decides
// what to do about thin evidence.
func (e *Engine) performSearch(ctx context.Context, lc *loopContext, keywords []string, perQuery int) model.ActionResult {
	results, err := e.search.SearchMultiple(ctx, keywords, perQuery)
	if err != nil {
		return model.ActionResult{
			SearchKeywords: keywords,
			Content:        "search failed: " + err.Error(),
			Err:            true,
		}
	}

	added := lc.appendResults(results)
	e.logger.Debug("search finished",
		"keywords", strings.Join(keywords, ","),
		"hits", len(results), "new", len(added))

	return model.ActionResult{
		SearchResults:  added,
		SearchKeywords: keywords,
		Content:        searchSummary(keywords, added),
	}
}

// searchSummary renders a short trace entry: totals, then the top hits
// with their citation ids and scores.
func searchSummary(keywords []string, results []model.SearchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "search completed: %d new results for keywords [%s]",
		len(results), strings.Join(keywords, ", "))

	top := results
	if len(top) > 3 {
		top = top[:3]
	}
	for _, r := range top {
		fmt.Fprintf(&b, "\n[%d] score %.3f (%s) %s",
			r.CitationID, r.Score, r.Query, previewRunes(r.Content, 80))
	}
	return b.String()
}

// previousSearchKeywords returns the keywords of the most recent action
// that actually searched.
func previousSearchKeywords(steps []model.StepRecord) []string {
	for i := len(steps) - 1; i >= 0; i-- {
		if steps[i].Type != model.StepAction || steps[i].Action == nil {
			continue
		}
		if len(steps[i].Action.SearchKeywords) > 0 {
			return steps[i].Action.SearchKeywords
		}
	}
	return nil
}
