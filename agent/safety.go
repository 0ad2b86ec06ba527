// Loop safety guards.
//
// Information Hiding:
// - Keyword and action bookkeeping hidden
// - Repetition detection thresholds hidden

package agent

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/jesamkim/aws-strands-agents-chatbot/model"
)

// Stop reasons reported by the safety controller.
const (
	ReasonMaxIterations     = "max iterations reached"
	ReasonTooManyErrors     = "too many consecutive errors"
	ReasonKeywordRepetition = "keyword repetition"
	ReasonActionRepeated    = "action repeated 3rd time"
)

// SafetyController prevents infinite or degenerate loops. It tracks the
// iteration count, consecutive errors, the cumulative set of search keywords,
// and the history of action signatures. State is scoped to one run; the
// engine creates a fresh controller per turn.
type SafetyController struct {
	maxIterations int
	maxErrors     int
	usedKeywords  map[string]bool
	signatures    []string
	errorCount    int
}

// NewSafetyController creates a controller with the given budgets.
func NewSafetyController(maxIterations, maxErrors int) *SafetyController {
	return &SafetyController{
		maxIterations: maxIterations,
		maxErrors:     maxErrors,
		usedKeywords:  make(map[string]bool),
	}
}

// ShouldContinue decides whether the loop may run another iteration, given
// the 1-based iteration just completed and the action it executed (nil when
// the iteration ran no action). Rules are checked in order and the first
// match stops the loop:
//
//  1. The iteration budget is spent.
//  2. Too many consecutive errors.
//  3. The action's keyword set has more than two entries and every one was
//     already used. Smaller or partially new sets merge into the used pool
//     and continue, so narrow domains with incidental overlap do not trip
//     the guard.
//  4. The exact action signature (type plus keyword list) already occurred
//     twice.
func (s *SafetyController) ShouldContinue(iteration int, last *model.ActionResult) (bool, string) {
	if iteration >= s.maxIterations {
		return false, ReasonMaxIterations
	}
	if s.errorCount >= s.maxErrors {
		return false, ReasonTooManyErrors
	}
	if last == nil {
		return true, ""
	}

	if len(last.SearchKeywords) > 0 {
		fresh := distinct(last.SearchKeywords)
		if len(fresh) > 2 && s.allUsed(fresh) {
			return false, ReasonKeywordRepetition
		}
		for _, kw := range fresh {
			s.usedKeywords[kw] = true
		}
	}

	sig := actionSignature(last)
	repeats := 0
	for _, prev := range s.signatures {
		if prev == sig {
			repeats++
		}
	}
	if repeats >= 2 {
		return false, ReasonActionRepeated
	}
	s.signatures = append(s.signatures, sig)

	return true, ""
}

// RecordError advances the consecutive error counter.
func (s *SafetyController) RecordError() {
	s.errorCount++
}

// ResetErrorCount clears the counter after a successful step. Error storms
// must be consecutive to trip the breaker.
func (s *SafetyController) ResetErrorCount() {
	s.errorCount = 0
}

// actionSignature fingerprints an action by its type and keyword list.
// Order matters: the same keywords in a different order count as a
// different action.
func actionSignature(res *model.ActionResult) string {
	kind := "search"
	if len(res.SearchResults) == 0 && len(res.SearchKeywords) == 0 {
		kind = "direct"
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.Join(res.SearchKeywords, "\x1f")))
	return fmt.Sprintf("%s_%x", kind, h.Sum64())
}

// distinct preserves first-occurrence order.
func distinct(keywords []string) []string {
	seen := make(map[string]bool, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		out = append(out, kw)
	}
	return out
}

func (s *SafetyController) allUsed(keywords []string) bool {
	for _, kw := range keywords {
		if !s.usedKeywords[kw] {
			return false
		}
	}
	return true
}
