// Deterministic keyword fallbacks.
//
// The planner normally asks a model for search keywords. When that call
// fails or returns garbage, these extractors keep the loop moving without a
// second model call.

package agent

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Script-aware token runs. Hangul and Latin runs are extracted separately
// so mixed-script queries contribute keywords from both, and digit-bearing
// runs keep identifiers like "연차15일" or "v2" intact.
var (
	hangulRunRE = regexp.MustCompile(`\p{Hangul}+`)
	latinRunRE  = regexp.MustCompile(`[a-zA-Z]+`)
	digitRunRE  = regexp.MustCompile(`\p{Hangul}*[0-9]+\p{Hangul}*`)
)

// extractKeywords derives up to three search keywords directly from the
// query: script runs at least two characters long, deduplicated in order of
// appearance. As a last resort the query's first 20 characters become the
// single keyword, so the caller always gets something to search with.
func extractKeywords(query string) []string {
	var candidates []string
	candidates = append(candidates, hangulRunRE.FindAllString(query, -1)...)
	candidates = append(candidates, latinRunRE.FindAllString(query, -1)...)
	candidates = append(candidates, digitRunRE.FindAllString(query, -1)...)

	seen := make(map[string]bool, len(candidates))
	var keywords []string
	for _, c := range candidates {
		if utf8.RuneCountInString(c) < 2 || seen[c] {
			continue
		}
		seen[c] = true
		keywords = append(keywords, c)
		if len(keywords) == 3 {
			return keywords
		}
	}
	if len(keywords) > 0 {
		return keywords
	}

	if head := strings.TrimSpace(truncateRunes(query, 20)); head != "" {
		return []string{head}
	}
	return nil
}

// synonymTable substitutes domain terms when a search needs rephrasing.
// Entries are matched as substrings of the failing keywords, in table order
// so retries are deterministic.
var synonymTable = []struct {
	base     string
	synonyms []string
}{
	{"approval", []string{"authorization", "sign-off", "clearance", "approval process"}},
	{"process", []string{"procedure", "workflow", "steps", "method"}},
	{"policy", []string{"regulation", "guideline", "standard", "rule"}},
	{"benefit", []string{"welfare", "allowance", "support"}},
	{"investment", []string{"investment plan", "capital expenditure", "funding"}},
	{"review", []string{"assessment", "evaluation", "screening"}},
	{"company", []string{"organization", "employer", "workplace"}},
	{"규정", []string{"정책", "지침", "기준", "절차"}},
	{"승인", []string{"허가", "결재", "인가", "전결"}},
	{"절차", []string{"프로세스", "과정", "단계", "방법"}},
}

// generalAlternatives are tried when no synonym substitution applies.
var generalAlternatives = []string{
	"policy", "procedure", "guideline", "regulation", "manual", "handbook",
}

// alternativeKeywords builds replacement keywords for a retry: synonym
// substitutions of the failing keywords first, then token pairs and single
// tokens from the original query, then generic document terms. Keywords
// already tried are skipped. Returns up to limit entries; empty only when
// every candidate was already used.
func alternativeKeywords(previous []string, query string, limit int) []string {
	if limit <= 0 {
		limit = 3
	}
	used := make(map[string]bool, len(previous))
	for _, kw := range previous {
		used[kw] = true
	}

	var out []string
	add := func(kw string) bool {
		kw = strings.TrimSpace(kw)
		if kw == "" || used[kw] {
			return len(out) < limit
		}
		used[kw] = true
		out = append(out, kw)
		return len(out) < limit
	}

	for _, kw := range previous {
		for _, entry := range synonymTable {
			if !strings.Contains(kw, entry.base) {
				continue
			}
			for _, syn := range entry.synonyms {
				if !add(strings.Replace(kw, entry.base, syn, 1)) {
					return out
				}
			}
		}
	}

	tokens := queryTokens(query)
	for i := 0; i+1 < len(tokens); i++ {
		if !add(tokens[i] + " " + tokens[i+1]) {
			return out
		}
	}
	for _, tok := range tokens {
		if !add(tok) {
			return out
		}
	}

	for _, alt := range generalAlternatives {
		if !add(alt) {
			return out
		}
	}
	return out
}

func queryTokens(query string) []string {
	var tokens []string
	for _, tok := range append(hangulRunRE.FindAllString(query, -1), latinRunRE.FindAllString(query, -1)...) {
		if utf8.RuneCountInString(tok) >= 2 {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// truncateRunes returns at most n runes of s.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// previewRunes truncates for display, marking the cut with an ellipsis.
func previewRunes(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return truncateRunes(s, n) + "..."
}
