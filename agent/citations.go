// Citation consistency.
//
// Synthesized answers reference evidence with [n] markers. Models forget to
// cite, cite ids that do not exist, and emit their own reference lists in
// whatever shape they like. This file is the one place that guarantees the
// emitted answer and its References block agree with the collected evidence.

package agent

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jesamkim/aws-strands-agents-chatbot/model"
)

var (
	citationMarkerRE = regexp.MustCompile(`\[(\d+)\]`)

	// A reference-section heading on a line of its own, in the shapes
	// models actually produce: "References:", "**Sources**", "## 참고 자료".
	referencesHeadingRE = regexp.MustCompile(`(?mi)^\s*(?:\*\*|#{1,3}\s*)?(?:references|sources|참고 자료|참조)\s*:?\s*(?:\*\*)?\s*$`)
)

// FinalizeCitations makes an answer citation-consistent against the
// accumulated results of one run. Any reference section the model emitted is
// stripped, markers whose id matches no collected result are removed, and a
// canonical References block listing exactly the cited sources is appended.
// Returns the finalized text and the sorted cited ids.
func FinalizeCitations(answer string, results []model.SearchResult) (string, []int) {
	body := stripReferencesTail(answer)

	known := make(map[int]model.SearchResult, len(results))
	for _, r := range results {
		known[r.CitationID] = r
	}

	cited := make(map[int]bool)
	body = citationMarkerRE.ReplaceAllStringFunc(body, func(marker string) string {
		id, err := strconv.Atoi(marker[1 : len(marker)-1])
		if err != nil {
			return marker
		}
		if _, ok := known[id]; !ok {
			return ""
		}
		cited[id] = true
		return marker
	})

	if len(cited) == 0 {
		return body, nil
	}

	ids := make([]int, 0, len(cited))
	for id := range cited {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var b strings.Builder
	b.WriteString(body)
	b.WriteString("\n\nReferences:\n")
	for _, id := range ids {
		r := known[id]
		source := r.Source
		if source == "" {
			source = "unknown source"
		}
		fmt.Fprintf(&b, "[%d] %s: %s\n", id, source, previewRunes(r.Content, 100))
	}
	return strings.TrimRight(b.String(), "\n"), ids
}

// stripReferencesTail removes a trailing reference section so the body can
// be re-scanned and a canonical block appended. Without a heading the text
// is returned unchanged apart from trailing whitespace.
func stripReferencesTail(answer string) string {
	locs := referencesHeadingRE.FindAllStringIndex(answer, -1)
	if len(locs) == 0 {
		return strings.TrimRight(answer, " \n")
	}
	last := locs[len(locs)-1]
	return strings.TrimRight(answer[:last[0]], " \n")
}

// citationIDs returns the sorted distinct marker ids appearing in text.
func citationIDs(text string) []int {
	seen := make(map[int]bool)
	var ids []int
	for _, m := range citationMarkerRE.FindAllStringSubmatch(text, -1) {
		id, err := strconv.Atoi(m[1])
		if err != nil || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// ensureSourceMarkers appends a Sources line naming every collected result
// when a synthesized answer cites nothing at all. Attribution survives even
// when the model ignores its citation instructions; the finalize pass turns
// the markers into a proper References block.
func ensureSourceMarkers(answer string, results []model.SearchResult) string {
	if len(results) == 0 {
		return answer
	}
	if citationMarkerRE.MatchString(stripReferencesTail(answer)) {
		return answer
	}
	markers := make([]string, 0, len(results))
	for _, r := range results {
		markers = append(markers, fmt.Sprintf("[%d]", r.CitationID))
	}
	return answer + "\n\nSources: " + strings.Join(markers, ", ")
}
