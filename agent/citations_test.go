package agent

import (
	"reflect"
	"strings"
	"testing"

	"github.com/jesamkim/aws-strands-agents-chatbot/model"
)

func evidence(ids ...int) []model.SearchResult {
	out := make([]model.SearchResult, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.SearchResult{
			Content:    strings.Repeat("내용", 10),
			Score:      0.8,
			Source:     "doc-" + string(rune('a'+id-1)),
			CitationID: id,
		})
	}
	return out
}

func TestFinalizeCitationsAppendsReferences(t *testing.T) {
	content, ids := FinalizeCitations("연차는 15일입니다 [1]. 이월은 불가합니다 [2].", evidence(1, 2, 3))

	if !strings.Contains(content, "References:") {
		t.Fatalf("expected references block, got %q", content)
	}
	if !strings.Contains(content, "[1] doc-a:") || !strings.Contains(content, "[2] doc-b:") {
		t.Errorf("references missing cited sources: %q", content)
	}
	if strings.Contains(content, "[3]") {
		t.Errorf("uncited source leaked into references: %q", content)
	}
	if !reflect.DeepEqual(ids, []int{1, 2}) {
		t.Errorf("cited ids = %v, want [1 2]", ids)
	}
}

func TestFinalizeCitationsDropsUnknownMarkers(t *testing.T) {
	content, ids := FinalizeCitations("첫째 [1] 둘째 [7].", evidence(1, 2))

	if strings.Contains(content, "[7]") {
		t.Errorf("unknown marker survived: %q", content)
	}
	if !strings.Contains(content, "[1]") {
		t.Errorf("known marker removed: %q", content)
	}
	if !reflect.DeepEqual(ids, []int{1}) {
		t.Errorf("cited ids = %v, want [1]", ids)
	}
}

func TestFinalizeCitationsReplacesModelReferences(t *testing.T) {
	answer := "본문 내용 [1].\n\nReferences:\n[1] made-up source with wrong preview"
	content, _ := FinalizeCitations(answer, evidence(1))

	if strings.Contains(content, "made-up source") {
		t.Errorf("model's own references not stripped: %q", content)
	}
	if !strings.Contains(content, "[1] doc-a:") {
		t.Errorf("canonical reference missing: %q", content)
	}
	if got := strings.Count(content, "References:"); got != 1 {
		t.Errorf("expected exactly one references block, got %d", got)
	}
}

func TestFinalizeCitationsHeadingVariants(t *testing.T) {
	for _, heading := range []string{"References:", "**Sources**", "## 참고 자료", "참조"} {
		answer := "답변 [1].\n\n" + heading + "\n[1] stale"
		content, _ := FinalizeCitations(answer, evidence(1))
		if strings.Contains(content, "stale") {
			t.Errorf("heading %q not stripped: %q", heading, content)
		}
	}
}

func TestFinalizeCitationsNoCitations(t *testing.T) {
	content, ids := FinalizeCitations("그냥 일반적인 답변입니다.", evidence(1, 2))

	if content != "그냥 일반적인 답변입니다." {
		t.Errorf("content changed: %q", content)
	}
	if ids != nil {
		t.Errorf("expected no cited ids, got %v", ids)
	}
}

func TestFinalizeCitationsNoEvidence(t *testing.T) {
	content, ids := FinalizeCitations("근거 없는 주장 [1][2].", nil)

	if strings.Contains(content, "[1]") || strings.Contains(content, "[2]") {
		t.Errorf("markers without evidence survived: %q", content)
	}
	if ids != nil {
		t.Errorf("expected no cited ids, got %v", ids)
	}
}

func TestEnsureSourceMarkers(t *testing.T) {
	got := ensureSourceMarkers("요약된 답변입니다.", evidence(1, 2))
	if !strings.Contains(got, "Sources: [1], [2]") {
		t.Errorf("markers not appended: %q", got)
	}

	already := "근거는 [2]에 있습니다."
	if got := ensureSourceMarkers(already, evidence(1, 2)); got != already {
		t.Errorf("answer with markers modified: %q", got)
	}

	plain := "검색 결과가 없는 답변."
	if got := ensureSourceMarkers(plain, nil); got != plain {
		t.Errorf("answer without evidence modified: %q", got)
	}
}

func TestSourceMarkersSurviveFinalize(t *testing.T) {
	answer := ensureSourceMarkers("요약된 답변입니다.", evidence(1, 2))
	content, ids := FinalizeCitations(answer, evidence(1, 2))

	if !strings.Contains(content, "Sources: [1], [2]") {
		t.Errorf("inline sources line stripped: %q", content)
	}
	if !strings.Contains(content, "References:") {
		t.Errorf("references block missing: %q", content)
	}
	if !reflect.DeepEqual(ids, []int{1, 2}) {
		t.Errorf("cited ids = %v, want [1 2]", ids)
	}
}

func TestCitationIDs(t *testing.T) {
	ids := citationIDs("셋째 [3] 첫째 [1] 다시 [3]")
	if !reflect.DeepEqual(ids, []int{1, 3}) {
		t.Errorf("citationIDs = %v, want [1 3]", ids)
	}
	if got := citationIDs("no markers here"); got != nil {
		t.Errorf("citationIDs = %v, want nil", got)
	}
}
