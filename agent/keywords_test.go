package agent

import (
	"reflect"
	"testing"
)

func TestExtractKeywordsKorean(t *testing.T) {
	got := extractKeywords("회사 휴가 규정 알려줘")
	want := []string{"회사", "휴가", "규정"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("extractKeywords = %v, want %v", got, want)
	}
}

func TestExtractKeywordsEnglish(t *testing.T) {
	got := extractKeywords("vacation policy details")
	want := []string{"vacation", "policy", "details"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("extractKeywords = %v, want %v", got, want)
	}
}

func TestExtractKeywordsDigitRuns(t *testing.T) {
	got := extractKeywords("2024 연차 기준")
	want := []string{"연차", "기준", "2024"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("extractKeywords = %v, want %v", got, want)
	}
}

func TestExtractKeywordsDeduplicates(t *testing.T) {
	got := extractKeywords("휴가 휴가 휴가 규정")
	want := []string{"휴가", "규정"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("extractKeywords = %v, want %v", got, want)
	}
}

func TestExtractKeywordsFallbackToQueryHead(t *testing.T) {
	got := extractKeywords("a b")
	want := []string{"a b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("extractKeywords = %v, want %v", got, want)
	}

	if got := extractKeywords("   "); got != nil {
		t.Errorf("expected nil for blank query, got %v", got)
	}
}

func TestAlternativeKeywordsSynonyms(t *testing.T) {
	got := alternativeKeywords([]string{"규정"}, "회사 규정 확인", 3)
	want := []string{"정책", "지침", "기준"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("alternativeKeywords = %v, want %v", got, want)
	}
}

func TestAlternativeKeywordsExcludesUsed(t *testing.T) {
	got := alternativeKeywords([]string{"policy"}, "", 4)
	want := []string{"regulation", "guideline", "standard", "rule"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("alternativeKeywords = %v, want %v", got, want)
	}
	for _, kw := range got {
		if kw == "policy" {
			t.Error("previous keyword leaked into alternatives")
		}
	}
}

func TestAlternativeKeywordsQueryTokens(t *testing.T) {
	got := alternativeKeywords([]string{"foo"}, "alpha beta", 2)
	want := []string{"alpha beta", "alpha"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("alternativeKeywords = %v, want %v", got, want)
	}
}

func TestAlternativeKeywordsGeneralFallback(t *testing.T) {
	got := alternativeKeywords([]string{"xyz"}, "", 3)
	want := []string{"policy", "procedure", "guideline"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("alternativeKeywords = %v, want %v", got, want)
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("안녕하세요", 3); got != "안녕하" {
		t.Errorf("truncateRunes = %q", got)
	}
	if got := truncateRunes("short", 10); got != "short" {
		t.Errorf("truncateRunes = %q", got)
	}
	if got := truncateRunes("anything", 0); got != "" {
		t.Errorf("truncateRunes = %q", got)
	}
}

func TestPreviewRunes(t *testing.T) {
	if got := previewRunes("hello", 10); got != "hello" {
		t.Errorf("previewRunes = %q", got)
	}
	if got := previewRunes("abcdefghijk", 5); got != "abcde..." {
		t.Errorf("previewRunes = %q", got)
	}
	if got := previewRunes("  padded  ", 20); got != "padded" {
		t.Errorf("previewRunes = %q", got)
	}
}
