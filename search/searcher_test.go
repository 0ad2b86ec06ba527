package search

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jesamkim/aws-strands-agents-chatbot/model"
)

// fakeBackend serves canned results per query.
type fakeBackend struct {
	results map[string][]model.SearchResult
	errs    map[string]error
	calls   []string
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Retrieve(_ context.Context, query string, maxResults int) ([]model.SearchResult, error) {
	f.calls = append(f.calls, query)
	if err, ok := f.errs[query]; ok {
		return nil, err
	}
	hits := f.results[query]
	if len(hits) > maxResults {
		hits = hits[:maxResults]
	}
	return hits, nil
}

var _ Backend = (*fakeBackend)(nil)

func TestSearchMultipleNotConfigured(t *testing.T) {
	client := NewClient(nil)
	_, err := client.SearchMultiple(context.Background(), []string{"vacation"}, 5)
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestSearchMultipleSkipsBlankQueries(t *testing.T) {
	backend := &fakeBackend{results: map[string][]model.SearchResult{
		"policy": {{Content: "vacation policy text", Score: 0.8, Source: "hr/policy.md"}},
	}}
	client := NewClient(backend)

	results, err := client.SearchMultiple(context.Background(), []string{"", "  ", "policy"}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(backend.calls) != 1 || backend.calls[0] != "policy" {
		t.Errorf("expected one backend call for 'policy', got %v", backend.calls)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Query != "policy" {
		t.Errorf("result not tagged with query: %q", results[0].Query)
	}
}

func TestSearchMultipleDeduplicates(t *testing.T) {
	shared := strings.Repeat("same leading content ", 10) // over fingerprint length
	backend := &fakeBackend{results: map[string][]model.SearchResult{
		"vacation": {{Content: shared + "tail one", Score: 0.9, Source: "a.md"}},
		"leave":    {{Content: shared + "tail two", Score: 0.7, Source: "b.md"}},
	}}
	client := NewClient(backend)

	results, err := client.SearchMultiple(context.Background(), []string{"vacation", "leave"}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected duplicate collapse to 1 result, got %d", len(results))
	}
	if results[0].Query != "vacation" {
		t.Errorf("first occurrence should win, got query %q", results[0].Query)
	}
}

func TestSearchMultipleSortsAndCaps(t *testing.T) {
	backend := &fakeBackend{results: map[string][]model.SearchResult{
		"a": {
			{Content: "result one with low score", Score: 0.2, Source: "1"},
			{Content: "result two with top score", Score: 0.95, Source: "2"},
			{Content: "result three middling", Score: 0.5, Source: "3"},
		},
		"b": {
			{Content: "result four strong", Score: 0.9, Source: "4"},
			{Content: "result five weak", Score: 0.1, Source: "5"},
			{Content: "result six decent", Score: 0.6, Source: "6"},
			{Content: "result seven ok", Score: 0.4, Source: "7"},
		},
	}}
	client := NewClient(backend)

	results, err := client.SearchMultiple(context.Background(), []string{"a", "b"}, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != MaxTotalResults {
		t.Fatalf("expected cap at %d, got %d", MaxTotalResults, len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("results not sorted descending at %d: %v > %v", i, results[i].Score, results[i-1].Score)
		}
	}
	if results[0].Source != "2" {
		t.Errorf("expected top result from source 2, got %s", results[0].Source)
	}
}

func TestSearchMultiplePartialBackendFailure(t *testing.T) {
	backend := &fakeBackend{
		results: map[string][]model.SearchResult{
			"good": {{Content: "useful evidence here", Score: 0.8, Source: "doc.md"}},
		},
		errs: map[string]error{
			"bad": errors.New("index unavailable"),
		},
	}
	client := NewClient(backend)

	results, err := client.SearchMultiple(context.Background(), []string{"bad", "good"}, 5)
	if err != nil {
		t.Fatalf("per-query failure should not fail the call: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result from surviving query, got %d", len(results))
	}
}

func TestSearchSingleQuery(t *testing.T) {
	backend := &fakeBackend{results: map[string][]model.SearchResult{
		"expense": {{Content: "expense report guidance", Score: 0.7, Source: "fin.md"}},
	}}
	client := NewClient(backend)

	results, err := client.Search(context.Background(), "expense", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
}

func TestFingerprint(t *testing.T) {
	long := strings.Repeat("x", 250)
	if got := Fingerprint(long); len(got) != 100 {
		t.Errorf("expected 100-byte fingerprint, got %d", len(got))
	}
	if got := Fingerprint("  short  "); got != "short" {
		t.Errorf("expected trimmed fingerprint, got %q", got)
	}
	a := Fingerprint(strings.Repeat("same", 50) + "different tail A")
	b := Fingerprint(strings.Repeat("same", 50) + "different tail B")
	if a != b {
		t.Error("fingerprints should match on shared prefix")
	}
}

func TestClampScore(t *testing.T) {
	if got := clampScore(-0.5); got != 0 {
		t.Errorf("expected 0, got %v", got)
	}
	if got := clampScore(1.7); got != 1 {
		t.Errorf("expected 1, got %v", got)
	}
	if got := clampScore(0.42); got != 0.42 {
		t.Errorf("expected passthrough, got %v", got)
	}
}
