// Remote retrieval backend speaking a small JSON protocol.

package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jesamkim/aws-strands-agents-chatbot/model"
)

// HTTPBackend queries a managed retrieval service. The service exposes
// POST {base}/retrieve accepting {"index_id", "query", "max_results"} and
// answering {"results": [{"content", "score", "source"}]}.
type HTTPBackend struct {
	baseURL    string
	indexID    string
	httpClient *http.Client
}

// NewHTTPBackend creates a backend for the retrieval service at baseURL.
// indexID selects the document index on the service side and may be empty
// if the service serves a single index.
func NewHTTPBackend(baseURL, indexID string) *HTTPBackend {
	return &HTTPBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		indexID: indexID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Name identifies the backend for logging.
func (b *HTTPBackend) Name() string { return "http" }

type retrieveRequest struct {
	IndexID    string `json:"index_id,omitempty"`
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type retrieveResponse struct {
	Results []struct {
		Content string  `json:"content"`
		Score   float64 `json:"score"`
		Source  string  `json:"source"`
	} `json:"results"`
}

// Retrieve runs one query against the remote service.
func (b *HTTPBackend) Retrieve(ctx context.Context, query string, maxResults int) ([]model.SearchResult, error) {
	payload, err := json.Marshal(retrieveRequest{
		IndexID:    b.indexID,
		Query:      query,
		MaxResults: maxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieval: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/retrieve", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("retrieval: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("retrieval: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("retrieval: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var rr retrieveResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return nil, fmt.Errorf("retrieval: decode response: %w", err)
	}

	results := make([]model.SearchResult, 0, len(rr.Results))
	for i, r := range rr.Results {
		if i >= maxResults {
			break
		}
		results = append(results, model.SearchResult{
			Content: r.Content,
			Score:   clampScore(r.Score),
			Source:  r.Source,
		})
	}
	return results, nil
}

// clampScore keeps backend scores inside [0,1] regardless of what the
// service reports.
func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// Verify HTTPBackend implements Backend
var _ Backend = (*HTTPBackend)(nil)
