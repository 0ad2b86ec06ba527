// Package search provides document retrieval for the agent loop.
//
// A Client fans one or many keyword queries out to a Backend, deduplicates
// the hits by content fingerprint, and returns them sorted by relevance.
// Backends hide where the documents live: a remote retrieval service or a
// local sqlite index.
package search

import (
	"context"
	"errors"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/jesamkim/aws-strands-agents-chatbot/model"
)

// ErrNotConfigured is returned when no backend is configured.
var ErrNotConfigured = errors.New("search index not configured")

const (
	// DefaultMaxPerQuery bounds how many hits one query may contribute.
	DefaultMaxPerQuery = 5
	// MaxTotalResults caps the merged result list.
	MaxTotalResults = 5
	// fingerprintLen is how much content prefix identifies a duplicate.
	fingerprintLen = 100
)

// Backend retrieves documents for a single query.
type Backend interface {
	// Name identifies the backend for logging.
	Name() string

	// Retrieve returns up to maxResults hits for the query, scored in [0,1].
	Retrieve(ctx context.Context, query string, maxResults int) ([]model.SearchResult, error)
}

// Client merges multi-query retrieval over one backend.
type Client struct {
	backend Backend
	logger  *log.Logger
}

// NewClient creates a search client. A nil backend produces an unconfigured
// client whose searches fail with ErrNotConfigured.
func NewClient(backend Backend) *Client {
	return &Client{
		backend: backend,
		logger:  log.NewWithOptions(os.Stderr, log.Options{Prefix: "search"}),
	}
}

// SetLogger replaces the client's logger.
func (c *Client) SetLogger(logger *log.Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// Configured reports whether a backend is available.
func (c *Client) Configured() bool {
	return c != nil && c.backend != nil
}

// Fingerprint identifies a result by its content prefix, so near-identical
// chunks retrieved under different queries collapse to one evidence item.
func Fingerprint(content string) string {
	trimmed := strings.TrimSpace(content)
	if len(trimmed) > fingerprintLen {
		trimmed = trimmed[:fingerprintLen]
	}
	return trimmed
}

// SearchMultiple runs every non-blank query against the backend, tags each
// hit with the query that produced it, deduplicates by content fingerprint,
// sorts descending by score, and caps the merged list at MaxTotalResults.
//
// Per-query backend failures are logged and skipped; the call fails only
// when no backend is configured. Citation ids are not assigned here: the
// loop stamps them when results join its accumulated evidence.
func (c *Client) SearchMultiple(ctx context.Context, queries []string, maxPerQuery int) ([]model.SearchResult, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if maxPerQuery <= 0 {
		maxPerQuery = DefaultMaxPerQuery
	}

	seen := make(map[string]bool)
	var merged []model.SearchResult

	for _, query := range queries {
		query = strings.TrimSpace(query)
		if query == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return merged, err
		}

		hits, err := c.backend.Retrieve(ctx, query, maxPerQuery)
		if err != nil {
			c.logger.Warn("query failed", "backend", c.backend.Name(), "query", query, "err", err)
			continue
		}

		for _, hit := range hits {
			fp := Fingerprint(hit.Content)
			if fp == "" || seen[fp] {
				continue
			}
			seen[fp] = true
			hit.Query = query
			merged = append(merged, hit)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})

	if len(merged) > MaxTotalResults {
		merged = merged[:MaxTotalResults]
	}
	return merged, nil
}

// Search is the single-query convenience form of SearchMultiple.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]model.SearchResult, error) {
	return c.SearchMultiple(ctx, []string{query}, maxResults)
}
