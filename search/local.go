// Local document index backed by SQLite.
//
// Information Hiding:
// - SQLite connection management and schema
// - Chunk scoring (token overlap computed in Go, no FTS extension required)
// - Source path lookup via radix tree

package search

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/jesamkim/aws-strands-agents-chatbot/internal/dsa"
	"github.com/jesamkim/aws-strands-agents-chatbot/model"
)

// LocalIndex stores document chunks in SQLite and serves keyword retrieval
// over them. Scoring is the fraction of query tokens present in a chunk,
// which lands in [0,1] like the remote backend's scores.
//
// Thread-safe: sql.DB pools connections, and the in-memory source tree is
// guarded by a mutex.
type LocalIndex struct {
	db *sql.DB

	mu      sync.RWMutex
	sources *dsa.Trie[int] // source path -> chunk count
}

// OpenLocalIndex opens or creates a local index at the given path.
// Creates parent directories if they don't exist.
func OpenLocalIndex(path string) (*LocalIndex, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create index directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}
	return newLocalIndex(db)
}

// NewLocalIndexInMemory creates an in-memory index (useful for testing).
func NewLocalIndexInMemory() (*LocalIndex, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory index: %w", err)
	}
	// Each sqlite :memory: connection is its own database; keep the pool at
	// one connection so every query sees the same schema.
	db.SetMaxOpenConns(1)
	return newLocalIndex(db)
}

func newLocalIndex(db *sql.DB) (*LocalIndex, error) {
	ix := &LocalIndex{db: db, sources: dsa.NewTrie[int]()}
	if err := ix.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize index schema: %w", err)
	}
	if err := ix.loadSources(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return ix, nil
}

// Close closes the database connection.
func (ix *LocalIndex) Close() error {
	return ix.db.Close()
}

func (ix *LocalIndex) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			content TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			UNIQUE(source, chunk_index)
		);

		CREATE INDEX IF NOT EXISTS idx_documents_source
		ON documents(source);
	`

	if _, err := ix.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// loadSources rebuilds the source tree from the documents table.
func (ix *LocalIndex) loadSources(ctx context.Context) error {
	rows, err := ix.db.QueryContext(ctx,
		"SELECT source, COUNT(*) FROM documents GROUP BY source")
	if err != nil {
		return fmt.Errorf("failed to load sources: %w", err)
	}
	defer rows.Close()

	ix.mu.Lock()
	defer ix.mu.Unlock()
	for rows.Next() {
		var source string
		var count int
		if err := rows.Scan(&source, &count); err != nil {
			return fmt.Errorf("failed to scan source: %w", err)
		}
		ix.sources.Insert(source, count)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating sources: %w", err)
	}
	return nil
}

// Add stores a document's chunks under its source path, replacing any
// previous chunks for the same source. Re-ingesting is idempotent.
func (ix *LocalIndex) Add(ctx context.Context, source string, chunks []string) error {
	if source == "" {
		return fmt.Errorf("empty source path")
	}

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// defer tx.Rollback() is safe even after Commit() - it becomes a no-op
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE source = ?", source); err != nil {
		return fmt.Errorf("failed to clear old chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO documents (id, source, chunk_index, content) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for i, chunk := range chunks {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, uuid.NewString(), source, i, chunk); err != nil {
			return fmt.Errorf("failed to insert chunk: %w", err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	ix.mu.Lock()
	if inserted > 0 {
		ix.sources.Insert(source, inserted)
	} else {
		ix.sources.Delete(source)
	}
	ix.mu.Unlock()
	return nil
}

// DeleteSource removes all chunks for a source path.
func (ix *LocalIndex) DeleteSource(ctx context.Context, source string) error {
	if _, err := ix.db.ExecContext(ctx, "DELETE FROM documents WHERE source = ?", source); err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
	}
	ix.mu.Lock()
	ix.sources.Delete(source)
	ix.mu.Unlock()
	return nil
}

// Sources returns indexed source paths starting with prefix, sorted.
// An empty prefix lists everything.
func (ix *LocalIndex) Sources(prefix string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := ix.sources.StartsWith(prefix)
	sort.Strings(out)
	return out
}

// ChunkCount returns the number of indexed chunks.
func (ix *LocalIndex) ChunkCount(ctx context.Context) (int, error) {
	var count int
	if err := ix.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

// Name identifies the backend for logging.
func (ix *LocalIndex) Name() string { return "local" }

// Retrieve scores every chunk against the query and returns the top
// maxResults hits with non-zero scores.
func (ix *LocalIndex) Retrieve(ctx context.Context, query string, maxResults int) ([]model.SearchResult, error) {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return nil, nil
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxPerQuery
	}

	rows, err := ix.db.QueryContext(ctx, "SELECT source, content FROM documents")
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var hits []model.SearchResult
	for rows.Next() {
		var source, content string
		if err := rows.Scan(&source, &content); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		score := overlapScore(queryTokens, content)
		if score <= 0 {
			continue
		}
		hits = append(hits, model.SearchResult{
			Content: content,
			Score:   score,
			Source:  source,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chunks: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > maxResults {
		hits = hits[:maxResults]
	}
	return hits, nil
}

// tokenize lowercases and splits on non-letter/non-digit runes, dropping
// tokens shorter than 2 characters.
func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= 2 {
			out = append(out, f)
		}
	}
	return out
}

// overlapScore is the fraction of query tokens present in the content.
func overlapScore(queryTokens []string, content string) float64 {
	contentTokens := tokenize(content)
	if len(contentTokens) == 0 {
		return 0
	}
	present := make(map[string]bool, len(contentTokens))
	for _, t := range contentTokens {
		present[t] = true
	}
	matched := 0
	for _, t := range queryTokens {
		if present[t] {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTokens))
}

// Verify LocalIndex implements Backend
var _ Backend = (*LocalIndex)(nil)
