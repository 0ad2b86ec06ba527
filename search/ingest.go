// Corpus ingestion into the local index.

package search

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

const (
	// ingestConcurrency bounds parallel file indexing.
	ingestConcurrency = 4
	// maxChunkLen caps one chunk's size in bytes.
	maxChunkLen = 1200
)

// IngestStats summarizes one ingest run.
type IngestStats struct {
	Files  int
	Chunks int
}

// IngestDir walks dir for .txt and .md files and indexes each one, replacing
// previously indexed chunks for the same relative path. Files are processed
// with bounded concurrency; the first failure cancels the remaining work.
func IngestDir(ctx context.Context, ix *LocalIndex, dir string) (IngestStats, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".txt", ".md":
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return IngestStats{}, fmt.Errorf("failed to walk %s: %w", dir, err)
	}

	var (
		mu    sync.Mutex
		stats IngestStats
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(ingestConcurrency)
	for _, path := range files {
		g.Go(func() error {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			chunks := ChunkText(string(data))
			if len(chunks) == 0 {
				return nil
			}

			source := path
			if rel, relErr := filepath.Rel(dir, path); relErr == nil {
				source = rel
			}
			if err := ix.Add(ctx, source, chunks); err != nil {
				return fmt.Errorf("failed to index %s: %w", source, err)
			}

			mu.Lock()
			stats.Files++
			stats.Chunks += len(chunks)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return stats, err
	}
	return stats, nil
}

// ChunkText splits text into paragraph chunks capped at maxChunkLen bytes.
// Adjacent short paragraphs are merged; an oversized paragraph is split
// hard at the cap.
func ChunkText(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	paragraphs := strings.Split(text, "\n\n")

	var chunks []string
	var current strings.Builder
	flush := func() {
		chunk := strings.TrimSpace(current.String())
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		current.Reset()
	}

	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}

		for len(p) > maxChunkLen {
			flush()
			chunks = append(chunks, strings.TrimSpace(p[:maxChunkLen]))
			p = strings.TrimSpace(p[maxChunkLen:])
		}
		if p == "" {
			continue
		}

		if current.Len() > 0 && current.Len()+len(p)+2 > maxChunkLen {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(p)
	}
	flush()

	return chunks
}
