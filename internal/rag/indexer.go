package rag

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/askdocs/askdocs/internal/chunk"
	"github.com/askdocs/askdocs/internal/knowledge"
)

// defaultExtensions are the file types indexed by default.
var defaultExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".rst":  true,
	".go":   true,
	".py":   true,
	".js":   true,
	".ts":   true,
	".java": true,
	".c":    true,
	".h":    true,
	".rs":   true,
	".rb":   true,
	".sh":   true,
	".yaml": true,
	".yml":  true,
	".json": true,
	".html": true,
	".css":  true,
	".sql":  true,
}

// maxIndexFileSize skips files too large to chunk sensibly (5 MB).
const maxIndexFileSize = 5 * 1024 * 1024

// ChunkStore persists chunks. knowledge.Store satisfies this.
type ChunkStore interface {
	AddBatch(ctx context.Context, chunks []knowledge.Chunk) error
	DeleteDocument(ctx context.Context, documentID string) (int64, error)
}

// IndexResult summarizes one indexing run.
type IndexResult struct {
	FilesAdded   int
	FilesSkipped int
	FilesFailed  int
	ChunksAdded  int
	Duration     time.Duration
}

// Indexer splits files into chunks and stores them with embeddings.
type Indexer struct {
	store      ChunkStore
	splitter   *chunk.Splitter
	extensions map[string]bool
	logger     *slog.Logger
}

// NewIndexer creates an Indexer. extensions overrides the default file
// type list when non-empty; a nil logger falls back to slog.Default().
func NewIndexer(store ChunkStore, splitter *chunk.Splitter, extensions []string, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}

	extMap := make(map[string]bool, len(defaultExtensions))
	if len(extensions) > 0 {
		for _, ext := range extensions {
			extMap[strings.ToLower(ext)] = true
		}
	} else {
		for ext := range defaultExtensions {
			extMap[ext] = true
		}
	}

	return &Indexer{
		store:      store,
		splitter:   splitter,
		extensions: extMap,
		logger:     logger,
	}
}

// AddFile indexes a single file. The document ID is the file name
// without extension; the stored filename is path relative to root, or
// the bare file name when root is empty. Returns the number of chunks
// stored.
func (ix *Indexer) AddFile(ctx context.Context, path, root string) (int, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() > maxIndexFileSize {
		return 0, fmt.Errorf("file %s too large to index (%d bytes)", path, info.Size())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}

	filename := filepath.Base(path)
	if root != "" {
		if rel, relErr := filepath.Rel(root, path); relErr == nil {
			filename = filepath.ToSlash(rel)
		}
	}
	documentID := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	pieces := ix.splitter.Split(string(data))
	if len(pieces) == 0 {
		return 0, nil
	}

	chunks := make([]knowledge.Chunk, len(pieces))
	for i, content := range pieces {
		chunks[i] = knowledge.Chunk{
			DocumentID: documentID,
			ChunkID:    fmt.Sprintf("%s_chunk_%d", documentID, i),
			Filename:   filename,
			Content:    content,
		}
	}

	if err := ix.store.AddBatch(ctx, chunks); err != nil {
		return 0, fmt.Errorf("storing chunks for %s: %w", path, err)
	}

	ix.logger.Info("indexed file", "filename", filename, "chunks", len(chunks))
	return len(chunks), nil
}

// AddDirectory indexes every supported file under dir recursively.
// Hidden directories are skipped. Individual file failures are counted
// and logged but do not abort the walk.
func (ix *Indexer) AddDirectory(ctx context.Context, dir string) (IndexResult, error) {
	start := time.Now()
	var result IndexResult

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		name := d.Name()
		if d.IsDir() {
			if strings.HasPrefix(name, ".") && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || !ix.extensions[strings.ToLower(filepath.Ext(name))] {
			result.FilesSkipped++
			return nil
		}

		added, fileErr := ix.AddFile(ctx, path, dir)
		if fileErr != nil {
			ix.logger.Warn("failed to index file", "path", path, "error", fileErr)
			result.FilesFailed++
			return nil
		}
		result.FilesAdded++
		result.ChunksAdded += added
		return nil
	})

	result.Duration = time.Since(start)
	if err != nil {
		return result, fmt.Errorf("walking %s: %w", dir, err)
	}

	ix.logger.Info("indexing complete",
		"dir", dir,
		"added", result.FilesAdded,
		"skipped", result.FilesSkipped,
		"failed", result.FilesFailed,
		"chunks", result.ChunksAdded,
		"duration", result.Duration)
	return result, nil
}

// Remove deletes all chunks of a document. Returns the number removed.
func (ix *Indexer) Remove(ctx context.Context, documentID string) (int64, error) {
	return ix.store.DeleteDocument(ctx, documentID)
}
