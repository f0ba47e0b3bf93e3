// Package knowledge manages document chunks with vector search on
// PostgreSQL + pgvector. Chunks are embedded on insert; search supports
// both pure semantic similarity and a hybrid mode that blends cosine
// similarity with full-text keyword rank.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/pgvector/pgvector-go"
)

// searchTimeout bounds embedding plus query latency per search.
const searchTimeout = 10 * time.Second

// Querier defines the database operations the Store needs. The
// interface lives with its consumer, so tests can substitute a mock
// without a running database.
type Querier interface {
	UpsertChunk(ctx context.Context, arg UpsertChunkParams) error
	UpsertChunkBatch(ctx context.Context, args []UpsertChunkParams) error
	SearchSemantic(ctx context.Context, arg SemanticSearchParams) ([]Result, error)
	SearchHybrid(ctx context.Context, arg HybridSearchParams) ([]Result, error)
	CountChunks(ctx context.Context) (int64, error)
	CountDocuments(ctx context.Context) (int64, error)
	DeleteDocument(ctx context.Context, documentID string) (int64, error)
	ListDocuments(ctx context.Context) ([]DocumentInfo, error)
}

// Store manages chunk storage and retrieval. It generates embeddings
// via the configured embedder and delegates persistence to the Querier.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	queries  Querier
	embedder ai.Embedder
	logger   *slog.Logger
}

// New creates a new Store. A nil logger falls back to slog.Default().
func New(querier Querier, embedder ai.Embedder, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		queries:  querier,
		embedder: embedder,
		logger:   logger,
	}
}

// Add embeds and stores a single chunk. Existing chunks with the same
// (document_id, chunk_id) pair are replaced.
func (s *Store) Add(ctx context.Context, chunk Chunk) error {
	embedding, err := s.embed(ctx, []string{chunk.Content})
	if err != nil {
		return fmt.Errorf("embedding chunk %s/%s: %w", chunk.DocumentID, chunk.ChunkID, err)
	}

	err = s.queries.UpsertChunk(ctx, UpsertChunkParams{
		DocumentID: chunk.DocumentID,
		ChunkID:    chunk.ChunkID,
		Filename:   chunk.Filename,
		Content:    chunk.Content,
		Embedding:  embedding[0],
	})
	if err != nil {
		return err
	}

	s.logger.Debug("added chunk",
		"document_id", chunk.DocumentID,
		"chunk_id", chunk.ChunkID,
		"content_length", len(chunk.Content))
	return nil
}

// AddBatch embeds and stores chunks together. The embedder receives all
// chunk texts in one request and the database writes happen in a single
// transaction.
func (s *Store) AddBatch(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	embeddings, err := s.embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding %d chunks: %w", len(chunks), err)
	}

	args := make([]UpsertChunkParams, len(chunks))
	for i, c := range chunks {
		args[i] = UpsertChunkParams{
			DocumentID: c.DocumentID,
			ChunkID:    c.ChunkID,
			Filename:   c.Filename,
			Content:    c.Content,
			Embedding:  embeddings[i],
		}
	}

	if err := s.queries.UpsertChunkBatch(ctx, args); err != nil {
		return err
	}

	s.logger.Debug("added chunk batch", "chunks", len(chunks))
	return nil
}

// Search returns the chunks most relevant to the query.
//
// Example:
//
//	results, err := store.Search(ctx, "error handling",
//	    knowledge.WithTopK(10),
//	    knowledge.WithHybrid(true))
func (s *Store) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	cfg := buildSearchConfig(opts)

	queryCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	embedding, err := s.embed(queryCtx, []string{query})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("embedding generation timeout: %w", err)
		}
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	var results []Result
	if cfg.hybrid {
		results, err = s.queries.SearchHybrid(queryCtx, HybridSearchParams{
			QueryEmbedding: embedding[0],
			QueryText:      query,
			KeywordWeight:  cfg.keywordWeight,
			Limit:          cfg.topK,
		})
	} else {
		results, err = s.queries.SearchSemantic(queryCtx, SemanticSearchParams{
			QueryEmbedding: embedding[0],
			Limit:          cfg.topK,
		})
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("search query timeout: %w", err)
		}
		return nil, err
	}
	return results, nil
}

// CountChunks returns the total number of stored chunks.
func (s *Store) CountChunks(ctx context.Context) (int64, error) {
	return s.queries.CountChunks(ctx)
}

// CountDocuments returns the number of distinct indexed documents.
func (s *Store) CountDocuments(ctx context.Context) (int64, error) {
	return s.queries.CountDocuments(ctx)
}

// DeleteDocument removes every chunk of the given document. Returns the
// number of chunks removed.
func (s *Store) DeleteDocument(ctx context.Context, documentID string) (int64, error) {
	removed, err := s.queries.DeleteDocument(ctx, documentID)
	if err != nil {
		return 0, err
	}
	s.logger.Debug("deleted document", "document_id", documentID, "chunks", removed)
	return removed, nil
}

// ListDocuments returns a summary of every indexed document.
func (s *Store) ListDocuments(ctx context.Context) ([]DocumentInfo, error) {
	return s.queries.ListDocuments(ctx)
}

// embed generates embeddings for the given texts. Newlines are replaced
// with spaces before embedding; they degrade embedding quality for the
// OpenAI embedding models.
func (s *Store) embed(ctx context.Context, texts []string) ([]pgvector.Vector, error) {
	input := make([]*ai.Document, len(texts))
	for i, t := range texts {
		clean := strings.ReplaceAll(t, "\n", " ")
		input[i] = &ai.Document{Content: []*ai.Part{ai.NewTextPart(clean)}}
	}

	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{Input: input})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}

	vectors := make([]pgvector.Vector, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		if len(e.Embedding) == 0 {
			return nil, fmt.Errorf("empty embedding at index %d", i)
		}
		vectors[i] = pgvector.NewVector(e.Embedding)
	}
	return vectors, nil
}
