package knowledge

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// UpsertChunkParams carries one chunk insert or update.
type UpsertChunkParams struct {
	DocumentID string
	ChunkID    string
	Filename   string
	Content    string
	Embedding  pgvector.Vector
}

// SemanticSearchParams configures a pure vector similarity search.
type SemanticSearchParams struct {
	QueryEmbedding pgvector.Vector
	Limit          int
}

// HybridSearchParams configures a blended vector plus keyword search.
type HybridSearchParams struct {
	QueryEmbedding pgvector.Vector
	QueryText      string
	KeywordWeight  float64
	Limit          int
}

// PostgresQuerier executes knowledge base queries against PostgreSQL
// with the pgvector extension.
type PostgresQuerier struct {
	pool *pgxpool.Pool
}

// NewPostgresQuerier creates a querier backed by the given pool.
func NewPostgresQuerier(pool *pgxpool.Pool) *PostgresQuerier {
	return &PostgresQuerier{pool: pool}
}

const upsertChunkSQL = `
INSERT INTO document_chunks (document_id, chunk_id, filename, content, embedding)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (document_id, chunk_id)
DO UPDATE SET filename = EXCLUDED.filename,
              content = EXCLUDED.content,
              embedding = EXCLUDED.embedding,
              updated_at = now()`

// UpsertChunk inserts a chunk, replacing any existing chunk with the
// same (document_id, chunk_id) pair.
func (q *PostgresQuerier) UpsertChunk(ctx context.Context, arg UpsertChunkParams) error {
	_, err := q.pool.Exec(ctx, upsertChunkSQL,
		arg.DocumentID, arg.ChunkID, arg.Filename, arg.Content, arg.Embedding)
	if err != nil {
		return fmt.Errorf("upsert chunk %s/%s: %w", arg.DocumentID, arg.ChunkID, err)
	}
	return nil
}

// UpsertChunkBatch inserts chunks in a single transaction so a document
// is never half indexed.
func (q *PostgresQuerier) UpsertChunkBatch(ctx context.Context, args []UpsertChunkParams) error {
	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin batch upsert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, arg := range args {
		batch.Queue(upsertChunkSQL,
			arg.DocumentID, arg.ChunkID, arg.Filename, arg.Content, arg.Embedding)
	}

	br := tx.SendBatch(ctx, batch)
	for i := range args {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("batch upsert chunk %s/%s: %w", args[i].DocumentID, args[i].ChunkID, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit batch upsert: %w", err)
	}
	return nil
}

// SearchSemantic returns the chunks nearest to the query embedding by
// cosine distance. Score is cosine similarity in [0, 1] for normalized
// embeddings.
func (q *PostgresQuerier) SearchSemantic(ctx context.Context, arg SemanticSearchParams) ([]Result, error) {
	rows, err := q.pool.Query(ctx, `
		SELECT document_id, chunk_id, filename, content, created_at,
		       1 - (embedding <=> $1) AS score
		FROM document_chunks
		ORDER BY embedding <=> $1
		LIMIT $2`,
		arg.QueryEmbedding, arg.Limit)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}
	defer rows.Close()

	return scanResults(rows)
}

// SearchHybrid blends cosine similarity with full-text keyword rank.
// The keyword weight w yields score = (1-w)*similarity + w*ts_rank.
func (q *PostgresQuerier) SearchHybrid(ctx context.Context, arg HybridSearchParams) ([]Result, error) {
	rows, err := q.pool.Query(ctx, `
		SELECT document_id, chunk_id, filename, content, created_at,
		       (1 - $3::float8) * (1 - (embedding <=> $1))
		       + $3::float8 * ts_rank(ts, plainto_tsquery('english', $2)) AS score
		FROM document_chunks
		ORDER BY score DESC
		LIMIT $4`,
		arg.QueryEmbedding, arg.QueryText, arg.KeywordWeight, arg.Limit)
	if err != nil {
		return nil, fmt.Errorf("hybrid search: %w", err)
	}
	defer rows.Close()

	return scanResults(rows)
}

// CountChunks returns the total number of stored chunks.
func (q *PostgresQuerier) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := q.pool.QueryRow(ctx, `SELECT count(*) FROM document_chunks`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return count, nil
}

// CountDocuments returns the number of distinct indexed documents.
func (q *PostgresQuerier) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := q.pool.QueryRow(ctx, `SELECT count(DISTINCT document_id) FROM document_chunks`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return count, nil
}

// DeleteDocument removes all chunks of a document. Returns the number
// of chunks removed.
func (q *PostgresQuerier) DeleteDocument(ctx context.Context, documentID string) (int64, error) {
	tag, err := q.pool.Exec(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return 0, fmt.Errorf("delete document %q: %w", documentID, err)
	}
	return tag.RowsAffected(), nil
}

// ListDocuments returns a summary of every indexed document, most
// recently indexed first.
func (q *PostgresQuerier) ListDocuments(ctx context.Context) ([]DocumentInfo, error) {
	rows, err := q.pool.Query(ctx, `
		SELECT document_id, min(filename), count(*), max(created_at)
		FROM document_chunks
		GROUP BY document_id
		ORDER BY max(created_at) DESC`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []DocumentInfo
	for rows.Next() {
		var d DocumentInfo
		if err := rows.Scan(&d.DocumentID, &d.Filename, &d.Chunks, &d.IndexedAt); err != nil {
			return nil, fmt.Errorf("scan document row: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

// scanResults converts search rows into Results.
func scanResults(rows pgx.Rows) ([]Result, error) {
	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.Chunk.DocumentID, &r.Chunk.ChunkID, &r.Chunk.Filename,
			&r.Chunk.Content, &r.Chunk.CreatedAt, &r.Score); err != nil {
			return nil, fmt.Errorf("scan result row: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return results, nil
}
