//go:build integration
// +build integration

package knowledge_test

import (
	"context"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"

	"github.com/askdocs/askdocs/internal/knowledge"
	"github.com/askdocs/askdocs/internal/log"
	"github.com/askdocs/askdocs/internal/testutil"
)

const embeddingDims = 3072

// axisEmbedder maps each registered text to its own axis of the
// embedding space so that similarity ordering is fully predictable:
// identical texts score 1.0 against each other and 0.0 against
// everything else.
type axisEmbedder struct {
	axes map[string]int
}

func newAxisEmbedder(texts ...string) *axisEmbedder {
	axes := make(map[string]int, len(texts))
	for i, text := range texts {
		axes[text] = i
	}
	return &axisEmbedder{axes: axes}
}

func (e *axisEmbedder) Name() string { return "axis-embedder" }

func (e *axisEmbedder) Register(r api.Registry) {}

func (e *axisEmbedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	resp := &ai.EmbedResponse{}
	for _, doc := range req.Input {
		vec := make([]float32, embeddingDims)
		if len(doc.Content) > 0 {
			if axis, ok := e.axes[doc.Content[0].Text]; ok {
				vec[axis] = 1
			} else {
				vec[embeddingDims-1] = 1
			}
		}
		resp.Embeddings = append(resp.Embeddings, &ai.Embedding{Embedding: vec})
	}
	return resp, nil
}

// Requires a running Docker daemon: go test -tags integration ./internal/knowledge/
func TestStore_Postgres_SearchAndCounts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	const (
		pgText     = "PostgreSQL stores relational data"
		dockerText = "Docker packages applications into containers"
	)
	embedder := newAxisEmbedder(pgText, dockerText)

	store := knowledge.New(knowledge.NewPostgresQuerier(db.Pool), embedder, log.NewNop())

	chunks := []knowledge.Chunk{
		{DocumentID: "postgres", ChunkID: "postgres_chunk_0", Filename: "postgres.md", Content: pgText},
		{DocumentID: "docker", ChunkID: "docker_chunk_0", Filename: "docker.md", Content: dockerText},
	}
	if err := store.AddBatch(ctx, chunks); err != nil {
		t.Fatalf("AddBatch: %v", err)
	}

	total, err := store.CountChunks(ctx)
	if err != nil {
		t.Fatalf("CountChunks: %v", err)
	}
	if total != 2 {
		t.Errorf("CountChunks = %d, want 2", total)
	}

	docs, err := store.CountDocuments(ctx)
	if err != nil {
		t.Fatalf("CountDocuments: %v", err)
	}
	if docs != 2 {
		t.Errorf("CountDocuments = %d, want 2", docs)
	}

	// Semantic search: the query embeds onto the postgres axis.
	results, err := store.Search(ctx, pgText, knowledge.WithTopK(1))
	if err != nil {
		t.Fatalf("Search semantic: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	if results[0].Chunk.DocumentID != "postgres" {
		t.Errorf("top result = %s, want postgres", results[0].Chunk.DocumentID)
	}
	if results[0].Score < 0.99 {
		t.Errorf("score = %f, want ~1.0", results[0].Score)
	}

	// Hybrid search blends in ts_rank keyword matching.
	results, err = store.Search(ctx, pgText,
		knowledge.WithTopK(2), knowledge.WithHybrid(true), knowledge.WithKeywordWeight(0.3))
	if err != nil {
		t.Fatalf("Search hybrid: %v", err)
	}
	if len(results) == 0 || results[0].Chunk.DocumentID != "postgres" {
		t.Fatalf("hybrid top result = %+v, want postgres first", results)
	}

	// Re-adding the same chunk replaces, not duplicates.
	if err := store.Add(ctx, chunks[0]); err != nil {
		t.Fatalf("Add upsert: %v", err)
	}
	total, err = store.CountChunks(ctx)
	if err != nil {
		t.Fatalf("CountChunks after upsert: %v", err)
	}
	if total != 2 {
		t.Errorf("CountChunks after upsert = %d, want 2", total)
	}

	// The replace bumps updated_at past the original insert time.
	var bumped bool
	err = db.Pool.QueryRow(ctx,
		`SELECT updated_at > created_at FROM document_chunks WHERE chunk_id = 'postgres_chunk_0'`,
	).Scan(&bumped)
	if err != nil {
		t.Fatalf("querying updated_at: %v", err)
	}
	if !bumped {
		t.Error("upsert did not advance updated_at")
	}

	removed, err := store.DeleteDocument(ctx, "docker")
	if err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	infos, err := store.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(infos) != 1 || infos[0].DocumentID != "postgres" {
		t.Errorf("ListDocuments = %+v, want only postgres", infos)
	}
}
