package knowledge

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"

	"github.com/askdocs/askdocs/internal/log"
)

// mockEmbedder implements ai.Embedder for testing.
type mockEmbedder struct {
	delay       time.Duration // simulate processing delay
	embedErr    error
	returnEmpty bool
	embedding   []float32 // embedding returned for every input
	callCount   int
	lastInputs  []string
}

func (m *mockEmbedder) Name() string { return "mock-embedder" }

func (m *mockEmbedder) Register(r api.Registry) {}

func (m *mockEmbedder) Embed(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	m.callCount++
	m.lastInputs = nil
	for _, doc := range req.Input {
		if len(doc.Content) > 0 {
			m.lastInputs = append(m.lastInputs, doc.Content[0].Text)
		}
	}

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.embedErr != nil {
		return nil, m.embedErr
	}

	resp := &ai.EmbedResponse{}
	for range req.Input {
		e := m.embedding
		if e == nil {
			e = []float32{0.1, 0.2, 0.3}
		}
		if m.returnEmpty {
			e = []float32{}
		}
		resp.Embeddings = append(resp.Embeddings, &ai.Embedding{Embedding: e})
	}
	return resp, nil
}

// mockQuerier implements Querier for testing.
type mockQuerier struct {
	upsertErr error
	batchErr  error
	searchErr error

	semanticResults []Result
	hybridResults   []Result

	upsertCalls   int
	batchCalls    int
	batchSizes    []int
	semanticCalls int
	hybridCalls   int

	lastSemantic SemanticSearchParams
	lastHybrid   HybridSearchParams
	deleted      []string
}

func (m *mockQuerier) UpsertChunk(ctx context.Context, arg UpsertChunkParams) error {
	m.upsertCalls++
	return m.upsertErr
}

func (m *mockQuerier) UpsertChunkBatch(ctx context.Context, args []UpsertChunkParams) error {
	m.batchCalls++
	m.batchSizes = append(m.batchSizes, len(args))
	return m.batchErr
}

func (m *mockQuerier) SearchSemantic(ctx context.Context, arg SemanticSearchParams) ([]Result, error) {
	m.semanticCalls++
	m.lastSemantic = arg
	return m.semanticResults, m.searchErr
}

func (m *mockQuerier) SearchHybrid(ctx context.Context, arg HybridSearchParams) ([]Result, error) {
	m.hybridCalls++
	m.lastHybrid = arg
	return m.hybridResults, m.searchErr
}

func (m *mockQuerier) CountChunks(ctx context.Context) (int64, error) { return 42, nil }

func (m *mockQuerier) CountDocuments(ctx context.Context) (int64, error) { return 7, nil }

func (m *mockQuerier) DeleteDocument(ctx context.Context, documentID string) (int64, error) {
	m.deleted = append(m.deleted, documentID)
	return 3, nil
}

func (m *mockQuerier) ListDocuments(ctx context.Context) ([]DocumentInfo, error) {
	return []DocumentInfo{{DocumentID: "readme", Filename: "README.md", Chunks: 3}}, nil
}

func TestStore_Add(t *testing.T) {
	embedder := &mockEmbedder{}
	querier := &mockQuerier{}
	store := New(querier, embedder, log.NewNop())

	err := store.Add(context.Background(), Chunk{
		DocumentID: "readme",
		ChunkID:    "readme_chunk_0",
		Filename:   "README.md",
		Content:    "hello world",
	})
	if err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	if embedder.callCount != 1 {
		t.Errorf("embedder called %d times, want 1", embedder.callCount)
	}
	if querier.upsertCalls != 1 {
		t.Errorf("upsert called %d times, want 1", querier.upsertCalls)
	}
}

func TestStore_Add_StripsNewlines(t *testing.T) {
	embedder := &mockEmbedder{}
	store := New(&mockQuerier{}, embedder, log.NewNop())

	err := store.Add(context.Background(), Chunk{
		DocumentID: "doc",
		ChunkID:    "doc_chunk_0",
		Content:    "line one\nline two",
	})
	if err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	if len(embedder.lastInputs) != 1 {
		t.Fatalf("expected 1 input, got %d", len(embedder.lastInputs))
	}
	if strings.Contains(embedder.lastInputs[0], "\n") {
		t.Errorf("embedder input should not contain newlines: %q", embedder.lastInputs[0])
	}
}

func TestStore_Add_EmbedError(t *testing.T) {
	embedder := &mockEmbedder{embedErr: errors.New("embed failed")}
	querier := &mockQuerier{}
	store := New(querier, embedder, log.NewNop())

	err := store.Add(context.Background(), Chunk{DocumentID: "d", ChunkID: "c", Content: "x"})
	if err == nil {
		t.Fatal("expected error from failing embedder")
	}
	if querier.upsertCalls != 0 {
		t.Error("upsert should not be called when embedding fails")
	}
}

func TestStore_Add_EmptyEmbedding(t *testing.T) {
	embedder := &mockEmbedder{returnEmpty: true}
	store := New(&mockQuerier{}, embedder, log.NewNop())

	err := store.Add(context.Background(), Chunk{DocumentID: "d", ChunkID: "c", Content: "x"})
	if err == nil {
		t.Fatal("expected error for empty embedding")
	}
}

func TestStore_AddBatch(t *testing.T) {
	embedder := &mockEmbedder{}
	querier := &mockQuerier{}
	store := New(querier, embedder, log.NewNop())

	chunks := []Chunk{
		{DocumentID: "doc", ChunkID: "doc_chunk_0", Content: "first"},
		{DocumentID: "doc", ChunkID: "doc_chunk_1", Content: "second"},
		{DocumentID: "doc", ChunkID: "doc_chunk_2", Content: "third"},
	}

	if err := store.AddBatch(context.Background(), chunks); err != nil {
		t.Fatalf("AddBatch() failed: %v", err)
	}

	if embedder.callCount != 1 {
		t.Errorf("embedder called %d times, want 1 batched call", embedder.callCount)
	}
	if len(embedder.lastInputs) != 3 {
		t.Errorf("embedder received %d inputs, want 3", len(embedder.lastInputs))
	}
	if querier.batchCalls != 1 || querier.batchSizes[0] != 3 {
		t.Errorf("batch upsert calls = %d sizes = %v, want one call of 3", querier.batchCalls, querier.batchSizes)
	}
}

func TestStore_AddBatch_Empty(t *testing.T) {
	embedder := &mockEmbedder{}
	querier := &mockQuerier{}
	store := New(querier, embedder, log.NewNop())

	if err := store.AddBatch(context.Background(), nil); err != nil {
		t.Fatalf("AddBatch(nil) failed: %v", err)
	}
	if embedder.callCount != 0 || querier.batchCalls != 0 {
		t.Error("empty batch should not touch embedder or database")
	}
}

func TestStore_Search_Semantic(t *testing.T) {
	querier := &mockQuerier{
		semanticResults: []Result{
			{Chunk: Chunk{DocumentID: "doc", ChunkID: "doc_chunk_0", Content: "match"}, Score: 0.93},
		},
	}
	store := New(querier, &mockEmbedder{}, log.NewNop())

	results, err := store.Search(context.Background(), "query", WithTopK(10))
	if err != nil {
		t.Fatalf("Search() failed: %v", err)
	}

	if querier.semanticCalls != 1 || querier.hybridCalls != 0 {
		t.Errorf("expected 1 semantic search, got semantic=%d hybrid=%d", querier.semanticCalls, querier.hybridCalls)
	}
	if querier.lastSemantic.Limit != 10 {
		t.Errorf("limit = %d, want 10", querier.lastSemantic.Limit)
	}
	if len(results) != 1 || results[0].Score != 0.93 {
		t.Errorf("unexpected results: %+v", results)
	}
}

func TestStore_Search_Hybrid(t *testing.T) {
	querier := &mockQuerier{
		hybridResults: []Result{
			{Chunk: Chunk{DocumentID: "doc", ChunkID: "doc_chunk_1"}, Score: 0.8},
		},
	}
	store := New(querier, &mockEmbedder{}, log.NewNop())

	results, err := store.Search(context.Background(), "error handling",
		WithHybrid(true), WithKeywordWeight(0.4), WithTopK(3))
	if err != nil {
		t.Fatalf("Search() failed: %v", err)
	}

	if querier.hybridCalls != 1 {
		t.Fatalf("expected hybrid search, got semantic=%d hybrid=%d", querier.semanticCalls, querier.hybridCalls)
	}
	if querier.lastHybrid.QueryText != "error handling" {
		t.Errorf("query text = %q", querier.lastHybrid.QueryText)
	}
	if querier.lastHybrid.KeywordWeight != 0.4 {
		t.Errorf("keyword weight = %f, want 0.4", querier.lastHybrid.KeywordWeight)
	}
	if len(results) != 1 {
		t.Errorf("unexpected results: %+v", results)
	}
}

func TestStore_Search_EmbedTimeout(t *testing.T) {
	embedder := &mockEmbedder{delay: 50 * time.Millisecond}
	store := New(&mockQuerier{}, embedder, log.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()

	_, err := store.Search(ctx, "query")
	if err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestStore_KeywordWeightClamped(t *testing.T) {
	cfg := buildSearchConfig([]SearchOption{WithKeywordWeight(1.5)})
	if cfg.keywordWeight != 1 {
		t.Errorf("weight = %f, want clamped to 1", cfg.keywordWeight)
	}

	cfg = buildSearchConfig([]SearchOption{WithKeywordWeight(-0.5)})
	if cfg.keywordWeight != 0 {
		t.Errorf("weight = %f, want clamped to 0", cfg.keywordWeight)
	}
}

func TestStore_DeleteDocument(t *testing.T) {
	querier := &mockQuerier{}
	store := New(querier, &mockEmbedder{}, log.NewNop())

	removed, err := store.DeleteDocument(context.Background(), "readme")
	if err != nil {
		t.Fatalf("DeleteDocument() failed: %v", err)
	}
	if removed != 3 {
		t.Errorf("removed = %d, want 3", removed)
	}
	if len(querier.deleted) != 1 || querier.deleted[0] != "readme" {
		t.Errorf("deleted = %v", querier.deleted)
	}
}
