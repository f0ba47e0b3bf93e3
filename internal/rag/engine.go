// Package rag implements retrieval-augmented question answering: it
// retrieves relevant chunks from the knowledge store, optionally
// reranks them with the completion model, and generates a grounded
// answer citing its sources.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/askdocs/askdocs/internal/knowledge"
)

// FallbackResponse is returned when retrieval yields nothing. No
// completion call is made in that case.
const FallbackResponse = "I couldn't find any relevant information to answer your question."

// rerankMultiplier widens the initial retrieval when reranking so the
// reranker has more candidates to work with.
const rerankMultiplier = 3

const answerSystemPrompt = "You are a helpful Q&A assistant."

const answerPromptTemplate = `You are an expert Q&A assistant. Use the following context to answer the user's question.
If the context does not contain the answer, state that you could not find the information.

Context:
---
%s---

Question: %q`

// Searcher retrieves chunks for a query. knowledge.Store satisfies this.
type Searcher interface {
	Search(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Result, error)
}

// Config holds the Engine's retrieval defaults.
type Config struct {
	TopK          int     // default sources per answer
	UseReranking  bool    // default rerank behavior
	Hybrid        bool    // blend keyword rank into retrieval
	KeywordWeight float64 // keyword contribution for hybrid search
}

// Engine answers questions over the indexed documents.
//
// Engine is safe for concurrent use by multiple goroutines.
type Engine struct {
	searcher  Searcher
	generator Generator
	cfg       Config
	logger    *slog.Logger
}

// NewEngine creates an Engine. A nil logger falls back to slog.Default().
func NewEngine(searcher Searcher, generator Generator, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	return &Engine{
		searcher:  searcher,
		generator: generator,
		cfg:       cfg,
		logger:    logger,
	}
}

// Answer runs the retrieval pipeline for a query. topK <= 0 uses the
// configured default; useReranking widens retrieval threefold and
// reorders candidates by model-scored relevance before answering.
func (e *Engine) Answer(ctx context.Context, query string, topK int, useReranking bool) (Answer, error) {
	if strings.TrimSpace(query) == "" {
		return Answer{}, fmt.Errorf("query must not be empty")
	}
	if topK <= 0 {
		topK = e.cfg.TopK
	}

	retrievalLimit := topK
	if useReranking {
		retrievalLimit = topK * rerankMultiplier
	}

	results, err := e.searcher.Search(ctx, query,
		knowledge.WithTopK(retrievalLimit),
		knowledge.WithHybrid(e.cfg.Hybrid),
		knowledge.WithKeywordWeight(e.cfg.KeywordWeight),
	)
	if err != nil {
		return Answer{}, fmt.Errorf("retrieving context: %w", err)
	}

	sources := resultsToSources(results)

	if useReranking && len(sources) > 0 {
		e.logger.Info("reranking retrieved chunks", "count", len(sources))
		sources = e.rerank(ctx, query, sources)
	}
	if len(sources) > topK {
		sources = sources[:topK]
	}

	if len(sources) == 0 {
		return Answer{
			Query:    query,
			Response: FallbackResponse,
			Sources:  []Source{},
		}, nil
	}

	e.logger.Info("generating answer", "sources", len(sources))
	response, err := e.generator.Generate(ctx, answerSystemPrompt, buildAnswerPrompt(query, sources))
	if err != nil {
		return Answer{}, fmt.Errorf("generating answer: %w", err)
	}

	return Answer{
		Query:    query,
		Response: response,
		Sources:  sources,
	}, nil
}

// Title generation constants.
const (
	titleTimeout       = 5 * time.Second
	titleMaxLength     = 50
	titleInputMaxRunes = 500
)

const titlePrompt = `Generate a concise title (maximum 5 words) for a conversation that starts with this question.
Return ONLY the title text, no quotes, no explanations, no punctuation at the end.

Question: %s

Title:`

// GenerateTitle produces a short conversation title from the first
// query. Best-effort: on any failure it falls back to truncating the
// query itself.
func (e *Engine) GenerateTitle(ctx context.Context, firstQuery string) string {
	ctx, cancel := context.WithTimeout(ctx, titleTimeout)
	defer cancel()

	input := firstQuery
	if runes := []rune(input); len(runes) > titleInputMaxRunes {
		input = string(runes[:titleInputMaxRunes]) + "..."
	}

	text, err := e.generator.Generate(ctx, "", fmt.Sprintf(titlePrompt, input))
	if err != nil {
		e.logger.Debug("title generation failed", "error", err)
		return truncateTitle(firstQuery)
	}

	title := strings.TrimSpace(text)
	if title == "" {
		return truncateTitle(firstQuery)
	}
	return truncateTitle(title)
}

// truncateTitle limits a title to titleMaxLength runes.
func truncateTitle(s string) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= titleMaxLength {
		return s
	}
	return string(runes[:titleMaxLength-3]) + "..."
}

// buildAnswerPrompt assembles the context blocks and question.
func buildAnswerPrompt(query string, sources []Source) string {
	var b strings.Builder
	for _, src := range sources {
		fmt.Fprintf(&b, "Source: %s - Chunk %s\n", src.Filename, src.ChunkID)
		fmt.Fprintf(&b, "Content: %s\n\n", src.Content)
	}
	return fmt.Sprintf(answerPromptTemplate, b.String(), query)
}

// resultsToSources converts search results into answer sources.
func resultsToSources(results []knowledge.Result) []Source {
	sources := make([]Source, 0, len(results))
	for _, r := range results {
		sources = append(sources, Source{
			DocumentID: r.Chunk.DocumentID,
			ChunkID:    r.Chunk.ChunkID,
			Filename:   r.Chunk.Filename,
			Content:    r.Chunk.Content,
			Score:      r.Score,
		})
	}
	return sources
}
