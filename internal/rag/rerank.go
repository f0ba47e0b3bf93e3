package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// rerankConcurrency bounds parallel scoring calls per query.
const rerankConcurrency = 4

const rerankSystemPrompt = "You are a relevance scoring expert. Respond with a JSON object containing " +
	"'relevance_score' (float between 0.0 and 1.0) and 'reasoning' (string)."

const rerankPromptTemplate = `Given the user query, evaluate the following document's relevance.
Provide a score from 0.0 (not relevant) to 1.0 (highly relevant) and a brief reasoning.

Query: %q

Document: %q`

// relevanceScore is the JSON shape the scoring model must return.
type relevanceScore struct {
	RelevanceScore float64 `json:"relevance_score"`
	Reasoning      string  `json:"reasoning"`
}

// rerank scores sources against the query with the generator and sorts
// them by relevance, highest first. Scoring failures degrade to a score
// of zero rather than failing the whole query. The input slice is
// modified in place.
func (e *Engine) rerank(ctx context.Context, query string, sources []Source) []Source {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rerankConcurrency)

	for i := range sources {
		g.Go(func() error {
			score, reasoning := e.scoreSource(gctx, query, sources[i].Content)
			sources[i].RelevanceScore = score
			sources[i].Reasoning = reasoning
			return nil
		})
	}
	// Workers never return errors; scoring failures become zero scores.
	_ = g.Wait()

	sort.SliceStable(sources, func(i, j int) bool {
		return sources[i].RelevanceScore > sources[j].RelevanceScore
	})
	return sources
}

// scoreSource asks the generator to rate one document's relevance.
// Returns 0 with empty reasoning on any failure.
func (e *Engine) scoreSource(ctx context.Context, query, content string) (float64, string) {
	prompt := fmt.Sprintf(rerankPromptTemplate, query, content)

	text, err := e.generator.Generate(ctx, rerankSystemPrompt, prompt)
	if err != nil {
		e.logger.Warn("rerank scoring failed", "error", err)
		return 0, ""
	}

	parsed, err := parseRelevanceScore(text)
	if err != nil {
		e.logger.Debug("unparseable rerank response", "error", err)
		return 0, ""
	}
	return clampScore(parsed.RelevanceScore), parsed.Reasoning
}

// parseRelevanceScore extracts the JSON object from a model response.
// Models sometimes wrap JSON in prose or code fences, so it parses the
// substring between the first '{' and the last '}'.
func parseRelevanceScore(text string) (relevanceScore, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return relevanceScore{}, fmt.Errorf("no JSON object in response")
	}

	var score relevanceScore
	if err := json.Unmarshal([]byte(text[start:end+1]), &score); err != nil {
		return relevanceScore{}, fmt.Errorf("parsing relevance JSON: %w", err)
	}
	return score, nil
}

func clampScore(s float64) float64 {
	return min(max(s, 0), 1)
}
