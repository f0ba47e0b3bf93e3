package knowledge

import "time"

// Chunk is a single piece of an indexed document.
type Chunk struct {
	DocumentID string    // Document identifier (file stem)
	ChunkID    string    // Chunk identifier within the document
	Filename   string    // Relative path of the source file
	Content    string    // Chunk text content
	CreatedAt  time.Time // Set by the database on insert
}

// Result is a single search result with its relevance score.
type Result struct {
	Chunk Chunk
	// Score is cosine similarity for semantic search, or the weighted
	// blend of similarity and keyword rank for hybrid search.
	Score float64
}

// DocumentInfo summarizes one indexed document.
type DocumentInfo struct {
	DocumentID string
	Filename   string
	Chunks     int
	IndexedAt  time.Time
}

// SearchOption configures search behavior using the functional options
// pattern.
type SearchOption func(*searchConfig)

// searchConfig holds internal search configuration.
type searchConfig struct {
	topK          int
	hybrid        bool
	keywordWeight float64
}

// WithTopK sets the maximum number of results to return.
// Default is 5 if not specified.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		if k > 0 {
			c.topK = k
		}
	}
}

// WithHybrid enables hybrid search, blending vector similarity with
// full-text keyword rank.
func WithHybrid(enabled bool) SearchOption {
	return func(c *searchConfig) {
		c.hybrid = enabled
	}
}

// WithKeywordWeight sets the keyword contribution for hybrid search.
// Values are clamped to [0, 1]; 0 is pure vector similarity.
func WithKeywordWeight(w float64) SearchOption {
	return func(c *searchConfig) {
		c.keywordWeight = min(max(w, 0), 1)
	}
}

// buildSearchConfig applies search options and returns the final configuration.
func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{
		topK:          5,
		keywordWeight: 0.3,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
