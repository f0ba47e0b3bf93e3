package rag

// Source is one retrieved chunk that grounded an answer.
type Source struct {
	DocumentID string  `json:"document_id"`
	ChunkID    string  `json:"chunk_id"`
	Filename   string  `json:"filename"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`

	// RelevanceScore and Reasoning are set when reranking ran.
	RelevanceScore float64 `json:"relevance_score,omitempty"`
	Reasoning      string  `json:"reasoning,omitempty"`
}

// Answer is the result of a retrieval-augmented query.
type Answer struct {
	Query    string   `json:"query"`
	Response string   `json:"response"`
	Sources  []Source `json:"sources"`
}
