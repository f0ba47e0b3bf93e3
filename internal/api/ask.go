package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/askdocs/askdocs/internal/config"
)

// maxAskBodySize limits /ask request bodies to 1MB.
const maxAskBodySize = 1 << 20

// askRequest is the request body for POST /ask.
// TopK and UseReranking are pointers to distinguish "absent" from zero values.
type askRequest struct {
	Query        string `json:"query"`
	TopK         *int   `json:"top_k"`
	UseReranking *bool  `json:"use_reranking"`
}

// askHandler serves retrieval-augmented queries.
type askHandler struct {
	engine Engine
	logger *slog.Logger
}

// ask handles POST /ask. Runs the full pipeline: hybrid search, optional
// reranking, answer generation.
func (h *askHandler) ask(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAskBodySize)

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		WriteError(w, http.StatusBadRequest, "empty_query", "query cannot be empty", h.logger)
		return
	}

	topK := config.DefaultTopK
	if req.TopK != nil {
		topK = config.NormalizeTopK(*req.TopK)
	}
	useReranking := true
	if req.UseReranking != nil {
		useReranking = *req.UseReranking
	}

	answer, err := h.engine.Answer(r.Context(), req.Query, topK, useReranking)
	if err != nil {
		h.logger.Error("processing query", "error", err, "query_len", len(req.Query))
		WriteError(w, http.StatusInternalServerError, "ask_failed", "internal server error", h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, answer, h.logger)
}
