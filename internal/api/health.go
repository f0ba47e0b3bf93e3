package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const healthProbeTimeout = 2 * time.Second

// healthHandler serves the health, stats, and root info endpoints.
type healthHandler struct {
	knowledge KnowledgeStore
	pool      *pgxpool.Pool
	logger    *slog.Logger
}

// healthResponse is the JSON body for GET /health.
type healthResponse struct {
	Status          string `json:"status"`
	VectorService   bool   `json:"vector_service"`
	DatabaseService bool   `json:"database_service"`
}

// health handles GET /health. Probes the database pool and the vector
// store; returns "healthy" only when both respond.
func (h *healthHandler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
	defer cancel()

	database := false
	if h.pool != nil {
		if err := h.pool.Ping(ctx); err != nil {
			h.logger.Warn("database health probe failed", "error", err)
		} else {
			database = true
		}
	}

	vector := false
	if h.knowledge != nil {
		if _, err := h.knowledge.CountChunks(ctx); err != nil {
			h.logger.Warn("vector store health probe failed", "error", err)
		} else {
			vector = true
		}
	}

	status := "healthy"
	if !database || !vector {
		status = "degraded"
	}

	WriteJSON(w, http.StatusOK, healthResponse{
		Status:          status,
		VectorService:   vector,
		DatabaseService: database,
	}, h.logger)
}

// stats handles GET /stats. Reports corpus size.
func (h *healthHandler) stats(w http.ResponseWriter, r *http.Request) {
	if h.knowledge == nil {
		WriteError(w, http.StatusServiceUnavailable, "unavailable", "knowledge store not configured", h.logger)
		return
	}

	chunks, err := h.knowledge.CountChunks(r.Context())
	if err != nil {
		h.logger.Error("counting chunks", "error", err)
		WriteError(w, http.StatusInternalServerError, "stats_failed", "failed to collect stats", h.logger)
		return
	}

	documents, err := h.knowledge.CountDocuments(r.Context())
	if err != nil {
		h.logger.Error("counting documents", "error", err)
		WriteError(w, http.StatusInternalServerError, "stats_failed", "failed to collect stats", h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]int64{
		"total_chunks":    chunks,
		"total_documents": documents,
	}, h.logger)
}

// root handles GET /. Returns API information and the endpoint map.
func (h *healthHandler) root(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Document Q&A API with hybrid search and reranking",
		"endpoints": map[string]string{
			"ask":           "/ask",
			"health":        "/health",
			"stats":         "/stats",
			"conversations": "/conversations",
		},
	}, h.logger)
}
