package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/askdocs/askdocs/internal/conversation"
	"github.com/askdocs/askdocs/internal/rag"
)

// Engine answers questions over the indexed corpus.
type Engine interface {
	Answer(ctx context.Context, query string, topK int, useReranking bool) (rag.Answer, error)
	GenerateTitle(ctx context.Context, firstQuery string) string
}

// ConversationStore persists conversations and their messages.
type ConversationStore interface {
	Create(ctx context.Context, title string) (conversation.Conversation, error)
	Get(ctx context.Context, id uuid.UUID) (conversation.Conversation, error)
	List(ctx context.Context, limit, offset int32) ([]conversation.Conversation, error)
	Rename(ctx context.Context, id uuid.UUID, title string) error
	Delete(ctx context.Context, id uuid.UUID) error
	AddMessage(ctx context.Context, conversationID uuid.UUID, role, content string, sources json.RawMessage) (conversation.Message, error)
	GetMessages(ctx context.Context, conversationID uuid.UUID) ([]conversation.Message, error)
}

// KnowledgeStore exposes corpus statistics for health and stats endpoints.
type KnowledgeStore interface {
	CountChunks(ctx context.Context) (int64, error)
	CountDocuments(ctx context.Context) (int64, error)
}

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger        *slog.Logger
	Engine        Engine            // Required
	Conversations ConversationStore // Required
	Knowledge     KnowledgeStore    // Optional: nil degrades /health and disables /stats detail
	Pool          *pgxpool.Pool     // Optional: nil skips database ping in /health
	CORSOrigins   []string          // Allowed origins for CORS
	TrustProxy    bool              // Trust X-Real-IP/X-Forwarded-For headers
	RateBurst     int               // Rate limiter burst size per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Engine == nil {
		return nil, errors.New("engine is required")
	}
	if cfg.Conversations == nil {
		return nil, errors.New("conversation store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ah := &askHandler{engine: cfg.Engine, logger: logger}
	ch := &conversationHandler{
		store:  cfg.Conversations,
		engine: cfg.Engine,
		logger: logger,
	}
	hh := &healthHandler{
		knowledge: cfg.Knowledge,
		pool:      cfg.Pool,
		logger:    logger,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", hh.root)
	mux.HandleFunc("GET /stats", hh.stats)

	mux.HandleFunc("POST /ask", ah.ask)

	mux.HandleFunc("POST /conversations", ch.create)
	mux.HandleFunc("GET /conversations", ch.list)
	mux.HandleFunc("GET /conversations/{id}", ch.get)
	mux.HandleFunc("PATCH /conversations/{id}", ch.rename)
	mux.HandleFunc("DELETE /conversations/{id}", ch.delete)
	mux.HandleFunc("GET /conversations/{id}/messages", ch.getMessages)
	mux.HandleFunc("POST /conversations/{id}/messages", ch.addMessage)

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Middleware stack (outermost first):
	//   SecurityHeaders → Recovery → Logging → CORS → RateLimit → Routes
	// CORS must be before RateLimit so preflight OPTIONS gets CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = recoveryMiddleware(logger)(handler)
	handler = securityHeadersMiddleware(handler)

	// Top-level mux keeps health probes out of the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", hh.health)
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
