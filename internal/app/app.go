// Package app provides application initialization and dependency wiring.
//
// App is the composition root: it runs migrations, opens the database
// pool, initializes Genkit with the configured provider, and constructs
// the knowledge store, conversation store, indexer, and answer engine.
package app

import (
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/askdocs/askdocs/internal/config"
	"github.com/askdocs/askdocs/internal/conversation"
	"github.com/askdocs/askdocs/internal/knowledge"
	"github.com/askdocs/askdocs/internal/log"
	"github.com/askdocs/askdocs/internal/rag"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	DBPool   *pgxpool.Pool

	Knowledge     *knowledge.Store
	Conversations *conversation.Store
	Engine        *rag.Engine
	Indexer       *rag.Indexer

	otelCleanup func()
	dbCleanup   func()
}

// Close gracefully releases all resources. Safe to call on a partially
// initialized App.
func (a *App) Close() error {
	if a.dbCleanup != nil {
		a.dbCleanup()
		a.dbCleanup = nil
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
		a.otelCleanup = nil
	}
	return nil
}
