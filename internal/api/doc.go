// Package api provides the JSON REST API server for askdocs.
//
// The server uses Go 1.22+ method routing with a layered middleware stack:
//
//	SecurityHeaders → Recovery → Logging → CORS → RateLimit → Routes
//
// GET /health bypasses the middleware stack via a top-level mux so
// probes stay fast and unthrottled.
//
// # Endpoints
//
//   - GET  /       — API information and endpoint map
//   - GET  /health — service health (database and vector store probes)
//   - GET  /stats  — corpus size (total chunks and documents)
//   - POST /ask    — retrieval-augmented question answering
//
// Conversation CRUD:
//   - POST   /conversations                — create (optional AI title from first_query)
//   - GET    /conversations                — list, most recently updated first
//   - GET    /conversations/{id}           — get by ID
//   - PATCH  /conversations/{id}           — rename
//   - DELETE /conversations/{id}           — delete (messages cascade)
//   - GET    /conversations/{id}/messages  — chronological messages
//   - POST   /conversations/{id}/messages  — append a message
//
// All errors use the envelope {"error": "<code>", "message": "<detail>"}.
package api
