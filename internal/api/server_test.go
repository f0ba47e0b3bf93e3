package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/askdocs/askdocs/internal/conversation"
	"github.com/askdocs/askdocs/internal/rag"
)

// mockEngine implements Engine for handler tests.
type mockEngine struct {
	answer      rag.Answer
	answerErr   error
	title       string
	lastQuery   string
	lastTopK    int
	lastRerank  bool
	answerCalls int
}

func (m *mockEngine) Answer(_ context.Context, query string, topK int, useReranking bool) (rag.Answer, error) {
	m.answerCalls++
	m.lastQuery = query
	m.lastTopK = topK
	m.lastRerank = useReranking
	if m.answerErr != nil {
		return rag.Answer{}, m.answerErr
	}
	return m.answer, nil
}

func (m *mockEngine) GenerateTitle(_ context.Context, firstQuery string) string {
	if m.title != "" {
		return m.title
	}
	return firstQuery
}

// mockConversations implements ConversationStore over in-memory maps.
type mockConversations struct {
	conversations map[uuid.UUID]conversation.Conversation
	messages      map[uuid.UUID][]conversation.Message
	err           error
}

func newMockConversations() *mockConversations {
	return &mockConversations{
		conversations: make(map[uuid.UUID]conversation.Conversation),
		messages:      make(map[uuid.UUID][]conversation.Message),
	}
}

func (m *mockConversations) Create(_ context.Context, title string) (conversation.Conversation, error) {
	if m.err != nil {
		return conversation.Conversation{}, m.err
	}
	now := time.Now()
	conv := conversation.Conversation{ID: uuid.New(), Title: title, CreatedAt: now, UpdatedAt: now}
	m.conversations[conv.ID] = conv
	return conv, nil
}

func (m *mockConversations) Get(_ context.Context, id uuid.UUID) (conversation.Conversation, error) {
	if m.err != nil {
		return conversation.Conversation{}, m.err
	}
	conv, ok := m.conversations[id]
	if !ok {
		return conversation.Conversation{}, conversation.ErrNotFound
	}
	return conv, nil
}

func (m *mockConversations) List(_ context.Context, limit, offset int32) ([]conversation.Conversation, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([]conversation.Conversation, 0, len(m.conversations))
	for _, c := range m.conversations {
		out = append(out, c)
	}
	if int(offset) >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if int(limit) < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockConversations) Rename(_ context.Context, id uuid.UUID, title string) error {
	if m.err != nil {
		return m.err
	}
	conv, ok := m.conversations[id]
	if !ok {
		return conversation.ErrNotFound
	}
	conv.Title = title
	conv.UpdatedAt = time.Now()
	m.conversations[id] = conv
	return nil
}

func (m *mockConversations) Delete(_ context.Context, id uuid.UUID) error {
	if m.err != nil {
		return m.err
	}
	if _, ok := m.conversations[id]; !ok {
		return conversation.ErrNotFound
	}
	delete(m.conversations, id)
	delete(m.messages, id)
	return nil
}

func (m *mockConversations) AddMessage(_ context.Context, conversationID uuid.UUID, role, content string, sources json.RawMessage) (conversation.Message, error) {
	if m.err != nil {
		return conversation.Message{}, m.err
	}
	if role != conversation.RoleUser && role != conversation.RoleAssistant {
		return conversation.Message{}, conversation.ErrInvalidRole
	}
	if _, ok := m.conversations[conversationID]; !ok {
		return conversation.Message{}, conversation.ErrNotFound
	}
	msg := conversation.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Sources:        sources,
		CreatedAt:      time.Now(),
	}
	m.messages[conversationID] = append(m.messages[conversationID], msg)
	return msg, nil
}

func (m *mockConversations) GetMessages(_ context.Context, conversationID uuid.UUID) ([]conversation.Message, error) {
	if m.err != nil {
		return nil, m.err
	}
	if _, ok := m.conversations[conversationID]; !ok {
		return nil, conversation.ErrNotFound
	}
	return m.messages[conversationID], nil
}

// mockKnowledge implements KnowledgeStore.
type mockKnowledge struct {
	chunks    int64
	documents int64
	err       error
}

func (m *mockKnowledge) CountChunks(context.Context) (int64, error) {
	return m.chunks, m.err
}

func (m *mockKnowledge) CountDocuments(context.Context) (int64, error) {
	return m.documents, m.err
}

func testServer(t *testing.T, engine *mockEngine, store *mockConversations, knowledge *mockKnowledge) http.Handler {
	t.Helper()

	srv, err := NewServer(ServerConfig{
		Logger:        slog.New(slog.DiscardHandler),
		Engine:        engine,
		Conversations: store,
		Knowledge:     knowledge,
		CORSOrigins:   []string{"http://localhost:3000"},
		RateBurst:     1000,
	})
	if err != nil {
		t.Fatalf("NewServer() error: %v", err)
	}
	return srv.Handler()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshaling request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding response %q: %v", w.Body.String(), err)
	}
	return out
}

func TestNewServer_RequiresEngine(t *testing.T) {
	_, err := NewServer(ServerConfig{Conversations: newMockConversations()})
	if err == nil {
		t.Fatal("NewServer() without engine expected error, got nil")
	}
}

func TestNewServer_RequiresConversationStore(t *testing.T) {
	_, err := NewServer(ServerConfig{Engine: &mockEngine{}})
	if err == nil {
		t.Fatal("NewServer() without store expected error, got nil")
	}
}

func TestAsk(t *testing.T) {
	engine := &mockEngine{
		answer: rag.Answer{
			Query:    "what is pgvector?",
			Response: "An extension.",
			Sources: []rag.Source{
				{DocumentID: "guide", ChunkID: "guide_chunk_0", Filename: "guide.md", Content: "pgvector", Score: 0.9},
			},
		},
	}
	h := testServer(t, engine, newMockConversations(), &mockKnowledge{})

	w := doJSON(t, h, http.MethodPost, "/ask", map[string]any{"query": "what is pgvector?"})

	if w.Code != http.StatusOK {
		t.Fatalf("POST /ask status = %d, body = %s", w.Code, w.Body.String())
	}

	got := decodeBody[rag.Answer](t, w)
	if got.Response != "An extension." {
		t.Errorf("response = %q, want %q", got.Response, "An extension.")
	}
	if len(got.Sources) != 1 {
		t.Fatalf("sources = %d, want 1", len(got.Sources))
	}
	if engine.lastTopK != 5 {
		t.Errorf("default top_k = %d, want 5", engine.lastTopK)
	}
	if !engine.lastRerank {
		t.Error("expected reranking enabled by default")
	}
}

func TestAsk_ExplicitOptions(t *testing.T) {
	engine := &mockEngine{}
	h := testServer(t, engine, newMockConversations(), &mockKnowledge{})

	w := doJSON(t, h, http.MethodPost, "/ask", map[string]any{
		"query":         "hello",
		"top_k":         3,
		"use_reranking": false,
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if engine.lastTopK != 3 {
		t.Errorf("top_k = %d, want 3", engine.lastTopK)
	}
	if engine.lastRerank {
		t.Error("expected reranking disabled")
	}
}

func TestAsk_BlankQuery(t *testing.T) {
	engine := &mockEngine{}
	h := testServer(t, engine, newMockConversations(), &mockKnowledge{})

	w := doJSON(t, h, http.MethodPost, "/ask", map[string]any{"query": "   "})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if engine.answerCalls != 0 {
		t.Errorf("engine called %d times for blank query", engine.answerCalls)
	}

	resp := decodeBody[ErrorResponse](t, w)
	if resp.Error != "empty_query" {
		t.Errorf("error code = %q, want empty_query", resp.Error)
	}
}

func TestAsk_MalformedBody(t *testing.T) {
	h := testServer(t, &mockEngine{}, newMockConversations(), &mockKnowledge{})

	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestAsk_EngineError(t *testing.T) {
	engine := &mockEngine{answerErr: errors.New("model unavailable")}
	h := testServer(t, engine, newMockConversations(), &mockKnowledge{})

	w := doJSON(t, h, http.MethodPost, "/ask", map[string]any{"query": "hello"})

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
}

func TestAsk_TopKClamped(t *testing.T) {
	engine := &mockEngine{}
	h := testServer(t, engine, newMockConversations(), &mockKnowledge{})

	w := doJSON(t, h, http.MethodPost, "/ask", map[string]any{"query": "hello", "top_k": 500})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if engine.lastTopK != 20 {
		t.Errorf("top_k = %d, want clamped to 20", engine.lastTopK)
	}
}

func TestCreateConversation(t *testing.T) {
	store := newMockConversations()
	h := testServer(t, &mockEngine{}, store, &mockKnowledge{})

	w := doJSON(t, h, http.MethodPost, "/conversations", map[string]string{"title": "Postgres questions"})

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	got := decodeBody[conversationItem](t, w)
	if got.Title != "Postgres questions" {
		t.Errorf("title = %q", got.Title)
	}
	if _, err := uuid.Parse(got.ConversationID); err != nil {
		t.Errorf("conversation_id %q is not a UUID", got.ConversationID)
	}
}

func TestCreateConversation_GeneratedTitle(t *testing.T) {
	engine := &mockEngine{title: "Vector Search Basics"}
	store := newMockConversations()
	h := testServer(t, engine, store, &mockKnowledge{})

	w := doJSON(t, h, http.MethodPost, "/conversations", map[string]string{
		"first_query": "how does vector search work?",
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	got := decodeBody[conversationItem](t, w)
	if got.Title != "Vector Search Basics" {
		t.Errorf("title = %q, want generated title", got.Title)
	}
}

func TestCreateConversation_MissingTitle(t *testing.T) {
	h := testServer(t, &mockEngine{}, newMockConversations(), &mockKnowledge{})

	w := doJSON(t, h, http.MethodPost, "/conversations", map[string]string{})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestListConversations(t *testing.T) {
	store := newMockConversations()
	for i := range 3 {
		if _, err := store.Create(context.Background(), fmt.Sprintf("conv %d", i)); err != nil {
			t.Fatal(err)
		}
	}
	h := testServer(t, &mockEngine{}, store, &mockKnowledge{})

	w := doJSON(t, h, http.MethodGet, "/conversations", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	got := decodeBody[map[string]json.RawMessage](t, w)
	var items []conversationItem
	if err := json.Unmarshal(got["conversations"], &items); err != nil {
		t.Fatal(err)
	}
	if len(items) != 3 {
		t.Errorf("conversations = %d, want 3", len(items))
	}
}

func TestGetConversation_NotFound(t *testing.T) {
	h := testServer(t, &mockEngine{}, newMockConversations(), &mockKnowledge{})

	w := doJSON(t, h, http.MethodGet, "/conversations/"+uuid.NewString(), nil)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestGetConversation_InvalidID(t *testing.T) {
	h := testServer(t, &mockEngine{}, newMockConversations(), &mockKnowledge{})

	w := doJSON(t, h, http.MethodGet, "/conversations/not-a-uuid", nil)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestRenameConversation(t *testing.T) {
	store := newMockConversations()
	conv, err := store.Create(context.Background(), "old title")
	if err != nil {
		t.Fatal(err)
	}
	h := testServer(t, &mockEngine{}, store, &mockKnowledge{})

	w := doJSON(t, h, http.MethodPatch, "/conversations/"+conv.ID.String(), map[string]string{"title": "new title"})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	got := decodeBody[conversationItem](t, w)
	if got.Title != "new title" {
		t.Errorf("title = %q, want %q", got.Title, "new title")
	}
}

func TestDeleteConversation(t *testing.T) {
	store := newMockConversations()
	conv, err := store.Create(context.Background(), "to delete")
	if err != nil {
		t.Fatal(err)
	}
	h := testServer(t, &mockEngine{}, store, &mockKnowledge{})

	w := doJSON(t, h, http.MethodDelete, "/conversations/"+conv.ID.String(), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	w = doJSON(t, h, http.MethodDelete, "/conversations/"+conv.ID.String(), nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", w.Code)
	}
}

func TestAddMessage(t *testing.T) {
	store := newMockConversations()
	conv, err := store.Create(context.Background(), "chat")
	if err != nil {
		t.Fatal(err)
	}
	h := testServer(t, &mockEngine{}, store, &mockKnowledge{})

	w := doJSON(t, h, http.MethodPost, "/conversations/"+conv.ID.String()+"/messages", map[string]any{
		"role":    "assistant",
		"content": "here is the answer",
		"sources": []map[string]any{{"document_id": "guide", "chunk_id": "guide_chunk_0"}},
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	got := decodeBody[messageItem](t, w)
	if got.Role != "assistant" {
		t.Errorf("role = %q", got.Role)
	}
	if got.ConversationID != conv.ID.String() {
		t.Errorf("conversation_id = %q, want %q", got.ConversationID, conv.ID)
	}
	if len(got.Sources) == 0 {
		t.Error("expected sources to round-trip")
	}
}

func TestAddMessage_InvalidRole(t *testing.T) {
	store := newMockConversations()
	conv, err := store.Create(context.Background(), "chat")
	if err != nil {
		t.Fatal(err)
	}
	h := testServer(t, &mockEngine{}, store, &mockKnowledge{})

	w := doJSON(t, h, http.MethodPost, "/conversations/"+conv.ID.String()+"/messages", map[string]string{
		"role":    "system",
		"content": "nope",
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestAddMessage_UnknownConversation(t *testing.T) {
	h := testServer(t, &mockEngine{}, newMockConversations(), &mockKnowledge{})

	w := doJSON(t, h, http.MethodPost, "/conversations/"+uuid.NewString()+"/messages", map[string]string{
		"role":    "user",
		"content": "hello",
	})

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestGetMessages(t *testing.T) {
	store := newMockConversations()
	conv, err := store.Create(context.Background(), "chat")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.AddMessage(context.Background(), conv.ID, "user", "q", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := store.AddMessage(context.Background(), conv.ID, "assistant", "a", nil); err != nil {
		t.Fatal(err)
	}
	h := testServer(t, &mockEngine{}, store, &mockKnowledge{})

	w := doJSON(t, h, http.MethodGet, "/conversations/"+conv.ID.String()+"/messages", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	got := decodeBody[map[string]json.RawMessage](t, w)
	var items []messageItem
	if err := json.Unmarshal(got["messages"], &items); err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Errorf("messages = %d, want 2", len(items))
	}
}

func TestHealth(t *testing.T) {
	h := testServer(t, &mockEngine{}, newMockConversations(), &mockKnowledge{chunks: 10})

	w := doJSON(t, h, http.MethodGet, "/health", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	got := decodeBody[healthResponse](t, w)
	if !got.VectorService {
		t.Error("expected vector_service true")
	}
	// No pool is configured in tests, so the database probe fails.
	if got.DatabaseService {
		t.Error("expected database_service false without a pool")
	}
	if got.Status != "degraded" {
		t.Errorf("status = %q, want degraded", got.Status)
	}
}

func TestHealth_VectorProbeFailure(t *testing.T) {
	h := testServer(t, &mockEngine{}, newMockConversations(), &mockKnowledge{err: errors.New("connection refused")})

	w := doJSON(t, h, http.MethodGet, "/health", nil)

	got := decodeBody[healthResponse](t, w)
	if got.VectorService {
		t.Error("expected vector_service false")
	}
	if got.Status != "degraded" {
		t.Errorf("status = %q, want degraded", got.Status)
	}
}

func TestStats(t *testing.T) {
	h := testServer(t, &mockEngine{}, newMockConversations(), &mockKnowledge{chunks: 120, documents: 7})

	w := doJSON(t, h, http.MethodGet, "/stats", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	got := decodeBody[map[string]int64](t, w)
	if got["total_chunks"] != 120 {
		t.Errorf("total_chunks = %d, want 120", got["total_chunks"])
	}
	if got["total_documents"] != 7 {
		t.Errorf("total_documents = %d, want 7", got["total_documents"])
	}
}

func TestRoot(t *testing.T) {
	h := testServer(t, &mockEngine{}, newMockConversations(), &mockKnowledge{})

	w := doJSON(t, h, http.MethodGet, "/", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	got := decodeBody[map[string]json.RawMessage](t, w)
	if _, ok := got["endpoints"]; !ok {
		t.Error("expected endpoints map in root response")
	}
}

func TestCORSPreflight(t *testing.T) {
	h := testServer(t, &mockEngine{}, newMockConversations(), &mockKnowledge{})

	req := httptest.NewRequest(http.MethodOptions, "/ask", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	h := testServer(t, &mockEngine{}, newMockConversations(), &mockKnowledge{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.example.com")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Access-Control-Allow-Origin = %q, want empty", got)
	}
}

func TestSecurityHeaders(t *testing.T) {
	h := testServer(t, &mockEngine{}, newMockConversations(), &mockKnowledge{})

	w := doJSON(t, h, http.MethodGet, "/", nil)

	if got := w.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q", got)
	}
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
}
