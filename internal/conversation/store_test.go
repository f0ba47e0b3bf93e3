package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/askdocs/askdocs/internal/log"
)

// mockQuerier implements Querier for testing.
type mockQuerier struct {
	conversations map[uuid.UUID]Conversation
	messages      map[uuid.UUID][]Message

	insertErr error

	lastListLimit  int32
	lastListOffset int32
}

func newMockQuerier() *mockQuerier {
	return &mockQuerier{
		conversations: make(map[uuid.UUID]Conversation),
		messages:      make(map[uuid.UUID][]Message),
	}
}

func (m *mockQuerier) CreateConversation(ctx context.Context, title string) (Conversation, error) {
	c := Conversation{ID: uuid.New(), Title: title}
	m.conversations[c.ID] = c
	return c, nil
}

func (m *mockQuerier) GetConversation(ctx context.Context, id uuid.UUID) (Conversation, error) {
	c, ok := m.conversations[id]
	if !ok {
		return Conversation{}, ErrNotFound
	}
	return c, nil
}

func (m *mockQuerier) ListConversations(ctx context.Context, limit, offset int32) ([]Conversation, error) {
	m.lastListLimit = limit
	m.lastListOffset = offset
	var out []Conversation
	for _, c := range m.conversations {
		out = append(out, c)
	}
	return out, nil
}

func (m *mockQuerier) RenameConversation(ctx context.Context, id uuid.UUID, title string) error {
	c, ok := m.conversations[id]
	if !ok {
		return ErrNotFound
	}
	c.Title = title
	m.conversations[id] = c
	return nil
}

func (m *mockQuerier) DeleteConversation(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.conversations[id]; !ok {
		return ErrNotFound
	}
	delete(m.conversations, id)
	delete(m.messages, id)
	return nil
}

func (m *mockQuerier) InsertMessage(ctx context.Context, arg InsertMessageParams) (Message, error) {
	if m.insertErr != nil {
		return Message{}, m.insertErr
	}
	if _, ok := m.conversations[arg.ConversationID]; !ok {
		return Message{}, ErrNotFound
	}
	msg := Message{
		ID:             uuid.New(),
		ConversationID: arg.ConversationID,
		Role:           arg.Role,
		Content:        arg.Content,
		Sources:        arg.Sources,
	}
	m.messages[arg.ConversationID] = append(m.messages[arg.ConversationID], msg)
	return msg, nil
}

func (m *mockQuerier) GetMessages(ctx context.Context, conversationID uuid.UUID) ([]Message, error) {
	if _, ok := m.conversations[conversationID]; !ok {
		return nil, ErrNotFound
	}
	return m.messages[conversationID], nil
}

func TestStore_CreateAndGet(t *testing.T) {
	store := New(newMockQuerier(), log.NewNop())

	c, err := store.Create(context.Background(), "My conversation")
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if c.Title != "My conversation" {
		t.Errorf("title = %q", c.Title)
	}

	got, err := store.Get(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.ID != c.ID {
		t.Errorf("got ID %s, want %s", got.ID, c.ID)
	}
}

func TestStore_Get_NotFound(t *testing.T) {
	store := New(newMockQuerier(), log.NewNop())

	_, err := store.Get(context.Background(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_List_DefaultLimit(t *testing.T) {
	querier := newMockQuerier()
	store := New(querier, log.NewNop())

	if _, err := store.List(context.Background(), 0, -5); err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if querier.lastListLimit != DefaultListLimit {
		t.Errorf("limit = %d, want default %d", querier.lastListLimit, DefaultListLimit)
	}
	if querier.lastListOffset != 0 {
		t.Errorf("offset = %d, want clamped to 0", querier.lastListOffset)
	}
}

func TestStore_AddMessage(t *testing.T) {
	querier := newMockQuerier()
	store := New(querier, log.NewNop())

	c, _ := store.Create(context.Background(), "chat")

	sources := json.RawMessage(`[{"filename":"README.md","chunk_id":"readme_chunk_0"}]`)
	msg, err := store.AddMessage(context.Background(), c.ID, RoleAssistant, "answer", sources)
	if err != nil {
		t.Fatalf("AddMessage() failed: %v", err)
	}
	if msg.Role != RoleAssistant || msg.Content != "answer" {
		t.Errorf("unexpected message: %+v", msg)
	}

	msgs, err := store.GetMessages(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("GetMessages() failed: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if string(msgs[0].Sources) != string(sources) {
		t.Errorf("sources = %s", msgs[0].Sources)
	}
}

func TestStore_AddMessage_InvalidRole(t *testing.T) {
	store := New(newMockQuerier(), log.NewNop())

	_, err := store.AddMessage(context.Background(), uuid.New(), "system", "x", nil)
	if !errors.Is(err, ErrInvalidRole) {
		t.Errorf("expected ErrInvalidRole, got %v", err)
	}
}

func TestStore_AddMessage_ConversationMissing(t *testing.T) {
	store := New(newMockQuerier(), log.NewNop())

	_, err := store.AddMessage(context.Background(), uuid.New(), RoleUser, "hello", nil)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_GetMessages_ConversationMissing(t *testing.T) {
	store := New(newMockQuerier(), log.NewNop())

	_, err := store.GetMessages(context.Background(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_RenameAndDelete(t *testing.T) {
	store := New(newMockQuerier(), log.NewNop())

	c, _ := store.Create(context.Background(), "old title")

	if err := store.Rename(context.Background(), c.ID, "new title"); err != nil {
		t.Fatalf("Rename() failed: %v", err)
	}
	got, _ := store.Get(context.Background(), c.ID)
	if got.Title != "new title" {
		t.Errorf("title = %q, want 'new title'", got.Title)
	}

	if err := store.Delete(context.Background(), c.ID); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err := store.Get(context.Background(), c.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	if err := store.Delete(context.Background(), c.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting twice, got %v", err)
	}
}
