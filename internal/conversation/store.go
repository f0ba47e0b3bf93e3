// Package conversation manages conversation threads and their messages
// on PostgreSQL.
package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// DefaultListLimit bounds a conversation listing when the caller does
// not specify a limit.
const DefaultListLimit int32 = 50

// Querier defines the database operations the Store needs. The
// interface lives with its consumer so tests can substitute a mock.
type Querier interface {
	CreateConversation(ctx context.Context, title string) (Conversation, error)
	GetConversation(ctx context.Context, id uuid.UUID) (Conversation, error)
	ListConversations(ctx context.Context, limit, offset int32) ([]Conversation, error)
	RenameConversation(ctx context.Context, id uuid.UUID, title string) error
	DeleteConversation(ctx context.Context, id uuid.UUID) error
	InsertMessage(ctx context.Context, arg InsertMessageParams) (Message, error)
	GetMessages(ctx context.Context, conversationID uuid.UUID) ([]Message, error)
}

// Store manages conversation persistence.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	querier Querier
	logger  *slog.Logger
}

// New creates a new Store. A nil logger falls back to slog.Default().
func New(querier Querier, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{querier: querier, logger: logger}
}

// Create creates a new conversation with the given title.
func (s *Store) Create(ctx context.Context, title string) (Conversation, error) {
	c, err := s.querier.CreateConversation(ctx, title)
	if err != nil {
		return Conversation{}, err
	}
	s.logger.Debug("created conversation", "id", c.ID, "title", c.Title)
	return c, nil
}

// Get returns a conversation by ID, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Conversation, error) {
	return s.querier.GetConversation(ctx, id)
}

// List returns conversations ordered by most recent activity.
// A non-positive limit falls back to DefaultListLimit.
func (s *Store) List(ctx context.Context, limit, offset int32) ([]Conversation, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.querier.ListConversations(ctx, limit, offset)
}

// Rename updates a conversation title, or returns ErrNotFound.
func (s *Store) Rename(ctx context.Context, id uuid.UUID, title string) error {
	return s.querier.RenameConversation(ctx, id, title)
}

// Delete removes a conversation and its messages, or returns ErrNotFound.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.querier.DeleteConversation(ctx, id); err != nil {
		return err
	}
	s.logger.Debug("deleted conversation", "id", id)
	return nil
}

// AddMessage appends a message to a conversation and touches the
// conversation's updated_at. sources may be nil; when set it must be
// valid JSON.
func (s *Store) AddMessage(ctx context.Context, conversationID uuid.UUID, role, content string, sources json.RawMessage) (Message, error) {
	if role != RoleUser && role != RoleAssistant {
		return Message{}, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	m, err := s.querier.InsertMessage(ctx, InsertMessageParams{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Sources:        sources,
	})
	if err != nil {
		return Message{}, err
	}

	s.logger.Debug("added message",
		"conversation_id", conversationID,
		"role", role,
		"content_length", len(content))
	return m, nil
}

// GetMessages returns all messages of a conversation in chronological
// order, or ErrNotFound when the conversation does not exist.
func (s *Store) GetMessages(ctx context.Context, conversationID uuid.UUID) ([]Message, error) {
	return s.querier.GetMessages(ctx, conversationID)
}
