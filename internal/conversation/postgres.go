package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// InsertMessageParams carries one message insert.
type InsertMessageParams struct {
	ConversationID uuid.UUID
	Role           string
	Content        string
	Sources        json.RawMessage
}

// PostgresQuerier executes conversation queries against PostgreSQL.
type PostgresQuerier struct {
	pool *pgxpool.Pool
}

// NewPostgresQuerier creates a querier backed by the given pool.
func NewPostgresQuerier(pool *pgxpool.Pool) *PostgresQuerier {
	return &PostgresQuerier{pool: pool}
}

// CreateConversation inserts a new conversation and returns it.
func (q *PostgresQuerier) CreateConversation(ctx context.Context, title string) (Conversation, error) {
	var c Conversation
	var id pgtype.UUID
	err := q.pool.QueryRow(ctx, `
		INSERT INTO conversations (title)
		VALUES ($1)
		RETURNING id, title, created_at, updated_at`,
		title).Scan(&id, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	c.ID = pgUUIDToUUID(id)
	return c, nil
}

// GetConversation returns a conversation by ID, or ErrNotFound.
func (q *PostgresQuerier) GetConversation(ctx context.Context, id uuid.UUID) (Conversation, error) {
	var c Conversation
	var pgID pgtype.UUID
	err := q.pool.QueryRow(ctx, `
		SELECT id, title, created_at, updated_at
		FROM conversations
		WHERE id = $1`,
		uuidToPgUUID(id)).Scan(&pgID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Conversation{}, ErrNotFound
	}
	if err != nil {
		return Conversation{}, fmt.Errorf("get conversation %s: %w", id, err)
	}
	c.ID = pgUUIDToUUID(pgID)
	return c, nil
}

// ListConversations returns conversations ordered by most recent activity.
func (q *PostgresQuerier) ListConversations(ctx context.Context, limit, offset int32) ([]Conversation, error) {
	rows, err := q.pool.Query(ctx, `
		SELECT id, title, created_at, updated_at
		FROM conversations
		ORDER BY updated_at DESC
		LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var conversations []Conversation
	for rows.Next() {
		var c Conversation
		var pgID pgtype.UUID
		if err := rows.Scan(&pgID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation row: %w", err)
		}
		c.ID = pgUUIDToUUID(pgID)
		conversations = append(conversations, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}
	return conversations, nil
}

// RenameConversation updates a conversation title, or returns ErrNotFound.
func (q *PostgresQuerier) RenameConversation(ctx context.Context, id uuid.UUID, title string) error {
	tag, err := q.pool.Exec(ctx, `
		UPDATE conversations SET title = $2, updated_at = now()
		WHERE id = $1`,
		uuidToPgUUID(id), title)
	if err != nil {
		return fmt.Errorf("rename conversation %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteConversation removes a conversation and, via cascade, its
// messages. Returns ErrNotFound when no such conversation exists.
func (q *PostgresQuerier) DeleteConversation(ctx context.Context, id uuid.UUID) error {
	tag, err := q.pool.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, uuidToPgUUID(id))
	if err != nil {
		return fmt.Errorf("delete conversation %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertMessage appends a message and bumps the conversation's
// updated_at in one transaction. Returns ErrNotFound when the
// conversation does not exist.
func (q *PostgresQuerier) InsertMessage(ctx context.Context, arg InsertMessageParams) (Message, error) {
	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return Message{}, fmt.Errorf("begin insert message: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `UPDATE conversations SET updated_at = now() WHERE id = $1`,
		uuidToPgUUID(arg.ConversationID))
	if err != nil {
		return Message{}, fmt.Errorf("touch conversation %s: %w", arg.ConversationID, err)
	}
	if tag.RowsAffected() == 0 {
		return Message{}, ErrNotFound
	}

	m := Message{
		ConversationID: arg.ConversationID,
		Role:           arg.Role,
		Content:        arg.Content,
		Sources:        arg.Sources,
	}
	var pgID pgtype.UUID
	err = tx.QueryRow(ctx, `
		INSERT INTO messages (conversation_id, role, content, sources)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		uuidToPgUUID(arg.ConversationID), arg.Role, arg.Content, arg.Sources).
		Scan(&pgID, &m.CreatedAt)
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}
	m.ID = pgUUIDToUUID(pgID)

	if err := tx.Commit(ctx); err != nil {
		return Message{}, fmt.Errorf("commit insert message: %w", err)
	}
	return m, nil
}

// GetMessages returns all messages of a conversation in chronological
// order. Returns ErrNotFound when the conversation does not exist.
func (q *PostgresQuerier) GetMessages(ctx context.Context, conversationID uuid.UUID) ([]Message, error) {
	// Distinguish "no messages" from "no conversation".
	var exists bool
	err := q.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM conversations WHERE id = $1)`,
		uuidToPgUUID(conversationID)).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check conversation %s: %w", conversationID, err)
	}
	if !exists {
		return nil, ErrNotFound
	}

	rows, err := q.pool.Query(ctx, `
		SELECT id, conversation_id, role, content, sources, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC`,
		uuidToPgUUID(conversationID))
	if err != nil {
		return nil, fmt.Errorf("get messages for %s: %w", conversationID, err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		var pgID, pgConvID pgtype.UUID
		if err := rows.Scan(&pgID, &pgConvID, &m.Role, &m.Content, &m.Sources, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		m.ID = pgUUIDToUUID(pgID)
		m.ConversationID = pgUUIDToUUID(pgConvID)
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

func uuidToPgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

func pgUUIDToUUID(pgUUID pgtype.UUID) uuid.UUID {
	return uuid.UUID(pgUUID.Bytes)
}
