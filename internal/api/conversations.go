package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/askdocs/askdocs/internal/conversation"
)

const (
	conversationsDefaultLimit = 50
	maxConversationBodySize   = 1 << 20
	maxTitleLength            = 200
)

// conversationItem is the JSON representation of a conversation.
type conversationItem struct {
	ConversationID string `json:"conversation_id"`
	Title          string `json:"title"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// messageItem is the JSON representation of a message.
type messageItem struct {
	MessageID      string          `json:"message_id"`
	ConversationID string          `json:"conversation_id"`
	Role           string          `json:"role"`
	Content        string          `json:"content"`
	Sources        json.RawMessage `json:"sources,omitempty"`
	CreatedAt      string          `json:"created_at"`
}

func toConversationItem(c conversation.Conversation) conversationItem {
	return conversationItem{
		ConversationID: c.ID.String(),
		Title:          c.Title,
		CreatedAt:      c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      c.UpdatedAt.Format(time.RFC3339),
	}
}

func toMessageItem(m conversation.Message) messageItem {
	return messageItem{
		MessageID:      m.ID.String(),
		ConversationID: m.ConversationID.String(),
		Role:           m.Role,
		Content:        m.Content,
		Sources:        m.Sources,
		CreatedAt:      m.CreatedAt.Format(time.RFC3339),
	}
}

// conversationHandler serves the conversation CRUD endpoints.
type conversationHandler struct {
	store  ConversationStore
	engine Engine
	logger *slog.Logger
}

// pathID extracts and validates the conversation ID path segment.
// Writes an error response and returns false on failure.
func (h *conversationHandler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_id", "invalid conversation ID", h.logger)
		return uuid.Nil, false
	}
	return id, true
}

// createConversationRequest is the request body for POST /conversations.
// FirstQuery, when set with a blank title, seeds AI title generation.
type createConversationRequest struct {
	Title      string `json:"title"`
	FirstQuery string `json:"first_query,omitempty"`
}

// create handles POST /conversations.
func (h *conversationHandler) create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxConversationBodySize)

	var req createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		if strings.TrimSpace(req.FirstQuery) == "" {
			WriteError(w, http.StatusBadRequest, "missing_title", "title or first_query is required", h.logger)
			return
		}
		title = h.engine.GenerateTitle(r.Context(), req.FirstQuery)
	}
	if len(title) > maxTitleLength {
		title = title[:maxTitleLength]
	}

	conv, err := h.store.Create(r.Context(), title)
	if err != nil {
		h.logger.Error("creating conversation", "error", err)
		WriteError(w, http.StatusInternalServerError, "create_failed", "failed to create conversation", h.logger)
		return
	}

	WriteJSON(w, http.StatusCreated, toConversationItem(conv), h.logger)
}

// list handles GET /conversations?limit=50&offset=0.
func (h *conversationHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := min(parseIntParam(r, "limit", conversationsDefaultLimit), 200)
	offset := parseIntParam(r, "offset", 0)
	if offset > 10000 {
		WriteError(w, http.StatusBadRequest, "invalid_offset", "offset must be 10000 or less", h.logger)
		return
	}

	convs, err := h.store.List(r.Context(), int32(limit), int32(offset))
	if err != nil {
		h.logger.Error("listing conversations", "error", err)
		WriteError(w, http.StatusInternalServerError, "list_failed", "failed to list conversations", h.logger)
		return
	}

	items := make([]conversationItem, len(convs))
	for i, c := range convs {
		items[i] = toConversationItem(c)
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"conversations": items,
		"total":         len(items),
	}, h.logger)
}

// get handles GET /conversations/{id}.
func (h *conversationHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	conv, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "not_found", "conversation not found", h.logger)
			return
		}
		h.logger.Error("getting conversation", "error", err, "conversation_id", id)
		WriteError(w, http.StatusInternalServerError, "get_failed", "failed to get conversation", h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, toConversationItem(conv), h.logger)
}

// renameConversationRequest is the request body for PATCH /conversations/{id}.
type renameConversationRequest struct {
	Title string `json:"title"`
}

// rename handles PATCH /conversations/{id}.
func (h *conversationHandler) rename(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxConversationBodySize)

	var req renameConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		WriteError(w, http.StatusBadRequest, "missing_title", "title is required", h.logger)
		return
	}
	if len(title) > maxTitleLength {
		title = title[:maxTitleLength]
	}

	if err := h.store.Rename(r.Context(), id, title); err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "not_found", "conversation not found", h.logger)
			return
		}
		h.logger.Error("renaming conversation", "error", err, "conversation_id", id)
		WriteError(w, http.StatusInternalServerError, "rename_failed", "failed to rename conversation", h.logger)
		return
	}

	conv, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.logger.Error("getting renamed conversation", "error", err, "conversation_id", id)
		WriteError(w, http.StatusInternalServerError, "rename_failed", "failed to rename conversation", h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, toConversationItem(conv), h.logger)
}

// delete handles DELETE /conversations/{id}. Messages cascade.
func (h *conversationHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "not_found", "conversation not found", h.logger)
			return
		}
		h.logger.Error("deleting conversation", "error", err, "conversation_id", id)
		WriteError(w, http.StatusInternalServerError, "delete_failed", "failed to delete conversation", h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Conversation deleted successfully",
	}, h.logger)
}

// getMessages handles GET /conversations/{id}/messages.
func (h *conversationHandler) getMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	messages, err := h.store.GetMessages(r.Context(), id)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "not_found", "conversation not found", h.logger)
			return
		}
		h.logger.Error("getting messages", "error", err, "conversation_id", id)
		WriteError(w, http.StatusInternalServerError, "get_failed", "failed to get messages", h.logger)
		return
	}

	items := make([]messageItem, len(messages))
	for i, m := range messages {
		items[i] = toMessageItem(m)
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"conversation_id": id.String(),
		"messages":        items,
		"total":           len(items),
	}, h.logger)
}

// addMessageRequest is the request body for POST /conversations/{id}/messages.
type addMessageRequest struct {
	Role    string          `json:"role"`
	Content string          `json:"content"`
	Sources json.RawMessage `json:"sources,omitempty"`
}

// addMessage handles POST /conversations/{id}/messages.
func (h *conversationHandler) addMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxConversationBodySize)

	var req addMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}

	if req.Content == "" {
		WriteError(w, http.StatusBadRequest, "missing_content", "content is required", h.logger)
		return
	}

	msg, err := h.store.AddMessage(r.Context(), id, req.Role, req.Content, req.Sources)
	if err != nil {
		switch {
		case errors.Is(err, conversation.ErrInvalidRole):
			WriteError(w, http.StatusBadRequest, "invalid_role", "role must be user or assistant", h.logger)
		case errors.Is(err, conversation.ErrNotFound):
			WriteError(w, http.StatusNotFound, "not_found", "conversation not found", h.logger)
		default:
			h.logger.Error("adding message", "error", err, "conversation_id", id)
			WriteError(w, http.StatusInternalServerError, "add_failed", "failed to add message", h.logger)
		}
		return
	}

	WriteJSON(w, http.StatusCreated, toMessageItem(msg), h.logger)
}
