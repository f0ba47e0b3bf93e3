// Package client provides a Go client for the askdocs HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout bounds every API call, including answer generation,
// which can take tens of seconds on large contexts.
const DefaultTimeout = 60 * time.Second

// ErrNotFound is returned when the requested resource does not exist.
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d", e.StatusCode)
}

// Source is one retrieved chunk grounding an answer.
type Source struct {
	DocumentID     string  `json:"document_id"`
	ChunkID        string  `json:"chunk_id"`
	Filename       string  `json:"filename"`
	Content        string  `json:"content"`
	Score          float64 `json:"score"`
	RelevanceScore float64 `json:"relevance_score,omitempty"`
	Reasoning      string  `json:"reasoning,omitempty"`
}

// Answer is the response from POST /ask.
type Answer struct {
	Query    string   `json:"query"`
	Response string   `json:"response"`
	Sources  []Source `json:"sources"`
}

// Conversation is a titled thread of messages.
type Conversation struct {
	ConversationID string    `json:"conversation_id"`
	Title          string    `json:"title"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Message is one turn in a conversation.
type Message struct {
	MessageID      string          `json:"message_id"`
	ConversationID string          `json:"conversation_id"`
	Role           string          `json:"role"`
	Content        string          `json:"content"`
	Sources        json.RawMessage `json:"sources,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Health is the response from GET /health.
type Health struct {
	Status          string `json:"status"`
	VectorService   bool   `json:"vector_service"`
	DatabaseService bool   `json:"database_service"`
}

// Stats is the response from GET /stats.
type Stats struct {
	TotalChunks    int64 `json:"total_chunks"`
	TotalDocuments int64 `json:"total_documents"`
}

// Client talks to the askdocs API server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// New creates a Client for the API at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ask sends a query and returns the generated answer with its sources.
// topK <= 0 and useReranking default server-side to 5 and true.
func (c *Client) Ask(ctx context.Context, query string, topK int, useReranking bool) (Answer, error) {
	body := map[string]any{
		"query":         query,
		"use_reranking": useReranking,
	}
	if topK > 0 {
		body["top_k"] = topK
	}

	var answer Answer
	if err := c.do(ctx, http.MethodPost, "/ask", body, &answer); err != nil {
		return Answer{}, err
	}
	return answer, nil
}

// CreateConversation creates a conversation. With an empty title and a
// non-empty firstQuery the server generates a title from the query.
func (c *Client) CreateConversation(ctx context.Context, title, firstQuery string) (Conversation, error) {
	body := map[string]string{"title": title}
	if firstQuery != "" {
		body["first_query"] = firstQuery
	}

	var conv Conversation
	if err := c.do(ctx, http.MethodPost, "/conversations", body, &conv); err != nil {
		return Conversation{}, err
	}
	return conv, nil
}

// ListConversations returns conversations, most recently updated first.
// limit <= 0 uses the server default.
func (c *Client) ListConversations(ctx context.Context, limit int) ([]Conversation, error) {
	path := "/conversations"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	var resp struct {
		Conversations []Conversation `json:"conversations"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Conversations, nil
}

// GetConversation returns a conversation by ID.
// Returns ErrNotFound when it does not exist.
func (c *Client) GetConversation(ctx context.Context, conversationID string) (Conversation, error) {
	var conv Conversation
	if err := c.do(ctx, http.MethodGet, "/conversations/"+url.PathEscape(conversationID), nil, &conv); err != nil {
		return Conversation{}, err
	}
	return conv, nil
}

// RenameConversation updates a conversation's title.
func (c *Client) RenameConversation(ctx context.Context, conversationID, title string) (Conversation, error) {
	var conv Conversation
	err := c.do(ctx, http.MethodPatch, "/conversations/"+url.PathEscape(conversationID),
		map[string]string{"title": title}, &conv)
	if err != nil {
		return Conversation{}, err
	}
	return conv, nil
}

// DeleteConversation deletes a conversation and its messages.
func (c *Client) DeleteConversation(ctx context.Context, conversationID string) error {
	return c.do(ctx, http.MethodDelete, "/conversations/"+url.PathEscape(conversationID), nil, nil)
}

// Messages returns a conversation's messages in chronological order.
func (c *Client) Messages(ctx context.Context, conversationID string) ([]Message, error) {
	var resp struct {
		Messages []Message `json:"messages"`
	}
	err := c.do(ctx, http.MethodGet, "/conversations/"+url.PathEscape(conversationID)+"/messages", nil, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// AddMessage appends a message to a conversation. sources may be nil.
func (c *Client) AddMessage(ctx context.Context, conversationID, role, content string, sources any) (Message, error) {
	body := map[string]any{
		"role":    role,
		"content": content,
	}
	if sources != nil {
		body["sources"] = sources
	}

	var msg Message
	err := c.do(ctx, http.MethodPost, "/conversations/"+url.PathEscape(conversationID)+"/messages", body, &msg)
	if err != nil {
		return Message{}, err
	}
	return msg, nil
}

// Health reports the server's health probes.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var h Health
	if err := c.do(ctx, http.MethodGet, "/health", nil, &h); err != nil {
		return Health{}, err
	}
	return h, nil
}

// Stats reports corpus size.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	if err := c.do(ctx, http.MethodGet, "/stats", nil, &s); err != nil {
		return Stats{}, err
	}
	return s, nil
}

// do performs a request and decodes the JSON response into out (if non-nil).
// Error responses are decoded from the server's error envelope; 404 maps
// to ErrNotFound wrapped in an APIError.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.decodeError(resp)
	}

	if out == nil {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *Client) decodeError(resp *http.Response) error {
	var envelope struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	_ = json.Unmarshal(data, &envelope)

	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Code:       envelope.Error,
		Message:    envelope.Message,
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %w", ErrNotFound, apiErr)
	}
	return apiErr
}
