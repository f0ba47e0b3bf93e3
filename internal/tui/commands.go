package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/askdocs/askdocs/internal/client"
	"github.com/askdocs/askdocs/internal/conversation"
)

// answerMsg carries the outcome of one ask round-trip.
type answerMsg struct {
	answer         client.Answer
	conversationID string
	err            error
}

// askCmd runs the full exchange off the UI goroutine: ensure a
// conversation exists (AI-titled from the first query), persist the user
// message, ask, persist the answer. Persistence failures are logged
// server-side and must not block showing the answer, so only Ask errors
// surface in answerMsg.err.
func (t *TUI) askCmd(query string) tea.Cmd {
	api := t.api
	conversationID := t.conversationID
	topK := t.topK
	useReranking := t.useReranking
	ctx := t.ctx

	return func() tea.Msg {
		if conversationID == "" {
			conv, err := api.CreateConversation(ctx, "", query)
			if err == nil {
				conversationID = conv.ConversationID
			}
		}

		if conversationID != "" {
			_, _ = api.AddMessage(ctx, conversationID, conversation.RoleUser, query, nil)
		}

		answer, err := api.Ask(ctx, query, topK, useReranking)
		if err != nil {
			return answerMsg{conversationID: conversationID, err: err}
		}

		if conversationID != "" {
			_, _ = api.AddMessage(ctx, conversationID, conversation.RoleAssistant, answer.Response, answer.Sources)
		}

		return answerMsg{answer: answer, conversationID: conversationID}
	}
}

// checkHealthCmd probes the server once at startup.
func (t *TUI) checkHealthCmd() tea.Cmd {
	api := t.api
	ctx := t.ctx

	return func() tea.Msg {
		h, err := api.Health(ctx)
		return healthMsg{health: h, err: err}
	}
}

// healthMsg carries the startup health probe result.
type healthMsg struct {
	health client.Health
	err    error
}
