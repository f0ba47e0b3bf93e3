// Package tui provides the Bubble Tea terminal chat interface for askdocs.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/askdocs/askdocs/internal/client"
)

// State represents the TUI state machine.
type State int

// TUI state machine states.
const (
	StateInput    State = iota // Awaiting user input
	StateThinking              // Waiting for the server
)

// maxMessages bounds stored messages to prevent unbounded growth.
const maxMessages = 100

// Message roles for display.
const (
	roleUser      = "user"
	roleAssistant = "assistant"
	roleSystem    = "system"
	roleError     = "error"
)

// Layout constants for viewport height calculation.
const (
	separatorLines = 2
	statusLines    = 1
	promptLines    = 1
	minViewport    = 3
)

// Message is a conversation message for display.
type Message struct {
	Role    string
	Text    string
	Sources []client.Source
}

// API is the TUI-facing subset of the askdocs client.
type API interface {
	Ask(ctx context.Context, query string, topK int, useReranking bool) (client.Answer, error)
	CreateConversation(ctx context.Context, title, firstQuery string) (client.Conversation, error)
	AddMessage(ctx context.Context, conversationID, role, content string, sources any) (client.Message, error)
	Health(ctx context.Context) (client.Health, error)
}

// Options configure the chat session.
type Options struct {
	TopK         int
	UseReranking bool
}

// TUI is the Bubble Tea model for the askdocs chat interface.
type TUI struct {
	input    textinput.Model
	spinner  spinner.Model
	viewport viewport.Model

	state    State
	messages []Message

	api            API
	conversationID string
	topK           int
	useReranking   bool

	ctx context.Context

	width  int
	height int

	styles   Styles
	markdown *markdownRenderer
	status   string
}

// New creates a TUI model for chat interaction.
func New(ctx context.Context, api API, opts Options) (*TUI, error) {
	if api == nil {
		return nil, errors.New("tui.New: api client is required")
	}
	if ctx == nil {
		return nil, errors.New("tui.New: ctx is required")
	}

	ti := textinput.New()
	ti.Placeholder = "Ask about your documents..."
	ti.Prompt = ""
	ti.CharLimit = 0
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	vp := viewport.New(80, 20)
	vp.MouseWheelEnabled = true

	return &TUI{
		input:        ti,
		spinner:      sp,
		viewport:     vp,
		api:          api,
		topK:         opts.TopK,
		useReranking: opts.UseReranking,
		ctx:          ctx,
		styles:       DefaultStyles(),
		markdown:     newMarkdownRenderer(80),
		width:        80,
	}, nil
}

// Init implements tea.Model.
func (t *TUI) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		t.spinner.Tick,
		t.checkHealthCmd(),
	)
}

// Update implements tea.Model.
func (t *TUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return t.handleKey(msg)

	case tea.WindowSizeMsg:
		t.width = msg.Width
		t.height = msg.Height

		fixedHeight := separatorLines + promptLines + statusLines
		vpHeight := max(msg.Height-fixedHeight, minViewport)

		t.viewport.Width = msg.Width
		t.viewport.Height = vpHeight
		t.input.Width = msg.Width - 4
		t.markdown.UpdateWidth(msg.Width)

		t.rebuildViewportContent()
		return t, nil

	case tea.MouseMsg:
		var cmd tea.Cmd
		t.viewport, cmd = t.viewport.Update(msg)
		return t, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		t.spinner, cmd = t.spinner.Update(msg)
		if t.state == StateThinking {
			t.rebuildViewportContent()
		}
		return t, cmd

	case healthMsg:
		if msg.err != nil {
			t.status = "server unreachable: " + msg.err.Error()
		} else if msg.health.Status != "healthy" {
			t.status = "server degraded (database: " +
				fmt.Sprintf("%t, vector: %t)", msg.health.DatabaseService, msg.health.VectorService)
		}
		return t, nil

	case answerMsg:
		t.state = StateInput
		t.conversationID = msg.conversationID

		if msg.err != nil {
			switch {
			case errors.Is(msg.err, context.Canceled):
				t.addMessage(Message{Role: roleSystem, Text: "(Canceled)"})
			default:
				t.addMessage(Message{Role: roleError, Text: msg.err.Error()})
			}
		} else {
			t.addMessage(Message{
				Role:    roleAssistant,
				Text:    msg.answer.Response,
				Sources: msg.answer.Sources,
			})
		}
		t.rebuildViewportContent()
		t.viewport.GotoBottom()
		return t, t.input.Focus()
	}

	var cmd tea.Cmd
	t.input, cmd = t.input.Update(msg)
	return t, cmd
}

// handleKey processes key presses per the state machine.
func (t *TUI) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyCtrlD, tea.KeyEsc:
		return t, tea.Quit

	case tea.KeyUp, tea.KeyDown, tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		t.viewport, cmd = t.viewport.Update(msg)
		return t, cmd

	case tea.KeyEnter:
		if t.state != StateInput {
			return t, nil
		}
		query := strings.TrimSpace(t.input.Value())
		if query == "" {
			return t, nil
		}

		t.input.Reset()
		t.addMessage(Message{Role: roleUser, Text: query})
		t.state = StateThinking
		t.rebuildViewportContent()
		t.viewport.GotoBottom()
		return t, tea.Batch(t.askCmd(query), t.spinner.Tick)
	}

	var cmd tea.Cmd
	t.input, cmd = t.input.Update(msg)
	return t, cmd
}

// View implements tea.Model.
func (t *TUI) View() string {
	var b strings.Builder

	b.WriteString(t.viewport.View())
	b.WriteString("\n")
	b.WriteString(t.renderSeparator())
	b.WriteString("\n")
	b.WriteString(t.styles.Prompt.Render("> "))
	b.WriteString(t.input.View())
	b.WriteString("\n")
	b.WriteString(t.renderSeparator())
	b.WriteString("\n")
	b.WriteString(t.renderStatusBar())

	return b.String()
}

// addMessage appends a message and enforces the maxMessages bound.
func (t *TUI) addMessage(msg Message) {
	t.messages = append(t.messages, msg)
	if len(t.messages) > maxMessages {
		t.messages = t.messages[len(t.messages)-maxMessages:]
	}
}

// rebuildViewportContent reconstructs the viewport from messages and state.
func (t *TUI) rebuildViewportContent() {
	var b strings.Builder

	b.WriteString(t.styles.RenderBanner())
	b.WriteString("\n")
	b.WriteString(t.styles.RenderWelcomeTips())
	b.WriteString("\n")

	for _, msg := range t.messages {
		switch msg.Role {
		case roleUser:
			b.WriteString(t.styles.User.Render("You> "))
			b.WriteString(msg.Text)
		case roleAssistant:
			b.WriteString(t.styles.Assistant.Render("askdocs> "))
			b.WriteString(t.markdown.Render(msg.Text))
			if len(msg.Sources) > 0 {
				b.WriteString("\n")
				b.WriteString(t.renderSources(msg.Sources))
			}
		case roleSystem:
			b.WriteString(t.styles.System.Render(msg.Text))
		case roleError:
			b.WriteString(t.styles.Error.Render("Error: " + msg.Text))
		}
		b.WriteString("\n\n")
	}

	if t.state == StateThinking {
		b.WriteString(t.spinner.View())
		b.WriteString(" Thinking...\n\n")
	}

	t.viewport.SetContent(b.String())
}

// renderSources renders the citation list under an answer.
func (t *TUI) renderSources(sources []client.Source) string {
	var b strings.Builder
	b.WriteString(t.styles.Source.Render("Sources:"))
	for _, s := range sources {
		line := fmt.Sprintf("\n  • %s (%s, score %.2f)", s.Filename, s.ChunkID, s.Score)
		if s.RelevanceScore > 0 {
			line = fmt.Sprintf("\n  • %s (%s, relevance %.2f)", s.Filename, s.ChunkID, s.RelevanceScore)
		}
		b.WriteString(t.styles.Source.Render(line))
	}
	return b.String()
}

func (t *TUI) renderSeparator() string {
	width := t.width
	if width <= 0 {
		width = 80
	}
	return t.styles.Separator.Render(strings.Repeat("─", width))
}

func (t *TUI) renderStatusBar() string {
	if t.status != "" {
		return t.styles.Error.Render(t.status)
	}
	help := "enter: ask • ↑/↓: scroll • ctrl+c: quit"
	if t.state == StateThinking {
		help = "waiting for answer • ctrl+c: quit"
	}
	return t.styles.StatusBar.Render(help)
}

// Run starts the chat interface and blocks until exit.
func Run(ctx context.Context, api API, opts Options) error {
	model, err := New(ctx, api, opts)
	if err != nil {
		return err
	}

	p := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
		tea.WithMouseCellMotion(),
	)
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("running chat interface: %w", err)
	}
	return nil
}
