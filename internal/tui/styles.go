package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const accentColor = "#36B37E"

var banner = []string{
	"  █████╗ ███████╗██╗  ██╗██████╗  ██████╗  ██████╗███████╗",
	" ██╔══██╗██╔════╝██║ ██╔╝██╔══██╗██╔═══██╗██╔════╝██╔════╝",
	" ███████║███████╗█████╔╝ ██║  ██║██║   ██║██║     ███████╗",
	" ██╔══██║╚════██║██╔═██╗ ██║  ██║██║   ██║██║     ╚════██║",
	" ██║  ██║███████║██║  ██╗██████╔╝╚██████╔╝╚██████╗███████║",
	" ╚═╝  ╚═╝╚══════╝╚═╝  ╚═╝╚═════╝  ╚═════╝  ╚═════╝╚══════╝",
}

// Styles contains all lipgloss styles for the TUI.
type Styles struct {
	Banner    lipgloss.Style
	User      lipgloss.Style
	Assistant lipgloss.Style
	System    lipgloss.Style
	Error     lipgloss.Style
	Source    lipgloss.Style
	Prompt    lipgloss.Style
	Separator lipgloss.Style
	StatusBar lipgloss.Style
}

// DefaultStyles returns the default style configuration.
func DefaultStyles() Styles {
	return Styles{
		Banner:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(accentColor)),
		User:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		Assistant: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		System:    lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("240")),
		Error:     lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Source:    lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		Prompt:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		Separator: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		StatusBar: lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
	}
}

// RenderBanner returns the ASCII art banner as a styled string.
func (s Styles) RenderBanner() string {
	var b strings.Builder
	for _, line := range banner {
		b.WriteString(s.Banner.Render(line))
		b.WriteString("\n")
	}
	return b.String()
}

var welcomeTips = []string{
	"Ask questions about your indexed documents:",
	"  • Answers cite their sources below the response",
	"  • The exchange is saved to a conversation automatically",
	"  • Press Ctrl+C or Esc to exit",
}

// RenderWelcomeTips returns the getting-started tips under the banner.
func (s Styles) RenderWelcomeTips() string {
	var b strings.Builder
	for _, tip := range welcomeTips {
		b.WriteString(s.System.Render(tip))
		b.WriteString("\n")
	}
	return b.String()
}
