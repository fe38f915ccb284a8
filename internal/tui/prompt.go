// internal/tui/prompt.go
//
// Single-question prompts for the two interactive gates of a run: the
// confirmation before bulk generation and the reuse/regenerate choice.
// Both follow The Elm Architecture used by bubbletea:
//
//   User Input -> Message -> Update -> New Model -> View -> Screen

package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	questionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	hintStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

// PromptModel asks one question and captures a single line answer.
type PromptModel struct {
	header    string
	question  string
	hint      string
	input     textinput.Model
	answer    string
	done      bool
	cancelled bool
}

// NewPrompt builds a prompt. header is rendered above the question and may be
// empty.
func NewPrompt(header, question, hint string) PromptModel {
	input := textinput.New()
	input.Prompt = "> "
	input.CharLimit = 64
	input.Focus()
	return PromptModel{header: header, question: question, hint: hint, input: input}
}

// Init starts the cursor blink.
func (m PromptModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles key presses. Enter submits; ctrl+c and esc cancel.
func (m PromptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyEnter, tea.KeyCtrlJ:
			m.answer = strings.TrimSpace(m.input.Value())
			m.done = true
			return m, tea.Quit
		case tea.KeyCtrlC, tea.KeyEsc:
			m.cancelled = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the header, the question and the input line.
func (m PromptModel) View() string {
	if m.done || m.cancelled {
		return ""
	}
	var sections []string
	if m.header != "" {
		sections = append(sections, m.header)
	}
	sections = append(sections, questionStyle.Render(m.question), m.input.View())
	if m.hint != "" {
		sections = append(sections, hintStyle.Render(m.hint))
	}
	return strings.Join(sections, "\n") + "\n"
}

// Answer returns the submitted text, trimmed.
func (m PromptModel) Answer() string {
	return m.answer
}

// Cancelled reports whether the prompt was dismissed without an answer.
func (m PromptModel) Cancelled() bool {
	return m.cancelled
}
