// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sage Contributors

// Package tui implements the interactive chat terminal for a single domain.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sageway/sage/internal/pipeline"
)

// QueryPort is the TUI-facing subset of the pipeline.
type QueryPort interface {
	Execute(ctx context.Context, req pipeline.Request) (*pipeline.Response, error)
}

// queryTimeout bounds one pipeline round trip from the chat view.
const queryTimeout = 2 * time.Minute

// Model is the Bubble Tea model for the chat session.
type Model struct {
	service  QueryPort
	domain   string
	input    textinput.Model
	viewport viewport.Model

	transcript []string
	status     string
	ready      bool
	waiting    bool
}

// responseMsg delivers a finished pipeline round trip back to Update.
type responseMsg struct {
	query string
	resp  *pipeline.Response
	err   error
}

// New creates a chat model bound to one domain.
func New(service QueryPort, domain string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type a query and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		service:  service,
		domain:   domain,
		input:    ti,
		viewport: vp,
		status:   "Connected to domain " + domain + ". Ctrl+C to quit.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window, and response events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + qh + 1 // header, status, input frame, spacer
		vh := msg.Height - reserved - th
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = maxInt(20, msg.Width)
		m.viewport.Height = vh
		m.viewport.SetContent(m.renderTranscript())
		return m, nil

	case responseMsg:
		m.waiting = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.transcript = append(m.transcript,
				youStyle.Render("You: ")+msg.query,
				sageStyle.Render("Sage: ")+msg.resp.Response,
			)
			m.status = fmt.Sprintf("source=%s confidence=%.2f %dms",
				msg.resp.Source, msg.resp.Confidence, msg.resp.ProcessingTimeMS)
		}
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" && !m.waiting {
				m.input.Reset()
				m.waiting = true
				m.status = "Thinking..."
				return m, m.ask(q)
			}
		case "up":
			m.viewport.ScrollUp(1)
			return m, nil
		case "down":
			m.viewport.ScrollDown(1)
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the chat layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("sage chat — " + m.domain)
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + transcript + "\n" + input + "\n" + status
}

func (m Model) ask(query string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
		defer cancel()

		resp, err := m.service.Execute(ctx, pipeline.Request{
			Domain: m.domain,
			Query:  query,
		})
		return responseMsg{query: query, resp: resp, err: err}
	}
}

func (m Model) renderTranscript() string {
	if len(m.transcript) == 0 {
		return "No messages yet."
	}
	return strings.Join(m.transcript, "\n\n")
}

var (
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	youStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	sageStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
