// Copyright (c) 2025 The olladesk Authors
// SPDX-License-Identifier: MIT

package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"olladesk/internal/session"
)

// =============================================================================
// UPDATE
// =============================================================================

// Update is the bubbletea message handler.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.refreshTranscript()
		m.ready = true
		return m, nil

	case SnapshotMsg:
		wasStreaming := m.snap.Streaming
		m.snap = session.Snapshot(msg)
		m.refreshTranscript()
		if m.snap.Streaming || wasStreaming {
			if m.snap.Settings.AutoScroll {
				m.viewport.GotoBottom()
			}
		}
		return m, nil

	case sendDoneMsg:
		m.sendErr = msg.err
		return m, nil

	case tea.KeyMsg:
		if model, cmd, handled := m.handleKey(msg); handled {
			return model, cmd
		}

	default:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	// Unhandled input flows into the focused widgets.
	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	cmds = append(cmds, cmd)

	if m.searchMode && m.textarea.Value() != m.snap.SearchQuery {
		m.engine.SetSearchQuery(m.textarea.Value())
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// handleKey processes global key bindings. Returns handled=false for
// keys that should reach the textarea and viewport.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+c":
		m.engine.StopStreaming()
		return m, tea.Quit, true

	case "esc":
		if m.snap.Streaming {
			m.engine.StopStreaming()
			return m, nil, true
		}
		if m.searchMode {
			m = m.exitSearch()
			return m, nil, true
		}
		return m, nil, true

	case "enter":
		if m.searchMode {
			m = m.openFirstResult()
			return m, nil, true
		}
		text := strings.TrimSpace(m.textarea.Value())
		if text == "" || m.snap.Streaming {
			return m, nil, true
		}
		m.textarea.Reset()
		m.sendErr = nil
		return m, m.sendCmd(text), true

	case "ctrl+n":
		m.engine.CreateChat()
		return m, nil, true

	case "ctrl+r":
		if !m.snap.Streaming {
			m.sendErr = nil
			return m, m.regenerateCmd(), true
		}
		return m, nil, true

	case "ctrl+f":
		m = m.enterSearch()
		return m, nil, true

	case "ctrl+b":
		m.showSidebar = !m.showSidebar
		m.layout()
		m.refreshTranscript()
		return m, nil, true

	case "ctrl+x":
		if id := m.snap.ActiveChatID; id != "" && !m.snap.Streaming {
			m.engine.DeleteChat(id)
		}
		return m, nil, true

	case "tab", "shift+tab":
		m.cycleChat(msg.String() == "tab")
		return m, nil, true
	}

	return m, nil, false
}

// cycleChat moves the active chat forward or backward in list order.
func (m *Model) cycleChat(forward bool) {
	n := len(m.snap.Chats)
	if n < 2 {
		return
	}
	idx := 0
	for i, c := range m.snap.Chats {
		if c.ID == m.snap.ActiveChatID {
			idx = i
			break
		}
	}
	if forward {
		idx = (idx + 1) % n
	} else {
		idx = (idx - 1 + n) % n
	}
	m.engine.SetActiveChat(m.snap.Chats[idx].ID)
}

// =============================================================================
// SEARCH MODE
// =============================================================================

func (m Model) enterSearch() Model {
	m.searchMode = true
	m.textarea.Reset()
	m.textarea.Placeholder = "Search chats..."
	return m
}

func (m Model) exitSearch() Model {
	m.searchMode = false
	m.textarea.Reset()
	m.textarea.Placeholder = "Send a message..."
	m.engine.SetSearchQuery("")
	return m
}

func (m Model) openFirstResult() Model {
	results := m.snap.SearchResults
	if len(results) > 0 {
		m.engine.SetActiveChat(results[0].Chat.ID)
	}
	return m.exitSearch()
}

// =============================================================================
// LAYOUT
// =============================================================================

// layout resizes the widgets to the current terminal dimensions.
func (m *Model) layout() {
	transcriptWidth := m.width
	if m.showSidebar {
		transcriptWidth -= sidebarWidth
	}
	if transcriptWidth < 20 {
		transcriptWidth = 20
	}

	inputHeight := m.textarea.Height() + 1 // top border
	statusHeight := 1
	titleHeight := 1
	transcriptHeight := m.height - inputHeight - statusHeight - titleHeight
	if transcriptHeight < 3 {
		transcriptHeight = 3
	}

	if m.viewport.Width == 0 {
		m.viewport = viewport.New(transcriptWidth, transcriptHeight)
	} else {
		m.viewport.Width = transcriptWidth
		m.viewport.Height = transcriptHeight
	}
	m.textarea.SetWidth(m.width - 2)
}

// refreshTranscript re-renders the viewport from the current snapshot.
func (m *Model) refreshTranscript() {
	if m.viewport.Width == 0 {
		return
	}
	m.viewport.SetContent(m.renderTranscript())
}
