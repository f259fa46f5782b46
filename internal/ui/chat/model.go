// Copyright (c) 2025 The olladesk Authors
// SPDX-License-Identifier: MIT

// Package chat provides the main TUI view: a sidebar of chats, the
// active transcript, a composer, and a status line. It is a thin layer
// over the session engine — every mutation goes through engine
// operations, and all displayed state comes from engine snapshots
// delivered as messages.
package chat

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"olladesk/internal/session"
	"olladesk/internal/ui/styles"
)

const sidebarWidth = 28

// =============================================================================
// MESSAGES
// =============================================================================

// SnapshotMsg carries a new engine snapshot into the update loop. The
// engine subscriber forwards these with program.Send.
type SnapshotMsg session.Snapshot

// sendDoneMsg reports the terminal result of a blocking generation.
type sendDoneMsg struct {
	err error
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the bubbletea model for the chat view.
type Model struct {
	engine *session.Engine
	snap   session.Snapshot

	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model

	width  int
	height int
	ready  bool

	showSidebar bool
	searchMode  bool
	sendErr     error
}

// New creates the chat view over an engine. The initial snapshot seeds
// the view; later snapshots arrive as SnapshotMsg.
func New(engine *session.Engine) Model {
	ta := textarea.New()
	ta.Placeholder = "Send a message..."
	ta.Prompt = "> "
	ta.ShowLineNumbers = false
	ta.SetHeight(3)
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(styles.ColorPrimary)

	return Model{
		engine:      engine,
		snap:        engine.Snapshot(),
		textarea:    ta,
		spinner:     sp,
		showSidebar: true,
	}
}

// Init starts the cursor blink and the spinner tick.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick)
}

// =============================================================================
// COMMANDS
// =============================================================================

// sendCmd runs one blocking generation off the update loop. Progress
// arrives through snapshots; the returned message only carries guard
// violations.
func (m Model) sendCmd(text string) tea.Cmd {
	engine := m.engine
	return func() tea.Msg {
		return sendDoneMsg{err: engine.SendMessage(context.Background(), text)}
	}
}

// regenerateCmd re-runs the last exchange of the active chat.
func (m Model) regenerateCmd() tea.Cmd {
	engine := m.engine
	return func() tea.Msg {
		return sendDoneMsg{err: engine.RegenerateLastResponse(context.Background())}
	}
}
