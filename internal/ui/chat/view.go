// Copyright (c) 2025 The olladesk Authors
// SPDX-License-Identifier: MIT

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"olladesk/internal/model"
	"olladesk/internal/ui/styles"
)

// =============================================================================
// VIEW
// =============================================================================

// View renders the full frame: sidebar, title, transcript, composer,
// and status line.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	main := lipgloss.JoinVertical(lipgloss.Left,
		m.renderTitle(),
		m.viewport.View(),
		styles.InputFrame.Width(m.width).Render(m.textarea.View()),
		m.renderStatus(),
	)

	if !m.showSidebar {
		return main
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(), main)
}

func (m Model) renderTitle() string {
	active, ok := m.snap.ActiveChat()
	if !ok {
		return styles.Title.Render("olladesk") + styles.StatusBar.Render("  ctrl+n new chat")
	}
	title := styles.Title.Render(active.Title)
	if active.Model != "" {
		title += styles.StatusBar.Render("  [" + active.Model + "]")
	}
	return title
}

// =============================================================================
// SIDEBAR
// =============================================================================

func (m Model) renderSidebar() string {
	var b strings.Builder

	if m.searchMode {
		b.WriteString(styles.Title.Render("Search"))
		b.WriteString("\n\n")
		if len(m.snap.SearchResults) == 0 && m.snap.SearchQuery != "" {
			b.WriteString(styles.SidebarItem.Render("no matches"))
		}
		for _, r := range m.snap.SearchResults {
			b.WriteString(styles.SidebarActive.Render(truncate(r.Chat.Title, sidebarWidth-3)))
			b.WriteString("\n")
			if r.Snippet != "" {
				b.WriteString(styles.SearchMatch.Render(truncate(r.Snippet, sidebarWidth-3)))
				b.WriteString("\n")
			}
		}
	} else {
		b.WriteString(styles.Title.Render("Chats"))
		b.WriteString("\n\n")
		for _, c := range m.snap.Chats {
			b.WriteString(m.renderSidebarItem(c))
			b.WriteString("\n")
		}
	}

	return styles.Sidebar.
		Width(sidebarWidth - 1).
		Height(m.height).
		Render(b.String())
}

func (m Model) renderSidebarItem(c model.Chat) string {
	label := truncate(c.Title, sidebarWidth-3)
	switch {
	case c.ID == m.snap.ActiveChatID:
		return styles.SidebarActive.Render("> " + label)
	case c.Archived:
		return styles.SidebarArchived.Render("  " + label)
	default:
		return styles.SidebarItem.Render("  " + label)
	}
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// renderTranscript produces the viewport content for the active chat.
func (m Model) renderTranscript() string {
	active, ok := m.snap.ActiveChat()
	if !ok {
		return styles.StatusBar.Render("No chat selected. ctrl+n starts a new one.")
	}
	if active.IsEmpty() {
		return styles.StatusBar.Render("Type a message to begin.")
	}

	var b strings.Builder
	for i, msg := range active.Messages {
		if i > 0 && !m.snap.Settings.CompactMode {
			b.WriteString("\n")
		}
		b.WriteString(m.renderMessage(msg))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderMessage(msg model.Message) string {
	var label string
	switch msg.Role {
	case model.RoleUser:
		label = styles.UserLabel.Render(msg.Role.DisplayName())
	case model.RoleAssistant:
		label = styles.AssistantLabel.Render(msg.Role.DisplayName())
	default:
		label = styles.Timestamp.Render(msg.Role.DisplayName())
	}

	if m.snap.Settings.ShowTimestamps {
		label += styles.Timestamp.Render("  " + msg.Timestamp.Format("15:04"))
	}

	content := msg.Content
	if msg.Role == model.RoleAssistant && msg.IsEmpty() && m.snap.Streaming {
		content = m.spinner.View()
	}
	if strings.HasPrefix(content, "Error: ") {
		content = styles.ErrorText.Render(content)
	}

	return label + "\n" + content
}

// =============================================================================
// STATUS LINE
// =============================================================================

func (m Model) renderStatus() string {
	var parts []string

	if m.snap.Connected {
		parts = append(parts, styles.StatusConnected.Render("* connected"))
	} else {
		parts = append(parts, styles.StatusOffline.Render("* offline"))
	}

	if m.snap.SelectedModel != "" {
		parts = append(parts, m.snap.SelectedModel)
	}

	if m.snap.Streaming {
		parts = append(parts, m.spinner.View()+" generating (esc to stop)")
	}

	if m.sendErr != nil {
		parts = append(parts, styles.ErrorText.Render(m.sendErr.Error()))
	}

	parts = append(parts, "ctrl+n new | ctrl+f search | ctrl+r retry | tab switch")

	return styles.StatusBar.Render(strings.Join(parts, "  "))
}

// truncate shortens s to max runes with a trailing ellipsis.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 1 {
		return string(runes[:max])
	}
	return string(runes[:max-1]) + "…"
}
