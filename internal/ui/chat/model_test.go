// Copyright (c) 2025 The olladesk Authors
// SPDX-License-Identifier: MIT

package chat

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"olladesk/internal/config"
	"olladesk/internal/model"
	"olladesk/internal/ollama"
	"olladesk/internal/session"
)

// =============================================================================
// FAKES
// =============================================================================

type nullStore struct{}

func (nullStore) GetAll() ([]model.Chat, error)          { return nil, nil }
func (nullStore) Put(model.Chat) error                   { return nil }
func (nullStore) Delete(string) error                    { return nil }
func (nullStore) ClearAll() error                        { return nil }
func (nullStore) LoadSettings() (config.Settings, error) { return config.DefaultSettings(), nil }
func (nullStore) SaveSettings(config.Settings) error     { return nil }

type nullClient struct{}

func (nullClient) ListModels(context.Context) ([]model.ModelInfo, error) { return nil, nil }
func (nullClient) CheckReachable(context.Context) bool                   { return false }
func (nullClient) StreamGenerate(context.Context, string, []ollama.ChatMessage, *ollama.Options) (session.TokenStream, error) {
	return nil, &ollama.ClientError{Kind: ollama.KindUnreachable, Message: "offline"}
}

func newTestModel(t *testing.T) Model {
	t.Helper()
	engine := session.New(nullStore{}, nullClient{}, nil)
	m := New(engine)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return updated.(Model)
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "ctrl+n":
		return tea.KeyMsg{Type: tea.KeyCtrlN}
	case "ctrl+b":
		return tea.KeyMsg{Type: tea.KeyCtrlB}
	case "ctrl+f":
		return tea.KeyMsg{Type: tea.KeyCtrlF}
	case "ctrl+x":
		return tea.KeyMsg{Type: tea.KeyCtrlX}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func press(m Model, s string) Model {
	updated, _ := m.Update(key(s))
	next := updated.(Model)
	// The UI re-reads state through snapshots; pull one directly since
	// no program loop is running in tests.
	refreshed, _ := next.Update(SnapshotMsg(next.engine.Snapshot()))
	return refreshed.(Model)
}

// =============================================================================
// KEY HANDLING TESTS
// =============================================================================

func TestNewChatKey(t *testing.T) {
	m := newTestModel(t)
	if len(m.snap.Chats) != 0 {
		t.Fatal("expected no chats initially")
	}

	m = press(m, "ctrl+n")
	if len(m.snap.Chats) != 1 {
		t.Fatalf("expected 1 chat after ctrl+n, got %d", len(m.snap.Chats))
	}
	if m.snap.ActiveChatID != m.snap.Chats[0].ID {
		t.Error("new chat should become active")
	}
}

func TestDeleteChatKey(t *testing.T) {
	m := newTestModel(t)
	m = press(m, "ctrl+n")
	m = press(m, "ctrl+x")

	if len(m.snap.Chats) != 0 {
		t.Errorf("expected no chats after delete, got %d", len(m.snap.Chats))
	}
	if m.snap.ActiveChatID != "" {
		t.Error("deleting the only chat should clear the active id")
	}
}

func TestTabCyclesChats(t *testing.T) {
	m := newTestModel(t)
	m = press(m, "ctrl+n")
	first := m.snap.ActiveChatID
	m = press(m, "ctrl+n")
	second := m.snap.ActiveChatID

	if first == second {
		t.Fatal("expected two distinct chats")
	}

	m = press(m, "tab")
	if m.snap.ActiveChatID == second {
		t.Error("tab should move to the other chat")
	}
	m = press(m, "tab")
	if m.snap.ActiveChatID != second {
		t.Error("tab should wrap around")
	}
}

func TestSidebarToggle(t *testing.T) {
	m := newTestModel(t)
	if !m.showSidebar {
		t.Fatal("sidebar should start visible")
	}
	m = press(m, "ctrl+b")
	if m.showSidebar {
		t.Error("ctrl+b should hide the sidebar")
	}
	m = press(m, "ctrl+b")
	if !m.showSidebar {
		t.Error("ctrl+b should show the sidebar again")
	}
}

func TestSearchModeTransitions(t *testing.T) {
	m := newTestModel(t)
	m = press(m, "ctrl+f")
	if !m.searchMode {
		t.Fatal("ctrl+f should enter search mode")
	}
	m = press(m, "esc")
	if m.searchMode {
		t.Error("esc should leave search mode")
	}
	if m.snap.SearchQuery != "" {
		t.Error("leaving search mode should clear the query")
	}
}

func TestEnterIgnoresEmptyInput(t *testing.T) {
	m := newTestModel(t)
	m = press(m, "ctrl+n")

	updated, cmd := m.Update(key("enter"))
	m = updated.(Model)
	if cmd != nil {
		t.Error("enter with an empty composer must not send")
	}
}

// =============================================================================
// VIEW TESTS
// =============================================================================

func TestViewRendersStates(t *testing.T) {
	m := newTestModel(t)

	view := m.View()
	if !strings.Contains(view, "offline") {
		t.Error("status line should show connectivity")
	}

	m = press(m, "ctrl+n")
	view = m.View()
	if !strings.Contains(view, model.DefaultTitle) {
		t.Error("sidebar should list the new chat")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"a very long title here", 10, "a very lo…"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
