// Copyright (c) 2025 The olladesk Authors
// SPDX-License-Identifier: MIT

// Package styles provides the visual styling system for the olladesk TUI.
package styles

import "github.com/charmbracelet/lipgloss"

// =============================================================================
// COLOR PALETTE
// =============================================================================

var (
	ColorPrimary = lipgloss.Color("86")  // cyan
	ColorAccent  = lipgloss.Color("212") // pink
	ColorMuted   = lipgloss.Color("241") // gray
	ColorError   = lipgloss.Color("196") // red
	ColorOK      = lipgloss.Color("42")  // green
	ColorBorder  = lipgloss.Color("238")
)

// =============================================================================
// MESSAGE STYLES
// =============================================================================

var (
	// UserLabel marks the user's turns in the transcript.
	UserLabel = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true)

	// AssistantLabel marks the model's turns in the transcript.
	AssistantLabel = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true)

	// Timestamp renders the optional per-message timestamp.
	Timestamp = lipgloss.NewStyle().
			Foreground(ColorMuted)

	// ErrorText renders failure annotations and status errors.
	ErrorText = lipgloss.NewStyle().
			Foreground(ColorError)
)

// =============================================================================
// LAYOUT STYLES
// =============================================================================

var (
	// Sidebar frames the chat list on the left.
	Sidebar = lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, true, false, false).
		BorderForeground(ColorBorder).
		PaddingRight(1)

	// SidebarItem renders one chat entry.
	SidebarItem = lipgloss.NewStyle().
			Foreground(ColorMuted)

	// SidebarActive renders the active chat entry.
	SidebarActive = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true)

	// SidebarArchived renders archived entries.
	SidebarArchived = lipgloss.NewStyle().
			Foreground(ColorMuted).
			Faint(true)

	// StatusBar is the bottom status line.
	StatusBar = lipgloss.NewStyle().
			Foreground(ColorMuted)

	// StatusConnected and StatusOffline are the connectivity dots.
	StatusConnected = lipgloss.NewStyle().Foreground(ColorOK)
	StatusOffline   = lipgloss.NewStyle().Foreground(ColorError)

	// InputFrame surrounds the message composer.
	InputFrame = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), true, false, false, false).
			BorderForeground(ColorBorder)

	// SearchMatch highlights matched snippets in search results.
	SearchMatch = lipgloss.NewStyle().
			Foreground(ColorAccent)

	// Title renders the active chat title above the transcript.
	Title = lipgloss.NewStyle().
		Foreground(ColorPrimary).
		Bold(true)
)
