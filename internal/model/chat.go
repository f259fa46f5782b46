// Copyright (c) 2025 The olladesk Authors
// SPDX-License-Identifier: MIT

package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultTitle is the title given to a chat before its first message.
const DefaultTitle = "New Chat"

// titleMaxLen is how many runes of the first user message become the
// auto-generated title.
const titleMaxLen = 50

// =============================================================================
// CHAT TYPE
// =============================================================================

// Chat holds a titled, ordered sequence of messages with one associated
// model. Chats are replaced wholesale on mutation (copy-on-write), so a
// value handed to an observer is never changed underneath it.
type Chat struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Archived  bool      `json:"archived"`
	Messages  []Message `json:"messages"`
}

// NewChat creates a new empty chat for the given model.
func NewChat(modelName string) Chat {
	now := time.Now()
	return Chat{
		ID:        uuid.NewString(),
		Title:     DefaultTitle,
		Model:     modelName,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []Message{},
	}
}

// =============================================================================
// COPY-ON-WRITE HELPERS
// =============================================================================

// WithMessages returns a copy of the chat carrying the given message
// slice and a bumped UpdatedAt.
func (c Chat) WithMessages(messages []Message) Chat {
	c.Messages = messages
	c.UpdatedAt = time.Now()
	return c
}

// WithTitle returns a copy of the chat with the given title and a bumped
// UpdatedAt.
func (c Chat) WithTitle(title string) Chat {
	c.Title = title
	c.UpdatedAt = time.Now()
	return c
}

// WithArchived returns a copy of the chat with the archived flag set and
// a bumped UpdatedAt.
func (c Chat) WithArchived(archived bool) Chat {
	c.Archived = archived
	c.UpdatedAt = time.Now()
	return c
}

// AppendMessages returns a copy of the chat with the given messages
// appended. The original message slice is not modified.
func (c Chat) AppendMessages(msgs ...Message) Chat {
	combined := make([]Message, 0, len(c.Messages)+len(msgs))
	combined = append(combined, c.Messages...)
	combined = append(combined, msgs...)
	return c.WithMessages(combined)
}

// ReplaceLastMessage returns a copy of the chat with the trailing message
// replaced. No-op if the chat has no messages.
func (c Chat) ReplaceLastMessage(msg Message) Chat {
	if len(c.Messages) == 0 {
		return c
	}
	messages := make([]Message, len(c.Messages))
	copy(messages, c.Messages)
	messages[len(messages)-1] = msg
	c.Messages = messages
	return c
}

// Duplicate returns a deep copy of the chat with a fresh ID and fresh
// timestamps.
func (c Chat) Duplicate() Chat {
	now := time.Now()
	dup := c
	dup.ID = uuid.NewString()
	dup.CreatedAt = now
	dup.UpdatedAt = now
	dup.Messages = make([]Message, len(c.Messages))
	copy(dup.Messages, c.Messages)
	return dup
}

// =============================================================================
// ACCESSORS
// =============================================================================

// LastMessage returns the most recent message and true, or a zero value
// and false if the chat is empty.
func (c Chat) LastMessage() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// MessageCount returns the number of messages.
func (c Chat) MessageCount() int {
	return len(c.Messages)
}

// IsEmpty returns true if the chat has no messages.
func (c Chat) IsEmpty() bool {
	return len(c.Messages) == 0
}

// TitleFromContent derives a chat title from the first user message.
func TitleFromContent(content string) string {
	content = strings.TrimSpace(content)
	content = strings.ReplaceAll(content, "\n", " ")
	runes := []rune(content)
	if len(runes) <= titleMaxLen {
		return content
	}
	return string(runes[:titleMaxLen]) + "..."
}

// =============================================================================
// MODEL ROSTER TYPE
// =============================================================================

// ModelInfo describes one model available on the backend roster.
// Read-only; never persisted locally.
type ModelInfo struct {
	Name       string    `json:"name"`
	Model      string    `json:"model"`
	ModifiedAt time.Time `json:"modified_at"`
	Size       int64     `json:"size"`
	Digest     string    `json:"digest"`
}

// FormatSize formats the model size in human-readable form.
func (m ModelInfo) FormatSize() string {
	const (
		kb = 1 << 10
		mb = 1 << 20
		gb = 1 << 30
	)
	switch {
	case m.Size >= gb:
		return fmt.Sprintf("%.1f GB", float64(m.Size)/gb)
	case m.Size >= mb:
		return fmt.Sprintf("%.1f MB", float64(m.Size)/mb)
	case m.Size >= kb:
		return fmt.Sprintf("%.1f KB", float64(m.Size)/kb)
	default:
		return fmt.Sprintf("%d B", m.Size)
	}
}
