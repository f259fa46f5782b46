// Copyright (c) 2025 The olladesk Authors
// SPDX-License-Identifier: MIT

// Package search locates and ranks matches for a query across chats.
// It is a stateless leaf: a pure function over in-memory values.
package search

import (
	"strings"
	"unicode"

	"olladesk/internal/model"
)

// snippetContext is how many runes of context surround a message match.
const snippetContext = 30

// MatchType says which part of a chat matched the query.
type MatchType string

const (
	MatchTitle   MatchType = "title"
	MatchMessage MatchType = "message"
)

// Result is one matching chat. Snippet is only set for message matches.
type Result struct {
	Chat      model.Chat
	MatchType MatchType
	Snippet   string
}

// Chats returns the chats matching query, in the order the chats were
// given. Matching is a case-insensitive substring test: a title match
// wins without scanning messages; otherwise the first matching message
// supplies a context snippet. Archived chats are excluded
// unconditionally. A blank query yields no results — the caller decides
// whether that means "show everything".
func Chats(chats []model.Chat, query string) []Result {
	q := []rune(strings.ToLower(strings.TrimSpace(query)))
	if len(q) == 0 {
		return nil
	}

	var results []Result
	for _, chat := range chats {
		if chat.Archived {
			continue
		}

		if indexFold([]rune(chat.Title), q) >= 0 {
			results = append(results, Result{Chat: chat, MatchType: MatchTitle})
			continue
		}

		for _, msg := range chat.Messages {
			content := []rune(msg.Content)
			idx := indexFold(content, q)
			if idx < 0 {
				continue
			}
			results = append(results, Result{
				Chat:      chat,
				MatchType: MatchMessage,
				Snippet:   snippet(content, idx, len(q)),
			})
			break
		}
	}
	return results
}

// indexFold returns the rune index of the first case-insensitive match
// of query in content, or -1. Both sides are compared rune by rune
// under unicode.ToLower: case mapping can change a rune's byte length,
// so a byte offset found in a lowered copy must never be applied to
// the original string.
func indexFold(content, query []rune) int {
	if len(query) == 0 || len(query) > len(content) {
		return -1
	}
	for i := 0; i+len(query) <= len(content); i++ {
		match := true
		for j, qr := range query {
			if unicode.ToLower(content[i+j]) != qr {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// snippet extracts the matched runes with surrounding context in the
// original casing, marking truncation with ellipses.
func snippet(content []rune, matchStart, matchLen int) string {
	start := matchStart - snippetContext
	if start < 0 {
		start = 0
	}
	end := matchStart + matchLen + snippetContext
	if end > len(content) {
		end = len(content)
	}

	var sb strings.Builder
	if start > 0 {
		sb.WriteString("…")
	}
	sb.WriteString(string(content[start:end]))
	if end < len(content) {
		sb.WriteString("…")
	}
	return sb.String()
}
