// Copyright (c) 2025 The olladesk Authors
// SPDX-License-Identifier: MIT

// Package ollama provides the HTTP client for communicating with the
// Ollama API, including incremental decoding of streamed chat responses.
package ollama

import "olladesk/internal/model"

// =============================================================================
// REQUEST TYPES
// =============================================================================

// ChatMessage is one turn of history sent to /api/chat.
type ChatMessage struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// Options contains sampling parameters for a generation. Fields left nil
// are omitted from the request entirely so the backend's own defaults
// apply.
type Options struct {
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	NumPredict  *int     `json:"num_predict,omitempty"`
}

// ChatRequest is the request body for the /api/chat endpoint.
type ChatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  *Options      `json:"options,omitempty"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// ListModelsResponse is the response from the /api/tags endpoint.
type ListModelsResponse struct {
	Models []model.ModelInfo `json:"models"`
}

// apiError is the error body the backend returns on non-success status.
type apiError struct {
	Error string `json:"error"`
}

// =============================================================================
// HELPER CONSTRUCTORS
// =============================================================================

// NewChatMessage builds a wire message from a role and content.
func NewChatMessage(role model.Role, content string) ChatMessage {
	return ChatMessage{Role: role.String(), Content: content}
}

// Float64 returns a pointer to v, for filling optional Options fields.
func Float64(v float64) *float64 { return &v }

// Int returns a pointer to v, for filling optional Options fields.
func Int(v int) *int { return &v }
