// Copyright (c) 2025 The olladesk Authors
// SPDX-License-Identifier: MIT

package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"olladesk/internal/model"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrorKind categorizes client errors for handling.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindUnreachable: connection refused or probe timeout.
	KindUnreachable
	// KindBadResponse: non-success HTTP status from the backend.
	KindBadResponse
	// KindCancelled: the caller aborted the request or stream.
	KindCancelled
	// KindStreamRead: transport-level interruption mid-stream.
	KindStreamRead
)

// ClientError represents an error from the Ollama client. All kinds are
// recoverable from the caller's perspective.
type ClientError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ErrUnreachable is the sentinel for a backend that cannot be reached.
var ErrUnreachable = &ClientError{Kind: KindUnreachable, Message: "ollama is not reachable"}

// IsUnreachable reports whether err indicates the backend is down.
func IsUnreachable(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce) && ce.Kind == KindUnreachable
}

// IsCancelled reports whether err is an explicit abort rather than a
// transport failure.
func IsCancelled(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce) && ce.Kind == KindCancelled
}

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the Ollama client.
type ClientConfig struct {
	// BaseURL is the Ollama API base URL (default: http://127.0.0.1:11434).
	// An explicit IPv4 address avoids IPv6 resolution issues on Windows.
	BaseURL string

	// Timeout bounds non-streaming requests so a dead backend is
	// detected promptly (default: 5s). The generation stream itself has
	// no timeout.
	Timeout time.Duration
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() ClientConfig {
	return ClientConfig{
		BaseURL: "http://127.0.0.1:11434",
		Timeout: 5 * time.Second,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client handles communication with the Ollama API. It is safe for
// concurrent use.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	// No Timeout on the stream client: a human may wait indefinitely
	// for a slow model; cancellation is handled via context.
	streamClient *http.Client
}

// NewClient creates a new Ollama client with default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a new Ollama client, filling defaults for
// any zero values.
func NewClientWithConfig(config ClientConfig) *Client {
	if config.BaseURL == "" {
		config.BaseURL = "http://127.0.0.1:11434"
	}
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}
	return &Client{
		config:       config,
		httpClient:   &http.Client{Timeout: config.Timeout},
		streamClient: &http.Client{},
	}
}

// =============================================================================
// MODEL ROSTER
// =============================================================================

// ListModels retrieves the model roster from /api/tags. A missing
// "models" field is treated as an empty roster.
func (c *Client) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/api/tags", nil)
	if err != nil {
		return nil, &ClientError{Kind: KindUnreachable, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, &ClientError{Kind: KindCancelled, Message: "request cancelled", Cause: err}
		}
		return nil, &ClientError{Kind: KindUnreachable, Message: "failed to list models", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ClientError{
			Kind:    KindBadResponse,
			Message: "failed to list models: " + resp.Status,
		}
	}

	var result ListModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ClientError{Kind: KindBadResponse, Message: "failed to decode roster", Cause: err}
	}

	return result.Models, nil
}

// CheckReachable reduces ListModels to a boolean liveness probe,
// suppressing the underlying error.
func (c *Client) CheckReachable(ctx context.Context) bool {
	_, err := c.ListModels(ctx)
	return err == nil
}

// =============================================================================
// STREAMING CHAT
// =============================================================================

// StreamGenerate issues a streaming chat-completion request and returns
// a pull iterator over the text increments. The caller must drain or
// Close the stream. Cancelling ctx aborts the underlying transport; the
// stream then reports a KindCancelled error.
func (c *Client) StreamGenerate(ctx context.Context, modelName string, history []ChatMessage, opts *Options) (*Stream, error) {
	reqBody := ChatRequest{
		Model:    modelName,
		Messages: history,
		Stream:   true,
		Options:  opts,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &ClientError{Kind: KindUnknown, Message: "failed to marshal request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, &ClientError{Kind: KindUnreachable, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, &ClientError{Kind: KindCancelled, Message: "request cancelled", Cause: err}
		}
		return nil, &ClientError{Kind: KindUnreachable, Message: "failed to reach ollama", Cause: err}
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		var apiErr apiError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return nil, &ClientError{Kind: KindBadResponse, Message: apiErr.Error}
		}
		return nil, &ClientError{Kind: KindBadResponse, Message: "chat request failed: " + resp.Status}
	}

	return NewStream(ctx, resp.Body), nil
}

// BaseURL returns the configured backend base address.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}
