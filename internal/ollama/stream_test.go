// Copyright (c) 2025 The olladesk Authors
// SPDX-License-Identifier: MIT

package ollama

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

func streamOver(body string) *Stream {
	return NewStream(context.Background(), io.NopCloser(strings.NewReader(body)))
}

func collect(t *testing.T, s *Stream) []string {
	t.Helper()
	var tokens []string
	for {
		token, err := s.Next()
		if err == io.EOF {
			return tokens
		}
		if err != nil {
			t.Fatalf("unexpected stream error: %v", err)
		}
		tokens = append(tokens, token)
	}
}

// =============================================================================
// FRAMING TESTS
// =============================================================================

func TestStreamTokenOrder(t *testing.T) {
	body := `{"message":{"content":"The"},"done":false}
{"message":{"content":" quick"},"done":false}
{"message":{"content":" fox"},"done":false}
{"message":{"content":""},"done":true}
`
	tokens := collect(t, streamOver(body))
	if got := strings.Join(tokens, ""); got != "The quick fox" {
		t.Errorf("expected 'The quick fox', got %q", got)
	}
}

func TestStreamChunkingInvariance(t *testing.T) {
	// The same frames delivered one byte at a time must concatenate to
	// the same text: framing is by newline, not by network read.
	body := `{"message":{"content":"Hel"},"done":false}
{"message":{"content":"lo"},"done":true}
`
	reader := iotest.OneByteReader(strings.NewReader(body))
	s := NewStream(context.Background(), io.NopCloser(reader))

	tokens := collect(t, s)
	if got := strings.Join(tokens, ""); got != "Hello" {
		t.Errorf("expected 'Hello', got %q", got)
	}
}

func TestStreamSkipsMalformedLines(t *testing.T) {
	body := `{"message":{"content":"ok"},"done":false}
this is not json
{"unrelated":true}

{"message":{"content":" fine"},"done":true}
`
	tokens := collect(t, streamOver(body))
	if got := strings.Join(tokens, ""); got != "ok fine" {
		t.Errorf("malformed lines should be skipped, got %q", got)
	}
}

func TestStreamParsesUnterminatedTail(t *testing.T) {
	// No trailing newline: the final buffered line still gets parsed.
	body := `{"message":{"content":"almost"},"done":false}` + "\n" +
		`{"message":{"content":" done"},"done":true}`
	tokens := collect(t, streamOver(body))
	if got := strings.Join(tokens, ""); got != "almost done" {
		t.Errorf("expected 'almost done', got %q", got)
	}
}

func TestStreamDoneStopsIteration(t *testing.T) {
	// Frames after done:true are never surfaced.
	body := `{"message":{"content":"final"},"done":true}
{"message":{"content":"ghost"},"done":false}
`
	s := streamOver(body)
	tokens := collect(t, s)
	if len(tokens) != 1 || tokens[0] != "final" {
		t.Errorf("expected only 'final', got %v", tokens)
	}

	// The stream stays exhausted.
	if _, err := s.Next(); err != io.EOF {
		t.Errorf("expected io.EOF after completion, got %v", err)
	}
}

func TestStreamEmptyBody(t *testing.T) {
	tokens := collect(t, streamOver(""))
	if len(tokens) != 0 {
		t.Errorf("expected no tokens, got %v", tokens)
	}
}

// =============================================================================
// ERROR TESTS
// =============================================================================

func TestStreamTransportError(t *testing.T) {
	pr, pw := io.Pipe()
	s := NewStream(context.Background(), pr)

	go func() {
		pw.Write([]byte(`{"message":{"content":"partial"},"done":false}` + "\n"))
		pw.CloseWithError(errors.New("connection reset"))
	}()

	token, err := s.Next()
	if err != nil || token != "partial" {
		t.Fatalf("expected first token, got %q, %v", token, err)
	}

	_, err = s.Next()
	var ce *ClientError
	if !errors.As(err, &ce) || ce.Kind != KindStreamRead {
		t.Errorf("expected KindStreamRead, got %v", err)
	}
}

func TestStreamCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pr, pw := io.Pipe()
	s := NewStream(ctx, pr)

	cancel()
	go pw.CloseWithError(context.Canceled)

	_, err := s.Next()
	if !IsCancelled(err) {
		t.Errorf("expected cancelled error, got %v", err)
	}
}
