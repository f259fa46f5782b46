// Copyright (c) 2025 The olladesk Authors
// SPDX-License-Identifier: MIT

package ollama

import (
	"bufio"
	"bytes"
	"context"
	"io"

	"github.com/tidwall/gjson"
)

// =============================================================================
// STREAM
// =============================================================================

// Stream is a pull iterator over the text increments of one streaming
// generation. The response body is a sequence of newline-delimited JSON
// objects; a line may span multiple network reads, so partial lines are
// buffered until their terminating newline arrives. Lines that fail to
// parse are skipped, not fatal.
//
// A Stream is finite and non-restartable. It is not safe for concurrent
// use; a single consumer drives it in a loop.
type Stream struct {
	ctx    context.Context
	body   io.ReadCloser
	reader *bufio.Reader
	done   bool
}

// NewStream creates a stream over a response body. The context is the
// one the request was issued with; cancelling it aborts the transport.
func NewStream(ctx context.Context, body io.ReadCloser) *Stream {
	return &Stream{
		ctx:    ctx,
		body:   body,
		reader: bufio.NewReader(body),
	}
}

// Next returns the next text increment. It returns io.EOF when the
// generation is complete, a KindCancelled error if the context was
// cancelled, and a KindStreamRead error on transport interruption.
// After any error the stream is exhausted.
func (s *Stream) Next() (string, error) {
	if s.done {
		return "", io.EOF
	}

	for {
		line, err := s.reader.ReadBytes('\n')

		if content, ok := parseLine(line); ok {
			if err != nil {
				// Content arrived on the final unterminated line.
				s.finish()
			}
			if gjson.GetBytes(bytes.TrimSpace(line), "done").Bool() {
				s.finish()
			}
			return content, nil
		}

		if err != nil {
			s.finish()
			if err == io.EOF {
				return "", io.EOF
			}
			if s.ctx.Err() != nil {
				return "", &ClientError{Kind: KindCancelled, Message: "stream cancelled", Cause: s.ctx.Err()}
			}
			return "", &ClientError{Kind: KindStreamRead, Message: "stream read failed", Cause: err}
		}

		if gjson.GetBytes(bytes.TrimSpace(line), "done").Bool() {
			s.finish()
			return "", io.EOF
		}
	}
}

// Close releases the underlying transport. Safe to call more than once.
func (s *Stream) Close() error {
	s.done = true
	return s.body.Close()
}

func (s *Stream) finish() {
	s.done = true
	s.body.Close()
}

// parseLine extracts message.content from one framed line. Returns false
// for blank, malformed, or content-free lines.
func parseLine(line []byte) (string, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || !gjson.ValidBytes(line) {
		return "", false
	}
	content := gjson.GetBytes(line, "message.content")
	if !content.Exists() || content.String() == "" {
		return "", false
	}
	return content.String(), true
}
