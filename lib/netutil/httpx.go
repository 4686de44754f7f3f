// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides network and HTTP I/O utilities.
//
// HTTP response helpers (ReadResponse, DecodeResponse, ErrorBody) bound all
// response body reads at MaxResponseSize to prevent unbounded memory
// allocation from a misbehaving or malicious server. This covers both the
// small JSON responses of the discovery and auth APIs and artifact
// downloads, whose size is bounded by the same limit on the local RPC
// surface.
//
// Connection error helpers (IsExpectedCloseError) classify errors that occur
// when a local client disconnects mid-request.
package netutil

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// MaxResponseSize is the bound on response body reads: 256 MB. Matches the
// largest artifact the local RPC surface accepts.
const MaxResponseSize int64 = 256 << 20

// ReadResponse reads a response body up to MaxResponseSize bytes. Use
// instead of io.ReadAll when reading HTTP response bodies.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}

// DecodeResponse reads a JSON API response body (up to MaxResponseSize bytes)
// and JSON-decodes it into v. Replaces the common io.ReadAll + json.Unmarshal
// pattern.
func DecodeResponse(body io.Reader, v any) error {
	data, err := io.ReadAll(io.LimitReader(body, MaxResponseSize))
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	return json.Unmarshal(data, v)
}

// ErrorBody reads an HTTP error response body and returns its
// human-readable message (see ErrorMessage). Read errors are ignored: a
// partial or empty body is still useful in an error message.
func ErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, MaxResponseSize))
	return ErrorMessage(data)
}

// ErrorMessage extracts a human-readable message from an error response
// body. JSON bodies of the form {"message": "..."} yield the message;
// anything else yields the trimmed body text.
func ErrorMessage(body []byte) string {
	var structured struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &structured) == nil && structured.Message != "" {
		return structured.Message
	}
	return strings.TrimSpace(string(body))
}
