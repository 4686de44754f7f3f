// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package casrpc

import (
	"path/filepath"

	"github.com/bureau-foundation/casproxy/lib/codec"
	"github.com/bureau-foundation/casproxy/lib/filename"
	"github.com/bureau-foundation/casproxy/lib/remote"
)

// Action names.
const (
	ActionLoad     = "load"
	ActionSave     = "save"
	ActionPutValue = "put_value"
	ActionGetValue = "get_value"
	ActionStatus   = "status"
)

// Outcome values carried in result payloads.
const (
	OutcomeSuccess     = "success"
	OutcomeNotFound    = "not_found"
	OutcomeKeyNotFound = "key_not_found"
	OutcomeError       = "error"
)

// MaxRequestSize bounds one request, and so the largest artifact that
// can be saved: 256 MiB.
const MaxRequestSize = 256 << 20

// Response is the envelope of every socket response.
type Response struct {
	OK    bool             `cbor:"ok"`
	Error string           `cbor:"error,omitempty"`
	Kind  string           `cbor:"kind,omitempty"`
	Data  codec.RawMessage `cbor:"data,omitempty"`
}

type loadRequest struct {
	ID string `cbor:"id"`
}

type saveRequest struct {
	Data []byte `cbor:"data"`
}

type putValueRequest struct {
	Key     []byte            `cbor:"key"`
	Entries map[string][]byte `cbor:"entries"`
}

type getValueRequest struct {
	Key []byte `cbor:"key"`
}

// LoadResponse is the data of a load response.
type LoadResponse struct {
	Outcome string `cbor:"outcome"`
	Data    []byte `cbor:"data,omitempty"`
}

// SaveResponse is the data of a save response.
type SaveResponse struct {
	Outcome string `cbor:"outcome"`
	ID      string `cbor:"id,omitempty"`
}

// PutValueResponse is the data of a put_value response.
type PutValueResponse struct {
	Outcome string `cbor:"outcome"`
}

// GetValueResponse is the data of a get_value response.
type GetValueResponse struct {
	Outcome string            `cbor:"outcome"`
	Entries map[string][]byte `cbor:"entries,omitempty"`
}

// StatusResponse describes a running bridge. Printed as JSON by
// `casproxy cas status`.
type StatusResponse struct {
	Version       string `json:"version"`
	ServerURL     string `json:"server_url"`
	FullHandle    string `json:"full_handle"`
	Endpoint      string `json:"endpoint,omitempty"`
	EndpointError string `json:"endpoint_error,omitempty"`
	TokenKind     string `json:"token_kind,omitempty"`
	TokenExpiry   string `json:"token_expiry,omitempty"`
}

// SocketPath returns the socket path for handle under stateDir.
func SocketPath(stateDir string, handle remote.FullHandle) string {
	return filepath.Join(stateDir, "sockets", filename.Sanitize(handle.String())+".sock")
}
