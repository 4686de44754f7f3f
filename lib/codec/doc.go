// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR encoding configuration for the local
// RPC surface.
//
// casproxy uses two serialization formats with a clear boundary:
//
//   - JSON for everything that leaves the machine or that a human
//     reads: the remote cache HTTP API, credential and metadata
//     files, and CLI output.
//   - CBOR for the Unix-socket protocol between the build system's
//     cache plugin and the bridge. Artifact payloads travel as CBOR
//     byte strings without the base64 inflation JSON would impose.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items.
//
// For buffer-oriented operations:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations (sockets):
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// Types serialized only as CBOR use `cbor` struct tags. Types that are
// also printed as JSON by the CLI use `json` tags, which fxamacker/cbor
// reads as a fallback. Never put both tags on one field.
package codec
