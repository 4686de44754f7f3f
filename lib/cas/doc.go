// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cas is the protocol-agnostic bridge between the build
// system's compilation cache and the remote cache service.
//
// [Service] exposes four operations:
//
//   - Load fetches a blob by content id.
//   - Save stores bytes and returns their content id.
//   - PutValue stores named entries under a key.
//   - GetValue fetches the entries stored under a key.
//
// Content ids are the uppercase hex SHA-512 of the uncompressed bytes,
// so Save is idempotent: the same bytes always land under the same id.
// Keys map to ids of the same shape via [KeyID] so both namespaces
// share one addressing scheme on the server.
//
// Every call resolves the cache endpoint and the bearer token afresh;
// both are memoized or cached below this layer, so the per-call cost
// is a map lookup. Absence ("not found", "key not found") is a result,
// never an error: the build system treats it as a cold cache. Other
// failures carry a [cacheerr.Kind] so the caller can distinguish "log
// in again" from "proceed without the cache". Nothing here retries.
//
// The wire encoding the build system speaks lives in lib/casrpc; this
// package knows nothing about sockets.
package cas
