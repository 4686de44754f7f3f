// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package remote is the HTTP client for the remote cache service.
//
// Two hosts are involved. The server URL (from configuration) answers
// endpoint discovery and token refresh. The cache endpoint selected by
// lib/endpoint answers blob and key/value traffic:
//
//	GET  <server>/api/cache/endpoints?account_handle=A
//	POST <server>/api/auth/refresh_token
//	GET  <endpoint>/api/cache/cas/<id>?account_handle=A&project_handle=P
//	HEAD <endpoint>/api/cache/cas/<id>?...
//	POST <endpoint>/api/cache/cas/<id>?...
//	PUT  <endpoint>/api/cache/keyvalue?...
//	GET  <endpoint>/api/cache/keyvalue/<id>?...
//	GET  <endpoint>/up
//
// Every request carries a fresh x-request-id and the client version and
// release date, which the server uses to flag stale clients. Warnings
// the server returns in the x-casproxy-warnings header are logged once
// per distinct message for the life of the Client.
//
// Failures are classified with lib/cacheerr: network errors are
// KindTransport and non-2xx statuses map through [cacheerr.FromStatus].
// This package never retries; callers decide.
package remote
