// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package casrpc serves [cas.Service] to the build system over a Unix
// socket.
//
// The protocol is CBOR request/response, one request per connection:
// the client writes one CBOR map, the server writes one CBOR response
// and closes. The request's "action" field selects the operation:
//
//	load       {id}                 -> {outcome, data}
//	save       {data}               -> {outcome, id}
//	put_value  {key, entries}       -> {outcome}
//	get_value  {key}                -> {outcome, entries}
//	status     {}                   -> StatusResponse
//
// Every response is wrapped in the envelope {ok, error, kind, data}.
// Cold-cache conditions are successful responses whose outcome is
// "not_found" or "key_not_found". Operation failures set ok=false, a
// human-readable error, and the failure kind from lib/cacheerr, so the
// plugin can tell "log in again" from "the cache is unavailable".
//
// The socket lives at <state>/sockets/<sanitized full handle>.sock; see
// [SocketPath].
package casrpc
