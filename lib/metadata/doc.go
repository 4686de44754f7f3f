// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package metadata records local bookkeeping about cache traffic:
// payload size, compressed size, and transfer duration per content
// id, plus duration and size per key/value read or write.
//
// Records live under the state directory:
//
//	<state>/cas/<sanitized id>.json
//	<state>/keyvalue/<read|write>-<sanitized key id>.json
//
// Ids are passed through [filename.Sanitize] so a hostile or unusual
// id cannot escape its directory. Records are advisory: a missing or
// unreadable record reads as nil, and the build never depends on one
// existing.
package metadata
