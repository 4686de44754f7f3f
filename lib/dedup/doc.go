// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package dedup collapses concurrent computations that share a key.
//
// [Group] guarantees at most one in-flight computation per key within
// a process. Callers that arrive while a computation is running attach
// to it and receive its exact result, value or error. The entry is
// removed when the computation finishes, so the next call starts
// fresh and failures are never cached.
//
// [Memo] layers process-lifetime retention of successful values on top
// of a Group. The cache URL store uses it to resolve an endpoint once
// per invocation; the authentication controller uses a bare Group so
// every token request re-reads the credential file.
//
// Coordination is in-process only. Cross-process exclusion is the job
// of lib/filelock.
package dedup
