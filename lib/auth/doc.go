// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package auth derives the bearer token used for remote cache calls
// and keeps it fresh.
//
// Token sources, in order:
//
//   - Under CI, a project-scoped secret from CASPROXY_TOKEN (or the
//     deprecated CASPROXY_CONFIG_TOKEN). CI never runs an interactive
//     flow and never reads stored credentials.
//   - Otherwise, the record in the [credential.Store] for the server
//     host: an access/refresh JWT pair, an account-scoped JWT, or a
//     deprecated legacy flat token.
//
// An access JWT that expires within [ExpiryMargin] is refreshed before
// it is returned. Refreshes are collapsed three ways: a [dedup.Group]
// keyed "token_"+serverURL shares one refresh among goroutines, a
// [filelock] lock file serializes refreshes across processes, and the
// stored record is re-read after the lock is taken so a refresh
// completed by another process is reused instead of repeated.
//
// A failed refresh deletes the stored credentials and returns
// [cacheerr.ErrUnauthorized]; the next Token call returns nil until the
// user logs in again. Transport failures are returned without touching
// the record.
package auth
