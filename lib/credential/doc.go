// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package credential persists per-host authentication material for
// the remote cache.
//
// Each server host gets one JSON file under
// <config>/credentials/<host>.json holding any subset of an access
// token, a refresh token, and a legacy flat token. Files are written
// atomically with mode 0600, so concurrent build subprocesses sharing
// the record never see a torn write.
//
// A record that fails to decode is reported as absent. The user can
// always recover by authenticating again, and a half-readable
// credential is never safer than none.
package credential
