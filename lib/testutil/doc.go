// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for casproxy packages.
//
// [SocketDir] creates a short temporary directory for Unix domain
// sockets. Socket paths are limited to 108 bytes (sun_path), and the
// directories returned by t.TempDir() can exceed that under nested
// build sandboxes.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// pattern so tests never hang on a channel that is never written.
//
// [HomeDirs] points XDG_CONFIG_HOME and XDG_STATE_HOME at per-test
// directories so credential and metadata files never touch the real
// user directories.
//
// All helpers call t.Fatalf on failure.
package testutil
