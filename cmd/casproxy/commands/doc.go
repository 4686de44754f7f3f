// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the casproxy command tree.
//
// Every command loads [config.Config] the same way (--config, then
// CASPROXY_CONFIG, then defaults), applies --server-url and
// --full-handle overrides, validates, and wires the lib/ components
// through [app]. Streams are injected via [IO] so tests can run the
// tree in-process.
package commands
